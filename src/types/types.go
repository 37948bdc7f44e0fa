package types

import (
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type RequestStatus string

const (
	REQUEST_PENDING  RequestStatus = "pending"
	REQUEST_RESOLVED RequestStatus = "resolved"
	REQUEST_REJECTED RequestStatus = "rejected"
)

type PaymentStatus string

const (
	PAYMENT_UNPAID PaymentStatus = "unpaid"
	PAYMENT_PAID   PaymentStatus = "paid"
	PAYMENT_FAILED PaymentStatus = "failed"
)

type EventStatus string

const (
	EVENT_UPCOMING  EventStatus = "upcoming"
	EVENT_COMPLETED EventStatus = "completed"
)

type PaymentGateway string

const (
	GATEWAY_KHALTI  PaymentGateway = "khalti"
	GATEWAY_FONEPAY PaymentGateway = "fonepay"
)

type CreateTicketRequestBody struct {
	Name         string  `json:"name" binding:"required"`
	Email        string  `json:"email" binding:"required,email"`
	Phone        string  `json:"phone" binding:"required,nepaliphone"`
	EventName    string  `json:"event" binding:"required"`
	Address      *string `json:"address,omitempty"`
	Title        *string `json:"title,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Website      *string `json:"website,omitempty" binding:"omitempty,url"`
}

type InitiatePaymentRequestBody struct {
	Gateway PaymentGateway `json:"gateway" binding:"required,oneof=khalti fonepay"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}
