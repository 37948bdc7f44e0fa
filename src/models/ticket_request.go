package models

import (
	"esn/src/types"

	"gorm.io/gorm"
)

type TicketRequest struct {
	ID            uint                `gorm:"primarykey" json:"id"`
	Name          string              `json:"name"`
	Email         string              `json:"email"`
	Phone         string              `json:"phone"`
	Address       *string             `json:"address,omitempty"`
	Title         *string             `json:"title,omitempty"`
	Organization  *string             `json:"organization,omitempty"`
	Website       *string             `json:"website,omitempty"`
	EventName     string              `json:"event,omitempty"`
	Status        types.RequestStatus `gorm:"default:'pending'" json:"status,omitempty"`
	PaymentStatus types.PaymentStatus `gorm:"default:'unpaid'" json:"payment_status,omitempty"`
	Gateway       *string             `json:"gateway,omitempty"`
	Pidx          *string             `json:"-"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	Amount        int64               `json:"amount,omitempty"`

	types.Timestamps
}

// MarkPaid transitions a request from unpaid to paid/resolved. The WHERE
// clause on payment_status makes the transition at-most-once: a redelivered
// gateway callback matches zero rows and reports alreadyDone.
func MarkPaid(tx *gorm.DB, id uint, transactionId string, amount int64) (updated bool, err error) {
	res := tx.
		Model(&TicketRequest{}).
		Where("id = ? AND payment_status = ?", id, types.PAYMENT_UNPAID).
		Updates(map[string]any{
			"payment_status": types.PAYMENT_PAID,
			"status":         types.REQUEST_RESOLVED,
			"transaction_id": transactionId,
			"amount":         amount,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed records a failed payment. The business status is left untouched
// so an admin can still resolve or reject the request manually.
func MarkFailed(tx *gorm.DB, id uint) error {
	return tx.
		Model(&TicketRequest{}).
		Where("id = ? AND payment_status = ?", id, types.PAYMENT_UNPAID).
		Updates(map[string]any{
			"payment_status": types.PAYMENT_FAILED,
		}).
		Error
}
