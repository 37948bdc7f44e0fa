package main

import (
	"context"
	"errors"
	"esn/src/config"
	"esn/src/db"
	"esn/src/gateways/fonepay"
	"esn/src/gateways/khalti"
	"esn/src/middlewares"
	"esn/src/models"
	"esn/src/types"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func ticketRequestRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	limited := middlewares.RateLimitMiddleware(10, time.Minute)

	apiv1.GET("/events", func(ctx *gin.Context) {
		var events []models.Event
		if err := db.GetDb().
			Where(&models.Event{Status: types.EVENT_UPCOMING}).
			Order("date asc").
			Find(&events).
			Error; err != nil {
			log.Printf("Error retrieving Events: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": events})
	})

	requests := apiv1.Group("/ticket-requests")
	requests.
		POST("", limited, func(ctx *gin.Context) {
			var body types.CreateTicketRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			var event models.Event
			if err := d.
				Model(&models.Event{}).
				Where("title = ? AND status = ?", body.EventName, types.EVENT_UPCOMING).
				First(&event).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
					return
				}
				log.Printf("Error retrieving Event %q: %s\n", body.EventName, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			request := models.TicketRequest{
				Name:          body.Name,
				Email:         body.Email,
				Phone:         body.Phone,
				Address:       body.Address,
				Title:         body.Title,
				Organization:  body.Organization,
				Website:       body.Website,
				EventName:     event.Title,
				Status:        types.REQUEST_PENDING,
				PaymentStatus: types.PAYMENT_UNPAID,
			}
			if err := d.Transaction(func(tx *gorm.DB) error {
				return tx.Create(&request).Error
			}); err != nil {
				log.Printf("Error creating TicketRequest: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": request.ID})
		}).
		POST("/:id/pay", limited, func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.InitiatePaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			var request models.TicketRequest
			if err := d.
				Model(&models.TicketRequest{}).
				Where("id = ? AND payment_status = ?", params.ID, types.PAYMENT_UNPAID).
				First(&request).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "no unpaid ticket request"})
					return
				}
				log.Printf("Error retrieving TicketRequest %d: %s\n", params.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			var event models.Event
			if err := d.
				Model(&models.Event{}).
				Where("title = ?", request.EventName).
				First(&event).
				Error; err != nil {
				log.Printf("Error retrieving Event %q: %s\n", request.EventName, err.Error())
				ctx.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}

			paisa := event.Price * 100
			orderId := fmt.Sprintf("%d", request.ID)
			gateway := string(body.Gateway)
			var paymentURL string
			updates := map[string]any{
				"gateway": gateway,
				"amount":  paisa,
			}
			switch body.Gateway {
			case types.GATEWAY_KHALTI:
				ictx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
				defer cancel()
				res, err := khalti.GetClient().Initiate(ictx, &khalti.InitiateRequest{
					ReturnURL:         fmt.Sprintf("%s/api/v1/payments/khalti/callback", config.AppHost()),
					WebsiteURL:        config.AppHost(),
					Amount:            paisa,
					PurchaseOrderID:   orderId,
					PurchaseOrderName: event.Title,
					CustomerInfo: khalti.CustomerInfo{
						Name:  request.Name,
						Email: request.Email,
						Phone: request.Phone,
					},
				})
				if err != nil {
					log.Printf("[khalti] Error initiating payment for request %d: %s\n", request.ID, err.Error())
					ctx.JSON(http.StatusBadGateway, gin.H{"error": "could not initiate payment"})
					return
				}
				updates["pidx"] = res.Pidx
				paymentURL = res.PaymentURL
			case types.GATEWAY_FONEPAY:
				url, err := fonepay.GetClient().BuildRedirectURL(event.Price, orderId, event.Title)
				if err != nil {
					log.Printf("[fonepay] Error building redirect for request %d: %s\n", request.ID, err.Error())
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "could not initiate payment"})
					return
				}
				paymentURL = url
			}

			if err := d.
				Model(&models.TicketRequest{}).
				Where("id = ?", request.ID).
				Updates(updates).
				Error; err != nil {
				log.Printf("Error updating TicketRequest %d: %s\n", request.ID, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"payment_url": paymentURL})
		}).
		GET("/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var request struct {
				ID            uint                `json:"id"`
				Status        types.RequestStatus `json:"status"`
				PaymentStatus types.PaymentStatus `json:"payment_status"`
				EventName     string              `json:"event"`
			}
			if err := db.GetDb().
				Model(&models.TicketRequest{}).
				Where("id = ?", params.ID).
				First(&request).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": request})
		})

	return apiv1
}
