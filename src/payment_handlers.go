package main

import (
	"context"
	"esn/src/config"
	"esn/src/db"
	"esn/src/gateways/fonepay"
	"esn/src/gateways/khalti"
	"esn/src/issuer"
	"esn/src/models"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// paisaFromRupees converts a decimal rupee amount to paisa, rounding rather
// than truncating ("8.20" times 100 is 819.99... as a float).
func paisaFromRupees(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

func redirectPaymentSuccess(ctx *gin.Context, orderId int) {
	ctx.Redirect(http.StatusFound, fmt.Sprintf("%s/payment/success?id=%d", config.AppHost(), orderId))
}

func redirectPaymentFailure(ctx *gin.Context, query string) {
	ctx.Redirect(http.StatusFound, fmt.Sprintf("%s/payment/failed?%s", config.AppHost(), query))
}

func paymentRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	payments := apiv1.Group("/payments")

	payments.GET("/khalti/callback", func(ctx *gin.Context) {
		pidx := ctx.Query("pidx")
		orderParam := ctx.Query("purchase_order_id")
		if pidx == "" || orderParam == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing_params"})
			return
		}
		orderId, err := strconv.Atoi(orderParam)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing_params"})
			return
		}

		vctx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
		defer cancel()
		payload, err := khalti.GetClient().Lookup(vctx, pidx)
		if err != nil {
			log.Printf("[khalti] Error verifying payment for order %d: %s\n", orderId, err.Error())
			redirectPaymentFailure(ctx, "error=verification_failed")
			return
		}

		status, _ := payload["status"].(string)
		if status != "Completed" {
			log.Printf("[khalti] Payment for order %d not completed, status: %q\n", orderId, status)
			if err := models.MarkFailed(db.GetDb(), uint(orderId)); err != nil {
				log.Printf("[khalti] Error recording failed payment for order %d: %s\n", orderId, err.Error())
				redirectPaymentFailure(ctx, "error=server_error")
				return
			}
			redirectPaymentFailure(ctx, fmt.Sprintf("id=%d", orderId))
			return
		}

		transactionId, _ := payload["transaction_id"].(string)
		var amount int64
		if v, ok := payload["total_amount"].(float64); ok {
			amount = int64(v)
		}
		updated, err := models.MarkPaid(db.GetDb(), uint(orderId), transactionId, amount)
		if err != nil {
			log.Printf("[khalti] Error updating order %d (pidx %s, payload %v): %s\n", orderId, pidx, payload, err.Error())
			redirectPaymentFailure(ctx, "error=server_error")
			return
		}
		if updated {
			issuer.GetIssuer().Enqueue(issuer.Job{RequestID: uint(orderId), PaymentID: pidx})
		} else {
			log.Printf("[khalti] Order %d already processed, skipping issuance\n", orderId)
		}
		redirectPaymentSuccess(ctx, orderId)
	})

	payments.GET("/fonepay/callback", func(ctx *gin.Context) {
		prn := ctx.Query("PRN")
		if prn == "" {
			prn = ctx.Query("R1")
		}
		if prn == "" {
			redirectPaymentFailure(ctx, "error=missing_params")
			return
		}
		orderId, err := strconv.Atoi(prn)
		if err != nil {
			redirectPaymentFailure(ctx, "error=missing_params")
			return
		}
		uid := ctx.Query("UID")

		vctx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
		defer cancel()
		ok, err := fonepay.GetClient().Verify(vctx, &fonepay.VerifyParams{
			PRN: prn,
			PID: ctx.Query("PID"),
			UID: uid,
			BID: ctx.Query("BID"),
			AMT: ctx.Query("P_AMT"),
		})
		if err != nil {
			log.Printf("[fonepay] Error verifying payment for order %d (UID %s): %s\n", orderId, uid, err.Error())
			ok = false
		}
		if !ok {
			if err := models.MarkFailed(db.GetDb(), uint(orderId)); err != nil {
				log.Printf("[fonepay] Error recording failed payment for order %d: %s\n", orderId, err.Error())
				redirectPaymentFailure(ctx, "error=server_error")
				return
			}
			redirectPaymentFailure(ctx, fmt.Sprintf("id=%d&reason=verification_failed", orderId))
			return
		}

		amount := paisaFromRupees(ctx.Query("P_AMT"))
		updated, err := models.MarkPaid(db.GetDb(), uint(orderId), uid, amount)
		if err != nil {
			log.Printf("[fonepay] Error updating order %d (UID %s): %s\n", orderId, uid, err.Error())
			redirectPaymentFailure(ctx, "error=server_error")
			return
		}
		if updated {
			issuer.GetIssuer().Enqueue(issuer.Job{RequestID: uint(orderId), PaymentID: uid})
		} else {
			log.Printf("[fonepay] Order %d already processed, skipping issuance\n", orderId)
		}
		redirectPaymentSuccess(ctx, orderId)
	})

	return apiv1
}
