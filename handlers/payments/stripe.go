package payments

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
)

type createPaymentIntentRequest struct {
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// CreateStripePaymentIntent creates a PaymentIntent for the given amount in
// the smallest currency unit.
func CreateStripePaymentIntent(c *gin.Context) {
	var req createPaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	amountInCents := req.Amount.Round(0).IntPart()
	if amountInCents <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid amount provided. Must be a positive number.",
		})
		return
	}

	if req.Currency == "" {
		req.Currency = "usd"
	}

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String(req.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}
	if req.Metadata != nil {
		params.Metadata = req.Metadata
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		log.Printf("Stripe payment intent error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to create payment intent"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"clientSecret": pi.ClientSecret,
	})
}
