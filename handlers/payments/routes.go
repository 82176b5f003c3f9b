package payments

import (
	"github.com/gin-gonic/gin"

	"github.com/hilla1/server/notify"
)

// RegisterPaymentRoutes wires the payment endpoints. The callback and
// subscription endpoints stay outside the auth group: the gateway posts the
// callback unauthenticated, and clients hold the checkout id as capability.
func RegisterPaymentRoutes(r *gin.Engine, mpesaHandler *MpesaHandler, paypalHandler *PayPalHandler, hub *notify.Hub) {
	r.POST("/payments/push", mpesaHandler.InitiateSTKPush)
	r.POST("/payments/callback", mpesaHandler.HandleCallback)
	r.GET("/payments/status", mpesaHandler.CheckStatus)
	r.GET("/payments/transactions/:id", mpesaHandler.GetTransaction)
	r.GET("/payments/subscribe", notify.ServeWS(hub))

	r.POST("/paypal/create-order", paypalHandler.CreateOrder)
	r.POST("/paypal/capture-order", paypalHandler.CaptureOrder)

	r.POST("/stripe/create-payment-intent", CreateStripePaymentIntent)
}
