package payments

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayPalHandler drives the synchronous create/capture order flow.
type PayPalHandler struct {
	httpClient *http.Client
}

func NewPayPalHandler() *PayPalHandler {
	return &PayPalHandler{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func paypalBaseURL() string {
	if url := os.Getenv("PAYPAL_BASE_URL"); url != "" {
		return url
	}
	return "https://api-m.sandbox.paypal.com"
}

func (h *PayPalHandler) accessToken() (string, error) {
	credentials := base64.StdEncoding.EncodeToString(
		[]byte(os.Getenv("PAYPAL_CLIENT_ID") + ":" + os.Getenv("PAYPAL_CLIENT_SECRET")))

	req, err := http.NewRequest("POST", paypalBaseURL()+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

type createOrderRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (h *PayPalHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "A positive amount is required"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	accessToken, err := h.accessToken()
	if err != nil {
		log.Printf("PayPal token error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to create PayPal order"})
		return
	}

	order := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]string{
					"currency_code": req.Currency,
					"value":         req.Amount.StringFixed(2),
				},
			},
		},
	}

	body, _ := json.Marshal(order)
	httpReq, err := http.NewRequest("POST", paypalBaseURL()+"/v2/checkout/orders", bytes.NewBuffer(body))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create PayPal order"})
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	// Makes retried creates idempotent on PayPal's side.
	httpReq.Header.Set("PayPal-Request-Id", uuid.NewString())

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("PayPal create order error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to create PayPal order"})
		return
	}
	defer resp.Body.Close()

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.ID == "" {
		log.Printf("PayPal create order: unexpected response (status %d)", resp.StatusCode)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to create PayPal order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orderID": created.ID})
}

func (h *PayPalHandler) CaptureOrder(c *gin.Context) {
	var req struct {
		OrderID string `json:"orderID"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "orderID is required"})
		return
	}

	accessToken, err := h.accessToken()
	if err != nil {
		log.Printf("PayPal token error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to capture PayPal order"})
		return
	}

	httpReq, err := http.NewRequest("POST",
		paypalBaseURL()+"/v2/checkout/orders/"+req.OrderID+"/capture", bytes.NewReader(nil))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to capture PayPal order"})
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("PayPal capture error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to capture PayPal order"})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Failed to capture PayPal order"})
		return
	}

	c.Data(resp.StatusCode, "application/json", body)
}
