package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hilla1/server/models"
	"github.com/hilla1/server/mpesa"
	"github.com/hilla1/server/notify"
)

// Gateway is the slice of the Daraja client the handlers need; tests swap
// in a fake.
type Gateway interface {
	STKPush(ctx context.Context, phone string, amount int64) (*mpesa.STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

// MpesaHandler owns the STK push lifecycle: initiation, callback
// reconciliation and the polling fallback.
type MpesaHandler struct {
	store  *TransactionStore
	client Gateway
	hub    *notify.Hub
	logger *slog.Logger
}

func NewMpesaHandler(store *TransactionStore, client Gateway, hub *notify.Hub, logger *slog.Logger) *MpesaHandler {
	return &MpesaHandler{store: store, client: client, hub: hub, logger: logger}
}

// mapResultCode converts a gateway result code to a terminal status.
func mapResultCode(code int) string {
	switch code {
	case mpesa.ResultSuccess:
		return models.StatusCompleted
	case mpesa.ResultInsufficientBalance:
		return models.StatusInsufficient
	case mpesa.ResultCancelledByUser:
		return models.StatusCancelled
	case mpesa.ResultTimeout:
		return models.StatusTimeout
	default:
		return models.StatusFailed
	}
}

type pushRequest struct {
	Phone  string          `json:"phone"`
	Amount decimal.Decimal `json:"amount"`
}

// InitiateSTKPush validates the request, asks the gateway to prompt the
// payer's phone and records the Pending transaction. No record is created
// when the gateway rejects the push.
func (h *MpesaHandler) InitiateSTKPush(c *gin.Context) {
	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone and amount required."})
		return
	}

	if req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone and amount required."})
		return
	}

	// The gateway only accepts whole currency units.
	amount := req.Amount.Round(0).IntPart()
	if amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Amount must be a positive number."})
		return
	}

	phoneFormatted, err := mpesa.FormatPhone(req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	resp, err := h.client.STKPush(c.Request.Context(), phoneFormatted, amount)
	if err != nil {
		h.logger.Error("STK push failed", "phone", phoneFormatted, "error", err)
		var gwErr *mpesa.GatewayError
		if errors.As(err, &gwErr) && gwErr.Message != "" {
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": gwErr.Message})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "M-Pesa payment initiation failed."})
		return
	}

	tx := &models.MpesaTransaction{
		Phone:             phoneFormatted,
		Amount:            amount,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Status:            models.StatusPending,
	}
	if err := h.store.Create(tx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to record transaction."})
		return
	}

	message := resp.CustomerMessage
	if message == "" {
		message = "STK push sent. Complete the payment on your phone."
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           message,
		"checkoutRequestId": resp.CheckoutRequestID,
		"transactionId":     tx.ID,
	})
}

// callbackAck is what the gateway expects back; anything else triggers
// redelivery, which cannot fix a reconciliation problem on our side.
func callbackAck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// HandleCallback reconciles the gateway's webhook against the local record.
// Every path acknowledges with 200.
func (h *MpesaHandler) HandleCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read mpesa callback body", "error", err)
		callbackAck(c)
		return
	}

	cb, ok := mpesa.ParseCallback(body)
	if !ok {
		h.logger.Warn("Discarding malformed mpesa callback", "body_size", len(body))
		callbackAck(c)
		return
	}

	tx, err := h.store.ByCheckoutID(cb.CheckoutRequestID)
	if err != nil {
		h.logger.Error("Callback lookup failed", "checkout_request_id", cb.CheckoutRequestID, "error", err)
		callbackAck(c)
		return
	}
	if tx == nil {
		h.logger.Warn("Callback for unknown transaction", "checkout_request_id", cb.CheckoutRequestID)
		callbackAck(c)
		return
	}
	if tx.Terminal() {
		// Duplicate delivery; first terminal state wins.
		callbackAck(c)
		return
	}

	update := TerminalUpdate{
		Status:      mapResultCode(cb.ResultCode),
		ResultCode:  cb.ResultCode,
		ResultDesc:  cb.ResultDesc,
		RawCallback: body,
	}
	if cb.ResultCode == mpesa.ResultSuccess {
		update.ReceiptNumber = cb.Meta(mpesa.MetaReceiptNumber)
		update.TransactionDate = cb.Meta(mpesa.MetaTransactionDate)
		update.Phone = cb.Meta(mpesa.MetaPhoneNumber)
		if raw := cb.Meta(mpesa.MetaAmount); raw != "" {
			if settled, err := decimal.NewFromString(raw); err == nil {
				update.Amount = settled.Round(0).IntPart()
			}
		}
	}

	won, err := h.store.Finalize(cb.CheckoutRequestID, update)
	if err != nil || !won {
		callbackAck(c)
		return
	}

	h.hub.Publish(notify.PaymentEvent{
		CheckoutRequestID:  cb.CheckoutRequestID,
		Status:             update.Status,
		ResultCode:         cb.ResultCode,
		ResultDesc:         cb.ResultDesc,
		MpesaReceiptNumber: update.ReceiptNumber,
	})

	callbackAck(c)
}

func transactionView(tx *models.MpesaTransaction) gin.H {
	return gin.H{
		"transactionId":      tx.ID,
		"checkoutRequestId":  tx.CheckoutRequestID,
		"status":             tx.Status,
		"resultDesc":         tx.ResultDesc,
		"mpesaReceiptNumber": tx.MpesaReceiptNumber,
		"amount":             tx.Amount,
		"phone":              tx.Phone,
		"paid":               tx.Status == models.StatusCompleted,
	}
}

// CheckStatus serves a client's poll. A Pending transaction triggers a
// proactive gateway query to bridge callback delivery gaps; query failures
// degrade to the stale Pending view instead of failing the poll.
func (h *MpesaHandler) CheckStatus(c *gin.Context) {
	checkoutRequestID := c.Query("checkoutRequestId")
	if checkoutRequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "checkoutRequestId is required"})
		return
	}

	tx, err := h.store.ByCheckoutID(checkoutRequestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to look up transaction."})
		return
	}
	if tx == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Transaction not found."})
		return
	}

	if tx.Terminal() {
		c.JSON(http.StatusOK, gin.H{"success": true, "transaction": transactionView(tx)})
		return
	}

	resp, err := h.client.STKQuery(c.Request.Context(), checkoutRequestID)
	if err != nil {
		if !errors.Is(err, mpesa.ErrPending) {
			h.logger.Warn("STK query failed, returning stale status",
				"checkout_request_id", checkoutRequestID, "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "transaction": transactionView(tx)})
		return
	}

	code := resp.Code()
	update := TerminalUpdate{
		Status:     mapResultCode(code),
		ResultCode: code,
		ResultDesc: resp.ResultDesc,
	}

	won, err := h.store.Finalize(checkoutRequestID, update)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "transaction": transactionView(tx)})
		return
	}
	if won {
		h.hub.Publish(notify.PaymentEvent{
			CheckoutRequestID: checkoutRequestID,
			Status:            update.Status,
			ResultCode:        code,
			ResultDesc:        resp.ResultDesc,
		})
	}

	// Re-read so a concurrently delivered callback's richer data wins.
	if fresh, err := h.store.ByCheckoutID(checkoutRequestID); err == nil && fresh != nil {
		tx = fresh
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": transactionView(tx)})
}

// GetTransaction returns a transaction by its local identifier.
func (h *MpesaHandler) GetTransaction(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid transaction id."})
		return
	}

	tx, err := h.store.ByID(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to look up transaction."})
		return
	}
	if tx == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Transaction not found."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": tx})
}
