package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction statuses. Pending is the only non-terminal status; once a
// transaction leaves Pending it is never updated again.
const (
	StatusPending      = "Pending"
	StatusCompleted    = "Completed"
	StatusFailed       = "Failed"
	StatusCancelled    = "Cancelled"
	StatusInsufficient = "Insufficient"
	StatusTimeout      = "Timeout"
)

// MpesaTransaction is one STK push attempt. CheckoutRequestID is the only
// correlation key between the push request and the gateway's callback.
type MpesaTransaction struct {
	gorm.Model
	Phone              string         `gorm:"not null" json:"phone"`
	Amount             int64          `gorm:"not null" json:"amount"`
	CheckoutRequestID  string         `gorm:"unique;not null;index" json:"checkout_request_id"`
	MerchantRequestID  string         `json:"merchant_request_id"`
	Status             string         `gorm:"not null;default:Pending" json:"status"`
	ResultCode         *int           `json:"result_code"`
	ResultDesc         string         `json:"result_desc"`
	MpesaReceiptNumber string         `json:"mpesa_receipt_number"`
	TransactionDate    string         `json:"transaction_date"`
	RawCallback        datatypes.JSON `json:"raw_callback,omitempty"`
}

// Terminal reports whether the transaction has left the Pending state.
func (t *MpesaTransaction) Terminal() bool {
	return t.Status != StatusPending
}
