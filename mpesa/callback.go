package mpesa

import (
	"encoding/json"
)

// Result codes the gateway reports in callbacks and query responses.
const (
	ResultSuccess             = 0
	ResultInsufficientBalance = 1
	ResultCancelledByUser     = 1032
	ResultTimeout             = 2001
)

// Metadata item names the callback may carry.
const (
	MetaReceiptNumber   = "MpesaReceiptNumber"
	MetaAmount          = "Amount"
	MetaTransactionDate = "TransactionDate"
	MetaPhoneNumber     = "PhoneNumber"
)

// CallbackEnvelope is the nested webhook body POSTed by the gateway.
type CallbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values arrive as strings or numbers depending on the field;
// the raw message is kept so numeric values (dates, phone numbers) are not
// mangled by float decoding.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// Meta returns the string form of a named metadata item, or "" when absent.
func (c *STKCallback) Meta(name string) string {
	for _, item := range c.CallbackMetadata.Item {
		if item.Name != name {
			continue
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err == nil {
			return s
		}
		return string(item.Value)
	}
	return ""
}

// ParseCallback decodes the webhook body. A nil callback or missing
// CheckoutRequestID means the payload is malformed.
func ParseCallback(body []byte) (*STKCallback, bool) {
	var envelope CallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false
	}
	cb := envelope.Body.STKCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, false
	}
	return cb, true
}
