package mpesa

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhone means the phone number matched neither the local nor
	// the country-coded format.
	ErrInvalidPhone = errors.New("invalid phone number: expected 07XXXXXXXX or 2547XXXXXXXX")

	// ErrAuth means the credential exchange with the gateway failed.
	ErrAuth = errors.New("mpesa: failed to obtain access token")

	// ErrPending is returned by STKQuery while the gateway is still
	// processing the transaction and has no result yet.
	ErrPending = errors.New("mpesa: transaction is still being processed")
)

// GatewayError carries the upstream error message from a rejected push or
// query request. Credentials never appear in the message.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mpesa gateway error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mpesa gateway error: status %d", e.StatusCode)
}
