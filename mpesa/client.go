package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// Client talks to the Daraja API. Access tokens are short-lived and fetched
// per operation; they are never cached.
type Client struct {
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	BaseURL        string
	CallbackURL    string

	httpClient *http.Client

	// now is swapped in tests to pin the password timestamp.
	now func() time.Time
}

func NewClient() *Client {
	return &Client{
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:      os.Getenv("MPESA_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		BaseURL:        os.Getenv("MPESA_BASE_URL"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		now:            time.Now,
	}
}

var (
	localPhone = regexp.MustCompile(`^0\d{9}$`)
	intlPhone  = regexp.MustCompile(`^254\d{9}$`)
)

// FormatPhone normalizes a subscriber number to the country-coded form the
// gateway expects.
func FormatPhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	switch {
	case intlPhone.MatchString(phone):
		return phone, nil
	case localPhone.MatchString(phone):
		return "254" + phone[1:], nil
	default:
		return "", ErrInvalidPhone
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AccessToken exchanges the consumer credentials for a bearer token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		c.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.ConsumerKey + ":" + c.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if token.AccessToken == "" {
		return "", ErrAuth
	}

	return token.AccessToken, nil
}

// password derives the time-stamped request password. The timestamp is
// YYYYMMDDHHmmss local time.
func (c *Client) password() (string, string) {
	timestamp := c.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.Shortcode + c.Passkey + timestamp))
	return password, timestamp
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the gateway's acceptance of a push request.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush asks the gateway to prompt the payer's device. phone must already
// be in country-coded form, amount in whole currency units.
func (c *Client) STKPush(ctx context.Context, phone string, amount int64) (*STKPushResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := c.password()
	payload := stkPushRequest{
		BusinessShortCode: c.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.CallbackURL,
		AccountReference:  "TWB",
		TransactionDesc:   "Plan Subscription Payment",
	}

	var out STKPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse is the gateway's answer to a status query. ResultCode is
// documented as a string but compared numerically everywhere; Code() does
// the conversion.
type STKQueryResponse struct {
	MerchantRequestID   string      `json:"MerchantRequestID"`
	CheckoutRequestID   string      `json:"CheckoutRequestID"`
	ResponseCode        string      `json:"ResponseCode"`
	ResponseDescription string      `json:"ResponseDescription"`
	ResultCode          json.Number `json:"ResultCode"`
	ResultDesc          string      `json:"ResultDesc"`
}

// Code returns the numeric result code.
func (r *STKQueryResponse) Code() int {
	n, err := r.ResultCode.Int64()
	if err != nil {
		return -1
	}
	return int(n)
}

// STKQuery checks the outcome of a previously initiated push. While the
// payer has not yet acted, the gateway answers with a "still processing"
// error, surfaced here as ErrPending.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := c.password()
	payload := stkQueryRequest{
		BusinessShortCode: c.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var out STKQueryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &out); err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && strings.Contains(gwErr.Message, "being processed") {
			return nil, ErrPending
		}
		return nil, err
	}
	return &out, nil
}

type gatewayErrorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) post(ctx context.Context, path, token string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var gwBody gatewayErrorBody
		_ = json.Unmarshal(respBody, &gwBody)
		return &GatewayError{
			StatusCode: resp.StatusCode,
			Code:       gwBody.ErrorCode,
			Message:    gwBody.ErrorMessage,
		}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
