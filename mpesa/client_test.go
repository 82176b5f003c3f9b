package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPhone(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"local format", "0712345678", "254712345678", false},
		{"international format", "254712345678", "254712345678", false},
		{"leading whitespace", "  0712345678 ", "254712345678", false},
		{"too short", "07123", "", true},
		{"local too long", "07123456789", "", true},
		{"plus prefix", "+254712345678", "", true},
		{"letters", "07123abc78", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormatPhone(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func testClient(baseURL string) *Client {
	return &Client{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		BaseURL:        baseURL,
		CallbackURL:    "https://example.com/payments/callback",
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		now: func() time.Time {
			return time.Date(2025, 9, 1, 14, 30, 5, 0, time.UTC)
		},
	}
}

func TestAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/v1/generate", r.URL.Path)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))

		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		assert.Equal(t, want, r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123", "expires_in": "3599"})
	}))
	defer srv.Close()

	token, err := testClient(srv.URL).AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestAccessTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestSTKPush(t *testing.T) {
	var pushed stkPushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&pushed))
			json.NewEncoder(w).Encode(STKPushResponse{
				MerchantRequestID: "merchant-1",
				CheckoutRequestID: "ws_CO_123",
				ResponseCode:      "0",
				CustomerMessage:   "Success. Request accepted for processing",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).STKPush(context.Background(), "254712345678", 1500)
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_123", resp.CheckoutRequestID)
	assert.Equal(t, "merchant-1", resp.MerchantRequestID)

	assert.Equal(t, "174379", pushed.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", pushed.TransactionType)
	assert.Equal(t, int64(1500), pushed.Amount)
	assert.Equal(t, "254712345678", pushed.PartyA)
	assert.Equal(t, "254712345678", pushed.PhoneNumber)
	assert.Equal(t, "174379", pushed.PartyB)
	assert.Equal(t, "https://example.com/payments/callback", pushed.CallBackURL)

	assert.Equal(t, "20250901143005", pushed.Timestamp)
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20250901143005"))
	assert.Equal(t, wantPassword, pushed.Password)
}

func TestSTKPushGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"requestId":    "req-1",
			"errorCode":    "500.001.1001",
			"errorMessage": "Invalid PhoneNumber",
		})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).STKPush(context.Background(), "254712345678", 100)
	require.Error(t, err)

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "500.001.1001", gwErr.Code)
	assert.Equal(t, "Invalid PhoneNumber", gwErr.Message)
}

func TestSTKQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
			return
		}
		assert.Equal(t, "/mpesa/stkpushquery/v1/query", r.URL.Path)

		var q stkQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, "ws_CO_123", q.CheckoutRequestID)

		// The gateway sends ResultCode as a string here.
		w.Write([]byte(`{"CheckoutRequestID":"ws_CO_123","ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).STKQuery(context.Background(), "ws_CO_123")
	require.NoError(t, err)
	assert.Equal(t, 1032, resp.Code())
	assert.Equal(t, "Request cancelled by user", resp.ResultDesc)
}

func TestSTKQueryStillProcessing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "500.001.1001",
			"errorMessage": "The transaction is being processed",
		})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).STKQuery(context.Background(), "ws_CO_123")
	assert.ErrorIs(t, err, ErrPending)
}
