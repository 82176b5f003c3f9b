package payments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilla1/server/models"
	"github.com/hilla1/server/mpesa"
	"github.com/hilla1/server/notify"
)

type fakeGateway struct {
	pushFn  func(ctx context.Context, phone string, amount int64) (*mpesa.STKPushResponse, error)
	queryFn func(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

func (f *fakeGateway) STKPush(ctx context.Context, phone string, amount int64) (*mpesa.STKPushResponse, error) {
	return f.pushFn(ctx, phone, amount)
}

func (f *fakeGateway) STKQuery(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
	return f.queryFn(ctx, checkoutRequestID)
}

func acceptedPush(checkoutRequestID string) func(context.Context, string, int64) (*mpesa.STKPushResponse, error) {
	return func(ctx context.Context, phone string, amount int64) (*mpesa.STKPushResponse, error) {
		return &mpesa.STKPushResponse{
			MerchantRequestID: "merchant-1",
			CheckoutRequestID: checkoutRequestID,
			ResponseCode:      "0",
			CustomerMessage:   "Success. Request accepted for processing",
		}, nil
	}
}

func noQuery(t *testing.T) func(context.Context, string) (*mpesa.STKQueryResponse, error) {
	return func(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
		t.Errorf("unexpected STK query for %s", checkoutRequestID)
		return nil, mpesa.ErrPending
	}
}

func newTestHandler(t *testing.T, gw Gateway) (*MpesaHandler, *TransactionStore, *notify.Hub) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	store := testStore(t)
	hub := notify.NewHub()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMpesaHandler(store, gw, hub, logger), store, hub
}

func perform(handler gin.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, "/x", handler)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInitiateSTKPush(t *testing.T) {
	gw := &fakeGateway{pushFn: acceptedPush("ws_CO_new"), queryFn: noQuery(t)}
	h, store, _ := newTestHandler(t, gw)

	w := perform(h.InitiateSTKPush, "POST", "/x", `{"phone":"0712345678","amount":1499.6}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `"success":true`)
	assert.Contains(t, body, "ws_CO_new")

	tx, err := store.ByCheckoutID("ws_CO_new")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, "254712345678", tx.Phone)
	// 1499.6 rounds to whole units.
	assert.Equal(t, int64(1500), tx.Amount)
}

func TestInitiateSTKPushValidation(t *testing.T) {
	gw := &fakeGateway{
		pushFn: func(ctx context.Context, phone string, amount int64) (*mpesa.STKPushResponse, error) {
			t.Error("gateway must not be called for invalid input")
			return nil, nil
		},
		queryFn: noQuery(t),
	}
	h, _, _ := newTestHandler(t, gw)

	cases := []struct {
		name string
		body string
	}{
		{"missing phone", `{"amount":100}`},
		{"zero amount", `{"phone":"0712345678","amount":0}`},
		{"negative amount", `{"phone":"0712345678","amount":-5}`},
		{"sub-unit amount", `{"phone":"0712345678","amount":0.4}`},
		{"invalid phone", `{"phone":"12345","amount":100}`},
		{"not json", `phone=0712345678`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := perform(h.InitiateSTKPush, "POST", "/x", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestInitiateSTKPushGatewayFailure(t *testing.T) {
	gw := &fakeGateway{
		pushFn: func(ctx context.Context, phone string, amount int64) (*mpesa.STKPushResponse, error) {
			return nil, &mpesa.GatewayError{StatusCode: 400, Code: "500.001.1001", Message: "Invalid Amount"}
		},
		queryFn: noQuery(t),
	}
	h, store, _ := newTestHandler(t, gw)

	w := perform(h.InitiateSTKPush, "POST", "/x", `{"phone":"0712345678","amount":100}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid Amount")

	// A rejected push leaves no record behind.
	var count int64
	store.db.Model(&models.MpesaTransaction{}).Count(&count)
	assert.Zero(t, count)
}

func callbackBody(checkoutRequestID string, resultCode int) string {
	if resultCode == mpesa.ResultSuccess {
		return fmt.Sprintf(`{
			"Body": {"stkCallback": {
				"MerchantRequestID": "merchant-1",
				"CheckoutRequestID": %q,
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {"Item": [
					{"Name": "Amount", "Value": 1500.00},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20250901143512},
					{"Name": "PhoneNumber", "Value": 254799999999}
				]}
			}}}`, checkoutRequestID)
	}
	return fmt.Sprintf(`{
		"Body": {"stkCallback": {
			"MerchantRequestID": "merchant-1",
			"CheckoutRequestID": %q,
			"ResultCode": %d,
			"ResultDesc": "failed"
		}}}`, checkoutRequestID, resultCode)
}

func TestHandleCallbackCompletes(t *testing.T) {
	gw := &fakeGateway{queryFn: noQuery(t)}
	h, store, hub := newTestHandler(t, gw)
	seedPending(t, store, "ws_CO_1")

	events := hub.Subscribe("ws_CO_1")

	w := perform(h.HandleCallback, "POST", "/x", callbackBody("ws_CO_1", mpesa.ResultSuccess))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ResultCode":0`)

	tx, err := store.ByCheckoutID("ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, tx.Status)
	assert.Equal(t, "NLJ7RT61SV", tx.MpesaReceiptNumber)
	assert.Equal(t, "20250901143512", tx.TransactionDate)
	assert.Equal(t, "254799999999", tx.Phone)
	assert.Equal(t, int64(1500), tx.Amount)
	assert.NotEmpty(t, tx.RawCallback)

	select {
	case ev := <-events:
		assert.Equal(t, models.StatusCompleted, ev.Status)
		assert.Equal(t, "NLJ7RT61SV", ev.MpesaReceiptNumber)
	case <-time.After(time.Second):
		t.Fatal("no payment event published")
	}
}

func TestHandleCallbackIdempotent(t *testing.T) {
	gw := &fakeGateway{queryFn: noQuery(t)}
	h, store, hub := newTestHandler(t, gw)
	seedPending(t, store, "ws_CO_1")

	w := perform(h.HandleCallback, "POST", "/x", callbackBody("ws_CO_1", mpesa.ResultCancelledByUser))
	require.Equal(t, http.StatusOK, w.Code)

	// A contradictory redelivery is acknowledged but ignored.
	events := hub.Subscribe("ws_CO_1")
	w = perform(h.HandleCallback, "POST", "/x", callbackBody("ws_CO_1", mpesa.ResultSuccess))
	require.Equal(t, http.StatusOK, w.Code)

	tx, err := store.ByCheckoutID("ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, tx.Status)

	select {
	case <-events:
		t.Fatal("duplicate callback must not publish an event")
	default:
	}
}

func TestHandleCallbackResultCodeMapping(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{mpesa.ResultSuccess, models.StatusCompleted},
		{mpesa.ResultInsufficientBalance, models.StatusInsufficient},
		{mpesa.ResultCancelledByUser, models.StatusCancelled},
		{mpesa.ResultTimeout, models.StatusTimeout},
		{9999, models.StatusFailed},
	}

	for i, tc := range cases {
		t.Run(fmt.Sprintf("code_%d", tc.code), func(t *testing.T) {
			gw := &fakeGateway{queryFn: noQuery(t)}
			h, store, _ := newTestHandler(t, gw)

			checkoutRequestID := fmt.Sprintf("ws_CO_map_%d", i)
			seedPending(t, store, checkoutRequestID)

			w := perform(h.HandleCallback, "POST", "/x", callbackBody(checkoutRequestID, tc.code))
			require.Equal(t, http.StatusOK, w.Code)

			tx, err := store.ByCheckoutID(checkoutRequestID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, tx.Status)
			require.NotNil(t, tx.ResultCode)
			assert.Equal(t, tc.code, *tx.ResultCode)
		})
	}
}

func TestHandleCallbackUnknownAndMalformed(t *testing.T) {
	gw := &fakeGateway{queryFn: noQuery(t)}
	h, _, _ := newTestHandler(t, gw)

	// Unknown checkout request: still acknowledged.
	w := perform(h.HandleCallback, "POST", "/x", callbackBody("ws_CO_unknown", 0))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ResultCode":0`)

	// Garbage body: still acknowledged.
	w = perform(h.HandleCallback, "POST", "/x", "not json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ResultCode":0`)
}

func TestCheckStatusTerminalSkipsGateway(t *testing.T) {
	gw := &fakeGateway{queryFn: noQuery(t)}
	h, store, _ := newTestHandler(t, gw)
	seedPending(t, store, "ws_CO_1")

	_, err := store.Finalize("ws_CO_1", TerminalUpdate{
		Status:        models.StatusCompleted,
		ResultDesc:    "ok",
		ReceiptNumber: "NLJ7RT61SV",
	})
	require.NoError(t, err)

	w := perform(h.CheckStatus, "GET", "/x?checkoutRequestId=ws_CO_1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"Completed"`)
	assert.Contains(t, w.Body.String(), `"paid":true`)
}

func TestCheckStatusPendingResolvesViaQuery(t *testing.T) {
	gw := &fakeGateway{
		queryFn: func(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
			return &mpesa.STKQueryResponse{
				CheckoutRequestID: checkoutRequestID,
				ResultCode:        "1032",
				ResultDesc:        "Request cancelled by user",
			}, nil
		},
	}
	h, store, hub := newTestHandler(t, gw)
	seedPending(t, store, "ws_CO_1")

	events := hub.Subscribe("ws_CO_1")

	w := perform(h.CheckStatus, "GET", "/x?checkoutRequestId=ws_CO_1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"Cancelled"`)
	assert.Contains(t, w.Body.String(), `"paid":false`)

	tx, err := store.ByCheckoutID("ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, tx.Status)

	select {
	case ev := <-events:
		assert.Equal(t, models.StatusCancelled, ev.Status)
	case <-time.After(time.Second):
		t.Fatal("poll resolution must publish a payment event")
	}
}

func TestCheckStatusStillProcessing(t *testing.T) {
	gw := &fakeGateway{
		queryFn: func(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
			return nil, mpesa.ErrPending
		},
	}
	h, store, _ := newTestHandler(t, gw)
	seedPending(t, store, "ws_CO_1")

	w := perform(h.CheckStatus, "GET", "/x?checkoutRequestId=ws_CO_1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"Pending"`)
}

func TestCheckStatusQueryFailureKeepsPending(t *testing.T) {
	gw := &fakeGateway{
		queryFn: func(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
			return nil, &mpesa.GatewayError{StatusCode: 503, Message: "Service unavailable"}
		},
	}
	h, store, _ := newTestHandler(t, gw)
	seedPending(t, store, "ws_CO_1")

	w := perform(h.CheckStatus, "GET", "/x?checkoutRequestId=ws_CO_1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"Pending"`)

	tx, err := store.ByCheckoutID("ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, tx.Status)
}

func TestCheckStatusValidation(t *testing.T) {
	gw := &fakeGateway{queryFn: noQuery(t)}
	h, _, _ := newTestHandler(t, gw)

	w := perform(h.CheckStatus, "GET", "/x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(h.CheckStatus, "GET", "/x?checkoutRequestId=ws_CO_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTransaction(t *testing.T) {
	gw := &fakeGateway{queryFn: noQuery(t)}
	h, store, _ := newTestHandler(t, gw)
	seeded := seedPending(t, store, "ws_CO_1")

	r := gin.New()
	r.GET("/payments/transactions/:id", h.GetTransaction)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", fmt.Sprintf("/payments/transactions/%d", seeded.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ws_CO_1")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/payments/transactions/999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/payments/transactions/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
