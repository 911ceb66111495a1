package paypal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/transient"
)

// testClient builds a Client against a fake API server with a pre-cached
// access token, so tests exercise the order endpoints only.
func testClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	transients := transient.NewMemoryStore()
	require.NoError(t, transients.Set(context.Background(),
		"paypal:access_token:sandbox", []byte("test-token"), time.Minute))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Client{
		rest:       gateway.NewClient(server.URL, nil, parseError, logger),
		transients: transients,
		cfg:        config.PayPalConfig{ClientID: "id", ClientSecret: "secret", Sandbox: true},
	}
}

func checkoutOrder(paypalOrderID string) *models.Order {
	order := &models.Order{ID: 7, Status: models.OrderStatusPendingPayment, Currency: "USD"}
	order.SetDetail(detailOrderID, paypalOrderID)
	return order
}

func TestFetch_AutomaticCaptureSettlesApprovedOrder(t *testing.T) {
	var captured atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v2/checkout/orders/PP-1":
			if captured.Load() {
				w.Write([]byte(`{
					"id": "PP-1", "status": "COMPLETED",
					"purchase_units": [{"payments": {"captures": [{"id": "cap_1", "status": "COMPLETED"}]}}]
				}`)) //nolint:errcheck
				return
			}
			w.Write([]byte(`{"id": "PP-1", "status": "APPROVED", "purchase_units": [{}]}`)) //nolint:errcheck
		case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders/PP-1/capture":
			assert.NotEmpty(t, r.Header.Get("PayPal-Request-Id"))
			captured.Store(true)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": "PP-1", "status": "COMPLETED"}`)) //nolint:errcheck
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	method := NewPaymentMethod(testClient(t, server), &gateway.Env{CaptureMethod: config.CaptureAutomatic})
	order := checkoutOrder("PP-1")

	payload, err := method.Fetch(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, captured.Load(), "approved order must be captured")

	require.NoError(t, method.Apply(order, payload))
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, "cap_1", order.TransactionID)
}

func TestFetch_AutomaticCapture_ToleratesAlreadyCaptured(t *testing.T) {
	var gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			if gets.Add(1) == 1 {
				w.Write([]byte(`{"id": "PP-2", "status": "APPROVED", "purchase_units": [{}]}`)) //nolint:errcheck
				return
			}
			w.Write([]byte(`{
				"id": "PP-2", "status": "COMPLETED",
				"purchase_units": [{"payments": {"captures": [{"id": "cap_2", "status": "COMPLETED"}]}}]
			}`)) //nolint:errcheck
		case r.Method == http.MethodPost:
			// A racing webhook delivery captured first.
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message": "ORDER_ALREADY_CAPTURED"}`)) //nolint:errcheck
		}
	}))
	defer server.Close()

	method := NewPaymentMethod(testClient(t, server), &gateway.Env{CaptureMethod: config.CaptureAutomatic})
	order := checkoutOrder("PP-2")

	payload, err := method.Fetch(context.Background(), order)
	require.NoError(t, err)

	require.NoError(t, method.Apply(order, payload))
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestFetch_ManualCaptureLeavesApprovedOrderAlone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{"id": "PP-3", "status": "APPROVED", "purchase_units": [{}]}`)) //nolint:errcheck
	}))
	defer server.Close()

	method := NewPaymentMethod(testClient(t, server), &gateway.Env{CaptureMethod: config.CaptureManual})
	order := checkoutOrder("PP-3")

	payload, err := method.Fetch(context.Background(), order)
	require.NoError(t, err)

	require.NoError(t, method.Apply(order, payload))
	assert.Equal(t, models.OrderStatusPendingApproval, order.Status)
}

func TestFetch_CompletedOrderIsNotRecaptured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{
			"id": "PP-4", "status": "COMPLETED",
			"purchase_units": [{"payments": {"captures": [{"id": "cap_4", "status": "COMPLETED"}]}}]
		}`)) //nolint:errcheck
	}))
	defer server.Close()

	method := NewPaymentMethod(testClient(t, server), &gateway.Env{CaptureMethod: config.CaptureAutomatic})
	order := checkoutOrder("PP-4")

	_, err := method.Fetch(context.Background(), order)
	require.NoError(t, err)
}

func TestAwaitingCapture(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    bool
	}{
		{"approved no captures", `{"status": "APPROVED", "purchase_units": [{}]}`, true},
		{"approved lowercase", `{"status": "approved"}`, true},
		{"created", `{"status": "CREATED"}`, false},
		{"approved with capture", `{"status": "APPROVED", "purchase_units": [{"payments": {"captures": [{"id": "c"}]}}]}`, false},
		{"garbage", `{`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, awaitingCapture(json.RawMessage(tc.payload)))
		})
	}
}
