//nolint:errcheck // unchecked errors are acceptable in test files
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/events"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/gateway/offline"
	"github.com/voxelpay/payments/internal/handlers"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/transient"
)

// TestServer wraps the HTTP test server and database for integration tests.
// Only the offline gateway is registered, so flows run end to end without
// external provider calls.
type TestServer struct {
	Server   *httptest.Server
	Database *db.DB
	t        *testing.T
}

// SetupTest creates a new test server with a clean database state.
func SetupTest(t *testing.T) *TestServer {
	return SetupTestWith(t, events.NopPublisher{})
}

// SetupTestWith creates a test server with a custom event publisher and
// extra gateway providers registered alongside the offline one.
func SetupTestWith(t *testing.T, publisher events.Publisher, providers ...gateway.Provider) *TestServer {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err, "failed to load config")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := db.Connect(context.Background(), &cfg.Database, logger)
	require.NoError(t, err, "failed to connect to database")

	resetTestData(t, database)

	registry := gateway.NewRegistry()
	registry.Register(offline.New())
	for _, p := range providers {
		registry.Register(p)
	}

	transients := transient.NewMemoryStore()
	router := handlers.NewRouter(database, cfg, registry, transients, publisher, logger)
	server := httptest.NewServer(router)

	return &TestServer{
		Server:   server,
		Database: database,
		t:        t,
	}
}

// Close shuts down the test server and database connection.
func (ts *TestServer) Close() {
	ts.Server.Close()
	_ = ts.Database.Close()
}

// URL returns the full URL for a given path.
func (ts *TestServer) URL(path string) string {
	return ts.Server.URL + path
}

func resetTestData(t *testing.T, database *db.DB) {
	t.Helper()

	_, err := database.ExecContext(context.Background(), `
		TRUNCATE TABLE orders CASCADE;
		TRUNCATE TABLE wallet_transactions CASCADE;
		TRUNCATE TABLE wallets CASCADE;
		TRUNCATE TABLE vendor_connections CASCADE;
		TRUNCATE TABLE payout_jobs CASCADE;
		TRUNCATE TABLE idempotency_keys CASCADE;
	`)
	require.NoError(t, err, "failed to reset test data")
}

// Checkout sends a POST request starting a payment attempt.
func (ts *TestServer) Checkout(t *testing.T, provider string, items []models.OrderItem, idempotencyKey string) *http.Response {
	t.Helper()

	body := map[string]any{
		"provider":    provider,
		"currency":    "USD",
		"customer_id": 7,
		"items":       items,
	}
	jsonBody, _ := json.Marshal(body)

	req, err := http.NewRequest(http.MethodPost, ts.URL("/api/v1/checkout"), bytes.NewReader(jsonBody))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

// OrderAction sends a POST to one of the order lifecycle endpoints
// (approve, decline, sync, cancel-subscription).
func (ts *TestServer) OrderAction(t *testing.T, orderID int64, action string) *http.Response {
	t.Helper()

	url := ts.URL("/api/v1/orders/" + itoa(orderID) + "/" + action)
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)

	return resp
}

// GetOrder fetches an order by id.
func (ts *TestServer) GetOrder(t *testing.T, orderID int64) *http.Response {
	t.Helper()

	resp, err := http.Get(ts.URL("/api/v1/orders/" + itoa(orderID)))
	require.NoError(t, err)

	return resp
}

// Deposit sends a POST request starting a wallet top-up.
func (ts *TestServer) Deposit(t *testing.T, userID, amountCents int64, idempotencyKey string) *http.Response {
	t.Helper()

	body := map[string]any{
		"user_id":      userID,
		"amount_cents": amountCents,
		"email":        "customer@example.com",
	}
	jsonBody, _ := json.Marshal(body)

	req, err := http.NewRequest(http.MethodPost, ts.URL("/api/v1/wallet/deposit"), bytes.NewReader(jsonBody))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
