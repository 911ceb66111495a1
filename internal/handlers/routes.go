package handlers

import (
	"log/slog"
	"net/http"

	"github.com/voxelpay/payments/internal/api"
	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/events"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/middleware"
	"github.com/voxelpay/payments/internal/repository"
	"github.com/voxelpay/payments/internal/service"
	"github.com/voxelpay/payments/internal/transient"
)

// NewRouter wires services, handlers and middleware into the HTTP handler
// served by the application.
func NewRouter(
	database *db.DB,
	cfg *config.Config,
	registry *gateway.Registry,
	transients transient.Store,
	publisher events.Publisher,
	logger *slog.Logger,
) http.Handler {
	walletService := service.NewWalletService(database, cfg.Wallet, publisher, logger)
	marketplaceService := service.NewMarketplaceService(database, cfg.Marketplace, registry, publisher, logger)
	depositService := service.NewDepositService(database, walletService, registry, transients, logger)
	checkoutService := service.NewCheckoutService(database, registry, marketplaceService, logger)
	flowService := service.NewFlowService(database, registry, marketplaceService, depositService, publisher, logger)
	connectService := service.NewConnectService(registry, marketplaceService, transients, logger)

	handler := NewHandler(
		checkoutService,
		flowService,
		walletService,
		depositService,
		connectService,
		database,
		cfg.App,
		logger,
	)

	mux := http.NewServeMux()

	// Checkout and order lifecycle
	mux.HandleFunc("POST /api/v1/checkout", handler.CreateCheckout)
	mux.HandleFunc("GET /api/v1/orders/{id}", handler.GetOrder)
	mux.HandleFunc("POST /api/v1/orders/{id}/approve", handler.ApproveOrder)
	mux.HandleFunc("POST /api/v1/orders/{id}/decline", handler.DeclineOrder)
	mux.HandleFunc("POST /api/v1/orders/{id}/sync", handler.SyncOrder)
	mux.HandleFunc("POST /api/v1/orders/{id}/cancel-subscription", handler.CancelSubscription)

	// Provider callbacks
	mux.HandleFunc("POST /webhooks/{provider}", handler.HandleWebhook)
	mux.HandleFunc("GET /payments/{provider}/return", handler.PaymentReturn)
	mux.HandleFunc("GET /payments/{provider}/cancel", handler.PaymentCancel)

	// Wallet
	mux.HandleFunc("POST /api/v1/wallet/deposit", handler.CreateDeposit)
	mux.HandleFunc("GET /api/v1/wallet/balance", handler.GetBalance)
	mux.HandleFunc("GET /api/v1/wallet/transactions", handler.GetTransactions)
	mux.HandleFunc("GET /wallet/deposit/success", handler.DepositSuccess)
	mux.HandleFunc("GET /wallet/deposit/cancel", handler.DepositCancel)

	// Vendor onboarding
	mux.HandleFunc("GET /api/v1/vendors/{id}/connect", handler.VendorConnectStatus)
	mux.HandleFunc("GET /api/v1/vendors/{id}/connect/{provider}", handler.VendorConnect)
	mux.HandleFunc("POST /api/v1/vendors/{id}/connect/{provider}", handler.VendorSubmitDetails)
	mux.HandleFunc("DELETE /api/v1/vendors/{id}/connect/{provider}", handler.VendorDisconnect)
	mux.HandleFunc("GET /vendors/connect/{provider}/callback", handler.VendorConnectCallback)

	mux.HandleFunc("GET /health", handler.GetHealth)

	api.RegisterDocsRoutes(mux)

	idempotencyRepo := repository.NewIdempotencyRepository(database)
	var wrapped http.Handler = mux
	wrapped = middleware.Idempotency(idempotencyRepo, logger)(wrapped)
	wrapped = middleware.RequestLogging(logger)(wrapped)
	return wrapped
}
