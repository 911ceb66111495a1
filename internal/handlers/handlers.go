// Package handlers implements the HTTP surface of the payments engine.
package handlers

import (
	"context"
	"log/slog"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/service"
)

// HealthChecker validates system health.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Handler holds the injected services behind every endpoint.
type Handler struct {
	checkout      *service.CheckoutService
	flow          *service.FlowService
	wallet        *service.WalletService
	deposits      *service.DepositService
	connect       *service.ConnectService
	healthChecker HealthChecker
	app           config.AppConfig
	logger        *slog.Logger
}

// NewHandler creates a new Handler with injected service dependencies.
func NewHandler(
	checkout *service.CheckoutService,
	flow *service.FlowService,
	wallet *service.WalletService,
	deposits *service.DepositService,
	connect *service.ConnectService,
	healthChecker HealthChecker,
	app config.AppConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		checkout:      checkout,
		flow:          flow,
		wallet:        wallet,
		deposits:      deposits,
		connect:       connect,
		healthChecker: healthChecker,
		app:           app,
		logger:        logger,
	}
}
