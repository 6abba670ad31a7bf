package wallet_api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/savings-wallet-ledger/internal/config"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
	"github.com/savings-wallet-ledger/internal/wallet_api/handler"
	"github.com/savings-wallet-ledger/internal/wallet_api/middleware"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
)

// Services groups the business services exposed over HTTP
type Services struct {
	Auth         service.AuthService
	Accounts     service.AccountService
	History      service.HistoryService
	Transactions service.TransactionService
	Webhooks     service.WebhookService
	Savings      service.SavingsService
	Loans        service.LoanService
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures a new HTTP server with the given services.
// providerHeader names the header carrying the payment provider's webhook signature.
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	services Services,
	tokens middleware.TokenParser,
	providerHeader string,
	recorder *metrics.Recorder,
	checks map[string]HealthCheck,
) *Server {
	if cfg.Application.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	setupRouter(log, httpRouter, handlers{
		auth:         handler.NewAuthHandler(log, services.Auth, cfg.Auth),
		accounts:     handler.NewAccountHandler(log, services.Accounts, services.History),
		transactions: handler.NewTransactionHandler(log, services.Transactions),
		payments:     handler.NewPaymentHandler(log, services.Transactions, services.Webhooks, providerHeader),
		savings:      handler.NewSavingsHandler(log, services.Savings),
		loans:        handler.NewLoanHandler(log, services.Loans),
	}, tokens, recorder, checks)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      withCORS(httpRouter, cfg.CORS),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// withCORS allows credentialed browser calls from the configured origins only
func withCORS(next http.Handler, cfg config.CORSConfig) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		return next
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			middleware.CorrelationIDHeader,
			handler.IdempotencyKeyHeader,
		},
		ExposedHeaders:   []string{middleware.CorrelationIDHeader, handler.IdempotentReplayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})(next)
}

// Handler exposes the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
