package wallet_api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
	"github.com/savings-wallet-ledger/internal/wallet_api/handler"
	"github.com/savings-wallet-ledger/internal/wallet_api/middleware"
)

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

type handlers struct {
	auth         *handler.AuthHandler
	accounts     *handler.AccountHandler
	transactions *handler.TransactionHandler
	payments     *handler.PaymentHandler
	savings      *handler.SavingsHandler
	loans        *handler.LoanHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	h handlers,
	tokens middleware.TokenParser,
	recorder *metrics.Recorder,
	checks map[string]HealthCheck,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(recorder))
	r.Use(middleware.Recovery(logger))

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.auth.Register)
			auth.POST("/login", h.auth.Login)
			auth.POST("/refresh", h.auth.Refresh)
			auth.POST("/logout", h.auth.Logout)
		}

		// Gateway callbacks authenticate by signature, not by bearer token
		v1.POST("/payments/webhook", h.payments.Webhook)

		authenticated := v1.Group("")
		authenticated.Use(middleware.Authenticate(tokens, logger))

		accounts := authenticated.Group("/accounts/me")
		{
			accounts.GET("", h.accounts.GetMe)
			accounts.DELETE("", h.accounts.Deactivate)
			accounts.GET("/transactions", h.accounts.ListTransactions)
		}

		transactions := authenticated.Group("/transactions")
		{
			transactions.POST("", h.transactions.Create)
			transactions.GET("/:reference", h.transactions.GetByReference)
		}

		authenticated.POST("/payments/initialize", h.payments.Initialize)

		savings := authenticated.Group("/savings")
		{
			savings.POST("/plans", h.savings.CreatePlan)
			savings.GET("/plans/active", h.savings.GetActivePlan)
			savings.POST("/contributions", h.savings.Contribute)
			savings.POST("/withdrawals", h.savings.Withdraw)
		}

		loans := authenticated.Group("/loans")
		{
			loans.POST("", h.loans.Request)
			loans.GET("/active", h.loans.GetActive)
			loans.POST("/repayments", h.loans.Repay)
		}
	}

	r.GET("/health", healthHandler(checks))
	r.GET("/metrics", gin.WrapH(recorder.Handler()))
}

// healthHandler answers 503 as soon as one dependency check fails
func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		dependencies := make(gin.H, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status = http.StatusServiceUnavailable
				dependencies[name] = err.Error()
				continue
			}
			dependencies[name] = "ok"
		}

		c.JSON(status, gin.H{
			"ok":           status == http.StatusOK,
			"timestamp":    time.Now().UTC(),
			"dependencies": dependencies,
		})
	}
}
