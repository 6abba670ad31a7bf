package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/savings-wallet-ledger/internal/domain/savings"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
)

// SavingsHandler handles the savings goal endpoints
type SavingsHandler struct {
	savingsService service.SavingsService
	logger         *slog.Logger
	now            func() time.Time
}

// NewSavingsHandler creates a new savings handler
func NewSavingsHandler(logger *slog.Logger, savingsService service.SavingsService) *SavingsHandler {
	return &SavingsHandler{
		savingsService: savingsService,
		logger:         logger,
		now:            time.Now,
	}
}

// CreatePlan opens the caller's savings plan
func (h *SavingsHandler) CreatePlan(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	contribution, err := shared.ToMinorUnits(req.ContributionAmount)
	if err != nil {
		RespondWithServiceError(c, h.logger, "create savings plan", err)
		return
	}
	// the target is optional
	var target int64
	if !req.TargetAmount.IsZero() {
		if target, err = shared.ToMinorUnits(req.TargetAmount); err != nil {
			RespondWithServiceError(c, h.logger, "create savings plan", err)
			return
		}
	}

	plan, err := h.savingsService.CreatePlan(c.Request.Context(), service.CreatePlanInput{
		AccountID:          accountID,
		Name:               req.Name,
		TargetAmount:       target,
		ContributionAmount: contribution,
		Frequency:          savings.Frequency(strings.ToLower(req.Frequency)),
		DurationDays:       req.DurationDays,
	})
	if err != nil {
		RespondWithServiceError(c, h.logger, "create savings plan", err)
		return
	}

	RespondCreated(c, mapPlanToResponse(plan, h.now()))
}

// GetActivePlan returns the caller's active plan
func (h *SavingsHandler) GetActivePlan(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	plan, err := h.savingsService.GetActivePlan(c.Request.Context(), accountID)
	if err != nil {
		RespondWithServiceError(c, h.logger, "get savings plan", err)
		return
	}

	RespondOK(c, mapPlanToResponse(plan, h.now()))
}

// Contribute moves money into the wallet and locks it into the active plan
func (h *SavingsHandler) Contribute(c *gin.Context) {
	h.mutate(c, shared.TransactionKindSave, "contribute to savings plan", h.savingsService.Contribute)
}

// Withdraw releases matured savings
func (h *SavingsHandler) Withdraw(c *gin.Context) {
	h.mutate(c, shared.TransactionKindWithdrawal, "withdraw savings", h.savingsService.WithdrawSavings)
}

func (h *SavingsHandler) mutate(c *gin.Context, kind shared.TransactionKind, action string, apply mutation) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request, err := newTransactionRequest(c, accountID, kind, req.Amount, req.Reference, req.Metadata)
	if err != nil {
		RespondWithServiceError(c, h.logger, action, err)
		return
	}

	result, err := apply(c.Request.Context(), request)
	if err != nil {
		RespondWithServiceError(c, h.logger, action, err)
		return
	}

	respondWithTransaction(c, result)
}
