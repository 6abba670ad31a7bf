package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
)

// LoanHandler handles the loan endpoints
type LoanHandler struct {
	loanService service.LoanService
	logger      *slog.Logger
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(logger *slog.Logger, loanService service.LoanService) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
		logger:      logger,
	}
}

// Request disburses a loan into the wallet
func (h *LoanHandler) Request(c *gin.Context) {
	h.mutate(c, shared.TransactionKindLoan, "request loan", h.loanService.RequestLoan)
}

// Repay debits the wallet against the active loan
func (h *LoanHandler) Repay(c *gin.Context) {
	h.mutate(c, shared.TransactionKindLoanRepayment, "repay loan", h.loanService.RepayLoan)
}

// GetActive returns the caller's active loan
func (h *LoanHandler) GetActive(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	active, err := h.loanService.GetActiveLoan(c.Request.Context(), accountID)
	if err != nil {
		RespondWithServiceError(c, h.logger, "get loan", err)
		return
	}

	RespondOK(c, mapLoanToResponse(active))
}

func (h *LoanHandler) mutate(
	c *gin.Context,
	kind shared.TransactionKind,
	action string,
	apply func(context.Context, *shared.TransactionRequest) (*service.LoanResult, error),
) {
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

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	RespondWithData(c, status, LoanResult{
		Transaction: mapTransactionToResponse(result.Transaction),
		Loan:        mapLoanToResponse(result.Loan),
		Replayed:    result.Replayed,
	})
}
