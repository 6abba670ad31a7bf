package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/wallet_api/middleware"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
)

// AccountHandler handles HTTP requests for the authenticated account
type AccountHandler struct {
	accountService service.AccountService
	historyService service.HistoryService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService, historyService service.HistoryService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		historyService: historyService,
		logger:         logger,
	}
}

// GetMe returns the caller's account with its balances
func (h *AccountHandler) GetMe(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	acc, err := h.accountService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		RespondWithServiceError(c, h.logger, "get account", err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// Deactivate closes the caller's account. Balances and history are kept.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	if err := h.accountService.Deactivate(c.Request.Context(), accountID); err != nil {
		RespondWithServiceError(c, h.logger, "deactivate account", err)
		return
	}

	RespondNoContent(c)
}

// ListTransactions returns the caller's statement, newest first
func (h *AccountHandler) ListTransactions(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.historyService.ListTransactions(c.Request.Context(), accountID, pagination.Page, pagination.PageSize)
	if err != nil {
		RespondWithServiceError(c, h.logger, "list transactions", err)
		return
	}

	transactions := make([]TransactionResponse, 0, len(entries))
	for _, entry := range entries {
		transactions = append(transactions, mapTransactionToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, transactions, pagination.Page, pagination.PageSize, int(total))
}

// authenticatedAccount writes a 401 when the route was mounted without Authenticate
func authenticatedAccount(c *gin.Context) (uuid.UUID, bool) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return uuid.Nil, false
	}
	return accountID, true
}
