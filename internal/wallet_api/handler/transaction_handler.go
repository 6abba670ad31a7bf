package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
	"github.com/savings-wallet-ledger/internal/wallet_api/middleware"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
	"github.com/shopspring/decimal"
)

// mutation is a service operation that produces one ledger entry
type mutation func(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error)

// TransactionHandler handles HTTP requests for transaction operations
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Create applies a deposit, withdrawal, save or topup. Repeating a reference
// returns the stored entry with 200 instead of 201.
func (h *TransactionHandler) Create(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request, err := newTransactionRequest(c, accountID, transactionKind(req.Type), req.Amount, req.Reference, req.Metadata)
	if err != nil {
		RespondWithServiceError(c, h.logger, "create transaction", err)
		return
	}

	result, err := h.transactionService.CreateTransaction(c.Request.Context(), request)
	if err != nil {
		RespondWithServiceError(c, h.logger, "create transaction", err)
		return
	}

	respondWithTransaction(c, result)
}

// GetByReference is the authoritative re-query after a lost response
func (h *TransactionHandler) GetByReference(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	transaction, err := h.transactionService.GetTransaction(c.Request.Context(), accountID, c.Param("reference"))
	if err != nil {
		RespondWithServiceError(c, h.logger, "get transaction", err)
		return
	}

	RespondOK(c, mapTransactionToResponse(transaction))
}

// newTransactionRequest converts the HTTP amount to minor units
func newTransactionRequest(
	c *gin.Context,
	accountID uuid.UUID,
	kind shared.TransactionKind,
	amount decimal.Decimal,
	reference string,
	metadata json.RawMessage,
) (*shared.TransactionRequest, error) {
	minor, err := shared.ToMinorUnits(amount)
	if err != nil {
		return nil, err
	}
	return &shared.TransactionRequest{
		AccountID:     accountID,
		Kind:          kind,
		Amount:        minor,
		Reference:     strings.TrimSpace(reference),
		Metadata:      metadata,
		CorrelationID: middleware.GetCorrelationID(c),
		Timestamp:     time.Now().UTC(),
	}, nil
}

func respondWithTransaction(c *gin.Context, result *processing.Result) {
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	RespondWithData(c, status, TransactionResult{
		Transaction: mapTransactionToResponse(result.Transaction),
		Replayed:    result.Replayed,
	})
}
