package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/loan"
	"github.com/savings-wallet-ledger/internal/domain/savings"
	"github.com/savings-wallet-ledger/internal/domain/session"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/gateway"
	"github.com/savings-wallet-ledger/internal/platform/security"
	"github.com/savings-wallet-ledger/internal/wallet_api/middleware"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
)

// APIError is a domain error translated for clients
type APIError struct {
	Status  int
	Code    string
	Message string
}

type sentinelMapping struct {
	target error
	status int
	code   string
}

// matched with errors.Is, first hit wins
var sentinelMappings = []sentinelMapping{
	{account.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{shared.ErrInvalidMoneyAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{account.ErrAccountInactive, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	{account.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
	{account.ErrInsufficientSavings, http.StatusUnprocessableEntity, "INSUFFICIENT_SAVINGS"},
	{account.ErrBalanceOverflow, http.StatusUnprocessableEntity, "BALANCE_LIMIT_EXCEEDED"},
	{gateway.ErrUnauthorizedSignature, http.StatusUnauthorized, "UNAUTHORIZED_SIGNATURE"},
	{loan.ErrExceedsOutstandingLoan, http.StatusUnprocessableEntity, "EXCEEDS_OUTSTANDING_LOAN"},
	{savings.ErrSavingsLocked, http.StatusUnprocessableEntity, "SAVINGS_LOCKED"},
	{idempotency.ErrRequestInProgress, http.StatusConflict, "REQUEST_IN_PROGRESS"},
	{idempotency.ErrKeyReused, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED"},
	{idempotency.ErrEmptyKey, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY"},
	{idempotency.ErrKeyTooLong, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY"},
	{ledger.ErrInvalidMetadata, http.StatusBadRequest, "INVALID_METADATA"},
	{shared.ErrInvalidTransactionKind, http.StatusBadRequest, "INVALID_TRANSACTION_TYPE"},
	{shared.ErrInvalidCurrency, http.StatusBadRequest, "INVALID_CURRENCY"},
	{shared.ErrReservedReference, http.StatusBadRequest, "INVALID_REFERENCE"},
	{shared.ErrReferenceTooLong, http.StatusBadRequest, "INVALID_REFERENCE"},
	{shared.ErrEmptyReference, http.StatusBadRequest, "INVALID_REFERENCE"},
	{session.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{session.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN"},
	{session.ErrInvalidAccessToken, http.StatusUnauthorized, "UNAUTHORIZED"},
	{security.ErrPasswordTooShort, http.StatusBadRequest, "VALIDATION_ERROR"},
	{account.ErrEmptyFullName, http.StatusBadRequest, "VALIDATION_ERROR"},
	{account.ErrInvalidEmail, http.StatusBadRequest, "VALIDATION_ERROR"},
	{account.ErrInvalidCurrencyFormat, http.StatusBadRequest, "VALIDATION_ERROR"},
	{savings.ErrNoActivePlan, http.StatusNotFound, "NO_ACTIVE_PLAN"},
	{savings.ErrActivePlanExists, http.StatusConflict, "ACTIVE_PLAN_EXISTS"},
	{savings.ErrInvalidDuration, http.StatusBadRequest, "VALIDATION_ERROR"},
	{savings.ErrInvalidFrequency, http.StatusBadRequest, "VALIDATION_ERROR"},
	{savings.ErrInvalidContribution, http.StatusBadRequest, "VALIDATION_ERROR"},
	{savings.ErrEmptyPlanName, http.StatusBadRequest, "VALIDATION_ERROR"},
	{loan.ErrNoActiveLoan, http.StatusNotFound, "NO_ACTIVE_LOAN"},
	{loan.ErrActiveLoanExists, http.StatusConflict, "ACTIVE_LOAN_EXISTS"},
	{loan.ErrPrincipalTooLarge, http.StatusUnprocessableEntity, "LOAN_LIMIT_EXCEEDED"},
	{loan.ErrInvalidPrincipal, http.StatusBadRequest, "INVALID_AMOUNT"},
	{service.ErrInvalidWebhookPayload, http.StatusBadRequest, "INVALID_PAYLOAD"},
}

// MapError translates an error returned by a service. Anything unknown is a 500
// whose message does not leak internals.
func MapError(err error) APIError {
	if errors.Is(err, account.ErrAccountNotFound{}) {
		return APIError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "account not found"}
	}
	if errors.Is(err, ledger.ErrTransactionNotFound{}) {
		return APIError{http.StatusNotFound, "TRANSACTION_NOT_FOUND", "transaction not found"}
	}
	var duplicateEmail account.ErrDuplicateEmail
	if errors.As(err, &duplicateEmail) {
		return APIError{http.StatusConflict, "EMAIL_TAKEN", "An account with this email already exists"}
	}
	var referenceConflict ledger.ErrReferenceConflict
	if errors.As(err, &referenceConflict) {
		return APIError{http.StatusConflict, "REFERENCE_CONFLICT", referenceConflict.Error()}
	}
	var concurrent account.ErrConcurrentModification
	if errors.As(err, &concurrent) {
		return APIError{http.StatusConflict, "CONCURRENT_MODIFICATION", "The account changed concurrently, retry the request"}
	}

	for _, m := range sentinelMappings {
		if errors.Is(err, m.target) {
			return APIError{m.status, m.code, m.target.Error()}
		}
	}

	return APIError{http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred"}
}

// RespondWithServiceError maps err and writes it. Server side failures are
// logged at error level, client errors at info.
func RespondWithServiceError(c *gin.Context, logger *slog.Logger, action string, err error) {
	apiErr := MapError(err)
	attrs := []any{"error", err, "status", apiErr.Status, "correlation_id", middleware.GetCorrelationID(c)}
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error("Failed to "+action, attrs...)
	} else {
		logger.Info("Rejected request to "+action, attrs...)
	}
	RespondWithError(c, apiErr.Status, apiErr.Code, apiErr.Message)
}
