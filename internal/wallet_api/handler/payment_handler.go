package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/gateway"
	"github.com/savings-wallet-ledger/internal/wallet_api/middleware"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
)

const (
	// IdempotencyKeyHeader optionally carries the gateway's delivery key
	IdempotencyKeyHeader = "Idempotency-Key"

	// IdempotentReplayedHeader marks a response served from the idempotency cache
	IdempotentReplayedHeader = "Idempotent-Replayed"

	maxWebhookBodyBytes = 1 << 20
)

// PaymentHandler handles gateway-backed deposits
type PaymentHandler struct {
	transactionService service.TransactionService
	webhookService     service.WebhookService
	providerHeader     string
	logger             *slog.Logger
}

// NewPaymentHandler creates a new payment handler. providerHeader names the
// header carrying the provider-specific signature.
func NewPaymentHandler(
	logger *slog.Logger,
	transactionService service.TransactionService,
	webhookService service.WebhookService,
	providerHeader string,
) *PaymentHandler {
	return &PaymentHandler{
		transactionService: transactionService,
		webhookService:     webhookService,
		providerHeader:     providerHeader,
		logger:             logger,
	}
}

// Initialize records a pending deposit. The returned reference is handed to
// the gateway and comes back in its callback.
func (h *PaymentHandler) Initialize(c *gin.Context) {
	accountID, ok := authenticatedAccount(c)
	if !ok {
		return
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request, err := newTransactionRequest(c, accountID, shared.TransactionKindDeposit, req.Amount, req.Reference, req.Metadata)
	if err != nil {
		RespondWithServiceError(c, h.logger, "initialize payment", err)
		return
	}

	result, err := h.transactionService.InitializePayment(c.Request.Context(), request)
	if err != nil {
		RespondWithServiceError(c, h.logger, "initialize payment", err)
		return
	}

	respondWithTransaction(c, result)
}

// Webhook receives gateway callbacks. The body is read once, as raw bytes, and
// the signature is checked over exactly those bytes. Successful responses are
// written verbatim from the service so a replay is byte-identical.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	raw, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondWithError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Webhook body is too large")
			return
		}
		RespondBadRequest(c, "Unable to read request body")
		return
	}

	headers := service.WebhookHeaders{
		Signatures: gateway.SignatureHeaders{
			Provider: c.GetHeader(h.providerHeader),
			Gateway:  c.GetHeader(gateway.GatewaySignatureHeader),
		},
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
		CorrelationID:  middleware.GetCorrelationID(c),
	}

	result, err := h.webhookService.HandleGatewayEvent(c.Request.Context(), raw, headers)
	if err != nil {
		RespondWithServiceError(c, h.logger, "handle gateway webhook", err)
		return
	}

	if result.Replayed {
		c.Header(IdempotentReplayedHeader, "true")
	}
	c.Data(result.StatusCode, "application/json; charset=utf-8", result.Body)
}
