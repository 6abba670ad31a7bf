package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// Gateway events that move money. Every other event is acknowledged and ignored.
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// ErrInvalidWebhookPayload is returned for verified bodies that cannot be read as an event
var ErrInvalidWebhookPayload = errors.New("webhook payload is malformed")

type gatewayEvent struct {
	Event          string      `json:"event"`
	IdempotencyKey string      `json:"idempotencyKey"`
	Data           gatewayData `json:"data"`
}

type gatewayData struct {
	ID        json.RawMessage `json:"id"` // number or string depending on the gateway
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"` // minor units
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	Metadata  struct {
		UserID string `json:"user_id"`
	} `json:"metadata"`
}

func (d gatewayData) paymentID() string {
	id := bytes.TrimSpace(d.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	return string(id)
}

// webhookResponse carries nothing request-specific so replays are byte-identical
type webhookResponse struct {
	OK        bool   `json:"ok"`
	Reference string `json:"reference,omitempty"`
	Status    string `json:"status,omitempty"`
	Ignored   string `json:"ignored,omitempty"`
}

// WebhookServiceImpl implements the WebhookService interface
type WebhookServiceImpl struct {
	verifier  SignatureVerifier
	tracker   processing.IdempotencyTracker
	processor processing.ProcessingService
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	verifier SignatureVerifier,
	tracker processing.IdempotencyTracker,
	processor processing.ProcessingService,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) WebhookService {
	return &WebhookServiceImpl{
		verifier:  verifier,
		tracker:   tracker,
		processor: processor,
		metrics:   recorder,
		logger:    logger,
	}
}

// HandleGatewayEvent verifies, deduplicates and applies one gateway callback.
// The idempotency key is only claimed after the signature checked out, and it
// is released again when applying fails so the gateway's retry can proceed.
func (s *WebhookServiceImpl) HandleGatewayEvent(ctx context.Context, rawPayload []byte, headers WebhookHeaders) (*WebhookResult, error) {
	logger := s.logger
	if headers.CorrelationID != "" {
		logger = logger.With("correlation_id", headers.CorrelationID)
	}

	if err := s.verifier.Verify(rawPayload, headers.Signatures); err != nil {
		logger.Warn("Rejected webhook with invalid signature")
		s.metrics.WebhookEvent("unverified", metrics.OutcomeRejected)
		return nil, err
	}

	var event gatewayEvent
	if err := json.Unmarshal(rawPayload, &event); err != nil || event.Event == "" {
		logger.Warn("Rejected unreadable webhook payload", "error", err)
		s.metrics.WebhookEvent("unknown", metrics.OutcomeRejected)
		return nil, ErrInvalidWebhookPayload
	}

	key, err := idempotencyKey(headers.IdempotencyKey, &event)
	if err != nil {
		s.metrics.WebhookEvent(event.Event, metrics.OutcomeRejected)
		return nil, err
	}
	logger = logger.With("event", event.Event, "idempotency_key", key)

	decision, err := s.tracker.BeginOrGet(ctx, key, idempotency.HashRequest(rawPayload))
	if err != nil {
		logger.Warn("Webhook not admitted", "error", err)
		s.metrics.WebhookEvent(event.Event, metrics.OutcomeRejected)
		return nil, err
	}
	if decision.Outcome == idempotency.OutcomeReplay {
		logger.Info("Replaying cached webhook response")
		s.metrics.WebhookEvent(event.Event, metrics.OutcomeReplayed)
		return &WebhookResult{StatusCode: decision.ResponseCode, Body: decision.ResponseBody, Replayed: true}, nil
	}

	response, outcome, err := s.apply(ctx, &event, headers.CorrelationID)
	if err == nil {
		response.OK = true
		var body []byte
		body, err = json.Marshal(response)
		if err == nil {
			if finalizeErr := s.tracker.Finalize(ctx, key, http.StatusOK, body); finalizeErr != nil {
				// the ledger already holds the entry; a retry replays it by reference
				logger.Error("Failed to finalize webhook idempotency key", "error", finalizeErr)
			}
			s.metrics.WebhookEvent(event.Event, outcome)
			return &WebhookResult{StatusCode: http.StatusOK, Body: body}, nil
		}
	}

	if releaseErr := s.tracker.Release(ctx, key, decision.LockedAt); releaseErr != nil {
		logger.Error("Failed to release webhook idempotency key", "error", releaseErr)
	}
	logger.Error("Failed to apply webhook event", "error", err)
	s.metrics.WebhookEvent(event.Event, metrics.OutcomeFailed)
	return nil, err
}

func (s *WebhookServiceImpl) apply(ctx context.Context, event *gatewayEvent, correlationID string) (*webhookResponse, string, error) {
	var succeeded bool
	switch event.Event {
	case EventChargeSuccess:
		succeeded = true
	case EventChargeFailed:
		succeeded = false
	default:
		return &webhookResponse{Ignored: event.Event}, metrics.OutcomeIgnored, nil
	}

	reference := event.Data.Reference
	if reference == "" {
		paymentID := event.Data.paymentID()
		if paymentID == "" {
			return nil, "", ErrInvalidWebhookPayload
		}
		reference = shared.GatewayReference(paymentID)
	}

	// unknown or malformed user ids only settle references that already exist
	accountID, err := uuid.Parse(event.Data.Metadata.UserID)
	if err != nil {
		accountID = uuid.Nil
	}

	metadata, err := json.Marshal(map[string]any{
		"gateway_event":  event.Event,
		"gateway_id":     event.Data.paymentID(),
		"gateway_status": event.Data.Status,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode settlement metadata: %w", err)
	}

	result, err := s.processor.SettleTransaction(ctx, &shared.SettlementRequest{
		AccountID:     accountID,
		Reference:     reference,
		Amount:        event.Data.Amount,
		Currency:      event.Data.Currency,
		Succeeded:     succeeded,
		Metadata:      metadata,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, "", err
	}

	outcome := metrics.OutcomeApplied
	if result.Replayed {
		outcome = metrics.OutcomeReplayed
	}
	return &webhookResponse{
		Reference: result.Transaction.Reference,
		Status:    string(result.Transaction.Status),
	}, outcome, nil
}

// idempotencyKey prefers the header, then the payload field, then a key
// derived from the gateway's own identifiers so retries always collide
func idempotencyKey(header string, event *gatewayEvent) (string, error) {
	key := header
	if key == "" {
		key = event.IdempotencyKey
	}
	if key == "" {
		id := event.Data.paymentID()
		if id == "" {
			id = event.Data.Reference
		}
		if id == "" {
			return "", ErrInvalidWebhookPayload
		}
		key = "evt_" + event.Event + "_" + id
	}
	if err := idempotency.ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}
