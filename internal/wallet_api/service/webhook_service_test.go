package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/config"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/gateway"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testGatewaySecret = "whsec_test"

type webhookFixture struct {
	tracker   *MockIdempotencyTracker
	processor *MockProcessingService
	service   WebhookService
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{
		tracker:   new(MockIdempotencyTracker),
		processor: new(MockProcessingService),
	}
	verifier := gateway.NewVerifier(config.WebhookConfig{GatewaySecret: testGatewaySecret})
	f.service = NewWebhookService(verifier, f.tracker, f.processor, nil, discardLogger())
	return f
}

func signed(raw []byte) WebhookHeaders {
	return WebhookHeaders{Signatures: gateway.SignatureHeaders{Gateway: gateway.SignGateway(testGatewaySecret, raw)}}
}

func chargePayload(t *testing.T, event string, userID uuid.UUID, reference string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"event": event,
		"data": map[string]any{
			"id":        302961,
			"reference": reference,
			"amount":    5000,
			"currency":  "NGN",
			"status":    "success",
			"metadata":  map[string]any{"user_id": userID.String()},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestWebhookServiceImpl_HandleGatewayEvent(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("ChargeSuccessSettlesAndFinalizes", func(t *testing.T) {
		f := newWebhookFixture()
		raw := chargePayload(t, EventChargeSuccess, userID, "")

		f.tracker.On("BeginOrGet", ctx, "evt_charge.success_302961", idempotency.HashRequest(raw)).
			Return(idempotency.Decision{Outcome: idempotency.OutcomeProceed}, nil).Once()
		f.processor.On("SettleTransaction", ctx, mock.MatchedBy(func(req *shared.SettlementRequest) bool {
			return req.AccountID == userID && req.Reference == "gw_302961" && req.Amount == 5000 && req.Succeeded
		})).Return(&processing.Result{Transaction: &ledger.Transaction{Reference: "gw_302961", Status: shared.TransactionStatusSuccess}}, nil).Once()

		var cached []byte
		f.tracker.On("Finalize", ctx, "evt_charge.success_302961", http.StatusOK, mock.Anything).
			Run(func(args mock.Arguments) { cached = args.Get(3).([]byte) }).
			Return(nil).Once()

		result, err := f.service.HandleGatewayEvent(ctx, raw, signed(raw))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.False(t, result.Replayed)
		assert.JSONEq(t, `{"ok":true,"reference":"gw_302961","status":"success"}`, string(result.Body))
		assert.Equal(t, result.Body, cached, "the cached body is exactly what was sent")
		f.tracker.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ReplayReturnsCachedBytes", func(t *testing.T) {
		f := newWebhookFixture()
		raw := chargePayload(t, EventChargeSuccess, userID, "txn_abc")
		cached := []byte(`{"ok":true,"reference":"txn_abc","status":"success"}`)

		f.tracker.On("BeginOrGet", ctx, "hdr-key", idempotency.HashRequest(raw)).
			Return(idempotency.Decision{Outcome: idempotency.OutcomeReplay, ResponseCode: http.StatusOK, ResponseBody: cached}, nil).Once()

		headers := signed(raw)
		headers.IdempotencyKey = "hdr-key"
		result, err := f.service.HandleGatewayEvent(ctx, raw, headers)

		require.NoError(t, err)
		assert.True(t, result.Replayed)
		assert.Equal(t, cached, result.Body)
		f.processor.AssertNotCalled(t, "SettleTransaction", mock.Anything, mock.Anything)
	})

	t.Run("TamperedBodyCreatesNoKey", func(t *testing.T) {
		f := newWebhookFixture()
		raw := chargePayload(t, EventChargeSuccess, userID, "")
		headers := signed(raw)
		tampered := chargePayload(t, EventChargeSuccess, uuid.New(), "")

		_, err := f.service.HandleGatewayEvent(ctx, tampered, headers)

		assert.ErrorIs(t, err, gateway.ErrUnauthorizedSignature)
		f.tracker.AssertNotCalled(t, "BeginOrGet", mock.Anything, mock.Anything, mock.Anything)
		f.processor.AssertNotCalled(t, "SettleTransaction", mock.Anything, mock.Anything)
	})

	t.Run("FailureReleasesKey", func(t *testing.T) {
		f := newWebhookFixture()
		raw := chargePayload(t, EventChargeSuccess, userID, "")

		lockedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		f.tracker.On("BeginOrGet", ctx, mock.Anything, mock.Anything).
			Return(idempotency.Decision{Outcome: idempotency.OutcomeProceed, LockedAt: lockedAt}, nil).Once()
		f.processor.On("SettleTransaction", ctx, mock.Anything).Return(nil, errors.New("db down")).Once()
		f.tracker.On("Release", ctx, "evt_charge.success_302961", lockedAt).Return(nil).Once()

		_, err := f.service.HandleGatewayEvent(ctx, raw, signed(raw))

		assert.EqualError(t, err, "db down")
		f.tracker.AssertExpectations(t)
		f.tracker.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownAccountIsReleasedAndSurfaced", func(t *testing.T) {
		f := newWebhookFixture()
		raw := chargePayload(t, EventChargeSuccess, userID, "")

		f.tracker.On("BeginOrGet", ctx, mock.Anything, mock.Anything).
			Return(idempotency.Decision{Outcome: idempotency.OutcomeProceed}, nil).Once()
		f.processor.On("SettleTransaction", ctx, mock.Anything).Return(nil, account.ErrAccountNotFound{AccountID: userID}).Once()
		f.tracker.On("Release", ctx, mock.Anything, mock.Anything).Return(nil).Once()

		_, err := f.service.HandleGatewayEvent(ctx, raw, signed(raw))

		assert.ErrorIs(t, err, account.ErrAccountNotFound{})
	})

	t.Run("ChargeFailedSettlesAsFailed", func(t *testing.T) {
		f := newWebhookFixture()
		raw := chargePayload(t, EventChargeFailed, userID, "txn_pending")

		f.tracker.On("BeginOrGet", ctx, "evt_charge.failed_302961", mock.Anything).
			Return(idempotency.Decision{Outcome: idempotency.OutcomeProceed}, nil).Once()
		f.processor.On("SettleTransaction", ctx, mock.MatchedBy(func(req *shared.SettlementRequest) bool {
			return req.Reference == "txn_pending" && !req.Succeeded
		})).Return(&processing.Result{Transaction: &ledger.Transaction{Reference: "txn_pending", Status: shared.TransactionStatusFailed}}, nil).Once()
		f.tracker.On("Finalize", ctx, "evt_charge.failed_302961", http.StatusOK, mock.Anything).Return(nil).Once()

		result, err := f.service.HandleGatewayEvent(ctx, raw, signed(raw))

		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true,"reference":"txn_pending","status":"failed"}`, string(result.Body))
	})

	t.Run("OtherEventsAreIgnoredButFinalized", func(t *testing.T) {
		f := newWebhookFixture()
		raw := []byte(`{"event":"transfer.success","idempotencyKey":"payload-key","data":{"id":"trf_1"}}`)

		f.tracker.On("BeginOrGet", ctx, "payload-key", mock.Anything).
			Return(idempotency.Decision{Outcome: idempotency.OutcomeProceed}, nil).Once()
		f.tracker.On("Finalize", ctx, "payload-key", http.StatusOK, []byte(`{"ok":true,"ignored":"transfer.success"}`)).Return(nil).Once()

		result, err := f.service.HandleGatewayEvent(ctx, raw, signed(raw))

		require.NoError(t, err)
		assert.Equal(t, `{"ok":true,"ignored":"transfer.success"}`, string(result.Body))
		f.processor.AssertNotCalled(t, "SettleTransaction", mock.Anything, mock.Anything)
	})

	t.Run("InFlightDuplicate", func(t *testing.T) {
		f := newWebhookFixture()
		raw := chargePayload(t, EventChargeSuccess, userID, "")

		f.tracker.On("BeginOrGet", ctx, mock.Anything, mock.Anything).
			Return(idempotency.Decision{}, idempotency.ErrRequestInProgress).Once()

		_, err := f.service.HandleGatewayEvent(ctx, raw, signed(raw))

		assert.ErrorIs(t, err, idempotency.ErrRequestInProgress)
		f.tracker.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		f := newWebhookFixture()
		raw := []byte(`{"event":`)

		_, err := f.service.HandleGatewayEvent(ctx, raw, signed(raw))

		assert.ErrorIs(t, err, ErrInvalidWebhookPayload)
	})

	t.Run("NoIdentifiersToDeriveKey", func(t *testing.T) {
		f := newWebhookFixture()
		raw := []byte(`{"event":"charge.success","data":{"amount":100}}`)

		_, err := f.service.HandleGatewayEvent(ctx, raw, signed(raw))

		assert.ErrorIs(t, err, ErrInvalidWebhookPayload)
		f.tracker.AssertNotCalled(t, "BeginOrGet", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGatewayData_PaymentID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `302961`, want: "302961"},
		{raw: `"pay_7"`, want: "pay_7"},
		{raw: `null`, want: ""},
		{raw: ``, want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gatewayData{ID: json.RawMessage(tt.raw)}.paymentID(), tt.raw)
	}
}
