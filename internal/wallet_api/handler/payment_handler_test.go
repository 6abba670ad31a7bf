package handler

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/gateway"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
	"github.com/savings-wallet-ledger/internal/wallet_api/middleware"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testProviderHeader = "x-paystack-signature"

func TestPaymentHandler_Initialize(t *testing.T) {
	accountID := uuid.New()
	transactions := new(MockTransactionService)
	router := testRouter(accountID)
	router.POST("/payments/initialize", NewPaymentHandler(discardLogger(), transactions, nil, testProviderHeader).Initialize)

	transactions.On("InitializePayment", mock.Anything, mock.MatchedBy(func(req *shared.TransactionRequest) bool {
		return req.AccountID == accountID && req.Kind == shared.TransactionKindDeposit && req.Amount == 500000
	})).Return(&processing.Result{Transaction: &ledger.Transaction{
		Reference: "txn_0b5e",
		Kind:      shared.TransactionKindDeposit,
		Amount:    500000,
		Status:    shared.TransactionStatusPending,
	}}, nil).Once()

	rr := doJSON(router, http.MethodPost, "/payments/initialize", `{"amount":"5000"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	var body TransactionResult
	envelope(t, rr, &body)
	assert.Equal(t, "txn_0b5e", body.Transaction.Reference)
	assert.Equal(t, "pending", body.Transaction.Status)
}

func TestPaymentHandler_Webhook(t *testing.T) {
	raw := `{"event":"charge.success","data":{"id":302961,"amount":5000}}`

	newRequest := func() *http.Request {
		req, _ := http.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(testProviderHeader, "provider-sig")
		req.Header.Set(gateway.GatewaySignatureHeader, "gateway-sig")
		req.Header.Set(IdempotencyKeyHeader, "delivery-1")
		req.Header.Set(middleware.CorrelationIDHeader, "corr-9")
		return req
	}

	t.Run("PassesRawBytesAndHeaders", func(t *testing.T) {
		webhooks := new(MockWebhookService)
		router := testRouter(uuid.Nil)
		router.POST("/payments/webhook", NewPaymentHandler(discardLogger(), nil, webhooks, testProviderHeader).Webhook)

		body := []byte(`{"ok":true,"reference":"gw_302961","status":"success"}`)
		webhooks.On("HandleGatewayEvent", mock.Anything, []byte(raw), service.WebhookHeaders{
			Signatures:     gateway.SignatureHeaders{Provider: "provider-sig", Gateway: "gateway-sig"},
			IdempotencyKey: "delivery-1",
			CorrelationID:  "corr-9",
		}).Return(&service.WebhookResult{StatusCode: http.StatusOK, Body: body}, nil).Once()

		rr := serve(router, newRequest())

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, body, rr.Body.Bytes(), "body is written verbatim")
		assert.NotContains(t, rr.Body.String(), "corr-9")
		assert.Empty(t, rr.Header().Get(IdempotentReplayedHeader))
	})

	t.Run("ReplayIsByteIdentical", func(t *testing.T) {
		webhooks := new(MockWebhookService)
		router := testRouter(uuid.Nil)
		router.POST("/payments/webhook", NewPaymentHandler(discardLogger(), nil, webhooks, testProviderHeader).Webhook)

		body := []byte(`{"ok":true,"reference":"gw_302961","status":"success"}`)
		webhooks.On("HandleGatewayEvent", mock.Anything, mock.Anything, mock.Anything).
			Return(&service.WebhookResult{StatusCode: http.StatusOK, Body: body}, nil).Once()
		webhooks.On("HandleGatewayEvent", mock.Anything, mock.Anything, mock.Anything).
			Return(&service.WebhookResult{StatusCode: http.StatusOK, Body: body, Replayed: true}, nil).Once()

		first := serve(router, newRequest())
		second := serve(router, newRequest())

		assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
		assert.Equal(t, "true", second.Header().Get(IdempotentReplayedHeader))
	})

	t.Run("ErrorMapping", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
			code   string
		}{
			{gateway.ErrUnauthorizedSignature, http.StatusUnauthorized, "UNAUTHORIZED_SIGNATURE"},
			{idempotency.ErrRequestInProgress, http.StatusConflict, "REQUEST_IN_PROGRESS"},
			{idempotency.ErrKeyReused, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED"},
			{service.ErrInvalidWebhookPayload, http.StatusBadRequest, "INVALID_PAYLOAD"},
			{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		}
		for _, tt := range tests {
			webhooks := new(MockWebhookService)
			router := testRouter(uuid.Nil)
			router.POST("/payments/webhook", NewPaymentHandler(discardLogger(), nil, webhooks, testProviderHeader).Webhook)
			webhooks.On("HandleGatewayEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			rr := serve(router, newRequest())

			assert.Equal(t, tt.status, rr.Code, tt.code)
			assert.Equal(t, tt.code, envelope(t, rr, nil).Error.Code)
		}
	})

	t.Run("OversizedBody", func(t *testing.T) {
		webhooks := new(MockWebhookService)
		router := testRouter(uuid.Nil)
		router.POST("/payments/webhook", NewPaymentHandler(discardLogger(), nil, webhooks, testProviderHeader).Webhook)

		req, _ := http.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(make([]byte, maxWebhookBodyBytes+1)))
		rr := serve(router, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		webhooks.AssertNotCalled(t, "HandleGatewayEvent", mock.Anything, mock.Anything, mock.Anything)
	})
}
