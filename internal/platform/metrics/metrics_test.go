package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := newRecorder("wallet", registry, registry)

	recorder.LedgerMutation("deposit", OutcomeApplied)
	recorder.LedgerMutation("deposit", OutcomeApplied)
	recorder.LedgerMutation("withdrawal", OutcomeRejected)
	recorder.WebhookEvent("charge.success", OutcomeReplayed)
	recorder.StatementProjection(OutcomeApplied)
	recorder.OutboxRelay(OutcomeFailed)
	recorder.ObserveHTTP("POST", "/api/v1/transactions", 201, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.ledgerMutations.WithLabelValues("deposit", OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.ledgerMutations.WithLabelValues("withdrawal", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.webhookEvents.WithLabelValues("charge.success", OutcomeReplayed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.httpRequestsTotal.WithLabelValues("POST", "/api/v1/transactions", "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(recorder.httpRequestDuration))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var recorder *Recorder

	assert.NotPanics(t, func() {
		recorder.LedgerMutation("deposit", OutcomeApplied)
		recorder.WebhookEvent("charge.failed", OutcomeFailed)
		recorder.StatementProjection(OutcomeApplied)
		recorder.OutboxRelay(OutcomeApplied)
		recorder.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	})
	assert.NotNil(t, recorder.Handler())
}

func TestRecorder_Handler(t *testing.T) {
	recorder := NewRecorder("wallet")
	recorder.LedgerMutation("save", OutcomeApplied)

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wallet_ledger_mutations_total{kind="save",outcome="applied"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
