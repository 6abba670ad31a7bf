package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProcessingService mocks the ProcessingService interface
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ApplyTransaction(ctx context.Context, request *shared.TransactionRequest, hooks ...TxHook) (*Result, error) {
	args := m.Called(ctx, request, len(hooks))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

func (m *MockProcessingService) InitiatePending(ctx context.Context, request *shared.TransactionRequest) (*Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

func (m *MockProcessingService) SettleTransaction(ctx context.Context, request *shared.SettlementRequest) (*Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

func (m *MockProcessingService) FindReplay(ctx context.Context, accountID uuid.UUID, reference string) (*Result, error) {
	args := m.Called(ctx, accountID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

func TestWorkerPoolProcessingService_ApplyTransaction(t *testing.T) {
	logger := slog.Default()
	request := &shared.TransactionRequest{
		AccountID:     uuid.New(),
		Kind:          shared.TransactionKindDeposit,
		Amount:        100,
		Reference:     "ref-A",
		CorrelationID: "corr1",
	}
	applied := &Result{Transaction: &ledger.Transaction{Reference: "ref-A"}}

	tests := []struct {
		name          string
		setupMocks    func(m *MockProcessingService)
		expectedError error
	}{
		{
			name: "successful processing",
			setupMocks: func(m *MockProcessingService) {
				m.On("ApplyTransaction", mock.Anything, mock.MatchedBy(func(r *shared.TransactionRequest) bool {
					return r.Reference == "ref-A" && r != request
				}), 1).Return(applied, nil).Once()
			},
		},
		{
			name: "processing error",
			setupMocks: func(m *MockProcessingService) {
				m.On("ApplyTransaction", mock.Anything, mock.Anything, 1).Return(nil, errors.New("processing error")).Once()
			},
			expectedError: errors.New("processing error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBaseService := &MockProcessingService{}
			workerPoolService, err := NewWorkerPoolProcessingService(mockBaseService, WorkerPoolConfig{Size: 2}, logger)
			require.NoError(t, err)
			defer workerPoolService.Shutdown()

			tt.setupMocks(mockBaseService)

			noop := func(context.Context, *TxContext) error { return nil }
			result, err := workerPoolService.ApplyTransaction(context.Background(), request, noop)

			if tt.expectedError != nil {
				assert.EqualError(t, err, tt.expectedError.Error())
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Same(t, applied, result)
			}
			mockBaseService.AssertExpectations(t)
		})
	}
}

func TestWorkerPoolProcessingService_Settlement(t *testing.T) {
	mockBaseService := &MockProcessingService{}
	workerPoolService, err := NewWorkerPoolProcessingService(mockBaseService, WorkerPoolConfig{Size: 1}, slog.Default())
	require.NoError(t, err)
	defer workerPoolService.Shutdown()

	pending := &Result{Transaction: &ledger.Transaction{Reference: "txn_1", Status: shared.TransactionStatusPending}}
	settled := &Result{Transaction: &ledger.Transaction{Reference: "txn_1", Status: shared.TransactionStatusSuccess}}
	mockBaseService.On("InitiatePending", mock.Anything, mock.Anything).Return(pending, nil).Once()
	mockBaseService.On("SettleTransaction", mock.Anything, mock.Anything).Return(settled, nil).Once()

	got, err := workerPoolService.InitiatePending(context.Background(), &shared.TransactionRequest{Amount: 100})
	require.NoError(t, err)
	assert.Same(t, pending, got)

	got, err = workerPoolService.SettleTransaction(context.Background(), &shared.SettlementRequest{Reference: "txn_1", Amount: 100, Succeeded: true})
	require.NoError(t, err)
	assert.Same(t, settled, got)
	mockBaseService.AssertExpectations(t)
}

func TestWorkerPoolProcessingService_Concurrency(t *testing.T) {
	mockBaseService := &MockProcessingService{}
	workerPoolService, err := NewWorkerPoolProcessingService(mockBaseService, WorkerPoolConfig{Size: 5}, slog.Default())
	require.NoError(t, err)
	defer workerPoolService.Shutdown()

	var inFlight, peak int32
	var counter int32
	mockBaseService.On("ApplyTransaction", mock.Anything, mock.Anything, 0).Run(func(args mock.Arguments) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if current <= old || atomic.CompareAndSwapInt32(&peak, old, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&counter, 1)
	}).Return(&Result{}, nil)

	numRequests := 20
	var wg sync.WaitGroup
	wg.Add(numRequests)
	for i := 0; i < numRequests; i++ {
		go func(i int) {
			defer wg.Done()
			request := &shared.TransactionRequest{
				AccountID: uuid.New(),
				Kind:      shared.TransactionKindDeposit,
				Amount:    100,
				Reference: fmt.Sprintf("ref-%d", i),
			}
			_, err := workerPoolService.ApplyTransaction(context.Background(), request)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(numRequests), atomic.LoadInt32(&counter))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(5))
	assert.Equal(t, 5, workerPoolService.Capacity())
}

func TestWorkerPoolProcessingService_PanicIsReturned(t *testing.T) {
	mockBaseService := &MockProcessingService{}
	workerPoolService, err := NewWorkerPoolProcessingService(mockBaseService, WorkerPoolConfig{Size: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer workerPoolService.Shutdown()

	mockBaseService.On("ApplyTransaction", mock.Anything, mock.Anything, 0).Run(func(mock.Arguments) {
		panic("hook exploded")
	}).Once()
	applied := &Result{Transaction: &ledger.Transaction{Reference: "ref-2"}}
	mockBaseService.On("ApplyTransaction", mock.Anything, mock.Anything, 0).Return(applied, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := workerPoolService.ApplyTransaction(context.Background(), &shared.TransactionRequest{Reference: "ref-1"})
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hook exploded")
	case <-time.After(2 * time.Second):
		t.Fatal("caller still waiting after the worker panicked")
	}

	// the single worker is usable again
	result, err := workerPoolService.ApplyTransaction(context.Background(), &shared.TransactionRequest{Reference: "ref-2"})
	require.NoError(t, err)
	assert.Same(t, applied, result)
}

func TestWorkerPoolProcessingService_FindReplay(t *testing.T) {
	mockBaseService := &MockProcessingService{}
	workerPoolService, err := NewWorkerPoolProcessingService(mockBaseService, WorkerPoolConfig{Size: 1}, slog.Default())
	require.NoError(t, err)
	defer workerPoolService.Shutdown()

	accountID := uuid.New()
	replayed := &Result{Transaction: &ledger.Transaction{Reference: "ref-A"}, Replayed: true}
	mockBaseService.On("FindReplay", mock.Anything, accountID, "ref-A").Return(replayed, nil).Once()

	got, err := workerPoolService.FindReplay(context.Background(), accountID, "ref-A")

	require.NoError(t, err)
	assert.Same(t, replayed, got)
	mockBaseService.AssertExpectations(t)
}
