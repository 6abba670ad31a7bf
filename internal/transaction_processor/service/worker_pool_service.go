package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/savings-wallet-ledger/internal/domain/shared"
)

// WorkerPoolProcessingService bounds how many mutations hold a database
// connection at once. Callers still wait for their own result.
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

type outcome struct {
	result *Result
	err    error
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

func (s *WorkerPoolProcessingService) ApplyTransaction(ctx context.Context, request *shared.TransactionRequest, hooks ...TxHook) (*Result, error) {
	requestCopy := *request
	return s.submit(request.CorrelationID, request.Reference, func() (*Result, error) {
		return s.baseService.ApplyTransaction(ctx, &requestCopy, hooks...)
	})
}

func (s *WorkerPoolProcessingService) InitiatePending(ctx context.Context, request *shared.TransactionRequest) (*Result, error) {
	requestCopy := *request
	return s.submit(request.CorrelationID, request.Reference, func() (*Result, error) {
		return s.baseService.InitiatePending(ctx, &requestCopy)
	})
}

func (s *WorkerPoolProcessingService) SettleTransaction(ctx context.Context, request *shared.SettlementRequest) (*Result, error) {
	requestCopy := *request
	return s.submit(request.CorrelationID, request.Reference, func() (*Result, error) {
		return s.baseService.SettleTransaction(ctx, &requestCopy)
	})
}

// FindReplay only reads, so it skips the pool
func (s *WorkerPoolProcessingService) FindReplay(ctx context.Context, accountID uuid.UUID, reference string) (*Result, error) {
	return s.baseService.FindReplay(ctx, accountID, reference)
}

// submit runs fn on a pooled worker and waits for it. The mutation itself is
// detached from ctx, so the wait is not cancellable either.
func (s *WorkerPoolProcessingService) submit(correlationID, reference string, fn func() (*Result, error)) (*Result, error) {
	logger := s.logger
	if correlationID != "" {
		logger = s.logger.With("correlation_id", correlationID)
	}

	resultChan := make(chan outcome, 1)
	err := s.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Transaction panicked in worker",
					"reference", reference,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				resultChan <- outcome{err: fmt.Errorf("mutation panicked: %v", r)}
			}
		}()
		result, err := fn()
		resultChan <- outcome{result: result, err: err}
	})
	if err != nil {
		logger.Error("Failed to submit transaction to worker pool",
			"reference", reference,
			"error", err,
		)
		return nil, err
	}

	out := <-resultChan
	return out.result, out.err
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
