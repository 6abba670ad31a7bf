package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
)

// DefaultMutationTimeout bounds a mutation when no timeout is configured
const DefaultMutationTimeout = 10 * time.Second

type ProcessingServiceImpl struct {
	db             persistence.TxBeginner
	validator      TransactionValidator
	accountManager AccountManager
	ledgerRecorder LedgerRecorder
	outboxManager  OutboxManager
	metrics        *metrics.Recorder
	timeout        time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

func NewProcessingService(
	db persistence.TxBeginner,
	validator TransactionValidator,
	accountManager AccountManager,
	ledgerRecorder LedgerRecorder,
	outboxManager OutboxManager,
	recorder *metrics.Recorder,
	timeout time.Duration,
	logger *slog.Logger,
) ProcessingService {
	if timeout <= 0 {
		timeout = DefaultMutationTimeout
	}
	return &ProcessingServiceImpl{
		db:             db,
		validator:      validator,
		accountManager: accountManager,
		ledgerRecorder: ledgerRecorder,
		outboxManager:  outboxManager,
		metrics:        recorder,
		timeout:        timeout,
		logger:         logger,
		now:            time.Now,
	}
}

// writeFunc builds and stores a new ledger entry under the account lock.
// It only runs once the reference is known to be unused.
type writeFunc func(ctx context.Context, tx pgx.Tx, acc *account.Account) (*ledger.Transaction, error)

// ApplyTransaction validates the request, applies its balance effect and records
// exactly one ledger entry for the reference. A reference that is already recorded
// for the account is returned unchanged with Replayed set.
func (s *ProcessingServiceImpl) ApplyTransaction(ctx context.Context, request *shared.TransactionRequest, hooks ...TxHook) (*Result, error) {
	req, err := s.prepareClientRequest(request)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, req, hooks)
}

// InitiatePending records a pending deposit that a later gateway event settles.
// The balance is not touched.
func (s *ProcessingServiceImpl) InitiatePending(ctx context.Context, request *shared.TransactionRequest) (*Result, error) {
	req, err := s.prepareClientRequest(request)
	if err != nil {
		return nil, err
	}
	if req.Kind == "" {
		req.Kind = shared.TransactionKindDeposit
	}
	if req.Kind != shared.TransactionKindDeposit {
		return nil, shared.ErrInvalidTransactionKind
	}
	if err := s.validator.Validate(ctx, req); err != nil {
		s.metrics.LedgerMutation(string(req.Kind), metrics.OutcomeRejected)
		return nil, err
	}

	return s.write(ctx, req.AccountID, req.Reference, req.Kind, s.requestLogger(req.CorrelationID),
		func(ctx context.Context, tx pgx.Tx, acc *account.Account) (*ledger.Transaction, error) {
			transaction := ledger.NewTransaction(req, acc.Currency, shared.TransactionStatusPending)
			if err := transaction.AttachMetadata(req.Metadata); err != nil {
				return nil, err
			}
			if err := s.ledgerRecorder.Record(ctx, tx, transaction); err != nil {
				return nil, err
			}
			return transaction, nil
		})
}

// SettleTransaction applies a payment gateway outcome to a reference.
// Unknown references are recorded directly, pending ones move to a terminal
// status exactly once and terminal ones are replayed.
func (s *ProcessingServiceImpl) SettleTransaction(ctx context.Context, request *shared.SettlementRequest) (*Result, error) {
	logger := s.requestLogger(request.CorrelationID)

	if request.Reference == "" {
		return nil, shared.ErrEmptyReference
	}
	if len(request.Reference) > shared.MaxReferenceLength {
		return nil, shared.ErrReferenceTooLong
	}
	if request.Amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	existing, err := s.validator.CheckIdempotency(ctx, nil, request.AccountID, request.Reference)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if request.AccountID == uuid.Nil {
			return nil, account.ErrAccountNotFound{}
		}
		req := &shared.TransactionRequest{
			AccountID:     request.AccountID,
			Kind:          shared.TransactionKindDeposit,
			Amount:        request.Amount,
			Reference:     request.Reference,
			Metadata:      request.Metadata,
			CorrelationID: request.CorrelationID,
			Timestamp:     s.now(),
		}
		if request.Succeeded {
			return s.apply(ctx, req, nil)
		}
		return s.recordDeclined(ctx, req, request.Currency, logger)
	}

	if existing.Status.IsTerminal() {
		return s.replay(logger, existing), nil
	}

	var result *Result
	err = persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		acc, err := s.accountManager.LockAccount(ctx, tx, existing.AccountID)
		if err != nil {
			return err
		}

		pending, err := s.ledgerRecorder.LockPending(ctx, tx, request.Reference)
		if err != nil {
			return err
		}
		if pending.Status.IsTerminal() {
			result = &Result{Transaction: pending, Replayed: true}
			return nil
		}
		if request.Currency != "" && !strings.EqualFold(request.Currency, pending.Currency) {
			return shared.ErrInvalidCurrency
		}

		now := s.now()
		switch {
		case !request.Succeeded:
			pending.Fail(shared.FailureReasonGatewayDeclined, now)
		case request.Amount != pending.Amount:
			logger.Warn("Settlement amount does not match pending transaction",
				"reference", pending.Reference,
				"expected", pending.Amount,
				"received", request.Amount,
			)
			pending.Fail(shared.FailureReasonAmountMismatch, now)
		default:
			if err := acc.Deposit(pending.Amount); err != nil {
				return err
			}
			pending.Succeed(acc.Balance, now)
			if err := s.accountManager.SaveAccount(ctx, tx, acc); err != nil {
				return err
			}
		}

		if err := s.ledgerRecorder.Complete(ctx, tx, pending); err != nil {
			return err
		}
		if err := s.outboxManager.CreateOutboxEntry(ctx, tx, pending); err != nil {
			return err
		}
		result = &Result{Transaction: pending}
		return nil
	})
	if err != nil {
		var notPending ledger.ErrNotPending
		if errors.As(err, &notPending) {
			return s.lookupReplay(ctx, logger, existing.AccountID, request.Reference)
		}
		logger.Error("Failed to settle transaction", "reference", request.Reference, "error", err)
		s.metrics.LedgerMutation(string(existing.Kind), metrics.OutcomeFailed)
		return nil, err
	}

	s.observe(logger, result)
	return result, nil
}

func (s *ProcessingServiceImpl) apply(ctx context.Context, req *shared.TransactionRequest, hooks []TxHook) (*Result, error) {
	logger := s.requestLogger(req.CorrelationID)
	logger.Info("Processing transaction",
		"reference", req.Reference,
		"account_id", req.AccountID.String(),
		"kind", string(req.Kind),
	)

	if err := s.validator.Validate(ctx, req); err != nil {
		s.metrics.LedgerMutation(string(req.Kind), metrics.OutcomeRejected)
		return nil, err
	}

	return s.write(ctx, req.AccountID, req.Reference, req.Kind, logger,
		func(ctx context.Context, tx pgx.Tx, acc *account.Account) (*ledger.Transaction, error) {
			transaction := ledger.NewTransaction(req, acc.Currency, shared.TransactionStatusPending)
			if err := transaction.AttachMetadata(req.Metadata); err != nil {
				return nil, err
			}

			balanceBefore := acc.Balance
			if err := acc.Apply(req.Kind, req.Amount); err != nil {
				return nil, err
			}

			txc := &TxContext{Tx: tx, Account: acc, BalanceBefore: balanceBefore, Transaction: transaction}
			for _, hook := range hooks {
				if err := hook(ctx, txc); err != nil {
					return nil, err
				}
			}

			transaction.Succeed(acc.Balance, s.now())
			if err := s.ledgerRecorder.Record(ctx, tx, transaction); err != nil {
				return nil, err
			}
			if err := s.accountManager.SaveAccount(ctx, tx, acc); err != nil {
				return nil, err
			}
			return transaction, nil
		})
}

func (s *ProcessingServiceImpl) recordDeclined(ctx context.Context, req *shared.TransactionRequest, currency string, logger *slog.Logger) (*Result, error) {
	return s.write(ctx, req.AccountID, req.Reference, req.Kind, logger,
		func(ctx context.Context, tx pgx.Tx, acc *account.Account) (*ledger.Transaction, error) {
			if currency != "" && !strings.EqualFold(currency, acc.Currency) {
				return nil, shared.ErrInvalidCurrency
			}
			transaction := ledger.NewTransaction(req, acc.Currency, shared.TransactionStatusPending)
			if err := transaction.AttachMetadata(req.Metadata); err != nil {
				return nil, err
			}
			transaction.Fail(shared.FailureReasonGatewayDeclined, s.now())
			if err := s.ledgerRecorder.Record(ctx, tx, transaction); err != nil {
				return nil, err
			}
			return transaction, nil
		})
}

func (s *ProcessingServiceImpl) FindReplay(ctx context.Context, accountID uuid.UUID, reference string) (*Result, error) {
	if reference == "" || shared.ValidateClientReference(reference) != nil {
		return nil, nil
	}

	existing, err := s.validator.CheckIdempotency(ctx, nil, accountID, reference)
	if err != nil || existing == nil {
		return nil, err
	}
	return s.replay(s.requestLogger(""), existing), nil
}

// write is the shared skeleton of every new ledger entry: fast-path reference
// lookup, account lock, in-transaction lookup, body, outbox, commit.
func (s *ProcessingServiceImpl) write(
	ctx context.Context,
	accountID uuid.UUID,
	reference string,
	kind shared.TransactionKind,
	logger *slog.Logger,
	body writeFunc,
) (*Result, error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	existing, err := s.validator.CheckIdempotency(ctx, nil, accountID, reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.replay(logger, existing), nil
	}

	var result *Result
	err = persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		acc, err := s.accountManager.LockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}

		existing, err := s.validator.CheckIdempotency(ctx, tx, accountID, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &Result{Transaction: existing, Replayed: true}
			return nil
		}

		transaction, err := body(ctx, tx, acc)
		if err != nil {
			return err
		}
		if err := s.outboxManager.CreateOutboxEntry(ctx, tx, transaction); err != nil {
			return err
		}
		result = &Result{Transaction: transaction}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference{Reference: reference}) {
			logger.Info("Reference recorded concurrently, returning stored transaction", "reference", reference)
			return s.lookupReplay(ctx, logger, accountID, reference)
		}
		logger.Warn("Transaction not applied",
			"reference", reference,
			"account_id", accountID.String(),
			"error", err,
		)
		s.metrics.LedgerMutation(string(kind), metrics.OutcomeRejected)
		return nil, err
	}

	s.observe(logger, result)
	return result, nil
}

func (s *ProcessingServiceImpl) lookupReplay(ctx context.Context, logger *slog.Logger, accountID uuid.UUID, reference string) (*Result, error) {
	existing, err := s.validator.CheckIdempotency(ctx, nil, accountID, reference)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("transaction %s vanished after duplicate reference", reference)
	}
	return s.replay(logger, existing), nil
}

func (s *ProcessingServiceImpl) replay(logger *slog.Logger, existing *ledger.Transaction) *Result {
	result := &Result{Transaction: existing, Replayed: true}
	s.observe(logger, result)
	return result
}

func (s *ProcessingServiceImpl) observe(logger *slog.Logger, result *Result) {
	transaction := result.Transaction
	if result.Replayed {
		logger.Info("Transaction already recorded, replaying",
			"reference", transaction.Reference,
			"status", string(transaction.Status),
		)
		s.metrics.LedgerMutation(string(transaction.Kind), metrics.OutcomeReplayed)
		return
	}

	logger.Info("Transaction committed",
		"reference", transaction.Reference,
		"account_id", transaction.AccountID.String(),
		"status", string(transaction.Status),
	)
	s.metrics.LedgerMutation(string(transaction.Kind), metrics.OutcomeApplied)
}

// prepareClientRequest copies the request and mints a reference when the caller
// did not choose one
func (s *ProcessingServiceImpl) prepareClientRequest(request *shared.TransactionRequest) (*shared.TransactionRequest, error) {
	req := *request
	if req.Reference == "" {
		req.Reference = shared.NewReference()
	} else if err := shared.ValidateClientReference(req.Reference); err != nil {
		return nil, err
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now()
	}
	return &req, nil
}

// detach keeps a half-written mutation alive when the caller goes away
func (s *ProcessingServiceImpl) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *ProcessingServiceImpl) requestLogger(correlationID string) *slog.Logger {
	if correlationID == "" {
		return s.logger
	}
	return s.logger.With("correlation_id", correlationID)
}
