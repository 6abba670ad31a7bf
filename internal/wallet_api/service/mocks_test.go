package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/loan"
	"github.com/savings-wallet-ledger/internal/domain/savings"
	"github.com/savings-wallet-ledger/internal/domain/session"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/gateway"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ApplyTransaction(ctx context.Context, request *shared.TransactionRequest, hooks ...processing.TxHook) (*processing.Result, error) {
	args := m.Called(ctx, request, hooks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Result), args.Error(1)
}

func (m *MockProcessingService) InitiatePending(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Result), args.Error(1)
}

func (m *MockProcessingService) SettleTransaction(ctx context.Context, request *shared.SettlementRequest) (*processing.Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Result), args.Error(1)
}

func (m *MockProcessingService) FindReplay(ctx context.Context, accountID uuid.UUID, reference string) (*processing.Result, error) {
	args := m.Called(ctx, accountID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Result), args.Error(1)
}

// fakeProcessor applies the kind's balance effect to acc and runs the hooks
// the way the mutator does inside its transaction. A failing hook leaves acc untouched.
// Committed references are replayed without touching acc.
type fakeProcessor struct {
	MockProcessingService
	acc      *account.Account
	applied  []*shared.TransactionRequest
	recorded map[string]*ledger.Transaction
}

func (f *fakeProcessor) FindReplay(_ context.Context, _ uuid.UUID, reference string) (*processing.Result, error) {
	if existing, ok := f.recorded[reference]; ok {
		return &processing.Result{Transaction: existing, Replayed: true}, nil
	}
	return nil, nil
}

func (f *fakeProcessor) ApplyTransaction(ctx context.Context, request *shared.TransactionRequest, hooks ...processing.TxHook) (*processing.Result, error) {
	if replay, _ := f.FindReplay(ctx, request.AccountID, request.Reference); replay != nil {
		return replay, nil
	}

	working := *f.acc
	if err := working.Apply(request.Kind, request.Amount); err != nil {
		return nil, err
	}

	transaction := ledger.NewTransaction(request, working.Currency, shared.TransactionStatusPending)
	txc := &processing.TxContext{Account: &working, BalanceBefore: f.acc.Balance, Transaction: transaction}
	for _, hook := range hooks {
		if err := hook(ctx, txc); err != nil {
			return nil, err
		}
	}

	transaction.Succeed(working.Balance, time.Now())
	*f.acc = working
	f.applied = append(f.applied, request)
	if request.Reference != "" {
		if f.recorded == nil {
			f.recorded = make(map[string]*ledger.Transaction)
		}
		f.recorded[request.Reference] = transaction
	}
	return &processing.Result{Transaction: transaction}, nil
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return m
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, token *session.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByHash(ctx context.Context, tokenHash string) (*session.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.RefreshToken), args.Error(1)
}

func (m *MockSessionRepository) Revoke(ctx context.Context, tokenHash string, at time.Time) error {
	args := m.Called(ctx, tokenHash, at)
	return args.Error(0)
}

func (m *MockSessionRepository) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, accountID, at)
	return args.Error(0)
}

func (m *MockSessionRepository) WithTx(tx pgx.Tx) session.Repository {
	return m
}

type MockSavingsRepository struct {
	mock.Mock
}

func (m *MockSavingsRepository) Create(ctx context.Context, plan *savings.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockSavingsRepository) GetActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*savings.Plan, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*savings.Plan), args.Error(1)
}

func (m *MockSavingsRepository) LockActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*savings.Plan, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*savings.Plan), args.Error(1)
}

func (m *MockSavingsRepository) Update(ctx context.Context, plan *savings.Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockSavingsRepository) WithTx(tx pgx.Tx) savings.Repository {
	return m
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLoanRepository) GetActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*loan.Loan, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Loan), args.Error(1)
}

func (m *MockLoanRepository) LockActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*loan.Loan, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Loan), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, l *loan.Loan) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLoanRepository) WithTx(tx pgx.Tx) loan.Repository {
	return m
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, transaction *ledger.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*ledger.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) CompletePending(ctx context.Context, transaction *ledger.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockLedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return m
}

type MockStatementRepository struct {
	mock.Mock
}

func (m *MockStatementRepository) Upsert(ctx context.Context, transaction *ledger.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockStatementRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

func (m *MockStatementRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStatementRepository) GetByStatus(ctx context.Context, accountID uuid.UUID, status shared.TransactionStatus, limit int) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, accountID, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

type MockIdempotencyTracker struct {
	mock.Mock
}

func (m *MockIdempotencyTracker) BeginOrGet(ctx context.Context, key, requestHash string) (idempotency.Decision, error) {
	args := m.Called(ctx, key, requestHash)
	return args.Get(0).(idempotency.Decision), args.Error(1)
}

func (m *MockIdempotencyTracker) Finalize(ctx context.Context, key string, responseCode int, responseBody []byte) error {
	args := m.Called(ctx, key, responseCode, responseBody)
	return args.Error(0)
}

func (m *MockIdempotencyTracker) Release(ctx context.Context, key string, lockedAt time.Time) error {
	args := m.Called(ctx, key, lockedAt)
	return args.Error(0)
}

func (m *MockIdempotencyTracker) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(accountID uuid.UUID) (string, time.Time, error) {
	args := m.Called(accountID)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Compare(hash, password string) bool {
	args := m.Called(hash, password)
	return args.Bool(0)
}

type MockSignatureVerifier struct {
	mock.Mock
}

func (m *MockSignatureVerifier) Verify(raw []byte, headers gateway.SignatureHeaders) error {
	args := m.Called(raw, headers)
	return args.Error(0)
}
