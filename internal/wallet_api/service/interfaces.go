package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/loan"
	"github.com/savings-wallet-ledger/internal/domain/savings"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/gateway"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// AuthService defines registration and session operations
type AuthService interface {
	// Register opens an account with a zero balance.
	// Returns ErrDuplicateEmail if the email is taken
	Register(ctx context.Context, email, fullName, password string) (*account.Account, error)

	// Login checks the credentials and starts a session.
	// Returns ErrInvalidCredentials on any mismatch
	Login(ctx context.Context, email, password string) (*Session, error)

	// Refresh exchanges a usable refresh token for a new access token
	Refresh(ctx context.Context, refreshToken string) (*Session, error)

	// Logout revokes the refresh token server-side
	Logout(ctx context.Context, refreshToken string) error
}

// AccountService defines the interface for account operations
type AccountService interface {
	// GetAccount returns ErrAccountNotFound if the account doesn't exist
	GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)

	// Deactivate closes the account and revokes its sessions. Balances and ledger stay.
	Deactivate(ctx context.Context, accountID uuid.UUID) error
}

// TransactionService defines the interface for client-initiated ledger operations
type TransactionService interface {
	// CreateTransaction applies a balance change idempotently by reference
	CreateTransaction(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error)

	// InitializePayment records a pending deposit a gateway callback later settles
	InitializePayment(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error)

	// GetTransaction returns ErrTransactionNotFound for unknown references and
	// for references of other accounts
	GetTransaction(ctx context.Context, accountID uuid.UUID, reference string) (*ledger.Transaction, error)
}

// WebhookService processes payment gateway callbacks
type WebhookService interface {
	HandleGatewayEvent(ctx context.Context, rawPayload []byte, headers WebhookHeaders) (*WebhookResult, error)
}

// SavingsService defines the savings goal overlay
type SavingsService interface {
	CreatePlan(ctx context.Context, input CreatePlanInput) (*savings.Plan, error)
	GetActivePlan(ctx context.Context, accountID uuid.UUID) (*savings.Plan, error)
	Contribute(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error)
	WithdrawSavings(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error)

	// WithdrawalGuard keeps plain debits out of locked savings
	WithdrawalGuard() processing.TxHook
}

// LoanService defines the loan overlay
type LoanService interface {
	RequestLoan(ctx context.Context, request *shared.TransactionRequest) (*LoanResult, error)
	GetActiveLoan(ctx context.Context, accountID uuid.UUID) (*loan.Loan, error)
	RepayLoan(ctx context.Context, request *shared.TransactionRequest) (*LoanResult, error)
}

// HistoryService reads the projected statement
type HistoryService interface {
	// ListTransactions returns one page of entries, newest first, and the total count
	ListTransactions(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Transaction, int64, error)
}

// Session is the pair of credentials handed to a client
type Session struct {
	AccountID        uuid.UUID
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// WebhookHeaders carries the request headers a callback is judged by
type WebhookHeaders struct {
	Signatures     gateway.SignatureHeaders
	IdempotencyKey string
	CorrelationID  string
}

// WebhookResult is the response to send back to the gateway
type WebhookResult struct {
	StatusCode int
	Body       []byte
	Replayed   bool
}

// CreatePlanInput describes a new savings plan; amounts are in minor units
type CreatePlanInput struct {
	AccountID          uuid.UUID
	Name               string
	TargetAmount       int64
	ContributionAmount int64
	Frequency          savings.Frequency
	DurationDays       int
}

// LoanResult pairs the ledger entry with the loan it touched.
// Loan is nil when a replayed reference has no active loan left.
type LoanResult struct {
	*processing.Result
	Loan *loan.Loan
}

// TokenIssuer mints access tokens
type TokenIssuer interface {
	Issue(accountID uuid.UUID) (string, time.Time, error)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// SignatureVerifier authenticates raw callback bodies
type SignatureVerifier interface {
	Verify(raw []byte, headers gateway.SignatureHeaders) error
}
