package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/loan"
	"github.com/savings-wallet-ledger/internal/domain/savings"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
	"github.com/savings-wallet-ledger/internal/wallet_api/middleware"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRouter mounts routes behind a stub that authenticates as accountID.
// uuid.Nil leaves the request unauthenticated.
func testRouter(accountID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(func(c *gin.Context) {
		if accountID != uuid.Nil {
			c.Set(middleware.AccountIDKey, accountID)
		}
		c.Next()
	})
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req, _ := http.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return serve(router, req)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// envelope decodes the response envelope with Data into out
func envelope(t *testing.T, rr *httptest.ResponseRecorder, out any) Response {
	t.Helper()
	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw), rr.Body.String())
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return raw.Response
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, email, fullName, password string) (*account.Account, error) {
	args := m.Called(ctx, email, fullName, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*service.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountService) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) ListTransactions(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Transaction, int64, error) {
	args := m.Called(ctx, accountID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*ledger.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) CreateTransaction(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Result), args.Error(1)
}

func (m *MockTransactionService) InitializePayment(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Result), args.Error(1)
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, accountID uuid.UUID, reference string) (*ledger.Transaction, error) {
	args := m.Called(ctx, accountID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) HandleGatewayEvent(ctx context.Context, rawPayload []byte, headers service.WebhookHeaders) (*service.WebhookResult, error) {
	args := m.Called(ctx, rawPayload, headers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.WebhookResult), args.Error(1)
}

type MockSavingsService struct {
	mock.Mock
}

func (m *MockSavingsService) CreatePlan(ctx context.Context, input service.CreatePlanInput) (*savings.Plan, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*savings.Plan), args.Error(1)
}

func (m *MockSavingsService) GetActivePlan(ctx context.Context, accountID uuid.UUID) (*savings.Plan, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*savings.Plan), args.Error(1)
}

func (m *MockSavingsService) Contribute(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Result), args.Error(1)
}

func (m *MockSavingsService) WithdrawSavings(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processing.Result), args.Error(1)
}

func (m *MockSavingsService) WithdrawalGuard() processing.TxHook {
	return nil
}

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) RequestLoan(ctx context.Context, request *shared.TransactionRequest) (*service.LoanResult, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoanResult), args.Error(1)
}

func (m *MockLoanService) GetActiveLoan(ctx context.Context, accountID uuid.UUID) (*loan.Loan, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Loan), args.Error(1)
}

func (m *MockLoanService) RepayLoan(ctx context.Context, request *shared.TransactionRequest) (*service.LoanResult, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoanResult), args.Error(1)
}
