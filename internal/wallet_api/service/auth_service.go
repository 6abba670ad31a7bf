package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/session"
)

// AuthServiceImpl implements the AuthService interface
type AuthServiceImpl struct {
	accountRepo     account.Repository
	sessionRepo     session.Repository
	tokens          TokenIssuer
	passwords       PasswordHasher
	currency        string
	refreshTokenTTL time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewAuthService creates a new auth service. Accounts are opened in currency.
func NewAuthService(
	accountRepo account.Repository,
	sessionRepo session.Repository,
	tokens TokenIssuer,
	passwords PasswordHasher,
	currency string,
	refreshTokenTTL time.Duration,
	logger *slog.Logger,
) AuthService {
	return &AuthServiceImpl{
		accountRepo:     accountRepo,
		sessionRepo:     sessionRepo,
		tokens:          tokens,
		passwords:       passwords,
		currency:        currency,
		refreshTokenTTL: refreshTokenTTL,
		logger:          logger,
		now:             time.Now,
	}
}

// Register creates an account after checking the email is not taken
func (s *AuthServiceImpl) Register(ctx context.Context, email, fullName, password string) (*account.Account, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	acc, err := account.NewAccount(email, fullName, hash, s.currency)
	if err != nil {
		return nil, err
	}

	existing, err := s.accountRepo.GetByEmail(ctx, acc.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, account.ErrDuplicateEmail{Email: acc.Email}
	}

	// the unique index still decides a concurrent registration
	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.Info("Account registered", "account_id", acc.ID.String())
	return acc, nil
}

// Login verifies the password and stores a new refresh token
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*Session, error) {
	acc, err := s.accountRepo.GetByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if acc == nil || !acc.Active || !s.passwords.Compare(acc.PasswordHash, password) {
		return nil, session.ErrInvalidCredentials
	}

	raw, token, err := session.NewRefreshToken(acc.ID, s.refreshTokenTTL, s.now())
	if err != nil {
		return nil, err
	}

	accessToken, accessExpiresAt, err := s.tokens.Issue(acc.ID)
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.Create(ctx, token); err != nil {
		return nil, err
	}

	return &Session{
		AccountID:        acc.ID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     raw,
		RefreshExpiresAt: token.ExpiresAt,
	}, nil
}

// Refresh issues a new access token. The refresh token itself is not rotated.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, session.ErrInvalidRefreshToken
	}

	token, err := s.sessionRepo.GetByHash(ctx, session.HashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if !token.Usable(s.now()) {
		return nil, session.ErrInvalidRefreshToken
	}

	acc, err := s.accountRepo.GetByID(ctx, token.AccountID)
	if err != nil {
		return nil, err
	}
	if !acc.Active {
		return nil, session.ErrInvalidRefreshToken
	}

	accessToken, accessExpiresAt, err := s.tokens.Issue(acc.ID)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccountID:        acc.ID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: token.ExpiresAt,
	}, nil
}

// Logout is a no-op for unknown or already revoked tokens
func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessionRepo.Revoke(ctx, session.HashToken(refreshToken), s.now())
}
