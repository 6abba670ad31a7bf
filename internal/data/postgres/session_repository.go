package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/session"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
)

// SessionRepository stores refresh token records
type SessionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewSessionRepository(logger *slog.Logger, db *persistence.PostgresDB) session.Repository {
	return &SessionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *SessionRepository) WithTx(tx pgx.Tx) session.Repository {
	return &SessionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *SessionRepository) Create(ctx context.Context, token *session.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query, token.ID, token.AccountID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create refresh token", "account_id", token.AccountID.String(), "error", err)
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

// GetByHash returns ErrInvalidRefreshToken when no record matches
func (r *SessionRepository) GetByHash(ctx context.Context, tokenHash string) (*session.RefreshToken, error) {
	query := `
		SELECT id, account_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var token session.RefreshToken
	err := r.querier.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrInvalidRefreshToken
		}
		r.logger.Error("Failed to get refresh token", "error", err)
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return &token, nil
}

// Revoke is a no-op for tokens that are unknown or already revoked
func (r *SessionRepository) Revoke(ctx context.Context, tokenHash string, at time.Time) error {
	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE token_hash = $2 AND revoked_at IS NULL`

	if _, err := r.querier.Exec(ctx, query, at, tokenHash); err != nil {
		r.logger.Error("Failed to revoke refresh token", "error", err)
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}

func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE account_id = $2 AND revoked_at IS NULL`

	if _, err := r.querier.Exec(ctx, query, at, accountID); err != nil {
		r.logger.Error("Failed to revoke refresh tokens", "account_id", accountID.String(), "error", err)
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	return nil
}
