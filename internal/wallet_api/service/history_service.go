package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
)

// HistoryServiceImpl serves statements from the projection. Entries appear
// there shortly after commit; GetTransaction is the authoritative read.
type HistoryServiceImpl struct {
	statements ledger.StatementRepository
}

// NewHistoryService creates a new history service
func NewHistoryService(statements ledger.StatementRepository) HistoryService {
	return &HistoryServiceImpl{statements: statements}
}

// ListTransactions returns the page and the total number of projected entries
func (s *HistoryServiceImpl) ListTransactions(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Transaction, int64, error) {
	if page < 1 || perPage < 1 {
		return nil, 0, errors.New("page and per_page must be positive")
	}

	offset := (page - 1) * perPage
	transactions, err := s.statements.GetByAccountID(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.statements.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}
