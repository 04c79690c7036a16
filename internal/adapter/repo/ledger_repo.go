package repo

import (
	"context"
	"fmt"

	"clipforge/internal/domain"
	"clipforge/internal/infra"
	"clipforge/internal/sqlinline"
)

// LedgerPG implements domain.Ledger using PostgreSQL. The reserve path is a
// single conditional update, so concurrent reservations against one balance
// serialize on the row and can never overdraw it.
type LedgerPG struct {
	db infra.SQLExecutor
}

// NewLedger constructs the ledger.
func NewLedger(db infra.SQLExecutor) *LedgerPG {
	return &LedgerPG{db: db}
}

// Balance returns the current token balance. Users without a balance row
// simply have zero tokens.
func (l *LedgerPG) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, sqlinline.QSelectBalance, userID).Scan(&balance)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

// Reserve debits tokens and returns the remaining balance. A balance that
// cannot cover the amount, including a missing row, leaves the ledger
// untouched and reports ErrInsufficientCredits.
func (l *LedgerPG) Reserve(ctx context.Context, userID string, tokens int64) (int64, error) {
	if tokens < 0 {
		return 0, fmt.Errorf("reserve: negative amount %d", tokens)
	}
	var remaining int64
	err := l.db.QueryRow(ctx, sqlinline.QReserveTokens, userID, tokens).Scan(&remaining)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrInsufficientCredits
		}
		return 0, fmt.Errorf("reserve tokens: %w", err)
	}
	return remaining, nil
}

// Refund returns tokens from a reservation the provider never charged.
func (l *LedgerPG) Refund(ctx context.Context, userID string, tokens int64) error {
	if tokens < 0 {
		return fmt.Errorf("refund: negative amount %d", tokens)
	}
	tag, err := l.db.Exec(ctx, sqlinline.QRefundTokens, userID, tokens)
	if err != nil {
		return fmt.Errorf("refund tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Grant adds tokens to a balance, creating the row on first grant, and
// returns the new balance. Used by the grantcredits tool.
func (l *LedgerPG) Grant(ctx context.Context, userID string, tokens int64) (int64, error) {
	if tokens < 0 {
		return 0, fmt.Errorf("grant: negative amount %d", tokens)
	}
	var balance int64
	if err := l.db.QueryRow(ctx, sqlinline.QGrantTokens, userID, tokens).Scan(&balance); err != nil {
		return 0, fmt.Errorf("grant tokens: %w", err)
	}
	return balance, nil
}

var _ domain.Ledger = (*LedgerPG)(nil)
