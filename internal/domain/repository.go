package domain

import "context"

// PromptRepository persists prompt records. The core never deletes records;
// claim semantics exist so a single worker attempt owns a runnable record.
type PromptRepository interface {
	Create(ctx context.Context, rec *PromptRecord) error
	Update(ctx context.Context, rec *PromptRecord) error
	GetByID(ctx context.Context, id string) (*PromptRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]PromptRecord, error)
	// ClaimRunnable atomically claims one record that is pending, or failed
	// with a retry requested, so concurrent workers never share an attempt.
	ClaimRunnable(ctx context.Context) (*PromptRecord, error)
	// RequestRetry flags a failed record for another attempt.
	RequestRetry(ctx context.Context, id string) error
}

// Ledger is the credit balance collaborator. Reserve must be a single atomic
// check-then-debit so two concurrent submissions cannot both pass an
// affordability check against the same balance.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// Reserve debits tokens and returns the remaining balance, or
	// ErrInsufficientCredits without debiting anything.
	Reserve(ctx context.Context, userID string, tokens int64) (int64, error)
	// Refund returns tokens reserved for an attempt the provider never charged.
	Refund(ctx context.Context, userID string, tokens int64) error
}

// ClipStore is the clip-persistence sink for completed assets.
type ClipStore interface {
	Save(ctx context.Context, clip *Clip) error
	ListByPrompt(ctx context.Context, promptID string) ([]Clip, error)
}
