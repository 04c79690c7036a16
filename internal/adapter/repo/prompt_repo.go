// Package repo contains the PostgreSQL implementations of the domain
// persistence interfaces. All statements live in internal/sqlinline and run
// through the marker-enforcing SQL runner.
package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"clipforge/internal/domain"
	"clipforge/internal/infra"
	"clipforge/internal/sqlinline"
)

// PromptRepositoryPG implements domain.PromptRepository using PostgreSQL.
type PromptRepositoryPG struct {
	db infra.SQLExecutor
}

// NewPromptRepository constructs the repository.
func NewPromptRepository(db infra.SQLExecutor) *PromptRepositoryPG {
	return &PromptRepositoryPG{db: db}
}

// Create inserts the record and fills in its per-user ordinal.
func (r *PromptRepositoryPG) Create(ctx context.Context, rec *domain.PromptRecord) error {
	metrics, err := marshalMetrics(rec.Metrics)
	if err != nil {
		return err
	}
	row := r.db.QueryRow(ctx, sqlinline.QInsertPrompt,
		rec.ID,
		rec.UserID,
		rec.Prompt,
		string(rec.Status),
		rec.Retries,
		rec.Tier,
		rec.Model,
		string(rec.Failure),
		rec.RequestJSON,
		rec.ClipID,
		metrics,
	)
	if err := row.Scan(&rec.Ordinal); err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	return nil
}

// Update persists the mutable columns of a record after a state transition.
func (r *PromptRepositoryPG) Update(ctx context.Context, rec *domain.PromptRecord) error {
	metrics, err := marshalMetrics(rec.Metrics)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, sqlinline.QUpdatePrompt,
		rec.ID,
		string(rec.Status),
		rec.Retries,
		rec.Model,
		string(rec.Failure),
		rec.ClipID,
		metrics,
	)
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PromptRepositoryPG) GetByID(ctx context.Context, id string) (*domain.PromptRecord, error) {
	row := r.db.QueryRow(ctx, sqlinline.QSelectPromptByID, id)
	rec, err := scanPrompt(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select prompt: %w", err)
	}
	return rec, nil
}

func (r *PromptRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.PromptRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, sqlinline.QListPromptsByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var out []domain.PromptRecord
	for rows.Next() {
		rec, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ClaimRunnable leases the oldest runnable record. It returns
// domain.ErrNotFound when nothing is runnable; stale leases become claimable
// again so a crashed worker cannot strand a record forever.
func (r *PromptRepositoryPG) ClaimRunnable(ctx context.Context) (*domain.PromptRecord, error) {
	row := r.db.QueryRow(ctx, sqlinline.QClaimRunnablePrompt)
	rec, err := scanPrompt(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("claim prompt: %w", err)
	}
	return rec, nil
}

func (r *PromptRepositoryPG) RequestRetry(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, sqlinline.QRequestPromptRetry, id)
	if err != nil {
		return fmt.Errorf("request retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the record does not exist or it is not in a failed state.
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrompt(s scanner) (*domain.PromptRecord, error) {
	var (
		rec     domain.PromptRecord
		status  string
		failure string
		metrics []byte
	)
	if err := s.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Ordinal,
		&rec.Prompt,
		&status,
		&rec.Retries,
		&rec.Tier,
		&rec.Model,
		&failure,
		&rec.RequestJSON,
		&rec.ClipID,
		&metrics,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = domain.PromptStatus(status)
	rec.Failure = domain.FailureKind(failure)
	if len(metrics) > 0 {
		var m domain.GenerationMetrics
		if err := json.Unmarshal(metrics, &m); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		rec.Metrics = &m
	}
	return &rec, nil
}

func marshalMetrics(m *domain.GenerationMetrics) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	return out, nil
}

var _ domain.PromptRepository = (*PromptRepositoryPG)(nil)
