package repo

import (
	"context"
	"fmt"

	"clipforge/internal/domain"
	"clipforge/internal/infra"
	"clipforge/internal/sqlinline"
)

// ClipStorePG implements domain.ClipStore using PostgreSQL.
type ClipStorePG struct {
	db infra.SQLExecutor
}

// NewClipStore constructs the store.
func NewClipStore(db infra.SQLExecutor) *ClipStorePG {
	return &ClipStorePG{db: db}
}

func (s *ClipStorePG) Save(ctx context.Context, clip *domain.Clip) error {
	_, err := s.db.Exec(ctx, sqlinline.QInsertClip,
		clip.ID,
		clip.PromptID,
		clip.URL,
		clip.StorageKey,
		clip.DurationSec,
		clip.Bytes,
	)
	if err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	return nil
}

func (s *ClipStorePG) ListByPrompt(ctx context.Context, promptID string) ([]domain.Clip, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListClipsByPrompt, promptID)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var out []domain.Clip
	for rows.Next() {
		var clip domain.Clip
		if err := rows.Scan(
			&clip.ID,
			&clip.PromptID,
			&clip.URL,
			&clip.StorageKey,
			&clip.DurationSec,
			&clip.Bytes,
			&clip.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		out = append(out, clip)
	}
	return out, rows.Err()
}

var _ domain.ClipStore = (*ClipStorePG)(nil)
