// Package credentials stores per-user provider API keys. Gated tiers require
// a caller-owned key; the dispatcher reads it from here at submit time.
package credentials

import (
	"context"
	"errors"
	"strings"

	"clipforge/internal/infra"
	"clipforge/internal/sqlinline"
)

const (
	ProviderKling = "kling"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// KlingAPIKey returns the user's stored key, or an empty string when none is
// on file.
func (s *Store) KlingAPIKey(ctx context.Context, userID string) (string, error) {
	return s.Token(ctx, ProviderKling, userID)
}

func (s *Store) Token(ctx context.Context, provider, userID string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider, userID)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetKlingAPIKey(ctx context.Context, userID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("kling api key is required")
	}
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, ProviderKling, userID, key)
	return err
}

func (s *Store) DeleteKlingAPIKey(ctx context.Context, userID string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, ProviderKling, userID)
	return err
}
