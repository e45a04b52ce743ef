package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Scopes partition the key space.
const (
	ScopeApp  = "app"
	ScopeLive = "live"
)

// KV is a string key/value store backed by the kv_state table.
type KV struct {
	db    *sql.DB
	scope string
}

// New returns a KV bound to scope.
func New(db *sql.DB, scope string) *KV {
	return &KV{db: db, scope: scope}
}

// Get returns the value for key. A missing key is reported with ok=false
// and a nil error.
func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE scope = ? AND key = ?`, s.scope, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s/%s: %w", s.scope, key, err)
	}
	return v, true, nil
}

// Set upserts key.
func (s *KV) Set(ctx context.Context, key string, value string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (scope, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.scope, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", s.scope, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_state WHERE scope = ? AND key = ?`, s.scope, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", s.scope, key, err)
	}
	return nil
}

// Keys lists keys starting with prefix in lexical order.
func (s *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv_state
		WHERE scope = ? AND substr(key, 1, ?) = ?
		ORDER BY key ASC
	`, s.scope, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", s.scope, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating keys: %w", err)
	}
	return out, nil
}
