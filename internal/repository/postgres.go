// Package repository provides PostgreSQL-backed persistence for the flat
// preference key space the resolver reads overrides from. A key can carry a
// boolean override, a string option, or both; absence of a row or of a
// column value reads as "no override".
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Preference is the repository-level representation of a preference row.
// BoolValue and StringValue are nil when the corresponding facet has never
// been written.
type Preference struct {
	Key         string    `json:"key"`
	BoolValue   *bool     `json:"bool_value,omitempty"`
	StringValue *string   `json:"string_value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PostgresStore implements preference persistence backed by a pgxpool
// connection pool. The key space is flat strings with no transactional
// semantics across keys.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore around pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetBool returns the boolean persisted under key. The second return value
// is false when no row exists or the row has no boolean facet.
func (s *PostgresStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	var value *bool
	err := s.pool.QueryRow(ctx, `
		SELECT bool_value FROM preferences WHERE key = $1
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("get bool %q: %w", key, err)
	}
	if value == nil {
		return false, false, nil
	}

	return *value, true, nil
}

// GetString returns the string persisted under key. The second return value
// is false when no row exists or the row has no string facet.
func (s *PostgresStore) GetString(ctx context.Context, key string) (string, bool, error) {
	var value *string
	err := s.pool.QueryRow(ctx, `
		SELECT string_value FROM preferences WHERE key = $1
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get string %q: %w", key, err)
	}
	if value == nil {
		return "", false, nil
	}

	return *value, true, nil
}

// SetBool upserts the boolean facet of key, leaving any string facet on the
// same row untouched.
func (s *PostgresStore) SetBool(ctx context.Context, key string, value bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (key, bool_value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET bool_value = EXCLUDED.bool_value,
		    updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set bool %q: %w", key, err)
	}

	return nil
}

// SetString upserts the string facet of key, leaving any boolean facet on
// the same row untouched.
func (s *PostgresStore) SetString(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (key, string_value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET string_value = EXCLUDED.string_value,
		    updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set string %q: %w", key, err)
	}

	return nil
}

// Delete removes the row for key. Deleting an absent key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM preferences WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

// List returns every persisted preference row ordered by key, for
// inspection tooling built on the mechanically invertible key scheme.
func (s *PostgresStore) List(ctx context.Context) ([]Preference, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, bool_value, string_value, created_at, updated_at
		FROM preferences
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	preferences := make([]Preference, 0)
	for rows.Next() {
		var pref Preference
		if err := rows.Scan(
			&pref.Key,
			&pref.BoolValue,
			&pref.StringValue,
			&pref.CreatedAt,
			&pref.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}

		preferences = append(preferences, pref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}

	return preferences, nil
}
