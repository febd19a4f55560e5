package store

import (
	"context"
	"database/sql"
	"fmt"

	"coachhub/onboard/throttle"
)

// VisitorStateStore persists per-visitor onboarding state in Postgres.
type VisitorStateStore struct {
	db *sql.DB
}

func NewVisitorStateStore(db *sql.DB) *VisitorStateStore {
	return &VisitorStateStore{db: db}
}

// ForVisitor scopes the store to one visitor.
func (s *VisitorStateStore) ForVisitor(visitorID string) throttle.KV {
	return &visitorKV{db: s.db, visitorID: visitorID}
}

type visitorKV struct {
	db        *sql.DB
	visitorID string
}

func (kv *visitorKV) Get(ctx context.Context, key string) (string, bool, error) {
	query := `
		SELECT value
		FROM visitor_state
		WHERE visitor_id = $1 AND key = $2;
	`
	var value string
	err := kv.db.QueryRowContext(ctx, query, kv.visitorID, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get visitor state %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts; concurrent writers from several tabs are last-write-wins.
func (kv *visitorKV) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO visitor_state (visitor_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (visitor_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();
	`
	if _, err := kv.db.ExecContext(ctx, query, kv.visitorID, key, value); err != nil {
		return fmt.Errorf("failed to set visitor state %q: %w", key, err)
	}
	return nil
}
