package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"

	"coachhub/onboard/models"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

// SaveSubscription stores sub, replacing any earlier subscription with the
// same endpoint.
func (s *PushStore) SaveSubscription(ctx context.Context, sub *models.PushSubscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	query := `
		INSERT INTO push_subscriptions (id, visitor_id, user_id, endpoint, p256dh, auth)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (endpoint)
		DO UPDATE SET visitor_id = EXCLUDED.visitor_id, user_id = EXCLUDED.user_id,
			p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
		RETURNING id, created_at;
	`
	err := s.db.QueryRowContext(ctx, query, sub.ID, sub.VisitorID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth).Scan(
		&sub.ID,
		&sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}

	log.Printf("Push subscription saved: ID=%s, Visitor=%s", sub.ID, sub.VisitorID)
	return nil
}

// DeleteSubscription removes the subscription registered for endpoint. It
// reports whether one existed.
func (s *PushStore) DeleteSubscription(ctx context.Context, endpoint string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1;`, endpoint)
	if err != nil {
		return false, fmt.Errorf("failed to delete push subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read deleted rows: %w", err)
	}
	return n > 0, nil
}
