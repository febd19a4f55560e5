// Package throttle keeps the per-visitor prompting history: when the
// onboarding was last dismissed, how many landings there were, and whether
// the app is installed.
package throttle

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"coachhub/onboard/models"
)

// Persisted keys. They are scoped to one visitor by the KV.
const (
	KeyDismissedAt   = "pwa_dismissed_at"
	KeyVisitCount    = "pwa_visit_count"
	KeyInstalled     = "pwa_installed"
	KeyCorrelationID = "correlation_id"
)

// KV is a durable string store scoped to a single visitor. Concurrent writers
// are last-write-wins.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Backend hands out visitor-scoped KVs.
type Backend interface {
	ForVisitor(visitorID string) KV
}

type Store struct {
	kv  KV
	now func() time.Time
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// RecordVisit increments the visit counter by one and returns the new value.
func (s *Store) RecordVisit(ctx context.Context) (int, error) {
	count, err := s.visitCount(ctx)
	if err != nil {
		return 0, err
	}
	count++
	if err := s.kv.Set(ctx, KeyVisitCount, strconv.Itoa(count)); err != nil {
		return 0, fmt.Errorf("failed to record visit: %w", err)
	}
	return count, nil
}

func (s *Store) RecordDismissal(ctx context.Context) error {
	ms := s.now().UnixMilli()
	if err := s.kv.Set(ctx, KeyDismissedAt, strconv.FormatInt(ms, 10)); err != nil {
		return fmt.Errorf("failed to record dismissal: %w", err)
	}
	return nil
}

func (s *Store) IsDismissalActive(ctx context.Context, d time.Duration) (bool, error) {
	rec, err := s.Record(ctx)
	if err != nil {
		return false, err
	}
	return rec.DismissedWithin(s.now(), d), nil
}

func (s *Store) IsInstalled(ctx context.Context) (bool, error) {
	v, ok, err := s.kv.Get(ctx, KeyInstalled)
	if err != nil {
		return false, fmt.Errorf("failed to read installed flag: %w", err)
	}
	return ok && v == "true", nil
}

// MarkInstalled sets the installed flag. It is never cleared.
func (s *Store) MarkInstalled(ctx context.Context) error {
	if err := s.kv.Set(ctx, KeyInstalled, "true"); err != nil {
		return fmt.Errorf("failed to mark installed: %w", err)
	}
	return nil
}

// Record reads the whole throttle record. Unparseable values read as unset.
func (s *Store) Record(ctx context.Context) (models.ThrottleRecord, error) {
	var rec models.ThrottleRecord

	count, err := s.visitCount(ctx)
	if err != nil {
		return rec, err
	}
	rec.VisitCount = count

	v, ok, err := s.kv.Get(ctx, KeyDismissedAt)
	if err != nil {
		return rec, fmt.Errorf("failed to read dismissal: %w", err)
	}
	if ok {
		ms, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			log.Printf("Ignoring malformed dismissal timestamp %q: %v", v, perr)
		} else {
			at := time.UnixMilli(ms)
			rec.LastDismissedAt = &at
		}
	}

	rec.Installed, err = s.IsInstalled(ctx)
	if err != nil {
		return rec, err
	}
	return rec, nil
}

// RememberCorrelation stores the inbound scan reference for the login target.
func (s *Store) RememberCorrelation(ctx context.Context, id string) error {
	if err := s.kv.Set(ctx, KeyCorrelationID, id); err != nil {
		return fmt.Errorf("failed to store correlation id: %w", err)
	}
	return nil
}

func (s *Store) Correlation(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, KeyCorrelationID)
	if err != nil {
		return "", fmt.Errorf("failed to read correlation id: %w", err)
	}
	return v, nil
}

func (s *Store) visitCount(ctx context.Context) (int, error) {
	v, ok, err := s.kv.Get(ctx, KeyVisitCount)
	if err != nil {
		return 0, fmt.Errorf("failed to read visit count: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, perr := strconv.Atoi(v)
	if perr != nil || n < 0 {
		log.Printf("Ignoring malformed visit count %q", v)
		return 0, nil
	}
	return n, nil
}
