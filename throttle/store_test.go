package throttle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (failingKV) Set(context.Context, string, string) error {
	return errors.New("connection refused")
}

func TestRecordVisitIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV())

	for i := 1; i <= 5; i++ {
		n, err := s.RecordVisit(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	rec, err := s.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.VisitCount)
}

func TestRecordVisitStartsFromExistingCount(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, KeyVisitCount, "41"))

	n, err := NewStore(kv).RecordVisit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestMalformedValuesReadAsUnset(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, KeyVisitCount, "lots"))
	require.NoError(t, kv.Set(ctx, KeyDismissedAt, "yesterday"))

	rec, err := NewStore(kv).Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.VisitCount)
	assert.Nil(t, rec.LastDismissedAt)
}

func TestDismissalWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(NewMemoryKV()).WithClock(func() time.Time { return now })

	active, err := s.IsDismissalActive(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, active, "no dismissal recorded yet")

	require.NoError(t, s.RecordDismissal(ctx))

	now = now.Add(6 * 24 * time.Hour)
	active, err = s.IsDismissalActive(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, active)

	now = now.Add(24 * time.Hour)
	active, err = s.IsDismissalActive(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, active, "window is exclusive at exactly the duration")
}

func TestInstalledFlag(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV())

	installed, err := s.IsInstalled(ctx)
	require.NoError(t, err)
	assert.False(t, installed)

	require.NoError(t, s.MarkInstalled(ctx))
	installed, err = s.IsInstalled(ctx)
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV())

	require.NoError(t, s.RememberCorrelation(ctx, "ROLL-2024-117"))
	id, err := s.Correlation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ROLL-2024-117", id)
}

func TestStorePropagatesBackendErrors(t *testing.T) {
	ctx := context.Background()
	s := NewStore(failingKV{})

	_, err := s.RecordVisit(ctx)
	assert.Error(t, err)
	_, err = s.Record(ctx)
	assert.Error(t, err)
	assert.Error(t, s.RecordDismissal(ctx))
	assert.Error(t, s.MarkInstalled(ctx))
}

func TestConcurrentVisitsNeverExceedCalls(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = NewStore(kv).RecordVisit(ctx)
		}()
	}
	wg.Wait()

	rec, err := NewStore(kv).Record(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.VisitCount, 1)
	assert.LessOrEqual(t, rec.VisitCount, 20)
}

func TestMemoryBackendScopesByVisitor(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	_, err := NewStore(b.ForVisitor("a")).RecordVisit(ctx)
	require.NoError(t, err)

	rec, err := NewStore(b.ForVisitor("b")).Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.VisitCount)

	rec, err = NewStore(b.ForVisitor("a")).Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.VisitCount)
}
