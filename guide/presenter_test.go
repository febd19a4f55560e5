package guide

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachhub/onboard/capability"
	"coachhub/onboard/models"
	"coachhub/onboard/throttle"
)

type stubToken struct {
	outcome capability.Outcome
	err     error
	block   chan struct{}
	prompts int
	mu      sync.Mutex
}

func (s *stubToken) PreventDefault() {}

func (s *stubToken) Prompt(ctx context.Context) (capability.Outcome, error) {
	s.mu.Lock()
	s.prompts++
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.outcome, s.err
}

type closeRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (c *closeRecorder) onClose(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *closeRecorder) all() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

var androidSteps = []models.Step{{Order: 1, Title: "Open the menu"}, {Order: 2, Title: "Install app"}}

func newPresenter(t *testing.T, tok capability.Token, rec *closeRecorder) (*Presenter, *throttle.Store) {
	t.Helper()
	store := throttle.NewStore(throttle.NewMemoryKV())
	gate := capability.NewGate(store)
	if tok != nil {
		gate.OnCapabilityOffered(tok)
	}
	p := NewPresenter(Options{
		Gate:      gate,
		Steps:     androidSteps,
		AutoClose: 20 * time.Millisecond,
		OnClose:   rec.onClose,
	})
	return p, store
}

func TestInstallWithoutCapabilityGoesManual(t *testing.T) {
	rec := &closeRecorder{}
	p, _ := newPresenter(t, nil, rec)

	v, err := p.Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViewManual, v)
	assert.Equal(t, androidSteps, p.Snapshot().Steps)
}

func TestAcceptedInstallReachesSuccessAndAutoCloses(t *testing.T) {
	rec := &closeRecorder{}
	tok := &stubToken{outcome: capability.Accepted}
	p, _ := newPresenter(t, tok, rec)

	v, err := p.Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViewSuccess, v)

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("success view did not auto-close")
	}
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	res := rec.all()[0]
	assert.Equal(t, ReasonCompleted, res.Reason)
	assert.True(t, res.InstallTriggered)
	assert.True(t, res.Installed)
	assert.Equal(t, 1, tok.prompts)
}

func TestDismissedNegotiationFallsBackToManual(t *testing.T) {
	rec := &closeRecorder{}
	tok := &stubToken{outcome: capability.Dismissed}
	p, _ := newPresenter(t, tok, rec)

	v, err := p.Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViewManual, v)
	snap := p.Snapshot()
	assert.Equal(t, androidSteps, snap.Steps)
	assert.False(t, snap.CanInstall, "token is spent after one prompt")

	// Back to install and try again: no token left, so straight to manual.
	_, err = p.Back()
	require.NoError(t, err)
	v, err = p.Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViewManual, v)
	assert.Equal(t, 1, tok.prompts)
}

func TestPlatformErrorTreatedAsDismissed(t *testing.T) {
	rec := &closeRecorder{}
	p, _ := newPresenter(t, &stubToken{err: errors.New("user activation required")}, rec)

	v, err := p.Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViewManual, v)
}

func TestLoadingWhileNegotiating(t *testing.T) {
	rec := &closeRecorder{}
	tok := &stubToken{outcome: capability.Dismissed, block: make(chan struct{})}
	p, _ := newPresenter(t, tok, rec)

	done := make(chan View)
	go func() {
		v, _ := p.Install(context.Background())
		done <- v
	}()

	require.Eventually(t, func() bool { return p.Snapshot().Loading }, time.Second, time.Millisecond)
	_, err := p.Install(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition, "a second trigger while loading is refused")
	_, err = p.ShowManual()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	close(tok.block)
	assert.Equal(t, ViewManual, <-done)
	assert.False(t, p.Snapshot().Loading)
}

func TestInstallCompletedInManualGoesToSuccess(t *testing.T) {
	rec := &closeRecorder{}
	p, store := newPresenter(t, nil, rec)

	_, err := p.ShowManual()
	require.NoError(t, err)

	v, err := p.InstallCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViewSuccess, v)

	installed, err := store.IsInstalled(context.Background())
	require.NoError(t, err)
	assert.True(t, installed)

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("success view did not auto-close")
	}
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ReasonCompleted, rec.all()[0].Reason)
}

func TestInstallCompletedOnInstallViewIsRecordedOnly(t *testing.T) {
	rec := &closeRecorder{}
	p, store := newPresenter(t, &stubToken{outcome: capability.Accepted}, rec)

	v, err := p.InstallCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViewInstall, v)
	assert.False(t, p.Snapshot().CanInstall)

	installed, err := store.IsInstalled(context.Background())
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestDismissFromManual(t *testing.T) {
	rec := &closeRecorder{}
	p, _ := newPresenter(t, nil, rec)
	_, _ = p.ShowManual()

	require.NoError(t, p.Dismiss())
	assert.True(t, p.Snapshot().Closed)
	require.Len(t, rec.all(), 1)
	assert.Equal(t, ReasonDismissed, rec.all()[0].Reason)
	assert.Equal(t, ViewManual, rec.all()[0].LastView)

	assert.ErrorIs(t, p.Dismiss(), ErrClosed)
	_, err := p.Back()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, rec.all(), 1, "close handler runs once")
}

func TestExplicitCloseOverridesAutoClose(t *testing.T) {
	rec := &closeRecorder{}
	store := throttle.NewStore(throttle.NewMemoryKV())
	gate := capability.NewGate(store)
	gate.OnCapabilityOffered(&stubToken{outcome: capability.Accepted})
	p := NewPresenter(Options{Gate: gate, AutoClose: time.Hour, OnClose: rec.onClose})

	assert.ErrorIs(t, p.Close(), ErrInvalidTransition, "close is only for the success view")

	_, err := p.Install(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.Len(t, rec.all(), 1)
	assert.Equal(t, ReasonCompleted, rec.all()[0].Reason)
}

func TestTeardownDiscardsInFlightNegotiation(t *testing.T) {
	rec := &closeRecorder{}
	tok := &stubToken{outcome: capability.Accepted, block: make(chan struct{})}
	p, _ := newPresenter(t, tok, rec)

	errc := make(chan error)
	go func() {
		_, err := p.Install(context.Background())
		errc <- err
	}()
	require.Eventually(t, func() bool { return p.Snapshot().Loading }, time.Second, time.Millisecond)

	p.Teardown()
	close(tok.block)

	assert.ErrorIs(t, <-errc, ErrClosed)
	snap := p.Snapshot()
	assert.Equal(t, ViewInstall, snap.View, "late outcome must not move a torn-down presenter")
	assert.Empty(t, rec.all(), "teardown never runs the close handler")
}

func TestInitialManualView(t *testing.T) {
	p := NewPresenter(Options{InitialView: ViewManual, Notice: "Open in Safari"})
	snap := p.Snapshot()
	assert.Equal(t, ViewManual, snap.View)
	assert.Equal(t, "Open in Safari", snap.Notice)
	assert.False(t, snap.CanInstall)
}
