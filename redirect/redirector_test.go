package redirect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coachhub/onboard/decision"
	"coachhub/onboard/guide"
	"coachhub/onboard/models"
	"coachhub/onboard/probe"
	"coachhub/onboard/throttle"
)

const (
	uaAndroidChrome = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36"
	uaIPhoneSafari  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
	uaDesktop       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Fetch(ctx context.Context) (models.GuideConfiguration, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.GuideConfiguration), args.Error(1)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.ScanEvent
}

func (d *recordingDispatcher) Dispatch(ev models.ScanEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *recordingDispatcher) Events() []models.ScanEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.ScanEvent(nil), d.events...)
}

type fixture struct {
	redirector *Redirector
	settings   *MockSettings
	events     *recordingDispatcher
	now        time.Time
}

func newFixture(t *testing.T, cfg models.GuideConfiguration, fetchErr error) *fixture {
	t.Helper()
	f := &fixture{
		settings: new(MockSettings),
		events:   &recordingDispatcher{},
		now:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.settings.On("Fetch", mock.Anything).Return(cfg, fetchErr)
	registry := guide.NewRegistry(0)
	t.Cleanup(registry.Shutdown)
	f.redirector = New(Config{
		Settings:  f.settings,
		State:     throttle.NewMemoryBackend(),
		Analytics: f.events,
		Sessions:  registry,
		Now:       func() time.Time { return f.now },
	})
	return f
}

func visit(ua, ref string) Visit {
	return Visit{
		VisitorID:     "v-1",
		CorrelationID: ref,
		Source:        models.SourceQR,
		Signals:       probe.Signals{UserAgent: ua},
		UserAgent:     ua,
		IPAddress:     "203.0.113.9",
	}
}

func TestLandDesktopRedirectsWithCorrelation(t *testing.T) {
	f := newFixture(t, models.DefaultGuideConfiguration(), nil)

	out := f.redirector.Land(context.Background(), visit(uaDesktop, "ROLL-7"))

	assert.Equal(t, "/login?ref=ROLL-7", out.NavigateURL)
	assert.Nil(t, out.Session)
	assert.Equal(t, decision.RedirectImmediately, out.Decision.Action)
	assert.Equal(t, "desktop-landing", out.Decision.Rule)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ROLL-7", events[0].CorrelationID)
	assert.Equal(t, models.ScanSourceQR, events[0].Source)
	assert.Equal(t, string(models.DeviceDesktop), events[0].Device)
	assert.False(t, events[0].GuideShown)
	assert.Equal(t, f.now, events[0].Timestamp)
}

func TestLandRemembersCorrelationAcrossVisits(t *testing.T) {
	f := newFixture(t, models.DefaultGuideConfiguration(), nil)
	ctx := context.Background()

	f.redirector.Land(ctx, visit(uaDesktop, "ROLL-7"))
	out := f.redirector.Land(ctx, visit(uaDesktop, ""))

	assert.Equal(t, "ROLL-7", out.CorrelationID)
	assert.Equal(t, "/login?ref=ROLL-7", out.NavigateURL)
}

func TestLandFallsBackToDefaultsWhenSettingsFail(t *testing.T) {
	f := newFixture(t, models.GuideConfiguration{}, errors.New("settings service down"))

	out := f.redirector.Land(context.Background(), visit(uaAndroidChrome, "ROLL-9"))

	require.NotNil(t, out.Session)
	assert.Equal(t, decision.ShowGuide, out.Decision.Action)
	assert.Equal(t, "/login?ref=ROLL-9", out.Session.FinalURL)
	assert.Empty(t, out.NavigateURL)
	assert.Equal(t, guide.ViewInstall, out.Session.Presenter.Snapshot().View)
	f.settings.AssertExpectations(t)
}

func TestLandAuthenticatedGoesToRoleTarget(t *testing.T) {
	f := newFixture(t, models.DefaultGuideConfiguration(), nil)
	v := visit(uaAndroidChrome, "ROLL-1")
	v.Authenticated = true
	v.Role = models.RoleStudent

	out := f.redirector.Land(context.Background(), v)

	assert.Equal(t, "/student/dashboard", out.NavigateURL)
	assert.Nil(t, out.Session)
	assert.Len(t, f.events.Events(), 1)
}

func TestLandIOSSafariOpensManualSheet(t *testing.T) {
	f := newFixture(t, models.DefaultGuideConfiguration(), nil)

	out := f.redirector.Land(context.Background(), visit(uaIPhoneSafari, ""))

	require.NotNil(t, out.Session)
	assert.Equal(t, decision.ShowIOSSheet, out.Decision.Action)
	snap := out.Session.Presenter.Snapshot()
	assert.Equal(t, guide.ViewManual, snap.View)
	assert.NotEmpty(t, snap.Steps)
}

func TestGuideDismissalThrottlesNextLanding(t *testing.T) {
	f := newFixture(t, models.DefaultGuideConfiguration(), nil)
	ctx := context.Background()

	first := f.redirector.Land(ctx, visit(uaAndroidChrome, "ROLL-3"))
	require.NotNil(t, first.Session)
	require.NoError(t, first.Session.Presenter.Dismiss())

	events := f.events.Events()
	require.Len(t, events, 2)
	outcome := events[1]
	assert.Equal(t, models.ScanSourceOutcome, outcome.Source)
	assert.True(t, outcome.GuideShown)
	assert.False(t, outcome.GuideCompleted)
	assert.Equal(t, "ROLL-3", outcome.CorrelationID)

	f.now = f.now.Add(24 * time.Hour)
	second := f.redirector.Land(ctx, visit(uaAndroidChrome, ""))
	assert.Nil(t, second.Session)
	assert.Equal(t, "recently-dismissed", second.Decision.Rule)
	assert.Equal(t, "/login?ref=ROLL-3", second.NavigateURL)

	f.now = f.now.Add(7 * 24 * time.Hour)
	third := f.redirector.Land(ctx, visit(uaAndroidChrome, ""))
	assert.NotNil(t, third.Session)
}

func TestLandStandaloneMarksInstalled(t *testing.T) {
	cfg := models.DefaultGuideConfiguration()
	cfg.Redirect.PWARedirectURL = "/app/login"
	f := newFixture(t, cfg, nil)
	ctx := context.Background()

	v := visit(uaAndroidChrome, "")
	v.Signals.DisplayMode = "standalone"
	out := f.redirector.Land(ctx, v)
	assert.Equal(t, "/app/login", out.NavigateURL)
	assert.True(t, f.events.Events()[0].PWAInstalled)

	out = f.redirector.Land(ctx, visit(uaAndroidChrome, ""))
	assert.Equal(t, "installed-landing", out.Decision.Rule)
	assert.Equal(t, "/app/login", out.NavigateURL)
}

func TestAmbientBannerLifecycle(t *testing.T) {
	f := newFixture(t, models.DefaultGuideConfiguration(), nil)
	ctx := context.Background()
	v := visit(uaAndroidChrome, "")
	v.HasCapability = true

	out := f.redirector.Ambient(ctx, v)
	assert.Equal(t, decision.Suppress, out.Decision.Action)
	assert.Equal(t, "first-visit", out.Decision.Rule)
	assert.Equal(t, models.DeviceAndroid, out.Environment.Device)
	assert.Empty(t, out.Decision.TargetURL)

	out = f.redirector.Ambient(ctx, v)
	assert.Equal(t, decision.ShowBanner, out.Decision.Action)
	assert.Nil(t, out.Session)

	require.NoError(t, f.redirector.DismissBanner(ctx, v.VisitorID))
	out = f.redirector.Ambient(ctx, v)
	assert.Equal(t, "recently-dismissed", out.Decision.Rule)

	require.NoError(t, f.redirector.MarkInstalled(ctx, v.VisitorID))
	f.now = f.now.Add(30 * 24 * time.Hour)
	out = f.redirector.Ambient(ctx, v)
	assert.Equal(t, "installed-ambient", out.Decision.Rule)

	assert.Empty(t, f.events.Events())
}
