// Package redirect runs the smart-redirect landing: it remembers the scan
// reference, loads settings, reports the scan, and either navigates straight
// on or mounts the install guide.
package redirect

import (
	"context"
	"log"
	"time"

	"coachhub/onboard/capability"
	"coachhub/onboard/decision"
	"coachhub/onboard/guide"
	"coachhub/onboard/models"
	"coachhub/onboard/probe"
	"coachhub/onboard/throttle"
	"coachhub/onboard/utils"
)

// SettingsSource loads the administrator's guide configuration.
type SettingsSource interface {
	Fetch(ctx context.Context) (models.GuideConfiguration, error)
}

// EventDispatcher delivers analytics without blocking.
type EventDispatcher interface {
	Dispatch(ev models.ScanEvent)
}

// Visit is one landing or portal page load.
type Visit struct {
	VisitorID     string
	CorrelationID string
	Source        models.EntrySource
	Signals       probe.Signals
	// HasCapability is the shell's hint that a deferred install prompt was
	// already captured on this page.
	HasCapability bool
	// Role is set when the visitor carries a valid portal token.
	Role          string
	Authenticated bool
	UserAgent     string
	IPAddress     string
}

// Outcome tells the caller what to do with a landing.
type Outcome struct {
	// NavigateURL is set when the visitor goes straight on.
	NavigateURL   string
	Decision      decision.Decision
	Environment   probe.Environment
	CorrelationID string
	// Settings is the configuration the decision was made with; the shell
	// renders the guide's content and appearance from it.
	Settings models.GuideConfiguration
	// Session is set when the guide was mounted.
	Session *guide.Session
}

type Config struct {
	Settings  SettingsSource
	Defaults  models.GuideConfiguration
	State     throttle.Backend
	Analytics EventDispatcher
	Sessions  *guide.Registry
	// AutoClose overrides the guide's success auto-close delay.
	AutoClose time.Duration
	Now       func() time.Time
}

type Redirector struct {
	settings  SettingsSource
	defaults  models.GuideConfiguration
	state     throttle.Backend
	analytics EventDispatcher
	sessions  *guide.Registry
	autoClose time.Duration
	now       func() time.Time
}

func New(cfg Config) *Redirector {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	defaults := cfg.Defaults
	if defaults.Redirect.NonPWARedirectURL == "" {
		defaults = models.DefaultGuideConfiguration()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = guide.NewRegistry(time.Minute)
	}
	return &Redirector{
		settings:  cfg.Settings,
		defaults:  defaults,
		state:     cfg.State,
		analytics: cfg.Analytics,
		sessions:  sessions,
		autoClose: cfg.AutoClose,
		now:       now,
	}
}

func (r *Redirector) Sessions() *guide.Registry {
	return r.sessions
}

// Land handles a smart-redirect landing. It never fails: every error along
// the way has a fallback that still gets the visitor to a login target.
func (r *Redirector) Land(ctx context.Context, v Visit) Outcome {
	store := r.throttleFor(v.VisitorID)
	env := probe.Probe(v.Signals)

	correlationID := r.rememberCorrelation(ctx, store, v.CorrelationID)
	cfg := r.loadSettings(ctx)
	rec := r.recordVisit(ctx, store, env)

	source := v.Source
	if source == "" {
		source = models.SourceDirect
	}
	r.dispatch(models.ScanEvent{
		VisitorID:     v.VisitorID,
		CorrelationID: correlationID,
		Device:        string(env.Device),
		Browser:       string(env.Browser),
		PWAInstalled:  env.Standalone || rec.Installed,
		Source:        string(source),
		UserAgent:     v.UserAgent,
		IPAddress:     v.IPAddress,
	})

	if v.Authenticated {
		target := cfg.Redirect.RoleTarget(v.Role)
		log.Printf("Visitor %s already signed in as %q, sending to %s", v.VisitorID, v.Role, target)
		return Outcome{
			NavigateURL:   target,
			Decision:      decision.Decision{Action: decision.RedirectImmediately, Rule: "authenticated", TargetURL: target},
			Environment:   env,
			CorrelationID: correlationID,
			Settings:      cfg,
		}
	}

	d := decision.Decide(decision.Input{
		Device:        env.Device,
		Browser:       env.Browser,
		Standalone:    env.Standalone,
		HasCapability: v.HasCapability,
		Throttle:      rec,
		Config:        cfg,
		Context:       models.EntryContext{Kind: models.EntryLanding, Source: source},
		Now:           r.now(),
	})
	out := Outcome{
		Decision:      d,
		Environment:   env,
		CorrelationID: correlationID,
		Settings:      cfg,
	}
	finalURL := utils.WithCorrelation(d.TargetURL, correlationID)

	if !d.Action.Shows() {
		out.NavigateURL = finalURL
		log.Printf("Landing for visitor %s: %s (%s) -> %s", v.VisitorID, d.Action, d.Rule, finalURL)
		return out
	}

	out.Session = r.mountGuide(v, env, store, cfg, d, correlationID, finalURL)
	log.Printf("Landing for visitor %s: %s (%s), guide session %s", v.VisitorID, d.Action, d.Rule, out.Session.ID)
	return out
}

// Ambient decides whether a portal page should offer installation. It never
// navigates and never mounts a guide session.
func (r *Redirector) Ambient(ctx context.Context, v Visit) Outcome {
	store := r.throttleFor(v.VisitorID)
	env := probe.Probe(v.Signals)
	cfg := r.loadSettings(ctx)
	rec := r.recordVisit(ctx, store, env)

	d := decision.Decide(decision.Input{
		Device:        env.Device,
		Browser:       env.Browser,
		Standalone:    env.Standalone,
		HasCapability: v.HasCapability,
		Throttle:      rec,
		Config:        cfg,
		Context:       models.EntryContext{Kind: models.EntryAmbient},
		Now:           r.now(),
	})
	return Outcome{Decision: d, Environment: env, Settings: cfg}
}

// DismissBanner records an explicit dismissal of the portal banner.
func (r *Redirector) DismissBanner(ctx context.Context, visitorID string) error {
	return r.throttleFor(visitorID).RecordDismissal(ctx)
}

// MarkInstalled records an install-completed signal seen outside a guide.
func (r *Redirector) MarkInstalled(ctx context.Context, visitorID string) error {
	return r.throttleFor(visitorID).MarkInstalled(ctx)
}

func (r *Redirector) mountGuide(v Visit, env probe.Environment, store *throttle.Store, cfg models.GuideConfiguration, d decision.Decision, correlationID, finalURL string) *guide.Session {
	initial := guide.ViewInstall
	if d.Action == decision.ShowIOSSheet {
		initial = guide.ViewManual
	}

	s := &guide.Session{
		VisitorID:  v.VisitorID,
		FinalURL:   finalURL,
		CreatedAt:  r.now(),
		Content:    cfg.Content,
		Appearance: cfg.Appearance,
	}
	s.Presenter = guide.NewPresenter(guide.Options{
		Gate:        capability.NewGate(store),
		InitialView: initial,
		Steps:       d.Steps,
		Notice:      d.Notice,
		AutoClose:   r.autoClose,
		OnClose: func(res guide.Result) {
			r.guideClosed(v, env, store, correlationID, res)
		},
	})
	r.sessions.Add(s)
	return s
}

// guideClosed runs on the presenter's close. Dismissals start the re-show
// throttle; every close reports an outcome event.
func (r *Redirector) guideClosed(v Visit, env probe.Environment, store *throttle.Store, correlationID string, res guide.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if res.Reason == guide.ReasonDismissed {
		if err := store.RecordDismissal(ctx); err != nil {
			log.Printf("ERROR: Failed to record guide dismissal for visitor %s: %v", v.VisitorID, err)
		}
	}

	r.dispatch(models.ScanEvent{
		VisitorID:        v.VisitorID,
		CorrelationID:    correlationID,
		Device:           string(env.Device),
		Browser:          string(env.Browser),
		PWAInstalled:     res.Installed,
		GuideShown:       true,
		GuideCompleted:   res.Reason == guide.ReasonCompleted,
		InstallTriggered: res.InstallTriggered,
		Source:           models.ScanSourceOutcome,
		UserAgent:        v.UserAgent,
		IPAddress:        v.IPAddress,
	})
}

func (r *Redirector) rememberCorrelation(ctx context.Context, store *throttle.Store, id string) string {
	if id != "" {
		if err := store.RememberCorrelation(ctx, id); err != nil {
			log.Printf("ERROR: %v", err)
		}
		return id
	}
	remembered, err := store.Correlation(ctx)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return ""
	}
	return remembered
}

func (r *Redirector) loadSettings(ctx context.Context) models.GuideConfiguration {
	if r.settings == nil {
		return r.defaults.Clone()
	}
	cfg, err := r.settings.Fetch(ctx)
	if err != nil {
		log.Printf("Guide settings unavailable, using defaults: %v", err)
		return r.defaults.Clone()
	}
	return cfg
}

// recordVisit counts the visit before any decision and caches standalone
// detection as an install.
func (r *Redirector) recordVisit(ctx context.Context, store *throttle.Store, env probe.Environment) models.ThrottleRecord {
	if _, err := store.RecordVisit(ctx); err != nil {
		log.Printf("ERROR: %v", err)
	}
	if env.Standalone {
		if err := store.MarkInstalled(ctx); err != nil {
			log.Printf("ERROR: %v", err)
		}
	}
	rec, err := store.Record(ctx)
	if err != nil {
		log.Printf("ERROR: Failed to read throttle record, treating as a first visit: %v", err)
		return models.ThrottleRecord{VisitCount: 1, Installed: env.Standalone}
	}
	return rec
}

func (r *Redirector) throttleFor(visitorID string) *throttle.Store {
	var kv throttle.KV
	if r.state != nil {
		kv = r.state.ForVisitor(visitorID)
	} else {
		kv = throttle.NewMemoryKV()
	}
	return throttle.NewStore(kv).WithClock(r.now)
}

func (r *Redirector) dispatch(ev models.ScanEvent) {
	if r.analytics == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ERROR: analytics dispatch panicked: %v", rec)
		}
	}()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now().UTC()
	}
	r.analytics.Dispatch(ev)
}
