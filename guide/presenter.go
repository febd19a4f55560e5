// Package guide drives the install → manual → success onboarding views.
package guide

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"coachhub/onboard/capability"
	"coachhub/onboard/models"
)

type View string

const (
	ViewInstall View = "install"
	ViewManual  View = "manual"
	ViewSuccess View = "success"
)

// AutoCloseDelay is how long the success view stays up before closing.
const AutoCloseDelay = 4 * time.Second

var (
	ErrClosed            = errors.New("guide is closed")
	ErrInvalidTransition = errors.New("transition not allowed from current view")
)

type CloseReason string

const (
	ReasonCompleted CloseReason = "completed"
	ReasonDismissed CloseReason = "dismissed"
)

// Result summarises a closed presenter for analytics and navigation.
type Result struct {
	Reason           CloseReason
	LastView         View
	InstallTriggered bool
	Installed        bool
}

// Snapshot is what the shell renders. Capability is the gate's state:
// absent, offered or consumed.
type Snapshot struct {
	View       View          `json:"view"`
	Loading    bool          `json:"loading"`
	Closed     bool          `json:"closed"`
	CanInstall bool          `json:"canInstall"`
	Capability string        `json:"capability"`
	Steps      []models.Step `json:"steps,omitempty"`
	Notice     string        `json:"notice,omitempty"`
}

type Options struct {
	Gate        *capability.Gate
	InitialView View
	Steps       []models.Step
	Notice      string
	// AutoClose overrides AutoCloseDelay; zero means the default.
	AutoClose time.Duration
	// OnClose runs once, outside the presenter lock, when the presenter
	// closes by completion or dismissal. Teardown does not call it.
	OnClose func(Result)
}

type Presenter struct {
	mu        sync.Mutex
	view      View
	loading   bool
	closed    bool
	triggered bool
	installed bool

	gate      *capability.Gate
	steps     []models.Step
	notice    string
	autoClose time.Duration
	timer     *time.Timer
	onClose   func(Result)
	done      chan struct{}
}

func NewPresenter(opts Options) *Presenter {
	view := opts.InitialView
	if view != ViewManual {
		view = ViewInstall
	}
	gate := opts.Gate
	if gate == nil {
		gate = capability.NewGate(nil)
	}
	autoClose := opts.AutoClose
	if autoClose <= 0 {
		autoClose = AutoCloseDelay
	}
	return &Presenter{
		view:      view,
		gate:      gate,
		steps:     opts.Steps,
		notice:    opts.Notice,
		autoClose: autoClose,
		onClose:   opts.OnClose,
		done:      make(chan struct{}),
	}
}

func (p *Presenter) Gate() *capability.Gate {
	return p.gate
}

// Done is closed once the presenter closes or is torn down.
func (p *Presenter) Done() <-chan struct{} {
	return p.done
}

func (p *Presenter) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := p.gate.State()
	return Snapshot{
		View:       p.view,
		Loading:    p.loading,
		Closed:     p.closed,
		CanInstall: state == capability.Offered,
		Capability: state.String(),
		Steps:      p.steps,
		Notice:     p.notice,
	}
}

// Install runs the native negotiation from the install view. Without a held
// capability it moves to the manual view instead. A rejected or failed
// negotiation is treated as a dismissal and also lands on manual.
func (p *Presenter) Install(ctx context.Context) (View, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrClosed
	}
	if p.view != ViewInstall || p.loading {
		v := p.view
		p.mu.Unlock()
		return v, ErrInvalidTransition
	}
	if !p.gate.HasCapability() {
		p.view = ViewManual
		p.mu.Unlock()
		return ViewManual, nil
	}
	p.loading = true
	p.triggered = true
	p.mu.Unlock()

	outcome, err := p.gate.TriggerInstall(ctx)
	if err != nil {
		log.Printf("Install prompt failed, falling back to manual steps: %v", err)
		outcome = capability.Dismissed
	}

	p.mu.Lock()
	p.loading = false
	// torn down or dismissed while the prompt was open
	if p.closed {
		p.mu.Unlock()
		return "", ErrClosed
	}
	if outcome == capability.Accepted {
		p.installed = true
		p.enterSuccessLocked()
	} else {
		p.view = ViewManual
	}
	v := p.view
	p.mu.Unlock()
	return v, nil
}

// ShowManual switches from install to manual without prompting.
func (p *Presenter) ShowManual() (View, error) {
	return p.move(ViewInstall, ViewManual)
}

// Back returns from manual to install.
func (p *Presenter) Back() (View, error) {
	return p.move(ViewManual, ViewInstall)
}

// InstallCompleted handles the platform's install-completed signal. It is
// always recorded; only the manual view advances to success on it.
func (p *Presenter) InstallCompleted(ctx context.Context) (View, error) {
	p.gate.OnInstallCompleted(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrClosed
	}
	p.installed = true
	if p.view == ViewManual {
		p.enterSuccessLocked()
	}
	return p.view, nil
}

// Dismiss closes the presenter on explicit user action. From the success
// view this is an early close, not a dismissal.
func (p *Presenter) Dismiss() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	reason := ReasonDismissed
	if p.view == ViewSuccess {
		reason = ReasonCompleted
	}
	res := p.finishLocked(reason)
	p.mu.Unlock()

	p.notify(res)
	return nil
}

// Close ends the success view before the auto-close timer fires.
func (p *Presenter) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.view != ViewSuccess {
		p.mu.Unlock()
		return ErrInvalidTransition
	}
	res := p.finishLocked(ReasonCompleted)
	p.mu.Unlock()

	p.notify(res)
	return nil
}

// Teardown discards the presenter without running OnClose. Any in-flight
// negotiation finishing afterwards is ignored.
func (p *Presenter) Teardown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.finishLocked("")
}

func (p *Presenter) move(from, to View) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrClosed
	}
	if p.view != from || p.loading {
		return p.view, ErrInvalidTransition
	}
	p.view = to
	return to, nil
}

func (p *Presenter) enterSuccessLocked() {
	if p.view == ViewSuccess {
		return
	}
	p.view = ViewSuccess
	p.timer = time.AfterFunc(p.autoClose, p.autoCloseFired)
}

func (p *Presenter) autoCloseFired() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	res := p.finishLocked(ReasonCompleted)
	p.mu.Unlock()

	p.notify(res)
}

func (p *Presenter) finishLocked(reason CloseReason) Result {
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
	}
	close(p.done)
	return Result{
		Reason:           reason,
		LastView:         p.view,
		InstallTriggered: p.triggered,
		Installed:        p.installed,
	}
}

func (p *Presenter) notify(res Result) {
	if p.onClose == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: guide close handler panicked: %v", r)
		}
	}()
	p.onClose(res)
}
