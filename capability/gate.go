// Package capability buffers the platform's deferred install prompt.
package capability

import (
	"context"
	"errors"
	"log"
	"sync"
)

type Outcome string

const (
	Accepted  Outcome = "accepted"
	Dismissed Outcome = "dismissed"
)

func (o Outcome) Valid() bool {
	return o == Accepted || o == Dismissed
}

// ErrNoCapability is returned by TriggerInstall when no token is held.
var ErrNoCapability = errors.New("no install capability held")

// Token is the platform-owned install prompt. PreventDefault must suppress
// the platform's own install UI; Prompt may be called at most once.
type Token interface {
	PreventDefault()
	Prompt(ctx context.Context) (Outcome, error)
}

// InstallRecorder persists the fact that the app got installed.
type InstallRecorder interface {
	MarkInstalled(ctx context.Context) error
}

type State int

const (
	Absent State = iota
	Offered
	Consumed
)

func (s State) String() string {
	switch s {
	case Offered:
		return "offered"
	case Consumed:
		return "consumed"
	default:
		return "absent"
	}
}

// Gate holds at most one Token. The latest offered token wins; a token is
// never prompted twice.
type Gate struct {
	mu       sync.Mutex
	state    State
	token    Token
	recorder InstallRecorder
}

func NewGate(recorder InstallRecorder) *Gate {
	return &Gate{recorder: recorder}
}

// OnCapabilityOffered suppresses the platform prompt synchronously, then
// holds token in place of any earlier one.
func (g *Gate) OnCapabilityOffered(token Token) {
	if token == nil {
		return
	}
	token.PreventDefault()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
	g.state = Offered
}

func (g *Gate) HasCapability() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == Offered
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// TriggerInstall prompts the held token exactly once. The token is released
// before prompting so a concurrent caller gets ErrNoCapability instead of a
// second prompt.
func (g *Gate) TriggerInstall(ctx context.Context) (Outcome, error) {
	g.mu.Lock()
	if g.state != Offered {
		g.mu.Unlock()
		return "", ErrNoCapability
	}
	token := g.token
	g.token = nil
	g.state = Consumed
	g.mu.Unlock()

	return token.Prompt(ctx)
}

// OnInstallCompleted handles the platform's install-completed signal, which
// can fire without any prompt (e.g. install from the browser menu).
func (g *Gate) OnInstallCompleted(ctx context.Context) {
	g.mu.Lock()
	g.token = nil
	if g.state == Offered {
		g.state = Consumed
	}
	g.mu.Unlock()

	if g.recorder == nil {
		return
	}
	if err := g.recorder.MarkInstalled(ctx); err != nil {
		log.Printf("ERROR: Failed to record install completion: %v", err)
	}
}
