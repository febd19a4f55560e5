package capability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// RemoteToken stands in for a prompt event captured by the browser shell.
// The shell calls the native prompt itself and reports the outcome back,
// which Resolve hands to the waiting Prompt call.
type RemoteToken struct {
	outcome    chan Outcome
	resolve    sync.Once
	suppressed atomic.Bool
}

func NewRemoteToken() *RemoteToken {
	return &RemoteToken{outcome: make(chan Outcome, 1)}
}

func (t *RemoteToken) PreventDefault() {
	t.suppressed.Store(true)
}

// Suppressed reports whether the platform UI was suppressed; the shell must
// call its own preventDefault when it sees this acknowledged.
func (t *RemoteToken) Suppressed() bool {
	return t.suppressed.Load()
}

func (t *RemoteToken) Prompt(ctx context.Context) (Outcome, error) {
	select {
	case o := <-t.outcome:
		return o, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for install prompt outcome: %w", ctx.Err())
	}
}

// Resolve delivers the native prompt's outcome. Only the first call counts.
func (t *RemoteToken) Resolve(o Outcome) error {
	if !o.Valid() {
		return fmt.Errorf("invalid install outcome %q", o)
	}
	delivered := false
	t.resolve.Do(func() {
		t.outcome <- o
		delivered = true
	})
	if !delivered {
		return fmt.Errorf("install outcome already reported")
	}
	return nil
}
