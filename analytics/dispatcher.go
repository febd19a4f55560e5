// Package analytics sends scan and outcome events without ever blocking or
// failing the caller.
package analytics

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"coachhub/onboard/models"
)

// Sink persists scan events.
type Sink interface {
	InsertScanEvents(ctx context.Context, events []models.ScanEvent) error
}

type Dispatcher struct {
	sink    Sink
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sink Sink, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sink: sink, timeout: timeout}
}

// Dispatch delivers ev in the background. Failures are logged and dropped;
// there are no retries.
func (d *Dispatcher) Dispatch(ev models.ScanEvent) {
	if d == nil || d.sink == nil {
		return
	}
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Printf("Dropping analytics event %s (%s): dispatcher closed", ev.EventID, ev.Source)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("ERROR: analytics sink panicked for event %s: %v", ev.EventID, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sink.InsertScanEvents(ctx, []models.ScanEvent{ev}); err != nil {
			log.Printf("Dropping analytics event %s (%s): %v", ev.EventID, ev.Source, err)
		}
	}()
}

// Wait blocks until every dispatched event has been handed to the sink.
// Dispatch may not run concurrently with Wait; use Close at shutdown.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Close stops accepting events and waits for the in-flight ones. Events
// dispatched afterwards, e.g. from a guide timer firing late, are dropped.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
