// Package debounce provides a cancelable debounced task: rapid triggers
// collapse into one task run using the last value, a new run aborts the
// previous one and waits for it to unwind, and closing the debouncer bars
// any further runs.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Task is the unit of work a Debouncer runs. Implementations must honor ctx
// cancellation promptly; a canceled run must not publish results.
type Task func(ctx context.Context, value string)

// Debouncer arms a timer on every Trigger and runs the task once input
// activity pauses for the configured delay. Last write wins: re-triggering
// before expiry discards the armed value, never queues it.
type Debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	task   Task
	timer  *time.Timer
	cancel context.CancelFunc // cancels the in-flight task run, nil when idle
	done   chan struct{}      // closed when the in-flight task run returns
	closed bool
}

// New creates a Debouncer running task after delay of trigger inactivity.
func New(delay time.Duration, task Task) *Debouncer {
	return &Debouncer{delay: delay, task: task}
}

// Trigger arms (or re-arms) the debounce timer for the given value.
// Triggers after Close are ignored.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(value) })
}

// CancelPending discards an armed timer without touching an in-flight run.
func (d *Debouncer) CancelPending() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Close stops the timer, aborts any in-flight run, and waits for it to
// return. After Close, no task run will start and no result can land.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// fire runs the task for value, first aborting a still-outstanding previous
// run and waiting for it to return so two runs never race.
func (d *Debouncer) fire(value string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	prevCancel, prevDone := d.cancel, d.done

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel, d.done = cancel, done
	d.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	// Re-check: Close may have won the race while we awaited the abort.
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		cancel()
		close(done)
		return
	}
	d.mu.Unlock()

	defer cancel()
	defer close(done)
	d.task(ctx, value)
}
