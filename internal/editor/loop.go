package editor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when an event is posted to a stopped loop.
var ErrClosed = errors.New("session is closed")

const eventQueueSize = 64

// Loop is the session's single event queue. Every state change runs as an
// event on the goroutine that calls Run, so events never overlap. Loop also
// schedules playback ticks and dispatches remote calls, posting their
// completions back as events.
type Loop struct {
	events   chan func()
	done     chan struct{}
	stopOnce sync.Once

	interval time.Duration

	// Owned by the loop goroutine.
	timer *time.Timer
	gen   uint64

	calls sync.WaitGroup
}

// NewLoop creates a loop that fires scheduled ticks after interval.
func NewLoop(interval time.Duration) *Loop {
	return &Loop{
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
		interval: interval,
	}
}

// Run consumes events until ctx is cancelled. after is called after every
// event, on the loop goroutine.
func (l *Loop) Run(ctx context.Context, after func()) {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.events:
			fn()
			if after != nil {
				after()
			}
		}
	}
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		if l.timer != nil {
			l.timer.Stop()
		}
	})
}

// Post queues fn. It reports false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	select {
	case l.events <- func() { res <- fn() }:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-res:
		return err
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule implements playback.Scheduler. It must be called on the loop.
// A tick already queued when Schedule or Cancel is called again is dropped.
func (l *Loop) Schedule(fn func()) {
	l.Cancel()
	gen := l.gen
	l.timer = time.AfterFunc(l.interval, func() {
		l.Post(func() {
			if l.gen == gen {
				fn()
			}
		})
	})
}

// Cancel implements playback.Scheduler. It must be called on the loop.
func (l *Loop) Cancel() {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// Go implements Dispatcher. Calls are never cancelled; a completion that
// arrives after the loop stopped is dropped.
func (l *Loop) Go(call func(ctx context.Context) func()) {
	l.calls.Add(1)
	go func() {
		defer l.calls.Done()
		complete := call(context.Background())
		if complete != nil {
			l.Post(complete)
		}
	}()
}

// Wait blocks until every dispatched call has returned.
func (l *Loop) Wait() {
	l.calls.Wait()
}
