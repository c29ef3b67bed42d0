// Package loop provides the single goroutine that owns the map engine.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// ErrStopped is returned when work is handed to a loop that is not running.
var ErrStopped = fmt.Errorf("main loop stopped: %w", domain.ErrUnavailable)

var _ output.Scheduler = (*Loop)(nil)

// Loop runs posted functions one at a time on its own goroutine.
type Loop struct {
	tasks  chan func()
	logger *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a loop whose queue holds up to queueSize pending functions.
func New(logger *slog.Logger, queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Loop{
		tasks:  make(chan func(), queueSize),
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start runs the loop until ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	l.logger.Debug("main loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("main loop stopped: context canceled")
			l.Stop()
			return
		case <-l.stopCh:
			l.logger.Debug("main loop stopped")
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic on main loop: %v", r)
			l.logger.Error("main loop task panicked", "panic", r)
		}
	}()
	fn()
	return nil
}

// Stop signals the loop to exit after the running function returns and does
// not block; use Wait to wait for the exit. Functions still queued are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Wait blocks until the loop goroutine has exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Stopped reports whether Stop was called.
func (l *Loop) Stopped() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

// Post queues fn without waiting. It reports false if the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	if l.Stopped() {
		return false
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stopCh:
		return false
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan error, 1)
	task := func() { done <- l.exec(fn) }

	if l.Stopped() {
		return ErrStopped
	}
	select {
	case l.tasks <- task:
	case <-l.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-l.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc runs fn on the loop once d has passed. Cancelling after fn was
// queued but before it ran still prevents it from running.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() {
	var cancelled atomic.Bool
	timer := time.AfterFunc(d, func() {
		l.Post(func() {
			if !cancelled.Load() {
				fn()
			}
		})
	})
	return func() {
		cancelled.Store(true)
		timer.Stop()
	}
}
