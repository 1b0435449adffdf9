// Package runloop provides the single cooperative scheduling context that
// owns all selection, overlay and capture state. Platform callbacks, timer
// ticks and API requests are posted as closures and executed one at a time
// on the goroutine running Run, so the state they touch needs no locking.
package runloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Call once the loop has exited.
var ErrStopped = errors.New("run loop stopped")

// Loop is a FIFO of closures drained by a single goroutine
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
	running atomic.Bool
}

// New creates an idle loop. Closures posted before Run are kept and run
// once Run starts.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It never blocks and is safe from any goroutine,
// including the loop itself. Returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish. It must not be
// called from the loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The closure may have run just before shutdown.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled. Closures still queued at
// that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("run loop already running")
	}
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

// Task is a periodic job created by Every. Cancel is its cancellation token.
type Task struct {
	cancelled atomic.Bool
	pending   atomic.Bool
	stop      chan struct{}
	once      sync.Once
}

// Cancel stops the task. A tick already queued on the loop is discarded
// when it reaches the front of the queue. Safe to call more than once.
func (t *Task) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.stop)
	})
}

// Cancelled reports whether Cancel has been called
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// Every runs fn on the loop once per period until the task is cancelled.
// Ticks that fire while a previous tick is still queued are dropped, so at
// most one invocation of fn is outstanding at any time.
func (l *Loop) Every(period time.Duration, fn func()) *Task {
	t := &Task{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				if !t.pending.CompareAndSwap(false, true) {
					continue
				}
				l.Post(func() {
					t.pending.Store(false)
					if t.Cancelled() {
						return
					}
					fn()
				})
			}
		}
	}()

	return t
}
