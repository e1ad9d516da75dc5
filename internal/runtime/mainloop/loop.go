// Package mainloop provides the single scheduling context on which all
// trigger, voice and injection state is mutated.
package mainloop

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrStopped is returned when work is posted to a loop that has stopped.
var ErrStopped = errors.New("mainloop: stopped")

// Loop runs posted closures one at a time, in posting order, on one goroutine.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	done    chan struct{}
}

// New returns a loop that is not yet running.
func New() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Post enqueues fn without waiting for it to run.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStopped
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return nil
}

// Do runs fn on the loop and waits for it to finish or for ctx to end.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Run drains the queue until ctx is done or Stop is called. Work still queued
// at that point is dropped.
func (l *Loop) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, l.Stop)
	defer stop()
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.stopped {
			dropped := len(l.queue)
			l.queue = nil
			l.mu.Unlock()
			if dropped > 0 {
				log.Debugf("mainloop: dropped %d queued tasks on stop", dropped)
			}
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(fn)
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("mainloop: task panicked: %v", r)
		}
	}()
	fn()
}

// Stop ends Run after the task in progress. It is safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }
