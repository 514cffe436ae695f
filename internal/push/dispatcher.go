// Package push delivers registration events to a push transport without
// blocking the request that raised them.
package push

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/passkit-server/internal/model"
)

// Pusher hands one event to the push transport.
type Pusher interface {
	Push(ctx context.Context, ev model.Event) error
}

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher queues events and feeds them to a Pusher from a fixed worker pool.
type Dispatcher struct {
	log    *zap.Logger
	pusher Pusher
	queue  chan model.Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a queue of size capacity.
func NewDispatcher(log *zap.Logger, pusher Pusher, capacity, workers int) *Dispatcher {
	if capacity <= 0 {
		capacity = 256
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{log: log, pusher: pusher, queue: make(chan model.Event, capacity)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Notify enqueues ev and returns immediately. A full queue drops the event.
func (d *Dispatcher) Notify(_ context.Context, ev model.Event) {
	if err := d.Enqueue(ev); err != nil {
		d.log.Warn("push event dropped",
			zap.Stringer("kind", ev.Kind),
			zap.String("passTypeId", ev.Pass.PassTypeID),
			zap.String("serial", ev.Pass.SerialNumber),
			zap.Error(err),
		)
	}
}

var errQueueFull = errors.New("queue full")

// Enqueue adds ev to the queue without blocking.
func (d *Dispatcher) Enqueue(ev model.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		return errQueueFull
	}
}

// Close stops accepting events and waits until queued ones are pushed or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.queue {
		// the originating request may already be gone
		if err := d.pusher.Push(context.Background(), ev); err != nil {
			d.log.Warn("push failed",
				zap.Stringer("kind", ev.Kind),
				zap.String("serial", ev.Pass.SerialNumber),
				zap.Error(err),
			)
		}
	}
}
