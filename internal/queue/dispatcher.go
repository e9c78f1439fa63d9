package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink is what the dispatcher forwards to; *Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

var (
	ErrDispatcherFull   = errors.New("event buffer full")
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)

// Dispatcher decouples request handling from the broker.  Publish only
// enqueues; a single worker forwards events in order.  Events that do not
// fit in the buffer are dropped and reported.
type Dispatcher struct {
	sink    Sink
	events  chan OrderEvent
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sink Sink, buffer int, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{sink: sink, events: make(chan OrderEvent, buffer), timeout: 5 * time.Second, logger: logger}
	d.wg.Add(1)
	go d.run()
	return d
}

// Publish enqueues ev without blocking.  After Close it returns
// ErrDispatcherClosed.
func (d *Dispatcher) Publish(_ context.Context, ev OrderEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.events <- ev:
		return nil
	default:
		return ErrDispatcherFull
	}
}

// Close stops accepting events and waits until the buffer is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.events {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sink.Publish(ctx, ev); err != nil {
			d.logger.Warn("dispatch lifecycle event", zap.String("type", ev.Type), zap.Error(err))
		}
		cancel()
	}
}
