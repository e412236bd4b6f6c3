package enginesync

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Sink receives dispatched messages. Deliver must not block for long; a sink
// that cannot keep up should fail the delivery instead.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// Dispatcher drains a Queue and fans every message out to the registered sinks
// in publish order. Failed deliveries are logged and never retried.
type Dispatcher struct {
	queue  *Queue
	logger *slog.Logger

	mu    sync.RWMutex
	sinks map[string]Sink

	deliverMu sync.Mutex
	running   atomic.Bool
	paused    atomic.Bool
	delivered atomic.Uint64
	failures  atomic.Uint64
}

func NewDispatcher(queue *Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  queue,
		logger: logger,
		sinks:  make(map[string]Sink),
	}
}

// Subscribe registers a sink and returns a function that removes it. Messages
// dispatched before the sink subscribed are not replayed to it.
func (d *Dispatcher) Subscribe(s Sink) func() {
	d.mu.Lock()
	d.sinks[s.Name()] = s
	d.mu.Unlock()
	d.logger.Info("engine sink subscribed", "sink", s.Name())

	return func() {
		d.mu.Lock()
		if cur, ok := d.sinks[s.Name()]; ok && cur == s {
			delete(d.sinks, s.Name())
		}
		d.mu.Unlock()
		d.logger.Info("engine sink unsubscribed", "sink", s.Name())
	}
}

func (d *Dispatcher) SinkCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sinks)
}

// Start delivers messages until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.running.Swap(true) {
		return
	}
	defer d.running.Store(false)

	d.logger.Info("engine dispatcher started", "queue", d.queue.Name())

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("engine dispatcher stopping", "pending", d.queue.Len())
			return
		case <-d.queue.Ready():
			if !d.paused.Load() {
				d.Flush(ctx)
			}
		}
	}
}

// Flush synchronously delivers every pending message.
func (d *Dispatcher) Flush(ctx context.Context) int {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	msgs := d.queue.Drain()
	if len(msgs) == 0 {
		return 0
	}

	sinks := d.snapshotSinks()
	for _, msg := range msgs {
		for _, s := range sinks {
			if err := s.Deliver(ctx, msg); err != nil {
				d.failures.Add(1)
				d.logger.Warn("engine message not delivered",
					"sink", s.Name(),
					"seq", msg.Seq,
					"action", msg.Action(),
					"error", err,
				)
			}
		}
		d.delivered.Add(1)
	}
	return len(msgs)
}

// Pause holds messages in the queue. Order is kept; nothing is dropped.
func (d *Dispatcher) Pause() {
	d.paused.Store(true)
	d.logger.Info("engine dispatcher paused")
}

// Resume delivers everything held while paused.
func (d *Dispatcher) Resume(ctx context.Context) {
	d.paused.Store(false)
	d.logger.Info("engine dispatcher resumed")
	d.Flush(ctx)
}

func (d *Dispatcher) IsPaused() bool {
	return d.paused.Load()
}

func (d *Dispatcher) IsRunning() bool {
	return d.running.Load()
}

// Delivered returns the number of messages dispatched so far.
func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}

func (d *Dispatcher) Failures() uint64 {
	return d.failures.Load()
}

func (d *Dispatcher) snapshotSinks() []Sink {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Sink, 0, len(d.sinks))
	for _, s := range d.sinks {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
