package enginesync

import (
	"sync"
	"time"
)

// Publisher is the write side of the queue used by mutation operations.
type Publisher interface {
	Publish(p Payload)
}

// Queue is an unbounded FIFO. Publish never blocks the caller, so pointer-driven
// mutations stay responsive while the renderer is busy.
type Queue struct {
	name  string
	now   func() time.Time
	ready chan struct{}

	mu      sync.Mutex
	pending []Message
	seq     uint64
}

func NewQueue(name string) *Queue {
	return &Queue{
		name:  name,
		now:   time.Now,
		ready: make(chan struct{}, 1),
	}
}

func (q *Queue) Name() string {
	return q.name
}

// Publish appends one message. It returns no completion signal.
func (q *Queue) Publish(p Payload) {
	if p == nil {
		return
	}
	q.mu.Lock()
	q.seq++
	q.pending = append(q.pending, Message{
		Seq:         q.seq,
		QueueName:   q.name,
		Data:        p,
		PublishedAt: q.now(),
	})
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns every pending message in publish order.
func (q *Queue) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Ready is signalled after a publish. A single signal may cover several messages.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of messages not yet drained.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Published returns the sequence number of the last published message.
func (q *Queue) Published() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}
