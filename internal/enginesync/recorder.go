package enginesync

import (
	"context"
	"sync"
)

// Recorder is an in-memory sink that keeps every delivered message.
type Recorder struct {
	name string

	mu   sync.Mutex
	msgs []Message
}

func NewRecorder(name string) *Recorder {
	return &Recorder{name: name}
}

func (r *Recorder) Name() string {
	return r.name
}

func (r *Recorder) Deliver(_ context.Context, msg Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *Recorder) Actions() []Action {
	msgs := r.Messages()
	out := make([]Action, len(msgs))
	for i, m := range msgs {
		out[i] = m.Action()
	}
	return out
}
