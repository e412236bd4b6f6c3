package editor

import (
	"sync"
	"time"
)

type Status string

const (
	StatusApplied         Status = "applied"
	StatusRejected        Status = "rejected"
	StatusCollidedUpdated Status = "collided_updated"
	StatusNotFound        Status = "not_found"
)

// Result is what every mutation returns. A rejected placement is a normal
// outcome of live dragging and is reported here rather than as an error.
type Result struct {
	Status  Status `json:"status"`
	ID      string `json:"id,omitempty"`
	Warning string `json:"warning,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// OK reports whether the timeline changed.
func (r Result) OK() bool {
	return r.Status == StatusApplied || r.Status == StatusCollidedUpdated
}

func applied(id string) Result {
	return Result{Status: StatusApplied, ID: id}
}

func rejected(id, reason string) Result {
	return Result{Status: StatusRejected, ID: id, Reason: reason}
}

func notFound(id string) Result {
	return Result{Status: StatusNotFound, ID: id}
}

// Notifier receives fire-and-forget user notifications.
type Notifier interface {
	Warn(msg string)
	Error(msg string)
}

type ToastLevel string

const (
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

type Toast struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// Toasts keeps the most recent notifications for the UI to poll.
type Toasts struct {
	limit int

	mu    sync.Mutex
	items []Toast
}

func NewToasts(limit int) *Toasts {
	if limit <= 0 {
		limit = 50
	}
	return &Toasts{limit: limit}
}

func (t *Toasts) Warn(msg string) {
	t.add(ToastWarning, msg)
}

func (t *Toasts) Error(msg string) {
	t.add(ToastError, msg)
}

func (t *Toasts) add(level ToastLevel, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, Toast{Level: level, Message: msg, At: time.Now()})
	if len(t.items) > t.limit {
		t.items = t.items[len(t.items)-t.limit:]
	}
}

// Recent returns stored toasts, oldest first.
func (t *Toasts) Recent() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Toast, len(t.items))
	copy(out, t.items)
	return out
}

type discardNotifier struct{}

func (discardNotifier) Warn(string)  {}
func (discardNotifier) Error(string) {}
