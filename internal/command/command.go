// Package command wraps interactive operations in reversible units and keeps
// the undo/redo history.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/heimdex/timeline-agent/internal/editor"
)

type State string

const (
	StateCreated   State = "created"
	StateExecuting State = "executing"
	StateExecuted  State = "executed"
	StateFailed    State = "failed"
	StateUndone    State = "undone"
)

var (
	// ErrFailed is returned when Execute is called again on a failed command.
	// A failed command is discarded; retry with a new one.
	ErrFailed = errors.New("command failed and cannot be re-executed")
	// ErrSuperseded is returned when a result arrives after a newer operation
	// replaced the one that requested it. The result is discarded.
	ErrSuperseded  = errors.New("command result superseded")
	ErrInProgress  = errors.New("command is executing")
	ErrNotUndoable = errors.New("command is not in an undoable state")

	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Command is one reversible operation. Execute performs it the first time and
// replays the recorded result on redo. Undo reverses only the local, visible effect.
type Command interface {
	Name() string
	State() State
	Execute(ctx context.Context) (bool, error)
	Undo(ctx context.Context) error
}

// History is an undo/redo stack of executed commands.
type History struct {
	limit  int
	notify editor.Notifier
	logger *slog.Logger

	mu   sync.Mutex
	undo []Command
	redo []Command
}

func NewHistory(limit int, notify editor.Notifier, logger *slog.Logger) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{limit: limit, notify: notify, logger: logger}
}

// Do executes cmd and records it when it succeeds. A new command clears the redo stack.
func (h *History) Do(ctx context.Context, cmd Command) (bool, error) {
	ok, err := cmd.Execute(ctx)
	if !ok {
		h.failed(cmd, err)
		return false, err
	}

	h.mu.Lock()
	h.undo = append(h.undo, cmd)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
	h.mu.Unlock()
	return true, nil
}

// Undo reverses the latest command. A superseded command is dropped from the
// history and its error returned.
func (h *History) Undo(ctx context.Context) error {
	h.mu.Lock()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return ErrNothingToUndo
	}
	cmd := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.mu.Unlock()

	if err := cmd.Undo(ctx); err != nil {
		if !errors.Is(err, ErrSuperseded) {
			h.mu.Lock()
			h.undo = append(h.undo, cmd)
			h.mu.Unlock()
		}
		return err
	}

	h.mu.Lock()
	h.redo = append(h.redo, cmd)
	h.mu.Unlock()
	return nil
}

func (h *History) Redo(ctx context.Context) (bool, error) {
	h.mu.Lock()
	if len(h.redo) == 0 {
		h.mu.Unlock()
		return false, ErrNothingToRedo
	}
	cmd := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.mu.Unlock()

	ok, err := cmd.Execute(ctx)
	if !ok {
		h.failed(cmd, err)
		if cmd.State() == StateUndone {
			h.mu.Lock()
			h.redo = append(h.redo, cmd)
			h.mu.Unlock()
		}
		return false, err
	}

	h.mu.Lock()
	h.undo = append(h.undo, cmd)
	h.mu.Unlock()
	return true, nil
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = nil
	h.redo = nil
}

// Len returns the sizes of the undo and redo stacks.
func (h *History) Len() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}

// failed logs a command failure and shows it to the user. Superseded results
// are dropped quietly.
func (h *History) failed(cmd Command, err error) {
	if err == nil || errors.Is(err, ErrSuperseded) {
		return
	}
	if h.logger != nil {
		h.logger.Warn("command failed", "command", cmd.Name(), "error", err)
	}
	if h.notify != nil {
		h.notify.Error(fmt.Sprintf("%s failed, try again", cmd.Name()))
	}
}
