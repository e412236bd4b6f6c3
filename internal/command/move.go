package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

// ClipEditor is the part of the editor a clip move needs.
type ClipEditor interface {
	Clip(id string) (timeline.Clip, bool)
	UpdateClip(id string, offset, length float64) editor.Result
}

// MoveClipCommand moves or resizes a clip through the editor so that undo can
// put it back. A rejected placement fails the command without an error.
type MoveClipCommand struct {
	editor ClipEditor
	clipID string
	offset float64
	length float64

	mu         sync.Mutex
	state      State
	prevOffset float64
	prevLength float64
	last       editor.Result
}

func NewMoveClipCommand(ed ClipEditor, clipID string, offset, length float64) *MoveClipCommand {
	return &MoveClipCommand{editor: ed, clipID: clipID, offset: offset, length: length, state: StateCreated}
}

func (c *MoveClipCommand) Name() string {
	return "clip move"
}

func (c *MoveClipCommand) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the editor result of the last apply.
func (c *MoveClipCommand) Result() editor.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *MoveClipCommand) Execute(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateFailed:
		return false, ErrFailed
	case StateExecuted:
		return true, nil
	case StateCreated:
		cur, ok := c.editor.Clip(c.clipID)
		if !ok {
			c.state = StateFailed
			c.last = editor.Result{Status: editor.StatusNotFound, ID: c.clipID}
			return false, fmt.Errorf("clip %s not found", c.clipID)
		}
		c.prevOffset, c.prevLength = cur.Offset, cur.Length
	}

	res := c.editor.UpdateClip(c.clipID, c.offset, c.length)
	c.last = res
	if !res.OK() {
		if c.state == StateCreated {
			c.state = StateFailed
		}
		return false, nil
	}
	c.state = StateExecuted
	return true, nil
}

func (c *MoveClipCommand) Undo(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateExecuted {
		return ErrNotUndoable
	}
	res := c.editor.UpdateClip(c.clipID, c.prevOffset, c.prevLength)
	c.last = res
	if !res.OK() {
		return fmt.Errorf("restore clip %s: %s", c.clipID, res.Status)
	}
	c.state = StateUndone
	return nil
}
