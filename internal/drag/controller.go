package drag

import (
	"log/slog"

	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

const ButtonPrimary = 0

type PointerEvent struct {
	Button int     `json:"button"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (e PointerEvent) point() Point {
	return Point{X: e.X, Y: e.Y}
}

// Window owns the window-level listeners that keep tracking the pointer once it
// leaves the surface the drag started on.
type Window interface {
	AttachPointerListeners(c *Controller)
	DetachPointerListeners(c *Controller)
}

// Target reads tracks and applies accepted drops.
type Target interface {
	Group(id string) (*timeline.Group, bool)
	Track(ref timeline.TrackRef) ([]timeline.Clip, bool)
	MaxTrackLength() float64
	PlaceClip(p editor.ClipPlacement) editor.Result
	UpdateClip(id string, offset, length float64) editor.Result
	AddGroup(spec editor.GroupSpec) editor.Result
}

type Outcome string

const (
	OutcomeDropped   Outcome = "dropped"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeIgnored   Outcome = "ignored"
)

// Drop reports how a drag ended.
type Drop struct {
	Outcome Outcome       `json:"outcome"`
	Result  editor.Result `json:"result"`
}

// Controller drives one draggable surface. It never suspends: every handler
// runs to completion against the current layout and timeline.
type Controller struct {
	name      string
	session   *Session
	target    Target
	layout    Layout
	window    Window
	threshold float64
	logger    *slog.Logger
}

func NewController(name string, session *Session, target Target, layout Layout, window Window, threshold float64, logger *slog.Logger) *Controller {
	return &Controller{
		name:      name,
		session:   session,
		target:    target,
		layout:    layout,
		window:    window,
		threshold: threshold,
		logger:    logger,
	}
}

func (c *Controller) Name() string {
	return c.name
}

// SetLayout replaces the geometry used for hit testing.
func (c *Controller) SetLayout(l Layout) {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	c.layout = l
}

// PointerDown arms a drag of item. It returns false when the press is not the
// primary button or another drag already holds the session.
func (c *Controller) PointerDown(ev PointerEvent, item Item) bool {
	if ev.Button != ButtonPrimary {
		return false
	}
	if !c.session.begin(c, item, ev.point()) {
		c.debug("pointerdown ignored, drag already active")
		return false
	}

	if item.Kind == ItemClip {
		c.session.mu.Lock()
		if region, ok := c.layout.TrackAt(ev.point()); ok && region.Track == item.Track {
			if clip, found := c.findClip(item); found {
				c.session.grab = region.Offset(ev.X) - clip.Offset
			}
		}
		c.session.mu.Unlock()
	}

	if c.window != nil {
		c.window.AttachPointerListeners(c)
	}
	return true
}

// HandlePointerMove updates the pointer and recomputes the drop candidate.
// Nothing is cached between moves.
func (c *Controller) HandlePointerMove(ev PointerEvent) {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ownedBy(c) {
		return
	}

	p := ev.point()
	s.st.Pointer = p
	if s.st.State == StateArmed {
		if p.distance(s.st.Start) < c.threshold {
			return
		}
		s.st.State = StateDragging
	}
	c.evaluate(p)
}

func (c *Controller) evaluate(p Point) {
	s := c.session
	item := *s.st.Item

	s.st.CandidateDrop = nil
	s.st.OverCanvas = false
	s.st.CanDrop = false
	s.st.DropOffset = 0
	s.st.Before = nil
	s.st.After = nil

	if item.OnCanvas() {
		if canvas, ok := c.layout.Canvas(); ok && canvas.Contains(p) {
			s.st.OverCanvas = true
			s.st.CanDrop = true
		}
		return
	}

	region, ok := c.layout.TrackAt(p)
	if !ok {
		return
	}
	group, ok := c.target.Group(region.Track.GroupID)
	if !ok || !Compatible(item, region.Track, group) {
		return
	}
	existing := group.Track(region.Track.Kind)

	offset := region.Offset(p.X)
	candidate := timeline.Clip{Offset: offset, Length: item.Length}
	if item.Kind == ItemClip {
		offset -= s.grab
		candidate.Offset = offset
		existing = timeline.WithoutClip(existing, item.ClipID)
	}

	ref := region.Track
	s.st.CandidateDrop = &ref
	s.st.DropOffset = offset
	s.st.CanDrop = timeline.CanPlaceClip(candidate, existing, c.target.MaxTrackLength())
	if prev, ok := timeline.PrevClip(existing, offset); ok {
		s.st.Before = &prev
	}
	if next, ok := timeline.NextClip(existing, offset); ok {
		s.st.After = &next
	}
}

// HandlePointerUp ends the drag. An accepted drop dispatches the mutation that
// matches the item; the session is cleared and listeners detached either way.
func (c *Controller) HandlePointerUp(ev PointerEvent) Drop {
	s := c.session
	s.mu.Lock()
	if !s.ownedBy(c) {
		s.mu.Unlock()
		return Drop{Outcome: OutcomeIgnored}
	}
	st := s.st
	if st.State == StateDragging {
		st.Pointer = ev.point()
	}
	s.reset()
	s.mu.Unlock()
	defer c.detach()

	if st.State != StateDragging || !st.CanDrop || st.Item == nil {
		return Drop{Outcome: OutcomeCancelled}
	}

	res := c.dispatch(*st.Item, st)
	if !res.OK() {
		c.debug("drop not applied", "status", res.Status, "reason", res.Reason)
		return Drop{Outcome: OutcomeCancelled, Result: res}
	}
	return Drop{Outcome: OutcomeDropped, Result: res}
}

// HandleLostCapture cancels the drag.
func (c *Controller) HandleLostCapture() {
	s := c.session
	s.mu.Lock()
	owned := s.ownedBy(c)
	if owned {
		s.reset()
	}
	s.mu.Unlock()
	if owned {
		c.detach()
	}
}

func (c *Controller) dispatch(item Item, st SessionState) editor.Result {
	if item.OnCanvas() {
		canvas, _ := c.layout.Canvas()
		return c.target.AddGroup(editor.GroupSpec{
			ObjectKind: item.objectKind(),
			ObjectID:   item.ObjectID,
			MediaID:    item.MediaID,
			Name:       item.Name,
			Position:   timeline.Vec3{X: st.Pointer.X - canvas.Left, Y: st.Pointer.Y - canvas.Top},
		})
	}
	if st.CandidateDrop == nil {
		return editor.Result{Status: editor.StatusRejected}
	}
	if item.Kind == ItemClip {
		return c.target.UpdateClip(item.ClipID, st.DropOffset, item.Length)
	}
	return c.target.PlaceClip(editor.ClipPlacement{
		Track:       *st.CandidateDrop,
		MediaID:     item.MediaID,
		DisplayName: item.Name,
		Offset:      st.DropOffset,
		Length:      item.Length,
	})
}

func (c *Controller) findClip(item Item) (timeline.Clip, bool) {
	clips, ok := c.target.Track(item.Track)
	if !ok {
		return timeline.Clip{}, false
	}
	for _, cl := range clips {
		if cl.ID == item.ClipID {
			return cl, true
		}
	}
	return timeline.Clip{}, false
}

func (c *Controller) detach() {
	if c.window != nil {
		c.window.DetachPointerListeners(c)
	}
}

func (c *Controller) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, append([]any{"surface", c.name}, args...)...)
	}
}
