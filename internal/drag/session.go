// Package drag turns pointer input into placement decisions. One Controller
// exists per interactive surface; all of them share one Session, which holds
// the single drag that may be active at a time.
package drag

import (
	"math"
	"sync"

	"github.com/heimdex/timeline-agent/internal/timeline"
)

type ItemKind string

const (
	ItemAnimation  ItemKind = "animation"
	ItemExpression ItemKind = "expression"
	ItemAudio      ItemKind = "audio"
	ItemCharacter  ItemKind = "character"
	ItemObject     ItemKind = "object"
	ItemShape      ItemKind = "shape"
	// ItemClip is an already placed clip being moved along its track.
	ItemClip ItemKind = "clip"
)

// Item is what is being dragged.
type Item struct {
	Kind     ItemKind `json:"kind"`
	MediaID  string   `json:"media_id,omitempty"`
	Name     string   `json:"name"`
	ObjectID string   `json:"object_id,omitempty"`
	Length   float64  `json:"length"`

	ClipID string            `json:"clip_id,omitempty"`
	Track  timeline.TrackRef `json:"track,omitempty"`
}

// OnCanvas reports whether the item is dropped on the scene canvas rather than a track.
func (i Item) OnCanvas() bool {
	return i.Kind == ItemCharacter || i.Kind == ItemObject || i.Kind == ItemShape
}

func (i Item) clipKind() (timeline.ClipKind, bool) {
	switch i.Kind {
	case ItemAnimation:
		return timeline.ClipAnimation, true
	case ItemExpression:
		return timeline.ClipExpression, true
	case ItemAudio:
		return timeline.ClipAudio, true
	case ItemClip:
		return i.Track.Kind, true
	default:
		return "", false
	}
}

func (i Item) objectKind() timeline.ObjectKind {
	switch i.Kind {
	case ItemCharacter:
		return timeline.ObjectCharacter
	case ItemShape:
		return timeline.ObjectShape
	default:
		return timeline.ObjectProp
	}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

type State string

const (
	StateIdle     State = "idle"
	StateArmed    State = "armed"
	StateDragging State = "dragging"
)

// SessionState is a copy of the session fields, for display.
type SessionState struct {
	State         State              `json:"state"`
	Item          *Item              `json:"dragged_item"`
	Start         Point              `json:"start"`
	Pointer       Point              `json:"pointer"`
	CandidateDrop *timeline.TrackRef `json:"candidate_drop_target"`
	OverCanvas    bool               `json:"over_canvas"`
	CanDrop       bool               `json:"can_drop"`
	DropOffset    float64            `json:"drop_offset"`
	// Before and After are the clips either side of the drop offset on the candidate track.
	Before *timeline.Clip `json:"before,omitempty"`
	After  *timeline.Clip `json:"after,omitempty"`
}

// Session is the single drag slot. Whoever begins a drag owns it until reset,
// and every other begin attempt is refused in the meantime.
type Session struct {
	mu    sync.Mutex
	owner *Controller
	st    SessionState

	// grab is the distance, in timeline units, between a moved clip's start and the pointer.
	grab float64
}

func NewSession() *Session {
	return &Session{st: SessionState{State: StateIdle}}
}

// State returns a copy of the current drag state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.st
	if s.st.Item != nil {
		item := *s.st.Item
		out.Item = &item
	}
	if s.st.CandidateDrop != nil {
		ref := *s.st.CandidateDrop
		out.CandidateDrop = &ref
	}
	if s.st.Before != nil {
		c := *s.st.Before
		out.Before = &c
	}
	if s.st.After != nil {
		c := *s.st.After
		out.After = &c
	}
	return out
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner != nil
}

func (s *Session) begin(owner *Controller, item Item, p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != nil {
		return false
	}
	s.owner = owner
	s.grab = 0
	s.st = SessionState{State: StateArmed, Item: &item, Start: p, Pointer: p}
	return true
}

func (s *Session) ownedBy(c *Controller) bool {
	return s.owner == c
}

func (s *Session) reset() {
	s.owner = nil
	s.grab = 0
	s.st = SessionState{State: StateIdle}
}
