package drag

import (
	"sync/atomic"
	"testing"

	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/enginesync"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

type fakeWindow struct {
	attached atomic.Int32
	detached atomic.Int32
}

func (w *fakeWindow) AttachPointerListeners(*Controller) { w.attached.Add(1) }
func (w *fakeWindow) DetachPointerListeners(*Controller) { w.detached.Add(1) }

func (w *fakeWindow) listening() int32 {
	return w.attached.Load() - w.detached.Load()
}

const (
	heroGroup  = "hero"
	heroObject = "obj-hero"
)

func setupDrag(t *testing.T) (*editor.Editor, *enginesync.Queue, StaticLayout) {
	t.Helper()
	tl := timeline.New(timeline.Settings{FilmLength: 60, ClipsPerTimeUnit: 30})
	tl.PutGroup(timeline.NewGroup(heroGroup, timeline.GroupCharacter, heroObject, "Hero"))
	q := enginesync.NewQueue(enginesync.QueueToEngine)
	ed := editor.New(tl, q, nil, nil)

	layout := StaticLayout{
		Tracks: []TrackRegion{
			{Track: timeline.TrackRef{GroupID: heroGroup, Kind: timeline.ClipAudio}, Bounds: Rect{Left: 100, Top: 0, Width: 3600, Height: 20}, ScaleFactor: 2},
			{Track: timeline.TrackRef{GroupID: heroGroup, Kind: timeline.ClipAnimation}, Bounds: Rect{Left: 100, Top: 20, Width: 3600, Height: 20}, ScaleFactor: 2},
			{Track: timeline.TrackRef{GroupID: timeline.GlobalAudioGroupID, Kind: timeline.ClipAudio}, Bounds: Rect{Left: 100, Top: 40, Width: 3600, Height: 20}, ScaleFactor: 2},
		},
		CanvasBox: &Rect{Left: 0, Top: 500, Width: 800, Height: 400},
	}
	return ed, q, layout
}

func animationItem() Item {
	return Item{Kind: ItemAnimation, MediaID: "walk", Name: "Walk", ObjectID: heroObject, Length: 30}
}

func TestController_AnimationDrop(t *testing.T) {
	ed, q, layout := setupDrag(t)
	session := NewSession()
	win := &fakeWindow{}
	c := NewController("palette", session, ed, layout, win, 4, nil)

	if !c.PointerDown(PointerEvent{Button: ButtonPrimary, X: 10, Y: 300}, animationItem()) {
		t.Fatal("PointerDown() refused")
	}
	if win.listening() != 1 {
		t.Fatal("window listeners not attached")
	}

	c.HandlePointerMove(PointerEvent{X: 140, Y: 10})
	st := session.State()
	if st.State != StateDragging {
		t.Fatalf("state = %s, want dragging", st.State)
	}
	if st.CanDrop || st.CandidateDrop != nil {
		t.Errorf("audio track accepted an animation: %+v", st)
	}

	c.HandlePointerMove(PointerEvent{X: 140, Y: 30})
	st = session.State()
	if !st.CanDrop {
		t.Fatal("own animation track rejected the drop")
	}
	if st.DropOffset != 20 {
		t.Errorf("DropOffset = %v, want 20", st.DropOffset)
	}

	drop := c.HandlePointerUp(PointerEvent{X: 140, Y: 30})
	if drop.Outcome != OutcomeDropped || drop.Result.Status != editor.StatusApplied {
		t.Fatalf("drop = %+v", drop)
	}

	clips, _ := ed.Track(timeline.TrackRef{GroupID: heroGroup, Kind: timeline.ClipAnimation})
	if len(clips) != 1 || clips[0].Offset != 20 || clips[0].MediaID != "walk" {
		t.Errorf("track = %+v", clips)
	}
	if q.Len() != 1 {
		t.Errorf("queued %d messages, want 1", q.Len())
	}

	if session.Active() || session.State().Item != nil {
		t.Error("session not cleared after drop")
	}
	if win.listening() != 0 {
		t.Error("window listeners leaked")
	}
}

func TestController_LeavingTrackClearsCandidate(t *testing.T) {
	ed, _, layout := setupDrag(t)
	session := NewSession()
	c := NewController("palette", session, ed, layout, nil, 0, nil)

	c.PointerDown(PointerEvent{X: 0, Y: 0}, animationItem())
	c.HandlePointerMove(PointerEvent{X: 200, Y: 30})
	if !session.State().CanDrop {
		t.Fatal("expected a valid candidate")
	}

	c.HandlePointerMove(PointerEvent{X: 200, Y: 1000})
	st := session.State()
	if st.CanDrop || st.CandidateDrop != nil {
		t.Errorf("stale candidate survived leaving the track: %+v", st)
	}
}

func TestController_RejectedDropStillCleansUp(t *testing.T) {
	ed, q, layout := setupDrag(t)
	ed.PlaceClip(editor.ClipPlacement{Track: timeline.TrackRef{GroupID: heroGroup, Kind: timeline.ClipAnimation}, Offset: 0, Length: 100})
	q.Drain()

	session := NewSession()
	win := &fakeWindow{}
	c := NewController("palette", session, ed, layout, win, 0, nil)

	c.PointerDown(PointerEvent{X: 0, Y: 0}, animationItem())
	c.HandlePointerMove(PointerEvent{X: 200, Y: 30})
	if session.State().CanDrop {
		t.Fatal("overlapping drop marked droppable")
	}

	drop := c.HandlePointerUp(PointerEvent{X: 200, Y: 30})
	if drop.Outcome != OutcomeCancelled {
		t.Errorf("outcome = %s, want cancelled", drop.Outcome)
	}
	if q.Len() != 0 {
		t.Error("rejected drop published a message")
	}
	if session.Active() || win.listening() != 0 {
		t.Error("cleanup skipped after rejection")
	}
}

func TestController_SecondPointerDownIgnored(t *testing.T) {
	ed, _, layout := setupDrag(t)
	session := NewSession()
	palette := NewController("palette", session, ed, layout, nil, 0, nil)
	canvas := NewController("tracks", session, ed, layout, nil, 0, nil)

	if !palette.PointerDown(PointerEvent{}, animationItem()) {
		t.Fatal("first PointerDown() refused")
	}
	if canvas.PointerDown(PointerEvent{}, Item{Kind: ItemAudio, ObjectID: heroObject, Length: 5}) {
		t.Error("second drag started while one is active")
	}
	if session.State().Item.Kind != ItemAnimation {
		t.Error("second PointerDown replaced the dragged item")
	}

	if canvas.HandlePointerUp(PointerEvent{}).Outcome != OutcomeIgnored {
		t.Error("non-owner ended the drag")
	}
	if !session.Active() {
		t.Error("non-owner cleared the session")
	}
}

func TestController_NonPrimaryButton(t *testing.T) {
	ed, _, layout := setupDrag(t)
	session := NewSession()
	c := NewController("palette", session, ed, layout, nil, 0, nil)

	if c.PointerDown(PointerEvent{Button: 2}, animationItem()) {
		t.Error("secondary button started a drag")
	}
	if session.Active() {
		t.Error("session armed by secondary button")
	}
}

func TestController_ThresholdKeepsArmed(t *testing.T) {
	ed, q, layout := setupDrag(t)
	session := NewSession()
	c := NewController("palette", session, ed, layout, nil, 10, nil)

	c.PointerDown(PointerEvent{X: 200, Y: 30}, animationItem())
	c.HandlePointerMove(PointerEvent{X: 203, Y: 31})
	if session.State().State != StateArmed {
		t.Fatalf("state = %s, want armed below threshold", session.State().State)
	}
	if c.HandlePointerUp(PointerEvent{X: 203, Y: 31}).Outcome != OutcomeCancelled {
		t.Error("click without drag placed a clip")
	}
	if q.Len() != 0 {
		t.Error("click published a message")
	}
}

func TestController_AudioCompatibility(t *testing.T) {
	ed, _, layout := setupDrag(t)
	hero, _ := ed.Group(heroGroup)
	globalAudio, _ := ed.Group(timeline.GlobalAudioGroupID)
	own := Item{Kind: ItemAudio, ObjectID: heroObject}
	unowned := Item{Kind: ItemAudio}
	other := Item{Kind: ItemAudio, ObjectID: "obj-villain"}

	heroAudio := layout.Tracks[0].Track
	globalTrack := layout.Tracks[2].Track

	if !Compatible(own, heroAudio, hero) || !Compatible(own, globalTrack, globalAudio) {
		t.Error("own audio should land on its lip-sync track and the global track")
	}
	if Compatible(unowned, heroAudio, hero) {
		t.Error("unowned audio landed on a character track")
	}
	if !Compatible(other, globalTrack, globalAudio) || Compatible(other, heroAudio, hero) {
		t.Error("foreign audio compatibility wrong")
	}
	if Compatible(Item{Kind: ItemExpression, ObjectID: heroObject}, layout.Tracks[1].Track, hero) {
		t.Error("expression landed on an animation track")
	}
	if Compatible(own, globalTrack, hero) {
		t.Error("track checked against a group it does not belong to")
	}
}

func TestController_OwnershipFromGroup(t *testing.T) {
	ed, q, layout := setupDrag(t)
	villain := ed.AddGroup(editor.GroupSpec{ObjectKind: timeline.ObjectCharacter, ObjectID: "obj-villain", Name: "Villain"})
	q.Drain()
	villainAnim := timeline.TrackRef{GroupID: villain.ID, Kind: timeline.ClipAnimation}
	layout.Tracks = append(layout.Tracks,
		TrackRegion{Track: villainAnim, Bounds: Rect{Left: 100, Top: 60, Width: 3600, Height: 20}, ScaleFactor: 2},
		TrackRegion{Track: timeline.TrackRef{GroupID: timeline.GlobalAudioGroupID, Kind: timeline.ClipAnimation}, Bounds: Rect{Left: 100, Top: 80, Width: 3600, Height: 20}, ScaleFactor: 2},
		TrackRegion{Track: timeline.TrackRef{GroupID: "ghost", Kind: timeline.ClipAnimation}, Bounds: Rect{Left: 100, Top: 100, Width: 3600, Height: 20}, ScaleFactor: 2},
	)

	session := NewSession()
	c := NewController("palette", session, ed, layout, nil, 0, nil)
	c.PointerDown(PointerEvent{}, animationItem())

	for _, y := range []float64{70, 90, 110} {
		c.HandlePointerMove(PointerEvent{X: 140, Y: y})
		if st := session.State(); st.CanDrop || st.CandidateDrop != nil {
			t.Errorf("y=%v: hero animation accepted on a foreign track: %+v", y, st)
		}
	}

	if drop := c.HandlePointerUp(PointerEvent{X: 140, Y: 70}); drop.Outcome != OutcomeCancelled {
		t.Errorf("outcome = %s, want cancelled", drop.Outcome)
	}
	if clips, _ := ed.Track(villainAnim); len(clips) != 0 {
		t.Errorf("villain track = %+v, want empty", clips)
	}
	if q.Len() != 0 {
		t.Error("refused drop published a message")
	}
}

func TestController_ReportsNeighbours(t *testing.T) {
	ed, _, layout := setupDrag(t)
	ref := timeline.TrackRef{GroupID: heroGroup, Kind: timeline.ClipAnimation}
	first := ed.PlaceClip(editor.ClipPlacement{Track: ref, Offset: 0, Length: 10})
	last := ed.PlaceClip(editor.ClipPlacement{Track: ref, Offset: 50, Length: 10})

	session := NewSession()
	c := NewController("palette", session, ed, layout, nil, 0, nil)
	c.PointerDown(PointerEvent{}, animationItem())
	c.HandlePointerMove(PointerEvent{X: 140, Y: 30})

	st := session.State()
	if !st.CanDrop {
		t.Fatalf("gap drop rejected: %+v", st)
	}
	if st.Before == nil || st.Before.ID != first.ID {
		t.Errorf("Before = %+v, want %s", st.Before, first.ID)
	}
	if st.After == nil || st.After.ID != last.ID {
		t.Errorf("After = %+v, want %s", st.After, last.ID)
	}

	c.HandlePointerMove(PointerEvent{X: 140, Y: 1000})
	if st := session.State(); st.Before != nil || st.After != nil {
		t.Errorf("neighbours survived leaving the track: %+v", st)
	}
}

func TestController_CanvasDrop(t *testing.T) {
	ed, q, layout := setupDrag(t)
	session := NewSession()
	c := NewController("palette", session, ed, layout, nil, 0, nil)

	c.PointerDown(PointerEvent{}, Item{Kind: ItemShape, Name: "Cube", ObjectID: "cube"})
	c.HandlePointerMove(PointerEvent{X: 200, Y: 30})
	if session.State().CanDrop {
		t.Error("shape droppable on a timeline track")
	}
	c.HandlePointerMove(PointerEvent{X: 300, Y: 600})
	if !session.State().OverCanvas {
		t.Fatal("canvas not detected")
	}

	drop := c.HandlePointerUp(PointerEvent{X: 300, Y: 600})
	if drop.Outcome != OutcomeDropped {
		t.Fatalf("drop = %+v", drop)
	}
	g, ok := ed.Group(drop.Result.ID)
	if !ok || g.ObjectKind != timeline.ObjectShape {
		t.Fatalf("group = %+v, %v", g, ok)
	}
	if g.Position.X != 300 || g.Position.Y != 100 {
		t.Errorf("position = %+v, want canvas-local (300,100)", g.Position)
	}
	msgs := q.Drain()
	if len(msgs) != 1 || msgs[0].Action() != enginesync.ActionAddObject {
		t.Errorf("messages = %v", msgs)
	}
}

func TestController_MoveExistingClip(t *testing.T) {
	ed, _, layout := setupDrag(t)
	ref := timeline.TrackRef{GroupID: heroGroup, Kind: timeline.ClipAnimation}
	placed := ed.PlaceClip(editor.ClipPlacement{Track: ref, Offset: 10, Length: 20})

	session := NewSession()
	c := NewController("tracks", session, ed, layout, nil, 0, nil)

	// Grab the clip 5 units into its body: x = 100 + (10+5)*2.
	c.PointerDown(PointerEvent{X: 130, Y: 30}, Item{Kind: ItemClip, ClipID: placed.ID, Track: ref, Length: 20})
	c.HandlePointerMove(PointerEvent{X: 230, Y: 30})
	if !session.State().CanDrop {
		t.Fatal("moving a clip over its own interval was rejected")
	}
	if session.State().DropOffset != 60 {
		t.Errorf("DropOffset = %v, want 60", session.State().DropOffset)
	}

	c.HandlePointerUp(PointerEvent{X: 230, Y: 30})
	got, _ := ed.Clip(placed.ID)
	if got.Offset != 60 {
		t.Errorf("clip offset = %v, want 60", got.Offset)
	}
}

func TestController_LostCapture(t *testing.T) {
	ed, _, layout := setupDrag(t)
	session := NewSession()
	win := &fakeWindow{}
	c := NewController("palette", session, ed, layout, win, 0, nil)

	c.PointerDown(PointerEvent{}, animationItem())
	c.HandlePointerMove(PointerEvent{X: 200, Y: 30})
	c.HandleLostCapture()

	if session.Active() || win.listening() != 0 {
		t.Error("lost capture did not clean up")
	}
	if n, _ := ed.Track(timeline.TrackRef{GroupID: heroGroup, Kind: timeline.ClipAnimation}); len(n) != 0 {
		t.Error("lost capture placed a clip")
	}
}
