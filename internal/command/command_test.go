package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/enginesync"
	"github.com/heimdex/timeline-agent/internal/segment"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

type fakeSegmenter struct {
	calls atomic.Int32
	err   error
	// gate, when set, blocks Segment until closed.
	gate chan struct{}
}

func (f *fakeSegmenter) Segment(ctx context.Context, req segment.Request) (segment.Result, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return segment.Result{}, f.err
	}
	id := req.VideoID + "-" + string(rune('0'+n))
	return segment.Result{MaskID: id, PreviewURL: "https://masks/" + id}, nil
}

func waitForCall(t *testing.T, f *fakeSegmenter) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("segmenter never called")
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeRenderer struct {
	mu      sync.Mutex
	preview map[string]string
	loads   int
	clears  int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{preview: make(map[string]string)}
}

func (r *fakeRenderer) LoadPreview(_ context.Context, nodeID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preview[nodeID] = url
	r.loads++
	return nil
}

func (r *fakeRenderer) ClearPreview(_ context.Context, nodeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.preview, nodeID)
	r.clears++
	return nil
}

func (r *fakeRenderer) current(nodeID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preview[nodeID]
}

type fakeNotifier struct {
	errors atomic.Int32
}

func (f *fakeNotifier) Warn(string)  {}
func (f *fakeNotifier) Error(string) { f.errors.Add(1) }

func TestPointCommand_RedoReplaysWithoutNetwork(t *testing.T) {
	seg := &fakeSegmenter{}
	rend := newFakeRenderer()
	session := NewSegmentationSession("vid", "node-1", 10)
	h := NewHistory(0, nil, nil)
	ctx := context.Background()

	cmd := NewPointCommand(session, seg, rend, segment.Point{X: 5, Y: 5, Label: segment.LabelForeground})
	ok, err := h.Do(ctx, cmd)
	if !ok || err != nil {
		t.Fatalf("Do() = %v, %v", ok, err)
	}
	r, _ := cmd.Result()
	if rend.current("node-1") != r.PreviewURL {
		t.Fatalf("preview = %q, want %q", rend.current("node-1"), r.PreviewURL)
	}

	if err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if rend.current("node-1") != "" || len(session.View().Points) != 0 {
		t.Error("undo did not restore the empty session")
	}
	if cmd.State() != StateUndone {
		t.Errorf("state = %s, want undone", cmd.State())
	}

	ok, err = h.Redo(ctx)
	if !ok || err != nil {
		t.Fatalf("Redo() = %v, %v", ok, err)
	}
	if seg.calls.Load() != 1 {
		t.Errorf("segmenter calls = %d, want 1", seg.calls.Load())
	}
	if rend.current("node-1") != r.PreviewURL {
		t.Errorf("redo preview = %q, want %q", rend.current("node-1"), r.PreviewURL)
	}
	view := session.View()
	if len(view.Points) != 1 || view.MaskID != r.MaskID {
		t.Errorf("session after redo = %+v", view)
	}
}

func TestPointCommand_UndoRestoresPreviousPreview(t *testing.T) {
	seg := &fakeSegmenter{}
	rend := newFakeRenderer()
	session := NewSegmentationSession("vid", "node-1", 0)
	h := NewHistory(0, nil, nil)
	ctx := context.Background()

	first := NewPointCommand(session, seg, rend, segment.Point{X: 1, Y: 1, Label: segment.LabelForeground})
	h.Do(ctx, first)
	second := NewPointCommand(session, seg, rend, segment.Point{X: 2, Y: 2, Label: segment.LabelBackground})
	h.Do(ctx, second)

	if len(session.View().Points) != 2 {
		t.Fatalf("points = %d, want 2", len(session.View().Points))
	}

	h.Undo(ctx)
	r1, _ := first.Result()
	if rend.current("node-1") != r1.PreviewURL {
		t.Errorf("preview after undo = %q, want first result", rend.current("node-1"))
	}
	if len(session.View().Points) != 1 {
		t.Errorf("points after undo = %d, want 1", len(session.View().Points))
	}
}

func TestPointCommand_NetworkFailure(t *testing.T) {
	seg := &fakeSegmenter{err: errors.New("connection refused")}
	rend := newFakeRenderer()
	session := NewSegmentationSession("vid", "node-1", 0)
	notify := &fakeNotifier{}
	h := NewHistory(0, notify, nil)
	ctx := context.Background()

	cmd := NewPointCommand(session, seg, rend, segment.Point{X: 1, Y: 1})
	ok, err := h.Do(ctx, cmd)
	if ok || err == nil {
		t.Fatalf("Do() = %v, %v, want failure", ok, err)
	}
	if cmd.State() != StateFailed {
		t.Errorf("state = %s, want failed", cmd.State())
	}
	if rend.loads != 0 || len(session.View().Points) != 0 {
		t.Error("failed command changed visible state")
	}
	if h.CanUndo() {
		t.Error("failed command recorded in history")
	}
	if notify.errors.Load() != 1 {
		t.Errorf("notifications = %d, want 1", notify.errors.Load())
	}

	if _, err := cmd.Execute(ctx); !errors.Is(err, ErrFailed) {
		t.Errorf("re-execute error = %v, want ErrFailed", err)
	}
	if seg.calls.Load() != 1 {
		t.Error("failed command retried the network call")
	}
}

func TestPointCommand_StaleResultDiscarded(t *testing.T) {
	gate := make(chan struct{})
	slow := &fakeSegmenter{gate: gate}
	fast := &fakeSegmenter{}
	rend := newFakeRenderer()
	session := NewSegmentationSession("vid", "node-1", 0)
	ctx := context.Background()

	stale := NewPointCommand(session, slow, rend, segment.Point{X: 1, Y: 1})
	done := make(chan error, 1)
	go func() {
		_, err := stale.Execute(ctx)
		done <- err
	}()

	waitForCall(t, slow)

	current := NewPointCommand(session, fast, rend, segment.Point{X: 2, Y: 2})
	if ok, err := current.Execute(ctx); !ok || err != nil {
		t.Fatalf("current Execute() = %v, %v", ok, err)
	}
	close(gate)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("stale Execute() error = %v, want ErrSuperseded", err)
	}
	rc, _ := current.Result()
	if rend.current("node-1") != rc.PreviewURL {
		t.Error("stale result replaced the current preview")
	}
	if stale.Stamp() >= current.Stamp() {
		t.Error("stamps not ordered")
	}
}

func TestPointCommand_ResetSupersedes(t *testing.T) {
	gate := make(chan struct{})
	seg := &fakeSegmenter{gate: gate}
	rend := newFakeRenderer()
	session := NewSegmentationSession("vid", "node-1", 0)

	cmd := NewPointCommand(session, seg, rend, segment.Point{})
	done := make(chan error, 1)
	go func() {
		_, err := cmd.Execute(context.Background())
		done <- err
	}()
	waitForCall(t, seg)
	session.Reset(40)
	close(gate)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("error = %v, want ErrSuperseded", err)
	}
	if rend.loads != 0 {
		t.Error("superseded result reached the renderer")
	}
}

func TestHistory_EmptyStacks(t *testing.T) {
	h := NewHistory(0, nil, nil)
	if err := h.Undo(context.Background()); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("Undo() = %v", err)
	}
	if _, err := h.Redo(context.Background()); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("Redo() = %v", err)
	}
}

func setupMove(t *testing.T) (*editor.Editor, *enginesync.Queue, string) {
	t.Helper()
	tl := timeline.New(timeline.Settings{FilmLength: 60, ClipsPerTimeUnit: 30})
	tl.PutGroup(timeline.NewGroup("hero", timeline.GroupCharacter, "obj-hero", "Hero"))
	q := enginesync.NewQueue(enginesync.QueueToEngine)
	ed := editor.New(tl, q, nil, nil)
	res := ed.PlaceClip(editor.ClipPlacement{Track: timeline.TrackRef{GroupID: "hero", Kind: timeline.ClipAnimation}, Offset: 0, Length: 50})
	return ed, q, res.ID
}

func TestMoveClipCommand_UndoRedo(t *testing.T) {
	ed, q, id := setupMove(t)
	h := NewHistory(0, nil, nil)
	ctx := context.Background()

	if ok, err := h.Do(ctx, NewMoveClipCommand(ed, id, 100, 40)); !ok || err != nil {
		t.Fatalf("Do() = %v, %v", ok, err)
	}
	if c, _ := ed.Clip(id); c.Offset != 100 || c.Length != 40 {
		t.Errorf("clip = %+v", c)
	}

	h.Undo(ctx)
	if c, _ := ed.Clip(id); c.Offset != 0 || c.Length != 50 {
		t.Errorf("clip after undo = %+v", c)
	}

	h.Redo(ctx)
	if c, _ := ed.Clip(id); c.Offset != 100 {
		t.Errorf("clip after redo = %+v", c)
	}

	msgs := q.Drain()
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4 (place, move, undo, redo)", len(msgs))
	}
	for _, m := range msgs[1:] {
		if m.Action() != enginesync.ActionUpdateClip {
			t.Errorf("action = %s, want UPDATE_CLIP", m.Action())
		}
	}
}

func TestMoveClipCommand_Rejected(t *testing.T) {
	ed, _, id := setupMove(t)
	h := NewHistory(0, nil, nil)

	cmd := NewMoveClipCommand(ed, id, 1790, 50)
	ok, err := h.Do(context.Background(), cmd)
	if ok || err != nil {
		t.Fatalf("Do() = %v, %v, want rejected without error", ok, err)
	}
	if cmd.Result().Status != editor.StatusRejected {
		t.Errorf("result = %+v", cmd.Result())
	}
	if cmd.State() != StateFailed || h.CanUndo() {
		t.Error("rejected move kept in history")
	}
}

func TestMoveClipCommand_NotFound(t *testing.T) {
	ed, _, _ := setupMove(t)
	cmd := NewMoveClipCommand(ed, "missing", 0, 1)
	if ok, err := cmd.Execute(context.Background()); ok || err == nil {
		t.Errorf("Execute() = %v, %v", ok, err)
	}
}

func TestSessions_Open(t *testing.T) {
	s := NewSessions()
	a := s.Open("vid", "node", 3)
	if again := s.Open("vid", "node", 3); again != a {
		t.Fatal("same video and frame should reuse the session")
	}

	gen := a.Generation()
	if s.Open("vid", "node", 4) != a {
		t.Fatal("frame change should keep the session")
	}
	if a.Generation() == gen || a.View().Frame != 4 {
		t.Errorf("frame change did not reset: %+v", a.View())
	}

	if b := s.Open("other", "node", 4); b == a {
		t.Error("new video reused the old session")
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get() found an unknown node")
	}
}

func TestPointCommand_FrameChangeSupersedesHistory(t *testing.T) {
	seg := &fakeSegmenter{}
	rend := newFakeRenderer()
	sessions := NewSessions()
	h := NewHistory(0, nil, nil)
	ctx := context.Background()

	onFirst := sessions.Open("vid", "node-1", 1)
	a := NewPointCommand(onFirst, seg, rend, segment.Point{X: 1, Y: 1, Label: segment.LabelForeground})
	if ok, err := h.Do(ctx, a); !ok || err != nil {
		t.Fatalf("Do(a) = %v, %v", ok, err)
	}

	session := sessions.Open("vid", "node-1", 5)
	b := NewPointCommand(session, seg, rend, segment.Point{X: 2, Y: 2, Label: segment.LabelForeground})
	if ok, err := h.Do(ctx, b); !ok || err != nil {
		t.Fatalf("Do(b) = %v, %v", ok, err)
	}
	rb, _ := b.Result()

	if err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo(b) error = %v", err)
	}
	loads := rend.loads
	if err := h.Undo(ctx); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Undo(a) error = %v, want ErrSuperseded", err)
	}
	if rend.loads != loads || rend.current("node-1") != "" {
		t.Error("superseded undo touched the renderer")
	}
	view := session.View()
	if view.Frame != 5 || len(view.Points) != 0 || view.PreviewURL != "" {
		t.Errorf("session after superseded undo = %+v", view)
	}
	if h.CanUndo() {
		t.Error("superseded command kept in history")
	}

	if ok, err := h.Redo(ctx); !ok || err != nil {
		t.Fatalf("Redo(b) = %v, %v", ok, err)
	}
	view = session.View()
	if len(view.Points) != 1 || view.Points[0].X != 2 || view.PreviewURL != rb.PreviewURL {
		t.Errorf("session after redo = %+v, want only b", view)
	}
	if seg.calls.Load() != 2 {
		t.Errorf("segmenter calls = %d, want 2", seg.calls.Load())
	}
}

func TestPointCommand_VideoChangeSupersedesRedo(t *testing.T) {
	seg := &fakeSegmenter{}
	rend := newFakeRenderer()
	sessions := NewSessions()
	h := NewHistory(0, nil, nil)
	ctx := context.Background()

	old := sessions.Open("vid", "node-1", 0)
	h.Do(ctx, NewPointCommand(old, seg, rend, segment.Point{X: 1, Y: 1}))
	if err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}

	fresh := sessions.Open("other", "node-1", 0)
	if fresh == old {
		t.Fatal("new video reused the old session")
	}
	loads := rend.loads
	if ok, err := h.Redo(ctx); ok || !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Redo() = %v, %v, want ErrSuperseded", ok, err)
	}
	if rend.loads != loads {
		t.Error("superseded redo loaded a preview")
	}
	if h.CanRedo() || h.CanUndo() {
		t.Error("superseded command kept in history")
	}
}
