package command

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/heimdex/timeline-agent/internal/segment"
)

// Renderer is the small set of imperative renderer calls the command layer
// needs. Both calls return once the renderer confirms or rejects them.
type Renderer interface {
	LoadPreview(ctx context.Context, nodeID, url string) error
	ClearPreview(ctx context.Context, nodeID string) error
}

// SegmentationSession holds the visible state of one point-picking session:
// the points stack and the preview currently loaded into the renderer node.
// Generation advances on every execute, undo and reset; a command whose stamp
// no longer matches has been superseded. Epoch advances on reset only; commands
// recorded under an older epoch can no longer be undone or redone.
type SegmentationSession struct {
	VideoID string
	NodeID  string

	mu         sync.Mutex
	frame      int
	points     []segment.Point
	preview    string
	maskID     string
	generation uint64
	epoch      uint64
}

func NewSegmentationSession(videoID, nodeID string, frame int) *SegmentationSession {
	return &SegmentationSession{VideoID: videoID, NodeID: nodeID, frame: frame}
}

type SessionView struct {
	VideoID    string          `json:"video_id"`
	NodeID     string          `json:"node_id"`
	Frame      int             `json:"frame"`
	Points     []segment.Point `json:"points"`
	PreviewURL string          `json:"preview_url,omitempty"`
	MaskID     string          `json:"mask_id,omitempty"`
	Generation uint64          `json:"generation"`
}

func (s *SegmentationSession) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		VideoID:    s.VideoID,
		NodeID:     s.NodeID,
		Frame:      s.frame,
		Points:     slices.Clone(s.points),
		PreviewURL: s.preview,
		MaskID:     s.maskID,
		Generation: s.generation,
	}
}

func (s *SegmentationSession) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Reset moves the session to another frame and drops the points stack. Any
// request still in flight is superseded.
func (s *SegmentationSession) Reset(frame int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.points = nil
	s.preview = ""
	s.maskID = ""
	s.generation++
	s.epoch++
}

// retire supersedes everything issued against a session that has been replaced.
func (s *SegmentationSession) retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.epoch++
}

type visible struct {
	points  []segment.Point
	preview string
	maskID  string
}

// begin advances the generation and returns the new stamp, the epoch and frame
// it was issued under, and the state to restore on undo.
func (s *SegmentationSession) begin() (stamp, epoch uint64, frame int, before visible) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation, s.epoch, s.frame, visible{points: slices.Clone(s.points), preview: s.preview, maskID: s.maskID}
}

// commit applies v if stamp is still current.
func (s *SegmentationSession) commit(stamp uint64, v visible) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != stamp {
		return false
	}
	s.points = slices.Clone(v.points)
	s.preview = v.preview
	s.maskID = v.maskID
	return true
}

// restore applies v if the session is still in epoch.
func (s *SegmentationSession) restore(epoch uint64, v visible) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.generation++
	s.points = slices.Clone(v.points)
	s.preview = v.preview
	s.maskID = v.maskID
	return true
}

func (s *SegmentationSession) isCurrent(stamp uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == stamp
}

func (s *SegmentationSession) inEpoch(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// PointCommand adds one point to a segmentation session and shows the
// resulting mask preview.
type PointCommand struct {
	session   *SegmentationSession
	segmenter segment.Segmenter
	renderer  Renderer
	point     segment.Point

	mu     sync.Mutex
	state  State
	stamp  uint64
	epoch  uint64
	before visible
	after  visible
	result *segment.Result
}

func NewPointCommand(session *SegmentationSession, segmenter segment.Segmenter, renderer Renderer, p segment.Point) *PointCommand {
	return &PointCommand{
		session:   session,
		segmenter: segmenter,
		renderer:  renderer,
		point:     p,
		state:     StateCreated,
	}
}

func (c *PointCommand) Name() string {
	return "segmentation point"
}

func (c *PointCommand) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stamp returns the session generation this command was issued under.
func (c *PointCommand) Stamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stamp
}

// Result returns the recorded segmentation result, if any.
func (c *PointCommand) Result() (segment.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return segment.Result{}, false
	}
	return *c.result, true
}

// Execute calls the segmenter on first run. After an undo it replays the
// recorded result without a network call.
func (c *PointCommand) Execute(ctx context.Context) (bool, error) {
	c.mu.Lock()
	switch c.state {
	case StateFailed:
		c.mu.Unlock()
		return false, ErrFailed
	case StateExecuting:
		c.mu.Unlock()
		return false, ErrInProgress
	case StateExecuted:
		c.mu.Unlock()
		return true, nil
	case StateUndone:
		c.mu.Unlock()
		return c.replay(ctx)
	}
	c.state = StateExecuting
	c.mu.Unlock()

	stamp, epoch, frame, before := c.session.begin()
	points := append(slices.Clone(before.points), c.point)

	c.mu.Lock()
	c.stamp = stamp
	c.epoch = epoch
	c.before = before
	c.mu.Unlock()

	res, err := c.segmenter.Segment(ctx, segment.Request{
		VideoID: c.session.VideoID,
		Frame:   frame,
		Points:  points,
	})
	if err != nil {
		return c.fail(fmt.Errorf("segment points: %w", err))
	}
	if !c.session.isCurrent(stamp) {
		return c.fail(ErrSuperseded)
	}
	if err := c.renderer.LoadPreview(ctx, c.session.NodeID, res.PreviewURL); err != nil {
		return c.fail(fmt.Errorf("load preview: %w", err))
	}

	after := visible{points: points, preview: res.PreviewURL, maskID: res.MaskID}
	if !c.session.commit(stamp, after) {
		return c.fail(ErrSuperseded)
	}

	c.mu.Lock()
	c.after = after
	c.result = &res
	c.state = StateExecuted
	c.mu.Unlock()
	return true, nil
}

// replay reapplies the recorded result. A session reset since the command
// ran supersedes it.
func (c *PointCommand) replay(ctx context.Context) (bool, error) {
	c.mu.Lock()
	after, epoch := c.after, c.epoch
	c.mu.Unlock()

	if !c.session.inEpoch(epoch) {
		return c.fail(ErrSuperseded)
	}
	if err := c.renderer.LoadPreview(ctx, c.session.NodeID, after.preview); err != nil {
		return false, fmt.Errorf("load preview: %w", err)
	}
	if !c.session.restore(epoch, after) {
		return c.fail(ErrSuperseded)
	}

	c.mu.Lock()
	c.state = StateExecuted
	c.mu.Unlock()
	return true, nil
}

func (c *PointCommand) fail(err error) (bool, error) {
	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()
	return false, err
}

// Undo restores the previous points stack and preview. Server-side masks are
// left alone. After a session reset the command is superseded and fails.
func (c *PointCommand) Undo(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateExecuted {
		c.mu.Unlock()
		return ErrNotUndoable
	}
	before, epoch := c.before, c.epoch
	c.mu.Unlock()

	if !c.session.inEpoch(epoch) {
		_, err := c.fail(ErrSuperseded)
		return err
	}

	var err error
	if before.preview == "" {
		err = c.renderer.ClearPreview(ctx, c.session.NodeID)
	} else {
		err = c.renderer.LoadPreview(ctx, c.session.NodeID, before.preview)
	}
	if err != nil {
		return fmt.Errorf("restore preview: %w", err)
	}
	if !c.session.restore(epoch, before) {
		_, err := c.fail(ErrSuperseded)
		return err
	}

	c.mu.Lock()
	c.state = StateUndone
	c.mu.Unlock()
	return nil
}

// Sessions holds one segmentation session per renderer node.
type Sessions struct {
	mu sync.Mutex
	m  map[string]*SegmentationSession
}

func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*SegmentationSession)}
}

// Open returns the session for nodeID. A different video or frame resets it,
// superseding anything still in flight.
func (s *Sessions) Open(videoID, nodeID string, frame int) *SegmentationSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[nodeID]
	if !ok || sess.VideoID != videoID {
		if ok {
			sess.retire()
		}
		sess = NewSegmentationSession(videoID, nodeID, frame)
		s.m[nodeID] = sess
		return sess
	}
	if sess.View().Frame != frame {
		sess.Reset(frame)
	}
	return sess
}

func (s *Sessions) Get(nodeID string) (*SegmentationSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[nodeID]
	return sess, ok
}
