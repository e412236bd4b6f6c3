// Package editor applies accepted timeline mutations and publishes one engine
// message for each of them.
package editor

import (
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/heimdex/timeline-agent/internal/enginesync"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

const keyframeCollisionWarning = "only one keyframe per offset"

// ClipPlacement describes a new clip dropped on a track.
type ClipPlacement struct {
	Track       timeline.TrackRef `json:"track"`
	MediaID     string            `json:"media_id"`
	DisplayName string            `json:"display_name"`
	Offset      float64           `json:"offset"`
	Length      float64           `json:"length"`
}

// GroupSpec describes a character, object or shape dropped on the scene canvas.
type GroupSpec struct {
	ObjectKind timeline.ObjectKind `json:"object_kind"`
	ObjectID   string              `json:"object_id,omitempty"`
	MediaID    string              `json:"media_id,omitempty"`
	Name       string              `json:"name"`
	Position   timeline.Vec3       `json:"position"`
}

// Editor is the only writer of its timeline. Operations are serialized and a
// message is published before the lock is released, so queue order always
// matches acceptance order.
type Editor struct {
	mu     sync.Mutex
	tl     *timeline.Timeline
	pub    enginesync.Publisher
	notify Notifier
	logger *slog.Logger
}

func New(tl *timeline.Timeline, pub enginesync.Publisher, notify Notifier, logger *slog.Logger) *Editor {
	if notify == nil {
		notify = discardNotifier{}
	}
	return &Editor{tl: tl, pub: pub, notify: notify, logger: logger}
}

// View runs fn with read access to the timeline. fn must not retain or modify it.
func (e *Editor) View(fn func(tl *timeline.Timeline)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.tl)
}

func (e *Editor) Snapshot() timeline.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tl.Snapshot()
}

// Replace swaps in a restored timeline and publishes what the renderer needs
// to drop the old scene and build the new one.
func (e *Editor) Replace(tl *timeline.Timeline) {
	e.mu.Lock()
	defer e.mu.Unlock()

	oldGlobalMuted := false
	for _, g := range e.tl.Groups() {
		if g.ID == timeline.GlobalAudioGroupID {
			oldGlobalMuted = g.Muted
			for _, c := range g.Track(timeline.ClipAudio) {
				e.pub.Publish(enginesync.DeleteClip{Clip: c})
			}
			continue
		}
		e.pub.Publish(enginesync.DeleteObject{GroupID: g.ID, ObjectID: g.ObjectID})
	}

	e.tl = tl
	for _, g := range tl.Groups() {
		if g.ID != timeline.GlobalAudioGroupID {
			e.pub.Publish(enginesync.AddObject{
				GroupID:    g.ID,
				ObjectID:   g.ObjectID,
				ObjectKind: g.ObjectKind,
				Name:       g.DisplayName,
				Position:   g.Position,
			})
		}
		for _, kind := range timeline.TrackKinds(g.Kind) {
			for _, c := range g.Track(kind) {
				e.pub.Publish(enginesync.AddClip{Clip: c})
			}
		}
		for _, k := range g.Keyframes {
			e.pub.Publish(enginesync.AddKeyframe{Keyframe: k})
		}
		switch {
		case g.Muted && g.AcceptsMute():
			e.pub.Publish(enginesync.Mute{GroupID: g.ID, ObjectID: g.ObjectID})
		case !g.Muted && g.ID == timeline.GlobalAudioGroupID && oldGlobalMuted:
			e.pub.Publish(enginesync.Unmute{GroupID: g.ID})
		}
	}

	c := tl.Camera()
	e.pub.Publish(enginesync.ToggleCameraState{Enabled: c.Enabled})
	if c.AspectRatio > 0 {
		e.pub.Publish(enginesync.ChangeCameraAspectRatio{AspectRatio: c.AspectRatio})
	}
	e.debug("timeline replaced", "groups", len(tl.Groups()), "clips", tl.ClipCount())
}

func (e *Editor) Track(ref timeline.TrackRef) ([]timeline.Clip, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	clips, ok := e.tl.Track(ref)
	return slices.Clone(clips), ok
}

func (e *Editor) Group(id string) (*timeline.Group, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.tl.Group(id)
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

func (e *Editor) Clip(id string) (timeline.Clip, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tl.Clip(id)
}

func (e *Editor) MaxTrackLength() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tl.MaxTrackLength()
}

// KeyframesAround returns the keyframes of a group either side of offset.
func (e *Editor) KeyframesAround(groupID string, offset float64) (prev, next *timeline.Keyframe, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.tl.Group(groupID)
	if !ok {
		return nil, nil, false
	}
	if k, found := timeline.PrevKeyframe(g.Keyframes, offset); found {
		prev = &k
	}
	if k, found := timeline.NextKeyframe(g.Keyframes, offset); found {
		next = &k
	}
	return prev, next, true
}

// Counts returns the number of groups and clips.
func (e *Editor) Counts() (groups, clips int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tl.Groups()), e.tl.ClipCount()
}

// PlaceClip adds a clip to a track. A rejected placement leaves the timeline
// untouched and publishes nothing.
func (e *Editor) PlaceClip(p ClipPlacement) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.tl.Group(p.Track.GroupID)
	if !ok || !g.HasTrack(p.Track.Kind) {
		return notFound(p.Track.GroupID)
	}

	candidate := timeline.Clip{
		ID:            timeline.NewID(),
		Kind:          p.Track.Kind,
		GroupID:       g.ID,
		OwnerObjectID: g.ObjectID,
		MediaID:       p.MediaID,
		DisplayName:   p.DisplayName,
		Offset:        p.Offset,
		Length:        p.Length,
	}
	if !timeline.CanPlaceClip(candidate, g.Track(p.Track.Kind), e.tl.MaxTrackLength()) {
		e.debug("clip placement rejected", "group_id", g.ID, "track", p.Track.Kind, "offset", p.Offset, "length", p.Length)
		return rejected("", "clip overlaps or exceeds the track")
	}

	next := g.Clone()
	clips := append(next.Tracks[p.Track.Kind], candidate)
	timeline.SortClips(clips)
	next.Tracks[p.Track.Kind] = clips
	e.tl.PutGroup(next)

	e.pub.Publish(enginesync.AddClip{Clip: candidate})
	return applied(candidate.ID)
}

// UpdateClip moves or resizes a clip, validating against every other clip on its track.
func (e *Editor) UpdateClip(id string, offset, length float64) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.tl.Clip(id)
	if !ok {
		return notFound(id)
	}
	g, _ := e.tl.Group(current.GroupID)

	candidate := current
	candidate.Offset = offset
	candidate.Length = length

	others := timeline.WithoutClip(g.Track(current.Kind), id)
	if !timeline.CanPlaceClip(candidate, others, e.tl.MaxTrackLength()) {
		e.debug("clip update rejected", "clip_id", id, "offset", offset, "length", length)
		return rejected(id, "clip overlaps or exceeds the track")
	}

	clips := append(others, candidate)
	timeline.SortClips(clips)
	next := g.Clone()
	next.Tracks[current.Kind] = clips
	e.tl.PutGroup(next)

	e.pub.Publish(enginesync.UpdateClip{Clip: candidate})
	return applied(id)
}

// DeleteClip publishes DELETE_CLIP with the clip body, then removes it.
func (e *Editor) DeleteClip(id string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.tl.Clip(id)
	if !ok {
		return notFound(id)
	}
	e.pub.Publish(enginesync.DeleteClip{Clip: current})

	g, _ := e.tl.Group(current.GroupID)
	next := g.Clone()
	next.Tracks[current.Kind] = timeline.WithoutClip(g.Track(current.Kind), id)
	e.tl.PutGroup(next)
	return applied(id)
}

// SelectClip sets the selected flag of a clip. Selecting without additive
// deselects every other clip; deselecting leaves the others alone. Selection is
// display state and is not sent to the engine.
func (e *Editor) SelectClip(id string, selected, additive bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tl.Clip(id); !ok {
		return notFound(id)
	}

	for _, g := range e.tl.Groups() {
		var next *timeline.Group
		for kind, clips := range g.Tracks {
			for i, c := range clips {
				want := c.Selected
				if c.ID == id {
					want = selected
				} else if selected && !additive {
					want = false
				}
				if want == c.Selected {
					continue
				}
				if next == nil {
					next = g.Clone()
				}
				next.Tracks[kind][i].Selected = want
			}
		}
		if next != nil {
			e.tl.PutGroup(next)
		}
	}
	return applied(id)
}

// PlaceOrUpdateKeyframe inserts a keyframe or, when one already sits at offset,
// updates it in place and warns the caller.
func (e *Editor) PlaceOrUpdateKeyframe(groupID string, offset float64, transform timeline.Transform) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.tl.Group(groupID)
	if !ok {
		return notFound(groupID)
	}
	if !g.HasKeyframes() {
		return rejected("", "group does not take keyframes")
	}
	if math.IsNaN(offset) || math.IsInf(offset, 0) || offset < 0 || offset > e.tl.MaxTrackLength() {
		return rejected("", "keyframe offset outside the track")
	}

	next := g.Clone()
	if existing, hit := timeline.ResolveKeyframeCollision(offset, g.Keyframes); hit {
		updated := existing
		updated.Transform = transform
		for i := range next.Keyframes {
			if next.Keyframes[i].ID == existing.ID {
				next.Keyframes[i] = updated
			}
		}
		e.tl.PutGroup(next)
		e.pub.Publish(enginesync.UpdateKeyframe{Keyframe: updated})
		e.notify.Warn(keyframeCollisionWarning)
		return Result{Status: StatusCollidedUpdated, ID: existing.ID, Warning: keyframeCollisionWarning}
	}

	k := timeline.Keyframe{
		ID:            timeline.NewID(),
		GroupID:       g.ID,
		OwnerObjectID: g.ObjectID,
		Offset:        offset,
		Transform:     transform,
	}
	next.Keyframes = append(next.Keyframes, k)
	timeline.SortKeyframes(next.Keyframes)
	e.tl.PutGroup(next)

	e.pub.Publish(enginesync.AddKeyframe{Keyframe: k})
	return applied(k.ID)
}

// DeleteKeyframe publishes DELETE_KEYFRAME, then removes the keyframe.
func (e *Editor) DeleteKeyframe(id string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	k, ok := e.tl.Keyframe(id)
	if !ok {
		return notFound(id)
	}
	e.pub.Publish(enginesync.DeleteKeyframe{Keyframe: k})

	g, _ := e.tl.Group(k.GroupID)
	next := g.Clone()
	next.Keyframes = slices.DeleteFunc(next.Keyframes, func(x timeline.Keyframe) bool { return x.ID == id })
	e.tl.PutGroup(next)
	return applied(id)
}

// ToggleMute flips the muted flag of a group carrying audio.
func (e *Editor) ToggleMute(groupID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.tl.Group(groupID)
	if !ok {
		return notFound(groupID)
	}
	if !g.AcceptsMute() {
		return rejected(groupID, "group has no audio")
	}

	next := g.Clone()
	next.Muted = !g.Muted
	e.tl.PutGroup(next)

	if next.Muted {
		e.pub.Publish(enginesync.Mute{GroupID: g.ID, ObjectID: g.ObjectID})
	} else {
		e.pub.Publish(enginesync.Unmute{GroupID: g.ID, ObjectID: g.ObjectID})
	}
	return applied(groupID)
}

// SetMinimized collapses or expands a group row. Display only.
func (e *Editor) SetMinimized(groupID string, minimized bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.tl.Group(groupID)
	if !ok {
		return notFound(groupID)
	}
	if g.Minimized != minimized {
		next := g.Clone()
		next.Minimized = minimized
		e.tl.PutGroup(next)
	}
	return applied(groupID)
}

// AddGroup creates the timeline group for an object dropped on the canvas.
func (e *Editor) AddGroup(spec GroupSpec) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	var kind timeline.GroupKind
	switch spec.ObjectKind {
	case timeline.ObjectCharacter:
		kind = timeline.GroupCharacter
	case timeline.ObjectProp, timeline.ObjectShape:
		kind = timeline.GroupObject
	default:
		return rejected("", "unknown object kind")
	}

	objectID := spec.ObjectID
	if objectID == "" {
		objectID = timeline.NewID()
	}
	if _, exists := e.tl.GroupByObject(objectID); exists {
		return rejected("", "object already has a group")
	}

	g := timeline.NewGroup(timeline.NewID(), kind, objectID, spec.Name)
	g.ObjectKind = spec.ObjectKind
	g.Position = spec.Position
	e.tl.PutGroup(g)

	e.pub.Publish(enginesync.AddObject{
		GroupID:    g.ID,
		ObjectID:   objectID,
		ObjectKind: spec.ObjectKind,
		MediaID:    spec.MediaID,
		Name:       spec.Name,
		Position:   spec.Position,
	})
	return applied(g.ID)
}

// RemoveGroup deletes a group with every clip and keyframe it owns. The global
// audio group cannot be removed.
func (e *Editor) RemoveGroup(groupID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.tl.Group(groupID)
	if !ok {
		return notFound(groupID)
	}
	if g.ID == timeline.GlobalAudioGroupID {
		return rejected(groupID, "global audio group cannot be removed")
	}

	e.pub.Publish(enginesync.DeleteObject{GroupID: g.ID, ObjectID: g.ObjectID})
	e.tl.RemoveGroup(groupID)
	return applied(groupID)
}

func (e *Editor) ToggleCameraState() Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.tl.Camera()
	c.Enabled = !c.Enabled
	e.tl.SetCamera(c)

	e.pub.Publish(enginesync.ToggleCameraState{Enabled: c.Enabled})
	return applied("")
}

func (e *Editor) ChangeCameraAspectRatio(ratio float64) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return rejected("", "aspect ratio must be positive")
	}
	c := e.tl.Camera()
	c.AspectRatio = ratio
	e.tl.SetCamera(c)

	e.pub.Publish(enginesync.ChangeCameraAspectRatio{AspectRatio: ratio})
	return applied("")
}

func (e *Editor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
