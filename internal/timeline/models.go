// Package timeline holds the clip/keyframe data model of a scene timeline and the
// pure placement rules that keep it consistent.
package timeline

import (
	"maps"
	"slices"

	"github.com/google/uuid"
)

type ClipKind string

const (
	ClipAnimation  ClipKind = "animation"
	ClipExpression ClipKind = "expression"
	ClipAudio      ClipKind = "audio"
)

type GroupKind string

const (
	GroupCharacter GroupKind = "character"
	GroupObject    GroupKind = "object"
	GroupAudio     GroupKind = "audio"
)

// ObjectKind distinguishes what was dropped on the scene canvas. Objects and
// shapes both live in object groups.
type ObjectKind string

const (
	ObjectCharacter ObjectKind = "character"
	ObjectProp      ObjectKind = "object"
	ObjectShape     ObjectKind = "shape"
)

// GlobalAudioGroupID is the id of the single scene-wide audio group.
const GlobalAudioGroupID = "global-audio"

// TrackRef identifies one track: a clip kind inside a group.
type TrackRef struct {
	GroupID string   `json:"group_id" yaml:"group_id"`
	Kind    ClipKind `json:"kind" yaml:"kind"`
}

type Clip struct {
	ID            string   `json:"clip_id" yaml:"clip_id"`
	Kind          ClipKind `json:"kind" yaml:"kind"`
	GroupID       string   `json:"group_id" yaml:"group_id"`
	OwnerObjectID string   `json:"owner_object_id,omitempty" yaml:"owner_object_id,omitempty"`
	MediaID       string   `json:"media_id" yaml:"media_id"`
	DisplayName   string   `json:"display_name" yaml:"display_name"`
	Offset        float64  `json:"offset" yaml:"offset"`
	Length        float64  `json:"length" yaml:"length"`
	Selected      bool     `json:"selected" yaml:"selected"`
}

// End returns the exclusive end of the clip interval.
func (c Clip) End() float64 {
	return c.Offset + c.Length
}

func (c Clip) Track() TrackRef {
	return TrackRef{GroupID: c.GroupID, Kind: c.Kind}
}

type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

type Transform struct {
	Position Vec3 `json:"position" yaml:"position"`
	Rotation Vec3 `json:"rotation" yaml:"rotation"`
	Scale    Vec3 `json:"scale" yaml:"scale"`
}

type Keyframe struct {
	ID            string    `json:"keyframe_id" yaml:"keyframe_id"`
	GroupID       string    `json:"group_id" yaml:"group_id"`
	OwnerObjectID string    `json:"owner_object_id" yaml:"owner_object_id"`
	Offset        float64   `json:"offset" yaml:"offset"`
	Transform     Transform `json:"transform" yaml:"transform"`
	Selected      bool      `json:"selected" yaml:"selected"`
}

// Group exclusively owns its tracks and keyframes. Groups stored in a Timeline
// are treated as immutable values: edits build a new Group via Clone and swap it in.
type Group struct {
	ID          string              `json:"group_id" yaml:"group_id"`
	Kind        GroupKind           `json:"kind" yaml:"kind"`
	ObjectID    string              `json:"object_id,omitempty" yaml:"object_id,omitempty"`
	ObjectKind  ObjectKind          `json:"object_kind,omitempty" yaml:"object_kind,omitempty"`
	DisplayName string              `json:"display_name" yaml:"display_name"`
	Muted       bool                `json:"muted" yaml:"muted"`
	Minimized   bool                `json:"minimized" yaml:"minimized"`
	Position    Vec3                `json:"position" yaml:"position"`
	Tracks      map[ClipKind][]Clip `json:"tracks" yaml:"tracks"`
	Keyframes   []Keyframe          `json:"keyframes" yaml:"keyframes"`
}

// TrackKinds returns the tracks a group of the given kind carries.
func TrackKinds(kind GroupKind) []ClipKind {
	switch kind {
	case GroupCharacter:
		return []ClipKind{ClipAnimation, ClipExpression, ClipAudio}
	case GroupObject:
		return []ClipKind{ClipAnimation}
	case GroupAudio:
		return []ClipKind{ClipAudio}
	default:
		return nil
	}
}

// NewGroup returns an empty group with every track its kind carries.
func NewGroup(id string, kind GroupKind, objectID, name string) *Group {
	g := &Group{
		ID:          id,
		Kind:        kind,
		ObjectID:    objectID,
		DisplayName: name,
		Tracks:      make(map[ClipKind][]Clip),
	}
	for _, k := range TrackKinds(kind) {
		g.Tracks[k] = []Clip{}
	}
	return g
}

func (g *Group) HasTrack(kind ClipKind) bool {
	_, ok := g.Tracks[kind]
	return ok
}

// Track returns the clips on one track, sorted by offset. The slice must not be modified.
func (g *Group) Track(kind ClipKind) []Clip {
	return g.Tracks[kind]
}

// HasKeyframes reports whether keyframes can be placed on the group.
func (g *Group) HasKeyframes() bool {
	return g.Kind == GroupCharacter || g.Kind == GroupObject
}

// AcceptsMute reports whether the group carries audio that can be muted.
func (g *Group) AcceptsMute() bool {
	return g.HasTrack(ClipAudio)
}

// Clone returns a deep copy that can be edited without affecting readers of g.
func (g *Group) Clone() *Group {
	c := *g
	c.Tracks = maps.Clone(g.Tracks)
	if c.Tracks == nil {
		c.Tracks = make(map[ClipKind][]Clip)
	}
	for k, clips := range c.Tracks {
		c.Tracks[k] = slices.Clone(clips)
	}
	c.Keyframes = slices.Clone(g.Keyframes)
	return &c
}

// NewID returns a fresh identifier for clips, keyframes and groups.
func NewID() string {
	return uuid.NewString()
}
