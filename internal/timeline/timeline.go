package timeline

import (
	"fmt"
	"slices"
)

// Settings bound the length of every track.
type Settings struct {
	FilmLength       float64 `json:"film_length" yaml:"film_length"`                 // seconds
	ClipsPerTimeUnit float64 `json:"clips_per_time_unit" yaml:"clips_per_time_unit"` // timeline units per second
}

// MaxTrackLength returns the track length bound in timeline units.
func (s Settings) MaxTrackLength() float64 {
	return s.FilmLength * s.ClipsPerTimeUnit
}

type Camera struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	AspectRatio float64 `json:"aspect_ratio" yaml:"aspect_ratio"`
}

// Timeline owns all groups of a scene. Groups are looked up by id; the order
// slice only drives row display.
//
// Timeline is not safe for concurrent use. The editor serializes access.
type Timeline struct {
	settings Settings
	camera   Camera
	groups   map[string]*Group
	order    []string
	clips    map[string]TrackRef
	keys     map[string]string
	version  uint64
}

// New returns a timeline holding only the global audio group.
func New(settings Settings) *Timeline {
	t := &Timeline{
		settings: settings,
		camera:   Camera{Enabled: true, AspectRatio: 16.0 / 9.0},
		groups:   make(map[string]*Group),
		clips:    make(map[string]TrackRef),
		keys:     make(map[string]string),
	}
	t.PutGroup(NewGroup(GlobalAudioGroupID, GroupAudio, "", "Global Audio"))
	return t
}

func (t *Timeline) Settings() Settings {
	return t.settings
}

func (t *Timeline) MaxTrackLength() float64 {
	return t.settings.MaxTrackLength()
}

func (t *Timeline) Camera() Camera {
	return t.camera
}

// Version increases on every change to the timeline.
func (t *Timeline) Version() uint64 {
	return t.version
}

func (t *Timeline) Group(id string) (*Group, bool) {
	g, ok := t.groups[id]
	return g, ok
}

func (t *Timeline) GroupByObject(objectID string) (*Group, bool) {
	if objectID == "" {
		return nil, false
	}
	for _, g := range t.groups {
		if g.ObjectID == objectID {
			return g, true
		}
	}
	return nil, false
}

// Groups returns the groups in display order.
func (t *Timeline) Groups() []*Group {
	out := make([]*Group, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.groups[id])
	}
	return out
}

func (t *Timeline) Track(ref TrackRef) ([]Clip, bool) {
	g, ok := t.groups[ref.GroupID]
	if !ok || !g.HasTrack(ref.Kind) {
		return nil, false
	}
	return g.Track(ref.Kind), true
}

func (t *Timeline) Clip(id string) (Clip, bool) {
	ref, ok := t.clips[id]
	if !ok {
		return Clip{}, false
	}
	for _, c := range t.groups[ref.GroupID].Track(ref.Kind) {
		if c.ID == id {
			return c, true
		}
	}
	return Clip{}, false
}

func (t *Timeline) Keyframe(id string) (Keyframe, bool) {
	groupID, ok := t.keys[id]
	if !ok {
		return Keyframe{}, false
	}
	for _, k := range t.groups[groupID].Keyframes {
		if k.ID == id {
			return k, true
		}
	}
	return Keyframe{}, false
}

// ClipCount returns the number of clips across every track.
func (t *Timeline) ClipCount() int {
	return len(t.clips)
}

// PutGroup inserts g or replaces the group with the same id. Callers hand over
// ownership of g and must not modify it afterwards.
func (t *Timeline) PutGroup(g *Group) {
	if old, ok := t.groups[g.ID]; ok {
		t.unindex(old)
	} else {
		t.order = append(t.order, g.ID)
	}
	t.groups[g.ID] = g
	t.index(g)
	t.version++
}

// RemoveGroup drops a group together with every clip and keyframe it owns.
func (t *Timeline) RemoveGroup(id string) bool {
	g, ok := t.groups[id]
	if !ok {
		return false
	}
	t.unindex(g)
	delete(t.groups, id)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == id })
	t.version++
	return true
}

func (t *Timeline) SetCamera(c Camera) {
	t.camera = c
	t.version++
}

func (t *Timeline) index(g *Group) {
	for kind, clips := range g.Tracks {
		for _, c := range clips {
			t.clips[c.ID] = TrackRef{GroupID: g.ID, Kind: kind}
		}
	}
	for _, k := range g.Keyframes {
		t.keys[k.ID] = g.ID
	}
}

func (t *Timeline) unindex(g *Group) {
	for _, clips := range g.Tracks {
		for _, c := range clips {
			delete(t.clips, c.ID)
		}
	}
	for _, k := range g.Keyframes {
		delete(t.keys, k.ID)
	}
}

// Snapshot is a self-contained copy of a timeline, used for scene files and API reads.
type Snapshot struct {
	Settings Settings `json:"settings" yaml:"settings"`
	Camera   Camera   `json:"camera" yaml:"camera"`
	Version  uint64   `json:"version" yaml:"version"`
	Groups   []Group  `json:"groups" yaml:"groups"`
}

func (t *Timeline) Snapshot() Snapshot {
	s := Snapshot{
		Settings: t.settings,
		Camera:   t.camera,
		Version:  t.version,
		Groups:   make([]Group, 0, len(t.order)),
	}
	for _, g := range t.Groups() {
		s.Groups = append(s.Groups, *g.Clone())
	}
	return s
}

// FromSnapshot rebuilds a timeline, re-sorting collections and checking that
// clips and keyframes satisfy the placement rules.
func FromSnapshot(s Snapshot) (*Timeline, error) {
	if s.Settings.MaxTrackLength() <= 0 {
		return nil, fmt.Errorf("invalid settings: track length must be positive")
	}

	t := &Timeline{
		settings: s.Settings,
		camera:   s.Camera,
		groups:   make(map[string]*Group),
		clips:    make(map[string]TrackRef),
		keys:     make(map[string]string),
	}

	seen := make(map[string]bool)
	for i := range s.Groups {
		g := s.Groups[i].Clone()
		if g.ID == "" {
			return nil, fmt.Errorf("group %d has no id", i)
		}
		if _, dup := t.groups[g.ID]; dup {
			return nil, fmt.Errorf("duplicate group %s", g.ID)
		}
		for _, kind := range TrackKinds(g.Kind) {
			if !g.HasTrack(kind) {
				g.Tracks[kind] = []Clip{}
			}
		}
		for kind, clips := range g.Tracks {
			if !slices.Contains(TrackKinds(g.Kind), kind) {
				return nil, fmt.Errorf("group %s cannot hold a %s track", g.ID, kind)
			}
			SortClips(clips)
			for j, c := range clips {
				if c.ID == "" || c.GroupID != g.ID || c.Kind != kind {
					return nil, fmt.Errorf("clip %q does not belong to track %s/%s", c.ID, g.ID, kind)
				}
				if seen[c.ID] {
					return nil, fmt.Errorf("duplicate id %s", c.ID)
				}
				seen[c.ID] = true
				if !CanPlaceClip(c, clips[:j], s.Settings.MaxTrackLength()) {
					return nil, fmt.Errorf("clip %s overlaps or exceeds track %s/%s", c.ID, g.ID, kind)
				}
			}
		}
		if !g.HasKeyframes() && len(g.Keyframes) > 0 {
			return nil, fmt.Errorf("group %s cannot hold keyframes", g.ID)
		}
		SortKeyframes(g.Keyframes)
		for j, k := range g.Keyframes {
			if k.ID == "" || k.GroupID != g.ID || k.OwnerObjectID != g.ObjectID {
				return nil, fmt.Errorf("keyframe %q does not belong to group %s", k.ID, g.ID)
			}
			if seen[k.ID] {
				return nil, fmt.Errorf("duplicate id %s", k.ID)
			}
			seen[k.ID] = true
			if j > 0 && g.Keyframes[j-1].Offset == k.Offset {
				return nil, fmt.Errorf("group %s has two keyframes at offset %v", g.ID, k.Offset)
			}
		}
		t.PutGroup(g)
	}

	if _, ok := t.groups[GlobalAudioGroupID]; !ok {
		t.PutGroup(NewGroup(GlobalAudioGroupID, GroupAudio, "", "Global Audio"))
	}
	t.version = s.Version
	return t, nil
}
