package drag

import "github.com/heimdex/timeline-agent/internal/timeline"

type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Left+r.Width && p.Y >= r.Top && p.Y < r.Top+r.Height
}

// TrackRegion is the on-screen box of one track. ScaleFactor is pixels per timeline unit.
type TrackRegion struct {
	Track       timeline.TrackRef `json:"track"`
	Bounds      Rect              `json:"bounds"`
	ScaleFactor float64           `json:"scale_factor"`
}

// Offset converts a pointer x coordinate into a timeline offset on this track.
func (r TrackRegion) Offset(x float64) float64 {
	if r.ScaleFactor <= 0 {
		return 0
	}
	return (x - r.Bounds.Left) / r.ScaleFactor
}

// Layout answers hit tests against the current screen geometry.
type Layout interface {
	TrackAt(p Point) (TrackRegion, bool)
	Canvas() (Rect, bool)
}

// StaticLayout is a fixed set of track regions and an optional canvas.
type StaticLayout struct {
	Tracks    []TrackRegion `json:"tracks"`
	CanvasBox *Rect         `json:"canvas,omitempty"`
}

func (l StaticLayout) TrackAt(p Point) (TrackRegion, bool) {
	for _, r := range l.Tracks {
		if r.Bounds.Contains(p) {
			return r, true
		}
	}
	return TrackRegion{}, false
}

func (l StaticLayout) Canvas() (Rect, bool) {
	if l.CanvasBox == nil {
		return Rect{}, false
	}
	return *l.CanvasBox, true
}

// Compatible reports whether a dragged item may land on a track of group.
// Ownership comes from the group, never from the screen geometry.
func Compatible(item Item, track timeline.TrackRef, group *timeline.Group) bool {
	kind, ok := item.clipKind()
	if !ok || group == nil || track.GroupID != group.ID || track.Kind != kind || !group.HasTrack(kind) {
		return false
	}
	switch item.Kind {
	case ItemAnimation, ItemExpression:
		return item.ObjectID != "" && group.ObjectID == item.ObjectID
	case ItemAudio:
		if group.Kind == timeline.GroupAudio {
			return true
		}
		return item.ObjectID != "" && group.ObjectID == item.ObjectID
	case ItemClip:
		return track == item.Track
	default:
		return false
	}
}
