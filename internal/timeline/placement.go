package timeline

import (
	"cmp"
	"math"
	"slices"
	"sort"
)

// Overlaps reports whether two clips on the same track collide. Intervals are
// half-open, so a clip starting exactly where another ends is adjacent, not
// overlapping. Equal offsets always collide, which also covers zero-length clips.
func Overlaps(a, b Clip) bool {
	if a.Offset == b.Offset {
		return true
	}
	return a.Offset < b.End() && b.Offset < a.End()
}

// CanPlaceClip reports whether candidate fits on a track holding existing
// without overlapping any clip and without running past trackMaxLength.
// existing must not contain the candidate itself.
func CanPlaceClip(candidate Clip, existing []Clip, trackMaxLength float64) bool {
	if !finite(candidate.Offset) || !finite(candidate.Length) {
		return false
	}
	if candidate.Offset < 0 || candidate.Length < 0 {
		return false
	}
	if candidate.End() > trackMaxLength {
		return false
	}
	for _, e := range existing {
		if Overlaps(candidate, e) {
			return false
		}
	}
	return true
}

// ResolveKeyframeCollision returns the keyframe sitting exactly at offset, if any.
func ResolveKeyframeCollision(offset float64, existing []Keyframe) (Keyframe, bool) {
	for _, k := range existing {
		if k.Offset == offset {
			return k, true
		}
	}
	return Keyframe{}, false
}

// WithoutClip returns clips minus the clip with the given id.
func WithoutClip(clips []Clip, id string) []Clip {
	out := make([]Clip, 0, len(clips))
	for _, c := range clips {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func SortClips(clips []Clip) {
	slices.SortStableFunc(clips, func(a, b Clip) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
}

func SortKeyframes(keyframes []Keyframe) {
	slices.SortStableFunc(keyframes, func(a, b Keyframe) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
}

// PrevClip returns the last clip starting strictly before offset.
func PrevClip(clips []Clip, offset float64) (Clip, bool) {
	i := sort.Search(len(clips), func(i int) bool { return clips[i].Offset >= offset })
	if i == 0 {
		return Clip{}, false
	}
	return clips[i-1], true
}

// NextClip returns the first clip starting strictly after offset.
func NextClip(clips []Clip, offset float64) (Clip, bool) {
	i := sort.Search(len(clips), func(i int) bool { return clips[i].Offset > offset })
	if i == len(clips) {
		return Clip{}, false
	}
	return clips[i], true
}

// PrevKeyframe returns the last keyframe strictly before offset.
func PrevKeyframe(keyframes []Keyframe, offset float64) (Keyframe, bool) {
	i := sort.Search(len(keyframes), func(i int) bool { return keyframes[i].Offset >= offset })
	if i == 0 {
		return Keyframe{}, false
	}
	return keyframes[i-1], true
}

// NextKeyframe returns the first keyframe strictly after offset.
func NextKeyframe(keyframes []Keyframe, offset float64) (Keyframe, bool) {
	i := sort.Search(len(keyframes), func(i int) bool { return keyframes[i].Offset > offset })
	if i == len(keyframes) {
		return Keyframe{}, false
	}
	return keyframes[i], true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
