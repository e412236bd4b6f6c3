package timeline

import (
	"testing"
)

func testSettings() Settings {
	return Settings{FilmLength: 60, ClipsPerTimeUnit: 30}
}

func TestNew_HasGlobalAudio(t *testing.T) {
	tl := New(testSettings())

	g, ok := tl.Group(GlobalAudioGroupID)
	if !ok {
		t.Fatal("global audio group missing")
	}
	if g.Kind != GroupAudio {
		t.Errorf("global group kind = %s, want %s", g.Kind, GroupAudio)
	}
	if !g.HasTrack(ClipAudio) {
		t.Error("global audio group has no audio track")
	}
	if tl.MaxTrackLength() != 1800 {
		t.Errorf("MaxTrackLength() = %v, want 1800", tl.MaxTrackLength())
	}
}

func TestPutGroup_ReplacesAndIndexes(t *testing.T) {
	tl := New(testSettings())
	g := NewGroup("c1", GroupCharacter, "obj-1", "Hero")
	tl.PutGroup(g)

	before := tl.Version()
	next := g.Clone()
	next.Tracks[ClipAnimation] = append(next.Tracks[ClipAnimation], Clip{ID: "clip-1", Kind: ClipAnimation, GroupID: "c1", Offset: 0, Length: 10})
	tl.PutGroup(next)

	if tl.Version() <= before {
		t.Error("version did not advance on replace")
	}
	if len(g.Track(ClipAnimation)) != 0 {
		t.Error("Clone shared track storage with the original group")
	}
	if _, ok := tl.Clip("clip-1"); !ok {
		t.Error("Clip() did not find the clip after replace")
	}
	got, _ := tl.Group("c1")
	if got == g {
		t.Error("Group() returned the replaced pointer")
	}
	if len(tl.Groups()) != 2 {
		t.Errorf("Groups() len = %d, want 2", len(tl.Groups()))
	}
}

func TestRemoveGroup_DropsOwnedItems(t *testing.T) {
	tl := New(testSettings())
	g := NewGroup("c1", GroupCharacter, "obj-1", "Hero")
	g.Tracks[ClipAudio] = []Clip{{ID: "clip-1", Kind: ClipAudio, GroupID: "c1", Length: 5}}
	g.Keyframes = []Keyframe{{ID: "k1", GroupID: "c1", Offset: 3}}
	tl.PutGroup(g)

	if !tl.RemoveGroup("c1") {
		t.Fatal("RemoveGroup() = false")
	}
	if _, ok := tl.Clip("clip-1"); ok {
		t.Error("clip survived its group")
	}
	if _, ok := tl.Keyframe("k1"); ok {
		t.Error("keyframe survived its group")
	}
	if tl.RemoveGroup("c1") {
		t.Error("second RemoveGroup() = true")
	}
}

func TestGroupByObject(t *testing.T) {
	tl := New(testSettings())
	tl.PutGroup(NewGroup("o1", GroupObject, "obj-9", "Chair"))

	g, ok := tl.GroupByObject("obj-9")
	if !ok || g.ID != "o1" {
		t.Fatalf("GroupByObject() = %v, %v", g, ok)
	}
	if _, ok := tl.GroupByObject(""); ok {
		t.Error("GroupByObject(\"\") should not match the global audio group")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tl := New(testSettings())
	g := NewGroup("c1", GroupCharacter, "obj-1", "Hero")
	g.Tracks[ClipAnimation] = []Clip{
		{ID: "b", Kind: ClipAnimation, GroupID: "c1", Offset: 50, Length: 10},
		{ID: "a", Kind: ClipAnimation, GroupID: "c1", Offset: 0, Length: 10},
	}
	tl.PutGroup(g)

	restored, err := FromSnapshot(tl.Snapshot())
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}

	track, ok := restored.Track(TrackRef{GroupID: "c1", Kind: ClipAnimation})
	if !ok || len(track) != 2 {
		t.Fatalf("restored track = %v, %v", track, ok)
	}
	if track[0].ID != "a" {
		t.Errorf("restored track not sorted: first = %s", track[0].ID)
	}
}

func TestFromSnapshot_RejectsOverlap(t *testing.T) {
	s := Snapshot{
		Settings: testSettings(),
		Groups: []Group{{
			ID:   "c1",
			Kind: GroupObject,
			Tracks: map[ClipKind][]Clip{
				ClipAnimation: {
					{ID: "a", Kind: ClipAnimation, GroupID: "c1", Offset: 0, Length: 100},
					{ID: "b", Kind: ClipAnimation, GroupID: "c1", Offset: 50, Length: 20},
				},
			},
		}},
	}

	if _, err := FromSnapshot(s); err == nil {
		t.Fatal("FromSnapshot() should reject overlapping clips")
	}
}

func TestFromSnapshot_RejectsDuplicateKeyframeOffset(t *testing.T) {
	s := Snapshot{
		Settings: testSettings(),
		Groups: []Group{{
			ID:        "c1",
			Kind:      GroupObject,
			Keyframes: []Keyframe{{ID: "k1", GroupID: "c1", Offset: 30}, {ID: "k2", GroupID: "c1", Offset: 30}},
		}},
	}

	if _, err := FromSnapshot(s); err == nil {
		t.Fatal("FromSnapshot() should reject two keyframes at one offset")
	}
}

func TestFromSnapshot_RejectsForeignOrDuplicateItems(t *testing.T) {
	clip := func(id, group string, offset float64) Clip {
		return Clip{ID: id, Kind: ClipAnimation, GroupID: group, Offset: offset, Length: 10}
	}
	tests := []struct {
		name   string
		groups []Group
	}{
		{
			name: "keyframe of another group",
			groups: []Group{{ID: "c1", Kind: GroupObject, ObjectID: "obj-1",
				Keyframes: []Keyframe{{ID: "k1", GroupID: "c2", OwnerObjectID: "obj-1", Offset: 3}}}},
		},
		{
			name: "keyframe of another object",
			groups: []Group{{ID: "c1", Kind: GroupObject, ObjectID: "obj-1",
				Keyframes: []Keyframe{{ID: "k1", GroupID: "c1", OwnerObjectID: "obj-2", Offset: 3}}}},
		},
		{
			name: "keyframe on audio group",
			groups: []Group{{ID: "a1", Kind: GroupAudio,
				Keyframes: []Keyframe{{ID: "k1", GroupID: "a1", Offset: 3}}}},
		},
		{
			name: "clip id reused across groups",
			groups: []Group{
				{ID: "c1", Kind: GroupObject, Tracks: map[ClipKind][]Clip{ClipAnimation: {clip("x", "c1", 0)}}},
				{ID: "c2", Kind: GroupObject, Tracks: map[ClipKind][]Clip{ClipAnimation: {clip("x", "c2", 20)}}},
			},
		},
		{
			name: "keyframe id reused across groups",
			groups: []Group{
				{ID: "c1", Kind: GroupObject, Keyframes: []Keyframe{{ID: "k1", GroupID: "c1", Offset: 3}}},
				{ID: "c2", Kind: GroupObject, Keyframes: []Keyframe{{ID: "k1", GroupID: "c2", Offset: 3}}},
			},
		},
		{
			name: "keyframe id equal to clip id",
			groups: []Group{{ID: "c1", Kind: GroupObject,
				Tracks:    map[ClipKind][]Clip{ClipAnimation: {clip("x", "c1", 0)}},
				Keyframes: []Keyframe{{ID: "x", GroupID: "c1", Offset: 3}}}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromSnapshot(Snapshot{Settings: testSettings(), Groups: tc.groups}); err == nil {
				t.Fatal("FromSnapshot() accepted the snapshot")
			}
		})
	}
}

func TestFromSnapshot_AddsGlobalAudio(t *testing.T) {
	tl, err := FromSnapshot(Snapshot{Settings: testSettings()})
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}
	if _, ok := tl.Group(GlobalAudioGroupID); !ok {
		t.Error("global audio group missing after restore")
	}
}
