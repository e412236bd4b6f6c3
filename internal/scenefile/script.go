package scenefile

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

type Op string

const (
	OpAddGroup       Op = "add_group"
	OpRemoveGroup    Op = "remove_group"
	OpPlaceClip      Op = "place_clip"
	OpUpdateClip     Op = "update_clip"
	OpDeleteClip     Op = "delete_clip"
	OpSelectClip     Op = "select_clip"
	OpKeyframe       Op = "keyframe"
	OpDeleteKeyframe Op = "delete_keyframe"
	OpToggleMute     Op = "toggle_mute"
	OpMinimize       Op = "minimize"
	OpToggleCamera   Op = "toggle_camera"
	OpAspectRatio    Op = "aspect_ratio"
)

// Step is one editor operation. Group, Clip and Keyframe accept either a
// literal id or a name bound by an earlier step's As field.
type Step struct {
	Op Op     `yaml:"op"`
	As string `yaml:"as,omitempty"`

	Group    string            `yaml:"group,omitempty"`
	Track    timeline.ClipKind `yaml:"track,omitempty"`
	Clip     string            `yaml:"clip,omitempty"`
	Keyframe string            `yaml:"keyframe,omitempty"`

	ObjectKind timeline.ObjectKind `yaml:"object_kind,omitempty"`
	ObjectID   string              `yaml:"object_id,omitempty"`
	MediaID    string              `yaml:"media_id,omitempty"`
	Name       string              `yaml:"name,omitempty"`
	Position   timeline.Vec3       `yaml:"position,omitempty"`

	Offset    float64            `yaml:"offset,omitempty"`
	Length    float64            `yaml:"length,omitempty"`
	Transform timeline.Transform `yaml:"transform,omitempty"`

	Additive    bool    `yaml:"additive,omitempty"`
	Minimized   bool    `yaml:"minimized,omitempty"`
	AspectRatio float64 `yaml:"aspect_ratio,omitempty"`
}

// Script is a replayable list of steps. Scene, when set, names a scene file
// the steps start from; otherwise an empty timeline with Settings is used.
type Script struct {
	Settings timeline.Settings `yaml:"settings"`
	Scene    string            `yaml:"scene,omitempty"`
	Steps    []Step            `yaml:"steps"`
}

// StepResult pairs a step with what the editor made of it.
type StepResult struct {
	Index  int           `json:"index"`
	Op     Op            `json:"op"`
	Result editor.Result `json:"result"`
}

func DecodeScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	for i, st := range s.Steps {
		if !st.Op.valid() {
			return nil, fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
	}
	return &s, nil
}

func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return DecodeScript(f)
}

// Timeline returns the starting timeline for the script.
func (s *Script) Timeline() (*timeline.Timeline, error) {
	if s.Scene != "" {
		return Load(s.Scene)
	}
	if s.Settings.MaxTrackLength() <= 0 {
		return nil, fmt.Errorf("script settings: track length must be positive")
	}
	return timeline.New(s.Settings), nil
}

// Run applies every step in order. Rejected steps do not stop the run; their
// results are reported like any other.
func (s *Script) Run(ed *editor.Editor) []StepResult {
	names := make(map[string]string)
	resolve := func(ref string) string {
		if id, ok := names[ref]; ok {
			return id
		}
		return ref
	}

	out := make([]StepResult, 0, len(s.Steps))
	for i, st := range s.Steps {
		res := apply(ed, st, resolve)
		if st.As != "" && res.OK() {
			names[st.As] = res.ID
		}
		out = append(out, StepResult{Index: i, Op: st.Op, Result: res})
	}
	return out
}

func apply(ed *editor.Editor, st Step, resolve func(string) string) editor.Result {
	switch st.Op {
	case OpAddGroup:
		return ed.AddGroup(editor.GroupSpec{
			ObjectKind: st.ObjectKind,
			ObjectID:   st.ObjectID,
			MediaID:    st.MediaID,
			Name:       st.Name,
			Position:   st.Position,
		})
	case OpRemoveGroup:
		return ed.RemoveGroup(resolve(st.Group))
	case OpPlaceClip:
		return ed.PlaceClip(editor.ClipPlacement{
			Track:       timeline.TrackRef{GroupID: resolve(st.Group), Kind: st.Track},
			MediaID:     st.MediaID,
			DisplayName: st.Name,
			Offset:      st.Offset,
			Length:      st.Length,
		})
	case OpUpdateClip:
		return ed.UpdateClip(resolve(st.Clip), st.Offset, st.Length)
	case OpDeleteClip:
		return ed.DeleteClip(resolve(st.Clip))
	case OpSelectClip:
		return ed.SelectClip(resolve(st.Clip), true, st.Additive)
	case OpKeyframe:
		return ed.PlaceOrUpdateKeyframe(resolve(st.Group), st.Offset, st.Transform)
	case OpDeleteKeyframe:
		return ed.DeleteKeyframe(resolve(st.Keyframe))
	case OpToggleMute:
		return ed.ToggleMute(resolve(st.Group))
	case OpMinimize:
		return ed.SetMinimized(resolve(st.Group), st.Minimized)
	case OpToggleCamera:
		return ed.ToggleCameraState()
	case OpAspectRatio:
		return ed.ChangeCameraAspectRatio(st.AspectRatio)
	default:
		return editor.Result{Status: editor.StatusRejected, Reason: "unknown op " + string(st.Op)}
	}
}

func (o Op) valid() bool {
	switch o {
	case OpAddGroup, OpRemoveGroup, OpPlaceClip, OpUpdateClip, OpDeleteClip, OpSelectClip,
		OpKeyframe, OpDeleteKeyframe, OpToggleMute, OpMinimize, OpToggleCamera, OpAspectRatio:
		return true
	default:
		return false
	}
}
