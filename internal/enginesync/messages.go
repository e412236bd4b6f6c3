// Package enginesync carries accepted timeline mutations to the external
// rendering engine. It is a one-way, ordered channel: every published message is
// delivered to the registered sinks in publish order, with no acknowledgement,
// no retry and no coalescing. The renderer owns the decision to skip messages it
// cannot apply.
package enginesync

import (
	"encoding/json"
	"time"

	"github.com/heimdex/timeline-agent/internal/timeline"
)

// QueueToEngine is the name of the editor to renderer queue.
const QueueToEngine = "TO_ENGINE"

type Action string

const (
	ActionAddClip                 Action = "ADD_CLIP"
	ActionUpdateClip              Action = "UPDATE_CLIP"
	ActionDeleteClip              Action = "DELETE_CLIP"
	ActionAddKeyframe             Action = "ADD_KEYFRAME"
	ActionUpdateKeyframe          Action = "UPDATE_KEYFRAME"
	ActionDeleteKeyframe          Action = "DELETE_KEYFRAME"
	ActionMute                    Action = "MUTE"
	ActionUnmute                  Action = "UNMUTE"
	ActionAddObject               Action = "ADD_OBJECT"
	ActionDeleteObject            Action = "DELETE_OBJECT"
	ActionToggleCameraState       Action = "TOGGLE_CAMERA_STATE"
	ActionChangeCameraAspectRatio Action = "CHANGE_CAMERA_ASPECT_RATIO"
)

// Payload is implemented only by the payload types of this package, one per Action.
type Payload interface {
	Action() Action
	isPayload()
}

type AddClip struct {
	Clip timeline.Clip `json:"clip"`
}

type UpdateClip struct {
	Clip timeline.Clip `json:"clip"`
}

type DeleteClip struct {
	Clip timeline.Clip `json:"clip"`
}

type AddKeyframe struct {
	Keyframe timeline.Keyframe `json:"keyframe"`
}

type UpdateKeyframe struct {
	Keyframe timeline.Keyframe `json:"keyframe"`
}

type DeleteKeyframe struct {
	Keyframe timeline.Keyframe `json:"keyframe"`
}

type Mute struct {
	GroupID  string `json:"group_id"`
	ObjectID string `json:"object_id,omitempty"`
}

type Unmute struct {
	GroupID  string `json:"group_id"`
	ObjectID string `json:"object_id,omitempty"`
}

type AddObject struct {
	GroupID    string              `json:"group_id"`
	ObjectID   string              `json:"object_id"`
	ObjectKind timeline.ObjectKind `json:"object_kind"`
	MediaID    string              `json:"media_id,omitempty"`
	Name       string              `json:"name"`
	Position   timeline.Vec3       `json:"position"`
}

type DeleteObject struct {
	GroupID  string `json:"group_id"`
	ObjectID string `json:"object_id"`
}

type ToggleCameraState struct {
	Enabled bool `json:"enabled"`
}

type ChangeCameraAspectRatio struct {
	AspectRatio float64 `json:"aspect_ratio"`
}

func (AddClip) Action() Action                 { return ActionAddClip }
func (UpdateClip) Action() Action              { return ActionUpdateClip }
func (DeleteClip) Action() Action              { return ActionDeleteClip }
func (AddKeyframe) Action() Action             { return ActionAddKeyframe }
func (UpdateKeyframe) Action() Action          { return ActionUpdateKeyframe }
func (DeleteKeyframe) Action() Action          { return ActionDeleteKeyframe }
func (Mute) Action() Action                    { return ActionMute }
func (Unmute) Action() Action                  { return ActionUnmute }
func (AddObject) Action() Action               { return ActionAddObject }
func (DeleteObject) Action() Action            { return ActionDeleteObject }
func (ToggleCameraState) Action() Action       { return ActionToggleCameraState }
func (ChangeCameraAspectRatio) Action() Action { return ActionChangeCameraAspectRatio }

func (AddClip) isPayload()                 {}
func (UpdateClip) isPayload()              {}
func (DeleteClip) isPayload()              {}
func (AddKeyframe) isPayload()             {}
func (UpdateKeyframe) isPayload()          {}
func (DeleteKeyframe) isPayload()          {}
func (Mute) isPayload()                    {}
func (Unmute) isPayload()                  {}
func (AddObject) isPayload()               {}
func (DeleteObject) isPayload()            {}
func (ToggleCameraState) isPayload()       {}
func (ChangeCameraAspectRatio) isPayload() {}

// Message is one queued engine message. Seq is assigned at publish time and is
// strictly increasing per queue.
type Message struct {
	Seq         uint64
	QueueName   string
	Data        Payload
	PublishedAt time.Time
}

func (m Message) Action() Action {
	return m.Data.Action()
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Seq       uint64  `json:"seq"`
		QueueName string  `json:"queueName"`
		Action    Action  `json:"action"`
		Data      Payload `json:"data"`
	}{m.Seq, m.QueueName, m.Action(), m.Data})
}
