package enginesync

import (
	"fmt"

	"github.com/heimdex/timeline-agent/internal/timeline"
)

// Frame is the renderer-facing form of a message, sent as JSON across the
// document/worker boundary.
type Frame struct {
	Seq       uint64 `json:"seq"`
	QueueName string `json:"queueName"`
	Action    Action `json:"action"`
	Data      any    `json:"data"`
}

type clipFrame struct {
	ClipID   string  `json:"clip_id"`
	ObjectID string  `json:"object_id,omitempty"`
	MediaID  string  `json:"media_id"`
	Kind     string  `json:"kind"`
	Offset   float64 `json:"offset"`
	Length   float64 `json:"length"`
}

type keyframeFrame struct {
	KeyframeID string      `json:"keyframe_id"`
	ObjectID   string      `json:"object_id"`
	Offset     float64     `json:"offset"`
	Position   *[3]float64 `json:"position,omitempty"`
	Rotation   *[3]float64 `json:"rotation,omitempty"`
	Scale      *[3]float64 `json:"scale,omitempty"`
}

type objectFrame struct {
	ObjectID   string     `json:"object_id"`
	ObjectKind string     `json:"object_kind,omitempty"`
	MediaID    string     `json:"media_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Position   [3]float64 `json:"position"`
}

type audioFrame struct {
	ObjectID string `json:"object_id,omitempty"`
	Global   bool   `json:"global"`
}

// Translate turns a message into the frame the renderer understands. It is the
// only place payload types are matched.
func Translate(msg Message) (Frame, error) {
	f := Frame{Seq: msg.Seq, QueueName: msg.QueueName}
	if msg.Data == nil {
		return f, fmt.Errorf("message %d has no payload", msg.Seq)
	}
	f.Action = msg.Data.Action()

	switch p := msg.Data.(type) {
	case AddClip:
		f.Data = toClipFrame(p.Clip)
	case UpdateClip:
		f.Data = toClipFrame(p.Clip)
	case DeleteClip:
		f.Data = toClipFrame(p.Clip)
	case AddKeyframe:
		f.Data = toKeyframeFrame(p.Keyframe)
	case UpdateKeyframe:
		f.Data = toKeyframeFrame(p.Keyframe)
	case DeleteKeyframe:
		f.Data = keyframeFrame{KeyframeID: p.Keyframe.ID, ObjectID: p.Keyframe.OwnerObjectID, Offset: p.Keyframe.Offset}
	case Mute:
		f.Data = audioFrame{ObjectID: p.ObjectID, Global: p.ObjectID == ""}
	case Unmute:
		f.Data = audioFrame{ObjectID: p.ObjectID, Global: p.ObjectID == ""}
	case AddObject:
		f.Data = objectFrame{
			ObjectID:   p.ObjectID,
			ObjectKind: string(p.ObjectKind),
			MediaID:    p.MediaID,
			Name:       p.Name,
			Position:   vec(p.Position),
		}
	case DeleteObject:
		f.Data = objectFrame{ObjectID: p.ObjectID}
	case ToggleCameraState:
		f.Data = map[string]bool{"enabled": p.Enabled}
	case ChangeCameraAspectRatio:
		f.Data = map[string]float64{"aspect_ratio": p.AspectRatio}
	default:
		return f, fmt.Errorf("unsupported payload %T", msg.Data)
	}
	return f, nil
}

func toClipFrame(c timeline.Clip) clipFrame {
	return clipFrame{
		ClipID:   c.ID,
		ObjectID: c.OwnerObjectID,
		MediaID:  c.MediaID,
		Kind:     string(c.Kind),
		Offset:   c.Offset,
		Length:   c.Length,
	}
}

func toKeyframeFrame(k timeline.Keyframe) keyframeFrame {
	return keyframeFrame{
		KeyframeID: k.ID,
		ObjectID:   k.OwnerObjectID,
		Offset:     k.Offset,
		Position:   vecPtr(k.Transform.Position),
		Rotation:   vecPtr(k.Transform.Rotation),
		Scale:      vecPtr(k.Transform.Scale),
	}
}

func vec(v timeline.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func vecPtr(v timeline.Vec3) *[3]float64 {
	a := vec(v)
	return &a
}
