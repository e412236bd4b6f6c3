package api

import (
	"github.com/heimdex/timeline-agent/internal/command"
	"github.com/heimdex/timeline-agent/internal/drag"
	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/journal"
	"github.com/heimdex/timeline-agent/internal/media"
	"github.com/heimdex/timeline-agent/internal/segment"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	RunID   string `json:"run_id,omitempty"`
}

type StatusResponse struct {
	Groups          int    `json:"groups"`
	Clips           int    `json:"clips"`
	TimelineVersion uint64 `json:"timeline_version"`
	Published       uint64 `json:"messages_published"`
	Delivered       uint64 `json:"messages_delivered"`
	Failures        uint64 `json:"delivery_failures"`
	Renderers       int    `json:"renderers"`
	SyncPaused      bool   `json:"sync_paused"`
	CanUndo         bool   `json:"can_undo"`
	CanRedo         bool   `json:"can_redo"`
}

type UpdateClipRequest struct {
	Offset   *float64 `json:"offset,omitempty"`
	Length   *float64 `json:"length,omitempty"`
	Selected *bool    `json:"selected,omitempty"`
	Additive bool     `json:"additive,omitempty"`
}

type KeyframeRequest struct {
	GroupID   string             `json:"group_id"`
	Offset    float64            `json:"offset"`
	Transform timeline.Transform `json:"transform"`
}

type MinimizeRequest struct {
	Minimized bool `json:"minimized"`
}

type AspectRatioRequest struct {
	AspectRatio float64 `json:"aspect_ratio"`
}

type MediaRequest struct {
	MediaID   string  `json:"media_id"`
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Length    float64 `json:"length"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	ObjectID  string  `json:"object_id,omitempty"`
	File      string  `json:"file,omitempty"`
}

type MediaResponse struct {
	Items []*media.Item `json:"items"`
}

type PointRequest struct {
	VideoID string             `json:"video_id"`
	NodeID  string             `json:"node_id"`
	Frame   int                `json:"frame"`
	X       float64            `json:"x"`
	Y       float64            `json:"y"`
	Label   segment.PointLabel `json:"label"`
}

type PointResponse struct {
	Session command.SessionView `json:"session"`
	MaskID  string              `json:"mask_id,omitempty"`
}

type HistoryResponse struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

type JournalResponse struct {
	RunID   string          `json:"run_id"`
	Entries []journal.Entry `json:"entries"`
}

type ToastsResponse struct {
	Toasts []editor.Toast `json:"toasts"`
}

type DragDownRequest struct {
	Event drag.PointerEvent `json:"event"`
	Item  *drag.Item        `json:"item,omitempty"`
	// MediaID picks the item from the media catalog instead of Item.
	MediaID string `json:"media_id,omitempty"`
}

type DragEventRequest struct {
	Event drag.PointerEvent `json:"event"`
}

type DragDownResponse struct {
	Started bool              `json:"started"`
	State   drag.SessionState `json:"state"`
}

type KeyframesAroundResponse struct {
	Prev *timeline.Keyframe `json:"prev"`
	Next *timeline.Keyframe `json:"next"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
