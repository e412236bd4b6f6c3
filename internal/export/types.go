package export

import "github.com/heimdex/timeline-agent/internal/timeline"

type EDLRequest struct {
	Title     string            `json:"title"`
	Track     timeline.TrackRef `json:"track"`
	FrameRate float64           `json:"frame_rate"`
	OutputDir string            `json:"output_dir"`
}

// Event is one EDL edit: a clip's media range placed at a record position.
type Event struct {
	ClipName    string
	MediaID     string
	Channel     string
	SourceInMs  int
	SourceOutMs int
	RecordInMs  int
}

type EDLResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	EventCount int    `json:"event_count"`
}
