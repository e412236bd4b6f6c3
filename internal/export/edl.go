// Package export writes timeline tracks as CMX3600 edit decision lists.
package export

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/timeline-agent/internal/timeline"
)

const defaultTitle = "timeline_export"

var ErrEmptyTrack = errors.New("track has no clips")

// EventsFromTrack converts the clips of one track into EDL events. Timeline
// offsets become record positions, so gaps between clips are kept.
func EventsFromTrack(clips []timeline.Clip, settings timeline.Settings) []Event {
	channel := "V"
	events := make([]Event, 0, len(clips))
	for _, c := range clips {
		if c.Kind == timeline.ClipAudio {
			channel = "A"
		}
		name := SanitizeName(c.DisplayName, 160)
		if name == "" {
			name = c.MediaID
		}
		events = append(events, Event{
			ClipName:    name,
			MediaID:     c.MediaID,
			Channel:     channel,
			SourceInMs:  0,
			SourceOutMs: unitsToMs(c.Length, settings),
			RecordInMs:  unitsToMs(c.Offset, settings),
		})
	}
	return events
}

func unitsToMs(units float64, settings timeline.Settings) int {
	if settings.ClipsPerTimeUnit <= 0 {
		return 0
	}
	return int(math.Round(units / settings.ClipsPerTimeUnit * 1000))
}

func GenerateEDL(events []Event, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, ev := range events {
		duration := ev.SourceOutMs - ev.SourceInMs
		channel := ev.Channel
		if channel == "" {
			channel = "V"
		}
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", channel,
				msToTimecode(ev.SourceInMs, fps),
				msToTimecode(ev.SourceOutMs, fps),
				msToTimecode(ev.RecordInMs, fps),
				msToTimecode(ev.RecordInMs+duration, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.ClipName),
			fmt.Sprintf("* SOURCE MEDIA:  %s", ev.MediaID),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL renders clips to <OutputDir>/<title>.edl.
func WriteEDL(req EDLRequest, clips []timeline.Clip, settings timeline.Settings) (EDLResponse, error) {
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return EDLResponse{}, err
	}
	if len(clips) == 0 {
		return EDLResponse{}, ErrEmptyTrack
	}

	title := SanitizeName(req.Title, 120)
	if title == "" {
		title = defaultTitle
	}
	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = settings.ClipsPerTimeUnit
	}

	events := EventsFromTrack(clips, settings)
	outputPath := filepath.Join(req.OutputDir, title+".edl")
	if err := os.WriteFile(outputPath, []byte(GenerateEDL(events, title, frameRate)), 0o644); err != nil {
		return EDLResponse{}, fmt.Errorf("write export file: %w", err)
	}

	return EDLResponse{
		Status:     "ok",
		Format:     "edl",
		OutputPath: outputPath,
		EventCount: len(events),
	}, nil
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
