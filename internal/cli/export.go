package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/timeline-agent/internal/export"
	"github.com/heimdex/timeline-agent/internal/scenefile"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

func newExportCommand() *cobra.Command {
	var req export.EDLRequest
	var scenePath, track string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one track of a saved scene as a CMX3600 EDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			tl, err := scenefile.Load(scenePath)
			if err != nil {
				return err
			}
			ref, err := resolveTrack(tl, track)
			if err != nil {
				return err
			}
			clips, _ := tl.Track(ref)
			req.Track = ref

			resp, err := export.WriteEDL(req, clips, tl.Settings())
			if err != nil {
				return err
			}

			logger.Info("EDL exported", "path", resp.OutputPath, "events", resp.EventCount)
			fmt.Fprintln(cmd.OutOrStdout(), resp.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenePath, "scene", "", "Scene file to export from")
	cmd.Flags().StringVar(&track, "track", "", "Track to export as <group>:<kind>; group is a group or object id")
	cmd.Flags().StringVarP(&req.OutputDir, "out", "o", "", "Absolute output directory")
	cmd.Flags().StringVar(&req.Title, "title", "", "EDL title (defaults to timeline_export)")
	cmd.Flags().Float64Var(&req.FrameRate, "fps", 0, "Frame rate of the timecodes (defaults to the timeline's units per second)")
	_ = cmd.MarkFlagRequired("scene")
	_ = cmd.MarkFlagRequired("track")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func resolveTrack(tl *timeline.Timeline, spec string) (timeline.TrackRef, error) {
	group, kind, ok := strings.Cut(spec, ":")
	if !ok || group == "" || kind == "" {
		return timeline.TrackRef{}, fmt.Errorf("invalid track %q: want <group>:<kind>", spec)
	}
	g, found := tl.Group(group)
	if !found {
		g, found = tl.GroupByObject(group)
	}
	if !found {
		return timeline.TrackRef{}, fmt.Errorf("group %q not found", group)
	}
	ref := timeline.TrackRef{GroupID: g.ID, Kind: timeline.ClipKind(kind)}
	if !g.HasTrack(ref.Kind) {
		return timeline.TrackRef{}, fmt.Errorf("group %q has no %s track", group, kind)
	}
	return ref, nil
}
