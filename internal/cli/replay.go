package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/enginesync"
	"github.com/heimdex/timeline-agent/internal/scenefile"
)

func newReplayCommand() *cobra.Command {
	var (
		showResults bool
		savePath    string
	)

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Apply a script of edits and print the engine messages it produces",
		Long: "replay runs every step of a YAML script against an in-memory timeline and prints " +
			"each engine message as one JSON line, in the order a renderer would receive them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())

			script, err := scenefile.LoadScript(args[0])
			if err != nil {
				return err
			}
			tl, err := script.Timeline()
			if err != nil {
				return err
			}

			queue := enginesync.NewQueue(enginesync.QueueToEngine)
			ed := editor.New(tl, queue, nil, logger)
			results := script.Run(ed)

			enc := json.NewEncoder(cmd.OutOrStdout())
			if showResults {
				for _, r := range results {
					if err := enc.Encode(r); err != nil {
						return fmt.Errorf("write result: %w", err)
					}
				}
			}
			for _, msg := range queue.Drain() {
				frame, err := enginesync.Translate(msg)
				if err != nil {
					return err
				}
				if err := enc.Encode(frame); err != nil {
					return fmt.Errorf("write frame: %w", err)
				}
			}

			rejected := 0
			for _, r := range results {
				if !r.Result.OK() {
					rejected++
				}
			}
			logger.Info("replay finished", "steps", len(results), "not_applied", rejected)

			if savePath != "" {
				if err := scenefile.Save(savePath, ed.Snapshot()); err != nil {
					return err
				}
				logger.Info("scene saved", "path", savePath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showResults, "results", false, "Also print the result of every step before the messages")
	cmd.Flags().StringVar(&savePath, "save", "", "Write the resulting scene to this file")

	return cmd
}
