// Package cli defines the timeline-agent command line.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/heimdex/timeline-agent/internal/config"
	"github.com/heimdex/timeline-agent/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	LogLevel  string
	LogFormat string
}

// Execute builds the root command and runs it with args.
func Execute(ctx context.Context, args []string) error {
	cmd := newRootCommand(&Options{})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "timeline-agent",
		Short:         "Local timeline editor agent",
		Long:          "timeline-agent edits scene timelines, keeps a browser renderer in sync and exports tracks as EDL.",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.NewLoggerTo(cmd.ErrOrStderr(), opts.LogLevel, opts.LogFormat)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides TIMELINE_LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "Log format for one-shot commands (json, text)")

	cmd.AddCommand(
		newServeCommand(opts),
		newReplayCommand(),
		newExportCommand(),
	)

	return cmd
}

type loggerKey struct{}

// LoggerFromContext extracts the command logger or falls back to a default one.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return logging.NewLoggerTo(os.Stderr, config.DefaultLogLevel, "text")
}
