package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/heimdex/timeline-agent/internal/api"
	"github.com/heimdex/timeline-agent/internal/assets"
	"github.com/heimdex/timeline-agent/internal/command"
	"github.com/heimdex/timeline-agent/internal/config"
	"github.com/heimdex/timeline-agent/internal/db"
	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/enginesync"
	"github.com/heimdex/timeline-agent/internal/journal"
	"github.com/heimdex/timeline-agent/internal/logging"
	"github.com/heimdex/timeline-agent/internal/media"
	"github.com/heimdex/timeline-agent/internal/scenefile"
	"github.com/heimdex/timeline-agent/internal/segment"
	"github.com/heimdex/timeline-agent/internal/timeline"
	"github.com/heimdex/timeline-agent/internal/ui"
)

const (
	currentScene    = "current.yaml"
	historyLimit    = 100
	toastLimit      = 50
	ackTimeout      = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newServeCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent: HTTP API, engine sync and system tray",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			level := cfg.LogLevel()
			if opts.LogLevel != "" {
				level = opts.LogLevel
			}
			logger := logging.NewLogger(level, cfg.LogFormat())
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

type configStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	startTime := time.Now()

	for _, dir := range []string{cfg.ScenesDir(), cfg.AssetsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	logger.Info("starting timeline agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := media.NewRepository(database.Conn())
	authToken, err := ensureAuthToken(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	scenePath := filepath.Join(cfg.ScenesDir(), currentScene)
	tl, err := loadScene(scenePath, cfg.Timeline())
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  API URL:    http://127.0.0.1:%d\n", cfg.Port())
	fmt.Printf("  Renderer:   ws://127.0.0.1:%d/engine/ws?token=%s\n", cfg.Port(), authToken)
	fmt.Printf("  Auth Token: %s\n", authToken)
	fmt.Println()

	queue := enginesync.NewQueue(enginesync.QueueToEngine)
	toasts := editor.NewToasts(toastLimit)
	ed := editor.New(tl, queue, toasts, logging.WithComponent(logger, "editor"))

	dispatcher := enginesync.NewDispatcher(queue, logging.WithComponent(logger, "dispatcher"))
	sink := journal.NewSink(database.Conn())
	dispatcher.Subscribe(sink)
	bridge := api.NewBridge(dispatcher, cfg.QueueBuffer(), ackTimeout, logging.WithComponent(logger, "bridge"))

	var segmenter segment.Segmenter
	if cfg.SegmentEnabled() {
		segmenter = segment.NewHTTPClient(cfg.SegmentBaseURL(), cfg.SegmentToken(), cfg.SegmentTimeout(), logger)
		logger.Info("segmentation service enabled", "base_url", cfg.SegmentBaseURL())
	} else {
		segmenter = segment.NewStubClient(logger)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Version:    config.Version,
		Editor:     ed,
		History:    command.NewHistory(historyLimit, toasts, logging.WithComponent(logger, "history")),
		Sessions:   command.NewSessions(),
		Segmenter:  segmenter,
		Renderer:   bridge,
		Media:      repo,
		Assets:     assets.NewServer(cfg.AssetsDir(), logging.WithComponent(logger, "assets")),
		Journal:    sink,
		Queue:      queue,
		Dispatcher: dispatcher,
		Bridge:     bridge,
		Toasts:     toasts,
		Drag:       api.NewDragSurfaces(ed, cfg.DragThreshold(), logging.WithComponent(logger, "drag")),
		Logger:     logger,
		StartTime:  startTime,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Start)
	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
		return nil
	})

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(gctx, ui.TrayConfig{
			Timeline: ed,
			Sync:     dispatcher,
			Logger:   logging.WithComponent(logger, "tray"),
			OnQuit:   stop,
		})
		go tray.Run()
	}

	err = g.Wait()

	if saveErr := scenefile.Save(scenePath, ed.Snapshot()); saveErr != nil {
		logger.Error("failed to save scene", "path", logging.SanitizePath(scenePath), "error", saveErr)
	} else {
		logger.Info("scene saved", "path", logging.SanitizePath(scenePath))
	}

	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// loadScene restores the last saved scene, or starts an empty one.
func loadScene(path string, settings timeline.Settings) (*timeline.Timeline, error) {
	tl, err := scenefile.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return timeline.New(settings), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}
	return tl, nil
}

func ensureAuthToken(ctx context.Context, store configStore) (string, error) {
	existing, err := store.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := store.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
