// Package api serves the editor UI over HTTP and bridges engine messages to
// renderers over a websocket.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/timeline-agent/internal/assets"
	"github.com/heimdex/timeline-agent/internal/command"
	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/enginesync"
	"github.com/heimdex/timeline-agent/internal/journal"
	"github.com/heimdex/timeline-agent/internal/media"
	"github.com/heimdex/timeline-agent/internal/segment"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Version    string
	Editor     *editor.Editor
	History    *command.History
	Sessions   *command.Sessions
	Segmenter  segment.Segmenter
	Renderer   command.Renderer
	Media      media.Repository
	Assets     *assets.Server
	Journal    *journal.Sink
	Queue      *enginesync.Queue
	Dispatcher *enginesync.Dispatcher
	Bridge     *Bridge
	Toasts     *editor.Toasts
	Drag       *DragSurfaces
	Logger     *slog.Logger
	StartTime  time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
