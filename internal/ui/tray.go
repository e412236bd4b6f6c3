// Package ui shows the agent's status in the system tray.
package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = 2 * time.Second

// TimelineStatus reports the size of the scene being edited.
type TimelineStatus interface {
	Counts() (groups, clips int)
}

// SyncControl is the part of the engine dispatcher the tray drives.
type SyncControl interface {
	Pause()
	Resume(ctx context.Context)
	IsPaused() bool
	Delivered() uint64
	SinkCount() int
}

type Tray struct {
	timeline TimelineStatus
	sync     SyncControl
	logger   *slog.Logger
	ctx      context.Context

	statusItem    *systray.MenuItem
	sceneItem     *systray.MenuItem
	renderersItem *systray.MenuItem
	pauseItem     *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Timeline TimelineStatus
	Sync     SyncControl
	Logger   *slog.Logger
	OnQuit   func()
}

func NewTray(ctx context.Context, cfg TrayConfig) *Tray {
	return &Tray{
		timeline: cfg.Timeline,
		sync:     cfg.Sync,
		logger:   cfg.Logger,
		ctx:      ctx,
		onQuit:   cfg.OnQuit,
	}
}

// Run blocks on the platform event loop.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Timeline")
	systray.SetTooltip("Timeline Agent")

	t.statusItem = systray.AddMenuItem("Sync: running", "Engine sync status")
	t.statusItem.Disable()

	t.sceneItem = systray.AddMenuItem(sceneLabel(0, 0), "Groups and clips in the scene")
	t.sceneItem.Disable()

	t.renderersItem = systray.AddMenuItem(renderersLabel(0, 0), "Connected renderers")
	t.renderersItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause sync", "Stop delivering engine messages")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Timeline Agent")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.ctx.Done():
				systray.Quit()
				return
			}
		}
	}()

	t.refresh()
	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sync == nil {
		return
	}

	if t.sync.IsPaused() {
		t.sync.Resume(t.ctx)
		t.pauseItem.SetTitle("Pause sync")
		t.logger.Info("engine sync resumed from tray")
	} else {
		t.sync.Pause()
		t.pauseItem.SetTitle("Resume sync")
		t.logger.Info("engine sync paused from tray")
	}
	t.statusItem.SetTitle(syncLabel(t.sync.IsPaused()))
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timeline != nil {
		groups, clips := t.timeline.Counts()
		t.sceneItem.SetTitle(sceneLabel(groups, clips))
	}
	if t.sync != nil {
		t.statusItem.SetTitle(syncLabel(t.sync.IsPaused()))
		// The journal is always subscribed, so renderers are every other sink.
		t.renderersItem.SetTitle(renderersLabel(max(t.sync.SinkCount()-1, 0), t.sync.Delivered()))
	}
}

func syncLabel(paused bool) string {
	if paused {
		return "Sync: paused"
	}
	return "Sync: running"
}

func sceneLabel(groups, clips int) string {
	return fmt.Sprintf("Scene: %d groups, %d clips", groups, clips)
}

func renderersLabel(renderers int, delivered uint64) string {
	return fmt.Sprintf("Renderers: %d (%d sent)", renderers, delivered)
}

func (t *Tray) Quit() {
	systray.Quit()
}
