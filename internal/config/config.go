// Package config provides configuration management for the timeline agent.
// Configuration is loaded from TIMELINE_* environment variables, optionally
// seeded from a .env file, with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/heimdex/timeline-agent/internal/timeline"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".timeline-agent"

	// EnvPrefix is prepended to every variable name.
	EnvPrefix = "TIMELINE_"

	// EnvFile points at an explicit .env file to load before parsing.
	EnvFile = "TIMELINE_ENV_FILE"

	// Database filename
	DBFilename = "timeline.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	ScenesDir() string
	AssetsDir() string
	Timeline() timeline.Settings
	DragThreshold() float64
	SegmentBaseURL() string
	SegmentToken() string
	SegmentTimeout() time.Duration
	SegmentEnabled() bool
	QueueBuffer() int
	Headless() bool
}

type values struct {
	Port             int           `env:"PORT" envDefault:"8790"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"json"`
	DataDir          string        `env:"DATA_DIR"`
	FilmLength       float64       `env:"FILM_LENGTH" envDefault:"60"`
	ClipsPerTimeUnit float64       `env:"CLIPS_PER_TIME_UNIT" envDefault:"30"`
	DragThresholdPx  float64       `env:"DRAG_THRESHOLD_PX" envDefault:"4"`
	SegmentBaseURL   string        `env:"SEGMENT_BASE_URL"`
	SegmentToken     string        `env:"SEGMENT_TOKEN"`
	SegmentTimeout   time.Duration `env:"SEGMENT_TIMEOUT" envDefault:"30s"`
	QueueBuffer      int           `env:"QUEUE_BUFFER" envDefault:"256"`
	Headless         bool          `env:"HEADLESS" envDefault:"true"`
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	v values
}

// New loads an optional .env file and then parses the environment. Variables
// already set in the process win over the file.
func New() (*EnvConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	var v values
	if err := env.ParseWithOptions(&v, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if v.DataDir == "" {
		v.DataDir = defaultDataDir()
	}
	v.LogFormat = strings.ToLower(v.LogFormat)
	v.SegmentBaseURL = strings.TrimRight(v.SegmentBaseURL, "/")

	if err := validate(v); err != nil {
		return nil, err
	}
	return &EnvConfig{v: v}, nil
}

func loadEnvFile() error {
	if path := os.Getenv(EnvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func validate(v values) error {
	if v.Port < 1 || v.Port > 65535 {
		return fmt.Errorf("invalid %sPORT: port must be between 1 and 65535", EnvPrefix)
	}
	if v.FilmLength <= 0 {
		return fmt.Errorf("invalid %sFILM_LENGTH: must be positive", EnvPrefix)
	}
	if v.ClipsPerTimeUnit <= 0 {
		return fmt.Errorf("invalid %sCLIPS_PER_TIME_UNIT: must be positive", EnvPrefix)
	}
	if v.DragThresholdPx < 0 {
		return fmt.Errorf("invalid %sDRAG_THRESHOLD_PX: must not be negative", EnvPrefix)
	}
	if v.LogFormat != "json" && v.LogFormat != "text" {
		return fmt.Errorf("invalid %sLOG_FORMAT: want json or text", EnvPrefix)
	}
	if v.QueueBuffer < 1 {
		return fmt.Errorf("invalid %sQUEUE_BUFFER: must be at least 1", EnvPrefix)
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.v.Port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.v.LogLevel
}

// LogFormat returns json or text.
func (c *EnvConfig) LogFormat() string {
	return c.v.LogFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.v.DataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.v.DataDir, DBFilename)
}

// ScenesDir is where scene snapshots are saved.
func (c *EnvConfig) ScenesDir() string {
	return filepath.Join(c.v.DataDir, "scenes")
}

// AssetsDir holds the media files served to the renderer.
func (c *EnvConfig) AssetsDir() string {
	return filepath.Join(c.v.DataDir, "assets")
}

func (c *EnvConfig) Timeline() timeline.Settings {
	return timeline.Settings{FilmLength: c.v.FilmLength, ClipsPerTimeUnit: c.v.ClipsPerTimeUnit}
}

// DragThreshold is the pointer travel, in pixels, that turns a press into a drag.
func (c *EnvConfig) DragThreshold() float64 {
	return c.v.DragThresholdPx
}

func (c *EnvConfig) SegmentBaseURL() string {
	return c.v.SegmentBaseURL
}

func (c *EnvConfig) SegmentToken() string {
	return c.v.SegmentToken
}

func (c *EnvConfig) SegmentTimeout() time.Duration {
	return c.v.SegmentTimeout
}

// SegmentEnabled reports whether a segmentation service is configured.
func (c *EnvConfig) SegmentEnabled() bool {
	return c.v.SegmentBaseURL != ""
}

// QueueBuffer is the outbound buffer of each renderer connection.
func (c *EnvConfig) QueueBuffer() int {
	return c.v.QueueBuffer
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.v.Headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
