// Package config loads the viewer configuration.
//
// Settings come from three places, later ones overriding earlier ones:
// built-in defaults, a TOML or YAML file, and DOCVIEW_* environment
// variables. Command line flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/logging"
	"github.com/dshills/docview/internal/renderer/graphics"
	"github.com/dshills/docview/internal/renderer/viewport"
)

// Config is the complete viewer configuration.
type Config struct {
	Render   RenderConfig   `toml:"render" yaml:"render"`
	Cache    CacheConfig    `toml:"cache" yaml:"cache"`
	Search   SearchConfig   `toml:"search" yaml:"search"`
	Reload   ReloadConfig   `toml:"reload" yaml:"reload"`
	View     ViewConfig     `toml:"view" yaml:"view"`
	Graphics GraphicsConfig `toml:"graphics" yaml:"graphics"`
	Engine   EngineConfig   `toml:"engine" yaml:"engine"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	History  HistoryConfig  `toml:"history" yaml:"history"`
}

// RenderConfig controls the render worker pool.
type RenderConfig struct {
	// Workers is the number of concurrent engine calls. 0 picks
	// min(4, GOMAXPROCS).
	Workers int `toml:"workers" yaml:"workers"`
	// Prefetch is the number of pages rendered ahead and behind.
	Prefetch int `toml:"prefetch" yaml:"prefetch"`
}

// CacheConfig bounds the page cache.
type CacheConfig struct {
	MaxEntries int   `toml:"max_entries" yaml:"max_entries"`
	MaxBytes   int64 `toml:"max_bytes" yaml:"max_bytes"`
}

// SearchConfig controls background search.
type SearchConfig struct {
	ChunkPages int      `toml:"chunk_pages" yaml:"chunk_pages"`
	Pause      Duration `toml:"pause" yaml:"pause"`
}

// ReloadConfig controls live reload.
type ReloadConfig struct {
	QuietPeriod Duration `toml:"quiet_period" yaml:"quiet_period"`
}

// ViewConfig holds the initial view state.
type ViewConfig struct {
	Fit       string  `toml:"fit" yaml:"fit"`
	Direction string  `toml:"direction" yaml:"direction"`
	MaxAcross int     `toml:"max_across" yaml:"max_across"`
	ZoomStep  float64 `toml:"zoom_step" yaml:"zoom_step"`
	Invert    bool    `toml:"invert" yaml:"invert"`
	// FG and BG are hex colors for a custom color transform. Both must be
	// set for it to apply.
	FG string `toml:"fg" yaml:"fg"`
	BG string `toml:"bg" yaml:"bg"`
}

// GraphicsConfig selects the terminal graphics display.
type GraphicsConfig struct {
	Protocol string `toml:"protocol" yaml:"protocol"`
	// CellWidth and CellHeight override the detected cell pixel size.
	CellWidth  int `toml:"cell_width" yaml:"cell_width"`
	CellHeight int `toml:"cell_height" yaml:"cell_height"`
}

// EngineConfig configures the plain text engine.
type EngineConfig struct {
	TextColumns int `toml:"text_columns" yaml:"text_columns"`
	TextLines   int `toml:"text_lines" yaml:"text_lines"`
}

// LogConfig configures logging. An empty File disables logging.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	File  string `toml:"file" yaml:"file"`
}

// HistoryConfig controls the last-page history file.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Render: RenderConfig{Workers: 0, Prefetch: 2},
		Cache:  CacheConfig{MaxEntries: 64, MaxBytes: 256 << 20},
		Search: SearchConfig{ChunkPages: 8, Pause: Duration(10 * time.Millisecond)},
		Reload: ReloadConfig{QuietPeriod: Duration(300 * time.Millisecond)},
		View: ViewConfig{
			Fit:       "page",
			Direction: "ltr",
			ZoomStep:  viewport.DefaultZoomStep,
		},
		Graphics: GraphicsConfig{Protocol: "halfblock"},
		Engine:   EngineConfig{TextColumns: 80, TextLines: 60},
		Log:      LogConfig{Level: "info"},
	}
}

// Validate checks every section and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	check := func(path string, ok bool, value any, code ValidationErrorCode, msg string) {
		if !ok {
			errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
		}
	}

	check("render.workers", c.Render.Workers >= 0, c.Render.Workers, ErrCodeOutOfRange, "must not be negative")
	check("render.prefetch", c.Render.Prefetch >= 0, c.Render.Prefetch, ErrCodeOutOfRange, "must not be negative")
	check("cache.max_entries", c.Cache.MaxEntries > 0, c.Cache.MaxEntries, ErrCodeOutOfRange, "must be positive")
	check("cache.max_bytes", c.Cache.MaxBytes >= 0, c.Cache.MaxBytes, ErrCodeOutOfRange, "must not be negative")
	check("search.chunk_pages", c.Search.ChunkPages > 0, c.Search.ChunkPages, ErrCodeOutOfRange, "must be positive")
	check("search.pause", c.Search.Pause >= 0, c.Search.Pause, ErrCodeOutOfRange, "must not be negative")
	check("reload.quiet_period", c.Reload.QuietPeriod > 0, c.Reload.QuietPeriod, ErrCodeOutOfRange, "must be positive")
	check("view.max_across", c.View.MaxAcross >= 0, c.View.MaxAcross, ErrCodeOutOfRange, "must not be negative")
	check("view.zoom_step", c.View.ZoomStep > 1, c.View.ZoomStep, ErrCodeOutOfRange, "must be greater than 1")
	check("engine.text_columns", c.Engine.TextColumns > 0, c.Engine.TextColumns, ErrCodeOutOfRange, "must be positive")
	check("engine.text_lines", c.Engine.TextLines > 0, c.Engine.TextLines, ErrCodeOutOfRange, "must be positive")
	check("graphics.cell_width", c.Graphics.CellWidth >= 0, c.Graphics.CellWidth, ErrCodeOutOfRange, "must not be negative")
	check("graphics.cell_height", c.Graphics.CellHeight >= 0, c.Graphics.CellHeight, ErrCodeOutOfRange, "must not be negative")

	if _, err := c.View.FitMode(); err != nil {
		check("view.fit", false, c.View.Fit, ErrCodeInvalidEnum, err.Error())
	}
	if _, err := c.View.ReadingDirection(); err != nil {
		check("view.direction", false, c.View.Direction, ErrCodeInvalidEnum, err.Error())
	}
	if _, err := c.View.ColorTransform(); err != nil {
		check("view.fg", false, c.View.FG+"/"+c.View.BG, ErrCodePatternMismatch, err.Error())
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		check("log.level", false, c.Log.Level, ErrCodeInvalidEnum, err.Error())
	}
	known := false
	for _, p := range graphics.Protocols() {
		known = known || p == c.Graphics.Protocol
	}
	check("graphics.protocol", known, c.Graphics.Protocol, ErrCodeInvalidEnum, fmt.Sprintf("must be one of %v", graphics.Protocols()))

	return errors.Join(errs...)
}

// FitMode parses the configured fit mode.
func (v ViewConfig) FitMode() (viewport.FitMode, error) {
	return viewport.ParseFitMode(v.Fit)
}

// ReadingDirection parses the configured reading direction.
func (v ViewConfig) ReadingDirection() (document.ReadingDirection, error) {
	return document.ParseReadingDirection(v.Direction)
}

// ColorTransform returns the configured transform. A custom FG/BG pair
// wins over Invert.
func (v ViewConfig) ColorTransform() (document.ColorTransform, error) {
	if v.FG == "" && v.BG == "" {
		if v.Invert {
			return document.Inverted, nil
		}
		return document.Normal, nil
	}
	if v.FG == "" || v.BG == "" {
		return document.Normal, errors.New("fg and bg must be set together")
	}
	fg, err := document.ParseHex(v.FG)
	if err != nil {
		return document.Normal, err
	}
	bg, err := document.ParseHex(v.BG)
	if err != nil {
		return document.Normal, err
	}
	return document.Custom(fg, bg), nil
}

// InitialState builds the starting viewport state.
func (c Config) InitialState() (viewport.State, error) {
	st := viewport.DefaultState()
	fit, err := c.View.FitMode()
	if err != nil {
		return st, err
	}
	dir, err := c.View.ReadingDirection()
	if err != nil {
		return st, err
	}
	ct, err := c.View.ColorTransform()
	if err != nil {
		return st, err
	}
	st.Fit = fit
	st.Direction = dir
	st.MaxAcross = c.View.MaxAcross
	st.Color = ct
	return st, nil
}

// UserDir returns the per-user docview configuration directory.
func UserDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "docview"), nil
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	dir, err := UserDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}
