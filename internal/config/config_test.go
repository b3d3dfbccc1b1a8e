package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/docview/internal/document"
	"github.com/dshills/docview/internal/renderer/viewport"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[render]
workers = 3
prefetch = 1

[cache]
max_entries = 10

[search]
pause = "25ms"

[reload]
quiet_period = "1s"

[view]
fit = "width"
direction = "rtl"
max_across = 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Render = RenderConfig{Workers: 3, Prefetch: 1}
	want.Cache.MaxEntries = 10
	want.Search.Pause = Duration(25 * time.Millisecond)
	want.Reload.QuietPeriod = Duration(time.Second)
	want.View.Fit = "width"
	want.View.Direction = "rtl"
	want.View.MaxAcross = 2
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
graphics:
  protocol: none
  cell_width: 9
log:
  level: debug
history:
  enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Graphics.Protocol != "none" || cfg.Graphics.CellWidth != 9 {
		t.Errorf("Graphics = %+v", cfg.Graphics)
	}
	if cfg.Log.Level != "debug" || !cfg.History.Enabled {
		t.Errorf("Log = %+v, History = %+v", cfg.Log, cfg.History)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "c.toml", "[render]\nthreads = 4\n"},
		{"yaml", "c.yml", "render:\n  threads: 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Load() error = %v, want ParseError", err)
			}
		})
	}
}

func TestTOMLParseErrorPosition(t *testing.T) {
	_, err := Load(writeFile(t, "bad.toml", "[render]\nworkers = = 2\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Load() error = %v, want ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
}

func TestLoadUnknownFormat(t *testing.T) {
	_, err := Load(writeFile(t, "config.ini", "x=1"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Load() error = %v, want ErrUnknownFormat", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Cache.MaxEntries = 0
	cfg.View.Fit = "stretch"
	cfg.Graphics.Protocol = "sixel-ish"

	err := cfg.Validate()
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Validate() = %v, want ErrValidationFailed", err)
	}

	var paths []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ve *ValidationError
		if errors.As(e, &ve) {
			paths = append(paths, ve.Path)
		}
	}
	want := []string{"cache.max_entries", "view.fit", "graphics.protocol"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestColorTransform(t *testing.T) {
	tests := []struct {
		name    string
		view    ViewConfig
		want    document.ColorMode
		wantErr bool
	}{
		{"normal", ViewConfig{}, document.ColorNormal, false},
		{"invert", ViewConfig{Invert: true}, document.ColorInverted, false},
		{"custom", ViewConfig{FG: "#ffffff", BG: "#000000", Invert: true}, document.ColorCustom, false},
		{"half", ViewConfig{FG: "#ffffff"}, document.ColorNormal, true},
		{"bad hex", ViewConfig{FG: "#zzzzzz", BG: "#000000"}, document.ColorNormal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := tt.view.ColorTransform()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ColorTransform() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && ct.Mode != tt.want {
				t.Errorf("Mode = %v, want %v", ct.Mode, tt.want)
			}
		})
	}
}

func TestInitialState(t *testing.T) {
	cfg := Default()
	cfg.View.Fit = "height"
	cfg.View.Direction = "rtl"
	cfg.View.MaxAcross = 3

	st, err := cfg.InitialState()
	if err != nil {
		t.Fatalf("InitialState() error = %v", err)
	}
	if st.Fit != viewport.FitHeight || st.Direction != document.RightToLeft || st.MaxAcross != 3 {
		t.Errorf("state = %+v", st)
	}
	if st.Zoom != 1 {
		t.Errorf("Zoom = %v, want 1", st.Zoom)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DOCVIEW_LOG_LEVEL":         "warn",
		"DOCVIEW_CACHE_MAX_ENTRIES": "12",
		"DOCVIEW_RELOAD_QUIET":      "50ms",
		"DOCVIEW_GRAPHICS":          "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := ApplyEnv(&cfg, lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.Cache.MaxEntries != 12 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Reload.QuietPeriod.Std() != 50*time.Millisecond {
		t.Errorf("QuietPeriod = %v", cfg.Reload.QuietPeriod)
	}
	if cfg.Graphics.Protocol != "halfblock" {
		t.Errorf("empty env value changed Protocol to %q", cfg.Graphics.Protocol)
	}
}

func TestApplyEnvTypeMismatch(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, func(k string) (string, bool) {
		if k == "DOCVIEW_RENDER_WORKERS" {
			return "many", true
		}
		return "", false
	})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != ErrCodeTypeMismatch {
		t.Fatalf("ApplyEnv() error = %v, want type mismatch", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.toml", "[log]\nlevel = \"debug\"\n")
	t.Setenv("DOCVIEW_LOG_LEVEL", "error")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Level = %q, want error", cfg.Log.Level)
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatal(err)
	}
	if d.Std() != 90*time.Second {
		t.Errorf("Std() = %v", d.Std())
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("UnmarshalText(soon) succeeded")
	}
}
