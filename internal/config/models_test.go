package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestNewManagerCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
	if got := m.Get().Capture.FPS; got != 30 {
		t.Fatalf("default fps = %d, want 30", got)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  fps: 15\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.Capture.FPS != 15 {
		t.Fatalf("fps = %d, want 15", cfg.Capture.FPS)
	}
	if !cfg.Capture.ExcludeFrame {
		t.Fatalf("exclude_frame should keep its default")
	}
	if cfg.Preview.Width != 480 {
		t.Fatalf("preview width = %d, want default 480", cfg.Preview.Width)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  fps: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(path); err == nil {
		t.Fatalf("expected validation error for fps 0")
	}
}

func TestSetPersistsTypedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		key, value string
	}{
		{"capture.fps", "60"},
		{"overlay.opacity", "0.5"},
		{"preview.movable", "false"},
		{"overlay.color", "#ff0000"},
	}
	for _, s := range steps {
		if err := m.Set(s.key, s.value); err != nil {
			t.Fatalf("Set(%s): %v", s.key, err)
		}
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg := reloaded.Get()
	if cfg.Capture.FPS != 60 || cfg.Overlay.Opacity != 0.5 || cfg.Preview.Movable || cfg.Overlay.Color != "#ff0000" {
		t.Fatalf("values not persisted: %+v", cfg)
	}
}

func TestSetRejectsBadInput(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		key, value, wantErr string
	}{
		{"capture.fps", "fast", "invalid number"},
		{"capture.fps", "500", "between 1 and 120"},
		{"preview.movable", "maybe", "invalid boolean"},
		{"log_level", "loud", "invalid log level"},
		{"overlay.color", "blue-ish", "invalid colour"},
		{"no.such.key", "1", "not found"},
	}
	for _, tc := range cases {
		err := m.Set(tc.key, tc.value)
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("Set(%s, %s) error = %v, want containing %q", tc.key, tc.value, err, tc.wantErr)
		}
	}
	if m.Get().Capture.FPS != 30 {
		t.Fatalf("failed Set must not modify config")
	}
}

func TestApplyOverridesFromViper(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.Set("capture.fps", 12)
	v.Set("server.enabled", true)

	if err := m.ApplyOverrides(v); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	cfg := m.Get()
	if cfg.Capture.FPS != 12 || !cfg.Server.Enabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	reloaded, err := NewManager(m.GetConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Get().Capture.FPS != 30 {
		t.Fatalf("overrides must not be persisted")
	}
}

func TestLookup(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	v, err := m.Lookup("preview.height")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int) != 300 {
		t.Fatalf("preview.height = %v, want 300", v)
	}
	if _, err := m.Lookup("bogus"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestParseColor(t *testing.T) {
	got, err := ParseColor("#3498db")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x3498db {
		t.Fatalf("ParseColor = %#x, want 0x3498db", got)
	}
}
