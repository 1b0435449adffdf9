package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/porthole/porthole/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	LogLevel  string        `json:"log_level" yaml:"log_level"`
	LogPretty bool          `json:"log_pretty" yaml:"log_pretty"`
	Capture   CaptureConfig `json:"capture" yaml:"capture"`
	Overlay   OverlayConfig `json:"overlay" yaml:"overlay"`
	Preview   PreviewConfig `json:"preview" yaml:"preview"`
	Server    ServerConfig  `json:"server" yaml:"server"`
	Stream    StreamConfig  `json:"stream" yaml:"stream"`
}

// CaptureConfig controls the capture scheduler and the bitmap request options
type CaptureConfig struct {
	FPS              int  `json:"fps" yaml:"fps"`
	ExcludeFrame     bool `json:"exclude_frame" yaml:"exclude_frame"`
	NativeResolution bool `json:"native_resolution" yaml:"native_resolution"`
}

// OverlayConfig controls the hover highlight shown during selection
type OverlayConfig struct {
	Color     string  `json:"color" yaml:"color"`
	Opacity   float64 `json:"opacity" yaml:"opacity"`
	ShowLabel bool    `json:"show_label" yaml:"show_label"`
}

// PreviewConfig controls the floating preview window
type PreviewConfig struct {
	Width       int  `json:"width" yaml:"width"`
	Height      int  `json:"height" yaml:"height"`
	AlwaysOnTop bool `json:"always_on_top" yaml:"always_on_top"`
	AllDesktops bool `json:"all_desktops" yaml:"all_desktops"`
	Movable     bool `json:"movable" yaml:"movable"`
}

// ServerConfig controls the optional HTTP control surface
type ServerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
}

// StreamConfig controls the MJPEG mirror of the preview
type StreamConfig struct {
	Quality int `json:"quality" yaml:"quality"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		LogLevel:  "info",
		LogPretty: true,
		Capture: CaptureConfig{
			FPS:              30,
			ExcludeFrame:     true,
			NativeResolution: true,
		},
		Overlay: OverlayConfig{
			Color:     "#3498db",
			Opacity:   0.3,
			ShowLabel: true,
		},
		Preview: PreviewConfig{
			Width:       480,
			Height:      300,
			AlwaysOnTop: true,
			AllDesktops: true,
			Movable:     true,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8080,
		},
		Stream: StreamConfig{
			Quality: 80,
		},
	}
}

// Validate checks value ranges that would otherwise surface as odd runtime behaviour
func (c *Config) Validate() error {
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", c.LogLevel)
	}
	if c.Capture.FPS < 1 || c.Capture.FPS > 120 {
		return fmt.Errorf("capture.fps must be between 1 and 120, got %d", c.Capture.FPS)
	}
	if _, err := ParseColor(c.Overlay.Color); err != nil {
		return err
	}
	if c.Overlay.Opacity <= 0 || c.Overlay.Opacity > 1 {
		return fmt.Errorf("overlay.opacity must be in (0, 1], got %v", c.Overlay.Opacity)
	}
	if c.Preview.Width < 16 || c.Preview.Height < 16 {
		return fmt.Errorf("preview size too small: %dx%d", c.Preview.Width, c.Preview.Height)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Server.Port)
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		return fmt.Errorf("stream.quality must be between 1 and 100, got %d", c.Stream.Quality)
	}
	return nil
}

// ParseColor parses a hex colour string into 0xRRGGBB
func ParseColor(hex string) (uint32, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b), nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/porthole/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "porthole", "config.yaml"), nil
}

// NewManager loads configFile (or the default path), creating it with
// defaults when it does not exist yet.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Keys missing from the file keep
// their default values.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// GetConfigPath returns the path of the backing file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// ApplyOverrides copies every key that is explicitly set in v (flags or
// PORTHOLE_* environment) over the loaded file values. Nothing is saved.
func (m *Manager) ApplyOverrides(v *viper.Viper) error {
	for _, key := range Keys() {
		if !v.IsSet(key) {
			continue
		}
		raw := v.GetString(key)
		if raw == "" {
			continue
		}
		if err := m.set(key, raw, false); err != nil {
			return fmt.Errorf("override %s: %w", key, err)
		}
	}
	return nil
}

// Set parses value for key, validates the result and persists it
func (m *Manager) Set(key, value string) error {
	return m.set(key, value, true)
}

func (m *Manager) set(key, value string, persist bool) error {
	m.mu.Lock()
	cfg := *m.configOrDefaults()
	if err := assign(&cfg, key, value); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = &cfg
	m.mu.Unlock()

	if persist {
		return m.Save()
	}
	return nil
}

func (m *Manager) configOrDefaults() *Config {
	if m.config == nil {
		return Defaults()
	}
	return m.config
}

// Lookup returns the value stored under a dotted key
func (m *Manager) Lookup(key string) (interface{}, error) {
	cfg := m.Get()
	fields := fieldMap(cfg)
	ptr, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
	switch p := ptr.(type) {
	case *string:
		return *p, nil
	case *int:
		return *p, nil
	case *bool:
		return *p, nil
	case *float64:
		return *p, nil
	}
	return nil, fmt.Errorf("unsupported key type: %s", key)
}

// Keys lists every settable dotted key in stable order
func Keys() []string {
	keys := make([]string, 0, 16)
	for k := range fieldMap(Defaults()) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fieldMap(c *Config) map[string]interface{} {
	return map[string]interface{}{
		"log_level":                 &c.LogLevel,
		"log_pretty":                &c.LogPretty,
		"capture.fps":               &c.Capture.FPS,
		"capture.exclude_frame":     &c.Capture.ExcludeFrame,
		"capture.native_resolution": &c.Capture.NativeResolution,
		"overlay.color":             &c.Overlay.Color,
		"overlay.opacity":           &c.Overlay.Opacity,
		"overlay.show_label":        &c.Overlay.ShowLabel,
		"preview.width":             &c.Preview.Width,
		"preview.height":            &c.Preview.Height,
		"preview.always_on_top":     &c.Preview.AlwaysOnTop,
		"preview.all_desktops":      &c.Preview.AllDesktops,
		"preview.movable":           &c.Preview.Movable,
		"server.enabled":            &c.Server.Enabled,
		"server.port":               &c.Server.Port,
		"stream.quality":            &c.Stream.Quality,
	}
}

func assign(c *Config, key, value string) error {
	ptr, ok := fieldMap(c)[key]
	if !ok {
		return fmt.Errorf("configuration key not found: %s", key)
	}
	value = strings.TrimSpace(value)

	switch p := ptr.(type) {
	case *string:
		*p = value
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		*p = n
	case *bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		*p = b
	case *float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		*p = f
	}
	return nil
}
