package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Event source kinds.
const (
	SourceAPI = "api"
	SourceICS = "ics"
)

const (
	defaultAPIURL          = "https://api.rockvilletollandsda.church"
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "UTC"
	defaultSlideSeconds    = 10
	defaultRefreshMinutes  = 5
	defaultTickMillis      = 100
	defaultHorizonDays     = 30
	defaultWindowWidth     = 1920
	defaultWindowHeight    = 1080
	defaultStatusCron      = "@every 1m"
	defaultPreviewFileName = "preview.png"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" toml:"url" json:"url"`
	// ID is an internal identifier used for logging and event IDs.
	ID string `yaml:"id" toml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" toml:"name" json:"name"`
	// Category is used for events whose VEVENT carries no CATEGORIES.
	Category string `yaml:"category,omitempty" toml:"category,omitempty" json:"category,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web endpoints.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIURL is the base URL of the events API (no trailing slash needed).
	APIURL string `yaml:"api_url" toml:"api_url" json:"api_url"`

	// Source selects where events come from: "api" (default) or "ics".
	Source string `yaml:"source" toml:"source" json:"source"`

	// ICS is the list of subscribed feeds when Source is "ics".
	ICS []ICSConfig `yaml:"ics" toml:"ics" json:"ics"`

	// HorizonDays bounds recurrence expansion for ICS feeds.
	HorizonDays int `yaml:"horizon_days" toml:"horizon_days" json:"horizon_days"`

	// Timezone is the IANA zone used for the date/time strings on slides.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	// WindowWidth / WindowHeight size the kiosk page and preview captures.
	WindowWidth  int `yaml:"window_width" toml:"window_width" json:"window_width"`
	WindowHeight int `yaml:"window_height" toml:"window_height" json:"window_height"`

	SlideIntervalSeconds   int `yaml:"slide_interval_seconds" toml:"slide_interval_seconds" json:"slide_interval_seconds"`
	RefreshIntervalMinutes int `yaml:"refresh_interval_minutes" toml:"refresh_interval_minutes" json:"refresh_interval_minutes"`

	// TickIntervalMillis is the engine's tick period. It must stay well
	// below the slide interval.
	TickIntervalMillis int `yaml:"tick_interval_ms" toml:"tick_interval_ms" json:"tick_interval_ms"`

	// Listen is the HTTP listen address for the kiosk page and status API.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`

	// StatusCron schedules the periodic status log line. Empty disables it.
	StatusCron string `yaml:"status_cron" toml:"status_cron" json:"status_cron"`

	// PreviewCron schedules headless captures of the kiosk page into
	// PreviewPath. Empty disables them.
	PreviewCron string `yaml:"preview_cron" toml:"preview_cron" json:"preview_cron"`
	PreviewPath string `yaml:"preview_path" toml:"preview_path" json:"preview_path"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIURL:                 defaultAPIURL,
		Source:                 SourceAPI,
		ICS:                    []ICSConfig{},
		HorizonDays:            defaultHorizonDays,
		Timezone:               defaultTimezone,
		WindowWidth:            defaultWindowWidth,
		WindowHeight:           defaultWindowHeight,
		SlideIntervalSeconds:   defaultSlideSeconds,
		RefreshIntervalMinutes: defaultRefreshMinutes,
		TickIntervalMillis:     defaultTickMillis,
		Listen:                 defaultListen,
		LogLevel:               "info",
		StatusCron:             defaultStatusCron,
		PreviewPath:            filepath.Join(os.TempDir(), "beacon", defaultPreviewFileName),
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		c.APIURL = d.APIURL
	}
	switch strings.ToLower(c.Source) {
	case SourceAPI, SourceICS:
		c.Source = strings.ToLower(c.Source)
	default:
		c.Source = SourceAPI
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.WindowWidth <= 0 {
		c.WindowWidth = d.WindowWidth
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = d.WindowHeight
	}
	if c.SlideIntervalSeconds <= 0 {
		c.SlideIntervalSeconds = d.SlideIntervalSeconds
	}
	if c.RefreshIntervalMinutes <= 0 {
		c.RefreshIntervalMinutes = d.RefreshIntervalMinutes
	}
	if c.TickIntervalMillis <= 0 {
		c.TickIntervalMillis = d.TickIntervalMillis
	}
	// A tick as long as a slide would make slide timing visibly jittery.
	if slide := c.SlideInterval(); c.TickInterval() >= slide {
		c.TickIntervalMillis = int(slide / (10 * time.Millisecond))
		if c.TickIntervalMillis <= 0 {
			c.TickIntervalMillis = 1
		}
	}
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.PreviewPath == "" {
		c.PreviewPath = d.PreviewPath
	}
}

// SlideInterval is how long each slide stays on screen.
func (c *Config) SlideInterval() time.Duration {
	return time.Duration(c.SlideIntervalSeconds) * time.Second
}

// RefreshInterval is the period between event list reloads.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// TickInterval is the engine's scheduling granularity.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMillis) * time.Millisecond
}

// Horizon bounds recurrence expansion for ICS feeds.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

// DefaultPath returns <user config dir>/digital-sign/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "digital-sign", "config.toml")
}

// Load loads configuration from the given path. Files ending in .toml are
// decoded as TOML, everything else as YAML.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - decode it into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Encodes cfg as TOML or YAML by file extension.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := encode(path, cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".beacon-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func encode(path string, cfg *Config) ([]byte, error) {
	if !isTOML(path) {
		return yaml.Marshal(cfg)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
