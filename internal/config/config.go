package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	appLog "gabinet/internal/log"
	"gabinet/internal/schedule"
)

// FeedConfig is one external calendar pulled into the schedule.
type FeedConfig struct {
	ID   string `yaml:"id" json:"id"`
	URL  string `yaml:"url" json:"url"`
	Name string `yaml:"name" json:"name"`
}

type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ScheduleConfig is the YAML form of schedule.Scale. Clock values are
// "HH:MM".
type ScheduleConfig struct {
	WindowStart        string  `yaml:"window_start" json:"window_start"`
	WindowEnd          string  `yaml:"window_end" json:"window_end"`
	PixelsPerMinute    float64 `yaml:"pixels_per_minute" json:"pixels_per_minute"`
	MinHeightPx        float64 `yaml:"min_height_px" json:"min_height_px"`
	SlotMinutes        int     `yaml:"slot_minutes" json:"slot_minutes"`
	UsableWidthPercent int     `yaml:"usable_width_percent" json:"usable_width_percent"`
	MaxStepPercent     int     `yaml:"max_step_percent" json:"max_step_percent"`
	RightInsetPx       int     `yaml:"right_inset_px" json:"right_inset_px"`
	BaseZ              int     `yaml:"base_z" json:"base_z"`
	// ClampToWindow is a pointer so an absent key keeps the default (true).
	ClampToWindow *bool `yaml:"clamp_to_window,omitempty" json:"clamp_to_window,omitempty"`
}

type ImportConfig struct {
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

type SyncConfig struct {
	// Cron is a 5-field cron spec; empty disables periodic sync.
	Cron       string `yaml:"cron" json:"cron"`
	PastDays   int    `yaml:"past_days" json:"past_days"`
	FutureDays int    `yaml:"future_days" json:"future_days"`
	CacheDir   string `yaml:"cache_dir" json:"cache_dir"`
}

type SnapshotConfig struct {
	// Cron is a 5-field cron spec; empty disables periodic snapshots.
	Cron   string `yaml:"cron" json:"cron"`
	Path   string `yaml:"path" json:"path"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone appointments are booked and displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Database is the SQLite file path.
	Database string `yaml:"database" json:"database"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Import   ImportConfig   `yaml:"import" json:"import"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`
	Feeds    []FeedConfig   `yaml:"feeds" json:"feeds"`
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills zero values with defaults so partial files still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Warsaw"
	}
	switch strings.ToLower(c.WeekStart) {
	case "sunday":
		c.WeekStart = "sunday"
	default:
		c.WeekStart = "monday"
	}
	c.LogLevel = strings.ToLower(string(appLog.ParseLevel(c.LogLevel)))
	if c.Database == "" {
		c.Database = "./var/gabinet.db"
	}

	def := schedule.DefaultScale()
	s := &c.Schedule
	if s.WindowStart == "" {
		s.WindowStart = def.WindowStart.String()
	}
	if s.WindowEnd == "" {
		s.WindowEnd = def.WindowEnd.String()
	}
	if s.PixelsPerMinute <= 0 {
		s.PixelsPerMinute = def.PixelsPerMinute
	}
	if s.MinHeightPx <= 0 {
		s.MinHeightPx = def.MinHeightPx
	}
	if s.SlotMinutes <= 0 {
		s.SlotMinutes = def.SlotMinutes
	}
	if s.UsableWidthPercent <= 0 {
		s.UsableWidthPercent = def.UsableWidthPercent
	}
	if s.MaxStepPercent <= 0 {
		s.MaxStepPercent = def.MaxStepPercent
	}
	if s.RightInsetPx <= 0 {
		s.RightInsetPx = def.RightInsetPx
	}
	if s.BaseZ <= 0 {
		s.BaseZ = def.BaseZ
	}
	if s.ClampToWindow == nil {
		clamp := def.ClampToWindow
		s.ClampToWindow = &clamp
	}

	if c.Import.BatchSize <= 0 {
		c.Import.BatchSize = 100
	}
	if c.Sync.PastDays <= 0 {
		c.Sync.PastDays = 7
	}
	if c.Sync.FutureDays <= 0 {
		c.Sync.FutureDays = 60
	}
	if c.Sync.CacheDir == "" {
		c.Sync.CacheDir = "./var/feed-cache"
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = "./var/schedule.png"
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = 1200
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = 1600
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Scale converts the schedule section into a validated layout scale.
func (c *Config) Scale() (schedule.Scale, error) {
	sc := c.Schedule
	start, err := schedule.ParseClock(sc.WindowStart)
	if err != nil {
		return schedule.Scale{}, fmt.Errorf("schedule.window_start: %w", err)
	}
	end, err := schedule.ParseClock(sc.WindowEnd)
	if err != nil {
		return schedule.Scale{}, fmt.Errorf("schedule.window_end: %w", err)
	}
	s := schedule.Scale{
		WindowStart:        start,
		WindowEnd:          end,
		PixelsPerMinute:    sc.PixelsPerMinute,
		MinHeightPx:        sc.MinHeightPx,
		UsableWidthPercent: sc.UsableWidthPercent,
		MaxStepPercent:     sc.MaxStepPercent,
		RightInsetPx:       sc.RightInsetPx,
		BaseZ:              sc.BaseZ,
		SlotMinutes:        sc.SlotMinutes,
		ClampToWindow:      sc.ClampToWindow == nil || *sc.ClampToWindow,
	}
	return s, s.Validate()
}

// LoadEnv reads .env style files into the process environment. Missing
// files are not an error.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				appLog.Debug("env file not found", "path", f)
				continue
			}
			appLog.Warn("env file not loaded", "path", f, "reason", err.Error())
		}
	}
}

// ApplyEnv overrides file values with GABINET_* environment variables.
func (c *Config) ApplyEnv() {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("GABINET_LISTEN", &c.Listen)
	str("GABINET_TIMEZONE", &c.Timezone)
	str("GABINET_WEEK_START", &c.WeekStart)
	str("GABINET_LOG_LEVEL", &c.LogLevel)
	str("GABINET_DATABASE", &c.Database)
	str("GABINET_SYNC_CRON", &c.Sync.Cron)
	str("GABINET_SNAPSHOT_CRON", &c.Snapshot.Cron)
	str("GABINET_SNAPSHOT_PATH", &c.Snapshot.Path)

	if v := os.Getenv("GABINET_IMPORT_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Import.BatchSize = n
		} else {
			appLog.Warn("ignoring GABINET_IMPORT_BATCH_SIZE", "value", v)
		}
	}

	user, pass := os.Getenv("GABINET_AUTH_USER"), os.Getenv("GABINET_AUTH_PASSWORD")
	if user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
	c.Normalize()
}

// Load reads the YAML config at path. On first run the file does not
// exist yet: defaults are written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		appLog.Info("default config written", "path", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg atomically (temp file in the same directory, then
// rename) with 0600 permissions.
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
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gabinet-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
