// Package config loads and hot-reload-watches the engine's YAML
// configuration (Addons/wallpaper/config.yaml) into a typed struct.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sentinel-wallpaper/engine/internal/logging"
)

var log = logging.L("config")

// PausingConfig controls one pause source's evaluation mode.
type PausingConfig struct {
	Focus           string `mapstructure:"focus"`
	Maximized       string `mapstructure:"maximized"`
	Fullscreen      string `mapstructure:"fullscreen"`
	IdleTimeoutMs   int    `mapstructure:"idle_timeout_ms"`
	CheckIntervalMs int    `mapstructure:"check_interval_ms"`
}

type WatcherConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	IntervalMs int  `mapstructure:"interval_ms"`
}

type InteractionsConfig struct {
	SendMove        bool `mapstructure:"send_move"`
	SendClick       bool `mapstructure:"send_click"`
	PollIntervalMs  int  `mapstructure:"poll_interval_ms"`
	MoveThresholdPx int  `mapstructure:"move_threshold_px"`
}

type AudioConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	SampleIntervalMs  int     `mapstructure:"sample_interval_ms"`
	EndpointRefreshMs int     `mapstructure:"endpoint_refresh_ms"`
	RetryIntervalMs   int     `mapstructure:"retry_interval_ms"`
	ChangeThreshold   float64 `mapstructure:"change_threshold"`
	QuantizeDecimals  int     `mapstructure:"quantize_decimals"`
}

type PerformanceConfig struct {
	Pausing      PausingConfig      `mapstructure:"pausing"`
	Watcher      WatcherConfig      `mapstructure:"watcher"`
	Interactions InteractionsConfig `mapstructure:"interactions"`
	Audio        AudioConfig        `mapstructure:"audio"`
}

type RuntimeConfig struct {
	TickSleepMs          int  `mapstructure:"tick_sleep_ms"`
	ReapplyOnPauseChange bool `mapstructure:"reapply_on_pause_change"`
}

type DiagnosticsConfig struct {
	LogPauseStateChanges bool `mapstructure:"log_pause_state_changes"`
	LogWatcherReloads    bool `mapstructure:"log_watcher_reloads"`
}

type SettingsConfig struct {
	Performance PerformanceConfig `mapstructure:"performance"`
	Runtime     RuntimeConfig     `mapstructure:"runtime"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

// ProfileConfig binds a wallpaper asset to a monitor selector.
// MonitorIndex is "*" (all), "p" (primary), or a stringified ordinal.
type ProfileConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MonitorIndex string `mapstructure:"monitor_index"`
	WallpaperID  string `mapstructure:"wallpaper_id"`
	Mode         string `mapstructure:"mode"`
	ZIndex       string `mapstructure:"z_index"`
}

// Config is the engine's fully parsed configuration.
type Config struct {
	UpdateCheck bool   `mapstructure:"update_check"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`

	// Logging knobs not surfaced in the YAML config format documented
	// externally, but required to drive the logging package.
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// Audit trail knobs for the hash-chained privileged-operation log.
	AuditMaxSizeMB  int `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups int `mapstructure:"audit_max_backups"`

	Settings SettingsConfig `mapstructure:"settings"`

	// Profiles holds every top-level key prefixed with "wallpaper",
	// keyed by that config key (e.g. "wallpaper1"). Populated by Load
	// from viper.AllSettings since mapstructure can't express a
	// prefix-matched dynamic key set.
	Profiles map[string]ProfileConfig `mapstructure:"-"`

	// ProfileOrder preserves the sorted key order used to resolve
	// collisions ("later profile wins", see supervisor.computeTargetSet).
	ProfileOrder []string `mapstructure:"-"`
}

// Default returns a Config populated with the engine's built-in defaults.
func Default() *Config {
	return &Config{
		UpdateCheck:     true,
		LogLevel:        "info",
		LogFormat:       "text",
		LogMaxSizeMB:    50,
		LogMaxBackups:   3,
		AuditMaxSizeMB:  50,
		AuditMaxBackups: 3,
		Settings: SettingsConfig{
			Performance: PerformanceConfig{
				Pausing: PausingConfig{
					Focus:           "per-monitor",
					Maximized:       "per-monitor",
					Fullscreen:      "all-monitors",
					IdleTimeoutMs:   300000,
					CheckIntervalMs: 500,
				},
				Watcher: WatcherConfig{
					Enabled:    true,
					IntervalMs: 250,
				},
				Interactions: InteractionsConfig{
					SendMove:        true,
					SendClick:       true,
					PollIntervalMs:  8,
					MoveThresholdPx: 2,
				},
				Audio: AudioConfig{
					Enabled:           true,
					SampleIntervalMs:  100,
					EndpointRefreshMs: 1200,
					RetryIntervalMs:   2000,
					ChangeThreshold:   0.02,
					QuantizeDecimals:  2,
				},
			},
			Runtime: RuntimeConfig{
				TickSleepMs:          8,
				ReapplyOnPauseChange: true,
			},
			Diagnostics: DiagnosticsConfig{
				LogPauseStateChanges: true,
				LogWatcherReloads:    false,
			},
		},
		Profiles: map[string]ProfileConfig{},
	}
}

// Load reads config.yaml (or cfgFile if given), applies defaults for
// anything unset, extracts the dynamic "wallpaper*" profile sections,
// and validates the result. Fatal validation errors block startup;
// warnings are logged and the (clamped) config is still returned.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SENTINEL_WALLPAPER")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.Profiles, cfg.ProfileOrder = extractProfiles(v)

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// extractProfiles pulls every top-level key beginning with "wallpaper"
// out of viper's settings map and decodes it into a ProfileConfig.
func extractProfiles(v *viper.Viper) (map[string]ProfileConfig, []string) {
	profiles := make(map[string]ProfileConfig)
	all := v.AllSettings()

	var keys []string
	for key := range all {
		if strings.HasPrefix(key, "wallpaper") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		var p ProfileConfig
		sub := v.Sub(key)
		if sub == nil {
			continue
		}
		if err := sub.Unmarshal(&p); err != nil {
			log.Warn("failed to decode profile section", "key", key, "error", err)
			continue
		}
		profiles[key] = p
	}

	return profiles, keys
}

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("update_check", cfg.UpdateCheck)
	v.Set("debug", cfg.Debug)
	v.Set("log_level", cfg.LogLevel)
	v.Set("settings", cfg.Settings)
	for key, p := range cfg.Profiles {
		v.Set(key, p)
	}

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
	} else {
		cfgPath = filepath.Join(ConfigDir(), "config.yaml")
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}

	return os.Chmod(cfgPath, 0600)
}

// WatchConfig polls the resolved config file's mtime at intervalMs,
// invoking onChange with a freshly loaded Config whenever it changes.
// Mirrors the editable store's override-file polling rather than
// fsnotify, so a transient write-in-progress never delivers a partial
// read: a bad reload is logged and skipped, leaving onChange uncalled.
func WatchConfig(ctx context.Context, cfgFile string, intervalMs int, onChange func(*Config)) {
	if intervalMs <= 0 {
		intervalMs = 5000
	}
	path := cfgFile
	if path == "" {
		path = filepath.Join(ConfigDir(), "config.yaml")
	}

	var lastMtime time.Time
	if info, err := os.Stat(path); err == nil {
		lastMtime = info.ModTime()
	}

	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(lastMtime) {
				continue
			}
			lastMtime = info.ModTime()

			cfg, err := Load(cfgFile)
			if err != nil {
				log.Warn("config reload failed, keeping previous config", "error", err)
				continue
			}
			onChange(cfg)
		}
	}
}

// ConfigDir returns Addons/wallpaper under the user profile root.
func ConfigDir() string {
	return filepath.Join(userProfileRoot(), "Addons", "wallpaper")
}

// AssetsDir returns Assets/wallpaper under the user profile root.
func AssetsDir() string {
	return filepath.Join(userProfileRoot(), "Assets", "wallpaper")
}

// RecoveryCacheDir holds the stitched snapshot bitmap written on pause.
func RecoveryCacheDir() string {
	return filepath.Join(ConfigDir(), "cache")
}

// AuditDir holds the hash-chained privileged-operation trail.
func AuditDir() string {
	return filepath.Join(ConfigDir(), "audit")
}

func userProfileRoot() string {
	if home := os.Getenv("USERPROFILE"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
