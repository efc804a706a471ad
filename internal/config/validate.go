package config

import (
	"fmt"
	"strings"
)

var validPauseModes = map[string]bool{
	"off":          true,
	"per-monitor":  true,
	"all-monitors": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validZLayers = map[string]bool{
	"desktop": true,
	"bottom":  true,
	"normal":  true,
	"top":     true,
	"topmost": true,
	"overlay": true,
}

// ValidationResult separates fatal errors (block startup) from
// warnings (logged, value clamped to a safe default, startup continues).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings, for callers that just
// want to log everything.
func (r *ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

func (r *ValidationResult) fatal(err error) {
	r.Fatals = append(r.Fatals, err)
}

func (r *ValidationResult) warn(err error) {
	r.Warnings = append(r.Warnings, err)
}

// ValidateTiered checks the config for invalid values, clamping
// dangerous zero/out-of-range values in place and classifying every
// finding as fatal (blocks startup) or a warning (logged, continues).
func (c *Config) ValidateTiered() *ValidationResult {
	r := &ValidationResult{}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.warn(fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.warn(fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	c.validatePausing(r)
	c.validateWatcher(r)
	c.validateInteractions(r)
	c.validateAudio(r)
	c.validateRuntime(r)
	c.validateProfiles(r)

	return r
}

func (c *Config) validatePausing(r *ValidationResult) {
	p := &c.Settings.Performance.Pausing

	for _, mode := range []struct {
		name  string
		value *string
	}{
		{"focus", &p.Focus},
		{"maximized", &p.Maximized},
		{"fullscreen", &p.Fullscreen},
	} {
		if *mode.value == "" {
			continue
		}
		if !validPauseModes[*mode.value] {
			r.warn(fmt.Errorf("settings.performance.pausing.%s %q is not a valid mode (use off, per-monitor, all-monitors); defaulting to off", mode.name, *mode.value))
			*mode.value = "off"
		}
	}

	if p.IdleTimeoutMs < 0 {
		r.warn(fmt.Errorf("settings.performance.pausing.idle_timeout_ms %d is negative, clamping to 0", p.IdleTimeoutMs))
		p.IdleTimeoutMs = 0
	}
	if p.CheckIntervalMs < 50 {
		r.warn(fmt.Errorf("settings.performance.pausing.check_interval_ms %d is below minimum 50, clamping", p.CheckIntervalMs))
		p.CheckIntervalMs = 50
	} else if p.CheckIntervalMs > 60000 {
		r.warn(fmt.Errorf("settings.performance.pausing.check_interval_ms %d exceeds maximum 60000, clamping", p.CheckIntervalMs))
		p.CheckIntervalMs = 60000
	}
}

func (c *Config) validateWatcher(r *ValidationResult) {
	w := &c.Settings.Performance.Watcher
	if w.IntervalMs < 50 {
		r.warn(fmt.Errorf("settings.performance.watcher.interval_ms %d is below minimum 50, clamping", w.IntervalMs))
		w.IntervalMs = 50
	}
}

func (c *Config) validateInteractions(r *ValidationResult) {
	i := &c.Settings.Performance.Interactions
	if i.PollIntervalMs < 1 {
		r.warn(fmt.Errorf("settings.performance.interactions.poll_interval_ms %d is below minimum 1, clamping", i.PollIntervalMs))
		i.PollIntervalMs = 1
	}
	if i.MoveThresholdPx < 0 {
		r.warn(fmt.Errorf("settings.performance.interactions.move_threshold_px %d is negative, clamping to 0", i.MoveThresholdPx))
		i.MoveThresholdPx = 0
	}
}

func (c *Config) validateAudio(r *ValidationResult) {
	a := &c.Settings.Performance.Audio
	if a.SampleIntervalMs < 1 {
		r.warn(fmt.Errorf("settings.performance.audio.sample_interval_ms %d is below minimum 1, clamping", a.SampleIntervalMs))
		a.SampleIntervalMs = 1
	}
	if a.EndpointRefreshMs < a.SampleIntervalMs {
		r.warn(fmt.Errorf("settings.performance.audio.endpoint_refresh_ms %d is below sample_interval_ms, clamping", a.EndpointRefreshMs))
		a.EndpointRefreshMs = a.SampleIntervalMs
	}
	if a.ChangeThreshold < 0 {
		r.warn(fmt.Errorf("settings.performance.audio.change_threshold %v is negative, clamping to 0", a.ChangeThreshold))
		a.ChangeThreshold = 0
	}
	if a.QuantizeDecimals < 0 || a.QuantizeDecimals > 6 {
		r.warn(fmt.Errorf("settings.performance.audio.quantize_decimals %d out of range [0,6], clamping to 2", a.QuantizeDecimals))
		a.QuantizeDecimals = 2
	}
}

func (c *Config) validateRuntime(r *ValidationResult) {
	rt := &c.Settings.Runtime
	if rt.TickSleepMs < 1 {
		r.warn(fmt.Errorf("settings.runtime.tick_sleep_ms %d is below minimum 1, clamping", rt.TickSleepMs))
		rt.TickSleepMs = 1
	} else if rt.TickSleepMs > 1000 {
		r.warn(fmt.Errorf("settings.runtime.tick_sleep_ms %d exceeds maximum 1000, clamping", rt.TickSleepMs))
		rt.TickSleepMs = 1000
	}
}

func (c *Config) validateProfiles(r *ValidationResult) {
	for key, p := range c.Profiles {
		if !p.Enabled {
			continue
		}
		if p.WallpaperID == "" {
			r.fatal(fmt.Errorf("profile %q: wallpaper_id is required when enabled", key))
		}
		if p.ZIndex != "" && !validZLayers[p.ZIndex] {
			r.warn(fmt.Errorf("profile %q: z_index %q is not a known layer; defaulting to normal", key, p.ZIndex))
			updated := p
			updated.ZIndex = "normal"
			c.Profiles[key] = updated
		}
		if !validMonitorSelector(p.MonitorIndex) {
			r.warn(fmt.Errorf("profile %q: monitor_index %q is not \"*\", \"p\", or a numeric ordinal; defaulting to \"*\"", key, p.MonitorIndex))
			updated := c.Profiles[key]
			updated.MonitorIndex = "*"
			c.Profiles[key] = updated
		}
	}
}

func validMonitorSelector(sel string) bool {
	if sel == "*" || sel == "p" {
		return true
	}
	if sel == "" {
		return false
	}
	for _, r := range sel {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
