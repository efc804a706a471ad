package config

import (
	"fmt"
	"testing"
)

func TestHasFatals(t *testing.T) {
	r := &ValidationResult{}
	if r.HasFatals() {
		t.Fatal("empty result should not have fatals")
	}

	r.fatal(fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("expected HasFatals to be true after a fatal was recorded")
	}
}

func TestAllErrors(t *testing.T) {
	r := &ValidationResult{}
	r.warn(fmt.Errorf("warn1"))
	r.fatal(fmt.Errorf("fatal1"))
	r.warn(fmt.Errorf("warn2"))

	all := r.AllErrors()
	if len(all) != 3 {
		t.Fatalf("expected 3 combined errors, got %d", len(all))
	}
	if all[0].Error() != "fatal1" {
		t.Fatalf("expected fatals first, got %v", all)
	}
}

func TestValidateTieredDefaultConfigIsClean(t *testing.T) {
	cfg := Default()
	result := cfg.ValidateTiered()

	if result.HasFatals() {
		t.Fatalf("default config should have no fatal errors, got %v", result.Fatals)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("default config should have no warnings, got %v", result.Warnings)
	}
}

func TestValidatePauseModeRejectsUnknownValue(t *testing.T) {
	cfg := Default()
	cfg.Settings.Performance.Pausing.Focus = "sometimes"

	result := cfg.ValidateTiered()
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for invalid pause mode")
	}
	if cfg.Settings.Performance.Pausing.Focus != "off" {
		t.Fatalf("expected invalid pause mode to be clamped to off, got %q", cfg.Settings.Performance.Pausing.Focus)
	}
}

func TestValidatePausingIntervalClamping(t *testing.T) {
	cfg := Default()
	cfg.Settings.Performance.Pausing.CheckIntervalMs = 1
	cfg.Settings.Performance.Pausing.IdleTimeoutMs = -5

	result := cfg.ValidateTiered()
	if len(result.Warnings) < 2 {
		t.Fatalf("expected warnings for both clamped fields, got %v", result.Warnings)
	}
	if cfg.Settings.Performance.Pausing.CheckIntervalMs != 50 {
		t.Fatalf("expected check interval clamped to 50, got %d", cfg.Settings.Performance.Pausing.CheckIntervalMs)
	}
	if cfg.Settings.Performance.Pausing.IdleTimeoutMs != 0 {
		t.Fatalf("expected idle timeout clamped to 0, got %d", cfg.Settings.Performance.Pausing.IdleTimeoutMs)
	}
}

func TestValidateAudioEndpointRefreshBelowSampleInterval(t *testing.T) {
	cfg := Default()
	cfg.Settings.Performance.Audio.SampleIntervalMs = 200
	cfg.Settings.Performance.Audio.EndpointRefreshMs = 50

	result := cfg.ValidateTiered()
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for endpoint_refresh_ms below sample_interval_ms")
	}
	if cfg.Settings.Performance.Audio.EndpointRefreshMs != 200 {
		t.Fatalf("expected endpoint refresh clamped up to 200, got %d", cfg.Settings.Performance.Audio.EndpointRefreshMs)
	}
}

func TestValidateRuntimeTickSleepClamping(t *testing.T) {
	cfg := Default()
	cfg.Settings.Runtime.TickSleepMs = 0

	result := cfg.ValidateTiered()
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for zero tick_sleep_ms")
	}
	if cfg.Settings.Runtime.TickSleepMs != 1 {
		t.Fatalf("expected tick sleep clamped to 1, got %d", cfg.Settings.Runtime.TickSleepMs)
	}
}

func TestValidateProfileRequiresWallpaperIDWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Profiles["wallpaper1"] = ProfileConfig{
		Enabled:      true,
		MonitorIndex: "*",
	}

	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("expected a fatal error for enabled profile missing wallpaper_id")
	}
}

func TestValidateProfileMonitorIndexAndZIndex(t *testing.T) {
	cfg := Default()
	cfg.Profiles["wallpaper1"] = ProfileConfig{
		Enabled:      true,
		MonitorIndex: "not-a-selector",
		WallpaperID:  "ocean",
		ZIndex:       "stratosphere",
	}

	result := cfg.ValidateTiered()
	if len(result.Warnings) < 2 {
		t.Fatalf("expected warnings for both bad monitor_index and bad z_index, got %v", result.Warnings)
	}

	p := cfg.Profiles["wallpaper1"]
	if p.MonitorIndex != "*" {
		t.Fatalf("expected monitor_index defaulted to *, got %q", p.MonitorIndex)
	}
	if p.ZIndex != "normal" {
		t.Fatalf("expected z_index defaulted to normal, got %q", p.ZIndex)
	}
}

func TestValidateProfileNumericMonitorIndexAccepted(t *testing.T) {
	cfg := Default()
	cfg.Profiles["wallpaper1"] = ProfileConfig{
		Enabled:      true,
		MonitorIndex: "2",
		WallpaperID:  "ocean",
	}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("unexpected fatal errors: %v", result.Fatals)
	}
	for _, w := range result.Warnings {
		t.Errorf("unexpected warning: %v", w)
	}
}

func TestValidateDisabledProfileSkipsChecks(t *testing.T) {
	cfg := Default()
	cfg.Profiles["wallpaper1"] = ProfileConfig{
		Enabled:      false,
		MonitorIndex: "garbage",
	}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("disabled profile should not produce fatals, got %v", result.Fatals)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("disabled profile should not produce warnings, got %v", result.Warnings)
	}
}
