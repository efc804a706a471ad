package pause

import (
	"testing"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/platform"
)

type fakeStateSource struct {
	focus    map[string]platform.FocusState
	idleSecs float64
}

func (f *fakeStateSource) FocusStates() (map[string]platform.FocusState, error) {
	return f.focus, nil
}

func (f *fakeStateSource) IdleSeconds() (float64, error) {
	return f.idleSecs, nil
}

type recordingSink struct {
	rising  [][]string
	falling [][]string
	global  []bool
}

func (r *recordingSink) OnPauseRisingEdge(ids []string)  { r.rising = append(r.rising, ids) }
func (r *recordingSink) OnPauseFallingEdge(ids []string) { r.falling = append(r.falling, ids) }
func (r *recordingSink) OnGlobalPauseChange(paused bool) { r.global = append(r.global, paused) }

func baseConfig() Config {
	return Config{
		Focus:         ModeOff,
		Maximized:     ModeOff,
		Fullscreen:    ModeOff,
		Idle:          ModeOff,
		IdleTimeoutMs: 0,
		CheckInterval: 10 * time.Millisecond,
	}
}

func TestPerMonitorFocusPausesOnlyThatMonitor(t *testing.T) {
	cfg := baseConfig()
	cfg.Focus = ModePerMonitor

	src := &fakeStateSource{focus: map[string]platform.FocusState{
		"A": {Focused: true},
		"B": {Focused: false},
	}}
	sink := &recordingSink{}
	c := New(src, cfg, sink)

	c.tick()

	v := c.Verdicts()
	if v["A"].Paused {
		t.Fatalf("expected focused monitor A to stay active, got %+v", v["A"])
	}
	if !v["B"].Paused || v["B"].Reason != ReasonFocus {
		t.Fatalf("expected unfocused monitor B paused by focus, got %+v", v["B"])
	}
}

func TestAllMonitorsModePausesEveryMonitorWhenAnyFires(t *testing.T) {
	cfg := baseConfig()
	cfg.Maximized = ModeAllMonitors

	src := &fakeStateSource{focus: map[string]platform.FocusState{
		"A": {Maximized: true},
		"B": {Maximized: false},
	}}
	sink := &recordingSink{}
	c := New(src, cfg, sink)

	c.tick()

	v := c.Verdicts()
	if !v["A"].Paused || !v["B"].Paused {
		t.Fatalf("expected both monitors paused under all-monitors mode, got %+v", v)
	}
}

func TestIdleModeFiresPastTimeout(t *testing.T) {
	cfg := baseConfig()
	cfg.Idle = ModeAllMonitors
	cfg.IdleTimeoutMs = 1000

	src := &fakeStateSource{focus: map[string]platform.FocusState{"A": {Focused: true}}, idleSecs: 5}
	sink := &recordingSink{}
	c := New(src, cfg, sink)

	c.tick()

	v := c.Verdicts()
	if !v["A"].Paused || v["A"].Reason != ReasonIdle {
		t.Fatalf("expected idle pause, got %+v", v["A"])
	}
}

func TestRisingAndFallingEdgesNotifySink(t *testing.T) {
	cfg := baseConfig()
	cfg.Focus = ModePerMonitor

	src := &fakeStateSource{focus: map[string]platform.FocusState{"A": {Focused: false}}}
	sink := &recordingSink{}
	c := New(src, cfg, sink)

	c.tick() // rising edge: A becomes paused
	if len(sink.rising) != 1 || sink.rising[0][0] != "A" {
		t.Fatalf("expected rising edge for A, got %+v", sink.rising)
	}
	if len(sink.global) != 1 || !sink.global[0] {
		t.Fatalf("expected global pause to flip true, got %+v", sink.global)
	}

	src.focus["A"] = platform.FocusState{Focused: true}
	c.tick() // falling edge: A becomes active
	if len(sink.falling) != 1 || sink.falling[0][0] != "A" {
		t.Fatalf("expected falling edge for A, got %+v", sink.falling)
	}
	if len(sink.global) != 2 || sink.global[1] {
		t.Fatalf("expected global pause to flip false, got %+v", sink.global)
	}
}

func TestNoFlippingModeProducesNoEdges(t *testing.T) {
	cfg := baseConfig()
	src := &fakeStateSource{focus: map[string]platform.FocusState{"A": {Focused: true}}}
	sink := &recordingSink{}
	c := New(src, cfg, sink)

	c.tick()
	c.tick()

	if len(sink.rising) != 0 || len(sink.falling) != 0 || len(sink.global) != 0 {
		t.Fatalf("expected no edges with all sources off, got rising=%v falling=%v global=%v", sink.rising, sink.falling, sink.global)
	}
}
