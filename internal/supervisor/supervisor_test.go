package supervisor

import (
	"encoding/json"
	"testing"

	"github.com/sentinel-wallpaper/engine/internal/config"
	"github.com/sentinel-wallpaper/engine/internal/datapump"
	"github.com/sentinel-wallpaper/engine/internal/editable"
	"github.com/sentinel-wallpaper/engine/internal/hostlocator"
	"github.com/sentinel-wallpaper/engine/internal/messages"
	"github.com/sentinel-wallpaper/engine/internal/platform/fake"
	"github.com/sentinel-wallpaper/engine/internal/samplers"
	"github.com/sentinel-wallpaper/engine/internal/surface"
)

func newTestSupervisor(t *testing.T, assetIDs ...string) (*Supervisor, *fake.Platform) {
	t.Helper()
	topo := twoMonitorTopology()
	plat := fake.New(topo.Monitors)
	host := hostlocator.New(plat)
	reg := newTestRegistry(t, assetIDs...)
	store := editable.New(reg, nil)
	store.Load()

	cfg := &config.Config{
		Settings:     config.SettingsConfig{Runtime: config.RuntimeConfig{TickSleepMs: 8}},
		ProfileOrder: []string{},
		Profiles:     map[string]config.ProfileConfig{},
	}

	sv := New(plat, host, reg, store, cfg, nil, nil)
	sv.mu.Lock()
	sv.topology = topo
	sv.mu.Unlock()
	return sv, plat
}

func oneProfileEverywhere(assetID string, layer string) config.ProfileConfig {
	return config.ProfileConfig{Enabled: true, MonitorIndex: "*", WallpaperID: assetID, Mode: "fill", ZIndex: layer}
}

func TestReconcileCreatesOneSurfacePerResolvedMonitor(t *testing.T) {
	sv, _ := newTestSupervisor(t, "lava-lamp")
	sv.cfg.ProfileOrder = []string{"wallpaper1"}
	sv.cfg.Profiles["wallpaper1"] = oneProfileEverywhere("lava-lamp", "desktop")

	sv.reconcile()

	if len(sv.surfaces) != 2 {
		t.Fatalf("expected 2 surfaces, got %d", len(sv.surfaces))
	}
}

func TestReconcileDestroysSurfaceNoLongerTargeted(t *testing.T) {
	sv, _ := newTestSupervisor(t, "lava-lamp")
	sv.cfg.ProfileOrder = []string{"wallpaper1"}
	sv.cfg.Profiles["wallpaper1"] = oneProfileEverywhere("lava-lamp", "desktop")
	sv.reconcile()
	if len(sv.surfaces) != 2 {
		t.Fatalf("setup: expected 2 surfaces, got %d", len(sv.surfaces))
	}

	sv.cfg.Profiles["wallpaper1"] = config.ProfileConfig{Enabled: false}
	sv.reconcile()

	if len(sv.surfaces) != 0 {
		t.Fatalf("expected all surfaces torn down, got %d", len(sv.surfaces))
	}
}

func TestApplyPauseEdgesTogglesOnlyMatchingMonitor(t *testing.T) {
	sv, _ := newTestSupervisor(t, "lava-lamp")
	sv.cfg.ProfileOrder = []string{"wallpaper1"}
	sv.cfg.Profiles["wallpaper1"] = oneProfileEverywhere("lava-lamp", "normal")
	sv.reconcile()

	sv.applyPauseEdges(event{pauseRising: []string{"A"}})

	for key, s := range sv.surfaces {
		if key.MonitorID == "A" && s.State() != surface.StatePaused {
			t.Fatalf("expected monitor A surface paused, got state %v", s.State())
		}
		if key.MonitorID == "B" && s.State() == surface.StatePaused {
			t.Fatalf("expected monitor B surface to stay active")
		}
	}
}

func TestApplyDataUpdatePushesOnlyToMatchingMonitorAboveGeneration(t *testing.T) {
	sv, plat := newTestSupervisor(t, "lava-lamp")
	sv.cfg.ProfileOrder = []string{"wallpaper1"}
	sv.cfg.Profiles["wallpaper1"] = oneProfileEverywhere("lava-lamp", "normal")
	sv.reconcile()

	upd := func(gen uint64) datapump.Update {
		return datapump.Update{MonitorID: "A", Generation: gen, SysData: map[string]any{"cpu.usage": 12.0}, AppData: map[string]any{}}
	}

	sv.applyDataUpdate(upd(1))
	before := len(plat.Messages)
	if before == 0 {
		t.Fatal("expected at least one posted message for monitor A")
	}

	sv.applyDataUpdate(upd(1))
	if len(plat.Messages) != before {
		t.Fatalf("expected stale generation to be dropped, got %d new messages", len(plat.Messages)-before)
	}

	sv.applyDataUpdate(upd(2))
	if len(plat.Messages) <= before {
		t.Fatal("expected a fresher generation to push again")
	}
}

func TestApplyDataUpdateHonorsSurfaceDemandedSections(t *testing.T) {
	sv, plat := newTestSupervisor(t, "lava-lamp")
	sv.cfg.ProfileOrder = []string{"wallpaper1"}
	sv.cfg.Profiles["wallpaper1"] = oneProfileEverywhere("lava-lamp", "normal")
	sv.reconcile()

	var target *surface.Surface
	for key, s := range sv.surfaces {
		if key.MonitorID == "A" {
			target = s
		}
	}
	if target == nil {
		t.Fatal("setup: no surface for monitor A")
	}
	plat.DeliverScriptMessage(target.WebView(), []byte(`{"type":"sentinel_demands","sections":["appdata"]}`))

	upd := datapump.Update{
		MonitorID:  "A",
		Generation: 1,
		SysData:    map[string]any{"cpu.usage": 12.0},
		AppData:    map[string]any{"focused": true},
	}
	sv.applyDataUpdate(upd)

	var reg messages.Registry
	for _, m := range plat.Messages {
		if err := json.Unmarshal(m.Payload, &reg); err == nil && reg.Type == messages.TypeRegistry {
			break
		}
	}
	if len(reg.SysData) != 0 {
		t.Fatalf("expected sysdata filtered out, got %v", reg.SysData)
	}
	if reg.AppData == nil || reg.AppData["focused"] != true {
		t.Fatalf("expected appdata to survive the demand filter, got %v", reg.AppData)
	}
}

func TestApplyCursorEventOnlyReachesOwningSurface(t *testing.T) {
	sv, plat := newTestSupervisor(t, "lava-lamp")
	sv.cfg.ProfileOrder = []string{"wallpaper1"}
	sv.cfg.Profiles["wallpaper1"] = oneProfileEverywhere("lava-lamp", "normal")
	sv.reconcile()

	before := len(plat.Messages)
	sv.applyCursorEvent(samplers.CursorEvent{Kind: samplers.CursorMove, X: 1930, Y: 10}) // inside monitor B (1920..3840)
	if len(plat.Messages) != before+1 {
		t.Fatalf("expected exactly one push for the owning surface, got %d new", len(plat.Messages)-before)
	}

	var mv messages.Move
	if err := json.Unmarshal(plat.Messages[len(plat.Messages)-1].Payload, &mv); err != nil {
		t.Fatalf("decode move: %v", err)
	}
	if mv.X != 10 {
		t.Fatalf("expected local X relative to monitor B origin, got %d", mv.X)
	}
}

func TestSaveEditableUnknownKeyDoesNotPanic(t *testing.T) {
	sv, _ := newTestSupervisor(t, "lava-lamp")
	sv.cfg.ProfileOrder = []string{"wallpaper1"}
	sv.cfg.Profiles["wallpaper1"] = oneProfileEverywhere("lava-lamp", "normal")
	sv.reconcile()

	// lava-lamp's bare test manifest declares no editables, so saving
	// against it should fail gracefully rather than panic.
	sv.handle(event{kind: eventUISaveEditable, uiSaveEdit: messages.SaveEditable{Key: "lava-lamp/speed", Value: 2.0}})
}

func TestAssetIDOfAndKeyOfSplitCompositeKey(t *testing.T) {
	if got := assetIDOf("lava-lamp/speed"); got != "lava-lamp" {
		t.Fatalf("expected lava-lamp, got %q", got)
	}
	if got := keyOf("lava-lamp/speed"); got != "speed" {
		t.Fatalf("expected speed, got %q", got)
	}
}
