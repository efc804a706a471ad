package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sentinel-wallpaper/engine/internal/asset"
	"github.com/sentinel-wallpaper/engine/internal/config"
	"github.com/sentinel-wallpaper/engine/internal/platform"
	"github.com/sentinel-wallpaper/engine/internal/surface"
)

func twoMonitorTopology() platform.TopologySnapshot {
	return platform.TopologySnapshot{Monitors: []platform.MonitorInfo{
		{ID: "A", Ordinal: 0, Primary: true, Rect: platform.Rect{X: 0, Y: 0, W: 1920, H: 1080}},
		{ID: "B", Ordinal: 1, Primary: false, Rect: platform.Rect{X: 1920, Y: 0, W: 1920, H: 1080}},
	}}
}

func TestResolveMonitorSelectorWildcardReturnsAll(t *testing.T) {
	topo := twoMonitorTopology()
	got := resolveMonitorSelector("*", topo)
	if len(got) != 2 {
		t.Fatalf("expected 2 monitors, got %d", len(got))
	}
}

func TestResolveMonitorSelectorPrimary(t *testing.T) {
	topo := twoMonitorTopology()
	got := resolveMonitorSelector("p", topo)
	if len(got) != 1 || got[0].ID != "A" {
		t.Fatalf("expected primary monitor A, got %+v", got)
	}
}

func TestResolveMonitorSelectorOrdinal(t *testing.T) {
	topo := twoMonitorTopology()
	got := resolveMonitorSelector("1", topo)
	if len(got) != 1 || got[0].ID != "B" {
		t.Fatalf("expected ordinal 1 monitor B, got %+v", got)
	}
}

func TestResolveMonitorSelectorUnknownReturnsNil(t *testing.T) {
	topo := twoMonitorTopology()
	if got := resolveMonitorSelector("9", topo); got != nil {
		t.Fatalf("expected nil for out-of-range ordinal, got %+v", got)
	}
}

// newTestRegistry scans a fresh directory holding one bare manifest.json
// (plus index.html) per asset ID, then loads it as a directory-scan
// registry — the same fallback path asset.Registry uses with no
// backend catalog configured.
func newTestRegistry(t *testing.T, assetIDs ...string) *asset.Registry {
	t.Helper()
	root := t.TempDir()
	for _, id := range assetIDs {
		dir := filepath.Join(root, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"name":"`+id+`"}`), 0o644); err != nil {
			t.Fatalf("write manifest: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644); err != nil {
			t.Fatalf("write index: %v", err)
		}
	}
	reg := asset.New(nil, root)
	if err := reg.Load(); err != nil {
		t.Fatalf("registry load: %v", err)
	}
	return reg
}

func TestComputeTargetSetResolvesWildcardAcrossMonitors(t *testing.T) {
	topo := twoMonitorTopology()
	reg := newTestRegistry(t, "lava-lamp")

	cfg := &config.Config{
		ProfileOrder: []string{"wallpaper1"},
		Profiles: map[string]config.ProfileConfig{
			"wallpaper1": {Enabled: true, MonitorIndex: "*", WallpaperID: "lava-lamp", Mode: "fill", ZIndex: "desktop"},
		},
	}

	target := computeTargetSet(cfg, topo, reg)
	if len(target) != 2 {
		t.Fatalf("expected one surface per monitor, got %d", len(target))
	}
	if _, ok := target[surface.Key{MonitorID: "A", ProfileID: "wallpaper1"}]; !ok {
		t.Fatal("expected a target for monitor A")
	}
	if _, ok := target[surface.Key{MonitorID: "B", ProfileID: "wallpaper1"}]; !ok {
		t.Fatal("expected a target for monitor B")
	}
}

func TestComputeTargetSetLaterProfileWinsDesktopLayer(t *testing.T) {
	topo := twoMonitorTopology()
	reg := newTestRegistry(t, "asset-one", "asset-two")

	cfg := &config.Config{
		ProfileOrder: []string{"wallpaper1", "wallpaper2"},
		Profiles: map[string]config.ProfileConfig{
			"wallpaper1": {Enabled: true, MonitorIndex: "p", WallpaperID: "asset-one", Mode: "fill", ZIndex: "desktop"},
			"wallpaper2": {Enabled: true, MonitorIndex: "p", WallpaperID: "asset-two", Mode: "fill", ZIndex: "desktop"},
		},
	}

	target := computeTargetSet(cfg, topo, reg)
	if len(target) != 1 {
		t.Fatalf("expected exactly one desktop-layer survivor for monitor A, got %d", len(target))
	}
	if _, ok := target[surface.Key{MonitorID: "A", ProfileID: "wallpaper2"}]; !ok {
		t.Fatalf("expected the later profile (wallpaper2) to win, got %+v", target)
	}
}

func TestComputeTargetSetAllowsStackingAtDifferentZLayers(t *testing.T) {
	topo := twoMonitorTopology()
	reg := newTestRegistry(t, "asset-one", "asset-two")

	cfg := &config.Config{
		ProfileOrder: []string{"wallpaper1", "wallpaper2"},
		Profiles: map[string]config.ProfileConfig{
			"wallpaper1": {Enabled: true, MonitorIndex: "p", WallpaperID: "asset-one", Mode: "fill", ZIndex: "desktop"},
			"wallpaper2": {Enabled: true, MonitorIndex: "p", WallpaperID: "asset-two", Mode: "fill", ZIndex: "overlay"},
		},
	}

	target := computeTargetSet(cfg, topo, reg)
	if len(target) != 2 {
		t.Fatalf("expected both profiles to coexist at distinct z-layers, got %d", len(target))
	}
}

func TestComputeTargetSetSkipsDisabledAndUnavailableProfiles(t *testing.T) {
	topo := twoMonitorTopology()
	reg := newTestRegistry(t, "asset-one")

	cfg := &config.Config{
		ProfileOrder: []string{"wallpaper1", "wallpaper2"},
		Profiles: map[string]config.ProfileConfig{
			"wallpaper1": {Enabled: false, MonitorIndex: "*", WallpaperID: "asset-one"},
			"wallpaper2": {Enabled: true, MonitorIndex: "*", WallpaperID: "missing-asset"},
		},
	}

	target := computeTargetSet(cfg, topo, reg)
	if len(target) != 0 {
		t.Fatalf("expected no targets, got %+v", target)
	}
}

func TestComputeTargetSetSpanUsesUnionRect(t *testing.T) {
	topo := twoMonitorTopology()
	reg := newTestRegistry(t, "asset-one")

	cfg := &config.Config{
		ProfileOrder: []string{"wallpaper1"},
		Profiles: map[string]config.ProfileConfig{
			"wallpaper1": {Enabled: true, MonitorIndex: "*", WallpaperID: "asset-one", Mode: "span", ZIndex: "normal"},
		},
	}

	target := computeTargetSet(cfg, topo, reg)
	if len(target) != 1 {
		t.Fatalf("expected a single spanning surface, got %d", len(target))
	}
	for _, tgt := range target {
		if tgt.Spec.SpanRect.W != 3840 || tgt.Spec.SpanRect.H != 1080 {
			t.Fatalf("expected span rect to cover both monitors, got %+v", tgt.Spec.SpanRect)
		}
	}
}

func TestDiffDetectsCreateAndDestroy(t *testing.T) {
	target := map[surface.Key]Target{
		{MonitorID: "A", ProfileID: "p1"}: {Spec: surface.Spec{Monitor: platform.MonitorInfo{Rect: platform.Rect{W: 100, H: 100}}}},
		{MonitorID: "B", ProfileID: "p1"}: {Spec: surface.Spec{Monitor: platform.MonitorInfo{Rect: platform.Rect{W: 200, H: 200}}}},
	}
	current := map[surface.Key]*surface.Surface{
		{MonitorID: "C", ProfileID: "p1"}: nil,
	}

	toCreate, toDestroy, _ := diff(target, current)

	if len(toCreate) != 2 {
		t.Fatalf("expected both A and B to need creation, got %+v", toCreate)
	}
	if len(toDestroy) != 1 || toDestroy[0].MonitorID != "C" {
		t.Fatalf("expected C to be destroyed, got %+v", toDestroy)
	}
}
