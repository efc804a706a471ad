// Package supervisor runs the single-threaded reconciliation event
// loop that owns every Surface: it resolves config profiles against
// the current topology into a target Surface set, diffs that against
// what currently exists, and applies creates/destroys/resizes
// all-or-nothing per event.
package supervisor

import (
	"sort"
	"strconv"

	"github.com/sentinel-wallpaper/engine/internal/asset"
	"github.com/sentinel-wallpaper/engine/internal/config"
	"github.com/sentinel-wallpaper/engine/internal/logging"
	"github.com/sentinel-wallpaper/engine/internal/platform"
	"github.com/sentinel-wallpaper/engine/internal/surface"
)

var log = logging.L("supervisor")

// Target is the desired state for one (monitor, profile) Surface.
type Target struct {
	Spec surface.Spec
}

// resolveMonitorSelector expands a ProfileConfig.MonitorIndex selector
// ("*", "p", or a stringified ordinal) against the current topology.
func resolveMonitorSelector(selector string, topology platform.TopologySnapshot) []platform.MonitorInfo {
	switch selector {
	case "*":
		out := make([]platform.MonitorInfo, len(topology.Monitors))
		copy(out, topology.Monitors)
		return out
	case "p":
		for _, m := range topology.Monitors {
			if m.Primary {
				return []platform.MonitorInfo{m}
			}
		}
		return nil
	default:
		ordinal, err := strconv.Atoi(selector)
		if err != nil {
			return nil
		}
		for _, m := range topology.Monitors {
			if m.Ordinal == ordinal {
				return []platform.MonitorInfo{m}
			}
		}
		return nil
	}
}

// computeTargetSet resolves every enabled profile against the current
// topology and asset registry into a target (monitor-id, profile-id)
// Surface map. Profiles are processed in cfg.ProfileOrder; when two
// enabled profiles both resolve to the `desktop` z-layer on the same
// monitor, only the later one (by config order) is kept for that slot
// — the open question's "later profile wins" decision — since exactly
// one Surface can meaningfully occupy the desktop-host slot per
// monitor. Every other z-layer is free to stack without conflict.
func computeTargetSet(cfg *config.Config, topology platform.TopologySnapshot, registry *asset.Registry) map[surface.Key]Target {
	out := make(map[surface.Key]Target)
	desktopOwner := make(map[string]string) // monitor id -> profile key currently holding desktop

	for _, profileKey := range cfg.ProfileOrder {
		p, ok := cfg.Profiles[profileKey]
		if !ok || !p.Enabled {
			continue
		}

		a, ok := registry.Get(p.WallpaperID)
		if !ok || a.Unavailable {
			log.Warn("profile references unavailable or unknown asset, skipping", "profile", profileKey, "asset", p.WallpaperID)
			continue
		}

		layer := platform.ZLayer(p.ZIndex)
		if !validZLayer(layer) {
			layer = platform.ZLayerNormal
		}
		mode := surface.LayoutMode(p.Mode)
		if !validLayout(mode) {
			mode = surface.LayoutFill
		}

		if mode == surface.LayoutSpan {
			monitors := resolveMonitorSelector(p.MonitorIndex, topology)
			if len(monitors) == 0 {
				continue
			}
			spanRect := monitors[0].Rect
			for _, m := range monitors[1:] {
				spanRect = spanRect.Union(m.Rect)
			}
			key := surface.Key{MonitorID: "span:" + profileKey, ProfileID: profileKey}
			out[key] = Target{Spec: surface.Spec{
				Key:      key,
				Monitor:  monitors[0],
				AssetURL: a.EntryURL,
				Layout:   mode,
				ZLayer:   layer,
				SpanRect: spanRect,
			}}
			continue
		}

		for _, mon := range resolveMonitorSelector(p.MonitorIndex, topology) {
			key := surface.Key{MonitorID: mon.ID, ProfileID: profileKey}

			if layer == platform.ZLayerDesktop {
				if owner, exists := desktopOwner[mon.ID]; exists {
					delete(out, surface.Key{MonitorID: mon.ID, ProfileID: owner})
					log.Info("later profile supersedes desktop-layer owner for monitor", "monitor", mon.ID, "previous", owner, "current", profileKey)
				}
				desktopOwner[mon.ID] = profileKey
			}

			out[key] = Target{Spec: surface.Spec{
				Key:      key,
				Monitor:  mon,
				AssetURL: a.EntryURL,
				Layout:   mode,
				ZLayer:   layer,
			}}
		}
	}

	return out
}

func validZLayer(layer platform.ZLayer) bool {
	switch layer {
	case platform.ZLayerDesktop, platform.ZLayerBottom, platform.ZLayerNormal, platform.ZLayerTop, platform.ZLayerTopmost, platform.ZLayerOverlay:
		return true
	default:
		return false
	}
}

func validLayout(mode surface.LayoutMode) bool {
	switch mode {
	case surface.LayoutFill, surface.LayoutFit, surface.LayoutStretch, surface.LayoutCenter, surface.LayoutTile, surface.LayoutSpan:
		return true
	default:
		return false
	}
}

// diff compares the target set against the current Surface set,
// returning keys to create, keys to destroy, and keys whose geometry
// changed (update in place rather than recreate). Only the rect is
// compared: a Surface whose z-layer alone changed is not reported.
func diff(target map[surface.Key]Target, current map[surface.Key]*surface.Surface) (toCreate []surface.Key, toDestroy []surface.Key, toUpdate []surface.Key) {
	for key := range target {
		if _, ok := current[key]; !ok {
			toCreate = append(toCreate, key)
		}
	}
	for key := range current {
		if _, ok := target[key]; !ok {
			toDestroy = append(toDestroy, key)
		}
	}
	for key, t := range target {
		s, ok := current[key]
		if !ok {
			continue
		}
		if s.Rect() != targetRectOf(t.Spec) {
			toUpdate = append(toUpdate, key)
		}
	}

	sort.Slice(toCreate, func(i, j int) bool { return keyLess(toCreate[i], toCreate[j]) })
	sort.Slice(toDestroy, func(i, j int) bool { return keyLess(toDestroy[i], toDestroy[j]) })
	sort.Slice(toUpdate, func(i, j int) bool { return keyLess(toUpdate[i], toUpdate[j]) })
	return
}

func keyLess(a, b surface.Key) bool {
	if a.MonitorID != b.MonitorID {
		return a.MonitorID < b.MonitorID
	}
	return a.ProfileID < b.ProfileID
}

func targetRectOf(spec surface.Spec) platform.Rect {
	if spec.Layout == surface.LayoutSpan {
		return spec.SpanRect
	}
	return spec.Monitor.Rect
}
