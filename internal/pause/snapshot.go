package pause

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/platform"
)

const recaptureInterval = 5 * time.Second

// FrameSource supplies one monitor's last-known Surface frame for
// stitching into the desktop-sized snapshot bitmap. ok is false when
// no Surface currently covers that monitor.
type FrameSource interface {
	CaptureFrame(monitorID string) (img *image.RGBA, rect platform.Rect, ok bool)
}

// SnapshotManager stitches per-monitor Surface captures into a single
// virtual-desktop-sized bitmap, writes it to a recovery cache file,
// and applies it as the OS wallpaper. A background goroutine
// re-captures at a fixed interval while any monitor remains paused.
type SnapshotManager struct {
	plat       platform.Platform
	frames     FrameSource
	cachePath  string
}

func NewSnapshotManager(plat platform.Platform, frames FrameSource, cachePath string) *SnapshotManager {
	return &SnapshotManager{plat: plat, frames: frames, cachePath: cachePath}
}

// Capture stitches every monitor's current frame into one bitmap sized
// to the union rect of topology, writes it to the recovery cache, and
// applies it as the OS wallpaper with the no-persist flag.
func (m *SnapshotManager) Capture(topology platform.TopologySnapshot) error {
	bitmap := m.stitch(topology)

	if err := m.writeCache(bitmap); err != nil {
		return fmt.Errorf("pause: write recovery cache: %w", err)
	}
	if err := m.plat.SetWallpaper(bitmap); err != nil {
		return fmt.Errorf("pause: set wallpaper: %w", err)
	}
	return nil
}

// stitch composes each monitor's captured frame (or last-known frame
// on transient failure, handled by FrameSource itself) at its rect
// offset within the union-rect-sized canvas.
func (m *SnapshotManager) stitch(topology platform.TopologySnapshot) *image.RGBA {
	union := topology.UnionRect()
	canvas := image.NewRGBA(image.Rect(0, 0, union.W, union.H))

	for _, mon := range topology.Monitors {
		img, rect, ok := m.frames.CaptureFrame(mon.ID)
		if !ok || img == nil {
			continue
		}
		dstRect := image.Rect(rect.X-union.X, rect.Y-union.Y, rect.X-union.X+rect.W, rect.Y-union.Y+rect.H)
		draw.Draw(canvas, dstRect, img, image.Point{}, draw.Src)
	}
	return canvas
}

// RunRecapture re-captures the snapshot every recaptureInterval while
// anyPaused reports at least one monitor paused, until ctx is
// cancelled. Keeps the recovery cache fresh in case of a crash while
// paused; idle (nothing paused) ticks are skipped entirely.
func (m *SnapshotManager) RunRecapture(ctx context.Context, topologyOf func() platform.TopologySnapshot, anyPaused func() bool) {
	ticker := time.NewTicker(recaptureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !anyPaused() {
				continue
			}
			if err := m.Capture(topologyOf()); err != nil {
				log.Warn("periodic pause-time recapture failed", "error", err)
			}
		}
	}
}

func (m *SnapshotManager) writeCache(img *image.RGBA) error {
	if err := os.MkdirAll(filepath.Dir(m.cachePath), 0o755); err != nil {
		return err
	}
	tmp := m.cachePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := png.Encode(bw, img); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, m.cachePath)
}

// ApplyRecoveryCacheIfPresent is called before any Surface is created,
// so the desktop is not blank during process warm-up.
func ApplyRecoveryCacheIfPresent(plat platform.Platform, cachePath string) error {
	f, err := os.Open(cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("pause: open recovery cache: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return fmt.Errorf("pause: decode recovery cache: %w", err)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(b)
		draw.Draw(rgba, b, img, b.Min, draw.Src)
	}

	return plat.SetWallpaper(rgba)
}
