package topology

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/platform"
)

type fakeMonitorSource struct {
	mu       sync.Mutex
	monitors []platform.MonitorInfo
	err      error
}

func (f *fakeMonitorSource) ListMonitors() ([]platform.MonitorInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]platform.MonitorInfo, len(f.monitors))
	copy(out, f.monitors)
	return out, nil
}

func (f *fakeMonitorSource) set(monitors []platform.MonitorInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitors = monitors
}

func TestStartPublishesInitialSnapshot(t *testing.T) {
	src := &fakeMonitorSource{monitors: []platform.MonitorInfo{
		{ID: "A", Ordinal: 0, Primary: true, Rect: platform.Rect{W: 1920, H: 1080}},
	}}
	w := New(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	snap := w.Current()
	if snap.Version != 1 {
		t.Fatalf("expected version 1, got %d", snap.Version)
	}
	if len(snap.Monitors) != 1 || snap.Monitors[0].ID != "A" {
		t.Fatalf("unexpected monitors: %+v", snap.Monitors)
	}
}

func TestScanWithRetryEventuallyFails(t *testing.T) {
	src := &fakeMonitorSource{err: errors.New("enumeration unavailable")}
	w := New(src)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := w.scanWithRetry(ctx)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error after retry budget exhausted")
	}
	if elapsed < retryBudget {
		t.Fatalf("expected at least %v of retrying, took %v", retryBudget, elapsed)
	}
}

func TestChangedDetectsMonitorSetDifference(t *testing.T) {
	a := platform.TopologySnapshot{Monitors: []platform.MonitorInfo{{ID: "A"}}}
	b := platform.TopologySnapshot{Monitors: []platform.MonitorInfo{{ID: "A"}, {ID: "B"}}}

	if !changed(a, b) {
		t.Fatal("expected a change when monitor count differs")
	}
	if changed(a, a) {
		t.Fatal("expected no change for identical snapshots")
	}
}
