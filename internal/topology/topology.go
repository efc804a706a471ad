// Package topology tracks the virtual desktop's monitor layout,
// publishing a versioned, immutable snapshot on startup and whenever
// the layout changes.
package topology

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/logging"
	"github.com/sentinel-wallpaper/engine/internal/platform"
)

var log = logging.L("topology")

const (
	retryBackoff = 250 * time.Millisecond
	retryBudget  = 2 * time.Second
	pollInterval = 2 * time.Second
)

// Monitor is the enumeration backend; platform.Platform satisfies it.
type Monitor interface {
	ListMonitors() ([]platform.MonitorInfo, error)
}

// Watcher polls a Monitor for layout changes and publishes
// TopologySnapshot updates onto a channel.
type Watcher struct {
	monitor Monitor

	mu      sync.RWMutex
	current platform.TopologySnapshot
	version uint64

	updates chan platform.TopologySnapshot
	fatal   chan error
}

// New creates a Watcher. Call Start to perform the initial scan and
// begin polling for changes.
func New(monitor Monitor) *Watcher {
	return &Watcher{
		monitor: monitor,
		updates: make(chan platform.TopologySnapshot, 1),
		fatal:   make(chan error, 1),
	}
}

// Updates returns the channel the Supervisor drains for new snapshots.
func (w *Watcher) Updates() <-chan platform.TopologySnapshot { return w.updates }

// Fatal returns the channel that receives an irrecoverable topology
// loss error (enumeration failing continuously past the retry budget).
func (w *Watcher) Fatal() <-chan error { return w.fatal }

// Current returns the most recently published snapshot.
func (w *Watcher) Current() platform.TopologySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start performs the initial scan (blocking, with retry/backoff) and
// then launches a background poll loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	snap, err := w.scanWithRetry(ctx)
	if err != nil {
		return err
	}
	w.publish(snap)

	go w.pollLoop(ctx)
	return nil
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := w.scanWithRetry(ctx)
			if err != nil {
				select {
				case w.fatal <- err:
				default:
				}
				return
			}
			if changed(w.Current(), snap) {
				w.publish(snap)
			}
		}
	}
}

// scanWithRetry enumerates monitors, retrying transient failures at
// retryBackoff spacing for up to retryBudget before giving up.
func (w *Watcher) scanWithRetry(ctx context.Context) (platform.TopologySnapshot, error) {
	deadline := time.Now().Add(retryBudget)
	var lastErr error

	for {
		monitors, err := w.monitor.ListMonitors()
		if err == nil {
			return buildSnapshot(w.nextVersion(), monitors), nil
		}
		lastErr = err
		log.Warn("monitor enumeration failed, retrying", "error", err)

		if time.Now().After(deadline) {
			return platform.TopologySnapshot{}, fmt.Errorf("topology: enumeration failed after retry budget: %w", lastErr)
		}

		select {
		case <-ctx.Done():
			return platform.TopologySnapshot{}, ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
}

func (w *Watcher) nextVersion() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.version++
	return w.version
}

func (w *Watcher) publish(snap platform.TopologySnapshot) {
	w.mu.Lock()
	w.current = snap
	w.mu.Unlock()

	select {
	case w.updates <- snap:
	default:
		// Drain stale pending update in favor of the newest one.
		select {
		case <-w.updates:
		default:
		}
		w.updates <- snap
	}
}

// buildSnapshot copies the monitor list and stamps the version. It
// does not assign ordinals: the platform layer already sorts monitors
// (primary first, then top-to-bottom/left-to-right) and sets them.
func buildSnapshot(version uint64, monitors []platform.MonitorInfo) platform.TopologySnapshot {
	out := make([]platform.MonitorInfo, len(monitors))
	copy(out, monitors)
	return platform.TopologySnapshot{Version: version, Monitors: out}
}

// changed reports whether the monitor set differs in any attribute
// that matters to reconciliation (count, id, rect, primary, scale).
func changed(prev, next platform.TopologySnapshot) bool {
	if len(prev.Monitors) != len(next.Monitors) {
		return true
	}
	return !reflect.DeepEqual(prev.Monitors, next.Monitors)
}
