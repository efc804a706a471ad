// Package pause computes per-monitor pause verdicts from focus,
// maximized, fullscreen, and idle signals, and drives the
// snapshot/restore cycle that swaps live Surfaces for an OS wallpaper
// bitmap while the desktop would otherwise be rendering unattended.
package pause

import (
	"context"
	"sort"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/logging"
	"github.com/sentinel-wallpaper/engine/internal/platform"
)

var log = logging.L("pause")

// Mode is one pause source's configured behavior.
type Mode string

const (
	ModeOff         Mode = "off"
	ModePerMonitor  Mode = "per-monitor"
	ModeAllMonitors Mode = "all-monitors"
)

// Reason is the verdict's attributed cause, in priority order when
// more than one source fires for the same monitor.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonFocus
	ReasonMaximized
	ReasonFullscreen
	ReasonIdle
)

func (r Reason) String() string {
	switch r {
	case ReasonFocus:
		return "focus"
	case ReasonMaximized:
		return "maximized"
	case ReasonFullscreen:
		return "fullscreen"
	case ReasonIdle:
		return "idle"
	default:
		return "none"
	}
}

// Config carries the per-source mode and timing knobs; mirrors
// config.PausingConfig without importing it, keeping this package
// independently testable.
type Config struct {
	Focus           Mode
	Maximized       Mode
	Fullscreen      Mode
	Idle            Mode
	IdleTimeoutMs   int
	CheckInterval   time.Duration
}

// StateSource is the backend-derived input the controller needs each
// tick; the Supervisor builds this from the IPC appdata RPC plus
// platform.Platform.IdleSeconds.
type StateSource interface {
	FocusStates() (map[string]platform.FocusState, error)
	IdleSeconds() (float64, error)
}

// Verdict is one monitor's current pause state.
type Verdict struct {
	Paused bool
	Reason Reason
}

// Sink receives pause transitions; the Supervisor implements this to
// drive Surface visibility and the snapshot/restore cycle.
type Sink interface {
	OnPauseRisingEdge(monitorIDs []string)
	OnPauseFallingEdge(monitorIDs []string)
	OnGlobalPauseChange(paused bool)
}

// Controller polls StateSource at Config.CheckInterval, computes
// per-monitor verdicts, and notifies a Sink on any edge.
type Controller struct {
	src  StateSource
	cfg  Config
	sink Sink

	verdicts map[string]Verdict
}

func New(src StateSource, cfg Config, sink Sink) *Controller {
	return &Controller{src: src, cfg: cfg, sink: sink, verdicts: make(map[string]Verdict)}
}

// Verdicts returns a copy of the last computed per-monitor verdicts.
func (c *Controller) Verdicts() map[string]Verdict {
	out := make(map[string]Verdict, len(c.verdicts))
	for k, v := range c.verdicts {
		out[k] = v
	}
	return out
}

func (c *Controller) Run(ctx context.Context) {
	interval := c.cfg.CheckInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	focus, err := c.src.FocusStates()
	if err != nil {
		log.Warn("pause controller failed to read focus states", "error", err)
		return
	}
	idleSecs, err := c.src.IdleSeconds()
	if err != nil {
		log.Warn("pause controller failed to read idle seconds", "error", err)
		idleSecs = 0
	}

	next := c.computeVerdicts(focus, idleSecs)
	c.diffAndNotify(next)
	c.verdicts = next
}

// computeVerdicts applies each source's mode across all monitors, then
// merges per monitor (any paused source wins, with ReasonFocus >
// ReasonMaximized > ReasonFullscreen > ReasonIdle priority for the
// reported reason).
func (c *Controller) computeVerdicts(focus map[string]platform.FocusState, idleSecs float64) map[string]Verdict {
	ids := make([]string, 0, len(focus))
	for id := range focus {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	idleTimeout := float64(c.cfg.IdleTimeoutMs) / 1000.0
	idleFired := c.cfg.Idle != ModeOff && idleTimeout > 0 && idleSecs >= idleTimeout

	focusFiresAny, maxFiresAny, fullFiresAny := false, false, false
	for _, id := range ids {
		f := focus[id]
		if !f.Focused {
			focusFiresAny = true
		}
		if f.Maximized {
			maxFiresAny = true
		}
		if f.Fullscreen {
			fullFiresAny = true
		}
	}

	out := make(map[string]Verdict, len(ids))
	for _, id := range ids {
		f := focus[id]
		var reason Reason

		if idleFired && c.cfg.Idle != ModeOff {
			reason = ReasonIdle
		}
		if fires(c.cfg.Fullscreen, f.Fullscreen, fullFiresAny) {
			reason = ReasonFullscreen
		}
		if fires(c.cfg.Maximized, f.Maximized, maxFiresAny) {
			reason = ReasonMaximized
		}
		if fires(c.cfg.Focus, !f.Focused, focusFiresAny) {
			reason = ReasonFocus
		}

		out[id] = Verdict{Paused: reason != ReasonNone, Reason: reason}
	}
	return out
}

// fires evaluates one source's mode for one monitor: off never fires;
// per-monitor fires only when that monitor's own condition is true;
// all-monitors fires for every monitor once any monitor's condition
// is true.
func fires(mode Mode, thisMonitor bool, anyMonitor bool) bool {
	switch mode {
	case ModePerMonitor:
		return thisMonitor
	case ModeAllMonitors:
		return anyMonitor
	default:
		return false
	}
}

func (c *Controller) diffAndNotify(next map[string]Verdict) {
	var rising, falling []string

	for id, v := range next {
		prev, existed := c.verdicts[id]
		if v.Paused && (!existed || !prev.Paused) {
			rising = append(rising, id)
		}
		if !v.Paused && existed && prev.Paused {
			falling = append(falling, id)
		}
	}

	if len(rising) > 0 {
		sort.Strings(rising)
		c.sink.OnPauseRisingEdge(rising)
	}
	if len(falling) > 0 {
		sort.Strings(falling)
		c.sink.OnPauseFallingEdge(falling)
	}

	wasGlobalPaused := anyPaused(c.verdicts)
	isGlobalPaused := anyPaused(next)
	if wasGlobalPaused != isGlobalPaused {
		c.sink.OnGlobalPauseChange(isGlobalPaused)
	}
}

func anyPaused(verdicts map[string]Verdict) bool {
	for _, v := range verdicts {
		if v.Paused {
			return true
		}
	}
	return false
}
