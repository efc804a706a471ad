// Package datapump polls the backend for system and per-monitor app
// data on a fixed cadence, flattens both into dot-notation paths, and
// hands a generation-stamped update per monitor to the Supervisor's
// queue for delivery to Surfaces.
package datapump

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/logging"
)

var log = logging.L("datapump")

const (
	backoffInitial = 100 * time.Millisecond
	backoffMax     = 2 * time.Second
)

// Backend is the IPC surface the pump needs; *ipc.Client satisfies it.
type Backend interface {
	ListSysdata() (map[string]json.RawMessage, error)
	ListAppdata() (map[string]AppdataRow, error)
}

// AppdataRow mirrors ipc.AppdataRow without importing it directly, so
// this package stays decoupled from the wire client (tests use a fake
// Backend with plain Go values).
type AppdataRow struct {
	Windows []WindowInfo
}

type WindowInfo struct {
	Focused     bool
	AppName     string
	ExePath     string
	WindowTitle string
	PID         int
	WindowState string
	Size        [2]int
	Position    [2]int
}

// Update is one monitor's freshly flattened registry snapshot, tagged
// with a monotonically increasing generation number.
type Update struct {
	MonitorID  string
	Generation uint64
	SysData    map[string]any
	AppData    map[string]any
}

// Pump polls Backend at a configurable cadence and emits Updates onto
// a channel drained by the Supervisor.
type Pump struct {
	backend  Backend
	interval time.Duration

	updates chan Update
	paused  bool

	generation uint64
	backoff    time.Duration
}

func New(backend Backend, interval time.Duration) *Pump {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Pump{
		backend:  backend,
		interval: interval,
		updates:  make(chan Update, 64),
		backoff:  backoffInitial,
	}
}

// Updates returns the channel the Supervisor drains for fresh snapshots.
func (p *Pump) Updates() <-chan Update { return p.updates }

// SetPaused idles the pump's ticks (it keeps the connection warm by
// not disconnecting, simply skipping the RPC pair) when the Pause
// Controller announces a global pause.
func (p *Pump) SetPaused(paused bool) { p.paused = paused }

// Run ticks at p.interval until ctx is cancelled. Each tick issues the
// sysdata/appdata RPC pair, flattens both, advances the generation
// counter, and emits one Update per monitor stamped with that
// generation; the Supervisor pushes it to each Surface whose last
// generation is older. RPC failures retry with exponential backoff
// (100ms -> 2s) without blocking the ticker for other components.
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.paused {
				continue
			}
			if err := p.tick(); err != nil {
				log.Warn("data pump tick failed, backing off", "error", err, "backoff", p.backoff)
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.backoff):
				}
				p.backoff = nextBackoff(p.backoff)
				continue
			}
			p.backoff = backoffInitial
		}
	}
}

func (p *Pump) tick() error {
	sysdataRaw, err := p.backend.ListSysdata()
	if err != nil {
		return fmt.Errorf("datapump: list sysdata: %w", err)
	}
	appdata, err := p.backend.ListAppdata()
	if err != nil {
		return fmt.Errorf("datapump: list appdata: %w", err)
	}

	sysdata := flattenSysdata(sysdataRaw)
	p.generation++

	monitorIDs := make([]string, 0, len(appdata))
	for id := range appdata {
		monitorIDs = append(monitorIDs, id)
	}
	sort.Strings(monitorIDs)

	for _, id := range monitorIDs {
		flat := flattenAppdata(appdata[id])
		update := Update{
			MonitorID:  id,
			Generation: p.generation,
			SysData:    sysdata,
			AppData:    flat,
		}
		select {
		case p.updates <- update:
		default:
			// Queue full: coalesce to the latest snapshot only, per the
			// full-queue-drops-to-newest discipline shared with samplers.
			select {
			case <-p.updates:
			default:
			}
			p.updates <- update
		}
	}
	return nil
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > backoffMax {
		return backoffMax
	}
	return next
}

// flattenSysdata decodes each section's raw JSON and flattens it to
// dot-notation paths prefixed by the section name (cpu.usage,
// storage.disks.0.used_bytes, ...).
func flattenSysdata(sections map[string]json.RawMessage) map[string]any {
	out := make(map[string]any)
	for section, raw := range sections {
		var val any
		if err := json.Unmarshal(raw, &val); err != nil {
			log.Warn("failed to decode sysdata section, skipping", "section", section, "error", err)
			continue
		}
		flatten(section, val, out)
	}
	return out
}

// flattenAppdata flattens one monitor's window list under "windows.N.field".
func flattenAppdata(row AppdataRow) map[string]any {
	out := make(map[string]any)
	for i, w := range row.Windows {
		prefix := fmt.Sprintf("windows.%d", i)
		out[prefix+".focused"] = w.Focused
		out[prefix+".app_name"] = w.AppName
		out[prefix+".exe_path"] = w.ExePath
		out[prefix+".window_title"] = w.WindowTitle
		out[prefix+".pid"] = w.PID
		out[prefix+".window_state"] = w.WindowState
		out[prefix+".size"] = w.Size
		out[prefix+".position"] = w.Position
	}
	return out
}

// flatten recursively walks a decoded JSON value, writing every leaf
// into out under its dot-notation path.
func flatten(prefix string, v any, out map[string]any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(prefix+"."+k, val[k], out)
		}
	case []any:
		for i, item := range val {
			flatten(prefix+"."+strconv.Itoa(i), item, out)
		}
	default:
		out[prefix] = val
	}
}
