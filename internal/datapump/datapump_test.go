package datapump

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu        sync.Mutex
	sysdata   map[string]json.RawMessage
	appdata   map[string]AppdataRow
	sysErr    error
	callCount int
}

func (f *fakeBackend) ListSysdata() (map[string]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	if f.sysErr != nil {
		return nil, f.sysErr
	}
	return f.sysdata, nil
}

func (f *fakeBackend) ListAppdata() (map[string]AppdataRow, error) {
	return f.appdata, nil
}

func TestFlattenSysdataProducesDotPaths(t *testing.T) {
	sections := map[string]json.RawMessage{
		"cpu":     json.RawMessage(`{"usage": 12.5}`),
		"storage": json.RawMessage(`{"disks": [{"used_bytes": 1000}, {"used_bytes": 2000}]}`),
	}

	flat := flattenSysdata(sections)

	if flat["cpu.usage"] != 12.5 {
		t.Fatalf("expected cpu.usage, got %+v", flat)
	}
	if flat["storage.disks.0.used_bytes"] != float64(1000) {
		t.Fatalf("expected storage.disks.0.used_bytes, got %+v", flat)
	}
	if flat["storage.disks.1.used_bytes"] != float64(2000) {
		t.Fatalf("expected storage.disks.1.used_bytes, got %+v", flat)
	}
}

func TestFlattenAppdataProducesWindowPaths(t *testing.T) {
	row := AppdataRow{Windows: []WindowInfo{
		{Focused: true, AppName: "explorer.exe", PID: 42},
	}}

	flat := flattenAppdata(row)

	if flat["windows.0.focused"] != true {
		t.Fatalf("expected windows.0.focused, got %+v", flat)
	}
	if flat["windows.0.app_name"] != "explorer.exe" {
		t.Fatalf("expected windows.0.app_name, got %+v", flat)
	}
	if flat["windows.0.pid"] != 42 {
		t.Fatalf("expected windows.0.pid, got %+v", flat)
	}
}

func TestTickEmitsOneUpdatePerMonitor(t *testing.T) {
	backend := &fakeBackend{
		sysdata: map[string]json.RawMessage{"cpu": json.RawMessage(`{"usage": 1}`)},
		appdata: map[string]AppdataRow{
			"monitor-0": {Windows: []WindowInfo{{Focused: true}}},
			"monitor-1": {Windows: nil},
		},
	}

	p := New(backend, 10*time.Millisecond)
	if err := p.tick(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	seen := make(map[string]Update)
	for i := 0; i < 2; i++ {
		select {
		case u := <-p.Updates():
			seen[u.MonitorID] = u
		default:
			t.Fatal("expected an update on the channel")
		}
	}

	if len(seen) != 2 {
		t.Fatalf("expected 2 monitor updates, got %d", len(seen))
	}
	if seen["monitor-0"].Generation != seen["monitor-1"].Generation {
		t.Fatal("expected both monitors to share one tick's generation")
	}
}

func TestRunSkipsTicksWhilePaused(t *testing.T) {
	backend := &fakeBackend{sysdata: map[string]json.RawMessage{}, appdata: map[string]AppdataRow{}}
	p := New(backend, 5*time.Millisecond)
	p.SetPaused(true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.callCount != 0 {
		t.Fatalf("expected no RPCs while paused, got %d", backend.callCount)
	}
}

func TestRunBacksOffOnRepeatedFailure(t *testing.T) {
	backend := &fakeBackend{sysErr: errors.New("rpc unavailable")}
	p := New(backend, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.callCount == 0 {
		t.Fatal("expected at least one attempted RPC")
	}
	// The first failure backs off 100ms, longer than the 50ms run, so
	// no second attempt fits in before ctx ends.
	if backend.callCount > 1 {
		t.Fatalf("expected backoff to hold off further RPCs, got %d attempts", backend.callCount)
	}
}
