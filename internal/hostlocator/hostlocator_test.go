package hostlocator

import (
	"errors"
	"testing"

	"github.com/sentinel-wallpaper/engine/internal/platform"
)

type fakeLocator struct {
	handle platform.WindowHandle
	err    error
	calls  int
}

func (f *fakeLocator) LocateWallpaperHost() (platform.WindowHandle, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.handle, nil
}

func TestGetCachesHandle(t *testing.T) {
	loc := &fakeLocator{handle: 42}
	h := New(loc)

	first, err := h.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := h.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if first != 42 || second != 42 {
		t.Fatalf("expected handle 42, got %v, %v", first, second)
	}
	if loc.calls != 1 {
		t.Fatalf("expected exactly 1 locate call, got %d", loc.calls)
	}
}

func TestInvalidateForcesRelocate(t *testing.T) {
	loc := &fakeLocator{handle: 42}
	h := New(loc)

	h.Get()
	h.Invalidate()
	h.Get()

	if loc.calls != 2 {
		t.Fatalf("expected 2 locate calls after invalidate, got %d", loc.calls)
	}
}

func TestRediscoverDegradesAfterThreeFailures(t *testing.T) {
	loc := &fakeLocator{err: errors.New("no host window")}
	h := New(loc)

	for i := 0; i < maxRediscoveryAttempts; i++ {
		if _, err := h.Rediscover(); err == nil {
			t.Fatal("expected rediscover to fail")
		}
	}

	if !h.Degraded() {
		t.Fatal("expected Degraded to be true after exhausting rediscovery attempts")
	}
}

func TestRediscoverRecoversResetsDegraded(t *testing.T) {
	loc := &fakeLocator{err: errors.New("no host window")}
	h := New(loc)

	for i := 0; i < maxRediscoveryAttempts; i++ {
		h.Rediscover()
	}
	if !h.Degraded() {
		t.Fatal("expected Degraded after failures")
	}

	loc.err = nil
	loc.handle = 7
	handle, err := h.Rediscover()
	if err != nil {
		t.Fatalf("expected successful rediscover, got %v", err)
	}
	if handle != 7 {
		t.Fatalf("expected handle 7, got %v", handle)
	}
	if h.Degraded() {
		t.Fatal("expected Degraded to clear after successful rediscovery")
	}
}
