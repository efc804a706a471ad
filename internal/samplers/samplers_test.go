package samplers

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeCursor struct {
	mu   sync.Mutex
	x, y int
	down bool
}

func (f *fakeCursor) CursorPosition() (int, int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.x, f.y, f.down, nil
}

func (f *fakeCursor) set(x, y int, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y, f.down = x, y, down
}

func TestCursorSamplerEmitsMoveAboveThreshold(t *testing.T) {
	src := &fakeCursor{}
	s := NewCursorSampler(src, 2*time.Millisecond, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Initial sample always emits.
	select {
	case ev := <-s.Events():
		if ev.Kind != CursorMove {
			t.Fatalf("expected initial move event, got %+v", ev)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for initial move event")
	}

	src.set(100, 100, false)
	select {
	case ev := <-s.Events():
		if ev.Kind != CursorMove || ev.X != 100 {
			t.Fatalf("expected move to (100,100), got %+v", ev)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for displaced move event")
	}
}

func TestCursorSamplerEmitsClickOnDownEdge(t *testing.T) {
	src := &fakeCursor{}
	s := NewCursorSampler(src, 2*time.Millisecond, 1000) // high threshold suppresses move noise

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	<-s.Events() // initial move

	src.set(0, 0, true)
	select {
	case ev := <-s.Events():
		if ev.Kind != CursorClick {
			t.Fatalf("expected click event, got %+v", ev)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for click event")
	}
}

type fakeKeySource struct {
	mu    sync.Mutex
	state map[int]bool
}

func newFakeKeySource() *fakeKeySource { return &fakeKeySource{state: make(map[int]bool)} }

func (f *fakeKeySource) KeyState(vk int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[vk], nil
}

func (f *fakeKeySource) press(vk int, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[vk] = down
}

func TestKeySamplerEmitsEdgeTriggeredTransitions(t *testing.T) {
	src := newFakeKeySource()
	s := NewKeySampler(src, 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	src.press(0x41, true) // 'A'
	var ev KeyEvent
	select {
	case ev = <-s.Events():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for key_down event")
	}
	if ev.Key != "A" || !ev.Down {
		t.Fatalf("expected A key_down, got %+v", ev)
	}

	src.press(0x41, false)
	select {
	case ev = <-s.Events():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for key_up event")
	}
	if ev.Key != "A" || ev.Down {
		t.Fatalf("expected A key_up, got %+v", ev)
	}
}

type fakeAudioSource struct {
	mu    sync.Mutex
	level float64
	err   error
}

func (f *fakeAudioSource) AudioPeakLevel() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, f.err
}

func (f *fakeAudioSource) set(level float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
}

func TestAudioSamplerSuppressesSmallChanges(t *testing.T) {
	src := &fakeAudioSource{level: 0.5}
	cfg := AudioConfig{
		SampleInterval:   2 * time.Millisecond,
		EndpointRefresh:  time.Second,
		RetryInterval:    time.Millisecond,
		ChangeThreshold:  0.1,
		QuantizeDecimals: 2,
	}
	s := NewAudioSampler(src, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case lvl := <-s.Events():
		if lvl != 0.5 {
			t.Fatalf("expected initial level 0.5, got %v", lvl)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for initial audio event")
	}

	src.set(0.52) // below threshold, should not emit
	select {
	case lvl := <-s.Events():
		t.Fatalf("expected no event for sub-threshold change, got %v", lvl)
	case <-time.After(30 * time.Millisecond):
	}

	src.set(0.9) // above threshold
	select {
	case lvl := <-s.Events():
		if lvl != 0.9 {
			t.Fatalf("expected level 0.9, got %v", lvl)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for above-threshold audio event")
	}
}
