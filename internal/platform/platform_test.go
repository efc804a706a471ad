package platform

import "testing"

func TestRectUnion(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 1920, H: 1080}
	b := Rect{X: 1920, Y: 0, W: 1280, H: 1024}

	u := a.Union(b)
	want := Rect{X: 0, Y: 0, W: 3200, H: 1080}
	if u != want {
		t.Fatalf("Union = %+v, want %+v", u, want)
	}
}

func TestRectUnionNegativeOrigin(t *testing.T) {
	a := Rect{X: -1280, Y: -200, W: 1280, H: 1024}
	b := Rect{X: 0, Y: 0, W: 1920, H: 1080}

	u := a.Union(b)
	want := Rect{X: -1280, Y: -200, W: 3200, H: 1280}
	if u != want {
		t.Fatalf("Union = %+v, want %+v", u, want)
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 100, Y: 100, W: 200, H: 100}
	if !r.Contains(150, 150) {
		t.Fatal("expected point inside rect to be contained")
	}
	if r.Contains(300, 150) {
		t.Fatal("expected point on right edge to be excluded (half-open range)")
	}
	if r.Contains(50, 50) {
		t.Fatal("expected point outside rect to be excluded")
	}
}

func TestTopologySnapshotUnionRect(t *testing.T) {
	snap := TopologySnapshot{
		Version: 1,
		Monitors: []MonitorInfo{
			{ID: "A", Rect: Rect{X: 0, Y: 0, W: 1920, H: 1080}},
			{ID: "B", Rect: Rect{X: 1920, Y: 0, W: 1920, H: 1080}},
		},
	}

	u := snap.UnionRect()
	want := Rect{X: 0, Y: 0, W: 3840, H: 1080}
	if u != want {
		t.Fatalf("UnionRect = %+v, want %+v", u, want)
	}
}

func TestTopologySnapshotByID(t *testing.T) {
	snap := TopologySnapshot{
		Monitors: []MonitorInfo{
			{ID: "A"},
			{ID: "B"},
		},
	}

	if _, ok := snap.ByID("B"); !ok {
		t.Fatal("expected to find monitor B")
	}
	if _, ok := snap.ByID("C"); ok {
		t.Fatal("expected monitor C to be absent")
	}
}
