package world

import (
	"math"
	"testing"
)

func flatLandscape(t *testing.T, size int, tileSize, height float64) *Landscape {
	t.Helper()
	heights := make([]float64, size*size)
	for i := range heights {
		heights[i] = height
	}
	l, err := NewLandscape(size, tileSize, heights)
	if err != nil {
		t.Fatalf("NewLandscape: %v", err)
	}
	return l
}

func TestHeightAtNodeMatchesFlatHeight(t *testing.T) {
	l := flatLandscape(t, 4, 16, 2.5)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := l.HeightAtNode(y, x); got != 2.5 {
				t.Fatalf("HeightAtNode(%d,%d) = %v, want 2.5", y, x, got)
			}
		}
	}
}

func TestHeightAtInterpolatesFlat(t *testing.T) {
	l := flatLandscape(t, 4, 16, 2.5)
	for _, p := range [][2]float64{{0, 0}, {8, 8}, {15.9, 0.1}, {40, 40}} {
		if got := l.HeightAt(p[0], p[1]); math.Abs(got-2.5) > 1e-9 {
			t.Fatalf("HeightAt%v = %v, want 2.5", p, got)
		}
	}
}

func TestHeightAtInterpolatesSlope(t *testing.T) {
	// 2x2 tile: corner heights 0,0,0,10 at (0,0),(1,0),(0,1),(1,1) in node
	// units, tileSize 1. Diagonal corner (1,1) is higher.
	heights := []float64{0, 0, 0, 10}
	l, err := NewLandscape(2, 1, heights)
	if err != nil {
		t.Fatalf("NewLandscape: %v", err)
	}
	corner := l.HeightAt(0.999, 0.999)
	if corner < 5 {
		t.Fatalf("HeightAt near (1,1) = %v, expected close to high corner", corner)
	}
	origin := l.HeightAt(0, 0)
	if math.Abs(origin) > 1e-9 {
		t.Fatalf("HeightAt(0,0) = %v, want 0", origin)
	}
}

func TestNormalAtFlatIsUp(t *testing.T) {
	l := flatLandscape(t, 4, 16, 2.5)
	n := l.NormalAt(8, 8)
	if math.Abs(n.Z-1) > 1e-6 || math.Abs(n.X) > 1e-6 || math.Abs(n.Y) > 1e-6 {
		t.Fatalf("NormalAt flat landscape = %+v, want (0,0,1)", n)
	}
}

func TestInBounds(t *testing.T) {
	l := flatLandscape(t, 4, 16, 0)
	extent := l.Extent()
	if !l.InBounds(0, 0) || !l.InBounds(extent, extent) {
		t.Fatal("corners should be in bounds")
	}
	if l.InBounds(extent+1e-3, 0) {
		t.Fatal("point just outside extent reported in bounds")
	}
}

func TestRayHitFlatDescending(t *testing.T) {
	l := flatLandscape(t, 4, 16, 2.5)
	p0 := vec(10, 10, 10)
	p1 := vec(10, 10, -10)
	tHit, ok := l.RayHit(p0, p1)
	if !ok {
		t.Fatal("expected ray hit for descending segment through flat surface")
	}
	if math.Abs(tHit-0.375) > 1e-6 {
		t.Fatalf("tHit = %v, want 0.375 (crossing z=2.5)", tHit)
	}
}

func TestRayHitNoHitAboveSurface(t *testing.T) {
	l := flatLandscape(t, 4, 16, 2.5)
	p0 := vec(10, 10, 10)
	p1 := vec(10, 10, 5)
	if _, ok := l.RayHit(p0, p1); ok {
		t.Fatal("segment staying above the surface should not report a hit")
	}
}

func TestLoadLandscapeScalesBytes(t *testing.T) {
	raw := make([]byte, 16) // 4x4
	for i := range raw {
		raw[i] = 10
	}
	l, err := LoadLandscape(raw, 16, 0.5)
	if err != nil {
		t.Fatalf("LoadLandscape: %v", err)
	}
	if got := l.HeightAtNode(0, 0); got != 5 {
		t.Fatalf("scaled height = %v, want 5", got)
	}
}

func TestLoadLandscapeRejectsNonSquare(t *testing.T) {
	if _, err := LoadLandscape(make([]byte, 10), 16, 1); err == nil {
		t.Fatal("expected error for non-square byte count")
	}
}
