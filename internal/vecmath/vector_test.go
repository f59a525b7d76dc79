package vecmath

import (
	"math"
	"testing"
)

func TestAddSub(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{4, -1, 0.5}
	sum := Add(a, b)
	if !Equal(sum, Vector{5, 1, 3.5}) {
		t.Fatalf("Add = %+v", sum)
	}
	if !Equal(Sub(sum, b), a) {
		t.Fatalf("Sub did not invert Add: %+v", Sub(sum, b))
	}
}

func TestDotCross(t *testing.T) {
	x := Vector{1, 0, 0}
	y := Vector{0, 1, 0}
	if Dot(x, y) != 0 {
		t.Fatalf("orthogonal dot != 0")
	}
	if !Equal(Cross(x, y), Vector{0, 0, 1}) {
		t.Fatalf("Cross(x,y) = %+v, want z", Cross(x, y))
	}
}

func TestNormalizeLength(t *testing.T) {
	v := Vector{3, 4, 0}
	n := Normalize(v)
	if math.Abs(Length(n)-1) > 10*Epsilon {
		t.Fatalf("normalized length = %v", Length(n))
	}
}

func TestNormalizeZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic normalizing zero vector")
		}
	}()
	Normalize(Vector{})
}

func TestRotatePreservesLength(t *testing.T) {
	v := Vector{1, 0, 0}
	axis := Vector{0, 0, 1}
	for _, theta := range []float64{0, math.Pi / 6, math.Pi / 2, math.Pi, 2 * math.Pi} {
		r := Rotate(v, axis, theta)
		if math.Abs(Length(r)-Length(v)) > 10*Epsilon {
			t.Fatalf("theta=%v: length changed from %v to %v", theta, Length(v), Length(r))
		}
	}
}

func TestRotateQuarterTurn(t *testing.T) {
	v := Vector{1, 0, 0}
	axis := Vector{0, 0, 1}
	r := Rotate(v, axis, math.Pi/2)
	if !Equal(r, Vector{0, 1, 0}) {
		t.Fatalf("rotate x by pi/2 about z = %+v, want y axis", r)
	}
}

func TestAngle(t *testing.T) {
	a := Vector{1, 0, 0}
	b := Vector{0, 1, 0}
	got := Angle(a, b)
	if math.Abs(got-math.Pi/2) > Epsilon {
		t.Fatalf("Angle = %v, want pi/2", got)
	}
}

func TestReflect(t *testing.T) {
	v := Vector{1, -1, 0}
	n := Vector{0, 1, 0}
	r := Reflect(v, n)
	if !Equal(r, Vector{1, 1, 0}) {
		t.Fatalf("Reflect = %+v", r)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 10) != 5 {
		t.Fatal("in-range clamp changed value")
	}
	if Clamp(-1, 0, 10) != 0 {
		t.Fatal("clamp did not floor")
	}
	if Clamp(11, 0, 10) != 10 {
		t.Fatal("clamp did not ceil")
	}
}

func TestOrthogonalIsPerpendicular(t *testing.T) {
	v := Vector{1, 0, 0}
	o := Orthogonal(v)
	if math.Abs(Dot(Normalize(v), o)) > Epsilon {
		t.Fatalf("Orthogonal(%+v) = %+v not perpendicular", v, o)
	}
}
