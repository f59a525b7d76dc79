package world

import (
	"math"

	"github.com/ironclad-sim/tankserver/internal/vecmath"
)

// Frame is the moving reference frame a bounding volume is tested against:
// an owner's current and previous origin, its forward axis (direction),
// and its up axis (orientation). Bounding volumes never own a Frame; they
// are handed one by the caller on every query, so the owner's mutation is
// always atomic with respect to intersection/resolution.
type Frame struct {
	Origin, PreviousOrigin vecmath.Vector
	Direction, Orientation vecmath.Vector
}

// sideAxis returns the frame's side axis: direction x orientation, or a
// canonical orthogonal substitute if the two axes are parallel.
func (f Frame) sideAxis() vecmath.Vector {
	cross := vecmath.Cross(f.Direction, f.Orientation)
	if vecmath.NearZero(cross) {
		return vecmath.Orthogonal(f.Direction)
	}
	return vecmath.Normalize(cross)
}

// EffectivePosition resolves an offset expressed in the frame's local basis
// (direction, side, orientation) into a world-space point anchored at
// origin.
func (f Frame) EffectivePosition(offset vecmath.Vector) vecmath.Vector {
	side := f.sideAxis()
	p := f.Origin
	p = vecmath.Add(p, vecmath.Scale(f.Direction, offset.X))
	p = vecmath.Add(p, vecmath.Scale(side, offset.Y))
	p = vecmath.Add(p, vecmath.Scale(f.Orientation, offset.Z))
	return p
}

// Kind tags the variant of a Bounding value.
type Kind int

const (
	KindBox Kind = iota
	KindSphere
	KindComposite
)

// Bounding is a tagged-union collision primitive: a box, a sphere, or a
// flat composite of leaves. Composite does not nest further.
type Bounding struct {
	Kind     Kind
	Offset   vecmath.Vector // local-frame offset, box/sphere only
	Extent   vecmath.Vector // box only
	Radius   float64        // sphere only
	Children []Bounding     // composite only
}

func NewBox(offset, extent vecmath.Vector) Bounding {
	return Bounding{Kind: KindBox, Offset: offset, Extent: extent}
}

func NewSphere(offset vecmath.Vector, radius float64) Bounding {
	return Bounding{Kind: KindSphere, Offset: offset, Radius: radius}
}

func NewComposite(children ...Bounding) Bounding {
	return Bounding{Kind: KindComposite, Children: children}
}

// interval is a closed projection range [Min, Max] on one world axis.
type interval struct{ Min, Max float64 }

func (a interval) disjoint(b interval) bool {
	return a.Max < b.Min || b.Max < a.Min
}

// boxVertices returns the 8 vertices of a box bounding at the given origin,
// built from the three edge vectors scaled by the box's half-extent along
// each local axis.
func boxVertices(f Frame, b Bounding, origin vecmath.Vector) [8]vecmath.Vector {
	side := f.sideAxis()
	center := vecmath.Add(origin, vecmath.Add(
		vecmath.Add(vecmath.Scale(f.Direction, b.Offset.X), vecmath.Scale(side, b.Offset.Y)),
		vecmath.Scale(f.Orientation, b.Offset.Z),
	))
	ex := vecmath.Scale(f.Direction, b.Extent.X)
	ey := vecmath.Scale(side, b.Extent.Y)
	ez := vecmath.Scale(f.Orientation, b.Extent.Z)

	var verts [8]vecmath.Vector
	i := 0
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				v := center
				v = vecmath.Add(v, vecmath.Scale(ex, sx))
				v = vecmath.Add(v, vecmath.Scale(ey, sy))
				v = vecmath.Add(v, vecmath.Scale(ez, sz))
				verts[i] = v
				i++
			}
		}
	}
	return verts
}

func axisComponent(v vecmath.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// project projects a single leaf bounding (box or sphere) onto world axis
// (0=x,1=y,2=z), across both the previous and current origin, per §4.3.
func project(f Frame, b Bounding, axis int) interval {
	switch b.Kind {
	case KindSphere:
		c1 := axisComponent(f.EffectivePosition(b.Offset), axis)
		prevFrame := f
		prevFrame.Origin = f.PreviousOrigin
		c0 := axisComponent(prevFrame.EffectivePosition(b.Offset), axis)
		lo := math.Min(c0, c1) - b.Radius
		hi := math.Max(c0, c1) + b.Radius
		return interval{lo, hi}
	case KindBox:
		prevFrame := f
		prevFrame.Origin = f.PreviousOrigin
		verts := boxVertices(f, b, f.Origin)
		prevVerts := boxVertices(prevFrame, b, f.PreviousOrigin)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range verts {
			c := axisComponent(v, axis)
			lo, hi = math.Min(lo, c), math.Max(hi, c)
		}
		for _, v := range prevVerts {
			c := axisComponent(v, axis)
			lo, hi = math.Min(lo, c), math.Max(hi, c)
		}
		return interval{lo, hi}
	default:
		panic("world: project called on composite bounding")
	}
}

// Intersects reports whether bounding b1 (with frame f1) and b2 (with frame
// f2) overlap, per the three-axis SAT approximation in §4.3. Composite
// volumes are flattened: any leaf-vs-other intersection makes the whole
// pair intersect.
func Intersects(f1 Frame, b1 Bounding, f2 Frame, b2 Bounding) bool {
	if b1.Kind == KindComposite {
		for _, child := range b1.Children {
			if Intersects(f1, child, f2, b2) {
				return true
			}
		}
		return false
	}
	if b2.Kind == KindComposite {
		for _, child := range b2.Children {
			if Intersects(f1, b1, f2, child) {
				return true
			}
		}
		return false
	}
	for axis := 0; axis < 3; axis++ {
		p1 := project(f1, b1, axis)
		p2 := project(f2, b2, axis)
		if p1.disjoint(p2) {
			return false
		}
	}
	return true
}

// IntersectsLandscape reports whether bounding b (with frame f) penetrates
// the landscape surface beneath it.
func IntersectsLandscape(f Frame, b Bounding, l *Landscape) bool {
	switch b.Kind {
	case KindComposite:
		for _, child := range b.Children {
			if IntersectsLandscape(f, child, l) {
				return true
			}
		}
		return false
	case KindSphere:
		center := f.EffectivePosition(b.Offset)
		height := l.HeightAt(center.X, center.Y)
		return height >= center.Z-b.Radius
	case KindBox:
		verts := boxVertices(f, b, f.Origin)
		lowestZ := math.Inf(1)
		for _, v := range verts {
			lowestZ = math.Min(lowestZ, v.Z)
		}
		effective := f.EffectivePosition(b.Offset)
		height := l.HeightAt(effective.X, effective.Y)
		return height >= lowestZ
	default:
		panic("world: unknown bounding kind")
	}
}
