// Package world implements the landscape, bounding-volume, tank, and shell
// models that make up the simulated world.
package world

import (
	"fmt"
	"math"

	"github.com/ironclad-sim/tankserver/internal/vecmath"
)

// Landscape is a square heightmap. It is immutable after construction: every
// query method has a pointer receiver only to avoid copying the height
// slice, never to mutate it.
type Landscape struct {
	size     int
	tileSize float64
	heights  []float64 // row-major, size*size
}

// NewLandscape builds a landscape from raw node heights already scaled into
// world units. len(heights) must equal size*size.
func NewLandscape(size int, tileSize float64, heights []float64) (*Landscape, error) {
	if size <= 0 {
		return nil, fmt.Errorf("world: landscape size must be positive, got %d", size)
	}
	if len(heights) != size*size {
		return nil, fmt.Errorf("world: landscape expected %d heights, got %d", size*size, len(heights))
	}
	cp := make([]float64, len(heights))
	copy(cp, heights)
	return &Landscape{size: size, tileSize: tileSize, heights: cp}, nil
}

// LoadLandscape builds a landscape from a raw square byte file's contents,
// scaling each byte into a world-unit height. The file itself is read by an
// external collaborator; this only interprets already-read bytes, mirroring
// the scale-on-load behavior of the original heightmap loader.
func LoadLandscape(raw []byte, tileSize, scale float64) (*Landscape, error) {
	size := int(math.Sqrt(float64(len(raw))))
	if size*size != len(raw) {
		return nil, fmt.Errorf("world: landscape file of %d bytes is not a perfect square", len(raw))
	}
	heights := make([]float64, len(raw))
	for i, b := range raw {
		heights[i] = float64(b) * scale
	}
	return NewLandscape(size, tileSize, heights)
}

// Size returns the node count per side.
func (l *Landscape) Size() int { return l.size }

// TileSize returns the world-unit edge length of one tile.
func (l *Landscape) TileSize() float64 { return l.tileSize }

// Extent returns the world-unit side length of the whole landscape.
func (l *Landscape) Extent() float64 { return float64(l.size) * l.tileSize }

// InBounds reports whether (x, y) lies within [0, extent]^2.
func (l *Landscape) InBounds(x, y float64) bool {
	extent := l.Extent()
	return x >= 0 && x <= extent && y >= 0 && y <= extent
}

// HeightAtNode returns the height at an exact grid node. Precondition:
// 0 <= x, y < size.
func (l *Landscape) HeightAtNode(y, x int) float64 {
	if x < 0 || x >= l.size || y < 0 || y >= l.size {
		panic(fmt.Sprintf("world: HeightAtNode(%d,%d) out of bounds for size %d", y, x, l.size))
	}
	return l.heights[y*l.size+x]
}

// tile returns the integer tile indices containing world point (x, y).
func (l *Landscape) tile(x, y float64) (tx, ty int) {
	tx = int(math.Floor(x / l.tileSize))
	ty = int(math.Floor(y / l.tileSize))
	if tx >= l.size-1 {
		tx = l.size - 2
	}
	if ty >= l.size-1 {
		ty = l.size - 2
	}
	if tx < 0 {
		tx = 0
	}
	if ty < 0 {
		ty = 0
	}
	return tx, ty
}

// triangleCorners returns the three grid-node corners (as (row,col) pairs)
// of the triangle in tile (tx,ty) that contains the local offset (fx,fy),
// selected by the diagonal predicate frac(x)+frac(y) < 1.
func triangleCorners(tx, ty int, fx, fy float64) (a, b, c [2]int) {
	// a=(ty, tx+1), b=(ty+1, tx), c depends on which side of the diagonal.
	a = [2]int{ty, tx + 1}
	b = [2]int{ty + 1, tx}
	if fx+fy < 1.0 {
		c = [2]int{ty, tx}
	} else {
		c = [2]int{ty + 1, tx + 1}
	}
	return a, b, c
}

// cornerWorld converts a (row,col) node index to its world-space position
// with height looked up from the map.
func (l *Landscape) cornerWorld(node [2]int) vecmath.Vector {
	row, col := node[0], node[1]
	return vecmath.Vector{
		X: float64(col) * l.tileSize,
		Y: float64(row) * l.tileSize,
		Z: l.HeightAtNode(row, col),
	}
}

// planeAt forms the plane through the tile-triangle containing (x,y) and
// returns its coefficients (a,b,c,d) for ax+by+cz=d, along with the three
// corner points used.
func (l *Landscape) planeAt(x, y float64) (a, b, c, d float64) {
	tx, ty := l.tile(x, y)
	fx := x/l.tileSize - float64(tx)
	fy := y/l.tileSize - float64(ty)
	cA, cB, cC := triangleCorners(tx, ty, fx, fy)
	pA := l.cornerWorld(cA)
	pB := l.cornerWorld(cB)
	pC := l.cornerWorld(cC)

	e1 := vecmath.Sub(pB, pA)
	e2 := vecmath.Sub(pC, pA)
	n := vecmath.Cross(e1, e2)
	a, b, c = n.X, n.Y, n.Z
	d = a*pA.X + b*pA.Y + c*pA.Z
	return a, b, c, d
}

// HeightAt interpolates the landscape height at world point (x, y).
func (l *Landscape) HeightAt(x, y float64) float64 {
	a, b, c, d := l.planeAt(x, y)
	if math.Abs(c) < vecmath.Epsilon {
		// Degenerate (vertical) triangle; fall back to the nearest corner
		// height rather than dividing by ~0.
		tx, ty := l.tile(x, y)
		return l.HeightAtNode(ty, tx)
	}
	return (d - a*x - b*y) / c
}

// NormalAt returns the unit surface normal at world point (x, y), oriented
// so that its z component is non-negative.
func (l *Landscape) NormalAt(x, y float64) vecmath.Vector {
	a, b, c, _ := l.planeAt(x, y)
	n := vecmath.Vector{X: a, Y: b, Z: c}
	if vecmath.NearZero(n) {
		return vecmath.Vector{Z: 1}
	}
	n = vecmath.Normalize(n)
	if n.Z < 0 {
		n = vecmath.Scale(n, -1)
	}
	return n
}

// RayHit steps the segment p0->p1 tile by tile and returns the normalized
// parameter t in [0,1] at which it first crosses the surface, and true. If
// the segment never crosses the surface within [0,1] it returns (0, false).
func (l *Landscape) RayHit(p0, p1 vecmath.Vector) (float64, bool) {
	const steps = 64 // fine enough to not straddle more than one tile per step
	prevT := 0.0
	prevAbove := (p0.Z - l.HeightAt(p0.X, p0.Y))
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := lerp(p0, p1, t)
		above := p.Z - l.HeightAt(p.X, p.Y)
		if above <= 0 {
			// Linear interpolation between the last two samples to refine t.
			if prevAbove == above {
				return t, true
			}
			frac := prevAbove / (prevAbove - above)
			return prevT + frac*(t-prevT), true
		}
		prevT = t
		prevAbove = above
	}
	return 0, false
}

func lerp(a, b vecmath.Vector, t float64) vecmath.Vector {
	return vecmath.Add(a, vecmath.Scale(vecmath.Sub(b, a), t))
}
