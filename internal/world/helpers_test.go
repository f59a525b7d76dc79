package world

import "github.com/ironclad-sim/tankserver/internal/vecmath"

func vec(x, y, z float64) vecmath.Vector {
	return vecmath.Vector{X: x, Y: y, Z: z}
}
