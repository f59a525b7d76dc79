package world

import (
	"github.com/google/uuid"

	"github.com/ironclad-sim/tankserver/internal/vecmath"
)

// Shell constants, carried over from the reference implementation.
const (
	ShellDefaultSpeed   = 768.0
	ShellRadius         = 0.1
	ShellGravity        = 0.5
	ShellHitAmount      = 50
	ShellExplosionDmg   = 1000
	ShellExplosionRange = 20.0
)

// Shell is a single in-flight projectile. Shells do not persist beyond
// explosion or leaving the world bounds.
type Shell struct {
	PreviousPosition, Position vecmath.Vector
	Direction                  vecmath.Vector
	Speed                      float64

	ShooterID uuid.UUID
}

// NewShell spawns a shell at the firing tank's muzzle position, flying in
// the turret's current direction.
func NewShell(shooterID uuid.UUID, position, direction vecmath.Vector) *Shell {
	return &Shell{
		PreviousPosition: position,
		Position:         position,
		Direction:        vecmath.Normalize(direction),
		Speed:            ShellDefaultSpeed,
		ShooterID:        shooterID,
	}
}

// ShellOutcome reports what happened to a shell during one Tick.
type ShellOutcome int

const (
	ShellFlying ShellOutcome = iota
	ShellExploded
	ShellLeftBounds
)

// Tick advances the shell by one simulation period per §4.5: integrate
// under gravity, then test the swept segment against the landscape.
func (s *Shell) Tick(l *Landscape) ShellOutcome {
	s.PreviousPosition = s.Position

	v := vecmath.Add(vecmath.Scale(s.Direction, s.Speed), vecmath.Vector{Z: -ShellGravity})
	s.Position = vecmath.Add(s.Position, v)

	delta := vecmath.Sub(s.Position, s.PreviousPosition)
	if !vecmath.NearZero(delta) {
		s.Direction = vecmath.Normalize(delta)
	}
	s.Speed = Dot3(s.Direction, v)

	if t, hit := l.RayHit(s.PreviousPosition, s.Position); hit {
		s.Position = lerp(s.PreviousPosition, s.Position, t)
		return ShellExploded
	}
	if !l.InBounds(s.Position.X, s.Position.Y) {
		return ShellLeftBounds
	}
	return ShellFlying
}

// Dot3 is a small re-export to avoid every caller importing vecmath just
// for a dot product in package world.
func Dot3(a, b vecmath.Vector) float64 { return vecmath.Dot(a, b) }
