package world

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/ironclad-sim/tankserver/internal/vecmath"
)

// Tank constants, carried over from the reference implementation with the
// two header inconsistencies in its source resolved per design notes: the
// engine power range is [-10, 100] (not swapped), and the observing range
// is 32 (not the conflicting 128 found in a second header).
const (
	HP                        = 100
	MinEnginePower            = -10
	MaxEnginePower            = 100
	EnginePowerChangeStep     = 5
	EnginePowerToSpeedCoeff   = 0.5
	MinLookZ                  = -math.Pi / 12
	MaxLookZ                  = math.Pi / 4
	MaxTurnSpeed              = math.Pi / 12
	MaxTurretTurnSpeed        = math.Pi / 6
	FireDelayTicks            = 300
	ObservingRange            = 32
	BoundingBoxExtentX        = 10
	BoundingBoxExtentY        = 6
	BoundingBoxExtentZ        = 2
	BoundingSphereRadius      = 3.75
)

// Stats accumulates the per-tank counters reported by res_get_statistics
// and recorded into match history on conclusion.
type Stats struct {
	TicksAlive    uint64
	DirectHits    uint64 // shots this tank landed as a direct hit
	Hits          uint64 // shots this tank landed as a splash hit
	GotDirectHits uint64 // direct hits this tank received
	GotHits       uint64 // splash hits this tank received
}

// Tank is one player-controlled vehicle. It is mutated by Tick, the
// Set*/Turn/LookAt/Shoot command methods, ApplyDamage, Resolve, and the tick
// loop's statistics updates, all with Mu held (the request worker and the
// tick loop both take Mu before touching a tank).
type Tank struct {
	Mu sync.Mutex

	ID   uuid.UUID
	Team uint8

	Position, PreviousPosition vecmath.Vector
	Direction, Orientation     vecmath.Vector

	Speed float64
	HP    int

	EnginePower, EnginePowerTarget int

	TurnAngleTarget float64

	TurretDirection, TurretDirectionTarget vecmath.Vector

	FireDelay int

	Stats Stats

	bounding Bounding
}

// NewTank places a tank at (x, y) on the landscape, sampling z and
// orientation from the surface and aligning its forward axis from the
// canonical up (0,0,1) into the actual surface up.
func NewTank(id uuid.UUID, team uint8, x, y float64, l *Landscape) *Tank {
	z := l.HeightAt(x, y)
	up := l.NormalAt(x, y)
	pos := vecmath.Vector{X: x, Y: y, Z: z}

	direction := vecmath.Vector{X: 1, Y: 0, Z: 0}
	canonicalUp := vecmath.Vector{X: 0, Y: 0, Z: 1}
	if !vecmath.Equal(up, canonicalUp) {
		axis := vecmath.Cross(canonicalUp, up)
		if !vecmath.NearZero(axis) {
			angle := vecmath.Angle(canonicalUp, up)
			direction = vecmath.Rotate(direction, vecmath.Normalize(axis), angle)
		}
	}

	t := &Tank{
		ID:                     id,
		Team:                   team,
		Position:               pos,
		PreviousPosition:       pos,
		Direction:              direction,
		Orientation:            up,
		HP:                     HP,
		EnginePower:            0,
		EnginePowerTarget:      0,
		TurretDirection:        direction,
		TurretDirectionTarget:  direction,
		FireDelay:              0,
	}
	t.bounding = NewComposite(
		NewBox(vecmath.Vector{}, vecmath.Vector{X: BoundingBoxExtentX, Y: BoundingBoxExtentY, Z: BoundingBoxExtentZ}),
		NewSphere(vecmath.Vector{Z: BoundingSphereRadius}, BoundingSphereRadius),
	)
	return t
}

// Bounding returns the tank's composite collision volume.
func (t *Tank) Bounding() Bounding { return t.bounding }

// Frame returns the tank's current moving frame for bounding queries.
func (t *Tank) Frame() Frame {
	return Frame{
		Origin:         t.Position,
		PreviousOrigin: t.PreviousPosition,
		Direction:      t.Direction,
		Orientation:    t.Orientation,
	}
}

// SetEnginePower clamps p to [MinEnginePower, MaxEnginePower] and stores it
// as the convergence target.
func (t *Tank) SetEnginePower(p int) {
	if p < MinEnginePower {
		p = MinEnginePower
	} else if p > MaxEnginePower {
		p = MaxEnginePower
	}
	t.EnginePowerTarget = p
}

// Turn clamps angle to [-pi, pi] and stores it as the pending yaw target,
// overwriting any previous target.
func (t *Tank) Turn(angle float64) {
	t.TurnAngleTarget = vecmath.Clamp(angle, -math.Pi, math.Pi)
}

// LookAt normalizes v, clamps its z component into the turret's vertical
// look-angle range, and stores the result as the turret's convergence
// target.
func (t *Tank) LookAt(v vecmath.Vector) {
	n := vecmath.Normalize(v)
	n.Z = vecmath.Clamp(n.Z, MinLookZ, MaxLookZ)
	t.TurretDirectionTarget = vecmath.Normalize(n)
}

// ShootResult reports the outcome of a Shoot command.
type ShootResult int

const (
	ShootFired ShootResult = iota
	ShootDead
	ShootWaiting
)

// Shoot attempts to fire. On success it resets FireDelay and returns the
// muzzle position/direction a Shell should be spawned with.
func (t *Tank) Shoot() (ShootResult, vecmath.Vector, vecmath.Vector) {
	if t.HP <= 0 {
		return ShootDead, vecmath.Vector{}, vecmath.Vector{}
	}
	if t.FireDelay > 0 {
		return ShootWaiting, vecmath.Vector{}, vecmath.Vector{}
	}
	t.FireDelay = FireDelayTicks
	return ShootFired, t.Position, t.TurretDirection
}

// TickOutcome reports side effects of Tick the caller must turn into
// notifications.
type TickOutcome struct {
	HitBound bool
}

// Tick advances the tank by one simulation period: engine convergence,
// motion, yaw convergence, turret convergence, and fire-delay decrement, in
// that order, per §4.4. Caller must hold Mu.
func (t *Tank) Tick(l *Landscape) TickOutcome {
	t.convergeEnginePower()
	outcome := t.move(l)
	t.convergeYaw()
	t.convergeTurret()
	if t.FireDelay > 0 {
		t.FireDelay--
	}
	if t.HP > 0 {
		t.Stats.TicksAlive++
	}
	return outcome
}

func (t *Tank) convergeEnginePower() {
	if t.EnginePower == t.EnginePowerTarget {
		return
	}
	diff := t.EnginePowerTarget - t.EnginePower
	if diff > 0 {
		if diff <= EnginePowerChangeStep {
			t.EnginePower = t.EnginePowerTarget
		} else {
			t.EnginePower += EnginePowerChangeStep
		}
	} else {
		if -diff <= EnginePowerChangeStep {
			t.EnginePower = t.EnginePowerTarget
		} else {
			t.EnginePower -= EnginePowerChangeStep
		}
	}
}

func (t *Tank) move(l *Landscape) TickOutcome {
	t.PreviousPosition = t.Position

	if t.EnginePower == 0 {
		t.Speed = 0
		return TickOutcome{}
	}
	t.Speed = EnginePowerToSpeedCoeff * float64(t.EnginePower)

	candidate := vecmath.Add(t.PreviousPosition, vecmath.Scale(t.Direction, t.Speed))
	if !l.InBounds(candidate.X, candidate.Y) {
		t.Position = t.PreviousPosition
		return TickOutcome{HitBound: true}
	}

	candidate.Z = l.HeightAt(candidate.X, candidate.Y)
	newOrientation := l.NormalAt(candidate.X, candidate.Y)

	if !vecmath.Equal(newOrientation, t.Orientation) {
		axis := vecmath.Cross(t.Orientation, newOrientation)
		if !vecmath.NearZero(axis) {
			angle := vecmath.Angle(t.Orientation, newOrientation)
			t.Direction = vecmath.Rotate(t.Direction, vecmath.Normalize(axis), angle)
		}
		t.Orientation = newOrientation
	}

	t.Position = candidate
	return TickOutcome{}
}

func (t *Tank) convergeYaw() {
	target := t.TurnAngleTarget
	if math.Abs(target) <= vecmath.Epsilon {
		return
	}
	step := math.Min(math.Abs(target), MaxTurnSpeed)
	if target < 0 {
		step = -step
	}
	t.Direction = vecmath.Rotate(t.Direction, t.Orientation, step)
	t.TurnAngleTarget -= step
	if math.Abs(t.TurnAngleTarget) <= vecmath.Epsilon {
		t.TurnAngleTarget = 0
	}
}

func (t *Tank) convergeTurret() {
	if vecmath.Equal(t.TurretDirection, t.TurretDirectionTarget) {
		return
	}
	angle := vecmath.Angle(t.TurretDirection, t.TurretDirectionTarget)
	if angle <= MaxTurretTurnSpeed {
		t.TurretDirection = t.TurretDirectionTarget
		return
	}
	axis := vecmath.Cross(t.TurretDirection, t.TurretDirectionTarget)
	if vecmath.NearZero(axis) {
		t.TurretDirection = t.TurretDirectionTarget
		return
	}
	t.TurretDirection = vecmath.Rotate(t.TurretDirection, vecmath.Normalize(axis), MaxTurretTurnSpeed)
}

// ApplyDamage subtracts amount from HP, floored at 0.
func (t *Tank) ApplyDamage(amount int) {
	t.HP -= amount
	if t.HP < 0 {
		t.HP = 0
	}
}

// Heading returns the tank's yaw in [0, 2pi), matching the reference
// server's atan2-style heading encoding.
func (t *Tank) Heading() float64 {
	h := math.Atan2(t.Direction.Y, t.Direction.X)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}

// Resolve reverts both tanks to their previous tick's position, per the
// bounding-resolution contract in §4.3: resolution is pure reversion, never
// partial separation.
func Resolve(a, b *Tank) {
	a.Position = a.PreviousPosition
	b.Position = b.PreviousPosition
}
