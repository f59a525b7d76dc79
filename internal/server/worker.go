package server

import (
	"context"

	"github.com/ironclad-sim/tankserver/internal/protocol"
	"github.com/ironclad-sim/tankserver/internal/session"
	"github.com/ironclad-sim/tankserver/internal/telemetry"
	"github.com/ironclad-sim/tankserver/internal/vecmath"
	"github.com/ironclad-sim/tankserver/internal/world"
)

// runWorker is the sole goroutine that sends executor reply datagrams, per
// §5's ordering guarantee that a reply always reflects the executor's own
// state change.
func (s *Server) runWorker(ctx context.Context) {
	done := ctx.Done()
	for {
		work, ok := s.mailbox.Dequeue(done)
		if !ok {
			return
		}
		s.executeWork(work)
	}
}

func (s *Server) executeWork(work session.Work) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Logf("server: executor panic recovered: %v", r)
		}
	}()

	if work.Client != nil {
		defer work.Client.EndRequest()
		reply := s.executeClientRequest(work.Client, work.Req.Body)
		if reply != nil {
			s.reply(work.Client.Addr, reply)
		}
		return
	}

	defer work.Viewer.EndRequest()
	reply := s.executeViewerRequest(work.Viewer, work.Req.Body)
	if reply != nil {
		s.reply(work.Viewer.Addr, reply)
	}
}

func (s *Server) executeClientRequest(c *session.Client, data []byte) []byte {
	if len(data) == 0 {
		return protocol.EncodeErrorReply(protocol.ResBadRequest)
	}
	id := protocol.ID(data[0])
	body := data[1:]

	if c.Tank == nil {
		// Not yet placed into the world; every tank-state query/command is
		// meaningless until the tick loop admits it.
		return protocol.EncodeErrorReply(protocol.ResWait)
	}

	tank := c.Tank
	tank.Mu.Lock()
	defer tank.Mu.Unlock()

	if tank.HP <= 0 {
		return protocol.EncodeErrorReply(protocol.ResDead)
	}

	switch id {
	case protocol.ReqSetEnginePower:
		decoded, err := protocol.DecodeReqSetEnginePower(body)
		if err != nil {
			return protocol.EncodeErrorReply(protocol.ResBadRequest)
		}
		tank.SetEnginePower(int(decoded.EnginePower))
		return protocol.EncodeEcho(id)

	case protocol.ReqTurn:
		decoded, err := protocol.DecodeReqTurn(body)
		if err != nil {
			return protocol.EncodeErrorReply(protocol.ResBadRequest)
		}
		tank.Turn(decoded.TurnAngle)
		return protocol.EncodeEcho(id)

	case protocol.ReqLookAt:
		decoded, err := protocol.DecodeReqLookAt(body)
		if err != nil {
			return protocol.EncodeErrorReply(protocol.ResBadRequest)
		}
		tank.LookAt(vecmath.Vector{X: decoded.X, Y: decoded.Y, Z: decoded.Z})
		return protocol.EncodeEcho(id)

	case protocol.ReqShoot:
		result, pos, dir := tank.Shoot()
		switch result {
		case world.ShootDead:
			return protocol.EncodeErrorReply(protocol.ResDead)
		case world.ShootWaiting:
			return protocol.EncodeErrorReply(protocol.ResWaitShoot)
		default:
			s.spawnShell(tank.ID, pos, dir)
			return protocol.EncodeEcho(id)
		}

	case protocol.ReqGetHeading:
		return protocol.EncodeHeading(tank.Heading())

	case protocol.ReqGetSpeed:
		return protocol.EncodeSpeed(tank.Speed)

	case protocol.ReqGetHP:
		return protocol.EncodeHP(uint8(tank.HP))

	case protocol.ReqGetStatistics:
		return protocol.EncodeStatistics(protocol.Statistics{
			TicksAlive:    tank.Stats.TicksAlive,
			HP:            uint64(tank.HP),
			DirectHits:    tank.Stats.DirectHits,
			Hits:          tank.Stats.Hits,
			GotDirectHits: tank.Stats.GotDirectHits,
			GotHits:       tank.Stats.GotHits,
		})

	case protocol.ReqGetNormal:
		n := s.landscape.NormalAt(tank.Position.X, tank.Position.Y)
		return protocol.EncodeNormal(n.X, n.Y, n.Z)

	case protocol.ReqGetMap:
		return protocol.EncodeLocalMap(s.localMapWindow(tank))

	case protocol.ReqGetTanks:
		return protocol.EncodeTanks(protocol.ReqGetTanks, s.nearbyTankRecords(tank))

	default:
		return protocol.EncodeErrorReply(protocol.ResBadRequest)
	}
}

func (s *Server) executeViewerRequest(v *session.Viewer, data []byte) []byte {
	if len(data) == 0 {
		return protocol.EncodeErrorReply(protocol.ResBadRequest)
	}
	id := protocol.ID(data[0])

	switch id {
	case protocol.ReqViewerGetMap:
		return protocol.EncodeViewerMap(s.landscape.Size(), s.landscape.TileSize(), s.landscapeHeights())
	case protocol.ReqViewerGetTanks:
		return protocol.EncodeTanks(id, s.allTankRecords())
	default:
		return protocol.EncodeErrorReply(protocol.ResBadRequest)
	}
}

// allTankRecords returns every InGame tank in absolute world coordinates,
// for the viewer's unrestricted whole-world view.
func (s *Server) allTankRecords() []protocol.TankRecord {
	var out []protocol.TankRecord
	for _, c := range s.clients.Clients() {
		if c.Tank == nil {
			continue
		}
		out = append(out, tankRecord(c.Tank, vecmath.Vector{}))
	}
	return out
}

func (s *Server) landscapeHeights() []float64 {
	size := s.landscape.Size()
	out := make([]float64, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			out = append(out, s.landscape.HeightAtNode(y, x))
		}
	}
	return out
}

// localMapWindow builds the tank-local map-window reply, iterating the
// full ObservingRange^2 window centered on the tank's tile (the corrected
// behavior per design notes; the original index-arithmetic bug produced a
// near-empty window).
func (s *Server) localMapWindow(tank *world.Tank) [protocol.ObservingRange][protocol.ObservingRange]float64 {
	var window [protocol.ObservingRange][protocol.ObservingRange]float64
	tileSize := s.landscape.TileSize()
	centerX := int(tank.Position.X / tileSize)
	centerY := int(tank.Position.Y / tileSize)
	half := protocol.ObservingRange / 2
	size := s.landscape.Size()

	for row := 0; row < protocol.ObservingRange; row++ {
		for col := 0; col < protocol.ObservingRange; col++ {
			nodeY := centerY - half + row
			nodeX := centerX - half + col
			if nodeX < 0 || nodeX >= size || nodeY < 0 || nodeY >= size {
				continue // zeroed, out of range
			}
			window[row][col] = s.landscape.HeightAtNode(nodeY, nodeX)
		}
	}
	return window
}

// nearbyTankRecords returns every other InGame tank within
// ObservingRange*tileSize of tank, positions expressed relative to tank.
func (s *Server) nearbyTankRecords(tank *world.Tank) []protocol.TankRecord {
	radius := float64(protocol.ObservingRange) * s.landscape.TileSize()
	var out []protocol.TankRecord
	for _, c := range s.clients.Clients() {
		other := c.Tank
		if other == nil || other == tank {
			continue
		}
		if vecmath.Distance(tank.Position, other.Position) > radius {
			continue
		}
		out = append(out, tankRecord(other, tank.Position))
	}
	return out
}

// tankRecord builds the wire record for t, with position expressed relative
// to origin (the zero vector for an absolute/viewer view).
func tankRecord(t *world.Tank, origin vecmath.Vector) protocol.TankRecord {
	pos := vecmath.Sub(t.Position, origin)
	return protocol.TankRecord{
		Position:     toVec3(pos),
		Direction:    toVec3(t.Direction),
		Orientation:  toVec3(t.Orientation),
		Turret:       toVec3(t.TurretDirection),
		TurretTarget: toVec3(t.TurretDirectionTarget),
		TurnTarget:   t.TurnAngleTarget,
		Speed:        t.Speed,
		Team:         t.Team,
		HP:           uint8(t.HP),
	}
}

func toVec3(v vecmath.Vector) protocol.Vec3 {
	return protocol.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}
