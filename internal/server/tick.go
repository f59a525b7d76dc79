package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ironclad-sim/tankserver/internal/protocol"
	"github.com/ironclad-sim/tankserver/internal/session"
	"github.com/ironclad-sim/tankserver/internal/storage/sqlite"
	"github.com/ironclad-sim/tankserver/internal/telemetry"
	"github.com/ironclad-sim/tankserver/internal/vecmath"
	"github.com/ironclad-sim/tankserver/internal/world"
)

// runTickLoop advances the simulation at a fixed period per §4.7. It never
// skips a tick: if one tick's work overruns the period, the next tick
// starts immediately rather than being dropped, and the schedule resets
// from the overrun point instead of trying to catch up tick-for-tick.
func (s *Server) runTickLoop(ctx context.Context) {
	period := s.cfg.TickPeriod
	next := time.Now().Add(period)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.tick()
		s.tickCount++

		sleep := time.Until(next)
		if sleep <= 0 {
			telemetry.Logf("server: tick %d overran its period by %s", s.tickCount, -sleep)
			next = time.Now().Add(period)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
		next = next.Add(period)
	}
}

// tick runs one simulation period: spawn admission, per-tank advancement,
// pairwise collision resolution, and shell advancement, in that order.
func (s *Server) tick() {
	clients := s.clients.Clients()
	s.admitSpawns(clients)

	inGame := make([]*session.Client, 0, len(clients))
	for _, c := range clients {
		if c.Tank != nil {
			inGame = append(inGame, c)
		}
	}

	for _, c := range inGame {
		var outcome world.TickOutcome
		func() {
			defer func() {
				if r := recover(); r != nil {
					telemetry.Logf("server: tank tick panic recovered: %v", r)
				}
			}()
			c.Tank.Mu.Lock()
			defer c.Tank.Mu.Unlock()
			outcome = c.Tank.Tick(s.landscape)
		}()
		if outcome.HitBound {
			s.notifyClient(c, protocol.EncodeErrorReply(protocol.NotTankHitBound))
		}
	}

	s.resolveCollisions(inGame)
	s.advanceShells(inGame)
	s.checkWin(inGame)
}

// admitSpawns places every Acknowledged client without a tank into the
// world, retrying placement next tick if no collision-free spot was found.
func (s *Server) admitSpawns(clients []*session.Client) {
	var inGameTanks []*world.Tank
	for _, c := range clients {
		if c.Tank != nil {
			inGameTanks = append(inGameTanks, c.Tank)
		}
	}
	for _, c := range clients {
		if c.State != session.StateAcknowledged || c.Tank != nil {
			continue
		}
		team := uint8(len(inGameTanks) % 2)
		tank := s.placeTank(team, inGameTanks)
		if tank == nil {
			continue
		}
		c.Tank = tank
		c.State = session.StateInGame
		inGameTanks = append(inGameTanks, tank)
	}
}

// resolveCollisions checks every pair of in-game tanks once per tick,
// colliding only against tanks already processed earlier in this pass, per
// §4.7. On overlap both tanks revert to their previous tick's position.
func (s *Server) resolveCollisions(inGame []*session.Client) {
	for i := 0; i < len(inGame); i++ {
		for j := i + 1; j < len(inGame); j++ {
			a, b := inGame[i].Tank, inGame[j].Tank
			a.Mu.Lock()
			b.Mu.Lock()
			collide := world.Intersects(a.Frame(), a.Bounding(), b.Frame(), b.Bounding())
			if collide {
				world.Resolve(a, b)
			}
			b.Mu.Unlock()
			a.Mu.Unlock()

			if collide {
				s.notifyClient(inGame[i], protocol.EncodeErrorReply(protocol.NotTankCollision))
				s.notifyClient(inGame[j], protocol.EncodeErrorReply(protocol.NotTankCollision))
			}
		}
	}
}

// spawnShell adds a newly fired shell to the tracked set and tells viewers
// about the shot.
func (s *Server) spawnShell(shooterID uuid.UUID, pos, dir vecmath.Vector) {
	shell := world.NewShell(shooterID, pos, dir)
	s.shellsMu.Lock()
	s.shells = append(s.shells, shell)
	s.shellsMu.Unlock()
	s.notifyViewers(protocol.EncodeViewerEvent(protocol.NotViewerShoot, pos.X, pos.Y, pos.Z))
}

// advanceShells integrates every in-flight shell one tick, resolving
// direct hits, splash explosions, and out-of-bounds removal per §4.5.
func (s *Server) advanceShells(inGame []*session.Client) {
	s.shellsMu.Lock()
	shells := s.shells
	s.shellsMu.Unlock()

	live := shells[:0]
	for _, shell := range shells {
		if s.resolveShellAgainstTanks(shell, inGame) {
			continue
		}
		switch shell.Tick(s.landscape) {
		case world.ShellExploded:
			s.applySplashDamage(shell, inGame)
			s.notifyViewers(protocol.EncodeViewerEvent(protocol.NotViewerExplosion, shell.Position.X, shell.Position.Y, shell.Position.Z))
		case world.ShellLeftBounds:
			// dropped silently, matching a shell simply flying off the map
		default:
			live = append(live, shell)
		}
	}

	s.shellsMu.Lock()
	s.shells = live
	s.shellsMu.Unlock()
}

// resolveShellAgainstTanks checks shell against every tank's bounding
// volume for a direct hit, applying damage and stats and reporting true if
// the shell should be removed.
func (s *Server) resolveShellAgainstTanks(shell *world.Shell, inGame []*session.Client) bool {
	for _, c := range inGame {
		tank := c.Tank
		if tank.ID == shell.ShooterID {
			continue // a shell cannot hit its own shooter
		}
		tank.Mu.Lock()
		hit := world.Intersects(
			shellFrame(shell),
			world.NewSphere(vecmath.Vector{}, world.ShellRadius),
			tank.Frame(), tank.Bounding(),
		)
		if hit && tank.HP > 0 {
			tank.ApplyDamage(world.ShellHitAmount)
			tank.Stats.GotDirectHits++
			died := tank.HP <= 0
			tank.Mu.Unlock()

			s.creditShooter(shell.ShooterID, func(shooter *world.Tank) { shooter.Stats.DirectHits++ }, inGame)
			s.notifyClient(c, protocol.EncodeErrorReply(protocol.NotHit))
			if died {
				s.notifyClient(c, protocol.EncodeErrorReply(protocol.NotDeath))
			}
			return true
		}
		tank.Mu.Unlock()
	}
	return false
}

// applySplashDamage damages every tank within ShellExplosionRange of an
// exploded shell's final position.
func (s *Server) applySplashDamage(shell *world.Shell, inGame []*session.Client) {
	for _, c := range inGame {
		tank := c.Tank
		if tank.ID == shell.ShooterID {
			continue
		}
		tank.Mu.Lock()
		dist := vecmath.Distance(tank.Position, shell.Position)
		if dist > world.ShellExplosionRange || tank.HP <= 0 {
			tank.Mu.Unlock()
			continue
		}
		tank.ApplyDamage(world.ShellExplosionDmg)
		tank.Stats.GotHits++
		died := tank.HP <= 0
		tank.Mu.Unlock()

		s.creditShooter(shell.ShooterID, func(shooter *world.Tank) { shooter.Stats.Hits++ }, inGame)
		s.notifyClient(c, protocol.EncodeErrorReply(protocol.NotExplosionDamage))
		if died {
			s.notifyClient(c, protocol.EncodeErrorReply(protocol.NotDeath))
		}
	}
}

// shellFrame gives a shell a valid moving frame for bounding queries: its
// own heading as the forward axis and world-up as orientation, since a
// shell (unlike a tank) has no separate up vector of its own.
func shellFrame(shell *world.Shell) world.Frame {
	return world.Frame{
		Origin:         shell.Position,
		PreviousOrigin: shell.PreviousPosition,
		Direction:      shell.Direction,
		Orientation:    vecmath.Vector{Z: 1},
	}
}

func (s *Server) creditShooter(shooterID uuid.UUID, fn func(*world.Tank), inGame []*session.Client) {
	for _, c := range inGame {
		if c.Tank.ID == shooterID {
			c.Tank.Mu.Lock()
			fn(c.Tank)
			c.Tank.Mu.Unlock()
			return
		}
	}
}

// checkWin declares the match over once at most one team has a living
// tank, persisting the result and returning every client to the
// Acknowledged state so the next match can begin.
func (s *Server) checkWin(inGame []*session.Client) {
	if len(inGame) < 2 {
		return
	}

	var alive []*session.Client
	teamsAlive := map[uint8]bool{}
	for _, c := range inGame {
		c.Tank.Mu.Lock()
		hp := c.Tank.HP
		c.Tank.Mu.Unlock()
		if hp > 0 {
			alive = append(alive, c)
			teamsAlive[c.Tank.Team] = true
		}
	}
	if len(teamsAlive) > 1 {
		return
	}

	var winnerID string
	if len(alive) > 0 {
		winnerID = alive[0].Tank.ID.String()
		for _, c := range alive {
			s.notifyClient(c, protocol.EncodeErrorReply(protocol.NotWin))
		}
	}

	results := make([]sqlite.TankResult, 0, len(inGame))
	for _, c := range inGame {
		c.Tank.Mu.Lock()
		results = append(results, sqlite.TankResult{
			TankID:        c.Tank.ID.String(),
			Team:          int(c.Tank.Team),
			FinalHP:       c.Tank.HP,
			TicksAlive:    c.Tank.Stats.TicksAlive,
			DirectHits:    c.Tank.Stats.DirectHits,
			Hits:          c.Tank.Stats.Hits,
			GotDirectHits: c.Tank.Stats.GotDirectHits,
			GotHits:       c.Tank.Stats.GotHits,
		})
		c.Tank.Mu.Unlock()
		c.Tank = nil
		c.State = session.StateAcknowledged
	}

	if s.store != nil {
		if err := s.store.RecordMatch(s.matchStart, time.Now(), s.tickCount, winnerID, results); err != nil {
			telemetry.Logf("server: record match: %v", err)
		}
	}
	s.matchStart = time.Now()

	s.shellsMu.Lock()
	s.shells = nil
	s.shellsMu.Unlock()
}
