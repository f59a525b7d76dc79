// Package server wires the dispatcher, request worker, and tick scheduler
// into a running game server, and owns the shared world state (landscape,
// live tanks, live shells) all three touch.
package server

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironclad-sim/tankserver/internal/config"
	"github.com/ironclad-sim/tankserver/internal/dispatch"
	"github.com/ironclad-sim/tankserver/internal/network"
	"github.com/ironclad-sim/tankserver/internal/session"
	"github.com/ironclad-sim/tankserver/internal/storage/sqlite"
	"github.com/ironclad-sim/tankserver/internal/telemetry"
	"github.com/ironclad-sim/tankserver/internal/world"
)

// MailboxCapacity bounds the queue of pending client/viewer work items.
const MailboxCapacity = 16

// MatchStore is the persistence seam the tick loop records concluded
// matches through. *sqlite.DB satisfies it; tests can substitute a fake.
type MatchStore interface {
	RecordMatch(start, end time.Time, ticks uint64, winnerTankID string, results []sqlite.TankResult) error
}

// Server is one running instance of the simulation (§3: at most one world
// per process).
type Server struct {
	cfg *config.Config

	landscape *world.Landscape
	clients   *session.Registry
	viewers   *session.Registry
	mailbox   *session.Mailbox

	sock network.Socket
	disp *dispatch.Dispatcher

	store MatchStore

	shellsMu sync.Mutex
	shells   []*world.Shell

	tickCount uint64
	matchStart time.Time
}

// New constructs a Server bound to sock, ready to Run.
func New(cfg *config.Config, landscape *world.Landscape, sock network.Socket, store MatchStore) *Server {
	clients := session.NewClientRegistry()
	viewers := session.NewViewerRegistry()
	mailbox := session.NewMailbox(MailboxCapacity)

	s := &Server{
		cfg:       cfg,
		landscape: landscape,
		clients:   clients,
		viewers:   viewers,
		mailbox:   mailbox,
		sock:      sock,
		store:     store,
		matchStart: time.Now(),
	}
	s.disp = &dispatch.Dispatcher{
		Sock:    sock,
		Clients: clients,
		Viewers: viewers,
		Mailbox: mailbox,
	}
	return s
}

// Run starts the receiver, worker, and tick goroutines and blocks until ctx
// is cancelled or the receiver exits, then broadcasts bye to every session
// before returning.
func (s *Server) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer cancel()
		if err := s.disp.Run(ctx); err != nil {
			telemetry.Logf("server: dispatcher exited: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		s.runWorker(ctx)
	}()

	go func() {
		defer wg.Done()
		s.runTickLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	s.broadcastBye()
}

func (s *Server) broadcastBye() {
	for _, c := range s.clients.Clients() {
		s.reply(c.Addr, byeReply())
	}
	for _, v := range s.viewers.Viewers() {
		s.reply(v.Addr, byeReply())
	}
}

func (s *Server) reply(addr *net.UDPAddr, body []byte) {
	if _, err := s.sock.WriteToUDP(body, addr); err != nil {
		telemetry.Logf("server: reply to %s: %v", addr, err)
	}
}

func byeReply() []byte { return []byte{0x01} }

// Clients and Viewers expose the live session registries for the admin
// HTTP surface; the tick loop and dispatcher remain the only writers.
func (s *Server) Clients() *session.Registry { return s.clients }
func (s *Server) Viewers() *session.Registry { return s.viewers }

// placeTank samples a random in-bounds position and returns a new tank
// that does not intersect any already-InGame tank, retrying up to
// SpawnAttemptsOrDefault times. Returns nil if no collision-free spot was
// found this tick; the caller retries next tick.
func (s *Server) placeTank(team uint8, inGame []*world.Tank) *world.Tank {
	extent := s.landscape.Extent()
	attempts := s.cfg.SpawnAttemptsOrDefault()
	for i := 0; i < attempts; i++ {
		x := rand.Float64() * extent
		y := rand.Float64() * extent
		candidate := world.NewTank(uuid.New(), team, x, y, s.landscape)
		collides := false
		for _, other := range inGame {
			if world.Intersects(candidate.Frame(), candidate.Bounding(), other.Frame(), other.Bounding()) {
				collides = true
				break
			}
		}
		if !collides {
			return candidate
		}
	}
	return nil
}
