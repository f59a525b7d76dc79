// Package session tracks connected peers (clients and viewers), their
// handshake state, and the bounded per-session in-flight request slot the
// dispatcher enforces.
package session

import (
	"fmt"
	"net"
	"sync"

	"github.com/ironclad-sim/tankserver/internal/world"
)

// State is a session's handshake/game-admission state.
type State int

const (
	StateConnected State = iota
	StateAcknowledged
	StateInGame
)

// MaxClients and MaxViewers bound registry membership per §3.
const (
	MaxClients = 16
	MaxViewers = 16
)

// Request is one buffered, not-yet-executed datagram alongside the
// endpoint and role it arrived from.
type Request struct {
	Addr    *net.UDPAddr
	Body    []byte
	IsViewer bool
}

// Client is the server-side record of a connected tank controller.
type Client struct {
	Addr    *net.UDPAddr
	State   State
	Tank    *world.Tank // nil until placed into the world at StateInGame
	pending *Request
	mu      sync.Mutex
}

// Viewer is the server-side record of a connected passive observer.
type Viewer struct {
	Addr    *net.UDPAddr
	State   State
	pending *Request
	mu      sync.Mutex
}

// TryBeginRequest stores req as the session's in-flight slot if empty,
// returning true on success and false if a request is already pending
// (the caller should reply Wait).
func (c *Client) TryBeginRequest(req Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return false
	}
	c.pending = &req
	return true
}

// EndRequest clears the in-flight slot.
func (c *Client) EndRequest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// TryBeginRequest is the Viewer analogue of Client.TryBeginRequest.
func (v *Viewer) TryBeginRequest(req Request) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending != nil {
		return false
	}
	v.pending = &req
	return true
}

// EndRequest clears the in-flight slot.
func (v *Viewer) EndRequest() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = nil
}

// Registry holds the bounded, endpoint-keyed set of either clients or
// viewers, guarded by a single RWMutex per §5.
type Registry struct {
	mu       sync.RWMutex
	clients  []*Client
	viewers  []*Viewer
	isClient bool
}

// NewClientRegistry and NewViewerRegistry construct the two registries the
// dispatcher and tick loop share.
func NewClientRegistry() *Registry { return &Registry{isClient: true} }
func NewViewerRegistry() *Registry { return &Registry{isClient: false} }

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// FindClient returns the client registered at addr, if any.
func (r *Registry) FindClient(addr *net.UDPAddr) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if addrEqual(c.Addr, addr) {
			return c, true
		}
	}
	return nil, false
}

// FindViewer returns the viewer registered at addr, if any.
func (r *Registry) FindViewer(addr *net.UDPAddr) (*Viewer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.viewers {
		if addrEqual(v.Addr, addr) {
			return v, true
		}
	}
	return nil, false
}

// RegisterClient adds a new Connected-state client. Returns false if the
// registry is already at MaxClients.
func (r *Registry) RegisterClient(addr *net.UDPAddr) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) >= MaxClients {
		return nil, false
	}
	c := &Client{Addr: addr, State: StateConnected}
	r.clients = append(r.clients, c)
	return c, true
}

// RegisterViewer adds a new Connected-state viewer. Returns false if the
// registry is already at MaxViewers.
func (r *Registry) RegisterViewer(addr *net.UDPAddr) (*Viewer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.viewers) >= MaxViewers {
		return nil, false
	}
	v := &Viewer{Addr: addr, State: StateConnected}
	r.viewers = append(r.viewers, v)
	return v, true
}

// UnregisterClient removes a client by endpoint.
func (r *Registry) UnregisterClient(addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.clients {
		if addrEqual(c.Addr, addr) {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return
		}
	}
}

// UnregisterViewer removes a viewer by endpoint.
func (r *Registry) UnregisterViewer(addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.viewers {
		if addrEqual(v.Addr, addr) {
			r.viewers = append(r.viewers[:i], r.viewers[i+1:]...)
			return
		}
	}
}

// Clients returns a snapshot slice of the current client registry.
// Callers iterating the returned slice observe a consistent point-in-time
// view; structural registry mutation during iteration needs no separate
// lock because the slice is a copy.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, len(r.clients))
	copy(out, r.clients)
	return out
}

// Viewers returns a snapshot slice of the current viewer registry.
func (r *Registry) Viewers() []*Viewer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Viewer, len(r.viewers))
	copy(out, r.viewers)
	return out
}

// ClientCount and ViewerCount report current registry occupancy, used by
// the admin HTTP surface.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

// Work is one item the dispatcher hands to the worker goroutine: either a
// client or a viewer session with a freshly buffered request.
type Work struct {
	Client *Client
	Viewer *Viewer
	Req    Request
}

// Mailbox is the bounded request queue of §3/§5: a buffered channel with a
// non-blocking, drop-on-full write and a blocking read.
type Mailbox struct {
	ch chan Work
}

// NewMailbox constructs a mailbox with the given capacity (16 per spec).
func NewMailbox(capacity int) *Mailbox {
	return &Mailbox{ch: make(chan Work, capacity)}
}

// TryEnqueue attempts a non-blocking write. Returns false if the mailbox is
// full, meaning the item was dropped (acceptable loss under a
// dropped-datagram transport).
func (m *Mailbox) TryEnqueue(w Work) bool {
	select {
	case m.ch <- w:
		return true
	default:
		return false
	}
}

// Dequeue blocks until a work item is available or done is closed, in which
// case it returns (Work{}, false).
func (m *Mailbox) Dequeue(done <-chan struct{}) (Work, bool) {
	select {
	case w := <-m.ch:
		return w, true
	case <-done:
		return Work{}, false
	}
}

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAcknowledged:
		return "acknowledged"
	case StateInGame:
		return "in-game"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
