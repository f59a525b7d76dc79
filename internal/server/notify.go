package server

import "github.com/ironclad-sim/tankserver/internal/session"

// notifyClient sends a notification datagram straight to one client,
// bypassing the worker: notifications are pushed by the tick loop, not
// produced by an executor, so the ordering guarantee in §5 that only the
// worker replies to queued requests does not apply here.
func (s *Server) notifyClient(c *session.Client, body []byte) {
	s.reply(c.Addr, body)
}

// notifyViewers broadcasts body to every connected viewer.
func (s *Server) notifyViewers(body []byte) {
	for _, v := range s.viewers.Viewers() {
		s.reply(v.Addr, body)
	}
}
