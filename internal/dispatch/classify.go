// Package dispatch implements the datagram receive loop, per-packet
// validator table, and session classification rules described in the
// packet dispatcher component: framing, role checks, handshake admission,
// and handing validated requests off to the worker via the request
// mailbox.
package dispatch

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/ironclad-sim/tankserver/internal/network"
	"github.com/ironclad-sim/tankserver/internal/protocol"
	"github.com/ironclad-sim/tankserver/internal/session"
	"github.com/ironclad-sim/tankserver/internal/telemetry"
)

// packetDef is one entry of the validator table: every recognized id maps
// to whether it belongs to the client or viewer protocol, and an optional
// body validator. Ids with no entry are unknown and always BadRequest.
type packetDef struct {
	isClientProtocol bool
	isHello          bool
	validator        func(body []byte) bool
}

var packetTable = map[protocol.ID]packetDef{
	protocol.ReqHello:       {isClientProtocol: true, isHello: true},
	protocol.ReqBye:         {isClientProtocol: true},
	protocol.ReqViewerHello: {isClientProtocol: false, isHello: true},
	protocol.ReqViewerBye:   {isClientProtocol: false},

	protocol.ReqSetEnginePower: {isClientProtocol: true, validator: validateSetEnginePower},
	protocol.ReqTurn:           {isClientProtocol: true, validator: validateTurn},
	protocol.ReqLookAt:         {isClientProtocol: true, validator: validateLookAt},
	protocol.ReqShoot:          {isClientProtocol: true, validator: emptyBody},

	protocol.ReqGetHeading:    {isClientProtocol: true, validator: emptyBody},
	protocol.ReqGetSpeed:      {isClientProtocol: true, validator: emptyBody},
	protocol.ReqGetHP:         {isClientProtocol: true, validator: emptyBody},
	protocol.ReqGetStatistics: {isClientProtocol: true, validator: emptyBody},

	protocol.ReqGetMap:    {isClientProtocol: true, validator: emptyBody},
	protocol.ReqGetNormal: {isClientProtocol: true, validator: emptyBody},
	protocol.ReqGetTanks:  {isClientProtocol: true, validator: emptyBody},

	protocol.ReqViewerGetMap:   {isClientProtocol: false, validator: emptyBody},
	protocol.ReqViewerGetTanks: {isClientProtocol: false, validator: emptyBody},
}

func emptyBody(body []byte) bool { return len(body) == 0 }

func validateSetEnginePower(body []byte) bool {
	_, err := protocol.DecodeReqSetEnginePower(body)
	return err == nil
}

func validateTurn(body []byte) bool {
	decoded, err := protocol.DecodeReqTurn(body)
	if err != nil {
		return false
	}
	a := decoded.TurnAngle
	return !isNaNOrInf(a) && a >= -math.Pi && a <= math.Pi
}

func validateLookAt(body []byte) bool {
	decoded, err := protocol.DecodeReqLookAt(body)
	if err != nil {
		return false
	}
	for _, v := range []float64{decoded.X, decoded.Y, decoded.Z} {
		if isNaNOrInf(v) || v < -1 || v > 1 {
			return false
		}
	}
	return true
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e308 || v < -1e308
}

// Dispatcher owns the receive loop and session classification.
type Dispatcher struct {
	Sock    network.Socket
	Clients *session.Registry
	Viewers *session.Registry
	Mailbox *session.Mailbox
}

// Run polls the socket with a short read deadline so it can observe ctx
// cancellation, mirroring the reference listener's non-blocking receive
// loop. It returns when ctx is done or the socket is closed.
func (d *Dispatcher) Run(ctx context.Context) error {
	buf := make([]byte, protocol.MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := d.Sock.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			telemetry.Logf("dispatch: set read deadline: %v", err)
		}
		n, addr, err := d.Sock.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			telemetry.Logf("dispatch: read error: %v", err)
			continue
		}
		d.handleDatagram(addr, append([]byte(nil), buf[:n]...))
	}
}

// handleDatagram implements the classification rules of §4.6.
func (d *Dispatcher) handleDatagram(addr *net.UDPAddr, data []byte) {
	if len(data) == 0 || len(data) > protocol.MaxDatagramSize {
		d.reply(addr, protocol.EncodeErrorReply(protocol.ResBadRequest))
		return
	}
	id := protocol.ID(data[0])
	body := data[1:]

	def, known := packetTable[id]
	if !known || (def.validator != nil && !def.validator(body)) {
		d.reply(addr, protocol.EncodeErrorReply(protocol.ResBadRequest))
		return
	}

	client, isClient := d.Clients.FindClient(addr)
	viewer, isViewer := d.Viewers.FindViewer(addr)

	if isClient && !def.isClientProtocol {
		d.reply(addr, protocol.EncodeErrorReply(protocol.ResBadRequest))
		return
	}
	if isViewer && def.isClientProtocol {
		d.reply(addr, protocol.EncodeErrorReply(protocol.ResBadRequest))
		return
	}

	if !isClient && !isViewer {
		if def.isClientProtocol {
			if !def.isHello {
				d.reply(addr, protocol.EncodeErrorReply(protocol.ResBadRequest))
				return
			}
			c, ok := d.Clients.RegisterClient(addr)
			if !ok {
				d.reply(addr, protocol.EncodeErrorReply(protocol.ResTooManyClients))
				return
			}
			d.reply(addr, protocol.EncodeEcho(id))
			_ = c
			return
		}
		if !def.isHello {
			d.reply(addr, protocol.EncodeErrorReply(protocol.ResBadRequest))
			return
		}
		v, ok := d.Viewers.RegisterViewer(addr)
		if !ok {
			d.reply(addr, protocol.EncodeErrorReply(protocol.ResTooManyClients))
			return
		}
		d.reply(addr, protocol.EncodeEcho(id))
		_ = v
		return
	}

	if isClient && def.isHello {
		if client.State == session.StateConnected {
			client.State = session.StateAcknowledged
		}
		d.reply(addr, protocol.EncodeEcho(id))
		return
	}
	if isViewer && def.isHello {
		if viewer.State == session.StateConnected {
			viewer.State = session.StateAcknowledged
		}
		d.reply(addr, protocol.EncodeEcho(id))
		return
	}

	if isClient && id == protocol.ReqBye {
		d.Clients.UnregisterClient(addr)
		return
	}
	if isViewer && id == protocol.ReqViewerBye {
		d.Viewers.UnregisterViewer(addr)
		return
	}

	req := session.Request{Addr: addr, Body: append([]byte(nil), body...), IsViewer: isViewer}
	var work session.Work
	if isClient {
		if !client.TryBeginRequest(req) {
			d.reply(addr, protocol.EncodeErrorReply(protocol.ResWait))
			return
		}
		work = session.Work{Client: client, Req: requestWithID(req, id)}
	} else {
		if !viewer.TryBeginRequest(req) {
			d.reply(addr, protocol.EncodeErrorReply(protocol.ResWait))
			return
		}
		work = session.Work{Viewer: viewer, Req: requestWithID(req, id)}
	}

	if !d.Mailbox.TryEnqueue(work) {
		// Mailbox saturated: drop, matching the bounded-mailbox contract in
		// §3/§5, and release the session's in-flight slot so the peer's next
		// request is accepted instead of being answered with Wait.
		if isClient {
			client.EndRequest()
		} else {
			viewer.EndRequest()
		}
		telemetry.Logf("dispatch: mailbox full, dropping request from %s", addr)
	}
}

// requestWithID re-prepends the id byte so the worker can dispatch on it
// without the classification layer threading a separate parameter through.
func requestWithID(req session.Request, id protocol.ID) session.Request {
	req.Body = append([]byte{byte(id)}, req.Body...)
	return req
}

func (d *Dispatcher) reply(addr *net.UDPAddr, data []byte) {
	if _, err := d.Sock.WriteToUDP(data, addr); err != nil {
		telemetry.Logf("dispatch: reply to %s: %v", addr, err)
	}
}
