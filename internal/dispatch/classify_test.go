package dispatch

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ironclad-sim/tankserver/internal/network"
	"github.com/ironclad-sim/tankserver/internal/protocol"
	"github.com/ironclad-sim/tankserver/internal/session"
)

func peer(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func newTestDispatcher(packets []network.MockPacket) (*Dispatcher, *network.MockSocket) {
	sock := network.NewMockSocket(packets)
	d := &Dispatcher{
		Sock:    sock,
		Clients: session.NewClientRegistry(),
		Viewers: session.NewViewerRegistry(),
		Mailbox: session.NewMailbox(16),
	}
	return d, sock
}

func runUntilDrained(t *testing.T, d *Dispatcher, sock *network.MockSocket) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sock.Closed = false // ensure the loop keeps polling
		if len(sock.Sent) >= 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}

func TestHelloRegistersClientAndReplies(t *testing.T) {
	p := peer(9001)
	d, sock := newTestDispatcher([]network.MockPacket{{Addr: p, Data: []byte{byte(protocol.ReqHello)}}})
	runUntilDrained(t, d, sock)

	if _, ok := d.Clients.FindClient(p); !ok {
		t.Fatal("expected client to be registered after hello")
	}
	if len(sock.Sent) == 0 || sock.Sent[0].Data[0] != byte(protocol.ReqHello) {
		t.Fatalf("expected an echoed hello reply, got %+v", sock.Sent)
	}
}

func TestUnknownPacketIsBadRequest(t *testing.T) {
	p := peer(9002)
	d, sock := newTestDispatcher([]network.MockPacket{{Addr: p, Data: []byte{0xAB}}})
	runUntilDrained(t, d, sock)

	if len(sock.Sent) == 0 || sock.Sent[0].Data[0] != byte(protocol.ResBadRequest) {
		t.Fatalf("expected BadRequest reply, got %+v", sock.Sent)
	}
}

func TestSecondRequestWhileOneInFlightGetsWait(t *testing.T) {
	p := peer(9003)
	d, _ := newTestDispatcher(nil)
	client, ok := d.Clients.RegisterClient(p)
	if !ok {
		t.Fatal("registration should succeed")
	}
	client.State = session.StateAcknowledged

	d.handleDatagram(p, []byte{byte(protocol.ReqGetHP)})
	d.handleDatagram(p, []byte{byte(protocol.ReqGetHP)})

	sock := d.Sock.(*network.MockSocket)
	if len(sock.Sent) != 1 || sock.Sent[0].Data[0] != byte(protocol.ResWait) {
		t.Fatalf("expected exactly one Wait reply for the second in-flight request, got %+v", sock.Sent)
	}
}

func TestClientCannotUseViewerProtocol(t *testing.T) {
	p := peer(9004)
	d, _ := newTestDispatcher(nil)
	d.Clients.RegisterClient(p)

	d.handleDatagram(p, []byte{byte(protocol.ReqViewerGetMap)})

	sock := d.Sock.(*network.MockSocket)
	if len(sock.Sent) != 1 || sock.Sent[0].Data[0] != byte(protocol.ResBadRequest) {
		t.Fatalf("expected BadRequest for cross-protocol request, got %+v", sock.Sent)
	}
}

func TestByeUnregistersClient(t *testing.T) {
	p := peer(9005)
	d, _ := newTestDispatcher(nil)
	d.Clients.RegisterClient(p)

	d.handleDatagram(p, []byte{byte(protocol.ReqBye)})

	if _, ok := d.Clients.FindClient(p); ok {
		t.Fatal("expected client to be unregistered after bye")
	}
}
