package daemon

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/op/go-logging"

	"github.com/portreeve/bootstrapd/common/config"
	"github.com/portreeve/bootstrapd/common/handle"
	"github.com/portreeve/bootstrapd/common/wire"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Paths: config.Paths{
			StateRoot: dir,
			PIDFile:   filepath.Join(dir, "bootstrapd.pid"),
		},
		Barrier: config.Barrier{Attempts: 3, IntervalMS: 10},
	}
	s, err := NewServer(cfg, logging.MustGetLogger("test"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

// roundTrip drives one request from the client end of the rendezvous
// channel through a single dispatch iteration, asserting the reply id
// convention on the way.
func roundTrip(t *testing.T, s *Server, id uint32, name string, extra []handle.Port) (wire.Reply, []handle.Port) {
	t.Helper()
	body, err := wire.EncodeRequest(id, name, true)
	if err != nil {
		t.Fatal(err)
	}
	replyRecv, replySend, err := handle.NewPair()
	if err != nil {
		t.Fatal(err)
	}
	defer replyRecv.Close()

	err = handle.SendMsg(s.ClientPort(), body, append([]handle.Port{replySend}, extra...))
	replySend.Close()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.pumpOne(time.Second); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 256)
	n, ports, err := handle.RecvMsg(replyRecv, buf, 2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	reply, err := wire.DecodeReply(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if reply.ID != id+wire.ReplyOffset {
		t.Fatalf("reply id %d for request id %d", reply.ID, id)
	}
	return reply, ports
}

func expectStatus(t *testing.T, reply wire.Reply, ports []handle.Port, want wire.Status) {
	t.Helper()
	handle.CloseAll(ports)
	if reply.CarriesPorts() {
		t.Fatal("expected status reply, got port reply")
	}
	if reply.Status != want {
		t.Fatalf("status %v, want %v", reply.Status, want)
	}
}

func expectPort(t *testing.T, reply wire.Reply, ports []handle.Port) handle.Port {
	t.Helper()
	if !reply.CarriesPorts() {
		t.Fatalf("expected port reply, got status %v", reply.Status)
	}
	if reply.PortCount != 1 || len(ports) != 1 {
		t.Fatalf("count %d, ports %d", reply.PortCount, len(ports))
	}
	return ports[0]
}

func expectDelivery(t *testing.T, from, to handle.Port, payload string) {
	t.Helper()
	if err := handle.SendMsg(from, []byte(payload), nil); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 256)
	n, _, err := handle.RecvMsg(to, buf, 0, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:n], []byte(payload)) {
		t.Fatalf("payload %q, want %q", buf[:n], payload)
	}
}

func TestCheckInThenLookUp(t *testing.T) {
	s := newTestServer(t)

	reply, ports := roundTrip(t, s, wire.MsgCheckIn, "com.example.display", nil)
	service := expectPort(t, reply, ports)
	defer service.Close()

	reply, ports = roundTrip(t, s, wire.MsgLookUp, "com.example.display", nil)
	resolved := expectPort(t, reply, ports)
	defer resolved.Close()

	//	the resolved port reaches the checked-in service end
	expectDelivery(t, resolved, service, "frame")
}

func TestCheckInNameInUse(t *testing.T) {
	s := newTestServer(t)

	reply, ports := roundTrip(t, s, wire.MsgCheckIn, "com.example.display", nil)
	service := expectPort(t, reply, ports)
	defer service.Close()

	reply, ports = roundTrip(t, s, wire.MsgCheckIn, "com.example.display", nil)
	expectStatus(t, reply, ports, wire.ErrNameInUse)
}

func TestCheckInEmptyName(t *testing.T) {
	s := newTestServer(t)
	reply, ports := roundTrip(t, s, wire.MsgCheckIn, "", nil)
	expectStatus(t, reply, ports, wire.ErrBadCount)
}

func TestRegisterThenLookUp(t *testing.T) {
	s := newTestServer(t)

	service, peer, err := handle.NewPair()
	if err != nil {
		t.Fatal(err)
	}
	defer service.Close()

	reply, ports := roundTrip(t, s, wire.MsgRegister, "com.example.audio", []handle.Port{peer})
	peer.Close()
	expectStatus(t, reply, ports, wire.StatusOK)

	reply, ports = roundTrip(t, s, wire.MsgLookUp, "com.example.audio", nil)
	resolved := expectPort(t, reply, ports)
	defer resolved.Close()

	expectDelivery(t, resolved, service, "sample")
}

func TestRegisterNameInUse(t *testing.T) {
	s := newTestServer(t)

	_, peer1, err := handle.NewPair()
	if err != nil {
		t.Fatal(err)
	}
	reply, ports := roundTrip(t, s, wire.MsgRegister, "svc", []handle.Port{peer1})
	peer1.Close()
	expectStatus(t, reply, ports, wire.StatusOK)

	_, peer2, err := handle.NewPair()
	if err != nil {
		t.Fatal(err)
	}
	reply, ports = roundTrip(t, s, wire.MsgRegister, "svc", []handle.Port{peer2})
	peer2.Close()
	expectStatus(t, reply, ports, wire.ErrNameInUse)
}

func TestRegisterWithoutPort(t *testing.T) {
	s := newTestServer(t)
	reply, ports := roundTrip(t, s, wire.MsgRegister, "svc", nil)
	expectStatus(t, reply, ports, wire.ErrBadCount)
}

func TestLookUpUnknownService(t *testing.T) {
	s := newTestServer(t)
	reply, ports := roundTrip(t, s, wire.MsgLookUp, "nonexistent", nil)
	expectStatus(t, reply, ports, wire.ErrUnknownService)
}

func TestUnsupportedOperations(t *testing.T) {
	s := newTestServer(t)
	for _, id := range []uint32{wire.MsgLookUpList, wire.MsgServerStatus} {
		reply, ports := roundTrip(t, s, id, "anything", nil)
		expectStatus(t, reply, ports, wire.ErrNotSupported)
	}
}

func TestUnrecognizedRequestID(t *testing.T) {
	s := newTestServer(t)
	reply, ports := roundTrip(t, s, 777, "whatever", nil)
	expectStatus(t, reply, ports, wire.ErrBadRequestID)
}

func TestPortExtensionRedistribution(t *testing.T) {
	s := newTestServer(t)

	//	process A parks a port with the coordinator
	service, peer, err := handle.NewPair()
	if err != nil {
		t.Fatal(err)
	}
	defer service.Close()
	reply, ports := roundTrip(t, s, wire.MsgRegisterPort, "org.example.shared", []handle.Port{peer})
	peer.Close()
	expectStatus(t, reply, ports, wire.StatusOK)

	//	process C, unrelated to A, retrieves it
	reply, ports = roundTrip(t, s, wire.MsgLookUpPort, "org.example.shared", nil)
	resolved := expectPort(t, reply, ports)
	defer resolved.Close()

	expectDelivery(t, resolved, service, "capability")
}

func TestRequestWithoutReplyPortIsDropped(t *testing.T) {
	s := newTestServer(t)

	body, err := wire.EncodeRequest(wire.MsgLookUp, "svc", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := handle.SendMsg(s.ClientPort(), body, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.pumpOne(time.Second); err != nil {
		t.Fatal(err)
	}

	//	the coordinator survives and keeps answering
	reply, ports := roundTrip(t, s, wire.MsgLookUp, "svc", nil)
	expectStatus(t, reply, ports, wire.ErrUnknownService)
}
