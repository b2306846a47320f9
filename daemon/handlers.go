package daemon

import (
	"github.com/portreeve/bootstrapd/common/handle"
	"github.com/portreeve/bootstrapd/common/wire"
)

// dispatchDatagram routes one received message. The first attached port
// is the caller's one-shot reply port; register-style requests attach
// the endpoint to bind as the second. A request without a reply port
// cannot be answered and is logged and dropped.
func (s *Server) dispatchDatagram(buf []byte, ports []handle.Port) {
	if len(ports) == 0 {
		s.log.Warning("dropping request with no reply port")
		return
	}
	reply := ports[0]
	extra := ports[1:]

	req, err := wire.DecodeRequest(buf)
	if err != nil {
		if header, ok := wire.DecodeRequestHeader(buf); ok {
			s.log.Error("malformed request ", header.ID, ": ", err.Error())
			s.replyStatus(reply, header.ID, wire.ErrBadCount)
		} else {
			s.log.Error("undecodable request: ", err.Error())
			_ = reply.Close()
		}
		handle.CloseAll(extra)
		return
	}

	switch req.ID {
	case wire.MsgCheckIn:
		handle.CloseAll(extra)
		s.handleCheckIn(req, reply)
	case wire.MsgRegister, wire.MsgRegisterPort:
		s.handleRegister(req, reply, extra)
	case wire.MsgLookUp, wire.MsgLookUpPort:
		handle.CloseAll(extra)
		s.handleLookUp(req, reply)
	case wire.MsgLookUpList, wire.MsgServerStatus:
		handle.CloseAll(extra)
		s.replyStatus(reply, req.ID, wire.ErrNotSupported)
	default:
		handle.CloseAll(extra)
		s.log.Warning("unrecognized request id ", req.ID)
		s.replyStatus(reply, req.ID, wire.ErrBadRequestID)
	}
}

// handleCheckIn allocates a fresh endpoint pair, binds the shareable
// half under req.Name, and hands the exclusive half back to the caller.
func (s *Server) handleCheckIn(req wire.Request, reply handle.Port) {
	if req.Name == "" {
		s.replyStatus(reply, req.ID, wire.ErrBadCount)
		return
	}
	service, peer, err := handle.NewPair()
	if err != nil {
		s.log.Error("check-in allocation failed: ", err.Error())
		s.replyStatus(reply, req.ID, wire.ErrNoMemory)
		return
	}
	if status := s.reg.Create(req.Name, peer); status != wire.StatusOK {
		_ = service.Close()
		_ = peer.Close()
		s.replyStatus(reply, req.ID, status)
		return
	}
	s.log.Info("checked in ", req.Name)
	s.replyPort(reply, req.ID, service)
	_ = service.Close()
}

// handleRegister binds a caller-supplied endpoint. Both the in-band
// register operation and the out-of-band register-port extension land
// here; the latter is how a process hands a port to the coordinator for
// redistribution to a third process.
func (s *Server) handleRegister(req wire.Request, reply handle.Port, extra []handle.Port) {
	if len(extra) != 1 {
		handle.CloseAll(extra)
		s.replyStatus(reply, req.ID, wire.ErrBadCount)
		return
	}
	if req.Name == "" {
		handle.CloseAll(extra)
		s.replyStatus(reply, req.ID, wire.ErrBadCount)
		return
	}
	port := extra[0]
	if status := s.reg.Create(req.Name, port); status != wire.StatusOK {
		_ = port.Close()
		s.replyStatus(reply, req.ID, status)
		return
	}
	s.log.Info("registered ", req.Name)
	s.replyStatus(reply, req.ID, wire.StatusOK)
}

// handleLookUp resolves a name to a duplicate of the stored endpoint.
func (s *Server) handleLookUp(req wire.Request, reply handle.Port) {
	port, found := s.reg.Lookup(req.Name)
	if !found {
		s.replyStatus(reply, req.ID, wire.ErrUnknownService)
		return
	}
	dup, err := port.Dup()
	if err != nil {
		s.log.Error("look-up dup failed: ", err.Error())
		s.replyStatus(reply, req.ID, wire.ErrNoMemory)
		return
	}
	s.replyPort(reply, req.ID, dup)
	_ = dup.Close()
}

func (s *Server) replyStatus(reply handle.Port, reqID uint32, status wire.Status) {
	defer reply.Close()
	err := handle.SendMsg(reply, wire.EncodeStatusReply(reqID, status), nil)
	if err != nil {
		s.log.Error("status reply failed: ", err.Error())
	}
}

func (s *Server) replyPort(reply handle.Port, reqID uint32, port handle.Port) {
	defer reply.Close()
	err := handle.SendMsg(reply, wire.EncodePortReply(reqID, 1), []handle.Port{port})
	if err != nil {
		s.log.Error("port reply failed: ", err.Error())
	}
}
