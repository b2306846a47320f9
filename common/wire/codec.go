package wire

import (
	"encoding/binary"
	"fmt"
)

// Fixed little-endian layouts, so independently built clients can
// interoperate without a shared schema library:
//
//	request:       id u32 | flags u32 | name_length u32 | name byte[128]
//	port reply:    id u32 | flags u32 (bit0 set) | descriptor_count u32
//	status reply:  id u32 | flags u32 (bit0 clear) | status i32
const (
	headerLen      = 8
	requestLen     = headerLen + 4 + nameFieldLen
	portReplyLen   = headerLen + 4
	statusReplyLen = headerLen + 4
)

var ErrNameTooLong = fmt.Errorf("service name exceeds %d bytes", MaxNameLen)

func putHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.ID)
	binary.LittleEndian.PutUint32(buf[4:8], h.Flags)
}

func parseHeader(buf []byte) Header {
	return Header{
		ID:    binary.LittleEndian.Uint32(buf[0:4]),
		Flags: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// EncodeRequest lays out a request for the given operation. carryPorts
// reflects whether descriptor rights will accompany the datagram.
func EncodeRequest(id uint32, name string, carryPorts bool) (buf []byte, err error) {
	if len(name) > MaxNameLen {
		err = ErrNameTooLong
		return
	}
	var flags uint32
	if carryPorts {
		flags = FlagCarriesPorts
	}
	buf = make([]byte, requestLen)
	putHeader(buf, Header{ID: id, Flags: flags})
	binary.LittleEndian.PutUint32(buf[headerLen:], uint32(len(name)))
	copy(buf[headerLen+4:], name)
	return
}

func DecodeRequest(buf []byte) (req Request, err error) {
	if len(buf) < requestLen {
		err = fmt.Errorf("short request: %d bytes", len(buf))
		return
	}
	req.Header = parseHeader(buf)
	nameLen := binary.LittleEndian.Uint32(buf[headerLen:])
	if nameLen > MaxNameLen {
		err = ErrNameTooLong
		return
	}
	req.Name = string(buf[headerLen+4 : headerLen+4+int(nameLen)])
	return
}

// DecodeRequestHeader recovers just the header, so a malformed body can
// still be answered with a correlated status reply.
func DecodeRequestHeader(buf []byte) (h Header, ok bool) {
	if len(buf) < headerLen {
		return
	}
	return parseHeader(buf), true
}

// EncodePortReply builds the success reply for a request that yields a
// capability; count descriptors ride along as rights.
func EncodePortReply(reqID uint32, count uint32) []byte {
	buf := make([]byte, portReplyLen)
	putHeader(buf, Header{ID: reqID + ReplyOffset, Flags: FlagCarriesPorts})
	binary.LittleEndian.PutUint32(buf[headerLen:], count)
	return buf
}

// EncodeStatusReply builds a reply carrying only a status code. This is
// the shape of every failure reply and of the success reply for
// register-style operations.
func EncodeStatusReply(reqID uint32, status Status) []byte {
	buf := make([]byte, statusReplyLen)
	putHeader(buf, Header{ID: reqID + ReplyOffset})
	binary.LittleEndian.PutUint32(buf[headerLen:], uint32(status))
	return buf
}

func DecodeReply(buf []byte) (reply Reply, err error) {
	if len(buf) < headerLen+4 {
		err = fmt.Errorf("short reply: %d bytes", len(buf))
		return
	}
	reply.Header = parseHeader(buf)
	if reply.CarriesPorts() {
		reply.PortCount = binary.LittleEndian.Uint32(buf[headerLen:])
	} else {
		reply.Status = Status(int32(binary.LittleEndian.Uint32(buf[headerLen:])))
	}
	return
}
