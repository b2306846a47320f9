package wire

// Request message ids. A reply to request id N always carries id
// N + ReplyOffset, success or failure.
const (
	MsgCheckIn      uint32 = 401
	MsgRegister     uint32 = 402
	MsgLookUp       uint32 = 403
	MsgLookUpList   uint32 = 404 // legacy batch look-up, never supported
	MsgServerStatus uint32 = 405 // legacy status probe, never supported
	MsgRegisterPort uint32 = 410
	MsgLookUpPort   uint32 = 411

	ReplyOffset uint32 = 100
)

// FlagCarriesPorts is the single header bit a caller needs to decide
// whether the rest of a reply is a port count or a status code.
const FlagCarriesPorts uint32 = 1 << 0

// MaxNameLen bounds service names; the wire format reserves one
// trailing byte of the name field.
const (
	MaxNameLen   = 127
	nameFieldLen = 128
)

// Status is the closed set of signed status codes a reply may carry.
type Status int32

const (
	StatusOK          Status = 0
	ErrNameInUse      Status = 1
	ErrUnknownService Status = 2
	ErrServiceActive  Status = 3
	ErrBadCount       Status = 4
	ErrNoMemory       Status = 5
	ErrNotSupported   Status = 6
	ErrBadRequestID   Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case ErrNameInUse:
		return "name in use"
	case ErrUnknownService:
		return "unknown service"
	case ErrServiceActive:
		return "service active"
	case ErrBadCount:
		return "bad count"
	case ErrNoMemory:
		return "no memory"
	case ErrNotSupported:
		return "not supported"
	case ErrBadRequestID:
		return "bad request id"
	}
	return "unknown status"
}

type Header struct {
	ID    uint32
	Flags uint32
}

func (h Header) CarriesPorts() bool {
	return h.Flags&FlagCarriesPorts != 0
}

// Request is a decoded request message. Any ports that accompanied it
// (the reply port, and the registered endpoint for register-style
// requests) travel out of band as descriptor rights.
type Request struct {
	Header
	Name string
}

// Reply is a decoded reply message: either a port reply (PortCount
// descriptors attached, header bit set) or a status reply.
type Reply struct {
	Header
	Status    Status
	PortCount uint32
}
