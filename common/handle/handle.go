package handle

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Port is an opaque reference to one end of a local communication
// endpoint, held as a unix file descriptor. The coordinator never reads
// or writes a stored Port; it only duplicates it and passes it between
// processes as SCM_RIGHTS ancillary data. A port produced by a check-in
// is exclusive to its holder; a port handed out by a look-up is a
// duplicate and may exist in any number of processes at once.
type Port struct {
	fd int
}

var ErrTimeout = fmt.Errorf("receive timed out")

func FromFD(fd int) Port {
	return Port{fd: fd}
}

func (p Port) FD() int {
	return p.fd
}

func (p Port) IsValid() bool {
	return p.fd >= 0
}

// NewPair allocates a fresh endpoint as a connected datagram socket
// pair. The two halves are interchangeable at the socket level; the
// caller decides which side is the exclusive service end and which side
// gets duplicated for clients.
func NewPair() (a Port, b Port, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		err = fmt.Errorf("socketpair: %s", err.Error())
		return
	}
	a = Port{fd: fds[0]}
	b = Port{fd: fds[1]}
	return
}

func (p Port) Dup() (dup Port, err error) {
	newFD, err := unix.FcntlInt(uintptr(p.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		err = fmt.Errorf("dup: %s", err.Error())
		return
	}
	dup = Port{fd: newFD}
	return
}

func (p Port) Close() (err error) {
	if !p.IsValid() {
		return
	}
	err = unix.Close(p.fd)
	return
}

// File wraps the descriptor for handing to exec.Cmd.ExtraFiles. The
// returned file owns the descriptor; closing it closes the port.
func (p Port) File(name string) *os.File {
	return os.NewFile(uintptr(p.fd), name)
}

// SendMsg writes one datagram on p carrying payload plus the given
// ports as SCM_RIGHTS. The kernel duplicates the descriptors at send
// time; the caller keeps ownership of its local copies.
func SendMsg(p Port, payload []byte, ports []Port) (err error) {
	var oob []byte
	if len(ports) > 0 {
		fds := make([]int, len(ports))
		for i, port := range ports {
			fds[i] = port.fd
		}
		oob = unix.UnixRights(fds...)
	}
	err = unix.Sendmsg(p.fd, payload, oob, nil, 0)
	if err != nil {
		err = fmt.Errorf("sendmsg: %s", err.Error())
	}
	return
}

// RecvMsg blocks until one datagram arrives on p, or until timeout
// elapses (timeout < 0 waits forever). It returns the payload length
// and any ports that arrived as rights. On ErrTimeout no data has been
// consumed.
func RecvMsg(p Port, buf []byte, maxPorts int, timeout time.Duration) (n int, ports []Port, err error) {
	err = awaitReadable(p.fd, timeout)
	if err != nil {
		return
	}

	oob := make([]byte, unix.CmsgSpace(4*maxPorts))
	n, oobn, _, _, err := unix.Recvmsg(p.fd, buf, oob, unix.MSG_CMSG_CLOEXEC)
	if err != nil {
		err = fmt.Errorf("recvmsg: %s", err.Error())
		return
	}
	if oobn == 0 {
		return
	}

	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		err = fmt.Errorf("parse control message: %s", err.Error())
		return
	}
	for _, msg := range msgs {
		fds, parseErr := unix.ParseUnixRights(&msg)
		if parseErr != nil {
			continue
		}
		for _, fd := range fds {
			ports = append(ports, Port{fd: fd})
		}
	}
	return
}

func awaitReadable(fd int, timeout time.Duration) (err error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	for {
		pollFDs := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		var ready int
		ready, err = unix.Poll(pollFDs, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			err = fmt.Errorf("poll: %s", err.Error())
			return
		}
		if ready == 0 {
			err = ErrTimeout
		}
		return
	}
}

// CloseAll is a convenience for dropping every port received with a
// request that cannot be honored.
func CloseAll(ports []Port) {
	for _, p := range ports {
		_ = p.Close()
	}
}
