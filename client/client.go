// Package client is the child-side half of the launch contract: it
// opens the rendezvous port a process was started with and performs
// check-in, register, and look-up requests against the coordinator.
package client

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/portreeve/bootstrapd/common/contract"
	"github.com/portreeve/bootstrapd/common/handle"
	"github.com/portreeve/bootstrapd/common/wire"
)

// The coordinator applies no per-request deadline, so the client
// applies its own: a request whose reply never arrives fails with
// handle.ErrTimeout.
const DefaultTimeout = 5 * time.Second

const resolveCacheSize = 32

var ErrNoRendezvous = fmt.Errorf("no rendezvous port: %s not set", contract.SocketFDEnv)

// StatusError carries a non-ok status code from a coordinator reply.
type StatusError struct {
	Status wire.Status
}

func (e *StatusError) Error() string {
	return "bootstrap: " + e.Status.String()
}

// StatusOf extracts the wire status from an error, if it has one.
func StatusOf(err error) (status wire.Status, ok bool) {
	statusErr, ok := err.(*StatusError)
	if ok {
		status = statusErr.Status
	}
	return
}

type Client struct {
	rendezvous handle.Port
	timeout    time.Duration

	mu    sync.Mutex
	cache *lru.Cache
}

// New wraps an already-open rendezvous port. Resolved names are cached:
// registry entries are immutable once created, so a resolution can
// never go stale, and evicted entries just close their duplicate.
func New(rendezvous handle.Port) *Client {
	cache := lru.New(resolveCacheSize)
	cache.OnEvicted = func(key lru.Key, value interface{}) {
		_ = value.(handle.Port).Close()
	}
	return &Client{
		rendezvous: rendezvous,
		timeout:    DefaultTimeout,
		cache:      cache,
	}
}

// FromEnv opens the rendezvous port installed by the coordinator at
// launch.
func FromEnv() (c *Client, err error) {
	fdStr := os.Getenv(contract.SocketFDEnv)
	if fdStr == "" {
		err = ErrNoRendezvous
		return
	}
	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		err = fmt.Errorf("bad %s value %q", contract.SocketFDEnv, fdStr)
		return
	}
	c = New(handle.FromFD(fd))
	return
}

func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// CheckIn binds name to a freshly allocated endpoint and returns the
// exclusive receive side. The caller owns the returned port.
func (c *Client) CheckIn(name string) (port handle.Port, err error) {
	return c.portRequest(wire.MsgCheckIn, name)
}

// Register binds name to a caller-supplied endpoint. The coordinator
// receives its own duplicate; the caller keeps port.
func (c *Client) Register(name string, port handle.Port) (err error) {
	return c.registerRequest(wire.MsgRegister, name, port)
}

// LookUp resolves name to a shareable duplicate of its endpoint. The
// caller owns the returned port; repeated look-ups are served from the
// local cache.
func (c *Client) LookUp(name string) (port handle.Port, err error) {
	c.mu.Lock()
	if cached, hit := c.cache.Get(name); hit {
		//	dup before releasing the lock: eviction closes cached ports
		port, err = cached.(handle.Port).Dup()
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	resolved, err := c.portRequest(wire.MsgLookUp, name)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.cache.Add(name, resolved)
	port, err = resolved.Dup()
	c.mu.Unlock()
	return
}

// RegisterPort hands an endpoint to the coordinator for safekeeping
// under name, for redistribution to a process the caller has no direct
// relationship with.
func (c *Client) RegisterPort(name string, port handle.Port) (err error) {
	return c.registerRequest(wire.MsgRegisterPort, name, port)
}

// LookUpPort retrieves an endpoint parked with RegisterPort. Uncached:
// the out-of-band path always asks the coordinator.
func (c *Client) LookUpPort(name string) (port handle.Port, err error) {
	return c.portRequest(wire.MsgLookUpPort, name)
}

// Close drops the cache (closing every cached duplicate) and the
// rendezvous port.
func (c *Client) Close() {
	c.mu.Lock()
	c.cache.Clear()
	c.mu.Unlock()
	_ = c.rendezvous.Close()
}

func (c *Client) portRequest(id uint32, name string) (port handle.Port, err error) {
	reply, ports, err := c.roundTrip(id, name, nil)
	if err != nil {
		return
	}
	if !reply.CarriesPorts() {
		handle.CloseAll(ports)
		err = &StatusError{Status: reply.Status}
		return
	}
	if len(ports) != 1 {
		handle.CloseAll(ports)
		err = fmt.Errorf("reply carried %d ports, want 1", len(ports))
		return
	}
	port = ports[0]
	return
}

func (c *Client) registerRequest(id uint32, name string, port handle.Port) (err error) {
	reply, ports, err := c.roundTrip(id, name, []handle.Port{port})
	if err != nil {
		return
	}
	handle.CloseAll(ports)
	if reply.CarriesPorts() {
		err = fmt.Errorf("unexpected port reply to register")
		return
	}
	if reply.Status != wire.StatusOK {
		err = &StatusError{Status: reply.Status}
	}
	return
}

// roundTrip sends one request with a one-shot reply port attached and
// waits, with the client's own timeout, for the correlated reply.
func (c *Client) roundTrip(id uint32, name string, extra []handle.Port) (reply wire.Reply, ports []handle.Port, err error) {
	body, err := wire.EncodeRequest(id, name, true)
	if err != nil {
		return
	}

	replyRecv, replySend, err := handle.NewPair()
	if err != nil {
		return
	}
	defer replyRecv.Close()

	err = handle.SendMsg(c.rendezvous, body, append([]handle.Port{replySend}, extra...))
	_ = replySend.Close()
	if err != nil {
		return
	}

	buf := make([]byte, 256)
	n, ports, err := handle.RecvMsg(replyRecv, buf, 1, c.timeout)
	if err != nil {
		return
	}
	reply, err = wire.DecodeReply(buf[:n])
	if err != nil {
		handle.CloseAll(ports)
		ports = nil
		return
	}
	if reply.ID != id+wire.ReplyOffset {
		handle.CloseAll(ports)
		ports = nil
		err = fmt.Errorf("reply id %d does not match request id %d", reply.ID, id)
	}
	return
}
