package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/op/go-logging"
	uuid "github.com/satori/go.uuid"

	"github.com/portreeve/bootstrapd/common/config"
	"github.com/portreeve/bootstrapd/common/handle"
)

// The dispatch loop wakes this often to check the supervisor's flags
// between receives.
const defaultReceiveTimeout = 500 * time.Millisecond

const maxRequestPorts = 2

// Server owns the private namespace: the registry, the coordinator end
// of the rendezvous channel, and the per-run state directory. Exactly
// one Server exists per coordinator process.
type Server struct {
	log *logging.Logger
	reg *Registry
	sup *Supervisor

	serverEnd handle.Port
	clientEnd handle.Port

	runDir  string
	pidPath string
	closed  bool

	receiveTimeout time.Duration
	recvBuf        []byte
}

func NewServer(cfg config.Config, log *logging.Logger) (s *Server, err error) {
	serverEnd, clientEnd, err := handle.NewPair()
	if err != nil {
		err = fmt.Errorf("create rendezvous channel: %s", err.Error())
		return
	}

	runDir := filepath.Join(cfg.Paths.StateRoot, "run-"+uuid.NewV4().String())
	err = os.MkdirAll(runDir, os.FileMode(0700))
	if err != nil {
		_ = serverEnd.Close()
		_ = clientEnd.Close()
		err = fmt.Errorf("create namespace state dir: %s", err.Error())
		return
	}

	s = &Server{
		log:            log,
		reg:            NewRegistry(),
		sup:            NewSupervisor(log),
		serverEnd:      serverEnd,
		clientEnd:      clientEnd,
		runDir:         runDir,
		pidPath:        cfg.Paths.PIDFile,
		receiveTimeout: defaultReceiveTimeout,
		recvBuf:        make([]byte, 1024),
	}

	err = s.writePIDFile()
	if err != nil {
		s.Close()
		s = nil
	}
	return
}

// ClientPort exposes the child end of the rendezvous channel; Launch
// duplicates it into every spawned process.
func (s *Server) ClientPort() handle.Port {
	return s.clientEnd
}

func (s *Server) Registry() *Registry {
	return s.reg
}

func (s *Server) Supervisor() *Supervisor {
	return s.sup
}

func (s *Server) RunDir() string {
	return s.runDir
}

// SetReceiveTimeout adjusts how often the dispatch loop wakes to check
// the shutdown flags.
func (s *Server) SetReceiveTimeout(d time.Duration) {
	s.receiveTimeout = d
}

// Run is the dispatch loop: receive one message, route it, reply, until
// shutdown is requested or the primary exits. On exit the primary is
// terminated if still alive.
func (s *Server) Run() (err error) {
	for {
		if s.sup.StopRequested() {
			s.log.Notice("termination requested, shutting down")
			break
		}
		if s.sup.PrimaryExited() {
			s.log.Notice("primary exited, shutting down")
			break
		}
		pumpErr := s.pumpOne(s.receiveTimeout)
		if pumpErr == handle.ErrTimeout {
			continue
		}
		if pumpErr != nil {
			err = pumpErr
			s.log.Error("rendezvous receive: ", pumpErr.Error())
			break
		}
	}
	s.sup.TerminatePrimary()
	return
}

// pumpOne receives and dispatches a single message, with a bounded
// wait. Both Run and the pre-secondary barrier drive the loop through
// here, so requests keep being serviced during the barrier.
func (s *Server) pumpOne(timeout time.Duration) (err error) {
	n, ports, err := handle.RecvMsg(s.serverEnd, s.recvBuf, maxRequestPorts, timeout)
	if err != nil {
		return
	}
	s.dispatchDatagram(s.recvBuf[:n], ports)
	return
}

// AwaitService polls for name to appear in the registry, dispatching
// any requests that arrive meanwhile. It gives up after the configured
// attempt budget and reports whether the name is present.
func (s *Server) AwaitService(name string, barrier config.Barrier) bool {
	for attempt := 0; attempt < barrier.Attempts; attempt++ {
		if s.reg.Has(name) {
			return true
		}
		err := s.pumpOne(barrier.Interval())
		if err != nil && err != handle.ErrTimeout {
			s.log.Error("rendezvous receive: ", err.Error())
			break
		}
	}
	if s.reg.Has(name) {
		return true
	}
	s.log.Warning("dependency ", name, " never appeared, proceeding anyway")
	return false
}

// Close releases the rendezvous channel and removes the pid file. Safe
// after a failed startup as well as after Run returns.
func (s *Server) Close() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.serverEnd.Close()
	_ = s.clientEnd.Close()
	if s.pidPath != "" {
		_ = os.Remove(s.pidPath)
	}
}

func (s *Server) writePIDFile() (err error) {
	if s.pidPath == "" {
		return
	}
	err = os.MkdirAll(filepath.Dir(s.pidPath), os.FileMode(0700))
	if err != nil {
		return
	}
	err = os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), os.FileMode(0600))
	if err != nil {
		err = fmt.Errorf("write pid file: %s", err.Error())
	}
	return
}
