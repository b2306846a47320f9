package daemon

import (
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/op/go-logging"
)

type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

func (r Role) String() string {
	if r == RolePrimary {
		return "primary"
	}
	return "secondary"
}

// Child records one launched process. ExitStatus is valid once Exited
// reports true.
type Child struct {
	Pid  int
	Role Role
	Path string

	cmd      *exec.Cmd
	exited   int32
	exitCode int
}

func (c *Child) Exited() bool {
	return atomic.LoadInt32(&c.exited) != 0
}

func (c *Child) ExitStatus() int {
	return c.exitCode
}

// Supervisor turns asynchronous child-exit and termination-signal
// events into flags. Nothing here touches the registry or the
// rendezvous channel: the flags are observed, and acted upon, by the
// dispatch loop between receives.
type Supervisor struct {
	log *logging.Logger

	stopRequested int32
	primaryExited int32

	mu       sync.Mutex
	children []*Child
	primary  *Child
}

func NewSupervisor(log *logging.Logger) *Supervisor {
	s := &Supervisor{log: log}
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
	go func() {
		for range stopSignal {
			atomic.StoreInt32(&s.stopRequested, 1)
		}
	}()
	return s
}

func (s *Supervisor) StopRequested() bool {
	return atomic.LoadInt32(&s.stopRequested) != 0
}

func (s *Supervisor) RequestStop() {
	atomic.StoreInt32(&s.stopRequested, 1)
}

func (s *Supervisor) PrimaryExited() bool {
	return atomic.LoadInt32(&s.primaryExited) != 0
}

// Watch reaps the child in the background and finalizes its record.
// The primary's termination additionally requests shutdown; a
// secondary's termination is logged and otherwise ignored.
func (s *Supervisor) Watch(c *Child) {
	s.mu.Lock()
	s.children = append(s.children, c)
	if c.Role == RolePrimary {
		s.primary = c
	}
	s.mu.Unlock()

	go func() {
		err := c.cmd.Wait()
		c.exitCode = c.cmd.ProcessState.ExitCode()
		atomic.StoreInt32(&c.exited, 1)
		if c.Role == RolePrimary {
			s.log.Notice("primary process ", c.Pid, " exited with status ", c.exitCode)
			atomic.StoreInt32(&s.primaryExited, 1)
		} else {
			s.log.Notice("secondary process ", c.Pid, " exited with status ", c.exitCode)
		}
		if err != nil {
			if _, isExit := err.(*exec.ExitError); !isExit {
				s.log.Error("wait for pid ", c.Pid, ": ", err.Error())
			}
		}
	}()
}

func (s *Supervisor) Primary() *Child {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

// TerminatePrimary signals the primary if it is still alive and waits
// briefly for the reaper to finalize it.
func (s *Supervisor) TerminatePrimary() {
	p := s.Primary()
	if p == nil || p.Exited() {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	deadline := time.Now().Add(2 * time.Second)
	for !p.Exited() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !p.Exited() {
		_ = p.cmd.Process.Kill()
	}
}
