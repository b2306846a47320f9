package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/portreeve/bootstrapd/common/contract"
)

type LaunchSpec struct {
	Path string
	Args []string
	Env  []string
	Role Role
}

// Launch starts a child with a duplicate of the rendezvous port
// pre-installed as its initial handle. This is the only mechanism by
// which the namespace propagates; there is no discovery step.
func (s *Server) Launch(spec LaunchSpec) (child *Child, err error) {
	exe, err := ResolveBundleExecutable(spec.Path)
	if err != nil {
		return
	}

	stateDir := filepath.Join(s.runDir, filepath.Base(exe))
	err = os.MkdirAll(stateDir, os.FileMode(0700))
	if err != nil {
		return
	}

	rendezvous, err := s.clientEnd.Dup()
	if err != nil {
		return
	}
	rendezvousFile := rendezvous.File("bootstrap-rendezvous")
	defer rendezvousFile.Close()

	cmd := exec.Command(exe, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("%s=%d", contract.SocketFDEnv, contract.ChildSocketFD),
		fmt.Sprintf("%s=%s", contract.NamespaceRootEnv, s.runDir),
		fmt.Sprintf("%s=%s", contract.StateDirEnv, stateDir),
	)
	cmd.ExtraFiles = []*os.File{rendezvousFile}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	if err != nil {
		err = fmt.Errorf("launch %s: %s", exe, err.Error())
		return
	}

	child = &Child{
		Pid:  cmd.Process.Pid,
		Role: spec.Role,
		Path: exe,
		cmd:  cmd,
	}
	s.log.Notice("launched ", spec.Role.String(), " ", exe, " pid ", child.Pid)
	s.sup.Watch(child)
	return
}
