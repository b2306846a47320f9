// Package contract fixes the interface every launched process is
// handed: the descriptor number of its pre-installed rendezvous port
// and the environment variables describing its private namespace.
package contract

const (
	SocketFDEnv      = "BOOTSTRAP_SOCKET_FD"
	NamespaceRootEnv = "BOOTSTRAP_NAMESPACE_ROOT"
	StateDirEnv      = "BOOTSTRAP_STATE_DIR"

	// ChildSocketFD is where the rendezvous port lands in a launched
	// child: the first descriptor after stdio.
	ChildSocketFD = 3
)
