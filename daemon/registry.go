package daemon

import (
	"github.com/portreeve/bootstrapd/common/handle"
	"github.com/portreeve/bootstrapd/common/wire"
)

// MaxServices bounds the registry. Exceeding it is answered to the
// caller, never fatal to the coordinator.
const MaxServices = 64

type entry struct {
	name   string
	port   handle.Port
	active bool
}

// Registry maps service names to endpoint ports. There is no delete or
// update: entries live for the coordinator's whole lifetime, so a name
// bound once stays bound even after its registering process exits. Only
// the dispatch loop touches the registry, so no locking is needed.
type Registry struct {
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry, MaxServices)}
}

// Create binds name to port. The registry takes ownership of port on
// success and does not touch it on failure.
func (r *Registry) Create(name string, port handle.Port) wire.Status {
	if _, exists := r.entries[name]; exists {
		return wire.ErrNameInUse
	}
	if len(r.entries) >= MaxServices {
		return wire.ErrNoMemory
	}
	r.entries[name] = &entry{name: name, port: port, active: true}
	return wire.StatusOK
}

// Lookup is a pure read; the caller must duplicate the returned port
// before handing it out.
func (r *Registry) Lookup(name string) (port handle.Port, found bool) {
	e, found := r.entries[name]
	if !found || !e.active {
		found = false
		return
	}
	port = e.port
	return
}

func (r *Registry) Has(name string) bool {
	_, found := r.Lookup(name)
	return found
}

func (r *Registry) Len() int {
	return len(r.entries)
}
