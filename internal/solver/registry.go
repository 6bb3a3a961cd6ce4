package solver

import (
	"os"
	"sync"

	"fieldrun/internal/logbook"
)

// Registry tracks every live solver process the worker has spawned so an
// abnormal worker termination can sweep orphaned children. It is created at
// worker start, passed by reference, and drained through an exit hook; tests
// inject their own isolated instance.
type Registry struct {
	mu    sync.Mutex
	procs map[int]*os.Process
	log   *logbook.Logbook
}

// NewRegistry constructs an empty registry.
func NewRegistry(log *logbook.Logbook) *Registry {
	return &Registry{procs: map[int]*os.Process{}, log: log}
}

// Register records a live process.
func (r *Registry) Register(p *os.Process) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[p.Pid] = p
}

// Unregister forgets a process that has been confirmed reaped.
func (r *Registry) Unregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, pid)
}

// Len reports how many processes are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Sweep force-kills every registered process group and empties the registry.
// Called from the worker's exit hook; also the last resort after a panic.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	procs := make([]*os.Process, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	r.procs = map[int]*os.Process{}
	r.mu.Unlock()
	for _, p := range procs {
		killHard(p)
		r.log.Warnf("registry: swept orphaned solver pid %d", p.Pid)
	}
	return len(procs)
}
