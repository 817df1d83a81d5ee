package stream

import "sync"

// Registry holds the sinks for a single supervision run.
//
// A Registry is created by the caller and passed to the job, so sinks never
// leak from one run into the next. Sinks are registered before the run starts
// and are never removed.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

type registration struct {
	sink  Sink
	kinds map[Kind]bool // nil = all kinds
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a sink. If kinds is empty the sink receives lines of every
// kind; otherwise only lines whose kind is listed. Every registered sink gets
// the close notification regardless of its kind filter.
func (r *Registry) Register(sink Sink, kinds ...Kind) {
	if sink == nil {
		return
	}
	reg := registration{sink: sink}
	if len(kinds) > 0 {
		reg.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			reg.kinds[k] = true
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, reg)
	r.mu.Unlock()
}

// Len returns the number of registered sinks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// snapshot returns the current registrations.
func (r *Registry) snapshot() []registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registration, len(r.entries))
	copy(out, r.entries)
	return out
}

func (reg registration) accepts(k Kind) bool {
	return reg.kinds == nil || reg.kinds[k]
}
