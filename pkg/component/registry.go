package component

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Registry tracks live instances by component id and keeps each one's last
// successfully rendered markup, the baseline the differ works against. The
// snapshot is replaced only after a successful render; failed renders
// leave it untouched.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*entry
	byShort map[string]string

	added   atomic.Int64
	removed atomic.Int64

	logger *slog.Logger
}

type entry struct {
	inst     *Instance
	snapshot string
}

// NewRegistry returns an empty registry. A nil logger uses slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byID:    make(map[string]*entry),
		byShort: make(map[string]string),
		logger:  logger.With("component", "registry"),
	}
}

// Add registers an instance. Ids are unique; re-adding an id is an error.
func (r *Registry) Add(in *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[in.ID()]; ok {
		return fmt.Errorf("component: duplicate id %s", in.ID())
	}
	r.byID[in.ID()] = &entry{inst: in}
	r.byShort[in.ShortID()] = in.ID()
	r.added.Add(1)
	return nil
}

// Get returns the instance for a full component id.
func (r *Registry) Get(id string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.inst, nil
}

// GetByShort resolves the 8-character wire id to an instance.
func (r *Registry) GetByShort(short string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byShort[short]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id].inst, nil
}

// Remove drops an instance and its snapshot. It does not unmount.
func (r *Registry) Remove(id string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	delete(r.byShort, e.inst.ShortID())
	r.removed.Add(1)
	return e.inst, true
}

// Snapshot returns the last successfully rendered markup for id.
func (r *Registry) Snapshot(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok || e.snapshot == "" {
		return "", false
	}
	return e.snapshot, true
}

// SetSnapshot replaces the render baseline. Called only after a render
// succeeded.
func (r *Registry) SetSnapshot(id, html string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		e.snapshot = html
	}
}

// Count returns the number of live instances.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Each calls fn for every live instance. The registry lock is not held
// during the calls.
func (r *Registry) Each(fn func(*Instance)) {
	r.mu.RLock()
	instances := make([]*Instance, 0, len(r.byID))
	for _, e := range r.byID {
		instances = append(instances, e.inst)
	}
	r.mu.RUnlock()
	for _, in := range instances {
		fn(in)
	}
}

// RegistryStats is a point-in-time view for observability.
type RegistryStats struct {
	Live         int
	TotalAdded   int64
	TotalRemoved int64
}

// Stats returns registry counters.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	live := len(r.byID)
	r.mu.RUnlock()
	return RegistryStats{
		Live:         live,
		TotalAdded:   r.added.Load(),
		TotalRemoved: r.removed.Load(),
	}
}
