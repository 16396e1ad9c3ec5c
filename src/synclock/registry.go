// backend/src/synclock/registry.go
package synclock

import (
	"sync"

	"github.com/username/centavo/backend/src/models"
)

// Registry tracks which staged records are mid-flight to the remote
// authority and buffers local writes issued while a record is locked. The
// buffered patch is merged over the record for reads, so the UI sees the
// user's pending edit, but it is not committed to the store until the lock
// clears. One registry per local store.
type Registry struct {
	mu       sync.Mutex
	locked   map[string]struct{}
	buffered map[string]models.UpdateStagedRecordInput
}

func NewRegistry() *Registry {
	return &Registry{
		locked:   make(map[string]struct{}),
		buffered: make(map[string]models.UpdateStagedRecordInput),
	}
}

// Lock marks the record as mid-push. Idempotent.
func (r *Registry) Lock(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked[id] = struct{}{}
}

// Locked reports whether local writes to id must be buffered.
func (r *Registry) Locked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.locked[id]
	return ok
}

// Buffer captures a write issued while id is locked. Successive patches
// merge field by field, later writes winning.
func (r *Registry) Buffer(id string, patch models.UpdateStagedRecordInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.buffered[id]; ok {
		patch = models.MergeUpdates(existing, patch)
	}
	r.buffered[id] = patch
}

// Buffered returns the pending patch for id, if any, without removing it.
func (r *Registry) Buffered(id string) (models.UpdateStagedRecordInput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	patch, ok := r.buffered[id]
	return patch, ok
}

// Release clears the lock and pops the buffered patch so the caller can
// commit it now that the in-flight push has landed.
func (r *Registry) Release(id string) (models.UpdateStagedRecordInput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locked, id)
	patch, ok := r.buffered[id]
	delete(r.buffered, id)
	return patch, ok
}
