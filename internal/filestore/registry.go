// SPDX-License-Identifier: Apache-2.0

package filestore

import "sync"

// Registry is the explicit index of live stores, owned by the application
// context and passed by handle to code that needs cross-store lookup (for
// example "find this fileId across all volumes"). There is no global
// instance.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Add registers a store under its collection id, replacing any previous
// registration.
func (r *Registry) Add(s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.db.ID] = s
}

// Remove unregisters the store for collectionID. The store itself is not
// disposed.
func (r *Registry) Remove(collectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, collectionID)
}

// Get returns the store for collectionID.
func (r *Registry) Get(collectionID string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[collectionID]
	return s, ok
}

// Stores returns a snapshot of every registered store.
func (r *Registry) Stores() []*Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	return out
}

// FindByID looks a file up across every registered store.
func (r *Registry) FindByID(fileID string) (*File, *Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.stores {
		if f, ok := s.GetByID(fileID); ok {
			return f, s, true
		}
	}
	return nil, nil, false
}
