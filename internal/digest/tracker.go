// SPDX-License-Identifier: Apache-2.0

// Package digest keeps the process-wide bookkeeping of server update
// watermarks: for every (collection, keg type) pair it tracks the highest
// update id the server has reported and the highest the local stores have
// fully applied, and fans server notifications out to subscribed stores.
// There is no crypto here; this is pure bookkeeping plus notification.
package digest

import (
	"sync"

	"github.com/MKhiriev/kegsync/internal/logger"
	"github.com/MKhiriev/kegsync/models"
)

type pairKey struct {
	collectionID string
	kegType      string
}

// Handler receives the current digest of a pair after it has changed.
// Handlers run on the tracker's calling goroutine and must not block.
type Handler func(models.Digest)

// Tracker is the synchronization primitive every aggregate store depends
// on. Safe for concurrent use.
type Tracker struct {
	logger *logger.Logger

	mu      sync.RWMutex
	digests map[pairKey]models.Digest
	subs    map[pairKey]map[int]Handler
	nextSub int
}

// NewTracker constructs an empty Tracker.
func NewTracker(log *logger.Logger) *Tracker {
	return &Tracker{
		logger:  log,
		digests: make(map[pairKey]models.Digest),
		subs:    make(map[pairKey]map[int]Handler),
	}
}

// GetDigest returns the current digest for the pair. An unknown pair yields
// a zero-watermark digest, which reads as "caught up with nothing".
func (t *Tracker) GetDigest(collectionID, kegType string) models.Digest {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if d, ok := t.digests[pairKey{collectionID, kegType}]; ok {
		return d
	}
	return models.Digest{CollectionID: collectionID, KegType: kegType}
}

// SeenThis advances the pair's applied watermark to updateID. Monotonic:
// an updateID at or below the current watermark is ignored. The reported
// maximum is raised too if updateID exceeds it, so KnownUpdateID never
// overtakes MaxUpdateID.
func (t *Tracker) SeenThis(collectionID, kegType, updateID string) {
	key := pairKey{collectionID, kegType}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.digests[key]
	if !ok {
		d = models.Digest{CollectionID: collectionID, KegType: kegType}
	}
	if models.CompareUpdateIDs(updateID, d.KnownUpdateID) <= 0 {
		return
	}

	d.KnownUpdateID = updateID
	d.MaxUpdateID = models.MaxUpdateID(d.MaxUpdateID, updateID)
	t.digests[key] = d
}

// ProcessDigestEvent records a server-reported maximum for the pair and
// notifies subscribers when it advanced. Used both for digests of known
// collections and to register a brand-new collection appearing server-side.
func (t *Tracker) ProcessDigestEvent(d models.Digest) {
	key := pairKey{d.CollectionID, d.KegType}

	t.mu.Lock()
	cur, ok := t.digests[key]
	if !ok {
		cur = models.Digest{CollectionID: d.CollectionID, KegType: d.KegType}
	}

	advanced := models.CompareUpdateIDs(d.MaxUpdateID, cur.MaxUpdateID) > 0
	if advanced {
		cur.MaxUpdateID = d.MaxUpdateID
		t.digests[key] = cur
	} else if !ok {
		t.digests[key] = cur
	}

	var handlers []Handler
	if advanced {
		for _, h := range t.subs[key] {
			handlers = append(handlers, h)
		}
	}
	t.mu.Unlock()

	if !advanced {
		return
	}

	t.logger.Debug().
		Str("collection", d.CollectionID).
		Str("type", d.KegType).
		Str("max", cur.MaxUpdateID).
		Msg("digest advanced")

	for _, h := range handlers {
		h(cur)
	}
}

// RegisterCollection seeds zero-watermark digests for a collection's keg
// types so stores can subscribe before the server reports anything.
func (t *Tracker) RegisterCollection(collectionID string, kegTypes ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, kegType := range kegTypes {
		key := pairKey{collectionID, kegType}
		if _, ok := t.digests[key]; !ok {
			t.digests[key] = models.Digest{CollectionID: collectionID, KegType: kegType}
		}
	}
}

// Subscribe registers handler for digest advances of the pair and returns
// an unsubscribe function. Any number of stores may subscribe to one pair.
func (t *Tracker) Subscribe(collectionID, kegType string, handler Handler) (unsubscribe func()) {
	key := pairKey{collectionID, kegType}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.subs[key] == nil {
		t.subs[key] = make(map[int]Handler)
	}
	id := t.nextSub
	t.nextSub++
	t.subs[key][id] = handler

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs[key], id)
	}
}
