// SPDX-License-Identifier: Apache-2.0

package keg

import (
	"context"
	"sync"

	"github.com/MKhiriev/kegsync/internal/digest"
	"github.com/MKhiriev/kegsync/internal/retry"
	"github.com/MKhiriev/kegsync/models"
)

// SyncedKeg specializes Keg for "exactly one keg of this type per
// collection" data, such as account metadata or chat group lists. Init
// provides create-or-load-once semantics, and the keg reloads itself when
// the digest tracker reports newer server data for its (collection, type).
type SyncedKeg struct {
	Keg

	runner  *retry.Runner
	tracker *digest.Tracker

	mu          sync.Mutex
	loaded      bool
	unsubscribe func()
}

// NewSyncedKeg constructs the singleton keg handle. tracker may be nil for
// kegs that are only read once and never follow server updates.
func NewSyncedKeg(db *KegDb, kegType string, plaintext bool, carrier PayloadCarrier, runner *retry.Runner, tracker *digest.Tracker) *SyncedKeg {
	s := &SyncedKeg{
		Keg:     *NewKeg(db, kegType, plaintext, carrier),
		runner:  runner,
		tracker: tracker,
	}
	return s
}

// Init loads the collection's singleton keg of this type, creating it empty
// if the server has none yet. Concurrent Init calls for the same keg
// collapse into a single in-flight operation. After the first successful
// Init the keg is subscribed to digest notifications; later calls are
// no-ops.
func (s *SyncedKeg) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	opID := "synced-init:" + s.DB.ID + ":" + s.Type
	err := s.runner.Do(ctx, opID, func(ctx context.Context) error {
		return s.createOrLoad(ctx)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.loaded = true
		s.subscribeLocked()
	}
	return nil
}

func (s *SyncedKeg) createOrLoad(ctx context.Context) error {
	records, err := s.DB.transport.ListKegs(ctx, s.DB.ID, models.KegListOptions{
		Type:  s.Type,
		Limit: 1,
	})
	if err != nil {
		return err
	}

	if len(records) > 0 {
		return s.HydrateFromRecord(records[0])
	}

	// Nothing server-side yet: allocate and write the empty singleton.
	return s.Save(ctx)
}

// subscribeLocked wires the digest reaction. Handlers must not block, so
// the reload runs on its own goroutine, deduplicated by the retry runner.
func (s *SyncedKeg) subscribeLocked() {
	if s.tracker == nil {
		return
	}

	s.unsubscribe = s.tracker.Subscribe(s.DB.ID, s.Type, func(d models.Digest) {
		if models.CompareUpdateIDs(d.MaxUpdateID, s.CollectionVersion) <= 0 {
			return
		}
		go s.refresh(context.Background())
	})
}

func (s *SyncedKeg) refresh(ctx context.Context) {
	opID := "synced-reload:" + s.DB.ID + ":" + s.Type
	err := s.runner.Do(ctx, opID, func(ctx context.Context) error {
		return s.Load(ctx)
	})
	if err != nil {
		s.DB.logger.Warn().Err(err).
			Str("collection", s.DB.ID).
			Str("type", s.Type).
			Msg("synced keg reload failed")
		return
	}

	if s.tracker != nil {
		s.tracker.SeenThis(s.DB.ID, s.Type, s.CollectionVersion)
	}
}

// Dispose stops future digest reactions. In-flight reloads are not
// aborted.
func (s *SyncedKeg) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}
