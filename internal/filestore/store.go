// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MKhiriev/kegsync/internal/crypto"
	"github.com/MKhiriev/kegsync/internal/digest"
	"github.com/MKhiriev/kegsync/internal/keg"
	"github.com/MKhiriev/kegsync/internal/kv"
	"github.com/MKhiriev/kegsync/internal/logger"
	"github.com/MKhiriev/kegsync/internal/retry"
	"github.com/MKhiriev/kegsync/internal/taskqueue"
	"github.com/MKhiriev/kegsync/internal/transport"
	"github.com/MKhiriev/kegsync/models"
)

// State is the store's position in its load cycle. There is no terminal
// failure state: load errors are retried, not fatal.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateUpdating
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUpdating:
		return "updating"
	default:
		return "unknown"
	}
}

// Options tunes a store. Zero fields fall back to the defaults below.
type Options struct {
	// PageSize bounds each page of the initial load.
	PageSize int

	// UpdateDebounce is how long a digest notification is held before an
	// update cycle runs, so bursts collapse into one cycle.
	UpdateDebounce time.Duration

	// SettleTimeout bounds the startup wait for the folder tree singleton.
	SettleTimeout time.Duration

	// MigrationRetries bounds the descriptor migration attempt budget.
	MigrationRetries uint64

	// Identity is the local account identity, compared against keg owners
	// to decide who drives a file's format migration.
	Identity string

	// Clock defaults to the real clock; tests inject a fake.
	Clock clockwork.Clock
}

func (o *Options) applyDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
	if o.UpdateDebounce <= 0 {
		o.UpdateDebounce = 300 * time.Millisecond
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = 15 * time.Second
	}
	if o.MigrationRetries == 0 {
		o.MigrationRetries = 3
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// Store is the digest-synchronized in-memory index of every file keg in
// one collection. All mutation of the file set happens through serialized
// reactions to discrete events: pages of the initial load, update cycles
// triggered by digest notifications, and queued uploads/migrations.
type Store struct {
	db        *keg.KegDb
	transport transport.Transport
	cipher    crypto.Cipher
	tracker   *digest.Tracker
	runner    *retry.Runner
	kvs       *kv.Store
	clock     clockwork.Clock
	logger    *logger.Logger
	opts      Options

	Folders *FolderTree

	uploads    *taskqueue.Queue
	migrations *taskqueue.Queue

	mu       sync.RWMutex
	state    State
	byFileID map[string]*File
	byKegID  map[string]*File

	updating      bool
	paused        bool
	pendingDigest bool
	timer         clockwork.Timer
	unsubscribe   func()

	knownDescVersion string
}

// NewStore constructs an unloaded store over db. Call Load to populate it.
func NewStore(db *keg.KegDb, t transport.Transport, c crypto.Cipher, tracker *digest.Tracker,
	runner *retry.Runner, kvs *kv.Store, opts Options, log *logger.Logger) *Store {
	opts.applyDefaults()

	s := &Store{
		db:         db,
		transport:  t,
		cipher:     c,
		tracker:    tracker,
		runner:     runner,
		kvs:        kvs,
		clock:      opts.Clock,
		logger:     log,
		opts:       opts,
		uploads:    taskqueue.New("uploads:"+db.ID, 1, log),
		migrations: taskqueue.New("migrations:"+db.ID, 1, log),
		byFileID:   make(map[string]*File),
		byKegID:    make(map[string]*File),
	}
	s.Folders = newFolderTree(s, runner, tracker)
	return s
}

// State returns the store's current load-cycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Load performs the initial paged load: waits (bounded) for the folder
// tree to settle, pages through the collection's file kegs ascending by
// keg id, then subscribes to digest notifications and eagerly catches up
// on anything that arrived during loading. Idempotent: a second call on a
// store that left the unloaded state is a no-op.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUnloaded {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading
	s.mu.Unlock()

	s.restoreKnownDescVersion(ctx)
	s.waitForFolders(ctx)

	err := s.runner.Do(ctx, "filestore-load:"+s.db.ID, s.loadAllPages)
	if err != nil {
		s.mu.Lock()
		s.state = StateUnloaded
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = StateLoaded
	s.subscribeLocked()
	s.mu.Unlock()

	// catch up on updates that arrived while pages were loading
	if !s.tracker.GetDigest(s.db.ID, models.KegTypeFile).CaughtUp() {
		go s.runUpdateCycle(context.Background())
	}
	return nil
}

// waitForFolders blocks until the folder tree singleton is initialized or
// the settle timeout elapses, whichever comes first. On timeout the load
// proceeds with whatever settled; stragglers attach on later syncs.
func (s *Store) waitForFolders(ctx context.Context) {
	done := make(chan error, 1)
	go func() { done <- s.Folders.Init(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn().Err(err).
				Str("collection", s.db.ID).
				Msg("folder tree init failed, files will attach to root")
		}
	case <-s.clock.After(s.opts.SettleTimeout):
		s.logger.Warn().
			Str("collection", s.db.ID).
			Msg("folder tree did not settle in time, proceeding")
	case <-ctx.Done():
	}
}

func (s *Store) loadAllPages(ctx context.Context) error {
	var minKegID, maxSeen string

	for {
		records, err := s.transport.ListKegs(ctx, s.db.ID, models.KegListOptions{
			Type:     models.KegTypeFile,
			MinKegID: minKegID,
			Limit:    s.opts.PageSize,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			minKegID = rec.KegID
			maxSeen = models.MaxUpdateID(maxSeen, rec.CollectionVersion)
			s.absorbRecord(rec)
		}
	}

	if maxSeen != "" {
		s.tracker.SeenThis(s.db.ID, models.KegTypeFile, maxSeen)
	}
	return nil
}

// absorbRecord hydrates one raw record into a new File and indexes it.
// Malformed records are logged and skipped; a single bad record never
// aborts its page.
func (s *Store) absorbRecord(rec models.KegRecord) {
	f := NewFile(s.db)
	if err := f.HydrateFromRecord(rec); err != nil {
		s.logger.Warn().Err(err).
			Str("kegId", rec.KegID).
			Msg("skipping record that failed hydration")
		return
	}
	if f.FileID == "" {
		s.logger.Warn().
			Str("kegId", rec.KegID).
			Msg("skipping record with no fileId")
		return
	}

	s.mu.Lock()
	if _, dup := s.byFileID[f.FileID]; dup {
		s.mu.Unlock()
		s.logger.Warn().
			Str("kegId", rec.KegID).
			Str("fileId", f.FileID).
			Msg("skipping record with duplicate fileId")
		return
	}
	s.byFileID[f.FileID] = f
	s.byKegID[f.Keg.ID] = f
	s.mu.Unlock()

	s.Folders.attach(f)
	s.maybeMigrate(f)
}

// runUpdateCycle drains the digest gap for this store's type. A second
// trigger while a cycle is running is a no-op; the running cycle re-checks
// the digest after every fetch and loops until caught up, so nothing is
// lost.
func (s *Store) runUpdateCycle(ctx context.Context) {
	s.mu.Lock()
	if s.updating || s.state != StateLoaded {
		s.mu.Unlock()
		return
	}
	s.updating = true
	s.state = StateUpdating
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.updating = false
		if s.state == StateUpdating {
			s.state = StateLoaded
		}
		s.mu.Unlock()
	}()

	for {
		d := s.tracker.GetDigest(s.db.ID, models.KegTypeFile)
		if d.CaughtUp() {
			return
		}
		if err := s.applyDelta(ctx, d); err != nil {
			s.logger.Warn().Err(err).
				Str("collection", s.db.ID).
				Msg("update cycle aborted")
			return
		}
	}
}

// applyDelta fetches and applies every record above the applied watermark.
// The new watermark is the maximum collection version observed, floored at
// the digest's reported maximum so a fetch that returns nothing (for
// example when everything matching was deleted) still advances it.
func (s *Store) applyDelta(ctx context.Context, d models.Digest) error {
	return s.runner.Do(ctx, "filestore-update:"+s.db.ID, func(ctx context.Context) error {
		records, err := s.transport.ListKegs(ctx, s.db.ID, models.KegListOptions{
			Type:                   models.KegTypeFile,
			CollectionVersionAbove: d.KnownUpdateID,
			IncludeDeleted:         true,
			IncludeHidden:          true,
		})
		if err != nil {
			return err
		}

		maxSeen := d.KnownUpdateID
		for _, rec := range records {
			maxSeen = models.MaxUpdateID(maxSeen, rec.CollectionVersion)

			if rec.Deleted || rec.Hidden {
				s.removeByKegID(rec.KegID)
				continue
			}
			s.applyRecord(rec)
		}

		newKnown := models.MaxUpdateID(maxSeen, d.MaxUpdateID)
		s.tracker.SeenThis(s.db.ID, models.KegTypeFile, newKnown)
		return nil
	})
}

// applyRecord hydrates one delta record into the existing File carrying
// the same fileId (preferred) or keg id, or indexes it as newly seen.
func (s *Store) applyRecord(rec models.KegRecord) {
	fresh := NewFile(s.db)
	if err := fresh.HydrateFromRecord(rec); err != nil {
		s.logger.Warn().Err(err).
			Str("kegId", rec.KegID).
			Msg("skipping update record that failed hydration")
		return
	}
	if fresh.FileID == "" {
		s.logger.Warn().
			Str("kegId", rec.KegID).
			Msg("skipping update record with no fileId")
		return
	}

	s.mu.Lock()
	existing, ok := s.byFileID[fresh.FileID]
	if !ok {
		existing, ok = s.byKegID[rec.KegID]
	}

	if ok {
		// hydrate in place while holding the lock so migration snapshots
		// and readers never observe a half-applied record
		err := existing.HydrateFromRecord(rec)
		fileID := existing.FileID
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn().Err(err).
				Str("kegId", rec.KegID).
				Str("fileId", fileID).
				Msg("update rejected for existing file")
			return
		}
		s.Folders.attach(existing)
		s.maybeMigrate(existing)
		return
	}

	s.byFileID[fresh.FileID] = fresh
	s.byKegID[fresh.Keg.ID] = fresh
	s.mu.Unlock()

	s.Folders.attach(fresh)
	s.maybeMigrate(fresh)
}

// adoptSaved advances the live file's keg meta to a saved snapshot's,
// unless a newer record already hydrated the live file in the meantime.
func (s *Store) adoptSaved(f, snap *File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Version < snap.Version {
		f.Version = snap.Version
		f.CollectionVersion = snap.CollectionVersion
	}
}

func (s *Store) removeByKegID(kegID string) {
	s.mu.Lock()
	f, ok := s.byKegID[kegID]
	if ok {
		delete(s.byKegID, kegID)
		delete(s.byFileID, f.FileID)
	}
	s.mu.Unlock()

	if ok {
		s.Folders.detach(f)
		s.logger.Debug().
			Str("kegId", kegID).
			Str("fileId", f.FileID).
			Msg("file removed from store")
	}
}

// GetByID returns the in-memory file with the given logical id. Never
// fetches from the network.
func (s *Store) GetByID(fileID string) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byFileID[fileID]
	return f, ok
}

// GetByKegID returns the in-memory file with the given keg id.
func (s *Store) GetByKegID(kegID string) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byKegID[kegID]
	return f, ok
}

// Files returns a snapshot of every file currently in the store.
func (s *Store) Files() []*File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*File, 0, len(s.byFileID))
	for _, f := range s.byFileID {
		out = append(out, f)
	}
	return out
}

// FilterByName shows files whose name contains query (case-insensitive)
// and hides the rest, clearing their selection. An empty query matches
// everything.
func (s *Store) FilterByName(query string) {
	q := strings.ToLower(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.byFileID {
		match := strings.Contains(strings.ToLower(f.Name), q)
		f.Show = match
		if !match {
			f.Selected = false
		}
	}
}

// ClearFilter shows every file again. Selections are untouched.
func (s *Store) ClearFilter() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.byFileID {
		f.Show = true
	}
}

// Selected returns the currently selected files.
func (s *Store) Selected() []*File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*File
	for _, f := range s.byFileID {
		if f.Selected {
			out = append(out, f)
		}
	}
	return out
}

// ClearSelection deselects every file.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.byFileID {
		f.Selected = false
	}
}

// Dispose stops future reactions: it unsubscribes from digest
// notifications, stops the debounce timer, closes the task queues, and
// drops the in-memory file set. In-flight requests are not aborted.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.byFileID = make(map[string]*File)
	s.byKegID = make(map[string]*File)
	s.state = StateUnloaded
	s.mu.Unlock()

	s.Folders.Dispose()
	s.migrations.Close()
	s.uploads.Close()
}
