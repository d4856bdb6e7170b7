// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MKhiriev/kegsync/internal/kv"
	"github.com/MKhiriev/kegsync/internal/transport"
	"github.com/MKhiriev/kegsync/models"
)

// descriptorKeyInfo is the HKDF info string binding derived keys to their
// purpose. Changing it would orphan every descriptor written so far.
const descriptorKeyInfo = "file descriptor v1"

func descVersionKey(storeID string) string {
	return "descver:" + storeID
}

// maybeMigrate evaluates the format transition rules for one file. Owners
// of legacy files drive the migration; everyone else follows passively
// once the owner's descriptor is visible. All migration work for the store
// is serialized through a dedicated single-concurrency queue so bulk
// migrations never starve uploads.
func (s *Store) maybeMigrate(f *File) {
	s.mu.Lock()
	if f.Format != models.FileFormatLegacy || f.migrating {
		s.mu.Unlock()
		return
	}
	f.migrating = true
	// the queued task works on a snapshot; concurrent hydration of the
	// live file cannot race with the migration's reads and saves
	snap := f.snapshotLocked()
	owned := f.Owner == s.opts.Identity
	s.mu.Unlock()

	if owned {
		s.migrations.Submit(func(ctx context.Context) error {
			return s.migrateOwned(ctx, f, snap)
		})
		return
	}
	s.migrations.Submit(func(ctx context.Context) error {
		return s.followMigration(ctx, f, snap)
	})
}

// migrateOwned moves an owned legacy file to the latest format: derive the
// descriptor key from the blob key, create the separated descriptor unless
// one already exists, and re-save the keg. All server work runs against the
// snapshot; the live file adopts the outcome only once the migration
// succeeds. A version conflict on either write means another of the owner's
// clients got there first and counts as success. Any other failure is
// retried within a bounded budget; once the budget is exhausted the live
// file stays in the legacy format and remains usable.
func (s *Store) migrateOwned(ctx context.Context, f, snap *File) error {
	defer func() {
		s.mu.Lock()
		f.migrating = false
		s.mu.Unlock()
	}()

	descKey, err := s.cipher.DeriveKey(snap.BlobKey, snap.FileID, descriptorKeyInfo)
	if err != nil {
		return fmt.Errorf("derive descriptor key for %s: %w", snap.FileID, err)
	}

	snap.Format = models.FileFormatLatest
	snap.DescriptorKey = descKey

	opID := "migrate:" + s.db.ID + ":" + snap.FileID
	err = s.runner.DoBounded(ctx, opID, s.opts.MigrationRetries, func(ctx context.Context) error {
		if err := s.createDescriptorIfAbsent(ctx, snap, descKey); err != nil {
			return err
		}

		if err := snap.Save(ctx); err != nil {
			if errors.Is(err, transport.ErrVersionConflict) {
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("collection", s.db.ID).
			Str("fileId", snap.FileID).
			Msg("unrecoverable migration failure, file stays in legacy format")
		return err
	}

	s.adoptMigrated(f, snap)

	s.logger.Info().
		Str("collection", s.db.ID).
		Str("fileId", snap.FileID).
		Msg("file migrated to latest format")
	return nil
}

// adoptMigrated copies a finished migration's outcome onto the live file.
// Keg meta advances only if no newer record hydrated the live file while
// the migration ran; a newer record already reflects the server's state.
func (s *Store) adoptMigrated(f, snap *File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.Format = models.FileFormatLatest
	if snap.DescriptorKey != nil {
		f.DescriptorKey = snap.DescriptorKey
	}
	if f.Version < snap.Version {
		f.Version = snap.Version
		f.CollectionVersion = snap.CollectionVersion
	}
}

// createDescriptorIfAbsent writes the descriptor side-object unless another
// of the owner's clients already has. A conflict on the write is benign.
func (s *Store) createDescriptorIfAbsent(ctx context.Context, f *File, descKey []byte) error {
	_, err := s.transport.FetchDescriptor(ctx, f.FileID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, transport.ErrNotFound) {
		return err
	}

	raw, err := json.Marshal(models.DescriptorPayload{
		FileID:     f.FileID,
		Name:       f.Name,
		UploadedAt: f.UploadedAt,
	})
	if err != nil {
		return err
	}

	blob, err := s.cipher.Encrypt(raw, descKey)
	if err != nil {
		return err
	}

	err = s.transport.SaveDescriptor(ctx, models.FileDescriptor{FileID: f.FileID, Blob: blob})
	if err != nil && !errors.Is(err, transport.ErrVersionConflict) {
		return err
	}
	return nil
}

// followMigration adopts the latest format on a file someone else owns,
// once the owner's descriptor is visible. No keys are re-derived; the
// descriptor key is deterministic from the blob key whenever it is needed.
// Like migrateOwned, server work runs against the snapshot and the live
// file is only touched once the adoption succeeded.
func (s *Store) followMigration(ctx context.Context, f, snap *File) error {
	defer func() {
		s.mu.Lock()
		f.migrating = false
		s.mu.Unlock()
	}()

	_, err := s.transport.FetchDescriptor(ctx, snap.FileID)
	if errors.Is(err, transport.ErrNotFound) {
		// owner has not migrated yet, try again on the next notification
		return nil
	}
	if err != nil {
		return err
	}

	snap.Format = models.FileFormatLatest
	if err := snap.Save(ctx); err != nil && !errors.Is(err, transport.ErrVersionConflict) {
		return err
	}

	s.adoptMigrated(f, snap)
	return nil
}

// ApplyDescriptor applies a descriptor notification to the matching file
// and persists the applied version so a restart does not replay it.
// Versions at or below the persisted watermark are ignored.
func (s *Store) ApplyDescriptor(ctx context.Context, d models.FileDescriptor) error {
	s.mu.RLock()
	known := s.knownDescVersion
	s.mu.RUnlock()

	if models.CompareUpdateIDs(d.Version, known) <= 0 {
		return nil
	}

	f, ok := s.GetByID(d.FileID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFile, d.FileID)
	}

	s.mu.RLock()
	descKey := f.DescriptorKey
	blobKey := f.BlobKey
	s.mu.RUnlock()

	if descKey == nil {
		var err error
		descKey, err = s.cipher.DeriveKey(blobKey, d.FileID, descriptorKeyInfo)
		if err != nil {
			return fmt.Errorf("derive descriptor key for %s: %w", d.FileID, err)
		}
	}

	raw, err := s.cipher.Decrypt(d.Blob, descKey)
	if err != nil {
		return fmt.Errorf("decrypt descriptor for %s: %w", d.FileID, err)
	}

	var payload models.DescriptorPayload
	if err = json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode descriptor for %s: %w", d.FileID, err)
	}

	s.mu.Lock()
	f.DescriptorKey = descKey
	if payload.Name != "" {
		f.Name = payload.Name
	}
	if payload.UploadedAt != 0 {
		f.UploadedAt = payload.UploadedAt
	}
	s.knownDescVersion = d.Version
	s.mu.Unlock()

	if err = s.kvs.Put(ctx, descVersionKey(s.db.ID), d.Version); err != nil {
		return fmt.Errorf("persist descriptor version: %w", err)
	}
	return nil
}

func (s *Store) restoreKnownDescVersion(ctx context.Context) {
	value, err := s.kvs.Get(ctx, descVersionKey(s.db.ID))
	if errors.Is(err, kv.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("collection", s.db.ID).
			Msg("could not restore descriptor version watermark")
		return
	}

	s.mu.Lock()
	s.knownDescVersion = value
	s.mu.Unlock()
}
