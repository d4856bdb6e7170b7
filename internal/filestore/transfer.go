// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/MKhiriev/kegsync/models"
)

const (
	uploadMarkerPrefix   = "UPLOAD:"
	downloadMarkerPrefix = "DOWNLOAD:"
)

// transferMarker is the persisted record of an in-flight transfer. Upload
// markers carry the source path so an upload interrupted before its keg
// write landed can be re-issued from the original content.
type transferMarker struct {
	FileID       string `json:"fileId"`
	Name         string `json:"name"`
	Path         string `json:"path,omitempty"`
	CollectionID string `json:"collectionId"`
}

// Upload reads the content at path and creates a new latest-format file keg
// for it, pushed through the store's serial upload queue. An UPLOAD marker
// is persisted before the write starts and cleared once it finishes, so an
// interrupted upload is re-issued by ResumeInterrupted on the next start.
func (s *Store) Upload(ctx context.Context, path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read upload source: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("assign file id: %w", err)
	}

	f, err := s.newUploadFile(id.String(), filepath.Base(path), int64(len(content)))
	if err != nil {
		return nil, err
	}

	marker := transferMarker{
		FileID:       f.FileID,
		Name:         f.Name,
		Path:         path,
		CollectionID: s.db.ID,
	}
	if err = s.putMarker(ctx, uploadMarkerPrefix+f.FileID, marker); err != nil {
		return nil, err
	}

	done := s.uploads.Submit(func(ctx context.Context) error {
		return s.finishUpload(ctx, f)
	})
	if err = <-done; err != nil {
		return nil, fmt.Errorf("upload %q: %w", f.Name, err)
	}
	return f, nil
}

// newUploadFile builds an unsaved latest-format file with fresh keys.
func (s *Store) newUploadFile(fileID, name string, size int64) (*File, error) {
	blobKey, err := s.cipher.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate blob key: %w", err)
	}
	descKey, err := s.cipher.DeriveKey(blobKey, fileID, descriptorKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("derive descriptor key: %w", err)
	}

	f := NewFile(s.db)
	f.FileID = fileID
	f.Name = name
	f.Size = size
	f.BlobKey = blobKey
	f.DescriptorKey = descKey
	f.Owner = s.opts.Identity
	f.UploadedAt = s.clock.Now().Unix()
	return f, nil
}

// finishUpload runs on the upload queue. f is either a not-yet-indexed
// file (new or rebuilt upload) or a snapshot of one already in the store
// (resumed re-issue); in the latter case the live file adopts the saved
// keg meta instead of being re-indexed.
func (s *Store) finishUpload(ctx context.Context, f *File) error {
	if err := f.Save(ctx); err != nil {
		return err
	}
	if err := s.createDescriptorIfAbsent(ctx, f, f.DescriptorKey); err != nil {
		return err
	}

	s.mu.Lock()
	if live, ok := s.byFileID[f.FileID]; ok && live != f {
		if live.Version < f.Version {
			live.Version = f.Version
			live.CollectionVersion = f.CollectionVersion
		}
	} else {
		s.byFileID[f.FileID] = f
		s.byKegID[f.Keg.ID] = f
	}
	s.mu.Unlock()
	s.Folders.attach(f)

	s.tracker.SeenThis(s.db.ID, models.KegTypeFile, f.CollectionVersion)

	return s.kvs.Delete(ctx, uploadMarkerPrefix+f.FileID)
}

// Download refreshes a file's keg (and descriptor, for latest-format
// files) from the server. A DOWNLOAD marker brackets the operation the
// same way uploads are bracketed.
func (s *Store) Download(ctx context.Context, fileID string) (*File, error) {
	f, ok := s.GetByID(fileID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
	}

	s.mu.RLock()
	kegID := f.Keg.ID
	name := f.Name
	s.mu.RUnlock()

	marker := transferMarker{FileID: fileID, Name: name, CollectionID: s.db.ID}
	if err := s.putMarker(ctx, downloadMarkerPrefix+fileID, marker); err != nil {
		return nil, err
	}

	rec, err := s.transport.GetKeg(ctx, s.db.ID, kegID)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}

	s.mu.Lock()
	err = f.HydrateFromRecord(rec)
	format := f.Format
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}

	if format == models.FileFormatLatest {
		if d, err := s.transport.FetchDescriptor(ctx, fileID); err == nil {
			if err = s.ApplyDescriptor(ctx, d); err != nil {
				s.logger.Warn().Err(err).
					Str("fileId", fileID).
					Msg("descriptor refresh failed during download")
			}
		}
	}

	if err := s.kvs.Delete(ctx, downloadMarkerPrefix+fileID); err != nil {
		return nil, err
	}
	return f, nil
}

// ResumeInterrupted re-issues transfers whose markers survived a restart.
// An upload marker for a file the store already knows re-runs the finishing
// save; one for an unknown file is rebuilt from the marker's source path.
// Markers that cannot be re-issued either way are cleared with a warning.
func (s *Store) ResumeInterrupted(ctx context.Context) error {
	markers, err := s.kvs.ListPrefix(ctx, uploadMarkerPrefix)
	if err != nil {
		return fmt.Errorf("list upload markers: %w", err)
	}
	for key, value := range markers {
		m, err := decodeMarker(value)
		if err != nil || m.CollectionID != s.db.ID {
			continue
		}

		task, ok := s.snapshotByID(m.FileID)
		if !ok {
			task, err = s.rebuildUpload(m)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("fileId", m.FileID).
					Str("name", m.Name).
					Msg("dropping upload marker that cannot be re-issued")
				if err = s.kvs.Delete(ctx, key); err != nil {
					return err
				}
				continue
			}
		}

		s.uploads.Submit(func(ctx context.Context) error {
			return s.finishUpload(ctx, task)
		})
	}

	markers, err = s.kvs.ListPrefix(ctx, downloadMarkerPrefix)
	if err != nil {
		return fmt.Errorf("list download markers: %w", err)
	}
	for key, value := range markers {
		m, err := decodeMarker(value)
		if err != nil || m.CollectionID != s.db.ID {
			continue
		}

		if _, ok := s.GetByID(m.FileID); !ok {
			if err = s.kvs.Delete(ctx, key); err != nil {
				return err
			}
			continue
		}
		if _, err = s.Download(ctx, m.FileID); err != nil {
			s.logger.Warn().Err(err).
				Str("fileId", m.FileID).
				Msg("resumed download failed")
		}
	}
	return nil
}

func (s *Store) snapshotByID(fileID string) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.byFileID[fileID]
	if !ok {
		return nil, false
	}
	return f.snapshotLocked(), true
}

// rebuildUpload reconstructs an interrupted upload whose keg write never
// landed: the content is re-read from the recorded source path and fresh
// keys are generated under the marker's file id.
func (s *Store) rebuildUpload(m transferMarker) (*File, error) {
	if m.Path == "" {
		return nil, errors.New("marker has no source path")
	}
	content, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, err
	}
	return s.newUploadFile(m.FileID, m.Name, int64(len(content)))
}

func (s *Store) putMarker(ctx context.Context, key string, m transferMarker) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err = s.kvs.Put(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("persist transfer marker: %w", err)
	}
	return nil
}

func decodeMarker(value string) (transferMarker, error) {
	var m transferMarker
	err := json.Unmarshal([]byte(value), &m)
	return m, err
}
