// SPDX-License-Identifier: Apache-2.0

// Package filestore implements the aggregate object store: the in-memory,
// digest-synchronized index of all file kegs within one collection, the
// folder hierarchy kept alongside it, and the engine that migrates files
// from the legacy combined format to the split-descriptor format.
package filestore

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/MKhiriev/kegsync/internal/keg"
	"github.com/MKhiriev/kegsync/models"
)

// File is one aggregate store entry: a file keg plus the derived state the
// store manages. FileID is the stable logical identity, distinct from the
// keg id and assigned on first save. Selected and Show are presentation
// state and never persisted.
type File struct {
	keg.Keg

	FileID   string
	Name     string
	Size     int64
	Format   int
	FolderID string

	// BlobKey seals the file content; DescriptorKey is derived from it
	// for latest-format files and seals the descriptor side-object.
	BlobKey       []byte
	DescriptorKey []byte

	UploadedAt int64

	Selected bool
	Show     bool

	migrating bool
}

// NewFile constructs an unsaved file keg handle inside db. New files start
// in the latest format; legacy files only ever arrive via hydration.
func NewFile(db *keg.KegDb) *File {
	f := &File{
		Format:   models.FileFormatLatest,
		FolderID: RootFolderID,
		Show:     true,
	}
	f.Keg = *keg.NewKeg(db, models.KegTypeFile, false, f)
	return f
}

// snapshotLocked returns an independent copy for work off the store lock.
// The copy carries its own keg handle and props map; saving or hydrating it
// never touches the original. Callers hold the store lock.
func (f *File) snapshotLocked() *File {
	c := &File{
		FileID:        f.FileID,
		Name:          f.Name,
		Size:          f.Size,
		Format:        f.Format,
		FolderID:      f.FolderID,
		BlobKey:       f.BlobKey,
		DescriptorKey: f.DescriptorKey,
		UploadedAt:    f.UploadedAt,
	}
	c.Keg = *keg.NewKeg(f.DB, models.KegTypeFile, false, c)
	c.Keg.ID = f.Keg.ID
	c.Keg.Version = f.Keg.Version
	c.Keg.CollectionVersion = f.Keg.CollectionVersion
	c.Keg.Owner = f.Keg.Owner
	for k, v := range f.Keg.Props {
		c.Keg.Props[k] = v
	}
	return c
}

// SerializeKegPayload implements [keg.PayloadCarrier]. The folder id is
// mirrored into the unencrypted props so the server can filter by folder
// without decrypting anything.
func (f *File) SerializeKegPayload() (map[string]any, error) {
	if f.FileID == "" {
		return nil, errors.New("file has no fileId")
	}

	f.Props["folderId"] = f.FolderID

	fields := map[string]any{
		"fileId":   f.FileID,
		"name":     f.Name,
		"size":     f.Size,
		"format":   f.Format,
		"folderId": f.FolderID,
		"blobKey":  base64.StdEncoding.EncodeToString(f.BlobKey),
	}
	if f.UploadedAt != 0 {
		fields["uploadedAt"] = f.UploadedAt
	}
	if f.DescriptorKey != nil {
		fields["descriptorKey"] = base64.StdEncoding.EncodeToString(f.DescriptorKey)
	}
	return fields, nil
}

// DeserializeKegPayload implements [keg.PayloadCarrier].
func (f *File) DeserializeKegPayload(fields map[string]json.RawMessage) error {
	var (
		blobKey       string
		descriptorKey string
	)

	scalars := map[string]any{
		"fileId":        &f.FileID,
		"name":          &f.Name,
		"size":          &f.Size,
		"format":        &f.Format,
		"folderId":      &f.FolderID,
		"uploadedAt":    &f.UploadedAt,
		"blobKey":       &blobKey,
		"descriptorKey": &descriptorKey,
	}
	for key, dst := range scalars {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return err
		}
	}

	if blobKey != "" {
		decoded, err := base64.StdEncoding.DecodeString(blobKey)
		if err != nil {
			return err
		}
		f.BlobKey = decoded
	}
	if descriptorKey != "" {
		decoded, err := base64.StdEncoding.DecodeString(descriptorKey)
		if err != nil {
			return err
		}
		f.DescriptorKey = decoded
	}

	if f.FolderID == "" {
		f.FolderID = RootFolderID
	}
	return nil
}
