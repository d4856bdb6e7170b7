package keg

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MKhiriev/kegsync/internal/transport"
	"github.com/MKhiriev/kegsync/models"
)

// fakeTransport is a hand-rolled in-memory keg server. Function fields
// override individual operations per test; unset fields use the built-in
// behaviour (avoids mockgen where a stateful stub reads better).
type fakeTransport struct {
	nextID      int
	nextVersion int
	records     map[string]models.KegRecord // by kegID
	descriptors map[string]models.FileDescriptor
	events      chan transport.Event

	createFn func(ctx context.Context, collectionID, kegType string) (models.KegAllocation, error)
	updateFn func(ctx context.Context, req models.UpdateKegRequest) (models.UpdateKegResult, error)
	getFn    func(ctx context.Context, collectionID, kegID string) (models.KegRecord, error)
	listFn   func(ctx context.Context, collectionID string, opts models.KegListOptions) ([]models.KegRecord, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		records:     make(map[string]models.KegRecord),
		descriptors: make(map[string]models.FileDescriptor),
		events:      make(chan transport.Event),
	}
}

func (f *fakeTransport) SetToken(string) {}

func (f *fakeTransport) CreateKeg(ctx context.Context, collectionID, kegType string) (models.KegAllocation, error) {
	if f.createFn != nil {
		return f.createFn(ctx, collectionID, kegType)
	}

	f.nextID++
	f.nextVersion++
	alloc := models.KegAllocation{
		KegID:             "k-" + strconv.Itoa(f.nextID),
		Version:           1,
		CollectionVersion: strconv.Itoa(f.nextVersion),
	}
	f.records[alloc.KegID] = models.KegRecord{
		KegID:             alloc.KegID,
		CollectionID:      collectionID,
		Type:              kegType,
		Version:           1,
		CollectionVersion: alloc.CollectionVersion,
	}
	return alloc, nil
}

func (f *fakeTransport) UpdateKeg(ctx context.Context, req models.UpdateKegRequest) (models.UpdateKegResult, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, req)
	}

	rec, ok := f.records[req.KegID]
	if !ok {
		return models.UpdateKegResult{}, transport.ErrNotFound
	}
	if req.Version != rec.Version+1 {
		return models.UpdateKegResult{}, fmt.Errorf("version %d on top of %d: %w",
			req.Version, rec.Version, transport.ErrVersionConflict)
	}

	f.nextVersion++
	rec.Version = req.Version
	rec.CollectionVersion = strconv.Itoa(f.nextVersion)
	rec.Payload = req.Payload
	rec.Props = req.Props
	rec.Type = req.Type
	f.records[req.KegID] = rec

	return models.UpdateKegResult{CollectionVersion: rec.CollectionVersion}, nil
}

func (f *fakeTransport) GetKeg(ctx context.Context, collectionID, kegID string) (models.KegRecord, error) {
	if f.getFn != nil {
		return f.getFn(ctx, collectionID, kegID)
	}

	rec, ok := f.records[kegID]
	if !ok {
		return models.KegRecord{}, transport.ErrNotFound
	}
	return rec, nil
}

func (f *fakeTransport) DeleteKeg(ctx context.Context, collectionID, kegID string) error {
	rec, ok := f.records[kegID]
	if !ok {
		return transport.ErrNotFound
	}
	rec.Deleted = true
	f.records[kegID] = rec
	return nil
}

func (f *fakeTransport) ListKegs(ctx context.Context, collectionID string, opts models.KegListOptions) ([]models.KegRecord, error) {
	if f.listFn != nil {
		return f.listFn(ctx, collectionID, opts)
	}

	var out []models.KegRecord
	for _, rec := range f.records {
		if rec.CollectionID != collectionID {
			continue
		}
		if opts.Type != "" && rec.Type != opts.Type {
			continue
		}
		if rec.Deleted && !opts.IncludeDeleted {
			continue
		}
		out = append(out, rec)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTransport) QueryKegsByProp(ctx context.Context, collectionID, kegType string, filter map[string]string) ([]models.KegRecord, error) {
	var out []models.KegRecord
	for _, rec := range f.records {
		if rec.CollectionID != collectionID || rec.Type != kegType {
			continue
		}
		match := true
		for k, v := range filter {
			if rec.Props[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeTransport) FetchUpdatedIDs(ctx context.Context, kegType, sinceVersion string) ([]string, error) {
	var ids []string
	for id, rec := range f.records {
		if rec.Type == kegType && models.CompareUpdateIDs(rec.CollectionVersion, sinceVersion) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeTransport) FetchDescriptor(ctx context.Context, fileID string) (models.FileDescriptor, error) {
	d, ok := f.descriptors[fileID]
	if !ok {
		return models.FileDescriptor{}, transport.ErrNotFound
	}
	return d, nil
}

func (f *fakeTransport) SaveDescriptor(ctx context.Context, d models.FileDescriptor) error {
	f.descriptors[d.FileID] = d
	return nil
}

func (f *fakeTransport) Events() <-chan transport.Event {
	return f.events
}

func (f *fakeTransport) Close() error {
	return nil
}
