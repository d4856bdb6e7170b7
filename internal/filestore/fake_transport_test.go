package filestore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/MKhiriev/kegsync/internal/transport"
	"github.com/MKhiriev/kegsync/models"
)

// fakeTransport is a hand-rolled in-memory keg server with ordered keg ids
// and collection-version stamping, enough to drive full load and update
// cycles. Function fields override individual operations per test. Safe
// for concurrent use; store cycles run on background goroutines.
type fakeTransport struct {
	mu          sync.Mutex
	nextID      int
	nextVersion int
	records     map[string]models.KegRecord
	descriptors map[string]models.FileDescriptor
	events      chan transport.Event

	listCalls int

	updateFn   func(ctx context.Context, req models.UpdateKegRequest) (models.UpdateKegResult, error)
	listFn     func(ctx context.Context, collectionID string, opts models.KegListOptions) ([]models.KegRecord, error)
	saveDescFn func(ctx context.Context, d models.FileDescriptor) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		records:     make(map[string]models.KegRecord),
		descriptors: make(map[string]models.FileDescriptor),
		events:      make(chan transport.Event),
	}
}

// seed inserts a record with the given collection version, bypassing the
// allocation/update protocol.
func (f *fakeTransport) seed(rec models.KegRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.KegID] = rec
}

func (f *fakeTransport) SetToken(string) {}

func (f *fakeTransport) CreateKeg(ctx context.Context, collectionID, kegType string) (models.KegAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.nextVersion++
	// allocated ids live in their own namespace so they never collide with
	// the "k-NNNN" ids tests seed directly
	alloc := models.KegAllocation{
		KegID:             fmt.Sprintf("kz-%04d", f.nextID),
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
	return f.applyUpdate(req)
}

func (f *fakeTransport) applyUpdate(req models.UpdateKegRequest) (models.UpdateKegResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

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
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[kegID]
	if !ok {
		return models.KegRecord{}, transport.ErrNotFound
	}
	return rec, nil
}

func (f *fakeTransport) DeleteKeg(ctx context.Context, collectionID, kegID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[kegID]
	if !ok {
		return transport.ErrNotFound
	}
	f.nextVersion++
	rec.Deleted = true
	rec.CollectionVersion = strconv.Itoa(f.nextVersion)
	f.records[kegID] = rec
	return nil
}

func (f *fakeTransport) ListKegs(ctx context.Context, collectionID string, opts models.KegListOptions) ([]models.KegRecord, error) {
	if f.listFn != nil {
		return f.listFn(ctx, collectionID, opts)
	}
	return f.builtinList(collectionID, opts)
}

func (f *fakeTransport) builtinList(collectionID string, opts models.KegListOptions) ([]models.KegRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++

	var out []models.KegRecord
	for _, rec := range f.records {
		if rec.CollectionID != collectionID {
			continue
		}
		if opts.Type != "" && rec.Type != opts.Type {
			continue
		}
		if opts.MinKegID != "" && rec.KegID <= opts.MinKegID {
			continue
		}
		if opts.CollectionVersionAbove != "" &&
			models.CompareUpdateIDs(rec.CollectionVersion, opts.CollectionVersionAbove) <= 0 {
			continue
		}
		if rec.Deleted && !opts.IncludeDeleted {
			continue
		}
		if rec.Hidden && !opts.IncludeHidden {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].KegID < out[j].KegID })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeTransport) QueryKegsByProp(ctx context.Context, collectionID, kegType string, filter map[string]string) ([]models.KegRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

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
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for id, rec := range f.records {
		if rec.Type == kegType && models.CompareUpdateIDs(rec.CollectionVersion, sinceVersion) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeTransport) FetchDescriptor(ctx context.Context, fileID string) (models.FileDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.descriptors[fileID]
	if !ok {
		return models.FileDescriptor{}, transport.ErrNotFound
	}
	return d, nil
}

func (f *fakeTransport) SaveDescriptor(ctx context.Context, d models.FileDescriptor) error {
	if f.saveDescFn != nil {
		return f.saveDescFn(ctx, d)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if d.Version == "" {
		d.Version = "1"
	}
	f.descriptors[d.FileID] = d
	return nil
}

func (f *fakeTransport) Events() <-chan transport.Event {
	return f.events
}

func (f *fakeTransport) Close() error {
	return nil
}
