// SPDX-License-Identifier: Apache-2.0

package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MKhiriev/kegsync/internal/digest"
	"github.com/MKhiriev/kegsync/internal/keg"
	"github.com/MKhiriev/kegsync/internal/retry"
	"github.com/MKhiriev/kegsync/models"
)

// RootFolderID is the fixed id of the non-persisted root sentinel. Files
// whose folder no longer resolves are moved here.
const RootFolderID = "root"

// Folder is one node of the hierarchy. It owns the ids of the files
// attached to it; files store their folder id and are resolved through the
// store's index, never through embedded pointers.
type Folder struct {
	ID        string
	Name      string
	CreatedAt int64
	ParentID  string

	FileIDs map[string]struct{}

	children []string
}

// FolderTree keeps the folder hierarchy in sync with the collection's
// serialized folder-tree singleton keg. The tree reloads itself on digest
// notifications like any synced keg; every reload recomputes the id
// mapping and re-attaches the store's files.
type FolderTree struct {
	*keg.SyncedKeg

	store *Store

	mu         sync.Mutex
	byID       map[string]*Folder
	fileFolder map[string]string
}

func newFolderTree(s *Store, runner *retry.Runner, tracker *digest.Tracker) *FolderTree {
	t := &FolderTree{
		store:      s,
		byID:       map[string]*Folder{RootFolderID: newRoot()},
		fileFolder: make(map[string]string),
	}
	t.SyncedKeg = keg.NewSyncedKeg(s.db, models.KegTypeFolders, false, t, runner, tracker)
	return t
}

func newRoot() *Folder {
	return &Folder{ID: RootFolderID, FileIDs: make(map[string]struct{})}
}

// SerializeKegPayload implements [keg.PayloadCarrier]. The root sentinel
// itself is not persisted; its children are the top-level nodes.
func (t *FolderTree) SerializeKegPayload() (map[string]any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return map[string]any{
		"folders": t.buildNodesLocked(RootFolderID),
	}, nil
}

func (t *FolderTree) buildNodesLocked(parentID string) []models.FolderNode {
	parent := t.byID[parentID]
	nodes := make([]models.FolderNode, 0, len(parent.children))

	for _, id := range parent.children {
		f := t.byID[id]
		nodes = append(nodes, models.FolderNode{
			FolderID:  f.ID,
			Name:      f.Name,
			CreatedAt: f.CreatedAt,
			Folders:   t.buildNodesLocked(f.ID),
		})
	}
	return nodes
}

// DeserializeKegPayload implements [keg.PayloadCarrier]. Applying a fresh
// tree replaces the id mapping wholesale and re-attaches every file in the
// store; files pointing at folders absent from the new tree fall back to
// the root.
func (t *FolderTree) DeserializeKegPayload(fields map[string]json.RawMessage) error {
	var nodes []models.FolderNode
	if raw, ok := fields["folders"]; ok {
		if err := json.Unmarshal(raw, &nodes); err != nil {
			return err
		}
	}

	t.rebuild(nodes)
	return nil
}

func (t *FolderTree) rebuild(nodes []models.FolderNode) {
	byID := map[string]*Folder{RootFolderID: newRoot()}
	indexNodes(byID, RootFolderID, nodes)

	t.mu.Lock()
	t.byID = byID
	t.fileFolder = make(map[string]string)
	t.mu.Unlock()

	for _, f := range t.store.Files() {
		t.attach(f)
	}
}

func indexNodes(byID map[string]*Folder, parentID string, nodes []models.FolderNode) {
	for _, n := range nodes {
		if n.FolderID == "" || n.FolderID == RootFolderID {
			continue
		}

		byID[parentID].children = append(byID[parentID].children, n.FolderID)
		byID[n.FolderID] = &Folder{
			ID:        n.FolderID,
			Name:      n.Name,
			CreatedAt: n.CreatedAt,
			ParentID:  parentID,
			FileIDs:   make(map[string]struct{}),
		}
		indexNodes(byID, n.FolderID, n.Folders)
	}
}

// Sync reloads the tree from the server and re-attaches the store's files,
// discarding any unsaved local changes.
func (t *FolderTree) Sync(ctx context.Context) error {
	return t.Load(ctx)
}

// Root returns the root sentinel.
func (t *FolderTree) Root() *Folder {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byID[RootFolderID]
}

// Get returns the folder with the given id.
func (t *FolderTree) Get(id string) (*Folder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.byID[id]
	return f, ok
}

// Children returns the folder's subfolders in tree order.
func (t *FolderTree) Children(id string) []*Folder {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.byID[id]
	if !ok {
		return nil
	}

	out := make([]*Folder, 0, len(f.children))
	for _, childID := range f.children {
		out = append(out, t.byID[childID])
	}
	return out
}

// CreateFolder adds a folder under parentID and persists the tree. A
// sibling with the same case-insensitive name rejects the creation with
// ErrFolderCollision and leaves the tree unchanged. If persisting fails
// the optimistic local change is discarded by re-syncing from the server.
func (t *FolderTree) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	if parentID == "" {
		parentID = RootFolderID
	}

	t.mu.Lock()
	parent, ok := t.byID[parentID]
	if !ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownFolder, parentID)
	}

	for _, siblingID := range parent.children {
		if strings.EqualFold(t.byID[siblingID].Name, name) {
			t.mu.Unlock()
			return nil, fmt.Errorf("%w: %q under %s", ErrFolderCollision, name, parentID)
		}
	}

	folder := &Folder{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: t.store.clock.Now().Unix(),
		ParentID:  parent.ID,
		FileIDs:   make(map[string]struct{}),
	}
	t.byID[folder.ID] = folder
	parent.children = append(parent.children, folder.ID)
	t.mu.Unlock()

	if err := t.Save(ctx); err != nil {
		if syncErr := t.Sync(ctx); syncErr != nil {
			t.store.logger.Warn().Err(syncErr).
				Str("collection", t.store.db.ID).
				Msg("folder tree re-sync after failed save also failed")
		}
		return nil, fmt.Errorf("save folder tree: %w", err)
	}
	return folder, nil
}

// MoveFile reattaches a file to another folder and persists the file keg.
// Detach always happens before attach so a file belongs to exactly one
// folder at any time. The save runs against a snapshot taken under the
// store lock; the live file adopts the resulting keg meta afterwards.
func (t *FolderTree) MoveFile(ctx context.Context, fileID, folderID string) error {
	f, ok := t.store.GetByID(fileID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
	}
	if folderID == "" {
		folderID = RootFolderID
	}

	t.store.mu.Lock()
	t.mu.Lock()
	if _, ok = t.byID[folderID]; !ok {
		t.mu.Unlock()
		t.store.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownFolder, folderID)
	}
	t.detachLocked(f)
	f.FolderID = folderID
	t.attachLocked(f)
	snap := f.snapshotLocked()
	t.mu.Unlock()
	t.store.mu.Unlock()

	if err := snap.Save(ctx); err != nil {
		return err
	}
	t.store.adoptSaved(f, snap)
	return nil
}

// attach registers the file under its folder, falling back to the root
// when the folder id does not resolve. The store lock guards the file's
// fields; it is always taken before the tree lock.
func (t *FolderTree) attach(f *File) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byID[f.FolderID]; !ok {
		f.FolderID = RootFolderID
	}
	t.attachLocked(f)
}

func (t *FolderTree) attachLocked(f *File) {
	if prev, ok := t.fileFolder[f.FileID]; ok && prev != f.FolderID {
		if folder, exists := t.byID[prev]; exists {
			delete(folder.FileIDs, f.FileID)
		}
	}

	t.byID[f.FolderID].FileIDs[f.FileID] = struct{}{}
	t.fileFolder[f.FileID] = f.FolderID
}

func (t *FolderTree) detach(f *File) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detachLocked(f)
}

func (t *FolderTree) detachLocked(f *File) {
	if prev, ok := t.fileFolder[f.FileID]; ok {
		if folder, exists := t.byID[prev]; exists {
			delete(folder.FileIDs, f.FileID)
		}
		delete(t.fileFolder, f.FileID)
	}
}
