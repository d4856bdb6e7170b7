package filestore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/kegsync/internal/crypto"
	"github.com/MKhiriev/kegsync/internal/digest"
	"github.com/MKhiriev/kegsync/internal/keg"
	"github.com/MKhiriev/kegsync/internal/kv"
	"github.com/MKhiriev/kegsync/internal/logger"
	"github.com/MKhiriev/kegsync/internal/retry"
	"github.com/MKhiriev/kegsync/models"
)

const testCollection = "vol-1"

type testEnv struct {
	t       *testing.T
	ft      *fakeTransport
	cipher  crypto.Cipher
	key     []byte
	tracker *digest.Tracker
	clock   clockwork.FakeClock
	kvs     *kv.Store
	db      *keg.KegDb
	store   *Store
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	ctx := context.Background()

	ft := newFakeTransport()
	c := crypto.NewCipher()
	key, err := c.GenerateKey()
	require.NoError(t, err)

	kvs, err := kv.Open(ctx, filepath.Join(t.TempDir(), "kv.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kvs.Close() })

	tracker := digest.NewTracker(logger.Nop())
	clock := clockwork.NewFakeClock()
	db := keg.NewKegDb(testCollection, keg.KindVolume, key, ft, c, logger.Nop())

	if opts.Identity == "" {
		opts.Identity = "me"
	}
	opts.Clock = clock

	store := NewStore(db, ft, c, tracker, retry.NewRunner(logger.Nop()), kvs, opts, logger.Nop())

	return &testEnv{
		t:       t,
		ft:      ft,
		cipher:  c,
		key:     key,
		tracker: tracker,
		clock:   clock,
		kvs:     kvs,
		db:      db,
		store:   store,
	}
}

func (e *testEnv) load() {
	e.t.Helper()
	require.NoError(e.t, e.store.Load(context.Background()))
}

type seedSpec struct {
	kegID    string
	fileID   string
	name     string
	owner    string
	cv       string
	format   int
	folderID string
}

// seedFile seeds one sealed file record server-side and returns its blob
// key.
func (e *testEnv) seedFile(spec seedSpec) []byte {
	e.t.Helper()

	if spec.owner == "" {
		spec.owner = "someone-else"
	}
	if spec.folderID == "" {
		spec.folderID = RootFolderID
	}

	blobKey, err := e.cipher.GenerateKey()
	require.NoError(e.t, err)

	fields := map[string]any{
		"fileId":   spec.fileID,
		"name":     spec.name,
		"size":     int64(128),
		"format":   spec.format,
		"folderId": spec.folderID,
		"blobKey":  base64.StdEncoding.EncodeToString(blobKey),
		"_sys":     map[string]string{"kegId": spec.kegID, "type": models.KegTypeFile},
	}
	raw, err := json.Marshal(fields)
	require.NoError(e.t, err)

	blob, err := e.cipher.Encrypt(raw, e.key)
	require.NoError(e.t, err)

	e.ft.seed(models.KegRecord{
		KegID:             spec.kegID,
		CollectionID:      testCollection,
		Type:              models.KegTypeFile,
		Owner:             spec.owner,
		Version:           2,
		CollectionVersion: spec.cv,
		Payload:           blob,
	})
	return blobKey
}

func (e *testEnv) knownUpdateID() string {
	return e.tracker.GetDigest(testCollection, models.KegTypeFile).KnownUpdateID
}

// sourceFile writes content to a fresh temp file and returns its path.
func (e *testEnv) sourceFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.t.TempDir(), name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestStore_InitialLoad_PagesThroughCollection(t *testing.T) {
	e := newTestEnv(t, Options{PageSize: 2})

	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "alpha.txt", cv: "3"})
	e.seedFile(seedSpec{kegID: "k-0002", fileID: "f-2", name: "beta.txt", cv: "7"})
	e.seedFile(seedSpec{kegID: "k-0003", fileID: "f-3", name: "gamma.txt", cv: "10"})

	e.load()

	assert.Equal(t, StateLoaded, e.store.State())
	assert.Len(t, e.store.Files(), 3)
	assert.Equal(t, "10", e.knownUpdateID())

	f, ok := e.store.GetByID("f-2")
	require.True(t, ok)
	assert.Equal(t, "beta.txt", f.Name)

	byKeg, ok := e.store.GetByKegID("k-0002")
	require.True(t, ok)
	assert.Same(t, f, byKeg)
}

func TestStore_LoadKeepsSeededRecordsDistinctFromAllocations(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "first.txt", cv: "1"})

	// Load allocates the folder-tree keg; the allocation must not shadow
	// an existing record
	e.load()

	e.ft.mu.Lock()
	rec := e.ft.records["k-0001"]
	e.ft.mu.Unlock()
	assert.Equal(t, models.KegTypeFile, rec.Type)

	f, ok := e.store.GetByKegID("k-0001")
	require.True(t, ok)
	assert.Equal(t, "f-1", f.FileID)
}

func TestStore_InitialLoad_SkipsMalformedRecords(t *testing.T) {
	e := newTestEnv(t, Options{})

	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "good.txt", cv: "1"})

	// ciphertext that decrypts nowhere
	e.ft.seed(models.KegRecord{
		KegID: "k-0002", CollectionID: testCollection, Type: models.KegTypeFile,
		Version: 2, CollectionVersion: "2", Payload: "not-a-valid-blob",
	})

	// hydrates fine but carries no logical id
	e.seedFile(seedSpec{kegID: "k-0003", fileID: "tmp", name: "x", cv: "3"})
	e.resealWithoutFileID("k-0003")

	// same fileId as k-0001
	e.seedFile(seedSpec{kegID: "k-0004", fileID: "f-1", name: "dup.txt", cv: "4"})

	e.load()

	assert.Len(t, e.store.Files(), 1)
	f, ok := e.store.GetByID("f-1")
	require.True(t, ok)
	assert.Equal(t, "good.txt", f.Name)

	// every received record still counts toward the watermark
	assert.Equal(t, "4", e.knownUpdateID())
}

// resealWithoutFileID replaces a seeded record's payload with one that has
// no fileId field.
func (e *testEnv) resealWithoutFileID(kegID string) {
	e.t.Helper()

	fields := map[string]any{
		"name": "anonymous",
		"_sys": map[string]string{"kegId": kegID, "type": models.KegTypeFile},
	}
	raw, err := json.Marshal(fields)
	require.NoError(e.t, err)
	blob, err := e.cipher.Encrypt(raw, e.key)
	require.NoError(e.t, err)

	e.ft.mu.Lock()
	rec := e.ft.records[kegID]
	rec.Payload = blob
	e.ft.records[kegID] = rec
	e.ft.mu.Unlock()
}

func TestStore_UpdateCycle_AppliesDeltaAndAdvancesWatermark(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.load()
	require.Empty(t, e.store.Files())

	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "a", cv: "3"})
	e.seedFile(seedSpec{kegID: "k-0002", fileID: "f-2", name: "b", cv: "7"})
	e.seedFile(seedSpec{kegID: "k-0003", fileID: "f-3", name: "c", cv: "10"})

	e.tracker.ProcessDigestEvent(models.Digest{
		CollectionID: testCollection, KegType: models.KegTypeFile, MaxUpdateID: "10",
	})
	e.clock.Advance(301 * time.Millisecond)

	require.Eventually(t, func() bool {
		return len(e.store.Files()) == 3 && e.knownUpdateID() == "10"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStore_UpdateCycle_CoalescesBurstsIntoOneCycle(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.load()

	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "a", cv: "5"})
	e.seedFile(seedSpec{kegID: "k-0002", fileID: "f-2", name: "b", cv: "9"})

	e.ft.mu.Lock()
	before := e.ft.listCalls
	e.ft.mu.Unlock()

	for _, max := range []string{"5", "7", "9"} {
		e.tracker.ProcessDigestEvent(models.Digest{
			CollectionID: testCollection, KegType: models.KegTypeFile, MaxUpdateID: max,
		})
	}
	e.clock.Advance(301 * time.Millisecond)

	require.Eventually(t, func() bool {
		return len(e.store.Files()) == 2
	}, 3*time.Second, 10*time.Millisecond)

	e.ft.mu.Lock()
	delta := e.ft.listCalls - before
	e.ft.mu.Unlock()
	assert.Equal(t, 1, delta, "a burst of digest events must run exactly one fetch")
}

func TestStore_UpdateCycle_RemovesDeletedAndHidden(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "keep", cv: "1"})
	e.seedFile(seedSpec{kegID: "k-0002", fileID: "f-2", name: "delete-me", cv: "2"})
	e.seedFile(seedSpec{kegID: "k-0003", fileID: "f-3", name: "hide-me", cv: "3"})
	e.load()
	require.Len(t, e.store.Files(), 3)

	e.ft.mu.Lock()
	rec := e.ft.records["k-0002"]
	rec.Deleted = true
	rec.CollectionVersion = "4"
	e.ft.records["k-0002"] = rec

	rec = e.ft.records["k-0003"]
	rec.Hidden = true
	rec.CollectionVersion = "5"
	e.ft.records["k-0003"] = rec
	e.ft.mu.Unlock()

	e.tracker.ProcessDigestEvent(models.Digest{
		CollectionID: testCollection, KegType: models.KegTypeFile, MaxUpdateID: "5",
	})
	e.clock.Advance(301 * time.Millisecond)

	require.Eventually(t, func() bool {
		return len(e.store.Files()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	_, ok := e.store.GetByID("f-1")
	assert.True(t, ok)
	assert.Equal(t, "5", e.knownUpdateID())
}

func TestStore_UpdateCycle_WatermarkNeverRegressesOnEmptyFetch(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "only", cv: "10"})
	e.load()
	require.Equal(t, "10", e.knownUpdateID())

	// the server announces 20 but nothing above 10 is actually returned,
	// e.g. everything newer was deleted and compacted away
	e.tracker.ProcessDigestEvent(models.Digest{
		CollectionID: testCollection, KegType: models.KegTypeFile, MaxUpdateID: "20",
	})
	e.clock.Advance(301 * time.Millisecond)

	require.Eventually(t, func() bool {
		return e.knownUpdateID() == "20"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStore_PauseHoldsNotificationsUntilResume(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.load()
	e.store.Pause()

	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "late", cv: "2"})
	e.tracker.ProcessDigestEvent(models.Digest{
		CollectionID: testCollection, KegType: models.KegTypeFile, MaxUpdateID: "2",
	})
	e.clock.Advance(time.Second)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, e.store.Files(), "paused store must not react")

	e.store.Resume()
	require.Eventually(t, func() bool {
		return len(e.store.Files()) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStore_TimerFiringDuringPauseStaysPending(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.load()

	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "held", cv: "2"})
	e.tracker.ProcessDigestEvent(models.Digest{
		CollectionID: testCollection, KegType: models.KegTypeFile, MaxUpdateID: "2",
	})

	// the debounce timer expires in the same instant Pause lands: the
	// firing must not start a cycle and must keep the notification pending
	e.store.Pause()
	e.store.fireUpdate()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, e.store.Files(), "paused store must not react to a late firing")

	e.store.Resume()
	require.Eventually(t, func() bool {
		return len(e.store.Files()) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestStore_UpdateCyclesRunSafelyAlongsideMigrations(t *testing.T) {
	e := newTestEnv(t, Options{Identity: "me"})

	// legacy files owned elsewhere with no descriptor yet: every hydration
	// queues a passive follow that inspects the file while delta cycles
	// keep rewriting it
	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "a-0", cv: "1", format: models.FileFormatLegacy})
	e.seedFile(seedSpec{kegID: "k-0002", fileID: "f-2", name: "b-0", cv: "2", format: models.FileFormatLegacy})
	e.load()

	cv := 2
	for round := 1; round <= 3; round++ {
		cv++
		e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: fmt.Sprintf("a-%d", round), cv: strconv.Itoa(cv), format: models.FileFormatLegacy})
		cv++
		e.seedFile(seedSpec{kegID: "k-0002", fileID: "f-2", name: fmt.Sprintf("b-%d", round), cv: strconv.Itoa(cv), format: models.FileFormatLegacy})

		e.tracker.ProcessDigestEvent(models.Digest{
			CollectionID: testCollection, KegType: models.KegTypeFile, MaxUpdateID: strconv.Itoa(cv),
		})
		e.clock.Advance(301 * time.Millisecond)

		want := fmt.Sprintf("b-%d", round)
		require.Eventually(t, func() bool {
			f, ok := e.store.GetByID("f-2")
			if !ok {
				return false
			}
			e.store.mu.RLock()
			name := f.Name
			e.store.mu.RUnlock()
			return name == want
		}, 3*time.Second, 10*time.Millisecond)
	}
	e.store.migrations.Wait()

	for _, id := range []string{"f-1", "f-2"} {
		format, migrating := e.fileState(id)
		assert.Equal(t, models.FileFormatLegacy, format)
		assert.False(t, migrating)
	}
	assert.Equal(t, strconv.Itoa(cv), e.knownUpdateID())
}

func TestStore_FilterByNameAndClearFilter(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "Report.pdf", cv: "1"})
	e.seedFile(seedSpec{kegID: "k-0002", fileID: "f-2", name: "notes.txt", cv: "2"})
	e.seedFile(seedSpec{kegID: "k-0003", fileID: "f-3", name: "report-final.pdf", cv: "3"})
	e.load()

	notes, _ := e.store.GetByID("f-2")
	notes.Selected = true

	e.store.FilterByName("REPORT")

	for _, f := range e.store.Files() {
		if f.FileID == "f-2" {
			assert.False(t, f.Show)
			assert.False(t, f.Selected, "filtered-out files lose their selection")
		} else {
			assert.True(t, f.Show)
		}
	}

	report, _ := e.store.GetByID("f-1")
	report.Selected = true

	// an empty query matches everything
	e.store.FilterByName("")
	e.store.ClearFilter()

	for _, f := range e.store.Files() {
		assert.True(t, f.Show)
	}
	assert.True(t, report.Selected, "clearing the filter leaves selection alone")
}

func TestStore_LoadIsIdempotent(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "once", cv: "1"})
	e.load()

	e.ft.mu.Lock()
	before := e.ft.listCalls
	e.ft.mu.Unlock()

	e.load()

	e.ft.mu.Lock()
	after := e.ft.listCalls
	e.ft.mu.Unlock()
	assert.Equal(t, before, after, "a loaded store must not reload")
}

func TestStore_DisposeDropsStateAndStopsReactions(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "gone", cv: "1"})
	e.load()
	require.Len(t, e.store.Files(), 1)

	e.store.Dispose()
	assert.Empty(t, e.store.Files())
	assert.Equal(t, StateUnloaded, e.store.State())

	e.seedFile(seedSpec{kegID: "k-0002", fileID: "f-2", name: "after", cv: "2"})
	e.tracker.ProcessDigestEvent(models.Digest{
		CollectionID: testCollection, KegType: models.KegTypeFile, MaxUpdateID: "2",
	})
	e.clock.Advance(time.Second)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, e.store.Files())
}

func TestStore_LoadProceedsWhenFolderTreeDoesNotSettle(t *testing.T) {
	e := newTestEnv(t, Options{SettleTimeout: 2 * time.Second})
	e.seedFile(seedSpec{kegID: "k-0001", fileID: "f-1", name: "orphan", cv: "1"})

	blocked := make(chan struct{})
	defer close(blocked)

	e.ft.listFn = func(_ context.Context, collectionID string, opts models.KegListOptions) ([]models.KegRecord, error) {
		if opts.Type == models.KegTypeFolders {
			<-blocked // folder tree never answers
			return nil, nil
		}
		return e.ft.builtinList(collectionID, opts)
	}

	loaded := make(chan error, 1)
	go func() { loaded <- e.store.Load(context.Background()) }()

	// wait for the settle barrier to arm, then let it elapse
	e.clock.BlockUntil(1)
	e.clock.Advance(2 * time.Second)

	require.NoError(t, <-loaded)
	assert.Equal(t, StateLoaded, e.store.State())
	assert.Len(t, e.store.Files(), 1)
}
