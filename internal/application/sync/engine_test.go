package sync_test

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/handwerkpro/handwerk-api/internal/application/sync"
	"github.com/handwerkpro/handwerk-api/internal/domain"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Test fakes
// ──────────────────────────────────────────────────────────────────────────────

const testOwner = "werkstatt-test"

// fakeKV in-memory KVStore.
type fakeKV struct {
	mu   gosync.Mutex
	data map[string][]byte
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

// fakeRemote in-memory RemoteStore with programmable failures.
type fakeRemote struct {
	mu          gosync.Mutex
	records     map[string]map[string]entity.Record // collection -> id
	upsertErr   error
	deleteErr   error
	selectErr   error
	upsertCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: map[string]map[string]entity.Record{}}
}

func (f *fakeRemote) Select(_ context.Context, _, collection string) ([]entity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []entity.Record
	for _, r := range f.records[collection] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeRemote) Upsert(_ context.Context, _, collection string, rec entity.Record) (entity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return entity.Record{}, f.upsertErr
	}
	if f.records[collection] == nil {
		f.records[collection] = map[string]entity.Record{}
	}
	f.records[collection][rec.ID] = rec.Clone()
	return rec.Clone(), nil
}

func (f *fakeRemote) Delete(_ context.Context, _, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.records[collection], id)
	return nil
}

func (f *fakeRemote) put(collection string, rec entity.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[collection] == nil {
		f.records[collection] = map[string]entity.Record{}
	}
	f.records[collection][rec.ID] = rec
}

func (f *fakeRemote) get(collection, id string) (entity.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[collection][id]
	return r, ok
}

// fakeConn switchable reachability.
type fakeConn struct{ reachable bool }

func (f *fakeConn) IsReachable(context.Context) bool { return f.reachable }

// testClock controllable time source.
type testClock struct {
	mu  gosync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock { return &testClock{now: start} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t *testing.T, reachable bool) (*appsync.Engine, *fakeKV, *fakeRemote, *fakeConn, *testClock) {
	t.Helper()
	kv := newFakeKV()
	remote := newFakeRemote()
	conn := &fakeConn{reachable: reachable}
	clock := newTestClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	log := logger.New(logger.Config{Env: "development", Level: "error"})
	engine := appsync.NewEngine(kv, remote, conn, log, appsync.Options{
		Now:       clock.Now,
		RetryBase: 30 * time.Second,
		RetryMax:  5 * time.Minute,
	})
	return engine, kv, remote, conn, clock
}

func queueLength(t *testing.T, e *appsync.Engine) int {
	t.Helper()
	status, err := e.Status(context.Background())
	require.NoError(t, err)
	return status.QueueLength
}

// ──────────────────────────────────────────────────────────────────────────────
// Upsert
// ──────────────────────────────────────────────────────────────────────────────

func TestUpsert_AssignsIDAndTimestamps(t *testing.T) {
	engine, _, _, _, clock := newTestEngine(t, false)

	rec, err := engine.Upsert(context.Background(), testOwner, entity.CollectionCustomers,
		entity.Record{Fields: map[string]any{"name": "Schmidt GmbH"}})
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID, "a new record must get an id")
	assert.Equal(t, clock.Now(), rec.CreatedAt)
	assert.Equal(t, clock.Now(), rec.UpdatedAt)
}

func TestUpsert_OfflineWritesCacheAndQueues(t *testing.T) {
	engine, _, remote, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	rec, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{Fields: map[string]any{"number": "RE-2024-001", "status": "offen"}})
	require.NoError(t, err, "an offline write must succeed")

	// Readable immediately from the cache.
	got, err := engine.Get(entity.CollectionInvoices, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "RE-2024-001", got.Field("number"))

	// Nothing reached the remote, one item queued.
	assert.Equal(t, 0, remote.upsertCalls, "unreachable engine must not call the remote")
	assert.Equal(t, 1, queueLength(t, engine))
}

func TestUpsert_OnlineSyncsImmediately(t *testing.T) {
	engine, _, remote, _, _ := newTestEngine(t, true)

	rec, err := engine.Upsert(context.Background(), testOwner, entity.CollectionCustomers,
		entity.Record{Fields: map[string]any{"name": "Huber & Söhne"}})
	require.NoError(t, err)

	_, ok := remote.get(entity.CollectionCustomers, rec.ID)
	assert.True(t, ok, "a reachable upsert must land remotely")
	assert.Equal(t, 0, queueLength(t, engine), "confirmed mutations are not queued")
}

func TestUpsert_IsIdempotentInCache(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	first, err := engine.Upsert(ctx, testOwner, entity.CollectionCustomers,
		entity.Record{ID: "c-1", Fields: map[string]any{"name": "Alt"}})
	require.NoError(t, err)
	_, err = engine.Upsert(ctx, testOwner, entity.CollectionCustomers,
		entity.Record{ID: "c-1", Fields: map[string]any{"name": "Neu"}})
	require.NoError(t, err)

	recs, err := engine.List(entity.CollectionCustomers)
	require.NoError(t, err)
	require.Len(t, recs, 1, "upserting the same id twice must not duplicate")
	assert.Equal(t, "Neu", recs[0].Field("name"))
	assert.Equal(t, first.CreatedAt, recs[0].CreatedAt, "CreatedAt survives updates")
}

func TestUpsert_MergesFieldsIntoExistingRecord(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionCustomers,
		entity.Record{ID: "c-1", Fields: map[string]any{"name": "Schmidt GmbH", "email": "info@schmidt.de"}})
	require.NoError(t, err)

	// Partial update: only the phone; name and email must survive.
	_, err = engine.Upsert(ctx, testOwner, entity.CollectionCustomers,
		entity.Record{ID: "c-1", Fields: map[string]any{"phone": "089-123"}})
	require.NoError(t, err)

	got, err := engine.Get(entity.CollectionCustomers, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Schmidt GmbH", got.Field("name"))
	assert.Equal(t, "info@schmidt.de", got.Field("email"))
	assert.Equal(t, "089-123", got.Field("phone"))
}

func TestUpsert_QueueCoalescesPerRecord(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
			entity.Record{ID: "inv-1", Fields: map[string]any{"rev": fmt.Sprint(i)}})
		require.NoError(t, err)
	}
	_, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{ID: "inv-2", Fields: map[string]any{}})
	require.NoError(t, err)

	assert.Equal(t, 2, queueLength(t, engine),
		"repeated offline edits of one record coalesce into a single queue item")
}

func TestUpsert_RejectedKeepsLocalCopyWithoutRetry(t *testing.T) {
	engine, _, remote, _, _ := newTestEngine(t, true)
	remote.upsertErr = fmt.Errorf("%w: payload too large", domain.ErrRejected)

	rec, err := engine.Upsert(context.Background(), testOwner, entity.CollectionInvoices,
		entity.Record{Fields: map[string]any{"number": "RE-1"}})
	require.NoError(t, err, "a permanent rejection must not surface to the caller")

	_, err = engine.Get(entity.CollectionInvoices, rec.ID)
	assert.NoError(t, err, "the local copy stands")
	assert.Equal(t, 0, queueLength(t, engine), "rejected mutations are not retried")
}

// ──────────────────────────────────────────────────────────────────────────────
// Remove
// ──────────────────────────────────────────────────────────────────────────────

func TestRemove_OfflineRemovesLocallyAndQueuesDelete(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionQuotes,
		entity.Record{ID: "q-1", Fields: map[string]any{"title": "Dachsanierung"}})
	require.NoError(t, err)
	require.NoError(t, engine.Remove(ctx, testOwner, entity.CollectionQuotes, "q-1"))

	_, err = engine.Get(entity.CollectionQuotes, "q-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "removed records disappear from the cache")

	// The pending upsert was superseded by the delete.
	assert.Equal(t, 1, queueLength(t, engine))
}

func TestRemove_OnlineDeletesRemotely(t *testing.T) {
	engine, _, remote, _, _ := newTestEngine(t, true)
	ctx := context.Background()

	rec, err := engine.Upsert(ctx, testOwner, entity.CollectionQuotes,
		entity.Record{Fields: map[string]any{"title": "Badumbau"}})
	require.NoError(t, err)
	require.NoError(t, engine.Remove(ctx, testOwner, entity.CollectionQuotes, rec.ID))

	_, ok := remote.get(entity.CollectionQuotes, rec.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, queueLength(t, engine))
}

// ──────────────────────────────────────────────────────────────────────────────
// Pull and last-write-wins merge
// ──────────────────────────────────────────────────────────────────────────────

func TestPull_RemoteWinsUnlessLocalIsStrictlyNewer(t *testing.T) {
	engine, _, remote, _, clock := newTestEngine(t, true)
	ctx := context.Background()
	base := clock.Now()

	// Local copy edited at base time.
	_, err := engine.Upsert(ctx, testOwner, entity.CollectionCustomers,
		entity.Record{ID: "c-newer-local", Fields: map[string]any{"name": "lokal"}})
	require.NoError(t, err)
	_, err = engine.Upsert(ctx, testOwner, entity.CollectionCustomers,
		entity.Record{ID: "c-newer-remote", Fields: map[string]any{"name": "lokal"}})
	require.NoError(t, err)

	// Remote: one copy older than local, one newer, one unknown locally.
	remote.put(entity.CollectionCustomers, entity.Record{
		ID: "c-newer-local", CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(-time.Hour),
		Fields: map[string]any{"name": "remote-alt"},
	})
	remote.put(entity.CollectionCustomers, entity.Record{
		ID: "c-newer-remote", CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(time.Hour),
		Fields: map[string]any{"name": "remote-neu"},
	})
	remote.put(entity.CollectionCustomers, entity.Record{
		ID: "c-remote-only", CreatedAt: base, UpdatedAt: base,
		Fields: map[string]any{"name": "nur-remote"},
	})

	merged, err := engine.Pull(ctx, testOwner, entity.CollectionCustomers)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	byID := map[string]entity.Record{}
	for _, r := range merged {
		byID[r.ID] = r
	}
	assert.Equal(t, "lokal", byID["c-newer-local"].Field("name"),
		"a strictly newer local edit survives the pull")
	assert.Equal(t, "remote-neu", byID["c-newer-remote"].Field("name"),
		"a newer remote copy overwrites the local one")
	assert.Equal(t, "nur-remote", byID["c-remote-only"].Field("name"),
		"remote-only records are added to the cache")
}

func TestPull_TieGoesToRemote(t *testing.T) {
	engine, _, remote, _, clock := newTestEngine(t, true)
	ctx := context.Background()
	base := clock.Now()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionCustomers,
		entity.Record{ID: "c-1", Fields: map[string]any{"name": "lokal"}})
	require.NoError(t, err)

	// Same UpdatedAt as the local copy.
	remote.put(entity.CollectionCustomers, entity.Record{
		ID: "c-1", CreatedAt: base, UpdatedAt: base,
		Fields: map[string]any{"name": "remote"},
	})

	merged, err := engine.Pull(ctx, testOwner, entity.CollectionCustomers)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "remote", merged[0].Field("name"),
		"on an exact timestamp tie the remote copy wins")
}

func TestPull_RemoteTombstoneDeletesLocalCopy(t *testing.T) {
	engine, _, remote, _, clock := newTestEngine(t, true)
	ctx := context.Background()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{ID: "inv-1", Fields: map[string]any{"number": "RE-1"}})
	require.NoError(t, err)

	deletedAt := clock.Now().Add(time.Hour)
	remote.put(entity.CollectionInvoices, entity.Record{
		ID: "inv-1", CreatedAt: clock.Now().Add(-time.Hour), UpdatedAt: clock.Now().Add(-time.Hour),
		DeletedAt: &deletedAt,
	})

	merged, err := engine.Pull(ctx, testOwner, entity.CollectionInvoices)
	require.NoError(t, err)
	assert.Empty(t, merged, "a newer remote tombstone must delete the local copy")

	_, err = engine.Get(entity.CollectionInvoices, "inv-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPull_UnreachableServesLocalCache(t *testing.T) {
	engine, _, remote, conn, _ := newTestEngine(t, false)
	ctx := context.Background()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionCustomers,
		entity.Record{ID: "c-1", Fields: map[string]any{"name": "lokal"}})
	require.NoError(t, err)
	remote.put(entity.CollectionCustomers, entity.Record{ID: "c-remote"})

	recs, err := engine.Pull(ctx, testOwner, entity.CollectionCustomers)
	require.NoError(t, err, "an unreachable pull is not an error")
	require.Len(t, recs, 1)
	assert.Equal(t, "c-1", recs[0].ID, "only the cached copy is served while offline")

	// Reachable but the select itself fails: same behavior.
	conn.reachable = true
	remote.selectErr = fmt.Errorf("%w: connection reset", domain.ErrUnreachable)
	recs, err = engine.Pull(ctx, testOwner, entity.CollectionCustomers)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c-1", recs[0].ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// FlushQueue
// ──────────────────────────────────────────────────────────────────────────────

func TestFlushQueue_UnreachableIsANoop(t *testing.T) {
	engine, _, remote, _, _ := newTestEngine(t, false)
	ctx := context.Background()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{Fields: map[string]any{"number": "RE-1"}})
	require.NoError(t, err)

	report, err := engine.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, appsync.Report{}, report)
	assert.Equal(t, 0, remote.upsertCalls)
	assert.Equal(t, 1, queueLength(t, engine), "the queue survives until reachable")
}

// Offline edit, reconnect, flush: the classic reconnection sequence.
func TestFlushQueue_DrainsAfterReconnect(t *testing.T) {
	engine, _, remote, conn, _ := newTestEngine(t, false)
	ctx := context.Background()

	rec, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{Fields: map[string]any{"number": "RE-2024-007", "status": "offen"}})
	require.NoError(t, err)
	require.Equal(t, 1, queueLength(t, engine))

	conn.reachable = true
	report, err := engine.FlushQueue(ctx)
	require.NoError(t, err)

	assert.Equal(t, appsync.Report{Synced: 1}, report)
	assert.Equal(t, 0, queueLength(t, engine))
	remoteRec, ok := remote.get(entity.CollectionInvoices, rec.ID)
	require.True(t, ok, "the queued mutation must land remotely")
	assert.Equal(t, "RE-2024-007", remoteRec.Field("number"))
}

func TestFlushQueue_TransientFailureKeepsItemWithBackoff(t *testing.T) {
	engine, _, remote, conn, clock := newTestEngine(t, false)
	ctx := context.Background()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{ID: "inv-1", Fields: map[string]any{"number": "RE-1"}})
	require.NoError(t, err)

	conn.reachable = true
	remote.upsertErr = fmt.Errorf("%w: timeout", domain.ErrUnreachable)

	report, err := engine.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, appsync.Report{Failed: 1}, report)
	assert.Equal(t, 1, queueLength(t, engine), "a failed item stays queued")

	// Within the backoff window the item is not retried.
	calls := remote.upsertCalls
	report, err = engine.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, appsync.Report{}, report)
	assert.Equal(t, calls, remote.upsertCalls, "an item inside its backoff window is skipped")

	// After the backoff the item is retried and succeeds.
	remote.upsertErr = nil
	clock.Advance(31 * time.Second)
	report, err = engine.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, appsync.Report{Synced: 1}, report)
	assert.Equal(t, 0, queueLength(t, engine))
}

func TestFlushQueue_RejectionDropsItem(t *testing.T) {
	engine, _, remote, conn, _ := newTestEngine(t, false)
	ctx := context.Background()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{ID: "inv-bad", Fields: map[string]any{"number": "RE-X"}})
	require.NoError(t, err)

	conn.reachable = true
	remote.upsertErr = fmt.Errorf("%w: constraint violation", domain.ErrRejected)

	report, err := engine.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, appsync.Report{Rejected: 1}, report)
	assert.Equal(t, 0, queueLength(t, engine), "rejected items are dropped, not retried")
}

func TestFlushQueue_OneFailingItemDoesNotStarveTheRest(t *testing.T) {
	engine, _, remote, conn, _ := newTestEngine(t, false)
	ctx := context.Background()

	// Delete of a record the remote will refuse, then a healthy upsert.
	require.NoError(t, engine.Remove(ctx, testOwner, entity.CollectionQuotes, "q-locked"))
	_, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{ID: "inv-ok", Fields: map[string]any{"number": "RE-2"}})
	require.NoError(t, err)

	conn.reachable = true
	remote.deleteErr = fmt.Errorf("%w: timeout", domain.ErrUnreachable)

	report, err := engine.FlushQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, appsync.Report{Synced: 1, Failed: 1}, report,
		"items fail independently; the healthy one syncs")
	assert.Equal(t, 1, queueLength(t, engine))

	_, ok := remote.get(entity.CollectionInvoices, "inv-ok")
	assert.True(t, ok)
}

// ──────────────────────────────────────────────────────────────────────────────
// Status
// ──────────────────────────────────────────────────────────────────────────────

func TestStatus_ReportsReachabilityQueueAndLastPull(t *testing.T) {
	engine, _, _, conn, clock := newTestEngine(t, false)
	ctx := context.Background()

	_, err := engine.Upsert(ctx, testOwner, entity.CollectionInvoices,
		entity.Record{Fields: map[string]any{"number": "RE-1"}})
	require.NoError(t, err)

	status, err := engine.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Reachable)
	assert.Equal(t, 1, status.QueueLength)
	assert.Empty(t, status.LastPull, "no pull happened yet")

	conn.reachable = true
	_, err = engine.Pull(ctx, testOwner, entity.CollectionInvoices)
	require.NoError(t, err)

	status, err = engine.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Reachable)
	assert.Equal(t, clock.Now(), status.LastPull[entity.CollectionInvoices])
}
