package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/handwerkpro/handwerk-api/internal/domain"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

// KV keys. The cache is one JSON array per collection, the queue a single
// global FIFO, the last-pull map one JSON object.
const (
	cacheKeyPrefix = "cache:"
	queueKey       = "sync:queue"
	lastPullKey    = "sync:last_pull"
)

// Report summarizes one queue flush. Items are retried independently:
// Synced were confirmed remotely and removed, Failed stay queued with
// backoff, Rejected were refused permanently and dropped.
type Report struct {
	Synced   int `json:"synced"`
	Failed   int `json:"failed"`
	Rejected int `json:"rejected"`
}

// Status is the observability surface of the engine. Sync failures are
// silent by design; this is the only place they show up.
type Status struct {
	Reachable   bool                 `json:"reachable"`
	QueueLength int                  `json:"queue_length"`
	LastPull    map[string]time.Time `json:"last_pull"`
}

// Options tunes the engine. The zero value gets sensible defaults.
type Options struct {
	Now       func() time.Time
	RetryBase time.Duration // first backoff step for a failed queue item
	RetryMax  time.Duration // backoff cap
}

// Engine keeps a local cache available for instant reads and writes and
// eventually converges the remote store to reflect every confirmed local
// mutation. Local writes never fail short of storage errors; remote failures
// are converted into queue entries, never surfaced to the caller.
//
// A single mutex serializes every access to the cache and the queue. The
// source environment got that for free from its single UI thread; here it
// must be explicit.
type Engine struct {
	mu     sync.Mutex
	store  repository.KVStore
	remote repository.RemoteStore
	conn   repository.ConnectivityState
	log    *logger.Logger

	now       func() time.Time
	retryBase time.Duration
	retryMax  time.Duration
}

// NewEngine wires the engine to its collaborators.
func NewEngine(store repository.KVStore, remote repository.RemoteStore, conn repository.ConnectivityState, log *logger.Logger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 30 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 30 * time.Minute
	}
	return &Engine{
		store:     store,
		remote:    remote,
		conn:      conn,
		log:       log,
		now:       opts.Now,
		retryBase: opts.RetryBase,
		retryMax:  opts.RetryMax,
	}
}

// Upsert writes the record into the local cache immediately and attempts the
// remote upsert when reachable. On any transient remote failure the mutation
// is queued and the call still succeeds with the locally written record.
// A permanent remote rejection is logged and not retried; the local copy
// stands until the next pull.
func (e *Engine) Upsert(ctx context.Context, ownerID, collection string, rec entity.Record) (entity.Record, error) {
	if collection == "" {
		return entity.Record{}, domain.ErrInvalidInput
	}
	now := e.now()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.DeletedAt = nil

	e.mu.Lock()
	stored, err := e.cacheUpsertLocked(collection, rec)
	e.mu.Unlock()
	if err != nil {
		return entity.Record{}, err // local storage failure is fatal
	}

	if !e.conn.IsReachable(ctx) {
		return stored, e.enqueue(ownerID, collection, entity.ActionUpsert, stored)
	}

	remoteCopy, err := e.remote.Upsert(ctx, ownerID, collection, stored)
	switch {
	case err == nil:
		e.mu.Lock()
		stored, err = e.cacheUpsertLocked(collection, remoteCopy)
		e.mu.Unlock()
		if err != nil {
			return entity.Record{}, err
		}
		return stored, nil
	case errors.Is(err, domain.ErrRejected):
		e.log.Error().Err(err).Str("collection", collection).Str("id", rec.ID).
			Msg("remote rejected upsert, keeping local copy without retry")
		return stored, nil
	default:
		e.log.Warn().Err(err).Str("collection", collection).Str("id", rec.ID).
			Msg("remote upsert failed, queueing")
		return stored, e.enqueue(ownerID, collection, entity.ActionUpsert, stored)
	}
}

// Remove deletes locally first and queues the remote delete on failure.
func (e *Engine) Remove(ctx context.Context, ownerID, collection, id string) error {
	if collection == "" || id == "" {
		return domain.ErrInvalidInput
	}
	e.mu.Lock()
	err := e.cacheRemoveLocked(collection, id)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	tomb := entity.Record{ID: id}
	if !e.conn.IsReachable(ctx) {
		return e.enqueue(ownerID, collection, entity.ActionDelete, tomb)
	}

	err = e.remote.Delete(ctx, ownerID, collection, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrRejected):
		e.log.Error().Err(err).Str("collection", collection).Str("id", id).
			Msg("remote rejected delete, not retrying")
		return nil
	default:
		e.log.Warn().Err(err).Str("collection", collection).Str("id", id).
			Msg("remote delete failed, queueing")
		return e.enqueue(ownerID, collection, entity.ActionDelete, tomb)
	}
}

// Pull fetches the collection from the remote store, merges it into the
// local cache last-write-wins (the local copy survives only when strictly
// newer) and returns the merged sequence. Unreachable pulls return the local
// cache unchanged.
func (e *Engine) Pull(ctx context.Context, ownerID, collection string) ([]entity.Record, error) {
	if collection == "" {
		return nil, domain.ErrInvalidInput
	}
	if !e.conn.IsReachable(ctx) {
		return e.List(collection)
	}

	remoteRecs, err := e.remote.Select(ctx, ownerID, collection)
	if err != nil {
		// Any select failure counts as unreachable for this call.
		e.log.Warn().Err(err).Str("collection", collection).Msg("pull failed, serving local cache")
		return e.List(collection)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	local, err := e.loadCacheLocked(collection)
	if err != nil {
		return nil, err
	}
	merged := mergeLWW(local, remoteRecs)
	if err := e.saveCacheLocked(collection, merged); err != nil {
		return nil, err
	}
	if err := e.touchLastPullLocked(collection); err != nil {
		return nil, err
	}
	return cloneAll(merged), nil
}

// FlushQueue drains the sync queue in FIFO order, attempting each due item
// independently. Successes are removed, transient failures stay with an
// increased backoff, permanent rejections are dropped and logged. Only local
// storage errors abort the flush.
func (e *Engine) FlushQueue(ctx context.Context) (Report, error) {
	if !e.conn.IsReachable(ctx) {
		return Report{}, nil
	}
	e.mu.Lock()
	snapshot, err := e.loadQueueLocked()
	e.mu.Unlock()
	if err != nil {
		return Report{}, err
	}
	if len(snapshot) == 0 {
		return Report{}, nil
	}

	var report Report
	done := make(map[string]bool, len(snapshot))    // item ID -> remove from queue
	updated := make(map[string]entity.QueueItem)    // item ID -> retry bookkeeping
	var serverCopies []struct {
		collection string
		rec        entity.Record
	}

	now := e.now()
	for _, item := range snapshot {
		if !item.Due(now) {
			continue
		}
		var err error
		var remoteCopy entity.Record
		switch item.Action {
		case entity.ActionUpsert:
			remoteCopy, err = e.remote.Upsert(ctx, item.OwnerID, item.Collection, item.Record)
		case entity.ActionDelete:
			err = e.remote.Delete(ctx, item.OwnerID, item.Collection, item.Record.ID)
		default:
			e.log.Error().Str("action", item.Action).Msg("unknown queue action, dropping item")
			done[item.ID] = true
			report.Rejected++
			continue
		}

		switch {
		case err == nil:
			done[item.ID] = true
			report.Synced++
			if item.Action == entity.ActionUpsert {
				serverCopies = append(serverCopies, struct {
					collection string
					rec        entity.Record
				}{item.Collection, remoteCopy})
			}
		case errors.Is(err, domain.ErrRejected):
			e.log.Error().Err(err).Str("collection", item.Collection).Str("id", item.Record.ID).
				Msg("remote rejected queued mutation, dropping")
			done[item.ID] = true
			report.Rejected++
		default:
			item.RetryCount++
			item.NextRetryAt = now.Add(e.backoff(item.RetryCount))
			updated[item.ID] = item
			report.Failed++
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Reload: mutations enqueued while the flush ran must survive.
	queue, err := e.loadQueueLocked()
	if err != nil {
		return report, err
	}
	kept := queue[:0]
	for _, item := range queue {
		if done[item.ID] {
			continue
		}
		if up, ok := updated[item.ID]; ok {
			item = up
		}
		kept = append(kept, item)
	}
	if err := e.saveQueueLocked(kept); err != nil {
		return report, err
	}
	for _, sc := range serverCopies {
		if _, err := e.cacheUpsertLocked(sc.collection, sc.rec); err != nil {
			return report, err
		}
	}
	return report, nil
}

// List returns the local cache of a collection without touching the remote.
func (e *Engine) List(collection string) ([]entity.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	recs, err := e.loadCacheLocked(collection)
	if err != nil {
		return nil, err
	}
	return cloneAll(recs), nil
}

// Get returns one cached record, or domain.ErrNotFound.
func (e *Engine) Get(collection, id string) (entity.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	recs, err := e.loadCacheLocked(collection)
	if err != nil {
		return entity.Record{}, err
	}
	for _, r := range recs {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return entity.Record{}, domain.ErrNotFound
}

// Status reports queue length, per-collection last pull times and current
// reachability.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	reachable := e.conn.IsReachable(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	queue, err := e.loadQueueLocked()
	if err != nil {
		return Status{}, err
	}
	lastPull, err := e.loadLastPullLocked()
	if err != nil {
		return Status{}, err
	}
	return Status{Reachable: reachable, QueueLength: len(queue), LastPull: lastPull}, nil
}

// ── queueing ─────────────────────────────────────────────────────────────────

// enqueue appends a mutation, coalescing with any pending item for the same
// record: the last mutation per (owner, collection, id) is the only one worth
// replaying, and an upsert after a queued delete supersedes it.
func (e *Engine) enqueue(ownerID, collection, action string, rec entity.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	queue, err := e.loadQueueLocked()
	if err != nil {
		return err
	}
	kept := queue[:0]
	for _, item := range queue {
		if item.OwnerID == ownerID && item.Collection == collection && item.Record.ID == rec.ID {
			continue
		}
		kept = append(kept, item)
	}
	kept = append(kept, entity.QueueItem{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Collection: collection,
		Action:     action,
		Record:     rec.Clone(),
		EnqueuedAt: e.now(),
	})
	return e.saveQueueLocked(kept)
}

func (e *Engine) backoff(retryCount int) time.Duration {
	d := e.retryBase
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= e.retryMax {
			return e.retryMax
		}
	}
	if d > e.retryMax {
		return e.retryMax
	}
	return d
}

// ── merge ────────────────────────────────────────────────────────────────────

// mergeLWW merges the remote state into the local cache. The remote copy
// wins unless the local one is strictly newer; remote tombstones delete the
// local copy under the same rule. Local-only records are kept (they are
// either queued for push or were created offline).
func mergeLWW(local, remote []entity.Record) []entity.Record {
	byID := make(map[string]entity.Record, len(local))
	order := make([]string, 0, len(local))
	for _, l := range local {
		byID[l.ID] = l
		order = append(order, l.ID)
	}

	for _, r := range remote {
		l, exists := byID[r.ID]
		if exists && l.NewerThan(r) {
			continue // local copy is strictly newer
		}
		if r.IsTombstone() {
			if exists {
				delete(byID, r.ID)
			}
			continue
		}
		if !exists {
			order = append(order, r.ID)
		}
		byID[r.ID] = r
	}

	merged := make([]entity.Record, 0, len(byID))
	for _, id := range order {
		if rec, ok := byID[id]; ok {
			merged = append(merged, rec)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}

// ── persistence (callers hold e.mu) ──────────────────────────────────────────

func (e *Engine) loadCacheLocked(collection string) ([]entity.Record, error) {
	raw, ok, err := e.store.Get(cacheKeyPrefix + collection)
	if err != nil {
		return nil, fmt.Errorf("load cache %s: %w", collection, err)
	}
	if !ok {
		return nil, nil
	}
	var recs []entity.Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", collection, err)
	}
	return recs, nil
}

func (e *Engine) saveCacheLocked(collection string, recs []entity.Record) error {
	raw, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", collection, err)
	}
	if err := e.store.Set(cacheKeyPrefix+collection, raw); err != nil {
		return fmt.Errorf("save cache %s: %w", collection, err)
	}
	return nil
}

// cacheUpsertLocked inserts the record or merge-overwrites the cached copy's
// fields, returning the stored result.
func (e *Engine) cacheUpsertLocked(collection string, rec entity.Record) (entity.Record, error) {
	recs, err := e.loadCacheLocked(collection)
	if err != nil {
		return entity.Record{}, err
	}
	stored := rec.Clone()
	found := false
	for i, existing := range recs {
		if existing.ID != rec.ID {
			continue
		}
		if existing.Fields != nil {
			merged := make(map[string]any, len(existing.Fields)+len(rec.Fields))
			for k, v := range existing.Fields {
				merged[k] = v
			}
			for k, v := range rec.Fields {
				merged[k] = v
			}
			stored.Fields = merged
		}
		if stored.CreatedAt.IsZero() || (!existing.CreatedAt.IsZero() && existing.CreatedAt.Before(stored.CreatedAt)) {
			stored.CreatedAt = existing.CreatedAt
		}
		recs[i] = stored
		found = true
		break
	}
	if !found {
		recs = append(recs, stored)
	}
	if err := e.saveCacheLocked(collection, recs); err != nil {
		return entity.Record{}, err
	}
	return stored.Clone(), nil
}

func (e *Engine) cacheRemoveLocked(collection, id string) error {
	recs, err := e.loadCacheLocked(collection)
	if err != nil {
		return err
	}
	kept := recs[:0]
	for _, r := range recs {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	return e.saveCacheLocked(collection, kept)
}

func (e *Engine) loadQueueLocked() ([]entity.QueueItem, error) {
	raw, ok, err := e.store.Get(queueKey)
	if err != nil {
		return nil, fmt.Errorf("load sync queue: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var items []entity.QueueItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode sync queue: %w", err)
	}
	return items, nil
}

func (e *Engine) saveQueueLocked(items []entity.QueueItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode sync queue: %w", err)
	}
	if err := e.store.Set(queueKey, raw); err != nil {
		return fmt.Errorf("save sync queue: %w", err)
	}
	return nil
}

func (e *Engine) loadLastPullLocked() (map[string]time.Time, error) {
	raw, ok, err := e.store.Get(lastPullKey)
	if err != nil {
		return nil, fmt.Errorf("load last-pull map: %w", err)
	}
	if !ok {
		return map[string]time.Time{}, nil
	}
	m := map[string]time.Time{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode last-pull map: %w", err)
	}
	return m, nil
}

func (e *Engine) touchLastPullLocked(collection string) error {
	m, err := e.loadLastPullLocked()
	if err != nil {
		return err
	}
	m[collection] = e.now()
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode last-pull map: %w", err)
	}
	if err := e.store.Set(lastPullKey, raw); err != nil {
		return fmt.Errorf("save last-pull map: %w", err)
	}
	return nil
}

func cloneAll(recs []entity.Record) []entity.Record {
	out := make([]entity.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
