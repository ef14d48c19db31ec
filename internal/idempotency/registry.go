// Package idempotency implements the (actor_type, actor_id, operation_id,
// client_key) replay contract from §4.4/I1: the first request with a given
// scope executes and caches its outcome; a repeat with the same payload
// hash replays the cached outcome byte-for-byte; a repeat with a different
// payload hash is rejected as a conflict.
package idempotency

import (
	"swapgraph/internal/apierror"
	"swapgraph/internal/store"
)

// Result is the cached or freshly produced outcome of a scoped operation.
type Result struct {
	StatusCode int
	Body       []byte
	Replayed   bool
}

// Registry mediates idempotent execution against a StateStore, optionally
// mirroring entries into a durable side-store so dedup survives a restart
// before the next full snapshot is taken.
type Registry struct {
	store   *store.StateStore
	durable DurablePersistence
}

// DurablePersistence is the optional leveldb-backed mirror (see leveldb.go).
type DurablePersistence interface {
	Put(scopeKey string, entry store.IdempotencyEntry) error
	All() (map[string]store.IdempotencyEntry, error)
	Close() error
}

// New constructs a Registry. If durable is non-nil, its contents are
// replayed into st on construction so a process restart does not forget
// keys that have not yet made it into a bbolt snapshot.
func New(st *store.StateStore, durable DurablePersistence) (*Registry, error) {
	r := &Registry{store: st, durable: durable}
	if durable != nil {
		entries, err := durable.All()
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			_ = st.Update(func(d *store.Document) error {
				for key, entry := range entries {
					if _, exists := d.Idempotency[key]; !exists {
						d.Idempotency[key] = entry
					}
				}
				return nil
			})
		}
	}
	return r, nil
}

// ScopeKey builds the composite key §4.4 defines.
func ScopeKey(actorType, actorID, operationID, clientKey string) string {
	return actorType + "|" + actorID + "|" + operationID + "|" + clientKey
}

// Execute runs fn exactly once per (scopeKey, payloadHash). A second call
// with the same scopeKey and the same payloadHash returns the first call's
// result with Replayed set. A second call with the same scopeKey and a
// different payloadHash returns an IdempotencyPayloadMismatch error without
// invoking fn.
func (r *Registry) Execute(scopeKey, payloadHash string, fn func() (Result, error)) (Result, error) {
	var cached *store.IdempotencyEntry
	r.store.View(func(d *store.Document) {
		if entry, ok := d.Idempotency[scopeKey]; ok {
			e := entry
			cached = &e
		}
	})
	if cached != nil {
		if cached.PayloadHash != payloadHash {
			return Result{}, apierror.New(apierror.IdempotencyPayloadMismatch,
				"idempotency key reused with a different request payload").
				WithDetails(map[string]interface{}{"scope_key": scopeKey})
		}
		return Result{StatusCode: cached.StatusCode, Body: cached.Result, Replayed: true}, nil
	}

	result, err := fn()
	if err != nil {
		return Result{}, err
	}

	entry := store.IdempotencyEntry{
		ScopeKey:    scopeKey,
		PayloadHash: payloadHash,
		StatusCode:  result.StatusCode,
		Result:      result.Body,
	}
	if err := r.store.Update(func(d *store.Document) error {
		d.Idempotency[scopeKey] = entry
		return nil
	}); err != nil {
		return Result{}, err
	}
	if r.durable != nil {
		if err := r.durable.Put(scopeKey, entry); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

// Close releases the durable side-store, if any.
func (r *Registry) Close() error {
	if r.durable == nil {
		return nil
	}
	return r.durable.Close()
}
