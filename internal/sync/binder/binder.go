package binder

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/events"
	"github.com/openbracket/tourneysync/internal/sync/localcache"
)

// Lister is the one slice of the remote gateway a binder needs.
type Lister interface {
	List(ctx context.Context, c collection.Name) ([]json.RawMessage, error)
}

// Binder keeps one collection's reconciled state. All mutation goes through
// Replace/Upsert/Remove; no caller ever holds a reference into the state.
// Reads come from Snapshot. The binder carries a liveness flag so async
// completions arriving after Close are dropped instead of applied.
type Binder struct {
	collection  collection.Name
	cache       *localcache.Store
	gateway     Lister
	broadcaster *broadcast.Broadcaster
	logger      *logging.Logger

	mu    sync.RWMutex
	state state

	alive atomic.Bool
}

type Deps struct {
	Cache       *localcache.Store
	Gateway     Lister
	Broadcaster *broadcast.Broadcaster
	Logger      *logging.Logger
}

func New(c collection.Name, deps Deps) *Binder {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	b := &Binder{
		collection:  c,
		cache:       deps.Cache,
		gateway:     deps.Gateway,
		broadcaster: deps.Broadcaster,
		logger:      logger.With("collection", string(c)),
		state:       newState(c),
	}
	b.alive.Store(true)
	return b
}

func (b *Binder) Collection() collection.Name {
	return b.collection
}

// Snapshot returns the current records. Map-shaped collections come back in
// stable key order, list-shaped in their append order.
func (b *Binder) Snapshot() []json.RawMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.snapshot()
}

// Find returns the record with the given logical key, if present.
func (b *Binder) Find(key string) (json.RawMessage, bool) {
	if key == "" {
		return nil, false
	}
	for _, record := range b.Snapshot() {
		if recordKey(record) == key {
			return record, true
		}
	}
	return nil, false
}

// Upsert merges one record and writes the new snapshot through the cache.
func (b *Binder) Upsert(key string, record json.RawMessage) {
	if !b.alive.Load() {
		return
	}

	b.mu.Lock()
	b.state.upsert(key, record)
	serialized, err := b.state.serialized()
	b.mu.Unlock()

	b.writeThrough(serialized, err)
}

// Remove drops the record with the given key. Unknown keys are a no-op.
func (b *Binder) Remove(key string) {
	if !b.alive.Load() || key == "" {
		return
	}

	b.mu.Lock()
	b.state.remove(key)
	serialized, err := b.state.serialized()
	b.mu.Unlock()

	b.writeThrough(serialized, err)
}

// Replace swaps the whole collection state.
func (b *Binder) Replace(records []json.RawMessage) {
	if !b.alive.Load() {
		return
	}

	b.mu.Lock()
	b.state.replace(records)
	serialized, err := b.state.serialized()
	b.mu.Unlock()

	b.writeThrough(serialized, err)
}

// Load hydrates the binder: cached snapshot first so reads work offline,
// then the remote list. A remote failure or an empty remote result keeps
// the cached state; the initial load never regresses past the last locally
// known state.
func (b *Binder) Load(ctx context.Context) error {
	if raw, ok := b.cacheRead(); ok {
		b.mu.Lock()
		if err := b.state.replaceSerialized(raw); err != nil {
			b.logger.Warn("discard unreadable cached snapshot", "error", err)
		}
		b.mu.Unlock()
	}

	records, err := b.gateway.List(ctx, b.collection)
	if err != nil {
		b.logger.WarnContext(ctx, "initial load degraded to cached state", "error", err)
		return err
	}
	if !b.alive.Load() {
		return nil
	}
	if len(records) == 0 {
		return nil
	}

	b.Replace(records)
	return nil
}

// Reconcile pulls the remote list and swaps it in only when the serialized
// forms differ. Last read wins; local unsynced edits are overwritten.
func (b *Binder) Reconcile(ctx context.Context) error {
	records, err := b.gateway.List(ctx, b.collection)
	if err != nil {
		b.logger.DebugContext(ctx, "reconcile skipped", "error", err)
		return err
	}
	if !b.alive.Load() {
		return nil
	}

	incoming := newState(b.collection)
	incoming.replace(records)
	incomingSerialized, err := incoming.serialized()
	if err != nil {
		return err
	}

	b.mu.Lock()
	currentSerialized, serr := b.state.serialized()
	if serr == nil && bytes.Equal(currentSerialized, incomingSerialized) {
		b.mu.Unlock()
		return nil
	}
	b.state = incoming
	b.mu.Unlock()

	b.writeThrough(incomingSerialized, nil)
	return nil
}

// ApplyEvent merges a push event from the realtime channel.
func (b *Binder) ApplyEvent(event string, payload []byte) {
	if !b.alive.Load() {
		return
	}

	switch event {
	case events.Created(b.collection), events.Updated(b.collection):
		record, ok := events.DecodeRecord(b.collection, payload)
		if !ok {
			b.logger.Warn("drop malformed push event", "event", event)
			return
		}
		b.Upsert("", record)
	case events.Deleted(b.collection):
		id, ok := events.DecodeDeletedID(b.collection, payload)
		if !ok {
			b.logger.Warn("drop malformed delete event", "event", event)
			return
		}
		b.Remove(id)
	}
}

// ApplyBroadcast merges an envelope from another context in this process.
// Whole-snapshot updates are ignored when byte-identical to current state,
// which also stops a context echoing its own broadcasts back into churn.
func (b *Binder) ApplyBroadcast(env broadcast.Envelope) {
	if !b.alive.Load() || env.Collection != b.collection {
		return
	}

	switch env.Type {
	case broadcast.TypeDataUpdate:
		b.mu.Lock()
		current, err := b.state.serialized()
		if err == nil && bytes.Equal(current, env.Value) {
			b.mu.Unlock()
			return
		}
		if err := b.state.replaceSerialized(env.Value); err != nil {
			b.logger.Warn("drop malformed broadcast snapshot", "error", err)
		}
		b.mu.Unlock()
	case broadcast.TypeEntityCreated, broadcast.TypeEntityUpdated:
		b.Upsert(env.Key, json.RawMessage(env.Value))
	case broadcast.TypeEntityDeleted:
		b.Remove(env.Key)
	}
}

// Close flips the liveness flag. In-flight loads and reconciles complete
// without touching state.
func (b *Binder) Close() {
	b.alive.Store(false)
}

func (b *Binder) Live() bool {
	return b.alive.Load()
}

func (b *Binder) cacheRead() ([]byte, bool) {
	if b.cache == nil {
		return nil, false
	}
	return b.cache.Get(string(b.collection))
}

func (b *Binder) writeThrough(serialized []byte, err error) {
	if err != nil {
		b.logger.Warn("serialize collection state failed", "error", err)
		return
	}
	if b.cache != nil {
		b.cache.Set(string(b.collection), serialized)
	}
	if b.broadcaster != nil {
		if berr := b.broadcaster.DataUpdate(b.collection, string(b.collection), serialized); berr != nil {
			b.logger.Warn("broadcast collection state failed", "error", berr)
		}
	}
}

// DecodeSnapshot unmarshals every record into T, skipping records that do
// not parse.
func DecodeSnapshot[T any](b *Binder) []T {
	records := b.Snapshot()
	out := make([]T, 0, len(records))
	for _, record := range records {
		var item T
		if err := sonic.Unmarshal(record, &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	return out
}
