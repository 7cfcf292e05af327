package binder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/localcache"
	"github.com/openbracket/tourneysync/internal/sync/syncerr"
)

type stubGateway struct {
	mu      sync.Mutex
	records map[collection.Name][]json.RawMessage
	err     error
	calls   int
}

func (s *stubGateway) List(_ context.Context, c collection.Name) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records[c], nil
}

func (s *stubGateway) set(c collection.Name, records ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[collection.Name][]json.RawMessage)
	}
	out := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		out = append(out, json.RawMessage(r))
	}
	s.records[c] = out
}

func newTestBinder(t *testing.T, c collection.Name, gw *stubGateway) (*Binder, *localcache.Store) {
	t.Helper()
	cache, err := localcache.Open("", logging.NewNop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	return New(c, Deps{Cache: cache, Gateway: gw, Logger: logging.NewNop()}), cache
}

func TestBinder_UpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	b, _ := newTestBinder(t, collection.Teams, &stubGateway{})
	record := json.RawMessage(`{"accessCode":"AB2345","name":"Alpha"}`)

	b.Upsert("", record)
	b.Upsert("", record)
	b.Upsert("", record)

	if got := len(b.Snapshot()); got != 1 {
		t.Fatalf("repeated upsert produced %d records, want 1", got)
	}
}

func TestBinder_RemoveUnknownKeyIsNoOp(t *testing.T) {
	t.Parallel()

	b, _ := newTestBinder(t, collection.Matches, &stubGateway{})
	b.Upsert("", json.RawMessage(`{"id":"m-1"}`))

	b.Remove("never-existed")

	if got := len(b.Snapshot()); got != 1 {
		t.Fatalf("remove of unknown key changed state: %d records", got)
	}
}

func TestBinder_LoadFallsBackToCache(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{err: syncerr.NewRemoteError("unreachable")}
	b, cache := newTestBinder(t, collection.Teams, gw)
	cache.Set("teams", []byte(`{"AB2345":{"accessCode":"AB2345","name":"Alpha"}}`))

	if err := b.Load(context.Background()); err == nil {
		t.Fatal("expected degraded load to report the remote error")
	}

	if got := len(b.Snapshot()); got != 1 {
		t.Fatalf("cached state not hydrated: %d records", got)
	}
}

func TestBinder_LoadKeepsCacheOnEmptyRemote(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{}
	gw.set(collection.Teams)
	b, cache := newTestBinder(t, collection.Teams, gw)
	cached := []byte(`{"AB2345":{"accessCode":"AB2345","name":"Alpha"}}`)
	cache.Set("teams", cached)

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := len(b.Snapshot()); got != 1 {
		t.Fatalf("empty remote result wiped cached state: %d records", got)
	}
	raw, ok := cache.Get("teams")
	if !ok || string(raw) != string(cached) {
		t.Fatalf("cache snapshot regressed: %s", raw)
	}
}

func TestBinder_ReconcileLastReadWins(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{}
	gw.set(collection.Teams, `{"accessCode":"AB2345","name":"Renamed Remotely"}`)
	b, _ := newTestBinder(t, collection.Teams, gw)

	// Local unsynced edit.
	b.Upsert("", json.RawMessage(`{"accessCode":"AB2345","name":"Local Edit"}`))

	if err := b.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	record, ok := b.Find("AB2345")
	if !ok {
		t.Fatal("record lost in reconcile")
	}
	var team struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(record, &team); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if team.Name != "Renamed Remotely" {
		t.Fatalf("last read should win, got %q", team.Name)
	}
}

func TestBinder_ReconcileSkipsEqualState(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{}
	gw.set(collection.Matches, `{"id":"m-1","kills":4}`)
	cache, err := localcache.Open("", logging.NewNop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	broadcaster := broadcast.New(logging.NewNop())
	defer broadcaster.Close()

	b := New(collection.Matches, Deps{Cache: cache, Gateway: gw, Broadcaster: broadcaster, Logger: logging.NewNop()})
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := broadcaster.Subscribe(ctx, broadcast.DataChannel(collection.Matches))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	select {
	case env := <-updates:
		t.Fatalf("reconcile of identical state should not broadcast, got %+v", env)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestBinder_CloseDropsAsyncCompletions(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{}
	gw.set(collection.Teams, `{"accessCode":"AB2345"}`)
	b, _ := newTestBinder(t, collection.Teams, gw)

	b.Close()
	_ = b.Load(context.Background())
	b.Upsert("", json.RawMessage(`{"accessCode":"CD6789"}`))
	b.ApplyEvent("teamsCreated", []byte(`{"team":{"accessCode":"EF2345"}}`))

	if got := len(b.Snapshot()); got != 0 {
		t.Fatalf("closed binder applied %d records", got)
	}
}

func TestBinder_ApplyEventMergesPush(t *testing.T) {
	t.Parallel()

	b, _ := newTestBinder(t, collection.Teams, &stubGateway{})

	b.ApplyEvent("teamsCreated", []byte(`{"team":{"accessCode":"AB2345","name":"Alpha"}}`))
	b.ApplyEvent("teamsUpdated", []byte(`{"team":{"accessCode":"AB2345","name":"Alpha Prime"}}`))

	record, ok := b.Find("AB2345")
	if !ok {
		t.Fatal("push event not applied")
	}
	var team struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(record, &team); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if team.Name != "Alpha Prime" {
		t.Fatalf("update event not applied, got %q", team.Name)
	}

	b.ApplyEvent("teamsDeleted", []byte(`{"teamId":"AB2345"}`))
	if _, ok := b.Find("AB2345"); ok {
		t.Fatal("delete event not applied")
	}
}

func TestBinders_ConvergeAcrossContexts(t *testing.T) {
	t.Parallel()

	broadcaster := broadcast.New(logging.NewNop())
	defer broadcaster.Close()
	cacheA, _ := localcache.Open("", logging.NewNop())
	cacheB, _ := localcache.Open("", logging.NewNop())

	contextA := New(collection.Teams, Deps{Cache: cacheA, Gateway: &stubGateway{}, Broadcaster: broadcaster, Logger: logging.NewNop()})
	contextB := New(collection.Teams, Deps{Cache: cacheB, Gateway: &stubGateway{}, Broadcaster: broadcaster, Logger: logging.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	envelopes, err := broadcaster.Subscribe(ctx, broadcast.DataChannel(collection.Teams))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for env := range envelopes {
			contextB.ApplyBroadcast(env)
			if _, ok := contextB.Find("AB2345"); ok {
				return
			}
		}
	}()

	contextA.Upsert("", json.RawMessage(`{"accessCode":"AB2345","name":"Alpha"}`))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("contexts did not converge")
	}

	recordA, _ := contextA.Find("AB2345")
	recordB, ok := contextB.Find("AB2345")
	if !ok || string(recordA) != string(recordB) {
		t.Fatalf("diverged: %s vs %s", recordA, recordB)
	}
}

func TestAuditBinder_CapsAtMaxEntries(t *testing.T) {
	t.Parallel()

	b, _ := newTestBinder(t, collection.AuditLogs, &stubGateway{})

	for i := 0; i < 1005; i++ {
		b.Upsert("", json.RawMessage(fmt.Sprintf(`{"id":"log-%d"}`, i)))
	}

	snapshot := b.Snapshot()
	if len(snapshot) != 1000 {
		t.Fatalf("audit log holds %d entries, want 1000", len(snapshot))
	}
	if key := recordKey(snapshot[0]); key != "log-1004" {
		t.Fatalf("newest entry should be first, got %s", key)
	}
}

func TestAuditBinder_ReconcileKeepsNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	gw := &stubGateway{}
	gw.set(collection.AuditLogs,
		fmt.Sprintf(`{"id":"log-a","createdAt":%q}`, base.Format(time.RFC3339)),
		fmt.Sprintf(`{"id":"log-b","createdAt":%q}`, base.Add(time.Minute).Format(time.RFC3339)),
		fmt.Sprintf(`{"id":"log-c","createdAt":%q}`, base.Add(2*time.Minute).Format(time.RFC3339)),
	)
	b, _ := newTestBinder(t, collection.AuditLogs, gw)

	if err := b.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	snapshot := b.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("audit log holds %d entries, want 3", len(snapshot))
	}
	if key := recordKey(snapshot[0]); key != "log-c" {
		t.Fatalf("newest entry should be first after reconcile, got %s", key)
	}
	if key := recordKey(snapshot[2]); key != "log-a" {
		t.Fatalf("oldest entry should be last after reconcile, got %s", key)
	}
}

func TestAuditBinder_BroadcastSnapshotRespectsCap(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	b, _ := newTestBinder(t, collection.AuditLogs, &stubGateway{})

	oversized := make([]json.RawMessage, 0, 1005)
	for i := 0; i < 1005; i++ {
		oversized = append(oversized, json.RawMessage(fmt.Sprintf(
			`{"id":"log-%d","createdAt":%q}`, i, base.Add(time.Duration(i)*time.Second).Format(time.RFC3339),
		)))
	}
	value, err := json.Marshal(oversized)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	b.ApplyBroadcast(broadcast.Envelope{
		Type:       broadcast.TypeDataUpdate,
		Collection: collection.AuditLogs,
		Key:        string(collection.AuditLogs),
		Value:      value,
	})

	snapshot := b.Snapshot()
	if len(snapshot) != 1000 {
		t.Fatalf("oversized broadcast snapshot bypassed the cap: %d entries", len(snapshot))
	}
	if key := recordKey(snapshot[0]); key != "log-1004" {
		t.Fatalf("newest entry should be first, got %s", key)
	}
	if key := recordKey(snapshot[999]); key != "log-5" {
		t.Fatalf("trim should drop the oldest entries, got %s at the tail", key)
	}
}
