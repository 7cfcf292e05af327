package syncop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/localcache"
)

func newRunner(t *testing.T) (*Runner, *localcache.Store, *broadcast.Broadcaster) {
	t.Helper()

	cache, err := localcache.Open("", logging.NewNop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	broadcaster := broadcast.New(logging.NewNop())
	t.Cleanup(func() { broadcaster.Close() })

	return NewRunner(cache, broadcaster, logging.NewNop()), cache, broadcaster
}

func TestRun_RemoteFailureKeepsLocalState(t *testing.T) {
	t.Parallel()

	runner, cache, _ := newRunner(t)

	state := map[string]string{}
	result := runner.Run(context.Background(), Operation{
		Name:       "create team",
		Collection: collection.Teams,
		LocalUpdate: func() error {
			state["AB2345"] = "Alpha"
			return nil
		},
		CacheKey:   "teams",
		CacheValue: state,
		RemoteCall: func(ctx context.Context) error {
			return errors.New("central store unreachable")
		},
	})

	if result.Success {
		t.Fatal("remote failure must not report full success")
	}
	if !result.Applied {
		t.Fatal("local update must survive the remote failure")
	}
	if result.Err == nil {
		t.Fatal("degraded result should carry the remote error")
	}
	if state["AB2345"] != "Alpha" {
		t.Fatal("local state rolled back")
	}
	var cached map[string]string
	if found, err := cache.GetValue("teams", &cached); err != nil || !found {
		t.Fatalf("cache write-through missing: found=%v err=%v", found, err)
	}
}

func TestRun_LocalFailureAbortsEverything(t *testing.T) {
	t.Parallel()

	runner, cache, _ := newRunner(t)

	remoteCalled := false
	result := runner.Run(context.Background(), Operation{
		Name:       "create team",
		Collection: collection.Teams,
		LocalUpdate: func() error {
			return errors.New("duplicate access code")
		},
		CacheKey:   "teams",
		CacheValue: map[string]string{},
		RemoteCall: func(ctx context.Context) error {
			remoteCalled = true
			return nil
		},
	})

	if result.Applied || result.Success {
		t.Fatalf("failed local update must abort: %+v", result)
	}
	if remoteCalled {
		t.Fatal("remote call ran after local failure")
	}
	if _, ok := cache.Get("teams"); ok {
		t.Fatal("cache written after local failure")
	}
}

func TestRun_BroadcastsCacheValue(t *testing.T) {
	t.Parallel()

	runner, _, broadcaster := newRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := broadcaster.Subscribe(ctx, broadcast.DataChannel(collection.Matches))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	result := runner.Run(ctx, Operation{
		Name:       "approve submission",
		Collection: collection.Matches,
		CacheKey:   "matches",
		CacheValue: []string{"m-1"},
	})
	if !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}

	select {
	case env := <-updates:
		if env.Type != broadcast.TypeDataUpdate || env.Key != "matches" {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast observed")
	}
}

func TestRun_PanicIsContained(t *testing.T) {
	t.Parallel()

	runner, _, _ := newRunner(t)

	result := runner.Run(context.Background(), Operation{
		Name: "bad operation",
		LocalUpdate: func() error {
			panic("boom")
		},
	})

	if result.Applied || result.Success {
		t.Fatalf("panicked operation reported progress: %+v", result)
	}
	if result.Err == nil {
		t.Fatal("panic should surface as an error")
	}
}
