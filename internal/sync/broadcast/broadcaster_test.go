package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/logging"
)

func receiveOne(t *testing.T, ch <-chan Envelope) Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return Envelope{}
	}
}

func TestBroadcaster_DataUpdateReachesCollectionSubscribers(t *testing.T) {
	t.Parallel()

	b := New(logging.NewNop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	teams, err := b.Subscribe(ctx, DataChannel(collection.Teams))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	matches, err := b.Subscribe(ctx, DataChannel(collection.Matches))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.DataUpdate(collection.Teams, "teams", []byte(`{"AB1234":{"name":"Alpha"}}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	env := receiveOne(t, teams)
	if env.Type != TypeDataUpdate || env.Collection != collection.Teams {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if string(env.Value) != `{"AB1234":{"name":"Alpha"}}` {
		t.Fatalf("payload mangled: %s", env.Value)
	}

	select {
	case leaked := <-matches:
		t.Fatalf("matches channel received teams update: %+v", leaked)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcaster_FansOutToEverySubscriber(t *testing.T) {
	t.Parallel()

	b := New(logging.NewNop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := b.Subscribe(ctx, GlobalChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	second, err := b.Subscribe(ctx, GlobalChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.Control(TypeTournamentTerminated, "t-100"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, ch := range []<-chan Envelope{first, second} {
		env := receiveOne(t, ch)
		if env.Type != TypeTournamentTerminated || env.Key != "t-100" {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	}
}

func TestBroadcaster_EntityEventCarriesRecord(t *testing.T) {
	t.Parallel()

	b := New(logging.NewNop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, DataChannel(collection.ScoreAdjustments))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.EntityEvent(TypeEntityCreated, collection.ScoreAdjustments, "adj-1", []byte(`{"id":"adj-1","points":-5}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	env := receiveOne(t, ch)
	if env.Type != TypeEntityCreated || env.Key != "adj-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}
