package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/tournament"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/platform/resilience"
	"github.com/openbracket/tourneysync/internal/sync/syncerr"
)

func newGateway(t *testing.T, handler http.Handler) (*Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGateway(Config{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Logger:  logging.NewNop(),
	}), server
}

func TestGateway_ListDecodesCollectionEnvelope(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/teams" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"teams":[{"accessCode":"AB2345"},{"accessCode":"CD6789"}]}`))
	}))

	records, err := g.List(context.Background(), collection.Teams)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestGateway_NonSuccessBecomesRemoteError(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such record", http.StatusNotFound)
	}))

	err := g.Update(context.Background(), collection.Matches, "m-1", map[string]string{"id": "m-1"})
	remote, ok := syncerr.AsRemote(err)
	if !ok {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", remote.Status)
	}
	if !syncerr.IsConflict(err) {
		t.Fatal("404 on update should count as conflict")
	}
}

func TestGateway_TransportFailureBecomesRemoteError(t *testing.T) {
	t.Parallel()

	g := NewGateway(Config{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
		Logger:  logging.NewNop(),
	})

	err := g.Delete(context.Background(), collection.Teams, "AB2345")
	remote, ok := syncerr.AsRemote(err)
	if !ok {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Status != 0 {
		t.Fatalf("transport failure should carry no status, got %d", remote.Status)
	}
}

func TestGateway_ReconcileArchivedRecreatesMissingRecords(t *testing.T) {
	t.Parallel()

	var creates atomic.Int32
	g, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			http.Error(w, "gone", http.StatusNotFound)
		case http.MethodPost:
			creates.Add(1)
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	archived := tournament.Tournament{ID: "t-1", Name: "Spring Cup", Status: tournament.StatusArchived}
	active := tournament.Tournament{ID: "t-2", Name: "Summer Cup", Status: tournament.StatusActive}
	g.ReconcileArchived(context.Background(), []tournament.Tournament{archived, active})

	if got := creates.Load(); got != 1 {
		t.Fatalf("creates = %d, want 1 (archived only, via update-then-create)", got)
	}
}

func TestGateway_LoginDecodesSession(t *testing.T) {
	t.Parallel()

	g, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"role":"manager","identifier":"MG2345","tournamentId":"t-1"}`))
	}))

	session, err := g.Login(context.Background(), "MG2345", "manager")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Role != "manager" || session.TournamentID != "t-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestGateway_BreakerOpenSurfacesAsRemoteError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	g := NewGateway(Config{
		BaseURL: server.URL,
		Timeout: time.Second,
		Logger:  logging.NewNop(),
		Breaker: resilience.BreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
		},
	})

	// First call trips the breaker on the 500.
	if err := g.Delete(context.Background(), collection.Teams, "AB2345"); err == nil {
		t.Fatal("expected failure from 500 response")
	}

	err := g.Delete(context.Background(), collection.Teams, "AB2345")
	remote, ok := syncerr.AsRemote(err)
	if !ok {
		t.Fatalf("breaker rejection should be a RemoteError, got %v", err)
	}
	if remote.Status != 0 {
		t.Fatalf("breaker rejection carries no HTTP status, got %d", remote.Status)
	}
}
