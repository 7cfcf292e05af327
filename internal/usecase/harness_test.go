package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/tournament"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/syncerr"
	"github.com/openbracket/tourneysync/internal/sync/syncop"
)

// stubRecords implements RecordGateway in memory and can be forced to fail.
type stubRecords struct {
	mu         sync.Mutex
	fail       bool
	created    map[collection.Name]int
	deleted    map[collection.Name]int
	reconciled int
}

func newStubRecords() *stubRecords {
	return &stubRecords{
		created: make(map[collection.Name]int),
		deleted: make(map[collection.Name]int),
	}
}

func (g *stubRecords) Create(_ context.Context, c collection.Name, _ any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return syncerr.NewRemoteError("unreachable")
	}
	g.created[c]++
	return nil
}

func (g *stubRecords) Update(_ context.Context, c collection.Name, _ string, _ any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return syncerr.NewRemoteError("unreachable")
	}
	return nil
}

func (g *stubRecords) Delete(_ context.Context, c collection.Name, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return syncerr.NewRemoteError("unreachable")
	}
	g.deleted[c]++
	return nil
}

func (g *stubRecords) ReconcileArchived(_ context.Context, tournaments []tournament.Tournament) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reconciled += len(tournaments)
}

func (g *stubRecords) setFail(fail bool) {
	g.mu.Lock()
	g.fail = fail
	g.mu.Unlock()
}

// stubLister backs the binders with an empty remote store.
type stubLister struct{}

func (stubLister) List(context.Context, collection.Name) ([]json.RawMessage, error) {
	return nil, nil
}

// stubIDs hands out deterministic ids and a scripted access-code sequence.
type stubIDs struct {
	mu    sync.Mutex
	next  int
	codes []string
}

func (s *stubIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("id-%04d", s.next), nil
}

func (s *stubIDs) NewAccessCode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) > 0 {
		code := s.codes[0]
		s.codes = s.codes[1:]
		return code, nil
	}
	s.next++
	return fmt.Sprintf("CODE%02d", s.next), nil
}

// stubControls records session-control broadcasts.
type stubControls struct {
	mu   sync.Mutex
	sent []broadcast.Type
}

func (s *stubControls) Control(typ broadcast.Type, _ string) error {
	s.mu.Lock()
	s.sent = append(s.sent, typ)
	s.mu.Unlock()
	return nil
}

func (s *stubControls) types() []broadcast.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]broadcast.Type(nil), s.sent...)
}

type fixture struct {
	binders  *binder.Manager
	runner   *syncop.Runner
	gateway  *stubRecords
	controls *stubControls
	ids      *stubIDs

	tournaments *TournamentService
	teams       *TeamService
	submissions *SubmissionService
	adjustments *AdjustmentService
	managers    *ManagerService
	audit       *AuditService
	standings   *StandingsService
	auth        *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	binders, err := binder.NewManager(binder.ManagerConfig{
		Deps: binder.Deps{Gateway: stubLister{}, Logger: logging.NewNop()},
	})
	if err != nil {
		t.Fatalf("new binder manager: %v", err)
	}
	t.Cleanup(binders.Stop)

	f := &fixture{
		binders:  binders,
		runner:   syncop.NewRunner(nil, nil, logging.NewNop()),
		gateway:  newStubRecords(),
		controls: &stubControls{},
		ids:      &stubIDs{},
	}

	f.audit = NewAuditService(binders, f.runner, f.gateway, f.ids, logging.NewNop())
	f.tournaments = NewTournamentService(binders, f.runner, f.gateway, f.controls, f.ids, f.audit, logging.NewNop())
	f.teams = NewTeamService(binders, f.runner, f.gateway, f.controls, f.ids, f.audit, logging.NewNop())
	f.submissions = NewSubmissionService(binders, f.runner, f.gateway, f.ids, f.audit, logging.NewNop())
	f.adjustments = NewAdjustmentService(binders, f.runner, f.gateway, f.ids, f.audit, logging.NewNop())
	f.managers = NewManagerService(binders, f.runner, f.gateway, f.ids, f.audit, logging.NewNop())
	f.standings = NewStandingsService(binders)
	f.auth = NewAuthService(binders, nil, logging.NewNop())
	return f
}

func (f *fixture) createTournament(t *testing.T) tournament.Tournament {
	t.Helper()

	created, result := f.tournaments.Create(context.Background(), CreateTournamentInput{
		Name:   "Spring Invitational",
		Format: tournament.FormatBattleRoyale,
		Settings: tournament.Settings{
			LobbyCount:     2,
			SlotsPerLobby:  25,
			TotalMatches:   6,
			CountedMatches: 4,
		},
		Actor: "MG0001",
	})
	if result.Err != nil {
		t.Fatalf("create tournament: %v", result.Err)
	}
	return created
}
