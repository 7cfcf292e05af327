package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/openbracket/tourneysync/internal/domain/tournament"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
)

func TestTournamentService_ArchiveFreezesSnapshotAndCascades(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	created := f.createTournament(t)

	teamA, result := f.teams.Create(ctx, CreateTeamInput{TournamentID: created.ID, Name: "Alpha", Lobby: 1, Slot: 1})
	if result.Err != nil {
		t.Fatalf("create team: %v", result.Err)
	}
	sub, result := f.submissions.Submit(ctx, SubmitInput{
		TournamentID: created.ID, TeamCode: teamA.AccessCode, Position: 1, Kills: 5,
	})
	if result.Err != nil {
		t.Fatalf("submit: %v", result.Err)
	}
	if _, result = f.submissions.Approve(ctx, sub.ID, "MG0001"); result.Err != nil {
		t.Fatalf("approve: %v", result.Err)
	}

	archived, result := f.tournaments.Archive(ctx, created.ID, "MG0001")
	if result.Err != nil {
		t.Fatalf("archive: %v", result.Err)
	}

	if archived.Status != tournament.StatusArchived {
		t.Fatalf("status = %s, want archived", archived.Status)
	}
	if archived.ArchivedData == nil || len(archived.ArchivedData.Teams) != 1 || len(archived.ArchivedData.Matches) != 1 {
		t.Fatalf("snapshot incomplete: %+v", archived.ArchivedData)
	}
	if got := len(f.teams.List(created.ID)); got != 0 {
		t.Fatalf("operational teams survived archive: %d", got)
	}
	if got := len(f.submissions.List(created.ID)); got != 0 {
		t.Fatalf("pending submissions survived archive: %d", got)
	}
}

func TestTournamentService_ArchivedIsImmutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	created := f.createTournament(t)

	if _, result := f.tournaments.Archive(ctx, created.ID, "MG0001"); result.Err != nil {
		t.Fatalf("archive: %v", result.Err)
	}

	// Second archive refused.
	if _, result := f.tournaments.Archive(ctx, created.ID, "MG0001"); !errors.Is(result.Err, ErrArchived) {
		t.Fatalf("re-archive should fail with ErrArchived, got %v", result.Err)
	}

	// Updates refused, including attempts to go back to active.
	edited := created
	edited.Status = tournament.StatusActive
	edited.Name = "Renamed"
	if _, result := f.tournaments.Update(ctx, edited); !errors.Is(result.Err, ErrArchived) {
		t.Fatalf("update of archived tournament should fail with ErrArchived, got %v", result.Err)
	}

	// Team registration refused.
	if _, result := f.teams.Create(ctx, CreateTeamInput{TournamentID: created.ID, Name: "Late", Lobby: 1, Slot: 2}); !errors.Is(result.Err, ErrArchived) {
		t.Fatalf("team create on archived tournament should fail, got %v", result.Err)
	}
}

func TestTournamentService_ArchiveBroadcastsTermination(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTournament(t)

	if _, result := f.tournaments.Archive(context.Background(), created.ID, "MG0001"); result.Err != nil {
		t.Fatalf("archive: %v", result.Err)
	}

	types := f.controls.types()
	found := false
	for _, typ := range types {
		if typ == broadcast.TypeTournamentTerminated {
			found = true
		}
	}
	if !found {
		t.Fatalf("no termination control broadcast, got %v", types)
	}
}

func TestTournamentService_PermanentDeleteRequiresArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	created := f.createTournament(t)

	if result := f.tournaments.PermanentDelete(ctx, created.ID, "MG0001"); !errors.Is(result.Err, ErrInvalidInput) {
		t.Fatalf("permanent delete of active tournament should fail, got %v", result.Err)
	}

	if _, result := f.tournaments.Archive(ctx, created.ID, "MG0001"); result.Err != nil {
		t.Fatalf("archive: %v", result.Err)
	}
	if result := f.tournaments.PermanentDelete(ctx, created.ID, "MG0001"); result.Err != nil {
		t.Fatalf("permanent delete: %v", result.Err)
	}

	if _, err := f.tournaments.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("tournament should be gone, got %v", err)
	}
}

func TestTournamentService_CreateIsLocalFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gateway.setFail(true)

	created, result := f.tournaments.Create(context.Background(), CreateTournamentInput{
		Name:   "Offline Cup",
		Format: tournament.FormatRoundBased,
		Settings: tournament.Settings{
			LobbyCount: 1, SlotsPerLobby: 10, TotalMatches: 3, CountedMatches: 3,
		},
	})

	if result.Success {
		t.Fatal("unreachable remote must not report full success")
	}
	if !result.Applied || result.Err == nil {
		t.Fatalf("expected applied-but-degraded result, got %+v", result)
	}
	if _, err := f.tournaments.Get(created.ID); err != nil {
		t.Fatalf("local state missing after degraded create: %v", err)
	}
}

func TestTournamentService_ReconcileArchivedPushesOnlyArchived(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first := f.createTournament(t)
	_ = f.createTournament(t)
	if _, result := f.tournaments.Archive(ctx, first.ID, "MG0001"); result.Err != nil {
		t.Fatalf("archive: %v", result.Err)
	}

	f.tournaments.ReconcileArchived(ctx)

	if f.gateway.reconciled != 1 {
		t.Fatalf("reconciled %d tournaments, want 1", f.gateway.reconciled)
	}
}
