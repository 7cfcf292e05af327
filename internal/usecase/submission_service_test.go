package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/openbracket/tourneysync/internal/domain/match"
	"github.com/openbracket/tourneysync/internal/domain/tournament"
)

func TestSubmissionService_ApproveScoresWithTableAtApprovalTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	created := f.createTournament(t)

	team, result := f.teams.Create(ctx, CreateTeamInput{TournamentID: created.ID, Name: "Alpha", Lobby: 1, Slot: 1})
	if result.Err != nil {
		t.Fatalf("create team: %v", result.Err)
	}

	sub, result := f.submissions.Submit(ctx, SubmitInput{
		TournamentID: created.ID, TeamCode: team.AccessCode, Position: 1, Kills: 10,
	})
	if result.Err != nil {
		t.Fatalf("submit: %v", result.Err)
	}

	// Table changes after submission but before approval: the edited table
	// is the one in effect at approval time.
	edited := created
	edited.Settings.Multipliers = match.MultiplierTable{1: 3.0}
	if _, result := f.tournaments.Update(ctx, edited); result.Err != nil {
		t.Fatalf("update settings: %v", result.Err)
	}

	approved, result := f.submissions.Approve(ctx, sub.ID, "MG0001")
	if result.Err != nil {
		t.Fatalf("approve: %v", result.Err)
	}
	if approved.Score != 30.0 {
		t.Fatalf("score = %.1f, want 30.0 (10 kills x 3.0)", approved.Score)
	}
	if approved.Status != match.StatusApproved {
		t.Fatalf("status = %s", approved.Status)
	}
}

func TestSubmissionService_ExactlyOneResolution(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	created := f.createTournament(t)

	team, result := f.teams.Create(ctx, CreateTeamInput{TournamentID: created.ID, Name: "Alpha", Lobby: 1, Slot: 1})
	if result.Err != nil {
		t.Fatalf("create team: %v", result.Err)
	}
	sub, result := f.submissions.Submit(ctx, SubmitInput{
		TournamentID: created.ID, TeamCode: team.AccessCode, Position: 2, Kills: 4,
	})
	if result.Err != nil {
		t.Fatalf("submit: %v", result.Err)
	}

	if _, result := f.submissions.Approve(ctx, sub.ID, "MG0001"); result.Err != nil {
		t.Fatalf("approve: %v", result.Err)
	}

	if _, result := f.submissions.Approve(ctx, sub.ID, "MG0001"); !errors.Is(result.Err, ErrAlreadyResolved) {
		t.Fatalf("second approve should fail with ErrAlreadyResolved, got %v", result.Err)
	}
	if result := f.submissions.Reject(ctx, sub.ID, "MG0001"); !errors.Is(result.Err, ErrAlreadyResolved) {
		t.Fatalf("reject after approve should fail with ErrAlreadyResolved, got %v", result.Err)
	}
}

func TestSubmissionService_RejectDiscardsWithoutMatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	created := f.createTournament(t)

	team, result := f.teams.Create(ctx, CreateTeamInput{TournamentID: created.ID, Name: "Alpha", Lobby: 1, Slot: 1})
	if result.Err != nil {
		t.Fatalf("create team: %v", result.Err)
	}
	sub, result := f.submissions.Submit(ctx, SubmitInput{
		TournamentID: created.ID, TeamCode: team.AccessCode, Position: 5, Kills: 2,
	})
	if result.Err != nil {
		t.Fatalf("submit: %v", result.Err)
	}

	if result := f.submissions.Reject(ctx, sub.ID, "MG0001"); result.Err != nil {
		t.Fatalf("reject: %v", result.Err)
	}

	if got := len(f.submissions.List(created.ID)); got != 0 {
		t.Fatalf("pending submissions remain: %d", got)
	}
	if got := len(matchesOf(f.binders, created.ID)); got != 0 {
		t.Fatalf("rejected submission produced a match: %d", got)
	}
}

func TestSubmissionService_StandingsUseApprovedOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	created := f.createTournament(t)

	team, result := f.teams.Create(ctx, CreateTeamInput{TournamentID: created.ID, Name: "Alpha", Lobby: 1, Slot: 1})
	if result.Err != nil {
		t.Fatalf("create team: %v", result.Err)
	}

	// One approved, one still pending.
	approvedSub, result := f.submissions.Submit(ctx, SubmitInput{TournamentID: created.ID, TeamCode: team.AccessCode, Position: 6, Kills: 7})
	if result.Err != nil {
		t.Fatalf("submit: %v", result.Err)
	}
	if _, result := f.submissions.Approve(ctx, approvedSub.ID, "MG0001"); result.Err != nil {
		t.Fatalf("approve: %v", result.Err)
	}
	if _, result := f.submissions.Submit(ctx, SubmitInput{TournamentID: created.ID, TeamCode: team.AccessCode, Position: 1, Kills: 50}); result.Err != nil {
		t.Fatalf("submit pending: %v", result.Err)
	}

	rows, err := f.standings.Standings(created.ID)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].FinalScore != 7.0 {
		t.Fatalf("final score = %.1f, want 7.0 (pending submission must not count)", rows[0].FinalScore)
	}
}

func TestStandingsService_ArchivedTableIsStable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	created := f.createTournament(t)

	team, result := f.teams.Create(ctx, CreateTeamInput{TournamentID: created.ID, Name: "Alpha", Lobby: 1, Slot: 1})
	if result.Err != nil {
		t.Fatalf("create team: %v", result.Err)
	}
	sub, result := f.submissions.Submit(ctx, SubmitInput{TournamentID: created.ID, TeamCode: team.AccessCode, Position: 6, Kills: 9})
	if result.Err != nil {
		t.Fatalf("submit: %v", result.Err)
	}
	if _, result := f.submissions.Approve(ctx, sub.ID, "MG0001"); result.Err != nil {
		t.Fatalf("approve: %v", result.Err)
	}

	if _, result := f.tournaments.Archive(ctx, created.ID, "MG0001"); result.Err != nil {
		t.Fatalf("archive: %v", result.Err)
	}

	rows, err := f.standings.Standings(created.ID)
	if err != nil {
		t.Fatalf("standings after archive: %v", err)
	}
	if len(rows) != 1 || rows[0].FinalScore != 9.0 {
		t.Fatalf("archived standings wrong: %+v", rows)
	}
	if rows[0].TeamName != "Alpha" {
		t.Fatalf("archived roster lost: %+v", rows[0])
	}

	var archived tournament.Tournament
	archived, err = f.tournaments.Get(created.ID)
	if err != nil {
		t.Fatalf("get archived: %v", err)
	}
	if archived.ArchivedData == nil {
		t.Fatal("snapshot missing")
	}
}
