package usecase

import (
	"fmt"

	"github.com/openbracket/tourneysync/internal/domain/standings"
	"github.com/openbracket/tourneysync/internal/domain/tournament"
	"github.com/openbracket/tourneysync/internal/sync/binder"
)

// StandingsService computes the live leaderboard from reconciled binder
// state. Pure read path; all the ranking rules live in domain/standings.
type StandingsService struct {
	binders *binder.Manager
}

func NewStandingsService(binders *binder.Manager) *StandingsService {
	return &StandingsService{binders: binders}
}

// Standings returns the ranked table for a tournament. Archived tournaments
// are ranked from their frozen snapshot, so the table stays stable forever.
func (s *StandingsService) Standings(tournamentID string) ([]standings.RankedTeam, error) {
	t, found := findTournament(s.binders, tournamentID)
	if !found {
		return nil, fmt.Errorf("%w: tournament=%s", ErrNotFound, tournamentID)
	}

	if t.Status == tournament.StatusArchived && t.ArchivedData != nil {
		return standings.Compute(
			t.ArchivedData.Teams,
			t.ArchivedData.Matches,
			t.ArchivedData.Adjustments,
			t.Settings.CountedMatches,
			t.MultiplierTable(),
		), nil
	}

	return standings.Compute(
		teamsOf(s.binders, tournamentID),
		matchesOf(s.binders, tournamentID),
		adjustmentsOf(s.binders, tournamentID),
		t.Settings.CountedMatches,
		t.MultiplierTable(),
	), nil
}
