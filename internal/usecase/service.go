package usecase

import (
	"context"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/adjustment"
	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/match"
	"github.com/openbracket/tourneysync/internal/domain/submission"
	"github.com/openbracket/tourneysync/internal/domain/team"
	"github.com/openbracket/tourneysync/internal/domain/tournament"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/remote"
)

// RecordGateway is the slice of the remote store gateway the services push
// mutations through.
type RecordGateway interface {
	Create(ctx context.Context, c collection.Name, record any) error
	Update(ctx context.Context, c collection.Name, id string, record any) error
	Delete(ctx context.Context, c collection.Name, id string) error
	ReconcileArchived(ctx context.Context, tournaments []tournament.Tournament)
}

// LoginGateway is the remote fallback used only after local code tables
// fail to resolve a code.
type LoginGateway interface {
	Login(ctx context.Context, code, roleHint string) (remote.Session, error)
}

// ControlPublisher sends session-control messages to every open context.
type ControlPublisher interface {
	Control(typ broadcast.Type, key string) error
}

// upsert marshals v and merges it into the binder under key.
func upsert(b *binder.Binder, key string, v any) error {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	b.Upsert(key, raw)
	return nil
}

func teamsOf(m *binder.Manager, tournamentID string) []team.Team {
	out := make([]team.Team, 0)
	for _, t := range binder.DecodeSnapshot[team.Team](m.Binder(collection.Teams)) {
		if t.TournamentID == tournamentID {
			out = append(out, t)
		}
	}
	return out
}

func matchesOf(m *binder.Manager, tournamentID string) []match.Match {
	out := make([]match.Match, 0)
	for _, item := range binder.DecodeSnapshot[match.Match](m.Binder(collection.Matches)) {
		if item.TournamentID == tournamentID {
			out = append(out, item)
		}
	}
	return out
}

func adjustmentsOf(m *binder.Manager, tournamentID string) []adjustment.Adjustment {
	out := make([]adjustment.Adjustment, 0)
	for _, item := range binder.DecodeSnapshot[adjustment.Adjustment](m.Binder(collection.ScoreAdjustments)) {
		if item.TournamentID == tournamentID {
			out = append(out, item)
		}
	}
	return out
}

func submissionsOf(m *binder.Manager, tournamentID string) []submission.Submission {
	out := make([]submission.Submission, 0)
	for _, item := range binder.DecodeSnapshot[submission.Submission](m.Binder(collection.PendingSubmissions)) {
		if item.TournamentID == tournamentID {
			out = append(out, item)
		}
	}
	return out
}

func findTournament(m *binder.Manager, id string) (tournament.Tournament, bool) {
	raw, ok := m.Binder(collection.Tournaments).Find(id)
	if !ok {
		return tournament.Tournament{}, false
	}
	var t tournament.Tournament
	if err := sonic.Unmarshal(raw, &t); err != nil {
		return tournament.Tournament{}, false
	}
	return t, true
}
