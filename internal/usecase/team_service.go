package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/team"
	"github.com/openbracket/tourneysync/internal/domain/tournament"
	"github.com/openbracket/tourneysync/internal/platform/id"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/syncop"
)

const codeAllocationAttempts = 10

// TeamService manages team registration. Access codes double as login
// credentials, so a new team's code must be unique across every team and
// manager currently known, not just its own tournament.
type TeamService struct {
	binders     *binder.Manager
	runner      *syncop.Runner
	gateway     RecordGateway
	broadcaster ControlPublisher
	ids         id.Generator
	audit       *AuditService
	logger      *logging.Logger
	now         func() time.Time
}

func NewTeamService(
	binders *binder.Manager,
	runner *syncop.Runner,
	gateway RecordGateway,
	broadcaster ControlPublisher,
	ids id.Generator,
	audit *AuditService,
	logger *logging.Logger,
) *TeamService {
	if logger == nil {
		logger = logging.Default()
	}
	return &TeamService{
		binders:     binders,
		runner:      runner,
		gateway:     gateway,
		broadcaster: broadcaster,
		ids:         ids,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

type CreateTeamInput struct {
	TournamentID string
	Name         string
	Lobby        int
	Slot         int
	Actor        string
}

func (s *TeamService) Create(ctx context.Context, input CreateTeamInput) (team.Team, syncop.Result) {
	current, found := findTournament(s.binders, input.TournamentID)
	if !found {
		return team.Team{}, syncop.Result{Err: fmt.Errorf("%w: tournament=%s", ErrNotFound, input.TournamentID)}
	}
	if current.Status == tournament.StatusArchived {
		return team.Team{}, syncop.Result{Err: fmt.Errorf("%w: tournament=%s", ErrArchived, input.TournamentID)}
	}

	code, err := s.allocateCode()
	if err != nil {
		return team.Team{}, syncop.Result{Err: err}
	}

	t := team.Team{
		AccessCode:   code,
		TournamentID: input.TournamentID,
		Name:         input.Name,
		Lobby:        input.Lobby,
		Slot:         input.Slot,
		CreatedAt:    s.now().UTC(),
	}
	if err := checkInput(t); err != nil {
		return team.Team{}, syncop.Result{Err: err}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "team.create",
		Collection: collection.Teams,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.Teams), t.AccessCode, t)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Create(ctx, collection.Teams, t)
		},
	})

	if result.Applied {
		if err := s.broadcaster.Control(broadcast.TypeTeamCreated, t.AccessCode); err != nil {
			s.logger.WarnContext(ctx, "team-created broadcast failed", "access_code", t.AccessCode, "error", err)
		}
		s.audit.Record(ctx, "team-created", input.Actor, input.TournamentID, t.Name)
	}
	return t, result
}

func (s *TeamService) Update(ctx context.Context, t team.Team) (team.Team, syncop.Result) {
	existing, ok := s.binders.Binder(collection.Teams).Find(t.AccessCode)
	if !ok || existing == nil {
		return team.Team{}, syncop.Result{Err: fmt.Errorf("%w: team=%s", ErrNotFound, t.AccessCode)}
	}
	if err := checkInput(t); err != nil {
		return team.Team{}, syncop.Result{Err: err}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "team.update",
		Collection: collection.Teams,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.Teams), t.AccessCode, t)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Update(ctx, collection.Teams, t.AccessCode, t)
		},
	})
	return t, result
}

func (s *TeamService) Delete(ctx context.Context, accessCode, actor string) syncop.Result {
	if _, ok := s.binders.Binder(collection.Teams).Find(accessCode); !ok {
		return syncop.Result{Err: fmt.Errorf("%w: team=%s", ErrNotFound, accessCode)}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "team.delete",
		Collection: collection.Teams,
		LocalUpdate: func() error {
			s.binders.Binder(collection.Teams).Remove(accessCode)
			return nil
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Delete(ctx, collection.Teams, accessCode)
		},
	})
	if result.Applied {
		s.audit.Record(ctx, "team-deleted", actor, "", accessCode)
	}
	return result
}

// List returns teams, optionally filtered by tournament.
func (s *TeamService) List(tournamentID string) []team.Team {
	if tournamentID == "" {
		return binder.DecodeSnapshot[team.Team](s.binders.Binder(collection.Teams))
	}
	return teamsOf(s.binders, tournamentID)
}

// allocateCode draws random access codes until one is unused. The code
// space is large; more than a couple of attempts means something is wrong
// with the generator, so the loop is bounded.
func (s *TeamService) allocateCode() (string, error) {
	for attempt := 0; attempt < codeAllocationAttempts; attempt++ {
		code, err := s.ids.NewAccessCode()
		if err != nil {
			return "", fmt.Errorf("generate access code: %w", err)
		}
		if s.codeTaken(code) {
			continue
		}
		return code, nil
	}
	return "", ErrCodeCollision
}

func (s *TeamService) codeTaken(code string) bool {
	if _, ok := s.binders.Binder(collection.Teams).Find(code); ok {
		return true
	}
	_, ok := s.binders.Binder(collection.Managers).Find(code)
	return ok
}
