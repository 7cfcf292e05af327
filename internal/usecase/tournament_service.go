package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/tournament"
	"github.com/openbracket/tourneysync/internal/platform/id"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/broadcast"
	"github.com/openbracket/tourneysync/internal/sync/syncop"
)

// TournamentService owns the tournament lifecycle: creation, settings
// updates, the one-way archive transition with its frozen snapshot, and
// permanent removal of archived records.
type TournamentService struct {
	binders     *binder.Manager
	runner      *syncop.Runner
	gateway     RecordGateway
	broadcaster ControlPublisher
	ids         id.Generator
	audit       *AuditService
	logger      *logging.Logger
	now         func() time.Time
}

func NewTournamentService(
	binders *binder.Manager,
	runner *syncop.Runner,
	gateway RecordGateway,
	broadcaster ControlPublisher,
	ids id.Generator,
	audit *AuditService,
	logger *logging.Logger,
) *TournamentService {
	if logger == nil {
		logger = logging.Default()
	}
	return &TournamentService{
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

type CreateTournamentInput struct {
	Name         string
	Format       tournament.Format
	StartsAt     *time.Time
	EndsAt       *time.Time
	Settings     tournament.Settings
	ManagerCodes []string
	Actor        string
}

func (s *TournamentService) Create(ctx context.Context, input CreateTournamentInput) (tournament.Tournament, syncop.Result) {
	newID, err := s.ids.NewID()
	if err != nil {
		return tournament.Tournament{}, syncop.Result{Err: fmt.Errorf("generate tournament id: %w", err)}
	}

	t := tournament.Tournament{
		ID:           newID,
		Name:         input.Name,
		Format:       input.Format,
		Status:       tournament.StatusActive,
		StartsAt:     input.StartsAt,
		EndsAt:       input.EndsAt,
		Settings:     input.Settings,
		ManagerCodes: input.ManagerCodes,
		CreatedAt:    s.now().UTC(),
	}
	if t.Format == "" {
		t.Format = tournament.FormatBattleRoyale
	}
	if err := checkInput(t); err != nil {
		return tournament.Tournament{}, syncop.Result{Err: err}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "tournament.create",
		Collection: collection.Tournaments,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.Tournaments), t.ID, t)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Create(ctx, collection.Tournaments, t)
		},
	})
	if result.Applied {
		s.audit.Record(ctx, "tournament-created", input.Actor, t.ID, t.Name)
	}
	return t, result
}

// Update applies settings/metadata changes. Archived tournaments are
// immutable and status changes must follow the one-way lifecycle. The
// frozen snapshot, if any, always carries over from the stored record.
func (s *TournamentService) Update(ctx context.Context, t tournament.Tournament) (tournament.Tournament, syncop.Result) {
	current, found := findTournament(s.binders, t.ID)
	if !found {
		return tournament.Tournament{}, syncop.Result{Err: fmt.Errorf("%w: tournament=%s", ErrNotFound, t.ID)}
	}
	if current.Status == tournament.StatusArchived {
		return tournament.Tournament{}, syncop.Result{Err: fmt.Errorf("%w: tournament=%s", ErrArchived, t.ID)}
	}
	if !current.CanTransition(t.Status) {
		return tournament.Tournament{}, syncop.Result{Err: fmt.Errorf("%w: status %s -> %s", ErrInvalidInput, current.Status, t.Status)}
	}

	t.CreatedAt = current.CreatedAt
	t.ArchivedData = current.ArchivedData
	if err := checkInput(t); err != nil {
		return tournament.Tournament{}, syncop.Result{Err: err}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "tournament.update",
		Collection: collection.Tournaments,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.Tournaments), t.ID, t)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Update(ctx, collection.Tournaments, t.ID, t)
		},
	})
	return t, result
}

// Archive ends a tournament: it freezes the operational records into an
// immutable snapshot on the tournament, flips the status (one way, never
// back), removes the operational records, and tells every open context the
// session is over.
func (s *TournamentService) Archive(ctx context.Context, tournamentID, actor string) (tournament.Tournament, syncop.Result) {
	current, found := findTournament(s.binders, tournamentID)
	if !found {
		return tournament.Tournament{}, syncop.Result{Err: fmt.Errorf("%w: tournament=%s", ErrNotFound, tournamentID)}
	}
	if current.Status == tournament.StatusArchived {
		return tournament.Tournament{}, syncop.Result{Err: fmt.Errorf("%w: tournament=%s", ErrArchived, tournamentID)}
	}

	teams := teamsOf(s.binders, tournamentID)
	matches := matchesOf(s.binders, tournamentID)
	adjustments := adjustmentsOf(s.binders, tournamentID)
	pending := submissionsOf(s.binders, tournamentID)

	archived := current
	archived.Status = tournament.StatusArchived
	archived.ArchivedData = &tournament.ArchiveSnapshot{
		Teams:       teams,
		Matches:     matches,
		Adjustments: adjustments,
		ArchivedAt:  s.now().UTC(),
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "tournament.archive",
		Collection: collection.Tournaments,
		LocalUpdate: func() error {
			if err := upsert(s.binders.Binder(collection.Tournaments), archived.ID, archived); err != nil {
				return err
			}
			for _, t := range teams {
				s.binders.Binder(collection.Teams).Remove(t.AccessCode)
			}
			for _, m := range matches {
				s.binders.Binder(collection.Matches).Remove(m.ID)
			}
			for _, a := range adjustments {
				s.binders.Binder(collection.ScoreAdjustments).Remove(a.ID)
			}
			for _, p := range pending {
				s.binders.Binder(collection.PendingSubmissions).Remove(p.ID)
			}
			return nil
		},
		RemoteCall: func(ctx context.Context) error {
			if err := s.gateway.Update(ctx, collection.Tournaments, archived.ID, archived); err != nil {
				return err
			}
			// Cascaded deletes are best effort; the snapshot already owns
			// the authoritative copy.
			for _, t := range teams {
				s.deleteRemote(ctx, collection.Teams, t.AccessCode)
			}
			for _, m := range matches {
				s.deleteRemote(ctx, collection.Matches, m.ID)
			}
			for _, a := range adjustments {
				s.deleteRemote(ctx, collection.ScoreAdjustments, a.ID)
			}
			for _, p := range pending {
				s.deleteRemote(ctx, collection.PendingSubmissions, p.ID)
			}
			return nil
		},
	})

	if result.Applied {
		if err := s.broadcaster.Control(broadcast.TypeTournamentTerminated, tournamentID); err != nil {
			s.logger.WarnContext(ctx, "terminate broadcast failed", "tournament_id", tournamentID, "error", err)
		}
		s.audit.Record(ctx, "tournament-archived", actor, tournamentID, current.Name)
	}
	return archived, result
}

// PermanentDelete removes an archived tournament for good. Active
// tournaments must be archived first.
func (s *TournamentService) PermanentDelete(ctx context.Context, tournamentID, actor string) syncop.Result {
	current, found := findTournament(s.binders, tournamentID)
	if !found {
		return syncop.Result{Err: fmt.Errorf("%w: tournament=%s", ErrNotFound, tournamentID)}
	}
	if current.Status != tournament.StatusArchived {
		return syncop.Result{Err: fmt.Errorf("%w: only archived tournaments can be deleted permanently", ErrInvalidInput)}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "tournament.delete-permanently",
		Collection: collection.Tournaments,
		LocalUpdate: func() error {
			s.binders.Binder(collection.Tournaments).Remove(tournamentID)
			return nil
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Delete(ctx, collection.Tournaments, tournamentID)
		},
	})

	if result.Applied {
		if err := s.broadcaster.Control(broadcast.TypeTournamentPurged, tournamentID); err != nil {
			s.logger.WarnContext(ctx, "purge broadcast failed", "tournament_id", tournamentID, "error", err)
		}
		s.audit.Record(ctx, "tournament-deleted-permanently", actor, tournamentID, current.Name)
	}
	return result
}

// ReconcileArchived pushes every archived tournament back to the remote
// store, recreating records the store has lost.
func (s *TournamentService) ReconcileArchived(ctx context.Context) {
	archived := make([]tournament.Tournament, 0)
	for _, t := range s.List() {
		if t.Status == tournament.StatusArchived {
			archived = append(archived, t)
		}
	}
	if len(archived) == 0 {
		return
	}
	s.gateway.ReconcileArchived(ctx, archived)
}

// List returns every known tournament.
func (s *TournamentService) List() []tournament.Tournament {
	return binder.DecodeSnapshot[tournament.Tournament](s.binders.Binder(collection.Tournaments))
}

// Get returns one tournament by id.
func (s *TournamentService) Get(tournamentID string) (tournament.Tournament, error) {
	t, found := findTournament(s.binders, tournamentID)
	if !found {
		return tournament.Tournament{}, fmt.Errorf("%w: tournament=%s", ErrNotFound, tournamentID)
	}
	return t, nil
}

func (s *TournamentService) deleteRemote(ctx context.Context, c collection.Name, recordID string) {
	if err := s.gateway.Delete(ctx, c, recordID); err != nil {
		s.logger.WarnContext(ctx, "cascade delete skipped",
			"collection", c,
			"record_id", recordID,
			"error", err,
		)
	}
}
