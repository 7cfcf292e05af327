package usecase

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/match"
	"github.com/openbracket/tourneysync/internal/domain/submission"
	"github.com/openbracket/tourneysync/internal/platform/id"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/syncop"
)

// SubmissionService handles the pending-result workflow: teams submit match
// results, an admin approves or rejects. Approval scores the result with
// the multiplier table in effect at that moment and turns it into a Match;
// rejection discards it. Each submission is resolved exactly once, because
// resolution removes the pending record either way.
type SubmissionService struct {
	binders *binder.Manager
	runner  *syncop.Runner
	gateway RecordGateway
	ids     id.Generator
	audit   *AuditService
	logger  *logging.Logger
	now     func() time.Time
}

func NewSubmissionService(
	binders *binder.Manager,
	runner *syncop.Runner,
	gateway RecordGateway,
	ids id.Generator,
	audit *AuditService,
	logger *logging.Logger,
) *SubmissionService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SubmissionService{
		binders: binders,
		runner:  runner,
		gateway: gateway,
		ids:     ids,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

type SubmitInput struct {
	TournamentID string
	TeamCode     string
	TeamName     string
	Position     int
	Kills        int
	Evidence     []string
}

func (s *SubmissionService) Submit(ctx context.Context, input SubmitInput) (submission.Submission, syncop.Result) {
	newID, err := s.ids.NewID()
	if err != nil {
		return submission.Submission{}, syncop.Result{Err: fmt.Errorf("generate submission id: %w", err)}
	}

	sub := submission.Submission{
		ID:           newID,
		TournamentID: input.TournamentID,
		TeamCode:     input.TeamCode,
		TeamName:     input.TeamName,
		Position:     input.Position,
		Kills:        input.Kills,
		Evidence:     input.Evidence,
		SubmittedAt:  s.now().UTC(),
	}
	if err := checkInput(sub); err != nil {
		return submission.Submission{}, syncop.Result{Err: err}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "submission.submit",
		Collection: collection.PendingSubmissions,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.PendingSubmissions), sub.ID, sub)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Create(ctx, collection.PendingSubmissions, sub)
		},
	})
	return sub, result
}

// Approve resolves a pending submission into an approved Match. The score
// is computed here, with the tournament's multiplier table as configured
// right now; later table edits never rewrite it.
func (s *SubmissionService) Approve(ctx context.Context, submissionID, reviewer string) (match.Match, syncop.Result) {
	sub, err := s.pending(submissionID)
	if err != nil {
		return match.Match{}, syncop.Result{Err: err}
	}

	t, found := findTournament(s.binders, sub.TournamentID)
	if !found {
		return match.Match{}, syncop.Result{Err: fmt.Errorf("%w: tournament=%s", ErrNotFound, sub.TournamentID)}
	}

	matchID, err := s.ids.NewID()
	if err != nil {
		return match.Match{}, syncop.Result{Err: fmt.Errorf("generate match id: %w", err)}
	}

	reviewedAt := s.now().UTC()
	approved := match.Match{
		ID:           matchID,
		TournamentID: sub.TournamentID,
		TeamCode:     sub.TeamCode,
		Position:     sub.Position,
		Kills:        sub.Kills,
		Score:        match.ComputeScore(sub.Kills, sub.Position, t.MultiplierTable()),
		Status:       match.StatusApproved,
		SubmittedAt:  sub.SubmittedAt,
		ReviewedAt:   &reviewedAt,
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "submission.approve",
		Collection: collection.Matches,
		LocalUpdate: func() error {
			if err := upsert(s.binders.Binder(collection.Matches), approved.ID, approved); err != nil {
				return err
			}
			s.binders.Binder(collection.PendingSubmissions).Remove(sub.ID)
			return nil
		},
		RemoteCall: func(ctx context.Context) error {
			if err := s.gateway.Create(ctx, collection.Matches, approved); err != nil {
				return err
			}
			if err := s.gateway.Delete(ctx, collection.PendingSubmissions, sub.ID); err != nil {
				s.logger.WarnContext(ctx, "pending record cleanup failed", "submission_id", sub.ID, "error", err)
			}
			return nil
		},
	})

	if result.Applied {
		s.audit.Record(ctx, "submission-approved", reviewer, sub.TournamentID,
			fmt.Sprintf("team=%s position=%d kills=%d score=%.1f", sub.TeamCode, sub.Position, sub.Kills, approved.Score))
	}
	return approved, result
}

// Reject resolves a pending submission by discarding it.
func (s *SubmissionService) Reject(ctx context.Context, submissionID, reviewer string) syncop.Result {
	sub, err := s.pending(submissionID)
	if err != nil {
		return syncop.Result{Err: err}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "submission.reject",
		Collection: collection.PendingSubmissions,
		LocalUpdate: func() error {
			s.binders.Binder(collection.PendingSubmissions).Remove(sub.ID)
			return nil
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Delete(ctx, collection.PendingSubmissions, sub.ID)
		},
	})

	if result.Applied {
		s.audit.Record(ctx, "submission-rejected", reviewer, sub.TournamentID,
			fmt.Sprintf("team=%s position=%d kills=%d", sub.TeamCode, sub.Position, sub.Kills))
	}
	return result
}

// List returns pending submissions, optionally filtered by tournament.
func (s *SubmissionService) List(tournamentID string) []submission.Submission {
	if tournamentID == "" {
		return binder.DecodeSnapshot[submission.Submission](s.binders.Binder(collection.PendingSubmissions))
	}
	return submissionsOf(s.binders, tournamentID)
}

func (s *SubmissionService) pending(submissionID string) (submission.Submission, error) {
	raw, ok := s.binders.Binder(collection.PendingSubmissions).Find(submissionID)
	if !ok {
		return submission.Submission{}, fmt.Errorf("%w: submission=%s", ErrAlreadyResolved, submissionID)
	}
	var sub submission.Submission
	if err := sonic.Unmarshal(raw, &sub); err != nil {
		return submission.Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	return sub, nil
}
