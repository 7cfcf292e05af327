package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/adjustment"
	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/id"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/syncop"
)

// AdjustmentService manages manual score deltas. Adjustments are immutable
// once created; the only follow-up operation is an explicit delete.
type AdjustmentService struct {
	binders *binder.Manager
	runner  *syncop.Runner
	gateway RecordGateway
	ids     id.Generator
	audit   *AuditService
	logger  *logging.Logger
	now     func() time.Time
}

func NewAdjustmentService(
	binders *binder.Manager,
	runner *syncop.Runner,
	gateway RecordGateway,
	ids id.Generator,
	audit *AuditService,
	logger *logging.Logger,
) *AdjustmentService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdjustmentService{
		binders: binders,
		runner:  runner,
		gateway: gateway,
		ids:     ids,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

type CreateAdjustmentInput struct {
	TournamentID string
	TeamCode     string
	TeamName     string
	Points       float64
	Reason       string
	Category     adjustment.Category
	AppliedBy    string
}

func (s *AdjustmentService) Create(ctx context.Context, input CreateAdjustmentInput) (adjustment.Adjustment, syncop.Result) {
	newID, err := s.ids.NewID()
	if err != nil {
		return adjustment.Adjustment{}, syncop.Result{Err: fmt.Errorf("generate adjustment id: %w", err)}
	}

	a := adjustment.Adjustment{
		ID:           newID,
		TournamentID: input.TournamentID,
		TeamCode:     input.TeamCode,
		TeamName:     input.TeamName,
		Points:       input.Points,
		Reason:       input.Reason,
		Category:     input.Category,
		AppliedBy:    input.AppliedBy,
		CreatedAt:    s.now().UTC(),
	}
	if err := checkInput(a); err != nil {
		return adjustment.Adjustment{}, syncop.Result{Err: err}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "adjustment.create",
		Collection: collection.ScoreAdjustments,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.ScoreAdjustments), a.ID, a)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Create(ctx, collection.ScoreAdjustments, a)
		},
	})

	if result.Applied {
		s.audit.Record(ctx, "adjustment-created", input.AppliedBy, input.TournamentID,
			fmt.Sprintf("team=%s points=%+.1f reason=%s", a.TeamCode, a.Points, a.Reason))
	}
	return a, result
}

func (s *AdjustmentService) Delete(ctx context.Context, adjustmentID, actor string) syncop.Result {
	if _, ok := s.binders.Binder(collection.ScoreAdjustments).Find(adjustmentID); !ok {
		return syncop.Result{Err: fmt.Errorf("%w: adjustment=%s", ErrNotFound, adjustmentID)}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "adjustment.delete",
		Collection: collection.ScoreAdjustments,
		LocalUpdate: func() error {
			s.binders.Binder(collection.ScoreAdjustments).Remove(adjustmentID)
			return nil
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Delete(ctx, collection.ScoreAdjustments, adjustmentID)
		},
	})
	if result.Applied {
		s.audit.Record(ctx, "adjustment-deleted", actor, "", adjustmentID)
	}
	return result
}

// List returns adjustments, optionally filtered by tournament.
func (s *AdjustmentService) List(tournamentID string) []adjustment.Adjustment {
	if tournamentID == "" {
		return binder.DecodeSnapshot[adjustment.Adjustment](s.binders.Binder(collection.ScoreAdjustments))
	}
	return adjustmentsOf(s.binders, tournamentID)
}
