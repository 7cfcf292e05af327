package usecase

import (
	"context"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/auditlog"
	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/platform/id"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/syncop"
)

// AuditService appends to the capped, newest-first audit log. Recording is
// best effort everywhere it is called from: a failed audit write never
// fails the operation being audited.
type AuditService struct {
	binders *binder.Manager
	runner  *syncop.Runner
	gateway RecordGateway
	ids     id.Generator
	logger  *logging.Logger
	now     func() time.Time
}

func NewAuditService(
	binders *binder.Manager,
	runner *syncop.Runner,
	gateway RecordGateway,
	ids id.Generator,
	logger *logging.Logger,
) *AuditService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditService{
		binders: binders,
		runner:  runner,
		gateway: gateway,
		ids:     ids,
		logger:  logger,
		now:     time.Now,
	}
}

// Record appends one entry. Nil receivers are allowed so services can be
// wired without auditing in tests.
func (s *AuditService) Record(ctx context.Context, action, actor, tournamentID, details string) {
	if s == nil {
		return
	}

	newID, err := s.ids.NewID()
	if err != nil {
		s.logger.WarnContext(ctx, "audit entry dropped", "action", action, "error", err)
		return
	}

	entry := auditlog.Entry{
		ID:           newID,
		Action:       action,
		Details:      details,
		Actor:        actor,
		ActorRole:    "manager",
		TournamentID: tournamentID,
		CreatedAt:    s.now().UTC(),
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "audit.record",
		Collection: collection.AuditLogs,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.AuditLogs), entry.ID, entry)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Create(ctx, collection.AuditLogs, entry)
		},
	})
	if result.Err != nil && !result.Applied {
		s.logger.WarnContext(ctx, "audit entry dropped", "action", action, "error", result.Err)
	}
}

// List returns the audit log, newest first.
func (s *AuditService) List() []auditlog.Entry {
	return binder.DecodeSnapshot[auditlog.Entry](s.binders.Binder(collection.AuditLogs))
}
