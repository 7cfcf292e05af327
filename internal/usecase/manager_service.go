package usecase

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/manager"
	"github.com/openbracket/tourneysync/internal/platform/id"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/binder"
	"github.com/openbracket/tourneysync/internal/sync/syncop"
)

// ManagerService manages administrator accounts. Managers are deactivated
// rather than deleted so audit entries keep resolving their codes.
type ManagerService struct {
	binders *binder.Manager
	runner  *syncop.Runner
	gateway RecordGateway
	ids     id.Generator
	audit   *AuditService
	logger  *logging.Logger
	now     func() time.Time
}

func NewManagerService(
	binders *binder.Manager,
	runner *syncop.Runner,
	gateway RecordGateway,
	ids id.Generator,
	audit *AuditService,
	logger *logging.Logger,
) *ManagerService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ManagerService{
		binders: binders,
		runner:  runner,
		gateway: gateway,
		ids:     ids,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

type CreateManagerInput struct {
	Name        string
	Permissions []string
	CreatedBy   string
}

func (s *ManagerService) Create(ctx context.Context, input CreateManagerInput) (manager.Manager, syncop.Result) {
	code, err := s.allocateCode()
	if err != nil {
		return manager.Manager{}, syncop.Result{Err: err}
	}

	m := manager.Manager{
		AccessCode:  code,
		Name:        input.Name,
		Active:      true,
		Permissions: input.Permissions,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   s.now().UTC(),
	}
	if err := checkInput(m); err != nil {
		return manager.Manager{}, syncop.Result{Err: err}
	}

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "manager.create",
		Collection: collection.Managers,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.Managers), m.AccessCode, m)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Create(ctx, collection.Managers, m)
		},
	})
	if result.Applied {
		s.audit.Record(ctx, "manager-created", input.CreatedBy, "", m.Name)
	}
	return m, result
}

// Deactivate flips the manager's Active flag off. The record stays.
func (s *ManagerService) Deactivate(ctx context.Context, accessCode, actor string) syncop.Result {
	raw, ok := s.binders.Binder(collection.Managers).Find(accessCode)
	if !ok {
		return syncop.Result{Err: fmt.Errorf("%w: manager=%s", ErrNotFound, accessCode)}
	}
	var m manager.Manager
	if err := sonic.Unmarshal(raw, &m); err != nil {
		return syncop.Result{Err: fmt.Errorf("decode manager: %w", err)}
	}
	m.Active = false

	result := s.runner.Run(ctx, syncop.Operation{
		Name:       "manager.deactivate",
		Collection: collection.Managers,
		LocalUpdate: func() error {
			return upsert(s.binders.Binder(collection.Managers), m.AccessCode, m)
		},
		RemoteCall: func(ctx context.Context) error {
			return s.gateway.Update(ctx, collection.Managers, m.AccessCode, m)
		},
	})
	if result.Applied {
		s.audit.Record(ctx, "manager-deactivated", actor, "", m.Name)
	}
	return result
}

// List returns every manager account.
func (s *ManagerService) List() []manager.Manager {
	return binder.DecodeSnapshot[manager.Manager](s.binders.Binder(collection.Managers))
}

func (s *ManagerService) allocateCode() (string, error) {
	for attempt := 0; attempt < codeAllocationAttempts; attempt++ {
		code, err := s.ids.NewAccessCode()
		if err != nil {
			return "", fmt.Errorf("generate access code: %w", err)
		}
		if _, ok := s.binders.Binder(collection.Managers).Find(code); ok {
			continue
		}
		if _, ok := s.binders.Binder(collection.Teams).Find(code); ok {
			continue
		}
		return code, nil
	}
	return "", ErrCodeCollision
}
