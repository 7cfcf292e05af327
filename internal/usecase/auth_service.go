package usecase

import (
	"context"
	"fmt"
	"strings"

	sonic "github.com/bytedance/sonic"

	"github.com/openbracket/tourneysync/internal/domain/collection"
	"github.com/openbracket/tourneysync/internal/domain/manager"
	"github.com/openbracket/tourneysync/internal/domain/team"
	"github.com/openbracket/tourneysync/internal/platform/logging"
	"github.com/openbracket/tourneysync/internal/sync/binder"
)

const (
	RoleManager = "manager"
	RoleTeam    = "team"
)

// Identity is a resolved access code.
type Identity struct {
	Role         string
	Identifier   string
	Name         string
	TournamentID string
}

// AuthService resolves access codes. The local code tables answer first so
// login works offline; the remote login endpoint is strictly a last resort
// for codes this device has never synced.
type AuthService struct {
	binders *binder.Manager
	gateway LoginGateway
	logger  *logging.Logger
}

func NewAuthService(binders *binder.Manager, gateway LoginGateway, logger *logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthService{binders: binders, gateway: gateway, logger: logger}
}

func (s *AuthService) Login(ctx context.Context, code string) (Identity, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Identity{}, fmt.Errorf("%w: access code is required", ErrInvalidInput)
	}

	if raw, ok := s.binders.Binder(collection.Managers).Find(code); ok {
		var m manager.Manager
		if err := sonic.Unmarshal(raw, &m); err == nil {
			if !m.Active {
				return Identity{}, fmt.Errorf("%w: manager account is deactivated", ErrUnauthorized)
			}
			return Identity{Role: RoleManager, Identifier: m.AccessCode, Name: m.Name}, nil
		}
	}

	if raw, ok := s.binders.Binder(collection.Teams).Find(code); ok {
		var t team.Team
		if err := sonic.Unmarshal(raw, &t); err == nil {
			return Identity{Role: RoleTeam, Identifier: t.AccessCode, Name: t.Name, TournamentID: t.TournamentID}, nil
		}
	}

	if s.gateway == nil {
		return Identity{}, fmt.Errorf("%w: unknown access code", ErrUnauthorized)
	}

	session, err := s.gateway.Login(ctx, code, "")
	if err != nil {
		s.logger.WarnContext(ctx, "remote login fallback failed", "error", err)
		return Identity{}, fmt.Errorf("%w: unknown access code", ErrUnauthorized)
	}
	return Identity{
		Role:         session.Role,
		Identifier:   session.Identifier,
		TournamentID: session.TournamentID,
	}, nil
}
