package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/audit-management/internal/permission"
)

type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (*permission.Principal, error)
}

type Catalog interface {
	ListCapabilities(ctx context.Context) ([]permission.Capability, error)
}

type Checker interface {
	HasCapability(ctx context.Context, principal permission.Principal, capability string) (bool, error)
}

type Service struct {
	repo       Repository
	principals PrincipalLoader
	catalog    Catalog
	checker    Checker
	logger     *slog.Logger
}

func NewService(repo Repository, principals PrincipalLoader, catalog Catalog, checker Checker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		principals: principals,
		catalog:    catalog,
		checker:    checker,
		logger:     logger,
	}
}

// Me loads the caller's profile from stored assignments rather than from the
// token, so revoked roles disappear before the token expires.
func (s *Service) Me(ctx context.Context, actor permission.Principal) (*Profile, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	profile, err := s.repo.FindByID(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}

	current, err := s.principals.LoadPrincipal(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("failed to load assignments", "user_id", actor.UserID, "error", err)
		return nil, err
	}
	profile.Roles = current.Assignments

	caps, err := s.catalog.ListCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	profile.Capabilities = make([]string, 0, len(caps))
	for _, c := range caps {
		allowed, err := s.checker.HasCapability(ctx, *current, c.Key())
		if err != nil {
			s.logger.Error("failed to resolve capability", "user_id", actor.UserID, "capability", c.Key(), "error", err)
			return nil, err
		}
		if allowed {
			profile.Capabilities = append(profile.Capabilities, c.Key())
		}
	}
	return profile, nil
}
