package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/audit-management/internal/core/common/validation"
)

// Service holds the administrative operations over the permission store.
// Callers authorize the actor (permission:manage) before reaching it.
type Service struct {
	store    AdminStore
	resolver *Resolver
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store AdminStore, resolver *Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// LoadPrincipal builds a principal from stored assignments, for callers that
// have no signed claim list (CLI, background jobs).
func (s *Service) LoadPrincipal(ctx context.Context, userID int64) (*Principal, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.LoadAssignments(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load role assignments", "error", err, "user_id", userID)
		return nil, err
	}
	return &Principal{UserID: user.ID, TenantID: user.TenantID, Assignments: assignments}, nil
}

func (s *Service) ListCapabilities(ctx context.Context) ([]Capability, error) {
	return s.store.ListCapabilities(ctx)
}

// EnsureCatalog upserts every entry; it is safe to run repeatedly.
func (s *Service) EnsureCatalog(ctx context.Context, entries []Capability) ([]Capability, error) {
	out := make([]Capability, 0, len(entries))
	for _, entry := range entries {
		c, err := s.store.EnsureCapability(ctx, NormalizeName(entry.Module), NormalizeName(entry.Action), entry.Description)
		if err != nil {
			s.logger.Error("failed to ensure capability", "error", err, "capability", entry.Key())
			return nil, err
		}
		out = append(out, *c)
	}
	s.logger.Info("capability catalog ensured", "count", len(out))
	return out, nil
}

func (s *Service) GrantOverride(ctx context.Context, actor Principal, dto GrantOverrideDTO) (*Override, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if dto.ExpiresAt != nil && !dto.ExpiresAt.After(s.now()) {
		return nil, ErrOverrideExpired
	}

	if _, err := s.userInTenant(ctx, dto.UserID, actor.TenantID); err != nil {
		return nil, err
	}

	capability, err := s.capability(ctx, dto.Capability)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if dto.ExpiresAt != nil {
		t := dto.ExpiresAt.UTC()
		expiresAt = &t
	}

	grantedBy := actor.UserID
	override := &Override{
		UserID:       dto.UserID,
		PermissionID: capability.ID,
		Allowed:      dto.Allowed,
		ExpiresAt:    expiresAt,
		GrantedBy:    &grantedBy,
		Reason:       dto.Reason,
	}
	if err := s.store.UpsertOverride(ctx, override); err != nil {
		s.logger.Error("failed to store override", "error", err, "user_id", dto.UserID, "capability", capability.Key())
		return nil, err
	}

	s.logger.Info("override granted",
		"user_id", dto.UserID,
		"capability", capability.Key(),
		"allowed", dto.Allowed,
		"granted_by", actor.UserID)
	return override, nil
}

func (s *Service) RevokeOverride(ctx context.Context, actor Principal, userID int64, rawCapability string) error {
	if _, err := s.userInTenant(ctx, userID, actor.TenantID); err != nil {
		return err
	}
	capability, err := s.capability(ctx, rawCapability)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOverride(ctx, userID, capability.ID); err != nil {
		s.logger.Error("failed to revoke override", "error", err, "user_id", userID, "capability", capability.Key())
		return err
	}
	s.logger.Info("override revoked", "user_id", userID, "capability", capability.Key(), "revoked_by", actor.UserID)
	return nil
}

func (s *Service) SetRolePermission(ctx context.Context, actor Principal, dto RolePermissionDTO) error {
	if verr := validation.Struct(dto); verr != nil {
		return verr
	}
	role, err := s.store.FindRole(ctx, dto.RoleID)
	if err != nil {
		return err
	}
	if role.TenantID != actor.TenantID {
		return ErrTenantMismatch
	}
	capability, err := s.capability(ctx, dto.Capability)
	if err != nil {
		return err
	}
	if err := s.store.SetRolePermission(ctx, role.ID, capability.ID, dto.Allowed); err != nil {
		s.logger.Error("failed to set role permission", "error", err, "role_id", role.ID, "capability", capability.Key())
		return err
	}
	s.logger.Info("role permission set", "role_id", role.ID, "capability", capability.Key(), "allowed", dto.Allowed)
	return nil
}

func (s *Service) AssignRole(ctx context.Context, actor Principal, dto AssignRoleDTO) error {
	if verr := validation.Struct(dto); verr != nil {
		return verr
	}
	assignment, err := s.checkAssignment(ctx, actor.TenantID, dto)
	if err != nil {
		return err
	}

	if assignment.IsDepartmentScoped() {
		err = s.store.AssignDepartmentRole(ctx, dto.UserID, assignment)
	} else {
		err = s.store.AssignTenantRole(ctx, dto.UserID, dto.RoleID, dto.IsDefault)
	}
	if err != nil {
		s.logger.Error("failed to assign role", "error", err, "user_id", dto.UserID, "role_id", dto.RoleID, "department_id", dto.DepartmentID)
		return err
	}

	s.logger.Info("role assigned", "user_id", dto.UserID, "role_id", dto.RoleID, "scope", assignment.Scope, "department_id", dto.DepartmentID)
	return nil
}

// UnassignRole hard-deletes the assignment row.
func (s *Service) UnassignRole(ctx context.Context, actor Principal, dto AssignRoleDTO) error {
	if verr := validation.Struct(dto); verr != nil {
		return verr
	}
	assignment, err := s.checkAssignment(ctx, actor.TenantID, dto)
	if err != nil {
		return err
	}

	if assignment.IsDepartmentScoped() {
		err = s.store.UnassignDepartmentRole(ctx, dto.UserID, dto.DepartmentID, dto.RoleID)
	} else {
		err = s.store.UnassignTenantRole(ctx, dto.UserID, dto.RoleID)
	}
	if err != nil {
		s.logger.Error("failed to unassign role", "error", err, "user_id", dto.UserID, "role_id", dto.RoleID)
		return err
	}

	s.logger.Info("role unassigned", "user_id", dto.UserID, "role_id", dto.RoleID, "scope", assignment.Scope)
	return nil
}

func (s *Service) checkAssignment(ctx context.Context, tenantID int64, dto AssignRoleDTO) (RoleAssignment, error) {
	user, err := s.userInTenant(ctx, dto.UserID, tenantID)
	if err != nil {
		return RoleAssignment{}, err
	}
	role, err := s.store.FindRole(ctx, dto.RoleID)
	if err != nil {
		return RoleAssignment{}, err
	}
	if role.TenantID != user.TenantID {
		return RoleAssignment{}, ErrTenantMismatch
	}

	assignment := dto.Assignment()
	if assignment.IsDepartmentScoped() {
		dept, err := s.store.FindDepartment(ctx, dto.DepartmentID)
		if err != nil {
			return RoleAssignment{}, err
		}
		if dept.TenantID != user.TenantID {
			return RoleAssignment{}, ErrTenantMismatch
		}
		assignment = assignment.Named(role.Name, dept.Name)
	} else {
		assignment = assignment.Named(role.Name, "")
	}
	return assignment, nil
}

func (s *Service) userInTenant(ctx context.Context, userID, tenantID int64) (*User, error) {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	// users of other tenants are reported as absent
	if user.TenantID != tenantID {
		return nil, ErrPrincipalNotFound
	}
	return user, nil
}

func (s *Service) capability(ctx context.Context, raw string) (*Capability, error) {
	parsed, err := ParseCapability(raw)
	if err != nil {
		return nil, err
	}
	return s.resolver.LookupCapability(ctx, parsed.Module, parsed.Action)
}
