package discovery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/audit-management/internal/permission"
)

// OverrideRoleName is reported as the role of a member included only through
// a standing override grant.
const OverrideRoleName = "override"

type Recipient struct {
	UserID         int64  `json:"user_id"`
	RoleName       string `json:"role_name"`
	DepartmentName string `json:"department_name,omitempty"`
}

// Member is one active user of a tenant with every role assignment loaded.
type Member struct {
	UserID      int64
	Assignments []permission.RoleAssignment
}

// MemberSource enumerates the active members of a tenant ordered by user id.
type MemberSource interface {
	TenantMembers(ctx context.Context, tenantID int64) ([]Member, error)
}

// RuleSet is the subset of the resolution engine that discovery reuses.
type RuleSet interface {
	EnsureTenant(ctx context.Context, tenantID int64) error
	LookupCapability(ctx context.Context, module, action string) (*permission.Capability, error)
	GrantedRoles(ctx context.Context, tenantID int64, roleIDs []int64, permissionID int64) (permission.RoleGrants, error)
	ActiveOverrides(ctx context.Context, userIDs []int64, permissionID int64) (map[int64]permission.Override, error)
}

type Options struct {
	// ConsultOverrides makes discovery honor standing per-user overrides the
	// way resolution does. Off by default: discovery reports role holders.
	ConsultOverrides bool
}

type Finder struct {
	members MemberSource
	rules   RuleSet
	logger  *slog.Logger
	opts    Options
}

func NewFinder(members MemberSource, rules RuleSet, logger *slog.Logger, opts Options) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{members: members, rules: rules, logger: logger, opts: opts}
}

// FindPrincipalsWithCapability lists the members of tenantID holding module:action,
// limited to department when it is non-empty. Each user appears at most once
// with the first qualifying role. An empty result is not an error.
func (f *Finder) FindPrincipalsWithCapability(ctx context.Context, tenantID int64, module, action, department string) ([]Recipient, error) {
	if err := f.rules.EnsureTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	capability, err := f.rules.LookupCapability(ctx, module, action)
	if err != nil {
		return nil, err
	}

	members, err := f.members.TenantMembers(ctx, tenantID)
	if err != nil {
		f.logger.Error("failed to scan tenant members", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	grants, err := f.rules.GrantedRoles(ctx, tenantID, collectRoleIDs(members), capability.ID)
	if err != nil {
		return nil, err
	}

	var overrides map[int64]permission.Override
	if f.opts.ConsultOverrides {
		overrides, err = f.rules.ActiveOverrides(ctx, memberIDs(members), capability.ID)
		if err != nil {
			return nil, err
		}
	}

	filter := strings.TrimSpace(department)
	seen := make(map[int64]struct{}, len(members))
	recipients := make([]Recipient, 0)

	for _, m := range members {
		if _, dup := seen[m.UserID]; dup {
			continue
		}

		if f.opts.ConsultOverrides {
			if o, ok := overrides[m.UserID]; ok {
				if !o.Allowed {
					continue
				}
				if deptName, inDept := departmentMatch(m, filter); inDept {
					seen[m.UserID] = struct{}{}
					recipients = append(recipients, Recipient{UserID: m.UserID, RoleName: OverrideRoleName, DepartmentName: deptName})
					continue
				}
			}
		}

		if r, ok := match(m, grants, filter); ok {
			seen[m.UserID] = struct{}{}
			recipients = append(recipients, r)
		}
	}

	f.logger.Debug("recipients discovered",
		"tenant_id", tenantID,
		"capability", capability.Key(),
		"department", filter,
		"scanned", len(members),
		"matched", len(recipients))
	return recipients, nil
}

// match walks tenant-wide assignments first; a tenant-wide holder qualifies for
// a department only when separately attached to it. Department-scoped
// assignments count only for the requested department.
func match(m Member, grants permission.RoleGrants, filter string) (Recipient, bool) {
	deptName, inDept := departmentMatch(m, filter)

	for _, a := range m.Assignments {
		if a.IsDepartmentScoped() || !grants.Grants(a.RoleID) {
			continue
		}
		if inDept {
			return Recipient{UserID: m.UserID, RoleName: roleName(a, grants), DepartmentName: deptName}, true
		}
	}

	for _, a := range m.Assignments {
		if !a.IsDepartmentScoped() || !grants.Grants(a.RoleID) {
			continue
		}
		name := strings.TrimSpace(a.DepartmentName)
		if filter == "" || name == filter {
			return Recipient{UserID: m.UserID, RoleName: roleName(a, grants), DepartmentName: name}, true
		}
	}

	return Recipient{}, false
}

// departmentMatch reports whether the member is attached to filter and the
// trimmed department name. With no filter every member matches.
func departmentMatch(m Member, filter string) (string, bool) {
	if filter == "" {
		return "", true
	}
	for _, a := range m.Assignments {
		if a.IsDepartmentScoped() && strings.TrimSpace(a.DepartmentName) == filter {
			return filter, true
		}
	}
	return "", false
}

func roleName(a permission.RoleAssignment, grants permission.RoleGrants) string {
	if a.RoleName != "" {
		return a.RoleName
	}
	return grants.Names[a.RoleID]
}

func collectRoleIDs(members []Member) []int64 {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, m := range members {
		for _, a := range m.Assignments {
			if _, ok := seen[a.RoleID]; ok || a.RoleID == 0 {
				continue
			}
			seen[a.RoleID] = struct{}{}
			ids = append(ids, a.RoleID)
		}
	}
	return ids
}

func memberIDs(members []Member) []int64 {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}
