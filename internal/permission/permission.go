package permission

import (
	"context"
	"fmt"
	"time"

	errors "github.com/frahmantamala/audit-management/internal"
)

var (
	ErrInvalidCapability  = errors.NewValidationError("capability must have the form module:action", errors.ErrCodeInvalidCapability)
	ErrPrincipalRequired  = errors.NewValidationError("principal identifier is required", errors.ErrCodePrincipalRequired)
	ErrTenantRequired     = errors.NewValidationError("tenant context is required", errors.ErrCodeTenantRequired)
	ErrCapabilityNotFound = errors.NewNotFoundError("capability not found in catalog", errors.ErrCodeCapabilityNotFound)
	ErrTenantNotFound     = errors.NewNotFoundError("tenant not found", errors.ErrCodeTenantNotFound)
	ErrPrincipalNotFound  = errors.NewNotFoundError("user not found", errors.ErrCodePrincipalNotFound)
	ErrRoleNotFound       = errors.NewNotFoundError("role not found", errors.ErrCodeRoleNotFound)
	ErrDepartmentNotFound = errors.NewNotFoundError("department not found", errors.ErrCodeDepartmentNotFound)
	ErrTenantMismatch     = errors.NewConflictError("role belongs to a different tenant", errors.ErrCodeTenantMismatch)
	ErrOverrideExpired    = errors.NewValidationError("override expiry must be in the future", errors.ErrCodeOverrideExpired)
)

// TenantMismatchError records a role id that resolved to a role of another
// tenant. Resolution treats it as "no grant".
type TenantMismatchError struct {
	RoleID            int64
	RoleTenantID      int64
	PrincipalTenantID int64
}

func (e TenantMismatchError) Error() string {
	return fmt.Sprintf("role %d belongs to tenant %d, principal tenant is %d", e.RoleID, e.RoleTenantID, e.PrincipalTenantID)
}

func (e TenantMismatchError) Unwrap() error {
	return ErrTenantMismatch
}

type Role struct {
	ID          int64  `json:"id"`
	TenantID    int64  `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"is_default"`
	IsRemovable bool   `json:"is_removable"`
}

type User struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type Department struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	Name      string `json:"name"`
	HODUserID *int64 `json:"hod_user_id,omitempty"`
}

// Override is a direct per-user grant or denial of one capability.
type Override struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	PermissionID int64      `json:"permission_id"`
	Allowed      bool       `json:"allowed"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	GrantedBy    *int64     `json:"granted_by,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ActiveAt reports whether the override still applies at t.
func (o Override) ActiveAt(t time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(t)
}

// Store is the read side used by resolution and discovery.
type Store interface {
	TenantExists(ctx context.Context, tenantID int64) (bool, error)
	FindCapability(ctx context.Context, module, action string) (*Capability, error)
	FindActiveOverride(ctx context.Context, userID, permissionID int64, at time.Time) (*Override, error)
	FindActiveOverrides(ctx context.Context, userIDs []int64, permissionID int64, at time.Time) ([]Override, error)
	FindRoles(ctx context.Context, roleIDs []int64) ([]Role, error)
	GrantingRoleIDs(ctx context.Context, roleIDs []int64, permissionID int64) ([]int64, error)
}

// AdminStore adds the administrative write paths.
type AdminStore interface {
	Store
	FindUser(ctx context.Context, userID int64) (*User, error)
	FindRole(ctx context.Context, roleID int64) (*Role, error)
	FindDepartment(ctx context.Context, departmentID int64) (*Department, error)
	LoadAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error)
	ListCapabilities(ctx context.Context) ([]Capability, error)
	EnsureCapability(ctx context.Context, module, action, description string) (*Capability, error)
	SetRolePermission(ctx context.Context, roleID, permissionID int64, allowed bool) error
	UpsertOverride(ctx context.Context, override *Override) error
	DeleteOverride(ctx context.Context, userID, permissionID int64) error
	AssignTenantRole(ctx context.Context, userID, roleID int64, isDefault bool) error
	UnassignTenantRole(ctx context.Context, userID, roleID int64) error
	AssignDepartmentRole(ctx context.Context, userID int64, assignment RoleAssignment) error
	UnassignDepartmentRole(ctx context.Context, userID, departmentID, roleID int64) error
}
