package user

import (
	"context"
	"time"

	errors "github.com/frahmantamala/audit-management/internal"
	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/audit-management/internal/permission"
)

var ErrNotFound = errors.NewNotFoundError("user not found", errors.ErrCodePrincipalNotFound)

// Profile is the caller's own view of their account: stored assignments and
// the capabilities they currently resolve to.
type Profile struct {
	ID           int64                       `json:"id"`
	TenantID     int64                       `json:"tenant_id"`
	Email        string                      `json:"email"`
	Name         string                      `json:"name"`
	IsActive     bool                        `json:"is_active"`
	Roles        []permission.RoleAssignment `json:"roles"`
	Capabilities []string                    `json:"capabilities"`
	CreatedAt    time.Time                   `json:"created_at"`
}

type Repository interface {
	FindByID(ctx context.Context, tenantID, userID int64) (*Profile, error)
}

func FromDataModel(u *datamodel.User) *Profile {
	return &Profile{
		ID:        u.ID,
		TenantID:  u.TenantID,
		Email:     u.Email,
		Name:      u.Name,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
