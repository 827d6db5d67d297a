package postgres

import (
	"context"

	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/audit-management/internal/discovery"
	permissionPostgres "github.com/frahmantamala/audit-management/internal/permission/postgres"
	"gorm.io/gorm"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// TenantMembers is a bulk scan of the tenant: one query for users and one per
// assignment kind.
func (r *MemberRepository) TenantMembers(ctx context.Context, tenantID int64) ([]discovery.Member, error) {
	db := r.db.WithContext(ctx)

	var userIDs []int64
	err := db.Model(&datamodel.User{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("id").
		Pluck("id", &userIDs).Error
	if err != nil {
		return nil, err
	}

	assignments, err := permissionPostgres.LoadAssignmentsFor(db, userIDs)
	if err != nil {
		return nil, err
	}

	members := make([]discovery.Member, 0, len(userIDs))
	for _, id := range userIDs {
		members = append(members, discovery.Member{UserID: id, Assignments: assignments[id]})
	}
	return members, nil
}
