package postgres

import (
	"context"
	"errors"

	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/audit-management/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, tenantID, userID int64) (*user.Profile, error) {
	var row datamodel.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND is_active = ?", userID, tenantID, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}
