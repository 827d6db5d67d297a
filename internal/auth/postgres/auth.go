package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/audit-management/internal/auth"
	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) FindCredentials(ctx context.Context, tenantID int64, email string) (*auth.Credentials, error) {
	var user datamodel.User
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ? AND is_active = ?", tenantID, email, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &auth.Credentials{
		UserID:       user.ID,
		TenantID:     user.TenantID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
	}, nil
}
