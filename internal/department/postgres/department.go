package postgres

import (
	"context"
	"errors"

	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/audit-management/internal/department"
	"gorm.io/gorm"
)

type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) ListTenantIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&datamodel.Tenant{}).
		Where("is_active = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *DepartmentRepository) ListDepartments(ctx context.Context, tenantID int64) ([]department.Department, error) {
	var rows []datamodel.Department
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]department.Department, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromDataModel(row))
	}
	return out, nil
}

func (r *DepartmentRepository) FindByName(ctx context.Context, tenantID int64, name string) (*department.Department, error) {
	var row datamodel.Department
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND TRIM(name) = ?", tenantID, name).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, department.ErrDepartmentNotFound
		}
		return nil, err
	}
	d := fromDataModel(row)
	return &d, nil
}

func (r *DepartmentRepository) HeadCandidates(ctx context.Context, departmentID int64) ([]department.Head, error) {
	return headCandidates(r.db.WithContext(ctx), departmentID)
}

func (r *DepartmentRepository) SetHeadProjection(ctx context.Context, departmentID int64, userID *int64) error {
	return setProjection(r.db.WithContext(ctx), departmentID, userID)
}

// SyncHead recomputes the head projection of one department using tx, so
// writers of department role assignments can keep both in one transaction.
func SyncHead(tx *gorm.DB, departmentID int64) error {
	candidates, err := headCandidates(tx, departmentID)
	if err != nil {
		return err
	}
	var head *int64
	if len(candidates) > 0 {
		id := candidates[0].UserID
		head = &id
	}
	return setProjection(tx, departmentID, head)
}

type headRow struct {
	UserID         int64
	DepartmentID   int64
	DepartmentName string
	RoleName       string
	IsPrimaryRole  bool
}

func headCandidates(db *gorm.DB, departmentID int64) ([]department.Head, error) {
	var rows []headRow
	err := db.Table("user_department_roles AS udr").
		Select("udr.user_id, udr.department_id, d.name AS department_name, r.name AS role_name, udr.is_primary_role").
		Joins("JOIN roles r ON r.id = udr.role_id").
		Joins("JOIN departments d ON d.id = udr.department_id").
		Joins("JOIN users u ON u.id = udr.user_id").
		Where("udr.department_id = ? AND r.tenant_id = d.tenant_id AND u.is_active = ?", departmentID, true).
		Order("udr.is_primary_role DESC, udr.user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	heads := make([]department.Head, 0, len(rows))
	seen := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		if !department.IsHeadRole(row.RoleName) {
			continue
		}
		if _, ok := seen[row.UserID]; ok {
			continue
		}
		seen[row.UserID] = struct{}{}
		heads = append(heads, department.Head(row))
	}
	return heads, nil
}

func setProjection(db *gorm.DB, departmentID int64, userID *int64) error {
	var value interface{} = gorm.Expr("NULL")
	if userID != nil {
		value = *userID
	}
	return db.Model(&datamodel.Department{}).Where("id = ?", departmentID).Update("hod_user_id", value).Error
}

func fromDataModel(row datamodel.Department) department.Department {
	return department.Department{
		ID:        row.ID,
		TenantID:  row.TenantID,
		Name:      row.Name,
		HODUserID: row.HODUserID,
	}
}
