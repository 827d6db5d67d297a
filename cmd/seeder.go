package cmd

import (
	"context"
	"fmt"
	"log"

	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	departmentpg "github.com/frahmantamala/audit-management/internal/department/postgres"
	"github.com/frahmantamala/audit-management/internal/permission"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var clearData bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the capability catalog and a demo tenant with departments, roles and users.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		deps, err := initializeDependencies(ctx)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		catalog, err := deps.Permissions.EnsureCatalog(ctx, permission.DefaultCatalog)
		if err != nil {
			log.Fatalf("failed to seed capability catalog: %v", err)
		}
		fmt.Println("Seeded capabilities:", len(catalog))

		err = deps.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if clearData {
				if err := clearSeed(tx); err != nil {
					return err
				}
			}
			return seedTenant(tx, catalog, deps.Config.Security.BCryptCost)
		})
		if err != nil {
			log.Fatalf("failed to seed tenant: %v", err)
		}
		fmt.Println("Seeding complete. Every demo user logs in with password \"password\".")
	},
}

type seedRole struct {
	name         string
	capabilities []string
}

// demo roles; HOD and DOC CONTROLLER are meant to be assigned per department
var seedRoles = []seedRole{
	{"ADMIN", []string{"permission:read", "permission:manage", "notification:read", "auditProgram:read", "document:read"}},
	{"AUDITOR", []string{"auditFinding:create", "auditProgram:create", "auditProgram:read", "document:read", "notification:read"}},
	{"QUALITY MANAGER", []string{"auditProgram:approve", "auditProgram:read", "notification:read"}},
	{"HOD", []string{"auditFinding:read", "auditFinding:update", "document:create", "document:approve", "document:read", "notification:read"}},
	{"DOC CONTROLLER", []string{"document:update", "document:read", "notification:read"}},
	{"STAFF", []string{"document:create", "document:read", "notification:read"}},
}

type seedUser struct {
	email      string
	name       string
	tenantRole string
	department string
	deptRole   string
}

var seedUsers = []seedUser{
	{"admin@audit.local", "Tenant Admin", "ADMIN", "", ""},
	{"auditor@audit.local", "Lead Auditor", "AUDITOR", "", ""},
	{"qm@audit.local", "Quality Manager", "QUALITY MANAGER", "", ""},
	{"hod.finance@audit.local", "Finance Head", "", "Finance", "HOD"},
	{"hod.it@audit.local", "IT Head", "", "IT", "HOD"},
	{"docs.finance@audit.local", "Finance Document Controller", "", "Finance", "DOC CONTROLLER"},
	{"staff.finance@audit.local", "Finance Staff", "", "Finance", "STAFF"},
}

var seedDepartments = []string{"Finance", "IT", "Operations"}

func seedTenant(tx *gorm.DB, catalog []permission.Capability, cost int) error {
	tenant := datamodel.Tenant{Name: "Demo Tenant"}
	if err := tx.Where(datamodel.Tenant{Name: tenant.Name}).FirstOrCreate(&tenant).Error; err != nil {
		return fmt.Errorf("tenant: %w", err)
	}

	capIDs := make(map[string]int64, len(catalog))
	for _, c := range catalog {
		capIDs[c.Key()] = c.ID
	}

	departments := make(map[string]int64, len(seedDepartments))
	for _, name := range seedDepartments {
		d := datamodel.Department{TenantID: tenant.ID, Name: name}
		if err := tx.Where(datamodel.Department{TenantID: tenant.ID, Name: name}).FirstOrCreate(&d).Error; err != nil {
			return fmt.Errorf("department %s: %w", name, err)
		}
		departments[name] = d.ID
	}

	roles := make(map[string]int64, len(seedRoles))
	for _, sr := range seedRoles {
		r := datamodel.Role{TenantID: tenant.ID, Name: sr.name}
		if err := tx.Where(datamodel.Role{TenantID: tenant.ID, Name: sr.name}).FirstOrCreate(&r).Error; err != nil {
			return fmt.Errorf("role %s: %w", sr.name, err)
		}
		roles[sr.name] = r.ID

		for _, key := range sr.capabilities {
			pid, ok := capIDs[key]
			if !ok {
				return fmt.Errorf("role %s references unknown capability %s", sr.name, key)
			}
			rp := datamodel.RolePermission{RoleID: r.ID, PermissionID: pid, Allowed: true}
			if err := tx.Where(datamodel.RolePermission{RoleID: r.ID, PermissionID: pid}).FirstOrCreate(&rp).Error; err != nil {
				return fmt.Errorf("role permission %s/%s: %w", sr.name, key, err)
			}
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), cost)
	if err != nil {
		return err
	}

	for _, su := range seedUsers {
		u := datamodel.User{TenantID: tenant.ID, Email: su.email, Name: su.name, PasswordHash: string(hash)}
		if err := tx.Where(datamodel.User{TenantID: tenant.ID, Email: su.email}).FirstOrCreate(&u).Error; err != nil {
			return fmt.Errorf("user %s: %w", su.email, err)
		}

		if su.tenantRole != "" {
			ur := datamodel.UserRole{UserID: u.ID, RoleID: roles[su.tenantRole], IsDefault: true}
			if err := tx.Where(datamodel.UserRole{UserID: u.ID, RoleID: ur.RoleID}).FirstOrCreate(&ur).Error; err != nil {
				return fmt.Errorf("user role %s: %w", su.email, err)
			}
		}

		if su.deptRole != "" {
			deptID := departments[su.department]
			udr := datamodel.UserDepartmentRole{
				UserID: u.ID, DepartmentID: deptID, RoleID: roles[su.deptRole],
				IsDefault: true, IsPrimaryDepartment: true, IsPrimaryRole: true,
			}
			where := datamodel.UserDepartmentRole{UserID: u.ID, DepartmentID: deptID, RoleID: udr.RoleID}
			if err := tx.Where(where).FirstOrCreate(&udr).Error; err != nil {
				return fmt.Errorf("department role %s: %w", su.email, err)
			}
			if err := departmentpg.SyncHead(tx, deptID); err != nil {
				return fmt.Errorf("sync head of %s: %w", su.department, err)
			}
		}
		fmt.Println("Seeded user:", su.email)
	}
	return nil
}

// clearSeed removes tenant scoped rows; the capability catalog is kept.
func clearSeed(tx *gorm.DB) error {
	tables := []string{
		"notifications", "document_change_requests", "audit_programs", "findings",
		"user_permissions", "user_department_roles", "user_roles", "role_permissions",
	}
	for _, t := range tables {
		if err := tx.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	if err := tx.Exec("UPDATE departments SET hod_user_id = NULL").Error; err != nil {
		return err
	}
	for _, t := range []string{"users", "roles", "departments", "tenants"} {
		if err := tx.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	fmt.Println("Cleared existing data")
	return nil
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}
