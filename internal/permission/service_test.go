package permission_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	apperrors "github.com/frahmantamala/audit-management/internal"
	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/audit-management/internal/core/testdb"
	"github.com/frahmantamala/audit-management/internal/permission"
	permissionPostgres "github.com/frahmantamala/audit-management/internal/permission/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Permission Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		fx       *testdb.Fixture
		service  *permission.Service
		resolver *permission.Resolver

		tenantID, otherTenantID int64
		adminID, userID         int64
		auditorRole, hodRole    int64
		financeID               int64
		admin                   permission.Principal
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		fx = testdb.NewFixture(db)

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store := permissionPostgres.NewStore(db)
		resolver = permission.NewResolver(store, logger)
		service = permission.NewService(store, resolver, logger)

		_, err = service.EnsureCatalog(ctx, permission.DefaultCatalog)
		Expect(err).NotTo(HaveOccurred())

		tenantID = fx.Tenant("acme")
		otherTenantID = fx.Tenant("globex")
		adminID = fx.User(tenantID, "admin@acme.test")
		userID = fx.User(tenantID, "user@acme.test")
		auditorRole = fx.Role(tenantID, "AUDITOR")
		hodRole = fx.Role(tenantID, "HOD")
		financeID = fx.Department(tenantID, "Finance")
		admin = permission.Principal{UserID: adminID, TenantID: tenantID}
	})

	Describe("EnsureCatalog", func() {
		It("is idempotent", func() {
			again, err := service.EnsureCatalog(ctx, permission.DefaultCatalog)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(HaveLen(len(permission.DefaultCatalog)))

			all, err := service.ListCapabilities(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(len(permission.DefaultCatalog)))
		})
	})

	Describe("GrantOverride", func() {
		It("makes the capability resolve for the user", func() {
			o, err := service.GrantOverride(ctx, admin, permission.GrantOverrideDTO{
				UserID: userID, Capability: "audit-finding:read", Allowed: true, Reason: "cover for HOD",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(o.ID).To(BeNumerically(">", 0))
			Expect(*o.GrantedBy).To(Equal(adminID))

			allowed, err := resolver.HasCapability(ctx, permission.Principal{UserID: userID, TenantID: tenantID}, "auditFinding:read")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeTrue())
		})

		It("replaces an earlier override of the same capability", func() {
			dto := permission.GrantOverrideDTO{UserID: userID, Capability: "auditFinding:read", Allowed: true}
			_, err := service.GrantOverride(ctx, admin, dto)
			Expect(err).NotTo(HaveOccurred())

			dto.Allowed = false
			_, err = service.GrantOverride(ctx, admin, dto)
			Expect(err).NotTo(HaveOccurred())

			var count int64
			Expect(db.Model(&datamodel.UserPermission{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))

			allowed, err := resolver.HasCapability(ctx, permission.Principal{UserID: userID, TenantID: tenantID}, "auditFinding:read")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})

		It("rejects an expiry in the past", func() {
			past := time.Now().Add(-time.Hour)
			_, err := service.GrantOverride(ctx, admin, permission.GrantOverrideDTO{
				UserID: userID, Capability: "auditFinding:read", Allowed: true, ExpiresAt: &past,
			})
			Expect(err).To(MatchError(permission.ErrOverrideExpired))
		})

		It("reports users of another tenant as absent", func() {
			stranger := fx.User(otherTenantID, "x@globex.test")
			_, err := service.GrantOverride(ctx, admin, permission.GrantOverrideDTO{
				UserID: stranger, Capability: "auditFinding:read", Allowed: true,
			})
			Expect(err).To(MatchError(permission.ErrPrincipalNotFound))
		})

		It("validates the request", func() {
			_, err := service.GrantOverride(ctx, admin, permission.GrantOverrideDTO{})
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
		})
	})

	Describe("RevokeOverride", func() {
		It("removes the override", func() {
			_, err := service.GrantOverride(ctx, admin, permission.GrantOverrideDTO{UserID: userID, Capability: "auditFinding:read", Allowed: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(service.RevokeOverride(ctx, admin, userID, "auditFinding:read")).To(Succeed())

			allowed, err := resolver.HasCapability(ctx, permission.Principal{UserID: userID, TenantID: tenantID}, "auditFinding:read")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})
	})

	Describe("SetRolePermission", func() {
		It("grants through the role", func() {
			Expect(service.SetRolePermission(ctx, admin, permission.RolePermissionDTO{
				RoleID: auditorRole, Capability: "auditFinding:create", Allowed: true,
			})).To(Succeed())

			p := permission.Principal{UserID: userID, TenantID: tenantID,
				Assignments: []permission.RoleAssignment{permission.TenantWide(auditorRole)}}
			allowed, err := resolver.HasCapability(ctx, p, "auditFinding:create")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeTrue())

			Expect(service.SetRolePermission(ctx, admin, permission.RolePermissionDTO{
				RoleID: auditorRole, Capability: "auditFinding:create", Allowed: false,
			})).To(Succeed())
			allowed, err = resolver.HasCapability(ctx, p, "auditFinding:create")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})

		It("refuses roles of another tenant", func() {
			foreign := fx.Role(otherTenantID, "AUDITOR")
			err := service.SetRolePermission(ctx, admin, permission.RolePermissionDTO{
				RoleID: foreign, Capability: "auditFinding:create", Allowed: true,
			})
			Expect(err).To(MatchError(permission.ErrTenantMismatch))
		})
	})

	Describe("AssignRole", func() {
		It("keeps the department head projection in sync", func() {
			Expect(service.AssignRole(ctx, admin, permission.AssignRoleDTO{
				UserID: userID, RoleID: hodRole, DepartmentID: financeID, IsPrimaryRole: true,
			})).To(Succeed())

			var dept datamodel.Department
			Expect(db.First(&dept, financeID).Error).To(Succeed())
			Expect(dept.HODUserID).NotTo(BeNil())
			Expect(*dept.HODUserID).To(Equal(userID))

			Expect(service.UnassignRole(ctx, admin, permission.AssignRoleDTO{
				UserID: userID, RoleID: hodRole, DepartmentID: financeID,
			})).To(Succeed())
			Expect(db.First(&dept, financeID).Error).To(Succeed())
			Expect(dept.HODUserID).To(BeNil())
		})

		It("loads both assignment kinds into the principal", func() {
			Expect(service.AssignRole(ctx, admin, permission.AssignRoleDTO{UserID: userID, RoleID: auditorRole})).To(Succeed())
			Expect(service.AssignRole(ctx, admin, permission.AssignRoleDTO{UserID: userID, RoleID: hodRole, DepartmentID: financeID})).To(Succeed())

			p, err := service.LoadPrincipal(ctx, userID)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.TenantID).To(Equal(tenantID))
			Expect(p.Assignments).To(HaveLen(2))
			Expect(p.Assignments[0].Scope).To(Equal(permission.ScopeTenant))
			Expect(p.Assignments[1].Scope).To(Equal(permission.ScopeDepartment))
			Expect(p.Assignments[1].DepartmentName).To(Equal("Finance"))
		})

		It("refuses a department of another tenant", func() {
			foreignDept := fx.Department(otherTenantID, "Finance")
			err := service.AssignRole(ctx, admin, permission.AssignRoleDTO{UserID: userID, RoleID: hodRole, DepartmentID: foreignDept})
			Expect(err).To(MatchError(permission.ErrTenantMismatch))
		})

		It("returns not found for an unknown role", func() {
			err := service.AssignRole(ctx, admin, permission.AssignRoleDTO{UserID: userID, RoleID: 9999})
			Expect(err).To(MatchError(permission.ErrRoleNotFound))
		})
	})
})
