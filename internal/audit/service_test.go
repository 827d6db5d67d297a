package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	apperrors "github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/audit"
	auditPostgres "github.com/frahmantamala/audit-management/internal/audit/postgres"
	auditmodel "github.com/frahmantamala/audit-management/internal/core/datamodel/audit"
	notificationmodel "github.com/frahmantamala/audit-management/internal/core/datamodel/notification"
	"github.com/frahmantamala/audit-management/internal/core/testdb"
	"github.com/frahmantamala/audit-management/internal/discovery"
	discoveryPostgres "github.com/frahmantamala/audit-management/internal/discovery/postgres"
	"github.com/frahmantamala/audit-management/internal/notification"
	notificationPostgres "github.com/frahmantamala/audit-management/internal/notification/postgres"
	"github.com/frahmantamala/audit-management/internal/permission"
	permissionPostgres "github.com/frahmantamala/audit-management/internal/permission/postgres"
	"github.com/frahmantamala/audit-management/internal/workflow"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Suite")
}

var _ = Describe("Audit Service", func() {
	var (
		ctx         context.Context
		db          *gorm.DB
		service     *audit.Service
		permissions *permission.Service

		tenant           int64
		auditor, hod, qm permission.Principal
		auditorID, hodID int64
		qmID             int64
	)

	notificationsFor := func(userID int64) []notificationmodel.Notification {
		var rows []notificationmodel.Notification
		Expect(db.Where("user_id = ?", userID).Order("created_at").Find(&rows).Error).To(Succeed())
		return rows
	}

	principal := func(userID int64) permission.Principal {
		p, err := permissions.LoadPrincipal(ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		return *p
	}

	grant := func(roleID int64, capabilities ...string) {
		admin := permission.Principal{UserID: auditorID, TenantID: tenant}
		for _, c := range capabilities {
			Expect(permissions.SetRolePermission(ctx, admin, permission.RolePermissionDTO{
				RoleID: roleID, Capability: c, Allowed: true,
			})).To(Succeed())
		}
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testdb.OpenFile(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(sqlDB.Close)

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store := permissionPostgres.NewStore(db)
		resolver := permission.NewResolver(store, logger)
		permissions = permission.NewService(store, resolver, logger)
		_, err = permissions.EnsureCatalog(ctx, permission.DefaultCatalog)
		Expect(err).NotTo(HaveOccurred())

		finder := discovery.NewFinder(discoveryPostgres.NewMemberRepository(db), resolver, logger, discovery.Options{})
		notifications := notification.NewService(notificationPostgres.NewNotificationRepository(db), nil, logger)
		router := workflow.NewRouter(finder, notifications, nil, nil, logger, workflow.Options{LinkBaseURL: "https://audit.test"})
		service = audit.NewService(auditPostgres.NewAuditRepository(db), resolver, router, logger)

		fx := testdb.NewFixture(db)
		tenant = fx.Tenant("acme")
		finance := fx.Department(tenant, "Finance")
		fx.Department(tenant, "IT")

		auditorRole := fx.Role(tenant, "AUDITOR")
		hodRole := fx.Role(tenant, "HOD")
		qmRole := fx.Role(tenant, "QUALITY MANAGER")

		auditorID = fx.User(tenant, "auditor@acme.test")
		hodID = fx.User(tenant, "hod.finance@acme.test")
		qmID = fx.User(tenant, "qm@acme.test")

		grant(auditorRole, audit.CapFindingCreate, audit.CapFindingUpdate, audit.CapProgramCreate, audit.CapDocumentCreate)
		grant(hodRole, "auditFinding:read", audit.CapDocumentApprove, audit.CapDocumentUpdate)
		grant(qmRole, audit.CapProgramApprove)

		fx.AssignTenantRole(auditorID, auditorRole)
		fx.AssignTenantRole(qmID, qmRole)
		fx.AssignDepartmentRole(hodID, finance, hodRole, true)

		auditor = principal(auditorID)
		hod = principal(hodID)
		qm = principal(qmID)
	})

	Describe("findings", func() {
		It("sends committed findings to the department head", func() {
			f, err := service.RecordFinding(ctx, auditor, 1, audit.RecordFindingDTO{Department: "Finance", Title: "Unreconciled ledger"})
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Status).To(Equal(audit.FindingStatusPending))

			result, err := service.CommitFindings(ctx, auditor, 1, " Finance ")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Findings).To(HaveLen(1))
			Expect(result.Findings[0].Status).To(Equal(audit.FindingStatusUnderReview))
			Expect(result.Notifications).To(HaveLen(1))
			Expect(result.Notifications[0].Persisted).To(Equal(1))

			inbox := notificationsFor(hodID)
			Expect(inbox).To(HaveLen(1))
			Expect(inbox[0].Type).To(Equal(string(workflow.TriggerFindingCommitted)))
			Expect(inbox[0].Link).To(Equal("https://audit.test/audits/1"))
			Expect(notificationsFor(auditorID)).To(BeEmpty())
		})

		It("rolls the commit back when the department has no reviewer", func() {
			_, err := service.RecordFinding(ctx, auditor, 2, audit.RecordFindingDTO{Department: "IT", Title: "Shared admin password"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CommitFindings(ctx, auditor, 2, "IT")
			var empty *workflow.EmptyAudienceError
			Expect(errors.As(err, &empty)).To(BeTrue())

			var row auditmodel.Finding
			Expect(db.Where("audit_id = ?", 2).First(&row).Error).To(Succeed())
			Expect(row.Status).To(Equal(audit.FindingStatusPending))

			var count int64
			Expect(db.Model(&notificationmodel.Notification{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("refuses to commit when nothing is pending", func() {
			_, err := service.CommitFindings(ctx, auditor, 3, "Finance")
			Expect(err).To(MatchError(audit.ErrNothingToProcess))
		})

		It("names the missing capability", func() {
			_, err := service.RecordFinding(ctx, hod, 1, audit.RecordFindingDTO{Department: "Finance", Title: "x"})
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeMissingCapability))
			Expect(appErr.Message).To(ContainSubstring(audit.CapFindingCreate))
		})

		It("reviews and finalizes accepted findings", func() {
			f, err := service.RecordFinding(ctx, auditor, 4, audit.RecordFindingDTO{Department: "Finance", Title: "Late approvals"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CommitFindings(ctx, auditor, 4, "Finance")
			Expect(err).NotTo(HaveOccurred())

			reviewed, err := service.ReviewFinding(ctx, auditor, f.ID, audit.ReviewFindingDTO{Accept: true, Category: "major"})
			Expect(err).NotTo(HaveOccurred())
			Expect(reviewed.Finding.Status).To(Equal(audit.FindingStatusAccepted))
			Expect(reviewed.Finding.Category).To(Equal("major"))

			_, err = service.ReviewFinding(ctx, auditor, f.ID, audit.ReviewFindingDTO{Accept: false})
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidTransition))

			final, err := service.FinalizeCategorization(ctx, auditor, 4, "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Findings).To(HaveLen(1))
			Expect(final.Findings[0].CategoryFinalized).To(BeTrue())
			Expect(notificationsFor(hodID)).To(HaveLen(2))

			_, err = service.FinalizeCategorization(ctx, auditor, 4, "Finance")
			Expect(err).To(MatchError(audit.ErrNothingToProcess))
		})
	})

	Describe("audit programs", func() {
		It("walks a program through review and back", func() {
			p, err := service.CreateProgram(ctx, auditor, audit.CreateProgramDTO{Name: "FY26 Finance"})
			Expect(err).NotTo(HaveOccurred())

			committed, err := service.CommitProgram(ctx, auditor, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(committed.Program.Status).To(Equal(audit.ProgramStatusUnderReview))
			Expect(notificationsFor(qmID)).To(HaveLen(1))

			rejected, err := service.RejectProgram(ctx, qm, p.ID, audit.RejectProgramDTO{Reason: "scope too wide"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Program.Status).To(Equal(audit.ProgramStatusDraft))
			inbox := notificationsFor(auditorID)
			Expect(inbox).To(HaveLen(1))
			Expect(inbox[0].Message).To(ContainSubstring("scope too wide"))

			_, err = service.CommitProgram(ctx, auditor, p.ID)
			Expect(err).NotTo(HaveOccurred())
			approved, err := service.ApproveProgram(ctx, qm, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Program.Status).To(Equal(audit.ProgramStatusApproved))
			Expect(*approved.Program.ApprovedBy).To(Equal(qmID))
			Expect(notificationsFor(auditorID)).To(HaveLen(2))
		})

		It("rejects approval of a draft", func() {
			p, err := service.CreateProgram(ctx, auditor, audit.CreateProgramDTO{Name: "Draft"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ApproveProgram(ctx, qm, p.ID)
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidTransition))
		})

		It("does not reveal programs of another tenant", func() {
			_, err := service.ApproveProgram(ctx, qm, 9999)
			Expect(err).To(MatchError(audit.ErrProgramNotFound))
		})
	})

	Describe("document changes", func() {
		It("routes a request to the department approver", func() {
			requested, err := service.RequestDocumentChange(ctx, auditor, 77, audit.RequestChangeDTO{
				Department: "Finance", Description: "Update the petty cash SOP",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(requested.ChangeRequest.Status).To(Equal(audit.ChangeStatusSubmitted))
			Expect(notificationsFor(hodID)).To(HaveLen(1))

			approved, err := service.ApproveDocumentChange(ctx, hod, requested.ChangeRequest.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.ChangeRequest.Status).To(Equal(audit.ChangeStatusApproved))
			Expect(approved.Notifications).To(HaveLen(1))
			Expect(approved.Notifications[0].Planned).To(BeZero())

			applied, err := service.ApplyDocumentChange(ctx, hod, requested.ChangeRequest.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(applied.ChangeRequest.Status).To(Equal(audit.ChangeStatusApplied))
		})

		It("leaves no request behind when nobody can approve it", func() {
			_, err := service.RequestDocumentChange(ctx, auditor, 78, audit.RequestChangeDTO{
				Department: "IT", Description: "Rotate keys",
			})
			var empty *workflow.EmptyAudienceError
			Expect(errors.As(err, &empty)).To(BeTrue())

			var count int64
			Expect(db.Model(&auditmodel.DocumentChangeRequest{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})
	})
})
