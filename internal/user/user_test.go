package user_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frahmantamala/audit-management/internal/auth"
	"github.com/frahmantamala/audit-management/internal/core/testdb"
	"github.com/frahmantamala/audit-management/internal/permission"
	permissionPostgres "github.com/frahmantamala/audit-management/internal/permission/postgres"
	"github.com/frahmantamala/audit-management/internal/user"
	userPostgres "github.com/frahmantamala/audit-management/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

var _ = Describe("Service.Me", func() {
	var (
		ctx         context.Context
		fx          *testdb.Fixture
		service     *user.Service
		permissions *permission.Service

		tenant, finance int64
		auditorID       int64
	)

	principal := func(userID int64) permission.Principal {
		p, err := permissions.LoadPrincipal(ctx, userID)
		Expect(err).NotTo(HaveOccurred())
		return *p
	}

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		fx = testdb.NewFixture(db)
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		store := permissionPostgres.NewStore(db)
		resolver := permission.NewResolver(store, logger)
		permissions = permission.NewService(store, resolver, logger)
		_, err = permissions.EnsureCatalog(ctx, permission.DefaultCatalog)
		Expect(err).NotTo(HaveOccurred())

		tenant = fx.Tenant("acme")
		finance = fx.Department(tenant, "Finance")
		auditorID = fx.User(tenant, "auditor@acme.test")

		auditor := fx.Role(tenant, "AUDITOR")
		actor := permission.Principal{UserID: auditorID, TenantID: tenant}
		Expect(permissions.SetRolePermission(ctx, actor, permission.RolePermissionDTO{
			RoleID: auditor, Capability: "auditFinding:create", Allowed: true,
		})).To(Succeed())
		fx.AssignDepartmentRole(auditorID, finance, auditor, true)

		service = user.NewService(userPostgres.NewUserRepository(db), permissions, permissions, resolver, logger)
	})

	It("returns stored assignments and resolved capabilities", func() {
		profile, err := service.Me(ctx, principal(auditorID))
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.ID).To(Equal(auditorID))
		Expect(profile.Email).To(Equal("auditor@acme.test"))
		Expect(profile.Roles).To(HaveLen(1))
		Expect(profile.Roles[0].IsDepartmentScoped()).To(BeTrue())
		Expect(profile.Capabilities).To(ConsistOf("auditFinding:create"))
	})

	It("uses current assignments over the token's", func() {
		stale := permission.Principal{UserID: auditorID, TenantID: tenant}
		profile, err := service.Me(ctx, stale)
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.Capabilities).To(ConsistOf("auditFinding:create"))
	})

	It("hides users of another tenant", func() {
		other := fx.Tenant("globex")
		_, err := service.Me(ctx, permission.Principal{UserID: auditorID, TenantID: other})
		Expect(err).To(MatchError(user.ErrNotFound))
	})

	It("hides deactivated users", func() {
		p := principal(auditorID)
		fx.Deactivate(auditorID)
		_, err := service.Me(ctx, p)
		Expect(err).To(MatchError(user.ErrNotFound))
	})

	It("rejects an incomplete principal", func() {
		_, err := service.Me(ctx, permission.Principal{UserID: auditorID})
		Expect(err).To(HaveOccurred())
	})

	Describe("Handler", func() {
		It("serves the caller's profile", func() {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			req = req.WithContext(auth.WithPrincipal(req.Context(), principal(auditorID)))
			rec := httptest.NewRecorder()
			user.NewHandler(service).GetCurrentUser(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body user.Profile
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.TenantID).To(Equal(tenant))
			Expect(body.Capabilities).To(ContainElement("auditFinding:create"))
		})

		It("answers 401 without a principal", func() {
			rec := httptest.NewRecorder()
			user.NewHandler(service).GetCurrentUser(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
