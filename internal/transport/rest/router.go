package rest

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/audit-management/internal/audit"
	"github.com/frahmantamala/audit-management/internal/auth"
	"github.com/frahmantamala/audit-management/internal/discovery"
	"github.com/frahmantamala/audit-management/internal/notification"
	"github.com/frahmantamala/audit-management/internal/permission"
	"github.com/frahmantamala/audit-management/internal/transport/middleware"
	"github.com/frahmantamala/audit-management/internal/transport/swagger"
	"github.com/frahmantamala/audit-management/internal/user"
	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
)

const (
	CapPermissionRead   = "permission:read"
	CapPermissionManage = "permission:manage"
	CapNotificationRead = "notification:read"
)

type Handlers struct {
	Health       *HealthHandler
	Auth         *auth.Handler
	RBAC         *auth.RBACAuthorization
	Notification *notification.Handler
	Audit        *audit.Handler
	Permission   *permission.Handler
	Discovery    *discovery.Handler
	User         *user.Handler
}

type Options struct {
	AllowedOrigins string
	OpenAPIPath    string
	// RateLimit is requests per minute per caller on the capability lookups.
	// Zero disables limiting.
	RateLimit      int
	MetricsPath    string
	MetricsHandler http.Handler
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, opts.MetricsHandler)
	}

	if opts.OpenAPIPath != "" {
		router.Get(swagger.SpecURL, swagger.SpecHandler(opts.OpenAPIPath))
		router.Handle("/swagger/*", swagger.Handler())
	}

	limiter := rateLimiter(opts.RateLimit)

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Auth == nil {
			return
		}
		r.Post("/auth/login", h.Auth.Login)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
			}

			if h.Notification != nil {
				pr.Route("/notifications", func(nr chi.Router) {
					nr.Use(h.RBAC.RequireCapability(CapNotificationRead))
					nr.Get("/", h.Notification.List)
					nr.Get("/unread-count", h.Notification.UnreadCount)
					nr.Patch("/{id}/read", h.Notification.MarkRead)
				})
			}

			if h.Audit != nil {
				// capability checks happen inside the audit service so the
				// denial and the transition share one decision
				pr.Post("/audits/{auditID}/findings", h.Audit.RecordFinding)
				pr.Post("/audits/{auditID}/findings/commit", h.Audit.CommitFindings)
				pr.Post("/audits/{auditID}/findings/finalize", h.Audit.FinalizeCategorization)
				pr.Patch("/findings/{id}/review", h.Audit.ReviewFinding)

				pr.Post("/programs", h.Audit.CreateProgram)
				pr.Post("/programs/{id}/commit", h.Audit.CommitProgram)
				pr.Post("/programs/{id}/approve", h.Audit.ApproveProgram)
				pr.Post("/programs/{id}/reject", h.Audit.RejectProgram)

				pr.Post("/documents/{id}/change-requests", h.Audit.RequestDocumentChange)
				pr.Post("/change-requests/{id}/approve", h.Audit.ApproveDocumentChange)
				pr.Post("/change-requests/{id}/apply", h.Audit.ApplyDocumentChange)
			}

			if h.Permission != nil {
				pr.Group(func(lr chi.Router) {
					lr.Use(limiter)
					lr.Get("/permissions/check", h.Permission.Check)
				})

				pr.Group(func(rr chi.Router) {
					rr.Use(h.RBAC.RequireCapability(CapPermissionRead))
					rr.Get("/capabilities", h.Permission.ListCapabilities)
					if h.Discovery != nil {
						rr.With(limiter).Get("/recipients", h.Discovery.Recipients)
					}
				})

				pr.Group(func(mr chi.Router) {
					mr.Use(h.RBAC.RequireCapability(CapPermissionManage))
					mr.Put("/permissions/overrides", h.Permission.GrantOverride)
					mr.Delete("/permissions/overrides/{userID}/{capability}", h.Permission.RevokeOverride)
					mr.Put("/roles/{id}/permissions", h.Permission.SetRolePermission)
					mr.Post("/role-assignments", h.Permission.AssignRole)
					mr.Delete("/role-assignments", h.Permission.UnassignRole)
				})
			}
		})
	})
}

func rateLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"type":"RATE_LIMITED","code":"TOO_MANY_REQUESTS","message":"too many requests"}}`))
		}),
	)
}

// rateLimitKey buckets authenticated callers by principal and everyone else by IP.
func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok && p.UserID != 0 {
		return fmt.Sprintf("user:%d:%d", p.TenantID, p.UserID), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
