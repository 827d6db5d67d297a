package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/permission"
)

type CapabilityChecker interface {
	HasCapability(ctx context.Context, principal permission.Principal, capability string) (bool, error)
}

type RBACAuthorization struct {
	checker CapabilityChecker
	logger  *slog.Logger
}

func NewRBACAuthorization(checker CapabilityChecker, logger *slog.Logger) *RBACAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &RBACAuthorization{
		checker: checker,
		logger:  logger,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, capability string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			ra.logger.Warn("authorization check failed: principal not found in context")
			writeAppError(w, apperrors.NewUnauthorizedError("unauthorized", apperrors.ErrCodePrincipalRequired))
			return
		}

		allowed, err := ra.checker.HasCapability(r.Context(), principal, capability)
		if err != nil {
			ra.logger.ErrorContext(r.Context(), "authorization check failed",
				"error", err, "user_id", principal.UserID, "capability", capability)
			if appErr, ok := apperrors.IsAppError(err); ok {
				writeAppError(w, appErr)
				return
			}
			writeAppError(w, apperrors.NewInternalError("authorization check failed", err))
			return
		}

		if !allowed {
			ra.logger.WarnContext(r.Context(), "access denied",
				"user_id", principal.UserID,
				"tenant_id", principal.TenantID,
				"capability", capability)
			writeAppError(w, apperrors.NewMissingCapabilityError(capability))
			return
		}

		next.ServeHTTP(w, r)
	}
}

// RequireCapability is the chi middleware form of Check.
func (ra *RBACAuthorization) RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, capability)
	}
}

func writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
