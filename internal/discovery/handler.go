package discovery

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/audit-management/internal/permission"
	"github.com/frahmantamala/audit-management/internal/transport"
	"github.com/frahmantamala/audit-management/pkg/logger"
)

type ServiceAPI interface {
	FindPrincipalsWithCapability(ctx context.Context, tenantID int64, module, action, department string) ([]Recipient, error)
}

type RecipientsResponse struct {
	Capability string      `json:"capability"`
	Department string      `json:"department,omitempty"`
	Recipients []Recipient `json:"recipients"`
}

type Handler struct {
	*transport.BaseHandler
	Service   ServiceAPI
	principal func(ctx context.Context) (permission.Principal, bool)
}

func NewHandler(service ServiceAPI, principal func(ctx context.Context) (permission.Principal, bool)) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		principal:   principal,
	}
}

// Recipients lists who in the caller's tenant holds ?capability, optionally
// within ?department.
func (h *Handler) Recipients(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.principal(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	capability, err := permission.ParseCapability(r.URL.Query().Get("capability"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	department := r.URL.Query().Get("department")

	recipients, err := h.Service.FindPrincipalsWithCapability(r.Context(), actor.TenantID, capability.Module, capability.Action, department)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, RecipientsResponse{
		Capability: capability.Key(),
		Department: department,
		Recipients: recipients,
	})
}
