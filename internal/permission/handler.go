package permission

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/audit-management/internal/transport"
	"github.com/frahmantamala/audit-management/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListCapabilities(ctx context.Context) ([]Capability, error)
	GrantOverride(ctx context.Context, actor Principal, dto GrantOverrideDTO) (*Override, error)
	RevokeOverride(ctx context.Context, actor Principal, userID int64, rawCapability string) error
	SetRolePermission(ctx context.Context, actor Principal, dto RolePermissionDTO) error
	AssignRole(ctx context.Context, actor Principal, dto AssignRoleDTO) error
	UnassignRole(ctx context.Context, actor Principal, dto AssignRoleDTO) error
}

type Checker interface {
	HasCapability(ctx context.Context, principal Principal, capability string) (bool, error)
}

// PrincipalFunc extracts the authenticated principal from a request context.
type PrincipalFunc func(ctx context.Context) (Principal, bool)

type Handler struct {
	*transport.BaseHandler
	Service   ServiceAPI
	Checker   Checker
	principal PrincipalFunc
}

func NewHandler(service ServiceAPI, checker Checker, principal PrincipalFunc) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
		Checker:     checker,
		principal:   principal,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, ok := h.principal(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
	}
	return p, ok
}

// Check answers whether the caller holds ?capability=module:action.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	capability := r.URL.Query().Get("capability")
	allowed, err := h.Checker.HasCapability(r.Context(), actor, capability)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, CheckResponse{Capability: capability, Allowed: allowed})
}

func (h *Handler) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := h.Service.ListCapabilities(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, caps)
}

func (h *Handler) GrantOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto GrantOverrideDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.Service.GrantOverride(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) RevokeOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.Service.RevokeOverride(r.Context(), actor, userID, chi.URLParam(r, "capability")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetRolePermission(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	roleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || roleID <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid role id")
		return
	}
	var dto RolePermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dto.RoleID = roleID

	if err := h.Service.SetRolePermission(r.Context(), actor, dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	h.assignment(w, r, h.Service.AssignRole, http.StatusCreated)
}

func (h *Handler) UnassignRole(w http.ResponseWriter, r *http.Request) {
	h.assignment(w, r, h.Service.UnassignRole, http.StatusNoContent)
}

func (h *Handler) assignment(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, Principal, AssignRoleDTO) error, status int) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto AssignRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := fn(r.Context(), actor, dto); err != nil {
		h.Logger.Warn("role assignment change failed", "error", err, "user_id", dto.UserID, "role_id", dto.RoleID)
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(status)
}
