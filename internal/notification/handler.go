package notification

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/transport"
	"github.com/frahmantamala/audit-management/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	List(ctx context.Context, tenantID, userID int64, q ListQuery) ([]*Notification, error)
	UnreadCount(ctx context.Context, tenantID, userID int64) (int, error)
	MarkRead(ctx context.Context, tenantID, userID int64, id string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// owner reads the caller identity placed in the context by the auth middleware.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID := internal.UserIDFromContext(r.Context())
	tenantID := internal.TenantIDFromContext(r.Context())
	if userID == 0 || tenantID == 0 {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return 0, 0, false
	}
	return tenantID, userID, true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.owner(w, r)
	if !ok {
		return
	}

	q := ListQuery{UnreadOnly: r.URL.Query().Get("unread") == "true"}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			q.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil {
			q.Offset = o
		}
	}

	items, err := h.Service.List(r.Context(), tenantID, userID, q)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ListResponse{Notifications: items, Count: len(items)})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.owner(w, r)
	if !ok {
		return
	}

	count, err := h.Service.UnreadCount(r.Context(), tenantID, userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UnreadCountResponse{Unread: count})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.owner(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.Service.MarkRead(r.Context(), tenantID, userID, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
