package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/audit-management/internal/auth"
	"github.com/frahmantamala/audit-management/internal/permission"
	"github.com/frahmantamala/audit-management/internal/transport"
	"github.com/frahmantamala/audit-management/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	RecordFinding(ctx context.Context, actor permission.Principal, auditID int64, dto RecordFindingDTO) (*Finding, error)
	CommitFindings(ctx context.Context, actor permission.Principal, auditID int64, department string) (*TransitionResult, error)
	ReviewFinding(ctx context.Context, actor permission.Principal, findingID int64, dto ReviewFindingDTO) (*TransitionResult, error)
	FinalizeCategorization(ctx context.Context, actor permission.Principal, auditID int64, department string) (*TransitionResult, error)
	CreateProgram(ctx context.Context, actor permission.Principal, dto CreateProgramDTO) (*Program, error)
	CommitProgram(ctx context.Context, actor permission.Principal, programID int64) (*TransitionResult, error)
	ApproveProgram(ctx context.Context, actor permission.Principal, programID int64) (*TransitionResult, error)
	RejectProgram(ctx context.Context, actor permission.Principal, programID int64, dto RejectProgramDTO) (*TransitionResult, error)
	RequestDocumentChange(ctx context.Context, actor permission.Principal, documentID int64, dto RequestChangeDTO) (*TransitionResult, error)
	ApproveDocumentChange(ctx context.Context, actor permission.Principal, changeRequestID int64) (*TransitionResult, error)
	ApplyDocumentChange(ctx context.Context, actor permission.Principal, changeRequestID int64) (*TransitionResult, error)
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

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (permission.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
	}
	return p, ok
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) RecordFinding(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	auditID, ok := h.idParam(w, r, "auditID")
	if !ok {
		return
	}
	var dto RecordFindingDTO
	if !h.decode(w, r, &dto) {
		return
	}

	f, err := h.Service.RecordFinding(r.Context(), actor, auditID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, f)
}

func (h *Handler) CommitFindings(w http.ResponseWriter, r *http.Request) {
	h.departmentTransition(w, r, h.Service.CommitFindings)
}

func (h *Handler) FinalizeCategorization(w http.ResponseWriter, r *http.Request) {
	h.departmentTransition(w, r, h.Service.FinalizeCategorization)
}

func (h *Handler) departmentTransition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, permission.Principal, int64, string) (*TransitionResult, error)) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	auditID, ok := h.idParam(w, r, "auditID")
	if !ok {
		return
	}
	var dto DepartmentScopeDTO
	if !h.decode(w, r, &dto) {
		return
	}

	result, err := fn(r.Context(), actor, auditID, dto.Department)
	if err != nil {
		h.Logger.Warn("finding transition failed", "error", err, "audit_id", auditID, "user_id", actor.UserID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) ReviewFinding(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	findingID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var dto ReviewFindingDTO
	if !h.decode(w, r, &dto) {
		return
	}

	result, err := h.Service.ReviewFinding(r.Context(), actor, findingID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var dto CreateProgramDTO
	if !h.decode(w, r, &dto) {
		return
	}

	p, err := h.Service.CreateProgram(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) CommitProgram(w http.ResponseWriter, r *http.Request) {
	h.idTransition(w, r, h.Service.CommitProgram)
}

func (h *Handler) ApproveProgram(w http.ResponseWriter, r *http.Request) {
	h.idTransition(w, r, h.Service.ApproveProgram)
}

func (h *Handler) RejectProgram(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	programID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var dto RejectProgramDTO
	if !h.decode(w, r, &dto) {
		return
	}

	result, err := h.Service.RejectProgram(r.Context(), actor, programID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) RequestDocumentChange(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	documentID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var dto RequestChangeDTO
	if !h.decode(w, r, &dto) {
		return
	}

	result, err := h.Service.RequestDocumentChange(r.Context(), actor, documentID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) ApproveDocumentChange(w http.ResponseWriter, r *http.Request) {
	h.idTransition(w, r, h.Service.ApproveDocumentChange)
}

func (h *Handler) ApplyDocumentChange(w http.ResponseWriter, r *http.Request) {
	h.idTransition(w, r, h.Service.ApplyDocumentChange)
}

func (h *Handler) idTransition(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, permission.Principal, int64) (*TransitionResult, error)) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}

	result, err := fn(r.Context(), actor, id)
	if err != nil {
		h.Logger.Warn("transition failed", "error", err, "id", id, "user_id", actor.UserID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}
