package project

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/trustflow/service-core/internal/respond"
	"github.com/trustflow/service-core/internal/session"
)

// ActivityRecorder appends entries to the audit trail shown on dashboards.
type ActivityRecorder interface {
	Record(ctx context.Context, userID, userName, action, issueKey string)
}

// Handler exposes HTTP endpoints for projects and project members.
type Handler struct {
	svc      *Service
	activity ActivityRecorder
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, activity ActivityRecorder, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, activity: activity, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Warnw("list projects failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get projects")
		return
	}
	if projects == nil {
		projects = []*Project{}
	}
	respond.OK(w, http.StatusOK, projects)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to get project")
		return
	}
	respond.OK(w, http.StatusOK, p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Project
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	created, err := h.svc.Create(r.Context(), &in)
	if err != nil {
		h.writeError(w, err, "Failed to create project")
		return
	}
	ident := session.FromContext(r.Context())
	h.activity.Record(r.Context(), ident.UserID, ident.Username, "created project "+created.Name, "")
	respond.OK(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Project
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), &in)
	if err != nil {
		h.writeError(w, err, "Failed to update project")
		return
	}
	respond.OK(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	prev, _ := h.svc.Get(r.Context(), r.PathValue("id"))
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err, "Failed to delete project")
		return
	}
	if prev != nil {
		ident := session.FromContext(r.Context())
		h.activity.Record(r.Context(), ident.UserID, ident.Username, "deleted project "+prev.Name, "")
	}
	respond.OKMessage(w, http.StatusOK, "Project deleted successfully", nil)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var m Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if m.UserID == "" {
		respond.Err(w, http.StatusBadRequest, "userId is required")
		return
	}
	if err := h.svc.AddMember(r.Context(), r.PathValue("id"), m); err != nil {
		h.writeError(w, err, "Failed to add member")
		return
	}
	respond.OKMessage(w, http.StatusOK, "Member added", nil)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveMember(r.Context(), r.PathValue("id"), r.PathValue("userId")); err != nil {
		h.writeError(w, err, "Failed to remove member")
		return
	}
	respond.OKMessage(w, http.StatusOK, "Member removed", nil)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Err(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, ErrMemberNotFound):
		respond.Err(w, http.StatusNotFound, "Member not found")
	case errors.Is(err, ErrMemberExists):
		respond.Err(w, http.StatusConflict, "User is already a member of this project")
	case errors.Is(err, ErrNameRequired):
		respond.Err(w, http.StatusBadRequest, "Project name is required")
	case errors.Is(err, ErrHasOpenIssues):
		respond.Err(w, http.StatusConflict, "Project still has open issues")
	default:
		h.logger.Warnw("project operation failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, fallback)
	}
}
