package issue

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

// Handler exposes HTTP endpoints for issues.
type Handler struct {
	svc      *Service
	activity ActivityRecorder
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, activity ActivityRecorder, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, activity: activity, logger: logger}
}

func filtersFromQuery(r *http.Request) Filters {
	q := r.URL.Query()
	return Filters{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Assignee: q.Get("assignee"),
		Project:  q.Get("project"),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	issues, err := h.svc.List(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.logger.Warnw("list issues failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get issues")
		return
	}
	respond.OK(w, http.StatusOK, issues)
}

// ListMine serves the "My Issues" page: issues assigned to the caller.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	issues, err := h.svc.ListByAssignee(r.Context(), ident.UserID, filtersFromQuery(r))
	if err != nil {
		h.logger.Warnw("list my issues failed", "err", err, "user", ident.UserID)
		respond.Err(w, http.StatusInternalServerError, "Failed to get issues")
		return
	}
	respond.OK(w, http.StatusOK, issues)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	i, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Failed to get issue")
		return
	}
	respond.OK(w, http.StatusOK, i)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Issue
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	// The reporter is always the caller, not whatever the client claims.
	ident := session.FromContext(r.Context())
	in.ReporterUserID = ident.UserID
	in.ReporterUserName = ident.Username

	created, err := h.svc.Create(r.Context(), &in)
	if err != nil {
		h.writeError(w, err, "Failed to create issue")
		return
	}
	h.activity.Record(r.Context(), ident.UserID, ident.Username, "created", created.IssueID)
	respond.OK(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Issue
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	prev, _ := h.svc.Get(r.Context(), r.PathValue("id"))
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), &in)
	if err != nil {
		h.writeError(w, err, "Failed to update issue")
		return
	}
	ident := session.FromContext(r.Context())
	action := "updated"
	if prev != nil && prev.Status != updated.Status {
		action = "changed status to " + updated.Status + " on"
	}
	h.activity.Record(r.Context(), ident.UserID, ident.Username, action, updated.IssueID)
	respond.OK(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	prev, _ := h.svc.Get(r.Context(), r.PathValue("id"))
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err, "Failed to delete issue")
		return
	}
	if prev != nil {
		ident := session.FromContext(r.Context())
		h.activity.Record(r.Context(), ident.UserID, ident.Username, "deleted", prev.IssueID)
	}
	respond.OKMessage(w, http.StatusOK, "Issue deleted successfully", nil)
}

func (h *Handler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.svc.FilterOptions(r.Context())
	if err != nil {
		h.logger.Warnw("load filter options failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to load filters")
		return
	}
	respond.OK(w, http.StatusOK, opts)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Err(w, http.StatusNotFound, "Issue not found")
	case errors.Is(err, ErrTitleRequired):
		respond.Err(w, http.StatusBadRequest, "Issue title is required")
	case errors.Is(err, ErrNoProject):
		respond.Err(w, http.StatusBadRequest, "Issue must belong to a project")
	default:
		h.logger.Warnw("issue operation failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, fallback)
	}
}
