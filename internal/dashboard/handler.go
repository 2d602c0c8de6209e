package dashboard

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/trustflow/service-core/internal/respond"
	"github.com/trustflow/service-core/internal/session"
)

// Handler serves the admin and personal dashboard aggregates.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.AdminStats(r.Context())
	if err != nil {
		h.logger.Warnw("admin stats failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get dashboard stats")
		return
	}
	respond.OK(w, http.StatusOK, stats)
}

func (h *Handler) GetRecentActivityList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.RecentActivity(r.Context())
	if err != nil {
		h.logger.Warnw("recent activity failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get recent activity")
		return
	}
	respond.OK(w, http.StatusOK, entries)
}

func (h *Handler) GetRoleOverview(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.RoleOverview(r.Context())
	if err != nil {
		h.logger.Warnw("role overview failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get role overview")
		return
	}
	respond.OK(w, http.StatusOK, rows)
}

func (h *Handler) GetUserDashBoardStats(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	stats, err := h.svc.UserStats(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Warnw("user stats failed", "user", ident.UserID, "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get dashboard stats")
		return
	}
	respond.OK(w, http.StatusOK, stats)
}

func (h *Handler) GetUserOpenIssueList(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	issues, err := h.svc.OpenIssues(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Warnw("user open issues failed", "user", ident.UserID, "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get open issues")
		return
	}
	respond.OK(w, http.StatusOK, issues)
}

func (h *Handler) GetUserRecentActivityList(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	entries, err := h.svc.UserActivity(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Warnw("user activity failed", "user", ident.UserID, "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get recent activity")
		return
	}
	respond.OK(w, http.StatusOK, entries)
}
