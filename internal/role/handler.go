package role

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/trustflow/service-core/internal/respond"
)

// Handler exposes HTTP endpoints for role/permission management.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Warnw("list roles failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get roles")
		return
	}
	if roles == nil {
		roles = []*Role{}
	}
	respond.OK(w, http.StatusOK, roles)
}

// ListNames serves the role dropdowns: id/name pairs only.
func (h *Handler) ListNames(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Warnw("list roles failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get roles")
		return
	}
	type pair struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]pair, 0, len(roles))
	for _, ro := range roles {
		out = append(out, pair{ID: ro.ID, Name: ro.RoleName})
	}
	respond.OK(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Role
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	created, err := h.svc.Create(r.Context(), &in)
	if err != nil {
		h.writeError(w, err, "Failed to create role")
		return
	}
	respond.OK(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in Role
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	updated, err := h.svc.Update(r.Context(), id, &in)
	if err != nil {
		h.writeError(w, err, "Failed to update role")
		return
	}
	respond.OK(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err, "Failed to delete role")
		return
	}
	respond.OKMessage(w, http.StatusOK, "Role deleted successfully", nil)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Err(w, http.StatusNotFound, "Role not found")
	case errors.Is(err, ErrNoPermissions):
		respond.Err(w, http.StatusBadRequest, "Please select at least one permission for this role.")
	case errors.Is(err, ErrNameTaken):
		respond.Err(w, http.StatusConflict, "A role with this name already exists")
	case errors.Is(err, ErrInUse):
		respond.Err(w, http.StatusConflict, "Role is assigned to one or more users")
	default:
		h.logger.Warnw("role operation failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, fallback)
	}
}
