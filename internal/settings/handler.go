package settings

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/trustflow/service-core/internal/respond"
)

// Handler exposes the system settings endpoints used by the admin console.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Document(r.Context())
	if err != nil {
		h.logger.Warnw("load system settings failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get system settings")
		return
	}
	respond.OK(w, http.StatusOK, doc)
}

func (h *Handler) UpdateSMTP(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, SectionSMTP, "SMTP settings updated successfully")
}

func (h *Handler) UpdateTeams(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, SectionTeams, "Teams settings updated successfully")
}

func (h *Handler) UpdateSlack(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, SectionSlack, "Slack settings updated successfully")
}

func (h *Handler) UpdatePortal(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, SectionPortal, "Configuration updated successfully")
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, section, okMessage string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	// The console sends the version alongside the form fields; peel it off
	// before the payload is normalized into the section struct.
	var meta struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	sec, err := h.svc.Save(r.Context(), section, body, meta.Version)
	if err != nil {
		switch {
		case errors.Is(err, ErrVersionConflict):
			respond.Err(w, http.StatusConflict, "Settings were changed by someone else. Reload and try again.")
		case errors.Is(err, ErrUnknownSection):
			respond.Err(w, http.StatusNotFound, "Unknown settings section")
		default:
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				respond.Err(w, http.StatusBadRequest, "Invalid payload")
				return
			}
			h.logger.Warnw("save system settings failed", "section", section, "err", err)
			respond.Err(w, http.StatusInternalServerError, "Failed to update settings")
		}
		return
	}

	payload, err := sec.Payload()
	if err != nil {
		h.logger.Warnw("encode system settings failed", "section", section, "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}
	respond.OKMessage(w, http.StatusOK, okMessage, payload)
}
