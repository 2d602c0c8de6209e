package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/trustflow/service-core/internal/respond"
	"github.com/trustflow/service-core/internal/user"
	"github.com/trustflow/service-core/internal/user/entity"
)

// ResetTokenIssuer mints password reset tokens for a user looked up by email.
type ResetTokenIssuer interface {
	CreateResetToken(ctx context.Context, email string) (*entity.ResetToken, *entity.User, error)
}

// Handler exposes the mail endpoints: an SMTP connectivity test and the
// password reset sender.
type Handler struct {
	svc     *Service
	tokens  ResetTokenIssuer
	baseURL string
	logger  *zap.SugaredLogger
}

func NewHandler(svc *Service, tokens ResetTokenIssuer, consoleBaseURL string, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tokens: tokens, baseURL: consoleBaseURL, logger: logger}
}

func (h *Handler) TestSMTP(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.TestConnection(r.Context()); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			respond.Err(w, http.StatusBadRequest, "SMTP is not configured")
			return
		}
		h.logger.Warnw("smtp test failed", "err", err)
		respond.Err(w, http.StatusBadGateway, "SMTP connection failed")
		return
	}
	respond.OKMessage(w, http.StatusOK, "SMTP connection successful", nil)
}

func (h *Handler) SendPasswordReset(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		respond.Err(w, http.StatusBadRequest, "Email is required")
		return
	}

	token, u, err := h.tokens.CreateResetToken(r.Context(), in.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Do not reveal whether the address exists.
			respond.OKMessage(w, http.StatusOK, "If the email exists, a reset link has been sent", nil)
			return
		}
		h.logger.Warnw("create reset token failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to send password reset email")
		return
	}

	resetURL := fmt.Sprintf("%s/resetpassword?token=%s", h.baseURL, url.QueryEscape(token.Token))
	if err := h.svc.SendPasswordReset(r.Context(), u.Email, u.FirstName, resetURL); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			respond.Err(w, http.StatusBadRequest, "SMTP is not configured")
			return
		}
		h.logger.Warnw("send reset mail failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to send password reset email")
		return
	}
	respond.OKMessage(w, http.StatusOK, "If the email exists, a reset link has been sent", nil)
}
