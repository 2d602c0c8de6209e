package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/trustflow/service-core/internal/respond"
	"github.com/trustflow/service-core/internal/session"
	"github.com/trustflow/service-core/internal/user/entity"
)

// Handler exposes HTTP endpoints for authentication and user management.
type Handler struct {
	svc      *Service
	sessions *session.Service
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, sessions *session.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticate verifies credentials and sets the session cookie. The body of
// the success envelope is intentionally empty: the console follows up with
// GET /users/me to populate its session store.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	u, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCredentials):
			respond.Err(w, http.StatusUnauthorized, "Invalid username or password")
		case errors.Is(err, ErrLocked):
			respond.Err(w, http.StatusForbidden, "Account is locked. Try again later.")
		case errors.Is(err, ErrDisabled):
			respond.Err(w, http.StatusForbidden, "Account is disabled")
		default:
			h.logger.Warnw("authenticate failed", "err", err)
			respond.Err(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}
	cookie, err := h.sessions.Issue(r.Context(), u.ID, u.Version)
	if err != nil {
		h.logger.Errorw("issue session failed", "err", err, "user", u.ID)
		respond.Err(w, http.StatusInternalServerError, "Login failed")
		return
	}
	http.SetCookie(w, cookie)
	respond.OKMessage(w, http.StatusOK, "Login successful", nil)
}

// Logout revokes the session (best-effort) and always clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.sessions.CookieName()); err == nil && c.Value != "" {
		if err := h.sessions.Revoke(r.Context(), c.Value); err != nil {
			h.logger.Warnw("session revoke failed", "err", err)
		}
	}
	http.SetCookie(w, h.sessions.ClearCookie())
	respond.OKMessage(w, http.StatusOK, "Logged out", nil)
}

// Me answers the console's "who am I" fetch. The profile sits under the
// result key, which is where the session store reads it from.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	p, err := h.svc.Profile(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Warnw("load profile failed", "err", err, "user", ident.UserID)
		respond.Err(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"result": p})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Warnw("list users failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to get users")
		return
	}
	respond.OK(w, http.StatusOK, items)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	u, initialPassword, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err, "Failed to create user")
		return
	}
	respond.OK(w, http.StatusCreated, map[string]any{
		"id":              u.ID,
		"username":        u.Username,
		"initialPassword": initialPassword,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	u, err := h.svc.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.writeError(w, err, "Failed to update user")
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"id": u.ID, "username": u.Username})
}

// UpdateProfile is the self-service profile edit on the settings page. The
// path id must be the caller's own; role and status are not touched.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	if ident.UserID != r.PathValue("id") {
		respond.Err(w, http.StatusForbidden, "You can only update your own profile")
		return
	}
	var in ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), ident.UserID, in)
	if err != nil {
		h.writeError(w, err, "Failed to update profile")
		return
	}
	respond.OKMessage(w, http.StatusOK, "Profile updated successfully", map[string]any{"id": u.ID})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ident := session.FromContext(r.Context())
	if ident != nil && ident.UserID == id {
		respond.Err(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to delete user")
		return
	}
	// Sessions of the deleted user die with the version lookup; clean up anyway.
	if err := h.sessions.RevokeAllForUser(r.Context(), id); err != nil {
		h.logger.Warnw("revoke sessions failed", "err", err, "user", id)
	}
	respond.OKMessage(w, http.StatusOK, "User deleted successfully", nil)
}

type setPasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// InitialSetPassword completes the forced first-login rotation and reissues
// the session cookie so the current browser stays signed in.
func (h *Handler) InitialSetPassword(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		respond.Err(w, http.StatusBadRequest, "Passwords didn't match.")
		return
	}
	if err := h.svc.InitialSetPassword(r.Context(), ident.UserID, req.NewPassword); err != nil {
		h.writeError(w, err, "Failed to set password")
		return
	}
	h.reissueSession(w, r, ident.UserID)
	respond.OKMessage(w, http.StatusOK, "Password changed successfully", nil)
}

// ChangePassword is the self-service flow on the Settings page.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		respond.Err(w, http.StatusBadRequest, "Passwords didn't match.")
		return
	}
	if err := h.svc.ChangePassword(r.Context(), ident.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrBadCredentials) {
			respond.Err(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		h.writeError(w, err, "Failed to change password")
		return
	}
	h.reissueSession(w, r, ident.UserID)
	respond.OKMessage(w, http.StatusOK, "Password changed successfully", nil)
}

type verifyResetTokenRequest struct {
	Token string `json:"token"`
}

// VerifyResetToken reports the state of a reset token. The console's reset
// page branches on data.state.
func (h *Handler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req verifyResetTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	state, err := h.svc.VerifyResetToken(r.Context(), req.Token)
	if err != nil {
		h.logger.Warnw("verify reset token failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, "Failed to verify token")
		return
	}
	if state != entity.TokenValid {
		respond.ErrData(w, http.StatusBadRequest, "Reset link is not valid", map[string]string{"state": state})
		return
	}
	respond.OK(w, http.StatusOK, map[string]string{"state": state})
}

type passwordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, ErrTokenNotValid) {
			respond.Err(w, http.StatusBadRequest, "Reset link is expired or already used")
			return
		}
		h.writeError(w, err, "Failed to reset password")
		return
	}
	respond.OKMessage(w, http.StatusOK, "Your password has been reset successfully", nil)
}

func (h *Handler) GetNotificationSettings(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	ns, err := h.svc.NotificationSettings(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Warnw("load notification settings failed", "err", err, "user", ident.UserID)
		respond.Err(w, http.StatusInternalServerError, "Failed to load notification settings")
		return
	}
	respond.OK(w, http.StatusOK, ns)
}

func (h *Handler) PutNotificationSettings(w http.ResponseWriter, r *http.Request) {
	ident := session.FromContext(r.Context())
	var ns entity.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&ns); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err := h.svc.SaveNotificationSettings(r.Context(), ident.UserID, ns); err != nil {
		respond.Err(w, http.StatusBadRequest, "Failed to save notification settings")
		return
	}
	respond.OKMessage(w, http.StatusOK, "Notification settings saved", nil)
}

// BulkUpload ingests a CSV of users from a multipart form.
func (h *Handler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respond.Err(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Err(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	result, err := h.svc.BulkImport(r.Context(), file)
	if err != nil {
		h.logger.Warnw("bulk import failed", "err", err)
		respond.Err(w, http.StatusBadRequest, "Failed to process file")
		return
	}
	respond.OKMessage(w, http.StatusOK, "File uploaded successfully! Users are being processed.", result)
}

func (h *Handler) reissueSession(w http.ResponseWriter, r *http.Request, userID string) {
	ver, err := h.svc.UserVersion(r.Context(), userID)
	if err != nil {
		h.logger.Warnw("reissue session: version lookup failed", "err", err, "user", userID)
		return
	}
	cookie, err := h.sessions.Issue(r.Context(), userID, ver)
	if err != nil {
		h.logger.Warnw("reissue session failed", "err", err, "user", userID)
		return
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Err(w, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrDuplicate):
		respond.Err(w, http.StatusConflict, "Username or email already exists")
	case errors.Is(err, ErrWeakPassword):
		respond.Err(w, http.StatusBadRequest, "Password length must be equal or greater than 8.")
	default:
		h.logger.Warnw("user operation failed", "err", err)
		respond.Err(w, http.StatusInternalServerError, fallback)
	}
}
