package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/trustflow/service-core/internal/dashboard"
	"github.com/trustflow/service-core/internal/email"
	"github.com/trustflow/service-core/internal/issue"
	"github.com/trustflow/service-core/internal/project"
	"github.com/trustflow/service-core/internal/role"
	"github.com/trustflow/service-core/internal/session"
	"github.com/trustflow/service-core/internal/settings"
	"github.com/trustflow/service-core/internal/user"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware adds Access-Control headers for allowed origins and
// short-circuits preflight requests. Credentials are always allowed; the
// console authenticates with a cookie.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := map[string]bool{}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Handlers bundles the feature handlers the router mounts.
type Handlers struct {
	Users     *user.Handler
	Roles     *role.Handler
	Projects  *project.Handler
	Issues    *issue.Handler
	Settings  *settings.Handler
	Email     *email.Handler
	Dashboard *dashboard.Handler
}

// RegisterRoutes mounts the API on the standard library's http.ServeMux with
// the session guards layered per route group.
func RegisterRoutes(h Handlers, sessions *session.Service, corsOrigins []string, logger *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()

	// authn only: the forced-rotation interstitial still needs these
	authed := func(fn http.HandlerFunc) http.Handler {
		return sessions.RequireSession(fn)
	}
	// authn + rotated password
	rotated := func(fn http.HandlerFunc) http.Handler {
		return sessions.RequireSession(session.RequirePasswordRotated(fn))
	}
	// authn + rotated password + any of the named permissions
	gated := func(fn http.HandlerFunc, perms ...string) http.Handler {
		return sessions.RequireSession(session.RequirePasswordRotated(session.RequirePermission(perms...)(fn)))
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return gated(fn, role.PermManageAdminSettings)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// public auth + reset flow
	mux.HandleFunc("POST /users/authenticate", h.Users.Authenticate)
	mux.HandleFunc("POST /users/logout", h.Users.Logout)
	mux.HandleFunc("POST /users/verifyresettoken", h.Users.VerifyResetToken)
	mux.HandleFunc("POST /users/passwordreset", h.Users.PasswordReset)
	mux.HandleFunc("POST /email/sendpasswordresetmail", h.Email.SendPasswordReset)

	// reachable before the forced password rotation
	mux.Handle("GET /users/me", authed(h.Users.Me))
	mux.Handle("POST /users/initialsetpassword", authed(h.Users.InitialSetPassword))

	// self-service
	mux.Handle("POST /users/changepassword", rotated(h.Users.ChangePassword))
	mux.Handle("PATCH /users/profile/{id}", rotated(h.Users.UpdateProfile))
	mux.Handle("GET /users/notificationsettings", rotated(h.Users.GetNotificationSettings))
	mux.Handle("PUT /users/notificationsettings", rotated(h.Users.PutNotificationSettings))

	// user administration
	mux.Handle("GET /users", admin(h.Users.List))
	mux.Handle("POST /users", admin(h.Users.Create))
	mux.Handle("PUT /users/{id}", admin(h.Users.Update))
	mux.Handle("DELETE /users/{id}", admin(h.Users.Delete))
	mux.Handle("POST /users/bulk-upload", admin(h.Users.BulkUpload))

	// roles
	mux.Handle("GET /rolepermissions", admin(h.Roles.List))
	mux.Handle("GET /rolepermissions/list", admin(h.Roles.ListNames))
	mux.Handle("POST /rolepermissions", admin(h.Roles.Create))
	mux.Handle("PUT /rolepermissions/{id}", admin(h.Roles.Update))
	mux.Handle("DELETE /rolepermissions/{id}", admin(h.Roles.Delete))

	// projects
	mux.Handle("GET /projects", rotated(h.Projects.List))
	mux.Handle("GET /projects/{id}", rotated(h.Projects.Get))
	mux.Handle("POST /projects", gated(h.Projects.Create, role.PermCreateProject))
	mux.Handle("PUT /projects/{id}", gated(h.Projects.Update, role.PermEditProject))
	mux.Handle("DELETE /projects/{id}", gated(h.Projects.Delete, role.PermDeleteProject))
	mux.Handle("POST /projects/{id}/members", gated(h.Projects.AddMember, role.PermEditProject))
	mux.Handle("DELETE /projects/{id}/members/{userId}", gated(h.Projects.RemoveMember, role.PermEditProject))

	// issues
	mux.Handle("GET /issues", rotated(h.Issues.List))
	mux.Handle("GET /issues/my", rotated(h.Issues.ListMine))
	mux.Handle("GET /issues/filters", rotated(h.Issues.FilterOptions))
	mux.Handle("GET /issues/{id}", rotated(h.Issues.Get))
	mux.Handle("POST /issues", gated(h.Issues.Create, role.PermCreateBug))
	mux.Handle("PUT /issues/{id}", gated(h.Issues.Update, role.PermEditBug, role.PermChangeBugStatus))
	mux.Handle("DELETE /issues/{id}", gated(h.Issues.Delete, role.PermEditBug))

	// system settings + mail
	mux.Handle("GET /systemsettings", admin(h.Settings.Get))
	mux.Handle("PUT /systemsettings/update-smtp", admin(h.Settings.UpdateSMTP))
	mux.Handle("PUT /systemsettings/update-teams", admin(h.Settings.UpdateTeams))
	mux.Handle("PUT /systemsettings/update-slack", admin(h.Settings.UpdateSlack))
	mux.Handle("PUT /systemsettings/update-config", admin(h.Settings.UpdatePortal))
	mux.Handle("GET /email/test-smtp", admin(h.Email.TestSMTP))

	// dashboards; path casing is part of the client contract
	mux.Handle("GET /DashBoard/GetDashboardStats", admin(h.Dashboard.GetDashboardStats))
	mux.Handle("GET /DashBoard/GetRecentActivityList", admin(h.Dashboard.GetRecentActivityList))
	mux.Handle("GET /DashBoard/GetRoleOverview", admin(h.Dashboard.GetRoleOverview))
	mux.Handle("GET /DashBoard/GetUserDashBoardStats", rotated(h.Dashboard.GetUserDashBoardStats))
	mux.Handle("GET /DashBoard/GetUserOpenIssueList", rotated(h.Dashboard.GetUserOpenIssueList))
	mux.Handle("GET /DashBoard/GetUserRecentActivityList", rotated(h.Dashboard.GetUserRecentActivityList))

	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(CORSMiddleware(corsOrigins)(mux)))
	return handler
}
