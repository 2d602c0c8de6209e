// Package session owns server-side login sessions and the request guards
// built on them. A session is a Postgres row addressed by an opaque id; the
// browser carries a signed JWT cookie wrapping that id. Validation therefore
// survives neither secret rotation nor a deleted row, which is the point:
// logout and password rotation revoke by deleting rows.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trustflow/service-core/pkg/utilities"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
)

// Session is one persisted login.
type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Version   int64     `db:"user_version"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Identity is the per-request view of the authenticated caller. Permission
// names come from the user's role.
type Identity struct {
	UserID                 string
	SessionID              string
	Username               string
	Role                   string
	Permissions            []string
	DefaultPasswordChanged bool
}

// HasAnyPermission reports whether the identity holds at least one of the
// named permissions. An empty requirement list always passes.
func (id *Identity) HasAnyPermission(names ...string) bool {
	if len(names) == 0 {
		return true
	}
	for _, want := range names {
		for _, have := range id.Permissions {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Store captures session persistence.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Directory resolves a user id to its identity. Implemented by the user
// service; declared here so session does not import user.
type Directory interface {
	Identity(ctx context.Context, userID string) (*Identity, error)
	UserVersion(ctx context.Context, userID string) (int64, error)
}

// Service issues, validates, and revokes sessions.
type Service struct {
	store      Store
	dir        Directory
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
}

func NewService(store Store, dir Directory, secret string, ttl time.Duration, cookieName string, secure bool) *Service {
	return &Service{
		store:      store,
		dir:        dir,
		secret:     []byte(secret),
		ttl:        ttl,
		cookieName: cookieName,
		secure:     secure,
	}
}

// Issue creates a session for the user and returns the cookie to set.
func (s *Service) Issue(ctx context.Context, userID string, userVersion int64) (*http.Cookie, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        utilities.NewKSUID(),
		UserID:    userID,
		Version:   userVersion,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	claims := jwt.MapClaims{
		"sid": sess.ID,
		"sub": userID,
		"ver": userVersion,
		"iat": now.Unix(),
		"exp": sess.ExpiresAt.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return s.cookie(signed, sess.ExpiresAt), nil
}

// Validate parses the cookie value, checks the persisted session, and loads
// the caller's identity. Any failure maps to ErrInvalidSession or
// ErrExpiredSession; callers answer both with 401.
func (s *Service) Validate(ctx context.Context, raw string) (*Identity, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidSession
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return nil, ErrInvalidSession
	}

	sess, err := s.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvalidSession
	}
	now := time.Now()
	if now.After(sess.ExpiresAt) {
		_ = s.store.Delete(ctx, sid)
		return nil, ErrExpiredSession
	}

	// A bumped user version invalidates sessions issued before the bump
	// (password change, admin edit).
	ver, err := s.dir.UserVersion(ctx, sess.UserID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	if ver != sess.Version {
		_ = s.store.Delete(ctx, sid)
		return nil, ErrInvalidSession
	}

	ident, err := s.dir.Identity(ctx, sess.UserID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	ident.SessionID = sid
	return ident, nil
}

// Revoke deletes the session behind the cookie value. Unknown or malformed
// cookies are ignored: logout is best-effort.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return nil
	}
	return s.store.Delete(ctx, sid)
}

// RevokeAllForUser deletes every session of the user. Used when a password
// changes so other browsers fall back to the login page.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.store.DeleteForUser(ctx, userID)
}

// CookieName returns the configured session cookie name.
func (s *Service) CookieName() string { return s.cookieName }

// ClearCookie returns an expired cookie that removes the session client-side.
func (s *Service) ClearCookie() *http.Cookie {
	c := s.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	return c
}

func (s *Service) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
