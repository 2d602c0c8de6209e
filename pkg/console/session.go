package console

import (
	"context"
	"encoding/json"
	"sync"
)

// User is the server-supplied account record cached by the session store.
type User struct {
	ID                     string   `json:"id"`
	FirstName              string   `json:"firstName"`
	LastName               string   `json:"lastName"`
	Username               string   `json:"username"`
	Email                  string   `json:"email"`
	Role                   string   `json:"role"`
	Permissions            []string `json:"permissions"`
	DefaultPasswordChanged bool     `json:"defaultPasswordChanged"`
}

// PermissionSet answers "do I hold this capability" lookups.
type PermissionSet map[string]struct{}

func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (ps PermissionSet) Has(name string) bool {
	_, ok := ps[name]
	return ok
}

// envelopeDoer is the slice of Client the store uses.
type envelopeDoer interface {
	Get(ctx context.Context, path string) (*Envelope, error)
	Post(ctx context.Context, path string, body any) (*Envelope, error)
}

// SessionStore holds the cached login state. It is the only writer of that
// state; everything else derives from it. Authentication status is always
// derived from the user field, never stored.
type SessionStore struct {
	client envelopeDoer

	mu                  sync.Mutex
	user                *User
	permissions         PermissionSet
	role                string
	needsPasswordChange bool
	loading             bool
	loggingOut          bool
}

// NewSessionStore wires the store to the client and installs the 401 hook.
// The store starts in the loading state, matching a cold application start
// before the first FetchCurrentUser resolves.
func NewSessionStore(client *Client) *SessionStore {
	s := &SessionStore{
		client:      client,
		permissions: PermissionSet{},
		loading:     true,
	}
	client.SetUnauthorizedHook(func() {
		s.Logout(context.Background())
	})
	return s
}

// FetchCurrentUser refreshes the cached user from the who-am-I endpoint. Any
// failure, whether transport, 401, or a malformed payload, degrades silently
// to logged out so a cold load with a dead cookie resolves to the login page
// instead of an error screen. Loading is always cleared.
func (s *SessionStore) FetchCurrentUser(ctx context.Context) {
	defer s.setLoading(false)

	env, err := s.client.Get(ctx, "/users/me")
	if err != nil {
		s.clear()
		return
	}
	var payload struct {
		Result json.RawMessage `json:"result"`
	}
	if err := env.DecodeData(&payload); err != nil || len(payload.Result) == 0 {
		s.clear()
		return
	}
	var u User
	if err := json.Unmarshal(payload.Result, &u); err != nil {
		s.clear()
		return
	}

	s.mu.Lock()
	s.user = &u
	s.role = u.Role
	s.permissions = NewPermissionSet(u.Permissions...)
	s.needsPasswordChange = !u.DefaultPasswordChanged
	s.mu.Unlock()
}

// Login posts credentials and, on declared success, repopulates the session
// via FetchCurrentUser. The envelope is returned either way so the caller can
// branch on success/failure messaging. Loading is cleared on every path.
func (s *SessionStore) Login(ctx context.Context, username, password string) (*Envelope, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	env, err := s.client.Post(ctx, "/users/authenticate", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return env, err
	}
	if env.Success {
		s.FetchCurrentUser(ctx)
	}
	return env, nil
}

// Logout posts the logout request best-effort and unconditionally clears the
// local session.
func (s *SessionStore) Logout(ctx context.Context) {
	s.mu.Lock()
	if s.loggingOut {
		s.mu.Unlock()
		return
	}
	s.loggingOut = true
	s.mu.Unlock()

	_, _ = s.client.Post(ctx, "/users/logout", nil)

	s.clear()
	s.mu.Lock()
	s.loggingOut = false
	s.mu.Unlock()
}

// IsAuthenticated is derived: true iff a user is cached.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

func (s *SessionStore) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *SessionStore) Role() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *SessionStore) Permissions() PermissionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(PermissionSet, len(s.permissions))
	for k := range s.permissions {
		out[k] = struct{}{}
	}
	return out
}

func (s *SessionStore) NeedsPasswordChange() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.needsPasswordChange
}

func (s *SessionStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *SessionStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *SessionStore) clear() {
	s.mu.Lock()
	s.user = nil
	s.role = ""
	s.permissions = PermissionSet{}
	s.needsPasswordChange = false
	s.mu.Unlock()
}
