package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(success bool, data any, message string) []byte {
	buf, _ := json.Marshal(map[string]any{
		"success": success,
		"data":    data,
		"message": message,
	})
	return buf
}

func meBody(u User) any {
	return map[string]any{"result": u}
}

// newTestBackend fakes the API: /users/me answers per the current handler,
// which tests swap out to simulate state changes.
func newTestBackend(t *testing.T) (*httptest.Server, *atomic.Value) {
	t.Helper()
	me := &atomic.Value{}
	me.Store(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write(envelope(false, nil, "Authentication required"))
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		me.Load().(func(http.ResponseWriter, *http.Request))(w, r)
	})
	mux.HandleFunc("POST /users/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] == "correct-horse" {
			w.Write(envelope(true, nil, "Login successful"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write(envelope(false, nil, "Invalid username or password"))
	})
	mux.HandleFunc("POST /users/logout", func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(true, nil, "Logged out"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, me
}

func authenticatedMe(u User) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(true, meBody(u), ""))
	}
}

func TestIsAuthenticatedDerivedFromUser(t *testing.T) {
	srv, me := newTestBackend(t)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	store := NewSessionStore(client)

	assert.False(t, store.IsAuthenticated())
	assert.True(t, store.Loading())

	me.Store(authenticatedMe(User{ID: "1", Username: "ada", Role: "Admin", Permissions: []string{"CanManageAdminSettings"}, DefaultPasswordChanged: true}))
	store.FetchCurrentUser(context.Background())

	assert.True(t, store.IsAuthenticated())
	assert.NotNil(t, store.User())
	assert.False(t, store.Loading())

	store.Logout(context.Background())
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.User())
}

func TestFetchCurrentUserDegradesSilently(t *testing.T) {
	srv, me := newTestBackend(t)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	store := NewSessionStore(client)

	// dead cookie: 401 resolves to logged out, loading cleared
	store.FetchCurrentUser(context.Background())
	assert.False(t, store.IsAuthenticated())
	assert.False(t, store.Loading())

	// malformed payload degrades the same way
	me.Store(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(true, map[string]any{"unexpected": true}, ""))
	})
	store.FetchCurrentUser(context.Background())
	assert.False(t, store.IsAuthenticated())
	assert.False(t, store.Loading())
}

func TestLoginPopulatesSession(t *testing.T) {
	srv, me := newTestBackend(t)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	store := NewSessionStore(client)

	me.Store(authenticatedMe(User{
		ID: "7", Username: "grace", Role: "Developer",
		Permissions:            []string{"CanCreateBug", "CanEditBug"},
		DefaultPasswordChanged: true,
	}))

	env, err := store.Login(context.Background(), "grace", "correct-horse")
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "Login successful", env.Message)

	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "Developer", store.Role())
	assert.True(t, store.Permissions().Has("CanCreateBug"))
	assert.False(t, store.NeedsPasswordChange())
	assert.False(t, store.Loading())
}

// The API answers a failed login with 401 plus a message in the envelope.
// That envelope must reach the caller so the login page can display it.
func TestLoginFailureReturnsEnvelopeAndClearsLoading(t *testing.T) {
	srv, _ := newTestBackend(t)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	store := NewSessionStore(client)

	env, err := store.Login(context.Background(), "grace", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	require.NotNil(t, env)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid username or password", env.Message)
	assert.False(t, store.IsAuthenticated())
	assert.False(t, store.Loading())
}

func TestNeedsPasswordChangeDerivedFromUserRecord(t *testing.T) {
	srv, me := newTestBackend(t)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	store := NewSessionStore(client)

	me.Store(authenticatedMe(User{ID: "9", Username: "new-hire", DefaultPasswordChanged: false}))
	store.FetchCurrentUser(context.Background())
	assert.True(t, store.NeedsPasswordChange())

	me.Store(authenticatedMe(User{ID: "9", Username: "new-hire", DefaultPasswordChanged: true}))
	store.FetchCurrentUser(context.Background())
	assert.False(t, store.NeedsPasswordChange())
}
