package console

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUnauthorizedInvokesHookOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /issues", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write(envelope(false, nil, "Authentication required"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	calls := 0
	client.SetUnauthorizedHook(func() { calls++ })

	env, err := client.Get(context.Background(), "/issues")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, calls)

	// the envelope still comes back so callers can show the message
	require.NotNil(t, env)
	assert.Equal(t, "Authentication required", env.Message)
}

func TestClientUnauthorizedForcesLogout(t *testing.T) {
	srv, me := newTestBackend(t)
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	store := NewSessionStore(client)

	me.Store(authenticatedMe(User{ID: "1", Username: "ada", DefaultPasswordChanged: true}))
	store.FetchCurrentUser(context.Background())
	require.True(t, store.IsAuthenticated())

	// the next /users/me starts answering 401: any request through the
	// client must clear the cached session
	me.Store(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write(envelope(false, nil, "Authentication required"))
	})
	_, err = client.Get(context.Background(), "/users/me")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, store.IsAuthenticated())
}

func TestClientSurfacesEnvelopeMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rolepermissions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write(envelope(false, nil, "Please select at least one permission for this role."))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	env, err := client.Post(context.Background(), "/rolepermissions", map[string]string{"roleName": "Empty"})
	require.Error(t, err)
	assert.Equal(t, "Please select at least one permission for this role.", err.Error())
	require.NotNil(t, env)
	assert.False(t, env.Success)
}

func TestClientDecodesEnvelopeData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(true, []map[string]string{{"id": "1", "name": "Apollo"}}, ""))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	env, err := client.Get(context.Background(), "/projects")
	require.NoError(t, err)

	var projects []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, env.DecodeData(&projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "Apollo", projects[0].Name)
}
