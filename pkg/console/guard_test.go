package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSession struct {
	loading       bool
	authenticated bool
	needsRotation bool
}

func (f fakeSession) Loading() bool             { return f.loading }
func (f fakeSession) IsAuthenticated() bool     { return f.authenticated }
func (f fakeSession) NeedsPasswordChange() bool { return f.needsRotation }

func newRotationGuard(s SessionState) RotationGuard {
	return RotationGuard{
		Session:            s,
		LoginPath:          "/login",
		PasswordChangePath: "/initialpasswordset",
		DashboardPath:      "/dashboard",
	}
}

func TestAuthGateLoadingNeverNavigates(t *testing.T) {
	gate := AuthGate{Session: fakeSession{loading: true}, LoginPath: "/login"}
	for _, path := range []string{"/dashboard", "/login", "/projects/42"} {
		d := gate.Resolve(path)
		assert.Equal(t, ShowLoading, d.Kind, "path %s", path)
		assert.Empty(t, d.To)
	}
}

func TestAuthGateUnauthenticatedPreservesOrigin(t *testing.T) {
	gate := AuthGate{Session: fakeSession{}, LoginPath: "/login"}

	d := gate.Resolve("/projects/42")
	assert.Equal(t, Redirect, d.Kind)
	assert.Equal(t, "/login", d.To)
	assert.Equal(t, "/projects/42", d.From)

	// already on login: render, no loop
	assert.Equal(t, Render, gate.Resolve("/login").Kind)
}

func TestAuthGateAuthenticatedRenders(t *testing.T) {
	gate := AuthGate{Session: fakeSession{authenticated: true}, LoginPath: "/login"}
	assert.Equal(t, Render, gate.Resolve("/dashboard").Kind)
}

func TestRotationGuardLoadingBlocks(t *testing.T) {
	g := newRotationGuard(fakeSession{loading: true, authenticated: true})
	assert.Equal(t, ShowLoading, g.Resolve("/dashboard").Kind)
}

func TestRotationGuardUnrotatedForcedToPasswordPage(t *testing.T) {
	g := newRotationGuard(fakeSession{authenticated: true, needsRotation: true})

	d := g.Resolve("/dashboard")
	assert.Equal(t, Redirect, d.Kind)
	assert.Equal(t, "/initialpasswordset", d.To)

	// on the password page itself: render, never loop
	assert.Equal(t, Render, g.Resolve("/initialpasswordset").Kind)
}

func TestRotationGuardRotatedLeavesAuthPages(t *testing.T) {
	g := newRotationGuard(fakeSession{authenticated: true})

	for _, path := range []string{"/login", "/initialpasswordset"} {
		d := g.Resolve(path)
		assert.Equal(t, Redirect, d.Kind, "path %s", path)
		assert.Equal(t, "/dashboard", d.To)
	}
	assert.Equal(t, Render, g.Resolve("/dashboard").Kind)
	assert.Equal(t, Render, g.Resolve("/issues").Kind)
}

func TestRotationGuardAuthenticationPrecedesPasswordPolicy(t *testing.T) {
	// unauthenticated wins even with the rotation flag set
	g := newRotationGuard(fakeSession{needsRotation: true})
	d := g.Resolve("/issues")
	assert.Equal(t, Redirect, d.Kind)
	assert.Equal(t, "/login", d.To)
	assert.Equal(t, "/issues", d.From)
}

// Resolving a redirect target again must always render: the guard never
// produces a redirect chain.
func TestRotationGuardRedirectsAreIdempotent(t *testing.T) {
	sessions := []fakeSession{
		{},
		{authenticated: true},
		{authenticated: true, needsRotation: true},
	}
	paths := []string{"/login", "/initialpasswordset", "/dashboard", "/projects", "/users"}

	for _, s := range sessions {
		g := newRotationGuard(s)
		for _, p := range paths {
			d := g.Resolve(p)
			if d.Kind != Redirect {
				continue
			}
			assert.NotEqual(t, p, d.To, "redirect to current path loops")
			next := g.Resolve(d.To)
			assert.Equal(t, Render, next.Kind, "session %+v path %s -> %s", s, p, d.To)
		}
	}
}
