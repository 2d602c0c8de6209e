package console

// DecisionKind is what a route guard tells the shell to do for a path.
type DecisionKind int

const (
	// ShowLoading blocks rendering until the session resolves; no
	// navigation decision is made while loading.
	ShowLoading DecisionKind = iota
	// Render admits the requested path.
	Render
	// Redirect navigates to Decision.To, optionally carrying the origin.
	Redirect
)

// Decision is the resolved outcome for one path.
type Decision struct {
	Kind DecisionKind
	// To is the redirect target, set only when Kind == Redirect.
	To string
	// From preserves the originally requested path across a login redirect
	// so the flow can return the user there afterwards.
	From string
}

// SessionState is the slice of the session store the guards read.
type SessionState interface {
	Loading() bool
	IsAuthenticated() bool
	NeedsPasswordChange() bool
}

// AuthGate is the authentication route guard: loading blocks, unauthenticated
// redirects to login with the origin preserved, authenticated renders.
type AuthGate struct {
	Session   SessionState
	LoginPath string
}

func (g AuthGate) Resolve(path string) Decision {
	if g.Session.Loading() {
		return Decision{Kind: ShowLoading}
	}
	if !g.Session.IsAuthenticated() {
		if path == g.LoginPath {
			return Decision{Kind: Render}
		}
		return Decision{Kind: Redirect, To: g.LoginPath, From: path}
	}
	return Decision{Kind: Render}
}

// RotationGuard layers the forced password rotation on top of the
// authentication gate: authentication first, then password policy, then
// rendering. A redirect is only emitted when the target differs from the
// current path, so resolving the redirect target again always renders.
type RotationGuard struct {
	Session            SessionState
	LoginPath          string
	PasswordChangePath string
	DashboardPath      string
}

func (g RotationGuard) Resolve(path string) Decision {
	if g.Session.Loading() {
		return Decision{Kind: ShowLoading}
	}
	if !g.Session.IsAuthenticated() {
		if path == g.LoginPath {
			return Decision{Kind: Render}
		}
		return Decision{Kind: Redirect, To: g.LoginPath, From: path}
	}
	if g.Session.NeedsPasswordChange() {
		if path == g.PasswordChangePath {
			return Decision{Kind: Render}
		}
		return Decision{Kind: Redirect, To: g.PasswordChangePath}
	}
	// rotated accounts have no business on the login or password pages
	if path == g.LoginPath || path == g.PasswordChangePath {
		return Decision{Kind: Redirect, To: g.DashboardPath}
	}
	return Decision{Kind: Render}
}
