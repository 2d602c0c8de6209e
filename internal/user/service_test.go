package user

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustflow/service-core/internal/role"
	"github.com/trustflow/service-core/internal/user/entity"
)

// plainHasher keeps the tests fast and the stored "hashes" inspectable.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, string, error) { return "plain:" + pw, "plain", nil }
func (plainHasher) Verify(hash, pw string) bool            { return hash == "plain:"+pw }

type memUserStore struct {
	users         map[string]*entity.User
	notifications map[string]entity.NotificationSettings
	resetTokens   map[string]*entity.ResetToken
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:         map[string]*entity.User{},
		notifications: map[string]entity.NotificationSettings{},
		resetTokens:   map[string]*entity.ResetToken{},
	}
}

func (m *memUserStore) Create(_ context.Context, u *entity.User) error {
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserStore) GetByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUserStore) List(_ context.Context) ([]*entity.User, error) {
	out := make([]*entity.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUserStore) Count(_ context.Context) (int, error) {
	return len(m.users), nil
}

func (m *memUserStore) Update(_ context.Context, u *entity.User) (int64, error) {
	if _, ok := m.users[u.ID]; !ok {
		return 0, nil
	}
	cp := *u
	cp.Version = m.users[u.ID].Version + 1
	m.users[u.ID] = &cp
	return 1, nil
}

func (m *memUserStore) UpdateProfile(_ context.Context, u *entity.User) (int64, error) {
	cur, ok := m.users[u.ID]
	if !ok {
		return 0, nil
	}
	cp := *cur
	cp.FirstName = u.FirstName
	cp.LastName = u.LastName
	cp.Username = u.Username
	cp.Email = u.Email
	cp.PhoneNumber = u.PhoneNumber
	cp.UpdatedAt = u.UpdatedAt
	m.users[u.ID] = &cp
	return 1, nil
}

func (m *memUserStore) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := m.users[id]; !ok {
		return 0, nil
	}
	delete(m.users, id)
	return 1, nil
}

func (m *memUserStore) IncrementFailedLogin(_ context.Context, id string) (int, error) {
	u := m.users[id]
	u.LoginFailedAttempts++
	return u.LoginFailedAttempts, nil
}

func (m *memUserStore) LockIfThreshold(_ context.Context, id string, threshold, lockMinutes int) (bool, error) {
	u := m.users[id]
	if u.LoginFailedAttempts < threshold {
		return false, nil
	}
	until := time.Now().Add(time.Duration(lockMinutes) * time.Minute)
	u.Status = "locked"
	u.LockedUntil = &until
	return true, nil
}

func (m *memUserStore) UnlockIfExpired(_ context.Context, id string) (bool, error) {
	u := m.users[id]
	if u.Status != "locked" || u.LockedUntil == nil || u.LockedUntil.After(time.Now()) {
		return false, nil
	}
	u.Status = "active"
	u.LockedUntil = nil
	u.LoginFailedAttempts = 0
	return true, nil
}

func (m *memUserStore) ResetLoginSuccess(_ context.Context, id string) error {
	u := m.users[id]
	now := time.Now()
	u.LoginFailedAttempts = 0
	u.LastLoginAt = &now
	return nil
}

func (m *memUserStore) UpdatePassword(_ context.Context, id, hash, algo string, markRotated bool) error {
	u := m.users[id]
	u.PasswordHash = &hash
	u.PasswordAlgo = &algo
	u.DefaultPasswordChanged = u.DefaultPasswordChanged || markRotated
	u.Version++
	return nil
}

func (m *memUserStore) Version(_ context.Context, id string) (int64, error) {
	return m.users[id].Version, nil
}

func (m *memUserStore) GetNotificationSettings(_ context.Context, userID string) (*entity.NotificationSettings, error) {
	ns, ok := m.notifications[userID]
	if !ok {
		return nil, nil
	}
	return &ns, nil
}

func (m *memUserStore) PutNotificationSettings(_ context.Context, userID string, ns entity.NotificationSettings) error {
	m.notifications[userID] = ns
	return nil
}

func (m *memUserStore) SaveResetToken(_ context.Context, t *entity.ResetToken) error {
	cp := *t
	m.resetTokens[t.Token] = &cp
	return nil
}

func (m *memUserStore) GetResetToken(_ context.Context, token string) (*entity.ResetToken, error) {
	t, ok := m.resetTokens[token]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memUserStore) MarkResetTokenUsed(_ context.Context, token string) error {
	now := time.Now()
	m.resetTokens[token].UsedAt = &now
	return nil
}

type memRoles struct {
	roles map[string]*role.Role
}

func (m memRoles) Get(_ context.Context, id string) (*role.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, role.ErrNotFound
	}
	return r, nil
}

func newTestUserService() (*Service, *memUserStore) {
	store := newMemUserStore()
	roles := memRoles{roles: map[string]*role.Role{
		"r1": {ID: "r1", RoleName: "Developer", CanCreateBug: true, CanEditBug: true},
	}}
	return NewService(store, roles, plainHasher{}), store
}

func seedUser(store *memUserStore, overrides func(*entity.User)) *entity.User {
	hash := "plain:correct-horse"
	algo := "plain"
	u := &entity.User{
		ID:                     "u1",
		FirstName:              "Ada",
		LastName:               "Lovelace",
		Username:               "ada",
		Email:                  "ada@trustflow.io",
		RoleID:                 "r1",
		PasswordHash:           &hash,
		PasswordAlgo:           &algo,
		DefaultPasswordChanged: true,
		Status:                 "active",
		Version:                1,
	}
	if overrides != nil {
		overrides(u)
	}
	store.users[u.ID] = u
	return u
}

func TestAuthenticateByUsernameAndEmail(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)

	u, err := svc.Authenticate(context.Background(), "ada", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	u, err = svc.Authenticate(context.Background(), "ADA@trustflow.io", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)

	_, err := svc.Authenticate(context.Background(), "ada", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	// unknown user answers the same, no enumeration
	_, err = svc.Authenticate(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = svc.Authenticate(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthenticateLocksAfterRepeatedFailures(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)

	for i := 0; i < svc.MaxFailed; i++ {
		_, err := svc.Authenticate(context.Background(), "ada", "wrong")
		assert.ErrorIs(t, err, ErrBadCredentials)
	}

	// account is now locked; even the right password is rejected
	_, err := svc.Authenticate(context.Background(), "ada", "correct-horse")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAuthenticateUnlocksExpiredLock(t *testing.T) {
	svc, store := newTestUserService()
	past := time.Now().Add(-time.Minute)
	seedUser(store, func(u *entity.User) {
		u.Status = "locked"
		u.LockedUntil = &past
		u.LoginFailedAttempts = 6
	})

	u, err := svc.Authenticate(context.Background(), "ada", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "active", store.users["u1"].Status)
}

func TestAuthenticateSucceedsWithUnrotatedPassword(t *testing.T) {
	// an account still on its initial password logs in fine; the rotation
	// interstitial handles the rest
	svc, store := newTestUserService()
	seedUser(store, func(u *entity.User) { u.DefaultPasswordChanged = false })

	u, err := svc.Authenticate(context.Background(), "ada", "correct-horse")
	require.NoError(t, err)
	assert.False(t, u.DefaultPasswordChanged)
}

func TestAuthenticateRejectsDisabled(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, func(u *entity.User) { u.Status = "disabled" })

	_, err := svc.Authenticate(context.Background(), "ada", "correct-horse")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCreateGeneratesInitialPassword(t *testing.T) {
	svc, store := newTestUserService()

	u, initial, err := svc.Create(context.Background(), CreateInput{
		FirstName: "Grace", LastName: "Hopper",
		Username: "grace", Email: "Grace@TrustFlow.io", RoleID: "r1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, initial)
	assert.False(t, u.DefaultPasswordChanged)
	assert.Equal(t, "grace@trustflow.io", u.Email)

	// the generated password authenticates until rotated
	got, err := svc.Authenticate(context.Background(), "grace", initial)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_ = store
}

func TestCreateRejectsDuplicates(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)

	_, _, err := svc.Create(context.Background(), CreateInput{
		Username: "ada", Email: "other@trustflow.io", RoleID: "r1",
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, _, err = svc.Create(context.Background(), CreateInput{
		Username: "other", Email: "ada@trustflow.io", RoleID: "r1",
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestInitialSetPasswordBumpsVersionAndMarksRotated(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, func(u *entity.User) { u.DefaultPasswordChanged = false })

	assert.ErrorIs(t, svc.InitialSetPassword(context.Background(), "u1", "short"), ErrWeakPassword)

	require.NoError(t, svc.InitialSetPassword(context.Background(), "u1", "a-much-better-one"))
	u := store.users["u1"]
	assert.True(t, u.DefaultPasswordChanged)
	assert.Equal(t, int64(2), u.Version, "version bump revokes old sessions")

	_, err := svc.Authenticate(context.Background(), "ada", "a-much-better-one")
	assert.NoError(t, err)
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)

	err := svc.ChangePassword(context.Background(), "u1", "wrong-current", "a-much-better-one")
	assert.ErrorIs(t, err, ErrBadCredentials)

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", "correct-horse", "a-much-better-one"))
	assert.Equal(t, int64(2), store.users["u1"].Version)
}

func TestResetTokenLifecycle(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)

	token, u, err := svc.CreateResetToken(context.Background(), "ada@trustflow.io")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	state, err := svc.VerifyResetToken(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, entity.TokenValid, state)

	// consuming the token rotates the password and burns the token
	require.NoError(t, svc.ResetPassword(context.Background(), token.Token, "brand-new-password"))
	state, err = svc.VerifyResetToken(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, entity.TokenUsed, state)

	assert.ErrorIs(t,
		svc.ResetPassword(context.Background(), token.Token, "another-password"),
		ErrTokenNotValid)

	_, err = svc.Authenticate(context.Background(), "ada", "brand-new-password")
	assert.NoError(t, err)
	_ = store
}

func TestResetTokenStates(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)

	// unknown token
	state, err := svc.VerifyResetToken(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.Equal(t, entity.TokenInvalid, state)

	// expired token
	token, _, err := svc.CreateResetToken(context.Background(), "ada@trustflow.io")
	require.NoError(t, err)
	store.resetTokens[token.Token].ExpiresAt = time.Now().Add(-time.Minute)

	state, err = svc.VerifyResetToken(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, entity.TokenExpired, state)

	assert.ErrorIs(t,
		svc.ResetPassword(context.Background(), token.Token, "whatever-password"),
		ErrTokenNotValid)
}

func TestCreateResetTokenUnknownEmail(t *testing.T) {
	svc, _ := newTestUserService()
	_, _, err := svc.CreateResetToken(context.Background(), "ghost@trustflow.io")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationSettingsDefaultsAndValidation(t *testing.T) {
	svc, _ := newTestUserService()

	ns, err := svc.NotificationSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultNotificationSettings(), ns)

	err = svc.SaveNotificationSettings(context.Background(), "u1", entity.NotificationSettings{
		DefaultNotificationMethod: "carrier-pigeon",
	})
	assert.Error(t, err)

	require.NoError(t, svc.SaveNotificationSettings(context.Background(), "u1", entity.NotificationSettings{
		DefaultNotificationMethod: "slack",
		NotifyOnAssignedBug:       true,
	}))
	ns, err = svc.NotificationSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "slack", ns.DefaultNotificationMethod)
}

func TestBulkImport(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil) // "ada" exists already

	csvData := strings.NewReader(strings.Join([]string{
		"firstname,lastname,username,email,roleId",
		"Grace,Hopper,grace,grace@trustflow.io,r1",
		"Ada,Lovelace,ada,ada2@trustflow.io,r1", // duplicate username
		"Katherine,Johnson,katherine,katherine@trustflow.io,bogus-role",
		"Edsger,Dijkstra,edsger,edsger@trustflow.io,r1",
	}, "\n"))

	result, err := svc.BulkImport(context.Background(), csvData)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2)

	created, err := store.GetByUsername(context.Background(), "grace")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.False(t, created.DefaultPasswordChanged)
}

func TestUpdateProfileChecksOwnershipCollisions(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)
	seedUser(store, func(u *entity.User) {
		u.ID = "u2"
		u.Username = "grace"
		u.Email = "grace@trustflow.io"
	})

	// taking another user's username fails
	_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		FirstName: "Ada", Username: "grace", Email: "ada@trustflow.io",
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	// keeping your own username while changing other fields is fine
	updated, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		FirstName: "Augusta", LastName: "King", Username: "ada", Email: "ada@trustflow.io", PhoneNumber: "555-0100",
	})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)
	assert.Equal(t, "555-0100", updated.PhoneNumber)
	assert.Equal(t, "r1", updated.RoleID, "role untouched by self-service edit")
}

// A profile edit must not bump the user version; sessions are validated
// against it, so a bump would log the user out on their next request.
func TestUpdateProfileKeepsSessionsValid(t *testing.T) {
	svc, store := newTestUserService()
	seedUser(store, nil)
	before := store.users["u1"].Version

	_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		FirstName: "Augusta", Username: "ada", Email: "ada@trustflow.io",
	})
	require.NoError(t, err)
	assert.Equal(t, before, store.users["u1"].Version)
}

func TestEnsureSeedAdmin(t *testing.T) {
	svc, store := newTestUserService()
	roleSvc := role.NewService(newSeedRoleStore())

	created, err := svc.EnsureSeedAdmin(context.Background(), roleSvc, "admin", "admin@trustflow.io", "bootstrap-secret")
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := store.GetByUsername(context.Background(), "admin")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.False(t, admin.DefaultPasswordChanged, "seed admin rotates like everyone else")

	// second start is a no-op
	created, err = svc.EnsureSeedAdmin(context.Background(), roleSvc, "admin", "admin@trustflow.io", "bootstrap-secret")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureSeedAdminSkippedWithoutPassword(t *testing.T) {
	svc, _ := newTestUserService()
	roleSvc := role.NewService(newSeedRoleStore())

	created, err := svc.EnsureSeedAdmin(context.Background(), roleSvc, "admin", "admin@trustflow.io", "")
	require.NoError(t, err)
	assert.False(t, created)
}

// seedRoleStore is the minimal in-memory role.Store for EnsureSeedAdmin.
type seedRoleStore struct {
	roles map[string]*role.Role
}

func newSeedRoleStore() *seedRoleStore {
	return &seedRoleStore{roles: map[string]*role.Role{}}
}

func (m *seedRoleStore) List(context.Context) ([]*role.Role, error) {
	out := make([]*role.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *seedRoleStore) GetByID(_ context.Context, id string) (*role.Role, error) {
	return m.roles[id], nil
}

func (m *seedRoleStore) GetByName(_ context.Context, name string) (*role.Role, error) {
	for _, r := range m.roles {
		if r.RoleName == name {
			return r, nil
		}
	}
	return nil, nil
}

func (m *seedRoleStore) Create(_ context.Context, r *role.Role) error {
	cp := *r
	m.roles[r.ID] = &cp
	return nil
}

func (m *seedRoleStore) Update(_ context.Context, r *role.Role) (int64, error) {
	if _, ok := m.roles[r.ID]; !ok {
		return 0, nil
	}
	cp := *r
	m.roles[r.ID] = &cp
	return 1, nil
}

func (m *seedRoleStore) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := m.roles[id]; !ok {
		return 0, nil
	}
	delete(m.roles, id)
	return 1, nil
}

func (m *seedRoleStore) CountUsers(context.Context, string) (int, error) { return 0, nil }
