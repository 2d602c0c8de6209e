package user

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trustflow/service-core/internal/role"
	"github.com/trustflow/service-core/internal/session"
	"github.com/trustflow/service-core/internal/user/entity"
	"github.com/trustflow/service-core/pkg/utilities"
)

// PasswordHasher defines the minimal hashing interface (abstract so the
// implementation can move to argon2 without touching callers).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	ErrNotFound       = errors.New("user not found")
	ErrLocked         = errors.New("user locked")
	ErrDisabled       = errors.New("user disabled")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrDuplicate      = errors.New("username or email already exists")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
	ErrTokenNotValid  = errors.New("reset token not valid")
)

// Store captures persistence operations the service needs.
type Store interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, u *entity.User) (int64, error)
	UpdateProfile(ctx context.Context, u *entity.User) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)

	IncrementFailedLogin(ctx context.Context, id string) (int, error)
	LockIfThreshold(ctx context.Context, id string, threshold, lockMinutes int) (bool, error)
	UnlockIfExpired(ctx context.Context, id string) (bool, error)
	ResetLoginSuccess(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, hash, algo string, markRotated bool) error
	Version(ctx context.Context, id string) (int64, error)

	GetNotificationSettings(ctx context.Context, userID string) (*entity.NotificationSettings, error)
	PutNotificationSettings(ctx context.Context, userID string, ns entity.NotificationSettings) error

	SaveResetToken(ctx context.Context, t *entity.ResetToken) error
	GetResetToken(ctx context.Context, token string) (*entity.ResetToken, error)
	MarkResetTokenUsed(ctx context.Context, token string) error
}

// RoleDirectory is the slice of the role service the user service needs.
type RoleDirectory interface {
	Get(ctx context.Context, id string) (*role.Role, error)
}

// Service orchestrates authentication and user lifecycle flows.
type Service struct {
	store  Store
	roles  RoleDirectory
	hasher PasswordHasher
	// configuration knobs
	MaxFailed   int
	LockMinutes int
	ResetTTL    time.Duration
}

func NewService(store Store, roles RoleDirectory, hasher PasswordHasher) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{
		store:       store,
		roles:       roles,
		hasher:      hasher,
		MaxFailed:   6,
		LockMinutes: 15,
		ResetTTL:    time.Hour,
	}
}

// Authenticate performs password authentication by username or email. A user
// who still carries the default password authenticates successfully; the
// console's rotation guard takes over from there.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*entity.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrBadCredentials
	}

	var u *entity.User
	var err error
	if strings.Contains(identifier, "@") {
		u, err = s.store.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.store.GetByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrBadCredentials // avoid user enumeration
	}

	// Expired lock auto-unlock attempt
	if u.Status == "locked" && u.LockedUntil != nil && u.LockedUntil.Before(time.Now()) {
		if unlocked, _ := s.store.UnlockIfExpired(ctx, u.ID); unlocked {
			u.Status = "active"
			u.LockedUntil = nil
		}
	}

	if u.Status == "locked" {
		return nil, ErrLocked
	}
	if u.Status == "disabled" {
		return nil, ErrDisabled
	}
	if u.PasswordHash == nil || *u.PasswordHash == "" {
		return nil, ErrBadCredentials
	}

	if !s.hasher.Verify(*u.PasswordHash, password) {
		if _, incErr := s.store.IncrementFailedLogin(ctx, u.ID); incErr == nil {
			_, _ = s.store.LockIfThreshold(ctx, u.ID, s.MaxFailed, s.LockMinutes)
		}
		return nil, ErrBadCredentials
	}

	if err := s.store.ResetLoginSuccess(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateInput is the admin create/update form payload.
type CreateInput struct {
	FirstName         string `json:"firstname"`
	LastName          string `json:"lastname"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	PhoneNumber       string `json:"phoneNumber"`
	RoleID            string `json:"roleId"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}

func (in *CreateInput) normalize() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.Username == "" || in.Email == "" {
		return errors.New("username and email are required")
	}
	if in.RoleID == "" {
		return errors.New("role is required")
	}
	return nil
}

// Create provisions a user with a generated initial password. The account
// must rotate it on first login.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.User, string, error) {
	if err := in.normalize(); err != nil {
		return nil, "", err
	}
	if _, err := s.roles.Get(ctx, in.RoleID); err != nil {
		return nil, "", fmt.Errorf("resolve role: %w", err)
	}
	if existing, err := s.store.GetByUsername(ctx, in.Username); err != nil {
		return nil, "", err
	} else if existing != nil {
		return nil, "", ErrDuplicate
	}
	if existing, err := s.store.GetByEmail(ctx, in.Email); err != nil {
		return nil, "", err
	} else if existing != nil {
		return nil, "", ErrDuplicate
	}

	initial := generateInitialPassword()
	hash, algo, err := s.hasher.Hash(initial)
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	u := &entity.User{
		ID:                     utilities.NewSnowflakeID(),
		FirstName:              in.FirstName,
		LastName:               in.LastName,
		Username:               in.Username,
		Email:                  in.Email,
		PhoneNumber:            strings.TrimSpace(in.PhoneNumber),
		ProfilePictureURL:      strings.TrimSpace(in.ProfilePictureURL),
		RoleID:                 in.RoleID,
		PasswordHash:           &hash,
		PasswordAlgo:           &algo,
		DefaultPasswordChanged: false,
		Status:                 "active",
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, "", err
	}
	return u, initial, nil
}

// Update edits the mutable profile/role fields of a user.
func (s *Service) Update(ctx context.Context, id string, in CreateInput) (*entity.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if in.RoleID != u.RoleID {
		if _, err := s.roles.Get(ctx, in.RoleID); err != nil {
			return nil, fmt.Errorf("resolve role: %w", err)
		}
	}
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.Username = in.Username
	u.Email = in.Email
	u.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	u.ProfilePictureURL = strings.TrimSpace(in.ProfilePictureURL)
	u.RoleID = in.RoleID
	u.UpdatedAt = time.Now().UTC()
	rows, err := s.store.Update(ctx, u)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return u, nil
}

// ProfileInput is the self-service subset of editable fields.
type ProfileInput struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// UpdateProfile edits the caller's own profile fields, leaving role and
// status untouched. The user version is not bumped: a profile edit must not
// revoke the caller's own session.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*entity.User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" {
		return nil, errors.New("username and email are required")
	}
	if username != u.Username {
		if existing, err := s.store.GetByUsername(ctx, username); err != nil {
			return nil, err
		} else if existing != nil {
			return nil, ErrDuplicate
		}
	}
	if email != u.Email {
		if existing, err := s.store.GetByEmail(ctx, email); err != nil {
			return nil, err
		} else if existing != nil {
			return nil, ErrDuplicate
		}
	}
	u.FirstName = strings.TrimSpace(in.FirstName)
	u.LastName = strings.TrimSpace(in.LastName)
	u.Username = username
	u.Email = email
	u.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	u.UpdatedAt = time.Now().UTC()
	rows, err := s.store.UpdateProfile(ctx, u)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	rows, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the admin user table rows with resolved role names.
func (s *Service) List(ctx context.Context) ([]entity.ListItem, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]entity.ListItem, 0, len(users))
	for _, u := range users {
		item := entity.ListItem{
			ID:                u.ID,
			FirstName:         u.FirstName,
			LastName:          u.LastName,
			Username:          u.Username,
			Email:             u.Email,
			RoleID:            u.RoleID,
			ProfilePictureURL: u.ProfilePictureURL,
			Status:            u.Status,
		}
		if r, err := s.roles.Get(ctx, u.RoleID); err == nil {
			item.Role = r.RoleName
		}
		items = append(items, item)
	}
	return items, nil
}

// Profile is the /users/me projection: profile fields plus the permission
// names of the user's role.
func (s *Service) Profile(ctx context.Context, id string) (*entity.Profile, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	p := &entity.Profile{
		ID:                     u.ID,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		Username:               u.Username,
		Email:                  u.Email,
		PhoneNumber:            u.PhoneNumber,
		ProfilePictureURL:      u.ProfilePictureURL,
		RoleID:                 u.RoleID,
		Permissions:            []string{},
		DefaultPasswordChanged: u.DefaultPasswordChanged,
	}
	if r, err := s.roles.Get(ctx, u.RoleID); err == nil {
		p.Role = r.RoleName
		p.Permissions = r.Permissions()
	}
	return p, nil
}

// Identity implements session.Directory.
func (s *Service) Identity(ctx context.Context, userID string) (*session.Identity, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &session.Identity{
		UserID:                 p.ID,
		Username:               p.Username,
		Role:                   p.Role,
		Permissions:            p.Permissions,
		DefaultPasswordChanged: p.DefaultPasswordChanged,
	}, nil
}

// UserVersion implements session.Directory.
func (s *Service) UserVersion(ctx context.Context, userID string) (int64, error) {
	return s.store.Version(ctx, userID)
}

// InitialSetPassword completes the forced first-login rotation. The version
// bump revokes sessions issued before the change; the handler issues a fresh
// cookie so the current browser stays logged in.
func (s *Service) InitialSetPassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNotFound
	}
	hash, algo, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, hash, algo, true)
}

// ChangePassword is the self-service flow; the current password is verified
// before the new one is stored.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNotFound
	}
	if u.PasswordHash == nil || !s.hasher.Verify(*u.PasswordHash, current) {
		return ErrBadCredentials
	}
	hash, algo, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, hash, algo, true)
}

// CreateResetToken mints a single-use reset token for the account behind the
// email. Returns ErrNotFound when no account matches so callers can decide
// whether to reveal that.
func (s *Service) CreateResetToken(ctx context.Context, email string) (*entity.ResetToken, *entity.User, error) {
	u, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, ErrNotFound
	}
	now := time.Now().UTC()
	t := &entity.ResetToken{
		Token:     utilities.NewKSUID(),
		UserID:    u.ID,
		ExpiresAt: now.Add(s.ResetTTL),
		CreatedAt: now,
	}
	if err := s.store.SaveResetToken(ctx, t); err != nil {
		return nil, nil, err
	}
	return t, u, nil
}

// VerifyResetToken classifies a token into valid/expired/used/invalid.
func (s *Service) VerifyResetToken(ctx context.Context, token string) (string, error) {
	t, err := s.store.GetResetToken(ctx, token)
	if err != nil {
		return "", err
	}
	return t.State(time.Now()), nil
}

// ResetPassword consumes a valid token and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	t, err := s.store.GetResetToken(ctx, token)
	if err != nil {
		return err
	}
	if t.State(time.Now()) != entity.TokenValid {
		return ErrTokenNotValid
	}
	hash, algo, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, t.UserID, hash, algo, true); err != nil {
		return err
	}
	return s.store.MarkResetTokenUsed(ctx, token)
}

func (s *Service) NotificationSettings(ctx context.Context, userID string) (entity.NotificationSettings, error) {
	ns, err := s.store.GetNotificationSettings(ctx, userID)
	if err != nil {
		return entity.NotificationSettings{}, err
	}
	if ns == nil {
		return entity.DefaultNotificationSettings(), nil
	}
	return *ns, nil
}

func (s *Service) SaveNotificationSettings(ctx context.Context, userID string, ns entity.NotificationSettings) error {
	switch ns.DefaultNotificationMethod {
	case "email", "slack", "teams", "none":
	default:
		return errors.New("unknown notification method")
	}
	return s.store.PutNotificationSettings(ctx, userID, ns)
}

// BulkImportResult summarizes a CSV upload.
type BulkImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// BulkImport reads a CSV of firstname,lastname,username,email,roleId rows
// and provisions each. Individual row failures do not abort the batch.
func (s *Service) BulkImport(ctx context.Context, csvData io.Reader) (*BulkImportResult, error) {
	reader := csv.NewReader(csvData)
	reader.TrimLeadingSpace = true
	result := &BulkImportResult{Errors: []string{}}
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "firstname") {
			continue // header row
		}
		if len(record) < 5 {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: expected 5 columns", line))
			continue
		}
		in := CreateInput{
			FirstName: record[0],
			LastName:  record[1],
			Username:  record[2],
			Email:     record[3],
			RoleID:    record[4],
		}
		if _, _, err := s.Create(ctx, in); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		result.Created++
	}
	return result, nil
}

// EnsureSeedAdmin creates the bootstrap admin account (and its role) when the
// users table is empty. The admin logs in with the provided password and is
// forced through the rotation interstitial like everyone else.
func (s *Service) EnsureSeedAdmin(ctx context.Context, roles *role.Service, username, email, password string) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 || password == "" {
		return false, nil
	}
	admin, err := roles.Create(ctx, &role.Role{
		RoleName:               "Admin",
		Description:            "Full access",
		CanCreateProject:       true,
		CanEditProject:         true,
		CanDeleteProject:       true,
		CanCreateBug:           true,
		CanEditBug:             true,
		CanChangeBugStatus:     true,
		CanCommentOnBugs:       true,
		CanManageAdminSettings: true,
	})
	if errors.Is(err, role.ErrNameTaken) {
		admin, err = roles.GetByName(ctx, "Admin")
	}
	if err != nil {
		return false, err
	}
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	u := &entity.User{
		ID:           utilities.NewSnowflakeID(),
		FirstName:    "System",
		LastName:     "Admin",
		Username:     username,
		Email:        strings.ToLower(email),
		RoleID:       admin.ID,
		PasswordHash: &hash,
		PasswordAlgo: &algo,
		Status:       "active",
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return false, err
	}
	return true, nil
}

func generateInitialPassword() string {
	// KSUIDs are URL-safe and long enough; take a slice so the value is
	// typeable from a provisioning email.
	return "tf-" + utilities.NewKSUID()[:12]
}
