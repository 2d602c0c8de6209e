package role

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/trustflow/service-core/pkg/utilities"
)

var (
	ErrNotFound      = errors.New("role not found")
	ErrNoPermissions = errors.New("role must grant at least one permission")
	ErrInUse         = errors.New("role is assigned to users")
	ErrNameTaken     = errors.New("role name already exists")
)

// Store captures persistence operations the service needs.
type Store interface {
	List(ctx context.Context) ([]*Role, error)
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, r *Role) error
	Update(ctx context.Context, r *Role) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	CountUsers(ctx context.Context, roleID string) (int, error)
}

// Service owns role lifecycle rules.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context) ([]*Role, error) {
	return s.store.List(ctx)
}

// GetByName returns the role with the given name, or ErrNotFound.
func (s *Service) GetByName(ctx context.Context, name string) (*Role, error) {
	r, err := s.store.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Role, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *Service) Create(ctx context.Context, in *Role) (*Role, error) {
	in.RoleName = strings.TrimSpace(in.RoleName)
	if in.RoleName == "" {
		return nil, errors.New("role name is required")
	}
	if !in.GrantsAny() {
		return nil, ErrNoPermissions
	}
	existing, err := s.store.GetByName(ctx, in.RoleName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrNameTaken
	}
	now := time.Now().UTC()
	in.ID = utilities.NewSnowflakeID()
	in.CreatedAt = now
	in.UpdatedAt = now
	if err := s.store.Create(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *Service) Update(ctx context.Context, id string, in *Role) (*Role, error) {
	in.RoleName = strings.TrimSpace(in.RoleName)
	if in.RoleName == "" {
		return nil, errors.New("role name is required")
	}
	if !in.GrantsAny() {
		return nil, ErrNoPermissions
	}
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	in.ID = id
	in.CreatedAt = existing.CreatedAt
	in.UpdatedAt = time.Now().UTC()
	rows, err := s.store.Update(ctx, in)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}
	return in, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.CountUsers(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrInUse
	}
	rows, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
