package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/trustflow/service-core/pkg/utilities"
)

var (
	ErrNotFound       = errors.New("project not found")
	ErrMemberExists   = errors.New("user is already a member")
	ErrMemberNotFound = errors.New("member not found")
	ErrNameRequired   = errors.New("project name is required")
	ErrHasOpenIssues  = errors.New("project has open issues")
)

// Store captures project persistence.
type Store interface {
	List(ctx context.Context) ([]*Project, error)
	GetByID(ctx context.Context, id string) (*Project, error)
	Create(ctx context.Context, p *Project) error
	Update(ctx context.Context, p *Project) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)

	Members(ctx context.Context, projectID string) ([]Member, error)
	AddMember(ctx context.Context, projectID string, m Member) error
	RemoveMember(ctx context.Context, projectID, userID string) (int64, error)
	HasMember(ctx context.Context, projectID, userID string) (bool, error)

	CountOpenIssues(ctx context.Context, projectID string) (int, error)
}

// Service owns project lifecycle and membership rules.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context) ([]*Project, error) {
	return s.store.List(ctx)
}

// Get returns the project with its member list.
func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	members, err := s.store.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []Member{}
	}
	p.Members = members
	return p, nil
}

func (s *Service) Create(ctx context.Context, in *Project) (*Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	now := time.Now().UTC()
	in.ID = utilities.NewSnowflakeID()
	in.CreatedAt = now
	in.UpdatedAt = now
	if err := s.store.Create(ctx, in); err != nil {
		return nil, err
	}
	// The create form seeds the member list; persist it.
	for _, m := range in.Members {
		m.JoinedAt = now
		if err := s.store.AddMember(ctx, in.ID, m); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (s *Service) Update(ctx context.Context, id string, in *Project) (*Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, ErrNameRequired
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

// Delete refuses to drop a project that still has open issues.
func (s *Service) Delete(ctx context.Context, id string) error {
	open, err := s.store.CountOpenIssues(ctx, id)
	if err != nil {
		return err
	}
	if open > 0 {
		return ErrHasOpenIssues
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

func (s *Service) AddMember(ctx context.Context, projectID string, m Member) error {
	p, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNotFound
	}
	exists, err := s.store.HasMember(ctx, projectID, m.UserID)
	if err != nil {
		return err
	}
	if exists {
		return ErrMemberExists
	}
	m.JoinedAt = time.Now().UTC()
	return s.store.AddMember(ctx, projectID, m)
}

func (s *Service) RemoveMember(ctx context.Context, projectID, userID string) error {
	rows, err := s.store.RemoveMember(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMemberNotFound
	}
	return nil
}
