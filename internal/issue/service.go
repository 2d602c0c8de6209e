package issue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/trustflow/service-core/pkg/utilities"
)

var (
	ErrNotFound      = errors.New("issue not found")
	ErrTitleRequired = errors.New("issue title is required")
	ErrNoProject     = errors.New("issue must belong to a project")
)

// Store captures issue persistence.
type Store interface {
	List(ctx context.Context) ([]*Issue, error)
	ListByAssignee(ctx context.Context, userID string) ([]*Issue, error)
	GetByID(ctx context.Context, id string) (*Issue, error)
	Create(ctx context.Context, i *Issue) error
	Update(ctx context.Context, i *Issue) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	FilterOptions(ctx context.Context) (*FilterOptions, error)
}

// Service owns issue lifecycle rules.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// List applies the console's filter semantics server-side: substring match on
// title and human key, equality on the enumerated dimensions, and "all" (or
// empty) meaning no filter.
func (s *Service) List(ctx context.Context, f Filters) ([]*Issue, error) {
	issues, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return ApplyFilters(issues, f), nil
}

// ListByAssignee returns issues assigned to the user, filtered the same way.
func (s *Service) ListByAssignee(ctx context.Context, userID string, f Filters) ([]*Issue, error) {
	issues, err := s.store.ListByAssignee(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ApplyFilters(issues, f), nil
}

// ApplyFilters is a pure function so the filter semantics are testable
// without a store.
func ApplyFilters(issues []*Issue, f Filters) []*Issue {
	out := make([]*Issue, 0, len(issues))
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for _, i := range issues {
		if search != "" &&
			!strings.Contains(strings.ToLower(i.Title), search) &&
			!strings.Contains(strings.ToLower(i.IssueID), search) {
			continue
		}
		if !matches(f.Status, i.Status) {
			continue
		}
		if !matches(f.Priority, i.Priority) {
			continue
		}
		if !matches(f.Project, i.ProjectID) {
			continue
		}
		if f.Assignee != "" && f.Assignee != "all" && !contains(i.AssigneeUserIDs, f.Assignee) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func matches(filter, value string) bool {
	return filter == "" || filter == "all" || filter == value
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *Service) Get(ctx context.Context, id string) (*Issue, error) {
	i, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, ErrNotFound
	}
	return i, nil
}

func (s *Service) Create(ctx context.Context, in *Issue) (*Issue, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, ErrTitleRequired
	}
	if in.ProjectID == "" {
		return nil, ErrNoProject
	}
	if in.Status == "" {
		in.Status = Statuses[0]
	}
	if in.Priority == "" {
		in.Priority = Priorities[1] // Medium
	}
	if in.Type == "" {
		in.Type = Types[0]
	}
	now := time.Now().UTC()
	in.ID = utilities.NewSnowflakeID()
	in.CreatedAt = now
	in.UpdatedAt = now
	if in.AssigneeUserIDs == nil {
		in.AssigneeUserIDs = []string{}
	}
	if in.AssigneeUserNames == nil {
		in.AssigneeUserNames = []string{}
	}
	if err := s.store.Create(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *Service) Update(ctx context.Context, id string, in *Issue) (*Issue, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, ErrTitleRequired
	}
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	in.ID = id
	in.IssueID = existing.IssueID
	in.CreatedAt = existing.CreatedAt
	in.UpdatedAt = time.Now().UTC()
	if in.AssigneeUserIDs == nil {
		in.AssigneeUserIDs = []string{}
	}
	if in.AssigneeUserNames == nil {
		in.AssigneeUserNames = []string{}
	}
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
	rows, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	return s.store.FilterOptions(ctx)
}
