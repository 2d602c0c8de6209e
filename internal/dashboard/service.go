package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trustflow/service-core/pkg/utilities"
)

const recentLimit = 10

// Store captures the aggregate queries and the activity trail.
type Store interface {
	InsertActivity(ctx context.Context, e *ActivityEntry) error
	RecentActivity(ctx context.Context, limit int) ([]*ActivityEntry, error)
	RecentActivityForUser(ctx context.Context, userID string, limit int) ([]*ActivityEntry, error)
	CountActivitySince(ctx context.Context, userID string, since time.Time) (int, error)

	CountUsers(ctx context.Context) (int, error)
	CountProjects(ctx context.Context) (int, error)
	CountIssues(ctx context.Context) (int, error)
	CountIssuesCreatedSince(ctx context.Context, since time.Time) (int, error)
	RoleOverview(ctx context.Context) ([]*RoleCount, error)

	CountOpenIssuesForUser(ctx context.Context, userID string) (int, error)
	CountProjectsForUser(ctx context.Context, userID string) (int, error)
	CountResolvedByUser(ctx context.Context, userID string) (int, error)
	OpenIssuesForUser(ctx context.Context, userID string) ([]*OpenIssue, error)
}

type Service struct {
	store  Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store Store, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Record appends an audit entry. Failures are logged, never surfaced; the
// triggering operation must not fail because the trail is unavailable.
func (s *Service) Record(ctx context.Context, userID, userName, action, issueKey string) {
	entry := &ActivityEntry{
		ID:        utilities.NewSnowflakeID(),
		UserID:    userID,
		UserName:  userName,
		Action:    action,
		IssueKey:  issueKey,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertActivity(ctx, entry); err != nil {
		s.logger.Warnw("record activity failed", "action", action, "err", err)
	}
}

func (s *Service) AdminStats(ctx context.Context) (*AdminStats, error) {
	var stats AdminStats
	var err error
	if stats.TotalUsers, err = s.store.CountUsers(ctx); err != nil {
		return nil, err
	}
	if stats.TotalProjects, err = s.store.CountProjects(ctx); err != nil {
		return nil, err
	}
	if stats.TotalIssues, err = s.store.CountIssues(ctx); err != nil {
		return nil, err
	}
	midnight := s.now().UTC().Truncate(24 * time.Hour)
	if stats.IssuesCreatedToday, err = s.store.CountIssuesCreatedSince(ctx, midnight); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Service) RecentActivity(ctx context.Context) ([]*ActivityEntry, error) {
	entries, err := s.store.RecentActivity(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	return s.stamp(entries), nil
}

func (s *Service) RoleOverview(ctx context.Context) ([]*RoleCount, error) {
	rows, err := s.store.RoleOverview(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*RoleCount{}
	}
	return rows, nil
}

func (s *Service) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	var stats UserStats
	var err error
	if stats.MyOpenIssues, err = s.store.CountOpenIssuesForUser(ctx, userID); err != nil {
		return nil, err
	}
	if stats.MyProjects, err = s.store.CountProjectsForUser(ctx, userID); err != nil {
		return nil, err
	}
	if stats.ResolvedByMe, err = s.store.CountResolvedByUser(ctx, userID); err != nil {
		return nil, err
	}
	weekAgo := s.now().UTC().Add(-7 * 24 * time.Hour)
	if stats.RecentActivity, err = s.store.CountActivitySince(ctx, userID, weekAgo); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Service) OpenIssues(ctx context.Context, userID string) ([]*OpenIssue, error) {
	issues, err := s.store.OpenIssuesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []*OpenIssue{}
	}
	return issues, nil
}

func (s *Service) UserActivity(ctx context.Context, userID string) ([]*ActivityEntry, error) {
	entries, err := s.store.RecentActivityForUser(ctx, userID, recentLimit)
	if err != nil {
		return nil, err
	}
	return s.stamp(entries), nil
}

func (s *Service) stamp(entries []*ActivityEntry) []*ActivityEntry {
	if entries == nil {
		return []*ActivityEntry{}
	}
	now := s.now().UTC()
	for _, e := range entries {
		e.Date = relTime(now, e.CreatedAt)
	}
	return entries
}

// relTime renders the compact relative timestamps the console shows next to
// activity rows.
func relTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
