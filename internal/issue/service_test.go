package issue

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIssues() []*Issue {
	return []*Issue{
		{ID: "1", IssueID: "TF-1", ProjectID: "p1", Title: "Login page crashes on submit", Status: "To Do", Priority: "High", AssigneeUserIDs: []string{"u1"}},
		{ID: "2", IssueID: "TF-2", ProjectID: "p1", Title: "Sidebar misaligned", Status: "In Progress", Priority: "Low", AssigneeUserIDs: []string{"u2"}},
		{ID: "3", IssueID: "TF-3", ProjectID: "p2", Title: "Crash report exporter times out", Status: "Done", Priority: "High", AssigneeUserIDs: []string{"u1", "u2"}},
	}
}

func ids(issues []*Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.ID)
	}
	return out
}

func TestApplyFiltersAllSentinelMeansNoFilter(t *testing.T) {
	issues := sampleIssues()
	assert.Len(t, ApplyFilters(issues, Filters{}), 3)
	assert.Len(t, ApplyFilters(issues, Filters{Status: "all", Priority: "all", Project: "all", Assignee: "all"}), 3)
}

func TestApplyFiltersSearchMatchesTitleAndKey(t *testing.T) {
	issues := sampleIssues()

	// substring, case-insensitive, on title
	assert.Equal(t, []string{"1", "3"}, ids(ApplyFilters(issues, Filters{Search: "crash"})))
	// substring on the human key
	assert.Equal(t, []string{"2"}, ids(ApplyFilters(issues, Filters{Search: "tf-2"})))
	// no match
	assert.Empty(t, ApplyFilters(issues, Filters{Search: "nonexistent"}))
}

func TestApplyFiltersEqualityDimensions(t *testing.T) {
	issues := sampleIssues()

	assert.Equal(t, []string{"2"}, ids(ApplyFilters(issues, Filters{Status: "In Progress"})))
	assert.Equal(t, []string{"1", "3"}, ids(ApplyFilters(issues, Filters{Priority: "High"})))
	assert.Equal(t, []string{"1", "2"}, ids(ApplyFilters(issues, Filters{Project: "p1"})))
	assert.Equal(t, []string{"1", "3"}, ids(ApplyFilters(issues, Filters{Assignee: "u1"})))
}

func TestApplyFiltersCombines(t *testing.T) {
	issues := sampleIssues()
	got := ApplyFilters(issues, Filters{Search: "crash", Priority: "High", Project: "p2"})
	assert.Equal(t, []string{"3"}, ids(got))
}

type memIssueStore struct {
	issues  map[string]*Issue
	nextSeq int
}

func newMemIssueStore() *memIssueStore {
	return &memIssueStore{issues: map[string]*Issue{}, nextSeq: 1}
}

func (m *memIssueStore) List(context.Context) ([]*Issue, error) {
	out := make([]*Issue, 0, len(m.issues))
	for _, i := range m.issues {
		out = append(out, i)
	}
	return out, nil
}

func (m *memIssueStore) ListByAssignee(_ context.Context, userID string) ([]*Issue, error) {
	var out []*Issue
	for _, i := range m.issues {
		for _, id := range i.AssigneeUserIDs {
			if id == userID {
				out = append(out, i)
				break
			}
		}
	}
	return out, nil
}

func (m *memIssueStore) GetByID(_ context.Context, id string) (*Issue, error) {
	return m.issues[id], nil
}

func (m *memIssueStore) Create(_ context.Context, i *Issue) error {
	cp := *i
	cp.IssueID = fmt.Sprintf("TF-%d", m.nextSeq)
	m.nextSeq++
	m.issues[i.ID] = &cp
	i.IssueID = cp.IssueID
	return nil
}

func (m *memIssueStore) Update(_ context.Context, i *Issue) (int64, error) {
	if _, ok := m.issues[i.ID]; !ok {
		return 0, nil
	}
	cp := *i
	m.issues[i.ID] = &cp
	return 1, nil
}

func (m *memIssueStore) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := m.issues[id]; !ok {
		return 0, nil
	}
	delete(m.issues, id)
	return 1, nil
}

func (m *memIssueStore) FilterOptions(context.Context) (*FilterOptions, error) {
	return &FilterOptions{Statuses: Statuses, Priorities: Priorities}, nil
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc := NewService(newMemIssueStore())

	created, err := svc.Create(context.Background(), &Issue{Title: "  Broken link  ", ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Broken link", created.Title)
	assert.Equal(t, "To Do", created.Status)
	assert.Equal(t, "Medium", created.Priority)
	assert.Equal(t, "Bug", created.Type)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.IssueID)
	assert.NotNil(t, created.AssigneeUserIDs)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemIssueStore())

	_, err := svc.Create(context.Background(), &Issue{ProjectID: "p1"})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = svc.Create(context.Background(), &Issue{Title: "No home"})
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestUpdatePreservesKeyAndCreatedAt(t *testing.T) {
	svc := NewService(newMemIssueStore())

	created, err := svc.Create(context.Background(), &Issue{Title: "Flaky test", ProjectID: "p1"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, &Issue{
		Title: "Flaky test", ProjectID: "p1", Status: "Done", IssueID: "TF-9999",
	})
	require.NoError(t, err)
	assert.Equal(t, created.IssueID, updated.IssueID, "human key is immutable")
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Done", updated.Status)
}

func TestUpdateAndDeleteUnknownIssue(t *testing.T) {
	svc := NewService(newMemIssueStore())

	_, err := svc.Update(context.Background(), "missing", &Issue{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "missing"), ErrNotFound)
}
