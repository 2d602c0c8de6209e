package project

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProjectStore struct {
	projects   map[string]*Project
	members    map[string][]Member
	openIssues map[string]int
}

func newMemProjectStore() *memProjectStore {
	return &memProjectStore{
		projects:   map[string]*Project{},
		members:    map[string][]Member{},
		openIssues: map[string]int{},
	}
}

func (m *memProjectStore) List(ctx context.Context) ([]*Project, error) {
	out := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memProjectStore) GetByID(ctx context.Context, id string) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProjectStore) Create(ctx context.Context, p *Project) error {
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjectStore) Update(ctx context.Context, p *Project) (int64, error) {
	if _, ok := m.projects[p.ID]; !ok {
		return 0, nil
	}
	cp := *p
	m.projects[p.ID] = &cp
	return 1, nil
}

func (m *memProjectStore) Delete(ctx context.Context, id string) (int64, error) {
	if _, ok := m.projects[id]; !ok {
		return 0, nil
	}
	delete(m.projects, id)
	delete(m.members, id)
	return 1, nil
}

func (m *memProjectStore) Members(ctx context.Context, projectID string) ([]Member, error) {
	return m.members[projectID], nil
}

func (m *memProjectStore) AddMember(ctx context.Context, projectID string, mem Member) error {
	m.members[projectID] = append(m.members[projectID], mem)
	return nil
}

func (m *memProjectStore) RemoveMember(ctx context.Context, projectID, userID string) (int64, error) {
	cur := m.members[projectID]
	for i, mem := range cur {
		if mem.UserID == userID {
			m.members[projectID] = append(cur[:i], cur[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memProjectStore) HasMember(ctx context.Context, projectID, userID string) (bool, error) {
	for _, mem := range m.members[projectID] {
		if mem.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memProjectStore) CountOpenIssues(ctx context.Context, projectID string) (int, error) {
	return m.openIssues[projectID], nil
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(newMemProjectStore())

	_, err := svc.Create(context.Background(), &Project{Name: "   "})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestCreatePersistsSeedMembers(t *testing.T) {
	store := newMemProjectStore()
	svc := NewService(store)

	created, err := svc.Create(context.Background(), &Project{
		Name: "Apollo",
		Members: []Member{
			{UserID: "u1", UserName: "Ada", Role: "Developer"},
			{UserID: "u2", UserName: "Grace", Role: "Tester"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 2)
	assert.Equal(t, "u1", got.Members[0].UserID)
	assert.False(t, got.Members[0].JoinedAt.IsZero())
}

func TestGetReturnsEmptyMemberSlice(t *testing.T) {
	store := newMemProjectStore()
	svc := NewService(store)

	created, err := svc.Create(context.Background(), &Project{Name: "Solo"})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Members)
	assert.Empty(t, got.Members)
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	store := newMemProjectStore()
	svc := NewService(store)

	created, err := svc.Create(context.Background(), &Project{Name: "Apollo"})
	require.NoError(t, err)
	origCreated := created.CreatedAt

	time.Sleep(time.Millisecond)
	updated, err := svc.Update(context.Background(), created.ID, &Project{Name: "Apollo v2"})
	require.NoError(t, err)
	assert.Equal(t, origCreated, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(origCreated) || updated.UpdatedAt.Equal(origCreated))
	assert.Equal(t, "Apollo v2", updated.Name)
}

func TestUpdateUnknownProject(t *testing.T) {
	svc := NewService(newMemProjectStore())

	_, err := svc.Update(context.Background(), "missing", &Project{Name: "Apollo"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRefusedWhileIssuesOpen(t *testing.T) {
	store := newMemProjectStore()
	svc := NewService(store)

	created, err := svc.Create(context.Background(), &Project{Name: "Apollo"})
	require.NoError(t, err)
	store.openIssues[created.ID] = 3

	err = svc.Delete(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrHasOpenIssues)

	store.openIssues[created.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), created.ID))

	_, err = svc.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddMemberRejectsDuplicates(t *testing.T) {
	store := newMemProjectStore()
	svc := NewService(store)

	created, err := svc.Create(context.Background(), &Project{Name: "Apollo"})
	require.NoError(t, err)

	m := Member{UserID: "u1", UserName: "Ada", Role: "Developer"}
	require.NoError(t, svc.AddMember(context.Background(), created.ID, m))
	assert.ErrorIs(t, svc.AddMember(context.Background(), created.ID, m), ErrMemberExists)
}

func TestAddMemberUnknownProject(t *testing.T) {
	svc := NewService(newMemProjectStore())

	err := svc.AddMember(context.Background(), "missing", Member{UserID: "u1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveMember(t *testing.T) {
	store := newMemProjectStore()
	svc := NewService(store)

	created, err := svc.Create(context.Background(), &Project{Name: "Apollo"})
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(context.Background(), created.ID, Member{UserID: "u1"}))

	require.NoError(t, svc.RemoveMember(context.Background(), created.ID, "u1"))
	assert.ErrorIs(t, svc.RemoveMember(context.Background(), created.ID, "u1"), ErrMemberNotFound)
}
