package access

import (
	"context"
	"fmt"
	"testing"

	"Soundcheck/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMembers map[string]model.Role

func (f fakeMembers) GetMember(_ context.Context, projectID, userID string) (*model.ProjectMember, error) {
	role, ok := f[projectID+"/"+userID]
	if !ok {
		return nil, fmt.Errorf("get membership: %w", model.ErrNotFound)
	}
	return &model.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}, nil
}

type fakeTracks map[string]*model.Track

func (f fakeTracks) GetByID(_ context.Context, id string) (*model.Track, error) {
	if tr, ok := f[id]; ok {
		return tr, nil
	}
	return nil, model.ErrNotFound
}

func TestCan(t *testing.T) {
	tests := []struct {
		role    model.Role
		action  Action
		allowed bool
	}{
		{model.RoleOwner, ActionManage, true},
		{model.RoleOwner, ActionUpload, true},
		{model.RoleCollaborator, ActionUpload, true},
		{model.RoleCollaborator, ActionManage, false},
		{model.RoleViewer, ActionRead, true},
		{model.RoleViewer, ActionComment, true},
		{model.RoleViewer, ActionUpload, false},
		{model.Role("stranger"), ActionRead, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.role)+"/"+string(tc.action), func(t *testing.T) {
			assert.Equal(t, tc.allowed, Can(tc.role, tc.action))
		})
	}
}

func TestCheckAccess(t *testing.T) {
	g := NewGuard(fakeMembers{"p1/alice": model.RoleOwner}, fakeTracks{})

	role, err := g.CheckAccess(context.Background(), "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, role)

	_, err = g.CheckAccess(context.Background(), "mallory", "p1")
	assert.ErrorIs(t, err, model.ErrDenied)
	assert.ErrorIs(t, HideDenied(err), model.ErrNotFound)
}

func TestCheckTrackAccess(t *testing.T) {
	tracks := fakeTracks{"t1": {ID: "t1", ProjectID: "p1", UploaderID: "bob"}}
	g := NewGuard(fakeMembers{"p1/bob": model.RoleCollaborator}, tracks)

	tr, role, err := g.CheckTrackAccess(context.Background(), "bob", "t1")
	require.NoError(t, err)
	assert.Equal(t, "p1", tr.ProjectID)
	assert.Equal(t, model.RoleCollaborator, role)

	_, _, err = g.CheckTrackAccess(context.Background(), "mallory", "t1")
	assert.ErrorIs(t, err, model.ErrDenied)

	_, _, err = g.CheckTrackAccess(context.Background(), "bob", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestObjectRules(t *testing.T) {
	track := &model.Track{UploaderID: "bob"}
	entry := &model.FeedbackEntry{AuthorID: "carol"}

	assert.True(t, CanEditTrack(model.RoleCollaborator, "bob", track))
	assert.True(t, CanEditTrack(model.RoleOwner, "alice", track))
	assert.False(t, CanEditTrack(model.RoleCollaborator, "carol", track))

	assert.True(t, CanResolve("carol", entry, track))
	assert.True(t, CanResolve("bob", entry, track))
	assert.False(t, CanResolve("alice", entry, track))

	assert.True(t, CanRemoveMember(model.RoleOwner, "alice", "bob"))
	assert.True(t, CanRemoveMember(model.RoleViewer, "bob", "bob"))
	assert.False(t, CanRemoveMember(model.RoleCollaborator, "bob", "carol"))

	assert.ErrorIs(t, Require(model.RoleViewer, ActionUpload), model.ErrDenied)
	assert.NoError(t, Require(model.RoleViewer, ActionComment))
}

func TestCanJoin(t *testing.T) {
	tracks := fakeTracks{"t1": {ID: "t1", ProjectID: "p1"}}
	g := NewGuard(fakeMembers{"p1/bob": model.RoleViewer}, tracks)
	ctx := context.Background()

	assert.NoError(t, g.CanJoin(ctx, "bob", "track", "t1"))
	assert.NoError(t, g.CanJoin(ctx, "bob", "project", "p1"))
	assert.ErrorIs(t, g.CanJoin(ctx, "bob", "project", "p2"), model.ErrDenied)
	assert.ErrorIs(t, g.CanJoin(ctx, "bob", "track", "t9"), model.ErrNotFound)
	assert.ErrorIs(t, g.CanJoin(ctx, "bob", "room", "r1"), model.ErrValidation)
}
