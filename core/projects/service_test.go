package projects

import (
	"context"
	"testing"

	"Soundcheck/core/access"
	"Soundcheck/db/dbtest"
	"Soundcheck/model"
	"Soundcheck/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, func(name string) string) {
	t.Helper()
	gdb := dbtest.Open(t)
	users := repository.NewGormUserRepository(gdb)
	projects := repository.NewGormProjectRepository(gdb)
	svc := NewService(projects, users, access.NewGuard(projects, repository.NewGormTrackRepository(gdb)))

	mkUser := func(name string) string {
		u := &model.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com", PasswordHash: "x"}
		require.NoError(t, users.Create(context.Background(), u))
		return u.ID
	}
	return svc, mkUser
}

func TestCreateAndGet(t *testing.T) {
	svc, mkUser := newService(t)
	ctx := context.Background()
	alice := mkUser("alice")
	mallory := mkUser("mallory")

	_, err := svc.Create(ctx, alice, NewProject{Name: "   "})
	assert.ErrorIs(t, err, model.ErrValidation)

	p, err := svc.Create(ctx, alice, NewProject{Name: " Debut EP "})
	require.NoError(t, err)
	assert.Equal(t, "Debut EP", p.Name)
	assert.Equal(t, model.ProjectStatusActive, p.Status)

	detail, err := svc.Get(ctx, p.ID, alice)
	require.NoError(t, err)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, model.RoleOwner, detail.Members[0].Role)
	assert.Zero(t, detail.TracksCount)

	_, err = svc.Get(ctx, p.ID, mallory)
	assert.ErrorIs(t, err, model.ErrNotFound)

	list, err := svc.List(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMembersAndOwnerOnlyActions(t *testing.T) {
	svc, mkUser := newService(t)
	ctx := context.Background()
	alice := mkUser("alice")
	bob := mkUser("bob")
	carol := mkUser("carol")

	p, err := svc.Create(ctx, alice, NewProject{Name: "EP"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, p.ID, alice, bob, model.RoleOwner)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.AddMember(ctx, p.ID, alice, "ghost", model.RoleViewer)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.AddMember(ctx, p.ID, alice, bob, model.RoleCollaborator)
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, p.ID, alice, bob, model.RoleViewer)
	assert.ErrorIs(t, err, model.ErrAlreadyMember)

	_, err = svc.AddMember(ctx, p.ID, bob, carol, model.RoleViewer)
	assert.ErrorIs(t, err, model.ErrDenied)

	name := "Renamed"
	_, err = svc.Update(ctx, p.ID, bob, Changes{Name: &name})
	assert.ErrorIs(t, err, model.ErrDenied)

	status := "paused"
	_, err = svc.Update(ctx, p.ID, alice, Changes{Status: &status})
	assert.ErrorIs(t, err, model.ErrValidation)

	updated, err := svc.Update(ctx, p.ID, alice, Changes{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	_, err = svc.AddMember(ctx, p.ID, alice, carol, model.RoleViewer)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RemoveMember(ctx, p.ID, bob, carol), model.ErrDenied)
	assert.ErrorIs(t, svc.RemoveMember(ctx, p.ID, alice, alice), model.ErrValidation)
	require.NoError(t, svc.RemoveMember(ctx, p.ID, carol, carol))
	require.NoError(t, svc.RemoveMember(ctx, p.ID, alice, bob))

	detail, err := svc.Get(ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Len(t, detail.Members, 1)
}
