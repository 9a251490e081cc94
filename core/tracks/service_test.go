package tracks

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"Soundcheck/core/access"
	"Soundcheck/core/realtime"
	"Soundcheck/db/dbtest"
	"Soundcheck/model"
	"Soundcheck/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if m.failPut {
		return "", errors.New("storage offline")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "http://files/" + key, nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type recorder struct {
	mu     sync.Mutex
	events []string
	chans  []string
}

func (r *recorder) Broadcast(channel, name string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
	r.chans = append(r.chans, channel)
}

type env struct {
	svc      *Service
	files    *memStore
	events   *recorder
	project  *model.Project
	owner    string
	collab   string
	viewer   string
	stranger string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	gdb := dbtest.Open(t)
	users := repository.NewGormUserRepository(gdb)
	projects := repository.NewGormProjectRepository(gdb)
	trackRepo := repository.NewGormTrackRepository(gdb)

	mkUser := func(name string) string {
		u := &model.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com", PasswordHash: "x"}
		require.NoError(t, users.Create(ctx, u))
		return u.ID
	}
	e := &env{files: &memStore{objects: map[string][]byte{}}, events: &recorder{}}
	e.owner = mkUser("alice")
	e.collab = mkUser("bob")
	e.viewer = mkUser("carol")
	e.stranger = mkUser("mallory")

	e.project = &model.Project{ID: uuid.NewString(), OwnerID: e.owner, Name: "EP", Status: model.ProjectStatusActive}
	require.NoError(t, projects.CreateWithOwner(ctx, e.project))
	for id, role := range map[string]model.Role{e.collab: model.RoleCollaborator, e.viewer: model.RoleViewer} {
		require.NoError(t, projects.AddMember(ctx, &model.ProjectMember{
			ProjectID: e.project.ID, UserID: id, Role: role, JoinedAt: time.Now(),
		}))
	}

	e.svc = NewService(trackRepo, repository.NewGormFeedbackRepository(gdb), projects, users,
		access.NewGuard(projects, trackRepo), e.files, e.events,
		Limits{MaxBytes: 1 << 20, AllowedFormats: []string{"mp3", "wav", "flac"}})
	return e
}

func (e *env) upload(t *testing.T, user, title string, version int) (*model.Track, error) {
	t.Helper()
	body := "ID3 fake audio"
	return e.svc.Upload(context.Background(), Upload{
		ProjectID:     e.project.ID,
		UploaderID:    user,
		Title:         title,
		VersionNumber: version,
		Filename:      "mix.mp3",
		Size:          int64(len(body)),
		Body:          strings.NewReader(body),
	})
}

func TestUploadBroadcastsToProjectChannel(t *testing.T) {
	e := newEnv(t)

	v1, err := e.upload(t, e.collab, "Summer Vibes", 1)
	require.NoError(t, err)
	assert.True(t, v1.IsLatest)
	assert.Equal(t, "mp3", v1.FileFormat)
	assert.Equal(t, "http://files/"+v1.ObjectKey, v1.FileURL)

	v2, err := e.upload(t, e.owner, "Summer Vibes", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	assert.Equal(t, []string{realtime.EventTrackUploaded, realtime.EventTrackUploaded}, e.events.events)
	assert.Equal(t, realtime.ProjectChannel(e.project.ID), e.events.chans[0])
	assert.Equal(t, 2, e.files.count())
}

func TestUploadPermissions(t *testing.T) {
	e := newEnv(t)

	_, err := e.upload(t, e.viewer, "Summer Vibes", 1)
	assert.ErrorIs(t, err, model.ErrDenied)
	_, err = e.upload(t, e.stranger, "Summer Vibes", 1)
	assert.ErrorIs(t, err, model.ErrDenied)
	assert.Zero(t, e.files.count())
}

func TestUploadValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bad := []Upload{
		{Title: " ", Filename: "a.mp3", Size: 1, Body: strings.NewReader("x")},
		{Title: "A", Filename: "a.exe", Size: 1, Body: strings.NewReader("x")},
		{Title: "A", Filename: "a.mp3", Size: 2 << 20, Body: strings.NewReader("x")},
		{Title: "A", Filename: "a.mp3"},
		{Title: "A", Filename: "a.mp3", Size: 1, Body: strings.NewReader("x"), DurationSeconds: -1},
	}
	for _, in := range bad {
		in.ProjectID = e.project.ID
		in.UploaderID = e.owner
		_, err := e.svc.Upload(ctx, in)
		assert.ErrorIs(t, err, model.ErrValidation, "%+v", in)
	}
}

func TestUploadConflictRemovesObject(t *testing.T) {
	e := newEnv(t)

	_, err := e.upload(t, e.owner, "Summer Vibes", 2)
	require.NoError(t, err)
	_, err = e.upload(t, e.owner, "Summer Vibes", 2)
	assert.ErrorIs(t, err, model.ErrVersionConflict)

	assert.Equal(t, 1, e.files.count())
	assert.Len(t, e.events.events, 1)
}

func TestUploadStorageFailure(t *testing.T) {
	e := newEnv(t)
	e.files.failPut = true

	_, err := e.upload(t, e.owner, "Summer Vibes", 1)
	assert.Error(t, err)
	assert.Empty(t, e.events.events)
}

func TestDeletePromotesAndBroadcasts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v1, err := e.upload(t, e.collab, "Summer Vibes", 1)
	require.NoError(t, err)
	v2, err := e.upload(t, e.collab, "Summer Vibes", 2)
	require.NoError(t, err)

	_, err = e.svc.Delete(ctx, v2.ID, e.viewer)
	assert.ErrorIs(t, err, model.ErrDenied)

	res, err := e.svc.Delete(ctx, v2.ID, e.owner)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, v1.ID, res.Promoted.ID)
	assert.Equal(t, 1, e.files.count())
	assert.Equal(t, []string{
		realtime.EventTrackUploaded, realtime.EventTrackUploaded,
		realtime.EventTrackDeleted, realtime.EventTrackPromoted,
	}, e.events.events)
}

func TestUpdatePermissionsAndRename(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v1, err := e.upload(t, e.collab, "Summer Vibes", 1)
	require.NoError(t, err)

	title := "Summer Nights"
	_, err = e.svc.Update(ctx, v1.ID, e.viewer, repository.TrackUpdate{Title: &title})
	assert.ErrorIs(t, err, model.ErrDenied)

	updated, err := e.svc.Update(ctx, v1.ID, e.collab, repository.TrackUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Summer Nights", updated.Title)

	bpm := 0
	_, err = e.svc.Update(ctx, v1.ID, e.owner, repository.TrackUpdate{BPM: &bpm})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListAndDetail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v1, err := e.upload(t, e.collab, "Summer Vibes", 1)
	require.NoError(t, err)
	v2, err := e.upload(t, e.collab, "Summer Vibes", 2)
	require.NoError(t, err)

	list, err := e.svc.ListByProject(ctx, e.project.ID, e.viewer)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Zero(t, list[0].FeedbackCount)

	detail, err := e.svc.Detail(ctx, v2.ID, e.viewer)
	require.NoError(t, err)
	assert.Equal(t, "bob", detail.Uploader.DisplayName)
	assert.Equal(t, "EP", detail.Project.Name)
	require.Len(t, detail.Versions, 1)
	assert.Equal(t, v1.ID, detail.Versions[0].ID)
	assert.False(t, detail.Versions[0].IsLatest)

	_, err = e.svc.ListByProject(ctx, e.project.ID, e.stranger)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = e.svc.Detail(ctx, v2.ID, e.stranger)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
