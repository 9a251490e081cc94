package feedback

import (
	"context"
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

type event struct {
	channel string
	name    string
	payload interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Broadcast(channel, name string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{channel, name, payload})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.name)
	}
	return out
}

type env struct {
	svc      *Service
	events   *recorder
	users    repository.UserRepository
	projects repository.ProjectRepository
	track    *model.Track
	owner    string // uploader and project owner
	viewer   string
	stranger string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	gdb := dbtest.Open(t)
	users := repository.NewGormUserRepository(gdb)
	projects := repository.NewGormProjectRepository(gdb)
	tracks := repository.NewGormTrackRepository(gdb)

	mkUser := func(name string) string {
		u := &model.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com", PasswordHash: "x"}
		require.NoError(t, users.Create(ctx, u))
		return u.ID
	}
	e := &env{events: &recorder{}, users: users, projects: projects}
	e.owner = mkUser("alice")
	e.viewer = mkUser("bob")
	e.stranger = mkUser("mallory")

	p := &model.Project{ID: uuid.NewString(), OwnerID: e.owner, Name: "EP", Status: model.ProjectStatusActive}
	require.NoError(t, projects.CreateWithOwner(ctx, p))
	require.NoError(t, projects.AddMember(ctx, &model.ProjectMember{
		ProjectID: p.ID, UserID: e.viewer, Role: model.RoleViewer, JoinedAt: time.Now(),
	}))

	res, err := tracks.CreateVersion(ctx, &model.Track{
		ID: uuid.NewString(), ProjectID: p.ID, UploaderID: e.owner, Title: "Summer Vibes",
		FileURL: "http://files/a.mp3", FileFormat: "mp3", DurationSeconds: 180,
	}, 1)
	require.NoError(t, err)
	e.track = res.Track

	e.svc = NewService(repository.NewGormFeedbackRepository(gdb), users, access.NewGuard(projects, tracks), e.events)
	return e
}

func ts(v float64) *float64 { return &v }

func TestAddEntryBroadcastsToTrackChannel(t *testing.T) {
	e := newEnv(t)

	thread, err := e.svc.AddEntry(context.Background(), NewEntry{
		TrackID: e.track.ID, AuthorID: e.viewer, TimestampSeconds: ts(45.5),
		Category: model.CategoryMixing, Content: "vocals too loud",
	})
	require.NoError(t, err)
	require.NotNil(t, thread.Author)
	assert.Equal(t, "bob", thread.Author.DisplayName)
	assert.Empty(t, thread.Replies)

	require.Len(t, e.events.events, 1)
	assert.Equal(t, realtime.TrackChannel(e.track.ID), e.events.events[0].channel)
	assert.Equal(t, realtime.EventNewFeedback, e.events.events[0].name)
}

func TestAddEntryValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewEntry
	}{
		{"empty content", NewEntry{Category: model.CategoryGeneral, Content: "  "}},
		{"unknown category", NewEntry{Category: "vibes", Content: "hi"}},
		{"negative timestamp", NewEntry{Category: model.CategoryGeneral, Content: "hi", TimestampSeconds: ts(-1)}},
		{"past the end", NewEntry{Category: model.CategoryGeneral, Content: "hi", TimestampSeconds: ts(181)}},
		{"too long", NewEntry{Category: model.CategoryGeneral, Content: strings.Repeat("a", MaxContentLength+1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.TrackID = e.track.ID
			tc.in.AuthorID = e.owner
			_, err := e.svc.AddEntry(ctx, tc.in)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
	assert.Empty(t, e.events.names())
}

func TestAddEntryRequiresMembership(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.AddEntry(context.Background(), NewEntry{
		TrackID: e.track.ID, AuthorID: e.stranger, Category: model.CategoryGeneral, Content: "hi",
	})
	assert.ErrorIs(t, err, model.ErrDenied)

	_, err = e.svc.AddEntry(context.Background(), NewEntry{
		TrackID: "missing", AuthorID: e.owner, Category: model.CategoryGeneral, Content: "hi",
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReplyInheritsParentFields(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	f1, err := e.svc.AddEntry(ctx, NewEntry{
		TrackID: e.track.ID, AuthorID: e.viewer, TimestampSeconds: ts(45.5),
		Category: model.CategoryMixing, Content: "snare is harsh",
	})
	require.NoError(t, err)

	reply, err := e.svc.AddReply(ctx, f1.ID, e.owner, "fixed in v2")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryMixing, reply.Category)
	require.NotNil(t, reply.TimestampSeconds)
	assert.Equal(t, 45.5, *reply.TimestampSeconds)
	assert.Equal(t, f1.ID, *reply.ParentID)
	assert.Equal(t, []string{realtime.EventNewFeedback, realtime.EventNewReply}, e.events.names())

	_, err = e.svc.AddReply(ctx, reply.ID, e.viewer, "nested")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = e.svc.AddReply(ctx, "missing", e.viewer, "hello")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReplyByNonMemberLooksMissing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	f1, err := e.svc.AddEntry(ctx, NewEntry{
		TrackID: e.track.ID, AuthorID: e.viewer, Category: model.CategoryGeneral, Content: "intro drags",
	})
	require.NoError(t, err)
	reply, err := e.svc.AddReply(ctx, f1.ID, e.owner, "trimmed")
	require.NoError(t, err)

	// Top-level ids and reply ids must be indistinguishable to outsiders.
	for _, id := range []string{f1.ID, reply.ID, "missing"} {
		_, err := e.svc.AddReply(ctx, id, e.stranger, "hello")
		assert.ErrorIs(t, err, model.ErrNotFound, id)
		assert.NotErrorIs(t, err, model.ErrValidation, id)
	}
	assert.Equal(t, []string{realtime.EventNewFeedback, realtime.EventNewReply}, e.events.names())
}

func TestResolveIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	f1, err := e.svc.AddEntry(ctx, NewEntry{
		TrackID: e.track.ID, AuthorID: e.viewer, Category: model.CategoryGeneral, Content: "love it",
	})
	require.NoError(t, err)

	first, err := e.svc.Resolve(ctx, f1.ID, e.owner) // track uploader
	require.NoError(t, err)
	assert.True(t, first.IsResolved)

	second, err := e.svc.Resolve(ctx, f1.ID, e.viewer) // author
	require.NoError(t, err)
	assert.True(t, second.IsResolved)

	assert.Equal(t, []string{realtime.EventNewFeedback, realtime.EventFeedbackResolved}, e.events.names())
}

func TestResolveRequiresAuthorOrUploader(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	f1, err := e.svc.AddEntry(ctx, NewEntry{
		TrackID: e.track.ID, AuthorID: e.owner, Category: model.CategoryGeneral, Content: "note to self",
	})
	require.NoError(t, err)

	_, err = e.svc.Resolve(ctx, f1.ID, e.viewer)
	assert.ErrorIs(t, err, model.ErrDenied)
	_, err = e.svc.Resolve(ctx, "missing", e.owner)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListByTrack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	clock := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	e.svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	late, err := e.svc.AddEntry(ctx, NewEntry{TrackID: e.track.ID, AuthorID: e.owner, TimestampSeconds: ts(120), Category: model.CategoryGeneral, Content: "outro"})
	require.NoError(t, err)
	early, err := e.svc.AddEntry(ctx, NewEntry{TrackID: e.track.ID, AuthorID: e.viewer, TimestampSeconds: ts(3), Category: model.CategoryPerformance, Content: "intro"})
	require.NoError(t, err)
	general, err := e.svc.AddEntry(ctx, NewEntry{TrackID: e.track.ID, AuthorID: e.viewer, Category: model.CategoryGeneral, Content: "overall"})
	require.NoError(t, err)

	r1, err := e.svc.AddReply(ctx, early.ID, e.owner, "first")
	require.NoError(t, err)
	r2, err := e.svc.AddReply(ctx, early.ID, e.viewer, "second")
	require.NoError(t, err)

	threads, err := e.svc.ListByTrack(ctx, e.track.ID, e.viewer)
	require.NoError(t, err)
	require.Len(t, threads, 3)
	assert.Equal(t, general.ID, threads[0].ID)
	assert.Equal(t, early.ID, threads[1].ID)
	assert.Equal(t, late.ID, threads[2].ID)

	require.Len(t, threads[1].Replies, 2)
	assert.Equal(t, r1.ID, threads[1].Replies[0].ID)
	assert.Equal(t, r2.ID, threads[1].Replies[1].ID)
	assert.Equal(t, "alice", threads[1].Replies[0].Author.DisplayName)
	assert.Empty(t, threads[2].Replies)

	_, err = e.svc.ListByTrack(ctx, e.track.ID, e.stranger)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
