package repository

import (
	"context"
	"testing"
	"time"

	"Soundcheck/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seconds(v float64) *float64 { return &v }

func TestListTopLevelOrdering(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	p := f.project(t, alice)
	res, err := f.upload(t, p, "Summer Vibes", 1, 1)
	require.NoError(t, err)
	trackID := res.Track.ID

	entries := []model.FeedbackEntry{
		{ID: "late", TimestampSeconds: seconds(90), CreatedAt: epoch},
		{ID: "early", TimestampSeconds: seconds(12.5), CreatedAt: epoch.Add(time.Minute)},
		{ID: "general-2", CreatedAt: epoch.Add(3 * time.Minute)},
		{ID: "general-1", CreatedAt: epoch.Add(2 * time.Minute)},
	}
	for i := range entries {
		e := entries[i]
		e.TrackID = trackID
		e.AuthorID = alice.ID
		e.Category = model.CategoryGeneral
		e.Content = e.ID
		require.NoError(t, f.feedback.Create(context.Background(), &e))
	}
	parent := "early"
	require.NoError(t, f.feedback.Create(context.Background(), &model.FeedbackEntry{
		ID: "reply", TrackID: trackID, AuthorID: alice.ID, ParentID: &parent,
		Category: model.CategoryGeneral, Content: "agreed", CreatedAt: epoch.Add(4 * time.Minute),
	}))

	top, err := f.feedback.ListTopLevel(context.Background(), trackID)
	require.NoError(t, err)
	var ids []string
	for _, e := range top {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"general-1", "general-2", "early", "late"}, ids)

	replies, err := f.feedback.ListReplies(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "reply", replies[0].ID)

	counts, err := f.feedback.CountByTracks(context.Background(), []string{trackID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts[trackID])
	assert.Zero(t, counts["missing"])
}

func TestMarkResolvedOnlyOnce(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	p := f.project(t, alice)
	res, err := f.upload(t, p, "Summer Vibes", 1, 1)
	require.NoError(t, err)

	require.NoError(t, f.feedback.Create(context.Background(), &model.FeedbackEntry{
		ID: "f1", TrackID: res.Track.ID, AuthorID: alice.ID,
		Category: model.CategoryMixing, Content: "kick is muddy",
	}))

	at := epoch.Add(time.Hour)
	changed, err := f.feedback.MarkResolved(context.Background(), "f1", at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.feedback.MarkResolved(context.Background(), "f1", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	entry, err := f.feedback.GetByID(context.Background(), "f1")
	require.NoError(t, err)
	assert.True(t, entry.IsResolved)
	assert.True(t, entry.UpdatedAt.Equal(at), "updatedAt %v", entry.UpdatedAt)
}
