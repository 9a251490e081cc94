// Package feedback manages timestamped feedback threads on tracks.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"Soundcheck/core/access"
	"Soundcheck/core/realtime"
	"Soundcheck/logger"
	"Soundcheck/model"
	"Soundcheck/repository"

	"github.com/google/uuid"
)

// MaxContentLength bounds a comment's content in characters.
const MaxContentLength = 5000

// Broadcaster is the fire-and-forget event sink.
type Broadcaster interface {
	Broadcast(channel, event string, payload interface{})
}

// TrackGuard resolves a user's access to a track.
type TrackGuard interface {
	CheckTrackAccess(ctx context.Context, userID, trackID string) (*model.Track, model.Role, error)
}

// AuthorDirectory resolves author projections in bulk.
type AuthorDirectory interface {
	Summaries(ctx context.Context, ids []string) (map[string]model.AuthorSummary, error)
}

// NewEntry is the input of AddEntry.
type NewEntry struct {
	TrackID          string
	AuthorID         string
	TimestampSeconds *float64
	Category         model.FeedbackCategory
	Content          string
}

// ResolvedEvent is the payload of feedback-resolved.
type ResolvedEvent struct {
	ID         string `json:"id"`
	TrackID    string `json:"trackId"`
	ResolvedBy string `json:"resolvedBy"`
}

// Service is the feedback thread store.
type Service struct {
	store   repository.FeedbackRepository
	authors AuthorDirectory
	guard   TrackGuard
	events  Broadcaster
	now     func() time.Time
}

func NewService(store repository.FeedbackRepository, authors AuthorDirectory, guard TrackGuard, events Broadcaster) *Service {
	return &Service{
		store:   store,
		authors: authors,
		guard:   guard,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func validate(track *model.Track, ts *float64, category model.FeedbackCategory, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", model.ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", model.ErrValidation, MaxContentLength)
	}
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", model.ErrValidation, category)
	}
	if ts != nil {
		if *ts < 0 {
			return fmt.Errorf("%w: timestamp must not be negative", model.ErrValidation)
		}
		if track.DurationSeconds > 0 && *ts > track.DurationSeconds {
			return fmt.Errorf("%w: timestamp %.2fs is past the end of the track (%.2fs)",
				model.ErrValidation, *ts, track.DurationSeconds)
		}
	}
	return nil
}

// AddEntry stores a top-level comment and broadcasts new-feedback to the
// track channel.
func (s *Service) AddEntry(ctx context.Context, in NewEntry) (*model.FeedbackThread, error) {
	track, role, err := s.guard.CheckTrackAccess(ctx, in.AuthorID, in.TrackID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(role, access.ActionComment); err != nil {
		return nil, err
	}
	if err := validate(track, in.TimestampSeconds, in.Category, in.Content); err != nil {
		return nil, err
	}

	now := s.now()
	entry := &model.FeedbackEntry{
		ID:               uuid.NewString(),
		TrackID:          track.ID,
		AuthorID:         in.AuthorID,
		TimestampSeconds: in.TimestampSeconds,
		Category:         in.Category,
		Content:          in.Content,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, entry); err != nil {
		return nil, err
	}

	thread := &model.FeedbackThread{
		FeedbackWithAuthor: s.withAuthor(ctx, entry),
		Replies:            []model.FeedbackWithAuthor{},
	}
	s.events.Broadcast(realtime.TrackChannel(track.ID), realtime.EventNewFeedback, thread)
	return thread, nil
}

// AddReply answers a top-level entry. The reply copies the parent's timestamp
// and category; replies to replies are rejected.
func (s *Service) AddReply(ctx context.Context, parentID, authorID, content string) (*model.FeedbackWithAuthor, error) {
	parent, err := s.store.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	track, role, err := s.guard.CheckTrackAccess(ctx, authorID, parent.TrackID)
	if err != nil {
		return nil, access.HideDenied(err)
	}
	if err := access.Require(role, access.ActionComment); err != nil {
		return nil, err
	}
	if parent.IsReply() {
		return nil, fmt.Errorf("%w: replies cannot be nested", model.ErrValidation)
	}
	if err := validate(track, parent.TimestampSeconds, parent.Category, content); err != nil {
		return nil, err
	}

	now := s.now()
	reply := &model.FeedbackEntry{
		ID:               uuid.NewString(),
		TrackID:          parent.TrackID,
		AuthorID:         authorID,
		TimestampSeconds: parent.TimestampSeconds,
		Category:         parent.Category,
		Content:          content,
		ParentID:         &parent.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, reply); err != nil {
		return nil, err
	}

	out := s.withAuthor(ctx, reply)
	s.events.Broadcast(realtime.TrackChannel(parent.TrackID), realtime.EventNewReply, &out)
	return &out, nil
}

// Resolve marks an entry resolved. Only the author and the track's uploader
// may resolve. Repeating the call succeeds without another update or event.
func (s *Service) Resolve(ctx context.Context, entryID, actingUserID string) (*model.FeedbackEntry, error) {
	entry, err := s.store.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	track, _, err := s.guard.CheckTrackAccess(ctx, actingUserID, entry.TrackID)
	if err != nil {
		return nil, err
	}
	if !access.CanResolve(actingUserID, entry, track) {
		return nil, fmt.Errorf("%w: only the author or the track uploader may resolve feedback", model.ErrDenied)
	}

	at := s.now()
	changed, err := s.store.MarkResolved(ctx, entry.ID, at)
	if err != nil {
		return nil, err
	}
	if !changed {
		entry.IsResolved = true
		return entry, nil
	}

	entry.IsResolved = true
	entry.UpdatedAt = at
	s.events.Broadcast(realtime.TrackChannel(entry.TrackID), realtime.EventFeedbackResolved, ResolvedEvent{
		ID:         entry.ID,
		TrackID:    entry.TrackID,
		ResolvedBy: actingUserID,
	})
	return entry, nil
}

// ListByTrack returns the track's threads: entries without a timestamp
// first, then by ascending timestamp, each with its replies oldest first.
func (s *Service) ListByTrack(ctx context.Context, trackID, userID string) ([]model.FeedbackThread, error) {
	if _, _, err := s.guard.CheckTrackAccess(ctx, userID, trackID); err != nil {
		return nil, access.HideDenied(err)
	}

	top, err := s.store.ListTopLevel(ctx, trackID)
	if err != nil {
		return nil, err
	}
	parentIDs := make([]string, 0, len(top))
	for _, e := range top {
		parentIDs = append(parentIDs, e.ID)
	}
	replies, err := s.store.ListReplies(ctx, parentIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var authorIDs []string
	for _, e := range append(append([]model.FeedbackEntry{}, top...), replies...) {
		if _, ok := seen[e.AuthorID]; !ok {
			seen[e.AuthorID] = struct{}{}
			authorIDs = append(authorIDs, e.AuthorID)
		}
	}
	authors, err := s.authors.Summaries(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	attach := func(e model.FeedbackEntry) model.FeedbackWithAuthor {
		out := model.FeedbackWithAuthor{FeedbackEntry: e}
		if a, ok := authors[e.AuthorID]; ok {
			out.Author = &a
		}
		return out
	}

	byParent := make(map[string][]model.FeedbackWithAuthor, len(top))
	for _, r := range replies {
		byParent[*r.ParentID] = append(byParent[*r.ParentID], attach(r))
	}

	threads := make([]model.FeedbackThread, 0, len(top))
	for _, e := range top {
		thread := model.FeedbackThread{FeedbackWithAuthor: attach(e), Replies: byParent[e.ID]}
		if thread.Replies == nil {
			thread.Replies = []model.FeedbackWithAuthor{}
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

// withAuthor attaches the author's projection. A lookup failure leaves the
// author empty; the entry itself is already committed.
func (s *Service) withAuthor(ctx context.Context, e *model.FeedbackEntry) model.FeedbackWithAuthor {
	out := model.FeedbackWithAuthor{FeedbackEntry: *e}
	authors, err := s.authors.Summaries(ctx, []string{e.AuthorID})
	if err != nil {
		logger.Warn("failed to load feedback author",
			logger.String("feedback", e.ID),
			logger.ErrorField(err))
		return out
	}
	if a, ok := authors[e.AuthorID]; ok {
		out.Author = &a
	}
	return out
}
