package repository

import (
	"context"
	"fmt"
	"time"

	"Soundcheck/model"

	"gorm.io/gorm"
)

// FeedbackRepository persists feedback entries and replies.
type FeedbackRepository interface {
	Create(ctx context.Context, entry *model.FeedbackEntry) error
	GetByID(ctx context.Context, id string) (*model.FeedbackEntry, error)
	ListTopLevel(ctx context.Context, trackID string) ([]model.FeedbackEntry, error)
	ListReplies(ctx context.Context, parentIDs []string) ([]model.FeedbackEntry, error)
	MarkResolved(ctx context.Context, id string, at time.Time) (bool, error)
	CountByTracks(ctx context.Context, trackIDs []string) (map[string]int64, error)
}

type gormFeedbackRepository struct {
	db *gorm.DB
}

// NewGormFeedbackRepository creates a gorm-backed FeedbackRepository.
func NewGormFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &gormFeedbackRepository{db: db}
}

func (r *gormFeedbackRepository) Create(ctx context.Context, entry *model.FeedbackEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create feedback: %w", classify(err))
	}
	return nil
}

func (r *gormFeedbackRepository) GetByID(ctx context.Context, id string) (*model.FeedbackEntry, error) {
	var entry model.FeedbackEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, fmt.Errorf("get feedback %s: %w", id, classify(err))
	}
	return &entry, nil
}

// ListTopLevel returns the track's top-level entries: entries without a
// timestamp first, then by ascending timestamp, then by creation time.
func (r *gormFeedbackRepository) ListTopLevel(ctx context.Context, trackID string) ([]model.FeedbackEntry, error) {
	var entries []model.FeedbackEntry
	err := r.db.WithContext(ctx).
		Where("track_id = ? AND parent_id IS NULL", trackID).
		Order("CASE WHEN timestamp_seconds IS NULL THEN 0 ELSE 1 END").
		Order("timestamp_seconds ASC").
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list feedback of track %s: %w", trackID, classify(err))
	}
	return entries, nil
}

// ListReplies returns the replies of every parent in one query, oldest first.
func (r *gormFeedbackRepository) ListReplies(ctx context.Context, parentIDs []string) ([]model.FeedbackEntry, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var replies []model.FeedbackEntry
	err := r.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&replies).Error
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", classify(err))
	}
	return replies, nil
}

// MarkResolved flips is_resolved from false to true. It reports false, with no
// error, when the entry was already resolved.
func (r *gormFeedbackRepository) MarkResolved(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.FeedbackEntry{}).
		Where("id = ? AND is_resolved = ?", id, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("resolve feedback %s: %w", id, classify(res.Error))
	}
	return res.RowsAffected == 1, nil
}

// CountByTracks counts all entries, replies included, per track.
func (r *gormFeedbackRepository) CountByTracks(ctx context.Context, trackIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(trackIDs))
	if len(trackIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TrackID string
		Count   int64
	}
	err := r.db.WithContext(ctx).Model(&model.FeedbackEntry{}).
		Select("track_id, COUNT(id) AS count").
		Where("track_id IN ?", trackIDs).
		Group("track_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count feedback: %w", classify(err))
	}
	for _, row := range rows {
		counts[row.TrackID] = row.Count
	}
	return counts, nil
}
