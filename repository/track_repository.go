package repository

import (
	"context"
	"fmt"

	"Soundcheck/core/version"
	"Soundcheck/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackUpdate carries the editable track fields; nil fields are left alone.
type TrackUpdate struct {
	Title       *string
	Description *string
	BPM         *int
	Key         *string
}

// UploadResult is what CreateVersion changed.
type UploadResult struct {
	Track   *model.Track
	Demoted []string
}

// DeleteResult is what DeleteVersion changed.
type DeleteResult struct {
	Deleted  *model.Track
	Promoted *model.Track
}

// TrackRepository persists tracks and keeps every lineage's latest flag
// consistent. Lineage mutations run in one transaction each.
type TrackRepository interface {
	CreateVersion(ctx context.Context, track *model.Track, requestedVersion int) (*UploadResult, error)
	DeleteVersion(ctx context.Context, trackID string) (*DeleteResult, error)
	Update(ctx context.Context, trackID string, upd TrackUpdate) (*model.Track, error)
	GetByID(ctx context.Context, trackID string) (*model.Track, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Track, error)
	Lineage(ctx context.Context, projectID, title string) ([]model.Track, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a gorm-backed TrackRepository.
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// lockLineage loads every row of the lineage with FOR UPDATE so concurrent
// uploads and deletes of the same lineage serialize in the database.
func lockLineage(tx *gorm.DB, projectID, title string) ([]model.Track, error) {
	var lineage []model.Track
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("project_id = ? AND title = ?", projectID, title).
		Order("version_number ASC").
		Find(&lineage).Error
	return lineage, err
}

func checkLineage(tx *gorm.DB, projectID, title string) error {
	var lineage []model.Track
	if err := tx.Where("project_id = ? AND title = ?", projectID, title).Find(&lineage).Error; err != nil {
		return err
	}
	return version.CheckLineage(lineage)
}

// CreateVersion inserts track as the latest version of its lineage, demoting
// the previous latest row. track.ID, VersionNumber and IsLatest are set on
// success.
func (r *gormTrackRepository) CreateVersion(ctx context.Context, track *model.Track, requestedVersion int) (*UploadResult, error) {
	result := &UploadResult{Track: track}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lineage, err := lockLineage(tx, track.ProjectID, track.Title)
		if err != nil {
			return err
		}

		plan, err := version.PlanUpload(lineage, requestedVersion)
		if err != nil {
			return err
		}

		if len(plan.Demote) > 0 {
			if err := tx.Model(&model.Track{}).
				Where("id IN ?", plan.Demote).
				Update("is_latest", false).Error; err != nil {
				return err
			}
		}

		track.VersionNumber = plan.VersionNumber
		track.IsLatest = true
		if err := tx.Create(track).Error; err != nil {
			return err
		}

		result.Demoted = plan.Demote
		return checkLineage(tx, track.ProjectID, track.Title)
	})
	if err != nil {
		return nil, fmt.Errorf("create track version: %w", classify(err))
	}
	return result, nil
}

// DeleteVersion removes a track and its feedback, promoting a successor when
// the deleted row was latest.
func (r *gormTrackRepository) DeleteVersion(ctx context.Context, trackID string) (*DeleteResult, error) {
	result := &DeleteResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target model.Track
		if err := tx.Where("id = ?", trackID).First(&target).Error; err != nil {
			return err
		}

		lineage, err := lockLineage(tx, target.ProjectID, target.Title)
		if err != nil {
			return err
		}
		promote, err := version.PlanDeletion(lineage, trackID)
		if err != nil {
			return err
		}

		if err := tx.Where("track_id = ?", trackID).Delete(&model.FeedbackEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", trackID).Delete(&model.Track{}).Error; err != nil {
			return err
		}
		if promote != nil {
			if err := tx.Model(&model.Track{}).
				Where("id = ?", promote.ID).
				Update("is_latest", true).Error; err != nil {
				return err
			}
			promote.IsLatest = true
		}

		result.Deleted = &target
		result.Promoted = promote
		return checkLineage(tx, target.ProjectID, target.Title)
	})
	if err != nil {
		return nil, fmt.Errorf("delete track version: %w", classify(err))
	}
	return result, nil
}

// Update edits track metadata. A title change renames the whole lineage so
// its versions stay together; renaming onto another lineage's title is a
// conflict.
func (r *gormTrackRepository) Update(ctx context.Context, trackID string, upd TrackUpdate) (*model.Track, error) {
	var updated model.Track

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Track
		if err := tx.Where("id = ?", trackID).First(&current).Error; err != nil {
			return err
		}

		if upd.Title != nil && *upd.Title != current.Title {
			var taken int64
			if err := tx.Model(&model.Track{}).
				Where("project_id = ? AND title = ?", current.ProjectID, *upd.Title).
				Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return fmt.Errorf("%w: title %q already names a track in this project", model.ErrConflict, *upd.Title)
			}
			if err := tx.Model(&model.Track{}).
				Where("project_id = ? AND title = ?", current.ProjectID, current.Title).
				Update("title", *upd.Title).Error; err != nil {
				return err
			}
		}

		fields := map[string]interface{}{}
		if upd.Description != nil {
			fields["description"] = *upd.Description
		}
		if upd.BPM != nil {
			fields["bpm"] = *upd.BPM
		}
		if upd.Key != nil {
			fields["musical_key"] = *upd.Key
		}
		if len(fields) > 0 {
			if err := tx.Model(&model.Track{}).Where("id = ?", trackID).Updates(fields).Error; err != nil {
				return err
			}
		}

		return tx.Where("id = ?", trackID).First(&updated).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update track %s: %w", trackID, classify(err))
	}
	return &updated, nil
}

// GetByID returns the track or model.ErrNotFound.
func (r *gormTrackRepository) GetByID(ctx context.Context, trackID string) (*model.Track, error) {
	var track model.Track
	if err := r.db.WithContext(ctx).Where("id = ?", trackID).First(&track).Error; err != nil {
		return nil, fmt.Errorf("get track %s: %w", trackID, classify(err))
	}
	return &track, nil
}

// ListByProject returns every version in the project, newest first.
func (r *gormTrackRepository) ListByProject(ctx context.Context, projectID string) ([]model.Track, error) {
	var tracks []model.Track
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("list tracks of project %s: %w", projectID, classify(err))
	}
	return tracks, nil
}

// Lineage returns every version sharing (projectID, title), highest version first.
func (r *gormTrackRepository) Lineage(ctx context.Context, projectID, title string) ([]model.Track, error) {
	var lineage []model.Track
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND title = ?", projectID, title).
		Order("version_number DESC").
		Find(&lineage).Error
	if err != nil {
		return nil, fmt.Errorf("load lineage: %w", classify(err))
	}
	return lineage, nil
}
