package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Soundcheck/model"

	"gorm.io/gorm"
)

// ProjectRepository persists projects and their memberships.
type ProjectRepository interface {
	// CreateWithOwner inserts the project and its owner membership together.
	CreateWithOwner(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	ListForUser(ctx context.Context, userID string) ([]model.Project, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	CountTracks(ctx context.Context, projectID string) (int64, error)

	GetMember(ctx context.Context, projectID, userID string) (*model.ProjectMember, error)
	AddMember(ctx context.Context, member *model.ProjectMember) error
	RemoveMember(ctx context.Context, projectID, userID string) error
	ListMembers(ctx context.Context, projectID string) ([]model.MemberInfo, error)
}

type gormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a gorm-backed ProjectRepository.
func NewGormProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

func (r *gormProjectRepository) CreateWithOwner(ctx context.Context, project *model.Project) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		return tx.Create(&model.ProjectMember{
			ProjectID: project.ID,
			UserID:    project.OwnerID,
			Role:      model.RoleOwner,
			JoinedAt:  project.CreatedAt,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("create project: %w", classify(err))
	}
	return nil
}

func (r *gormProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, classify(err))
	}
	return &project, nil
}

// ListForUser returns every project userID is a member of, newest first.
func (r *gormProjectRepository) ListForUser(ctx context.Context, userID string) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", classify(err))
	}
	return projects, nil
}

func (r *gormProjectRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update project %s: %w", id, classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update project %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *gormProjectRepository) CountTracks(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Track{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count tracks: %w", classify(err))
	}
	return count, nil
}

// GetMember returns the membership row or model.ErrNotFound.
func (r *gormProjectRepository) GetMember(ctx context.Context, projectID, userID string) (*model.ProjectMember, error) {
	var member model.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", classify(err))
	}
	return &member, nil
}

// AddMember inserts a membership; an existing row yields model.ErrAlreadyMember.
func (r *gormProjectRepository) AddMember(ctx context.Context, member *model.ProjectMember) error {
	_, err := r.GetMember(ctx, member.ProjectID, member.UserID)
	if err == nil {
		return model.ErrAlreadyMember
	}
	if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		err = classify(err)
		if errors.Is(err, model.ErrConflict) {
			return model.ErrAlreadyMember
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *gormProjectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	res := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.ProjectMember{})
	if res.Error != nil {
		return fmt.Errorf("remove member: %w", classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("remove member: %w", model.ErrNotFound)
	}
	return nil
}

// ListMembers returns the project's members with their public profile, in join order.
func (r *gormProjectRepository) ListMembers(ctx context.Context, projectID string) ([]model.MemberInfo, error) {
	var rows []struct {
		ID              string
		Username        string
		ProfileImageURL *string
		Role            model.Role
		JoinedAt        time.Time
	}
	err := r.db.WithContext(ctx).
		Table("project_members").
		Select("users.id, users.username, users.profile_image_url, project_members.role, project_members.joined_at").
		Joins("JOIN users ON users.id = project_members.user_id").
		Where("project_members.project_id = ?", projectID).
		Order("project_members.joined_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", classify(err))
	}

	members := make([]model.MemberInfo, 0, len(rows))
	for _, row := range rows {
		u := model.User{ID: row.ID, Username: row.Username, ProfileImageURL: row.ProfileImageURL}
		members = append(members, model.MemberInfo{
			AuthorSummary: u.Summary(),
			Role:          row.Role,
			JoinedAt:      row.JoinedAt,
		})
	}
	return members, nil
}
