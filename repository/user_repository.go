package repository

import (
	"context"
	"fmt"

	"Soundcheck/model"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Summaries(ctx context.Context, ids []string) (map[string]model.AuthorSummary, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a gorm-backed UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create inserts user. A taken username or email yields model.ErrConflict.
func (r *gormUserRepository) Create(ctx context.Context, user *model.User) error {
	var taken int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ? OR username = ?", user.Email, user.Username).
		Count(&taken).Error
	if err != nil {
		return fmt.Errorf("check existing user: %w", classify(err))
	}
	if taken > 0 {
		return fmt.Errorf("%w: username or email already registered", model.ErrConflict)
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", classify(err))
	}
	return nil
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, classify(err))
	}
	return &user, nil
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, fmt.Errorf("get user by email: %w", classify(err))
	}
	return &user, nil
}

func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("get user by username: %w", classify(err))
	}
	return &user, nil
}

// Summaries resolves author projections for ids with a single query.
// Unknown ids are absent from the result.
func (r *gormUserRepository) Summaries(ctx context.Context, ids []string) (map[string]model.AuthorSummary, error) {
	out := make(map[string]model.AuthorSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []model.User
	err := r.db.WithContext(ctx).
		Select("id", "username", "profile_image_url").
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", classify(err))
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}
