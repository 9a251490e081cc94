// Package projects manages projects and their memberships.
package projects

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Soundcheck/core/access"
	"Soundcheck/logger"
	"Soundcheck/model"
	"Soundcheck/repository"

	"github.com/google/uuid"
)

const maxNameLength = 100

// Guard resolves membership roles.
type Guard interface {
	CheckAccess(ctx context.Context, userID, projectID string) (model.Role, error)
}

// UserLookup loads a single user.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// NewProject is the input of Create.
type NewProject struct {
	Name        string
	Description *string
	Genre       *string
	IsPrivate   bool
}

// Changes is the input of Update; nil fields are left alone.
type Changes struct {
	Name        *string
	Description *string
	Genre       *string
	Status      *string
	IsPrivate   *bool
}

type Service struct {
	projects repository.ProjectRepository
	users    UserLookup
	guard    Guard
	now      func() time.Time
}

func NewService(projects repository.ProjectRepository, users UserLookup, guard Guard) *Service {
	return &Service{
		projects: projects,
		users:    users,
		guard:    guard,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: project name is required", model.ErrValidation)
	}
	if len([]rune(name)) > maxNameLength {
		return fmt.Errorf("%w: project name exceeds %d characters", model.ErrValidation, maxNameLength)
	}
	return nil
}

// Create makes ownerID the owner of a new active project.
func (s *Service) Create(ctx context.Context, ownerID string, in NewProject) (*model.Project, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	now := s.now()
	project := &model.Project{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: in.Description,
		Genre:       in.Genre,
		Status:      model.ProjectStatusActive,
		IsPrivate:   in.IsPrivate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.CreateWithOwner(ctx, project); err != nil {
		return nil, err
	}
	logger.Info("project created", logger.String("project", project.ID), logger.String("owner", ownerID))
	return project, nil
}

// List returns the projects userID belongs to.
func (s *Service) List(ctx context.Context, userID string) ([]model.Project, error) {
	return s.projects.ListForUser(ctx, userID)
}

// Get returns the project with members and track count. Non-members get
// model.ErrNotFound.
func (s *Service) Get(ctx context.Context, projectID, userID string) (*model.ProjectDetail, error) {
	if _, err := s.guard.CheckAccess(ctx, userID, projectID); err != nil {
		return nil, access.HideDenied(err)
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := s.projects.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	count, err := s.projects.CountTracks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &model.ProjectDetail{Project: *project, Members: members, TracksCount: count}, nil
}

// Update edits project fields. Owner only.
func (s *Service) Update(ctx context.Context, projectID, userID string, ch Changes) (*model.Project, error) {
	if err := s.requireOwner(ctx, projectID, userID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if ch.Name != nil {
		name := strings.TrimSpace(*ch.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if ch.Description != nil {
		fields["description"] = *ch.Description
	}
	if ch.Genre != nil {
		fields["genre"] = *ch.Genre
	}
	if ch.Status != nil {
		if !model.ValidProjectStatus(*ch.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, *ch.Status)
		}
		fields["status"] = *ch.Status
	}
	if ch.IsPrivate != nil {
		fields["is_private"] = *ch.IsPrivate
	}
	if len(fields) > 0 {
		if err := s.projects.Update(ctx, projectID, fields); err != nil {
			return nil, err
		}
	}
	return s.projects.GetByID(ctx, projectID)
}

// AddMember grants targetUserID a collaborator or viewer role. Owner only.
func (s *Service) AddMember(ctx context.Context, projectID, actingUserID, targetUserID string, role model.Role) (*model.ProjectMember, error) {
	if role != model.RoleCollaborator && role != model.RoleViewer {
		return nil, fmt.Errorf("%w: role must be collaborator or viewer", model.ErrValidation)
	}
	if err := s.requireOwner(ctx, projectID, actingUserID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, targetUserID); err != nil {
		return nil, err
	}

	member := &model.ProjectMember{
		ProjectID: projectID,
		UserID:    targetUserID,
		Role:      role,
		JoinedAt:  s.now(),
	}
	if err := s.projects.AddMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember removes targetUserID. The owner may remove anyone else;
// members may remove themselves. The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, projectID, actingUserID, targetUserID string) error {
	role, err := s.guard.CheckAccess(ctx, actingUserID, projectID)
	if err != nil {
		return access.HideDenied(err)
	}
	if !access.CanRemoveMember(role, actingUserID, targetUserID) {
		return fmt.Errorf("%w: not allowed to remove this member", model.ErrDenied)
	}

	target, err := s.projects.GetMember(ctx, projectID, targetUserID)
	if err != nil {
		return err
	}
	if target.Role == model.RoleOwner {
		return fmt.Errorf("%w: the project owner cannot be removed", model.ErrValidation)
	}
	return s.projects.RemoveMember(ctx, projectID, targetUserID)
}

func (s *Service) requireOwner(ctx context.Context, projectID, userID string) error {
	role, err := s.guard.CheckAccess(ctx, userID, projectID)
	if err != nil {
		return access.HideDenied(err)
	}
	return access.Require(role, access.ActionManage)
}
