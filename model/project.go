package model

import "time"

// Role is a member's static role inside a project.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleCollaborator Role = "collaborator"
	RoleViewer       Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleCollaborator, RoleViewer:
		return true
	}
	return false
}

// Project status values.
const (
	ProjectStatusActive    = "active"
	ProjectStatusArchived  = "archived"
	ProjectStatusCompleted = "completed"
)

// ValidProjectStatus reports whether s is an accepted project status.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusArchived, ProjectStatusCompleted:
		return true
	}
	return false
}

// Project groups tracks and the members allowed to see them.
type Project struct {
	ID          string    `json:"id" gorm:"primaryKey;type:char(36)"`
	OwnerID     string    `json:"ownerId" gorm:"type:char(36);not null;index"`
	Name        string    `json:"name" gorm:"size:100;not null"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	Genre       *string   `json:"genre,omitempty" gorm:"size:50"`
	Status      string    `json:"status" gorm:"size:20;not null"`
	IsPrivate   bool      `json:"isPrivate" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName overrides the table name.
func (Project) TableName() string {
	return "projects"
}

// ProjectMember is one (project, user) membership row.
type ProjectMember struct {
	ProjectID string    `json:"projectId" gorm:"primaryKey;type:char(36)"`
	UserID    string    `json:"userId" gorm:"primaryKey;type:char(36);index"`
	Role      Role      `json:"role" gorm:"size:20;not null"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// TableName overrides the table name.
func (ProjectMember) TableName() string {
	return "project_members"
}

// MemberInfo is a membership joined with the member's public profile (API response).
type MemberInfo struct {
	AuthorSummary
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ProjectDetail is a project with its members and track count (API response).
type ProjectDetail struct {
	Project
	Members     []MemberInfo `json:"members"`
	TracksCount int64        `json:"tracksCount"`
}
