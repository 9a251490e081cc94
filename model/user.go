package model

import "time"

// User is an account that can own projects, upload tracks and leave feedback.
type User struct {
	ID              string    `json:"id" gorm:"primaryKey;type:char(36)"`
	Username        string    `json:"username" gorm:"size:50;not null;uniqueIndex"`
	Email           string    `json:"email" gorm:"size:100;not null;uniqueIndex"`
	PasswordHash    string    `json:"-" gorm:"size:255;not null"`
	ProfileImageURL *string   `json:"profileImageUrl,omitempty" gorm:"size:255"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName overrides the table name.
func (User) TableName() string {
	return "users"
}

// AuthorSummary is the minimal user projection attached to feedback and members.
type AuthorSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Summary projects u into an AuthorSummary.
func (u *User) Summary() AuthorSummary {
	s := AuthorSummary{ID: u.ID, DisplayName: u.Username}
	if u.ProfileImageURL != nil {
		s.AvatarURL = *u.ProfileImageURL
	}
	return s
}
