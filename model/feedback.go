package model

import "time"

// FeedbackCategory classifies a feedback entry.
type FeedbackCategory string

const (
	CategoryMixing      FeedbackCategory = "mixing"
	CategoryComposition FeedbackCategory = "composition"
	CategoryPerformance FeedbackCategory = "performance"
	CategoryGeneral     FeedbackCategory = "general"
)

// Valid reports whether c is a known category.
func (c FeedbackCategory) Valid() bool {
	switch c {
	case CategoryMixing, CategoryComposition, CategoryPerformance, CategoryGeneral:
		return true
	}
	return false
}

// FeedbackEntry is a top-level comment (ParentID nil) or a reply to one.
type FeedbackEntry struct {
	ID               string           `json:"id" gorm:"primaryKey;type:char(36)"`
	TrackID          string           `json:"trackId" gorm:"type:char(36);not null;index"`
	AuthorID         string           `json:"authorId" gorm:"type:char(36);not null"`
	TimestampSeconds *float64         `json:"timestampSeconds"`
	Category         FeedbackCategory `json:"category" gorm:"size:20;not null"`
	Content          string           `json:"content" gorm:"type:text;not null"`
	IsResolved       bool             `json:"isResolved" gorm:"not null"`
	ParentID         *string          `json:"parentId,omitempty" gorm:"type:char(36);index"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// TableName overrides the table name.
func (FeedbackEntry) TableName() string {
	return "feedback"
}

// IsReply reports whether the entry belongs to another entry's thread.
func (f *FeedbackEntry) IsReply() bool {
	return f.ParentID != nil
}

// FeedbackWithAuthor attaches the author projection to an entry.
type FeedbackWithAuthor struct {
	FeedbackEntry
	Author *AuthorSummary `json:"author"`
}

// FeedbackThread is a top-level entry with its replies (API response).
type FeedbackThread struct {
	FeedbackWithAuthor
	Replies []FeedbackWithAuthor `json:"replies"`
}
