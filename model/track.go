package model

import "time"

// Track is one uploaded version of a song. Versions sharing (ProjectID, Title)
// form a lineage in which exactly one row is latest.
type Track struct {
	ID              string    `json:"id" gorm:"primaryKey;type:char(36)"`
	ProjectID       string    `json:"projectId" gorm:"type:char(36);not null;index:idx_tracks_lineage,priority:1"`
	UploaderID      string    `json:"uploaderId" gorm:"type:char(36);not null;index"`
	Title           string    `json:"title" gorm:"size:100;not null;index:idx_tracks_lineage,priority:2"`
	Description     *string   `json:"description,omitempty" gorm:"type:text"`
	FileURL         string    `json:"fileUrl" gorm:"size:255;not null"`
	ObjectKey       string    `json:"-" gorm:"size:255"`
	FileFormat      string    `json:"fileFormat" gorm:"size:10;not null"`
	FileSize        int64     `json:"fileSize"`
	DurationSeconds float64   `json:"durationSeconds"`
	BPM             *int      `json:"bpm,omitempty" gorm:"column:bpm"`
	Key             *string   `json:"key,omitempty" gorm:"column:musical_key;size:10"`
	VersionNumber   int       `json:"versionNumber" gorm:"not null"`
	IsLatest        bool      `json:"isLatest" gorm:"not null;index"`
	CreatedAt       time.Time `json:"createdAt"`
}

// TableName overrides the table name.
func (Track) TableName() string {
	return "tracks"
}

// TrackVersion is a sibling entry in a track's version history.
type TrackVersion struct {
	ID            string    `json:"id"`
	VersionNumber int       `json:"versionNumber"`
	IsLatest      bool      `json:"isLatest"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TrackWithCount is a track listing row (API response).
type TrackWithCount struct {
	Track
	FeedbackCount int64 `json:"feedbackCount"`
}

// TrackDetail is a track with its uploader, project and version history (API response).
type TrackDetail struct {
	Track
	Uploader *AuthorSummary `json:"uploader,omitempty"`
	Project  *ProjectRef    `json:"project,omitempty"`
	Versions []TrackVersion `json:"versions"`
}

// ProjectRef is the minimal project projection.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
