// Package tracks orchestrates track uploads, edits and deletions.
package tracks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"Soundcheck/core/access"
	"Soundcheck/core/realtime"
	"Soundcheck/logger"
	"Soundcheck/model"
	"Soundcheck/repository"
	"Soundcheck/storage"

	"github.com/google/uuid"
)

const maxTitleLength = 100

// FileStore stores uploaded audio.
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// Broadcaster is the fire-and-forget event sink.
type Broadcaster interface {
	Broadcast(channel, event string, payload interface{})
}

// Guard resolves membership roles.
type Guard interface {
	CheckAccess(ctx context.Context, userID, projectID string) (model.Role, error)
	CheckTrackAccess(ctx context.Context, userID, trackID string) (*model.Track, model.Role, error)
}

// AuthorDirectory resolves user projections in bulk.
type AuthorDirectory interface {
	Summaries(ctx context.Context, ids []string) (map[string]model.AuthorSummary, error)
}

// ProjectReader loads a project.
type ProjectReader interface {
	GetByID(ctx context.Context, id string) (*model.Project, error)
}

// FeedbackCounter counts feedback per track.
type FeedbackCounter interface {
	CountByTracks(ctx context.Context, trackIDs []string) (map[string]int64, error)
}

// Limits bound what an upload may contain.
type Limits struct {
	MaxBytes       int64
	AllowedFormats []string
}

// Upload is the input of Service.Upload. Body must yield exactly Size bytes.
type Upload struct {
	ProjectID       string
	UploaderID      string
	Title           string
	Description     *string
	BPM             *int
	Key             *string
	DurationSeconds float64
	VersionNumber   int // 0 assigns the next version
	Filename        string
	Size            int64
	Body            io.Reader
}

// UploadedEvent is the payload of track-uploaded.
type UploadedEvent struct {
	TrackID       string `json:"trackId"`
	ProjectID     string `json:"projectId"`
	Title         string `json:"title"`
	VersionNumber int    `json:"versionNumber"`
	UploaderID    string `json:"uploaderId"`
	UploaderName  string `json:"uploaderName,omitempty"`
}

// DeletedEvent is the payload of track-deleted.
type DeletedEvent struct {
	TrackID   string `json:"trackId"`
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
}

// PromotedEvent is the payload of track-promoted.
type PromotedEvent struct {
	TrackID       string `json:"trackId"`
	ProjectID     string `json:"projectId"`
	Title         string `json:"title"`
	VersionNumber int    `json:"versionNumber"`
}

type Service struct {
	tracks   repository.TrackRepository
	counts   FeedbackCounter
	projects ProjectReader
	users    AuthorDirectory
	guard    Guard
	files    FileStore
	events   Broadcaster
	limits   Limits
	now      func() time.Time
}

func NewService(
	tracks repository.TrackRepository,
	counts FeedbackCounter,
	projects ProjectReader,
	users AuthorDirectory,
	guard Guard,
	files FileStore,
	events Broadcaster,
	limits Limits,
) *Service {
	return &Service{
		tracks:   tracks,
		counts:   counts,
		projects: projects,
		users:    users,
		guard:    guard,
		files:    files,
		events:   events,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) formatAllowed(format string) bool {
	for _, f := range s.limits.AllowedFormats {
		if f == format {
			return true
		}
	}
	return false
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", model.ErrValidation, maxTitleLength)
	}
	return nil
}

func validateBPM(bpm *int) error {
	if bpm != nil && (*bpm <= 0 || *bpm > 999) {
		return fmt.Errorf("%w: bpm must be between 1 and 999", model.ErrValidation)
	}
	return nil
}

func (s *Service) validateUpload(in *Upload) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if in.Body == nil || in.Size <= 0 {
		return fmt.Errorf("%w: audio file is required", model.ErrValidation)
	}
	if s.limits.MaxBytes > 0 && in.Size > s.limits.MaxBytes {
		return fmt.Errorf("%w: audio file exceeds %s", model.ErrValidation, storage.FormatSize(s.limits.MaxBytes))
	}
	if format := storage.AudioFormat(in.Filename); !s.formatAllowed(format) {
		return fmt.Errorf("%w: only %s files are allowed", model.ErrValidation, strings.Join(s.limits.AllowedFormats, ", "))
	}
	if in.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration must not be negative", model.ErrValidation)
	}
	if in.VersionNumber < 0 {
		return fmt.Errorf("%w: version number must not be negative", model.ErrValidation)
	}
	return validateBPM(in.BPM)
}

// Upload stores the audio and registers it as the latest version of its
// lineage. The stored object is removed again when the database rejects
// the version.
func (s *Service) Upload(ctx context.Context, in Upload) (*model.Track, error) {
	role, err := s.guard.CheckAccess(ctx, in.UploaderID, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(role, access.ActionUpload); err != nil {
		return nil, err
	}
	if err := s.validateUpload(&in); err != nil {
		return nil, err
	}

	format := storage.AudioFormat(in.Filename)
	track := &model.Track{
		ID:              uuid.NewString(),
		ProjectID:       in.ProjectID,
		UploaderID:      in.UploaderID,
		Title:           in.Title,
		Description:     in.Description,
		FileFormat:      format,
		FileSize:        in.Size,
		DurationSeconds: in.DurationSeconds,
		BPM:             in.BPM,
		Key:             in.Key,
		CreatedAt:       s.now(),
	}
	track.ObjectKey = storage.AudioKey(in.ProjectID, track.ID, format)

	url, err := s.files.Put(ctx, track.ObjectKey, in.Body, in.Size, storage.ContentType(format))
	if err != nil {
		return nil, err
	}
	track.FileURL = url

	res, err := s.tracks.CreateVersion(ctx, track, in.VersionNumber)
	if err != nil {
		s.removeObject(track.ObjectKey)
		return nil, err
	}

	logger.Info("track uploaded",
		logger.String("track", track.ID),
		logger.String("project", track.ProjectID),
		logger.Int("version", track.VersionNumber),
		logger.Int("demoted", len(res.Demoted)))

	event := UploadedEvent{
		TrackID:       track.ID,
		ProjectID:     track.ProjectID,
		Title:         track.Title,
		VersionNumber: track.VersionNumber,
		UploaderID:    track.UploaderID,
	}
	if names, err := s.users.Summaries(ctx, []string{track.UploaderID}); err == nil {
		event.UploaderName = names[track.UploaderID].DisplayName
	}
	s.events.Broadcast(realtime.ProjectChannel(track.ProjectID), realtime.EventTrackUploaded, event)
	return res.Track, nil
}

// Update edits title, description, bpm or key. Only the uploader and the
// project owner may edit.
func (s *Service) Update(ctx context.Context, trackID, userID string, upd repository.TrackUpdate) (*model.Track, error) {
	track, role, err := s.guard.CheckTrackAccess(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}
	if !access.CanEditTrack(role, userID, track) {
		return nil, fmt.Errorf("%w: only the uploader or the project owner may edit this track", model.ErrDenied)
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	if err := validateBPM(upd.BPM); err != nil {
		return nil, err
	}
	return s.tracks.Update(ctx, trackID, upd)
}

// Delete removes a version and its feedback. When the deleted version was
// latest the next one is promoted. The audio object is removed after commit.
func (s *Service) Delete(ctx context.Context, trackID, userID string) (*repository.DeleteResult, error) {
	track, role, err := s.guard.CheckTrackAccess(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}
	if !access.CanEditTrack(role, userID, track) {
		return nil, fmt.Errorf("%w: only the uploader or the project owner may delete this track", model.ErrDenied)
	}

	res, err := s.tracks.DeleteVersion(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if res.Deleted.ObjectKey != "" {
		s.removeObject(res.Deleted.ObjectKey)
	}

	channel := realtime.ProjectChannel(res.Deleted.ProjectID)
	s.events.Broadcast(channel, realtime.EventTrackDeleted, DeletedEvent{
		TrackID:   res.Deleted.ID,
		ProjectID: res.Deleted.ProjectID,
		Title:     res.Deleted.Title,
	})
	if res.Promoted != nil {
		s.events.Broadcast(channel, realtime.EventTrackPromoted, PromotedEvent{
			TrackID:       res.Promoted.ID,
			ProjectID:     res.Promoted.ProjectID,
			Title:         res.Promoted.Title,
			VersionNumber: res.Promoted.VersionNumber,
		})
	}
	return res, nil
}

// ListByProject returns every version in the project, newest first, with
// feedback counts.
func (s *Service) ListByProject(ctx context.Context, projectID, userID string) ([]model.TrackWithCount, error) {
	if _, err := s.guard.CheckAccess(ctx, userID, projectID); err != nil {
		return nil, access.HideDenied(err)
	}

	tracks, err := s.tracks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	counts, err := s.counts.CountByTracks(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.TrackWithCount, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, model.TrackWithCount{Track: t, FeedbackCount: counts[t.ID]})
	}
	return out, nil
}

// Detail returns a track with its uploader, project and the other versions
// of its lineage.
func (s *Service) Detail(ctx context.Context, trackID, userID string) (*model.TrackDetail, error) {
	track, _, err := s.guard.CheckTrackAccess(ctx, userID, trackID)
	if err != nil {
		return nil, access.HideDenied(err)
	}

	detail := &model.TrackDetail{Track: *track, Versions: []model.TrackVersion{}}

	users, err := s.users.Summaries(ctx, []string{track.UploaderID})
	if err != nil {
		return nil, err
	}
	if u, ok := users[track.UploaderID]; ok {
		detail.Uploader = &u
	}

	project, err := s.projects.GetByID(ctx, track.ProjectID)
	if err != nil {
		return nil, err
	}
	detail.Project = &model.ProjectRef{ID: project.ID, Name: project.Name}

	lineage, err := s.tracks.Lineage(ctx, track.ProjectID, track.Title)
	if err != nil {
		return nil, err
	}
	for _, v := range lineage {
		if v.ID == track.ID {
			continue
		}
		detail.Versions = append(detail.Versions, model.TrackVersion{
			ID:            v.ID,
			VersionNumber: v.VersionNumber,
			IsLatest:      v.IsLatest,
			CreatedAt:     v.CreatedAt,
		})
	}
	return detail, nil
}

// removeObject deletes a stored object without failing the caller.
func (s *Service) removeObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.files.Remove(ctx, key); err != nil {
		logger.Warn("failed to remove audio object",
			logger.String("key", key),
			logger.ErrorField(err))
	}
}
