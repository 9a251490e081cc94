package repository

import (
	"context"
	"testing"
	"time"

	"Soundcheck/db/dbtest"
	"Soundcheck/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var epoch = time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	users    UserRepository
	projects ProjectRepository
	tracks   TrackRepository
	feedback FeedbackRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	return &fixture{
		db:       gdb,
		users:    NewGormUserRepository(gdb),
		projects: NewGormProjectRepository(gdb),
		tracks:   NewGormTrackRepository(gdb),
		feedback: NewGormFeedbackRepository(gdb),
	}
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) project(t *testing.T, owner *model.User) *model.Project {
	t.Helper()
	p := &model.Project{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Name:      "Album",
		Status:    model.ProjectStatusActive,
		CreatedAt: epoch,
		UpdatedAt: epoch,
	}
	require.NoError(t, f.projects.CreateWithOwner(context.Background(), p))
	return p
}

// upload stores a new version of title. createdAt is derived from step so
// ordering assertions do not depend on the wall clock.
func (f *fixture) upload(t *testing.T, p *model.Project, title string, version, step int) (*UploadResult, error) {
	t.Helper()
	tr := &model.Track{
		ID:         uuid.NewString(),
		ProjectID:  p.ID,
		UploaderID: p.OwnerID,
		Title:      title,
		FileURL:    "http://files/" + title,
		FileFormat: "mp3",
		CreatedAt:  epoch.Add(time.Duration(step) * time.Minute),
	}
	return f.tracks.CreateVersion(context.Background(), tr, version)
}

func (f *fixture) latest(t *testing.T, p *model.Project, title string) []model.Track {
	t.Helper()
	lineage, err := f.tracks.Lineage(context.Background(), p.ID, title)
	require.NoError(t, err)
	var out []model.Track
	for _, tr := range lineage {
		if tr.IsLatest {
			out = append(out, tr)
		}
	}
	return out
}
