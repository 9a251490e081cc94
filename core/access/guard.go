// Package access answers whether a user may act on a project or track.
package access

import (
	"context"
	"errors"
	"fmt"

	"Soundcheck/core/realtime"
	"Soundcheck/model"
)

// Action is something a member may attempt inside a project.
type Action string

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	ActionUpload  Action = "upload"
	ActionManage  Action = "manage"
)

// Can reports whether role permits action. Object-level rules such as
// "uploader may delete" are checked separately.
func Can(role model.Role, action Action) bool {
	switch role {
	case model.RoleOwner:
		return true
	case model.RoleCollaborator:
		return action == ActionRead || action == ActionComment || action == ActionUpload
	case model.RoleViewer:
		return action == ActionRead || action == ActionComment
	default:
		return false
	}
}

// MembershipReader looks up a single membership row.
type MembershipReader interface {
	GetMember(ctx context.Context, projectID, userID string) (*model.ProjectMember, error)
}

// TrackReader looks up a track by id.
type TrackReader interface {
	GetByID(ctx context.Context, trackID string) (*model.Track, error)
}

// Guard resolves membership roles.
type Guard struct {
	members MembershipReader
	tracks  TrackReader
}

func NewGuard(members MembershipReader, tracks TrackReader) *Guard {
	return &Guard{members: members, tracks: tracks}
}

// CheckAccess returns userID's role in projectID, or model.ErrDenied when no
// membership exists.
func (g *Guard) CheckAccess(ctx context.Context, userID, projectID string) (model.Role, error) {
	member, err := g.members.GetMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("%w: user %s is not a member of project %s", model.ErrDenied, userID, projectID)
		}
		return "", err
	}
	return member.Role, nil
}

// CheckTrackAccess resolves trackID to its project and checks membership
// there. A missing track is model.ErrNotFound.
func (g *Guard) CheckTrackAccess(ctx context.Context, userID, trackID string) (*model.Track, model.Role, error) {
	track, err := g.tracks.GetByID(ctx, trackID)
	if err != nil {
		return nil, "", err
	}
	role, err := g.CheckAccess(ctx, userID, track.ProjectID)
	if err != nil {
		return nil, "", err
	}
	return track, role, nil
}

// CanJoin lets members subscribe to their project's channels.
func (g *Guard) CanJoin(ctx context.Context, userID, kind, id string) error {
	switch kind {
	case realtime.KindTrack:
		_, _, err := g.CheckTrackAccess(ctx, userID, id)
		return err
	case realtime.KindProject:
		_, err := g.CheckAccess(ctx, userID, id)
		return err
	default:
		return fmt.Errorf("%w: unknown channel kind %q", model.ErrValidation, kind)
	}
}

// Require checks role against action and returns model.ErrDenied on refusal.
func Require(role model.Role, action Action) error {
	if !Can(role, action) {
		return fmt.Errorf("%w: role %q may not %s", model.ErrDenied, role, action)
	}
	return nil
}

// CanEditTrack allows the uploader and the project owner.
func CanEditTrack(role model.Role, userID string, track *model.Track) bool {
	return track.UploaderID == userID || role == model.RoleOwner
}

// CanResolve allows the entry's author and the track's uploader.
func CanResolve(userID string, entry *model.FeedbackEntry, track *model.Track) bool {
	return entry.AuthorID == userID || track.UploaderID == userID
}

// CanRemoveMember allows the owner to remove anyone and members to remove
// themselves.
func CanRemoveMember(role model.Role, actingUserID, targetUserID string) bool {
	return role == model.RoleOwner || actingUserID == targetUserID
}

// HideDenied turns model.ErrDenied into model.ErrNotFound so read paths do
// not reveal that a project or track exists.
func HideDenied(err error) error {
	if errors.Is(err, model.ErrDenied) {
		return model.ErrNotFound
	}
	return err
}
