// Package version decides which track row of a lineage is latest.
//
// A lineage is every track sharing (projectID, title). The functions here are
// pure: the repository loads the locked lineage rows inside a transaction, asks
// for a plan, applies it, and re-checks the result with CheckLineage before
// committing.
package version

import (
	"fmt"

	"Soundcheck/model"
)

// UploadPlan says which version number the new row gets and which existing
// rows lose their latest flag.
type UploadPlan struct {
	VersionNumber int
	Demote        []string
}

// PlanUpload plans the insertion of a new version into lineage. A requested
// version of 0 means "next": one past the lineage maximum.
func PlanUpload(lineage []model.Track, requested int) (UploadPlan, error) {
	if requested < 0 {
		return UploadPlan{}, fmt.Errorf("%w: version number %d is negative", model.ErrValidation, requested)
	}

	highest := MaxVersion(lineage)
	if requested == 0 {
		requested = highest + 1
	} else if requested <= highest {
		return UploadPlan{}, fmt.Errorf("%w: requested v%d, lineage is at v%d", model.ErrVersionConflict, requested, highest)
	}

	plan := UploadPlan{VersionNumber: requested}
	if requested > 1 {
		for _, t := range lineage {
			if t.IsLatest {
				plan.Demote = append(plan.Demote, t.ID)
			}
		}
	}
	return plan, nil
}

// PlanDeletion returns the row to promote when deletedID is removed from
// lineage, or nil when nothing changes. It returns model.ErrNotFound when
// deletedID is not part of lineage.
func PlanDeletion(lineage []model.Track, deletedID string) (*model.Track, error) {
	var deleted *model.Track
	remaining := make([]model.Track, 0, len(lineage))
	for i := range lineage {
		if lineage[i].ID == deletedID {
			deleted = &lineage[i]
			continue
		}
		remaining = append(remaining, lineage[i])
	}
	if deleted == nil {
		return nil, fmt.Errorf("%w: track %s is not in its lineage", model.ErrNotFound, deletedID)
	}
	if !deleted.IsLatest {
		return nil, nil
	}
	return Successor(remaining), nil
}

// Successor picks the row that should be latest: highest version number,
// ties broken by the most recent CreatedAt.
func Successor(remaining []model.Track) *model.Track {
	var best *model.Track
	for i := range remaining {
		t := &remaining[i]
		if best == nil ||
			t.VersionNumber > best.VersionNumber ||
			(t.VersionNumber == best.VersionNumber && t.CreatedAt.After(best.CreatedAt)) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// MaxVersion returns the highest version number in lineage, 0 when empty.
func MaxVersion(lineage []model.Track) int {
	highest := 0
	for _, t := range lineage {
		if t.VersionNumber > highest {
			highest = t.VersionNumber
		}
	}
	return highest
}

// CheckLineage verifies that a non-empty lineage has exactly one latest row
// and an empty lineage none.
func CheckLineage(lineage []model.Track) error {
	latest := 0
	for _, t := range lineage {
		if t.IsLatest {
			latest++
		}
	}
	want := 1
	if len(lineage) == 0 {
		want = 0
	}
	if latest != want {
		return fmt.Errorf("%w: %d rows, %d latest", model.ErrConsistencyViolation, len(lineage), latest)
	}
	return nil
}
