package model

import "errors"

// Error taxonomy shared by repositories, core services and the HTTP layer.
var (
	ErrNotFound   = errors.New("not found")
	ErrDenied     = errors.New("access denied")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")

	// ErrVersionConflict is returned when an upload's version number does not
	// exceed every version already in its lineage.
	ErrVersionConflict = errors.New("version number must exceed the lineage's current versions")
	ErrAlreadyMember   = errors.New("user is already a member of this project")

	// ErrConsistencyViolation means a lineage would be left with zero or
	// several latest rows. The enclosing transaction is rolled back.
	ErrConsistencyViolation = errors.New("lineage consistency violation")

	// ErrTransient marks store failures the caller may retry.
	ErrTransient = errors.New("store temporarily unavailable")
)
