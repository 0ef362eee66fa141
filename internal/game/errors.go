package game

import (
	"github.com/myrjola/pinearchives/internal/errors"
)

var (
	// ErrNoSavedSession is returned by ResumeSession when there is nothing to resume.
	ErrNoSavedSession = errors.NewSentinel("no saved session")
	// ErrCorruptSave is returned by ResumeSession when the saved case file cannot be restored. It also matches
	// ErrNoSavedSession.
	ErrCorruptSave     = errors.NewSentinel("corrupt save")
	ErrInvalidPhase    = errors.NewSentinel("invalid phase")
	ErrDeadlinePassed  = errors.NewSentinel("deadline passed")
	ErrInvalidValue    = errors.NewSentinel("invalid value")
	ErrUnknownDocument = errors.NewSentinel("unknown document")
	ErrDocumentLocked  = errors.NewSentinel("document locked")
)

type corruptSaveError struct {
	cause error
}

func (e corruptSaveError) Error() string {
	return "corrupt save: " + e.cause.Error()
}

func (e corruptSaveError) Unwrap() error {
	return e.cause
}

func (e corruptSaveError) Is(target error) bool {
	return target == ErrCorruptSave || target == ErrNoSavedSession //nolint:errorlint // sentinel identity
}
