package core

import (
	"errors"
	"fmt"

	"github.com/sharatg/novel-dev/internal/story"
)

// ErrNoActiveProject is returned by operations that need a durable context
// when none exists yet.
var ErrNoActiveProject = story.ErrNoProject

// ErrGeneratorUnavailable indicates the model runtime is unreachable or does
// not serve the configured model.
var ErrGeneratorUnavailable = errors.New("generator unavailable")

// ErrStoryComplete indicates every outlined chapter has been finalized.
var ErrStoryComplete = errors.New("story is complete")

// ErrOutlineLocked rejects structural outline revision once any chapter has
// been finalized; remapping completed prose onto a reshaped outline is
// undefined.
var ErrOutlineLocked = errors.New("outline is locked: chapters have been finalized")

// PreconditionError is a local, immediate rejection raised before any
// generation call is made.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// IsPrecondition reports whether err is a fail-fast precondition violation.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
