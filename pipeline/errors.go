package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrCollaborator marks a failure of an external collaborator
	// (separation, pitch tracking, beat tracking). It is fatal to the
	// analysis.
	ErrCollaborator = errors.New("collaborator failed")

	// ErrNoAudio is returned when there is no signal to analyze
	ErrNoAudio = errors.New("no audio to analyze")
)

// collaboratorError wraps err with ErrCollaborator and the collaborator name
func collaboratorError(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCollaborator, name, err)
}
