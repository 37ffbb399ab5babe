package sequencer

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinels matchable with errors.Is against the typed errors below.
var (
	ErrGuideNotFound    = errors.New("guide not found")
	ErrGuideNotLoaded   = errors.New("no guide loaded")
	ErrInvalidStepIndex = errors.New("invalid step index")
	ErrStepNotFound     = errors.New("step not found")
	ErrAtFirstStep      = errors.New("already at first step")
	ErrNoActiveStep     = errors.New("no active step")
)

// GuideNotFoundError is returned by LoadGuide for an unknown guide id.
type GuideNotFoundError struct {
	GuideID string
}

func (e *GuideNotFoundError) Error() string {
	return fmt.Sprintf("guide %q not found", e.GuideID)
}

// Is implements errors.Is matching.
func (e *GuideNotFoundError) Is(target error) bool { return target == ErrGuideNotFound }

// GuideNotLoadedError is returned by operations that need a loaded guide.
type GuideNotLoadedError struct {
	Op string
}

func (e *GuideNotLoadedError) Error() string {
	return fmt.Sprintf("%s: no guide loaded", e.Op)
}

// Is implements errors.Is matching.
func (e *GuideNotLoadedError) Is(target error) bool { return target == ErrGuideNotLoaded }

// InvalidStepIndexError is returned when an index is outside [0, Count).
type InvalidStepIndexError struct {
	Index int
	Count int
}

func (e *InvalidStepIndexError) Error() string {
	return fmt.Sprintf("step index %d out of range [0,%d)", e.Index, e.Count)
}

// Is implements errors.Is matching.
func (e *InvalidStepIndexError) Is(target error) bool { return target == ErrInvalidStepIndex }

// StepNotFoundError is returned when no step in the runtime has the id.
type StepNotFoundError struct {
	GuideID string
	StepID  string
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("step %q not found in guide %q", e.StepID, e.GuideID)
}

// Is implements errors.Is matching.
func (e *StepNotFoundError) Is(target error) bool { return target == ErrStepNotFound }

// AtFirstStepError is returned by RollbackOneStep when step 0 is current.
type AtFirstStepError struct {
	GuideID string
}

func (e *AtFirstStepError) Error() string {
	return fmt.Sprintf("guide %q: already at first step", e.GuideID)
}

// Is implements errors.Is matching.
func (e *AtFirstStepError) Is(target error) bool { return target == ErrAtFirstStep }

// NoActiveStepError is returned by RollbackOneStep when no step is current
// (the guide finished or is empty).
type NoActiveStepError struct {
	GuideID string
}

func (e *NoActiveStepError) Error() string {
	return fmt.Sprintf("guide %q: no active step", e.GuideID)
}

// Is implements errors.Is matching.
func (e *NoActiveStepError) Is(target error) bool { return target == ErrNoActiveStep }
