package wizard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAtFirstStep is returned by GoPrevious on the first step.
	ErrAtFirstStep = errors.New("already at the first step")

	// ErrIncompleteFlow is returned by Submit before the terminal step is reached.
	ErrIncompleteFlow = errors.New("flow is incomplete: submit is only available on the last step")
)

// InvalidStepError is returned when forward navigation or submission is
// attempted while the active step's requirements are unmet.
type InvalidStepError struct {
	Step     int               // 1-based ordinal of the active step
	StepID   string            // Identifier of the active step
	Missing  []string          // Required keys that are unset
	Messages map[string]string // Per-field messages for malformed values

	// Terminal is set when GoNext was called on the last step. The step may be
	// valid; the caller should use Submit instead.
	Terminal bool
}

func (e *InvalidStepError) Error() string {
	if e.Terminal && len(e.Missing) == 0 && len(e.Messages) == 0 {
		return fmt.Sprintf("step %d (%s) is the last step: use submit", e.Step, e.StepID)
	}
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	for _, k := range e.Fields() {
		if msg, ok := e.Messages[k]; ok {
			parts = append(parts, k+": "+msg)
		}
	}
	return fmt.Sprintf("step %d (%s) is invalid: %s", e.Step, e.StepID, strings.Join(parts, "; "))
}

// Fields returns every key the error refers to: missing keys first, then keys
// with messages.
func (e *InvalidStepError) Fields() []string {
	return Validation{Missing: e.Missing, Messages: e.Messages}.Keys()
}

func newInvalidStepError(step StepDefinition, v Validation) *InvalidStepError {
	return &InvalidStepError{
		Step:     step.ordinal,
		StepID:   step.ID,
		Missing:  v.Missing,
		Messages: v.Messages,
	}
}

// IsInvalidStep reports whether err is an *InvalidStepError and returns it.
func IsInvalidStep(err error) (*InvalidStepError, bool) {
	var ise *InvalidStepError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
