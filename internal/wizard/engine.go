// Package wizard implements a multi-step form engine: an ordered sequence of
// steps over a shared draft record, with forward navigation gated on the
// active step's validation and unguarded backward navigation.
//
// An Engine is owned by a single host and is not safe for concurrent use.
package wizard

import (
	"errors"
	"fmt"
	"time"
)

// Op names an engine operation in observer events.
type Op string

const (
	OpSetField Op = "set_field"
	OpToggle   Op = "toggle"
	OpNext     Op = "next"
	OpPrevious Op = "previous"
	OpSubmit   Op = "submit"
	OpCancel   Op = "cancel"
)

// Event describes a completed engine operation.
type Event struct {
	Flow string
	Op   Op
	Step int   // Active step before the operation
	Key  string // Field key for set_field and toggle
	Err  error
}

// Observer receives an Event after every operation.
type Observer func(Event)

// Engine sequences the steps of one flow over a shared draft.
type Engine struct {
	flow    string
	steps   []StepDefinition
	current int // 1-based
	draft   Draft

	now       func() time.Time
	reference func(flow string) string
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp receipts.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithReferenceFunc sets the generator for receipt reference identifiers.
func WithReferenceFunc(fn func(flow string) string) Option {
	return func(e *Engine) { e.reference = fn }
}

// WithReferencePrefix generates references as PREFIX-<8 hex>.
func WithReferencePrefix(prefix string) Option {
	return func(e *Engine) { e.reference = func(string) string { return NewReference(prefix) } }
}

// WithObserver registers fn to receive operation events.
func WithObserver(fn Observer) Option {
	return func(e *Engine) { e.observer = fn }
}

// New creates an engine for flow positioned on step 1 with an empty draft.
func New(flow string, steps []StepDefinition, opts ...Option) (*Engine, error) {
	if len(steps) == 0 {
		return nil, errors.New("flow must have at least one step")
	}

	ids := make(map[string]struct{}, len(steps))
	keys := make(map[string]string)
	owned := make([]StepDefinition, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			return nil, fmt.Errorf("step %d has no id", i+1)
		}
		if _, dup := ids[step.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", step.ID)
		}
		ids[step.ID] = struct{}{}

		for _, f := range step.Fields {
			if f.Key == "" {
				return nil, fmt.Errorf("step %q has a field with no key", step.ID)
			}
			if other, dup := keys[f.Key]; dup {
				return nil, fmt.Errorf("field %q declared by steps %q and %q", f.Key, other, step.ID)
			}
			keys[f.Key] = step.ID

			switch f.Kind {
			case KindText:
			case KindSingleSelect, KindMultiSelect:
				if len(f.Options) == 0 {
					return nil, fmt.Errorf("field %q is %s but declares no options", f.Key, f.Kind)
				}
			default:
				return nil, fmt.Errorf("field %q has unknown kind %d", f.Key, f.Kind)
			}
		}

		step.ordinal = i + 1
		owned[i] = step
	}

	e := &Engine{
		flow:    flow,
		steps:   owned,
		current: 1,
		draft:   NewDraft(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reference == nil {
		e.reference = func(flow string) string { return NewReference(DefaultPrefix(flow)) }
	}
	return e, nil
}

// Flow returns the flow name.
func (e *Engine) Flow() string { return e.flow }

// Steps returns the step definitions in order.
func (e *Engine) Steps() []StepDefinition {
	out := make([]StepDefinition, len(e.steps))
	copy(out, e.steps)
	return out
}

// Step returns the step at 1-based index i.
func (e *Engine) Step(i int) (StepDefinition, bool) {
	if i < 1 || i > len(e.steps) {
		return StepDefinition{}, false
	}
	return e.steps[i-1], true
}

// Current returns the active step.
func (e *Engine) Current() StepDefinition { return e.steps[e.current-1] }

// Progress returns the active step index and the total number of steps.
func (e *Engine) Progress() (current, total int) { return e.current, len(e.steps) }

// Fraction returns current/total.
func (e *Engine) Fraction() float64 { return float64(e.current) / float64(len(e.steps)) }

// IsTerminal reports whether the active step is the last one.
func (e *Engine) IsTerminal() bool { return e.current == len(e.steps) }

// Draft returns a copy of the draft record.
func (e *Engine) Draft() Draft { return e.draft.Clone() }

// Field looks up a declared field by key across all steps.
func (e *Engine) Field(key string) (Field, int, bool) {
	for _, s := range e.steps {
		if f, ok := s.Field(key); ok {
			return f, s.ordinal, true
		}
	}
	return Field{}, 0, false
}

// ValidateStep evaluates step i against the current draft. Out-of-range
// indexes yield an empty (passing) validation.
func (e *Engine) ValidateStep(i int) Validation {
	step, ok := e.Step(i)
	if !ok {
		return Validation{}
	}
	return step.Check(e.draft)
}

// IsStepValid reports whether step i's predicate holds for the current draft.
func (e *Engine) IsStepValid(i int) bool {
	if _, ok := e.Step(i); !ok {
		return false
	}
	return e.ValidateStep(i).OK()
}

// SetField merges value into the draft under key. It never advances the step.
func (e *Engine) SetField(key string, value Value) {
	e.draft.Set(key, value)
	e.emit(Event{Op: OpSetField, Key: key})
}

// SetText is shorthand for SetField(key, Text(s)).
func (e *Engine) SetText(key, s string) { e.SetField(key, Text(s)) }

// Choose is shorthand for SetField(key, Choice(option)).
func (e *Engine) Choose(key, option string) { e.SetField(key, Choice(option)) }

// ToggleMultiSelect flips option's membership in the selection stored under
// key. Applying it twice with the same arguments restores the original set.
func (e *Engine) ToggleMultiSelect(key, option string) {
	e.draft.Set(key, e.draft.Selection(key).Toggle(option))
	e.emit(Event{Op: OpToggle, Key: key})
}

// GoNext advances to the next step when the active step validates.
// It returns *InvalidStepError and leaves the cursor unchanged otherwise,
// including on the last step where Submit must be used.
func (e *Engine) GoNext() error {
	step := e.Current()
	v := step.Check(e.draft)
	var err error
	switch {
	case !v.OK():
		err = newInvalidStepError(step, v)
	case e.IsTerminal():
		ise := newInvalidStepError(step, v)
		ise.Terminal = true
		err = ise
	default:
		e.current++
	}
	e.emit(Event{Op: OpNext, Step: step.ordinal, Err: err})
	return err
}

// GoPrevious moves back one step. The draft is never touched.
func (e *Engine) GoPrevious() error {
	from := e.current
	var err error
	if e.current <= 1 {
		err = ErrAtFirstStep
	} else {
		e.current--
	}
	e.emit(Event{Op: OpPrevious, Step: from, Err: err})
	return err
}

// Submit finalizes the flow from the last step. On success the engine resets
// to step 1 with an empty draft and the returned receipt holds the finalized
// draft.
func (e *Engine) Submit() (Receipt, error) {
	step := e.Current()
	if !e.IsTerminal() {
		e.emit(Event{Op: OpSubmit, Step: step.ordinal, Err: ErrIncompleteFlow})
		return Receipt{}, ErrIncompleteFlow
	}
	if v := step.Check(e.draft); !v.OK() {
		err := newInvalidStepError(step, v)
		e.emit(Event{Op: OpSubmit, Step: step.ordinal, Err: err})
		return Receipt{}, err
	}

	receipt := Receipt{
		Flow:        e.flow,
		Reference:   e.reference(e.flow),
		SubmittedAt: e.now(),
		Fields:      e.draft.Clone(),
	}
	e.reset()
	e.emit(Event{Op: OpSubmit, Step: step.ordinal})
	return receipt, nil
}

// Cancel abandons the flow: the draft is cleared and the cursor returns to 1.
func (e *Engine) Cancel() {
	from := e.current
	e.reset()
	e.emit(Event{Op: OpCancel, Step: from})
}

func (e *Engine) reset() {
	e.current = 1
	e.draft = NewDraft()
}

func (e *Engine) emit(ev Event) {
	if e.observer == nil {
		return
	}
	ev.Flow = e.flow
	if ev.Step == 0 {
		ev.Step = e.current
	}
	e.observer(ev)
}
