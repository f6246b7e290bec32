package wizard

import (
	"fmt"
	"slices"
)

// Field declares one input owned by a step.
type Field struct {
	Key         string
	Label       string
	Kind        FieldKind
	Required    bool
	Options     []string // Allowed options for select kinds
	Placeholder string
	Multiline   bool // Text fields only

	// Check validates a non-empty value. Nil means any value of the right kind
	// is accepted.
	Check func(Value) error
}

// Validation is the tagged result of validating a step against a draft.
type Validation struct {
	Missing  []string          // Required keys that are unset, in field order
	Messages map[string]string // Per-field messages for malformed values
}

// OK reports whether the step passed.
func (v Validation) OK() bool {
	return len(v.Missing) == 0 && len(v.Messages) == 0
}

// Fail records a message for key.
func (v *Validation) Fail(key, msg string) {
	if v.Messages == nil {
		v.Messages = make(map[string]string)
	}
	if _, exists := v.Messages[key]; !exists {
		v.Messages[key] = msg
	}
}

// Keys returns missing keys followed by keys with messages, without duplicates.
func (v Validation) Keys() []string {
	keys := slices.Clone(v.Missing)
	var rest []string
	for k := range v.Messages {
		if !slices.Contains(keys, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

// StepDefinition is the schema for one step of a flow.
type StepDefinition struct {
	ID     string
	Title  string
	Fields []Field

	// Validate is an optional cross-field predicate run after per-field checks.
	Validate func(Draft) Validation

	ordinal int
}

// Ordinal returns the 1-based position of the step in its flow. It is zero
// until the step has been registered with an Engine.
func (s StepDefinition) Ordinal() int { return s.ordinal }

// Field returns the owned field with the given key.
func (s StepDefinition) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Keys returns the keys of the owned fields in declaration order.
func (s StepDefinition) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Check evaluates the step's predicate against draft.
func (s StepDefinition) Check(draft Draft) Validation {
	var v Validation
	for _, f := range s.Fields {
		value, ok := draft.values[f.Key]
		if !ok || value.IsZero() {
			if f.Required {
				v.Missing = append(v.Missing, f.Key)
			}
			continue
		}
		if value.Kind() != f.Kind {
			v.Fail(f.Key, fmt.Sprintf("expected %s value, got %s", f.Kind, value.Kind()))
			continue
		}
		if msg := checkOptions(f, value); msg != "" {
			v.Fail(f.Key, msg)
			continue
		}
		if f.Check != nil {
			if err := f.Check(value); err != nil {
				v.Fail(f.Key, err.Error())
			}
		}
	}
	if s.Validate != nil {
		extra := s.Validate(draft)
		for _, k := range extra.Missing {
			if !slices.Contains(v.Missing, k) {
				v.Missing = append(v.Missing, k)
			}
		}
		for k, msg := range extra.Messages {
			v.Fail(k, msg)
		}
	}
	return v
}

// checkOptions rejects select values outside the declared option list.
func checkOptions(f Field, value Value) string {
	if len(f.Options) == 0 {
		return ""
	}
	switch tv := value.(type) {
	case Choice:
		if !slices.Contains(f.Options, string(tv)) {
			return fmt.Sprintf("%q is not one of the allowed options", string(tv))
		}
	case Selection:
		for _, o := range tv.Sorted() {
			if !slices.Contains(f.Options, o) {
				return fmt.Sprintf("%q is not one of the allowed options", o)
			}
		}
	}
	return ""
}
