package wizard

import (
	"sort"
	"strings"
)

// FieldKind is the declared kind of a field.
type FieldKind int

const (
	KindText         FieldKind = iota // Free text
	KindSingleSelect                  // One option out of a fixed list
	KindMultiSelect                   // Any subset of a fixed list
)

// String returns the schema name of the kind.
func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindSingleSelect:
		return "single_select"
	case KindMultiSelect:
		return "multi_select"
	default:
		return "unknown"
	}
}

// ParseFieldKind parses a schema kind name.
func ParseFieldKind(s string) (FieldKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return KindText, true
	case "single_select", "select", "choice":
		return KindSingleSelect, true
	case "multi_select", "multi", "chips":
		return KindMultiSelect, true
	default:
		return KindText, false
	}
}

// Value is a field value held in a Draft.
// Implementations are Text, Choice and Selection.
type Value interface {
	// Kind reports which field kind the value belongs to.
	Kind() FieldKind
	// IsZero reports whether the value counts as unset.
	IsZero() bool
	// String renders the value for display.
	String() string

	clone() Value
}

// Text is a free-text value. Surrounding whitespace does not count as content.
type Text string

func (t Text) Kind() FieldKind { return KindText }
func (t Text) IsZero() bool { return strings.TrimSpace(string(t)) == "" }
func (t Text) String() string { return string(t) }
func (t Text) clone() Value { return t }
func (t Text) Trimmed() string { return strings.TrimSpace(string(t)) }

// Choice is a single-select value.
type Choice string

func (c Choice) Kind() FieldKind { return KindSingleSelect }
func (c Choice) IsZero() bool { return c == "" }
func (c Choice) String() string { return string(c) }
func (c Choice) clone() Value { return c }

// Selection is a multi-select value: a set of options.
type Selection struct {
	set map[string]struct{}
}

// NewSelection builds a selection containing the given options.
func NewSelection(options ...string) Selection {
	s := Selection{set: make(map[string]struct{}, len(options))}
	for _, o := range options {
		s.set[o] = struct{}{}
	}
	return s
}

func (s Selection) Kind() FieldKind { return KindMultiSelect }
func (s Selection) IsZero() bool { return len(s.set) == 0 }

// Has reports whether option is selected.
func (s Selection) Has(option string) bool {
	_, ok := s.set[option]
	return ok
}

// Len returns the number of selected options.
func (s Selection) Len() int { return len(s.set) }

// Sorted returns the selected options in lexical order.
func (s Selection) Sorted() []string {
	out := make([]string, 0, len(s.set))
	for o := range s.set {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// Ordered returns the selected options in the order they appear in options,
// followed by any selected values not in options (sorted).
func (s Selection) Ordered(options []string) []string {
	out := make([]string, 0, len(s.set))
	seen := make(map[string]struct{}, len(s.set))
	for _, o := range options {
		if s.Has(o) {
			out = append(out, o)
			seen[o] = struct{}{}
		}
	}
	for _, o := range s.Sorted() {
		if _, ok := seen[o]; !ok {
			out = append(out, o)
		}
	}
	return out
}

// Toggle returns a copy of the selection with option's membership flipped.
func (s Selection) Toggle(option string) Selection {
	next := s.clone().(Selection)
	if next.Has(option) {
		delete(next.set, option)
	} else {
		next.set[option] = struct{}{}
	}
	return next
}

// Equal reports whether both selections contain the same options.
func (s Selection) Equal(other Selection) bool {
	if len(s.set) != len(other.set) {
		return false
	}
	for o := range s.set {
		if !other.Has(o) {
			return false
		}
	}
	return true
}

func (s Selection) String() string { return strings.Join(s.Sorted(), ", ") }

func (s Selection) clone() Value {
	next := Selection{set: make(map[string]struct{}, len(s.set))}
	for o := range s.set {
		next.set[o] = struct{}{}
	}
	return next
}
