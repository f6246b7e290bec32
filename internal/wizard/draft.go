package wizard

import "sort"

// Draft is the record of field values accumulated across all steps of a flow.
// The last write per key wins. A Draft returned by the engine is a copy, so
// mutating it never affects engine state.
type Draft struct {
	values map[string]Value
}

// NewDraft returns an empty draft.
func NewDraft() Draft {
	return Draft{values: make(map[string]Value)}
}

// Set stores value under key, replacing any previous value.
// A nil value removes the key.
func (d *Draft) Set(key string, value Value) {
	if d.values == nil {
		d.values = make(map[string]Value)
	}
	if value == nil {
		delete(d.values, key)
		return
	}
	d.values[key] = value.clone()
}

// Get returns the value stored under key.
func (d Draft) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	if !ok {
		return nil, false
	}
	return v.clone(), true
}

// Has reports whether key holds a non-empty value.
func (d Draft) Has(key string) bool {
	v, ok := d.values[key]
	return ok && !v.IsZero()
}

// Text returns the text stored under key, or "" if the key is unset or holds
// another kind.
func (d Draft) Text(key string) string {
	if t, ok := d.values[key].(Text); ok {
		return t.Trimmed()
	}
	return ""
}

// Choice returns the option stored under key, or "".
func (d Draft) Choice(key string) string {
	if c, ok := d.values[key].(Choice); ok {
		return string(c)
	}
	return ""
}

// Selection returns the selection stored under key. Unset keys and other kinds
// yield an empty selection.
func (d Draft) Selection(key string) Selection {
	if s, ok := d.values[key].(Selection); ok {
		return s.clone().(Selection)
	}
	return NewSelection()
}

// Keys returns all keys in lexical order.
func (d Draft) Keys() []string {
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (d Draft) Len() int { return len(d.values) }

// IsEmpty reports whether the draft holds no values.
func (d Draft) IsEmpty() bool { return len(d.values) == 0 }

// Clone returns a deep copy.
func (d Draft) Clone() Draft {
	next := Draft{values: make(map[string]Value, len(d.values))}
	for k, v := range d.values {
		next.values[k] = v.clone()
	}
	return next
}

// Equal reports whether both drafts hold the same keys and values.
func (d Draft) Equal(other Draft) bool {
	if len(d.values) != len(other.values) {
		return false
	}
	for k, v := range d.values {
		ov, ok := other.values[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// Map renders the draft as plain Go values: strings for Text and Choice,
// sorted string slices for Selection. Used for JSON payloads.
func (d Draft) Map() map[string]any {
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		switch tv := v.(type) {
		case Selection:
			out[k] = tv.Sorted()
		default:
			out[k] = v.String()
		}
	}
	return out
}

func valuesEqual(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	if as, ok := a.(Selection); ok {
		return as.Equal(b.(Selection))
	}
	return a.String() == b.String()
}
