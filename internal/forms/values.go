package forms

import (
	"strings"

	"github.com/mark3labs/carepath/internal/wizard"
)

// SetRaw writes a raw string value into the engine, converted to the kind the
// flow declares for key. Multi-select values are comma-separated and each
// option is toggled on; options already selected stay selected. Keys the flow
// does not declare are stored as text.
func SetRaw(e *wizard.Engine, key, raw string) {
	field, _, ok := e.Field(key)
	if !ok {
		e.SetText(key, raw)
		return
	}
	switch field.Kind {
	case wizard.KindSingleSelect:
		e.Choose(key, strings.TrimSpace(raw))
	case wizard.KindMultiSelect:
		current := e.Draft().Selection(key)
		for _, opt := range SplitOptions(raw) {
			if !current.Has(opt) {
				e.ToggleMultiSelect(key, opt)
				current = current.Toggle(opt)
			}
		}
	default:
		e.SetText(key, raw)
	}
}

// SplitOptions splits a comma-separated option list, dropping blanks.
func SplitOptions(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
