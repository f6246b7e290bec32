package forms

import (
	"fmt"
	"strings"

	"github.com/mark3labs/carepath/internal/wizard"
)

// Summary renders draft as a markdown review document, one section per step.
// Unset fields are shown as "—".
func (f *Flow) Summary(draft wizard.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", f.Title)
	for i, step := range f.steps {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, step.Title)
		for _, field := range step.Fields {
			fmt.Fprintf(&b, "- **%s**: %s\n", field.Label, displayValue(field, draft))
		}
	}
	return b.String()
}

// ReceiptSummary renders a submitted receipt.
func (f *Flow) ReceiptSummary(r wizard.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Reference:** `%s`  \n", r.Reference)
	fmt.Fprintf(&b, "**Submitted:** %s\n\n", r.SubmittedAt.Format("2006-01-02 15:04"))
	b.WriteString(f.Summary(r.Fields))
	return b.String()
}

func displayValue(field wizard.Field, draft wizard.Draft) string {
	v, ok := draft.Get(field.Key)
	if !ok || v.IsZero() {
		return "—"
	}
	if sel, ok := v.(wizard.Selection); ok {
		return strings.Join(sel.Ordered(field.Options), ", ")
	}
	s := strings.TrimSpace(v.String())
	if field.Multiline {
		return "\n\n  > " + strings.ReplaceAll(s, "\n", "\n  > ")
	}
	return s
}
