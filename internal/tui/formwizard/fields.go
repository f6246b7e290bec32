package formwizard

import (
	"slices"
	"strings"

	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/mark3labs/carepath/internal/tui/theme"
	"github.com/mark3labs/carepath/internal/wizard"
)

// fieldEditor edits one field of the active step. Edits are written to the
// engine as they happen, so the draft is always the source of truth.
type fieldEditor interface {
	Field() wizard.Field
	Focus() tea.Cmd
	Blur()
	// Load resets the editor from the draft.
	Load(wizard.Draft)
	// Update handles msg and reports whether the draft changed.
	Update(msg tea.Msg, e *wizard.Engine) (tea.Cmd, bool)
	SetWidth(int)
	View(focused bool) string
}

// newEditor returns the editor for f's kind.
func newEditor(f wizard.Field) fieldEditor {
	switch f.Kind {
	case wizard.KindSingleSelect:
		return &choiceEditor{field: f}
	case wizard.KindMultiSelect:
		return &multiEditor{field: f, selected: wizard.NewSelection()}
	default:
		return newTextEditor(f)
	}
}

// textEditor wraps a textinput, or a textarea for multiline fields.
type textEditor struct {
	field wizard.Field
	input textinput.Model
	area  textarea.Model
}

func newTextEditor(f wizard.Field) *textEditor {
	t := &textEditor{field: f}
	if f.Multiline {
		ta := textarea.New()
		ta.Placeholder = f.Placeholder
		ta.ShowLineNumbers = false
		ta.CharLimit = 2000
		ta.SetHeight(4)
		t.area = ta
	} else {
		ti := textinput.New()
		ti.Placeholder = f.Placeholder
		ti.CharLimit = 200
		t.input = ti
	}
	return t
}

func (t *textEditor) Field() wizard.Field { return t.field }

func (t *textEditor) Focus() tea.Cmd {
	if t.field.Multiline {
		return t.area.Focus()
	}
	return t.input.Focus()
}

func (t *textEditor) Blur() {
	if t.field.Multiline {
		t.area.Blur()
		return
	}
	t.input.Blur()
}

func (t *textEditor) Load(d wizard.Draft) { t.setValue(d.Text(t.field.Key)) }

func (t *textEditor) setValue(s string) {
	if t.field.Multiline {
		t.area.SetValue(s)
		return
	}
	t.input.SetValue(s)
}

func (t *textEditor) value() string {
	if t.field.Multiline {
		return t.area.Value()
	}
	return t.input.Value()
}

func (t *textEditor) Update(msg tea.Msg, e *wizard.Engine) (tea.Cmd, bool) {
	before := t.value()
	var cmd tea.Cmd
	if t.field.Multiline {
		t.area, cmd = t.area.Update(msg)
	} else {
		t.input, cmd = t.input.Update(msg)
	}
	after := t.value()
	if after == before {
		return cmd, false
	}
	e.SetText(t.field.Key, after)
	return cmd, true
}

// SetContent replaces the text, as when returning from $EDITOR.
func (t *textEditor) SetContent(s string, e *wizard.Engine) {
	t.setValue(s)
	e.SetText(t.field.Key, s)
}

func (t *textEditor) SetWidth(w int) {
	if t.field.Multiline {
		t.area.SetWidth(w)
		return
	}
	t.input.SetWidth(w)
}

func (t *textEditor) View(focused bool) string {
	s := theme.Current().S()
	box := s.InputBox
	if focused {
		box = s.InputFocused
	}
	if t.field.Multiline {
		return box.Render(t.area.View())
	}
	return box.Render(t.input.View())
}

// choiceEditor is a vertical list with one chosen option.
type choiceEditor struct {
	field  wizard.Field
	cursor int
	chosen string
}

func (c *choiceEditor) Field() wizard.Field { return c.field }
func (c *choiceEditor) Focus() tea.Cmd     { return nil }
func (c *choiceEditor) Blur()              {}
func (c *choiceEditor) SetWidth(int)       {}

func (c *choiceEditor) Load(d wizard.Draft) {
	c.chosen = d.Choice(c.field.Key)
	c.cursor = max(slices.Index(c.field.Options, c.chosen), 0)
}

func (c *choiceEditor) Update(msg tea.Msg, e *wizard.Engine) (tea.Cmd, bool) {
	key, ok := msg.(tea.KeyPressMsg)
	if !ok || len(c.field.Options) == 0 {
		return nil, false
	}
	switch key.String() {
	case "up", "k":
		c.cursor = max(c.cursor-1, 0)
	case "down", "j":
		c.cursor = min(c.cursor+1, len(c.field.Options)-1)
	case "space", "enter":
		option := c.field.Options[c.cursor]
		if option == c.chosen {
			return nil, false
		}
		c.chosen = option
		e.Choose(c.field.Key, option)
		return nil, true
	}
	return nil, false
}

func (c *choiceEditor) View(focused bool) string {
	s := theme.Current().S()
	lines := make([]string, 0, len(c.field.Options))
	for i, opt := range c.field.Options {
		mark := "( )"
		if opt == c.chosen {
			mark = "(•)"
		}
		line := mark + " " + opt
		switch {
		case focused && i == c.cursor:
			lines = append(lines, s.Highlight.Render("> "+line))
		case opt == c.chosen:
			lines = append(lines, s.Base.Render("  "+line))
		default:
			lines = append(lines, s.Muted.Render("  "+line))
		}
	}
	return strings.Join(lines, "\n")
}

// multiEditor is a row of checkable chips.
type multiEditor struct {
	field    wizard.Field
	cursor   int
	selected wizard.Selection
	width    int
}

func (m *multiEditor) Field() wizard.Field { return m.field }
func (m *multiEditor) Focus() tea.Cmd     { return nil }
func (m *multiEditor) Blur()              {}
func (m *multiEditor) SetWidth(w int)     { m.width = w }

func (m *multiEditor) Load(d wizard.Draft) {
	m.selected = d.Selection(m.field.Key)
}

func (m *multiEditor) Update(msg tea.Msg, e *wizard.Engine) (tea.Cmd, bool) {
	key, ok := msg.(tea.KeyPressMsg)
	if !ok || len(m.field.Options) == 0 {
		return nil, false
	}
	switch key.String() {
	case "left", "up", "h", "k":
		m.cursor = max(m.cursor-1, 0)
	case "right", "down", "l", "j":
		m.cursor = min(m.cursor+1, len(m.field.Options)-1)
	case "space", "enter", "x":
		option := m.field.Options[m.cursor]
		m.selected = m.selected.Toggle(option)
		e.ToggleMultiSelect(m.field.Key, option)
		return nil, true
	}
	return nil, false
}

func (m *multiEditor) View(focused bool) string {
	s := theme.Current().S()
	chips := make([]string, 0, len(m.field.Options))
	for i, opt := range m.field.Options {
		mark := "[ ]"
		if m.selected.Has(opt) {
			mark = "[x]"
		}
		chip := mark + " " + opt
		switch {
		case focused && i == m.cursor:
			chips = append(chips, s.Highlight.Render(chip))
		case m.selected.Has(opt):
			chips = append(chips, s.Base.Render(chip))
		default:
			chips = append(chips, s.Muted.Render(chip))
		}
	}
	return wrapChips(chips, m.width)
}

// wrapChips joins chips with two spaces, starting a new row when a chip would
// overflow width. A zero width keeps a single row.
func wrapChips(chips []string, width int) string {
	var rows []string
	var row string
	for _, chip := range chips {
		switch {
		case row == "":
			row = chip
		case width > 0 && lipgloss.Width(row)+2+lipgloss.Width(chip) > width:
			rows = append(rows, row)
			row = chip
		default:
			row += "  " + chip
		}
	}
	if row != "" {
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}
