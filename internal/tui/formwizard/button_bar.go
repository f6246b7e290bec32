package formwizard

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mark3labs/carepath/internal/tui/theme"
)

// ButtonState represents the visual state of a button.
type ButtonState int

const (
	ButtonNormal   ButtonState = iota // Normal state (enabled)
	ButtonDisabled                    // Disabled state (grayed out)
	ButtonFocused                     // Focused/highlighted state
)

// ButtonAction identifies what a button does when activated.
type ButtonAction int

const (
	ActionCancel ButtonAction = iota
	ActionBack
	ActionNext
	ActionSubmit
)

// Button represents a single button in the button bar.
type Button struct {
	Label  string
	Action ButtonAction
	State  ButtonState
}

// ButtonBar manages a row of buttons and which of them has focus.
// A disabled button can still be focused and activated; activation of a
// disabled Next or Submit surfaces the step's validation errors.
type ButtonBar struct {
	buttons  []Button
	focused  int // -1 when the bar does not have focus
	width    int
	disabled map[int]bool
}

// NewButtonBar creates a new button bar with the given buttons.
func NewButtonBar(buttons []Button) *ButtonBar {
	b := &ButtonBar{
		buttons:  buttons,
		focused:  -1,
		width:    60,
		disabled: make(map[int]bool),
	}
	for i, btn := range buttons {
		if btn.State == ButtonDisabled {
			b.disabled[i] = true
		}
	}
	return b
}

// SetWidth updates the width for the button bar.
func (b *ButtonBar) SetWidth(width int) {
	b.width = width
}

// Len returns the number of buttons.
func (b *ButtonBar) Len() int { return len(b.buttons) }

// FocusFirst focuses the first button.
func (b *ButtonBar) FocusFirst() { b.focus(0) }

// FocusLast focuses the last button.
func (b *ButtonBar) FocusLast() { b.focus(len(b.buttons) - 1) }

// FocusAction focuses the button with the given action, if present.
func (b *ButtonBar) FocusAction(a ButtonAction) bool {
	for i, btn := range b.buttons {
		if btn.Action == a {
			b.focus(i)
			return true
		}
	}
	return false
}

// FocusNext moves focus right. It returns false when focus falls off the end.
func (b *ButtonBar) FocusNext() bool {
	if b.focused+1 >= len(b.buttons) {
		b.Blur()
		return false
	}
	b.focus(b.focused + 1)
	return true
}

// FocusPrev moves focus left. It returns false when focus falls off the start.
func (b *ButtonBar) FocusPrev() bool {
	if b.focused <= 0 {
		b.Blur()
		return false
	}
	b.focus(b.focused - 1)
	return true
}

// Blur removes focus from the bar.
func (b *ButtonBar) Blur() { b.focus(-1) }

// IsFocused reports whether any button has focus.
func (b *ButtonBar) IsFocused() bool { return b.focused >= 0 }

// Focused returns the focused button.
func (b *ButtonBar) Focused() (Button, bool) {
	if b.focused < 0 || b.focused >= len(b.buttons) {
		return Button{}, false
	}
	return b.buttons[b.focused], true
}

func (b *ButtonBar) focus(idx int) {
	if idx >= len(b.buttons) {
		idx = -1
	}
	b.focused = idx
	for i := range b.buttons {
		switch {
		case i == idx:
			b.buttons[i].State = ButtonFocused
		case b.disabled[i]:
			b.buttons[i].State = ButtonDisabled
		default:
			b.buttons[i].State = ButtonNormal
		}
	}
}

// Render renders the button bar centered in its width.
func (b *ButtonBar) Render() string {
	if len(b.buttons) == 0 {
		return ""
	}
	s := theme.Current().S()

	rendered := make([]string, 0, len(b.buttons))
	for _, btn := range b.buttons {
		switch btn.State {
		case ButtonDisabled:
			rendered = append(rendered, s.ButtonDisabled.Render(btn.Label))
		case ButtonFocused:
			rendered = append(rendered, s.ButtonFocused.Render(btn.Label))
		default:
			rendered = append(rendered, s.ButtonNormal.Render(btn.Label))
		}
	}
	return lipgloss.Place(b.width, 1, lipgloss.Center, lipgloss.Center, strings.Join(rendered, ""))
}

// buttonsFor returns the button set for a step. The first step offers
// Cancel instead of Back and the last step offers Submit instead of Next.
func buttonsFor(step, total int, valid bool) []Button {
	buttons := make([]Button, 0, 2)
	if step <= 1 {
		buttons = append(buttons, Button{Label: "Cancel", Action: ActionCancel})
	} else {
		buttons = append(buttons, Button{Label: "← Back", Action: ActionBack})
	}

	forward := Button{Label: "Next →", Action: ActionNext}
	if step >= total {
		forward = Button{Label: "Submit", Action: ActionSubmit}
	}
	if !valid {
		forward.State = ButtonDisabled
	}
	return append(buttons, forward)
}
