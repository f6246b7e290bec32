package theme

import "charm.land/lipgloss/v2"

// Styles contains the pre-built lipgloss styles shared by TUI screens.
type Styles struct {
	Base      lipgloss.Style
	Muted     lipgloss.Style
	Highlight lipgloss.Style
	Title     lipgloss.Style
	Label     lipgloss.Style
	Required  lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style

	ModalContainer lipgloss.Style
	InputBox       lipgloss.Style
	InputFocused   lipgloss.Style

	ButtonNormal   lipgloss.Style
	ButtonDisabled lipgloss.Style
	ButtonFocused  lipgloss.Style

	HintKey       lipgloss.Style
	HintDesc      lipgloss.Style
	HintSeparator lipgloss.Style
}

func (t *Theme) buildStyles() *Styles {
	button := lipgloss.NewStyle().Padding(0, 2).MarginLeft(1).MarginRight(1)
	input := lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())

	return &Styles{
		Base:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgBase)),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted)),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Tertiary)).Bold(true),
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Primary)).Bold(true),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgSubtle)).Bold(true),
		Required:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Error)),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)).Bold(true),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Error)).Bold(true),

		ModalContainer: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Tertiary)).
			Padding(1, 2),
		InputBox:     input.BorderForeground(lipgloss.Color(t.BorderDefault)),
		InputFocused: input.BorderForeground(lipgloss.Color(t.BorderFocused)),

		ButtonNormal: button.
			Foreground(lipgloss.Color(t.FgBase)).
			Background(lipgloss.Color(t.BgSurface0)),
		ButtonDisabled: button.
			Foreground(lipgloss.Color(t.BgOverlay)).
			Background(lipgloss.Color(t.BgMantle)),
		ButtonFocused: button.
			Foreground(lipgloss.Color(t.BgBase)).
			Background(lipgloss.Color(t.Tertiary)).
			Bold(true),

		HintKey:       lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgSubtle)).Bold(true),
		HintDesc:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted)),
		HintSeparator: lipgloss.NewStyle().Foreground(lipgloss.Color(t.BgSurface2)),
	}
}
