package formwizard

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	"charm.land/lipgloss/v2"
	"github.com/mark3labs/carepath/internal/tui/theme"
	"github.com/mark3labs/carepath/internal/wizard"
)

// stepProgress renders "Step n of N", a bar and one marker per step.
type stepProgress struct {
	bar   progress.Model
	width int
}

func newStepProgress(width int) stepProgress {
	t := theme.Current()
	bar := progress.New(
		progress.WithColors(lipgloss.Color(t.Primary), lipgloss.Color(t.Tertiary)),
		progress.WithoutPercentage(),
		progress.WithWidth(width),
	)
	return stepProgress{bar: bar, width: width}
}

// progressWidth fits the bar inside the modal on narrow terminals.
func progressWidth(termWidth int) int {
	return max(10, min(modalContentWidth, termWidth-(modalWidth-modalContentWidth)))
}

func (p *stepProgress) SetWidth(width int) {
	p.width = width
	p.bar.SetWidth(width)
}

// View renders the indicator for the given 1-based position.
func (p *stepProgress) View(steps []wizard.StepDefinition, current int) string {
	s := theme.Current().S()
	total := len(steps)

	header := s.Muted.Render(fmt.Sprintf("Step %d of %d", current, total))
	bar := p.bar.ViewAs(float64(current) / float64(total))

	markers := make([]string, 0, total)
	for _, step := range steps {
		label := step.Title
		if label == "" {
			label = step.ID
		}
		switch {
		case step.Ordinal() < current:
			markers = append(markers, s.Success.Render("✓ "+label))
		case step.Ordinal() == current:
			markers = append(markers, s.Highlight.Render("● "+label))
		default:
			markers = append(markers, s.Muted.Render("○ "+label))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		bar,
		strings.Join(markers, s.Muted.Render(" ─ ")),
	)
}
