package formwizard

import (
	"os"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/glamour/v2"
	"github.com/charmbracelet/x/editor"
	"github.com/mark3labs/carepath/internal/logger"
)

const reviewHeight = 8

// newReviewViewport creates the scrollable summary shown on the last step.
func newReviewViewport(width int) viewport.Model {
	vp := viewport.New(
		viewport.WithWidth(width),
		viewport.WithHeight(reviewHeight),
	)
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3
	return vp
}

// renderMarkdown renders content with glamour, falling back to the raw text.
func renderMarkdown(content string, width int) string {
	if width > 120 {
		width = 120
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSuffix(rendered, "\n")
}

// editorAvailable reports whether $EDITOR is set.
func editorAvailable() bool {
	return os.Getenv("EDITOR") != ""
}

// openEditor launches $EDITOR on the field content and reports the result as
// a FieldEditedMsg. Failures leave the field untouched.
func openEditor(key, content string) tea.Cmd {
	tmpfile, err := os.CreateTemp("", "carepath_field_*.txt")
	if err != nil {
		logger.Warn("Creating temp file for %s: %v", key, err)
		return nil
	}
	if _, err := tmpfile.WriteString(content); err != nil {
		_ = tmpfile.Close()
		_ = os.Remove(tmpfile.Name())
		return nil
	}
	_ = tmpfile.Close()

	cmd, err := editor.Command("carepath", tmpfile.Name())
	if err != nil {
		_ = os.Remove(tmpfile.Name())
		return nil
	}

	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		defer func() { _ = os.Remove(tmpfile.Name()) }()
		if err != nil {
			logger.Warn("Editor exited with error: %v", err)
			return nil
		}
		edited, err := os.ReadFile(tmpfile.Name())
		if err != nil {
			return nil
		}
		return FieldEditedMsg{
			Key:     key,
			Content: strings.TrimRight(string(edited), "\n"),
		}
	})
}
