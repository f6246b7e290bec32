// Package formwizard hosts a flow engine in a full-screen terminal UI.
package formwizard

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/mark3labs/carepath/internal/forms"
	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/submission"
	"github.com/mark3labs/carepath/internal/tui/theme"
	"github.com/mark3labs/carepath/internal/wizard"
)

// Modal layout constants
const (
	modalWidth        = 72
	modalPadding      = 2
	modalBorderWidth  = 1
	modalContentWidth = modalWidth - (modalPadding * 2) - (modalBorderWidth * 2) // 66
	inputChrome       = 6                                                        // box border, padding and prompt
)

// Acknowledger records submitted receipts. *submission.Desk satisfies it.
type Acknowledger interface {
	Acknowledge(ctx context.Context, r wizard.Receipt, submitter string) (submission.Ack, error)
}

// Options configures the host.
type Options struct {
	Context      context.Context
	Acknowledger Acknowledger // Optional
	Submitter    string
	OnAck        func(flow string, err error)
}

// Result is what the user ended the session with.
type Result struct {
	Receipt   wizard.Receipt
	Ack       *submission.Ack
	AckErr    error
	Cancelled bool
}

// Model is the BubbleTea model hosting one flow engine.
// The engine owns the cursor and the draft; the model only renders them and
// forwards user intent.
type Model struct {
	flow   *forms.Flow
	engine *wizard.Engine
	opts   Options

	width  int
	height int

	editors  []fieldEditor
	focus    int // Index of the focused editor, -1 when the buttons have focus
	buttons  *ButtonBar
	progress stepProgress
	review   viewport.Model
	errors   map[string]string // Inline errors from the last refused transition

	submitted bool
	acking    bool
	result    Result
}

// New creates a host positioned on the engine's current step.
func New(flow *forms.Flow, engine *wizard.Engine, opts Options) *Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	m := &Model{
		flow:     flow,
		engine:   engine,
		opts:     opts,
		progress: newStepProgress(modalContentWidth),
		review:   newReviewViewport(modalContentWidth),
	}
	m.loadStep()
	return m
}

// Run hosts the flow in a standalone program and returns how it ended.
func Run(flow *forms.Flow, engine *wizard.Engine, opts Options) (Result, error) {
	m := New(flow, engine, opts)

	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return Result{}, fmt.Errorf("form wizard failed: %w", err)
	}
	fm, ok := finalModel.(*Model)
	if !ok {
		return Result{}, fmt.Errorf("unexpected model type")
	}
	return fm.Result(), nil
}

// Result returns the outcome so far.
func (m *Model) Result() Result { return m.result }

// Init starts the cursor blink of the first text field.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the host.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.SetWidth(progressWidth(msg.Width))
		return m, nil

	case AckResultMsg:
		m.acking = false
		if msg.Err != nil {
			logger.Warn("Acknowledging %s failed: %v", m.result.Receipt.Reference, msg.Err)
			m.result.AckErr = msg.Err
		} else {
			ack := msg.Ack
			m.result.Ack = &ack
		}
		if m.opts.OnAck != nil {
			m.opts.OnAck(m.engine.Flow(), msg.Err)
		}
		return m, nil

	case FieldEditedMsg:
		for i, ed := range m.editors {
			te, ok := ed.(*textEditor)
			if !ok || te.Field().Key != msg.Key {
				continue
			}
			te.SetContent(msg.Content, m.engine)
			m.fieldChanged(msg.Key)
			return m, m.focusEditor(i)
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	if ed := m.focusedEditor(); ed != nil {
		cmd, changed := ed.Update(msg, m.engine)
		if changed {
			m.fieldChanged(ed.Field().Key)
		}
		return m, cmd
	}
	var cmd tea.Cmd
	m.review, cmd = m.review.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if !m.submitted {
			m.engine.Cancel()
			m.result.Cancelled = true
		}
		return m, tea.Quit
	}

	if m.submitted {
		switch msg.String() {
		case "enter", "esc", "q":
			if !m.acking {
				return m, tea.Quit
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m.back()
	case "tab":
		return m, m.focusNext()
	case "shift+tab":
		return m, m.focusPrev()
	case "pgup", "pgdown":
		if m.engine.IsTerminal() {
			var cmd tea.Cmd
			m.review, cmd = m.review.Update(msg)
			return m, cmd
		}
	case "ctrl+e":
		if te, ok := m.focusedEditor().(*textEditor); ok && te.Field().Multiline && editorAvailable() {
			return m, openEditor(te.Field().Key, te.value())
		}
		return m, nil
	}

	if m.buttons.IsFocused() {
		switch msg.String() {
		case "left":
			m.buttons.FocusPrev()
			if !m.buttons.IsFocused() {
				m.buttons.FocusFirst()
			}
		case "right":
			m.buttons.FocusNext()
			if !m.buttons.IsFocused() {
				m.buttons.FocusLast()
			}
		case "enter", "space":
			if btn, ok := m.buttons.Focused(); ok {
				return m.activate(btn.Action)
			}
		}
		return m, nil
	}

	ed := m.focusedEditor()
	if ed == nil {
		return m, nil
	}
	if te, ok := ed.(*textEditor); ok && !te.Field().Multiline && msg.String() == "enter" {
		return m, m.focusNext()
	}
	cmd, changed := ed.Update(msg, m.engine)
	if changed {
		m.fieldChanged(ed.Field().Key)
	}
	return m, cmd
}

// activate performs a button action.
func (m *Model) activate(action ButtonAction) (tea.Model, tea.Cmd) {
	switch action {
	case ActionCancel:
		m.engine.Cancel()
		m.result.Cancelled = true
		return m, tea.Quit
	case ActionBack:
		return m.back()
	case ActionNext:
		if err := m.engine.GoNext(); err != nil {
			return m, m.refuse(err)
		}
		return m, m.loadStep()
	case ActionSubmit:
		receipt, err := m.engine.Submit()
		if err != nil {
			return m, m.refuse(err)
		}
		logger.Info("Submitted %s as %s", receipt.Flow, receipt.Reference)
		m.submitted = true
		m.result.Receipt = receipt
		m.review.SetContent(renderMarkdown(m.flow.ReceiptSummary(receipt), modalContentWidth))
		m.review.GotoTop()
		return m, m.acknowledge(receipt)
	}
	return m, nil
}

// back returns to the previous step, or cancels from the first one.
func (m *Model) back() (tea.Model, tea.Cmd) {
	if err := m.engine.GoPrevious(); err != nil {
		m.engine.Cancel()
		m.result.Cancelled = true
		return m, tea.Quit
	}
	return m, m.loadStep()
}

// refuse annotates the fields named by an invalid-step error and moves focus
// to the first of them.
func (m *Model) refuse(err error) tea.Cmd {
	ise, ok := wizard.IsInvalidStep(err)
	if !ok {
		logger.Error("Unexpected engine error: %v", err)
		return nil
	}
	m.errors = make(map[string]string, len(ise.Missing)+len(ise.Messages))
	for _, key := range ise.Missing {
		m.errors[key] = "required"
	}
	for key, msg := range ise.Messages {
		m.errors[key] = msg
	}
	logger.Debug("Step %d refused: %v", ise.Step, ise.Fields())

	for i, ed := range m.editors {
		if slices.Contains(ise.Fields(), ed.Field().Key) {
			return m.focusEditor(i)
		}
	}
	return nil
}

func (m *Model) acknowledge(r wizard.Receipt) tea.Cmd {
	if m.opts.Acknowledger == nil {
		return nil
	}
	m.acking = true
	ctx, ack, submitter := m.opts.Context, m.opts.Acknowledger, m.opts.Submitter
	return func() tea.Msg {
		a, err := ack.Acknowledge(ctx, r, submitter)
		return AckResultMsg{Ack: a, Err: err}
	}
}

// loadStep rebuilds the editors for the engine's current step from the draft.
func (m *Model) loadStep() tea.Cmd {
	step := m.engine.Current()
	draft := m.engine.Draft()

	m.errors = nil
	m.buttons = nil
	m.editors = make([]fieldEditor, 0, len(step.Fields))
	for _, f := range step.Fields {
		ed := newEditor(f)
		ed.SetWidth(modalContentWidth - inputChrome)
		ed.Load(draft)
		m.editors = append(m.editors, ed)
	}
	m.refreshButtons()

	if m.engine.IsTerminal() {
		m.review.SetContent(renderMarkdown(m.flow.Summary(draft), modalContentWidth))
		m.review.GotoTop()
	}

	if len(m.editors) == 0 {
		m.focus = -1
		m.buttons.FocusLast()
		return nil
	}
	return m.focusEditor(0)
}

// fieldChanged clears the inline error for key and re-evaluates the buttons.
// On the last step the review is re-rendered in place.
func (m *Model) fieldChanged(key string) {
	delete(m.errors, key)
	m.refreshButtons()
	if m.engine.IsTerminal() {
		m.review.SetContent(renderMarkdown(m.flow.Summary(m.engine.Draft()), modalContentWidth))
	}
}

// refreshButtons rebuilds the button bar, keeping focus on the same action.
func (m *Model) refreshButtons() {
	var (
		action  ButtonAction
		focused bool
	)
	if m.buttons != nil {
		if btn, ok := m.buttons.Focused(); ok {
			action, focused = btn.Action, true
		}
	}
	cur, total := m.engine.Progress()
	m.buttons = NewButtonBar(buttonsFor(cur, total, m.engine.IsStepValid(cur)))
	m.buttons.SetWidth(modalContentWidth)
	if focused {
		m.buttons.FocusAction(action)
	}
}

func (m *Model) focusedEditor() fieldEditor {
	if m.focus < 0 || m.focus >= len(m.editors) {
		return nil
	}
	return m.editors[m.focus]
}

func (m *Model) focusEditor(i int) tea.Cmd {
	for _, ed := range m.editors {
		ed.Blur()
	}
	m.buttons.Blur()
	m.focus = i
	return m.editors[i].Focus()
}

func (m *Model) focusButtons() {
	for _, ed := range m.editors {
		ed.Blur()
	}
	m.focus = -1
	m.buttons.FocusLast()
}

// focusNext moves focus forward: fields, then buttons, then back to the top.
func (m *Model) focusNext() tea.Cmd {
	if m.buttons.IsFocused() {
		if m.buttons.FocusNext() {
			return nil
		}
		if len(m.editors) == 0 {
			m.buttons.FocusFirst()
			return nil
		}
		return m.focusEditor(0)
	}
	if m.focus+1 < len(m.editors) {
		return m.focusEditor(m.focus + 1)
	}
	m.focusButtons()
	return nil
}

// focusPrev moves focus backward through the same cycle.
func (m *Model) focusPrev() tea.Cmd {
	if m.buttons.IsFocused() {
		if m.buttons.FocusPrev() {
			return nil
		}
		if len(m.editors) == 0 {
			m.buttons.FocusLast()
			return nil
		}
		return m.focusEditor(len(m.editors) - 1)
	}
	if m.focus > 0 {
		return m.focusEditor(m.focus - 1)
	}
	m.focusButtons()
	return nil
}

// View renders the host.
func (m *Model) View() tea.View {
	var view tea.View
	view.AltScreen = true

	if m.width == 0 || m.height == 0 {
		view.Content = lipgloss.NewLayer("")
		return view
	}

	centered := lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		m.render(),
	)

	canvas := uv.NewScreenBuffer(m.width, m.height)
	uv.NewStyledString(centered).Draw(canvas, uv.Rectangle{
		Min: uv.Position{X: 0, Y: 0},
		Max: uv.Position{X: m.width, Y: m.height},
	})

	view.Content = lipgloss.NewLayer(canvas.Render())
	return view
}

// render draws the modal for the current state.
func (m *Model) render() string {
	s := theme.Current().S()
	var content string
	if m.submitted {
		content = m.renderCompletion()
	} else {
		content = m.renderStep()
	}
	return s.ModalContainer.Width(modalWidth).Render(content)
}

func (m *Model) renderStep() string {
	s := theme.Current().S()
	step := m.engine.Current()
	cur, _ := m.engine.Progress()

	var b strings.Builder
	b.WriteString(theme.ApplyGradient(m.flow.Title, theme.Current().Primary, theme.Current().Tertiary))
	b.WriteString("\n\n")
	b.WriteString(m.progress.View(m.engine.Steps(), cur))
	b.WriteString("\n\n")
	b.WriteString(s.Title.Render(step.Title))
	b.WriteString("\n")

	if m.engine.IsTerminal() {
		b.WriteString("\n")
		b.WriteString(m.review.View())
		b.WriteString("\n")
	}

	for i, ed := range m.editors {
		f := ed.Field()
		b.WriteString("\n")
		label := s.Label.Render(f.Label)
		if f.Required {
			label += s.Required.Render(" *")
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(ed.View(i == m.focus))
		b.WriteString("\n")
		if msg, ok := m.errors[f.Key]; ok {
			b.WriteString(s.Error.Render("✗ " + msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.buttons.Render())
	b.WriteString("\n\n")
	b.WriteString(m.renderHints())
	return b.String()
}

func (m *Model) renderHints() string {
	back := "back"
	if cur, _ := m.engine.Progress(); cur <= 1 {
		back = "cancel"
	}
	pairs := []string{"tab", "next field", "enter", "select", "esc", back}
	if te, ok := m.focusedEditor().(*textEditor); ok && te.Field().Multiline && editorAvailable() {
		pairs = append(pairs, "ctrl+e", "edit")
	}
	if m.engine.IsTerminal() {
		pairs = append(pairs, "pgup/pgdn", "scroll")
	}
	return renderHintBar(pairs...)
}

func (m *Model) renderCompletion() string {
	s := theme.Current().S()
	r := m.result.Receipt

	var b strings.Builder
	b.WriteString(s.Success.Render("✓ " + m.flow.Title + " submitted"))
	b.WriteString("\n\n")
	b.WriteString(s.Label.Render("Reference: ") + s.Highlight.Render(r.Reference))
	b.WriteString("\n")
	b.WriteString(s.Muted.Render("Submitted " + r.SubmittedAt.Format("2006-01-02 15:04")))
	b.WriteString("\n\n")

	switch {
	case m.acking:
		b.WriteString(s.Muted.Render("Acknowledging…"))
	case m.result.AckErr != nil:
		b.WriteString(s.Error.Render("✗ Acknowledgement failed: " + m.result.AckErr.Error()))
	case m.result.Ack != nil:
		b.WriteString(s.Success.Render(fmt.Sprintf("Acknowledged (sequence %d)", m.result.Ack.Sequence)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.review.View())
	b.WriteString("\n\n")
	b.WriteString(renderHintBar("enter", "exit"))
	return b.String()
}
