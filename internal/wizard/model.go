package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/tui/styles"
)

// Model is the Bubbletea model for the launch wizard.
type Model struct {
	machine   *Machine
	cursor    int
	textInput textinput.Model
	errorMsg  string
	width     int
}

// New creates a wizard model over a fresh Machine.
func New(hints Hints) Model {
	return NewWithMachine(NewMachine(hints))
}

// NewWithMachine creates a wizard model over m.
func NewWithMachine(m *Machine) Model {
	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 48

	return Model{
		machine:   m,
		textInput: ti,
	}
}

// Machine returns the underlying state machine.
func (m Model) Machine() *Machine {
	return m.machine
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		m.errorMsg = ""
		if m.machine.Phase() == PhasePrompt {
			return m.handlePromptKeypress(msg)
		}
		return m.handleOptionKeypress(msg)
	}
	return m, nil
}

func (m Model) handleOptionKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.machine.Items()

	switch msg.String() {
	case "ctrl+c", "q":
		m.machine.Cancel()
		return m, tea.Quit

	case "esc", "backspace":
		m.machine.Back()
		return m, tea.Quit

	case "up", "k":
		m.cursor--
		if m.cursor < 0 {
			m.cursor = len(items) - 1
		}

	case "down", "j":
		m.cursor++
		if m.cursor >= len(items) {
			m.cursor = 0
		}

	case " ", "space", "x":
		if p := m.machine.Toggle(items[m.cursor].ID); p != nil {
			m.openPrompt(p)
			return m, textinput.Blink
		}

	case "enter":
		if _, err := m.machine.Accept(); err != nil {
			m.errorMsg = err.Error()
			return m, nil
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handlePromptKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.machine.Cancel()
		return m, tea.Quit

	case "esc":
		m.machine.DismissPrompt()
		m.closePrompt()
		return m, nil

	case "enter":
		if err := m.machine.SubmitPrompt(m.textInput.Value()); err != nil {
			m.errorMsg = promptError(err)
			return m, nil
		}
		m.closePrompt()
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func promptError(err error) string {
	if errors.Is(err, errors.ErrInvalidToken) {
		return "Enter a token, or press esc to keep the previous choice"
	}
	return err.Error()
}

func (m *Model) openPrompt(p *Prompt) {
	m.textInput.SetValue(p.Initial)
	m.textInput.Placeholder = p.Placeholder
	m.textInput.EchoMode = textinput.EchoNormal
	if p.Kind == PromptSecret {
		m.textInput.EchoMode = textinput.EchoPassword
		m.textInput.EchoCharacter = '•'
	}
	m.textInput.CursorEnd()
	m.textInput.Focus()
}

func (m *Model) closePrompt() {
	m.textInput.Blur()
	m.textInput.SetValue("")
}

func (m Model) View() string {
	if m.machine.Phase().Done() {
		return ""
	}

	var b strings.Builder

	title := fmt.Sprintf("Launch Jupyter %s", m.machine.hints.Kind)
	if m.width > 4 {
		b.WriteString(styles.Header.Width(m.width - 4).Render(title))
	} else {
		b.WriteString(styles.Header.Render(title))
	}
	b.WriteString("\n")

	var group Group
	for i, item := range m.machine.Items() {
		if item.Group != group {
			group = item.Group
			b.WriteString("\n")
			titleStyle := styles.GroupTitle
			if m.machine.Items()[m.cursor].Group == group {
				titleStyle = styles.GroupTitleActive
			}
			b.WriteString(titleStyle.Render(string(group)))
			b.WriteString("\n")
		}
		b.WriteString(m.renderItem(item, i == m.cursor))
		b.WriteString("\n")
	}

	if p := m.machine.Prompt(); p != nil {
		b.WriteString(m.renderPrompt(p))
	} else {
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render(m.machine.Items()[m.cursor].Description))
		b.WriteString("\n")
	}

	if m.errorMsg != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorMsg.Render("Error: " + m.errorMsg))
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderItem(item Item, selected bool) string {
	marker := styles.Checkbox(m.machine.Selected(item.ID))
	if item.Radio {
		marker = styles.Radio(m.machine.Selected(item.ID))
	}

	label := fmt.Sprintf("%-32s", item.Label)
	detail := ""
	if d := m.machine.Detail(item.ID); d != "" && m.machine.Selected(item.ID) {
		detail = "  " + styles.OptionDetail.Render(d)
	}

	if selected {
		cursor := styles.Secondary.Render(">")
		return fmt.Sprintf("  %s %s %s%s", cursor, marker, styles.Text.Bold(true).Render(label), detail)
	}
	return fmt.Sprintf("    %s %s%s", marker, styles.Muted.Render(label), detail)
}

func (m Model) renderPrompt(p *Prompt) string {
	content := p.Title + ":\n\n" + m.textInput.View() +
		"\n\n" + styles.Muted.Render("enter to confirm, esc to cancel")
	return "\n" + styles.PromptBox.Render(content) + "\n"
}

func (m Model) renderHelp() string {
	if m.machine.Phase() == PhasePrompt {
		return styles.HelpBar.Render(
			styles.HelpKey.Render("enter") + " confirm  " +
				styles.HelpKey.Render("esc") + " cancel",
		)
	}
	return styles.HelpBar.Render(
		styles.HelpKey.Render("j/k") + " navigate  " +
			styles.HelpKey.Render("space") + " toggle  " +
			styles.HelpKey.Render("enter") + " launch  " +
			styles.HelpKey.Render("esc") + " back  " +
			styles.HelpKey.Render("q") + " cancel",
	)
}

// Run shows the wizard on the terminal and returns its outcome.
func Run(hints Hints) (Result, error) {
	final, err := tea.NewProgram(New(hints)).Run()
	if err != nil {
		return Result{Outcome: Cancelled}, fmt.Errorf("wizard: %w", err)
	}
	return final.(Model).machine.Result(), nil
}
