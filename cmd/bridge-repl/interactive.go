package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/script-bridge/env"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLines = 20

type replModel struct {
	e       *env.Env
	input   textinput.Model
	history []string
}

func newReplModel(e *env.Env) *replModel {
	ti := textinput.New()
	ti.Placeholder = "script, or :gc / :stats / :quit"
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.Width = 72
	ti.Focus()

	return &replModel{e: e, input: ti}
}

func (m *replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == ":quit" || line == ":q" {
				return m, tea.Quit
			}
			m.echo(promptStyle.Render("> ") + line)
			m.dispatch(line)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *replModel) dispatch(line string) {
	switch line {
	case ":gc":
		n := m.e.Collect(true)
		m.echo(resultStyle.Render(fmt.Sprintf("collected %d cells", n)))
	case ":stats":
		st := m.e.Stats()
		m.echo(resultStyle.Render(fmt.Sprintf("live cells: %d, descriptors: %d", st.LiveCells, st.Descriptors)))
	default:
		v, err := m.e.Eval(line)
		if err != nil {
			m.echo(errorStyle.Render(err.Error()))
			return
		}
		if v != nil {
			m.echo(resultStyle.Render(v.String()))
		}
	}
}

func (m *replModel) echo(line string) {
	m.history = append(m.history, line)
	if len(m.history) > historyLines {
		m.history = m.history[len(m.history)-historyLines:]
	}
}

func (m *replModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("script-bridge shell"))
	b.WriteString("\n\n")

	for _, line := range m.history {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.history) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(":gc collect • :stats live cells • :quit exit"))
	b.WriteString("\n")

	return b.String()
}

func runInteractive(e *env.Env) error {
	p := tea.NewProgram(newReplModel(e), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
