package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var warningStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFA500"))

// ConfirmModel asks a single yes/no question. Enter accepts the default;
// esc and ctrl+c answer no.
type ConfirmModel struct {
	Prompt  string
	Warning string
	Default bool

	Answer bool
	done   bool
}

// NewConfirmModel creates a yes/no prompt
func NewConfirmModel(prompt, warning string, def bool) ConfirmModel {
	return ConfirmModel{Prompt: prompt, Warning: warning, Default: def}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.Answer = true
	case "n", "esc", "ctrl+c":
		m.Answer = false
	case "enter":
		m.Answer = m.Default
	default:
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m ConfirmModel) View() string {
	hint := "[y/N]"
	if m.Default {
		hint = "[Y/n]"
	}

	var b strings.Builder
	if m.Warning != "" {
		b.WriteString(warningStyle.Render("⚠ " + m.Warning))
		b.WriteString("\n")
	}
	if m.done {
		answer := "no"
		if m.Answer {
			answer = "yes"
		}
		fmt.Fprintf(&b, "%s %s\n", m.Prompt, mutedStyle.Render(answer))
		return b.String()
	}
	fmt.Fprintf(&b, "%s %s ", m.Prompt, mutedStyle.Render(hint))
	return b.String()
}

// Confirm runs a yes/no prompt on the terminal
func Confirm(prompt, warning string, def bool) (bool, error) {
	result, err := tea.NewProgram(NewConfirmModel(prompt, warning, def)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	final, ok := result.(ConfirmModel)
	if !ok || !final.done {
		return false, nil
	}
	return final.Answer, nil
}
