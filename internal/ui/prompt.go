package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrPromptCancelled is returned when the user leaves a prompt with esc or ctrl+c
var ErrPromptCancelled = errors.New("prompt cancelled")

// PromptModel asks for one line of text
type PromptModel struct {
	Question string
	input    textinput.Model
	done     bool
}

// NewPromptModel creates a text prompt with an optional initial value
func NewPromptModel(question, value string) PromptModel {
	ti := textinput.New()
	ti.Placeholder = "."
	ti.CharLimit = 4096
	ti.SetValue(value)
	ti.Focus()
	return PromptModel{Question: question, input: ti}
}

func (m PromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m PromptModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s: %s\n", m.Question, m.input.View())
}

// Value is the trimmed answer; an empty answer means the current directory
func (m PromptModel) Value() string {
	v := strings.TrimSpace(m.input.Value())
	if v == "" {
		return "."
	}
	return v
}

// PromptDirectory asks for the directory to scan
func PromptDirectory() (string, error) {
	result, err := tea.NewProgram(NewPromptModel("Directory to analyze", "")).Run()
	if err != nil {
		return "", fmt.Errorf("directory prompt failed: %w", err)
	}
	final, ok := result.(PromptModel)
	if !ok || !final.done {
		return "", ErrPromptCancelled
	}
	return final.Value(), nil
}
