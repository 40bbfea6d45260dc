// Package ui provides the Bubbletea terminal user interface for headroom
package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// FileStatus represents the state of a single file in a batch
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusActive
	StatusComplete
	StatusError
)

// FileProgress tracks one file of the batch
type FileProgress struct {
	Name      string
	Status    FileStatus
	StartTime time.Time
	Elapsed   time.Duration
	Summary   string
	Error     error
}

// Model is the Bubbletea model for a batch of per-file work (analysis or
// apply). It is driven by messages sent from the worker goroutines.
type Model struct {
	Title string
	Files []FileProgress

	TotalFiles     int
	ActiveFiles    int
	CompletedFiles int
	FailedFiles    int

	StartTime  time.Time
	Done       bool
	Cancelling bool

	spinner spinner.Model
	cancel  context.CancelFunc

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a progress model for the named files. cancel is called
// when the user presses ctrl+c or q; it may be nil.
func NewModel(title string, names []string, cancel context.CancelFunc) Model {
	files := make([]FileProgress, len(names))
	for i, name := range names {
		files[i] = FileProgress{Name: name, Status: StatusQueued}
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = activeStyle

	return Model{
		Title:      title,
		Files:      files,
		TotalFiles: len(names),
		StartTime:  time.Now(),
		spinner:    s,
		cancel:     cancel,
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Workers stop dispatching; the model exits on AllCompleteMsg
			if !m.Cancelling && m.cancel != nil {
				m.cancel()
			}
			m.Cancelling = true
			if m.cancel == nil {
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case FileStartMsg:
		if m.valid(msg.FileIndex) {
			f := &m.Files[msg.FileIndex]
			f.Status = StatusActive
			f.StartTime = time.Now()
			m.ActiveFiles++
		}

	case FileCompleteMsg:
		if m.valid(msg.FileIndex) {
			f := &m.Files[msg.FileIndex]
			if f.Status == StatusActive {
				m.ActiveFiles--
				f.Elapsed = time.Since(f.StartTime)
			}
			f.Summary = msg.Summary
			f.Error = msg.Error
			if msg.Error != nil {
				f.Status = StatusError
				m.FailedFiles++
			} else {
				f.Status = StatusComplete
				m.CompletedFiles++
			}
		}

	case AllCompleteMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) valid(i int) bool {
	return i >= 0 && i < len(m.Files)
}

// Finished is the number of files that completed or failed
func (m Model) Finished() int {
	return m.CompletedFiles + m.FailedFiles
}

// Progress is the finished fraction of the batch, 0.0 to 1.0
func (m Model) Progress() float64 {
	if m.TotalFiles == 0 {
		return 1
	}
	return float64(m.Finished()) / float64(m.TotalFiles)
}

// View renders the UI
func (m Model) View() string {
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderProcessingView(m)
}
