// Package cli holds headroom's lipgloss styles, console printers and the
// styled kong help printer.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/headroom/internal/logging"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#2E86C1") // Headroom blue
	accentColor  = lipgloss.Color("#FFA500") // Orange
	successColor = lipgloss.Color("#00AA00") // Green
	errorColor   = lipgloss.Color("#A40000") // Red
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	// Title style - bold blue
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Section heading above each report table
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	NoteStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("Headroom 🎚"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintBanner prints the title and the directory being analyzed
func PrintBanner(version, dir string) {
	fmt.Println(TitleStyle.Render("Headroom 🎚 " + version))
	PrintKeyValue("Directory:", dir)
}

// PrintKeyValue prints a muted key and a bold value
func PrintKeyValue(key, value string) {
	fmt.Printf("%s %s\n", KeyStyle.Render(key), ValueStyle.Render(value))
}

// PrintSections prints report sections with styled headings
func PrintSections(w io.Writer, sections []logging.Section) {
	for _, s := range sections {
		fmt.Fprintln(w, SectionStyle.Render(s.Title))
		if s.Note != "" {
			fmt.Fprintln(w, NoteStyle.Render(s.Note))
		}
		fmt.Fprint(w, s.Table.String())
		fmt.Fprintln(w)
	}
}

// PrintInfo prints a muted informational line
func PrintInfo(message string) {
	fmt.Println(NoteStyle.Render(message))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintWarning prints a warning to stderr
func PrintWarning(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", WarningStyle.Render("Warning:"), message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}
