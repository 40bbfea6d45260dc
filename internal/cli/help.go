package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAAA")).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)
)

// helpExamples are printed at the bottom of --help
var helpExamples = []string{
	"headroom ~/Music/Album          analyze, report and ask before applying",
	"headroom --dry-run ~/Music      report only, never modify files",
	"headroom -y --reencode ~/Music  apply lossless and re-encode work without asking",
}

// StyledHelpPrinter creates a custom help printer with Lipgloss styling
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		fmt.Fprint(ctx.Stdout, renderHelp(ctx.Model.Name, ctx.Model.Help, getArguments(ctx), getFlags(ctx)))
		return nil
	}
}

// renderHelp lays out the help screen
func renderHelp(name, description string, args []argument, flags []flag) string {
	var sb strings.Builder

	// Title and description
	sb.WriteString(helpTitleStyle.Render("Headroom 🎚"))
	sb.WriteString("\n")
	if description != "" {
		sb.WriteString(helpDescStyle.Render(description))
		sb.WriteString("\n")
	}

	// Usage
	sb.WriteString(helpSectionStyle.Render("Usage:"))
	sb.WriteString("\n  ")
	sb.WriteString(fmt.Sprintf("%s [flags] [directory]", name))
	sb.WriteString("\n")

	if len(args) > 0 {
		sb.WriteString("\n")
		sb.WriteString(helpSectionStyle.Render("Arguments:"))
		sb.WriteString("\n")
		for _, arg := range args {
			sb.WriteString("  ")
			sb.WriteString(helpArgStyle.Render(arg.name))
			if arg.help != "" {
				sb.WriteString("  ")
				sb.WriteString(arg.help)
			}
			sb.WriteString("\n")
		}
	}

	if len(flags) > 0 {
		width := 0
		for _, f := range flags {
			width = max(width, len(f.flags))
		}

		sb.WriteString("\n")
		sb.WriteString(helpSectionStyle.Render("Flags:"))
		sb.WriteString("\n")
		for _, f := range flags {
			sb.WriteString("  ")
			sb.WriteString(helpFlagStyle.Render(f.flags))
			if f.help != "" {
				sb.WriteString(strings.Repeat(" ", width-len(f.flags)+2))
				sb.WriteString(f.help)
			}
			if f.defaultVal != "" {
				sb.WriteString(" ")
				sb.WriteString(helpDefaultStyle.Render("(default: " + f.defaultVal + ")"))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render("Examples:"))
	sb.WriteString("\n")
	for _, ex := range helpExamples {
		sb.WriteString("  " + ex + "\n")
	}

	sb.WriteString("\n")
	return sb.String()
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
}

func getArguments(ctx *kong.Context) []argument {
	var args []argument
	for _, arg := range ctx.Model.Node.Positional {
		args = append(args, argument{name: arg.Summary(), help: arg.Help})
	}
	return args
}

func getFlags(ctx *kong.Context) []flag {
	flags := []flag{{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
	}}

	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		flagStr := fmt.Sprintf("    --%s", f.Name)
		if f.Short != 0 {
			flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		}
		if !f.IsBool() {
			placeholder := f.PlaceHolder
			if placeholder == "" {
				placeholder = f.Name
			}
			flagStr += "=" + strings.ToUpper(placeholder)
		}

		flags = append(flags, flag{
			flags:      flagStr,
			help:       f.Help,
			defaultVal: f.Default,
		})
	}
	return flags
}
