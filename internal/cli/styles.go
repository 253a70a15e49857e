// Package cli holds the terminal styling shared by the wizsync commands.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#7D56F4") // wizsync violet
	accentColor  = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
	warnColor    = lipgloss.Color("#A40000")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warnColor)

	WarnStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information.
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("wizsync 💡"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message to stderr.
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a non-fatal problem to stderr.
func PrintWarning(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", WarnStyle.Render("Warning:"), message)
}

// PrintKeyValue prints one aligned "key: value" line.
func PrintKeyValue(key string, value any) {
	fmt.Printf("%s %s\n", KeyStyle.Width(12).Render(key+":"), ValueStyle.Render(fmt.Sprint(value)))
}
