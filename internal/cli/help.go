package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

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
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	helpCommandStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#00AAAA")).
				Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)
)

// StyledHelpPrinter renders kong help with Lipgloss styling. For a selected
// command it lists that command's flags after the global ones.
func StyledHelpPrinter(_ kong.HelpOptions) kong.HelpPrinter {
	return func(_ kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		sb.WriteString(helpTitleStyle.Render("wizsync 💡"))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render(ctx.Model.Help))
		sb.WriteString("\n")

		node := ctx.Selected()
		usage := ctx.Model.Name + " <command> [flags]"
		if node != nil {
			usage = fmt.Sprintf("%s %s [flags]", ctx.Model.Name, node.Path())
		}
		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  " + usage + "\n")

		if node == nil {
			if cmds := getCommands(ctx.Model.Node); len(cmds) > 0 {
				sb.WriteString("\n")
				sb.WriteString(helpSectionStyle.Render("Commands:"))
				sb.WriteString("\n")
				writeEntries(&sb, cmds, helpCommandStyle)
			}
		} else if node.Help != "" {
			sb.WriteString("\n  " + node.Help + "\n")
		}

		flags := getFlags(ctx.Model.Node, true)
		if node != nil {
			flags = append(flags, getFlags(node, false)...)
		}
		sb.WriteString("\n")
		sb.WriteString(helpSectionStyle.Render("Flags:"))
		sb.WriteString("\n")
		writeEntries(&sb, flags, helpFlagStyle)

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type entry struct {
	name       string
	help       string
	defaultVal string
}

func writeEntries(sb *strings.Builder, entries []entry, style lipgloss.Style) {
	width := 0
	for _, e := range entries {
		width = max(width, len(e.name))
	}
	for _, e := range entries {
		sb.WriteString("  ")
		sb.WriteString(style.Render(e.name))
		sb.WriteString(strings.Repeat(" ", width-len(e.name)+2))
		sb.WriteString(e.help)
		if e.defaultVal != "" {
			sb.WriteString(" ")
			sb.WriteString(helpDefaultStyle.Render("(default: " + e.defaultVal + ")"))
		}
		sb.WriteString("\n")
	}
}

func getCommands(node *kong.Node) []entry {
	var cmds []entry
	for _, child := range node.Children {
		if child.Hidden || child.Type != kong.CommandNode {
			continue
		}
		name := child.Name
		if child.DefaultCmd != nil {
			name += " (default)"
		}
		cmds = append(cmds, entry{name: name, help: child.Help})
	}
	return cmds
}

func getFlags(node *kong.Node, withHelp bool) []entry {
	var flags []entry
	if withHelp {
		flags = append(flags, entry{name: "-h, --help", help: "Show context-sensitive help."})
	}
	for _, f := range node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}
		name := "--" + f.Name
		if f.Short != 0 {
			name = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		}
		if !f.IsBool() {
			name += "=" + f.FormatPlaceHolder()
		}
		flags = append(flags, entry{name: name, help: f.Help, defaultVal: f.Default})
	}
	return flags
}
