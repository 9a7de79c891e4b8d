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
			Foreground(BeatMagenta).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(BeatPink).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(BeatAmber).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(BeatMagenta).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(BeatPink).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(MutedLilac).
				Italic(true)
)

// StyledHelpPrinter creates a custom help printer with Lipgloss styling.
// At the root it lists the commands; for a selected command it shows that
// command's arguments and flags.
func StyledHelpPrinter(options kong.HelpOptions) kong.HelpPrinter {
	return kong.HelpPrinter(func(options kong.HelpOptions, ctx *kong.Context) error {
		fmt.Fprint(ctx.Stdout, renderHelp(ctx))
		return nil
	})
}

func renderHelp(ctx *kong.Context) string {
	var sb strings.Builder

	node := ctx.Selected()
	if node == nil {
		node = ctx.Model.Node
	}

	// Title and description
	sb.WriteString(helpTitleStyle.Render(appName))
	sb.WriteString("\n")
	desc := appTagline
	if node != ctx.Model.Node && node.Help != "" {
		desc = node.Help
	}
	sb.WriteString(helpDescStyle.Render(desc))
	sb.WriteString("\n")

	// Usage
	sb.WriteString(helpSectionStyle.Render("Usage:"))
	sb.WriteString("\n  ")
	sb.WriteString(ctx.Model.Name)
	if node != ctx.Model.Node {
		sb.WriteString(" " + node.Summary())
	} else {
		sb.WriteString(" <command> [flags]")
	}
	sb.WriteString("\n")

	if cmds := getCommands(node); len(cmds) > 0 {
		sb.WriteString("\n")
		sb.WriteString(helpSectionStyle.Render("Commands:"))
		sb.WriteString("\n")
		width := 0
		for _, c := range cmds {
			width = max(width, len(c.name))
		}
		for _, c := range cmds {
			sb.WriteString("  ")
			sb.WriteString(helpArgStyle.Render(fmt.Sprintf("%-*s", width, c.name)))
			if c.help != "" {
				sb.WriteString("  ")
				sb.WriteString(c.help)
			}
			sb.WriteString("\n")
		}
	}

	// Arguments section
	if args := getArguments(node); len(args) > 0 {
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

	// Flags section
	if flags := getFlags(node); len(flags) > 0 {
		sb.WriteString("\n")
		sb.WriteString(helpSectionStyle.Render("Flags:"))
		sb.WriteString("\n")
		for _, flag := range flags {
			sb.WriteString("  ")
			sb.WriteString(helpFlagStyle.Render(flag.flags))
			if flag.help != "" {
				sb.WriteString("  ")
				sb.WriteString(flag.help)
			}
			if flag.defaultVal != "" {
				sb.WriteString(" ")
				sb.WriteString(helpDefaultStyle.Render("(default: " + flag.defaultVal + ")"))
			}
			if flag.env != "" {
				sb.WriteString(" ")
				sb.WriteString(helpDefaultStyle.Render("($" + flag.env + ")"))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

type command struct {
	name string
	help string
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
	env        string
}

func getCommands(node *kong.Node) []command {
	var cmds []command
	for _, child := range node.Children {
		if child.Hidden || child.Type != kong.CommandNode {
			continue
		}
		cmds = append(cmds, command{name: child.Name, help: child.Help})
	}
	return cmds
}

func getArguments(node *kong.Node) []argument {
	var args []argument
	for _, arg := range node.Positional {
		args = append(args, argument{name: arg.Summary(), help: arg.Help})
	}
	return args
}

// getFlags lists the node's flags followed by inherited ones.
func getFlags(node *kong.Node) []flag {
	var flags []flag

	// Always include help flag
	flags = append(flags, flag{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
	})

	seen := map[string]bool{"help": true}
	for n := node; n != nil; n = n.Parent {
		for _, f := range n.Flags {
			if f.Hidden || seen[f.Name] {
				continue
			}
			seen[f.Name] = true

			flagStr := fmt.Sprintf("--%s", f.Name)
			if f.Short != 0 {
				flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
			}
			if !f.IsBool() && f.PlaceHolder != "" {
				flagStr += "=" + strings.ToUpper(f.PlaceHolder)
			}

			// Only show default if it's a meaningful value
			defaultVal := ""
			if f.HasDefault && !f.IsBool() && f.Default != "" {
				defaultVal = f.Default
			}

			env := ""
			if len(f.Envs) > 0 {
				env = f.Envs[0]
			}

			flags = append(flags, flag{
				flags:      flagStr,
				help:       f.Help,
				defaultVal: defaultVal,
				env:        env,
			})
		}
	}

	return flags
}
