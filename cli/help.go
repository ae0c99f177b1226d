package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/wardentools/warden/tui/theme"
)

// Help text wraps to the terminal width, within these bounds.
const (
	helpMinWidth = 40
	helpMaxWidth = 60
)

// StyleHelp replaces a command's help output with the themed renderer.
// Call it on the root command before Execute.
func StyleHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(renderHelp)
}

// StyleHelpTree installs the themed help on a whole command tree
// and silences cobra's usage dump. Errors reach the user through the error
// handler instead.
func StyleHelpTree(cmd *cobra.Command) {
	cmd.SetHelpFunc(renderHelp)
	cmd.SetUsageFunc(func(*cobra.Command) error { return nil })
	for _, sub := range cmd.Commands() {
		StyleHelpTree(sub)
	}
}

// helpRenderer carries the theme, wrap width, and shared styles through
// one help render.
type helpRenderer struct {
	out     io.Writer
	t       *theme.Theme
	width   int
	heading lipgloss.Style
	command lipgloss.Style
	flag    lipgloss.Style
}

func renderHelp(cmd *cobra.Command, _ []string) {
	t := theme.DefaultTheme
	r := &helpRenderer{
		out:     cmd.OutOrStdout(),
		t:       t,
		width:   wrapWidth(),
		heading: lipgloss.NewStyle().Italic(true).Foreground(t.Colors.Orange),
		command: lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Blue),
		flag:    lipgloss.NewStyle().Foreground(t.Colors.Violet),
	}

	r.title(cmd)
	r.description(cmd)
	r.usage(cmd)
	r.subcommands(cmd)
	r.flags(cmd)
	r.examples(cmd)

	if cmd.HasSubCommands() {
		r.printf("\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

func (r *helpRenderer) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *helpRenderer) line(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *helpRenderer) section(name string) {
	r.line("\n " + r.heading.Render(name))
}

// title prints the uppercased command path with the one-line summary
// beneath it.
func (r *helpRenderer) title(cmd *cobra.Command) {
	caps := lipgloss.NewStyle().Bold(true).Foreground(r.t.Colors.Orange)
	r.line(" " + caps.Render(strings.ToUpper(cmd.CommandPath())))
	if cmd.Short != "" {
		for _, l := range strings.Split(wrap(cmd.Short, r.width), "\n") {
			r.line(" " + r.t.Italic.Render(l))
		}
	}
}

func (r *helpRenderer) description(cmd *cobra.Command) {
	desc, _ := splitExamples(cmd.Long)
	if desc == "" || desc == cmd.Short {
		return
	}
	r.line("")
	for _, l := range strings.Split(wrap(desc, r.width), "\n") {
		r.line(" " + l)
	}
}

func (r *helpRenderer) usage(cmd *cobra.Command) {
	if !cmd.Runnable() && !cmd.HasSubCommands() {
		return
	}
	r.section("USAGE")
	if cmd.Runnable() {
		r.printf(" %s\n", cmd.UseLine())
	}
	if cmd.HasSubCommands() {
		r.printf(" %s [command]\n", cmd.CommandPath())
	}
}

func (r *helpRenderer) subcommands(cmd *cobra.Command) {
	if !cmd.HasAvailableSubCommands() {
		return
	}
	widest := 0
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() && len(sub.Name()) > widest {
			widest = len(sub.Name())
		}
	}
	r.section("COMMANDS")
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		pad := strings.Repeat(" ", widest-len(sub.Name()))
		r.printf(" %s%s  %s\n", r.command.Render(sub.Name()), pad, sub.Short)
	}
}

// flags renders a compact inline list on parent commands and the full
// table on leaves.
func (r *helpRenderer) flags(cmd *cobra.Command) {
	var visible []*pflag.Flag
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			visible = append(visible, f)
		}
	})
	if len(visible) == 0 {
		return
	}

	if cmd.HasAvailableSubCommands() {
		names := make([]string, 0, len(visible))
		for _, f := range visible {
			if f.Shorthand != "" {
				names = append(names, fmt.Sprintf("-%s/--%s", f.Shorthand, f.Name))
			} else {
				names = append(names, "--"+f.Name)
			}
		}
		r.line("\n " + r.t.Muted.Render("Flags: "+strings.Join(names, ", ")))
		return
	}

	widest := 0
	for _, f := range visible {
		if n := len(flagLabel(f)); n > widest {
			widest = n
		}
	}
	r.section("FLAGS")
	for _, f := range visible {
		label := flagLabel(f)
		usage := f.Usage
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
			usage += r.t.Muted.Render(fmt.Sprintf(" (default: %s)", f.DefValue))
		}
		pad := strings.Repeat(" ", widest-len(label))
		r.printf(" %s%s  %s\n", r.flag.Render(label), pad, usage)
	}
}

func (r *helpRenderer) examples(cmd *cobra.Command) {
	text := cmd.Example
	if text == "" {
		_, text = splitExamples(cmd.Long)
	}
	if text == "" {
		return
	}

	sub := lipgloss.NewStyle().Foreground(r.t.Colors.Cyan)
	root := strings.Split(cmd.CommandPath(), " ")[0]
	r.section("EXAMPLES")
	for _, raw := range strings.Split(text, "\n") {
		l := strings.TrimSpace(raw)
		switch {
		case l == "":
			r.line("")
		case strings.HasPrefix(l, "#"):
			r.line(" " + r.t.Muted.Render(l))
		default:
			r.line("  " + r.styleExample(l, root, sub))
		}
	}
}

// styleExample colors the binary name, the subcommand, and any flags of
// one example line, leaving arguments untouched.
func (r *helpRenderer) styleExample(line, root string, sub lipgloss.Style) string {
	words := strings.Fields(line)
	for i, w := range words {
		switch {
		case i == 0 && w == root:
			words[i] = r.command.Render(w)
		case i == 1 && !strings.HasPrefix(w, "-"):
			words[i] = sub.Render(w)
		case strings.HasPrefix(w, "-"):
			words[i] = r.flag.Render(w)
		}
	}
	return strings.Join(words, " ")
}

// flagLabel aligns the shorthand and long forms in the flag table.
func flagLabel(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}

// splitExamples separates a Long description from its trailing
// "Examples:" block.
func splitExamples(long string) (description, examples string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if i := strings.Index(long, marker); i >= 0 {
			return strings.TrimSpace(long[:i]), strings.TrimSpace(long[i+len(marker):])
		}
	}
	return strings.TrimSpace(long), ""
}

// wrap breaks text at word boundaries, preserving explicit newlines.
func wrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		if len(para) <= width {
			out = append(out, para)
			continue
		}
		line := ""
		for _, word := range strings.Fields(para) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// wrapWidth clamps the help wrap width to the terminal. Very narrow
// terminals fall back to the cap rather than wrapping to slivers.
func wrapWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w < helpMinWidth || w > helpMaxWidth {
		w = helpMaxWidth
	}
	return w - 2
}
