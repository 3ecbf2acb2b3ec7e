package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════════════════╗
    ║ ███████╗██████╗ ███████╗ ██████╗██████╗  █████╗ ██████╗ ███████╗ ║
    ║ ██╔════╝██╔══██╗██╔════╝██╔════╝██╔══██╗██╔══██╗██╔══██╗██╔════╝ ║
    ║ █████╗  ██████╔╝███████╗██║     ██████╔╝███████║██████╔╝█████╗   ║
    ║ ██╔══╝  ██╔══██╗╚════██║██║     ██╔══██╗██╔══██║██╔═══╝ ██╔══╝   ║
    ║ ██║     ██████╔╝███████║╚██████╗██║  ██║██║  ██║██║     ███████╗ ║
    ║ ╚═╝     ╚═════╝ ╚══════╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝     ╚══════╝ ║
    ║            CONVERSATION ARCHIVE & ATTACHMENT EXTRACTOR           ║
    ╚═══════════════════════════════════════════════════════════════╝
`

var (
	out     io.Writer = os.Stdout
	quiet   atomic.Bool
	colored = term.IsTerminal(int(os.Stdout.Fd()))
)

// SetOutput redirects console output and disables colors; tests use it
func SetOutput(w io.Writer) {
	out = w
	colored = false
}

// Output returns the console writer
func Output() io.Writer {
	return out
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	quiet.Store(q)
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	return quiet.Load()
}

// Color functions for terminal output
var (
	Cyan    = colorize(pterm.FgCyan)
	Yellow  = colorize(pterm.FgYellow)
	Red     = colorize(pterm.FgRed)
	Green   = colorize(pterm.FgGreen)
	Magenta = colorize(pterm.FgMagenta)
	Dim     = colorize(pterm.FgGray)
)

func colorize(c pterm.Color) func(string) string {
	return func(text string) string {
		if !colored {
			return text
		}
		return c.Sprint(text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(out, Cyan(ASCIILogo))
}

// PrintStep prints a top-level progress line: "[+] - msg"
func PrintStep(format string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(out, "[+] - "+fmt.Sprintf(format, args...))
}

// PrintDetail prints an indented progress line: "[+]     - msg"
func PrintDetail(format string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(out, "[+]     - "+fmt.Sprintf(format, args...))
}

// PrintLine prints text as is
func PrintLine(text string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(out, text)
}

// PrintError prints an error message in red, even in quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(out, Magenta(msg))
}
