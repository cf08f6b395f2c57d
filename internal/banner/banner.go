// Package banner prints the chat greeting.
package banner

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StartupOpts allows tests to capture output and disable delays.
// If nil, Startup uses os.Stdout and the default line delay.
type StartupOpts struct {
	Writer     io.Writer // if set, use instead of os.Stdout
	NoDelay    bool      // if true, do not sleep between lines
	Connection string    // rendered connection label shown under the art
}

const bannerArt = `
 ____   ____  ____  _  __
|  _ \ | ___|| ___|| |/ /
| |_) ||  _| |  _| | ' /
|  __/ | |___| |___| . \
|_|    |_____|_____|_|\_\
`

var taglineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

// Startup prints the art line by line, then the version and connection.
func Startup(version string, opts *StartupOpts) {
	w := io.Writer(os.Stdout)
	lineDelay := 20 * time.Millisecond
	connection := ""
	if opts != nil {
		if opts.Writer != nil {
			w = opts.Writer
		}
		if opts.NoDelay {
			lineDelay = 0
		}
		connection = opts.Connection
	}

	for _, line := range splitLines(bannerArt) {
		fmt.Fprintln(w, line)
		if lineDelay > 0 {
			time.Sleep(lineDelay)
		}
	}
	fmt.Fprintf(w, "%s  v%s\n", taglineStyle.Render("  chat with your database"), version)
	if connection != "" {
		fmt.Fprintf(w, "  connected to %s\n", connection)
	}
	fmt.Fprintln(w, "  type exit or quit to leave")
	fmt.Fprintln(w)
}

func splitLines(s string) []string {
	var out []string
	var line []rune
	for _, r := range s {
		if r == '\n' {
			if len(line) > 0 || out != nil {
				out = append(out, string(line))
			}
			line = line[:0]
			continue
		}
		line = append(line, r)
	}
	if len(line) > 0 {
		out = append(out, string(line))
	}
	return out
}
