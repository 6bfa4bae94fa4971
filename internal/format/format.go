// Package format renders status markers and tables for terminal output.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// Liveness of a registry project on disk.
type Liveness string

const (
	Exists    Liveness = "+"
	Clonable  Liveness = "~"
	Unusable  Liveness = "x"
	Running   Liveness = "●"
	NotActive Liveness = "○"
)

func (l Liveness) Colored() string {
	switch l {
	case Exists, Running:
		return Green.Sprint(string(l))
	case Clonable:
		return Yellow.Sprint(string(l))
	case Unusable:
		return Red.Sprint(string(l))
	default:
		return Dim.Sprint(string(l))
	}
}

func OK(format string, args ...any) string {
	return Green.Sprint("✓") + " " + fmt.Sprintf(format, args...)
}

func Fail(format string, args ...any) string {
	return Red.Sprint("x") + " " + fmt.Sprintf(format, args...)
}

func Warn(format string, args ...any) string {
	return Yellow.Sprint("!") + " " + fmt.Sprintf(format, args...)
}

// Indexed writes "  N. text" lines, padding indices to a common width.
func Indexed(w io.Writer, start int, rows []string) {
	width := len(fmt.Sprint(start + len(rows) - 1))
	for i, row := range rows {
		_, _ = fmt.Fprintf(w, "%*d. %s\n", width, start+i, row)
	}
}

// Truncate shortens s to max runes with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

// ShortenHome replaces a leading home prefix with "~".
func ShortenHome(path, home string) string {
	if home == "" || home == "/" {
		return path
	}
	if path == home {
		return "~"
	}
	if strings.HasPrefix(path, home+"/") {
		return "~" + path[len(home):]
	}
	return path
}
