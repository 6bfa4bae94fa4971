package tmuxfmt

import "strings"

// FieldSeparator delimits fields in tmux -F formats. The ASCII unit
// separator cannot appear in session names or paths.
const FieldSeparator = "\x1f"

// Join builds a tmux format string from fields.
func Join(fields ...string) string {
	return strings.Join(fields, FieldSeparator)
}

// SplitLine splits one formatted line into at most maxParts fields. Older
// tmux builds print the separator as a tab or an escaped "\t".
func SplitLine(line string, maxParts int) []string {
	if maxParts <= 0 {
		return nil
	}
	for _, sep := range []string{FieldSeparator, "\t", `\t`} {
		if strings.Contains(line, sep) {
			return strings.SplitN(line, sep, maxParts)
		}
	}
	return []string{line}
}
