// Package prompt asks the user yes/no questions and reads selections.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// Interactive is false when stdin is not a terminal; every confirmation
	// is then answered no without reading.
	Interactive bool
}

func New(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, Interactive: interactive}
}

// FromStdio binds to the process stdin and detects whether it is a terminal.
func FromStdio(out io.Writer) *Prompter {
	return New(os.Stdin, out, term.IsTerminal(int(os.Stdin.Fd())))
}

// Confirm asks question and reports whether the answer starts with y.
func (p *Prompter) Confirm(question string) (bool, error) {
	if !p.Interactive {
		_, _ = fmt.Fprintf(p.out, "%s [y/N] n (stdin is not a terminal; pass --yes)\n", question)
		return false, nil
	}
	_, _ = fmt.Fprintf(p.out, "%s [y/N] ", question)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(answer, "y"), nil
}

// Ask prints label and returns the trimmed reply. EOF yields "".
func (p *Prompter) Ask(label string) (string, error) {
	_, _ = fmt.Fprint(p.out, label)
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			_, _ = fmt.Fprintln(p.out)
			return line, nil
		}
		return "", fmt.Errorf("read answer: %w", err)
	}
	return line, nil
}
