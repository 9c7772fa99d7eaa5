// Package prompt asks the user yes/no and multiple-choice questions on a
// terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrInvalidResponse is returned after too many unrecognized answers.
var ErrInvalidResponse = errors.New("not a valid response")

const maxAttempts = 3

// Prompter reads answers line by line. When not interactive, every
// question resolves to its default without reading input.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// New returns a Prompter over in and out.
func New(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// NewTerminal returns a Prompter that is interactive only when in is a
// terminal.
func NewTerminal(in *os.File, out io.Writer) *Prompter {
	return New(in, out, term.IsTerminal(int(in.Fd())))
}

// Interactive reports whether questions are actually asked.
func (p *Prompter) Interactive() bool {
	return p.interactive
}

// Confirm asks a yes/no question. An empty answer or end of input picks def.
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	d := 1
	if def {
		d = 0
	}
	i, err := p.Choose(question, []string{"yes", "no"}, d)
	if err != nil {
		return def, err
	}
	return i == 0, nil
}

// Choose asks the user to pick one of options and returns its index.
// Answers match an option's full text, its first letter, or its 1-based
// number, case-insensitively. An empty answer or end of input picks def.
func (p *Prompter) Choose(question string, options []string, def int) (int, error) {
	if def < 0 || def >= len(options) {
		return 0, fmt.Errorf("default %d out of range for %d options", def, len(options))
	}
	if !p.interactive {
		return def, nil
	}

	hint := optionHint(options, def)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprintf(p.out, "%s %s: ", question, hint)

		line, err := p.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if err != nil && !errors.Is(err, io.EOF) {
			return def, fmt.Errorf("reading answer: %w", err)
		}
		if answer == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(p.out)
			}
			return def, nil
		}

		if i, ok := match(answer, options); ok {
			return i, nil
		}
		fmt.Fprintf(p.out, "%q is %s\n", answer, ErrInvalidResponse)
		if errors.Is(err, io.EOF) {
			break
		}
	}
	return def, ErrInvalidResponse
}

func match(answer string, options []string) (int, bool) {
	for i, o := range options {
		if o == "" {
			continue
		}
		o = strings.ToLower(o)
		if answer == o || answer == o[:1] {
			return i, true
		}
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		return n - 1, true
	}
	return 0, false
}

// optionHint renders options as "[y]es/[N]o" with the default's key upper-cased.
func optionHint(options []string, def int) string {
	parts := make([]string, len(options))
	for i, o := range options {
		if o == "" {
			continue
		}
		key := strings.ToLower(o[:1])
		if i == def {
			key = strings.ToUpper(key)
		}
		parts[i] = "[" + key + "]" + o[1:]
	}
	return strings.Join(parts, "/")
}
