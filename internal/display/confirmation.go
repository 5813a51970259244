package display

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	apperrors "cms-instance-sync/internal/errors"
)

// Prompter asks yes/no questions and reads secrets from the terminal
type Prompter struct {
	reader *bufio.Reader
	input  io.Reader
	writer io.Writer
	colors ColorSystem
	theme  ColorTheme
}

type answer struct {
	line string
	err  error
}

// NewPrompter creates a prompter reading answers from in and writing
// questions to out
func NewPrompter(in io.Reader, out io.Writer, colors ColorSystem) *Prompter {
	if colors == nil {
		colors = NewColorSystem(out, false)
	}
	return &Prompter{
		reader: bufio.NewReader(in),
		input:  in,
		writer: out,
		colors: colors,
		theme:  DefaultColorTheme(),
	}
}

// Notice prints a line next to the prompts. Unlike Service output it is
// shown in quiet mode too.
func (p *Prompter) Notice(message string) {
	fmt.Fprintln(p.writer, p.colors.Colorize(message, p.theme.Info))
}

// Confirm prints question with a [y/N] suffix and reports whether the user
// answered yes. Anything other than y or yes, including an empty line or end
// of input, is a no. Cancelling ctx while waiting returns an interruption
// error.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(p.writer, "%s %s ", p.colors.Colorize(question, p.theme.Warning), "[y/N]")

	// the read runs in its own goroutine so that a cancelled ctx does not
	// have to wait for a line that may never arrive
	ch := make(chan answer, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.writer)
		return false, apperrors.NewInterruptionError("confirmation interrupted")
	case a := <-ch:
		if a.err != nil && a.err != io.EOF {
			return false, apperrors.WrapError(a.err, "failed to read answer")
		}
		if a.err == io.EOF && a.line == "" {
			fmt.Fprintln(p.writer)
			return false, nil
		}
		return isYes(a.line), nil
	}
}

// ReadPassword prompts for a secret. On a terminal echo is disabled;
// otherwise a single line is read as is.
func (p *Prompter) ReadPassword(prompt string) (string, error) {
	fmt.Fprint(p.writer, prompt)

	if f, ok := p.input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.writer)
		if err != nil {
			return "", apperrors.WrapError(err, "failed to read password")
		}
		return string(secret), nil
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", apperrors.WrapError(err, "failed to read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isYes(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
