package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	apperrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/logging"
)

// Command describes one external process invocation
type Command struct {
	// Name identifies the binary in errors and logs (mysqldump, rsync, ...)
	Name string
	// Path is the configured executable; it may carry leading arguments
	Path string
	Args []string
	Dir  string
	// Verbatim marks Path as a single executable that must not be split
	Verbatim bool
	// StdinFile, when set, is streamed to the process
	StdinFile string
	// StdoutFile, when set, receives stdout instead of the captured buffer
	StdoutFile string
	// Target is the file or database the command acts on, reported on failure
	Target string
}

// Result is the outcome of a finished process
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes external commands
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// SplitCommandLine splits a configured command string into words without a shell
func SplitCommandLine(raw string) ([]string, error) {
	words, err := shellwords.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", raw, err)
	}
	if len(words) == 0 {
		return nil, errors.New("command must contain at least one word")
	}
	return words, nil
}

// Argv returns the full argument vector, executable first
func (c Command) Argv() ([]string, error) {
	if c.Verbatim {
		return append([]string{c.Path}, c.Args...), nil
	}
	words, err := SplitCommandLine(c.Path)
	if err != nil {
		return nil, err
	}
	return append(words, c.Args...), nil
}

// DisplayName returns Name, falling back to the executable base name
func (c Command) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if words, err := c.Argv(); err == nil {
		return filepath.Base(words[0])
	}
	return c.Path
}

// String renders the command as a shell line with passwords masked
func (c Command) String() string {
	argv, err := c.Argv()
	if err != nil {
		argv = append([]string{c.Path}, c.Args...)
	}

	quoted := make([]string, 0, len(argv))
	for _, arg := range logging.SanitizeArgs(argv) {
		quoted = append(quoted, quote(arg))
	}
	line := strings.Join(quoted, " ")

	if c.StdinFile != "" {
		line += " < " + quote(c.StdinFile)
	}
	if c.StdoutFile != "" {
		line += " > " + quote(c.StdoutFile)
	}
	if c.Dir != "" {
		line = "cd " + quote(c.Dir) + " && " + line
	}
	return line
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()[]{}!#~") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	logger *logging.Logger
}

// NewExecRunner creates a runner that logs every invocation
func NewExecRunner(logger *logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ExecRunner{logger: logger}
}

// Run executes cmd and waits for it. A non-zero exit or a start failure
// is returned as an external process error alongside the result.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	name := cmd.DisplayName()

	argv, err := cmd.Argv()
	if err != nil {
		return nil, apperrors.NewExternalProcessError(name, cmd.Target, 0, "", err)
	}

	proc := exec.CommandContext(ctx, argv[0], argv[1:]...)
	proc.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	proc.Stderr = &stderr
	proc.Stdout = &stdout

	if cmd.StdinFile != "" {
		in, err := os.Open(cmd.StdinFile)
		if err != nil {
			return nil, apperrors.NewExternalProcessError(name, cmd.StdinFile, 0, "", err)
		}
		defer in.Close()
		proc.Stdin = in
	}

	var out *os.File
	if cmd.StdoutFile != "" {
		out, err = os.OpenFile(cmd.StdoutFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, apperrors.NewExternalProcessError(name, cmd.StdoutFile, 0, "", err)
		}
		defer out.Close()
		proc.Stdout = out
	}

	start := time.Now()
	runErr := proc.Run()
	result := &Result{
		ExitCode: proc.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr == nil && out != nil {
		runErr = out.Sync()
	}

	r.logger.LogCommandExecution(name, argv[1:], cmd.Dir, result.Duration, result.ExitCode, runErr)

	if runErr != nil {
		target := cmd.Target
		if target == "" {
			target = cmd.StdoutFile
		}
		return result, apperrors.NewExternalProcessError(name, target, result.ExitCode,
			strings.TrimSpace(result.Stderr), runErr)
	}
	return result, nil
}

// DryRunRunner prints commands instead of executing them
type DryRunRunner struct {
	out io.Writer
}

// NewDryRunRunner creates a runner writing each command line to out
func NewDryRunRunner(out io.Writer) *DryRunRunner {
	if out == nil {
		out = os.Stdout
	}
	return &DryRunRunner{out: out}
}

// Run prints the command and reports success
func (r *DryRunRunner) Run(_ context.Context, cmd Command) (*Result, error) {
	fmt.Fprintf(r.out, "[dry-run] %s\n", cmd.String())
	return &Result{}, nil
}
