package requirements

import (
	"context"
	"sort"
	"strings"

	"cms-instance-sync/internal/config"
	"cms-instance-sync/internal/logging"
	"cms-instance-sync/internal/process"
)

// Binary is an external program the tool depends on
type Binary struct {
	Name string
	Path string
	// Test is the invocation proving the binary works, e.g. "rsync --version"
	Test string
}

// Check is the outcome for one binary
type Check struct {
	Binary    Binary
	Available bool
	ExitCode  int
	Err       error
}

// Report collects every check; Passed is true only if all binaries are available
type Report struct {
	Checks []Check
	Passed bool
}

// Failed returns the checks that did not pass
func (r *Report) Failed() []Check {
	var failed []Check
	for _, c := range r.Checks {
		if !c.Available {
			failed = append(failed, c)
		}
	}
	return failed
}

// Checker runs binary test invocations
type Checker struct {
	runner process.Runner
	logger *logging.Logger
}

// NewChecker creates a checker executing tests through runner
func NewChecker(runner process.Runner, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Checker{runner: runner, logger: logger}
}

// Check tests every binary, in order. A binary is available when its test
// exits with status 0 and prints something on stdout.
func (c *Checker) Check(ctx context.Context, binaries []Binary) *Report {
	report := &Report{Passed: true}

	for _, b := range binaries {
		check := Check{Binary: b}

		result, err := c.runner.Run(ctx, process.Command{Name: b.Name, Path: b.Test})
		if result != nil {
			check.ExitCode = result.ExitCode
		}
		check.Err = err
		check.Available = err == nil && result != nil && result.ExitCode == 0 && result.Stdout != ""

		c.logger.WithFields(map[string]interface{}{
			"binary":    b.Name,
			"path":      b.Path,
			"available": check.Available,
		}).Debug("Requirement checked")

		if !check.Available {
			report.Passed = false
		}
		report.Checks = append(report.Checks, check)
	}

	return report
}

// BinariesFromConfig lists commands.* entries: canonical binaries first in
// their fixed order, then any other entry carrying both path and test, by name.
func BinariesFromConfig(resolver *config.Resolver) ([]Binary, error) {
	var binaries []Binary
	canonical := make(map[string]bool, len(config.CanonicalCommands))

	for _, name := range config.CanonicalCommands {
		canonical[name] = true
		b, err := binaryAt(resolver, name)
		if err != nil {
			return nil, err
		}
		binaries = append(binaries, b)
	}

	raw, err := resolver.Get("commands")
	if err != nil {
		return nil, err
	}
	commands, ok := raw.(map[string]interface{})
	if !ok {
		return binaries, nil
	}

	var extras []string
	for name := range commands {
		if !canonical[name] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)

	for _, name := range extras {
		b, err := binaryAt(resolver, name)
		if err != nil {
			continue
		}
		binaries = append(binaries, b)
	}
	return binaries, nil
}

func binaryAt(resolver *config.Resolver, name string) (Binary, error) {
	path, err := resolver.String("commands." + name + ".path")
	if err != nil {
		return Binary{}, err
	}
	test, err := resolver.String("commands." + name + ".test")
	if err != nil {
		return Binary{}, err
	}
	return Binary{Name: name, Path: strings.TrimSpace(path), Test: test}, nil
}
