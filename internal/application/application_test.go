package application

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cms-instance-sync/internal/config"
	"cms-instance-sync/internal/display"
	appErrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/migration"
	"cms-instance-sync/internal/process"
)

type fakeRunner struct {
	calls []process.Command
	fail  map[string]bool
}

func (r *fakeRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	r.calls = append(r.calls, cmd)
	if r.fail[cmd.DisplayName()] {
		return &process.Result{ExitCode: 1}, appErrors.NewExternalProcessError(cmd.DisplayName(), cmd.Target, 1, "not found", errors.New("exit status 1"))
	}
	if cmd.StdoutFile != "" {
		if err := os.WriteFile(cmd.StdoutFile, []byte("-- dump\n"), 0o600); err != nil {
			return nil, err
		}
	}
	return &process.Result{Stdout: cmd.DisplayName() + " 1.0\n"}, nil
}

func testResolver(extra config.Document) *config.Resolver {
	return config.NewResolver(func() ([]config.Document, error) {
		docs := []config.Document{
			config.DefaultDocument(),
			{"db": map[string]interface{}{"password": "secret"}},
		}
		if extra != nil {
			docs = append(docs, extra)
		}
		return docs, nil
	})
}

type testApp struct {
	app    *Application
	runner *fakeRunner
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestApp(t *testing.T, resolver *config.Resolver, input string, opts Options) *testApp {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	runner := &fakeRunner{fail: map[string]bool{}}

	opts.Display = display.Config{Writer: out, Quiet: opts.Display.Quiet, Theme: display.DefaultColorTheme()}
	opts.In = strings.NewReader(input)
	opts.ErrOut = errOut
	opts.Runner = runner
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}

	return &testApp{
		app:    NewApplication(resolver, opts, nil),
		runner: runner,
		out:    out,
		errOut: errOut,
	}
}

func instances(t *testing.T) migration.Context {
	t.Helper()
	base := t.TempDir()
	for _, name := range []string{"staging", "production"} {
		root := filepath.Join(base, name)
		if err := os.MkdirAll(filepath.Join(root, "files"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "bin", "roadiz"), nil, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return migration.Context{
		SourcePath:          filepath.Join(base, "staging"),
		DestinationPath:     filepath.Join(base, "production"),
		SourceDatabase:      "cms_staging",
		DestinationDatabase: "cms_prod",
	}
}

func TestMoveConfirmed(t *testing.T) {
	ta := newTestApp(t, testResolver(nil), "y\nyes\n", Options{})
	mc := instances(t)

	result, err := ta.app.Move(context.Background(), mc)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("Expected done state, got %s", result.State)
	}

	// two probes, dump, import, rsync and three console commands
	if len(ta.runner.calls) != 8 {
		t.Fatalf("Expected 8 commands, got %d", len(ta.runner.calls))
	}
	probe := ta.runner.calls[0]
	if got := strings.Join(probe.Args, " "); got != "-hlocalhost -uroot -psecret -e USE `cms_staging`" {
		t.Errorf("Unexpected probe arguments %q", got)
	}

	output := ta.out.String()
	for _, want := range []string{"[1/7]", "[7/7]", "Source dump kept at", "Migration complete"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, output)
		}
	}
	if !strings.Contains(ta.errOut.String(), "Is this information correct? [y/N]") {
		t.Errorf("Expected the confirmation prompt on stderr, got %q", ta.errOut.String())
	}
}

func TestMoveDeclined(t *testing.T) {
	ta := newTestApp(t, testResolver(nil), "n\n", Options{})

	_, err := ta.app.Move(context.Background(), instances(t))
	if err == nil {
		t.Fatal("Expected an error when the user declines")
	}
	if len(ta.runner.calls) != 0 {
		t.Errorf("Expected no external commands, got %d", len(ta.runner.calls))
	}
	if code := ta.app.HandleError(err); code != ExitAborted {
		t.Errorf("Expected exit code %d, got %d", ExitAborted, code)
	}
}

func TestMoveQuietStillRestatesInstances(t *testing.T) {
	ta := newTestApp(t, testResolver(nil), "n\n", Options{Display: display.Config{Quiet: true}})
	mc := instances(t)

	if _, err := ta.app.Move(context.Background(), mc); ExitCode(err) != ExitAborted {
		t.Fatalf("Expected abort, got %v", err)
	}

	prompts := ta.errOut.String()
	question := strings.Index(prompts, "Is this information correct?")
	if question < 0 {
		t.Fatalf("Expected the confirmation prompt, got %q", prompts)
	}
	for _, want := range []string{mc.SourcePath, mc.DestinationPath, mc.SourceDatabase, mc.DestinationDatabase} {
		at := strings.Index(prompts, want)
		if at < 0 || at > question {
			t.Errorf("Expected %q before the first question, got:\n%s", want, prompts)
		}
	}
}

func TestMoveEndOfInputDeclines(t *testing.T) {
	ta := newTestApp(t, testResolver(nil), "", Options{})

	_, err := ta.app.Move(context.Background(), instances(t))
	if ExitCode(err) != ExitAborted {
		t.Errorf("Expected abort on end of input, got %v", err)
	}
	if len(ta.runner.calls) != 0 {
		t.Errorf("Expected no external commands, got %d", len(ta.runner.calls))
	}
}

func TestMoveDryRunWithBackup(t *testing.T) {
	backupDir := filepath.Join(t.TempDir(), "backups")
	resolver := testResolver(config.Document{
		"backup": map[string]interface{}{"directory": backupDir},
	})
	ta := newTestApp(t, resolver, "", Options{DryRun: true})
	mc := instances(t)
	mc.CreateBackup = true

	result, err := ta.app.Move(context.Background(), mc)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	// only the two read-only probes are executed
	if len(ta.runner.calls) != 2 {
		t.Fatalf("Expected 2 executed commands, got %d", len(ta.runner.calls))
	}
	if !result.DryRun || len(result.Completed) != 9 {
		t.Errorf("Expected a 9 step dry run, got %+v", result)
	}
	output := ta.out.String()
	if strings.Count(output, "[dry-run]") != 8 {
		t.Errorf("Expected 8 printed commands, got:\n%s", output)
	}
	if strings.Contains(output, "secret") {
		t.Error("Password leaked into dry-run output")
	}
	if _, err := os.Stat(backupDir); !os.IsNotExist(err) {
		t.Error("Dry run must not create the backup directory")
	}
}

func TestMoveValidationFailure(t *testing.T) {
	ta := newTestApp(t, testResolver(nil), "", Options{AutoApprove: true})
	ta.runner.fail["mysql"] = true

	_, err := ta.app.Move(context.Background(), instances(t))
	if !appErrors.IsType(err, appErrors.ErrorTypeValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if code := ta.app.HandleError(err); code != ExitFailure {
		t.Errorf("Expected exit code %d, got %d", ExitFailure, code)
	}

	errOut := ta.errOut.String()
	if !strings.Contains(errOut, `Error: Source database "cms_staging" does not exist`) {
		t.Errorf("Unexpected error output:\n%s", errOut)
	}
	if !strings.Contains(errOut, "Troubleshooting hints:") {
		t.Errorf("Expected troubleshooting hints, got:\n%s", errOut)
	}
}

func TestMoveMissingPassword(t *testing.T) {
	resolver := config.NewResolver(func() ([]config.Document, error) {
		return []config.Document{config.DefaultDocument()}, nil
	})
	ta := newTestApp(t, resolver, "", Options{AutoApprove: true})

	_, err := ta.app.Move(context.Background(), instances(t))
	if !appErrors.IsType(err, appErrors.ErrorTypeConfigKeyNotFound) {
		t.Fatalf("Expected missing key error, got %v", err)
	}
	if len(ta.runner.calls) != 0 {
		t.Errorf("Expected no external commands, got %d", len(ta.runner.calls))
	}
}

func TestMoveAskPassword(t *testing.T) {
	resolver := config.NewResolver(func() ([]config.Document, error) {
		return []config.Document{config.DefaultDocument()}, nil
	})
	ta := newTestApp(t, resolver, "typed\n", Options{AutoApprove: true, AskPassword: true})

	if _, err := ta.app.Move(context.Background(), instances(t)); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if got := ta.runner.calls[0].Args[2]; got != "-ptyped" {
		t.Errorf("Expected prompted password to be used, got %q", got)
	}
	if !strings.Contains(ta.errOut.String(), "Database password: ") {
		t.Error("Expected a password prompt")
	}
}

func TestRequirements(t *testing.T) {
	ta := newTestApp(t, testResolver(nil), "", Options{})

	report, err := ta.app.Requirements(context.Background())
	if err != nil {
		t.Fatalf("Requirements() error = %v", err)
	}
	if !report.Passed {
		t.Error("Expected all requirements to pass")
	}

	output := ta.out.String()
	for _, want := range []string{"git (git) => OK", "composer (composer) => OK", "All requirements passed"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, output)
		}
	}
	if strings.Index(output, "git (") > strings.Index(output, "mysqldump (") {
		t.Error("Expected canonical order")
	}
}

func TestRequirementsFailure(t *testing.T) {
	ta := newTestApp(t, testResolver(nil), "", Options{})
	ta.runner.fail["rsync"] = true

	report, err := ta.app.Requirements(context.Background())
	if err != nil {
		t.Fatalf("Requirements() error = %v", err)
	}
	if report.Passed {
		t.Error("Expected requirements to fail")
	}
	if !strings.Contains(ta.out.String(), "rsync (rsync) => FAIL") || !strings.Contains(ta.out.String(), "Requirements failed") {
		t.Errorf("Unexpected output:\n%s", ta.out.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitSuccess},
		{name: "aborted", err: appErrors.NewInterruptionError("Migration aborted by user"), want: ExitAborted},
		{name: "validation", err: appErrors.NewValidationError("source-path", "missing"), want: ExitFailure},
		{name: "plain", err: errors.New("boom"), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleErrorExternalProcess(t *testing.T) {
	ta := newTestApp(t, testResolver(nil), "", Options{})
	err := appErrors.NewExternalProcessError("mysql", "cms_prod", 1, "ERROR 1064 at line 12", nil).
		WithContext("dump_file", "/tmp/cms-sync-x.sql")

	if code := ta.app.HandleError(err); code != ExitFailure {
		t.Errorf("Expected exit code %d, got %d", ExitFailure, code)
	}

	errOut := ta.errOut.String()
	for _, want := range []string{"Error: mysql failed for cms_prod (exit status 1)", "ERROR 1064 at line 12", "The source dump is kept at /tmp/cms-sync-x.sql"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("Expected %q in:\n%s", want, errOut)
		}
	}
}
