package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-instance-sync/internal/application"
	apperrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/process"
)

type stubRunner struct {
	calls []process.Command
	fail  map[string]bool
}

func (r *stubRunner) Run(_ context.Context, cmd process.Command) (*process.Result, error) {
	r.calls = append(r.calls, cmd)
	if r.fail[cmd.DisplayName()] {
		return &process.Result{ExitCode: 127}, apperrors.NewExternalProcessError(cmd.DisplayName(), cmd.Target, 127, "command not found", errors.New("exit status 127"))
	}
	return &process.Result{Stdout: cmd.DisplayName() + " ok\n"}, nil
}

const testConfig = `commands:
  mysql:
    path: mysql
    test: mysql --version
db:
  host: db.internal
  username: deploy
  password: s3cr3t
backup:
  directory: backups
`

type harness struct {
	cli    *cli
	runner *stubRunner
	out    *bytes.Buffer
	errOut *bytes.Buffer
	dir    string
}

func newHarness(t *testing.T, input string, env ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.default.yml"), []byte(testConfig), 0o644))

	h := &harness{
		runner: &stubRunner{fail: map[string]bool{}},
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
		dir:    dir,
	}
	h.cli = &cli{
		v:       viper.New(),
		in:      strings.NewReader(input),
		out:     h.out,
		errOut:  h.errOut,
		environ: func() []string { return env },
		runner:  h.runner,
	}
	return h
}

func (h *harness) run(args ...string) int {
	return h.cli.execute(context.Background(), append(args, "--config-dir", h.dir, "--no-color"))
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "2024-03-09", "abc123", "go1.22")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown", "unknown") })

	h := newHarness(t, "")
	assert.Equal(t, application.ExitSuccess, h.run("version"))
	assert.Contains(t, h.out.String(), "cms-instance-sync version 1.2.3")
	assert.Contains(t, h.out.String(), "Commit: abc123")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	h := newHarness(t, "")

	require.Equal(t, application.ExitSuccess, h.run("config", "show"))
	out := h.out.String()
	assert.NotContains(t, out, "s3cr3t")
	assert.Contains(t, out, "********")
	assert.Contains(t, out, "host: db.internal")
	// defaults are merged under the file
	assert.Contains(t, out, "console: bin/roadiz")
}

func TestConfigShowMissingPasswordStaysNull(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "config.default.yml"), []byte("db:\n  password: ~\n"), 0o644))

	require.Equal(t, application.ExitSuccess, h.run("config", "show"))
	assert.NotContains(t, h.out.String(), "********")
}

func TestConfigGet(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  []string
		want string
	}{
		{name: "scalar from file", args: []string{"db.host"}, want: "db.internal\n"},
		{name: "scalar from defaults", args: []string{"cms.documents"}, want: "files\n"},
		{name: "environment wins", args: []string{"db.host"}, env: []string{"CMS_SYNC__DB__HOST=10.0.0.5"}, want: "10.0.0.5\n"},
		{name: "mapping as yaml", args: []string{"commands.mysql"}, want: "path: mysql\ntest: mysql --version\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "", tt.env...)
			require.Equal(t, application.ExitSuccess, h.run(append([]string{"config", "get"}, tt.args...)...))
			assert.Equal(t, tt.want, h.out.String())
		})
	}
}

func TestConfigGetMissingKey(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, application.ExitFailure, h.run("config", "get", "db.port"))
	assert.Contains(t, h.errOut.String(), "db.port")
}

func TestRequirementsCommand(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, application.ExitSuccess, h.run("requirements"))
	assert.Contains(t, h.out.String(), "mysql (mysql) => OK")
	assert.Len(t, h.runner.calls, 6)

	h = newHarness(t, "")
	h.runner.fail["composer"] = true
	assert.Equal(t, application.ExitFailure, h.run("requirements"))
	assert.Contains(t, h.out.String(), "composer (composer) => FAIL")
}

func TestMoveDeclinedExitsWithAbort(t *testing.T) {
	h := newHarness(t, "n\n")

	code := h.run("move", "/srv/staging", "/srv/production", "cms_staging", "cms_prod")
	assert.Equal(t, application.ExitAborted, code)
	assert.Empty(t, h.runner.calls)
	assert.Contains(t, h.out.String(), "Migration aborted by user")
}

func TestMoveRequiresFourArguments(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, application.ExitFailure, h.run("move", "/srv/staging", "/srv/production"))
	assert.Contains(t, h.errOut.String(), "accepts 4 arg(s)")
}

func TestVerboseAndQuietAreExclusive(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, application.ExitFailure, h.run("requirements", "--verbose", "--quiet"))
	assert.Contains(t, h.errOut.String(), "mutually exclusive")
	assert.Empty(t, h.runner.calls)
}

func TestInvalidLogFormat(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, application.ExitFailure, h.run("version", "--log-format", "xml"))
	assert.Contains(t, h.errOut.String(), "invalid log format")
}

func TestMissingConfigDirectory(t *testing.T) {
	h := newHarness(t, "")
	code := h.cli.execute(context.Background(), []string{"config", "show", "--config-dir", filepath.Join(h.dir, "missing")})

	assert.Equal(t, application.ExitFailure, code)
	assert.Contains(t, h.errOut.String(), "config.default.yml")
}

func TestConfigDirFromEnvironment(t *testing.T) {
	h := newHarness(t, "")
	t.Setenv("CMS_SYNC_CONFIG_DIR", h.dir)

	code := h.cli.execute(context.Background(), []string{"config", "get", "db.username"})
	assert.Equal(t, application.ExitSuccess, code)
	assert.Equal(t, "deploy\n", h.out.String())
}
