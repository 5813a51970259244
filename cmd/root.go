package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cms-instance-sync/internal/application"
	"cms-instance-sync/internal/config"
	"cms-instance-sync/internal/display"
	apperrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/logging"
	"cms-instance-sync/internal/process"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// exitError carries an exit code for failures that were already reported
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// cli holds the state shared by the command tree of one invocation
type cli struct {
	v       *viper.Viper
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	environ func() []string
	// runner overrides the os/exec runner
	runner process.Runner

	logger   *logging.Logger
	resolver *config.Resolver
	app      *application.Application
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	c := &cli{
		v:       viper.New(),
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
		environ: os.Environ,
	}
	return c.execute(context.Background(), os.Args[1:])
}

func (c *cli) execute(ctx context.Context, args []string) int {
	root := c.newRootCommand()
	root.SetArgs(args)
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	err := root.ExecuteContext(ctx)
	if c.logger != nil {
		defer c.logger.Close()
	}
	return c.handleError(err)
}

func (c *cli) handleError(err error) int {
	if err == nil {
		return application.ExitSuccess
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if c.app != nil {
		return c.app.HandleError(err)
	}

	fmt.Fprintf(c.errOut, "Error: %s\n", apperrors.FormatUserError(err))
	return application.ExitFailure
}

func (c *cli) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cms-instance-sync",
		Short: "Move the files and database of a CMS instance onto another instance",
		Long: `cms-instance-sync copies a CMS instance's document tree and MySQL database
over another instance, optionally backing up the destination first, and then
runs the CMS console to regenerate sources, update the schema and clear caches.

Configuration is read from config.default.yml and an optional config.yml,
config.yaml or config.toml in the configuration directory, and from
CMS_SYNC__SECTION__KEY environment variables.

Examples:
  # Check that every external binary is available
  cms-instance-sync requirements

  # Move staging onto production, backing up production first
  cms-instance-sync move /srv/staging /srv/production cms_staging cms_prod --backup

  # Print every command without running anything
  cms-instance-sync move /srv/staging /srv/production cms_staging cms_prod --dry-run`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: c.initialize,
	}

	flags := root.PersistentFlags()
	flags.String("config-dir", ".", "directory holding config.default.yml and overrides")
	flags.BoolP("verbose", "v", false, "log every external command")
	flags.BoolP("quiet", "q", false, "suppress non-error output")
	flags.String("log-file", "", "also write logs to this file")
	flags.String("log-format", "text", "log format (text, json)")
	flags.Bool("no-color", false, "disable color output")
	flags.Bool("ask-password", false, "prompt for db.password when it is not configured")

	for key, flag := range map[string]string{
		"config_dir":   "config-dir",
		"verbose":      "verbose",
		"quiet":        "quiet",
		"log_file":     "log-file",
		"log_format":   "log-format",
		"no_color":     "no-color",
		"ask_password": "ask-password",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}
	c.v.SetEnvPrefix(config.EnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(
		c.newMoveCommand(),
		c.newRequirementsCommand(),
		c.newConfigCommand(),
		c.newVersionCommand(),
	)
	return root
}

// initialize validates global flags and creates the logger and resolver
func (c *cli) initialize(cmd *cobra.Command, _ []string) error {
	verbose := c.v.GetBool("verbose")
	quiet := c.v.GetBool("quiet")
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}

	format := c.v.GetString("log_format")
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format %q, must be one of: text, json", format)
	}

	level := logging.LogLevelNormal
	if quiet {
		level = logging.LogLevelQuiet
	} else if verbose {
		level = logging.LogLevelVerbose
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:   level,
		Output:  c.errOut,
		Format:  format,
		LogFile: c.v.GetString("log_file"),
	})
	if err != nil {
		return err
	}
	c.logger = logger

	c.resolver = config.NewFileResolver(c.v.GetString("config_dir"), c.environ())
	logger.WithField("command", cmd.Name()).Debug("Configuration directory: " + c.v.GetString("config_dir"))
	return nil
}

// application builds the application for a command with its own options
func (c *cli) application(dryRun, autoApprove bool) *application.Application {
	c.app = application.NewApplication(c.resolver, application.Options{
		Display: display.Config{
			Writer:       c.out,
			ColorEnabled: !c.v.GetBool("no_color"),
			Quiet:        c.v.GetBool("quiet"),
			Theme:        display.DefaultColorTheme(),
		},
		In:          c.in,
		ErrOut:      c.errOut,
		DryRun:      dryRun,
		AutoApprove: autoApprove,
		AskPassword: c.v.GetBool("ask_password"),
		Runner:      c.runner,
	}, c.logger)
	return c.app
}

func (c *cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  "Print the version information for cms-instance-sync",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cms-instance-sync version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildTime)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}
