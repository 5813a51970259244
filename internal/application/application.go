package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cms-instance-sync/internal/backup"
	"cms-instance-sync/internal/config"
	"cms-instance-sync/internal/database"
	"cms-instance-sync/internal/display"
	appErrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/logging"
	"cms-instance-sync/internal/migration"
	"cms-instance-sync/internal/process"
	"cms-instance-sync/internal/requirements"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitAborted = 2
)

// Options holds the command line settings shared by every command
type Options struct {
	Display     display.Config
	In          io.Reader
	ErrOut      io.Writer
	DryRun      bool
	AutoApprove bool
	AskPassword bool
	// TempDir receives source dumps; the system temp directory when empty
	TempDir string
	// Runner overrides the os/exec runner
	Runner process.Runner
}

// Application wires configuration, display and external processes
// together for the CLI commands
type Application struct {
	resolver *config.Resolver
	display  *display.Service
	prompter *display.Prompter
	runner   process.Runner
	logger   *logging.Logger
	opts     Options
}

// NewApplication creates a new application instance
func NewApplication(resolver *config.Resolver, opts Options, logger *logging.Logger) *Application {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}

	svc := display.NewService(opts.Display)

	runner := opts.Runner
	if runner == nil {
		runner = process.NewExecRunner(logger)
	}

	return &Application{
		resolver: resolver,
		display:  svc,
		prompter: display.NewPrompter(opts.In, opts.ErrOut, display.NewColorSystem(opts.ErrOut, opts.Display.ColorEnabled)),
		runner:   runner,
		logger:   logger,
		opts:     opts,
	}
}

// Display returns the user facing output service
func (app *Application) Display() *display.Service {
	return app.display
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. Only a
// pending confirmation observes it; a confirmed migration runs to the end.
func (app *Application) SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Move runs the migration sequence for mc
func (app *Application) Move(ctx context.Context, mc migration.Context) (*migration.Result, error) {
	seq, err := app.newSequencer(ctx, mc)
	if err != nil {
		return nil, err
	}

	result, err := seq.Run(ctx, mc)
	if result != nil {
		app.displayResults(result, err)
	}
	return result, err
}

func (app *Application) newSequencer(ctx context.Context, mc migration.Context) (*migration.Sequencer, error) {
	toolset, err := migration.LoadToolset(app.resolver)
	if err != nil {
		return nil, err
	}

	var prompt database.PasswordPrompt
	if app.opts.AskPassword {
		prompt = func() (string, error) {
			return app.prompter.ReadPassword("Database password: ")
		}
	}
	conn, err := database.LoadConnection(app.resolver, prompt)
	if err != nil {
		return nil, err
	}

	probeKind, err := app.resolver.StringOr("db.probe", database.ProbeClient)
	if err != nil {
		return nil, err
	}
	probe, err := database.NewProbe(probeKind, conn, app.runner, toolset.Mysql, app.logger)
	if err != nil {
		return nil, err
	}

	var backups *backup.Manager
	if mc.CreateBackup {
		if backups, err = app.newBackupManager(ctx); err != nil {
			return nil, err
		}
	}

	return migration.NewSequencer(migration.Dependencies{
		Toolset:    toolset,
		Connection: conn,
		Runner:     app.runner,
		DryRunner:  process.NewDryRunRunner(app.display.Writer()),
		Probe:      probe,
		Confirmer:  app.prompter,
		Reporter:   app.display,
		NewProgress: func(total int) migration.Progress {
			return app.display.NewProgressBar(total)
		},
		Backups: backups,
		Logger:  app.logger,
	}, migration.Options{
		DryRun:      app.opts.DryRun,
		AutoApprove: app.opts.AutoApprove,
		TempDir:     app.opts.TempDir,
	}), nil
}

func (app *Application) newBackupManager(ctx context.Context) (*backup.Manager, error) {
	cfg, err := backup.LoadConfig(app.resolver)
	if err != nil {
		return nil, err
	}

	var storage backup.Storage
	if !app.opts.DryRun {
		if storage, err = backup.NewStorage(ctx, cfg.Storage); err != nil {
			return nil, err
		}
	}
	return backup.NewManager(cfg, storage, app.logger), nil
}

// Requirements checks every configured binary and prints one line per binary
func (app *Application) Requirements(ctx context.Context) (*requirements.Report, error) {
	binaries, err := requirements.BinariesFromConfig(app.resolver)
	if err != nil {
		return nil, err
	}

	report := requirements.NewChecker(app.runner, app.logger).Check(ctx, binaries)
	colors := app.display.Colors()
	for _, check := range report.Checks {
		status := colors.Colorize("OK", display.ColorGreen)
		if !check.Available {
			status = colors.Colorize("FAIL", display.ColorRed)
		}
		app.display.Printf("%s (%s) => %s\n", check.Binary.Name, check.Binary.Path, status)
	}

	if report.Passed {
		app.display.Success("All requirements passed")
	} else {
		app.display.Error("Requirements failed")
	}
	return report, nil
}

// HandleError prints a user friendly message, troubleshooting hints and
// logs the details. It returns the process exit code for err.
func (app *Application) HandleError(err error) int {
	code := ExitCode(err)
	if err == nil {
		return code
	}

	if code == ExitAborted {
		app.display.Warning(appErrors.FormatUserError(err))
		return code
	}

	fmt.Fprintf(app.opts.ErrOut, "Error: %s\n", appErrors.FormatUserError(err))

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		app.logger.WithFields(map[string]interface{}{
			"error_type": string(appErr.Type),
			"context":    appErr.Context,
		}).Debug("Execution failed")

		if stderr, ok := appErrors.ContextValue(err, "stderr").(string); ok && stderr != "" {
			fmt.Fprintf(app.opts.ErrOut, "\n%s\n", stderr)
		}
		app.provideTroubleshootingHints(appErr)
	}
	return code
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case appErrors.IsType(err, appErrors.ErrorTypeInterruption):
		return ExitAborted
	default:
		return ExitFailure
	}
}

// provideTroubleshootingHints provides helpful troubleshooting information
func (app *Application) provideTroubleshootingHints(appErr *appErrors.AppError) {
	var hints []string

	switch appErr.Type {
	case appErrors.ErrorTypeConfigLoad:
		hints = []string{
			"Check that --config-dir points at the directory holding " + config.BaseFileName,
			"Validate the YAML or TOML syntax of the configuration files",
		}
	case appErrors.ErrorTypeConfigKeyNotFound:
		hints = []string{
			"Add the missing key to " + config.OverrideFileNames[0],
			"Or export it, e.g. CMS_SYNC__DB__PASSWORD for db.password",
			"Run 'cms-instance-sync config show' to inspect the merged configuration",
		}
	case appErrors.ErrorTypeValidation:
		hints = []string{
			"Check that both database names are correct and the databases exist",
			"Verify that both paths point at CMS instance roots",
			"Review the command line arguments",
		}
	case appErrors.ErrorTypeExternalProcess:
		hints = []string{
			"Run 'cms-instance-sync requirements' to check the external binaries",
			"Re-run with --verbose to log every command line",
		}
		if dump, ok := appErr.Context["dump_file"].(string); ok {
			hints = append(hints, "The source dump is kept at "+dump)
		}
	case appErrors.ErrorTypeConnection:
		hints = []string{
			"Check that the database server is running",
			"Verify db.host and db.port",
			"Ensure network connectivity to the database server",
		}
	case appErrors.ErrorTypePermission:
		hints = []string{
			"Verify db.username and db.password",
			"Check that the user has the required privileges on both databases",
			"Check file permissions of the instance and backup directories",
		}
	case appErrors.ErrorTypeBackup:
		hints = []string{
			"Check the backup.* settings with 'cms-instance-sync config show'",
			"Verify the storage credentials and that the bucket or container exists",
		}
	}

	if len(hints) == 0 {
		return
	}
	fmt.Fprintf(app.opts.ErrOut, "\nTroubleshooting hints:\n")
	for _, hint := range hints {
		fmt.Fprintf(app.opts.ErrOut, "- %s\n", hint)
	}
}

// displayResults displays the execution results to the user
func (app *Application) displayResults(result *migration.Result, err error) {
	if result.DumpFile != "" && !result.DryRun {
		app.display.Info("Source dump kept at " + result.DumpFile)
	}
	if result.DatabaseBackup != nil {
		app.display.Info(fmt.Sprintf("Destination database backup: %s", result.DatabaseBackup.Location))
	}
	if result.FilesBackup != "" && !result.DryRun {
		app.display.Info("Destination files backup: " + result.FilesBackup)
	}

	if err != nil || !result.Succeeded() {
		return
	}

	duration := result.Duration.Round(time.Second)
	if result.DryRun {
		app.display.Success(fmt.Sprintf("Dry run complete, %d steps planned", len(result.Completed)))
		return
	}
	app.display.Success(fmt.Sprintf("Migration complete in %s", duration))
}
