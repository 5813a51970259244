package migration

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"cms-instance-sync/internal/backup"
	"cms-instance-sync/internal/database"
	apperrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/logging"
	"cms-instance-sync/internal/process"
)

// Confirmer asks the user yes/no questions. Notice shows what the next
// question is about on the same channel as the question, so it is never
// suppressed.
type Confirmer interface {
	Notice(message string)
	Confirm(ctx context.Context, question string) (bool, error)
}

// Progress receives one announcement per started step
type Progress interface {
	Increment(label string)
}

// Reporter shows the run to the user
type Reporter interface {
	Header(title string)
	Info(message string)
}

// Dependencies are the collaborators of a Sequencer
type Dependencies struct {
	Toolset    Toolset
	Connection database.Connection
	// Runner executes read-only commands, and every command outside dry-run mode
	Runner process.Runner
	// DryRunner receives mutating commands in dry-run mode
	DryRunner process.Runner
	Probe     database.Probe
	Confirmer Confirmer
	Reporter  Reporter
	// NewProgress creates the step counter for a run of total steps
	NewProgress func(total int) Progress
	Backups     *backup.Manager
	Logger      *logging.Logger
}

// Options tune a Sequencer
type Options struct {
	DryRun      bool
	AutoApprove bool
	// TempDir receives the source dump; os.TempDir() when empty
	TempDir string
	Now     func() time.Time
	NewID   func() string
}

// Sequencer drives the fixed migration sequence
type Sequencer struct {
	toolset  Toolset
	conn     database.Connection
	runner   process.Runner
	mutating process.Runner
	probe    database.Probe
	confirm  Confirmer
	reporter Reporter
	progress func(total int) Progress
	backups  *backup.Manager
	logger   *logging.Logger
	opts     Options
	state    State
	history  []State
}

type nopReporter struct{}

func (nopReporter) Header(string) {}
func (nopReporter) Info(string)   {}

type nopProgress struct{}

func (nopProgress) Increment(string) {}

// NewSequencer creates a sequencer. In dry-run mode mutating commands go to
// deps.DryRunner, which defaults to printing them on stdout.
func NewSequencer(deps Dependencies, opts Options) *Sequencer {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Reporter == nil {
		deps.Reporter = nopReporter{}
	}
	if deps.NewProgress == nil {
		deps.NewProgress = func(int) Progress { return nopProgress{} }
	}
	if deps.Backups == nil {
		deps.Backups = backup.NewManager(&backup.Config{Directory: "backups"}, nil, deps.Logger)
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	mutating := deps.Runner
	if opts.DryRun {
		mutating = deps.DryRunner
		if mutating == nil {
			mutating = process.NewDryRunRunner(os.Stdout)
		}
	}

	return &Sequencer{
		toolset:  deps.Toolset,
		conn:     deps.Connection,
		runner:   deps.Runner,
		mutating: mutating,
		probe:    deps.Probe,
		confirm:  deps.Confirmer,
		reporter: deps.Reporter,
		progress: deps.NewProgress,
		backups:  deps.Backups,
		logger:   deps.Logger,
		opts:     opts,
	}
}

// Plan returns the steps a run of mc executes, in order
func (s *Sequencer) Plan(mc Context) []Step {
	var plan []Step
	for _, step := range s.steps() {
		if step.BackupOnly && !mc.CreateBackup {
			continue
		}
		plan = append(plan, step)
	}
	return plan
}

// Run executes the migration described by mc. It returns the result even on
// failure; the error is the first failing step's error, or an interruption
// error when the user declined.
func (s *Sequencer) Run(ctx context.Context, mc Context) (*Result, error) {
	s.state = StateIdle
	s.history = []State{StateIdle}
	start := s.opts.Now()

	result := &Result{DryRun: s.opts.DryRun}
	finish := func(state State, err error) (*Result, error) {
		s.transition(state)
		result.State = s.state
		result.History = append([]State(nil), s.history...)
		result.Duration = s.opts.Now().Sub(start)
		return result, err
	}

	mc, err := mc.absolute()
	if err != nil {
		return finish(StateAborted, err)
	}

	runID := s.opts.NewID()
	ctx = logging.CreateContextWithRunID(ctx, runID)
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"source":               mc.SourcePath,
		"destination":          mc.DestinationPath,
		"source_database":      mc.SourceDatabase,
		"destination_database": mc.DestinationDatabase,
		"backup":               mc.CreateBackup,
		"dry_run":              s.opts.DryRun,
	}).Info("Starting instance migration")

	if !s.opts.AutoApprove && !s.opts.DryRun {
		s.transition(StateConfirming)
		confirmed, err := s.askConfirmation(ctx, mc)
		if err != nil {
			return finish(StateAborted, err)
		}
		if !confirmed {
			s.logger.Info("Migration declined by user")
			return finish(StateAborted, apperrors.NewInterruptionError("Migration aborted by user"))
		}
	}

	// past confirmation the pipeline runs to completion or failure
	ctx = context.WithoutCancel(ctx)

	plan := s.Plan(mc)
	progress := s.progress(len(plan))
	r := &run{mc: mc, started: s.opts.Now(), result: result}

	for _, step := range plan {
		s.transition(step.State)
		progress.Increment(step.Label)

		done := s.logger.LogOperationStart(step.Name, map[string]interface{}{"run_id": runID})
		err := step.action(ctx, r)
		done(err)
		if err != nil {
			result.FailedStep = step.Name
			return finish(StateAborted, err)
		}
		result.Completed = append(result.Completed, step.Name)
	}

	return finish(StateDone, nil)
}

// State returns the current state
func (s *Sequencer) State() State {
	return s.state
}

func (s *Sequencer) transition(to State) {
	if s.state == to {
		return
	}
	s.logger.LogStateTransition(string(s.state), string(to))
	s.state = to
	s.history = append(s.history, to)
}

// askConfirmation asks twice; both answers must be yes
func (s *Sequencer) askConfirmation(ctx context.Context, mc Context) (bool, error) {
	s.reporter.Header("Instance migration")
	s.confirm.Notice(fmt.Sprintf("Files will be moved from %q to %q.", mc.SourcePath, mc.DestinationPath))
	s.confirm.Notice(fmt.Sprintf("Database %q will be used to OVERRIDE database %q.", mc.SourceDatabase, mc.DestinationDatabase))
	if !mc.CreateBackup {
		s.confirm.Notice("No backup of the destination will be made.")
	}

	confirmed, err := s.confirm.Confirm(ctx, "Is this information correct?")
	if err != nil || !confirmed {
		return false, err
	}
	return s.confirm.Confirm(ctx, "This cannot be undone. Are you sure you want to continue?")
}
