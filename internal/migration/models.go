package migration

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cms-instance-sync/internal/backup"
)

// State is a position in the migration state machine
type State string

const (
	StateIdle                  State = "idle"
	StateConfirming            State = "confirming"
	StateValidating            State = "validating"
	StateDumpingSource         State = "dumping-source"
	StateBackingUpDestDatabase State = "backing-up-destination-database"
	StateImportingDump         State = "importing-dump"
	StateBackingUpDestFiles    State = "backing-up-destination-files"
	StateSyncingFiles          State = "syncing-files"
	StateRegeneratingSources   State = "regenerating-sources"
	StateUpdatingSchema        State = "updating-schema"
	StateClearingCache         State = "clearing-cache"
	StateDone                  State = "done"
	StateAborted               State = "aborted"
)

// Context identifies the two instances of one move. It is fixed once the
// pipeline starts.
type Context struct {
	SourcePath          string
	DestinationPath     string
	SourceDatabase      string
	DestinationDatabase string
	CreateBackup        bool
}

// absolute returns mc with both instance paths made absolute, so every step
// sees the same directories whatever its working directory is
func (mc Context) absolute() (Context, error) {
	source, err := filepath.Abs(mc.SourcePath)
	if err != nil {
		return mc, validationError(CheckSourcePath, fmt.Sprintf("cannot resolve source path %q", mc.SourcePath), err).
			WithContext("path", mc.SourcePath)
	}
	destination, err := filepath.Abs(mc.DestinationPath)
	if err != nil {
		return mc, validationError(CheckDestinationPath, fmt.Sprintf("cannot resolve destination path %q", mc.DestinationPath), err).
			WithContext("path", mc.DestinationPath)
	}
	mc.SourcePath = source
	mc.DestinationPath = destination
	return mc, nil
}

// Step is one entry of the fixed migration sequence
type Step struct {
	Name  string
	Label string
	State State
	// BackupOnly steps run only when a backup was requested
	BackupOnly bool
	// ReadOnly steps never change anything and also run for real in dry-run mode
	ReadOnly bool

	action func(ctx context.Context, r *run) error
}

// Result reports what a migration run did
type Result struct {
	State     State
	History   []State
	Completed []string
	// FailedStep names the step that stopped the run, if any
	FailedStep string
	// DumpFile is the temporary source dump; it is left on disk
	DumpFile       string
	DatabaseBackup *backup.Artifact
	FilesBackup    string
	DryRun         bool
	Duration       time.Duration
}

// Succeeded reports whether the run reached the done state
func (r *Result) Succeeded() bool {
	return r.State == StateDone
}

// run is the mutable bookkeeping of a single Run call
type run struct {
	mc      Context
	started time.Time
	result  *Result
}
