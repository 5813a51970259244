package cmd

import (
	"github.com/spf13/cobra"

	"cms-instance-sync/internal/migration"
)

func (c *cli) newMoveCommand() *cobra.Command {
	var (
		createBackup bool
		autoApprove  bool
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "move <source> <destination> <source-database> <destination-database>",
		Short: "Move files and database from one CMS instance to another",
		Long: `Move the document tree and database of the source instance over the
destination instance. The destination database is overridden by a dump of the
source database, the documents are synchronised with rsync --delete and the
CMS console regenerates sources, updates the schema and clears the cache.

Nothing is rolled back if a step fails. Use --backup to keep a copy of the
destination database and documents in backup.directory first.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := c.application(dryRun, autoApprove)

			ctx, stop := app.SignalContext(cmd.Context())
			defer stop()

			_, err := app.Move(ctx, migration.Context{
				SourcePath:          args[0],
				DestinationPath:     args[1],
				SourceDatabase:      args[2],
				DestinationDatabase: args[3],
				CreateBackup:        createBackup,
			})
			return err
		},
	}

	cmd.Flags().BoolVarP(&createBackup, "backup", "b", false, "back up the destination database and documents before overriding them")
	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "skip the confirmation prompts")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and print the commands without running them")
	return cmd
}
