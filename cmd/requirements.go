package cmd

import (
	"github.com/spf13/cobra"

	"cms-instance-sync/internal/application"
)

func (c *cli) newRequirementsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "requirements",
		Short: "Check that every configured external binary works",
		Long: `Run the test invocation of every binary under commands.* and report
"name (path) => OK" or "=> FAIL". A binary passes when its test exits with
status 0 and prints something. The exit status is 1 if any binary fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.application(false, false).Requirements(cmd.Context())
			if err != nil {
				return err
			}
			if !report.Passed {
				return &exitError{code: application.ExitFailure}
			}
			return nil
		},
	}
}
