package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cms-instance-sync/internal/config"
)

const maskedValue = "********"

func (c *cli) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the merged configuration",
		Long: `Inspect the configuration obtained by merging the built-in defaults,
config.default.yml, the optional override file and CMS_SYNC__* environment
variables.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		Long:  "Print the merged configuration as YAML. db.password is masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := c.resolver.Tree()
			if err != nil {
				return err
			}
			maskSecrets(tree)
			return writeYAML(cmd.OutOrStdout(), tree)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <path>",
		Short: "Print the value at a dotted configuration path",
		Long: `Print the value at a dotted configuration path such as commands.mysql.path.
Scalars are printed as is, mappings and sequences as YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := c.resolver.Get(args[0])
			if err != nil {
				return err
			}
			switch value.(type) {
			case map[string]interface{}, config.Document, []interface{}:
				return writeYAML(cmd.OutOrStdout(), value)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			}
		},
	})

	return cmd
}

// maskSecrets replaces configured secrets in a copy of the merged tree
func maskSecrets(tree config.Document) {
	secrets := map[string][]string{
		"db":     {"password"},
		"backup": {"encryption_passphrase"},
	}
	for section, keys := range secrets {
		values, ok := tree[section].(map[string]interface{})
		if !ok {
			continue
		}
		for _, key := range keys {
			if values[key] != nil {
				values[key] = maskedValue
			}
		}
	}

	if backup, ok := tree["backup"].(map[string]interface{}); ok {
		if storage, ok := backup["storage"].(map[string]interface{}); ok {
			for _, key := range []string{"secret_key", "account_key"} {
				if storage[key] != nil {
					storage[key] = maskedValue
				}
			}
		}
	}
}

func writeYAML(w io.Writer, value interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return err
	}
	return encoder.Close()
}
