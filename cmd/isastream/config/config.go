// Package configcmder provides the config command for managing persistent
// isastream configuration stored in the .isastream/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent isastream configuration.

Configuration is stored as config.toml in the .isastream/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  backend.target, backend.model,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  eventstream.enabled, eventstream.brokers, eventstream.topic,
  replay.listen, replay.capture, replay.delay_ms

Use subcommands to get, set, or list configuration values:
  isastream config set <key> <value>    Set a configuration value
  isastream config get <key>            Get a configuration value
  isastream config list                 List all configuration values

Examples:
  isastream config set backend.target http://localhost:8000
  isastream config set storage.driver postgres
  isastream config get eventstream.topic
  isastream config list`

const configShortDesc string = "Manage persistent isastream configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
