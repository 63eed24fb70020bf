package start

import (
	"breeze/cmd/breeze/start/migrator"
	"breeze/cmd/breeze/start/runner"
	"breeze/cmd/breeze/start/scheduler"

	"github.com/spf13/cobra"
)

func init() {
	Command.AddCommand(migrator.Command)
	Command.AddCommand(runner.Command)
	Command.AddCommand(scheduler.Command)
}

var Command = &cobra.Command{
	Use:     "start",
	Aliases: []string{"st"},
	Short:   "Starts one of Breeze's core services",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}
