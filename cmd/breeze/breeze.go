package breeze

import (
	"breeze/cmd/breeze/start"
	"breeze/internal/cli"
	"breeze/internal/common"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var availableLogLevels = []string{
	string(common.LogLevelTrace),
	string(common.LogLevelDebug),
	string(common.LogLevelInfo),
	string(common.LogLevelWarn),
	string(common.LogLevelError),
}

var persistentFlags cli.Flags = cli.Flags{
	{
		Name:         "log-level",
		Short:        'l',
		DefaultValue: "info",
		Usage:        fmt.Sprintf("sets the log level (one of [%s])", strings.Join(availableLogLevels, ", ")),
		Type:         cli.FlagTypeString,
	},
}

func init() {
	cli.InitConfig()
	persistentFlags.AddToCommand(Command, true)
	Command.AddCommand(start.Command)
}

var Command = &cobra.Command{
	Use:   "breeze",
	Short: "Breeze is a remote device management backend",
	Long:  "Breeze is a remote device management backend; its services turn declarative automations into auditable executions against a device fleet",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		persistentFlags.BindViper(cmd, true)
		cli.InitLogging(viper.GetString("log-level"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}
