package migrator

import (
	"breeze/internal/cli"
	"breeze/internal/common"
	"breeze/internal/config"
	"breeze/internal/database"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var flags = config.GetMysqlFlags().Append(cli.Flags{
	{
		Name:         "steps",
		Short:        's',
		DefaultValue: 0,
		Usage:        "when set, migrates this many steps (negative to roll back) instead of migrating fully up",
		Type:         cli.FlagTypeInteger,
	},
})

func init() {
	flags.AddToCommand(Command)
}

var Command = &cobra.Command{
	Use:   "migrator",
	Short: "Runs database schema migrations",
	PreRun: func(cmd *cobra.Command, args []string) {
		flags.BindViper(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		serviceLogs := make(chan common.ServiceLog, 64)
		common.StartServiceLogLoop(serviceLogs)

		databaseConnection, err := database.ConnectMysql(database.ConnectOpts{
			Host:     viper.GetString(config.MysqlHost),
			Port:     viper.GetInt(config.MysqlPort),
			Username: viper.GetString(config.MysqlUsername),
			Password: viper.GetString(config.MysqlPassword),
			Database: viper.GetString(config.MysqlDatabase),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to mysql: %w", err)
		}
		defer databaseConnection.Close()

		if err := database.MigrateMysql(database.MigrateOpts{
			Connection:  databaseConnection,
			Steps:       viper.GetInt("steps"),
			ServiceLogs: serviceLogs,
		}); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	},
}
