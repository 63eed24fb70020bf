package scheduler

import (
	"breeze/internal/cache"
	"breeze/internal/common"
	"breeze/internal/config"
	"breeze/internal/database"
	"breeze/internal/models"
	"breeze/internal/queue"
	"breeze/internal/scheduler"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var flags = config.GetMysqlFlags().
	Append(config.GetRedisFlags()).
	Append(config.GetNatsFlags()).
	Append(config.GetOpsFlags())

func init() {
	flags.AddToCommand(Command)
}

var Command = &cobra.Command{
	Use:   "scheduler",
	Short: "Starts the scheduler service",
	Long:  "Starts the scheduler service that evaluates schedule triggers once a minute and enqueues run jobs for due automations",
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

		if err := cache.InitRedis(cache.InitRedisOpts{
			Addr:        viper.GetString(config.RedisAddr),
			Username:    viper.GetString(config.RedisUsername),
			Password:    viper.GetString(config.RedisPassword),
			ServiceLogs: serviceLogs,
		}); err != nil {
			return fmt.Errorf("failed to initialise redis: %w", err)
		}

		natsInstance := &queue.Nats{
			Addr:        viper.GetString(config.NatsAddr),
			Username:    viper.GetString(config.NatsUsername),
			Password:    viper.GetString(config.NatsPassword),
			ServiceLogs: serviceLogs,
		}
		if err := natsInstance.Connect(); err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer natsInstance.Close()

		done := make(chan common.Done)
		opsServer, err := common.NewHttpOpsServer(common.NewHttpOpsServerOpts{
			Addr:        viper.GetString(config.OpsListenAddr),
			Done:        done,
			ServiceLogs: serviceLogs,
		})
		if err != nil {
			return fmt.Errorf("failed to create ops server: %w", err)
		}
		go func() {
			if err := opsServer.Start(); err != nil {
				logrus.Errorf("ops server exited: %s", err)
			}
		}()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		go func() {
			sig := <-sigs
			logrus.Infof("received signal: %s", sig)
			done <- common.Done{}
			cancel()
		}()

		store := models.NewStore(databaseConnection)
		schedulerInstance := &scheduler.Scheduler{
			Store:       store,
			Resolver:    &models.DeploymentTargets{Db: databaseConnection},
			Cache:       cache.Get(),
			Queue:       natsInstance,
			ServiceLogs: serviceLogs,
		}
		logrus.Infof("starting scheduler")
		if err := schedulerInstance.Start(ctx); err != nil && err != context.Canceled {
			return fmt.Errorf("scheduler stopped: %w", err)
		}
		return nil
	},
}
