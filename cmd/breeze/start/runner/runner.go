package runner

import (
	"breeze/internal/audit"
	"breeze/internal/automations"
	"breeze/internal/common"
	"breeze/internal/config"
	"breeze/internal/database"
	"breeze/internal/models"
	"breeze/internal/notifications"
	"breeze/internal/queue"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var flags = config.GetMysqlFlags().
	Append(config.GetNatsFlags()).
	Append(config.GetMongoFlags()).
	Append(config.GetSmtpFlags()).
	Append(config.GetOpsFlags())

func init() {
	flags.AddToCommand(Command)
}

var Command = &cobra.Command{
	Use:   "runner",
	Short: "Starts the run execution service",
	Long:  "Starts the run execution service that consumes run jobs from the queue and drives each automation run to a terminal state",
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

		mongoHosts := viper.GetStringSlice(config.MongoHost)
		mongoOptions := options.Client().SetHosts(mongoHosts)
		if username := viper.GetString(config.MongoUsername); username != "" {
			mongoOptions = mongoOptions.SetAuth(options.Credential{
				Username: username,
				Password: viper.GetString(config.MongoPassword),
			})
		}
		mongoClient, err := mongo.Connect(cmd.Context(), mongoOptions)
		if err != nil {
			logrus.Warnf("failed to connect to mongo, audit logging disabled: %s", err)
		} else if err := audit.InitMongo(mongoClient); err != nil {
			logrus.Warnf("failed to initialise audit logging: %s", err)
		}

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
		runner := &automations.Runner{
			Store: store,
			Dispatcher: &models.CommandDispatcher{
				Db:    databaseConnection,
				Queue: natsInstance,
			},
			Events: &queue.EventsPublisher{
				Queue:       natsInstance,
				ServiceLogs: serviceLogs,
			},
			Resolver: &models.DeploymentTargets{Db: databaseConnection},
			Channel: &automations.ChannelDispatcher{
				Email: &notifications.EmailSender{
					Smtp: notifications.SmtpConfig{
						Hostname: viper.GetString(config.SmtpHostname),
						Port:     viper.GetInt(config.SmtpPort),
						Username: viper.GetString(config.SmtpUsername),
						Password: viper.GetString(config.SmtpPassword),
						Sender:   viper.GetString(config.SmtpSenderAddress),
					},
					ServiceLogs: serviceLogs,
				},
				Webhook: notifications.NewWebhookSender(serviceLogs),
			},
			ServiceLogs: serviceLogs,
		}

		logrus.Infof("starting runner")
		err = natsInstance.Subscribe(queue.SubscribeOpts{
			ConsumerId: "breeze-runner",
			Context:    ctx,
			Queue: queue.QueueOpts{
				Stream:  queue.StreamRuns,
				Subject: "execute",
			},
			Handler: func(handlerCtx context.Context, message queue.Message) error {
				var job queue.RunJob
				if err := json.Unmarshal(message.Data, &job); err != nil {
					logrus.Warnf("dropping unparseable run job: %s", err)
					return nil
				}
				run, err := runner.ExecuteRun(handlerCtx, automations.ExecuteRunOpts{
					AutomationId:    job.AutomationId,
					TriggeredBy:     job.TriggeredBy,
					RunId:           job.RunId,
					TargetDeviceIds: job.TargetDeviceIds,
				})
				if err != nil {
					return fmt.Errorf("failed to execute run[%s]: %w", job.RunId, err)
				}
				auditStatus := audit.Success
				switch run.Status {
				case automations.RunStatusFailed:
					auditStatus = audit.Failed
				case automations.RunStatusPartial:
					auditStatus = audit.Partial
				}
				if err := audit.Log(audit.LogEntry{
					EntityId:     job.AutomationId,
					EntityType:   audit.AutomationEntity,
					Verb:         audit.Execute,
					ResourceId:   run.Id,
					ResourceType: audit.RunResource,
					Status:       auditStatus,
					Data: map[string]any{
						"devicesTargeted":  run.DevicesTargeted,
						"devicesSucceeded": run.DevicesSucceeded,
						"devicesFailed":    run.DevicesFailed,
					},
				}); err != nil {
					logrus.Debugf("failed to write audit log for run[%s]: %s", run.Id, err)
				}
				return nil
			},
		})
		if err != nil && !strings.Contains(err.Error(), context.Canceled.Error()) {
			return fmt.Errorf("runner stopped: %w", err)
		}
		return nil
	},
}
