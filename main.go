package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/stepflow/agent"
	"github.com/mohitkumar/stepflow/analytics"
	"github.com/mohitkumar/stepflow/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cli struct {
	cfg *config.Config
}

func setupFlags(cmd *cobra.Command) error {
	d := config.NewDefaultConfig()
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", d.HttpPort, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", string(d.StorageType), "implementation of underline storage (memory|redis)")
	cmd.Flags().String("redis-addr", strings.Join(d.RedisConfig.Addrs, ","), "comma separated list of redis host:port")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().String("namespace", d.RedisConfig.Namespace, "namespace used in storage")
	cmd.Flags().Int("partitions", d.RedisConfig.Partitions, "number of redis partitions for executions")
	cmd.Flags().Duration("lock-ttl", d.RedisConfig.LockTTL, "expiry of a redis execution lock")
	cmd.Flags().Duration("retention", d.InMemoryConfig.Retention, "how long closed executions are kept in memory")
	cmd.Flags().String("definitions-dir", "", "directory of workflow definitions loaded at startup")
	cmd.Flags().String("log-level", d.LogLevel, "log level")
	cmd.Flags().Int("max-hops", d.EngineConfig.MaxHops, "maximum transitions followed in one call")
	cmd.Flags().Duration("action-timeout", d.EngineConfig.ActionTimeout, "default action handler timeout")
	cmd.Flags().Duration("lock-timeout", d.EngineConfig.LockTimeout, "how long a call waits for an execution lock")
	cmd.Flags().Bool("auto-continue", d.EngineConfig.AutoContinue, "run matched non-decision steps in the same call")
	cmd.Flags().Int("history-limit", d.EngineConfig.HistoryLimit, "maximum history entries kept per execution, 0 keeps all")
	cmd.Flags().String("event-channel", "", "redis pub/sub channel for engine events")
	cmd.Flags().Int("event-buffer", d.EventConfig.BufferSize, "event broadcast buffer size")
	cmd.Flags().Bool("websocket", d.EventConfig.Websocket, "expose engine events over websocket")
	cmd.Flags().String("analytics-file", "", "file to record action outcomes to")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if len(configFile) != 0 {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}
	viper.SetEnvPrefix("stepflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	c.cfg = config.NewDefaultConfig()
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.RedisConfig.Partitions = viper.GetInt("partitions")
	c.cfg.RedisConfig.LockTTL = viper.GetDuration("lock-ttl")
	c.cfg.InMemoryConfig.Retention = viper.GetDuration("retention")
	c.cfg.DefinitionsDir = viper.GetString("definitions-dir")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.EngineConfig.MaxHops = viper.GetInt("max-hops")
	c.cfg.EngineConfig.ActionTimeout = viper.GetDuration("action-timeout")
	c.cfg.EngineConfig.LockTimeout = viper.GetDuration("lock-timeout")
	c.cfg.EngineConfig.AutoContinue = viper.GetBool("auto-continue")
	c.cfg.EngineConfig.HistoryLimit = viper.GetInt("history-limit")
	c.cfg.EventConfig.Channel = viper.GetString("event-channel")
	c.cfg.EventConfig.BufferSize = viper.GetInt("event-buffer")
	c.cfg.EventConfig.Websocket = viper.GetBool("websocket")
	if file := viper.GetString("analytics-file"); len(file) != 0 {
		c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{
			CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
			FileName:      file,
		}
	}
	return c.cfg.Validate()
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	a, err := agent.New(*c.cfg)
	if err != nil {
		return err
	}
	if err = a.Start(); err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return a.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "stepflow",
		Short:   "step-driven workflow engine",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
