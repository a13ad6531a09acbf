package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/axondata/go-supervise/internal/config"
	"github.com/axondata/go-supervise/internal/logger"
)

// GlobalFlags holds the persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	ServiceDir string
	LogLevel   string
	LogPretty  bool
}

// app carries what PersistentPreRunE resolved to the subcommands
type app struct {
	flags GlobalFlags
	v     *viper.Viper
	cfg   *config.Config
	log   logger.Logger
}

// buildRoot creates the root command and all subcommands
func buildRoot() *cobra.Command {
	a := &app{v: config.NewViper(), log: logger.Nop()}

	root := &cobra.Command{
		Use:   "svctl",
		Short: "Control runit/daemontools supervised services",
		Long: `svctl sends control commands to supervised services and reads their
status records, the way sv and svc do.

Examples:
  svctl status web db
  svctl status -o json web
  svctl term web
  svctl --service-dir=/etc/service up sshd
  svctl wait --state up web
  svctl serve --listen :9100`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.ConfigPath, "config", "", "path to a YAML, TOML or JSON config file (optional)")
	pf.StringVarP(&a.flags.ServiceDir, "service-dir", "d", "", "base directory of relative service names (env SERVICE_DIR)")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&a.flags.LogPretty, "log-pretty", false, "human readable logs")

	mustBind(a.v, "service_dir", pf.Lookup("service-dir"))
	mustBind(a.v, "log.level", pf.Lookup("log-level"))
	mustBind(a.v, "log.pretty", pf.Lookup("log-pretty"))

	root.AddCommand(
		createStatusCommand(a),
		createSendCommand(a),
		createMarkDownCommand(a),
		createMarkUpCommand(a),
		createWatchCommand(a),
		createWaitCommand(a),
		createServeCommand(a),
		createVersionCommand(),
	)
	root.AddCommand(createOperationCommands(a)...)

	return root
}

// load resolves the configuration: flags over env over file over defaults
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if a.flags.ConfigPath != "" {
		a.v.SetConfigFile(a.flags.ConfigPath)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.flags.ConfigPath, err)
		}
	}

	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.NewLogger().With(logger.String("command", cmd.Name()))
	return nil
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
