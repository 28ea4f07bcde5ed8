package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/Garsondee/Nav-Sense/internal/sim"
)

// options are the flags shared by every subcommand.
type options struct {
	configFile string
	logLevel   string

	cfg    nav.Config
	logger *log.Logger
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}
	c := &cobra.Command{
		Use:           "nav-report",
		Short:         "headless navigation scenario reports",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	c.PersistentFlags().StringVar(&opts.configFile, "config", "", "navigation tuning YAML (defaults when empty)")
	c.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	c.AddCommand(RunCmd(opts), DumpCmd(opts), ScenariosCmd())
	return c
}

func (o *options) load(cmd *cobra.Command) error {
	level, err := log.ParseLevel(o.logLevel)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	o.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:  level,
		Prefix: "nav-report",
	})
	log.SetDefault(o.logger)

	o.cfg = nav.DefaultConfig()
	if o.configFile != "" {
		cfg, err := nav.LoadConfig(o.configFile)
		if err != nil {
			return err
		}
		o.cfg = cfg
		o.logger.Info("loaded tuning", "file", o.configFile)
	}
	return nil
}

// simOptions are the harness options every run gets from the shared flags.
func (o *options) simOptions() []sim.SimOption {
	return []sim.SimOption{
		sim.WithConfig(o.cfg),
		sim.WithLogger(o.logger),
	}
}
