package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/Garsondee/Nav-Sense/internal/sim"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		scenario   string
		seed       int64
		configFile string
		logLevel   string
	)
	c := &cobra.Command{
		Use:          "navview",
		Short:        "watch a navigation scenario play out",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Level: level, Prefix: "navview"})

			sc, err := sim.Lookup(scenario)
			if err != nil {
				return err
			}
			cfg := nav.DefaultConfig()
			if configFile != "" {
				if cfg, err = nav.LoadConfig(configFile); err != nil {
					return err
				}
			}

			v := newViewer(sc, seed, logger, sim.WithConfig(cfg), sim.WithLogger(logger))
			ebiten.SetWindowTitle("Nav Sense - " + sc.Name)
			ebiten.SetWindowSize(v.width, v.height)
			return ebiten.RunGame(v)
		},
	}
	c.Flags().StringVar(&scenario, "scenario", "detour", "scenario name")
	c.Flags().Int64Var(&seed, "seed", 42, "scenario seed")
	c.Flags().StringVar(&configFile, "config", "", "navigation tuning YAML")
	c.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return c
}
