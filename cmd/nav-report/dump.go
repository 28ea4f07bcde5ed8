package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/Garsondee/Nav-Sense/internal/sim"
)

func DumpCmd(opts *options) *cobra.Command {
	var (
		scenario string
		seed     int64
		radius   float64
	)
	c := &cobra.Command{
		Use:   "dump",
		Short: "print the occupancy grid of a scenario once its first plan is found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := sim.Lookup(scenario)
			if err != nil {
				return err
			}
			return dumpScenario(cmd.OutOrStdout(), opts, sc, seed, radius)
		},
	}
	c.Flags().StringVar(&scenario, "scenario", "detour", "scenario name")
	c.Flags().Int64Var(&seed, "seed", 42, "scenario seed")
	c.Flags().Float64Var(&radius, "radius", 20, "margin around the start-goal segment")
	return c
}

func dumpScenario(out io.Writer, opts *options, sc sim.Scenario, seed int64, radius float64) error {
	ts := sc.New(seed, opts.simOptions()...)
	o, ok := ts.OrderOf(sc.Subject)
	if !ok {
		return fmt.Errorf("%s: subject U%d has no order", sc.Name, sc.Subject)
	}
	if o.Err != nil {
		return fmt.Errorf("%s: order refused: %w", sc.Name, o.Err)
	}

	planned := func(s *sim.TestSim) bool {
		snap, ok := s.Nav.Snapshot(o.Handle)
		if !ok || snap.Phase.Terminal() {
			return true
		}
		return len(snap.Chain) > 0 && snap.Phase != nav.PhaseSearch
	}
	tick := ts.RunUntil(planned, sc.MaxTicks)
	if tick < 0 {
		return fmt.Errorf("%s: no plan within %d ticks", sc.Name, sc.MaxTicks)
	}

	snap, _ := ts.Nav.Snapshot(o.Handle)
	grid := ts.Nav.Dump(o.Handle, radius)
	if grid == "" {
		return fmt.Errorf("%s: attempt ended (%s) before a grid could be dumped", sc.Name, snap.Phase)
	}
	fmt.Fprintf(out, "%s seed=%d T=%d phase=%s chain=%d steps=%d stamped=%d\n",
		sc.Name, seed, tick, snap.Phase, len(snap.Chain), snap.PlanSteps, snap.Stamped)
	fmt.Fprint(out, grid)
	return nil
}
