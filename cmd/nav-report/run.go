package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Garsondee/Nav-Sense/internal/runstore"
	"github.com/Garsondee/Nav-Sense/internal/sim"
	"github.com/Garsondee/Nav-Sense/internal/trace"
)

type runFlags struct {
	scenario string
	runs     int
	seedBase int64
	seedStep int64
	ticks    int
	traceDir string
	dbPath   string
	note     string
	verbose  bool
}

func RunCmd(opts *options) *cobra.Command {
	var f runFlags
	c := &cobra.Command{
		Use:   "run",
		Short: "run a scenario over a range of seeds and report each run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.OutOrStdout(), opts, f)
		},
	}
	c.Flags().StringVar(&f.scenario, "scenario", "open-field", "scenario name, or \"all\"")
	c.Flags().IntVar(&f.runs, "runs", 5, "runs per scenario")
	c.Flags().Int64Var(&f.seedBase, "seed-base", 42, "seed of run 1")
	c.Flags().Int64Var(&f.seedStep, "seed-step", 1, "seed increment between runs")
	c.Flags().IntVar(&f.ticks, "ticks", 0, "tick limit per run (0 uses the scenario's)")
	c.Flags().StringVar(&f.traceDir, "trace", "", "directory for per-run .jsonl.zst traces")
	c.Flags().StringVar(&f.dbPath, "db", "", "SQLite file to store the batch in")
	c.Flags().StringVar(&f.note, "note", "", "free text stored with the batch")
	c.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print the full report of every run")
	return c
}

func runBatch(out io.Writer, opts *options, f runFlags) error {
	if f.runs <= 0 {
		return fmt.Errorf("--runs must be > 0")
	}
	if f.ticks < 0 {
		return fmt.Errorf("--ticks must be >= 0")
	}
	list, err := selectScenarios(f.scenario)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "=== Navigation Report ===\n")
	fmt.Fprintf(out, "scenarios=%d runs=%d seed_base=%d seed_step=%d\n\n", len(list), f.runs, f.seedBase, f.seedStep)

	var all []sim.RunReport
	want := make(map[string]error, len(list))
	for _, sc := range list {
		if f.ticks > 0 {
			sc.MaxTicks = f.ticks
		}
		want[sc.Name] = sc.Want

		reports := make([]sim.RunReport, 0, f.runs)
		for i := 0; i < f.runs; i++ {
			seed := f.seedBase + int64(i)*f.seedStep
			r, err := runOne(opts, sc, seed, f.traceDir)
			if err != nil {
				return err
			}
			reports = append(reports, r)
			fmt.Fprintln(out, r.Line())
			if f.verbose {
				fmt.Fprintln(out, r.String())
			}
		}
		printAggregate(out, sc, sim.Summarize(reports, sc.Want))
		all = append(all, reports...)
	}

	if f.dbPath != "" {
		return storeBatch(out, opts, f, all, want)
	}
	return nil
}

func selectScenarios(name string) ([]sim.Scenario, error) {
	if name == "all" {
		return sim.Scenarios(), nil
	}
	sc, err := sim.Lookup(name)
	if err != nil {
		return nil, err
	}
	return []sim.Scenario{sc}, nil
}

// runOne plays one seed, tracing it to traceDir when set.
func runOne(opts *options, sc sim.Scenario, seed int64, traceDir string) (sim.RunReport, error) {
	ts := sc.New(seed, opts.simOptions()...)
	rec := sim.Record(ts, sc.Subject)

	var tw *trace.Writer
	if traceDir != "" {
		var err error
		tw, err = trace.Create(filepath.Join(traceDir, fmt.Sprintf("%s-%d.jsonl.zst", sc.Name, seed)))
		if err != nil {
			return sim.RunReport{}, fmt.Errorf("trace: %w", err)
		}
		trace.Attach(ts, tw, sc.Subject)
	}

	start := ts.Unit(sc.Subject).Position()
	end := ts.RunOrders(sc.MaxTicks)
	r := sim.BuildReport(ts, sc.Name, sc.Subject, start, rec, end < 0 && !ts.AllDone())

	if tw != nil {
		if err := tw.Err(); err != nil {
			_ = tw.Close()
			return r, fmt.Errorf("trace %s: %w", tw.Path(), err)
		}
		if err := tw.Close(); err != nil {
			return r, fmt.Errorf("trace %s: %w", tw.Path(), err)
		}
		opts.logger.Debug("trace written", "path", tw.Path(), "records", tw.Len())
	}
	return r, nil
}

func printAggregate(out io.Writer, sc sim.Scenario, a sim.Aggregate) {
	fmt.Fprintf(out, "--- %s aggregate (expect %s) ---\n", sc.Name, sc.Expect())
	fmt.Fprintf(out, "runs=%d as_expected=%d succeeded=%d timeouts=%d\n", a.Runs, a.Expected, a.Succeeded, a.Timeouts)
	fmt.Fprintf(out, "outcomes: %s\n", formatOutcomes(a.ByOutcome))
	fmt.Fprintf(out, "ticks: total=%s mean=%s  distance: total=%s  restarts=%d collisions=%d\n\n",
		humanize.Comma(int64(a.TotalTicks)),
		humanize.FtoaWithDigits(a.MeanTicks(), 1),
		humanize.CommafWithDigits(a.TotalDist, 1),
		a.Restarts, a.Collisions)
}

func formatOutcomes(by map[string]int) string {
	keys := make([]string, 0, len(by))
	for k := range by {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, by[k]))
	}
	return strings.Join(parts, " ")
}

func storeBatch(out io.Writer, opts *options, f runFlags, reports []sim.RunReport, want map[string]error) error {
	db, err := runstore.Open(f.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, err := opts.cfg.Marshal()
	if err != nil {
		return err
	}
	b, err := db.NewBatch(string(cfg), f.note)
	if err != nil {
		return err
	}
	if err := db.SaveRuns(b.ID, reports, want); err != nil {
		return err
	}
	bad, err := db.Unexpected(b.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "stored batch %s: %s runs, %d unexpected\n", b.ID, humanize.Comma(int64(len(reports))), bad)
	return nil
}
