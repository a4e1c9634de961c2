package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nvandessel/treesim/internal/bench"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/store"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	defaults := bench.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Check simulation properties on random automata",
		Long: `Generate seeded random automata and compute their simulation under
several cache, logic and pre-refinement configurations in parallel.

The command fails when any configuration disagrees with the reference
game, when a longer lookahead loses pairs, when identity saturation adds
transitions, or when the combined relation leaves its bounds.

Examples:
  treesim bench                          # Default shape and seeds
  treesim bench --seeds 32 --workers 8   # More automata
  treesim bench --states 8 --record      # Larger automata, keep the runs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			record, _ := cmd.Flags().GetBool("record")
			maxLa, _ := cmd.Flags().GetInt("max-lookahead")

			bc := bench.DefaultConfig()
			bc.Seeds, _ = cmd.Flags().GetInt("seeds")
			bc.FirstSeed, _ = cmd.Flags().GetUint64("first-seed")
			bc.Shape.States, _ = cmd.Flags().GetInt("states")
			bc.Shape.Transitions, _ = cmd.Flags().GetInt("transitions")
			bc.Workers, _ = cmd.Flags().GetInt("workers")
			bc.Timeout, _ = cmd.Flags().GetDuration("timeout")
			bc.Lookaheads = bc.Lookaheads[:0]
			for la := 1; la <= maxLa; la++ {
				bc.Lookaheads = append(bc.Lookaheads, la)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var s store.RunStore
			if record {
				s, err = openStore(cfg)
				if err != nil {
					return err
				}
				defer s.Close()
			}

			logger, _ := newLoggers(cfg)
			runner := bench.NewRunner(bc, s)
			runner.SetLogger(logger)

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			report, err := runner.Run(ctx)
			if err != nil {
				return fmt.Errorf("bench failed: %w", err)
			}

			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(report); err != nil {
					return err
				}
			} else {
				printBench(cmd.OutOrStdout(), bc, report)
			}

			if !report.OK() {
				return fmt.Errorf("%d property violations", len(report.Violations))
			}
			return nil
		},
	}

	cmd.Flags().Int("seeds", defaults.Seeds, "Number of generated automata")
	cmd.Flags().Uint64("first-seed", defaults.FirstSeed, "Seed of the first automaton")
	cmd.Flags().Int("states", defaults.Shape.States, "States per automaton")
	cmd.Flags().Int("transitions", defaults.Shape.Transitions, "Transitions per automaton")
	cmd.Flags().Int("max-lookahead", len(defaults.Lookaheads), "Run lookaheads 1..N")
	cmd.Flags().Int("workers", 0, "Concurrent cases (0 = GOMAXPROCS)")
	cmd.Flags().Duration("timeout", defaults.Timeout, "Per-stage timeout")
	cmd.Flags().Bool("record", false, "Record every run in the run store")

	return cmd
}

// benchRow aggregates the cases of one (lookahead, configuration) column.
type benchRow struct {
	lookahead int
	label     string
	cases     int
	timeouts  int
	pairs     int
	stats     stats.Stats
}

func printBench(out io.Writer, bc bench.Config, report *bench.Report) {
	var rows []*benchRow
	index := make(map[string]*benchRow)
	for _, c := range report.Cases {
		key := fmt.Sprintf("%d/%s", c.Lookahead, c.Label)
		row, ok := index[key]
		if !ok {
			row = &benchRow{lookahead: c.Lookahead, label: c.Label}
			index[key] = row
			rows = append(rows, row)
		}
		row.cases++
		if c.Outcome == store.OutcomeTimeout {
			row.timeouts++
			continue
		}
		row.pairs += c.Pairs
		row.stats.Merge(c.Stats)
	}

	fmt.Fprintf(out, "Bench: %d automata (%d states, %d transitions), %d cases\n\n",
		bc.Seeds, bc.Shape.States, bc.Shape.Transitions, len(report.Cases))

	fmt.Fprintf(out, "%-3s %-10s %5s %6s %9s %9s %6s %10s\n",
		"LA", "Config", "Cases", "Pairs", "Attacks", "Visits", "Hits", "Elapsed")
	fmt.Fprintln(out, strings.Repeat("-", 64))
	for _, r := range rows {
		fmt.Fprintf(out, "%-3d %-10s %5d %6d %9d %9d %5.0f%% %10s\n",
			r.lookahead, r.label, r.cases, r.pairs,
			r.stats.Attacks, r.stats.Visits, r.stats.HitRate()*100,
			r.stats.Elapsed.Round(time.Microsecond))
	}
	fmt.Fprintln(out)

	if report.Timeouts > 0 {
		fmt.Fprintf(out, "Timeouts: %d\n", report.Timeouts)
	}
	if report.OK() {
		fmt.Fprintf(out, "All properties hold (%v)\n", report.Elapsed.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(out, "Violations (%d):\n", len(report.Violations))
	for _, v := range report.Violations {
		fmt.Fprintf(out, "  seed %d: %s: %s\n", v.Seed, v.Property, v.Detail)
	}
}
