package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/nvandessel/treesim/internal/constants"
	"github.com/nvandessel/treesim/internal/pathutil"
	"github.com/nvandessel/treesim/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
		Long: `List, inspect, export and import the run history.

Examples:
  treesim runs list --stage combined     # Recent combined runs
  treesim runs show <id> --pairs         # One run with its relation
  treesim runs export -o runs.jsonl      # Dump the history
  treesim runs import runs.jsonl         # Load a dump`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsExportCmd(),
		newRunsImportCmd(),
		newRunsDeleteCmd(),
	)

	return cmd
}

// withStore loads the configuration, opens the run store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s store.RunStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(context.Background(), s)
}

// filterFlags reads the --stage, --outcome and --limit flags.
func filterFlags(cmd *cobra.Command) (store.Filter, error) {
	stage, _ := cmd.Flags().GetString("stage")
	outcome, _ := cmd.Flags().GetString("outcome")
	limit, _ := cmd.Flags().GetInt("limit")

	f := store.Filter{Limit: limit}
	if stage != "" {
		f.Stage = constants.Stage(stage)
		if !f.Stage.Valid() {
			return f, fmt.Errorf("invalid stage: %s", stage)
		}
	}
	if outcome != "" {
		f.Outcome = store.Outcome(outcome)
		valid := []store.Outcome{store.OutcomeOK, store.OutcomeTimeout, store.OutcomeError}
		if !slices.Contains(valid, f.Outcome) {
			return f, fmt.Errorf("invalid outcome: %s (valid: ok, timeout, error)", outcome)
		}
	}
	return f, nil
}

func addFilterFlags(cmd *cobra.Command, limit int) {
	cmd.Flags().String("stage", "", "Only runs of this stage: downward, upward, combined, saturate")
	cmd.Flags().String("outcome", "", "Only runs with this outcome: ok, timeout, error")
	cmd.Flags().Int("limit", limit, "Maximum number of runs (0 = all)")
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			filter, err := filterFlags(cmd)
			if err != nil {
				return err
			}

			return withStore(cmd, func(ctx context.Context, s store.RunStore) error {
				runs, err := s.ListRuns(ctx, filter)
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					if runs == nil {
						runs = []store.Run{}
					}
					return json.NewEncoder(out).Encode(map[string]any{
						"runs":  runs,
						"count": len(runs),
					})
				}

				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded yet.")
					fmt.Fprintln(out, "\nUse 'treesim demo' or 'treesim bench --record' to record runs.")
					return nil
				}
				printRunTable(out, runs)
				return nil
			})
		},
	}

	addFilterFlags(cmd, 20)
	return cmd
}

func printRunTable(out io.Writer, runs []store.Run) {
	fmt.Fprintf(out, "%-8s %-20s %-9s %3s %6s %6s %13s %-8s\n",
		"ID", "Created", "Stage", "LA", "States", "Trans", "Pairs", "Outcome")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, r := range runs {
		shortID := r.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		fmt.Fprintf(out, "%-8s %-20s %-9s %3d %6d %6d %6d->%-5d %-8s\n",
			shortID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Stage,
			r.Lookahead, r.States, r.Transitions, r.PairsBefore, r.PairsAfter, r.Outcome)
	}
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showPairs, _ := cmd.Flags().GetBool("pairs")
			id := args[0]

			return withStore(cmd, func(ctx context.Context, s store.RunStore) error {
				run, err := s.GetRun(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get run: %w", err)
				}
				if run == nil {
					return fmt.Errorf("run not found: %s", id)
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return json.NewEncoder(out).Encode(run)
				}

				fmt.Fprintf(out, "Run %s\n", run.ID)
				fmt.Fprintf(out, "  Created:     %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  Stage:       %s\n", run.Stage)
				fmt.Fprintf(out, "  Outcome:     %s\n", run.Outcome)
				if run.Error != "" {
					fmt.Fprintf(out, "  Error:       %s\n", run.Error)
				}
				fmt.Fprintf(out, "  Lookahead:   %d\n", run.Lookahead)
				fmt.Fprintf(out, "  Automaton:   %d states, %d transitions\n", run.States, run.Transitions)
				fmt.Fprintf(out, "  Pairs:       %d -> %d\n", run.PairsBefore, run.PairsAfter)
				fmt.Fprintf(out, "  Duration:    %v\n", run.Duration)

				keys := make([]string, 0, len(run.Options))
				for k := range run.Options {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				fmt.Fprintln(out, "  Options:")
				for _, k := range keys {
					fmt.Fprintf(out, "    %-16s %s\n", k+":", run.Options[k])
				}

				st := run.Stats
				fmt.Fprintln(out, "  Stats:")
				fmt.Fprintf(out, "    visits: %d, refinements: %d, prerefined: %d, passes: %d\n",
					st.Visits, st.Refinements, st.Prerefined, st.Passes)
				fmt.Fprintf(out, "    attacks: %d, defends: %d, combinations: %d, early exits: %d\n",
					st.Attacks, st.Defends, st.Combinations, st.EarlyExits)
				fmt.Fprintf(out, "    cache: %d lookups, %d hits, %d inserts\n",
					st.CacheLookups, st.CacheHits, st.CacheInserts)
				if st.Added > 0 {
					fmt.Fprintf(out, "    added transitions: %d\n", st.Added)
				}

				if showPairs {
					fmt.Fprintln(out, "  Relation (p <= q):")
					for _, pq := range run.Pairs {
						fmt.Fprintf(out, "    %d <= %d\n", pq[0], pq[1])
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("pairs", false, "Print the relation pairs")
	return cmd
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export runs as JSON lines, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			filter, err := filterFlags(cmd)
			if err != nil {
				return err
			}

			return withStore(cmd, func(ctx context.Context, s store.RunStore) error {
				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					dirs, err := pathutil.ExportDirs()
					if err != nil {
						return err
					}
					if err := pathutil.ValidatePath(output, dirs); err != nil {
						return err
					}
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("failed to create %s: %w", pathutil.RedactPath(output), err)
					}
					defer f.Close()
					w = f
				}

				n, err := store.ExportJSONL(ctx, s, w, filter)
				if err != nil {
					return fmt.Errorf("export failed: %w", err)
				}
				if output != "" && output != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d runs to %s\n", n, pathutil.RedactPath(output))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	addFilterFlags(cmd, 0)
	return cmd
}

func newRunsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import runs from a JSON lines export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, _ := newLoggers(cfg)

			return withStore(cmd, func(ctx context.Context, s store.RunStore) error {
				n, err := store.ImportJSONL(ctx, s, f, logger)
				if err != nil {
					return fmt.Errorf("import failed: %w", err)
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"imported": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs\n", n)
				return nil
			})
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withStore(cmd, func(ctx context.Context, s store.RunStore) error {
				run, err := s.GetRun(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get run: %w", err)
				}
				if run == nil {
					return fmt.Errorf("run not found: %s", id)
				}
				if err := s.DeleteRun(ctx, id); err != nil {
					return fmt.Errorf("failed to delete run: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
				return nil
			})
		},
	}
}
