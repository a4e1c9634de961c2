package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/constants"
	"github.com/nvandessel/treesim/internal/pipeline"
	"github.com/nvandessel/treesim/internal/stats"
	"github.com/nvandessel/treesim/internal/store"
	"github.com/nvandessel/treesim/internal/upward"
	"github.com/spf13/cobra"
)

// leafAutomaton is the three-state demo automaton: two leaves a->1 and
// a->2 and a root f(1,1)->0 with 0 initial.
func leafAutomaton() *automaton.Automaton {
	a := automaton.New(3, []int{0, 2}, 0)
	a.Add(automaton.Transition{Parent: 1, Symbol: 0})
	a.Add(automaton.Transition{Parent: 2, Symbol: 0})
	a.Add(automaton.Transition{Parent: 0, Symbol: 1, Children: []automaton.State{1, 1}})
	return a
}

// demoOutput is the JSON rendering of a demo run.
type demoOutput struct {
	RunID       string               `json:"run_id,omitempty"`
	Stage       constants.Stage      `json:"stage"`
	States      int                  `json:"states"`
	Transitions []string             `json:"transitions"`
	Pairs       [][2]automaton.State `json:"pairs"`
	Added       []string             `json:"added,omitempty"`
	Stats       stats.Stats          `json:"stats"`
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Compute the simulation of a demo automaton",
		Long: `Run the configured pipeline on a built-in automaton and print the
resulting relation. Without --seed the three-state leaf automaton is used;
with --seed a random automaton of the given shape is generated.

Row p of the printed matrix lists the states that simulate p.

Examples:
  treesim demo                          # Leaf automaton, configured lookahead
  treesim demo --lookahead 1 --upward   # Combine with the upward relation
  treesim demo --seed 7 --saturate      # Random automaton, saturated`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			seed, _ := cmd.Flags().GetUint64("seed")
			states, _ := cmd.Flags().GetInt("states")
			transitions, _ := cmd.Flags().GetInt("transitions")
			noRecord, _ := cmd.Flags().GetBool("no-record")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts, err := pipeline.FromConfig(cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("lookahead") {
				opts.Downward.Lookahead, _ = cmd.Flags().GetInt("lookahead")
				if err := opts.Downward.Validate(); err != nil {
					return err
				}
			}
			if up, _ := cmd.Flags().GetBool("upward"); up && opts.Upward == nil {
				uc := upward.DefaultConfig()
				opts.Upward = &uc
			}
			if sat, _ := cmd.Flags().GetBool("saturate"); sat {
				opts.Saturate = true
			}

			a := leafAutomaton()
			if seed != 0 {
				a = automaton.Generate(seed, automaton.Shape{States: states, Transitions: transitions, Finals: 1})
			}

			var s store.RunStore
			if !noRecord {
				s, err = openStore(cfg)
				if err != nil {
					return err
				}
				defer s.Close()
			}

			logger, trace := newLoggers(cfg)
			defer trace.Close()

			p := pipeline.New(opts, s)
			p.SetLogger(logger, trace)

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			res, err := p.Run(ctx, a)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(demoOutput{
					RunID:       runIDOf(res, s),
					Stage:       res.Stage,
					States:      a.NumStates(),
					Transitions: transitionStrings(a.All()),
					Pairs:       res.Relation.Pairs(),
					Added:       transitionStrings(res.Added),
					Stats:       res.Stats,
				})
			}
			printDemo(cmd.OutOrStdout(), a, res, runIDOf(res, s))
			return nil
		},
	}

	cmd.Flags().Int("lookahead", constants.DefaultLookahead, "Attack tree depth (overrides config)")
	cmd.Flags().Bool("upward", false, "Combine with the upward relation")
	cmd.Flags().Bool("saturate", false, "Saturate the automaton with the result")
	cmd.Flags().Uint64("seed", 0, "Generate a random automaton from this seed")
	cmd.Flags().Int("states", constants.DefaultBenchStates, "States of the generated automaton")
	cmd.Flags().Int("transitions", constants.DefaultBenchTransitions, "Transitions of the generated automaton")
	cmd.Flags().Bool("no-record", false, "Do not record the run")

	return cmd
}

func runIDOf(res *pipeline.Result, s store.RunStore) string {
	if s == nil {
		return ""
	}
	return res.RunID
}

func transitionStrings(ts []automaton.Transition) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

func printDemo(out io.Writer, a *automaton.Automaton, res *pipeline.Result, runID string) {
	fmt.Fprintf(out, "Automaton (%d states, %d transitions, initial %d):\n", a.NumStates(), a.Len(), a.Initial())
	for _, t := range a.All() {
		fmt.Fprintf(out, "  %s\n", t)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Relation (%s, %d pairs):\n", res.Stage, res.Relation.Count())
	fmt.Fprint(out, res.Relation.String())
	fmt.Fprintln(out)

	if res.Saturated != nil {
		fmt.Fprintf(out, "Saturation added %d transitions:\n", len(res.Added))
		for _, t := range res.Added {
			fmt.Fprintf(out, "  %s\n", t)
		}
		fmt.Fprintln(out)
	}

	st := res.Stats
	fmt.Fprintf(out, "Stats: %d visits, %d refinements, %d prerefined, %d attacks, %.0f%% cache hits, %v\n",
		st.Visits, st.Refinements, st.Prerefined, st.Attacks, st.HitRate()*100, st.Elapsed)
	if runID != "" {
		fmt.Fprintf(out, "Run: %s\n", runID)
	}
}
