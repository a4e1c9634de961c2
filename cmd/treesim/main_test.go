package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/treesim/internal/automaton"
	"github.com/nvandessel/treesim/internal/bench"
	"github.com/nvandessel/treesim/internal/store"
)

// isolateHome sets HOME to a temp directory to avoid touching the real
// ~/.treesim/. MUST be called for any test that opens the store.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", home)
	return home
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("treesim %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func listRuns(t *testing.T) []store.Run {
	t.Helper()
	var got struct {
		Runs  []store.Run `json:"runs"`
		Count int         `json:"count"`
	}
	out := mustExecute(t, "runs", "list", "--json")
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding runs list: %v\n%s", err, out)
	}
	if got.Count != len(got.Runs) {
		t.Errorf("count = %d, but %d runs", got.Count, len(got.Runs))
	}
	return got.Runs
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "config", "demo", "bench", "runs"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"json", "config"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	out := mustExecute(t, "version", "--json")
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding version: %v", err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
	if got["schema"] != "1" {
		t.Errorf("schema = %q, want 1", got["schema"])
	}
}

func TestConfigCmd_Workflow(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, ".treesim", "config.yaml")

	mustExecute(t, "config", "init")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config init did not write %s: %v", path, err)
	}
	if _, err := execute(t, "config", "init"); err == nil {
		t.Error("second config init should fail without --force")
	}
	mustExecute(t, "config", "init", "--force")

	mustExecute(t, "config", "set", "downward.lookahead", "3")
	mustExecute(t, "config", "set", "downward.good_cache", "semi-global")

	out := mustExecute(t, "config", "get", "downward.lookahead", "--json")
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding config get: %v", err)
	}
	if got["value"] != float64(3) {
		t.Errorf("downward.lookahead = %v, want 3", got["value"])
	}

	out = mustExecute(t, "config", "list")
	if !strings.Contains(out, "semi-global") {
		t.Errorf("config list missing semi-global:\n%s", out)
	}
}

func TestConfigCmd_SetErrors(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "downward.nope", "1"}},
		{"bad integer", []string{"config", "set", "downward.lookahead", "two"}},
		{"out of range", []string{"config", "set", "downward.lookahead", "99"}},
		{"bad scope", []string{"config", "set", "downward.bad_cache", "everywhere"}},
		{"bad duration", []string{"config", "set", "run.timeout", "soon"}},
		{"unknown get", []string{"config", "get", "downward.nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("treesim %s: expected error", strings.Join(tt.args, " "))
			}
		})
	}
}

func TestConfigCmd_ExplicitFile(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")

	mustExecute(t, "--config", path, "config", "init")
	mustExecute(t, "--config", path, "config", "set", "upward.finality", "strict")

	out := mustExecute(t, "--config", path, "config", "get", "upward.finality")
	if strings.TrimSpace(out) != "upward.finality = strict" {
		t.Errorf("config get = %q", out)
	}
}

func TestDemoCmd_LeafRelation(t *testing.T) {
	isolateHome(t)

	out := mustExecute(t, "demo", "--lookahead", "1", "--json")
	var got demoOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding demo: %v\n%s", err, out)
	}

	want := [][2]automaton.State{{0, 0}, {1, 1}, {1, 2}, {2, 1}, {2, 2}}
	if len(got.Pairs) != len(want) {
		t.Fatalf("pairs = %v, want %v", got.Pairs, want)
	}
	for i := range want {
		if got.Pairs[i] != want[i] {
			t.Errorf("pairs[%d] = %v, want %v", i, got.Pairs[i], want[i])
		}
	}
	if got.Stage != "downward" {
		t.Errorf("stage = %s, want downward", got.Stage)
	}
	if got.RunID == "" {
		t.Error("expected a run id")
	}
	if len(got.Transitions) != 3 {
		t.Errorf("transitions = %v, want 3", got.Transitions)
	}
}

func TestDemoCmd_Saturate(t *testing.T) {
	isolateHome(t)

	out := mustExecute(t, "demo", "--lookahead", "1", "--saturate", "--json")
	var got demoOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding demo: %v", err)
	}
	if got.Stage != "saturate" {
		t.Errorf("stage = %s, want saturate", got.Stage)
	}
	if len(got.Added) != 3 {
		t.Errorf("added = %v, want 3 transitions", got.Added)
	}
}

func TestDemoCmd_TextOutput(t *testing.T) {
	isolateHome(t)

	out := mustExecute(t, "demo", "--lookahead", "1", "--no-record")
	for _, want := range []string{"Automaton (3 states, 3 transitions, initial 0)", "100\n011\n011\n", "Stats:"} {
		if !strings.Contains(out, want) {
			t.Errorf("demo output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Run:") {
		t.Errorf("--no-record printed a run id:\n%s", out)
	}
	if runs := listRuns(t); len(runs) != 0 {
		t.Errorf("--no-record stored %d runs", len(runs))
	}
}

func TestDemoCmd_InvalidLookahead(t *testing.T) {
	isolateHome(t)
	if _, err := execute(t, "demo", "--lookahead", "0", "--no-record"); err == nil {
		t.Error("expected error for lookahead 0")
	}
}

func TestRunsCmd_Workflow(t *testing.T) {
	isolateHome(t)

	if out := mustExecute(t, "runs", "list"); !strings.Contains(out, "No runs recorded yet") {
		t.Errorf("empty list output = %q", out)
	}

	mustExecute(t, "demo", "--lookahead", "1")
	mustExecute(t, "demo", "--lookahead", "2", "--upward")

	runs := listRuns(t)
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}

	out := mustExecute(t, "runs", "list", "--stage", "combined", "--json")
	if !strings.Contains(out, `"count":1`) {
		t.Errorf("combined filter output = %s", out)
	}

	id := runs[0].ID
	out = mustExecute(t, "runs", "show", id, "--pairs")
	for _, want := range []string{"Run " + id, "Options:", "Relation (p <= q):"} {
		if !strings.Contains(out, want) {
			t.Errorf("runs show missing %q:\n%s", want, out)
		}
	}

	dump := filepath.Join(t.TempDir(), "runs.jsonl")
	mustExecute(t, "runs", "export", "-o", dump)
	data, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Errorf("export has %d lines, want 2", lines)
	}

	mustExecute(t, "runs", "delete", id)
	if _, err := execute(t, "runs", "show", id); err == nil {
		t.Error("show after delete should fail")
	}
	if _, err := execute(t, "runs", "delete", id); err == nil {
		t.Error("second delete should fail")
	}
	if runs := listRuns(t); len(runs) != 1 {
		t.Errorf("got %d runs after delete, want 1", len(runs))
	}

	// A fresh home starts empty and takes the whole dump.
	isolateHome(t)
	out = mustExecute(t, "runs", "import", dump)
	if !strings.Contains(out, "Imported 2 runs") {
		t.Errorf("import output = %q", out)
	}
	if runs := listRuns(t); len(runs) != 2 {
		t.Errorf("got %d runs after import, want 2", len(runs))
	}
}

func TestRunsCmd_InvalidFilters(t *testing.T) {
	isolateHome(t)
	if _, err := execute(t, "runs", "list", "--stage", "sideways"); err == nil {
		t.Error("expected error for invalid stage")
	}
	if _, err := execute(t, "runs", "list", "--outcome", "maybe"); err == nil {
		t.Error("expected error for invalid outcome")
	}
}

func TestBenchCmd_Small(t *testing.T) {
	isolateHome(t)

	out := mustExecute(t, "bench", "--seeds", "2", "--states", "3", "--transitions", "6",
		"--max-lookahead", "2", "--workers", "2", "--record", "--json")
	var report bench.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding bench report: %v\n%s", err, out)
	}
	if len(report.Violations) != 0 {
		t.Errorf("violations: %+v", report.Violations)
	}

	// 2 seeds x (2 lookaheads x 5 configurations + 1 combined run).
	if len(report.Cases) != 22 {
		t.Errorf("cases = %d, want 22", len(report.Cases))
	}
	if runs := listRuns(t); len(runs) != 20 {
		t.Errorf("recorded %d runs, want the 20 newest of 22 (list limit)", len(runs))
	}
}

func TestBenchCmd_TextOutput(t *testing.T) {
	isolateHome(t)

	out := mustExecute(t, "bench", "--seeds", "1", "--states", "3", "--transitions", "5", "--max-lookahead", "1")
	for _, want := range []string{"Bench: 1 automata", "reference", "combined", "All properties hold"} {
		if !strings.Contains(out, want) {
			t.Errorf("bench output missing %q:\n%s", want, out)
		}
	}
}
