package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// readTrace returns the decoded lines of dir/trace.jsonl.
func readTrace(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, TraceFile))
	if err != nil {
		t.Fatalf("failed to read %s: %v", TraceFile, err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad trace line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNewTraceLogger_Levels(t *testing.T) {
	tests := []struct {
		level   string
		enabled bool
	}{
		{"info", false},
		{"", false},
		{"debug", true},
		{"trace", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			dir := t.TempDir()
			tl := NewTraceLogger(dir, tt.level)
			defer tl.Close()

			if (tl != nil) != tt.enabled {
				t.Fatalf("NewTraceLogger(%q) enabled = %v, want %v", tt.level, tl != nil, tt.enabled)
			}
			tl.Log(EventSaturated, map[string]any{"added": 3})

			_, err := os.Stat(filepath.Join(dir, TraceFile))
			if exists := err == nil; exists != tt.enabled {
				t.Errorf("%s exists = %v, want %v", TraceFile, exists, tt.enabled)
			}
		})
	}
}

func TestTraceLogger_EventFields(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "debug")
	defer tl.Close()

	tl.PairRemoved("downward", 2, 0, 3)
	tl.Log(EventPrerefined, map[string]any{"stage": "upward", "removed": 4})

	lines := readTrace(t, dir)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first := lines[0]
	if first["event"] != EventPairRemoved || first["stage"] != "downward" {
		t.Errorf("first line = %v", first)
	}
	// JSON numbers decode as float64
	if first["p"] != 2.0 || first["q"] != 0.0 || first["lookahead"] != 3.0 {
		t.Errorf("pair fields = %v", first)
	}
	if _, ok := first["time"]; !ok {
		t.Error("expected 'time' field")
	}
	if _, ok := first["run_id"]; ok {
		t.Error("root logger should not stamp run_id")
	}

	if lines[0]["seq"] != 1.0 || lines[1]["seq"] != 2.0 {
		t.Errorf("seq = %v, %v, want 1, 2", lines[0]["seq"], lines[1]["seq"])
	}
	if lines[1]["removed"] != 4.0 {
		t.Errorf("removed = %v, want 4", lines[1]["removed"])
	}
}

func TestTraceLogger_WithRun(t *testing.T) {
	dir := t.TempDir()
	root := NewTraceLogger(dir, "trace")
	defer root.Close()

	a := root.WithRun("run-a")
	b := root.WithRun("run-b")
	a.Log(EventRunRecorded, nil)
	b.Log(EventRunRecorded, nil)
	a.PairRemoved("upward", 1, 2, 1)

	lines := readTrace(t, dir)
	want := []string{"run-a", "run-b", "run-a"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, id := range want {
		if lines[i]["run_id"] != id {
			t.Errorf("line %d run_id = %v, want %s", i, lines[i]["run_id"], id)
		}
		// children share one sequence
		if lines[i]["seq"] != float64(i+1) {
			t.Errorf("line %d seq = %v, want %d", i, lines[i]["seq"], i+1)
		}
	}
}

func TestTraceLogger_ConcurrentRuns(t *testing.T) {
	dir := t.TempDir()
	root := NewTraceLogger(dir, "debug")
	defer root.Close()

	const runs, events = 4, 25
	var wg sync.WaitGroup
	for r := 0; r < runs; r++ {
		wg.Add(1)
		go func(tl *TraceLogger) {
			defer wg.Done()
			for i := 0; i < events; i++ {
				tl.PairRemoved("downward", i, i+1, 2)
			}
		}(root.WithRun(string(rune('a' + r))))
	}
	wg.Wait()

	lines := readTrace(t, dir)
	if len(lines) != runs*events {
		t.Fatalf("got %d lines, want %d", len(lines), runs*events)
	}
	seen := make(map[float64]bool, len(lines))
	for _, l := range lines {
		seq := l["seq"].(float64)
		if seen[seq] {
			t.Fatalf("duplicate seq %v", seq)
		}
		seen[seq] = true
	}
}

func TestTraceLogger_NilSafety(t *testing.T) {
	var tl *TraceLogger
	tl.Log(EventSaturated, map[string]any{"added": 1})
	tl.PairRemoved("downward", 0, 1, 1)
	if tl.WithRun("x") != nil {
		t.Error("WithRun on nil should return nil")
	}
	tl.Close()
}

func TestTraceLogger_DoesNotMutateFields(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "debug").WithRun("r1")
	defer tl.Close()

	fields := map[string]any{"stage": "saturate"}
	tl.Log(EventSaturated, fields)

	if len(fields) != 1 {
		t.Errorf("Log() mutated the caller's map: %v", fields)
	}
}

func TestTraceLogger_CloseSharedFile(t *testing.T) {
	dir := t.TempDir()
	root := NewTraceLogger(dir, "debug")
	child := root.WithRun("r1")

	child.Log(EventRunRecorded, nil)
	root.Close()
	// no-ops once the shared file is closed
	child.Log(EventRunRecorded, nil)
	child.Close()

	if lines := readTrace(t, dir); len(lines) != 1 {
		t.Errorf("got %d lines, want 1", len(lines))
	}
}

func TestNewTraceLogger_CreatesDirWithPrivatePerms(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")

	tl := NewTraceLogger(dir, "debug")
	if tl == nil {
		t.Fatal("expected non-nil TraceLogger when dir needs creation")
	}
	defer tl.Close()
	tl.Log(EventSaturated, nil)

	info, err := os.Stat(filepath.Join(dir, TraceFile))
	if err != nil {
		t.Fatalf("%s should exist after dir creation: %v", TraceFile, err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
