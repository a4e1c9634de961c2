package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Trace event names.
const (
	EventPairRemoved = "pair_removed"
	EventPrerefined  = "prerefined"
	EventSaturated   = "saturated"
	EventRunRecorded = "run_recorded"
)

// TraceFile is the name of the trace inside its directory.
const TraceFile = "trace.jsonl"

// Trace logs msg at LevelTrace. A nil logger is ignored.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Log(context.Background(), LevelTrace, msg, args...)
	}
}

// traceFile is the file shared by a TraceLogger and its run-scoped
// children. seq numbers lines in write order.
type traceFile struct {
	mu   sync.Mutex
	file *os.File
	seq  int64
}

// TraceLogger appends refinement events to a JSONL file. Loggers returned
// by WithRun share the file and stamp every event with their run id.
// A nil TraceLogger discards everything.
type TraceLogger struct {
	out   *traceFile
	runID string
}

// NewTraceLogger opens dir/trace.jsonl for append. It returns nil at info
// level or when the file cannot be opened.
func NewTraceLogger(dir string, level string) *TraceLogger {
	if ParseLevel(level) >= slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &TraceLogger{out: &traceFile{file: f}}
}

// WithRun returns a logger writing to the same file that adds run_id to
// every event.
func (tl *TraceLogger) WithRun(runID string) *TraceLogger {
	if tl == nil {
		return nil
	}
	return &TraceLogger{out: tl.out, runID: runID}
}

// Log writes one event line with the given fields. time, seq, event and
// run_id are added; fields is not modified.
func (tl *TraceLogger) Log(event string, fields map[string]any) {
	if tl == nil {
		return
	}

	entry := maps.Clone(fields)
	if entry == nil {
		entry = make(map[string]any, 4)
	}
	entry["event"] = event
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	if tl.runID != "" {
		entry["run_id"] = tl.runID
	}

	tl.out.mu.Lock()
	defer tl.out.mu.Unlock()
	if tl.out.file == nil {
		return
	}
	tl.out.seq++
	entry["seq"] = tl.out.seq

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = tl.out.file.Write(append(data, '\n'))
}

// PairRemoved records that stage refuted (p, q).
func (tl *TraceLogger) PairRemoved(stage string, p, q, lookahead int) {
	tl.Log(EventPairRemoved, map[string]any{
		"stage":     stage,
		"p":         p,
		"q":         q,
		"lookahead": lookahead,
	})
}

// Close closes the file for this logger and every logger sharing it.
func (tl *TraceLogger) Close() {
	if tl == nil {
		return
	}
	tl.out.mu.Lock()
	defer tl.out.mu.Unlock()
	if tl.out.file != nil {
		tl.out.file.Close()
		tl.out.file = nil
	}
}
