package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
)

// ExportJSONL writes the matching runs, with pairs, to w as one JSON object
// per line, oldest first.
func ExportJSONL(ctx context.Context, s RunStore, w io.Writer, filter Filter) (int, error) {
	runs, err := s.ListRuns(ctx, filter)
	if err != nil {
		return 0, err
	}
	slices.Reverse(runs)

	enc := json.NewEncoder(w)
	written := 0
	for _, summary := range runs {
		run, err := s.GetRun(ctx, summary.ID)
		if err != nil {
			return written, fmt.Errorf("failed to load run %s: %w", summary.ID, err)
		}
		if run == nil {
			continue
		}
		if err := enc.Encode(run); err != nil {
			return written, fmt.Errorf("failed to encode run %s: %w", run.ID, err)
		}
		written++
	}
	return written, nil
}

// ImportJSONL reads runs written by ExportJSONL into s. Lines that fail to
// parse are logged and skipped. Returns the number of runs imported.
func ImportJSONL(ctx context.Context, s RunStore, r io.Reader, logger *slog.Logger) (int, error) {
	scanner := bufio.NewScanner(r)
	// Relations of large automata make long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	imported, lineNum := 0, 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var run Run
		if err := json.Unmarshal(line, &run); err != nil {
			if logger != nil {
				logger.Warn("skipping unparseable run", "line", lineNum, "error", err)
			}
			continue
		}
		if _, err := s.SaveRun(ctx, run); err != nil {
			return imported, fmt.Errorf("failed to import run at line %d: %w", lineNum, err)
		}
		imported++
	}

	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("scanner error: %w", err)
	}
	return imported, nil
}
