package logger

import (
	"io"
	"log/slog"
	"os"
)

// RunLogConfig configures the structured run logger, grounded on the
// observability package's Config shape in the wider example corpus
// (ServiceName/LogLevel/LogJSON knobs), scaled down to what the pipeline
// actually needs: a per-process slog.Logger for non-panic run logging.
type RunLogConfig struct {
	// Level controls the minimum slog severity.
	Level slog.Level

	// JSON selects JSON-formatted output over the default text handler.
	JSON bool

	// Output is the destination writer. Defaults to os.Stderr when nil.
	Output io.Writer
}

// NewRunLogger builds a slog.Logger for pipeline run logging, with runId
// and stage as the conventional attribute keys downstream callers attach
// via .With(...).
func NewRunLogger(cfg RunLogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// WithRun returns a logger scoped to a single run, attaching runId (and
// stage, when non-empty) as structured attributes on every record.
func WithRun(base *slog.Logger, runID, stage string) *slog.Logger {
	if stage == "" {
		return base.With("runId", runID)
	}
	return base.With("runId", runID, "stage", stage)
}
