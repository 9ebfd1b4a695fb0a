package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// LogSink is an slog.Handler that appends every record to the logs table
// against a given execution attempt. Construct one per execution attempt
// rather than sharing it across a whole run, since every record it
// handles is attributed to a single ExecutionID.
type LogSink struct {
	manager     *Manager
	executionID uuid.UUID
	attrs       []slog.Attr
	group       string
}

// NewLogSink builds a LogSink that appends into AppendLog for executionID.
func NewLogSink(m *Manager, executionID uuid.UUID) *LogSink {
	return &LogSink{manager: m, executionID: executionID}
}

// Enabled reports every level as handled; filtering log volume is a
// concern for the logger built on top, not this sink.
func (s *LogSink) Enabled(context.Context, slog.Level) bool { return true }

// Handle renders the record as a single text line and appends it to the
// logs table.
func (s *LogSink) Handle(ctx context.Context, r slog.Record) error {
	line := fmt.Sprintf("[%s] %s", r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	for _, a := range s.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	return s.manager.AppendLog(ctx, s.executionID, line)
}

// WithAttrs returns a sink that additionally appends attrs to every record.
func (s *LogSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *s
	next.attrs = append(append([]slog.Attr{}, s.attrs...), attrs...)
	return &next
}

// WithGroup is a no-op beyond tracking the group name: log lines stay
// flat text, so there is no nested-attribute tree to qualify.
func (s *LogSink) WithGroup(name string) slog.Handler {
	next := *s
	next.group = name
	return &next
}
