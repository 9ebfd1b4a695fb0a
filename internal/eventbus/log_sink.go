package eventbus

import (
	"github.com/geoguansin/normengine/internal/infrastructure/logger"
	"github.com/geoguansin/normengine/pkg/orchestrator"
)

// LogSink renders every event through the structured logger, one record
// per event, at info level unless the event carries an error.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink builds a LogSink writing through log.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

// Emit logs event.Type plus its run/cycle/flow coordinates and detail
// fields, mirroring the attribute names pkg/checkpoint.LogSink writes to
// the execution log table.
func (s *LogSink) Emit(event orchestrator.Event) {
	args := []any{
		"run_id", event.RunID,
		"cycle", event.Cycle,
	}
	if event.FlowIndex != "" {
		args = append(args, "flow_index", event.FlowIndex)
	}
	for k, v := range event.Detail {
		args = append(args, k, v)
	}

	if event.Err != nil {
		args = append(args, "error", event.Err)
		s.log.Error(event.Type, args...)
		return
	}
	s.log.Info(event.Type, args...)
}
