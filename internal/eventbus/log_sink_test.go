package eventbus

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoguansin/normengine/internal/config"
	"github.com/geoguansin/normengine/internal/infrastructure/logger"
	"github.com/geoguansin/normengine/pkg/orchestrator"
)

func TestLogSinkEmitsInfoAndErrorLevels(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"})
	sink := NewLogSink(l)

	sink.Emit(orchestrator.Event{Type: "inference:started", RunID: "r1", Cycle: 2, FlowIndex: "1"})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "inference:started", rec["msg"])
	assert.Equal(t, "r1", rec["run_id"])
	assert.Equal(t, "1", rec["flow_index"])

	buf.Reset()
	sink.Emit(orchestrator.Event{Type: "execution:error", RunID: "r1", Err: assert.AnError})
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "ERROR", rec["level"])
}
