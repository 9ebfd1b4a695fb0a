package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoguansin/normengine/pkg/orchestrator"
)

func TestBusRegisterRejectsDuplicateNames(t *testing.T) {
	b := New(nil)
	s := NewChannelSink("c1", 1)
	require.NoError(t, b.Register(s))
	assert.Error(t, b.Register(NewChannelSink("c1", 1)))
}

func TestBusUnregisterUnknownSinkErrors(t *testing.T) {
	b := New(nil)
	assert.Error(t, b.Unregister("missing"))
}

func TestBusFansOutToAllSinks(t *testing.T) {
	b := New(nil)
	c1 := NewChannelSink("c1", 4)
	c2 := NewChannelSink("c2", 4)
	require.NoError(t, b.Register(c1))
	require.NoError(t, b.Register(c2))

	b.Emit(orchestrator.Event{Type: "inference:started", RunID: "r1", Cycle: 1})

	select {
	case ev := <-c1.Events():
		assert.Equal(t, "inference:started", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for c1")
	}
	select {
	case ev := <-c2.Events():
		assert.Equal(t, "inference:started", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for c2")
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	c := NewChannelSink("c", 1)
	var dropped int
	c.Dropped = func() { dropped++ }

	c.Emit(orchestrator.Event{Type: "a"})
	c.Emit(orchestrator.Event{Type: "b"})

	assert.Equal(t, 1, dropped)
}

// panicSink always panics; used to prove Bus isolates one sink's panic
// from the rest.
type panicSink struct{}

func (panicSink) Name() string              { return "panic" }
func (panicSink) Emit(_ orchestrator.Event) { panic("boom") }

func TestBusIsolatesPanickingSink(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Register(panicSink{}))
	ok := NewChannelSink("ok", 1)
	require.NoError(t, b.Register(ok))

	b.Emit(orchestrator.Event{Type: "x"})

	select {
	case ev := <-ok.Events():
		assert.Equal(t, "x", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("panic in one sink blocked delivery to another")
	}
}
