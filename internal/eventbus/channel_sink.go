package eventbus

import "github.com/geoguansin/normengine/pkg/orchestrator"

// ChannelSink forwards events onto a buffered channel for an in-process
// subscriber (the canvas/UI layer, a test harness) to range over. A full
// channel drops the event rather than blocking the bus goroutine; Dropped,
// when set, is called once for every event lost, so a caller can count
// drops and surface that in a status readout.
type ChannelSink struct {
	name    string
	events  chan orchestrator.Event
	Dropped func()
}

// NewChannelSink creates a ChannelSink with the given buffer size. Events
// are available on Events().
func NewChannelSink(name string, bufferSize int) *ChannelSink {
	return &ChannelSink{
		name:   name,
		events: make(chan orchestrator.Event, bufferSize),
	}
}

func (s *ChannelSink) Name() string { return s.name }

// Events returns the channel subscribers should range over.
func (s *ChannelSink) Events() <-chan orchestrator.Event {
	return s.events
}

func (s *ChannelSink) Emit(event orchestrator.Event) {
	select {
	case s.events <- event:
	default:
		if s.Dropped != nil {
			s.Dropped()
		}
	}
}

// Close closes the underlying channel. Callers must stop calling Emit (via
// Bus.Unregister) before closing.
func (s *ChannelSink) Close() {
	close(s.events)
}
