// Package eventbus fans pkg/orchestrator.Event out to pluggable sinks
// (structured logging, in-process subscribers) the way
// internal/application/observer.ObserverManager fans execution events out
// to registered Observers.
package eventbus

import (
	"fmt"
	"sync"

	"github.com/geoguansin/normengine/internal/infrastructure/logger"
	"github.com/geoguansin/normengine/pkg/orchestrator"
)

// Sink receives every event the bus dispatches. Implementations must not
// block the orchestrator's cycle loop; the Bus already dispatches off the
// calling goroutine, so a Sink's Emit should return quickly.
type Sink interface {
	Name() string
	Emit(orchestrator.Event)
}

// Bus registers Sinks and fans events out to them, matching
// ObserverManager's one-goroutine-per-sink, panic-isolated dispatch. Bus
// itself satisfies orchestrator.Emitter, so an orchestrator.Orchestrator
// can be pointed at a Bus directly.
type Bus struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *logger.Logger
}

// New creates an empty Bus. The logger is used to report a recovered sink
// panic; it may be nil, in which case those reports are dropped.
func New(log *logger.Logger) *Bus {
	return &Bus{logger: log}
}

// Register adds a sink. Names must be unique so a caller can Unregister a
// specific sink later.
func (b *Bus) Register(s Sink) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.sinks {
		if existing.Name() == s.Name() {
			return fmt.Errorf("eventbus: sink %q already registered", s.Name())
		}
	}
	b.sinks = append(b.sinks, s)
	return nil
}

// Unregister removes a sink by name.
func (b *Bus) Unregister(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.sinks {
		if s.Name() == name {
			b.sinks = append(b.sinks[:i], b.sinks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("eventbus: sink %q not found", name)
}

// Emit satisfies orchestrator.Emitter. Each sink runs in its own goroutine
// so one slow or panicking sink never stalls the cycle loop or another
// sink.
func (b *Bus) Emit(event orchestrator.Event) {
	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range sinks {
		go b.dispatch(s, event)
	}
}

func (b *Bus) dispatch(s Sink, event orchestrator.Event) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Error("eventbus sink panic recovered",
					"sink", s.Name(),
					"event_type", event.Type,
					"panic", r,
				)
			}
		}
	}()

	s.Emit(event)
}
