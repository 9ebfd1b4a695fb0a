// Package waitlist implements the ordered container of scheduled items
// and their readiness check, a wave-readiness computation in the style
// of a DAG executor's ready-node scan.
package waitlist

import (
	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/inference"
)

// Item wraps one InferenceEntry as scheduled on the Waitlist.
type Item struct {
	Entry *inference.Entry
}

// FlowIndex returns the item's dotted flow index string.
func (it *Item) FlowIndex() string { return it.Entry.FlowIndex.String() }

// Waitlist is the ordered container of scheduled items.
type Waitlist struct {
	items []*Item
}

// New builds a Waitlist from inference entries, preserving their
// repository load order (also their scheduling order within a cycle).
func New(entries []*inference.Entry) *Waitlist {
	items := make([]*Item, len(entries))
	for i, e := range entries {
		items[i] = &Item{Entry: e}
	}
	return &Waitlist{items: items}
}

// Items returns the items in waitlist order.
func (w *Waitlist) Items() []*Item { return w.items }

// HasDataFunc reports whether a concept's reference currently contains
// at least one non-skip cell. Supplied by the caller (orchestrator) so
// this package stays independent of the concept repo's concrete shape.
type HasDataFunc func(conceptName string) bool

// InputsOptionalFunc reports whether a sequence kind declares its inputs
// optional (e.g. timing inferences, which guard rather than consume).
type InputsOptionalFunc func(kind inference.SequenceKind) bool

// IsReady reports readiness: every value_concept and
// context_concept is complete (through aliases) and every input
// reference has at least one non-skip cell, unless the sequence variant
// declares inputs optional.
func IsReady(b *blackboard.Blackboard, it *Item, hasData HasDataFunc, inputsOptional InputsOptionalFunc) bool {
	inputs := make([]string, 0, len(it.Entry.ValueConcepts)+len(it.Entry.ContextConcepts))
	inputs = append(inputs, it.Entry.ValueConcepts...)
	inputs = append(inputs, it.Entry.ContextConcepts...)

	for _, name := range inputs {
		if b.GetConceptStatus(name) != blackboard.ConceptComplete {
			return false
		}
	}
	if inputsOptional != nil && inputsOptional(it.Entry.InferenceSequence) {
		return true
	}
	for _, name := range inputs {
		if hasData != nil && !hasData(name) {
			return false
		}
	}
	return true
}
