// Package sequence implements the staged state machine that runs one
// inference to completion: a closed SequenceKind selects an ordered list
// of Steps, each consuming and augmenting a shared States value, grounded
// in an Executor/Manager-style registry for dynamic dispatch.
package sequence

import (
	"sync"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/concept"
	"github.com/geoguansin/normengine/pkg/inference"
	"github.com/geoguansin/normengine/pkg/reference"
	"github.com/geoguansin/normengine/pkg/syntax"
)

// ModelRunner resolves an inference's model-sequence spec (§4.8) into a
// callable that MFP hands off to TVA. Defined here (not imported from
// pkg/paradigm) so pkg/sequence stays independent of the paradigm layer;
// the orchestrator wires a concrete pkg/paradigm.Runner into States at
// construction time, via an ExecutorFunc-style adapter.
type ModelRunner interface {
	Run(meta map[string]any) (reference.Callable, error)
}

// IterationState lets GR-driven QR/LR steps persist a Quantifier/Looper
// workspace across an item's retries within a run. Owned by the
// orchestrator and keyed by flow_index, not by States itself, since a
// States value is rebuilt fresh on every retry.
type IterationState struct {
	Quantifier *syntax.Quantifier
	Looper     *syntax.Looper
}

// States is the per-item working state threaded through a sequence's
// step list. Steps mutate it in place rather than returning a new value,
// collapsing a NodeContext/NodeResult-style pair into one struct.
type States struct {
	Entry       *inference.Entry
	ConceptRepo *concept.Repo
	Blackboard  *blackboard.Blackboard
	ModelRunner ModelRunner
	Iteration   *IterationState

	// Filters is the shared "__filter__"+flow_index workspace (§4.7),
	// owned by the orchestrator and passed by reference so Timer/T can
	// write into it and a parent's IR can consume it. The orchestrator
	// may run several items concurrently in the same cycle, so every
	// access goes through FiltersMu.
	Filters   map[string][]syntax.Filter
	FiltersMu *sync.Mutex

	DevMode bool

	WorkingInterpretation map[string]any
	ValueOrder            map[string]int

	ValueRefs   []*reference.Reference
	ContextRefs []*reference.Reference

	Callable reference.Callable
	MVPInput *reference.Reference

	Result *reference.Reference
	Output *reference.Reference

	TimingReady      bool
	ToBeSkipped      bool
	CompletionStatus bool
	CompletionDetail string
	NeedsRetry       bool
}
