// Package orchestrator implements the cycle loop that drives a waitlist
// of inference items to completion: readiness scanning, SLOW/FAST
// execution, progress detection, no-progress and cycle-cap halting, and
// same-cycle fan-out for items with disjoint outputs. Grounded on a
// DAGExecutor.Execute/executeWave-style goroutine+semaphore wave
// fan-out and an ExecutionManager-style run lifecycle, generalized from
// a workflow DAG to an inference waitlist.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/concept"
	"github.com/geoguansin/normengine/pkg/inference"
	"github.com/geoguansin/normengine/pkg/reference"
	"github.com/geoguansin/normengine/pkg/sequence"
	"github.com/geoguansin/normengine/pkg/syntax"
	"github.com/geoguansin/normengine/pkg/waitlist"
)

// RunMode selects §4.4's scheduling discipline: SLOW surfaces one
// inference per cycle, FAST executes every ready item per cycle.
type RunMode string

const (
	ModeSlow RunMode = "SLOW"
	ModeFast RunMode = "FAST"
)

// HaltReason names why the cycle loop stopped.
type HaltReason string

const (
	HaltConverged        HaltReason = "converged"
	HaltMaxCycles        HaltReason = "max_cycles"
	HaltNoProgress       HaltReason = "no_progress"
	HaltStopped          HaltReason = "stopped"
	HaltNeedsInteraction HaltReason = "needs_interaction"
)

// Event is the free-form payload emitted for each notable occurrence;
// Emitter implementations decide how to surface it (log, channel,
// websocket).
type Event struct {
	Type      string
	RunID     string
	Cycle     int
	FlowIndex string
	Detail    map[string]any
	Err       error
}

// Emitter is satisfied structurally by internal/eventbus's sink types,
// matching the decoupling already used for pkg/sequence.ModelRunner and
// pkg/paradigm.Runner: the orchestrator never imports internal/eventbus.
type Emitter interface {
	Emit(Event)
}

// noopEmitter discards every event; the Orchestrator's default when none
// is configured.
type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

// Checkpointer is the seam pkg/checkpoint's SQLite-backed writer
// satisfies. Checkpointing is optional: a nil Checkpointer simply skips
// the write.
type Checkpointer interface {
	WriteCheckpoint(ctx context.Context, snap Snapshot) error
}

// Snapshot is everything a Checkpointer needs to serialize a point in
// the run.
type Snapshot struct {
	RunID          string
	Cycle          int
	InferenceCount int
	ConceptRepo    *concept.Repo
	InferenceRepo  *inference.Repo
	Blackboard     *blackboard.Blackboard
}

// Result summarizes one call to Run.
type Result struct {
	Cycles      int
	Halt        HaltReason
	Interaction *reference.InteractionRequest
	FailedItems map[string]string // flow_index -> error message
}

// Orchestrator drives one run's waitlist to completion.
type Orchestrator struct {
	RunID         string
	ConceptRepo   *concept.Repo
	InferenceRepo *inference.Repo
	Blackboard    *blackboard.Blackboard
	Waitlist      *waitlist.Waitlist
	Registry      *sequence.Registry
	ModelRunner   sequence.ModelRunner

	Mode           RunMode
	MaxCycles      int
	MaxParallelism int
	DevMode        bool

	Emitter      Emitter
	Checkpointer Checkpointer

	filters        map[string][]syntax.Filter
	filtersMu      sync.Mutex
	iterations     map[string]*sequence.IterationState
	failed         map[string]string
	inferenceCount int
	stopRequested  atomic.Bool
	mu             sync.Mutex
}

// New builds an Orchestrator with its per-run bookkeeping maps
// initialized.
func New(runID string, conceptRepo *concept.Repo, inferenceRepo *inference.Repo, b *blackboard.Blackboard, wl *waitlist.Waitlist, registry *sequence.Registry, modelRunner sequence.ModelRunner) *Orchestrator {
	return &Orchestrator{
		RunID:          runID,
		ConceptRepo:    conceptRepo,
		InferenceRepo:  inferenceRepo,
		Blackboard:     b,
		Waitlist:       wl,
		Registry:       registry,
		ModelRunner:    modelRunner,
		Mode:           ModeFast,
		MaxCycles:      50,
		MaxParallelism: 8,
		Emitter:        noopEmitter{},
		filters:        map[string][]syntax.Filter{},
		iterations:     map[string]*sequence.IterationState{},
		failed:         map[string]string{},
	}
}

// Stop requests cooperative cancellation, checked between items and
// cycles.
func (o *Orchestrator) Stop() { o.stopRequested.Store(true) }

// NewRunID mints a fresh run identity for a "fork" start: resuming a
// run keeps its run_id; forking one, or starting fresh, mints a new
// one here.
func NewRunID() string { return uuid.NewString() }

func (o *Orchestrator) emit(ev Event) {
	ev.RunID = o.RunID
	if o.Emitter != nil {
		o.Emitter.Emit(ev)
	}
}

func (o *Orchestrator) hasData(conceptName string) bool {
	entry, ok := o.ConceptRepo.GetConcept(conceptName)
	if !ok || entry.Concept.Ref == nil {
		return false
	}
	return referenceHasData(entry.Concept.Ref)
}

func (o *Orchestrator) inputsOptional(kind inference.SequenceKind) bool {
	return kind == inference.Timing
}

func (o *Orchestrator) iterationFor(flowIndex string) *sequence.IterationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.iterations[flowIndex]
	if !ok {
		st = &sequence.IterationState{}
		o.iterations[flowIndex] = st
	}
	return st
}

// Run executes cycles until converged, cycle-capped, stalled, stopped, or
// an item needs user interaction.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	cycle := 0
	for {
		cycle++
		if o.stopRequested.Load() {
			o.emit(Event{Type: "execution:stopped", Cycle: cycle})
			return Result{Cycles: cycle - 1, Halt: HaltStopped, FailedItems: o.failed}, nil
		}
		select {
		case <-ctx.Done():
			return Result{Cycles: cycle - 1, Halt: HaltStopped, FailedItems: o.failed}, ctx.Err()
		default:
		}
		if o.MaxCycles > 0 && cycle > o.MaxCycles {
			o.emit(Event{Type: "execution:error", Cycle: cycle, Detail: map[string]any{"reason": "max_cycles"}})
			return Result{Cycles: cycle - 1, Halt: HaltMaxCycles, FailedItems: o.failed}, nil
		}

		ready := o.scanReady()
		if len(ready) == 0 {
			if !o.anyPendingOrInProgress() {
				return Result{Cycles: cycle - 1, Halt: HaltConverged, FailedItems: o.failed}, nil
			}
			o.emit(Event{Type: "execution:error", Cycle: cycle, Detail: map[string]any{"reason": "no_progress"}})
			return Result{Cycles: cycle, Halt: HaltNoProgress, FailedItems: o.failed}, nil
		}
		if o.Mode == ModeSlow {
			ready = ready[:1]
		}

		outcomes := o.runWave(ctx, cycle, ready)
		for _, oc := range outcomes {
			if oc.interaction != nil {
				o.writeImmediateCheckpoint(ctx, cycle)
				return Result{Cycles: cycle, Halt: HaltNeedsInteraction, Interaction: oc.interaction, FailedItems: o.failed}, nil
			}
		}

		progress := false
		for _, oc := range outcomes {
			if oc.completed || oc.failed {
				progress = true
			}
		}
		if !progress && !o.anyPendingOrInProgress() {
			return Result{Cycles: cycle, Halt: HaltNoProgress, FailedItems: o.failed}, nil
		}

		o.writeCycleCheckpoint(ctx, cycle)

		if !o.anyPendingOrInProgress() {
			return Result{Cycles: cycle, Halt: HaltConverged, FailedItems: o.failed}, nil
		}
	}
}

// scanReady returns the waitlist items that are pending and ready this
// cycle, in waitlist order. Re-scanning the whole waitlist each cycle
// (rather than tracking a separate "retries" list) is sound here because
// IsReady is a pure function of Blackboard concept-completion state: an
// item mid-loop (needs_retry) is simply re-offered, and its readiness
// computation is unaffected by the retry itself.
func (o *Orchestrator) scanReady() []*waitlist.Item {
	var ready []*waitlist.Item
	for _, it := range o.Waitlist.Items() {
		status := o.Blackboard.GetItemStatus(it.FlowIndex())
		if status == blackboard.ItemCompleted || status == blackboard.ItemFailed {
			continue
		}
		if waitlist.IsReady(o.Blackboard, it, o.hasData, o.inputsOptional) {
			ready = append(ready, it)
		}
	}
	return ready
}

func (o *Orchestrator) anyPendingOrInProgress() bool {
	for _, it := range o.Waitlist.Items() {
		status := o.Blackboard.GetItemStatus(it.FlowIndex())
		if status == blackboard.ItemPending || status == blackboard.ItemInProgress {
			return true
		}
	}
	return false
}

type itemOutcome struct {
	flowIndex   string
	completed   bool
	failed      bool
	interaction *reference.InteractionRequest
}

// runWave executes ready in FAST mode as concurrent goroutines grouped
// by concept_to_infer (items sharing an output run serially relative to
// each other; disjoint-output items run concurrently), bounded by
// MaxParallelism, the same wave shape as executeWave, generalized from
// "node" to "item" and from DAG edges to shared-output serialization. A
// single SLOW-mode item is just a wave of size one.
func (o *Orchestrator) runWave(ctx context.Context, cycle int, ready []*waitlist.Item) []itemOutcome {
	groups := map[string][]*waitlist.Item{}
	var order []string
	for _, it := range ready {
		key := it.Entry.ConceptToInfer
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], it)
	}

	outcomes := make([]itemOutcome, len(ready))
	index := map[string]int{}
	for i, it := range ready {
		index[it.FlowIndex()] = i
	}

	sem := make(chan struct{}, maxInt(1, o.MaxParallelism))
	var wg sync.WaitGroup
	for _, key := range order {
		group := groups[key]
		wg.Add(1)
		go func(items []*waitlist.Item) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			for _, it := range items {
				if o.stopRequested.Load() {
					break
				}
				oc := o.executeItem(ctx, cycle, it)
				outcomes[index[it.FlowIndex()]] = oc
			}
		}(group)
	}
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) executeItem(ctx context.Context, cycle int, it *waitlist.Item) itemOutcome {
	flowIndex := it.FlowIndex()
	o.Blackboard.SetItemStatus(flowIndex, blackboard.ItemInProgress)
	o.mu.Lock()
	o.inferenceCount++
	o.mu.Unlock()
	o.Blackboard.IncrementExecutionCount(flowIndex)
	o.emit(Event{Type: "inference:started", Cycle: cycle, FlowIndex: flowIndex})

	steps, err := o.Registry.Get(it.Entry.InferenceSequence)
	if err != nil {
		return o.fail(flowIndex, cycle, err)
	}

	st := &sequence.States{
		Entry:       it.Entry,
		ConceptRepo: o.ConceptRepo,
		Blackboard:  o.Blackboard,
		ModelRunner: o.ModelRunner,
		Iteration:   o.iterationFor(flowIndex),
		Filters:     o.filters,
		FiltersMu:   &o.filtersMu,
		DevMode:     o.DevMode,
	}

	for _, step := range steps {
		if err := step.Run(ctx, st); err != nil {
			if ir, ok := reference.AsInteraction(err); ok {
				o.Blackboard.SetItemStatus(flowIndex, blackboard.ItemPending)
				o.emit(Event{Type: "execution:paused", Cycle: cycle, FlowIndex: flowIndex, Detail: map[string]any{"interaction_id": ir.InteractionID}})
				return itemOutcome{flowIndex: flowIndex, interaction: ir}
			}
			return o.fail(flowIndex, cycle, fmt.Errorf("step %s: %w", step.Name(), err))
		}
	}

	if st.NeedsRetry {
		o.Blackboard.SetItemStatus(flowIndex, blackboard.ItemPending)
		o.emit(Event{Type: "inference:retry", Cycle: cycle, FlowIndex: flowIndex})
		return itemOutcome{flowIndex: flowIndex, completed: false}
	}

	o.Blackboard.SetItemStatus(flowIndex, blackboard.ItemCompleted)
	o.emit(Event{Type: "inference:completed", Cycle: cycle, FlowIndex: flowIndex, Detail: map[string]any{"completion_detail": st.CompletionDetail}})
	return itemOutcome{flowIndex: flowIndex, completed: true}
}

func (o *Orchestrator) fail(flowIndex string, cycle int, err error) itemOutcome {
	o.Blackboard.SetItemStatus(flowIndex, blackboard.ItemFailed)
	o.Blackboard.SetItemCompletionDetail(flowIndex, err.Error())
	o.mu.Lock()
	o.failed[flowIndex] = err.Error()
	o.mu.Unlock()
	o.emit(Event{Type: "inference:failed", Cycle: cycle, FlowIndex: flowIndex, Err: err})
	return itemOutcome{flowIndex: flowIndex, failed: true}
}

func (o *Orchestrator) writeCycleCheckpoint(ctx context.Context, cycle int) {
	if o.Checkpointer == nil {
		return
	}
	snap := Snapshot{RunID: o.RunID, Cycle: cycle, InferenceCount: o.inferenceCount, ConceptRepo: o.ConceptRepo, InferenceRepo: o.InferenceRepo, Blackboard: o.Blackboard}
	if err := o.Checkpointer.WriteCheckpoint(ctx, snap); err != nil {
		o.emit(Event{Type: "execution:error", Cycle: cycle, Err: err})
	}
}

func (o *Orchestrator) writeImmediateCheckpoint(ctx context.Context, cycle int) {
	o.writeCycleCheckpoint(ctx, cycle)
}

func referenceHasData(r *reference.Reference) bool {
	if r.Rank() == 0 {
		return r.Get(map[string]int{}) != reference.SkipValue
	}
	for _, coord := range cartesianShape(r.Shape()) {
		coordMap := axisCoordMapFor(r.Axes(), coord)
		if r.Get(coordMap) != reference.SkipValue {
			return true
		}
	}
	return false
}

func axisCoordMapFor(axes []string, coord []int) map[string]int {
	m := make(map[string]int, len(axes))
	for i, a := range axes {
		m[a] = coord[i]
	}
	return m
}

func cartesianShape(shape []int) [][]int {
	if len(shape) == 0 {
		return [][]int{{}}
	}
	total := 1
	for _, s := range shape {
		total *= s
	}
	if total == 0 {
		return nil
	}
	coords := make([][]int, 0, total)
	cur := make([]int, len(shape))
	for {
		coords = append(coords, append([]int{}, cur...))
		i := len(shape) - 1
		for i >= 0 {
			cur[i]++
			if cur[i] < shape[i] {
				break
			}
			cur[i] = 0
			i--
		}
		if i < 0 {
			break
		}
	}
	return coords
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
