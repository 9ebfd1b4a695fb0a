package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/concept"
	"github.com/geoguansin/normengine/pkg/inference"
	"github.com/geoguansin/normengine/pkg/sequence"
	"github.com/geoguansin/normengine/pkg/waitlist"
)

func addConceptEntry(t *testing.T, repo *concept.Repo, name string, typ concept.Type) {
	t.Helper()
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: name, Type: typ}}))
}

func seedGround(t *testing.T, repo *concept.Repo, b *blackboard.Blackboard, name string, typ concept.Type, data any, axes []string) {
	t.Helper()
	addConceptEntry(t, repo, name, typ)
	require.NoError(t, repo.AddReference(name, data, axes))
	b.SetConceptStatus(name, blackboard.ConceptComplete)
}

func imperativeEntry(t *testing.T, flowIndex, conceptToInfer string, valueConcepts []string, funcConcept string, valueOrder map[string]any) *inference.Entry {
	t.Helper()
	fi, err := inference.ParseFlowIndex(flowIndex)
	require.NoError(t, err)
	return &inference.Entry{
		ConceptToInfer:        conceptToInfer,
		ValueConcepts:         valueConcepts,
		FunctionConcept:       funcConcept,
		WorkingInterpretation: map[string]any{"value_order": valueOrder},
		InferenceSequence:     inference.Imperative,
		FlowIndex:             fi,
	}
}

// TestOrchestratorMultiCycleConvergence builds a three-step chain: two
// independent sums (schedulable in the same FAST-mode cycle since their
// outputs are disjoint) feeding a third sum that can only become ready
// once both finish, forcing a second cycle.
func TestOrchestratorMultiCycleConvergence(t *testing.T) {
	repo := concept.NewRepo()
	b := blackboard.New()

	seedGround(t, repo, b, "pair1", concept.TypeSemantical, []any{"2", "3"}, []string{"digit"})
	seedGround(t, repo, b, "pair2", concept.TypeSemantical, []any{"4", "5"}, []string{"digit"})
	seedGround(t, repo, b, "add_fn", concept.TypeSyntactical, "+", nil)
	addConceptEntry(t, repo, "sum1", concept.TypeSemantical)
	addConceptEntry(t, repo, "sum2", concept.TypeSemantical)
	addConceptEntry(t, repo, "total", concept.TypeSemantical)

	entry1 := imperativeEntry(t, "1", "sum1", []string{"pair1"}, "add_fn", map[string]any{"digit": 0})
	entry2 := imperativeEntry(t, "2", "sum2", []string{"pair2"}, "add_fn", map[string]any{"digit": 0})
	entry3 := imperativeEntry(t, "3", "total", []string{"sum1", "sum2"}, "add_fn", map[string]any{})

	inferenceRepo := inference.NewRepo()
	require.NoError(t, inferenceRepo.Add(*entry1))
	require.NoError(t, inferenceRepo.Add(*entry2))
	require.NoError(t, inferenceRepo.Add(*entry3))

	wl := waitlist.New([]*inference.Entry{entry1, entry2, entry3})
	registry := sequence.NewDefaultRegistry()

	o := New("run-1", repo, inferenceRepo, b, wl, registry, nil)
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, HaltConverged, result.Halt)
	assert.Equal(t, 2, result.Cycles)
	assert.Empty(t, result.FailedItems)

	totalEntry, ok := repo.GetConcept("total")
	require.True(t, ok)
	require.NotNil(t, totalEntry.Concept.Ref)
	assert.Equal(t, []any{"14"}, totalEntry.Concept.Ref.GetTensor(false))

	for _, fi := range []string{"1", "2", "3"} {
		assert.Equal(t, blackboard.ItemCompleted, b.GetItemStatus(fi))
	}
}

// TestOrchestratorNoProgressHalt exercises the no-progress halt: an item
// whose dependency never completes is never ready, so the first cycle
// finds nothing to run and the loop halts on no progress before reaching
// MaxCycles.
func TestOrchestratorNoProgressHalt(t *testing.T) {
	repo := concept.NewRepo()
	b := blackboard.New()
	addConceptEntry(t, repo, "never_ready", concept.TypeSemantical)
	addConceptEntry(t, repo, "stuck", concept.TypeSemantical)

	entry := imperativeEntry(t, "1", "stuck", []string{"never_ready"}, "add_fn", map[string]any{})
	inferenceRepo := inference.NewRepo()
	require.NoError(t, inferenceRepo.Add(*entry))
	wl := waitlist.New([]*inference.Entry{entry})
	registry := sequence.NewDefaultRegistry()

	o := New("run-2", repo, inferenceRepo, b, wl, registry, nil)
	o.MaxCycles = 3
	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HaltNoProgress, result.Halt)
}

// TestOrchestratorSlowModeOneItemPerCycle confirms SLOW mode executes at
// most one ready item per cycle even when several are ready at once.
func TestOrchestratorSlowModeOneItemPerCycle(t *testing.T) {
	repo := concept.NewRepo()
	b := blackboard.New()
	seedGround(t, repo, b, "pair1", concept.TypeSemantical, []any{"2", "3"}, []string{"digit"})
	seedGround(t, repo, b, "pair2", concept.TypeSemantical, []any{"4", "5"}, []string{"digit"})
	seedGround(t, repo, b, "add_fn", concept.TypeSyntactical, "+", nil)
	addConceptEntry(t, repo, "sum1", concept.TypeSemantical)
	addConceptEntry(t, repo, "sum2", concept.TypeSemantical)

	entry1 := imperativeEntry(t, "1", "sum1", []string{"pair1"}, "add_fn", map[string]any{"digit": 0})
	entry2 := imperativeEntry(t, "2", "sum2", []string{"pair2"}, "add_fn", map[string]any{"digit": 0})
	inferenceRepo := inference.NewRepo()
	require.NoError(t, inferenceRepo.Add(*entry1))
	require.NoError(t, inferenceRepo.Add(*entry2))
	wl := waitlist.New([]*inference.Entry{entry1, entry2})
	registry := sequence.NewDefaultRegistry()

	o := New("run-3", repo, inferenceRepo, b, wl, registry, nil)
	o.Mode = ModeSlow
	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HaltConverged, result.Halt)
	assert.Equal(t, 2, result.Cycles)
}

// TestOrchestratorStopCooperative confirms Stop halts the loop before
// further cycles run.
func TestOrchestratorStopCooperative(t *testing.T) {
	repo := concept.NewRepo()
	b := blackboard.New()
	addConceptEntry(t, repo, "never_ready", concept.TypeSemantical)
	addConceptEntry(t, repo, "stuck", concept.TypeSemantical)
	entry := imperativeEntry(t, "1", "stuck", []string{"never_ready"}, "add_fn", map[string]any{})
	inferenceRepo := inference.NewRepo()
	require.NoError(t, inferenceRepo.Add(*entry))
	wl := waitlist.New([]*inference.Entry{entry})
	registry := sequence.NewDefaultRegistry()

	o := New("run-4", repo, inferenceRepo, b, wl, registry, nil)
	o.Stop()
	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HaltStopped, result.Halt)
}

type recordingEmitter struct {
	events []Event
}

func (e *recordingEmitter) Emit(ev Event) { e.events = append(e.events, ev) }

func TestOrchestratorEmitsLifecycleEvents(t *testing.T) {
	repo := concept.NewRepo()
	b := blackboard.New()
	seedGround(t, repo, b, "pair1", concept.TypeSemantical, []any{"2", "3"}, []string{"digit"})
	seedGround(t, repo, b, "add_fn", concept.TypeSyntactical, "+", nil)
	addConceptEntry(t, repo, "sum1", concept.TypeSemantical)

	entry := imperativeEntry(t, "1", "sum1", []string{"pair1"}, "add_fn", map[string]any{"digit": 0})
	inferenceRepo := inference.NewRepo()
	require.NoError(t, inferenceRepo.Add(*entry))
	wl := waitlist.New([]*inference.Entry{entry})
	registry := sequence.NewDefaultRegistry()

	emitter := &recordingEmitter{}
	o := New("run-5", repo, inferenceRepo, b, wl, registry, nil)
	o.Emitter = emitter

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	var sawStart, sawComplete bool
	for _, ev := range emitter.events {
		if ev.Type == "inference:started" && ev.FlowIndex == "1" {
			sawStart = true
		}
		if ev.Type == "inference:completed" && ev.FlowIndex == "1" {
			sawComplete = true
		}
		assert.Equal(t, "run-5", ev.RunID)
	}
	assert.True(t, sawStart)
	assert.True(t, sawComplete)
}
