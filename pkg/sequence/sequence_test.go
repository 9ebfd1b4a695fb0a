package sequence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/concept"
	"github.com/geoguansin/normengine/pkg/inference"
	"github.com/geoguansin/normengine/pkg/reference"
	"github.com/geoguansin/normengine/pkg/syntax"
)

func runSteps(t *testing.T, steps []Step, st *States) {
	t.Helper()
	for _, step := range steps {
		require.NoError(t, step.Run(context.Background(), st), "step %s", step.Name())
	}
}

func TestDefaultRegistryCoversAllSequenceKinds(t *testing.T) {
	r := NewDefaultRegistry()
	for _, kind := range inference.AllSequenceKinds {
		assert.True(t, r.Has(kind), "missing step list for %q", kind)
	}
}

// TestScenario1AdditionPipeline exercises an element-wise addition end
// to end through the imperative step list.
func TestScenario1AdditionPipeline(t *testing.T) {
	repo := concept.NewRepo()
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "number pair", Type: concept.TypeSemantical}}))
	require.NoError(t, repo.AddReference("number pair", []any{
		[]any{"5", "2"},
		[]any{"3", "4"},
	}, []string{"pair", "digit"}))
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "add_fn", Type: concept.TypeSyntactical}}))
	require.NoError(t, repo.AddReference("add_fn", "+", nil))
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "sum", Type: concept.TypeSemantical}}))

	flowIndex, err := inference.ParseFlowIndex("1")
	require.NoError(t, err)
	entry := &inference.Entry{
		ConceptToInfer:        "sum",
		ValueConcepts:         []string{"number pair"},
		FunctionConcept:       "add_fn",
		WorkingInterpretation: map[string]any{"value_order": map[string]any{"digit": 0}},
		InferenceSequence:     inference.Imperative,
		FlowIndex:             flowIndex,
	}

	b := blackboard.New()
	st := &States{
		Entry:       entry,
		ConceptRepo: repo,
		Blackboard:  b,
		Filters:     map[string][]syntax.Filter{},
	}

	reg := NewDefaultRegistry()
	steps, err := reg.Get(inference.Imperative)
	require.NoError(t, err)
	runSteps(t, steps, st)

	assert.Equal(t, "success", st.CompletionDetail)
	sumEntry, ok := repo.GetConcept("sum")
	require.True(t, ok)
	require.NotNil(t, sumEntry.Concept.Ref)
	assert.Equal(t, []string{"pair"}, sumEntry.Concept.Ref.Axes())
	assert.Equal(t, []any{"7", "7"}, sumEntry.Concept.Ref.GetTensor(false))
	assert.Equal(t, blackboard.ConceptComplete, b.GetConceptStatus("sum"))
}

// TestScenario2GroupingQuantifyingAverage exercises the grouping+
// quantifying average over a (student, score) reference, confirming
// check_all_base_elements_looped converges after exactly one cycle per
// student.
func TestScenario2GroupingQuantifyingAverage(t *testing.T) {
	scores, err := reference.FromData([]any{
		[]any{90.0, 80.0},
		[]any{70.0, 100.0},
	}, []string{"student", "score"})
	require.NoError(t, err)

	repo := concept.NewRepo()
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "scores", Type: concept.TypeSemantical, Ref: scores}}))
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "averages", Type: concept.TypeSemantical}}))

	flowIndex, err := inference.ParseFlowIndex("1")
	require.NoError(t, err)
	entry := &inference.Entry{
		ConceptToInfer:    "averages",
		ValueConcepts:     []string{"scores"},
		InferenceSequence: inference.Quantifying,
		FlowIndex:         flowIndex,
		WorkingInterpretation: map[string]any{
			"group_mode":        "and_in",
			"by_axes":           []any{"student"},
			"loop_axis":         "student",
			"loop_base_concept": "averages",
			"element_result":    "mean(values)",
		},
	}

	reg := NewDefaultRegistry()
	steps, err := reg.Get(inference.Quantifying)
	require.NoError(t, err)

	iter := &IterationState{}
	cycles := 0
	for cycles < 10 {
		cycles++
		st := &States{
			Entry:       entry,
			ConceptRepo: repo,
			Blackboard:  blackboard.New(),
			Filters:     map[string][]syntax.Filter{},
			Iteration:   iter,
		}
		runSteps(t, steps, st)
		if !st.NeedsRetry {
			break
		}
	}
	assert.Equal(t, 2, cycles)

	avgEntry, ok := repo.GetConcept("averages")
	require.True(t, ok)
	require.NotNil(t, avgEntry.Concept.Ref)
	assert.ElementsMatch(t, []string{"student"}, avgEntry.Concept.Ref.Axes())
}

// TestScenario3JudgementTimingFilter exercises §8 Scenario 3: a
// judgement publishes a truth mask, a child @if timing inference reads
// it, and the parent's IR step sees skip values at the masked-out index.
func TestScenario3JudgementTimingFilter(t *testing.T) {
	b := blackboard.New()
	reg := NewDefaultRegistry()

	repo := concept.NewRepo()
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "scores", Type: concept.TypeSemantical}}))
	require.NoError(t, repo.AddReference("scores", []any{5.0, -3.0, 2.0}, []string{"document"}))
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "is_positive", Type: concept.TypeSyntactical}}))
	require.NoError(t, repo.AddReference("is_positive", "+", nil))
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "judged_docs", Type: concept.TypeSemantical}}))

	judgeFlow, err := inference.ParseFlowIndex("2")
	require.NoError(t, err)
	judgeEntry := &inference.Entry{
		ConceptToInfer:        "judged_docs",
		ValueConcepts:         []string{"scores"},
		FunctionConcept:       "is_positive",
		InferenceSequence:     inference.Judgement,
		FlowIndex:             judgeFlow,
		WorkingInterpretation: map[string]any{"condition": "float(value) > 0"},
	}
	judgeState := &States{Entry: judgeEntry, ConceptRepo: repo, Blackboard: b, Filters: map[string][]syntax.Filter{}}
	judgeSteps, err := reg.Get(inference.Judgement)
	require.NoError(t, err)
	runSteps(t, judgeSteps, judgeState)
	assert.Equal(t, "success", judgeState.CompletionDetail)

	timingFlow, err := inference.ParseFlowIndex("1.1")
	require.NoError(t, err)
	timingEntry := &inference.Entry{
		ConceptToInfer:        "",
		InferenceSequence:     inference.Timing,
		FlowIndex:             timingFlow,
		WorkingInterpretation: map[string]any{"condition": "@if judged_docs"},
	}
	filters := map[string][]syntax.Filter{}
	timingState := &States{Entry: timingEntry, Blackboard: b, Filters: filters, WorkingInterpretation: timingEntry.WorkingInterpretation}
	timingSteps, err := reg.Get(inference.Timing)
	require.NoError(t, err)
	runSteps(t, timingSteps, timingState)
	assert.Contains(t, filters, "__filter__1")

	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "docs", Type: concept.TypeSemantical}}))
	require.NoError(t, repo.AddReference("docs", []any{"a", "b", "c"}, []string{"document"}))

	parentFlow, err := inference.ParseFlowIndex("1")
	require.NoError(t, err)
	parentEntry := &inference.Entry{
		ConceptToInfer:    "result",
		ValueConcepts:     []string{"docs"},
		InferenceSequence: inference.Assigning,
		FlowIndex:         parentFlow,
		WorkingInterpretation: map[string]any{
			"marker": ".",
		},
	}
	parentState := &States{Entry: parentEntry, ConceptRepo: repo, Blackboard: b, Filters: filters}
	require.NoError(t, newStepIWI().Run(context.Background(), parentState))
	require.NoError(t, newStepIR().Run(context.Background(), parentState))

	require.Len(t, parentState.ValueRefs, 1)
	filtered := parentState.ValueRefs[0]
	assert.Equal(t, "a", filtered.Get(map[string]int{"document": 0}))
	assert.Equal(t, reference.SkipValue, filtered.Get(map[string]int{"document": 1}))
	assert.Equal(t, "c", filtered.Get(map[string]int{"document": 2}))
	assert.NotContains(t, filters, "__filter__1")
}

// TestScenario6UserInteractionResume exercises §8 Scenario 6: an MFP
// callable raising a reference.InteractionRequest propagates all the way
// out of TVA rather than being swallowed by dev-mode skip handling.
func TestScenario6UserInteractionResume(t *testing.T) {
	repo := concept.NewRepo()
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "prompt", Type: concept.TypeSemantical}}))
	require.NoError(t, repo.AddReference("prompt", "go", nil))
	require.NoError(t, repo.AddConcept(concept.Entry{Concept: concept.Concept{Name: "result", Type: concept.TypeSemantical}}))

	flowIndex, err := inference.ParseFlowIndex("1")
	require.NoError(t, err)
	entry := &inference.Entry{
		ConceptToInfer:    "result",
		ValueConcepts:     []string{"prompt"},
		InferenceSequence: inference.Imperative,
		FlowIndex:         flowIndex,
	}
	st := &States{
		Entry:       entry,
		ConceptRepo: repo,
		Blackboard:  blackboard.New(),
		Filters:     map[string][]syntax.Filter{},
		ModelRunner: stubRunner{err: &reference.InteractionRequest{InteractionID: "int-1", Prompt: "need input"}},
	}

	require.NoError(t, newStepIWI().Run(context.Background(), st))
	require.NoError(t, newStepIR().Run(context.Background(), st))
	require.NoError(t, newStepMFP().Run(context.Background(), st))
	require.NoError(t, newStepMVP().Run(context.Background(), st))
	err = newStepTVA().Run(context.Background(), st)
	require.Error(t, err)
	ir, ok := reference.AsInteraction(err)
	require.True(t, ok)
	assert.Equal(t, "int-1", ir.InteractionID)
}

type stubRunner struct {
	err error
}

func (s stubRunner) Run(meta map[string]any) (reference.Callable, error) {
	if s.err != nil {
		return func(value any) ([]any, error) { return nil, s.err }, nil
	}
	return nil, nil
}
