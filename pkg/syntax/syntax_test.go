package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/reference"
)

func TestLooperEmptyLoopCompletesVacuously(t *testing.T) {
	l := NewLooper()
	assert.True(t, l.CheckAllBaseElementsLooped(nil))
}

func TestQuantifierAdvancesThroughElements(t *testing.T) {
	q := NewQuantifier()
	a, _ := reference.FromData([]any{"a"}, []string{"_none_axis"})
	b, _ := reference.FromData([]any{"b"}, []string{"_none_axis"})
	elements := []*reference.Reference{a, b}

	assert.False(t, q.CheckAllBaseElementsLooped(elements))
	el, idx, found := q.RetrieveNextBaseElement(elements, nil)
	require.True(t, found)
	q.StoreNewBaseElement(el)
	assert.Equal(t, 0, idx)

	el2, _, found := q.RetrieveNextBaseElement(elements, el)
	require.True(t, found)
	q.StoreNewBaseElement(el2)

	assert.True(t, q.CheckAllBaseElementsLooped(elements))
}

func TestLooperCarryOverFallsBackToInitial(t *testing.T) {
	l := NewLooper()
	initial := reference.Singleton("seed")
	got := l.RetrieveNextInLoopElement("accumulator", 0, 1, initial)
	assert.Same(t, initial, got)

	l.StoreNewBaseElement(reference.Singleton("elem0"))
	l.StoreNewInLoopElement(0, "accumulator", reference.Singleton("v0"))
	got2 := l.RetrieveNextInLoopElement("accumulator", 0, 0, initial)
	assert.Equal(t, "v0", got2.Get(map[string]int{reference.NoneAxis: 0}))
}

func TestTimerAfterReady(t *testing.T) {
	b := blackboard.New()
	timer := Timer{}
	cond, err := ParseCondition("@after doc")
	require.NoError(t, err)
	eval, _ := timer.Evaluate(cond, b)
	assert.False(t, eval.Ready)

	b.SetConceptStatus("doc", blackboard.ConceptComplete)
	eval, _ = timer.Evaluate(cond, b)
	assert.True(t, eval.Ready)
}

func TestTimerIfInjectsFilter(t *testing.T) {
	b := blackboard.New()
	b.IndexConcept("judged", "1.1")
	b.SetItemCompletionDetail("1.1", "success")
	mask, _ := reference.FromData([]any{TruthTrue, TruthFalse, TruthTrue}, []string{"document"})
	b.SetTruthMask("judged", blackboard.TruthMask{Tensor: mask, Axes: []string{"document"}, FilterAxis: "document"})

	timer := Timer{}
	cond, err := ParseCondition("@if judged")
	require.NoError(t, err)
	eval, filter := timer.Evaluate(cond, b)
	assert.True(t, eval.Ready)
	assert.False(t, eval.Skipped)
	require.NotNil(t, filter)

	values, _ := reference.FromData([]any{"a", "b", "c"}, []string{"document"})
	filtered := ApplyFilter(values, *filter)
	assert.Equal(t, "a", filtered.Get(map[string]int{"document": 0}))
	assert.Equal(t, reference.SkipValue, filtered.Get(map[string]int{"document": 1}))
	assert.Equal(t, "c", filtered.Get(map[string]int{"document": 2}))
}

func TestAssignerMarkers(t *testing.T) {
	b := blackboard.New()
	a := &Assigner{Blackboard: b}

	a.AssignIdentity("A", "B")
	assert.Equal(t, b.CanonicalName("A"), b.CanonicalName("B"))

	abstract, err := a.AssignAbstraction("hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", abstract.Get(map[string]int{reference.NoneAxis: 0}))

	dest := reference.Singleton(reference.SkipValue)
	src := reference.Singleton("chosen")
	got := a.AssignSpecification([]*reference.Reference{src}, dest)
	assert.Equal(t, "chosen", got.Get(map[string]int{reference.NoneAxis: 0}))

	derel, err := AssignDerelation("index", 1, false)
	require.NoError(t, err)
	out, err := derel([]any{"x", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, []any{"y"}, out)
}

func TestAssignDerelationJQ(t *testing.T) {
	derel, err := AssignDerelationJQ(".name")
	require.NoError(t, err)
	out, err := derel(map[string]any{"name": "doc1"})
	require.NoError(t, err)
	assert.Equal(t, []any{"doc1"}, out)
}

func TestGrouperAndIn(t *testing.T) {
	scores, _ := reference.FromData([]any{"90", "80"}, []string{"student"})
	out, err := GroupAndIn([]*reference.Reference{scores}, []string{"student"})
	require.NoError(t, err)
	assert.Contains(t, out.Axes(), "student")
}
