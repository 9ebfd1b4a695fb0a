package blackboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionOrdinalsMonotonic(t *testing.T) {
	b := New()
	b.SetConceptStatus("a", ConceptComplete)
	b.SetConceptStatus("b", ConceptComplete)
	b.SetConceptStatus("c", ConceptComplete)
	oa, _ := b.CompletionOrdinal("a")
	ob, _ := b.CompletionOrdinal("b")
	oc, _ := b.CompletionOrdinal("c")
	assert.Less(t, oa, ob)
	assert.Less(t, ob, oc)
}

func TestRegisterIdentityPropagatesCompletion(t *testing.T) {
	b := New()
	b.SetConceptStatus("C", ConceptComplete)
	b.RegisterIdentity("C", "D")
	assert.Equal(t, ConceptComplete, b.GetConceptStatus("C"))
	assert.Equal(t, ConceptComplete, b.GetConceptStatus("D"))
}

func TestRegisterIdentityIdempotentAndTransitive(t *testing.T) {
	b := New()
	b.RegisterIdentity("A", "B")
	b.RegisterIdentity("A", "B")
	assert.Equal(t, b.CanonicalName("A"), b.CanonicalName("B"))

	b.RegisterIdentity("B", "C")
	assert.Equal(t, b.CanonicalName("A"), b.CanonicalName("C"))
}

func TestItemStatusDefaultsPending(t *testing.T) {
	b := New()
	assert.Equal(t, ItemPending, b.GetItemStatus("1.1"))
	b.SetItemStatus("1.1", ItemCompleted)
	assert.Equal(t, ItemCompleted, b.GetItemStatus("1.1"))
}

func TestExecutionCountIncrements(t *testing.T) {
	b := New()
	assert.Equal(t, 1, b.IncrementExecutionCount("1.1"))
	assert.Equal(t, 2, b.IncrementExecutionCount("1.1"))
	assert.Equal(t, 2, b.ExecutionCount("1.1"))
}

func TestTruthMaskRoundTrip(t *testing.T) {
	b := New()
	_, ok := b.TruthMaskFor("doc")
	assert.False(t, ok)
	b.SetTruthMask("doc", TruthMask{FilterAxis: "document"})
	m, ok := b.TruthMaskFor("doc")
	assert.True(t, ok)
	assert.Equal(t, "document", m.FilterAxis)
}
