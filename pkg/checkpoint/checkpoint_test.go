package checkpoint

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/concept"
	"github.com/geoguansin/normengine/pkg/inference"
	"github.com/geoguansin/normengine/pkg/orchestrator"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, m.Migrate(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func seededRepos(t *testing.T) (*concept.Repo, *inference.Repo, *blackboard.Blackboard) {
	t.Helper()
	cr := concept.NewRepo()
	require.NoError(t, cr.AddConcept(concept.Entry{Concept: concept.Concept{Name: "total", Type: concept.TypeInferential, AxisName: "digit"}}))
	require.NoError(t, cr.AddReference("total", []any{"7"}, []string{"digit"}))

	ir := inference.NewRepo()
	fi, err := inference.ParseFlowIndex("1")
	require.NoError(t, err)
	require.NoError(t, ir.Add(inference.Entry{
		ConceptToInfer:    "total",
		ValueConcepts:     []string{"pair1"},
		InferenceSequence: inference.Imperative,
		FlowIndex:         fi,
	}))

	b := blackboard.New()
	b.SetConceptStatus("total", blackboard.ConceptComplete)
	b.SetItemStatus("1", blackboard.ItemCompleted)
	return cr, ir, b
}

// freshRepos mirrors seededRepos' shape but leaves "total" without a
// reference, the way a freshly loaded (pre-run) workspace looks before a
// checkpoint is reconciled into it.
func freshRepos(t *testing.T) (*concept.Repo, *inference.Repo, *blackboard.Blackboard) {
	t.Helper()
	cr := concept.NewRepo()
	require.NoError(t, cr.AddConcept(concept.Entry{Concept: concept.Concept{Name: "total", Type: concept.TypeInferential, AxisName: "digit"}}))

	ir := inference.NewRepo()
	fi, err := inference.ParseFlowIndex("1")
	require.NoError(t, err)
	require.NoError(t, ir.Add(inference.Entry{
		ConceptToInfer:    "total",
		ValueConcepts:     []string{"pair1"},
		InferenceSequence: inference.Imperative,
		FlowIndex:         fi,
	}))

	b := blackboard.New()
	return cr, ir, b
}

func TestWriteCheckpointAndLoadLatest(t *testing.T) {
	m := newTestManager(t)
	cr, ir, b := seededRepos(t)

	snap := orchestrator.Snapshot{RunID: "run-a", Cycle: 2, InferenceCount: 5, ConceptRepo: cr, InferenceRepo: ir, Blackboard: b}
	require.NoError(t, m.WriteCheckpoint(context.Background(), snap))

	doc, err := m.LatestCheckpoint(context.Background(), "run-a")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Cycle)
	assert.Equal(t, 5, doc.InferenceCount)

	var total *ConceptDoc
	for i := range doc.Concepts {
		if doc.Concepts[i].Name == "total" {
			total = &doc.Concepts[i]
		}
	}
	require.NotNil(t, total)
	assert.True(t, total.HasData)
	assert.Equal(t, []string{"digit"}, total.Ref.Axes)

	require.Len(t, doc.Items, 1)
	assert.Equal(t, blackboard.ItemCompleted, doc.Items[0].Status)
}

func TestReconcilePatchDiscardsOnSignatureMismatch(t *testing.T) {
	cr, ir, b := seededRepos(t)
	doc := BuildStateDocument(orchestrator.Snapshot{ConceptRepo: cr, InferenceRepo: ir, Blackboard: b})
	for i := range doc.Concepts {
		if doc.Concepts[i].Name == "total" {
			doc.Concepts[i].Signature = "stale-signature"
		}
	}

	freshCr, freshIr, freshB := freshRepos(t)

	require.NoError(t, Reconcile(ModePatch, doc, freshCr, freshIr, freshB, false))
	assert.Equal(t, blackboard.ConceptEmpty, freshB.GetConceptStatus("total"))
	assert.Equal(t, blackboard.ItemPending, freshB.GetItemStatus("1"))
}

func TestReconcileOverwriteAppliesRegardlessOfSignature(t *testing.T) {
	cr, ir, b := seededRepos(t)
	doc := BuildStateDocument(orchestrator.Snapshot{ConceptRepo: cr, InferenceRepo: ir, Blackboard: b})

	freshCr, freshIr, freshB := freshRepos(t)

	require.NoError(t, Reconcile(ModeOverwrite, doc, freshCr, freshIr, freshB, true))
	assert.Equal(t, blackboard.ConceptComplete, freshB.GetConceptStatus("total"))
	// fork: item lifecycle is not restored
	assert.Equal(t, blackboard.ItemPending, freshB.GetItemStatus("1"))
}

func TestReconcileFillGapsSkipsAlreadyPopulatedConcepts(t *testing.T) {
	cr, ir, b := seededRepos(t)
	doc := BuildStateDocument(orchestrator.Snapshot{ConceptRepo: cr, InferenceRepo: ir, Blackboard: b})

	freshCr, freshIr, freshB := seededRepos(t)
	require.NoError(t, freshCr.AddReference("total", []any{"9"}, []string{"digit"}))

	require.NoError(t, Reconcile(ModeFillGaps, doc, freshCr, freshIr, freshB, false))
	entry, ok := freshCr.GetConcept("total")
	require.True(t, ok)
	assert.Equal(t, []any{"9"}, entry.Concept.Ref.GetTensor(false))
}

func TestRecordExecutionAndAppendLog(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	row := ExecutionRow{ID: uuid.New(), RunID: "run-a", Cycle: 1, FlowIndex: "1", InferenceType: string(inference.Imperative), Status: "completed", ConceptInferred: "total"}
	require.NoError(t, m.RecordExecution(ctx, row))

	sink := NewLogSink(m, row.ID)
	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	require.NoError(t, sink.Handle(ctx, rec))
}
