package sequence

import (
	"context"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/inference"
)

// newStepOR implements Output Reference: publishes the produced
// reference onto the concept_to_infer and indexes it on the Blackboard
// for later @if/@if! lookups.
func newStepOR() Step {
	return StepFunc{StepName: "OR", Fn: func(ctx context.Context, st *States) error {
		out := st.Output
		if out == nil {
			out = st.Result
		}
		if out == nil {
			return ErrNoResult
		}
		if err := st.ConceptRepo.AddReference(st.Entry.ConceptToInfer, out.GetTensor(false), out.Axes()); err != nil {
			return err
		}
		st.Blackboard.IndexConcept(st.Entry.ConceptToInfer, st.Entry.FlowIndex.String())
		st.Output = out
		return nil
	}}
}

// newStepOWI implements Output Working Interpretation: inspects
// to_be_skipped/completion_status to settle the item's outgoing status
// (skip -> completed/condition_not_met, not-yet-converged loop ->
// needs_retry, else completed/success) and marks the produced concept
// complete.
func newStepOWI() Step {
	return StepFunc{StepName: "OWI", Fn: func(ctx context.Context, st *States) error {
		switch {
		case st.ToBeSkipped:
			st.CompletionDetail = "condition_not_met"
			st.NeedsRetry = false

		case st.NeedsRetry:
			st.CompletionDetail = ""

		case isIterating(st.Entry.InferenceSequence):
			if !st.CompletionStatus {
				st.NeedsRetry = true
				st.CompletionDetail = ""
			} else {
				st.CompletionDetail = "success"
				st.Blackboard.SetConceptStatus(st.Entry.ConceptToInfer, blackboard.ConceptComplete)
			}

		default:
			st.CompletionDetail = "success"
			if st.Entry.InferenceSequence != inference.Timing {
				st.Blackboard.SetConceptStatus(st.Entry.ConceptToInfer, blackboard.ConceptComplete)
			}
		}

		if st.CompletionDetail != "" {
			st.Blackboard.SetItemCompletionDetail(st.Entry.FlowIndex.String(), st.CompletionDetail)
		}
		return nil
	}}
}

func isIterating(kind inference.SequenceKind) bool {
	return kind == inference.Quantifying || kind == inference.Looping
}
