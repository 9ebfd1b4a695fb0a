package checkpoint

import (
	"fmt"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/concept"
	"github.com/geoguansin/normengine/pkg/inference"
)

// Mode selects how a loaded StateDocument is merged into a freshly
// loaded workspace.
type Mode string

const (
	// ModePatch keeps a checkpointed concept value only if its signature
	// still matches the concept currently loaded from the inference
	// files; a mismatch discards the value and resets every item whose
	// concept_to_infer is that concept back to pending. Default for resume.
	ModePatch Mode = "PATCH"

	// ModeOverwrite trusts the checkpoint unconditionally, regardless of
	// signature. Default for fork.
	ModeOverwrite Mode = "OVERWRITE"

	// ModeFillGaps applies a checkpointed concept value only where the
	// concept is currently empty, leaving anything already populated
	// (e.g. by a newly supplied input) untouched.
	ModeFillGaps Mode = "FILL_GAPS"
)

// Reconcile merges doc into conceptRepo/inferenceRepo/b per mode. When
// isFork is true, item lifecycle (status, execution count, completion
// detail) is never restored, only concept values, since flow indices
// are file-local and may mean something different in the inference files
// a fork is re-run against, while concept names are global.
func Reconcile(mode Mode, doc *StateDocument, conceptRepo *concept.Repo, inferenceRepo *inference.Repo, b *blackboard.Blackboard, isFork bool) error {
	discarded := map[string]bool{}

	for _, cd := range doc.Concepts {
		current, ok := conceptRepo.GetConcept(cd.Name)
		if !ok {
			continue
		}
		switch mode {
		case ModeOverwrite:
			if err := applyConceptDoc(conceptRepo, b, cd); err != nil {
				return err
			}
		case ModeFillGaps:
			if current.Concept.Ref != nil {
				continue
			}
			if err := applyConceptDoc(conceptRepo, b, cd); err != nil {
				return err
			}
		case ModePatch:
			if !cd.HasData {
				continue
			}
			if cd.Signature != "" && current.Signature != "" && cd.Signature != current.Signature {
				discarded[cd.Name] = true
				b.SetConceptStatus(cd.Name, blackboard.ConceptEmpty)
				continue
			}
			if err := applyConceptDoc(conceptRepo, b, cd); err != nil {
				return err
			}
		default:
			return fmt.Errorf("checkpoint: unknown reconciliation mode %q", mode)
		}
	}

	if isFork {
		return nil
	}

	for _, id := range doc.Items {
		entry, ok := inferenceRepo.Get(id.FlowIndex)
		restoreStatus := id.Status
		if ok && mode == ModePatch && id.Signature != "" && entry.Signature != "" && id.Signature != entry.Signature {
			restoreStatus = blackboard.ItemPending
		}
		if discarded[outputConceptOf(inferenceRepo, id.FlowIndex)] {
			restoreStatus = blackboard.ItemPending
		}
		b.SetItemStatus(id.FlowIndex, restoreStatus)
		if id.CompletionDetail != "" {
			b.SetItemCompletionDetail(id.FlowIndex, id.CompletionDetail)
		}
		for b.ExecutionCount(id.FlowIndex) < id.ExecutionCount {
			b.IncrementExecutionCount(id.FlowIndex)
		}
	}

	return nil
}

func outputConceptOf(inferenceRepo *inference.Repo, flowIndex string) string {
	entry, ok := inferenceRepo.Get(flowIndex)
	if !ok {
		return ""
	}
	return entry.ConceptToInfer
}

func applyConceptDoc(conceptRepo *concept.Repo, b *blackboard.Blackboard, cd ConceptDoc) error {
	if !cd.HasData || cd.Ref == nil {
		return nil
	}
	ref, err := cd.Ref.toReference()
	if err != nil {
		return fmt.Errorf("checkpoint: reconcile concept %q: %w", cd.Name, err)
	}
	if err := conceptRepo.AddReference(cd.Name, ref.GetTensor(false), ref.Axes()); err != nil {
		return fmt.Errorf("checkpoint: reconcile concept %q: %w", cd.Name, err)
	}
	b.SetConceptStatus(cd.Name, blackboard.ConceptComplete)
	return nil
}
