package sequence

import (
	"context"
	"fmt"
	"sort"

	"github.com/geoguansin/normengine/pkg/reference"
	"github.com/geoguansin/normengine/pkg/syntax"
)

// newStepIWI implements Input Working Interpretation: copies sequence
// configuration from the entry's working_interpretation into States and
// computes the declared value ordering.
func newStepIWI() Step {
	return StepFunc{StepName: "IWI", Fn: func(ctx context.Context, st *States) error {
		st.WorkingInterpretation = st.Entry.WorkingInterpretation
		if st.WorkingInterpretation == nil {
			st.WorkingInterpretation = map[string]any{}
		}
		st.ValueOrder = parseValueOrder(st.WorkingInterpretation["value_order"])
		return nil
	}}
}

func parseValueOrder(raw any) map[string]int {
	order := map[string]int{}
	m, ok := raw.(map[string]any)
	if !ok {
		return order
	}
	for k, v := range m {
		switch n := v.(type) {
		case int:
			order[k] = n
		case float64:
			order[k] = int(n)
		}
	}
	return order
}

// newStepIR implements Input References: copies input concept references
// from the InferenceEntry into States (value concepts ordered before
// context concepts), then applies any filter injected by an upstream
// Timing inference (§4.7) and consumes the workspace key.
func newStepIR() Step {
	return StepFunc{StepName: "IR", Fn: func(ctx context.Context, st *States) error {
		names := append([]string{}, st.Entry.ValueConcepts...)
		order := st.ValueOrder
		sort.SliceStable(names, func(i, j int) bool {
			oi, oki := order[names[i]]
			oj, okj := order[names[j]]
			switch {
			case oki && okj:
				return oi < oj
			case oki:
				return true
			case okj:
				return false
			default:
				return false
			}
		})

		refs := make([]*reference.Reference, 0, len(names))
		for _, name := range names {
			entry, ok := st.ConceptRepo.GetConcept(name)
			if !ok || entry.Concept.Ref == nil {
				return fmt.Errorf("sequence: IR: value concept %q has no reference", name)
			}
			refs = append(refs, entry.Concept.Ref)
		}
		st.ValueRefs = refs

		ctxRefs := make([]*reference.Reference, 0, len(st.Entry.ContextConcepts))
		for _, name := range st.Entry.ContextConcepts {
			if entry, ok := st.ConceptRepo.GetConcept(name); ok && entry.Concept.Ref != nil {
				ctxRefs = append(ctxRefs, entry.Concept.Ref)
			}
		}
		st.ContextRefs = ctxRefs

		if st.Filters == nil {
			return nil
		}
		if st.FiltersMu != nil {
			st.FiltersMu.Lock()
		}
		key := "__filter__" + st.Entry.FlowIndex.String()
		filters, ok := st.Filters[key]
		if ok {
			delete(st.Filters, key)
		}
		if st.FiltersMu != nil {
			st.FiltersMu.Unlock()
		}
		if !ok {
			return nil
		}
		for i, ref := range st.ValueRefs {
			out := ref
			for _, f := range filters {
				out = syntax.ApplyFilter(out, f)
			}
			st.ValueRefs[i] = out
		}
		return nil
	}}
}
