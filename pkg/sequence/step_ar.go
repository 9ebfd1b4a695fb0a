package sequence

import (
	"context"
	"fmt"

	"github.com/geoguansin/normengine/pkg/reference"
	"github.com/geoguansin/normengine/pkg/syntax"
)

// newStepAR implements Assigning References: invokes the Assigner for
// one of the five markers declared in working_interpretation["marker"].
func newStepAR() Step {
	return StepFunc{StepName: "AR", Fn: func(ctx context.Context, st *States) error {
		marker, _ := st.WorkingInterpretation["marker"].(string)
		assigner := &syntax.Assigner{Blackboard: st.Blackboard}

		switch syntax.AssignMarker(marker) {
		case syntax.MarkerIdentity:
			alias, _ := st.WorkingInterpretation["alias_concept"].(string)
			assigner.AssignIdentity(st.Entry.ConceptToInfer, alias)
			st.CompletionStatus = true
			return nil

		case syntax.MarkerAbstraction:
			literal := st.WorkingInterpretation["literal"]
			axisNames := stringSlice(st.WorkingInterpretation["axis_names"])
			out, err := assigner.AssignAbstraction(literal, axisNames)
			if err != nil {
				return fmt.Errorf("sequence: AR: %w", err)
			}
			st.Result = out
			return nil

		case syntax.MarkerSpecification:
			st.Result = assigner.AssignSpecification(st.ValueRefs, destReference(st))
			return nil

		case syntax.MarkerContinuation:
			if len(st.ValueRefs) == 0 {
				return fmt.Errorf("sequence: AR: continuation marker requires a source value concept")
			}
			dest := destReference(st)
			if dest == nil {
				dest = reference.Singleton(reference.SkipValue)
			}
			byAxes := stringSlice(st.WorkingInterpretation["by_axes"])
			out, err := assigner.AssignContinuation(dest, st.ValueRefs[0], byAxes)
			if err != nil {
				return fmt.Errorf("sequence: AR: %w", err)
			}
			st.Result = out
			return nil

		case syntax.MarkerDerelation:
			if len(st.ValueRefs) == 0 {
				return fmt.Errorf("sequence: AR: derelation marker requires a source value concept")
			}
			mode, _ := st.WorkingInterpretation["derelation_mode"].(string)
			key := st.WorkingInterpretation["derelation_key"]
			unpackBefore, _ := st.WorkingInterpretation["unpack_before_selection"].(bool)
			derel, err := syntax.AssignDerelation(mode, key, unpackBefore)
			if err != nil {
				return fmt.Errorf("sequence: AR: %w", err)
			}
			out, err := reference.ElementAction(func(values []any, _ map[string]int) (any, error) {
				results, derr := derel(values[0])
				if derr != nil {
					return nil, derr
				}
				if len(results) == 1 {
					return results[0], nil
				}
				return results, nil
			}, st.DevMode, st.ValueRefs[0])
			if err != nil {
				return fmt.Errorf("sequence: AR: %w", err)
			}
			st.Result = out
			return nil

		default:
			return fmt.Errorf("sequence: AR: unknown marker %q", marker)
		}
	}}
}

func destReference(st *States) *reference.Reference {
	entry, ok := st.ConceptRepo.GetConcept(st.Entry.ConceptToInfer)
	if !ok {
		return nil
	}
	return entry.Concept.Ref
}
