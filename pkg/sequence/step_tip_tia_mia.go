package sequence

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/reference"
	"github.com/geoguansin/normengine/pkg/syntax"
)

// publishTruthMask registers a judgement's boolean-mask output on the
// Blackboard keyed by the judged concept, before MIA wraps it in the
// "%(...)" marker, so a child @if/@if! timing inference has a real
// producer to read. filter_axis is the mask's primary for-each axis.
func publishTruthMask(st *States, mask *reference.Reference) {
	if st.Blackboard == nil {
		return
	}
	axes := mask.Axes()
	filterAxis := ""
	if len(axes) > 0 {
		filterAxis = axes[0]
	}
	st.Blackboard.SetTruthMask(st.Entry.ConceptToInfer, blackboard.TruthMask{
		Tensor:     mask,
		Axes:       axes,
		FilterAxis: filterAxis,
	})
}

// newStepTIP implements Tool Inference Perception: for judgement
// sequences, compares TVA's output against a declared condition and
// produces a boolean-mask reference, publishing it to the Blackboard as
// a truth mask before MIA wraps it. Plain imperative sequences declare
// no condition; TIP then just passes TVA's numeric result through.
func newStepTIP() Step {
	return StepFunc{StepName: "TIP", Fn: func(ctx context.Context, st *States) error {
		condRaw, _ := st.WorkingInterpretation["condition"].(string)
		if condRaw == "" {
			st.Output = st.Result
			return nil
		}
		program, err := compiledExprs.Compile(condRaw, expr.AllowUndefinedVariables())
		if err != nil {
			return fmt.Errorf("sequence: TIP: compile condition %q: %w", condRaw, err)
		}
		mask, err := reference.ElementAction(func(values []any, _ map[string]int) (any, error) {
			out, rerr := expr.Run(program, map[string]any{"value": values[0]})
			if rerr != nil {
				return nil, fmt.Errorf("eval condition: %w", rerr)
			}
			if truthy, _ := out.(bool); truthy {
				return syntax.TruthTrue, nil
			}
			return syntax.TruthFalse, nil
		}, st.DevMode, st.Result)
		if err != nil {
			return fmt.Errorf("sequence: TIP: %w", err)
		}
		publishTruthMask(st, mask)
		st.Output = mask
		return nil
	}}
}

// newStepTIA implements Truth Inference Assertion (judgement_in_composition):
// builds the per-cell boolean mask as TIP does, then hierarchically
// collapses it down any declared nested context axes with a logical AND
// (a document is true only if every paragraph in it is true), publishing
// the collapsed mask to the Blackboard as a truth mask.
func newStepTIA() Step {
	return StepFunc{StepName: "TIA", Fn: func(ctx context.Context, st *States) error {
		condRaw, _ := st.WorkingInterpretation["condition"].(string)
		collapseAxes := stringSlice(st.WorkingInterpretation["collapse_axes"])

		mask := st.Result
		if condRaw != "" {
			program, cerr := compiledExprs.Compile(condRaw, expr.AllowUndefinedVariables())
			if cerr != nil {
				return fmt.Errorf("sequence: TIA: compile condition %q: %w", condRaw, cerr)
			}
			evaluated, err := reference.ElementAction(func(values []any, _ map[string]int) (any, error) {
				out, rerr := expr.Run(program, map[string]any{"value": values[0]})
				if rerr != nil {
					return nil, fmt.Errorf("eval condition: %w", rerr)
				}
				if truthy, _ := out.(bool); truthy {
					return syntax.TruthTrue, nil
				}
				return syntax.TruthFalse, nil
			}, st.DevMode, st.Result)
			if err != nil {
				return fmt.Errorf("sequence: TIA: %w", err)
			}
			mask = evaluated
		}

		for _, axis := range collapseAxes {
			collapsed, err := collapseAxisAll(mask, axis)
			if err != nil {
				return fmt.Errorf("sequence: TIA: %w", err)
			}
			mask = collapsed
		}
		if condRaw != "" {
			publishTruthMask(st, mask)
		}
		st.Output = mask
		return nil
	}}
}

// collapseAxisAll drops axis from r, replacing each remaining-coordinate
// cell with TruthTrue iff every value along axis at that coordinate was
// TruthTrue (vacuously true on a zero-extent axis).
func collapseAxisAll(r *reference.Reference, axis string) (*reference.Reference, error) {
	if indexOfAxis(r.Axes(), axis) < 0 {
		return r, nil
	}
	remaining := complementAxes(r.Axes(), []string{axis})
	sliced, err := reference.Slice(r, remaining...)
	if err != nil {
		return nil, err
	}
	out := sliced.Clone()
	for _, coord := range cartesian(out.Shape()) {
		coordMap := axisCoordMap(out.Axes(), coord)
		cell := out.Get(coordMap)
		sub, ok := cell.(*reference.Reference)
		if !ok {
			continue
		}
		all := true
		axisIdx := indexOfAxis(sub.Axes(), axis)
		extent := 0
		if axisIdx >= 0 {
			extent = sub.Shape()[axisIdx]
		}
		for i := 0; i < extent; i++ {
			if sub.Get(map[string]int{axis: i}) != syntax.TruthTrue {
				all = false
				break
			}
		}
		truth := syntax.TruthFalse
		if all {
			truth = syntax.TruthTrue
		}
		out.Set(coordMap, truth)
	}
	return out, nil
}

// newStepMIA implements Memory Inference Actuation: wraps each TIP/TIA
// cell in the normcode wrapper "%(...)". Plain imperative sequences (no
// declared condition, hence no judgement mask) pass their numeric result
// through unwrapped, since the wrapper is a judgement-sequence
// convention, not a generic value marker.
func newStepMIA() Step {
	return StepFunc{StepName: "MIA", Fn: func(ctx context.Context, st *States) error {
		if _, isJudgement := st.WorkingInterpretation["condition"]; !isJudgement {
			if st.Output == nil {
				st.Output = st.Result
			}
			return nil
		}
		wrapped, err := reference.ElementAction(func(values []any, _ map[string]int) (any, error) {
			return fmt.Sprintf("%%(%v)", values[0]), nil
		}, st.DevMode, st.Output)
		if err != nil {
			return fmt.Errorf("sequence: MIA: %w", err)
		}
		st.Output = wrapped
		return nil
	}}
}
