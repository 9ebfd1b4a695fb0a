package sequence

import (
	"context"
	"fmt"

	"github.com/geoguansin/normengine/pkg/reference"
)

// newStepMFP implements Model Function Perception: runs a model sequence
// (via ModelRunner) to produce the callable TVA applies per value
// combination. With no ModelRunner configured, falls back to the plain
// arithmetic function_concept path.
func newStepMFP() Step {
	return StepFunc{StepName: "MFP", Fn: func(ctx context.Context, st *States) error {
		if st.ModelRunner != nil {
			callable, err := st.ModelRunner.Run(st.WorkingInterpretation)
			if err != nil {
				return fmt.Errorf("sequence: MFP: %w", err)
			}
			st.Callable = callable
			return nil
		}
		callable, err := builtinCallable(st)
		if err != nil {
			return fmt.Errorf("sequence: MFP: no model runner configured: %w", err)
		}
		st.Callable = callable
		return nil
	}}
}

// newStepMVP implements Memory Value Perception: orders value references
// per the declared value_order, expands any selector axis into
// positional "input_N" keys, merges in any plain (non-selected) value
// references under their own "input_N" key, and shapes the whole thing
// into a single reference of dict-keyed inputs.
func newStepMVP() Step {
	return StepFunc{StepName: "MVP", Fn: func(ctx context.Context, st *States) error {
		if len(st.ValueRefs) == 0 {
			st.MVPInput = reference.Singleton(map[string]any{})
			return nil
		}
		selectorAxes := orderedSelectorAxes(st.ValueOrder)
		var dictRefs []*reference.Reference
		nextInput := 1
		for _, ref := range st.ValueRefs {
			present := intersect(selectorAxes, ref.Axes())
			if len(present) == 0 {
				wrapped, n, err := wrapWholeRefAsInputs(ref, nextInput)
				if err != nil {
					return fmt.Errorf("sequence: MVP: %w", err)
				}
				nextInput = n
				dictRefs = append(dictRefs, wrapped)
				continue
			}
			complement := complementAxes(ref.Axes(), present)
			var sliced *reference.Reference
			if len(complement) == 0 {
				sliced = reference.Singleton(ref)
			} else {
				var err error
				sliced, err = reference.Slice(ref, complement...)
				if err != nil {
					return fmt.Errorf("sequence: MVP: %w", err)
				}
			}
			expanded, n, err := expandSelectorCellsToInputs(sliced, present, nextInput)
			if err != nil {
				return fmt.Errorf("sequence: MVP: %w", err)
			}
			nextInput = n
			dictRefs = append(dictRefs, expanded)
		}
		merged, err := mergeDictReferences(dictRefs)
		if err != nil {
			return fmt.Errorf("sequence: MVP: %w", err)
		}
		st.MVPInput = merged
		return nil
	}}
}

// wrapWholeRefAsInputs rewrites every cell of ref into a single-key
// dict {"input_<n>": cellValue}, for a value reference that carries no
// value_order-selected axis.
func wrapWholeRefAsInputs(ref *reference.Reference, startInput int) (*reference.Reference, int, error) {
	out := ref.Clone()
	for _, coord := range cartesian(out.Shape()) {
		coordMap := axisCoordMap(out.Axes(), coord)
		v := out.Get(coordMap)
		out.Set(coordMap, map[string]any{fmt.Sprintf("input_%d", startInput): v})
	}
	return out, startInput + 1, nil
}

// expandSelectorCellsToInputs turns each sub-Reference cell (over a
// single selector axis) into a dict whose keys are "input_N" for each
// position along that axis, numbered from startInput.
func expandSelectorCellsToInputs(sliced *reference.Reference, selectorAxes []string, startInput int) (*reference.Reference, int, error) {
	if len(selectorAxes) != 1 {
		return nil, 0, fmt.Errorf("multi-axis value_order selection not supported")
	}
	axis := selectorAxes[0]
	out := sliced.Clone()
	maxExtent := 0
	for _, coord := range cartesian(out.Shape()) {
		coordMap := axisCoordMap(out.Axes(), coord)
		cell := out.Get(coordMap)
		sub, ok := cell.(*reference.Reference)
		if !ok {
			continue
		}
		idx := indexOfAxis(sub.Axes(), axis)
		extent := 0
		if idx >= 0 {
			extent = sub.Shape()[idx]
		}
		if extent > maxExtent {
			maxExtent = extent
		}
		dict := map[string]any{}
		for i := 0; i < extent; i++ {
			dict[fmt.Sprintf("input_%d", startInput+i)] = sub.Get(map[string]int{axis: i})
		}
		out.Set(coordMap, dict)
	}
	return out, startInput + maxExtent, nil
}

// mergeDictReferences combines per-value-ref dict references into one,
// unioning each cell's keys via element_action so skip propagation and
// axis broadcasting stay consistent with the rest of the algebra.
func mergeDictReferences(refs []*reference.Reference) (*reference.Reference, error) {
	if len(refs) == 0 {
		return reference.Singleton(map[string]any{}), nil
	}
	if len(refs) == 1 {
		return refs[0], nil
	}
	return reference.ElementAction(func(values []any, _ map[string]int) (any, error) {
		merged := map[string]any{}
		for _, v := range values {
			dict, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("MVP merge expected a dict cell, got %T", v)
			}
			for k, val := range dict {
				merged[k] = val
			}
		}
		return merged, nil
	}, false, refs...)
}

// newStepTVA implements Tool Value Actuation: applies the MFP-produced
// callable to every MVP-produced input dict via cross_action, then
// projects away the mandatory result axis when the callable returned
// exactly one value per cell.
func newStepTVA() Step {
	return StepFunc{StepName: "TVA", Fn: func(ctx context.Context, st *States) error {
		if st.Callable == nil {
			return ErrNoCallable
		}
		fRef := reference.Singleton(st.Callable)
		out, err := reference.CrossAction(fRef, st.MVPInput, "__tva_result__", st.DevMode)
		if err != nil {
			return fmt.Errorf("sequence: TVA: %w", err)
		}
		projected, perr := reference.DropSingletonAxis(out, "__tva_result__")
		if perr != nil {
			st.Result = out
			return nil
		}
		st.Result = projected
		return nil
	}}
}
