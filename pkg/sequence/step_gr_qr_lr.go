package sequence

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/geoguansin/normengine/pkg/exprcache"
	"github.com/geoguansin/normengine/pkg/reference"
	"github.com/geoguansin/normengine/pkg/syntax"
)

// compiledExprs caches QR's element_result, LR's accumulate and TIP/TIA's
// judgement-condition expressions across cycles and retries; the same working_interpretation
// string is recompiled on every invocation otherwise.
var compiledExprs = exprcache.New(256)

// newStepGR implements Grouping References: invokes the Grouper to
// combine value references by shared ("and_in") or distinguishing
// ("or_across") axes, as declared by working_interpretation's
// "group_mode"/"by_axes".
func newStepGR() Step {
	return StepFunc{StepName: "GR", Fn: func(ctx context.Context, st *States) error {
		mode, _ := st.WorkingInterpretation["group_mode"].(string)
		axes := stringSlice(st.WorkingInterpretation["by_axes"])
		var grouped *reference.Reference
		var err error
		if syntax.GroupMode(mode) == syntax.GroupOrAcross {
			grouped, err = syntax.GroupOrAcross(st.ValueRefs, axes)
		} else {
			grouped, err = syntax.GroupAndIn(st.ValueRefs, axes)
		}
		if err != nil {
			return fmt.Errorf("sequence: GR: %w", err)
		}
		st.Result = grouped
		return nil
	}}
}

// toLoopElements slices r along axis, yielding one element per position
// (each a sub-Reference over the remaining axes), the to_loop_elements
// list the Quantifier/Looper iterate over.
func toLoopElements(r *reference.Reference, axis string) ([]*reference.Reference, error) {
	if r == nil {
		return nil, nil
	}
	if indexOfAxis(r.Axes(), axis) < 0 {
		return []*reference.Reference{r}, nil
	}
	sliced, err := reference.Slice(r, axis)
	if err != nil {
		return nil, err
	}
	extent := sliced.Shape()[0]
	out := make([]*reference.Reference, 0, extent)
	for i := 0; i < extent; i++ {
		cell := sliced.Get(map[string]int{axis: i})
		if sub, ok := cell.(*reference.Reference); ok {
			out = append(out, sub)
		} else {
			out = append(out, reference.Singleton(cell))
		}
	}
	return out, nil
}

// newStepQR implements Quantifying References: advances the Quantifier
// to the next to-loop element, records its (optionally expr-aggregated)
// per-element result, and signals completion once every element has been
// visited.
func newStepQR() Step {
	return StepFunc{StepName: "QR", Fn: func(ctx context.Context, st *States) error {
		if st.Iteration == nil {
			return fmt.Errorf("sequence: QR: no iteration state provided")
		}
		if st.Iteration.Quantifier == nil {
			st.Iteration.Quantifier = syntax.NewQuantifier()
		}
		q := st.Iteration.Quantifier

		loopAxis, _ := st.WorkingInterpretation["loop_axis"].(string)
		loopBaseConcept, _ := st.WorkingInterpretation["loop_base_concept"].(string)

		toLoop, err := toLoopElements(st.Result, loopAxis)
		if err != nil {
			return fmt.Errorf("sequence: QR: %w", err)
		}

		if q.CheckAllBaseElementsLooped(toLoop) {
			st.CompletionStatus = true
			combined, cerr := q.CombineAllLoopedElementsByConcept(loopBaseConcept, loopAxis)
			if cerr != nil {
				return fmt.Errorf("sequence: QR: %w", cerr)
			}
			st.Output = combined
			return nil
		}

		var current *reference.Reference
		if q.Len() > 0 {
			if rec, ok := q.At(q.Len() - 1); ok {
				current = rec.BaseElement
			}
		}
		next, idx, found := q.RetrieveNextBaseElement(toLoop, current)
		if !found {
			st.CompletionStatus = true
			return nil
		}
		q.StoreNewBaseElement(next)

		result := next
		if computeRaw, _ := st.WorkingInterpretation["element_result"].(string); computeRaw != "" {
			env := map[string]any{"values": next.GetTensor(true)}
			program, cerr := compiledExprs.Compile(computeRaw, expr.Env(env), expr.Function("mean", meanFunc))
			if cerr != nil {
				return fmt.Errorf("sequence: QR: compile element_result %q: %w", computeRaw, cerr)
			}
			out, rerr := expr.Run(program, env)
			if rerr != nil {
				return fmt.Errorf("sequence: QR: eval element_result: %w", rerr)
			}
			result = reference.Singleton(out)
		}
		if err := q.StoreNewInLoopElement(idx, loopBaseConcept, result); err != nil {
			return fmt.Errorf("sequence: QR: %w", err)
		}
		if q.CheckAllBaseElementsLooped(toLoop) {
			st.CompletionStatus = true
			combined, cerr := q.CombineAllLoopedElementsByConcept(loopBaseConcept, loopAxis)
			if cerr != nil {
				return fmt.Errorf("sequence: QR: %w", cerr)
			}
			st.Output = combined
			return nil
		}
		st.CompletionStatus = false
		return nil
	}}
}

// newStepLR implements Looping References: like QR, but threads an
// accumulator value between iterations via the Looper's k-steps-back
// carry-over.
func newStepLR() Step {
	return StepFunc{StepName: "LR", Fn: func(ctx context.Context, st *States) error {
		if st.Iteration == nil {
			return fmt.Errorf("sequence: LR: no iteration state provided")
		}
		if st.Iteration.Looper == nil {
			st.Iteration.Looper = syntax.NewLooper()
		}
		l := st.Iteration.Looper

		loopAxis, _ := st.WorkingInterpretation["loop_axis"].(string)
		accumulatorName, _ := st.WorkingInterpretation["accumulator_concept"].(string)
		k := intFromWI(st.WorkingInterpretation["carry_back_steps"], 1)
		combineRaw, _ := st.WorkingInterpretation["accumulate"].(string)

		toLoop, err := toLoopElements(st.Result, loopAxis)
		if err != nil {
			return fmt.Errorf("sequence: LR: %w", err)
		}

		if l.CheckAllBaseElementsLooped(toLoop) {
			st.CompletionStatus = true
			combined, cerr := l.CombineAllLoopedElementsByConcept(accumulatorName, loopAxis)
			if cerr != nil {
				return fmt.Errorf("sequence: LR: %w", cerr)
			}
			st.Output = combined
			return nil
		}

		var current *reference.Reference
		if l.Len() > 0 {
			if rec, ok := l.At(l.Len() - 1); ok {
				current = rec.BaseElement
			}
		}
		next, idx, found := l.RetrieveNextBaseElement(toLoop, current)
		if !found {
			st.CompletionStatus = true
			return nil
		}
		l.StoreNewBaseElement(next)

		var initialRef *reference.Reference
		if entry, ok := st.ConceptRepo.GetConcept(accumulatorName); ok && entry.Concept.Ref != nil {
			initialRef = entry.Concept.Ref
		} else {
			initialRef = reference.Singleton(reference.SkipValue)
		}
		prior := l.RetrieveNextInLoopElement(accumulatorName, idx, k, initialRef)

		accumulated := next
		if combineRaw != "" {
			program, cerr := compiledExprs.Compile(combineRaw, expr.AllowUndefinedVariables())
			if cerr != nil {
				return fmt.Errorf("sequence: LR: compile accumulate %q: %w", combineRaw, cerr)
			}
			evaluated, aerr := reference.ElementAction(func(values []any, _ map[string]int) (any, error) {
				return expr.Run(program, map[string]any{"acc": values[0], "value": values[1]})
			}, st.DevMode, prior, next)
			if aerr != nil {
				return fmt.Errorf("sequence: LR: %w", aerr)
			}
			accumulated = evaluated
		}
		if err := l.StoreNewInLoopElement(idx, accumulatorName, accumulated); err != nil {
			return fmt.Errorf("sequence: LR: %w", err)
		}
		st.CompletionStatus = false
		return nil
	}}
}
