package sequence

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/geoguansin/normengine/pkg/reference"
)

// builtinCallable resolves a plain arithmetic function_concept (the
// perceptual sign "+", "-", "*", "/") into a Callable, for inferences
// that don't declare a Paradigm ModelRunner. Real model sequences go
// through MFP's ModelRunner path; this is the literal-function fallback
// for simple arithmetic pipelines.
func builtinCallable(st *States) (reference.Callable, error) {
	if st.Entry.FunctionConcept == "" {
		return nil, fmt.Errorf("sequence: no function_concept declared")
	}
	entry, ok := st.ConceptRepo.GetConcept(st.Entry.FunctionConcept)
	if !ok || entry.Concept.Ref == nil {
		return nil, fmt.Errorf("sequence: function concept %q has no reference", st.Entry.FunctionConcept)
	}
	op, _ := entry.Concept.Ref.Get(map[string]int{reference.NoneAxis: 0}).(string)
	fn, ok := builtinOperators[op]
	if !ok {
		return nil, fmt.Errorf("sequence: unknown builtin operator %q", op)
	}
	return fn, nil
}

var builtinOperators = map[string]reference.Callable{
	"+": arithmeticCallable(func(a, b float64) float64 { return a + b }),
	"-": arithmeticCallable(func(a, b float64) float64 { return a - b }),
	"*": arithmeticCallable(func(a, b float64) float64 { return a * b }),
	"/": arithmeticCallable(func(a, b float64) float64 { return a / b }),
}

// arithmeticCallable folds an MVP input dict's values (input_1, input_2,
// ...) left to right through op, sorted by key so "input_1" always
// seeds the accumulator.
func arithmeticCallable(op func(a, b float64) float64) reference.Callable {
	return func(value any) ([]any, error) {
		dict, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sequence: arithmetic callable expects an MVP input dict, got %T", value)
		}
		keys := make([]string, 0, len(dict))
		for k := range dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var acc float64
		var accSet bool
		for _, k := range keys {
			n, err := toFloat(dict[k])
			if err != nil {
				return nil, err
			}
			if !accSet {
				acc = n
				accSet = true
				continue
			}
			acc = op(acc, n)
		}
		return []any{strconv.FormatFloat(acc, 'f', -1, 64)}, nil
	}
}

// meanFunc is registered with expr-lang as "mean" for QR's element_result
// aggregation (Scenario 2: grouping + quantifying average).
func meanFunc(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("mean expects exactly one argument")
	}
	list, ok := params[0].([]any)
	if !ok {
		return nil, fmt.Errorf("mean expects a list argument")
	}
	var sum float64
	var n int
	for _, v := range list {
		f, err := toFloat(v)
		if err != nil {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return 0.0, nil
	}
	return sum / float64(n), nil
}
