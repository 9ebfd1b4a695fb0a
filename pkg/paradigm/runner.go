package paradigm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/geoguansin/normengine/pkg/exprcache"
	"github.com/geoguansin/normengine/pkg/reference"
)

// RunState is the per-Run working state threaded through one
// paradigm's sequence: the inference's working_interpretation (Meta)
// plus the accumulating per-step Results, addressable from later steps'
// params via MetaValue("states.results.<key>").
type RunState struct {
	Meta    map[string]any
	Results map[string]any
}

// nativeFunc is a builtin step that cannot be expressed as an expr-lang
// expression: currently only "create_generation_function", which must
// close over runtime state (the rendered template, the LLM client) to
// produce a reference.Callable.
type nativeFunc func(ctx context.Context, runner *Runner, rs *RunState, params map[string]any) (any, error)

var natives = map[string]nativeFunc{
	"create_generation_function": createGenerationFunctionNative,
}

// Runner resolves an inference's working_interpretation into a
// reference.Callable by running a Paradigm's declarative sequence.
// Implements pkg/sequence.ModelRunner without importing that package,
// an ExecutorFunc-style adapter keeping pkg/paradigm decoupled from
// pkg/sequence.
type Runner struct {
	Paradigms       map[string]*Paradigm
	DefaultParadigm string
	LLM             LLMClient
	BaseDir         string

	exprCache *exprcache.Cache
}

// NewRunner constructs a Runner from a pre-loaded paradigm directory.
func NewRunner(paradigms map[string]*Paradigm, defaultParadigm string, llm LLMClient) *Runner {
	if llm == nil {
		llm = EchoLLMClient{}
	}
	return &Runner{Paradigms: paradigms, DefaultParadigm: defaultParadigm, LLM: llm, exprCache: exprcache.New(256)}
}

// Run selects a paradigm from meta["paradigm"] (falling back to
// DefaultParadigm), executes its sequence in order, and returns the
// final step's result as a reference.Callable (§4.8: "the final
// result_key is a callable the rest of the sequence applies").
func (r *Runner) Run(meta map[string]any) (reference.Callable, error) {
	name, _ := meta["paradigm"].(string)
	if name == "" {
		name = r.DefaultParadigm
	}
	p, ok := r.Paradigms[name]
	if !ok {
		return nil, fmt.Errorf("paradigm: unknown paradigm %q", name)
	}
	if len(p.Sequence) == 0 {
		return nil, fmt.Errorf("paradigm: %q declares an empty sequence", name)
	}

	rs := &RunState{Meta: meta, Results: map[string]any{}}
	var last any
	for _, step := range p.Sequence {
		params := make(map[string]any, len(step.Params))
		for key, param := range step.Params {
			v, err := param.Resolve(rs, r)
			if err != nil {
				return nil, fmt.Errorf("paradigm: step %s.%s param %q: %w", step.Tool, step.Affordance, key, err)
			}
			params[key] = v
		}
		out, err := r.runStep(rs, p, step, params)
		if err != nil {
			return nil, err
		}
		rs.Results[step.ResultKey] = out
		last = out
	}

	callable, ok := last.(reference.Callable)
	if !ok {
		return nil, fmt.Errorf("paradigm: %q's final sequence step did not produce a callable (got %T)", name, last)
	}
	return callable, nil
}

func (r *Runner) runStep(rs *RunState, p *Paradigm, step SequenceStep, params map[string]any) (any, error) {
	aff, err := p.Lookup(step.Tool, step.Affordance)
	if err != nil {
		return nil, err
	}
	if aff.Native != "" {
		fn, ok := natives[aff.Native]
		if !ok {
			return nil, fmt.Errorf("paradigm: unknown native affordance %q", aff.Native)
		}
		return fn(context.Background(), r, rs, params)
	}
	return r.evalCode(aff.Code, rs, step.Tool, params)
}

// invokeAffordance runs a tool/affordance pair directly against the
// current RunState, outside the main sequence loop, used by
// AffordanceValue params, which resolve to a callable that invokes
// another affordance per TVA application rather than once per run.
func (r *Runner) invokeAffordance(rs *RunState, toolName, affordanceName string, params map[string]any) (any, error) {
	for _, p := range r.Paradigms {
		if _, ok := p.Environment[toolName]; ok {
			return r.runStep(rs, p, SequenceStep{Tool: toolName, Affordance: affordanceName}, params)
		}
	}
	return nil, fmt.Errorf("paradigm: no loaded paradigm declares tool %q", toolName)
}

// evalCode evaluates an affordance's expr-lang code string against
// {states, tool, params}, plus registered helper functions read_file and
// render for the template-reading steps MFP's bootstrap sequence uses.
func (r *Runner) evalCode(code string, rs *RunState, toolName string, params map[string]any) (any, error) {
	env := map[string]any{
		"states": map[string]any{"meta": rs.Meta, "results": rs.Results},
		"tool":   toolName,
		"params": params,
	}
	cache := r.exprCache
	if cache == nil {
		cache = exprcache.New(256)
	}
	program, err := cache.Compile(code, expr.Env(env),
		expr.Function("read_file", r.readFileExprFunc),
		expr.Function("render", renderExprFunc),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("paradigm: compile affordance code %q: %w", code, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("paradigm: eval affordance code %q: %w", code, err)
	}
	return out, nil
}

func (r *Runner) readFileExprFunc(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("read_file expects exactly one path argument")
	}
	path, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("read_file expects a string path")
	}
	return readTemplateFile(r.BaseDir, path)
}

func renderExprFunc(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("render expects (template, vars)")
	}
	tmpl, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("render expects a string template")
	}
	vars, ok := params[1].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("render expects a dict of vars")
	}
	return Render(tmpl, vars)
}

// createGenerationFunctionNative builds the reference.Callable MFP
// hands off to TVA: a closure over the rendered prompt template that,
// given TVA's per-cell input dict, renders the final prompt and calls
// the configured LLMClient.
func createGenerationFunctionNative(ctx context.Context, r *Runner, rs *RunState, params map[string]any) (any, error) {
	rendered, _ := params["rendered"].(string)
	if rendered == "" {
		if v, ok := rs.Results["render"].(string); ok {
			rendered = v
		}
	}
	llm := r.LLM
	var callable reference.Callable = func(value any) ([]any, error) {
		dict, _ := value.(map[string]any)
		prompt := rendered
		if len(dict) > 0 {
			prompt = rendered + "\n" + formatDict(dict)
		}
		out, err := llm.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("paradigm: generate: %w", err)
		}
		return []any{out}, nil
	}
	return callable, nil
}

func formatDict(dict map[string]any) string {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, dict[k]))
	}
	return strings.Join(parts, ", ")
}
