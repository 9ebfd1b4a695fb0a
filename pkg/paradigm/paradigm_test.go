package paradigm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesDottedPaths(t *testing.T) {
	out, err := Render("Hello {{input.name}}, score={{input.score}}", map[string]any{
		"input": map[string]any{"name": "Ada", "score": 97},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, score=97", out)
}

func TestRenderMissingPathIsEmpty(t *testing.T) {
	out, err := Render("x={{input.missing}}", map[string]any{"input": map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "x=", out)
}

func TestParamResolveLiteralAndMeta(t *testing.T) {
	rs := &RunState{Meta: map[string]any{"template_path": "greeting.tmpl"}, Results: map[string]any{"render": "hi there"}}
	r := &Runner{}

	lit, err := LiteralParam(42).Resolve(rs, r)
	require.NoError(t, err)
	assert.Equal(t, 42, lit)

	fromMeta, err := MetaValue("template_path").Resolve(rs, r)
	require.NoError(t, err)
	assert.Equal(t, "greeting.tmpl", fromMeta)

	fromStatesPath, err := MetaValue("states.results.render").Resolve(rs, r)
	require.NoError(t, err)
	assert.Equal(t, "hi there", fromStatesPath)
}

type stubLLM struct {
	lastPrompt string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return "generated:" + prompt, nil
}

// TestRunnerProducesCallableFromSequence exercises §4.8's bootstrap
// sequence: read a template, render it with the inference's meta,
// then wrap the rendered prompt into a generation callable.
func TestRunnerProducesCallableFromSequence(t *testing.T) {
	paradigm := &Paradigm{
		Name: "demo",
		Environment: map[string]Tool{
			"template_tool": {
				Name: "template_tool",
				Affordances: map[string]Affordance{
					"render_template": {Name: "render_template", Code: `render(params.template, params.vars)`},
				},
			},
			"generation_tool": {
				Name: "generation_tool",
				Affordances: map[string]Affordance{
					"create_generation_function": {Name: "create_generation_function", Native: "create_generation_function"},
				},
			},
		},
		Sequence: []SequenceStep{
			{
				Tool:       "template_tool",
				Affordance: "render_template",
				Params: map[string]Param{
					"template": LiteralParam("classify: {{topic}}"),
					"vars":     MetaValue("states.meta"),
				},
				ResultKey: "render",
			},
			{
				Tool:       "generation_tool",
				Affordance: "create_generation_function",
				Params: map[string]Param{
					"rendered": MetaValue("states.results.render"),
				},
				ResultKey: "generate_fn",
			},
		},
	}

	llm := &stubLLM{}
	runner := NewRunner(map[string]*Paradigm{"demo": paradigm}, "demo", llm)

	callable, err := runner.Run(map[string]any{"topic": "weather"})
	require.NoError(t, err)
	require.NotNil(t, callable)

	results, err := callable(map[string]any{"input_1": "5"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].(string), "classify: weather")
	assert.Contains(t, llm.lastPrompt, "input_1=5")
}

func TestRunnerUnknownParadigm(t *testing.T) {
	runner := NewRunner(map[string]*Paradigm{}, "missing", nil)
	_, err := runner.Run(map[string]any{})
	assert.Error(t, err)
}

func TestParseParadigmJSON(t *testing.T) {
	doc := `{
		"name": "demo",
		"environment": {
			"template_tool": {
				"affordances": {
					"render_template": {"code": "render(params.template, params.vars)"}
				}
			}
		},
		"sequence": [
			{
				"tool": "template_tool",
				"affordance": "render_template",
				"params": {
					"template": {"literal": "hi {{meta.name}}"},
					"vars": {"meta": "states.meta"}
				},
				"result_key": "render"
			}
		]
	}`
	p, err := ParseParadigm([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Name)
	require.Len(t, p.Sequence, 1)
	assert.Equal(t, "render", p.Sequence[0].ResultKey)
	assert.Equal(t, ParamLiteral, p.Sequence[0].Params["template"].Kind)
	assert.Equal(t, ParamMeta, p.Sequence[0].Params["vars"].Kind)
}
