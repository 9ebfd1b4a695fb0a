// Package paradigm implements the declarative model-sequence layer (§4.8):
// an environment spec of named tools exposing named "affordances" with
// inline code strings, and an ordered sequence spec that resolves
// parameters and runs those affordances to produce the callable MFP
// hands off to TVA. Grounded on pkg/executor's Executor/ExecutorFunc
// adapter pattern and internal/application/template's variable
// resolution (§4.8, SPEC_FULL.md DOMAIN STACK).
package paradigm

import "fmt"

// Affordance is one named capability a Tool exposes: an inline code
// string evaluated by expr-lang against {states, tool, params}, or a
// Native builtin name for capabilities (like producing a closure) that
// an expression language cannot itself construct.
type Affordance struct {
	Name   string
	Code   string
	Native string
}

// Tool is a named bundle of affordances; a sequence step names it in its
// Tool field. It is not reachable through a "states.body" path (MetaValue
// paths cover only states.meta and states.results).
type Tool struct {
	Name        string
	Affordances map[string]Affordance
}

// SequenceStep runs one affordance of one tool with resolved params,
// storing its result under ResultKey for later steps to reference via
// MetaValue("states.results.<ResultKey>").
type SequenceStep struct {
	Tool       string
	Affordance string
	Params     map[string]Param
	ResultKey  string
}

// Paradigm is the full declarative file: an environment of tools plus
// the ordered sequence that runs against it.
type Paradigm struct {
	Name        string
	Environment map[string]Tool
	Sequence    []SequenceStep
}

// Lookup returns the Affordance a sequence step names, or an error if
// the tool or affordance is not declared in the environment.
func (p *Paradigm) Lookup(toolName, affordanceName string) (Affordance, error) {
	tool, ok := p.Environment[toolName]
	if !ok {
		return Affordance{}, fmt.Errorf("paradigm: unknown tool %q", toolName)
	}
	aff, ok := tool.Affordances[affordanceName]
	if !ok {
		return Affordance{}, fmt.Errorf("paradigm: tool %q has no affordance %q", toolName, affordanceName)
	}
	return aff, nil
}
