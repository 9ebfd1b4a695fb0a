package paradigm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/geoguansin/normengine/pkg/reference"
)

// ParamKind distinguishes the three ways a sequence step's parameter can
// be resolved (§4.8).
type ParamKind string

const (
	ParamLiteral    ParamKind = "literal"
	ParamMeta       ParamKind = "meta"
	ParamAffordance ParamKind = "affordance"
)

// Param is one resolvable parameter value. Exactly one of the
// kind-specific fields is meaningful, selected by Kind.
type Param struct {
	Kind ParamKind

	// ParamLiteral
	Literal any

	// ParamMeta: a meta-dict key, or a "states.a.b.c" dotted path.
	MetaKey string

	// ParamAffordance: names another tool/affordance this param resolves
	// to a callable for, rather than a value.
	AffordanceTool string
	AffordanceName string
}

// LiteralParam builds a Param that resolves to a fixed value.
func LiteralParam(v any) Param { return Param{Kind: ParamLiteral, Literal: v} }

// MetaValue builds a Param resolved from the running meta-dict, or from
// a "states.a.b.c" dotted path over the run's composed state.
func MetaValue(key string) Param { return Param{Kind: ParamMeta, MetaKey: key} }

// AffordanceValue builds a Param that resolves to a reference.Callable
// invoking the named tool/affordance.
func AffordanceValue(tool, affordance string) Param {
	return Param{Kind: ParamAffordance, AffordanceTool: tool, AffordanceName: affordance}
}

// Resolve computes this parameter's run-time value against rs, using
// runner to invoke affordances for ParamAffordance params.
func (p Param) Resolve(rs *RunState, runner *Runner) (any, error) {
	switch p.Kind {
	case ParamLiteral:
		return p.Literal, nil
	case ParamMeta:
		return resolveMetaPath(rs, p.MetaKey)
	case ParamAffordance:
		tool, affordance := p.AffordanceTool, p.AffordanceName
		var callable reference.Callable = func(value any) ([]any, error) {
			out, err := runner.invokeAffordance(rs, tool, affordance, map[string]any{"input": value})
			if err != nil {
				return nil, err
			}
			return []any{out}, nil
		}
		return callable, nil
	default:
		return nil, fmt.Errorf("paradigm: unknown param kind %q", p.Kind)
	}
}

// resolveMetaPath implements §4.8's "either by meta-key lookup or a
// states.a.b.c dotted path on the states object".
func resolveMetaPath(rs *RunState, key string) (any, error) {
	if !strings.HasPrefix(key, "states.") {
		v, ok := rs.Meta[key]
		if !ok {
			return nil, fmt.Errorf("paradigm: meta key %q not found", key)
		}
		return v, nil
	}
	segments := strings.Split(strings.TrimPrefix(key, "states."), ".")
	if len(segments) == 0 {
		return nil, fmt.Errorf("paradigm: malformed states path %q", key)
	}
	var cur any
	switch segments[0] {
	case "meta":
		cur = rs.Meta
	case "results":
		cur = rs.Results
	default:
		return nil, fmt.Errorf("paradigm: states path %q must start with meta or results", key)
	}
	for _, seg := range segments[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("paradigm: states path %q: %q is not a dict", key, seg)
		}
		cur, ok = m[seg]
		if !ok {
			return nil, fmt.Errorf("paradigm: states path %q: key %q not found", key, seg)
		}
	}
	return cur, nil
}

// paramWire is the JSON-file representation of Param: exactly one of the
// three fields is present.
type paramWire struct {
	Literal    any    `json:"literal,omitempty"`
	Meta       string `json:"meta,omitempty"`
	Affordance *struct {
		Tool string `json:"tool"`
		Name string `json:"name"`
	} `json:"affordance,omitempty"`
}

func (p *Param) UnmarshalJSON(data []byte) error {
	var wire paramWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch {
	case wire.Affordance != nil:
		*p = AffordanceValue(wire.Affordance.Tool, wire.Affordance.Name)
	case wire.Meta != "":
		*p = MetaValue(wire.Meta)
	default:
		*p = LiteralParam(wire.Literal)
	}
	return nil
}
