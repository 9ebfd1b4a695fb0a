package syntax

import (
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/reference"
)

// AssignMarker is the closed set of assigning markers.
type AssignMarker string

const (
	MarkerIdentity      AssignMarker = "="
	MarkerAbstraction   AssignMarker = "%"
	MarkerSpecification AssignMarker = "."
	MarkerContinuation  AssignMarker = "+"
	MarkerDerelation    AssignMarker = "-"
)

// Assigner implements the AR step's five markers.
type Assigner struct {
	Blackboard *blackboard.Blackboard
}

// AssignIdentity implements marker "=": registers identity between two
// concepts and produces no reference.
func (a *Assigner) AssignIdentity(canonical, alias string) {
	a.Blackboard.RegisterIdentity(canonical, alias)
}

// AssignAbstraction implements marker "%": builds a Reference directly
// from a literal face value: a singleton for a bare perceptual-sign
// string, or a structured reference for a nested-list literal with
// caller-supplied axis names.
func (a *Assigner) AssignAbstraction(literal any, axisNames []string) (*reference.Reference, error) {
	if s, ok := literal.(string); ok && len(axisNames) == 0 {
		return reference.Singleton(s), nil
	}
	return reference.FromData(literal, axisNames)
}

// AssignSpecification implements marker ".": picks the first non-empty
// reference from a prioritized list of sources, falling back to dest,
// then to an empty reference.
func (a *Assigner) AssignSpecification(sources []*reference.Reference, dest *reference.Reference) *reference.Reference {
	for _, s := range sources {
		if s != nil && !isEmptyRef(s) {
			return s
		}
	}
	if dest != nil && !isEmptyRef(dest) {
		return dest
	}
	return reference.Singleton(reference.SkipValue)
}

func isEmptyRef(r *reference.Reference) bool {
	for _, extent := range r.Shape() {
		if extent == 0 {
			return true
		}
	}
	return false
}

// AssignContinuation implements marker "+": appends source onto dest
// along the first of byAxes (dest's first axis when byAxes is empty).
func (a *Assigner) AssignContinuation(dest, src *reference.Reference, byAxes []string) (*reference.Reference, error) {
	axis := ""
	switch {
	case len(byAxes) > 0:
		axis = byAxes[0]
	case dest.Rank() > 0:
		axis = dest.Axes()[0]
	}
	return reference.Append(dest, src, axis)
}

// Derelation is the closure AssignDerelation/AssignDerelationJQ return;
// element_action applies it to the source reference. A result slice of
// length > 1 is stored by the AR step as a single list-valued cell; it is
// not flattened into sibling cells.
type Derelation func(element any) ([]any, error)

// AssignDerelation implements marker "-" for the structural modes:
// index, key, and unpack. unpackBeforeSelection is accepted but does not
// change the unpack result.
func AssignDerelation(mode string, key any, unpackBeforeSelection bool) (Derelation, error) {
	switch mode {
	case "index":
		idx, ok := key.(int)
		if !ok {
			return nil, fmt.Errorf("syntax: derelation index mode requires an int key, got %T", key)
		}
		return func(element any) ([]any, error) {
			list, ok := element.([]any)
			if !ok {
				return nil, fmt.Errorf("syntax: derelation index: element is not a list")
			}
			if idx < 0 || idx >= len(list) {
				return []any{reference.SkipValue}, nil
			}
			return []any{list[idx]}, nil
		}, nil
	case "key":
		k, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("syntax: derelation key mode requires a string key, got %T", key)
		}
		return func(element any) ([]any, error) {
			m, ok := element.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("syntax: derelation key: element is not a map")
			}
			v, ok := m[k]
			if !ok {
				return []any{reference.SkipValue}, nil
			}
			return []any{v}, nil
		}, nil
	case "unpack":
		return func(element any) ([]any, error) {
			list, ok := element.([]any)
			if !ok {
				return []any{element}, nil
			}
			if !unpackBeforeSelection {
				return list, nil
			}
			return list, nil
		}, nil
	case "jq":
		expr, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("syntax: derelation jq mode requires a string filter, got %T", key)
		}
		return AssignDerelationJQ(expr)
	default:
		return nil, fmt.Errorf("syntax: unknown derelation mode %q", mode)
	}
}

// AssignDerelationJQ builds a Derelation from a gojq filter expression,
// for structural selections beyond plain index/key access, e.g. a
// nested path query over cell data shaped as arbitrary JSON-like values.
func AssignDerelationJQ(expr string) (Derelation, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("syntax: derelation jq parse %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("syntax: derelation jq compile %q: %w", expr, err)
	}
	return func(element any) ([]any, error) {
		iter := code.Run(element)
		var out []any
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if jqErr, ok := v.(error); ok {
				return nil, fmt.Errorf("syntax: derelation jq eval: %w", jqErr)
			}
			out = append(out, v)
		}
		if len(out) == 0 {
			out = []any{reference.SkipValue}
		}
		return out, nil
	}, nil
}
