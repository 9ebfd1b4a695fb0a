package syntax

import (
	"fmt"
	"strings"

	"github.com/geoguansin/normengine/pkg/blackboard"
)

// TimingKind is the closed grammar for timing conditions.
type TimingKind string

const (
	TimingAfter TimingKind = "@after"
	TimingIf    TimingKind = "@if"
	TimingIfNot TimingKind = "@if!"
)

// Condition is a parsed timing condition: kind plus the guarded concept.
type Condition struct {
	Kind    TimingKind
	Concept string
}

// ParseCondition parses "@after C", "@if C", "@if! C".
func ParseCondition(raw string) (Condition, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) != 2 {
		return Condition{}, fmt.Errorf("syntax: malformed timing condition %q", raw)
	}
	switch TimingKind(fields[0]) {
	case TimingAfter:
		return Condition{Kind: TimingAfter, Concept: fields[1]}, nil
	case TimingIf:
		return Condition{Kind: TimingIf, Concept: fields[1]}, nil
	case TimingIfNot:
		return Condition{Kind: TimingIfNot, Concept: fields[1]}, nil
	default:
		return Condition{}, fmt.Errorf("syntax: unknown timing keyword %q", fields[0])
	}
}

// Evaluation is the Timer's verdict for the current cycle.
type Evaluation struct {
	Ready   bool
	Skipped bool
}

// Filter is the instruction the Timer injects into the parent's
// workspace when an @if/@if! condition is ready and not skipped.
type Filter struct {
	Mask   blackboard.TruthMask
	Negate bool
}

// Timer evaluates timing conditions against the Blackboard.
type Timer struct{}

// Evaluate implements Timer semantics. For @after it checks concept
// completion. For @if/@if! it checks the producing item's completion
// detail and, when ready and not skipped, returns the filter to inject
// into the parent's workspace.
func (Timer) Evaluate(cond Condition, b *blackboard.Blackboard) (Evaluation, *Filter) {
	switch cond.Kind {
	case TimingAfter:
		_, complete := b.CompletionOrdinal(cond.Concept)
		return Evaluation{Ready: complete}, nil
	case TimingIf, TimingIfNot:
		flowIndices := b.FlowIndicesFor(cond.Concept)
		if len(flowIndices) == 0 {
			return Evaluation{Ready: false}, nil
		}
		detail, ok := b.ItemCompletionDetail(flowIndices[0])
		if !ok {
			return Evaluation{Ready: false}, nil
		}
		skipped := detail == "condition_not_met"
		if cond.Kind == TimingIfNot {
			skipped = !skipped
		}
		if skipped {
			return Evaluation{Ready: true, Skipped: true}, nil
		}
		var filter *Filter
		if mask, ok := b.TruthMaskFor(cond.Concept); ok {
			filter = &Filter{Mask: mask, Negate: cond.Kind == TimingIfNot}
		}
		return Evaluation{Ready: true, Skipped: false}, filter
	default:
		return Evaluation{}, nil
	}
}
