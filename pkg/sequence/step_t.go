package sequence

import (
	"context"
	"fmt"

	"github.com/geoguansin/normengine/pkg/syntax"
)

// newStepT implements Timing: evaluates the timing condition against the
// Blackboard, records readiness/skip on States, and injects a filter
// into the parent inference's workspace slot when applicable (§4.6,
// §4.7).
func newStepT() Step {
	return StepFunc{StepName: "T", Fn: func(ctx context.Context, st *States) error {
		raw, _ := st.WorkingInterpretation["condition"].(string)
		cond, err := syntax.ParseCondition(raw)
		if err != nil {
			return fmt.Errorf("sequence: T: %w", err)
		}
		timer := syntax.Timer{}
		eval, filter := timer.Evaluate(cond, st.Blackboard)
		st.TimingReady = eval.Ready
		st.ToBeSkipped = eval.Skipped

		if !eval.Ready {
			st.NeedsRetry = true
			return nil
		}
		if filter != nil && st.Filters != nil {
			if parent, ok := st.Entry.FlowIndex.Parent(); ok {
				key := "__filter__" + parent.String()
				if st.FiltersMu != nil {
					st.FiltersMu.Lock()
				}
				st.Filters[key] = append(st.Filters[key], *filter)
				if st.FiltersMu != nil {
					st.FiltersMu.Unlock()
				}
			}
		}
		return nil
	}}
}
