package sequence

import (
	"context"
	"fmt"
	"sort"

	"github.com/geoguansin/normengine/pkg/inference"
)

// Step is one stage of a sequence's state machine.
type Step interface {
	Name() string
	Run(ctx context.Context, st *States) error
}

// StepFunc adapts a plain function to the Step interface, mirroring the
// teacher's ExecutorFunc adapter in pkg/executor/executor.go.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, st *States) error
}

func (f StepFunc) Name() string { return f.StepName }

func (f StepFunc) Run(ctx context.Context, st *States) error { return f.Fn(ctx, st) }

// Registry maps a SequenceKind to its ordered step list, a closed
// tagged-variant-plus-lookup-table shape.
type Registry struct {
	kinds map[inference.SequenceKind][]Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[inference.SequenceKind][]Step)}
}

// Register associates a step list with a kind. Re-registering an
// already-registered kind is an error: register-once, replace
// explicitly if ever needed.
func (r *Registry) Register(kind inference.SequenceKind, steps []Step) error {
	if _, exists := r.kinds[kind]; exists {
		return fmt.Errorf("sequence: step list already registered for %q", kind)
	}
	r.kinds[kind] = steps
	return nil
}

// Get retrieves the step list for a kind.
func (r *Registry) Get(kind inference.SequenceKind) ([]Step, error) {
	steps, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSequenceKind, kind)
	}
	return steps, nil
}

// Has reports whether a kind has a registered step list.
func (r *Registry) Has(kind inference.SequenceKind) bool {
	_, ok := r.kinds[kind]
	return ok
}

// List returns every registered kind in lexical order.
func (r *Registry) List() []string {
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// NewDefaultRegistry wires the step lists for every kind in
// inference.AllSequenceKinds. Decision:
// imperative_direct/imperative_input/imperative_python/
// imperative_python_indirect/imperative_in_composition alias the base
// "imperative" list, and judgement_direct/judgement_python/
// judgement_python_indirect alias the base "judgement" list, since the
// source's divergence between these variants is paradigm-driven rather
// than a different step code sequence.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	iwi, ir, or, owi := newStepIWI(), newStepIR(), newStepOR(), newStepOWI()
	mfp, mvp, tva := newStepMFP(), newStepMVP(), newStepTVA()
	tip, tia, mia := newStepTIP(), newStepTIA(), newStepMIA()
	gr, qr, lr := newStepGR(), newStepQR(), newStepLR()
	ar := newStepAR()
	tStep := newStepT()

	simple := []Step{iwi, ir, or, owi}
	imperative := []Step{iwi, ir, mfp, mvp, tva, tip, mia, or, owi}
	judgement := imperative
	judgementInComposition := []Step{iwi, ir, mfp, mvp, tva, tia, or, owi}
	grouping := []Step{iwi, ir, gr, or, owi}
	quantifying := []Step{iwi, ir, gr, qr, or, owi}
	looping := []Step{iwi, ir, gr, lr, or, owi}
	assigning := []Step{iwi, ir, ar, or, owi}
	timing := []Step{iwi, tStep, owi}

	mustRegister(r, inference.Simple, simple)
	mustRegister(r, inference.Imperative, imperative)
	mustRegister(r, inference.ImperativeDirect, imperative)
	mustRegister(r, inference.ImperativeInput, imperative)
	mustRegister(r, inference.ImperativePython, imperative)
	mustRegister(r, inference.ImperativePythonIndirect, imperative)
	mustRegister(r, inference.ImperativeInComposition, imperative)
	mustRegister(r, inference.Grouping, grouping)
	mustRegister(r, inference.Quantifying, quantifying)
	mustRegister(r, inference.Looping, looping)
	mustRegister(r, inference.Assigning, assigning)
	mustRegister(r, inference.Timing, timing)
	mustRegister(r, inference.Judgement, judgement)
	mustRegister(r, inference.JudgementDirect, judgement)
	mustRegister(r, inference.JudgementPython, judgement)
	mustRegister(r, inference.JudgementPythonIndirect, judgement)
	mustRegister(r, inference.JudgementInComposition, judgementInComposition)

	return r
}

func mustRegister(r *Registry, kind inference.SequenceKind, steps []Step) {
	if err := r.Register(kind, steps); err != nil {
		panic(err)
	}
}
