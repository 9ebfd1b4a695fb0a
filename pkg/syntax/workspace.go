package syntax

import (
	"fmt"
	"reflect"

	"github.com/geoguansin/normengine/pkg/reference"
)

// IterationRecord is one arena slot for a loop iteration: the loop-base
// element chosen for that iteration, plus any in-loop concept values
// observed during it. References inside a record are owned by the
// Workspace for the lifetime of the surrounding cycle, an arena+index
// pattern.
type IterationRecord struct {
	BaseElement *reference.Reference
	InLoop      map[string]*reference.Reference
}

// Workspace is the per-(loop_base_concept, loop_index) subworkspace the
// Quantifier/Looper maintain: a dense arena of IterationRecord keyed by
// integer loop index.
type Workspace struct {
	records []*IterationRecord
}

// NewWorkspace returns an empty arena.
func NewWorkspace() *Workspace { return &Workspace{} }

// Len returns the number of committed iteration records.
func (w *Workspace) Len() int { return len(w.records) }

// At returns the record at the given arena index.
func (w *Workspace) At(index int) (*IterationRecord, bool) {
	if index < 0 || index >= len(w.records) {
		return nil, false
	}
	return w.records[index], true
}

func referencesEqual(a, b *reference.Reference) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(a.Axes(), b.Axes()) &&
		reflect.DeepEqual(a.Shape(), b.Shape()) &&
		reflect.DeepEqual(a.GetTensor(false), b.GetTensor(false))
}

func (w *Workspace) checkNewBaseElementByLoopedBaseElement(el *reference.Reference) bool {
	for _, rec := range w.records {
		if referencesEqual(rec.BaseElement, el) {
			return false
		}
	}
	return true
}

// RetrieveNextBaseElement scans toLoopElements for the next element that
// is neither current nor already present in the workspace. The returned
// index is where it would land if stored (Len(), since storage always
// appends).
func (w *Workspace) RetrieveNextBaseElement(toLoopElements []*reference.Reference, current *reference.Reference) (*reference.Reference, int, bool) {
	for _, el := range toLoopElements {
		if referencesEqual(el, current) {
			continue
		}
		if w.checkNewBaseElementByLoopedBaseElement(el) {
			return el, w.Len(), true
		}
	}
	return nil, w.Len(), false
}

// StoreNewBaseElement commits a base element at the next iteration
// index and returns that index.
func (w *Workspace) StoreNewBaseElement(el *reference.Reference) int {
	w.records = append(w.records, &IterationRecord{BaseElement: el, InLoop: map[string]*reference.Reference{}})
	return len(w.records) - 1
}

// StoreNewInLoopElement commits an in-loop concept's value at the given
// iteration index.
func (w *Workspace) StoreNewInLoopElement(index int, concept string, ref *reference.Reference) error {
	rec, ok := w.At(index)
	if !ok {
		return fmt.Errorf("syntax: store_new_in_loop_element: no iteration record at index %d", index)
	}
	rec.InLoop[concept] = ref
	return nil
}

// CombineAllLoopedElementsByConcept joins every stored per-iteration
// value of conceptName along a new axis named conceptName, then renames
// the innermost (original) axis to loopBaseAxis. For rank-1 values the
// join axis is the only axis, and it is the one renamed to loopBaseAxis.
func (w *Workspace) CombineAllLoopedElementsByConcept(conceptName, loopBaseAxis string) (*reference.Reference, error) {
	var refs []*reference.Reference
	for _, rec := range w.records {
		if v, ok := rec.InLoop[conceptName]; ok {
			refs = append(refs, v)
		}
	}
	if len(refs) == 0 {
		return reference.Singleton(reference.SkipValue), nil
	}
	joined, err := reference.Join(conceptName, refs...)
	if err != nil {
		return nil, err
	}
	axes := joined.Axes()
	innermost := axes[len(axes)-1]
	if innermost == conceptName {
		// rank-1 operands: the join axis is the only axis and indexes the
		// loop-base elements, so it takes the loop-base axis name.
		return reference.Rename(joined, conceptName, loopBaseAxis)
	}
	return reference.Rename(joined, innermost, loopBaseAxis)
}

// CheckAllBaseElementsLooped is the traversal completion predicate: true
// iff every element of toLoopElements already corresponds to a stored
// base element (vacuously true over an empty slice).
func (w *Workspace) CheckAllBaseElementsLooped(toLoopElements []*reference.Reference) bool {
	for _, el := range toLoopElements {
		if w.checkNewBaseElementByLoopedBaseElement(el) {
			return false
		}
	}
	return true
}

// Quantifier advances a loop over independent elements, recording a
// per-element result per iteration.
type Quantifier struct{ *Workspace }

// NewQuantifier returns an empty Quantifier workspace.
func NewQuantifier() *Quantifier { return &Quantifier{Workspace: NewWorkspace()} }

// Looper is a Quantifier augmented with accumulator carry-over between
// iterations.
type Looper struct{ *Workspace }

// NewLooper returns an empty Looper workspace.
func NewLooper() *Looper { return &Looper{Workspace: NewWorkspace()} }

// RetrieveNextInLoopElement returns the k-th-prior value of an in-loop
// concept relative to currentLoopIndex, falling back to initial when
// that prior iteration doesn't exist or never recorded the concept.
func (l *Looper) RetrieveNextInLoopElement(name string, currentLoopIndex, k int, initial *reference.Reference) *reference.Reference {
	rec, ok := l.At(currentLoopIndex - k)
	if !ok {
		return initial
	}
	v, ok := rec.InLoop[name]
	if !ok {
		return initial
	}
	return v
}
