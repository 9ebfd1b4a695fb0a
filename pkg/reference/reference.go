// Package reference implements the Reference tensor algebra: a dense,
// axis-tagged N-dimensional value type with skip-value semantics and a
// small set of pure combinators (cross product, cross action, element
// action, join, slice, append, transpose).
package reference

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SkipValue is the sentinel marking a missing cell.
const SkipValue = "@#SKIP#@"

// NoneAxis is the reserved axis name for singleton references. A Reference
// whose only axis is NoneAxis is transparently elided whenever it is
// combined with any other Reference.
const NoneAxis = "_none_axis"

// Reference is an immutable-under-combinators, axis-indexed tensor. Cells
// are stored sparsely (coordinate tuple -> value); missing coordinates read
// back as SkipValue, which lets references stay ragged without padding.
type Reference struct {
	axes  []string
	shape []int
	cells map[string]any
}

// Singleton builds a rank-1 Reference over NoneAxis holding one value.
func Singleton(value any) *Reference {
	return &Reference{
		axes:  []string{NoneAxis},
		shape: []int{1},
		cells: map[string]any{"0": value},
	}
}

// FromData builds a Reference from a nested-list tensor whose nesting
// depth equals len(axes), outermost axis first. Shape is inferred as the
// maximum extent observed per axis (ragged input is accepted).
func FromData(data any, axes []string) (*Reference, error) {
	if len(axes) == 0 {
		return Singleton(data), nil
	}
	shape := make([]int, len(axes))
	cells := make(map[string]any)
	var walk func(v any, depth int, coord []int) error
	walk = func(v any, depth int, coord []int) error {
		if depth == len(axes) {
			cells[coordKey(coord)] = v
			return nil
		}
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("reference: expected nested list at depth %d (axis %q), got %T", depth, axes[depth], v)
		}
		if len(list) > shape[depth] {
			shape[depth] = len(list)
		}
		for i, elem := range list {
			c := append(append([]int{}, coord...), i)
			if err := walk(elem, depth+1, c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(data, 0, nil); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, a := range axes {
		if seen[a] {
			return nil, fmt.Errorf("reference: duplicate axis %q", a)
		}
		seen[a] = true
	}
	return &Reference{axes: append([]string{}, axes...), shape: shape, cells: cells}, nil
}

// Axes returns the ordered axis names.
func (r *Reference) Axes() []string { return append([]string{}, r.axes...) }

// Shape returns the per-axis extent, aligned with Axes().
func (r *Reference) Shape() []int { return append([]int{}, r.shape...) }

// Rank returns the number of axes.
func (r *Reference) Rank() int { return len(r.axes) }

func (r *Reference) indexOf(axis string) int {
	for i, a := range r.axes {
		if a == axis {
			return i
		}
	}
	return -1
}

// HasAxis reports whether the given axis is declared on this reference.
func (r *Reference) HasAxis(axis string) bool { return r.indexOf(axis) >= 0 }

// Get reads the cell at the given per-axis coordinate. Coordinates for
// axes this reference doesn't declare are ignored; axes it declares but
// the caller omits default to 0. A coordinate beyond the stored extent
// reads back as SkipValue.
func (r *Reference) Get(coord map[string]int) any {
	key := make([]int, len(r.axes))
	for i, a := range r.axes {
		key[i] = coord[a]
	}
	v, ok := r.cells[coordKey(key)]
	if !ok {
		return SkipValue
	}
	return v
}

// Set writes the cell at the given coordinate, growing shape as needed.
func (r *Reference) Set(coord map[string]int, value any) {
	key := make([]int, len(r.axes))
	for i, a := range r.axes {
		idx := coord[a]
		key[i] = idx
		if idx+1 > r.shape[i] {
			r.shape[i] = idx + 1
		}
	}
	r.cells[coordKey(key)] = value
}

// GetTensor reconstructs the nested-list representation. When ignoreSkip
// is true, skip cells along the innermost axis are omitted rather than
// materialized, compacting ragged rows.
func (r *Reference) GetTensor(ignoreSkip bool) any {
	var build func(depth int, coord []int) any
	build = func(depth int, coord []int) any {
		if depth == len(r.axes) {
			key := coordKey(coord)
			if v, ok := r.cells[key]; ok {
				return v
			}
			return SkipValue
		}
		extent := r.shape[depth]
		out := make([]any, 0, extent)
		for i := 0; i < extent; i++ {
			v := build(depth+1, append(append([]int{}, coord...), i))
			if ignoreSkip && depth == len(r.axes)-1 && v == SkipValue {
				continue
			}
			out = append(out, v)
		}
		return out
	}
	if len(r.axes) == 0 {
		return r.cells[""]
	}
	return build(0, nil)
}

// Clone returns a deep-enough copy (axes/shape/cell map) so mutation of
// the clone never affects the original.
func (r *Reference) Clone() *Reference { return cloneRef(r) }

// DropSingletonAxis removes an axis whose extent is 1, keeping only the
// index-0 slice along it (a projection, unlike Slice which nests the
// dropped axes into a sub-Reference per cell).
func DropSingletonAxis(r *Reference, axis string) (*Reference, error) {
	idx := r.indexOf(axis)
	if idx < 0 {
		return nil, fmt.Errorf("reference: drop_singleton_axis unknown axis %q", axis)
	}
	if r.shape[idx] > 1 {
		return nil, fmt.Errorf("reference: drop_singleton_axis axis %q has extent %d, not 1", axis, r.shape[idx])
	}
	newAxes := append(append([]string{}, r.axes[:idx]...), r.axes[idx+1:]...)
	newShape := append(append([]int{}, r.shape[:idx]...), r.shape[idx+1:]...)
	newCells := make(map[string]any, len(r.cells))
	for key, v := range r.cells {
		coord := parseCoordKey(key)
		if coord[idx] != 0 {
			continue
		}
		nc := append(append([]int{}, coord[:idx]...), coord[idx+1:]...)
		newCells[coordKey(nc)] = v
	}
	return &Reference{axes: newAxes, shape: newShape, cells: newCells}, nil
}

// Rename relabels one axis in place on a clone, without moving any data.
func Rename(r *Reference, oldAxis, newAxis string) (*Reference, error) {
	idx := r.indexOf(oldAxis)
	if idx < 0 {
		return nil, fmt.Errorf("reference: rename unknown axis %q", oldAxis)
	}
	out := cloneRef(r)
	out.axes[idx] = newAxis
	return out, nil
}

func cloneRef(r *Reference) *Reference {
	axes := append([]string{}, r.axes...)
	shape := append([]int{}, r.shape...)
	cells := make(map[string]any, len(r.cells))
	for k, v := range r.cells {
		cells[k] = v
	}
	return &Reference{axes: axes, shape: shape, cells: cells}
}

// InteractionRequest models a tool's need for user input. It is the one
// error kind combinators must never swallow, regardless of dev mode.
type InteractionRequest struct {
	InteractionID string
	Prompt        string
	Kwargs        map[string]any
}

func (e *InteractionRequest) Error() string {
	return fmt.Sprintf("reference: needs user interaction: %s", e.Prompt)
}

// AsInteraction reports whether err is (or wraps) an InteractionRequest.
func AsInteraction(err error) (*InteractionRequest, bool) {
	var ir *InteractionRequest
	if errors.As(err, &ir) {
		return ir, true
	}
	return nil, false
}

func coordKey(coord []int) string {
	if len(coord) == 0 {
		return ""
	}
	parts := make([]string, len(coord))
	for i, c := range coord {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

func parseCoordKey(key string) []int {
	if key == "" {
		return nil
	}
	parts := strings.Split(key, ",")
	coord := make([]int, len(parts))
	for i, p := range parts {
		v, _ := strconv.Atoi(p)
		coord[i] = v
	}
	return coord
}

// enumerate yields every coordinate tuple over shape in row-major order.
// A zero extent anywhere yields no coordinates; a zero-length shape
// yields exactly one (empty) coordinate, the scalar case.
func enumerate(shape []int) [][]int {
	if len(shape) == 0 {
		return [][]int{{}}
	}
	total := 1
	for _, s := range shape {
		total *= s
	}
	if total == 0 {
		return nil
	}
	coords := make([][]int, 0, total)
	cur := make([]int, len(shape))
	for {
		coords = append(coords, append([]int{}, cur...))
		i := len(shape) - 1
		for i >= 0 {
			cur[i]++
			if cur[i] < shape[i] {
				break
			}
			cur[i] = 0
			i--
		}
		if i < 0 {
			break
		}
	}
	return coords
}

// unionAxes computes the ordered union of axes across refs, by first
// appearance. NoneAxis is dropped from the union whenever some other
// axis is also present, per the auto-elision rule.
func unionAxes(refs []*Reference) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range refs {
		if r == nil {
			continue
		}
		for _, a := range r.axes {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	if seen[NoneAxis] && len(out) > 1 {
		filtered := make([]string, 0, len(out)-1)
		for _, a := range out {
			if a != NoneAxis {
				filtered = append(filtered, a)
			}
		}
		return filtered
	}
	return out
}

func shapeFor(axes []string, refs []*Reference) []int {
	shape := make([]int, len(axes))
	for i, a := range axes {
		for _, r := range refs {
			if r == nil {
				continue
			}
			if idx := r.indexOf(a); idx >= 0 {
				shape[i] = r.shape[idx]
				break
			}
		}
	}
	return shape
}

// cellFor reads r's cell matching the given coordinate over outAxes. A
// pure-singleton operand (axes == [NoneAxis]) broadcasts its one value
// regardless of coord.
func cellFor(r *Reference, outAxes []string, coord []int) any {
	if r == nil {
		return SkipValue
	}
	if len(r.axes) == 1 && r.axes[0] == NoneAxis {
		return r.Get(map[string]int{NoneAxis: 0})
	}
	c := map[string]int{}
	for i, a := range outAxes {
		if r.indexOf(a) >= 0 {
			c[a] = coord[i]
		}
	}
	return r.Get(c)
}

// elideNone drops NoneAxis from a combinator's output whenever the
// output also carries some other axis, flattening that dimension (whose
// extent must be 1) into the contained value.
func elideNone(r *Reference) *Reference {
	idx := r.indexOf(NoneAxis)
	if idx < 0 || len(r.axes) <= 1 {
		return r
	}
	newAxes := append(append([]string{}, r.axes[:idx]...), r.axes[idx+1:]...)
	newShape := append(append([]int{}, r.shape[:idx]...), r.shape[idx+1:]...)
	newCells := make(map[string]any, len(r.cells))
	for key, v := range r.cells {
		coord := parseCoordKey(key)
		nc := append(append([]int{}, coord[:idx]...), coord[idx+1:]...)
		newCells[coordKey(nc)] = v
	}
	return &Reference{axes: newAxes, shape: newShape, cells: newCells}
}
