package reference

import (
	"errors"
	"fmt"
)

// ElementFunc is a callable applied pointwise by ElementAction. coord
// carries the per-axis index of the cell being computed, for callables
// that need index awareness.
type ElementFunc func(values []any, coord map[string]int) (any, error)

// CrossProduct computes the outer product over the union of refs' axes;
// each output cell becomes a slice of the operand cells in input order.
// Any SkipValue operand cell makes the whole output cell SkipValue.
func CrossProduct(refs ...*Reference) (*Reference, error) {
	if len(refs) == 0 {
		return nil, errors.New("reference: cross_product requires at least one operand")
	}
	axes := unionAxes(refs)
	shape := shapeFor(axes, refs)
	out := &Reference{axes: axes, shape: shape, cells: map[string]any{}}
	for _, coord := range enumerate(shape) {
		cell := make([]any, len(refs))
		skip := false
		for i, r := range refs {
			v := cellFor(r, axes, coord)
			if v == SkipValue {
				skip = true
			}
			cell[i] = v
		}
		if skip {
			out.cells[coordKey(coord)] = SkipValue
		} else {
			out.cells[coordKey(coord)] = cell
		}
	}
	return elideNone(out), nil
}

// ElementAction maps f pointwise across the union of refs' axes. devMode
// governs whether a non-interaction callable error becomes a SkipValue
// cell (off) or propagates (on); InteractionRequest errors always
// propagate.
func ElementAction(f ElementFunc, devMode bool, refs ...*Reference) (*Reference, error) {
	if len(refs) == 0 {
		return nil, errors.New("reference: element_action requires at least one operand")
	}
	axes := unionAxes(refs)
	shape := shapeFor(axes, refs)
	out := &Reference{axes: axes, shape: shape, cells: map[string]any{}}
	for _, coord := range enumerate(shape) {
		key := coordKey(coord)
		values := make([]any, len(refs))
		skip := false
		for i, r := range refs {
			v := cellFor(r, axes, coord)
			if v == SkipValue {
				skip = true
			}
			values[i] = v
		}
		if skip {
			out.cells[key] = SkipValue
			continue
		}
		coordMap := make(map[string]int, len(axes))
		for i, a := range axes {
			coordMap[a] = coord[i]
		}
		result, err := f(values, coordMap)
		if err != nil {
			if _, ok := AsInteraction(err); ok {
				return nil, err
			}
			if devMode {
				return nil, err
			}
			out.cells[key] = SkipValue
			continue
		}
		out.cells[key] = result
	}
	return elideNone(out), nil
}

// Callable is the cell type cross_action's F operand must hold.
type Callable func(value any) ([]any, error)

// CrossAction applies the callable held in each cell of f to the
// matching cell of b (aligned over their shared axes), appending
// newAxis sized to the longest callable result. devMode governs
// non-interaction callable error handling as in ElementAction.
func CrossAction(f *Reference, b *Reference, newAxis string, devMode bool) (*Reference, error) {
	if f == nil || b == nil {
		return nil, errors.New("reference: cross_action requires both operands")
	}
	axes := unionAxes([]*Reference{f, b})
	shape := shapeFor(axes, []*Reference{f, b})

	type cellResult struct {
		values []any
		skip   bool
	}
	results := make(map[string]cellResult, len(enumerate(shape)))
	maxLen := 0
	for _, coord := range enumerate(shape) {
		key := coordKey(coord)
		fv := cellFor(f, axes, coord)
		bv := cellFor(b, axes, coord)
		if fv == SkipValue || bv == SkipValue {
			results[key] = cellResult{skip: true}
			continue
		}
		callable, ok := fv.(Callable)
		if !ok {
			return nil, fmt.Errorf("reference: cross_action cell is not callable: %T", fv)
		}
		vals, err := callable(bv)
		if err != nil {
			if _, ok := AsInteraction(err); ok {
				return nil, err
			}
			if devMode {
				return nil, err
			}
			results[key] = cellResult{skip: true}
			continue
		}
		if len(vals) > maxLen {
			maxLen = len(vals)
		}
		results[key] = cellResult{values: vals}
	}
	if maxLen == 0 {
		maxLen = 1
	}
	outAxes := append(append([]string{}, axes...), newAxis)
	outShape := append(append([]int{}, shape...), maxLen)
	out := &Reference{axes: outAxes, shape: outShape, cells: map[string]any{}}
	for _, coord := range enumerate(shape) {
		cr := results[coordKey(coord)]
		for j := 0; j < maxLen; j++ {
			full := append(append([]int{}, coord...), j)
			if cr.skip || j >= len(cr.values) {
				out.cells[coordKey(full)] = SkipValue
			} else {
				out.cells[coordKey(full)] = cr.values[j]
			}
		}
	}
	return elideNone(out), nil
}

// Join stacks equal-rank references along a new outermost axis, after
// realigning each operand's axis order to match the first operand.
func Join(newAxis string, refs ...*Reference) (*Reference, error) {
	if len(refs) == 0 {
		return nil, errors.New("reference: join requires at least one operand")
	}
	base := refs[0]
	axes := append([]string{newAxis}, base.axes...)
	shape := append([]int{len(refs)}, base.shape...)
	out := &Reference{axes: axes, shape: shape, cells: map[string]any{}}
	for i, r := range refs {
		aligned, err := Transpose(r, base.axes)
		if err != nil {
			return nil, fmt.Errorf("reference: join operand %d: %w", i, err)
		}
		for _, coord := range enumerate(base.shape) {
			coordMap := make(map[string]int, len(base.axes))
			for j, a := range base.axes {
				coordMap[a] = coord[j]
			}
			v := aligned.Get(coordMap)
			full := append([]int{i}, coord...)
			out.cells[coordKey(full)] = v
		}
	}
	return elideNone(out), nil
}

// Transpose permutes r's axes into the given order, which must be a
// permutation of r's own axis names.
func Transpose(r *Reference, order []string) (*Reference, error) {
	if len(order) != len(r.axes) {
		return nil, fmt.Errorf("reference: transpose order length %d does not match rank %d", len(order), len(r.axes))
	}
	idxMap := make([]int, len(order))
	for i, a := range order {
		idx := r.indexOf(a)
		if idx < 0 {
			return nil, fmt.Errorf("reference: transpose unknown axis %q", a)
		}
		idxMap[i] = idx
	}
	shape := make([]int, len(order))
	for i, idx := range idxMap {
		shape[i] = r.shape[idx]
	}
	out := &Reference{axes: append([]string{}, order...), shape: shape, cells: make(map[string]any, len(r.cells))}
	for key, v := range r.cells {
		coord := parseCoordKey(key)
		nc := make([]int, len(order))
		for i, idx := range idxMap {
			nc[i] = coord[idx]
		}
		out.cells[coordKey(nc)] = v
	}
	return out, nil
}

// Slice keeps (and reorders to) the given axes. With no axes it returns
// the singleton _none_axis wrapper holding the whole tensor as one cell.
// With a strict subset of r's axes, each kept coordinate's cell becomes a
// sub-Reference over the dropped axes.
func Slice(r *Reference, axes ...string) (*Reference, error) {
	if len(axes) == 0 {
		return &Reference{
			axes:  []string{NoneAxis},
			shape: []int{1},
			cells: map[string]any{"0": r.GetTensor(false)},
		}, nil
	}
	keep := map[string]bool{}
	for _, a := range axes {
		if r.indexOf(a) < 0 {
			return nil, fmt.Errorf("reference: slice unknown axis %q", a)
		}
		keep[a] = true
	}
	var dropped []string
	for _, a := range r.axes {
		if !keep[a] {
			dropped = append(dropped, a)
		}
	}
	if len(dropped) == 0 {
		return Transpose(r, axes)
	}
	keepShape := make([]int, len(axes))
	for i, a := range axes {
		keepShape[i] = r.shape[r.indexOf(a)]
	}
	droppedShape := make([]int, len(dropped))
	for i, a := range dropped {
		droppedShape[i] = r.shape[r.indexOf(a)]
	}
	out := &Reference{axes: append([]string{}, axes...), shape: keepShape, cells: map[string]any{}}
	for _, kc := range enumerate(keepShape) {
		subCells := make(map[string]any)
		for _, dc := range enumerate(droppedShape) {
			coordMap := make(map[string]int, len(r.axes))
			for i, a := range axes {
				coordMap[a] = kc[i]
			}
			for i, a := range dropped {
				coordMap[a] = dc[i]
			}
			subCells[coordKey(dc)] = r.Get(coordMap)
		}
		sub := &Reference{axes: append([]string{}, dropped...), shape: append([]int{}, droppedShape...), cells: subCells}
		out.cells[coordKey(kc)] = sub
	}
	return elideNone(out), nil
}

// Append extends dest along byAxis with other's data. When byAxis is
// empty the axis is chosen by falling back through: the unique axis of
// other not present in dest, dest's largest axis, dest's last axis.
func Append(dest *Reference, other *Reference, byAxis string) (*Reference, error) {
	if byAxis == "" {
		byAxis = chooseAppendAxis(dest, other)
	}
	idx := dest.indexOf(byAxis)
	if idx < 0 {
		return nil, fmt.Errorf("reference: append unknown axis %q", byAxis)
	}
	isLast := idx == len(dest.axes)-1
	if !isLast {
		return appendRows(dest, other, idx)
	}
	if sameNonAxisShape(dest, other, byAxis) {
		return appendElementwise(dest, other, byAxis, idx)
	}
	return appendBroadcast(dest, other, byAxis, idx)
}

func chooseAppendAxis(dest, other *Reference) string {
	destSet := map[string]bool{}
	for _, a := range dest.axes {
		destSet[a] = true
	}
	var unmatched []string
	for _, a := range other.axes {
		if !destSet[a] {
			unmatched = append(unmatched, a)
		}
	}
	if len(unmatched) == 1 {
		return unmatched[0]
	}
	if len(dest.axes) == 0 {
		return NoneAxis
	}
	best := 0
	for i, s := range dest.shape {
		if s > dest.shape[best] {
			best = i
		}
	}
	if dest.shape[best] > dest.shape[len(dest.axes)-1] {
		return dest.axes[best]
	}
	return dest.axes[len(dest.axes)-1]
}

// appendRows handles the non-last-axis regime: other's cells, realigned
// to dest's axis order, are appended as new rows along idx.
func appendRows(dest, other *Reference, idx int) (*Reference, error) {
	if len(other.axes) != len(dest.axes) {
		return nil, fmt.Errorf("reference: append row regime requires matching rank (dest %d, other %d)", len(dest.axes), len(other.axes))
	}
	aligned, err := Transpose(other, dest.axes)
	if err != nil {
		return nil, err
	}
	offset := dest.shape[idx]
	out := cloneRef(dest)
	for key, v := range aligned.cells {
		coord := parseCoordKey(key)
		coord[idx] += offset
		out.cells[coordKey(coord)] = v
		if coord[idx]+1 > out.shape[idx] {
			out.shape[idx] = coord[idx] + 1
		}
	}
	return out, nil
}

func sameNonAxisShape(dest, other *Reference, axis string) bool {
	for i, a := range dest.axes {
		if a == axis {
			continue
		}
		oi := other.indexOf(a)
		if oi < 0 || other.shape[oi] != dest.shape[i] {
			return false
		}
	}
	for _, a := range other.axes {
		if a == axis {
			continue
		}
		if dest.indexOf(a) < 0 {
			return false
		}
	}
	return true
}

// appendElementwise handles last-axis regime where non-X axes match by
// name and size: concatenate corresponding rows along X.
func appendElementwise(dest, other *Reference, axis string, idx int) (*Reference, error) {
	otherIdx := other.indexOf(axis)
	if otherIdx < 0 {
		return nil, fmt.Errorf("reference: append elementwise missing axis %q on operand", axis)
	}
	out := cloneRef(dest)
	out.shape[idx] = dest.shape[idx] + other.shape[otherIdx]
	for key, v := range other.cells {
		coord := parseCoordKey(key)
		destCoord := make([]int, len(dest.axes))
		for i, a := range dest.axes {
			oi := other.indexOf(a)
			if oi < 0 {
				return nil, fmt.Errorf("reference: append elementwise axis mismatch on %q", a)
			}
			destCoord[i] = coord[oi]
		}
		destCoord[idx] += dest.shape[idx]
		out.cells[coordKey(destCoord)] = v
	}
	return out, nil
}

// appendBroadcast handles last-axis regime where other's non-X axes are
// a subset of dest's: other's missing axes broadcast across dest's
// corresponding extent.
func appendBroadcast(dest, other *Reference, axis string, idx int) (*Reference, error) {
	out := cloneRef(dest)
	otherIdx := other.indexOf(axis)
	otherExtent := 1
	if otherIdx >= 0 {
		otherExtent = other.shape[otherIdx]
	}
	offset := dest.shape[idx]
	out.shape[idx] = dest.shape[idx] + otherExtent

	var nonXAxes []string
	var nonXShape []int
	for i, a := range dest.axes {
		if i == idx {
			continue
		}
		nonXAxes = append(nonXAxes, a)
		nonXShape = append(nonXShape, dest.shape[i])
	}
	for _, nc := range enumerate(nonXShape) {
		for j := 0; j < otherExtent; j++ {
			coordMap := make(map[string]int, len(other.axes))
			for i, a := range nonXAxes {
				if other.indexOf(a) >= 0 {
					coordMap[a] = nc[i]
				}
			}
			if otherIdx >= 0 {
				coordMap[axis] = j
			}
			v := other.Get(coordMap)
			full := make([]int, len(dest.axes))
			for i, a := range nonXAxes {
				full[dest.indexOf(a)] = nc[i]
			}
			full[idx] = offset + j
			out.cells[coordKey(full)] = v
		}
	}
	return out, nil
}
