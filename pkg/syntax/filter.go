package syntax

import "github.com/geoguansin/normengine/pkg/reference"

// TruthTrue and TruthFalse are the truth mask literal conventions.
const (
	TruthTrue  = "%{truth value}(true)"
	TruthFalse = "%{truth value}(false)"
)

// ApplyFilter rewrites value's cells along the mask's filter axis: any
// position whose mask is false (inverted when f.Negate) becomes a skip
// value. Applying several filters in sequence accumulates them as a
// logical AND: multiple injected filters are accumulated rather than
// replacing one another.
func ApplyFilter(value *reference.Reference, f Filter) *reference.Reference {
	if f.Mask.Tensor == nil || f.Mask.FilterAxis == "" || !value.HasAxis(f.Mask.FilterAxis) {
		return value
	}
	out := value.Clone()
	axes := out.Axes()
	for _, coord := range cartesian(out.Shape()) {
		coordMap := make(map[string]int, len(axes))
		for i, a := range axes {
			coordMap[a] = coord[i]
		}
		maskVal := f.Mask.Tensor.Get(map[string]int{f.Mask.FilterAxis: coordMap[f.Mask.FilterAxis]})
		truthy := maskVal == TruthTrue
		if f.Negate {
			truthy = !truthy
		}
		if !truthy {
			out.Set(coordMap, reference.SkipValue)
		}
	}
	return out
}

func cartesian(shape []int) [][]int {
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
