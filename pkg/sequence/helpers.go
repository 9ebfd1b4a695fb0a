package sequence

import (
	"fmt"
	"sort"
	"strconv"
)

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intFromWI(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("sequence: value %q is not numeric", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("sequence: value %T is not numeric", v)
	}
}

func orderedSelectorAxes(order map[string]int) []string {
	type kv struct {
		name string
		pos  int
	}
	kvs := make([]kv, 0, len(order))
	for k, v := range order {
		kvs = append(kvs, kv{k, v})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].pos < kvs[j].pos })
	out := make([]string, len(kvs))
	for i, e := range kvs {
		out[i] = e.name
	}
	return out
}

func intersect(a, b []string) []string {
	bs := make(map[string]bool, len(b))
	for _, x := range b {
		bs[x] = true
	}
	var out []string
	for _, x := range a {
		if bs[x] {
			out = append(out, x)
		}
	}
	return out
}

func complementAxes(all, exclude []string) []string {
	ex := make(map[string]bool, len(exclude))
	for _, x := range exclude {
		ex[x] = true
	}
	var out []string
	for _, a := range all {
		if !ex[a] {
			out = append(out, a)
		}
	}
	return out
}

func indexOfAxis(axes []string, name string) int {
	for i, a := range axes {
		if a == name {
			return i
		}
	}
	return -1
}

func axisCoordMap(axes []string, coord []int) map[string]int {
	m := make(map[string]int, len(axes))
	for i, a := range axes {
		m[a] = coord[i]
	}
	return m
}

// cartesian yields every coordinate tuple over shape in row-major order,
// duplicating pkg/reference's private enumerate (unexported there, and
// small enough that mirroring it here beats exporting tensor internals).
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
