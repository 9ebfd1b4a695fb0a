// Package syntax implements the GR/QR/LR/AR/T algorithmic heart of the
// non-trivial sequence variants: Grouper, Quantifier, Looper, Assigner,
// and Timer.
package syntax

import "github.com/geoguansin/normengine/pkg/reference"

// GroupMode is the Grouper's marker string.
type GroupMode string

const (
	GroupAndIn    GroupMode = "and_in"
	GroupOrAcross GroupMode = "or_across"
)

// GroupAndIn produces one reference over byAxes (group identity) where
// each cell holds the per-combination tuple of value references
// restricted to that combination.
func GroupAndIn(values []*reference.Reference, byAxes []string) (*reference.Reference, error) {
	restricted := make([]*reference.Reference, len(values))
	for i, v := range values {
		s, err := reference.Slice(v, byAxes...)
		if err != nil {
			return nil, err
		}
		restricted[i] = s
	}
	return reference.CrossProduct(restricted...)
}

// GroupOrAcross flattens the supplied references along distinguishing
// axes into a single reference whose cells are candidate elements to
// iterate over.
func GroupOrAcross(values []*reference.Reference, distinguishingAxes []string) (*reference.Reference, error) {
	const joinAxis = "__or_across__"
	joined, err := reference.Join(joinAxis, values...)
	if err != nil {
		return nil, err
	}
	keep := append([]string{joinAxis}, distinguishingAxes...)
	return reference.Slice(joined, keep...)
}
