// Package blackboard implements the authoritative, mutex-guarded runtime
// state shared by every inference execution: concept/item statuses,
// identity aliases, truth masks, and completion ordinals. All mutation
// goes through named mutator methods, rather than exposing fields
// directly.
package blackboard

import (
	"sync"
	"sync/atomic"

	"github.com/geoguansin/normengine/pkg/reference"
)

// ConceptStatus is the lifecycle of a concept's value.
type ConceptStatus string

const (
	ConceptEmpty      ConceptStatus = "empty"
	ConceptInProgress ConceptStatus = "in_progress"
	ConceptComplete   ConceptStatus = "complete"
)

// ItemStatus is the lifecycle of a scheduled waitlist item.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemInProgress ItemStatus = "in_progress"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
)

// TruthMask is the judgement-sequence output consumed by Timer @if/@if!.
type TruthMask struct {
	Tensor     *reference.Reference
	Axes       []string
	FilterAxis string
}

// Blackboard holds every piece of authoritative run state: concept and
// item statuses, identity aliases, truth masks, and completion ordinals.
type Blackboard struct {
	mu sync.Mutex

	conceptStatuses map[string]ConceptStatus
	itemStatuses    map[string]ItemStatus
	itemExecCounts  map[string]int
	itemDetails     map[string]string
	itemResults     map[string]any

	completedOrder map[string]int64
	ordinal        atomic.Int64

	conceptToFlowIndex map[string][]string
	aliases            *aliasSet
	truthMasks         map[string]TruthMask
}

// New returns an empty Blackboard.
func New() *Blackboard {
	return &Blackboard{
		conceptStatuses:    make(map[string]ConceptStatus),
		itemStatuses:       make(map[string]ItemStatus),
		itemExecCounts:     make(map[string]int),
		itemDetails:        make(map[string]string),
		itemResults:        make(map[string]any),
		completedOrder:     make(map[string]int64),
		conceptToFlowIndex: make(map[string][]string),
		aliases:            newAliasSet(),
		truthMasks:         make(map[string]TruthMask),
	}
}

// SetConceptStatus transitions a concept's status. Transitioning to
// ConceptComplete assigns the next monotonic completion ordinal, used by
// @after timing. Operates on the alias canonical so that completing any
// alias of a concept completes the whole identity group.
func (b *Blackboard) SetConceptStatus(name string, status ConceptStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	canonical := b.aliases.canonical(name)
	b.conceptStatuses[canonical] = status
	if status == ConceptComplete {
		if _, already := b.completedOrder[canonical]; !already {
			b.completedOrder[canonical] = b.ordinal.Add(1)
		}
	}
}

// GetConceptStatus reads status by the alias canonical, defaulting to
// empty for concepts never touched.
func (b *Blackboard) GetConceptStatus(name string) ConceptStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	canonical := b.aliases.canonical(name)
	if s, ok := b.conceptStatuses[canonical]; ok {
		return s
	}
	return ConceptEmpty
}

// CompletionOrdinal returns the monotonic order in which a concept
// completed, and whether it has completed at all. Used by @after.
func (b *Blackboard) CompletionOrdinal(name string) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	canonical := b.aliases.canonical(name)
	ord, ok := b.completedOrder[canonical]
	return ord, ok
}

// SetItemStatus transitions a waitlist item's status by flow index.
func (b *Blackboard) SetItemStatus(flowIndex string, status ItemStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.itemStatuses[flowIndex] = status
}

// GetItemStatus reads an item's status, defaulting to pending.
func (b *Blackboard) GetItemStatus(flowIndex string) ItemStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.itemStatuses[flowIndex]; ok {
		return s
	}
	return ItemPending
}

// IncrementExecutionCount bumps and returns an item's attempt counter.
func (b *Blackboard) IncrementExecutionCount(flowIndex string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.itemExecCounts[flowIndex]++
	return b.itemExecCounts[flowIndex]
}

// ExecutionCount reads an item's attempt counter without mutating it.
func (b *Blackboard) ExecutionCount(flowIndex string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.itemExecCounts[flowIndex]
}

// SetItemCompletionDetail records e.g. "success" or "condition_not_met".
func (b *Blackboard) SetItemCompletionDetail(flowIndex, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.itemDetails[flowIndex] = detail
}

// ItemCompletionDetail reads the detail recorded for an item, if any.
func (b *Blackboard) ItemCompletionDetail(flowIndex string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.itemDetails[flowIndex]
	return d, ok
}

// StoreResult stashes an opaque per-item result payload.
func (b *Blackboard) StoreResult(flowIndex string, result any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.itemResults[flowIndex] = result
}

// Result retrieves a previously stored item result.
func (b *Blackboard) Result(flowIndex string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.itemResults[flowIndex]
	return r, ok
}

// IndexConcept records that a concept appears at the given flow index
// (reverse lookup, concept_to_flow_index).
func (b *Blackboard) IndexConcept(concept, flowIndex string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conceptToFlowIndex[concept] = append(b.conceptToFlowIndex[concept], flowIndex)
}

// FlowIndicesFor returns the flow indices a concept is referenced from.
func (b *Blackboard) FlowIndicesFor(concept string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.conceptToFlowIndex[concept]...)
}

// RegisterIdentity makes alias report canonical's status and completion
// ordinal from now on; concept references are not shared through the
// alias. Idempotent and transitive: registering (A,B) then (B,C)
// makes C an alias of A.
func (b *Blackboard) RegisterIdentity(canonical, alias string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Re-home any status/ordinal recorded under the old alias root.
	oldRoots := []string{b.aliases.canonical(canonical), b.aliases.canonical(alias)}
	b.aliases.union(canonical, alias)
	root := b.aliases.canonical(alias)
	for _, name := range oldRoots {
		if s, ok := b.conceptStatuses[name]; ok && name != root {
			b.conceptStatuses[root] = s
			delete(b.conceptStatuses, name)
		}
		if ord, ok := b.completedOrder[name]; ok && name != root {
			b.completedOrder[root] = ord
			delete(b.completedOrder, name)
		}
	}
}

// CanonicalName returns the identity-group representative for a concept
// name (itself, if it has no registered aliases).
func (b *Blackboard) CanonicalName(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aliases.canonical(name)
}

// SetTruthMask publishes a judgement sequence's boolean-mask output,
// keyed by the judged concept's name.
func (b *Blackboard) SetTruthMask(concept string, mask TruthMask) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.truthMasks[concept] = mask
}

// TruthMaskFor retrieves a previously published truth mask.
func (b *Blackboard) TruthMaskFor(concept string) (TruthMask, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.truthMasks[concept]
	return m, ok
}
