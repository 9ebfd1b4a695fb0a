package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/orchestrator"
	"github.com/geoguansin/normengine/pkg/reference"
)

// RefDoc is a Reference serialized as axes, shape, and the dense
// (ragged-padded) cell data, round-tripped through reference.FromData
// on restore.
type RefDoc struct {
	Axes  []string `json:"axes"`
	Shape []int    `json:"shape"`
	Data  any      `json:"data"`
}

// ConceptDoc captures one concept's workspace entry: whether it currently
// carries data, its signature at snapshot time (the basis for PATCH's
// keep-or-discard decision), and the reference itself when present.
type ConceptDoc struct {
	Name      string  `json:"name"`
	Signature string  `json:"signature"`
	HasData   bool    `json:"has_data"`
	Ref       *RefDoc `json:"ref,omitempty"`
}

// ItemDoc captures one inference item's Blackboard lifecycle state:
// status, execution count, completion detail, and the inference entry's
// own signature (PATCH's basis for deciding whether a completed item's
// result still matches the inference file it came from).
type ItemDoc struct {
	FlowIndex        string                `json:"flow_index"`
	Signature        string                `json:"signature"`
	Status           blackboard.ItemStatus `json:"status"`
	ExecutionCount   int                   `json:"execution_count"`
	CompletionDetail string                `json:"completion_detail,omitempty"`
}

// StateDocument is the full contents of one checkpoints.state_json cell:
// the run coordinate it was taken at (run id, cycle, inference count),
// every concept (its reference when it has data, and its signature), and
// every inference item's status, execution count, completion detail and
// signature. Blackboard aliases, truth masks, the filter/iteration
// workspace and any other tracker counters are not stored.
type StateDocument struct {
	RunID          string       `json:"run_id"`
	Cycle          int          `json:"cycle"`
	InferenceCount int          `json:"inference_count"`
	Concepts       []ConceptDoc `json:"concepts"`
	Items          []ItemDoc    `json:"items"`
}

// BuildStateDocument walks snap's ConceptRepo and InferenceRepo against
// its Blackboard, the same way pkg/orchestrator's hasData walk inspects
// one Reference at a time rather than requiring a bulk dump method.
func BuildStateDocument(snap orchestrator.Snapshot) *StateDocument {
	doc := &StateDocument{
		RunID:          snap.RunID,
		Cycle:          snap.Cycle,
		InferenceCount: snap.InferenceCount,
	}

	for _, name := range snap.ConceptRepo.SortedNames() {
		entry, ok := snap.ConceptRepo.GetConcept(name)
		if !ok {
			continue
		}
		cd := ConceptDoc{Name: name, Signature: entry.Signature}
		if entry.Concept.Ref != nil {
			cd.HasData = true
			cd.Ref = &RefDoc{
				Axes:  entry.Concept.Ref.Axes(),
				Shape: entry.Concept.Ref.Shape(),
				Data:  entry.Concept.Ref.GetTensor(false),
			}
		}
		doc.Concepts = append(doc.Concepts, cd)
	}

	for _, entry := range snap.InferenceRepo.All() {
		flowIndex := entry.FlowIndex.String()
		status := snap.Blackboard.GetItemStatus(flowIndex)
		detail, _ := snap.Blackboard.ItemCompletionDetail(flowIndex)
		doc.Items = append(doc.Items, ItemDoc{
			FlowIndex:        flowIndex,
			Signature:        entry.Signature,
			Status:           status,
			ExecutionCount:   snap.Blackboard.ExecutionCount(flowIndex),
			CompletionDetail: detail,
		})
	}

	return doc
}

// Marshal renders the document as the JSON text stored in state_json.
func (d *StateDocument) Marshal() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("checkpoint: marshal state document: %w", err)
	}
	return string(b), nil
}

// UnmarshalStateDocument parses a state_json cell back into a StateDocument.
func UnmarshalStateDocument(stateJSON string) (*StateDocument, error) {
	doc := new(StateDocument)
	if err := json.Unmarshal([]byte(stateJSON), doc); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal state document: %w", err)
	}
	return doc, nil
}

// toReference rebuilds a reference.Reference from its serialized form.
// Rank-0 (no axes) references were serialized via Singleton and restore
// the same way: FromData with an empty axis list returns Singleton(data).
func (rd *RefDoc) toReference() (*reference.Reference, error) {
	return reference.FromData(rd.Data, rd.Axes)
}
