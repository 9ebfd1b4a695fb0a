// Package repo loads concept, inference, and input repository files
// (the three on-disk JSON documents: concepts, inferences, inputs) into
// pkg/concept and pkg/inference domain types, via a loader interface
// hiding the storage backend from the caller and a conversion-function
// idiom repointed from DB rows to on-disk JSON documents.
package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geoguansin/normengine/pkg/concept"
	"github.com/geoguansin/normengine/pkg/inference"
)

// conceptDoc mirrors one element of concepts.json.
type conceptDoc struct {
	ConceptName        string   `json:"concept_name"`
	Type               string   `json:"type"`
	Context            string   `json:"context"`
	AxisName           string   `json:"axis_name"`
	ReferenceData      any      `json:"reference_data"`
	ReferenceAxisNames []string `json:"reference_axis_names"`
	IsGroundConcept    bool     `json:"is_ground_concept"`
	IsFinalConcept     bool     `json:"is_final_concept"`
}

// inferenceDoc mirrors one element of inferences.json.
type inferenceDoc struct {
	ConceptToInfer        string         `json:"concept_to_infer"`
	ValueConcepts         []string       `json:"value_concepts"`
	ContextConcepts       []string       `json:"context_concepts"`
	FunctionConcept       string         `json:"function_concept"`
	WorkingInterpretation map[string]any `json:"working_interpretation"`
	InferenceSequence     string         `json:"inference_sequence"`
	FlowInfo              struct {
		FlowIndex string `json:"flow_index"`
	} `json:"flow_info"`
}

// Loader reads a run's three repository files from base_dir and
// assembles a concept.Repo and inference.Repo.
type Loader struct {
	BaseDir string
}

// NewLoader builds a Loader rooted at baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{BaseDir: baseDir}
}

// LoadConcepts parses concepts.json into a concept.Repo.
func (l *Loader) LoadConcepts() (*concept.Repo, error) {
	docs, err := readJSONList[conceptDoc](filepath.Join(l.BaseDir, "concepts.json"))
	if err != nil {
		return nil, err
	}
	cr := concept.NewRepo()
	for _, d := range docs {
		e, err := conceptDocToDomain(d)
		if err != nil {
			return nil, err
		}
		if err := cr.AddConcept(e); err != nil {
			return nil, fmt.Errorf("repo: concepts.json: %w", err)
		}
		if d.ReferenceData != nil {
			if err := cr.AddReference(d.ConceptName, d.ReferenceData, d.ReferenceAxisNames); err != nil {
				return nil, fmt.Errorf("repo: concepts.json: %w", err)
			}
		}
	}
	return cr, nil
}

// LoadInferences parses inferences.json into an inference.Repo.
func (l *Loader) LoadInferences() (*inference.Repo, error) {
	docs, err := readJSONList[inferenceDoc](filepath.Join(l.BaseDir, "inferences.json"))
	if err != nil {
		return nil, err
	}
	ir := inference.NewRepo()
	for _, d := range docs {
		e, err := inferenceDocToDomain(d)
		if err != nil {
			return nil, err
		}
		if err := ir.Add(e); err != nil {
			return nil, fmt.Errorf("repo: inferences.json: %w", err)
		}
	}
	return ir, nil
}

// InputDoc is one inputs.json value: either a bare value (interpreted as
// rank-0) or an explicit {data, axes} pair.
type InputDoc struct {
	Data any      `json:"data"`
	Axes []string `json:"axes"`
}

// LoadInputs parses inputs.json and applies every entry as a reference
// onto concepts already present in cr, the way a run's ground inputs are
// layered on top of the concepts.json declarations.
func (l *Loader) LoadInputs(cr *concept.Repo) error {
	path := filepath.Join(l.BaseDir, "inputs.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("repo: inputs.json: %w", err)
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return fmt.Errorf("repo: inputs.json: %w", err)
	}
	for name, rawVal := range asMap {
		data, axes, err := parseInputValue(rawVal)
		if err != nil {
			return fmt.Errorf("repo: inputs.json: concept %q: %w", name, err)
		}
		if err := cr.AddReference(name, data, axes); err != nil {
			return fmt.Errorf("repo: inputs.json: concept %q: %w", name, err)
		}
	}
	return nil
}

// parseInputValue distinguishes an explicit {data, axes} object from a
// bare value, which is treated as a rank-0 reference (no axes).
func parseInputValue(raw json.RawMessage) (any, []string, error) {
	var doc InputDoc
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Data != nil {
		return doc.Data, doc.Axes, nil
	}
	var bare any
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, nil, err
	}
	return bare, nil, nil
}

func readJSONList[T any](path string) ([]T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("repo: %s: %w", filepath.Base(path), err)
	}
	var docs []T
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("repo: %s: %w", filepath.Base(path), err)
	}
	return docs, nil
}

func conceptDocToDomain(d conceptDoc) (concept.Entry, error) {
	typ := concept.Type(d.Type)
	if !typ.Valid() {
		return concept.Entry{}, fmt.Errorf("repo: concept %q: invalid type %q", d.ConceptName, d.Type)
	}
	return concept.Entry{
		Concept: concept.Concept{
			Name:     d.ConceptName,
			Type:     typ,
			Context:  d.Context,
			AxisName: d.AxisName,
		},
		IsGround: d.IsGroundConcept,
		IsFinal:  d.IsFinalConcept,
	}, nil
}

func inferenceDocToDomain(d inferenceDoc) (inference.Entry, error) {
	kind, err := inference.ParseSequenceKind(d.InferenceSequence)
	if err != nil {
		return inference.Entry{}, err
	}
	flowIndex, err := inference.ParseFlowIndex(d.FlowInfo.FlowIndex)
	if err != nil {
		return inference.Entry{}, err
	}
	return inference.Entry{
		ConceptToInfer:        d.ConceptToInfer,
		ValueConcepts:         d.ValueConcepts,
		ContextConcepts:       d.ContextConcepts,
		FunctionConcept:       d.FunctionConcept,
		WorkingInterpretation: d.WorkingInterpretation,
		InferenceSequence:     kind,
		FlowIndex:             flowIndex,
	}, nil
}
