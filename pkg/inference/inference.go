// Package inference implements the declarative description of one
// dependency-graph step (InferenceEntry), its dotted flow index, and the
// read-mostly repository that indexes entries (InferenceRepo).
package inference

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SequenceKind is the closed set of sequence variant names.
type SequenceKind string

const (
	Simple                     SequenceKind = "simple"
	Imperative                 SequenceKind = "imperative"
	ImperativeDirect           SequenceKind = "imperative_direct"
	ImperativeInput            SequenceKind = "imperative_input"
	ImperativePython           SequenceKind = "imperative_python"
	ImperativePythonIndirect   SequenceKind = "imperative_python_indirect"
	ImperativeInComposition    SequenceKind = "imperative_in_composition"
	Grouping                   SequenceKind = "grouping"
	Quantifying                SequenceKind = "quantifying"
	Looping                    SequenceKind = "looping"
	Assigning                  SequenceKind = "assigning"
	Timing                     SequenceKind = "timing"
	Judgement                  SequenceKind = "judgement"
	JudgementDirect            SequenceKind = "judgement_direct"
	JudgementPython            SequenceKind = "judgement_python"
	JudgementPythonIndirect    SequenceKind = "judgement_python_indirect"
	JudgementInComposition     SequenceKind = "judgement_in_composition"
)

// AllSequenceKinds is the closed vocabulary accepted by working
// interpretations' inference_sequence field.
var AllSequenceKinds = []SequenceKind{
	Simple, Imperative, ImperativeDirect, ImperativeInput, ImperativePython,
	ImperativePythonIndirect, ImperativeInComposition, Grouping, Quantifying,
	Looping, Assigning, Timing, Judgement, JudgementDirect, JudgementPython,
	JudgementPythonIndirect, JudgementInComposition,
}

// ParseSequenceKind validates a raw sequence label against the closed
// vocabulary, as a typed-string enum.
func ParseSequenceKind(raw string) (SequenceKind, error) {
	k := SequenceKind(raw)
	for _, v := range AllSequenceKinds {
		if v == k {
			return k, nil
		}
	}
	return "", fmt.Errorf("inference: unknown inference_sequence %q", raw)
}

// FlowIndex is a dotted path ("1.2.3") encoding a tree of steps: "A.B.C"
// is a child step of "A.B".
type FlowIndex struct {
	parts []int
	raw   string
}

// ParseFlowIndex parses a dotted flow index string.
func ParseFlowIndex(raw string) (FlowIndex, error) {
	if raw == "" {
		return FlowIndex{}, fmt.Errorf("inference: empty flow_index")
	}
	segments := strings.Split(raw, ".")
	parts := make([]int, len(segments))
	for i, s := range segments {
		n, err := strconv.Atoi(s)
		if err != nil {
			return FlowIndex{}, fmt.Errorf("inference: invalid flow_index segment %q in %q", s, raw)
		}
		parts[i] = n
	}
	return FlowIndex{parts: parts, raw: raw}, nil
}

// String returns the original dotted representation.
func (f FlowIndex) String() string { return f.raw }

// Parent returns the flow index one level up ("1.2.3" -> "1.2") and
// whether a parent exists (root indices have none).
func (f FlowIndex) Parent() (FlowIndex, bool) {
	if len(f.parts) <= 1 {
		return FlowIndex{}, false
	}
	parts := f.parts[:len(f.parts)-1]
	segs := make([]string, len(parts))
	for i, p := range parts {
		segs[i] = strconv.Itoa(p)
	}
	return FlowIndex{parts: parts, raw: strings.Join(segs, ".")}, true
}

// IsChildOf reports whether f is a direct or transitive child of other.
func (f FlowIndex) IsChildOf(other FlowIndex) bool {
	if len(f.parts) <= len(other.parts) {
		return false
	}
	for i, p := range other.parts {
		if f.parts[i] != p {
			return false
		}
	}
	return true
}

// Entry is the declarative description of one dependency-graph step.
type Entry struct {
	ConceptToInfer      string
	ValueConcepts       []string
	ContextConcepts     []string
	FunctionConcept     string
	WorkingInterpretation map[string]any
	InferenceSequence   SequenceKind
	FlowIndex           FlowIndex
	Signature           string
}

// Repo is the read-mostly index of inference entries for a run.
type Repo struct {
	entries map[string]*Entry // keyed by flow_index string
	order   []string
}

// NewRepo returns an empty inference repo.
func NewRepo() *Repo {
	return &Repo{entries: make(map[string]*Entry)}
}

// Add validates and registers one entry, rejecting unknown sequence
// names and duplicate flow indices.
func (r *Repo) Add(e Entry) error {
	key := e.FlowIndex.String()
	if key == "" {
		return fmt.Errorf("inference: entry for concept %q is missing flow_index", e.ConceptToInfer)
	}
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("inference: duplicate flow_index %q", key)
	}
	if e.InferenceSequence == "" {
		return fmt.Errorf("inference: entry %q missing inference_sequence", key)
	}
	found := false
	for _, k := range AllSequenceKinds {
		if k == e.InferenceSequence {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("inference: entry %q declares unknown inference_sequence %q", key, e.InferenceSequence)
	}
	entry := e
	if entry.Signature == "" {
		sig, err := Signature(entry)
		if err != nil {
			return err
		}
		entry.Signature = sig
	}
	r.entries[key] = &entry
	r.order = append(r.order, key)
	return nil
}

// Get retrieves an entry by its flow_index string.
func (r *Repo) Get(flowIndex string) (*Entry, bool) {
	e, ok := r.entries[flowIndex]
	return e, ok
}

// All returns entries in load order, the order they are scheduled into
// the Waitlist.
func (r *Repo) All() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

// ChildrenOf returns entries whose flow_index is a direct or transitive
// child of parent's, in load order. Used to find timing inferences
// guarding a parent inference.
func (r *Repo) ChildrenOf(parent FlowIndex) []*Entry {
	var out []*Entry
	for _, k := range r.order {
		e := r.entries[k]
		if e.FlowIndex.IsChildOf(parent) {
			out = append(out, e)
		}
	}
	return out
}

// Signature hashes all declarative fields of an Entry, including
// working_interpretation, so it changes whenever re-running anything
// that depends on the entry would be required.
func Signature(e Entry) (string, error) {
	payload := struct {
		ConceptToInfer        string         `json:"concept_to_infer"`
		ValueConcepts         []string       `json:"value_concepts"`
		ContextConcepts       []string       `json:"context_concepts"`
		FunctionConcept       string         `json:"function_concept"`
		WorkingInterpretation map[string]any `json:"working_interpretation"`
		InferenceSequence     SequenceKind   `json:"inference_sequence"`
		FlowIndex             string         `json:"flow_index"`
	}{
		ConceptToInfer:        e.ConceptToInfer,
		ValueConcepts:         e.ValueConcepts,
		ContextConcepts:       e.ContextConcepts,
		FunctionConcept:       e.FunctionConcept,
		WorkingInterpretation: e.WorkingInterpretation,
		InferenceSequence:     e.InferenceSequence,
		FlowIndex:             e.FlowIndex.String(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("inference: signature: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
