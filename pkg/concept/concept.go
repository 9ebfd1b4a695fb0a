// Package concept implements the typed symbolic node type (Concept) and
// the read-mostly repository that indexes it (ConceptRepo).
package concept

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/geoguansin/normengine/pkg/reference"
)

// Type is the closed vocabulary classifying how a concept participates
// in sequences.
type Type string

const (
	TypeSyntactical Type = "syntactical"
	TypeSemantical  Type = "semantical"
	TypeInferential Type = "inferential"
)

// ValidTypes lists the closed set of concept types.
var ValidTypes = []Type{TypeSyntactical, TypeSemantical, TypeInferential}

func (t Type) Valid() bool {
	for _, v := range ValidTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Concept is the typed symbolic node (name, type, context, axis_name,
// reference?).
type Concept struct {
	Name     string
	Type     Type
	Context  string
	AxisName string
	Ref      *reference.Reference
}

// ValidationError reports a single invalid field by name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("concept: %s: %s", e.Field, e.Message)
}

// Entry is one row of the ConceptRepo: the live Concept plus the
// bookkeeping the repo and orchestrator need around it.
type Entry struct {
	Concept     Concept
	IsGround    bool
	IsFinal     bool
	FlowIndices []string
	Signature   string
}

// Repo is the mapping from concept name to Entry, read-mostly once
// loaded for a run.
type Repo struct {
	entries map[string]*Entry
	order   []string
}

// NewRepo returns an empty repo; concepts are added with AddConcept or
// loaded in bulk by pkg/repo's Loader.
func NewRepo() *Repo {
	return &Repo{entries: make(map[string]*Entry)}
}

// AddConcept registers a new concept entry. It is an error to add a
// name twice.
func (r *Repo) AddConcept(e Entry) error {
	if e.Concept.Name == "" {
		return &ValidationError{Field: "concept_name", Message: "concept name is required"}
	}
	if !e.Concept.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown concept type %q", e.Concept.Type)}
	}
	if _, exists := r.entries[e.Concept.Name]; exists {
		return &ValidationError{Field: "concept_name", Message: fmt.Sprintf("duplicate concept name: %s", e.Concept.Name)}
	}
	entry := e
	if entry.Signature == "" {
		sig, err := Signature(entry.Concept)
		if err != nil {
			return err
		}
		entry.Signature = sig
	}
	r.entries[e.Concept.Name] = &entry
	r.order = append(r.order, e.Concept.Name)
	return nil
}

// GetConcept retrieves a concept entry by name.
func (r *Repo) GetConcept(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// GetAllConcepts iterates entries in insertion order (stable across a
// run, unlike Go map iteration).
func (r *Repo) GetAllConcepts() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// AddReference creates or updates the Reference attached to a concept.
func (r *Repo) AddReference(name string, data any, axisNames []string) error {
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("concept: add_reference: unknown concept %q", name)
	}
	ref, err := reference.FromData(data, axisNames)
	if err != nil {
		return fmt.Errorf("concept: add_reference %q: %w", name, err)
	}
	e.Concept.Ref = ref
	e.IsGround = true
	return nil
}

// Signature computes a stable hash over the concept's declarative
// fields (type, context, axis name). It changes exactly when a repo
// edit would require re-running anything depending on the concept.
func Signature(c Concept) (string, error) {
	payload := struct {
		Type     Type   `json:"type"`
		Context  string `json:"context"`
		AxisName string `json:"axis_name"`
	}{Type: c.Type, Context: c.Context, AxisName: c.AxisName}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("concept: signature: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Names returns all concept names in insertion order.
func (r *Repo) Names() []string {
	return append([]string{}, r.order...)
}

// SortedNames returns concept names sorted lexically, useful for
// deterministic checkpoint serialization.
func (r *Repo) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
