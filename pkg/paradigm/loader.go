package paradigm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// wire types mirror concepts.json/inferences.json's plain-JSON loading
// idiom (pkg/repo), kept private to this file and converted into the
// domain Paradigm/Tool/Affordance types on load.
type affordanceWire struct {
	Code   string `json:"code"`
	Native string `json:"native"`
}

type toolWire struct {
	Affordances map[string]affordanceWire `json:"affordances"`
}

type sequenceStepWire struct {
	Tool       string           `json:"tool"`
	Affordance string           `json:"affordance"`
	Params     map[string]Param `json:"params"`
	ResultKey  string           `json:"result_key"`
}

type paradigmWire struct {
	Name        string              `json:"name"`
	Environment map[string]toolWire `json:"environment"`
	Sequence    []sequenceStepWire  `json:"sequence"`
}

// LoadParadigmFile parses a single paradigm JSON file.
func LoadParadigmFile(path string) (*Paradigm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("paradigm: read %s: %w", path, err)
	}
	return ParseParadigm(data)
}

// ParseParadigm parses a paradigm document already in memory.
func ParseParadigm(data []byte) (*Paradigm, error) {
	var wire paradigmWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("paradigm: parse: %w", err)
	}

	env := make(map[string]Tool, len(wire.Environment))
	for name, tw := range wire.Environment {
		affs := make(map[string]Affordance, len(tw.Affordances))
		for affName, aw := range tw.Affordances {
			affs[affName] = Affordance{Name: affName, Code: aw.Code, Native: aw.Native}
		}
		env[name] = Tool{Name: name, Affordances: affs}
	}

	steps := make([]SequenceStep, 0, len(wire.Sequence))
	for _, sw := range wire.Sequence {
		steps = append(steps, SequenceStep{
			Tool:       sw.Tool,
			Affordance: sw.Affordance,
			Params:     sw.Params,
			ResultKey:  sw.ResultKey,
		})
	}

	return &Paradigm{Name: wire.Name, Environment: env, Sequence: steps}, nil
}

// LoadParadigmDir loads every "*.json" file in dir, keyed by paradigm
// name (the file's declared "name" field, falling back to its base
// filename without extension).
func LoadParadigmDir(dir string) (map[string]*Paradigm, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("paradigm: read dir %s: %w", dir, err)
	}
	out := map[string]*Paradigm{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		p, err := LoadParadigmFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		name := p.Name
		if name == "" {
			name = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		out[name] = p
	}
	return out, nil
}
