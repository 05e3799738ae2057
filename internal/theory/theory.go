// Package theory loads vertex-type catalogs and tracks which rulesets are
// active.
//
// A catalog is a YAML document:
//
//	name: Red-green
//	core_name: red_green
//	vertex_types:
//	  - name: red
//	    data: angle
//	    mnemonic: r
//	  - name: hadamard
//
// Type names are NFC-normalised so that names typed by a user and names
// sent by the engine compare equal regardless of Unicode composition.
// Visual metadata is not part of the catalog.
package theory

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"sync"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/qcore/internal/graph"
)

// DataKind is the payload a vertex type carries.
type DataKind string

const (
	DataNone   DataKind = "none"
	DataAngle  DataKind = "angle"
	DataString DataKind = "string"
)

// VertexType is one entry of a catalog.
type VertexType struct {
	Name     string   `yaml:"name"`
	Data     DataKind `yaml:"data,omitempty"`
	Mnemonic string   `yaml:"mnemonic,omitempty"`
}

// Kind maps the type to the model's vertex tag.
func (vt VertexType) Kind() graph.VertexType {
	return graph.TypeOf(vt.Name)
}

type document struct {
	Name        string       `yaml:"name"`
	CoreName    string       `yaml:"core_name"`
	VertexTypes []VertexType `yaml:"vertex_types"`
}

// Theory is an immutable vertex-type catalog plus the mutable set of
// active rulesets.
type Theory struct {
	name     string
	coreName string
	types    []VertexType
	byName   map[string]VertexType

	mu     sync.Mutex
	active map[string]bool
}

// New validates and builds a theory.
func New(name, coreName string, types []VertexType) (*Theory, error) {
	if name == "" {
		return nil, fmt.Errorf("theory name is required")
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("theory %q: no vertex types given", name)
	}
	if coreName == "" {
		coreName = name
	}

	t := &Theory{
		name:     name,
		coreName: coreName,
		byName:   make(map[string]VertexType, len(types)),
		active:   make(map[string]bool),
	}
	mnemonics := make(map[string]string)
	for _, vt := range types {
		vt.Name = Normalize(vt.Name)
		if vt.Name == "" {
			return nil, fmt.Errorf("theory %q: vertex type without a name", name)
		}
		if _, dup := t.byName[vt.Name]; dup {
			return nil, fmt.Errorf("theory %q: duplicate vertex type %q", name, vt.Name)
		}
		switch vt.Data {
		case "":
			vt.Data = DataNone
		case DataNone, DataAngle, DataString:
		default:
			return nil, fmt.Errorf("theory %q: vertex type %q: unknown data kind %q", name, vt.Name, vt.Data)
		}
		if vt.Mnemonic != "" {
			if other, dup := mnemonics[vt.Mnemonic]; dup {
				return nil, fmt.Errorf("theory %q: mnemonic %q used by %q and %q", name, vt.Mnemonic, other, vt.Name)
			}
			mnemonics[vt.Mnemonic] = vt.Name
		}
		t.byName[vt.Name] = vt
		t.types = append(t.types, vt)
	}
	return t, nil
}

// Parse decodes a YAML catalog. Unknown fields are rejected.
func Parse(data []byte) (*Theory, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse theory: %w", err)
	}
	return New(doc.Name, doc.CoreName, doc.VertexTypes)
}

// Load reads a YAML catalog from path.
func Load(path string) (*Theory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theory file: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in red/green theory.
func Default() *Theory {
	t, err := New("Red-green", "red_green", []VertexType{
		{Name: "red", Data: DataAngle, Mnemonic: "r"},
		{Name: "green", Data: DataAngle, Mnemonic: "g"},
		{Name: "hadamard", Data: DataNone, Mnemonic: "h"},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Normalize returns s in Unicode NFC.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// Name returns the display name.
func (t *Theory) Name() string { return t.name }

// CoreName returns the name the engine knows the theory by.
func (t *Theory) CoreName() string { return t.coreName }

// VertexTypes returns the catalog in declaration order.
func (t *Theory) VertexTypes() []VertexType {
	return slices.Clone(t.types)
}

// VertexType looks up a type by (normalised) name.
func (t *Theory) VertexType(name string) (VertexType, bool) {
	vt, ok := t.byName[Normalize(name)]
	return vt, ok
}

// ByMnemonic looks up a type by its shortcut.
func (t *Theory) ByMnemonic(m string) (VertexType, bool) {
	for _, vt := range t.types {
		if vt.Mnemonic != "" && vt.Mnemonic == m {
			return vt, true
		}
	}
	return VertexType{}, false
}

// SetActive records whether a ruleset is active.
func (t *Theory) SetActive(ruleset string, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[ruleset] = active
}

// IsActive reports whether a ruleset is active.
func (t *Theory) IsActive(ruleset string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[ruleset]
}

// ActiveRulesets returns the active rulesets, sorted.
func (t *Theory) ActiveRulesets() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for name, on := range t.active {
		if on {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Forget drops a ruleset from the tracker.
func (t *Theory) Forget(ruleset string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, ruleset)
}
