package theory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qcore/internal/graph"
)

const redGreen = `
name: Red-green
core_name: red_green
vertex_types:
  - name: red
    data: angle
    mnemonic: r
  - name: green
    data: angle
    mnemonic: g
  - name: hadamard
`

func TestParse(t *testing.T) {
	th, err := Parse([]byte(redGreen))
	require.NoError(t, err)

	assert.Equal(t, "Red-green", th.Name())
	assert.Equal(t, "red_green", th.CoreName())
	require.Len(t, th.VertexTypes(), 3)

	h, ok := th.VertexType("hadamard")
	require.True(t, ok)
	assert.Equal(t, DataNone, h.Data)
	assert.Equal(t, graph.Hadamard, h.Kind())

	r, ok := th.ByMnemonic("r")
	require.True(t, ok)
	assert.Equal(t, "red", r.Name)
	assert.Equal(t, DataAngle, r.Data)

	_, ok = th.ByMnemonic("")
	assert.False(t, ok)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: x\nvertex_typez: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vertex_typez")
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		types []VertexType
	}{
		{"no types", nil},
		{"unnamed type", []VertexType{{Name: ""}}},
		{"duplicate", []VertexType{{Name: "a"}, {Name: "a"}}},
		{"bad data kind", []VertexType{{Name: "a", Data: "matrix"}}},
		{"duplicate mnemonic", []VertexType{{Name: "a", Mnemonic: "x"}, {Name: "b", Mnemonic: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("t", "", tt.types)
			assert.Error(t, err)
		})
	}

	_, err := New("", "", []VertexType{{Name: "a"}})
	assert.Error(t, err)
}

func TestNormalize_ComposedAndDecomposedMatch(t *testing.T) {
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	th, err := New("t", "", []VertexType{{Name: decomposed}})
	require.NoError(t, err)

	vt, ok := th.VertexType(composed)
	require.True(t, ok)
	assert.Equal(t, composed, vt.Name)
	assert.Equal(t, graph.Generic, vt.Kind())
}

func TestActiveRulesets(t *testing.T) {
	th := Default()
	assert.Empty(t, th.ActiveRulesets())

	th.SetActive("spiders", true)
	th.SetActive("basics", true)
	th.SetActive("extras", false)
	assert.Equal(t, []string{"basics", "spiders"}, th.ActiveRulesets())
	assert.True(t, th.IsActive("spiders"))
	assert.False(t, th.IsActive("extras"))

	th.SetActive("spiders", false)
	th.Forget("basics")
	assert.Empty(t, th.ActiveRulesets())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(redGreen), 0o644))

	th, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Red-green", th.Name())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
