package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qcore/internal/testutil"
)

func TestSnapshotDiff_Identical(t *testing.T) {
	doc := "<graph>\n  <vertex>\n    <name>v0</name>\n  </vertex>\n</graph>\n"
	result := SnapshotDiff(doc, doc)
	assert.True(t, result.Identical)
	for _, l := range result.Lines {
		assert.Equal(t, lineContext, l.Type)
	}
	assert.Len(t, result.Lines, 5)
}

func TestSnapshotDiff_Changed(t *testing.T) {
	before := "a\nb\nc\n"
	after := "a\nB\nc\n"
	result := SnapshotDiff(before, after)
	assert.False(t, result.Identical)
	assert.Equal(t, []DiffLine{
		{Type: lineContext, Text: "a"},
		{Type: lineRemoved, Text: "b"},
		{Type: lineAdded, Text: "B"},
		{Type: lineContext, Text: "c"},
	}, result.Lines)
}

func writeSnapshot(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestDiffCommand_IgnoresElementOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeSnapshot(t, dir, "a.xml", testutil.Snapshot().
		Vertex("v0", "red").Boundary("b0").Edge("e0", "b0", "v0").String())
	b := writeSnapshot(t, dir, "b.xml", testutil.Snapshot().
		Boundary("b0").Edge("e0", "b0", "v0").Vertex("v0", "red").String())

	out, err := runRoot(t, "diff", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, " <graph>")
	assert.NotContains(t, out, "\n+")
	assert.NotContains(t, out, "\n-")
}

func TestDiffCommand_Differs(t *testing.T) {
	dir := t.TempDir()
	a := writeSnapshot(t, dir, "a.xml", testutil.Snapshot().Vertex("v0", "red").String())
	b := writeSnapshot(t, dir, "b.xml", testutil.Snapshot().Vertex("v0", "green").String())

	out, err := runRoot(t, "diff", a, b)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "-    <colour>red</colour>")
	assert.Contains(t, out, "+    <colour>green</colour>")
}

func TestDiffCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	a := writeSnapshot(t, dir, "a.xml", testutil.Snapshot().Vertex("v0", "red").String())

	out, err := runRoot(t, "--format", "json", "diff", a, a)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   DiffResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Identical)
	assert.NotEmpty(t, resp.Data.Lines)
}

func TestDiffCommand_InvalidSnapshot(t *testing.T) {
	dir := t.TempDir()
	good := writeSnapshot(t, dir, "good.xml", testutil.Snapshot().Vertex("v0", "red").String())
	bad := writeSnapshot(t, dir, "bad.xml", "<graph><vertex>")

	_, err := runRoot(t, "diff", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid snapshot")

	_, err = runRoot(t, "diff", good, filepath.Join(dir, "missing.xml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
