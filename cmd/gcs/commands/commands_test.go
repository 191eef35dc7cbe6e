package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-code-structure/internal/batch"
	"github.com/l3aro/go-code-structure/pkg/structure"
)

const diamond = `
heads: [H]
edges:
  - {from: H, to: L}
  - {from: H, to: R}
  - {from: L, to: J}
  - {from: R, to: J}
`

const loopSource = `package sample

func count(n int) int {
	c := 0
	for i := 0; i < n; i++ {
		c++
	}
	return c
}
`

func resetFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
	}
}

// execute runs gcs with args in an isolated home and cache directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GCS_CACHE_DIR", t.TempDir())
	resetFlags(RootCmd, structureCmd, cfgCmd, batchCmd)

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestStructureCommand_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "diamond.yaml", diamond)

	out, err := execute(t, "structure", "--no-merge", path)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Structure for heads: H ===")
	assert.Contains(t, out, "H --structured--> L")
	assert.Contains(t, out, "(join of H)")
}

func TestStructureCommand_JSONTrace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "diamond.yaml", diamond)
	snapshot := filepath.Join(dir, "out", "diamond.msgpack")

	out, err := execute(t, "structure", "--json", "--trace", "--no-merge", "--snapshot", snapshot, path)
	require.NoError(t, err)

	var got struct {
		Heads []string          `json:"heads"`
		Joins []string          `json:"joins"`
		Trace []structure.Event `json:"trace"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"H"}, got.Heads)
	assert.Len(t, got.Joins, 1)
	assert.NotEmpty(t, got.Trace)

	f, err := os.Open(snapshot)
	require.NoError(t, err)
	defer f.Close()
	rep, err := structure.ReadReport(f)
	require.NoError(t, err)
	assert.Equal(t, got.Joins, rep.Joins)
}

func TestStructureCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "structure", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestCfgCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sample.go", loopSource)

	out, err := execute(t, "cfg", path, "count")
	require.NoError(t, err)
	assert.Contains(t, out, "=== CFG for function: count ===")
	assert.Contains(t, out, "--back-->")

	_, err = execute(t, "cfg", path, "Count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean: count?")

	_, err = execute(t, "cfg", filepath.Dir(path), "count")
	assert.Error(t, err)
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "diamond.yaml", diamond)
	writeFile(t, dir, "sample.go", loopSource)

	out, err := execute(t, "batch", "--json", dir)
	require.NoError(t, err)

	var results []batch.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "diamond.yaml", results[0].Source)
	assert.Equal(t, "sample.go:count", results[1].Source)
}

func TestBatchCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "edges: [")

	out, err := execute(t, "batch", "--no-cache", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 failed")
	assert.Contains(t, out, "broken.yaml: error:")
}

func TestSimilarFunctions(t *testing.T) {
	names := []string{"count", "countAll", "sign"}
	assert.Equal(t, []string{"count", "countAll"}, similarFunctions(names, "Count"))
	assert.Empty(t, similarFunctions(names, "zzz"))
}
