package structure

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-code-structure/pkg/decision"
	"github.com/l3aro/go-code-structure/pkg/graph"
)

func diamondReport(t *testing.T) *Report {
	t.Helper()
	g := build(t, [][2]string{{"H", "L"}, {"H", "R"}, {"L", "J"}, {"R", "J"}})
	res, err := Run(g, []string{"H"}, RunOptions{})
	require.NoError(t, err)
	return NewReport(g, res)
}

func TestNewReport(t *testing.T) {
	rep := diamondReport(t)

	assert.Equal(t, []string{"H"}, rep.Heads)
	assert.Equal(t, []string{"endif_H"}, rep.Joins)
	assert.Equal(t, 5, rep.Stats["nodes"])
	assert.Equal(t, 5, rep.Stats[string(EdgeStructured)])

	var joinNode ReportNode
	for _, n := range rep.Nodes {
		if n.ID == "endif_H" {
			joinNode = n
		}
	}
	assert.Equal(t, graph.KindJoin, joinNode.Kind)
	assert.Equal(t, "H", joinNode.Decision)
	assert.Equal(t, []string{"J"}, joinNode.Next)

	want := ReportEdge{
		From:      "L",
		To:        "endif_H",
		Kind:      EdgeStructured,
		Decisions: []decision.Decision{{Node: "H", Branch: 0}},
	}
	assert.Contains(t, rep.Edges, want)
}

func TestReport_MsgpackRoundTrip(t *testing.T) {
	rep := diamondReport(t)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteMsgpack(&buf))

	got, err := ReadReport(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(rep, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadReport_Garbage(t *testing.T) {
	_, err := ReadReport(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}

func TestReport_Text(t *testing.T) {
	g := build(t, [][2]string{{"A", "B"}, {"B", "A"}, {"A", "C"}})
	res, err := Run(g, []string{"A"}, RunOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewReport(g, res).Text(&buf))

	out := buf.String()
	assert.Contains(t, out, "=== Structure for heads: A ===")
	assert.Contains(t, out, "Loop continues: [A]")
	assert.Contains(t, out, "B --back--> A (empty)")
	assert.Contains(t, out, "A --structured--> C (empty)")
}
