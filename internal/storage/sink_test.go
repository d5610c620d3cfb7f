package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeSink_TargetsStayConsistent(t *testing.T) {
	dir := t.TempDir()
	sink := &EdgeSink{
		Rows:   NewCSVEdgeFile(filepath.Join(dir, "edges.csv")),
		Array:  NewJSONEdgeFile(filepath.Join(dir, "edges.json")),
		Mirror: setupTestDB(t),
	}

	batches := [][]Edge{
		{{Source: "Science", Target: "Physics"}, {Source: "Science", Target: "Biology"}},
		{{Source: "Physics", Target: "Science"}, {Source: "Science", Target: "Physics"}},
	}
	for _, batch := range batches {
		require.NoError(t, sink.AppendEdges(batch))
	}

	rows, err := sink.LoadEdges()
	require.NoError(t, err)
	array, err := sink.Array.LoadEdges()
	require.NoError(t, err)

	assert.Len(t, rows, 4)
	assert.Equal(t, rows, array)

	weight, err := sink.Mirror.EdgeWeight("Science", "Physics")
	require.NoError(t, err)
	assert.Equal(t, 2, weight)
}

func TestEdgeSink_WithoutMirror(t *testing.T) {
	dir := t.TempDir()
	sink := &EdgeSink{
		Rows:  NewCSVEdgeFile(filepath.Join(dir, "edges.csv")),
		Array: NewJSONEdgeFile(filepath.Join(dir, "edges.json")),
	}

	require.NoError(t, sink.AppendEdges([]Edge{{Source: "A", Target: "B"}}))

	edges, err := sink.LoadEdges()
	require.NoError(t, err)
	assert.Equal(t, []Edge{{Source: "A", Target: "B"}}, edges)
}

func TestEdgeSink_MalformedArrayLeavesRowsUntouched(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "edges.csv")
	jsonPath := filepath.Join(dir, "edges.json")
	sink := &EdgeSink{
		Rows:  NewCSVEdgeFile(csvPath),
		Array: NewJSONEdgeFile(jsonPath),
	}
	require.NoError(t, sink.AppendEdges([]Edge{{Source: "Old", Target: "Known"}}))

	before, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(jsonPath, []byte("{not json"), 0644))

	_, err = sink.LoadEdges()
	assert.ErrorIs(t, err, ErrMalformedCheckpoint)

	err = sink.AppendEdges([]Edge{{Source: "Seed", Target: "A"}})
	assert.ErrorIs(t, err, ErrMalformedCheckpoint)

	after, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))
}
