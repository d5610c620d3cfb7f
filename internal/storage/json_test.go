package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONEdgeFile_AppendRewritesWholeArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.json")
	f := NewJSONEdgeFile(path)

	require.NoError(t, f.AppendEdges([]Edge{{Source: "A", Target: "B"}}))
	require.NoError(t, f.AppendEdges([]Edge{{Source: "A", Target: "B"}, {Source: "B", Target: "C & D"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw []map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []map[string]string{
		{"source": "A", "target": "B"},
		{"source": "A", "target": "B"},
		{"source": "B", "target": "C & D"},
	}, raw)
	assert.Contains(t, string(data), "C & D")
}

func TestJSONEdgeFile_EmptyAppendWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.json")

	require.NoError(t, NewJSONEdgeFile(path).AppendEdges(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestJSONEdgeFile_Load(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		edges, err := NewJSONEdgeFile(filepath.Join(dir, "none.json")).LoadEdges()
		require.NoError(t, err)
		assert.Empty(t, edges)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		edges, err := NewJSONEdgeFile(path).LoadEdges()
		require.NoError(t, err)
		assert.Empty(t, edges)
	})

	t.Run("entry without target", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"source": "A"}]`), 0644))

		_, err := NewJSONEdgeFile(path).LoadEdges()
		assert.ErrorIs(t, err, ErrMalformedCheckpoint)
	})

	t.Run("not an array", func(t *testing.T) {
		path := filepath.Join(dir, "object.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"source": "A"}`), 0644))

		_, err := NewJSONEdgeFile(path).LoadEdges()
		assert.ErrorIs(t, err, ErrMalformedCheckpoint)
	})
}

func TestJSONEdgeFile_AppendRefusesMalformedExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0644))

	err := NewJSONEdgeFile(path).AppendEdges([]Edge{{Source: "A", Target: "B"}})
	assert.ErrorIs(t, err, ErrMalformedCheckpoint)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "not json", string(data))
}
