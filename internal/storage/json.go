package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONEdgeFile keeps every edge in a single JSON array. A JSON array cannot
// be appended to in place, so each append rewrites the whole file.
type JSONEdgeFile struct {
	path string
}

// NewJSONEdgeFile returns an edge file rooted at path
func NewJSONEdgeFile(path string) *JSONEdgeFile {
	return &JSONEdgeFile{path: path}
}

// Path returns the file location
func (f *JSONEdgeFile) Path() string {
	return f.path
}

type jsonEdge struct {
	Source *string `json:"source"`
	Target *string `json:"target"`
}

// LoadEdges reads the stored array; a missing or empty file yields no edges
func (f *JSONEdgeFile) LoadEdges() ([]Edge, error) {
	data, err := readIfExists(f.path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []jsonEdge
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCheckpoint, f.path, err)
	}

	edges := make([]Edge, 0, len(raw))
	for i, e := range raw {
		if e.Source == nil || e.Target == nil {
			return nil, fmt.Errorf("%w: %s: entry %d lacks source/target", ErrMalformedCheckpoint, f.path, i)
		}
		edges = append(edges, Edge{Source: *e.Source, Target: *e.Target})
	}
	return edges, nil
}

// AppendEdges reads the existing array, concatenates edges and rewrites the file
func (f *JSONEdgeFile) AppendEdges(edges []Edge) error {
	data, err := f.encodeAppended(edges)
	if err != nil {
		return err
	}
	return writeFileAtomic(f.path, data)
}

// encodeAppended returns the file contents after appending edges without
// touching the file
func (f *JSONEdgeFile) encodeAppended(edges []Edge) ([]byte, error) {
	existing, err := f.LoadEdges()
	if err != nil {
		return nil, err
	}

	all := make([]Edge, 0, len(existing)+len(edges))
	all = append(all, existing...)
	all = append(all, edges...)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(all); err != nil {
		return nil, fmt.Errorf("failed to marshal edges: %w", err)
	}
	return buf.Bytes(), nil
}
