package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var csvHeader = []string{"source", "target"}

// CSVEdgeFile is the row-oriented, append-only edge target
type CSVEdgeFile struct {
	path string
}

// NewCSVEdgeFile returns an edge file rooted at path; the file is created on
// first append
func NewCSVEdgeFile(path string) *CSVEdgeFile {
	return &CSVEdgeFile{path: path}
}

// Path returns the file location
func (f *CSVEdgeFile) Path() string {
	return f.path
}

// LoadEdges reads every recorded edge. A missing or empty file yields no
// edges; a file without source/target columns is ErrMalformedCheckpoint.
func (f *CSVEdgeFile) LoadEdges() ([]Edge, error) {
	data, err := readIfExists(f.path)
	if err != nil || len(data) == 0 {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: unreadable header: %v", ErrMalformedCheckpoint, f.path, err)
	}

	sourceIdx, targetIdx := -1, -1
	for i, name := range header {
		switch name {
		case "source":
			sourceIdx = i
		case "target":
			targetIdx = i
		}
	}
	if sourceIdx < 0 || targetIdx < 0 {
		return nil, fmt.Errorf("%w: %s: header %v lacks source/target", ErrMalformedCheckpoint, f.path, header)
	}

	var edges []Edge
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCheckpoint, f.path, err)
		}
		edges = append(edges, Edge{Source: row[sourceIdx], Target: row[targetIdx]})
	}

	return edges, nil
}

// AppendEdges writes one row per edge after any existing content. The header
// is written only when the file is currently empty.
func (f *CSVEdgeFile) AppendEdges(edges []Edge) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.path, err)
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.path, err)
	}

	writer := csv.NewWriter(file)
	writer.UseCRLF = true

	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for _, edge := range edges {
		if err := writer.Write([]string{edge.Source, edge.Target}); err != nil {
			return fmt.Errorf("failed to write edge %s -> %s: %w", edge.Source, edge.Target, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", f.path, err)
	}
	return file.Sync()
}
