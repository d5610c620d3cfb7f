package storage

import "github.com/sirupsen/logrus"

// EdgeSink fans edges out to the row file, the JSON array and, when set, the
// SQLite mirror. Prior edges are read back from the row file.
type EdgeSink struct {
	Rows   *CSVEdgeFile
	Array  *JSONEdgeFile
	Mirror *Storage
}

// LoadEdges returns the edges recorded by previous runs. The JSON array is
// parsed as well so a damaged file stops the run before any work.
func (s *EdgeSink) LoadEdges() ([]Edge, error) {
	edges, err := s.Rows.LoadEdges()
	if err != nil {
		return nil, err
	}

	array, err := s.Array.LoadEdges()
	if err != nil {
		return nil, err
	}
	if len(array) != len(edges) {
		logrus.Warnf("Edge files disagree: %s holds %d edges, %s holds %d",
			s.Rows.Path(), len(edges), s.Array.Path(), len(array))
	}
	return edges, nil
}

// AppendEdges writes edges to every target, stopping at the first failure.
// The JSON array is encoded before any row is written, so an unreadable
// array leaves the row file untouched.
func (s *EdgeSink) AppendEdges(edges []Edge) error {
	array, err := s.Array.encodeAppended(edges)
	if err != nil {
		return err
	}

	logrus.Infof("Saving %d edges to CSV: %s", len(edges), s.Rows.Path())
	if err := s.Rows.AppendEdges(edges); err != nil {
		return err
	}

	logrus.Infof("Saving %d edges to JSON: %s", len(edges), s.Array.Path())
	if err := writeFileAtomic(s.Array.Path(), array); err != nil {
		return err
	}

	if s.Mirror != nil {
		if err := s.Mirror.AppendEdges(edges); err != nil {
			return err
		}
		nodes, distinct, err := s.Mirror.GetStats()
		if err == nil {
			logrus.Infof("SQLite mirror now holds %d nodes, %d distinct edges", nodes, distinct)
		}
	}
	return nil
}
