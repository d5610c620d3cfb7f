package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Storage mirrors the discovered topic graph into SQLite
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		node_id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS edges (
		edge_id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_node_id INTEGER NOT NULL,
		to_node_id INTEGER NOT NULL,
		weight INTEGER DEFAULT 1,
		FOREIGN KEY (from_node_id) REFERENCES nodes(node_id),
		FOREIGN KEY (to_node_id) REFERENCES nodes(node_id),
		UNIQUE(from_node_id, to_node_id)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_title ON nodes(title);
	CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_node_id);
	CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_node_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// upsertNode inserts a node if missing and returns its node_id
func upsertNode(q querier, title string) (int, error) {
	_, err := q.Exec(`INSERT INTO nodes (title) VALUES (?) ON CONFLICT(title) DO NOTHING`, title)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert node: %w", err)
	}

	var nodeID int
	err = q.QueryRow("SELECT node_id FROM nodes WHERE title = ?", title).Scan(&nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve node_id: %w", err)
	}

	return nodeID, nil
}

// upsertEdge inserts a new edge or increments weight if it exists
func upsertEdge(q querier, fromID, toID int) error {
	_, err := q.Exec(`
		INSERT INTO edges (from_node_id, to_node_id, weight)
		VALUES (?, ?, 1)
		ON CONFLICT(from_node_id, to_node_id) DO UPDATE SET
			weight = weight + 1
	`, fromID, toID)

	if err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}
	return nil
}

// EdgeWeight returns how many times source -> target has been recorded
func (s *Storage) EdgeWeight(source, target string) (int, error) {
	var weight int
	err := s.db.QueryRow(`
		SELECT e.weight
		FROM edges e
		JOIN nodes f ON f.node_id = e.from_node_id
		JOIN nodes t ON t.node_id = e.to_node_id
		WHERE f.title = ? AND t.title = ?
	`, source, target).Scan(&weight)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get edge weight: %w", err)
	}
	return weight, nil
}

// AppendEdges upserts both endpoints of every edge and bumps the edge weight,
// all in one transaction
func (s *Storage) AppendEdges(edges []Edge) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	ids := make(map[string]int)
	nodeID := func(title string) (int, error) {
		if id, ok := ids[title]; ok {
			return id, nil
		}
		id, err := upsertNode(tx, title)
		if err != nil {
			return 0, err
		}
		ids[title] = id
		return id, nil
	}

	for _, edge := range edges {
		fromID, err := nodeID(edge.Source)
		if err != nil {
			tx.Rollback()
			return err
		}
		toID, err := nodeID(edge.Target)
		if err != nil {
			tx.Rollback()
			return err
		}
		if err := upsertEdge(tx, fromID, toID); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edges: %w", err)
	}
	return nil
}

// GetStats returns node and distinct edge counts
func (s *Storage) GetStats() (nodeCount, edgeCount int, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&nodeCount); err != nil {
		return 0, 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&edgeCount); err != nil {
		return 0, 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return nodeCount, edgeCount, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
