package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// FrontierStore persists the deferred work of each seed as one JSON file per
// seed. Saving replaces the seed's previous frontier entirely.
type FrontierStore struct {
	dir    string
	legacy bool
}

// NewFrontierStore stores checkpoints under dir. With legacy set, entries are
// written as bare article titles and their depth is not kept.
func NewFrontierStore(dir string, legacy bool) *FrontierStore {
	return &FrontierStore{dir: dir, legacy: legacy}
}

type frontierEntry struct {
	Article *string `json:"article"`
	Depth   int     `json:"depth"`
}

// SeedKey turns a seed title into a file-name-safe token. Letters, digits,
// '-' and '.' pass through, spaces become '_' and every other byte is
// percent-encoded, so distinct seeds never share a key.
func SeedKey(seed string) string {
	var b strings.Builder
	for i := 0; i < len(seed); i++ {
		c := seed[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('_')
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Path returns the checkpoint file of seed
func (s *FrontierStore) Path(seed string) string {
	return filepath.Join(s.dir, "leaves_"+SeedKey(seed)+".json")
}

// Load returns the seed's saved frontier with MaxDepth set to maxDepth. A
// missing checkpoint yields an empty slice. Legacy bare-title entries resume
// at depth 0.
func (s *FrontierStore) Load(seed string, maxDepth int) ([]WorkItem, error) {
	path := s.Path(seed)
	data, err := readIfExists(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []WorkItem{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCheckpoint, path, err)
	}

	items := make([]WorkItem, 0, len(raw))
	for i, msg := range raw {
		item, err := decodeFrontierEntry(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: entry %d: %v", ErrMalformedCheckpoint, path, i, err)
		}
		item.MaxDepth = maxDepth
		items = append(items, item)
	}
	return items, nil
}

func decodeFrontierEntry(msg json.RawMessage) (WorkItem, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var title string
		if err := json.Unmarshal(trimmed, &title); err != nil {
			return WorkItem{}, err
		}
		return WorkItem{Article: title}, nil
	}

	var entry frontierEntry
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		return WorkItem{}, err
	}
	if entry.Article == nil {
		return WorkItem{}, fmt.Errorf("missing article")
	}
	if entry.Depth < 0 {
		return WorkItem{}, fmt.Errorf("negative depth %d", entry.Depth)
	}
	return WorkItem{Article: *entry.Article, Depth: entry.Depth}, nil
}

// Save overwrites the seed's checkpoint with items
func (s *FrontierStore) Save(seed string, items []WorkItem) error {
	var payload any
	if s.legacy {
		titles := make([]string, 0, len(items))
		for _, item := range items {
			titles = append(titles, item.Article)
		}
		payload = titles
	} else {
		entries := make([]frontierEntry, 0, len(items))
		for _, item := range items {
			article := item.Article
			entries = append(entries, frontierEntry{Article: &article, Depth: item.Depth})
		}
		payload = entries
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal frontier: %w", err)
	}

	return writeFileAtomic(s.Path(seed), buf.Bytes())
}
