package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alvmarrod/wiki-weaver/internal/config"
	"github.com/alvmarrod/wiki-weaver/internal/storage"
	"github.com/alvmarrod/wiki-weaver/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithArgs(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()

	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags(args))

	return loadConfig(cmd, opts)
}

func TestLoadConfig_MissingDefaultFileFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadWithArgs(t)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSeeds, cfg.Seeds)
	assert.Equal(t, 10000, cfg.MaxNewTopics)
}

func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	_, err := loadWithArgs(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seeds: [Physics]\nmax_depth: 2\nmax_new_topics: 50\n"), 0644))

	cfg, err := loadWithArgs(t,
		"-c", path,
		"-s", "Graph theory", "-s", "Topology",
		"--max-new-topics", "0",
		"-w", "3",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"Graph theory", "Topology"}, cfg.Seeds)
	assert.Equal(t, 2, cfg.MaxDepth)
	assert.Equal(t, 0, cfg.MaxNewTopics, "an explicit zero budget survives")
	assert.Equal(t, 3, cfg.ConcurrentWorkers)
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"seeds": ["Physics"]}`), 0644))

	_, err := loadWithArgs(t, "-c", path, "--max-depth=-1")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "wiki-weaver version "+version.Version+"\n", out.String())
}

// topicAPI serves a two-level graph below Science where every page is a topic
func topicAPI(t *testing.T) *httptest.Server {
	t.Helper()

	links := map[string][]string{
		"Science": {"Physics", "Biology"},
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		title := q.Get("titles")
		page := map[string]any{"title": title}

		switch q.Get("prop") {
		case "links":
			var list []map[string]any
			for _, l := range links[title] {
				list = append(list, map[string]any{"ns": 0, "title": l})
			}
			page["links"] = list
		case "categories":
			page["categories"] = []map[string]any{{"ns": 14, "title": "Category:Natural sciences"}}
		}

		json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"pages": []any{page}}})
	}))
}

func TestRootCmd_CrawlsSeedEndToEnd(t *testing.T) {
	server := topicAPI(t)
	defer server.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf(`seeds: [Science]
max_depth: 1
max_new_topics: 10
concurrent_workers: 2
request_timeout_ms: 2000
api_url: %s
edges_csv_path: %s
edges_json_path: %s
frontier_dir: %s
db_path: %s
metrics_path: %s
`,
		server.URL,
		filepath.Join(dir, "edges.csv"),
		filepath.Join(dir, "edges.json"),
		dir,
		filepath.Join(dir, "graph.db"),
		filepath.Join(dir, "metrics.json"),
	)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0644))

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath})
	require.NoError(t, cmd.Execute())

	want := []storage.Edge{
		{Source: "Science", Target: "Physics"},
		{Source: "Science", Target: "Biology"},
	}

	rows, err := storage.NewCSVEdgeFile(filepath.Join(dir, "edges.csv")).LoadEdges()
	require.NoError(t, err)
	assert.Equal(t, want, rows)

	array, err := storage.NewJSONEdgeFile(filepath.Join(dir, "edges.json")).LoadEdges()
	require.NoError(t, err)
	assert.Equal(t, want, array)

	frontier, err := storage.NewFrontierStore(dir, false).Load("Science", 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []storage.WorkItem{
		{Article: "Physics", Depth: 1, MaxDepth: 1},
		{Article: "Biology", Depth: 1, MaxDepth: 1},
	}, frontier)

	data, err := os.ReadFile(filepath.Join(dir, "metrics.json"))
	require.NoError(t, err)
	var runs []storage.Metrics
	require.NoError(t, json.Unmarshal(data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "Science", runs[0].Seed)
	assert.Equal(t, "queue_empty", runs[0].TerminationReason)
	assert.Equal(t, 2, runs[0].TopicsAdmitted)
	assert.Equal(t, 1, runs[0].ArticlesExpanded)

	store, err := storage.NewStorage(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	defer store.Close()
	nodes, edges, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)
}
