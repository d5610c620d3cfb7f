package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

// Tracker holds and manages crawl metrics for one seed run
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker(seed string) *Tracker {
	return &Tracker{
		data: storage.Metrics{
			Seed:      seed,
			StartTime: time.Now(),
		},
	}
}

// ArticleExpanded counts an article whose links were fetched
func (t *Tracker) ArticleExpanded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ArticlesExpanded++
}

// TopicsAdmitted counts new topics enqueued against the budget
func (t *Tracker) TopicsAdmitted(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TopicsAdmitted += n
}

// EdgesRecorded counts recorded edges
func (t *Tracker) EdgesRecorded(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EdgesRecorded += n
}

// FrontierDeferred counts items pushed to the frontier
func (t *Tracker) FrontierDeferred(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.FrontierEntries += n
}

// RecordLinkFetch records one link fetch and its duration
func (t *Tracker) RecordLinkFetch(duration time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.LinkFetches++
	if !ok {
		t.data.LinkFetchFailures++
	}
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// RecordClassification records one classifier call
func (t *Tracker) RecordClassification(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ClassifierCalls++
	if !ok {
		t.data.ClassifierFailures++
	}
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs

	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// Finish stamps the end time and termination reason
func (t *Tracker) Finish(reason string) storage.Metrics {
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.mu.Unlock()

	return t.GetSnapshot()
}

// WriteToFile exports finished metrics of every seed run as a JSON array
func WriteToFile(path string, runs []storage.Metrics) error {
	jsonData, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("[%s] Articles: %d expanded | Topics: %d admitted | Edges: %d | Frontier: %d | Fetches: %d (%d failed) | Classified: %d (%d failed)",
		t.data.Seed,
		t.data.ArticlesExpanded,
		t.data.TopicsAdmitted,
		t.data.EdgesRecorded,
		t.data.FrontierEntries,
		t.data.LinkFetches,
		t.data.LinkFetchFailures,
		t.data.ClassifierCalls,
		t.data.ClassifierFailures,
	)
}
