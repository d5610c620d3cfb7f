package storage

import "time"

// Edge represents a directed link between two articles
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// WorkItem is a pending or deferred traversal step
type WorkItem struct {
	Article  string
	Depth    int
	MaxDepth int
}

// Terminal reports whether the item can no longer be expanded
func (w WorkItem) Terminal() bool {
	return w.Depth >= w.MaxDepth
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	Seed               string    `json:"seed"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	ArticlesExpanded   int       `json:"articles_expanded"`
	TopicsAdmitted     int       `json:"topics_admitted"`
	EdgesRecorded      int       `json:"edges_recorded"`
	FrontierEntries    int       `json:"frontier_entries"`
	LinkFetches        int       `json:"link_fetches"`
	LinkFetchFailures  int       `json:"link_fetch_failures"`
	ClassifierCalls    int       `json:"classifier_calls"`
	ClassifierFailures int       `json:"classifier_failures"`
	TotalFetchTimeMs   int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs     int64     `json:"avg_fetch_time_ms"`
	TerminationReason  string    `json:"termination_reason"`
}
