package crawler

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/alvmarrod/wiki-weaver/internal/memory"
	"github.com/alvmarrod/wiki-weaver/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ArticleSource returns the outbound link titles of an article. Failures are
// the implementation's business and must come back as an empty result.
type ArticleSource interface {
	FetchLinks(ctx context.Context, title string) []string
}

// TopicClassifier decides whether a title may become an edge target.
// Failures must come back as false.
type TopicClassifier interface {
	IsAdmissible(ctx context.Context, title string) bool
}

// EdgeSink loads edges recorded by earlier runs and accumulates new ones
type EdgeSink interface {
	LoadEdges() ([]storage.Edge, error)
	AppendEdges(edges []storage.Edge) error
}

// FrontierStore persists deferred work per seed
type FrontierStore interface {
	Load(seed string, maxDepth int) ([]storage.WorkItem, error)
	Save(seed string, items []storage.WorkItem) error
}

// Recorder receives crawl progress counters
type Recorder interface {
	ArticleExpanded()
	TopicsAdmitted(n int)
	EdgesRecorded(n int)
	FrontierDeferred(n int)
}

type nopRecorder struct{}

func (nopRecorder) ArticleExpanded()     {}
func (nopRecorder) TopicsAdmitted(int)   {}
func (nopRecorder) EdgesRecorded(int)    {}
func (nopRecorder) FrontierDeferred(int) {}

// Termination reasons reported in Result.Reason
const (
	ReasonQueueEmpty      = string(memory.StopQueueEmpty)
	ReasonBudgetExhausted = string(memory.StopBudgetExhausted)
	ReasonSignal          = "signal"
)

// Result is the outcome of one seed run
type Result struct {
	Seed     string
	Edges    []storage.Edge
	Frontier []storage.WorkItem
	Admitted int
	Expanded int
	Reason   string
	visited  map[string]struct{}
}

// HasVisited reports whether title ended the run in the visited set
func (r *Result) HasVisited(title string) bool {
	_, ok := r.visited[title]
	return ok
}

// Engine drives a bounded-concurrency traversal from a seed
type Engine struct {
	source     ArticleSource
	classifier TopicClassifier
	edges      EdgeSink
	frontier   FrontierStore
	workers    int
	recorder   Recorder
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers sets the batch size; non-positive values are ignored
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRecorder sets the progress recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// NewEngine creates an engine. The default pool size is the number of CPUs.
func NewEngine(source ArticleSource, classifier TopicClassifier, edges EdgeSink, frontier FrontierStore, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		classifier: classifier,
		edges:      edges,
		frontier:   frontier,
		workers:    runtime.NumCPU(),
		recorder:   nopRecorder{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run crawls from seed until the queue empties, the budget is spent or ctx is
// cancelled, then appends the new edges to the sink and replaces the seed's
// frontier. Cancellation only stops dispatch: the batch in flight finishes
// and queued work is kept in the frontier. A worker failure aborts the run
// before anything is flushed.
func (e *Engine) Run(ctx context.Context, seed string, maxDepth, maxNewTopics int) (*Result, error) {
	if maxDepth < 1 {
		return nil, fmt.Errorf("max depth must be >= 1, got %d", maxDepth)
	}
	if maxNewTopics < 0 {
		return nil, fmt.Errorf("max new topics must be >= 0, got %d", maxNewTopics)
	}

	logrus.Infof("Building topic graph from seed %q (depth=%d, max new topics=%d, workers=%d)",
		seed, maxDepth, maxNewTopics, e.workers)

	state := memory.NewState(maxNewTopics)

	prior, err := e.edges.LoadEdges()
	if err != nil {
		return nil, fmt.Errorf("failed to load existing edges: %w", err)
	}
	logrus.Infof("Loaded %d topics from the existing dataset", state.SeedVisited(prior))

	items, err := e.frontier.Load(seed, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to load frontier for %q: %w", seed, err)
	}
	if len(items) == 0 {
		items = []storage.WorkItem{{Article: seed, Depth: 0, MaxDepth: maxDepth}}
	} else {
		logrus.Infof("Resuming %q from %d frontier entries", seed, len(items))
	}
	state.Enqueue(items...)

	// External calls are never cancelled mid-flight
	callCtx := context.WithoutCancel(ctx)

	reason := ""
	batchNum := 0
	for reason == "" {
		if ctx.Err() != nil {
			reason = ReasonSignal
			break
		}

		batch, stop := state.NextBatch(e.workers)
		if stop != memory.StopNone {
			reason = string(stop)
			break
		}

		batchNum++
		started := time.Now()
		if err := e.runBatch(callCtx, state, batch); err != nil {
			return nil, fmt.Errorf("batch %d failed: %w", batchNum, err)
		}

		admitted, expanded, queued, edges, frontier := state.GetStats()
		logrus.Infof("Batch %d: %d items in %v | admitted=%d expanded=%d queued=%d edges=%d frontier=%d",
			batchNum, len(batch), time.Since(started).Round(time.Millisecond),
			admitted, expanded, queued, edges, frontier)
	}

	if reason == ReasonBudgetExhausted {
		logrus.Info("Reached the maximum number of new topics. Stopping...")
	}
	if drained := state.DrainQueue(); drained > 0 {
		logrus.Infof("Moved %d unprocessed queue entries to the frontier", drained)
		e.recorder.FrontierDeferred(drained)
	}

	admitted, expanded, _, _, _ := state.GetStats()
	result := &Result{
		Seed:     seed,
		Edges:    state.Edges(),
		Frontier: state.Frontier(),
		Admitted: admitted,
		Expanded: expanded,
		Reason:   reason,
		visited:  state.Visited(),
	}

	if err := e.flush(result); err != nil {
		return nil, err
	}

	logrus.Infof("Seed %q done (%s): %d edges, %d frontier entries, %d new topics",
		seed, reason, len(result.Edges), len(result.Frontier), result.Admitted)
	return result, nil
}

// runBatch processes every item of the batch in parallel and waits for all
// of them. The first worker error, including a recovered panic, is returned.
func (e *Engine) runBatch(ctx context.Context, state *memory.State, batch []storage.WorkItem) error {
	var g errgroup.Group

	for _, item := range batch {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker panic processing %q: %v", item.Article, r)
				}
			}()
			return e.process(ctx, state, item)
		})
	}

	return g.Wait()
}

// process expands a single work item
func (e *Engine) process(ctx context.Context, state *memory.State, item storage.WorkItem) error {
	if state.DeferIfLeaf(item) {
		logrus.Debugf("Leaf %q (depth=%d/%d) deferred", item.Article, item.Depth, item.MaxDepth)
		e.recorder.FrontierDeferred(1)
		return nil
	}

	if !state.MarkExpanded(item.Article) {
		logrus.Debugf("Skipping %q: already expanded in this run", item.Article)
		return nil
	}
	e.recorder.ArticleExpanded()

	links := e.source.FetchLinks(ctx, item.Article)

	next := item.Depth + 1
	candidates, overflow := partitionLinks(links, state.Budget())
	deferred := make([]storage.WorkItem, 0, len(overflow))
	for _, link := range overflow {
		deferred = append(deferred, storage.WorkItem{Article: link, Depth: next, MaxDepth: item.MaxDepth})
	}

	// Settled titles passed the policy before and are not re-classified
	valid := make([]string, 0, len(candidates))
	for _, link := range candidates {
		if state.IsSettled(link) || e.classifier.IsAdmissible(ctx, link) {
			valid = append(valid, link)
		}
	}

	if len(valid) == 0 {
		logrus.Debugf("Dead end %q: %d links, none admissible", item.Article, len(links))
		state.Defer(append(deferred, item)...)
		e.recorder.FrontierDeferred(len(deferred) + 1)
		return nil
	}

	adm := state.Admit(item.Article, valid, deferred, next, item.MaxDepth)
	e.recorder.EdgesRecorded(adm.EdgesOnly + adm.Admitted)
	e.recorder.TopicsAdmitted(adm.Admitted)
	e.recorder.FrontierDeferred(adm.Deferred)

	logrus.Debugf("Expanded %q: %d links, %d valid, %d new, %d edge-only, %d deferred",
		item.Article, len(links), len(valid), adm.Admitted, adm.EdgesOnly, adm.Deferred)
	return nil
}

// partitionLinks splits links into those to classify (at most limit) and the
// overflow that is deferred unclassified
func partitionLinks(links []string, limit int) (candidates, overflow []string) {
	if len(links) <= limit {
		return links, nil
	}
	return links[:limit], links[limit:]
}

// flush appends the run's edges and replaces the seed's frontier
func (e *Engine) flush(result *Result) error {
	if err := e.edges.AppendEdges(result.Edges); err != nil {
		return fmt.Errorf("failed to save edges: %w", err)
	}
	if err := e.frontier.Save(result.Seed, result.Frontier); err != nil {
		return fmt.Errorf("failed to save frontier for %q: %w", result.Seed, err)
	}
	return nil
}
