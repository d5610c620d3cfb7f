package memory

import (
	"sync"

	"github.com/alvmarrod/wiki-weaver/internal/storage"
)

// StopReason explains why NextBatch returned no work
type StopReason string

const (
	StopNone            StopReason = ""
	StopQueueEmpty      StopReason = "queue_empty"
	StopBudgetExhausted StopReason = "budget_exhausted"
)

// Admission summarizes what happened to the valid links of one article
type Admission struct {
	EdgesOnly int // target already visited: edge recorded, nothing enqueued
	Admitted  int // new target: edge recorded, enqueued, budget spent
	Deferred  int // budget exhausted or overflow: pushed to the frontier
}

// State is the crawl state shared by all workers of one run. Every method
// runs as a single critical section under one mutex, so the budget check,
// the edge, the enqueue and the counter increment are observed together.
type State struct {
	mu           sync.Mutex
	visited      map[string]struct{}
	settled      map[string]struct{}
	expanded     map[string]struct{}
	queue        workQueue
	edges        []storage.Edge
	frontier     []storage.WorkItem
	admitted     int
	maxNewTopics int
}

// NewState creates empty run state with the given new-topic budget
func NewState(maxNewTopics int) *State {
	return &State{
		visited:      make(map[string]struct{}),
		settled:      make(map[string]struct{}),
		expanded:     make(map[string]struct{}),
		maxNewTopics: maxNewTopics,
	}
}

// Budget returns the run's new-topic cap
func (s *State) Budget() int {
	return s.maxNewTopics
}

// SeedVisited marks both endpoints of previously persisted edges as visited
// and settled
func (s *State) SeedVisited(edges []storage.Edge) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, edge := range edges {
		for _, title := range []string{edge.Source, edge.Target} {
			s.visited[title] = struct{}{}
			s.settled[title] = struct{}{}
		}
	}
	return len(s.visited)
}

// Enqueue appends work to the queue without touching the budget
func (s *State) Enqueue(items ...storage.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.push(items...)
}

// NextBatch pops up to n items unless the queue is empty or the budget is spent
func (s *State) NextBatch(n int) ([]storage.WorkItem, StopReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.admitted >= s.maxNewTopics {
		return nil, StopBudgetExhausted
	}
	if s.queue.size() == 0 {
		return nil, StopQueueEmpty
	}
	return s.queue.popN(n), StopNone
}

// DeferIfLeaf pushes item to the frontier when it is too deep or the budget
// is spent, and reports whether it did
func (s *State) DeferIfLeaf(item storage.WorkItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Terminal() || s.admitted >= s.maxNewTopics {
		s.frontier = append(s.frontier, item)
		return true
	}
	return false
}

// MarkExpanded records article as visited and expanded. It returns false if
// the article was already expanded earlier in this run.
func (s *State) MarkExpanded(article string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.expanded[article]; done {
		return false
	}
	s.expanded[article] = struct{}{}
	s.visited[article] = struct{}{}
	return true
}

// IsSettled reports whether article already passed the topic policy, either
// as an endpoint of a persisted edge or as a target admitted in this run.
// Articles that were only expanded are visited but not settled.
func (s *State) IsSettled(article string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.settled[article]
	return ok
}

// Admit records the valid links of source and settles them. Visited targets
// only contribute an edge. New targets are recorded, enqueued at depth and counted against
// the budget while it lasts; once it runs out, the remaining valid links are
// deferred to the frontier along with overflow.
func (s *State) Admit(source string, valid []string, overflow []storage.WorkItem, depth, maxDepth int) Admission {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Admission
	for i, target := range valid {
		s.settled[target] = struct{}{}
		if _, seen := s.visited[target]; seen {
			s.edges = append(s.edges, storage.Edge{Source: source, Target: target})
			result.EdgesOnly++
			continue
		}

		if s.admitted >= s.maxNewTopics {
			for _, rest := range valid[i:] {
				s.frontier = append(s.frontier, storage.WorkItem{Article: rest, Depth: depth, MaxDepth: maxDepth})
				result.Deferred++
			}
			break
		}

		s.edges = append(s.edges, storage.Edge{Source: source, Target: target})
		s.queue.push(storage.WorkItem{Article: target, Depth: depth, MaxDepth: maxDepth})
		// Claim the target now so a concurrent article cannot enqueue it twice
		s.visited[target] = struct{}{}
		s.admitted++
		result.Admitted++
	}

	s.frontier = append(s.frontier, overflow...)
	result.Deferred += len(overflow)
	return result
}

// Defer pushes items to the frontier unchanged
func (s *State) Defer(items ...storage.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frontier = append(s.frontier, items...)
}

// DrainQueue moves every still-queued item to the frontier and returns how
// many moved
func (s *State) DrainQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.queue.drain()
	s.frontier = append(s.frontier, items...)
	return len(items)
}

// Edges returns a copy of the edges recorded so far
func (s *State) Edges() []storage.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := make([]storage.Edge, len(s.edges))
	copy(edges, s.edges)
	return edges
}

// Frontier returns a copy of the deferred items
func (s *State) Frontier() []storage.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	frontier := make([]storage.WorkItem, len(s.frontier))
	copy(frontier, s.frontier)
	return frontier
}

// Visited returns a copy of the visited set
func (s *State) Visited() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	visited := make(map[string]struct{}, len(s.visited))
	for k := range s.visited {
		visited[k] = struct{}{}
	}
	return visited
}

// GetStats returns current counters
func (s *State) GetStats() (admitted, expanded, queued, edges, frontier int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.admitted, len(s.expanded), s.queue.size(), len(s.edges), len(s.frontier)
}
