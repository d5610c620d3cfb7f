package memory

import "github.com/alvmarrod/wiki-weaver/internal/storage"

// workQueue is a FIFO of pending work. It is not safe for concurrent use;
// State guards it with its own mutex.
type workQueue struct {
	items []storage.WorkItem
}

func (q *workQueue) push(items ...storage.WorkItem) {
	q.items = append(q.items, items...)
}

// popN removes and returns up to n items from the head
func (q *workQueue) popN(n int) []storage.WorkItem {
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]storage.WorkItem, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]
	return batch
}

// drain empties the queue and returns what it held
func (q *workQueue) drain() []storage.WorkItem {
	items := q.items
	q.items = nil
	return items
}

func (q *workQueue) size() int {
	return len(q.items)
}
