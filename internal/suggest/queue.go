package suggest

import "container/heap"

// Item is one suggested completion.
type Item struct {
	Term string
	// Source names the suggester that produced the item.
	Source string
	// Partition is the partition the term was scored in. Items are never
	// combined across partitions, so (Term, Partition) identifies an item.
	Partition string
	Score     uint64
}

// Queue keeps the highest-scoring items offered to it, up to a fixed
// capacity. Among equal scores the earlier insertion wins.
type Queue struct {
	items itemHeap
	size  int
	seq   uint64
}

// NewQueue creates a queue holding at most size items.
func NewQueue(size int) *Queue {
	if size < 0 {
		size = 0
	}
	return &Queue{size: size, items: make(itemHeap, 0, min(size, 1024))}
}

// Insert offers it to the queue. When the queue is full the lowest-scoring
// item is evicted, but only for a strictly higher score. Insert reports
// whether it was kept.
func (q *Queue) Insert(it Item) bool {
	if q.size == 0 {
		return false
	}
	q.seq++
	e := entry{item: it, seq: q.seq}

	if len(q.items) < q.size {
		heap.Push(&q.items, e)
		return true
	}
	if it.Score <= q.items[0].item.Score {
		return false
	}
	q.items[0] = e
	heap.Fix(&q.items, 0)
	return true
}

// Len returns the number of items held.
func (q *Queue) Len() int { return len(q.items) }

// Drain empties the queue, returning its items by descending score.
func (q *Queue) Drain() []Item {
	result := make([]Item, len(q.items))
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&q.items).(entry).item
	}
	return result
}

type entry struct {
	item Item
	seq  uint64
}

// itemHeap is a min-heap on score. Among equal scores the latest insertion
// sits on top, so it is evicted first and drained after earlier ones.
type itemHeap []entry

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].item.Score != h[j].item.Score {
		return h[i].item.Score < h[j].item.Score
	}
	return h[i].seq > h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
