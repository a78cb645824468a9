package vecdb

import (
	"container/heap"
	"fmt"
	"math"
)

// Result is one search hit: a key and its Euclidean distance to the query.
type Result struct {
	Key      string
	Distance float32
}

// Search returns up to k nearest neighbours of query by ascending
// Euclidean distance. Deleted slots are skipped. An empty store returns
// an empty, nil-error result.
func (db *DB) Search(query []float32, k int) ([]Result, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed.Load() {
		return nil, wrap(ErrClosed, withOp("search"))
	}

	if err := validateVector(query, db.options.Dimension); err != nil {
		return nil, wrap(err, withOp("search"))
	}

	if k <= 0 || db.index.SlotCount() == 0 {
		return []Result{}, nil
	}

	h := &searchHeap{}
	dim := int(db.options.Dimension)

	for id := 0; id < db.index.SlotCount(); id++ {
		if db.index.Deleted[id] {
			continue
		}

		slot := db.index.Vectors[id*dim : (id+1)*dim]
		distSq := euclideanDistSq(query, slot)

		item := searchItem{id: uint32(id), distSq: distSq} //nolint:gosec

		switch {
		case h.Len() < k:
			heap.Push(h, item)
		case distSqLess(distSq, (*h)[0].distSq):
			(*h)[0] = item
			heap.Fix(h, 0)
		}
	}

	sorted := h.sortedAscending()
	results := make([]Result, len(sorted))

	for i, item := range sorted {
		results[i] = Result{
			Key:      db.index.IDToKey[item.id],
			Distance: float32(math.Sqrt(float64(item.distSq))),
		}
	}

	return results, nil
}

func euclideanDistSq(a, b []float32) float32 {
	var sum float32

	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

// searchItem is one candidate in the bounded max-heap; distSqLess decides
// ordering, with NaN treated as greater than every other value so a stray
// NaN is the first thing evicted rather than poisoning the top-k.
type searchItem struct {
	id     uint32
	distSq float32
}

func distSqLess(a, b float32) bool {
	if math.IsNaN(float64(a)) {
		return false
	}

	if math.IsNaN(float64(b)) {
		return true
	}

	return a < b
}

// searchHeap is a max-heap on distSq: its root (index 0) is always the
// worst of the current top-k, so a better candidate can evict it in
// O(log k) without ever scanning the whole heap.
type searchHeap []searchItem

func (h searchHeap) Len() int { return len(h) }

func (h searchHeap) Less(i, j int) bool {
	// Max-heap: the "lesser" element for container/heap's purposes is the
	// one with the *larger* distance, so Pop/top always surfaces the
	// current worst candidate.
	return distSqLess(h[j].distSq, h[i].distSq)
}

func (h searchHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *searchHeap) Push(x any) {
	item, ok := x.(searchItem)
	if !ok {
		panic(fmt.Sprintf("vecdb: searchHeap.Push got %T, want searchItem", x))
	}

	*h = append(*h, item)
}

func (h *searchHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

// sortedAscending drains the heap into ascending distSq order without
// mutating the receiver's backing array in a way that corrupts it mid-use:
// it copies first, matching heap.Sort's pattern of popping a max-heap to
// get ascending order cheaply instead of re-sorting from scratch.
func (h *searchHeap) sortedAscending() []searchItem {
	work := make(searchHeap, len(*h))
	copy(work, *h)

	out := make([]searchItem, len(work))

	for i := len(work) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&work).(searchItem) //nolint:forcetypeassert
	}

	return out
}
