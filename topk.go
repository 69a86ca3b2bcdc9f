// topk.go - TopK: a bounded stable binary heap over a compiled multi-field
// comparator, replacing an O(n log n) sort followed by a truncation with
// O(n log k) for k << n.

package aggo

import "container/heap"

type topKItem struct {
	doc   Document
	rowID RowId
	seq   int64 // insertion order, for stable tie-breaking
}

// topKHeap is a max-heap on the "worst" element by the configured sort
// order, so that when full, popping the root evicts the worst candidate.
type topKHeap struct {
	items []topKItem
	less  func(a, b topKItem) bool // "a sorts before b" in the OUTPUT order
}

func (h *topKHeap) Len() int { return len(h.items) }
func (h *topKHeap) Less(i, j int) bool {
	// Max-heap on output order: the root is the worst (sorts last).
	return h.less(h.items[j], h.items[i])
}
func (h *topKHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topKHeap) Push(x interface{}) { h.items = append(h.items, x.(topKItem)) }
func (h *topKHeap) Pop() interface{} {
	n := len(h.items)
	it := h.items[n-1]
	h.items = h.items[:n-1]
	return it
}

// TopK collects up to k (document, RowId) pairs in the order defined by
// keys, discarding the rest as it goes so memory stays bounded at k.
type TopK struct {
	k    int
	heap *topKHeap
	seq  int64
}

// NewTopK builds a TopK comparator from keys using the shared Value
// Compare ordering, with ties broken by insertion sequence so sort
// remains stable.
func NewTopK(k int, keys []SortKey) *TopK {
	less := func(a, b topKItem) bool {
		for _, sk := range keys {
			av := a.doc.Get(sk.Field)
			bv := b.doc.Get(sk.Field)
			c := Compare(av, bv)
			if !sk.Ascending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return a.seq < b.seq
	}
	return &TopK{k: k, heap: &topKHeap{less: less}}
}

// Add offers one row for inclusion in the top k.
func (t *TopK) Add(doc Document, rowID RowId) {
	if t.k <= 0 {
		return
	}
	item := topKItem{doc: doc, rowID: rowID, seq: t.seq}
	t.seq++
	if t.heap.Len() < t.k {
		heap.Push(t.heap, item)
		return
	}
	// heap.items[0] is the current worst surviving candidate.
	if t.heap.less(item, t.heap.items[0]) {
		t.heap.items[0] = item
		heap.Fix(t.heap, 0)
	}
}

// Result drains the heap into ascending output order (best first).
func (t *TopK) Result() []topKItem {
	out := make([]topKItem, t.heap.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(t.heap).(topKItem)
	}
	return out
}
