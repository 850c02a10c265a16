package retrieval

import "container/heap"

// topN keeps the best n candidates seen so far. The root is the weakest
// kept candidate: lowest score, and on ties the largest doc id.
type topN struct {
	h     candidateHeap
	limit int
}

func newTopN(limit int) *topN {
	return &topN{h: make(candidateHeap, 0, min(limit, 1024)), limit: limit}
}

func (t *topN) offer(c Candidate) {
	if t.h.Len() < t.limit {
		heap.Push(&t.h, c)
		return
	}
	if worse(t.h[0], c) {
		t.h[0] = c
		heap.Fix(&t.h, 0)
	}
}

// sorted drains the heap best-first.
func (t *topN) sorted() []Candidate {
	out := make([]Candidate, t.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(Candidate)
	}
	return out
}

// worse reports whether a ranks strictly below b.
func worse(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

type candidateHeap []Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
