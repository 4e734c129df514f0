package memory

import (
	"container/heap"

	"chunky/internal/domain"
)

// candidateQueue is a min-heap keeping the k best candidates seen so far.
// The root is the worst kept candidate: lowest score, then highest position.
type candidateQueue []domain.Candidate

func (pq candidateQueue) Len() int { return len(pq) }

func (pq candidateQueue) Less(i, j int) bool {
	if pq[i].Score != pq[j].Score {
		return pq[i].Score < pq[j].Score
	}
	return pq[i].Position > pq[j].Position
}

func (pq candidateQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *candidateQueue) Push(x any) {
	*pq = append(*pq, x.(domain.Candidate))
}

func (pq *candidateQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

func (pq *candidateQueue) pushWithLimit(c domain.Candidate, k int) {
	heap.Push(pq, c)
	if pq.Len() > k {
		heap.Pop(pq)
	}
}
