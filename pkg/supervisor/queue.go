package supervisor

import (
	"context"
	"sync"

	"github.com/mash-protocol/wifiprov-go/pkg/intake"
)

// candidateQueue is a FIFO of candidates fed by intake goroutines and
// drained by the run loop. push never blocks.
type candidateQueue struct {
	mu     sync.Mutex
	items  []intake.Candidate
	notify chan struct{}
}

func newCandidateQueue() *candidateQueue {
	return &candidateQueue{notify: make(chan struct{}, 1)}
}

func (q *candidateQueue) push(c intake.Candidate) int {
	q.mu.Lock()
	q.items = append(q.items, c)
	n := len(q.items)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return n
}

func (q *candidateQueue) pop() (intake.Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return intake.Candidate{}, false
	}
	c := q.items[0]
	q.items[0] = intake.Candidate{}
	q.items = q.items[1:]
	return c, true
}

// wait pops the next candidate, blocking until one arrives or ctx ends.
func (q *candidateQueue) wait(ctx context.Context) (intake.Candidate, error) {
	for {
		if c, ok := q.pop(); ok {
			return c, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return intake.Candidate{}, ctx.Err()
		}
	}
}

// discard empties the queue and returns how many candidates were dropped.
func (q *candidateQueue) discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *candidateQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
