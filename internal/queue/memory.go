package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process queue for tests and the chat harness.
type MemoryQueue struct {
	mu       sync.Mutex
	items    [][]byte
	nonEmpty chan struct{}
}

// NewMemory creates an empty in-memory queue.
func NewMemory() *MemoryQueue {
	return &MemoryQueue{nonEmpty: make(chan struct{}, 1)}
}

// Push appends an element. Test helper mirroring the producer side.
func (q *MemoryQueue) Push(entry []byte) {
	q.mu.Lock()
	q.items = append(q.items, entry)
	q.mu.Unlock()
	select {
	case q.nonEmpty <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			head := q.items[0]
			q.items = q.items[1:]
			if len(q.items) > 0 {
				select {
				case q.nonEmpty <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return head, true, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-deadline.C:
			return nil, false, nil
		case <-q.nonEmpty:
		}
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, entry []byte) error {
	q.Push(entry)
	return nil
}

// Len returns the number of queued elements. Test helper.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Entries returns a copy of the queued elements. Test helper.
func (q *MemoryQueue) Entries() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, len(q.items))
	copy(out, q.items)
	return out
}
