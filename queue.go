package serialmcp

import (
	"sync"
	"time"
)

// byteQueue is a thread-safe FIFO of byte chunks with a non-blocking bounded
// push and a timeout pop. The reader loop is the only producer and must never
// block, so a push against a full queue fails instead of waiting.
type byteQueue struct {
	mu    sync.Mutex
	items [][]byte
	limit int // <= 0 means unbounded
	wake  chan struct{}
}

func newByteQueue(limit int) *byteQueue {
	return &byteQueue{
		limit: limit,
		wake:  make(chan struct{}),
	}
}

// push appends an item, reporting false when the queue is at capacity.
func (q *byteQueue) push(item []byte) bool {
	q.mu.Lock()
	if q.limit > 0 && len(q.items) >= q.limit {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	old := q.wake
	q.wake = make(chan struct{})
	q.mu.Unlock()
	close(old)
	return true
}

// pop removes and returns the oldest item, waiting up to timeout for one to
// arrive. ok is false when the queue stayed empty for the whole wait.
func (q *byteQueue) pop(timeout time.Duration) ([]byte, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		wake := q.wake
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
			return nil, false
		}
	}
}

// drain removes and returns everything queued at the time of the call.
func (q *byteQueue) drain() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// snapshot returns a copy of the queue contents without consuming them.
func (q *byteQueue) snapshot() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([][]byte, len(q.items))
	copy(items, q.items)
	return items
}

func (q *byteQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
