package kafka

import (
	"sync"

	audit "corkboard/pkg/platform/audit"
)

// backlog holds entries awaiting publish in a fixed ring. A full backlog
// overwrites its oldest entry and counts the drop.
type backlog struct {
	mu      sync.Mutex
	ring    []audit.Entry
	start   int
	size    int
	dropped int64
}

func newBacklog(capacity int) *backlog {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &backlog{ring: make([]audit.Entry, capacity)}
}

func (b *backlog) push(entry audit.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := (b.start + b.size) % len(b.ring)
	b.ring[end] = entry
	if b.size < len(b.ring) {
		b.size++
		return
	}
	b.start = (b.start + 1) % len(b.ring)
	b.dropped++
}

// take removes up to n entries, oldest first.
func (b *backlog) take(n int) []audit.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = min(n, b.size)
	if n <= 0 {
		return nil
	}
	out := make([]audit.Entry, n)
	for i := range out {
		idx := (b.start + i) % len(b.ring)
		out[i] = b.ring[idx]
		b.ring[idx] = audit.Entry{}
	}
	b.start = (b.start + n) % len(b.ring)
	b.size -= n
	return out
}

func (b *backlog) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *backlog) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
