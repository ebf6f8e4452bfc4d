package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	audit "corkboard/pkg/platform/audit"
)

// DefaultMaxEntries caps the in-memory log. The oldest entries are dropped
// first once the cap is reached.
const DefaultMaxEntries = 100000

// InMemoryStore keeps entries in arrival order. Used when no database is
// configured and in tests.
type InMemoryStore struct {
	mu         sync.RWMutex
	entries    []audit.Entry
	maxEntries int
}

func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithCap(DefaultMaxEntries)
}

// NewInMemoryStoreWithCap creates a store holding at most maxEntries.
func NewInMemoryStoreWithCap(maxEntries int) *InMemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &InMemoryStore{maxEntries: maxEntries}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

// Search returns matches newest first.
func (s *InMemoryStore) Search(_ context.Context, filter audit.Filter) ([]audit.Entry, int, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	var matched []audit.Entry
	for _, e := range s.entries {
		if filter.Matches(e) {
			matched = append(matched, cloneEntry(e))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []audit.Entry{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)
	return matched[filter.Offset:end], total, nil
}

func (s *InMemoryStore) Stats(_ context.Context, userID string, since time.Time) (*audit.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := audit.NewStats(userID, since)
	for _, e := range s.entries {
		if e.Timestamp.Before(since) {
			continue
		}
		if userID != "" && e.UserID != userID {
			continue
		}
		stats.Add(e.Action, e.Success, 1)
	}
	return stats, nil
}

func (s *InMemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]audit.Entry, 0, len(s.entries))
	var purged int64
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return purged, nil
}

// Len returns the number of stored entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cloneEntry(e audit.Entry) audit.Entry {
	if e.Metadata != nil {
		md := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}
