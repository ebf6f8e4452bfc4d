package bucket

import (
	"container/list"
	"time"

	"corkboard/internal/ratelimit/models"
)

type lruEntry struct {
	record    models.Record
	expiresAt time.Time
}

// ttlLRU is a bounded map of window records. Entries expire at a fixed
// instant set on insert (reads and increments never extend it) and the least
// recently used entry is evicted once capacity is reached. Not safe for
// concurrent use; the store serializes access.
type ttlLRU struct {
	capacity  int
	ll        *list.List
	items     map[string]*list.Element
	evictions int64
}

func newTTLLRU(capacity int) *ttlLRU {
	return &ttlLRU{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, min(capacity, 1024)),
	}
}

// get returns the live record for key. Expired entries are dropped and
// reported as a miss.
func (c *ttlLRU) get(key string, now time.Time) (models.Record, bool) {
	elem, ok := c.items[key]
	if !ok {
		return models.Record{}, false
	}
	entry := elem.Value.(*lruEntry)
	if !now.Before(entry.expiresAt) {
		c.remove(elem)
		return models.Record{}, false
	}
	c.ll.MoveToFront(elem)
	return entry.record, true
}

// put stores record. A new key expires at expiresAt; an existing key keeps
// its original expiry.
func (c *ttlLRU) put(record models.Record, expiresAt time.Time) {
	if elem, ok := c.items[record.Key]; ok {
		elem.Value.(*lruEntry).record = record
		c.ll.MoveToFront(elem)
		return
	}
	if c.capacity > 0 && c.ll.Len() >= c.capacity {
		if oldest := c.ll.Back(); oldest != nil {
			c.remove(oldest)
			c.evictions++
		}
	}
	c.items[record.Key] = c.ll.PushFront(&lruEntry{record: record, expiresAt: expiresAt})
}

func (c *ttlLRU) delete(key string) {
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// purgeExpired drops every entry whose window has closed and returns how
// many were removed.
func (c *ttlLRU) purgeExpired(now time.Time) int {
	removed := 0
	var next *list.Element
	for elem := c.ll.Front(); elem != nil; elem = next {
		next = elem.Next()
		if !now.Before(elem.Value.(*lruEntry).expiresAt) {
			c.remove(elem)
			removed++
		}
	}
	return removed
}

func (c *ttlLRU) len() int {
	return c.ll.Len()
}

func (c *ttlLRU) remove(elem *list.Element) {
	delete(c.items, elem.Value.(*lruEntry).record.Key)
	c.ll.Remove(elem)
}
