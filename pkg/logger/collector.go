package logger

import (
	"sync"
	"time"
)

// Entry is one collected log record.
type Entry struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	Count   int                    `json:"count"`
}

// Collector keeps the most recent warn/error entries in a bounded ring.
// Consecutive duplicates (same level and message) are coalesced into one
// entry with an incremented count, so repeated failures do not flood the
// operator surface.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	head    int
	size    int
	cap     int
}

// NewCollector creates a ring holding up to capacity entries.
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = 256
	}
	return &Collector{
		entries: make([]Entry, capacity),
		cap:     capacity,
	}
}

// Add records one entry, coalescing with the newest if it repeats.
func (c *Collector) Add(level, message string, fields map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size > 0 {
		newest := (c.head + c.size - 1) % c.cap
		if c.entries[newest].Level == level && c.entries[newest].Message == message {
			c.entries[newest].Count++
			c.entries[newest].Time = time.Now()
			return
		}
	}

	e := Entry{Time: time.Now(), Level: level, Message: message, Fields: fields, Count: 1}
	if c.size < c.cap {
		c.entries[(c.head+c.size)%c.cap] = e
		c.size++
		return
	}
	c.entries[c.head] = e
	c.head = (c.head + 1) % c.cap
}

// Recent returns up to n newest entries, newest first.
func (c *Collector) Recent(n int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > c.size {
		n = c.size
	}
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (c.head + c.size - 1 - i + c.cap) % c.cap
		out = append(out, c.entries[idx])
	}
	return out
}

// Len returns the number of stored entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
