// Package dedup prevents a command from being applied twice when it
// arrives over both the local and cloud transports, or is re-delivered
// by the relay.
package dedup

import (
	"sort"
	"time"
)

const (
	// DefaultTTL is how long a commandId suppresses repeats
	DefaultTTL = 5 * time.Second
	// DefaultMaxSize bounds the cache regardless of TTL
	DefaultMaxSize = 50
)

// Deduper is a bounded, time-windowed recency cache of commandIds.
//
// It is not synchronized: callers must invoke it from the single
// sequencing point that serializes command application for one
// receiver. A Deduper must not be shared across displays; a command
// replayed to one display is not a duplicate for another.
type Deduper struct {
	ttl     time.Duration
	maxSize int
	seen    map[string]time.Time
	now     func() time.Time
}

// New creates a Deduper with the given window and size bound. Zero
// values select the defaults.
func New(ttl time.Duration, maxSize int) *Deduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Deduper{
		ttl:     ttl,
		maxSize: maxSize,
		seen:    make(map[string]time.Time),
		now:     time.Now,
	}
}

// IsDuplicate reports whether commandID was already seen within the
// window, recording it when it was not. Commands without an id are
// never deduplicated.
func (d *Deduper) IsDuplicate(commandID string) bool {
	if commandID == "" {
		return false
	}

	now := d.now()
	d.evict(now)

	if _, ok := d.seen[commandID]; ok {
		return true
	}
	d.seen[commandID] = now
	return false
}

// Len returns the current number of cached entries
func (d *Deduper) Len() int {
	return len(d.seen)
}

// evict drops expired entries first, then the oldest remaining entries
// until the cache is back under the size bound.
func (d *Deduper) evict(now time.Time) {
	for id, seenAt := range d.seen {
		if now.Sub(seenAt) > d.ttl {
			delete(d.seen, id)
		}
	}

	if len(d.seen) < d.maxSize {
		return
	}

	type entry struct {
		id     string
		seenAt time.Time
	}
	entries := make([]entry, 0, len(d.seen))
	for id, seenAt := range d.seen {
		entries = append(entries, entry{id, seenAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seenAt.Before(entries[j].seenAt)
	})

	for i := 0; len(d.seen) >= d.maxSize && i < len(entries); i++ {
		delete(d.seen, entries[i].id)
	}
}
