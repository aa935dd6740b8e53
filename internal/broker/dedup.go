package broker

import (
	"sync"
	"time"
)

// Deduper remembers message ids for ttl so QoS 1 redeliveries are applied
// once. At most max ids are kept; expired ids are dropped first.
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
	now  func() time.Time
}

func NewDeduper(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 1000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max), now: time.Now}
}

// ShouldProcess reports whether id has not been seen within ttl and records
// it. An empty id is always processed.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.evictLocked(now, id)
	}
	return true
}

// evictLocked drops expired ids, then the ids closest to expiry, until the
// set fits. keep is never evicted.
func (d *Deduper) evictLocked(now time.Time, keep string) {
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
	for len(d.seen) > d.max {
		oldest, oldestExp := "", time.Time{}
		for k, exp := range d.seen {
			if k == keep {
				continue
			}
			if oldest == "" || exp.Before(oldestExp) {
				oldest, oldestExp = k, exp
			}
		}
		if oldest == "" {
			return
		}
		delete(d.seen, oldest)
	}
}

// Len returns the number of remembered ids.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
