package crawler

import (
	"context"
	"sync"
	"time"
)

// visitedSet records URLs already dispatched for fetching during a run.
type visitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]struct{})}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (v *visitedSet) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[url]; ok {
		return false
	}
	v.seen[url] = struct{}{}
	return true
}

// contentHashSet remembers the digests of chunks already written.
type contentHashSet struct {
	mu     sync.Mutex
	hasher Hasher
	seen   map[string]struct{}
}

func newContentHashSet(h Hasher) *contentHashSet {
	return &contentHashSet{hasher: h, seen: make(map[string]struct{})}
}

// Add records the chunk digest and reports whether it was new.
func (c *contentHashSet) Add(chunk string) bool {
	digest := c.hasher.Hash([]byte(chunk))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[digest]; ok {
		return false
	}
	c.seen[digest] = struct{}{}
	return true
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
