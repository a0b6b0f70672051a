// Package cache provides a bounded in-memory key/value store with per-entry
// TTL, least-recently-accessed eviction and hit/miss statistics.
package cache

import (
	"container/list"
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"vendzz/internal/logger"
	"vendzz/pkg/periodic"
)

type Entry[V any] struct {
	Key            string
	Value          V
	CreatedAt      time.Time
	TTL            time.Duration
	AccessCount    int64
	LastAccessedAt time.Time
}

func (e *Entry[V]) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	HitRate     float64 `json:"hit_rate"`
}

type Options struct {
	Name          string
	MaxSize       int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// Cache is safe for concurrent use. The list keeps entries ordered from most
// to least recently accessed, so eviction always takes the back element.
type Cache[V any] struct {
	name          string
	maxSize       int
	defaultTTL    time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	hits    int64
	misses  int64
	evicted int64
	expired int64
}

func New[V any](opts Options) *Cache[V] {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 10000
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[V]{
		name:          opts.Name,
		maxSize:       opts.MaxSize,
		defaultTTL:    opts.DefaultTTL,
		sweepInterval: opts.SweepInterval,
		now:           opts.Now,
		items:         make(map[string]*list.Element),
		order:         list.New(),
	}
}

func (c *Cache[V]) Name() string {
	return c.name
}

// Get returns the value for key. An expired entry is removed and counted as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	entry := el.Value.(*Entry[V])
	if entry.expired(now) {
		c.removeElement(el)
		c.expired++
		c.misses++
		return zero, false
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	c.order.MoveToFront(el)
	c.hits++
	return entry.Value, true
}

// Set stores value under key. A non-positive ttl uses the default TTL.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*Entry[V])
		entry.Value = value
		entry.CreatedAt = now
		entry.TTL = ttl
		entry.LastAccessedAt = now
		c.order.MoveToFront(el)
		return
	}

	if len(c.items) >= c.maxSize {
		if back := c.order.Back(); back != nil {
			c.removeElement(back)
			c.evicted++
		}
	}

	entry := &Entry[V]{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		TTL:            ttl,
		LastAccessedAt: now,
	}
	c.items[key] = c.order.PushFront(entry)
}

func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// DeleteByPattern removes every key matching the predicate and returns how many were removed.
func (c *Cache[V]) DeleteByPattern(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.items {
		if match(key) {
			c.removeElement(el)
			removed++
		}
	}
	return removed
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Sweep removes all expired entries regardless of access and returns the count.
func (c *Cache[V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*Entry[V]).expired(now) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	c.expired += int64(removed)
	return removed
}

// EvictColdest drops the given fraction of entries with the lowest
// accessCount x recency score. Returns the number of entries removed.
func (c *Cache[V]) EvictColdest(fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	if n == 0 {
		return 0
	}
	target := int(math.Ceil(float64(n) * fraction))

	type scored struct {
		el    *list.Element
		score float64
	}
	candidates := make([]scored, 0, n)
	for _, el := range c.items {
		candidates = append(candidates, scored{el: el, score: coldScore(el.Value.(*Entry[V]), now)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	for i := 0; i < target; i++ {
		c.removeElement(candidates[i].el)
	}
	c.evicted += int64(target)
	return target
}

func coldScore[V any](e *Entry[V], now time.Time) float64 {
	idle := now.Sub(e.LastAccessedAt).Seconds()
	if idle < 0 {
		idle = 0
	}
	return float64(e.AccessCount+1) / (1 + idle)
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evicted,
		Expirations: c.expired,
		Size:        len(c.items),
		MaxSize:     c.maxSize,
		HitRate:     hitRate,
	}
}

// StartSweeper runs Sweep on the configured interval until ctx is cancelled.
func (c *Cache[V]) StartSweeper(ctx context.Context, log logger.Logger) error {
	task := periodic.NewTask("cache-sweep:"+c.name, c.sweepInterval, func(ctx context.Context) error {
		if removed := c.Sweep(); removed > 0 {
			log.DebugwCtx(ctx, "Cache sweep removed expired entries",
				"cache", c.name,
				"removed", removed,
			)
		}
		return nil
	}, log)
	return task.Run(ctx)
}

func (c *Cache[V]) removeElement(el *list.Element) {
	entry := el.Value.(*Entry[V])
	delete(c.items, entry.Key)
	c.order.Remove(el)
}
