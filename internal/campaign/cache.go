package campaign

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"vendzz/internal/cache"
	"vendzz/internal/logger"
	"vendzz/pkg/logging"
	"vendzz/pkg/metrics"
)

const loadTimeout = 10 * time.Second

// Cache memoizes Source lookups per quiz for a short TTL. Store failures are
// logged and yield an empty list so the completion path never blocks on them.
type Cache struct {
	source  Source
	entries *cache.Cache[[]Campaign]
	ttl     time.Duration
	logger  logger.Logger
	group   singleflight.Group
}

type CacheOptions struct {
	TTL           time.Duration
	MaxQuizzes    int
	SweepInterval time.Duration
	Now           func() time.Time
}

func NewCache(source Source, opts CacheOptions, log logger.Logger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	return &Cache{
		source: source,
		entries: cache.New[[]Campaign](cache.Options{
			Name:          "campaigns",
			MaxSize:       opts.MaxQuizzes,
			DefaultTTL:    opts.TTL,
			SweepInterval: opts.SweepInterval,
			Now:           opts.Now,
		}),
		ttl:    opts.TTL,
		logger: log,
	}
}

func (c *Cache) GetCampaignsFor(ctx context.Context, quizID string) []Campaign {
	if campaigns, ok := c.entries.Get(quizID); ok {
		metrics.IncCampaignCacheLookup("hit")
		return campaigns
	}

	result, err, _ := c.group.Do(quizID, func() (interface{}, error) {
		// The load is shared by every waiter, so one caller's cancellation
		// must not fail the others.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		campaigns, err := c.source.ListActiveCampaigns(loadCtx, quizID)
		if err != nil {
			return nil, err
		}
		c.entries.Set(quizID, campaigns, c.ttl)
		return campaigns, nil
	})
	if err != nil {
		metrics.IncCampaignCacheLookup("error")
		c.logger.ErrorwCtx(logging.WithQuizID(ctx, quizID), "Failed to load campaigns",
			"error", err,
		)
		return nil
	}

	metrics.IncCampaignCacheLookup("miss")
	return result.([]Campaign)
}

func (c *Cache) HasCampaigns(ctx context.Context, quizID string) bool {
	return len(c.GetCampaignsFor(ctx, quizID)) > 0
}

// Invalidate drops the memoized list so the next lookup reads the source.
func (c *Cache) Invalidate(quizID string) bool {
	return c.entries.Delete(quizID)
}

// ExpireStale removes every entry past its TTL and returns how many were
// dropped. The cache size and hit rate gauges are refreshed on each call.
func (c *Cache) ExpireStale() int {
	n := c.entries.Sweep()
	s := c.entries.Stats()
	metrics.SetCacheStats(c.Name(), s.Size, s.HitRate)
	return n
}

// Run sweeps expired entries every SweepInterval until ctx is done.
func (c *Cache) Run(ctx context.Context) error {
	if err := c.entries.StartSweeper(ctx, c.logger); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Cache) Name() string {
	return c.entries.Name()
}

func (c *Cache) EvictColdest(fraction float64) int {
	return c.entries.EvictColdest(fraction)
}

func (c *Cache) Clear() {
	c.entries.Clear()
}

func (c *Cache) Stats() cache.Stats {
	return c.entries.Stats()
}
