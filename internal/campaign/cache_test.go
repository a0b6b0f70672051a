package campaign

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendzz/internal/config"
	"vendzz/internal/logger"
)

type stubSource struct {
	mu        sync.Mutex
	campaigns map[string][]Campaign
	err       error
	calls     int32
	delay     time.Duration
}

func (s *stubSource) ListActiveCampaigns(ctx context.Context, quizID string) ([]Campaign, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.campaigns[quizID], nil
}

func (s *stubSource) set(quizID string, campaigns ...Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.campaigns == nil {
		s.campaigns = map[string][]Campaign{}
	}
	s.campaigns[quizID] = campaigns
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func smsCampaign(id, quizID string, delay time.Duration) Campaign {
	return SMSCampaign{Base: Base{ID: id, QuizID: quizID, TriggerDelay: delay, Active: true}, Message: "hello"}
}

func TestCache_MemoizesWithinTTL(t *testing.T) {
	src := &stubSource{}
	src.set("Q1", smsCampaign("c1", "Q1", 10*time.Minute))
	clock := &manualClock{now: time.Now()}
	c := NewCache(src, CacheOptions{TTL: 30 * time.Second, Now: clock.Now}, logger.NopLogger())

	got := c.GetCampaignsFor(context.Background(), "Q1")
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].Common().ID)

	clock.Advance(10 * time.Second)
	c.GetCampaignsFor(context.Background(), "Q1")
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	clock.Advance(25 * time.Second)
	c.GetCampaignsFor(context.Background(), "Q1")
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

func TestCache_CachesEmptyResult(t *testing.T) {
	src := &stubSource{}
	c := NewCache(src, CacheOptions{}, logger.NopLogger())

	assert.False(t, c.HasCampaigns(context.Background(), "none"))
	assert.False(t, c.HasCampaigns(context.Background(), "none"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

func TestCache_SourceErrorYieldsEmptyAndIsNotCached(t *testing.T) {
	src := &stubSource{err: errors.New("db down")}
	c := NewCache(src, CacheOptions{}, logger.NopLogger())

	assert.Empty(t, c.GetCampaignsFor(context.Background(), "Q1"))

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()
	src.set("Q1", smsCampaign("c1", "Q1", 0))

	assert.Len(t, c.GetCampaignsFor(context.Background(), "Q1"), 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

func TestCache_Invalidate(t *testing.T) {
	src := &stubSource{}
	src.set("Q1", smsCampaign("c1", "Q1", 0))
	c := NewCache(src, CacheOptions{}, logger.NopLogger())

	c.GetCampaignsFor(context.Background(), "Q1")
	assert.True(t, c.Invalidate("Q1"))
	assert.False(t, c.Invalidate("Q1"))

	src.set("Q1")
	assert.Empty(t, c.GetCampaignsFor(context.Background(), "Q1"))
}

func TestCache_ExpireStale(t *testing.T) {
	src := &stubSource{}
	clock := &manualClock{now: time.Now()}
	c := NewCache(src, CacheOptions{TTL: time.Second, Now: clock.Now}, logger.NopLogger())

	c.GetCampaignsFor(context.Background(), "Q1")
	c.GetCampaignsFor(context.Background(), "Q2")
	clock.Advance(2 * time.Second)

	assert.Equal(t, 2, c.ExpireStale())
	assert.Equal(t, 0, c.Stats().Size)
}

func TestCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	src := &stubSource{delay: 20 * time.Millisecond}
	src.set("Q1", smsCampaign("c1", "Q1", 0))
	c := NewCache(src, CacheOptions{}, logger.NopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, c.GetCampaignsFor(context.Background(), "Q1"), 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

type gatedSource struct {
	started   chan struct{}
	release   chan struct{}
	campaigns []Campaign
}

func (s *gatedSource) ListActiveCampaigns(ctx context.Context, quizID string) ([]Campaign, error) {
	close(s.started)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
		return s.campaigns, nil
	}
}

func TestCache_SharedLoadSurvivesCallerCancellation(t *testing.T) {
	src := &gatedSource{
		started:   make(chan struct{}),
		release:   make(chan struct{}),
		campaigns: []Campaign{smsCampaign("c1", "Q1", 0)},
	}
	c := NewCache(src, CacheOptions{}, logger.NopLogger())

	submitCtx, cancel := context.WithCancel(context.Background())
	first := make(chan []Campaign, 1)
	go func() { first <- c.GetCampaignsFor(submitCtx, "Q1") }()
	<-src.started

	second := make(chan []Campaign, 1)
	go func() { second <- c.GetCampaignsFor(context.Background(), "Q1") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(src.release)

	assert.Len(t, <-second, 1)
	assert.Len(t, <-first, 1)
}

func TestCache_RunSweepsExpiredEntries(t *testing.T) {
	src := &stubSource{}
	src.set("Q1", smsCampaign("c1", "Q1", 0))
	clock := &manualClock{now: time.Now()}
	c := NewCache(src, CacheOptions{TTL: time.Second, SweepInterval: 5 * time.Millisecond, Now: clock.Now}, logger.NopLogger())

	c.GetCampaignsFor(context.Background(), "Q1")
	require.Equal(t, 1, c.Stats().Size)
	clock.Advance(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Stats().Size == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestCircuitBreakerSource_PassThroughWhenDisabled(t *testing.T) {
	src := &stubSource{}
	src.set("Q1", smsCampaign("c1", "Q1", 0))
	cb := NewCircuitBreakerSource(src, config.CircuitBreakerConfig{Enabled: false})

	got, err := cb.ListActiveCampaigns(context.Background(), "Q1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "disabled", cb.State())
}

func TestCircuitBreakerSource_OpensOnFailures(t *testing.T) {
	src := &stubSource{err: errors.New("db down")}
	cb := NewCircuitBreakerSource(src, config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})

	for i := 0; i < 2; i++ {
		_, err := cb.ListActiveCampaigns(context.Background(), "Q1")
		require.Error(t, err)
	}
	assert.Equal(t, "open", cb.State())

	_, err := cb.ListActiveCampaigns(context.Background(), "Q1")
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}
