package completion

import (
	"context"
	"sync"
	"time"

	"vendzz/pkg/metrics"
)

// Stats is a point-in-time view of the processor.
type Stats struct {
	Accepted          int64         `json:"accepted"`
	Rejected          int64         `json:"rejected"`
	Dropped           int64         `json:"dropped"`
	Processed         int64         `json:"processed"`
	Scheduled         int64         `json:"scheduled"`
	Skipped           int64         `json:"skipped"`
	Errors            int64         `json:"errors"`
	EmailUnavailable  int64         `json:"email_unavailable"`
	ErrorRateAlerts   int64         `json:"error_rate_alerts"`
	DepthAlerts       int64         `json:"depth_alerts"`
	Batches           int64         `json:"batches"`
	AvgBatchLatency   time.Duration `json:"avg_batch_latency"`
	QueueDepth        int           `json:"queue_depth"`
	HighPriorityDepth int           `json:"high_priority_depth"`
	PeakDepth         int           `json:"peak_depth"`
	ThroughputPerSec  float64       `json:"throughput_per_sec"`
	DedupCampaigns    int           `json:"dedup_campaigns"`
	DedupRecipients   int           `json:"dedup_recipients"`
	Uptime            time.Duration `json:"uptime"`
}

type statsCollector struct {
	mu        sync.Mutex
	startedAt time.Time
	s         Stats
	latency   time.Duration
}

func newStatsCollector(start time.Time) *statsCollector {
	return &statsCollector{startedAt: start}
}

func (c *statsCollector) accepted(depth, dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Accepted++
	c.s.Dropped += int64(dropped)
	if depth > c.s.PeakDepth {
		c.s.PeakDepth = depth
	}
}

func (c *statsCollector) rejected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Rejected++
}

func (c *statsCollector) emailUnavailable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.EmailUnavailable++
}

func (c *statsCollector) errorRateAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.ErrorRateAlerts++
}

func (c *statsCollector) depthAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.DepthAlerts++
}

func (c *statsCollector) batch(r BatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Batches++
	c.s.Processed += int64(r.Processed)
	c.s.Scheduled += int64(r.Scheduled)
	c.s.Skipped += int64(r.Skipped)
	c.s.Errors += int64(r.Errors)
	c.latency += r.Duration
}

func (c *statsCollector) snapshot(now time.Time) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.s
	if out.Batches > 0 {
		out.AvgBatchLatency = c.latency / time.Duration(out.Batches)
	}
	out.Uptime = now.Sub(c.startedAt)
	if secs := out.Uptime.Seconds(); secs > 0 {
		out.ThroughputPerSec = float64(out.Processed) / secs
	}
	return out
}

func (p *Processor) Stats() Stats {
	s := p.stats.snapshot(p.now())

	p.mu.Lock()
	s.QueueDepth = p.queue.len()
	s.HighPriorityDepth = len(p.queue.high)
	p.mu.Unlock()

	s.DedupCampaigns, s.DedupRecipients = p.dedup.counts()
	return s
}

// ReportStats logs the current stats and raises the depth alert.
func (p *Processor) ReportStats(ctx context.Context) Stats {
	s := p.Stats()
	metrics.SetDedupRecipientsTracked(s.DedupRecipients)

	p.logger.InfowCtx(ctx, "Completion processor stats",
		"queue_depth", s.QueueDepth,
		"high_priority_depth", s.HighPriorityDepth,
		"peak_depth", s.PeakDepth,
		"processed", s.Processed,
		"scheduled", s.Scheduled,
		"skipped", s.Skipped,
		"errors", s.Errors,
		"dropped", s.Dropped,
		"error_rate_alerts", s.ErrorRateAlerts,
		"depth_alerts", s.DepthAlerts,
		"avg_batch_latency", s.AvgBatchLatency,
		"throughput_per_sec", s.ThroughputPerSec,
	)
	p.checkDepth(ctx, s.QueueDepth)
	return s
}
