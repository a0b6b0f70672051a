// Package completion queues quiz completions and fans each one out into
// scheduled sends for the quiz's active campaigns.
package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"vendzz/internal/campaign"
	"vendzz/internal/config"
	"vendzz/internal/constants"
	"vendzz/internal/logger"
	"vendzz/internal/sendlog"
	"vendzz/pkg/cel"
	apperrors "vendzz/pkg/errors"
	"vendzz/pkg/logging"
	"vendzz/pkg/metrics"
	"vendzz/pkg/models"
	"vendzz/pkg/periodic"
	"vendzz/pkg/tracing"
)

// CampaignLookup resolves the campaigns eligible for a quiz.
type CampaignLookup interface {
	GetCampaignsFor(ctx context.Context, quizID string) []campaign.Campaign
	HasCampaigns(ctx context.Context, quizID string) bool
	ExpireStale() int
}

// Forwarder hands a recorded send to the dispatch queue.
type Forwarder interface {
	Forward(ctx context.Context, send models.ScheduledSend) error
}

// ConditionEvaluator decides whether a campaign's condition matches.
type ConditionEvaluator interface {
	EvaluateCondition(ctx context.Context, expression string, in cel.Input) (bool, error)
}

type Deps struct {
	Campaigns  CampaignLookup
	Recorder   sendlog.Recorder
	Resolver   EmailResolver
	Forwarder  Forwarder
	Conditions ConditionEvaluator
	Now        func() time.Time
}

type Processor struct {
	cfg        config.CompletionConfig
	campaigns  CampaignLookup
	recorder   sendlog.Recorder
	resolver   EmailResolver
	forwarder  Forwarder
	conditions ConditionEvaluator
	logger     logger.Logger
	now        func() time.Time

	mu    sync.Mutex
	queue *laneQueue

	dedup *dedupStore
	stats *statsCollector
}

func NewProcessor(cfg config.CompletionConfig, deps Deps, log logger.Logger) *Processor {
	config.ApplyCompletionDefaults(&cfg)

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = NotImplementedEmailResolver{}
	}

	return &Processor{
		cfg:        cfg,
		campaigns:  deps.Campaigns,
		recorder:   deps.Recorder,
		resolver:   resolver,
		forwarder:  deps.Forwarder,
		conditions: deps.Conditions,
		logger:     log,
		now:        now,
		queue:      newLaneQueue(cfg.MaxQueueSize, cfg.EvictCount),
		dedup:      newDedupStore(),
		stats:      newStatsCollector(now()),
	}
}

// Submit accepts a completion. It returns false only when the input is invalid.
func (p *Processor) Submit(ctx context.Context, quizID, phone, userID string) bool {
	return p.SubmitEvent(ctx, Submission{QuizID: quizID, Phone: phone, UserID: userID})
}

func (p *Processor) SubmitEvent(ctx context.Context, s Submission) bool {
	if s.QuizID == "" {
		p.reject(ctx, s, "missing quiz id")
		return false
	}
	phone, ok := SanitizePhone(s.Phone, p.cfg.DefaultCountryCode)
	if !ok {
		p.reject(ctx, s, "invalid phone")
		return false
	}

	priority := PriorityNormal
	if p.campaigns != nil && p.campaigns.HasCampaigns(ctx, s.QuizID) {
		priority = PriorityHigh
	}

	ev := Event{
		QuizID:     s.QuizID,
		Phone:      phone,
		UserID:     s.UserID,
		Email:      s.Email,
		Answers:    s.Answers,
		EnqueuedAt: p.now(),
		Priority:   priority,
	}

	p.mu.Lock()
	dropped := p.queue.push(ev)
	high, normal := len(p.queue.high), len(p.queue.normal)
	p.mu.Unlock()

	if dropped > 0 {
		metrics.AddCompletionDropped(dropped)
		p.logger.WarnwCtx(ctx, "Completion queue full, dropped oldest events",
			"dropped", dropped,
			"max_queue_size", p.cfg.MaxQueueSize,
		)
	}
	p.stats.accepted(high+normal, dropped)
	metrics.IncCompletionSubmission("accepted")
	metrics.SetCompletionQueueDepth(high, normal)
	return true
}

func (p *Processor) reject(ctx context.Context, s Submission, reason string) {
	p.stats.rejected()
	metrics.IncCompletionSubmission("rejected")
	p.logger.DebugwCtx(logging.WithQuizID(ctx, s.QuizID), "Completion rejected",
		"reason", reason,
	)
}

// Len is the number of queued events.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// Queued returns the queued events in drain order.
func (p *Processor) Queued() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.snapshot()
}

// BatchResult summarizes one drain tick.
type BatchResult struct {
	Processed int
	Scheduled int
	Skipped   int
	Errors    int
	Duration  time.Duration
}

// ProcessBatch drains up to BatchSize events and fans them out across the
// configured workers. Event i goes to worker i % Workers.
func (p *Processor) ProcessBatch(ctx context.Context) BatchResult {
	p.mu.Lock()
	depth := p.queue.len()
	batch := p.queue.pop(p.cfg.BatchSize)
	high, normal := len(p.queue.high), len(p.queue.normal)
	p.mu.Unlock()

	p.checkDepth(ctx, depth)
	if len(batch) == 0 {
		return BatchResult{}
	}
	metrics.SetCompletionQueueDepth(high, normal)

	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "completion.process_batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(batch)))

	start := time.Now()
	var scheduled, skipped, failed int64

	workers := p.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(batch); i += workers {
				o := p.processEvent(ctx, batch[i])
				atomic.AddInt64(&scheduled, int64(o.scheduled))
				atomic.AddInt64(&skipped, int64(o.skipped))
				atomic.AddInt64(&failed, int64(o.errors))
			}
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{
		Processed: len(batch),
		Scheduled: int(scheduled),
		Skipped:   int(skipped),
		Errors:    int(failed),
		Duration:  time.Since(start),
	}
	p.stats.batch(res)
	metrics.ObserveCompletionBatchDuration(res.Duration)

	if rate := float64(res.Errors) / float64(res.Processed); rate > p.cfg.ErrorRateThreshold {
		p.stats.errorRateAlert()
		p.logger.WarnwCtx(ctx, "Completion batch error rate above threshold",
			"errors", res.Errors,
			"processed", res.Processed,
			"error_rate", rate,
			"threshold", p.cfg.ErrorRateThreshold,
		)
	}
	return res
}

func (p *Processor) checkDepth(ctx context.Context, depth int) {
	limit := int(float64(p.cfg.MaxQueueSize) * p.cfg.DepthAlertRatio)
	if depth > limit {
		p.stats.depthAlert()
		p.logger.WarnwCtx(ctx, "Completion queue depth above alert threshold",
			"depth", depth,
			"threshold", limit,
			"max_queue_size", p.cfg.MaxQueueSize,
		)
	}
}

type outcome struct {
	scheduled int
	skipped   int
	errors    int
}

func (p *Processor) processEvent(ctx context.Context, ev Event) (o outcome) {
	ctx = logging.WithQuizID(ctx, ev.QuizID)
	defer func() {
		if r := recover(); r != nil {
			o.errors++
			p.logger.ErrorwCtx(ctx, "Panic while fanning out completion",
				"error", apperrors.RecoverPanic(r),
			)
		}
	}()

	for _, c := range p.campaigns.GetCampaignsFor(ctx, ev.QuizID) {
		switch p.fanOut(ctx, ev, c) {
		case fanScheduled:
			o.scheduled++
		case fanSkipped:
			o.skipped++
		case fanFailed:
			o.errors++
		}
	}
	return o
}

type fanResult int

const (
	fanSkipped fanResult = iota
	fanScheduled
	fanFailed
)

func (p *Processor) fanOut(ctx context.Context, ev Event, c campaign.Campaign) fanResult {
	base := c.Common()
	channel := string(c.Channel())
	ctx = logging.WithCampaignID(ctx, base.ID)

	if !base.Active {
		return fanSkipped
	}

	if base.Condition != "" && p.conditions != nil {
		ok, err := p.conditions.EvaluateCondition(ctx, base.Condition, cel.Input{
			QuizID:      ev.QuizID,
			UserID:      ev.UserID,
			Phone:       ev.Phone,
			Email:       ev.Email,
			Channel:     channel,
			CompletedAt: ev.EnqueuedAt,
			Answers:     ev.Answers,
		})
		if err != nil {
			p.logger.WarnwCtx(ctx, "Campaign condition evaluation failed", "error", err)
			metrics.IncScheduledSend(channel, "error")
			return fanFailed
		}
		if !ok {
			metrics.IncScheduledSend(channel, "filtered")
			return fanSkipped
		}
	}

	recipient := ev.Phone
	if _, isEmail := c.(campaign.EmailCampaign); isEmail {
		email, err := p.resolver.ResolveEmail(ctx, ev)
		if err != nil {
			if errors.Is(err, ErrEmailUnavailable) {
				p.stats.emailUnavailable()
				metrics.IncScheduledSend(channel, "email_unavailable")
				p.logger.DebugwCtx(ctx, "Skipping email campaign without recipient address")
				return fanSkipped
			}
			p.logger.WarnwCtx(ctx, "Email resolution failed", "error", err)
			metrics.IncScheduledSend(channel, "error")
			return fanFailed
		}
		recipient = email
	}

	if !p.dedup.claim(base.ID, recipient) {
		metrics.IncScheduledSend(channel, "duplicate")
		return fanSkipped
	}

	send := p.buildSend(ev, c, recipient)
	if err := p.recorder.Record(ctx, send); err != nil {
		p.dedup.release(base.ID, recipient)
		p.logger.ErrorwCtx(ctx, "Failed to record scheduled send",
			"channel", channel,
			"error", err,
		)
		metrics.IncScheduledSend(channel, "error")
		return fanFailed
	}
	metrics.IncScheduledSend(channel, "scheduled")

	if p.forwarder != nil {
		if err := p.forwarder.Forward(ctx, send); err != nil {
			p.logger.WarnwCtx(ctx, "Failed to forward scheduled send",
				"send_id", send.ID,
				"error", err,
			)
		}
	}
	return fanScheduled
}

func (p *Processor) buildSend(ev Event, c campaign.Campaign, recipient string) models.ScheduledSend {
	base := c.Common()
	now := p.now()

	send := models.ScheduledSend{
		ID:          uuid.New().String(),
		CampaignID:  base.ID,
		Channel:     string(c.Channel()),
		Recipient:   recipient,
		Status:      models.SendStatusScheduled,
		ScheduledAt: now.Add(base.TriggerDelay),
		CreatedAt:   now,
		QuizID:      ev.QuizID,
		UserID:      ev.UserID,
	}

	switch v := c.(type) {
	case campaign.SMSCampaign:
		send.Message = v.Message
	case campaign.WhatsAppCampaign:
		send.Message = v.Message
	case campaign.EmailCampaign:
		send.Subject = v.Subject
		send.Message = v.Body
	case campaign.VoiceCampaign:
		send.Message = v.Script
	}
	return send
}

// ManageCaches expires stale campaign lists and trims oversized dedup sets.
func (p *Processor) ManageCaches(ctx context.Context) {
	expired := 0
	if p.campaigns != nil {
		expired = p.campaigns.ExpireStale()
	}
	campaigns, removed := p.dedup.trim(p.cfg.DedupMaxRecipients, p.cfg.DedupKeepRecipients)
	_, tracked := p.dedup.counts()
	metrics.SetDedupRecipientsTracked(tracked)

	if expired > 0 || removed > 0 {
		p.logger.InfowCtx(ctx, "Completion caches maintained",
			"expired_campaign_entries", expired,
			"trimmed_campaigns", campaigns,
			"trimmed_recipients", removed,
		)
	}
}

// ResetDedup forgets every recipient seen so far.
func (p *Processor) ResetDedup() {
	p.dedup.clear()
	metrics.SetDedupRecipientsTracked(0)
}

// Seen reports whether recipient is recorded for campaignID.
func (p *Processor) Seen(campaignID, recipient string) bool {
	return p.dedup.seen(campaignID, recipient)
}

// Run drives the drain, cache manager and stats ticks until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	if p.campaigns == nil || p.recorder == nil {
		return fmt.Errorf("completion processor requires a campaign lookup and a recorder")
	}

	tasks := []*periodic.Task{
		periodic.NewTask("completion-drain", p.cfg.TickInterval, func(ctx context.Context) error {
			p.ProcessBatch(ctx)
			return nil
		}, p.logger),
		periodic.NewTask("completion-cache-manager", p.cfg.CacheManageInterval, func(ctx context.Context) error {
			p.ManageCaches(ctx)
			return nil
		}, p.logger),
		periodic.NewTask("completion-stats", p.cfg.StatsInterval, func(ctx context.Context) error {
			p.ReportStats(ctx)
			return nil
		}, p.logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			err := t.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
