// Package campaignqueue batches outbound campaign sends by priority and
// drains them to the channel senders.
package campaignqueue

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vendzz/internal/config"
	"vendzz/internal/logger"
	"vendzz/internal/sender"
	apperrors "vendzz/pkg/errors"
	"vendzz/pkg/metrics"
	"vendzz/pkg/models"
	"vendzz/pkg/periodic"
)

// Dispatcher delivers one item's message.
type Dispatcher interface {
	Send(ctx context.Context, msg sender.Message) error
}

// StatusRecorder receives the outcome of each recipient's send.
type StatusRecorder interface {
	UpdateStatus(ctx context.Context, campaignID, recipient string, status models.SendStatus) error
}

type Stats struct {
	Depth    int   `json:"depth"`
	InFlight int   `json:"in_flight"`
	Enqueued int64 `json:"enqueued"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
}

type Queue struct {
	cfg        config.CampaignQueueConfig
	weights    map[string]int
	dispatcher Dispatcher
	statuses   StatusRecorder
	validate   *validator.Validate
	logger     logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	items    []*Item
	inflight map[string]struct{}
	open     map[string]*Item
	stats    Stats
}

type Options struct {
	Dispatcher Dispatcher
	Statuses   StatusRecorder
	Now        func() time.Time
}

func New(cfg config.CampaignQueueConfig, opts Options, log logger.Logger) *Queue {
	config.ApplyCampaignQueueDefaults(&cfg)

	weights := make(map[string]int, len(DefaultChannelWeights))
	for ch, w := range DefaultChannelWeights {
		weights[ch] = w
	}
	for ch, w := range cfg.ChannelWeights {
		weights[ch] = w
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Queue{
		cfg:        cfg,
		weights:    weights,
		dispatcher: opts.Dispatcher,
		statuses:   opts.Statuses,
		validate:   validator.New(),
		logger:     log,
		now:        now,
		inflight:   make(map[string]struct{}),
		open:       make(map[string]*Item),
	}
}

// Enqueue splits req into chunks and queues each one. Only validation
// failures are returned.
func (q *Queue) Enqueue(ctx context.Context, req Request) ([]string, error) {
	if err := q.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation).
			WithDetail("message", err.Error())
	}

	now := q.now()
	weight := q.weights[req.Channel]
	chunks := chunk(req.Recipients, q.cfg.MaxChunkSize)

	items := make([]*Item, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, recipients := range chunks {
		item := &Item{
			ID:           uuid.New().String(),
			Channel:      req.Channel,
			QuizID:       req.QuizID,
			CampaignID:   req.CampaignID,
			UserID:       req.UserID,
			Recipients:   recipients,
			Message:      req.Message,
			Subject:      req.Subject,
			Priority:     priority(weight, len(recipients)),
			ScheduledFor: now.Add(req.Delay),
			CreatedAt:    now,
		}
		items = append(items, item)
		ids = append(ids, item.ID)
		metrics.IncCampaignQueueItem(req.Channel, "enqueued")
	}

	q.mu.Lock()
	for _, item := range items {
		q.insertLocked(item)
	}
	q.stats.Enqueued += int64(len(items))
	q.publishState()
	q.mu.Unlock()

	q.logger.DebugwCtx(ctx, "Campaign send enqueued",
		"channel", req.Channel,
		"quiz_id", req.QuizID,
		"recipients", len(req.Recipients),
		"items", len(items),
	)
	return ids, nil
}

// Coalesce queues req's recipients into the open item for the same
// campaign, channel, body and due window, starting a new item when none has
// room. An item's scheduled time is the latest due time it holds, so no
// recipient is sent early and none waits longer than CoalesceWindow. It
// returns the ids of the items touched.
func (q *Queue) Coalesce(ctx context.Context, req Request) ([]string, error) {
	if err := q.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation).
			WithDetail("message", err.Error())
	}

	now := q.now()
	due := now.Add(req.Delay)
	key := batchKey(req, due.Truncate(q.cfg.CoalesceWindow))
	weight := q.weights[req.Channel]

	var ids []string
	created := 0

	q.mu.Lock()
	for _, recipient := range req.Recipients {
		item, ok := q.open[key]
		if ok && (item.Message != req.Message || item.Subject != req.Subject) {
			ok = false
		}

		if !ok {
			item = &Item{
				ID:           uuid.New().String(),
				Channel:      req.Channel,
				QuizID:       req.QuizID,
				CampaignID:   req.CampaignID,
				UserID:       req.UserID,
				Recipients:   []string{recipient},
				Message:      req.Message,
				Subject:      req.Subject,
				Priority:     priority(weight, 1),
				ScheduledFor: due,
				CreatedAt:    now,
				batchKey:     key,
			}
			q.open[key] = item
			q.insertLocked(item)
			created++
			metrics.IncCampaignQueueItem(req.Channel, "enqueued")
		} else {
			item.Recipients = append(item.Recipients, recipient)
			if due.After(item.ScheduledFor) {
				item.ScheduledFor = due
			}
			if p := priority(weight, len(item.Recipients)); p != item.Priority {
				q.reprioritizeLocked(item, p)
			}
		}

		if len(item.Recipients) >= q.cfg.MaxChunkSize {
			q.closeLocked(item)
		}
		if len(ids) == 0 || ids[len(ids)-1] != item.ID {
			ids = append(ids, item.ID)
		}
	}
	q.stats.Enqueued += int64(created)
	q.publishState()
	q.mu.Unlock()

	q.logger.DebugwCtx(ctx, "Campaign send coalesced",
		"channel", req.Channel,
		"campaign_id", req.CampaignID,
		"recipients", len(req.Recipients),
		"new_items", created,
	)
	return ids, nil
}

func batchKey(req Request, window time.Time) string {
	return req.Channel + "|" + req.CampaignID + "|" + req.QuizID + "|" + req.UserID + "|" +
		strconv.FormatInt(window.UnixNano(), 10)
}

// insertLocked places item after every queued item of equal or higher
// priority, keeping FIFO order within a priority.
func (q *Queue) insertLocked(item *Item) {
	i := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].Priority < item.Priority
	})
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = item
}

func (q *Queue) reprioritizeLocked(item *Item, p int) {
	for i, it := range q.items {
		if it == item {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	item.Priority = p
	q.insertLocked(item)
}

// closeLocked stops item from accepting more recipients.
func (q *Queue) closeLocked(item *Item) {
	if item.batchKey != "" && q.open[item.batchKey] == item {
		delete(q.open, item.batchKey)
	}
}

// Drain dispatches up to BatchSize ready items that are not already in
// flight and returns how many it picked.
func (q *Queue) Drain(ctx context.Context) int {
	now := q.now()

	q.mu.Lock()
	batch := make([]*Item, 0, q.cfg.BatchSize)
	for _, item := range q.items {
		if len(batch) == q.cfg.BatchSize {
			break
		}
		if item.ScheduledFor.After(now) {
			continue
		}
		if _, busy := q.inflight[item.ID]; busy {
			continue
		}
		q.inflight[item.ID] = struct{}{}
		q.closeLocked(item)
		batch = append(batch, item)
	}
	q.publishState()
	q.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	var g errgroup.Group
	for _, item := range batch {
		item := item
		g.Go(func() error {
			q.settle(ctx, item, q.dispatch(ctx, item))
			return nil
		})
	}
	_ = g.Wait()
	return len(batch)
}

func (q *Queue) dispatch(ctx context.Context, item *Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()

	if q.dispatcher == nil {
		return errors.New("no dispatcher configured")
	}
	return q.dispatcher.Send(ctx, sender.Message{
		ID:         item.ID,
		Channel:    item.Channel,
		QuizID:     item.QuizID,
		UserID:     item.UserID,
		CampaignID: item.CampaignID,
		Subject:    item.Subject,
		Body:       item.Message,
		Recipients: item.Recipients,
	})
}

func (q *Queue) settle(ctx context.Context, item *Item, err error) {
	status := models.SendStatusSent
	if err != nil {
		status = models.SendStatusFailed
		q.logger.ErrorwCtx(ctx, "Campaign item dispatch failed",
			"item_id", item.ID,
			"channel", item.Channel,
			"recipients", len(item.Recipients),
			"error", err,
		)
	}
	metrics.IncCampaignQueueItem(item.Channel, string(status))

	q.mu.Lock()
	delete(q.inflight, item.ID)
	q.removeLocked(item.ID)
	if err != nil {
		q.stats.Failed++
	} else {
		q.stats.Sent++
	}
	q.publishState()
	q.mu.Unlock()

	if q.statuses != nil && item.CampaignID != "" {
		for _, r := range item.Recipients {
			if uerr := q.statuses.UpdateStatus(ctx, item.CampaignID, r, status); uerr != nil {
				q.logger.WarnwCtx(ctx, "Failed to update send status",
					"campaign_id", item.CampaignID,
					"error", uerr,
				)
			}
		}
	}
}

func (q *Queue) removeLocked(id string) {
	for i, it := range q.items {
		if it.ID == id {
			q.closeLocked(it)
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// DropOlderThan removes queued items created more than age ago. Items in
// flight are left to settle.
func (q *Queue) DropOlderThan(age time.Duration) int {
	cutoff := q.now().Add(-age)

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	dropped := 0
	for _, it := range q.items {
		_, busy := q.inflight[it.ID]
		if !busy && it.CreatedAt.Before(cutoff) {
			q.closeLocked(it)
			dropped++
			metrics.IncCampaignQueueItem(it.Channel, "dropped")
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	q.stats.Dropped += int64(dropped)
	q.publishState()
	return dropped
}

func (q *Queue) publishState() {
	metrics.SetCampaignQueueState(len(q.items), len(q.inflight))
}

// Items returns a copy of the queue in drain order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.items))
	for i, it := range q.items {
		out[i] = *it
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.Depth = len(q.items)
	s.InFlight = len(q.inflight)
	return s
}

// Run drains the queue every TickInterval until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	task := periodic.NewTask("campaign-queue-drain", q.cfg.TickInterval, func(ctx context.Context) error {
		if n := q.Drain(ctx); n > 0 {
			s := q.Stats()
			q.logger.InfowCtx(ctx, "Campaign queue drained",
				"dispatched", n,
				"depth", s.Depth,
				"sent", s.Sent,
				"failed", s.Failed,
			)
		}
		return nil
	}, q.logger)

	if err := task.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
