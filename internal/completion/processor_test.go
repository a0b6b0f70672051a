package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendzz/internal/campaign"
	"vendzz/internal/config"
	"vendzz/internal/logger"
	"vendzz/internal/sendlog"
	"vendzz/pkg/cel"
	"vendzz/pkg/models"
)

type staticSource struct {
	mu        sync.Mutex
	campaigns map[string][]campaign.Campaign
	err       error
}

func (s *staticSource) ListActiveCampaigns(ctx context.Context, quizID string) ([]campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.campaigns[quizID], nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type flakyRecorder struct {
	*sendlog.MemoryRecorder
	mu    sync.Mutex
	fails int
}

func (r *flakyRecorder) Record(ctx context.Context, send models.ScheduledSend) error {
	r.mu.Lock()
	if r.fails > 0 {
		r.fails--
		r.mu.Unlock()
		return errors.New("log store unavailable")
	}
	r.mu.Unlock()
	return r.MemoryRecorder.Record(ctx, send)
}

type recordingForwarder struct {
	mu    sync.Mutex
	sends []models.ScheduledSend
}

func (f *recordingForwarder) Forward(ctx context.Context, send models.ScheduledSend) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, send)
	return nil
}

type fixture struct {
	proc     *Processor
	source   *staticSource
	recorder *flakyRecorder
	clock    *fixedClock
}

func newFixture(t *testing.T, cfg config.CompletionConfig, deps Deps, campaigns map[string][]campaign.Campaign) *fixture {
	t.Helper()

	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	source := &staticSource{campaigns: campaigns}
	recorder := &flakyRecorder{MemoryRecorder: sendlog.NewMemoryRecorder()}

	deps.Campaigns = campaign.NewCache(source, campaign.CacheOptions{TTL: 30 * time.Second, Now: clock.Now}, logger.NopLogger())
	deps.Recorder = recorder
	deps.Now = clock.Now

	return &fixture{
		proc:     NewProcessor(cfg, deps, logger.NopLogger()),
		source:   source,
		recorder: recorder,
		clock:    clock,
	}
}

func smsCampaign(id, quizID string, delay time.Duration) campaign.SMSCampaign {
	return campaign.SMSCampaign{
		Base:    campaign.Base{ID: id, QuizID: quizID, TriggerDelay: delay, Active: true},
		Message: "Thanks for finishing the quiz",
	}
}

func TestProcessor_EndToEnd(t *testing.T) {
	f := newFixture(t, config.CompletionConfig{}, Deps{}, map[string][]campaign.Campaign{
		"Q1": {smsCampaign("C1", "Q1", 10*time.Minute)},
	})
	ctx := context.Background()

	require.True(t, f.proc.Submit(ctx, "Q1", "11999998888", "u1"))
	res := f.proc.ProcessBatch(ctx)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Scheduled)

	sends := f.recorder.List()
	require.Len(t, sends, 1)
	assert.Equal(t, "C1", sends[0].CampaignID)
	assert.Equal(t, "5511999998888", sends[0].Recipient)
	assert.Equal(t, "sms", sends[0].Channel)
	assert.Equal(t, models.SendStatusScheduled, sends[0].Status)
	assert.Equal(t, f.clock.Now().Add(600*time.Second), sends[0].ScheduledAt)
	assert.Equal(t, "u1", sends[0].UserID)

	require.True(t, f.proc.Submit(ctx, "Q1", "11999998888", "u1"))
	res = f.proc.ProcessBatch(ctx)
	assert.Equal(t, 0, res.Scheduled)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, f.recorder.List(), 1)
}

func TestProcessor_SubmitRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, config.CompletionConfig{}, Deps{}, nil)
	ctx := context.Background()

	assert.False(t, f.proc.Submit(ctx, "Q1", "12345", "u1"))
	assert.False(t, f.proc.Submit(ctx, "Q1", "", "u1"))
	assert.False(t, f.proc.Submit(ctx, "", "11999998888", "u1"))
	assert.Equal(t, 0, f.proc.Len())
	assert.Equal(t, int64(3), f.proc.Stats().Rejected)
}

func TestProcessor_CapacityBackpressure(t *testing.T) {
	cfg := config.CompletionConfig{MaxQueueSize: 1000, EvictCount: 100}
	f := newFixture(t, cfg, Deps{}, nil)
	ctx := context.Background()

	for i := 0; i < 1150; i++ {
		require.True(t, f.proc.Submit(ctx, fmt.Sprintf("Q%d", i), "11999998888", "u"))
	}

	assert.LessOrEqual(t, f.proc.Len(), 1000)
	assert.GreaterOrEqual(t, f.proc.Len(), 900)

	queued := map[string]bool{}
	for _, ev := range f.proc.Queued() {
		queued[ev.QuizID] = true
	}
	for i := 0; i < 100; i++ {
		assert.False(t, queued[fmt.Sprintf("Q%d", i)], "Q%d should have been dropped", i)
	}
	assert.True(t, queued["Q1149"])

	stats := f.proc.Stats()
	assert.Equal(t, int64(1150), stats.Accepted)
	assert.Equal(t, int64(1150-f.proc.Len()), stats.Dropped)
	assert.Equal(t, 1000, stats.PeakDepth)
}

func TestProcessor_PriorityFromCampaigns(t *testing.T) {
	f := newFixture(t, config.CompletionConfig{}, Deps{}, map[string][]campaign.Campaign{
		"HOT": {smsCampaign("C1", "HOT", 0)},
	})
	ctx := context.Background()

	require.True(t, f.proc.Submit(ctx, "COLD", "11999990001", "u"))
	require.True(t, f.proc.Submit(ctx, "HOT", "11999990002", "u"))

	queued := f.proc.Queued()
	require.Len(t, queued, 2)
	assert.Equal(t, "HOT", queued[0].QuizID)
	assert.Equal(t, PriorityHigh, queued[0].Priority)
	assert.Equal(t, PriorityNormal, queued[1].Priority)
	assert.Equal(t, 1, f.proc.Stats().HighPriorityDepth)
}

func TestProcessor_BatchIdempotence(t *testing.T) {
	f := newFixture(t, config.CompletionConfig{Workers: 4}, Deps{}, map[string][]campaign.Campaign{
		"Q1": {
			smsCampaign("C1", "Q1", 0),
			campaign.WhatsAppCampaign{Base: campaign.Base{ID: "C2", QuizID: "Q1", Active: true}, Message: "hi"},
		},
	})
	ctx := context.Background()

	events := make([]Event, 0, 20)
	for i := 0; i < 20; i++ {
		events = append(events, Event{QuizID: "Q1", Phone: fmt.Sprintf("55119999900%02d", i)})
	}

	var wg sync.WaitGroup
	for round := 0; round < 2; round++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, ev := range events {
				f.proc.processEvent(ctx, ev)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, f.recorder.List(), 40)
}

func TestProcessor_WorkersPartitionWholeBatch(t *testing.T) {
	f := newFixture(t, config.CompletionConfig{BatchSize: 25, Workers: 10}, Deps{}, map[string][]campaign.Campaign{
		"Q1": {smsCampaign("C1", "Q1", 0)},
	})
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		require.True(t, f.proc.Submit(ctx, "Q1", fmt.Sprintf("119999900%02d", i), "u"))
	}

	res := f.proc.ProcessBatch(ctx)
	assert.Equal(t, 25, res.Processed)
	assert.Equal(t, 25, res.Scheduled)
	assert.Equal(t, 5, f.proc.Len())

	res = f.proc.ProcessBatch(ctx)
	assert.Equal(t, 5, res.Scheduled)
	assert.Len(t, f.recorder.List(), 30)

	assert.Equal(t, BatchResult{}, f.proc.ProcessBatch(ctx))
}

func TestProcessor_EmailCampaigns(t *testing.T) {
	campaigns := map[string][]campaign.Campaign{
		"Q1": {campaign.EmailCampaign{
			Base:    campaign.Base{ID: "E1", QuizID: "Q1", TriggerDelay: 5 * time.Minute, Active: true},
			Subject: "Your results",
			Body:    "See attached",
		}},
	}
	ctx := context.Background()

	t.Run("not implemented resolver skips and counts", func(t *testing.T) {
		f := newFixture(t, config.CompletionConfig{}, Deps{Resolver: NotImplementedEmailResolver{}}, campaigns)

		require.True(t, f.proc.SubmitEvent(ctx, Submission{QuizID: "Q1", Phone: "11999998888", Email: "a@b.com"}))
		res := f.proc.ProcessBatch(ctx)
		assert.Equal(t, 1, res.Skipped)
		assert.Empty(t, f.recorder.List())
		assert.Equal(t, int64(1), f.proc.Stats().EmailUnavailable)
	})

	t.Run("submission resolver uses captured address", func(t *testing.T) {
		f := newFixture(t, config.CompletionConfig{}, Deps{Resolver: SubmissionEmailResolver{}}, campaigns)

		require.True(t, f.proc.SubmitEvent(ctx, Submission{QuizID: "Q1", Phone: "11999998888", Email: "a@b.com"}))
		require.True(t, f.proc.SubmitEvent(ctx, Submission{QuizID: "Q1", Phone: "11999997777"}))
		res := f.proc.ProcessBatch(ctx)
		assert.Equal(t, 1, res.Scheduled)
		assert.Equal(t, 1, res.Skipped)

		sends := f.recorder.List()
		require.Len(t, sends, 1)
		assert.Equal(t, "a@b.com", sends[0].Recipient)
		assert.Equal(t, "Your results", sends[0].Subject)
		assert.Equal(t, "See attached", sends[0].Message)
		assert.Equal(t, f.clock.Now().Add(5*time.Minute), sends[0].ScheduledAt)
	})
}

func TestProcessor_Conditions(t *testing.T) {
	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	conditional := smsCampaign("C1", "Q1", 0)
	conditional.Condition = `answers["plan"] == "pro"`
	broken := smsCampaign("C2", "Q1", 0)
	broken.Condition = `answers["missing"] == "x"`

	f := newFixture(t, config.CompletionConfig{}, Deps{Conditions: evaluator}, map[string][]campaign.Campaign{
		"Q1": {conditional},
		"Q2": {broken},
	})
	ctx := context.Background()

	require.True(t, f.proc.SubmitEvent(ctx, Submission{QuizID: "Q1", Phone: "11999990001", Answers: map[string]interface{}{"plan": "pro"}}))
	require.True(t, f.proc.SubmitEvent(ctx, Submission{QuizID: "Q1", Phone: "11999990002", Answers: map[string]interface{}{"plan": "free"}}))
	require.True(t, f.proc.SubmitEvent(ctx, Submission{QuizID: "Q2", Phone: "11999990003"}))

	res := f.proc.ProcessBatch(ctx)
	assert.Equal(t, 1, res.Scheduled)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Errors)

	sends := f.recorder.List()
	require.Len(t, sends, 1)
	assert.Equal(t, "5511999990001", sends[0].Recipient)
}

func TestProcessor_RecordFailureReleasesDedup(t *testing.T) {
	f := newFixture(t, config.CompletionConfig{}, Deps{}, map[string][]campaign.Campaign{
		"Q1": {smsCampaign("C1", "Q1", 0)},
	})
	f.recorder.fails = 1
	ctx := context.Background()

	require.True(t, f.proc.Submit(ctx, "Q1", "11999998888", "u1"))
	res := f.proc.ProcessBatch(ctx)
	assert.Equal(t, 1, res.Errors)
	assert.False(t, f.proc.Seen("C1", "5511999998888"))

	require.True(t, f.proc.Submit(ctx, "Q1", "11999998888", "u1"))
	res = f.proc.ProcessBatch(ctx)
	assert.Equal(t, 1, res.Scheduled)
	assert.True(t, f.proc.Seen("C1", "5511999998888"))
}

func TestProcessor_ErrorRateAlert(t *testing.T) {
	tests := []struct {
		name       string
		fails      int
		wantAlerts int64
	}{
		{name: "no errors", fails: 0, wantAlerts: 0},
		{name: "at threshold", fails: 1, wantAlerts: 0},
		{name: "above threshold", fails: 2, wantAlerts: 1},
		{name: "every send fails", fails: 10, wantAlerts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.CompletionConfig{BatchSize: 10, ErrorRateThreshold: 0.1}
			f := newFixture(t, cfg, Deps{}, map[string][]campaign.Campaign{
				"Q1": {smsCampaign("C1", "Q1", 0)},
			})
			f.recorder.fails = tt.fails
			ctx := context.Background()

			for i := 0; i < 10; i++ {
				require.True(t, f.proc.Submit(ctx, "Q1", fmt.Sprintf("1199999%04d", i), "u1"))
			}
			res := f.proc.ProcessBatch(ctx)
			require.Equal(t, 10, res.Processed)
			assert.Equal(t, tt.fails, res.Errors)
			assert.Equal(t, tt.wantAlerts, f.proc.Stats().ErrorRateAlerts)
		})
	}
}

func TestProcessor_DepthAlert(t *testing.T) {
	tests := []struct {
		name        string
		queued      int
		afterBatch  int64
		afterReport int64
	}{
		{name: "below threshold", queued: 5, afterBatch: 0, afterReport: 0},
		{name: "at threshold", queued: 8, afterBatch: 0, afterReport: 0},
		{name: "above threshold", queued: 9, afterBatch: 1, afterReport: 1},
		{name: "full queue", queued: 10, afterBatch: 1, afterReport: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.CompletionConfig{MaxQueueSize: 10, EvictCount: 1, BatchSize: 1, DepthAlertRatio: 0.8}
			f := newFixture(t, cfg, Deps{}, nil)
			ctx := context.Background()

			for i := 0; i < tt.queued; i++ {
				require.True(t, f.proc.Submit(ctx, fmt.Sprintf("Q%d", i), "11999998888", "u1"))
			}

			f.proc.ProcessBatch(ctx)
			assert.Equal(t, tt.afterBatch, f.proc.Stats().DepthAlerts)

			f.proc.ReportStats(ctx)
			assert.Equal(t, tt.afterReport, f.proc.Stats().DepthAlerts)
		})
	}
}

func TestProcessor_StoreErrorYieldsNoSends(t *testing.T) {
	f := newFixture(t, config.CompletionConfig{}, Deps{}, nil)
	f.source.err = errors.New("db down")
	ctx := context.Background()

	require.True(t, f.proc.Submit(ctx, "Q1", "11999998888", "u1"))
	res := f.proc.ProcessBatch(ctx)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Scheduled)
	assert.Equal(t, 0, res.Errors)
}

func TestProcessor_ForwardsScheduledSends(t *testing.T) {
	fwd := &recordingForwarder{}
	f := newFixture(t, config.CompletionConfig{}, Deps{Forwarder: fwd}, map[string][]campaign.Campaign{
		"Q1": {
			smsCampaign("C1", "Q1", 0),
			campaign.VoiceCampaign{Base: campaign.Base{ID: "V1", QuizID: "Q1", Active: true}, Script: "hello", VoiceID: "v"},
		},
	})
	ctx := context.Background()

	require.True(t, f.proc.Submit(ctx, "Q1", "11999998888", "u1"))
	f.proc.ProcessBatch(ctx)

	require.Len(t, fwd.sends, 2)
	channels := []string{fwd.sends[0].Channel, fwd.sends[1].Channel}
	assert.ElementsMatch(t, []string{"sms", "voice"}, channels)
}

func TestProcessor_ManageCachesTrimsDedup(t *testing.T) {
	cfg := config.CompletionConfig{DedupMaxRecipients: 10, DedupKeepRecipients: 5}
	f := newFixture(t, cfg, Deps{}, nil)

	for i := 0; i < 11; i++ {
		f.proc.dedup.claim("C1", fmt.Sprintf("r%d", i))
	}

	f.proc.ManageCaches(context.Background())
	stats := f.proc.Stats()
	assert.Equal(t, 5, stats.DedupRecipients)
	assert.False(t, f.proc.Seen("C1", "r0"))
	assert.True(t, f.proc.Seen("C1", "r10"))
}

func TestProcessor_RunStopsOnCancel(t *testing.T) {
	cfg := config.CompletionConfig{TickInterval: 5 * time.Millisecond}
	f := newFixture(t, cfg, Deps{}, map[string][]campaign.Campaign{
		"Q1": {smsCampaign("C1", "Q1", 0)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.proc.Run(ctx) }()

	require.True(t, f.proc.Submit(ctx, "Q1", "11999998888", "u1"))
	require.Eventually(t, func() bool {
		return len(f.recorder.List()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
