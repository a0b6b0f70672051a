package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendzz/internal/admission"
	"vendzz/internal/campaign"
	"vendzz/internal/campaignqueue"
	"vendzz/internal/completion"
	"vendzz/internal/config"
	"vendzz/internal/logger"
	"vendzz/internal/sender"
	"vendzz/internal/sendlog"
	"vendzz/pkg/health"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router    *gin.Engine
	processor *completion.Processor
	queue     *campaignqueue.Queue
	campaigns *campaign.Cache
	recorder  *sendlog.MemoryRecorder
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	log := logger.NopLogger()

	source := campaign.StaticSource{
		"Q1": {campaign.SMSCampaign{
			Base:    campaign.Base{ID: "C1", QuizID: "Q1", TriggerDelay: time.Minute, Active: true},
			Message: "hello",
		}},
	}
	campaigns := campaign.NewCache(source, campaign.CacheOptions{TTL: time.Minute}, log)
	recorder := sendlog.NewMemoryRecorder()
	processor := completion.NewProcessor(config.CompletionConfig{}, completion.Deps{
		Campaigns: campaigns,
		Recorder:  recorder,
	}, log)

	registry := sender.NewRegistry()
	registry.Register("sms", sender.SenderFunc(func(ctx context.Context, msg sender.Message) error { return nil }))
	queue := campaignqueue.New(config.CampaignQueueConfig{}, campaignqueue.Options{Dispatcher: registry}, log)

	h := NewHandler(HandlerDeps{
		Completions: processor,
		Queue:       queue,
		Campaigns:   campaigns,
		Breakers:    map[string]func() string{"campaign-source": func() string { return "closed" }},
	}, log)

	return &testServer{
		router:    NewRouter(h, opts, log),
		processor: processor,
		queue:     queue,
		campaigns: campaigns,
		recorder:  recorder,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestSubmitCompletion_Accepted(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	w := s.do(http.MethodPost, "/api/v1/completions", `{"quiz_id":"Q1","phone":"(11) 99999-8888","user_id":"u1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp CompletionAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, 1, s.processor.Len())

	res := s.processor.ProcessBatch(context.Background())
	assert.Equal(t, 1, res.Scheduled)
	sends := s.recorder.List()
	require.Len(t, sends, 1)
	assert.Equal(t, "5511999998888", sends[0].Recipient)
}

func TestSubmitCompletion_Rejected(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"quiz_id":`},
		{name: "missing phone", body: `{"quiz_id":"Q1"}`},
		{name: "short phone", body: `{"quiz_id":"Q1","phone":"12345"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/v1/completions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
		})
	}
	assert.Equal(t, 0, s.processor.Len())
}

func TestEnqueueCampaignSend(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	recipients := make([]string, 450)
	for i := range recipients {
		recipients[i] = "r" + strings.Repeat("x", i%5)
	}
	body, err := json.Marshal(CampaignSendRequest{
		Channel:    "sms",
		QuizID:     "Q1",
		UserID:     "u1",
		Recipients: recipients,
		Message:    "promo",
	})
	require.NoError(t, err)

	w := s.do(http.MethodPost, "/api/v1/campaign-sends", string(body))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp CampaignSendAccepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Chunks)
	assert.Equal(t, 3, s.queue.Len())
}

func TestEnqueueCampaignSend_Validation(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	w := s.do(http.MethodPost, "/api/v1/campaign-sends", `{"channel":"fax","quiz_id":"Q1","recipients":["a"],"message":"m"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, s.queue.Len())

	w = s.do(http.MethodPost, "/api/v1/campaign-sends", `{"channel":"sms","quiz_id":"Q1","recipients":[],"message":"m"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidateCampaigns(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.campaigns.GetCampaignsFor(context.Background(), "Q1")

	w := s.do(http.MethodDelete, "/api/v1/campaigns/Q1/cache", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"invalidated":true}`, w.Body.String())

	w = s.do(http.MethodDelete, "/api/v1/campaigns/Q1/cache", "")
	assert.JSONEq(t, `{"invalidated":false}`, w.Body.String())
}

func TestGetStats(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.do(http.MethodPost, "/api/v1/completions", `{"quiz_id":"Q1","phone":"11999998888"}`)

	w := s.do(http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Completion.Accepted)
	assert.Equal(t, 1, resp.Completion.QueueDepth)
	require.NotNil(t, resp.CampaignCache)
	assert.Equal(t, "closed", resp.CircuitBreakers["campaign-source"])
}

func TestHealth(t *testing.T) {
	registry := health.NewCheckerRegistry()
	registry.Register(health.CheckerFunc("ok", func(ctx context.Context) error { return nil }))
	s := newTestServer(t, RouterOptions{Health: registry})

	w := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	registry.Register(health.CheckerFunc("down", func(ctx context.Context) error { return errors.New("unreachable") }))
	w = s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}

func TestRouter_RequestIDAndMetrics(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	w := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_AdmissionControl(t *testing.T) {
	policy := admission.NewPolicy(config.AdmissionConfig{
		BaseQuota: 1,
		Window:    time.Minute,
	}, admission.NewLocalLimiter(time.Minute), logger.NopLogger())
	s := newTestServer(t, RouterOptions{Admission: policy})

	w := s.do(http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
