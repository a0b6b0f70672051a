// Package api exposes the dispatch pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vendzz/internal/cache"
	"vendzz/internal/campaignqueue"
	"vendzz/internal/completion"
	"vendzz/internal/logger"
	"vendzz/pkg/errors"
	"vendzz/pkg/logging"
	"vendzz/pkg/models"
)

type CompletionService interface {
	SubmitEvent(ctx context.Context, s completion.Submission) bool
	Stats() completion.Stats
}

type CampaignQueue interface {
	Enqueue(ctx context.Context, req campaignqueue.Request) ([]string, error)
	Stats() campaignqueue.Stats
}

type CampaignCache interface {
	Invalidate(quizID string) bool
	Stats() cache.Stats
}

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(ctx, "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(ctx, "Request rejected", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

type Handler struct {
	BaseHandler
	completions CompletionService
	queue       CampaignQueue
	campaigns   CampaignCache
	breakers    map[string]func() string
}

type HandlerDeps struct {
	Completions CompletionService
	Queue       CampaignQueue
	Campaigns   CampaignCache
	// Breakers maps a breaker name to its state reader.
	Breakers map[string]func() string
}

func NewHandler(deps HandlerDeps, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		completions: deps.Completions,
		queue:       deps.Queue,
		campaigns:   deps.Campaigns,
		breakers:    deps.Breakers,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/completions", h.SubmitCompletion)
		v1.POST("/campaign-sends", h.EnqueueCampaignSend)
		v1.DELETE("/campaigns/:quiz_id/cache", h.InvalidateCampaigns)
		v1.GET("/stats", h.GetStats)
	}
}

type CompletionAccepted struct {
	Status string `json:"status"`
	QuizID string `json:"quiz_id"`
}

// SubmitCompletion godoc
// @Summary      Submit a quiz completion
// @Description  Queues a completion for fan-out into the quiz's active campaigns
// @Tags         completions
// @Accept       json
// @Produce      json
// @Param        completion  body      models.CompletionPayload  true  "Completion"
// @Success      202         {object}  CompletionAccepted
// @Failure      400         {object}  errors.ErrorResponse
// @Failure      429         {object}  errors.ErrorResponse
// @Router       /completions [post]
func (h *Handler) SubmitCompletion(c *gin.Context) {
	var req models.CompletionPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	ctx := logging.WithQuizID(c.Request.Context(), req.QuizID)
	accepted := h.completions.SubmitEvent(ctx, completion.Submission{
		QuizID:  req.QuizID,
		Phone:   req.Phone,
		UserID:  req.UserID,
		Email:   req.Email,
		Answers: req.Answers,
	})
	if !accepted {
		h.HandleError(c, errors.ErrValidation.
			WithDetail("message", "completion rejected: invalid quiz id or phone number").
			WithDetail("quiz_id", req.QuizID))
		return
	}

	c.JSON(http.StatusAccepted, CompletionAccepted{Status: "accepted", QuizID: req.QuizID})
}

// CampaignSendRequest is the wire form of a bulk campaign send.
type CampaignSendRequest struct {
	Channel      string   `json:"channel"`
	QuizID       string   `json:"quiz_id"`
	CampaignID   string   `json:"campaign_id,omitempty"`
	UserID       string   `json:"user_id"`
	Recipients   []string `json:"recipients"`
	Message      string   `json:"message"`
	Subject      string   `json:"subject,omitempty"`
	DelaySeconds int      `json:"delay_seconds"`
}

func (r CampaignSendRequest) toQueueRequest() campaignqueue.Request {
	return campaignqueue.Request{
		Channel:    r.Channel,
		QuizID:     r.QuizID,
		CampaignID: r.CampaignID,
		UserID:     r.UserID,
		Recipients: r.Recipients,
		Message:    r.Message,
		Subject:    r.Subject,
		Delay:      time.Duration(r.DelaySeconds) * time.Second,
	}
}

type CampaignSendAccepted struct {
	Items  []string `json:"items"`
	Chunks int      `json:"chunks"`
}

// EnqueueCampaignSend godoc
// @Summary      Enqueue a campaign send
// @Description  Splits the recipient list into chunks and queues them for dispatch
// @Tags         campaign-sends
// @Accept       json
// @Produce      json
// @Param        send  body      CampaignSendRequest  true  "Campaign send"
// @Success      202   {object}  CampaignSendAccepted
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /campaign-sends [post]
func (h *Handler) EnqueueCampaignSend(c *gin.Context) {
	var req CampaignSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	ctx := logging.WithQuizID(c.Request.Context(), req.QuizID)
	if req.CampaignID != "" {
		ctx = logging.WithCampaignID(ctx, req.CampaignID)
	}
	ids, err := h.queue.Enqueue(ctx, req.toQueueRequest())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, CampaignSendAccepted{Items: ids, Chunks: len(ids)})
}

// InvalidateCampaigns godoc
// @Summary      Invalidate cached campaigns for a quiz
// @Tags         campaigns
// @Produce      json
// @Param        quiz_id  path      string  true  "Quiz ID"
// @Success      200      {object}  map[string]bool
// @Router       /campaigns/{quiz_id}/cache [delete]
func (h *Handler) InvalidateCampaigns(c *gin.Context) {
	quizID := c.Param("quiz_id")
	invalidated := false
	if h.campaigns != nil {
		invalidated = h.campaigns.Invalidate(quizID)
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": invalidated})
}

type StatsResponse struct {
	Completion      completion.Stats    `json:"completion"`
	CampaignQueue   campaignqueue.Stats `json:"campaign_queue"`
	CampaignCache   *cache.Stats        `json:"campaign_cache,omitempty"`
	CircuitBreakers map[string]string   `json:"circuit_breakers,omitempty"`
}

// GetStats godoc
// @Summary      Pipeline statistics
// @Description  Completion processor, campaign queue, cache and breaker state
// @Tags         stats
// @Produce      json
// @Success      200  {object}  StatsResponse
// @Router       /stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	resp := StatsResponse{
		Completion:    h.completions.Stats(),
		CampaignQueue: h.queue.Stats(),
	}
	if h.campaigns != nil {
		s := h.campaigns.Stats()
		resp.CampaignCache = &s
	}
	if len(h.breakers) > 0 {
		resp.CircuitBreakers = make(map[string]string, len(h.breakers))
		for name, state := range h.breakers {
			resp.CircuitBreakers[name] = state()
		}
	}
	c.JSON(http.StatusOK, resp)
}
