package admission

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"vendzz/internal/config"
	"vendzz/internal/logger"
	apperrors "vendzz/pkg/errors"
	"vendzz/pkg/metrics"
)

const maxInspectedBody = 1 << 20

type Policy struct {
	limiter     Limiter
	classifier  Classifier
	baseQuota   int
	window      time.Duration
	multipliers map[Class]float64
	logger      logger.Logger
}

func NewPolicy(cfg config.AdmissionConfig, limiter Limiter, log logger.Logger) *Policy {
	multipliers := make(map[Class]float64, len(DefaultMultipliers))
	for class, m := range DefaultMultipliers {
		multipliers[class] = m
	}
	for class, m := range cfg.Multipliers {
		multipliers[Class(class)] = m
	}

	return &Policy{
		limiter:     limiter,
		classifier:  Classifier{ComplexElements: cfg.ComplexElements},
		baseQuota:   cfg.BaseQuota,
		window:      cfg.Window,
		multipliers: multipliers,
		logger:      log,
	}
}

// Quota is the per-window request budget for class.
func (p *Policy) Quota(class Class) int {
	m, ok := p.multipliers[class]
	if !ok {
		m = 1
	}
	q := int(math.Round(float64(p.baseQuota) * m))
	if q < 1 {
		q = 1
	}
	return q
}

// Middleware rejects requests over their class quota with 429. Limiter
// failures let the request through.
func (p *Policy) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if p.classifier.NeedsBody(c.Request) && c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(io.LimitReader(c.Request.Body, maxInspectedBody))
			if err == nil {
				c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
			}
		}

		class := p.classifier.Classify(c.Request, body)
		limit := p.Quota(class)
		key := string(class) + ":" + c.ClientIP()

		ctx := c.Request.Context()
		decision, err := p.limiter.Allow(ctx, key, limit, p.window)
		if err != nil {
			metrics.IncAdmissionRequest(string(class), "error")
			p.logger.WarnwCtx(ctx, "Admission limiter unavailable, allowing request",
				"class", class,
				"error", err,
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Class", string(class))
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			metrics.IncAdmissionRequest(string(class), "limited")
			retryAfter := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apperrors.ToErrorResponse(apperrors.ErrRateLimited))
			return
		}

		metrics.IncAdmissionRequest(string(class), "allowed")
		c.Next()
	}
}
