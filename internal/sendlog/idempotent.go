package sendlog

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vendzz/internal/config"
	"vendzz/internal/constants"
	"vendzz/internal/logger"
	"vendzz/pkg/circuitbreaker"
	"vendzz/pkg/models"
)

// Guard claims a key for a bounded time. Claim returns false when the key
// is already held.
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis Del failed: %w", err)
	}
	return nil
}

type CircuitBreakerGuard struct {
	guard Guard
	cb    *circuitbreaker.Breaker
}

func NewCircuitBreakerGuard(guard Guard, cfg config.CircuitBreakerConfig) *CircuitBreakerGuard {
	return &CircuitBreakerGuard{
		guard: guard,
		cb:    circuitbreaker.FromSettings("redis-sendlog", cfg),
	}
}

func (g *CircuitBreakerGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return circuitbreaker.Run(ctx, g.cb, func() (bool, error) {
		return g.guard.Claim(ctx, key, ttl)
	})
}

func (g *CircuitBreakerGuard) Release(ctx context.Context, key string) error {
	_, err := circuitbreaker.Run(ctx, g.cb, func() (struct{}, error) {
		return struct{}{}, g.guard.Release(ctx, key)
	})
	return err
}

func (g *CircuitBreakerGuard) State() string {
	return g.cb.StateString()
}

// IdempotentRecorder skips sends whose (campaign, recipient) key was already
// claimed within ttl. When the guard is unavailable the send is recorded
// anyway and the backend's own uniqueness applies.
type IdempotentRecorder struct {
	next   Recorder
	guard  Guard
	ttl    time.Duration
	logger logger.Logger
}

func NewIdempotentRecorder(next Recorder, guard Guard, ttl time.Duration, log logger.Logger) *IdempotentRecorder {
	return &IdempotentRecorder{next: next, guard: guard, ttl: ttl, logger: log}
}

func (r *IdempotentRecorder) Record(ctx context.Context, send models.ScheduledSend) error {
	k := constants.CacheKeyPrefixSendLog + key(send.CampaignID, send.Recipient)

	claimed, err := r.guard.Claim(ctx, k, r.ttl)
	if err != nil {
		r.logger.WarnwCtx(ctx, "Idempotency guard unavailable, recording without it",
			"campaign_id", send.CampaignID,
			"error", err,
		)
		return r.next.Record(ctx, send)
	}
	if !claimed {
		r.logger.DebugwCtx(ctx, "Send already recorded",
			"campaign_id", send.CampaignID,
			"recipient", send.Recipient,
		)
		return nil
	}

	if err := r.next.Record(ctx, send); err != nil {
		if relErr := r.guard.Release(ctx, k); relErr != nil {
			r.logger.WarnwCtx(ctx, "Failed to release idempotency key", "key", k, "error", relErr)
		}
		return err
	}
	return nil
}

func (r *IdempotentRecorder) UpdateStatus(ctx context.Context, campaignID, recipient string, status models.SendStatus) error {
	return r.next.UpdateStatus(ctx, campaignID, recipient, status)
}

func (r *IdempotentRecorder) Backend() string {
	return r.next.Backend()
}
