// Package health aggregates dependency and pipeline checks for /health.
package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const pingTimeout = 5 * time.Second

// ErrDegraded marks a check result as degraded rather than unhealthy.
var ErrDegraded = errors.New("degraded")

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func resultOf(err error) CheckResult {
	r := CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
	if err == nil {
		return r
	}
	r.Message = err.Error()
	r.Status = StatusUnhealthy
	if errors.Is(err, ErrDegraded) {
		r.Status = StatusDegraded
	}
	return r
}

// CheckerRegistry runs every registered checker concurrently. The overall
// status is the worst individual status.
type CheckerRegistry struct {
	mu       sync.RWMutex
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, checker)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	r.mu.RLock()
	checkers := append([]Checker(nil), r.checkers...)
	r.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = resultOf(c.Check(ctx))
			return nil
		})
	}
	_ = g.Wait()

	h := Health{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checkers)),
	}
	for i, c := range checkers {
		res := results[i]
		h.Checks[c.Name()] = res
		switch {
		case res.Status == StatusUnhealthy:
			h.Status = StatusUnhealthy
		case res.Status == StatusDegraded && h.Status == StatusHealthy:
			h.Status = StatusDegraded
		}
	}
	return h
}

type funcChecker struct {
	name string
	fn   func(ctx context.Context) error
}

// CheckerFunc adapts fn to a Checker.
func CheckerFunc(name string, fn func(ctx context.Context) error) Checker {
	return &funcChecker{name: name, fn: fn}
}

func (c *funcChecker) Name() string                    { return c.name }
func (c *funcChecker) Check(ctx context.Context) error { return c.fn(ctx) }

func pingChecker(name string, ping func(ctx context.Context) error) Checker {
	return CheckerFunc(name, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	})
}

func NewPostgreSQLChecker(db *sql.DB) Checker {
	return pingChecker("postgresql", db.PingContext)
}

func NewRedisChecker(client *redis.Client) Checker {
	return pingChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func NewMongoDBChecker(client *mongo.Client) Checker {
	return pingChecker("mongodb", func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	})
}

// BreakerChecker reports degraded while the named circuit breaker is not closed.
func BreakerChecker(name string, state func() string) Checker {
	return CheckerFunc("circuit_breaker:"+name, func(ctx context.Context) error {
		switch s := state(); s {
		case "closed", "disabled":
			return nil
		default:
			return fmt.Errorf("%w: circuit breaker %s is %s", ErrDegraded, name, s)
		}
	})
}

// QueueChecker reports degraded once depth exceeds ratio of capacity.
func QueueChecker(name string, depth func() int, capacity int, ratio float64) Checker {
	return CheckerFunc("queue:"+name, func(ctx context.Context) error {
		d := depth()
		if capacity > 0 && float64(d) > float64(capacity)*ratio {
			return fmt.Errorf("%w: %s depth %d of %d", ErrDegraded, name, d, capacity)
		}
		return nil
	})
}
