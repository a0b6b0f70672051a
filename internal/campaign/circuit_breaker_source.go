package campaign

import (
	"context"

	"vendzz/internal/config"
	"vendzz/pkg/circuitbreaker"
)

type CircuitBreakerSource struct {
	source Source
	cb     *circuitbreaker.Breaker
}

func NewCircuitBreakerSource(source Source, cfg config.CircuitBreakerConfig) *CircuitBreakerSource {
	return &CircuitBreakerSource{
		source: source,
		cb:     circuitbreaker.FromSettings("postgres-campaigns", cfg),
	}
}

func (s *CircuitBreakerSource) ListActiveCampaigns(ctx context.Context, quizID string) ([]Campaign, error) {
	return circuitbreaker.Run(ctx, s.cb, func() ([]Campaign, error) {
		return s.source.ListActiveCampaigns(ctx, quizID)
	})
}

func (s *CircuitBreakerSource) State() string {
	return s.cb.StateString()
}
