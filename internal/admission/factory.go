package admission

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewLimiter returns the configured backend. local backs the "local" type;
// the caller owns its cleanup loop.
func NewLimiter(backend string, client *redis.Client, local *LocalLimiter) (Limiter, error) {
	switch strings.ToLower(backend) {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis admission backend requires a redis client")
		}
		return NewRedisLimiter(client), nil
	case "local", "":
		if local == nil {
			return nil, fmt.Errorf("local admission backend requires a local limiter")
		}
		return local, nil
	default:
		return nil, fmt.Errorf("unsupported admission backend: %s", backend)
	}
}
