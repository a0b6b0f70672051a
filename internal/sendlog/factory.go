package sendlog

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"vendzz/internal/broker"
	"vendzz/internal/config"
	"vendzz/internal/logger"
)

// Deps carries the already-connected clients a backend may need.
type Deps struct {
	Postgres *sql.DB
	Mongo    *mongo.Database
	Redis    *redis.Client
	Producer broker.Producer
}

func New(cfg *config.Config, deps Deps, log logger.Logger) (Recorder, error) {
	var rec Recorder

	switch strings.ToLower(cfg.SendLog.Type) {
	case "memory":
		rec = NewMemoryRecorder()
	case "postgres":
		if deps.Postgres == nil {
			return nil, fmt.Errorf("postgres send log requires a database connection")
		}
		rec = NewPostgresRecorder(deps.Postgres)
	case "mongodb":
		if deps.Mongo == nil {
			return nil, fmt.Errorf("mongodb send log requires a database connection")
		}
		rec = NewMongoRecorder(deps.Mongo, cfg.SendLog.Collection)
	case "kafka":
		if deps.Producer == nil {
			return nil, fmt.Errorf("kafka send log requires a producer")
		}
		rec = NewBrokerRecorder(deps.Producer, cfg.Broker.Kafka.SendLogTopic)
	default:
		return nil, fmt.Errorf("unsupported send log type: %s", cfg.SendLog.Type)
	}

	if cfg.SendLog.IdempotencyTTL > 0 && deps.Redis != nil {
		guard := NewCircuitBreakerGuard(NewRedisGuard(deps.Redis), cfg.CircuitBreaker)
		rec = NewIdempotentRecorder(rec, guard, cfg.SendLog.IdempotencyTTL, log)
	}

	return WithMetrics(rec), nil
}
