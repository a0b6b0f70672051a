package config

import (
	"errors"
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// problems collects every validation failure so one run reports all of them.
type problems []error

func (p *problems) add(field, format string, args ...interface{}) {
	*p = append(*p, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (p *problems) check(ok bool, field, format string, args ...interface{}) {
	if !ok {
		p.add(field, format, args...)
	}
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}

// ValidateStatic checks settings that can be verified without touching the
// network. It runs after ApplyDefaults.
func ValidateStatic(cfg *Config) error {
	var p problems

	p.validateServer(cfg.Server)
	p.validateBroker(cfg.Broker)
	p.validateDatabase(cfg.Database)
	p.validateCompletion(cfg.Completion)
	p.validateMemory(cfg.Memory)
	p.validateAdmission(cfg.Admission, cfg.Database.Redis)
	p.validateSendLog(cfg)
	p.validateSenders(cfg)

	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %w", errors.Join(p...))
}

func (p *problems) validateServer(cfg ServerConfig) {
	p.check(validPort(cfg.Port), "server.port", "port must be between 1 and 65535, got %d", cfg.Port)
	p.check(cfg.ReadTimeoutSeconds > 0, "server.read_timeout_seconds", "read timeout must be positive")
	p.check(cfg.WriteTimeoutSeconds > 0, "server.write_timeout_seconds", "write timeout must be positive")
}

func (p *problems) validateBroker(cfg BrokerConfig) {
	switch cfg.Type {
	case "", "memory":
	case "kafka":
		p.validateKafka(cfg.Kafka)
	default:
		p.add("broker.type", "unknown broker type: %s (supported: kafka, memory)", cfg.Type)
	}
}

func (p *problems) validateKafka(cfg KafkaConfig) {
	p.check(len(cfg.Brokers) > 0, "broker.kafka.brokers", "at least one Kafka broker is required")
	for i, b := range cfg.Brokers {
		p.check(b != "", fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty")
	}
	p.check(cfg.GroupID != "", "broker.kafka.group_id", "Kafka consumer group ID is required")

	r := cfg.Retry
	p.check(r.MaxAttempts >= 0, "broker.kafka.retry.max_attempts", "must be non-negative")
	p.check(r.InitialInterval >= 0, "broker.kafka.retry.initial_interval", "must be non-negative")
	p.check(r.MaxInterval >= 0, "broker.kafka.retry.max_interval", "must be non-negative")
	p.check(r.Multiplier >= 0, "broker.kafka.retry.multiplier", "must be non-negative")
	if r.MaxInterval > 0 && r.InitialInterval > r.MaxInterval {
		p.add("broker.kafka.retry.max_interval", "must be greater than or equal to initial_interval")
	}
}

var sslModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

func (p *problems) validateDatabase(cfg DatabaseConfig) {
	if pg := cfg.Postgres; pg.Host != "" || pg.Port > 0 {
		p.check(pg.Host != "", "database.postgres.host", "PostgreSQL host is required")
		p.check(validPort(pg.Port), "database.postgres.port", "port must be between 1 and 65535, got %d", pg.Port)
		p.check(pg.User != "", "database.postgres.user", "PostgreSQL user is required")
		p.check(pg.DBName != "", "database.postgres.dbname", "PostgreSQL database name is required")
		p.check(pg.SSLMode == "" || sslModes[strings.ToLower(pg.SSLMode)], "database.postgres.sslmode",
			"invalid SSL mode: %s", pg.SSLMode)
	}

	if rc := cfg.Redis; rc.Host != "" || rc.Port > 0 {
		p.check(rc.Host != "", "database.redis.host", "Redis host is required")
		p.check(validPort(rc.Port), "database.redis.port", "port must be between 1 and 65535, got %d", rc.Port)
	}

	if m := cfg.MongoDB; m.URI != "" {
		p.check(strings.HasPrefix(m.URI, "mongodb://") || strings.HasPrefix(m.URI, "mongodb+srv://"),
			"database.mongodb.uri", "MongoDB URI must start with mongodb:// or mongodb+srv://")
		p.check(m.Database != "", "database.mongodb.database", "MongoDB database name is required")
	}
}

func (p *problems) validateCompletion(cfg CompletionConfig) {
	p.check(cfg.EvictCount <= cfg.MaxQueueSize, "completion.evict_count",
		"evict_count (%d) cannot exceed max_queue_size (%d)", cfg.EvictCount, cfg.MaxQueueSize)
	p.check(cfg.DedupKeepRecipients <= cfg.DedupMaxRecipients, "completion.dedup_keep_recipients",
		"dedup_keep_recipients must not exceed dedup_max_recipients")
	p.check(cfg.ErrorRateThreshold <= 1, "completion.error_rate_threshold", "must be between 0 and 1")
	p.check(cfg.DepthAlertRatio <= 1, "completion.depth_alert_ratio", "must be between 0 and 1")
}

func (p *problems) validateMemory(cfg MemoryConfig) {
	p.check(cfg.WarningBytes < cfg.EmergencyBytes, "memory.warning_bytes",
		"warning threshold must be lower than emergency threshold")
	p.check(cfg.CleanupFraction <= 1, "memory.cleanup_fraction", "must be between 0 and 1")
}

func (p *problems) validateAdmission(cfg AdmissionConfig, redis RedisConfig) {
	switch strings.ToLower(cfg.Backend) {
	case "local":
	case "redis":
		p.check(redis.Host != "", "admission.backend", "redis backend requires database.redis to be configured")
	default:
		p.add("admission.backend", "invalid admission backend: %s (valid: local, redis)", cfg.Backend)
	}
	for class, factor := range cfg.Multipliers {
		p.check(factor > 0, "admission.multipliers."+class, "multiplier must be positive")
	}
}

func (p *problems) validateSendLog(cfg *Config) {
	switch strings.ToLower(cfg.SendLog.Type) {
	case "memory":
	case "postgres":
		p.check(cfg.Database.Postgres.Host != "", "send_log.type",
			"postgres send log requires database.postgres to be configured")
	case "mongodb":
		p.check(cfg.Database.MongoDB.URI != "", "send_log.type", "mongodb send log requires database.mongodb.uri")
	case "kafka":
		p.check(cfg.Broker.Type == "kafka" && cfg.Broker.Kafka.SendLogTopic != "", "send_log.type",
			"kafka send log requires broker.type=kafka and broker.kafka.send_log_topic")
	default:
		p.add("send_log.type", "invalid send log type: %s (valid: memory, postgres, mongodb, kafka)", cfg.SendLog.Type)
	}

	if cfg.SendLog.IdempotencyTTL > 0 {
		p.check(cfg.Database.Redis.Host != "", "send_log.idempotency_ttl",
			"idempotency guard requires database.redis to be configured")
	}
}

func (p *problems) validateSenders(cfg *Config) {
	switch strings.ToLower(cfg.Senders.Type) {
	case "log":
	case "broker":
		p.check(cfg.Broker.Type == "kafka", "senders.type", "broker senders require broker.type=kafka")
	default:
		p.add("senders.type", "invalid senders type: %s (valid: log, broker)", cfg.Senders.Type)
	}
	for ch, perSecond := range cfg.Senders.RateLimits {
		p.check(perSecond >= 0, "senders.rate_limits."+ch, "must not be negative")
	}
}
