package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Campaigns      CampaignsConfig
	Completion     CompletionConfig
	CampaignQueue  CampaignQueueConfig  `mapstructure:"campaign_queue"`
	Memory         MemoryConfig
	Admission      AdmissionConfig
	SendLog        SendLogConfig        `mapstructure:"send_log"`
	Senders        SendersConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool   `mapstructure:"run_migrations"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	// CompletionTopic carries quiz completion events produced by the quiz front end.
	CompletionTopic string `mapstructure:"completion_topic"`
	// CampaignUpdateTopic carries campaign create/update/toggle notifications.
	CampaignUpdateTopic string      `mapstructure:"campaign_update_topic"`
	SendLogTopic        string      `mapstructure:"send_log_topic"`
	DLQTopic            string      `mapstructure:"dlq_topic"`
	Retry               RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

type CampaignsConfig struct {
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	MaxQuizzes int           `mapstructure:"max_quizzes"`

	// SweepInterval is how often expired quiz entries are removed.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type CompletionConfig struct {
	MaxQueueSize        int           `mapstructure:"max_queue_size"`
	EvictCount          int           `mapstructure:"evict_count"`
	BatchSize           int           `mapstructure:"batch_size"`
	Workers             int           `mapstructure:"workers"`
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	CacheManageInterval time.Duration `mapstructure:"cache_manage_interval"`
	StatsInterval       time.Duration `mapstructure:"stats_interval"`
	DedupMaxRecipients  int           `mapstructure:"dedup_max_recipients"`
	DedupKeepRecipients int           `mapstructure:"dedup_keep_recipients"`
	ErrorRateThreshold  float64       `mapstructure:"error_rate_threshold"`
	DepthAlertRatio     float64       `mapstructure:"depth_alert_ratio"`
	DefaultCountryCode  string        `mapstructure:"default_country_code"`
	ForwardToQueue      bool          `mapstructure:"forward_to_queue"`
}

type CampaignQueueConfig struct {
	MaxChunkSize   int            `mapstructure:"max_chunk_size"`
	BatchSize      int            `mapstructure:"batch_size"`
	TickInterval   time.Duration  `mapstructure:"tick_interval"`
	ChannelWeights map[string]int `mapstructure:"channel_weights"`
	// CoalesceWindow groups forwarded sends of one campaign whose due times
	// fall in the same window into shared items.
	CoalesceWindow time.Duration `mapstructure:"coalesce_window"`
}

type MemoryConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	WarningBytes     uint64        `mapstructure:"warning_bytes"`
	EmergencyBytes   uint64        `mapstructure:"emergency_bytes"`
	CleanupFraction  float64       `mapstructure:"cleanup_fraction"`
	EmergencyItemAge time.Duration `mapstructure:"emergency_item_age"`
}

type AdmissionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend selects the fixed-window store: "redis" or "local".
	Backend         string             `mapstructure:"backend"`
	BaseQuota       int                `mapstructure:"base_quota"`
	Window          time.Duration      `mapstructure:"window"`
	Multipliers     map[string]float64 `mapstructure:"multipliers"`
	ComplexElements int                `mapstructure:"complex_elements"`
	CleanupInterval time.Duration      `mapstructure:"cleanup_interval"`
	MaxAge          time.Duration      `mapstructure:"max_age"`
}

type SendLogConfig struct {
	// Type selects the backend: "postgres", "mongodb", "kafka" or "memory".
	Type string `mapstructure:"type"`
	// IdempotencyTTL enables the Redis SETNX guard when positive.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	Collection     string        `mapstructure:"collection"`
}

type SendersConfig struct {
	// Type is "broker" (publish to per-channel topics) or "log".
	Type   string            `mapstructure:"type"`
	Topics map[string]string `mapstructure:"topics"`
	Retry  RetryConfig       `mapstructure:"retry"`
	// RateLimits caps messages per second per channel. Channels without an
	// entry are not throttled.
	RateLimits map[string]float64 `mapstructure:"rate_limits"`
	Burst      int                `mapstructure:"burst"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
