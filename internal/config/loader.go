package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envKeys are the config keys that can be overridden from the environment.
// The variable name is the key upper-cased with dots replaced by underscores,
// e.g. broker.kafka.brokers -> BROKER_KAFKA_BROKERS.
var envKeys = []string{
	"server.port",
	"server.read_timeout_seconds",
	"server.write_timeout_seconds",

	"logging.level",
	"logging.format",

	"database.run_migrations",
	"database.postgres.host",
	"database.postgres.port",
	"database.postgres.user",
	"database.postgres.password",
	"database.postgres.dbname",
	"database.postgres.sslmode",
	"database.redis.host",
	"database.redis.port",
	"database.redis.password",
	"database.redis.db",
	"database.mongodb.uri",
	"database.mongodb.database",

	"broker.type",
	"broker.kafka.brokers",
	"broker.kafka.group_id",
	"broker.kafka.completion_topic",
	"broker.kafka.campaign_update_topic",
	"broker.kafka.send_log_topic",
	"broker.kafka.dlq_topic",

	"completion.max_queue_size",
	"completion.workers",
	"completion.forward_to_queue",

	"send_log.type",
	"senders.type",
	"admission.enabled",
	"admission.backend",
	"admission.base_quota",

	"tracing.enabled",
	"tracing.service_name",
	"tracing.otlp.endpoint",
	"tracing.otlp.insecure",
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadConfig reads configFile, applies environment overrides and defaults,
// and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	for _, key := range envKeys {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Broker.Kafka.Brokers = splitList(cfg.Broker.Kafka.Brokers)

	ApplyDefaults(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList normalizes a list that may have arrived as one comma-separated
// environment value.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
