package config

import "time"

// ApplyDefaults fills every zero-valued pipeline setting with its production default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 15
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Campaigns.CacheTTL <= 0 {
		cfg.Campaigns.CacheTTL = 30 * time.Second
	}
	if cfg.Campaigns.MaxQuizzes <= 0 {
		cfg.Campaigns.MaxQuizzes = 10000
	}
	if cfg.Campaigns.SweepInterval <= 0 {
		cfg.Campaigns.SweepInterval = time.Minute
	}

	ApplyCompletionDefaults(&cfg.Completion)
	ApplyCampaignQueueDefaults(&cfg.CampaignQueue)

	if cfg.Memory.Interval <= 0 {
		cfg.Memory.Interval = 5 * time.Minute
	}
	if cfg.Memory.WarningBytes == 0 {
		cfg.Memory.WarningBytes = 512 << 20
	}
	if cfg.Memory.EmergencyBytes == 0 {
		cfg.Memory.EmergencyBytes = 1 << 30
	}
	if cfg.Memory.CleanupFraction <= 0 {
		cfg.Memory.CleanupFraction = 0.2
	}
	if cfg.Memory.EmergencyItemAge <= 0 {
		cfg.Memory.EmergencyItemAge = time.Hour
	}

	if cfg.Admission.Backend == "" {
		cfg.Admission.Backend = "local"
	}
	if cfg.Admission.BaseQuota <= 0 {
		cfg.Admission.BaseQuota = 100
	}
	if cfg.Admission.Window <= 0 {
		cfg.Admission.Window = time.Minute
	}
	if cfg.Admission.ComplexElements <= 0 {
		cfg.Admission.ComplexElements = 20
	}
	if cfg.Admission.CleanupInterval <= 0 {
		cfg.Admission.CleanupInterval = 5 * time.Minute
	}
	if cfg.Admission.MaxAge <= 0 {
		cfg.Admission.MaxAge = 10 * time.Minute
	}

	if cfg.SendLog.Type == "" {
		cfg.SendLog.Type = "memory"
	}
	if cfg.SendLog.Collection == "" {
		cfg.SendLog.Collection = "scheduled_sends"
	}
	if cfg.Senders.Type == "" {
		cfg.Senders.Type = "log"
	}
}

// ApplyCompletionDefaults fills zero-valued completion settings.
func ApplyCompletionDefaults(c *CompletionConfig) {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 50000
	}
	if c.EvictCount <= 0 {
		c.EvictCount = 100
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.CacheManageInterval <= 0 {
		c.CacheManageInterval = time.Minute
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 30 * time.Second
	}
	if c.DedupMaxRecipients <= 0 {
		c.DedupMaxRecipients = 10000
	}
	if c.DedupKeepRecipients <= 0 {
		c.DedupKeepRecipients = 5000
	}
	if c.ErrorRateThreshold <= 0 {
		c.ErrorRateThreshold = 0.1
	}
	if c.DepthAlertRatio <= 0 {
		c.DepthAlertRatio = 0.8
	}
	if c.DefaultCountryCode == "" {
		c.DefaultCountryCode = "55"
	}
}

// ApplyCampaignQueueDefaults fills zero-valued campaign queue settings.
func ApplyCampaignQueueDefaults(c *CampaignQueueConfig) {
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = 200
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.CoalesceWindow <= 0 {
		c.CoalesceWindow = c.TickInterval
	}
}
