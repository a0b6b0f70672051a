package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CompletionSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_submissions_total",
			Help: "Total number of completion events submitted (count)",
		},
		[]string{"status"},
	)

	CompletionEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "completion_events_dropped_total",
			Help: "Completion events discarded by the drop-oldest capacity policy (count)",
		},
	)

	CompletionQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "completion_queue_depth",
			Help: "Current number of queued completion events per priority lane (count)",
		},
		[]string{"lane"},
	)

	CompletionBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "completion_batch_duration_ms",
			Help:    "Time to fan out one completion batch in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	ScheduledSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_sends_total",
			Help: "Outcome of each campaign x completion fan-out attempt (count)",
		},
		[]string{"channel", "status"},
	)

	CampaignCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_cache_lookups_total",
			Help: "Campaign cache lookups by result (count)",
		},
		[]string{"result"},
	)

	CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_size",
			Help: "Entries held by a bounded cache (count)",
		},
		[]string{"cache"},
	)

	CacheHitRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_hit_rate",
			Help: "Cache hit rate (ratio, 0.0 to 1.0)",
		},
		[]string{"cache"},
	)

	DedupRecipientsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_recipients_tracked",
			Help: "Recipients held across all per-campaign dedup sets (count)",
		},
	)

	CampaignQueueItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_queue_items_total",
			Help: "Campaign queue items by channel and lifecycle status (count)",
		},
		[]string{"channel", "status"},
	)

	CampaignQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_queue_depth",
			Help: "Items waiting in the unified campaign queue (count)",
		},
	)

	CampaignQueueInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_queue_inflight",
			Help: "Items currently being dispatched (count)",
		},
	)

	SenderDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sender_dispatch_duration_ms",
			Help:    "Channel sender latency in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"channel", "status"},
	)

	MemoryUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_memory_sampled_bytes",
			Help: "Resident memory observed by the memory manager (bytes)",
		},
	)

	MemoryCleanupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_cleanups_total",
			Help: "Cleanups triggered by memory pressure (count)",
		},
		[]string{"level"},
	)

	AdmissionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_requests_total",
			Help: "Requests checked by admission control (count)",
		},
		[]string{"class", "status"},
	)

	SendLogWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "send_log_writes_total",
			Help: "Scheduled send persistence attempts (count)",
		},
		[]string{"backend", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_read_duration_ms",
			Help:    "Duration of reading messages from Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterDispatchMetrics() {
	prometheus.MustRegister(CompletionSubmissionsTotal)
	prometheus.MustRegister(CompletionEventsDroppedTotal)
	prometheus.MustRegister(CompletionQueueDepth)
	prometheus.MustRegister(CompletionBatchDuration)
	prometheus.MustRegister(ScheduledSendsTotal)
	prometheus.MustRegister(CampaignCacheLookupsTotal)
	prometheus.MustRegister(CacheSize)
	prometheus.MustRegister(CacheHitRate)
	prometheus.MustRegister(DedupRecipientsTracked)
	prometheus.MustRegister(CampaignQueueItemsTotal)
	prometheus.MustRegister(CampaignQueueDepth)
	prometheus.MustRegister(CampaignQueueInflight)
	prometheus.MustRegister(SenderDispatchDuration)
	prometheus.MustRegister(MemoryUsageBytes)
	prometheus.MustRegister(MemoryCleanupsTotal)
	prometheus.MustRegister(AdmissionRequestsTotal)
	prometheus.MustRegister(SendLogWritesTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaReadDuration)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func IncCompletionSubmission(status string) {
	CompletionSubmissionsTotal.WithLabelValues(status).Inc()
}

func AddCompletionDropped(n int) {
	CompletionEventsDroppedTotal.Add(float64(n))
}

func SetCompletionQueueDepth(high, normal int) {
	CompletionQueueDepth.WithLabelValues("high").Set(float64(high))
	CompletionQueueDepth.WithLabelValues("normal").Set(float64(normal))
}

func ObserveCompletionBatchDuration(duration time.Duration) {
	CompletionBatchDuration.Observe(float64(duration.Milliseconds()))
}

func IncScheduledSend(channel, status string) {
	ScheduledSendsTotal.WithLabelValues(channel, status).Inc()
}

func IncCampaignCacheLookup(result string) {
	CampaignCacheLookupsTotal.WithLabelValues(result).Inc()
}

func SetCacheStats(cache string, size int, hitRate float64) {
	CacheSize.WithLabelValues(cache).Set(float64(size))
	CacheHitRate.WithLabelValues(cache).Set(hitRate)
}

func SetDedupRecipientsTracked(n int) {
	DedupRecipientsTracked.Set(float64(n))
}

func IncCampaignQueueItem(channel, status string) {
	CampaignQueueItemsTotal.WithLabelValues(channel, status).Inc()
}

func SetCampaignQueueState(depth, inflight int) {
	CampaignQueueDepth.Set(float64(depth))
	CampaignQueueInflight.Set(float64(inflight))
}

func ObserveSenderDispatch(channel, status string, duration time.Duration) {
	SenderDispatchDuration.WithLabelValues(channel, status).Observe(float64(duration.Milliseconds()))
}

func SetMemoryUsage(bytes uint64) {
	MemoryUsageBytes.Set(float64(bytes))
}

func IncMemoryCleanup(level string) {
	MemoryCleanupsTotal.WithLabelValues(level).Inc()
}

func IncAdmissionRequest(class, status string) {
	AdmissionRequestsTotal.WithLabelValues(class, status).Inc()
}

func IncSendLogWrite(backend, status string) {
	SendLogWritesTotal.WithLabelValues(backend, status).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
