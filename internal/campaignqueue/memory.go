package campaignqueue

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"

	"vendzz/internal/config"
	"vendzz/internal/logger"
	"vendzz/pkg/metrics"
	"vendzz/pkg/periodic"
)

// Evictable is a cache the memory manager may shrink.
type Evictable interface {
	Name() string
	EvictColdest(fraction float64) int
	Clear()
}

// MemorySampler returns the process's resident memory in bytes.
type MemorySampler func(ctx context.Context) (uint64, error)

// ProcessRSS samples the current process through gopsutil.
func ProcessRSS() MemorySampler {
	return func(ctx context.Context) (uint64, error) {
		p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
		if err != nil {
			return 0, fmt.Errorf("failed to open process: %w", err)
		}
		info, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read memory info: %w", err)
		}
		return info.RSS, nil
	}
}

type PressureLevel string

const (
	PressureNormal    PressureLevel = "normal"
	PressureWarning   PressureLevel = "warning"
	PressureEmergency PressureLevel = "emergency"
)

type CleanupResult struct {
	Level        PressureLevel
	UsageBytes   uint64
	EvictedItems int
	DroppedItems int
}

type MemoryManager struct {
	cfg    config.MemoryConfig
	sample MemorySampler
	caches []Evictable
	queue  *Queue
	logger logger.Logger
}

func NewMemoryManager(cfg config.MemoryConfig, sample MemorySampler, queue *Queue, log logger.Logger, caches ...Evictable) *MemoryManager {
	if sample == nil {
		sample = ProcessRSS()
	}
	return &MemoryManager{
		cfg:    cfg,
		sample: sample,
		caches: caches,
		queue:  queue,
		logger: log,
	}
}

func (m *MemoryManager) Register(c Evictable) {
	m.caches = append(m.caches, c)
}

// Check samples memory once and applies the cleanup for the current level.
func (m *MemoryManager) Check(ctx context.Context) (CleanupResult, error) {
	usage, err := m.sample(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	metrics.SetMemoryUsage(usage)

	res := CleanupResult{Level: PressureNormal, UsageBytes: usage}
	switch {
	case usage >= m.cfg.EmergencyBytes:
		res.Level = PressureEmergency
		for _, c := range m.caches {
			c.Clear()
		}
		if m.queue != nil {
			res.DroppedItems = m.queue.DropOlderThan(m.cfg.EmergencyItemAge)
		}
		m.logger.WarnwCtx(ctx, "Memory emergency, caches flushed",
			"usage_bytes", usage,
			"threshold_bytes", m.cfg.EmergencyBytes,
			"dropped_items", res.DroppedItems,
		)
	case usage >= m.cfg.WarningBytes:
		res.Level = PressureWarning
		for _, c := range m.caches {
			res.EvictedItems += c.EvictColdest(m.cfg.CleanupFraction)
		}
		m.logger.WarnwCtx(ctx, "Memory warning, evicted cold cache entries",
			"usage_bytes", usage,
			"threshold_bytes", m.cfg.WarningBytes,
			"evicted", res.EvictedItems,
		)
	default:
		return res, nil
	}

	metrics.IncMemoryCleanup(string(res.Level))
	return res, nil
}

func (m *MemoryManager) Run(ctx context.Context) error {
	task := periodic.NewTask("memory-manager", m.cfg.Interval, func(ctx context.Context) error {
		_, err := m.Check(ctx)
		return err
	}, m.logger)

	if err := task.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
