package admission

import (
	"context"
	"errors"
	"sync"
	"time"

	"vendzz/internal/logger"
	"vendzz/pkg/periodic"
)

type localWindow struct {
	mu       sync.Mutex
	start    time.Time
	count    int
	lastSeen time.Time
}

// LocalLimiter is a fixed-window counter per key held in process memory.
// Windows are aligned to now.Truncate(window), the same boundaries the
// Redis backend uses.
type LocalLimiter struct {
	mu      sync.RWMutex
	windows map[string]*localWindow
	maxAge  time.Duration
	now     func() time.Time
}

func NewLocalLimiter(maxAge time.Duration) *LocalLimiter {
	return &LocalLimiter{
		windows: make(map[string]*localWindow),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(window)
	w := l.window(key)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.start.Equal(windowStart) {
		w.start = windowStart
		w.count = 0
	}
	w.count++
	w.lastSeen = now

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(window),
	}, nil
}

func (l *LocalLimiter) window(key string) *localWindow {
	l.mu.RLock()
	w, ok := l.windows[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[key]; ok {
		return w
	}
	w = &localWindow{}
	l.windows[key] = w
	return w
}

// Cleanup forgets keys idle for longer than maxAge.
func (l *LocalLimiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		w.mu.Lock()
		idle := now.Sub(w.lastSeen)
		w.mu.Unlock()
		if idle > l.maxAge {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

func (l *LocalLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.windows)
}

// RunCleanup removes idle keys every interval until ctx is done.
func (l *LocalLimiter) RunCleanup(ctx context.Context, interval time.Duration, log logger.Logger) error {
	task := periodic.NewTask("admission-cleanup", interval, func(ctx context.Context) error {
		l.Cleanup()
		return nil
	}, log)
	if err := task.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
