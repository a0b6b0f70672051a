// Package periodic runs cancellable background ticks.
package periodic

import (
	"context"
	"sync"
	"time"

	"vendzz/internal/logger"
	apperrors "vendzz/pkg/errors"
)

// Func is the work executed on every tick.
type Func func(ctx context.Context) error

// Task fires Fn every Interval until its context is cancelled. A tick does
// not wait for the previous one to finish; Run returns only after every
// in-flight tick has returned.
type Task struct {
	Name     string
	Interval time.Duration
	Fn       Func
	// RunOnStart executes one tick immediately instead of waiting a full interval.
	RunOnStart bool

	logger logger.Logger
	wg     sync.WaitGroup
}

func NewTask(name string, interval time.Duration, fn Func, log logger.Logger) *Task {
	return &Task{
		Name:     name,
		Interval: interval,
		Fn:       fn,
		logger:   log,
	}
}

// Run blocks until ctx is done and returns ctx.Err().
func (t *Task) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	defer t.wg.Wait()

	if t.RunOnStart {
		t.spawn(ctx)
	}

	for {
		select {
		case <-ticker.C:
			t.spawn(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Task) spawn(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.RunOnce(ctx); err != nil && ctx.Err() == nil {
			t.logger.ErrorwCtx(ctx, "Periodic task failed",
				"task", t.Name,
				"error", err,
			)
		}
	}()
}

// RunOnce executes a single tick synchronously. Panics are converted to errors.
func (t *Task) RunOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return t.Fn(ctx)
}
