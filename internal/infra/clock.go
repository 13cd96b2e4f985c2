package infra

import (
	"context"
	"time"

	"github.com/farmstock/stockmon/internal/domain"
)

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ContextSleeper sleeps on a timer and wakes early when ctx is done.
type ContextSleeper struct{}

// Sleep waits for d. It returns ctx.Err() if ctx ends first.
func (ContextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var (
	_ domain.Clock   = SystemClock{}
	_ domain.Sleeper = ContextSleeper{}
)
