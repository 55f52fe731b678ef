package fetch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds how many outbound fetches may be in flight to a single
// peer at once, so a slow or unresponsive peer cannot monopolize the
// process's outbound connection budget.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter returns a Limiter allowing up to maxConcurrent fetches at a
// time.
func NewLimiter(maxConcurrent int64) *Limiter {
	return &Limiter{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Do runs fn once a slot is available, releasing it on return. It returns
// ctx.Err() without running fn if ctx is cancelled before a slot opens up.
func (l *Limiter) Do(ctx context.Context, fn func() ([][]byte, error)) ([][]byte, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return fn()
}
