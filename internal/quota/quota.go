// Package quota counts paid external calls in fixed daily windows.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// ErrExceeded is returned when the daily limit has been used up.
var ErrExceeded = errors.New("daily quota exceeded")

// Limiter enforces a per-day call budget for one provider.
// Counters live in the shared cache so several workers draw from the same budget.
type Limiter struct {
	cache    domain.Cache
	provider string
	limit    int64
	now      func() time.Time
}

// NewLimiter creates a limiter. A limit of 0 or less disables it.
func NewLimiter(cache domain.Cache, provider string, limit int64) *Limiter {
	return &Limiter{
		cache:    cache,
		provider: provider,
		limit:    limit,
		now:      time.Now,
	}
}

// Enabled reports whether calls are being counted.
func (l *Limiter) Enabled() bool {
	return l != nil && l.cache != nil && l.limit > 0
}

// Take consumes one call from today's budget and returns the count used so far.
func (l *Limiter) Take(ctx context.Context) (int64, error) {
	if !l.Enabled() {
		return 0, nil
	}

	count, err := l.cache.IncrementCounter(ctx, domain.NamespaceQuota, l.key(), 24*time.Hour)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s call: %w", l.provider, err)
	}
	if count > l.limit {
		return count, fmt.Errorf("%w: %s used %d of %d", ErrExceeded, l.provider, count, l.limit)
	}
	return count, nil
}

// key buckets counts by UTC day.
func (l *Limiter) key() string {
	return l.provider + ":" + l.now().UTC().Format("2006-01-02")
}
