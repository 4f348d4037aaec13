// Package ratelimit provides a three-window admission limiter for the
// Wordstat API: per-second, per-hour, and per-day ceilings checked as a
// single atomic unit.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const retryInterval = 10 * time.Millisecond

// window is one fixed quota window. A window whose duration has elapsed is
// reset (count back to zero), never decremented.
type window struct {
	limit int
	dur   time.Duration
	count int
	start time.Time
}

// resetIfStale restarts the window when its duration has elapsed.
func (w *window) resetIfStale(now time.Time) {
	if now.Sub(w.start) >= w.dur {
		w.count = 0
		w.start = now
	}
}

// Stats is a read-only snapshot of current consumption.
type Stats struct {
	SecondCount int `json:"second_count"`
	SecondLimit int `json:"second_limit"`
	HourCount   int `json:"hour_count"`
	HourLimit   int `json:"hour_limit"`
	DayCount    int `json:"day_count"`
	DayLimit    int `json:"day_limit"`
}

// Limiter tracks consumption against the three windows. All three limits are
// independent ceilings; an acquisition is granted only when every window has
// headroom, and consumes one slot from each.
type Limiter struct {
	mu     sync.Mutex
	second window
	hour   window
	day    window
	logger *zap.Logger // optional; when set, logs configuration and limit hits
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets a logger for configuration changes and quota warnings.
func WithLogger(l *zap.Logger) Option {
	return func(lim *Limiter) { lim.logger = l }
}

// New creates a limiter with the given ceilings. Each limit must be >= 1.
// A per-day limit smaller than the per-hour limit is legal (a deliberately
// tight daily cap); it is logged as a warning, never rejected.
func New(perSecond, perHour, perDay int, opts ...Option) (*Limiter, error) {
	lim := &Limiter{}
	for _, opt := range opts {
		opt(lim)
	}
	if err := lim.Configure(perSecond, perHour, perDay); err != nil {
		return nil, err
	}
	return lim, nil
}

// Configure replaces the three ceilings. Counts already consumed in the
// current windows are kept. Safe to call while acquisitions are in flight.
func (l *Limiter) Configure(perSecond, perHour, perDay int) error {
	if perSecond < 1 {
		return fmt.Errorf("per-second limit must be >= 1, got %d", perSecond)
	}
	if perHour < 1 {
		return fmt.Errorf("per-hour limit must be >= 1, got %d", perHour)
	}
	if perDay < 1 {
		return fmt.Errorf("per-day limit must be >= 1, got %d", perDay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.second = window{limit: perSecond, dur: time.Second, count: l.second.count, start: orNow(l.second.start, now)}
	l.hour = window{limit: perHour, dur: time.Hour, count: l.hour.count, start: orNow(l.hour.start, now)}
	l.day = window{limit: perDay, dur: 24 * time.Hour, count: l.day.count, start: orNow(l.day.start, now)}
	if l.logger != nil {
		l.logger.Info("rate limits configured",
			zap.Int("per_second", perSecond),
			zap.Int("per_hour", perHour),
			zap.Int("per_day", perDay),
		)
		if perDay < perHour {
			l.logger.Warn("per-day limit is below per-hour limit; the daily cap will bind first",
				zap.Int("per_hour", perHour),
				zap.Int("per_day", perDay),
			)
		}
	}
	return nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

// TryAcquire checks all three windows and, only when each has headroom,
// increments all three and reports granted. A rejection consumes nothing.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.second.resetIfStale(now)
	l.hour.resetIfStale(now)
	l.day.resetIfStale(now)

	if l.second.count >= l.second.limit ||
		l.hour.count >= l.hour.limit ||
		l.day.count >= l.day.limit {
		return false
	}
	l.second.count++
	l.hour.count++
	l.day.count++
	return true
}

// WaitAcquire blocks, retrying TryAcquire with a short interval, until
// granted, the timeout elapses, or ctx is done. A false return has consumed
// no quota.
func (l *Limiter) WaitAcquire(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		if l.TryAcquire() {
			return true
		}
		if time.Now().After(deadline) {
			if l.logger != nil {
				l.logger.Warn("rate limit wait timed out", zap.Duration("timeout", timeout))
			}
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Stats returns a snapshot of counts and limits. Stale windows are reset
// first so the snapshot reflects the current windows.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.second.resetIfStale(now)
	l.hour.resetIfStale(now)
	l.day.resetIfStale(now)
	return Stats{
		SecondCount: l.second.count,
		SecondLimit: l.second.limit,
		HourCount:   l.hour.count,
		HourLimit:   l.hour.limit,
		DayCount:    l.day.count,
		DayLimit:    l.day.limit,
	}
}
