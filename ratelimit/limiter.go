// Package ratelimit implements sliding-window request counting per caller
// identity. Each (window, identity) pair owns an independent bucket; a
// bucket resets exactly once when the current time crosses its window
// boundary, never mid-window. There is no lock spanning buckets.
//
// State is process-local. Distributed rate-limit coordination is out of
// scope.
package ratelimit

import (
	"sync"
	"time"
)

// Window identifies one of the configured limit windows, ordered from
// tightest to loosest.
type Window string

const (
	WindowBurst  Window = "burst"
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

// Config sets the per-window limits.
type Config struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" toml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour" json:"requests_per_hour" toml:"requests_per_hour"`
	// BurstSize caps requests inside the short burst window. Must not
	// exceed RequestsPerMinute.
	BurstSize int `yaml:"burst_size" json:"burst_size" toml:"burst_size"`
	// BurstWindow is the burst period. Defaults to 10 seconds.
	BurstWindow time.Duration `yaml:"burst_window" json:"burst_window" toml:"burst_window"`
}

func (c Config) withDefaults() Config {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 60
	}
	if c.RequestsPerHour <= 0 {
		c.RequestsPerHour = 1000
	}
	if c.BurstSize <= 0 {
		c.BurstSize = 10
	}
	if c.BurstWindow <= 0 {
		c.BurstWindow = 10 * time.Second
	}
	return c
}

// Decision is the outcome of one Allow check.
type Decision struct {
	Allowed bool
	// Window is the tightest violated window when denied.
	Window Window
	// Limit and Current describe the violated window when denied.
	Limit   int
	Current int
	// RetryAfter estimates the remaining time in the violated window.
	RetryAfter time.Duration
	// Remaining per window when allowed.
	BurstRemaining  int
	MinuteRemaining int
	HourRemaining   int
}

// bucket counts requests inside one fixed-boundary window. The count is
// monotonically non-decreasing within a window and resets exactly once when
// the boundary is crossed.
type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// tick rolls the window if now has crossed the boundary, then reports the
// current count without incrementing.
func (b *bucket) tick(now time.Time, size time.Duration) int {
	if now.Sub(b.windowStart) >= size {
		b.windowStart = now
		b.count = 0
	}
	return b.count
}

type identityBuckets struct {
	burst  bucket
	minute bucket
	hour   bucket
}

// Limiter tracks request counts per identity across burst, per-minute and
// per-hour windows.
type Limiter struct {
	config Config

	mu      sync.RWMutex
	buckets map[string]*identityBuckets

	now func() time.Time
}

// New builds a limiter from config, applying defaults for zero fields.
func New(cfg Config) *Limiter {
	return &Limiter{
		config:  cfg.withDefaults(),
		buckets: make(map[string]*identityBuckets),
		now:     time.Now,
	}
}

func (l *Limiter) bucketsFor(identity string) *identityBuckets {
	l.mu.RLock()
	b, ok := l.buckets[identity]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[identity]; ok {
		return b
	}
	b = &identityBuckets{}
	l.buckets[identity] = b
	return b
}

// Allow counts one request for identity and checks it against every
// configured window. Each bucket atomically rolls its window if the
// boundary was crossed, increments, and reports whether the new count is
// within the limit. On denial the decision reports the tightest violated
// window and a retry-after estimate equal to the remaining time in that
// window.
func (l *Limiter) Allow(identity string) Decision {
	now := l.now()
	b := l.bucketsFor(identity)

	checks := []struct {
		window Window
		bucket *bucket
		size   time.Duration
		limit  int
	}{
		{WindowBurst, &b.burst, l.config.BurstWindow, l.config.BurstSize},
		{WindowMinute, &b.minute, time.Minute, l.config.RequestsPerMinute},
		{WindowHour, &b.hour, time.Hour, l.config.RequestsPerHour},
	}

	d := Decision{Allowed: true}
	for _, c := range checks {
		c.bucket.mu.Lock()
		c.bucket.tick(now, c.size)
		c.bucket.count++
		count := c.bucket.count
		windowEnd := c.bucket.windowStart.Add(c.size)
		c.bucket.mu.Unlock()

		if count > c.limit && d.Allowed {
			// Windows are ordered tightest first, so the first
			// violation is the one reported.
			retry := windowEnd.Sub(now)
			if retry < 0 {
				retry = 0
			}
			d = Decision{
				Allowed:    false,
				Window:     c.window,
				Limit:      c.limit,
				Current:    count,
				RetryAfter: retry,
			}
			continue
		}
		if d.Allowed {
			remaining := c.limit - count
			if remaining < 0 {
				remaining = 0
			}
			switch c.window {
			case WindowBurst:
				d.BurstRemaining = remaining
			case WindowMinute:
				d.MinuteRemaining = remaining
			case WindowHour:
				d.HourRemaining = remaining
			}
		}
	}
	return d
}

// Stats reports the current counts for one identity without counting a
// request.
func (l *Limiter) Stats(identity string) map[string]int {
	now := l.now()
	b := l.bucketsFor(identity)

	stats := make(map[string]int, 6)
	b.burst.mu.Lock()
	stats["burst_count"] = b.burst.tick(now, l.config.BurstWindow)
	b.burst.mu.Unlock()
	b.minute.mu.Lock()
	stats["minute_count"] = b.minute.tick(now, time.Minute)
	b.minute.mu.Unlock()
	b.hour.mu.Lock()
	stats["hour_count"] = b.hour.tick(now, time.Hour)
	b.hour.mu.Unlock()

	stats["burst_limit"] = l.config.BurstSize
	stats["minute_limit"] = l.config.RequestsPerMinute
	stats["hour_limit"] = l.config.RequestsPerHour
	return stats
}

// Reset forgets all buckets for identity.
func (l *Limiter) Reset(identity string) {
	l.mu.Lock()
	delete(l.buckets, identity)
	l.mu.Unlock()
}
