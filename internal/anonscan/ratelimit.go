package anonscan

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/metrics"
)

// UnknownIP is used when no client address header is present. It is
// exempt from limiting.
const UnknownIP = "unknown"

// DefaultScansPerHour is the per-IP scan allowance.
const DefaultScansPerHour = 5

// RecentCounter counts reports created from an IP.
type RecentCounter interface {
	CountRecentByIP(ctx context.Context, ip string, window time.Duration) (int, error)
}

// RateLimiter enforces the hourly per-IP scan allowance. Persisted reports
// are the source of truth; runs still in flight in this process are added
// so parallel requests cannot slip past the check.
type RateLimiter struct {
	counter RecentCounter
	limit   int
	window  time.Duration

	mu      sync.Mutex
	pending map[string]int
}

// NewRateLimiter returns a limiter allowing limit scans per hour.
func NewRateLimiter(counter RecentCounter, limit int) *RateLimiter {
	if limit <= 0 {
		limit = DefaultScansPerHour
	}
	return &RateLimiter{counter: counter, limit: limit, window: time.Hour, pending: map[string]int{}}
}

// Acquire admits one scan for ip or returns a rate_limited *ScanError. The
// returned release func must be called once the run has finished.
func (l *RateLimiter) Acquire(ctx context.Context, ip string) (release func(), err error) {
	if ip == "" || ip == UnknownIP {
		return func() {}, nil
	}

	n, err := l.counter.CountRecentByIP(ctx, ip, l.window)
	if err != nil {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if n+l.pending[ip] >= l.limit {
		metrics.RateLimited.Inc()
		se := newScanError(CodeRateLimited, http.StatusTooManyRequests,
			fmt.Sprintf("Rate limit exceeded: %d anonymous scans per hour", l.limit), nil)
		se.RetryAfter = RetryAfterSeconds
		return nil, se
	}
	l.pending[ip]++

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.pending[ip] <= 1 {
				delete(l.pending, ip)
			} else {
				l.pending[ip]--
			}
		})
	}, nil
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, else UnknownIP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return UnknownIP
}

// ClientIPOrRemote is ClientIP with a fallback to the socket peer address,
// for deployments that are not behind a proxy.
func ClientIPOrRemote(r *http.Request) string {
	if ip := ClientIP(r); ip != UnknownIP {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return UnknownIP
	}
	return host
}
