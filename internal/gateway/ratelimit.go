package gateway

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle client's bucket is kept.
const visitorTTL = 3 * time.Minute

// trafficLimiter is a per-IP token bucket in front of the API routes. It
// protects the handlers from bursts; the hourly scan allowance is enforced
// separately by anonscan.RateLimiter.
type trafficLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newTrafficLimiter returns nil when rps is not positive, which disables it.
func newTrafficLimiter(rps float64, burst int) *trafficLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	tl := &trafficLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go tl.cleanupVisitors()
	return tl
}

// Stop ends the cleanup goroutine. Safe to call more than once and on nil.
func (tl *trafficLimiter) Stop() {
	if tl == nil {
		return
	}
	tl.stopOnce.Do(func() { close(tl.done) })
	<-tl.stopped
}

func (tl *trafficLimiter) getVisitor(ip string) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	v, ok := tl.visitors[ip]
	if !ok {
		l := rate.NewLimiter(tl.rate, tl.burst)
		tl.visitors[ip] = &visitor{limiter: l, lastSeen: time.Now()}
		return l
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (tl *trafficLimiter) cleanupVisitors() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	defer close(tl.stopped)

	for {
		select {
		case <-tl.done:
			return
		case <-t.C:
			tl.mu.Lock()
			for ip, v := range tl.visitors {
				if time.Since(v.lastSeen) > visitorTTL {
					delete(tl.visitors, ip)
				}
			}
			tl.mu.Unlock()
		}
	}
}

// Middleware throttles requests per client IP. A nil limiter passes
// everything through.
func (tl *trafficLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := anonscan.ClientIPOrRemote(r)
			limiter := tl.getVisitor(ip)

			tokens := limiter.Tokens()
			remaining := int(math.Max(0, math.Floor(tokens)-1))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tl.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !limiter.Allow() {
				slog.Warn("API rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
				)
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{
					Error:      "Too many requests",
					Code:       anonscan.CodeRateLimited,
					RetryAfter: 1,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
