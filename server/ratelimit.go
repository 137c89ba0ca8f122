package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const limiterIdleAfter = 5 * time.Minute

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	limiters       sync.Map // map[string]*rate.Limiter
	rate           rate.Limit
	burst          int
	trustForwarded bool
	mu             sync.Mutex
	lastCleanup    time.Time
}

func newRateLimiter(perMinute, burst int, trustForwarded bool) *rateLimiter {
	return &rateLimiter{
		rate:           rate.Limit(float64(perMinute) / time.Minute.Seconds()),
		burst:          burst,
		trustForwarded: trustForwarded,
		lastCleanup:    time.Now(),
	}
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.rate, rl.burst))
	rl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket has refilled, i.e. idle clients.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.lastCleanup) < limiterIdleAfter {
		return
	}
	rl.lastCleanup = time.Now()
	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware limits credential submissions per client IP.
func (s *Server) RateLimitMiddleware(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			limiter := s.limiter.getLimiter(s.limiter.clientIP(r))
			if limiter.Allow() {
				next(w, r)
				return
			}

			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()

			s.metrics.RateLimitRejected.WithLabelValues(route).Inc()
			zerolog.Ctx(r.Context()).Warn().Str("route", route).Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(max(int(delay.Seconds()), 1)))
			http.Error(w, "Too many attempts. Please wait a moment and try again.", http.StatusTooManyRequests)
		}
	}
}

// clientIP keys on the connection's peer address. X-Forwarded-For is only
// honoured when the server is configured to sit behind a proxy that sets it.
func (rl *rateLimiter) clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); rl.trustForwarded && fwd != "" {
		if first, _, _ := strings.Cut(fwd, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
