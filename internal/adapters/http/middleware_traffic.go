package httpadapter

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// rejectFunc lets the router count shed requests.
type rejectFunc func(reason string)

func isControlPath(path string) bool {
	return path == "/healthz" || path == "/metrics" || path == "/openapi.yaml"
}

// rateLimitMiddleware applies one process-wide token bucket to API routes.
func rateLimitMiddleware(next http.Handler, rps float64, burst int, onReject rejectFunc) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/rps))))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isControlPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !limiter.Allow() {
			if onReject != nil {
				onReject("rate_limit")
			}
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware bounds in-flight API requests. A request waits up
// to wait for a slot before being shed with 503.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration, onReject rejectFunc) http.Handler {
	if maxInFlight <= 0 {
		return next
	}
	slots := make(chan struct{}, maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isControlPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		acquired := false
		select {
		case slots <- struct{}{}:
			acquired = true
		default:
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case slots <- struct{}{}:
					acquired = true
				case <-timer.C:
				case <-r.Context().Done():
				}
				timer.Stop()
			}
		}
		if !acquired {
			if onReject != nil {
				onReject("backpressure")
			}
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "server is overloaded, retry later")
			return
		}
		defer func() { <-slots }()

		next.ServeHTTP(w, r)
	})
}
