package middleware

import (
	"net"
	"net/http"
	"sync/atomic"

	pkgerrors "filon/pkg/errors"
	"filon/pkg/ratelimit"
)

// sweepEvery is the request count between sweeps of idle limiter keys
const sweepEvery = 1024

// RateLimit rejects callers that exceed the limiter's quota with 429. Callers
// are keyed by client IP, so it must run after chi's RealIP.
func RateLimit(limiter *ratelimit.SlidingWindowLimiter, errorHandler *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	var seen atomic.Int64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if seen.Add(1)%sweepEvery == 0 {
				limiter.Sweep()
			}

			allowed, err := limiter.Allow(r.Context(), "ip:"+clientIP(r))
			if err != nil {
				errorHandler.Handle(w, r, err)
				return
			}
			if !allowed {
				errorHandler.Handle(w, r, pkgerrors.NewRateLimitError(limiter.Window()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
