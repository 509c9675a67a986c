package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Limiter decides whether one more call from id is allowed.
type Limiter interface {
	Allow(ctx context.Context, scope, id string, limit int) bool
}

// Guard locks a client out after repeated failed attempts in a scope.
type Guard interface {
	Allow(ctx context.Context, scope, id string) bool
	RecordFailure(ctx context.Context, scope, id string)
	RecordSuccess(ctx context.Context, scope, id string)
	Cooldown() time.Duration
}

// lockedOut answers 429 and reports true when g refuses the client. A nil
// guard never refuses.
func lockedOut(w http.ResponseWriter, r *http.Request, g Guard, scope string) bool {
	if g == nil || g.Allow(r.Context(), scope, clientIP(r)) {
		return false
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(g.Cooldown().Seconds())))
	respondError(w, http.StatusTooManyRequests, "Too many failed attempts")
	return true
}

// RateLimit answers 429 once a client exceeds limit requests per second.
// The client is identified by RemoteAddr, so middleware.RealIP must run first.
func RateLimit(l Limiter, scope string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(r.Context(), scope, clientIP(r), limit) {
				w.Header().Set("Retry-After", "1")
				respondError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
