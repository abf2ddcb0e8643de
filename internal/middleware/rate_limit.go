package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration for non-auth endpoints
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAdminRateLimit returns the default request ceiling for admin endpoints
func DefaultAdminRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
	}
}

// RateLimitByIP applies a plain per-IP request ceiling. The auth endpoints do
// not use this: they go through the protection core, which also bans. This
// exists so the admin and stats surface cannot be hammered either.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too_many_requests","message":"Rate limit exceeded"}`))
		}),
	)
}
