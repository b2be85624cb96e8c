// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// rateLimiter tracks request timestamps per client IP in a sliding
// window. State lives in memory; limits reset on restart.
type rateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	limit  int
}

func newRateLimiter(window time.Duration, limit int) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 10
	}
	return &rateLimiter{
		hits:   make(map[string][]time.Time),
		window: window,
		limit:  limit,
	}
}

// allow records one hit for ip and reports whether it is within the
// limit.
func (r *rateLimiter) allow(ip string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)
	recent := r.hits[ip][:0]
	for _, t := range r.hits[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.hits[ip] = recent
		return false
	}
	r.hits[ip] = append(recent, now)
	return true
}

// middleware rejects clients over the limit with 429.
func (r *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !r.allow(c.RealIP(), time.Now()) {
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"ok":    false,
					"error": "rate limited",
				})
			}
			return next(c)
		}
	}
}
