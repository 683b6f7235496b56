package ratelimit

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"service-dispatch/internal/http/middleware/auth"
	"service-dispatch/internal/logx"
)

// Middleware rejects callers that exceeded their request budget.
type Middleware struct {
	logger   logx.Logger
	counter  prometheus.Counter
	limiter  Limiter
	fallback Limiter
}

// New creates a new Middleware. fallback answers while limiter returns errors;
// without one such requests are let through.
func New(logger logx.Logger, counter prometheus.Counter, limiter, fallback Limiter) *Middleware {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Middleware{
		logger:   logger,
		counter:  counter,
		limiter:  limiter,
		fallback: fallback,
	}
}

// Handler returns chi-style middleware.
func (m *Middleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if !m.allow(r.Context(), key) {
				if m.counter != nil {
					m.counter.Inc()
				}
				m.logger.Warn("rate limit exceeded",
					logx.String("key", key),
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := io.WriteString(w, `{"error":"too many requests"}`); err != nil {
					// client went away
					m.logger.Debug("rate limit response write failed",
						logx.String("key", key),
						logx.Err(err),
					)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) allow(ctx context.Context, key string) bool {
	if m.limiter == nil {
		return true
	}
	ok, err := m.limiter.Allow(ctx, key)
	if err == nil {
		return ok
	}
	m.logger.Warn("rate limiter unavailable", logx.String("key", key), logx.Err(err))
	if m.fallback == nil {
		return true
	}
	ok, err = m.fallback.Allow(ctx, key)
	return ok || err != nil
}

// clientKey prefers the authenticated actor over the address.
func clientKey(r *http.Request) string {
	if a, ok := auth.ActorFrom(r.Context()); ok && a.ID != 0 {
		return string(a.Role) + ":" + strconv.FormatInt(a.ID, 10)
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
