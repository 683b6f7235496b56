package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/http/debugserver"
	"service-dispatch/internal/http/handlers"
	"service-dispatch/internal/http/middleware/auth"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/http/realtime"
	"service-dispatch/internal/http/router"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/repository"
	"service-dispatch/internal/service/assignment"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/lifecycle"
	"service-dispatch/internal/service/tracker"
	"service-dispatch/internal/store/redisstore"
)

const (
	localLimiterIdleTTL    = 10 * time.Minute
	localLimiterMaxBuckets = 10000
)

// newRateLimitMiddleware returns nil when rate limiting is disabled.
// The in-process limiter answers while Redis is unavailable.
func newRateLimitMiddleware(cfg *config.Config, client *redis.Client, logger logx.Logger, m *metrics.Set) *ratelimit.Middleware {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	primary := redisstore.NewRateLimiter(client, "ratelimit", rl.Limit, rl.Window)
	fallback := ratelimit.NewLocalLimiter(rl.Limit, rl.Window, localLimiterIdleTTL, localLimiterMaxBuckets)
	return ratelimit.New(logger, m.RateLimitExceeded, primary, fallback)
}

type routerIn struct {
	dig.In

	Cfg       *config.Config
	Logger    logx.Logger
	Set       *metrics.Set
	Registry  *prometheus.Registry
	Base      *handlers.Handlers
	Orders    *handlers.OrderHandler
	Couriers  *handlers.CourierHandler
	Realtime  *realtime.Handler
	Auth      *auth.Middleware
	RateLimit *ratelimit.Middleware
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Base:      in.Base,
		Orders:    in.Orders,
		Couriers:  in.Couriers,
		Realtime:  in.Realtime,
		Auth:      in.Auth,
		RateLimit: in.RateLimit,
		Metrics:   in.Set,
		Gatherer:  in.Registry,
		Logger:    in.Logger,
	})
}

type serversOut struct {
	dig.Out

	Main  *http.Server
	Debug *http.Server `name:"debug_server"`
}

// newServers builds the API server and, when enabled, the debug listener.
func newServers(cfg *config.Config, mux http.Handler, logger logx.Logger) serversOut {
	out := serversOut{
		Main: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
			// no WriteTimeout: websocket sessions set per-write deadlines
		},
	}
	if cfg.Debug.Enabled {
		out.Debug = debugserver.New(debugserver.Config{
			Addr: cfg.Debug.Addr,
			User: cfg.Debug.User,
			Pass: cfg.Debug.Pass,
		}, logger)
	}
	return out
}

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		handlers.New,
		func(d *dispatch.Service, a *assignment.Service, l *lifecycle.Service, logger logx.Logger) *handlers.OrderHandler {
			return handlers.NewOrderHandler(d, a, l, logger)
		},
		func(t *tracker.Service, logger logx.Logger) *handlers.CourierHandler {
			return handlers.NewCourierHandler(t, logger)
		},
		func(
			feed *notify.RedisFeed,
			couriers *repository.CourierRepo,
			a *assignment.Service,
			l *lifecycle.Service,
			t *tracker.Service,
			logger logx.Logger,
		) *realtime.Handler {
			return realtime.NewHandler(feed, couriers, a, l, t, realtime.DefaultConfig(), logger)
		},
		func(cfg *config.Config, logger logx.Logger) *auth.Middleware {
			return auth.New(cfg.Auth.JWTSecret, logger)
		},
		newRateLimitMiddleware,
		newRouter,
		newServers,
	)
}
