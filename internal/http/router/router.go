package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"service-dispatch/internal/http/handlers"
	mw "service-dispatch/internal/http/middleware"
	"service-dispatch/internal/http/middleware/auth"
	"service-dispatch/internal/http/middleware/ratelimit"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
)

// Deps groups everything the router mounts.
type Deps struct {
	Base     *handlers.Handlers
	Orders   *handlers.OrderHandler
	Couriers *handlers.CourierHandler
	Realtime http.Handler

	Auth      *auth.Middleware
	RateLimit *ratelimit.Middleware

	Metrics  *metrics.Set
	Gatherer prometheus.Gatherer
	Logger   logx.Logger

	RequestTimeout time.Duration
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 5 * time.Second
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.Metrics != nil {
		r.Use(mw.Observability(d.Logger, d.Metrics.HTTPRequests, d.Metrics.HTTPDuration))
	} else {
		r.Use(mw.Observability(d.Logger, nil, nil))
	}
	r.Use(middleware.Recoverer)

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	r.NotFound(http.HandlerFunc(d.Base.NotFound))

	r.Group(func(api chi.Router) {
		if d.Auth != nil {
			api.Use(d.Auth.Handler())
		}
		if d.RateLimit != nil {
			api.Use(d.RateLimit.Handler())
		}

		// The websocket outlives any request deadline.
		if d.Realtime != nil {
			api.Method(http.MethodGet, "/ws", d.Realtime)
		}

		api.Group(func(rest chi.Router) {
			rest.Use(middleware.Timeout(d.RequestTimeout))

			rest.Route("/orders/{id}", func(or chi.Router) {
				or.Post("/dispatch", d.Orders.Dispatch)
				or.Post("/accept", d.Orders.Accept)
				or.Post("/reject", d.Orders.Reject)
				or.Post("/direction", d.Orders.Direction)
				or.Post("/cancel", d.Orders.Cancel)
				or.Post("/complete", d.Orders.Complete)
				or.Post("/hand-over", d.Orders.HandOver)
			})
			rest.Post("/couriers/location", d.Couriers.Location)
		})
	})

	return r
}
