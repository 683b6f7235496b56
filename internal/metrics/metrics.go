package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a counter of HTTP requests rejected by the rate limiter.
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewGatewayRetriesTotal returns a counter of retry attempts performed by provider gateways.
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by gateways",
	})
}

// NewDispatchOutcomesTotal counts finished dispatch runs by outcome.
func NewDispatchOutcomesTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_outcomes_total",
		Help: "Total number of dispatch runs by outcome",
	}, []string{"outcome"})
}

// NewDispatchOffersTotal counts offers by how they ended: accepted, rejected, timeout, skipped.
func NewDispatchOffersTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_offers_total",
		Help: "Total number of courier offers by result",
	}, []string{"result"})
}

// NewClaimRacesLostTotal counts accepts that arrived after another courier claimed the order.
func NewClaimRacesLostTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "claim_races_lost_total",
		Help: "Total number of late accepts rejected as race-lost",
	})
}

// NewLocationsFlushedTotal counts live locations written to the durable store.
func NewLocationsFlushedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "locations_flushed_total",
		Help: "Total number of live courier locations flushed to the durable store",
	})
}

// NewHTTPRequestsTotal counts served HTTP requests by route pattern.
func NewHTTPRequestsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
}

// NewHTTPRequestDuration observes HTTP latency by route pattern.
func NewHTTPRequestDuration() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
}

// Set bundles the collectors the container registers once.
type Set struct {
	RateLimitExceeded prometheus.Counter
	GatewayRetries    prometheus.Counter
	DispatchOutcomes  *prometheus.CounterVec
	DispatchOffers    *prometheus.CounterVec
	ClaimRacesLost    prometheus.Counter
	LocationsFlushed  prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// NewSet creates all collectors and registers them with reg.
func NewSet(reg prometheus.Registerer) (*Set, error) {
	s := &Set{
		RateLimitExceeded: NewRateLimitExceededTotal(),
		GatewayRetries:    NewGatewayRetriesTotal(),
		DispatchOutcomes:  NewDispatchOutcomesTotal(),
		DispatchOffers:    NewDispatchOffersTotal(),
		ClaimRacesLost:    NewClaimRacesLostTotal(),
		LocationsFlushed:  NewLocationsFlushedTotal(),
		HTTPRequests:      NewHTTPRequestsTotal(),
		HTTPDuration:      NewHTTPRequestDuration(),
	}
	if reg == nil {
		return s, nil
	}
	for _, c := range []prometheus.Collector{
		s.RateLimitExceeded, s.GatewayRetries, s.DispatchOutcomes,
		s.DispatchOffers, s.ClaimRacesLost, s.LocationsFlushed,
		s.HTTPRequests, s.HTTPDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}
