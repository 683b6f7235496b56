package estimate

import (
	"context"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// weatherUpliftPercent is added to the price in adverse weather.
const weatherUpliftPercent = 10

// Input describes one route to estimate.
type Input struct {
	Courier  domain.Point
	Shop     domain.Point
	Customer domain.Point
	Mode     domain.CourierMode
	// Direction decides whether the shop is still on the way.
	Direction domain.Direction
}

// Quote is an estimate together with its price and the weather it was priced under.
type Quote struct {
	Estimate *domain.Estimate
	Price    *int64
	Weather  *string
}

// Service computes route estimates and prices. It never fails:
// provider or storage problems yield nil values and a warning.
type Service struct {
	routes           routeGateway
	pricing          pricingRepository
	operationTimeout time.Duration
	logger           logx.Logger
}

// NewService creates a new estimate Service.
func NewService(routes routeGateway, pricing pricingRepository, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		routes:           routes,
		pricing:          pricing,
		operationTimeout: timeout,
		logger:           logger,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// Legs returns the points the courier still has to pass.
func Legs(in Input) []domain.Point {
	if in.Direction.LeftStore() {
		return []domain.Point{in.Courier, in.Customer}
	}
	return []domain.Point{in.Courier, in.Shop, in.Customer}
}

// Estimate returns distance and duration of the remaining route, or nil when unknown.
func (s *Service) Estimate(ctx context.Context, in Input) *domain.Estimate {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.routes.Route(ctx, in.Mode, Legs(in))
	if err != nil {
		s.logger.Warn("route estimate unavailable",
			logx.String("event", "route_unavailable"),
			logx.String("mode", string(in.Mode)),
			logx.String("direction", string(in.Direction)),
			logx.Err(err),
		)
		return nil
	}
	return &domain.Estimate{DistanceKm: r.DistanceKm, DurationMin: r.DurationMin}
}

// Quote estimates the route and prices its distance.
func (s *Service) Quote(ctx context.Context, in Input) Quote {
	est := s.Estimate(ctx, in)
	if est == nil {
		return Quote{}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	price, weather := s.price(ctx, est.DistanceKm, in.Mode)
	return Quote{Estimate: est, Price: price, Weather: weather}
}

// price returns the delivery price for km in the given mode along with the latest weather
// condition it saw. The price is nil when no policy covers km.
func (s *Service) price(ctx context.Context, km float64, mode domain.CourierMode) (*int64, *string) {
	policy, err := s.pricing.PolicyFor(ctx, mode, km)
	if err != nil {
		s.logger.Warn("price policy lookup failed",
			logx.String("mode", string(mode)),
			logx.Float64("distance_km", km),
			logx.Err(err),
		)
		return nil, nil
	}
	if policy == nil {
		return nil, nil
	}

	price := policy.BasePrice + int64(km*float64(policy.PricePerKm))

	var condition *string
	w, err := s.pricing.LatestWeather(ctx)
	switch {
	case err != nil:
		s.logger.Warn("latest weather lookup failed", logx.Err(err))
	case w != nil:
		c := w.Condition
		condition = &c
		if domain.AdverseWeather(c) {
			price = price * (100 + weatherUpliftPercent) / 100
		}
	}
	return &price, condition
}
