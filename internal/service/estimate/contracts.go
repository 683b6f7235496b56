//go:generate mockgen -source=contracts.go -destination=estimate_mocks_test.go -package=estimate

package estimate

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/gateway/route"
)

type routeGateway interface {
	Route(ctx context.Context, mode domain.CourierMode, points []domain.Point) (route.Route, error)
}

type pricingRepository interface {
	PolicyFor(ctx context.Context, mode domain.CourierMode, km float64) (*domain.PricePolicy, error)
	LatestWeather(ctx context.Context) (*domain.WeatherSample, error)
}
