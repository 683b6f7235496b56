package tracker

import (
	"context"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/service/estimate"
)

type courierReader interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
}

type orderStore interface {
	ActiveByCourier(ctx context.Context, courierID int64) (*domain.Order, error)
	UpdateEstimate(ctx context.Context, orderID, courierID int64, e domain.Estimate) (bool, error)
}

type shopReader interface {
	Get(ctx context.Context, id int64) (*domain.Shop, error)
}

type customerLocator interface {
	Active(ctx context.Context, customerID int64) (*domain.Point, error)
}

type liveIndex interface {
	Put(ctx context.Context, loc domain.LiveLocation) error
	All(ctx context.Context) ([]domain.LiveLocation, int, error)
	Prune(ctx context.Context) (int, error)
}

type locationWriter interface {
	Upsert(ctx context.Context, locs []domain.LastKnownLocation) (int, error)
}

type throttle interface {
	Allow(ctx context.Context, key string, every time.Duration) (bool, error)
	LastDurationPoint(ctx context.Context, courierID int64) (*domain.Point, error)
	SetDurationPoint(ctx context.Context, courierID int64, p domain.Point, ttl time.Duration) error
}

type estimator interface {
	Estimate(ctx context.Context, in estimate.Input) *domain.Estimate
}

type adder interface {
	Add(float64)
}

// Notifier forwards courier movement to the customer.
type Notifier interface {
	LocationUpdate(ctx context.Context, customerID int64, payload notify.LocationPayload) error
	DurationUpdate(ctx context.Context, customerID int64, payload notify.DurationPayload) error
}
