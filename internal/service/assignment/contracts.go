package assignment

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/service/estimate"
)

// OrderReader loads orders outside of a transaction.
type OrderReader interface {
	Get(ctx context.Context, id int64) (*domain.Order, error)
}

// CourierReader loads courier profiles.
type CourierReader interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
}

// ShopReader loads shops.
type ShopReader interface {
	Get(ctx context.Context, id int64) (*domain.Shop, error)
}

// CustomerLocator returns the customer's active delivery point.
type CustomerLocator interface {
	Active(ctx context.Context, customerID int64) (*domain.Point, error)
}

// PositionReader returns the courier's best known position, or nil.
type PositionReader interface {
	Position(ctx context.Context, courierID int64) (*domain.Point, error)
}

// Quoter prices a route. It never fails.
type Quoter interface {
	Quote(ctx context.Context, in estimate.Input) estimate.Quote
}

type counter interface {
	Inc()
}
