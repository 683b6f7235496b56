package handlers

import (
	"context"

	"service-dispatch/internal/domain"
)

// Dispatcher starts a background dispatch run.
type Dispatcher interface {
	Start(ctx context.Context, orderID, shopID int64) error
}

// Assigner answers offers on behalf of couriers.
type Assigner interface {
	Accept(ctx context.Context, orderID, courierID int64) (domain.AssignResult, error)
	Reject(ctx context.Context, orderID, courierID int64) error
}

// Lifecycle drives an order after assignment.
type Lifecycle interface {
	Cancel(ctx context.Context, orderID int64, actor domain.Actor, reason string) error
	UpdateDirection(ctx context.Context, orderID, courierID int64, next domain.Direction) error
	Complete(ctx context.Context, orderID, customerID int64, rating *int) error
	HandOver(ctx context.Context, orderID, courierID int64, rating *int) error
}

// LocationIngester accepts courier positions.
type LocationIngester interface {
	Ingest(ctx context.Context, courierID int64, p domain.Point) error
}
