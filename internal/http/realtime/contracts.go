package realtime

import (
	"context"

	"service-dispatch/internal/domain"
)

// Feed streams raw notifications published to a user topic.
type Feed interface {
	Subscribe(ctx context.Context, topic string) (<-chan []byte, func() error, error)
}

type courierReader interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
}

type assigner interface {
	Accept(ctx context.Context, orderID, courierID int64) (domain.AssignResult, error)
	Reject(ctx context.Context, orderID, courierID int64) error
}

type lifecycle interface {
	Cancel(ctx context.Context, orderID int64, actor domain.Actor, reason string) error
	UpdateDirection(ctx context.Context, orderID, courierID int64, next domain.Direction) error
	Complete(ctx context.Context, orderID, customerID int64, rating *int) error
	HandOver(ctx context.Context, orderID, courierID int64, rating *int) error
}

type ingester interface {
	Ingest(ctx context.Context, courierID int64, p domain.Point) error
}
