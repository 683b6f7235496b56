//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"

	"service-dispatch/internal/domain"
)

// DispatchPort starts the offer loop for an order.
type DispatchPort interface {
	Start(ctx context.Context, orderID, shopID int64) error
}

// CancelPort cancels orders on behalf of an actor.
type CancelPort interface {
	Cancel(ctx context.Context, orderID int64, actor domain.Actor, reason string) error
}
