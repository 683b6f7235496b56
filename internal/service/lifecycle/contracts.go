package lifecycle

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/notify"
)

// Notifier publishes lifecycle events to the other party of an order.
type Notifier interface {
	OrderCanceled(ctx context.Context, userID int64, a notify.Audience, payload notify.CanceledPayload) error
	DirectionUpdate(ctx context.Context, customerID, orderID int64, d domain.Direction) error
}

// claimCleaner drops the claim and rejection markers of an order that left the offer flow.
type claimCleaner interface {
	Release(ctx context.Context, orderID int64) error
	ClearRejections(ctx context.Context, orderID int64) error
}
