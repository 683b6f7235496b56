package claim

import "context"

// Store arbitrates which courier won an order. TryClaim is create-if-absent:
// once a holder is recorded it is never overwritten until Release.
// TryClaim and Reject wake subscribers of the order.
type Store interface {
	TryClaim(ctx context.Context, orderID, courierID int64) (bool, error)
	Release(ctx context.Context, orderID int64) error
	Exists(ctx context.Context, orderID int64) (bool, error)
	// Holder returns the claiming courier, 0 when unclaimed.
	Holder(ctx context.Context, orderID int64) (int64, error)

	Reject(ctx context.Context, orderID, courierID int64) error
	Rejected(ctx context.Context, orderID, courierID int64) (bool, error)
	ClearRejections(ctx context.Context, orderID int64) error
}

// Subscription delivers wake-ups for one order. C may coalesce signals.
type Subscription interface {
	C() <-chan struct{}
	Close() error
}

// Signals lets a waiter block until the claim state of an order may have changed.
type Signals interface {
	Subscribe(ctx context.Context, orderID int64) (Subscription, error)
}
