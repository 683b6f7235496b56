package dispatchtx

import (
	"context"
	"time"

	"service-dispatch/internal/domain"
)

// AssignParams describes the assignment written by finalize.
type AssignParams struct {
	OrderID    int64
	CourierID  int64
	AssignedAt time.Time
	Estimate   *domain.Estimate
	Price      *int64
	Weather    *string
}

// CancelParams describes a cancellation. From is the status the caller observed.
type CancelParams struct {
	OrderID int64
	From    domain.OrderStatus
	By      domain.ActorRole
	Reason  string
	At      time.Time
}

// DirectionParams describes one direction step. From is empty when no direction is set yet.
type DirectionParams struct {
	OrderID    int64
	CourierID  int64
	From       domain.Direction
	To         domain.Direction
	PickedUpAt *time.Time
}

// CompleteParams describes customer completion.
type CompleteParams struct {
	OrderID     int64
	DeliveredAt time.Time
	Rating      *int
}

// HandOverParams describes the courier's hand-over.
type HandOverParams struct {
	OrderID   int64
	CourierID int64
	Rating    *int
}

// Repository is the set of conditional writes available inside one transaction.
// Every method returning bool reports whether its precondition still held.
type Repository interface {
	LockOrder(ctx context.Context, id int64) (*domain.Order, error)
	LockCourier(ctx context.Context, id int64) (*domain.Courier, error)
	AssignOrder(ctx context.Context, p AssignParams) (bool, error)
	SetCourierBusy(ctx context.Context, courierID int64, busy bool) (bool, error)
	CancelOrder(ctx context.Context, p CancelParams) (bool, error)
	AdvanceDirection(ctx context.Context, p DirectionParams) (bool, error)
	CompleteOrder(ctx context.Context, p CompleteParams) (bool, error)
	HandOver(ctx context.Context, p HandOverParams) (bool, error)
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
