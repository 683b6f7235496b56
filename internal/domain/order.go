package domain

import "time"

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

// List of order statuses
const (
	OrderPending   OrderStatus = "pending"
	OrderSearching OrderStatus = "searching"
	OrderAssigned  OrderStatus = "assigned"
	OrderCompleted OrderStatus = "completed"
	OrderCanceled  OrderStatus = "canceled"
)

var allowedOrderStatuses = [...]OrderStatus{
	OrderPending, OrderSearching, OrderAssigned, OrderCompleted, OrderCanceled,
}

// Valid checks if the OrderStatus is known.
func (s OrderStatus) Valid() bool {
	for _, v := range allowedOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCanceled
}

// Cancelable reports whether an order in this status may be canceled.
func (s OrderStatus) Cancelable() bool {
	return s == OrderPending || s == OrderSearching || s == OrderAssigned
}

// Order is one delivery request.
type Order struct {
	ID         int64
	CustomerID int64
	ShopID     int64
	CourierID  *int64
	Items      string
	Status     OrderStatus
	Direction  *Direction

	CreatedAt   time.Time
	AssignedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CanceledAt  *time.Time

	CanceledBy   *ActorRole
	CancelReason *string

	DistanceKm  *float64
	DurationMin *float64
	Price       *int64
	Weather     *string

	CustomerRating *int
	CourierRating  *int
}

// AssignedTo reports whether the order is currently held by the courier.
func (o *Order) AssignedTo(courierID int64) bool {
	return o.CourierID != nil && *o.CourierID == courierID
}

// CurrentDirection returns the direction or "" when none is set.
func (o *Order) CurrentDirection() Direction {
	if o.Direction == nil {
		return ""
	}
	return *o.Direction
}
