package domain

// Direction is the courier's physical progress within an assigned order.
type Direction string

// Directions in the only order they may be reached.
const (
	DirectionEnRouteToStore    Direction = "en_route_to_store"
	DirectionArrivedAtStore    Direction = "arrived_at_store"
	DirectionPickedUp          Direction = "picked_up"
	DirectionEnRouteToCustomer Direction = "en_route_to_customer"
	DirectionArrivedToCustomer Direction = "arrived_to_customer"
	DirectionHandedOver        Direction = "handed_over"
)

var directionSequence = [...]Direction{
	DirectionEnRouteToStore,
	DirectionArrivedAtStore,
	DirectionPickedUp,
	DirectionEnRouteToCustomer,
	DirectionArrivedToCustomer,
	DirectionHandedOver,
}

// Rank is the position of d in the sequence, -1 for unknown values.
func (d Direction) Rank() int {
	for i, v := range directionSequence {
		if d == v {
			return i
		}
	}
	return -1
}

// Valid checks if the Direction is known.
func (d Direction) Valid() bool { return d.Rank() >= 0 }

// After reports whether d is strictly later than prev. An empty prev precedes everything.
func (d Direction) After(prev Direction) bool {
	if !d.Valid() {
		return false
	}
	if prev == "" {
		return true
	}
	return d.Rank() > prev.Rank()
}

// LeftStore reports whether the courier already has the goods,
// so routes no longer pass through the shop.
func (d Direction) LeftStore() bool {
	return d.Valid() && d.Rank() >= DirectionPickedUp.Rank()
}

// ReleasesCourier reports whether reaching d frees the courier for new offers.
func (d Direction) ReleasesCourier() bool {
	return d == DirectionArrivedToCustomer || d == DirectionHandedOver
}
