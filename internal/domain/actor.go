package domain

// ActorRole is who performs an order action.
type ActorRole string

// Actor roles
const (
	RoleCustomer ActorRole = "customer"
	RoleCourier  ActorRole = "courier"
	RoleSystem   ActorRole = "system"
)

// Valid checks if the ActorRole is known.
func (r ActorRole) Valid() bool {
	return r == RoleCustomer || r == RoleCourier || r == RoleSystem
}

// Actor identifies the caller of an action. ID is a courier id for couriers,
// a user id for customers and zero for the system.
type Actor struct {
	Role ActorRole
	ID   int64
}
