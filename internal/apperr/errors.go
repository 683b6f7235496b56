package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrNotFound indicates that the referenced order, courier or shop does not exist.
var ErrNotFound = errors.New("not found")

// ErrPreconditionFailed indicates an action on an order or courier in an incompatible state.
// The state is left unchanged.
var ErrPreconditionFailed = errors.New("precondition failed")

// ErrRaceLost is returned to a courier whose accept arrived after another courier claimed the order.
var ErrRaceLost = errors.New("order no longer available")

// ErrForbidden indicates the actor is not a party of the order.
var ErrForbidden = errors.New("forbidden")

// ErrProviderUnavailable marks a failed external provider call (route, weather).
// Callers degrade instead of surfacing it.
var ErrProviderUnavailable = errors.New("provider unavailable")
