//go:generate mockgen -source=notifier.go -destination=notifier_mock_test.go -package=assignment_test

package assignment

import (
	"context"

	"service-dispatch/internal/notify"
)

// Notifier publishes assignment events.
type Notifier interface {
	OrderTaken(ctx context.Context, shopOwnerID int64, payload notify.AssignedPayload) error
	OrderAssigned(ctx context.Context, userID int64, a notify.Audience, payload notify.AssignedPayload) error
}
