package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/ports/dispatchtx"
)

const maxReasonLen = 500

// Service moves assigned orders through directions and into their final status.
type Service struct {
	tx       dispatchtx.Runner
	claims   claimCleaner
	notifier Notifier

	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates a new lifecycle Service.
func NewService(tx dispatchtx.Runner, claims claimCleaner, notifier Notifier, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		tx:               tx,
		claims:           claims,
		notifier:         notifier,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// canceled is what Cancel learned inside the transaction.
type canceled struct {
	order         domain.Order
	courierID     int64
	courierUserID int64
}

// Cancel cancels a pending, searching or assigned order on behalf of actor.
// Couriers may cancel only their own assignment, customers only their own orders.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor domain.Actor, reason string) error {
	if orderID <= 0 || !actor.Role.Valid() {
		return fmt.Errorf("order %d, actor %q: %w", orderID, actor.Role, apperr.ErrInvalid)
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLen {
		return fmt.Errorf("cancel reason is longer than %d bytes: %w", maxReasonLen, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var res canceled
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.Cancelable() {
			return fmt.Errorf("order %d is %s: %w", orderID, o.Status, apperr.ErrPreconditionFailed)
		}
		if err := authorizeCancel(o, actor); err != nil {
			return err
		}

		res = canceled{order: *o}
		// past arrived_to_customer the courier is already free and may hold another order
		release := !o.CurrentDirection().ReleasesCourier()
		if o.Status == domain.OrderAssigned && o.CourierID != nil {
			c, err := tx.LockCourier(ctx, *o.CourierID)
			if err != nil {
				return err
			}
			if c != nil {
				res.courierID, res.courierUserID = c.ID, c.UserID
			}
		}

		ok, err := tx.CancelOrder(ctx, dispatchtx.CancelParams{
			OrderID: orderID,
			From:    o.Status,
			By:      actor.Role,
			Reason:  reason,
			At:      s.now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order %d changed while canceling: %w", orderID, apperr.ErrPreconditionFailed)
		}

		if release && res.courierID != 0 {
			// already idle is fine: the flag only has to end up false
			if _, err := tx.SetCourierBusy(ctx, res.courierID, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.clearClaim(ctx, orderID)
	s.notifyCanceled(ctx, res, actor.Role, reason)
	s.logger.Info("order canceled",
		logx.String("event", "order_canceled"),
		logx.Int64("order_id", orderID),
		logx.String("by", string(actor.Role)),
		logx.String("from", string(res.order.Status)),
	)
	return nil
}

func authorizeCancel(o *domain.Order, actor domain.Actor) error {
	switch actor.Role {
	case domain.RoleCourier:
		if !o.AssignedTo(actor.ID) {
			return fmt.Errorf("order %d is not assigned to courier %d: %w", o.ID, actor.ID, apperr.ErrForbidden)
		}
	case domain.RoleCustomer:
		if o.CustomerID != actor.ID {
			return fmt.Errorf("order %d does not belong to customer %d: %w", o.ID, actor.ID, apperr.ErrForbidden)
		}
	}
	return nil
}

func (s *Service) notifyCanceled(ctx context.Context, res canceled, by domain.ActorRole, reason string) {
	payload := notify.CanceledPayload{OrderID: res.order.ID, By: by, Reason: reason}

	if by != domain.RoleCourier && res.courierUserID != 0 {
		s.warnOnError("order_canceled",
			s.notifier.OrderCanceled(ctx, res.courierUserID, notify.AudienceCourier, payload))
	}
	if by != domain.RoleCustomer {
		s.warnOnError("order_canceled",
			s.notifier.OrderCanceled(ctx, res.order.CustomerID, notify.AudienceCustomer, payload))
	}
}

// UpdateDirection moves the courier's progress strictly forward.
// arrived_to_customer frees the courier for new offers.
func (s *Service) UpdateDirection(ctx context.Context, orderID, courierID int64, next domain.Direction) error {
	if orderID <= 0 || courierID <= 0 {
		return fmt.Errorf("order %d, courier %d: %w", orderID, courierID, apperr.ErrInvalid)
	}
	if !next.Valid() || next == domain.DirectionHandedOver {
		return fmt.Errorf("direction %q: %w", next, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var customerID int64
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.CourierID != nil && !o.AssignedTo(courierID) {
			return fmt.Errorf("order %d is not assigned to courier %d: %w", orderID, courierID, apperr.ErrForbidden)
		}
		if o.Status != domain.OrderAssigned || o.CourierID == nil {
			return fmt.Errorf("order %d is %s: %w", orderID, o.Status, apperr.ErrPreconditionFailed)
		}
		current := o.CurrentDirection()
		if !next.After(current) {
			return fmt.Errorf("order %d cannot go from %q to %q: %w", orderID, current, next, apperr.ErrPreconditionFailed)
		}

		p := dispatchtx.DirectionParams{OrderID: orderID, CourierID: courierID, From: current, To: next}
		if next == domain.DirectionPickedUp {
			at := s.now()
			p.PickedUpAt = &at
		}
		ok, err := tx.AdvanceDirection(ctx, p)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order %d direction changed concurrently: %w", orderID, apperr.ErrPreconditionFailed)
		}

		if next.ReleasesCourier() {
			if _, err := tx.SetCourierBusy(ctx, courierID, false); err != nil {
				return err
			}
		}
		customerID = o.CustomerID
		return nil
	})
	if err != nil {
		return err
	}

	s.warnOnError("order_direction_update", s.notifier.DirectionUpdate(ctx, customerID, orderID, next))
	s.logger.Info("direction updated",
		logx.String("event", "direction_updated"),
		logx.Int64("order_id", orderID),
		logx.Int64("courier_id", courierID),
		logx.String("direction", string(next)),
	)
	return nil
}

// Complete is the customer confirming delivery. The courier must have arrived.
func (s *Service) Complete(ctx context.Context, orderID, customerID int64, rating *int) error {
	if orderID <= 0 || customerID <= 0 {
		return fmt.Errorf("order %d, customer %d: %w", orderID, customerID, apperr.ErrInvalid)
	}
	if err := validateRating(rating); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.CustomerID != customerID {
			return fmt.Errorf("order %d does not belong to customer %d: %w", orderID, customerID, apperr.ErrForbidden)
		}
		if o.Status != domain.OrderAssigned || o.CurrentDirection() != domain.DirectionArrivedToCustomer {
			return fmt.Errorf("order %d is %s/%q: %w", orderID, o.Status, o.CurrentDirection(), apperr.ErrPreconditionFailed)
		}

		ok, err := tx.CompleteOrder(ctx, dispatchtx.CompleteParams{
			OrderID:     orderID,
			DeliveredAt: s.now(),
			Rating:      rating,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order %d changed while completing: %w", orderID, apperr.ErrPreconditionFailed)
		}
		// The courier was released at arrived_to_customer and may be busy with another order by now.
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("order completed",
		logx.String("event", "order_completed"),
		logx.Int64("order_id", orderID),
	)
	return nil
}

// HandOver is the courier confirming the hand-over of a completed order.
func (s *Service) HandOver(ctx context.Context, orderID, courierID int64, rating *int) error {
	if orderID <= 0 || courierID <= 0 {
		return fmt.Errorf("order %d, courier %d: %w", orderID, courierID, apperr.ErrInvalid)
	}
	if err := validateRating(rating); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.AssignedTo(courierID) {
			return fmt.Errorf("order %d was not delivered by courier %d: %w", orderID, courierID, apperr.ErrForbidden)
		}
		if o.Status != domain.OrderCompleted || o.CurrentDirection() != domain.DirectionArrivedToCustomer {
			return fmt.Errorf("order %d is %s/%q: %w", orderID, o.Status, o.CurrentDirection(), apperr.ErrPreconditionFailed)
		}

		ok, err := tx.HandOver(ctx, dispatchtx.HandOverParams{OrderID: orderID, CourierID: courierID, Rating: rating})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order %d changed while handing over: %w", orderID, apperr.ErrPreconditionFailed)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("order handed over",
		logx.String("event", "order_handed_over"),
		logx.Int64("order_id", orderID),
		logx.Int64("courier_id", courierID),
	)
	return nil
}

func lockOrder(ctx context.Context, tx dispatchtx.Repository, orderID int64) (*domain.Order, error) {
	o, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	return o, nil
}

func validateRating(rating *int) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return fmt.Errorf("rating %d is outside 1..5: %w", *rating, apperr.ErrInvalid)
	}
	return nil
}

func (s *Service) clearClaim(ctx context.Context, orderID int64) {
	if s.claims == nil {
		return
	}
	if err := s.claims.Release(ctx, orderID); err != nil {
		s.logger.Warn("release claim failed", logx.Int64("order_id", orderID), logx.Err(err))
	}
	if err := s.claims.ClearRejections(ctx, orderID); err != nil {
		s.logger.Warn("clear rejections failed", logx.Int64("order_id", orderID), logx.Err(err))
	}
}

func (s *Service) warnOnError(event string, err error) {
	if err != nil {
		s.logger.Warn("notification failed", logx.String("notification", event), logx.Err(err))
	}
}
