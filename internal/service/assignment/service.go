package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/ports/claim"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/service/estimate"
)

// Deps groups the collaborators of the coordinator.
type Deps struct {
	Orders    OrderReader
	Couriers  CourierReader
	Shops     ShopReader
	Customers CustomerLocator
	Positions PositionReader
	Quoter    Quoter
	Tx        dispatchtx.Runner
	Claims    claim.Store
	Notifier  Notifier
	RacesLost counter
}

// Service resolves offers into assignments.
type Service struct {
	orders    OrderReader
	couriers  CourierReader
	shops     ShopReader
	customers CustomerLocator
	positions PositionReader
	quoter    Quoter
	tx        dispatchtx.Runner
	claims    claim.Store
	notifier  Notifier
	racesLost counter

	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates a new assignment Service.
func NewService(d Deps, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		orders:           d.Orders,
		couriers:         d.Couriers,
		shops:            d.Shops,
		customers:        d.Customers,
		positions:        d.Positions,
		quoter:           d.Quoter,
		tx:               d.Tx,
		claims:           d.Claims,
		notifier:         d.Notifier,
		racesLost:        d.RacesLost,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

func validateIDs(orderID, courierID int64) error {
	if orderID <= 0 || courierID <= 0 {
		return fmt.Errorf("order %d, courier %d: %w", orderID, courierID, apperr.ErrInvalid)
	}
	return nil
}

func (s *Service) loadOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	return o, nil
}

// Accept claims the order for the courier and finalizes the assignment.
// The first courier to claim wins; everybody else gets ErrRaceLost.
func (s *Service) Accept(ctx context.Context, orderID, courierID int64) (domain.AssignResult, error) {
	if err := validateIDs(orderID, courierID); err != nil {
		return domain.AssignResult{}, err
	}

	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.AssignResult{}, err
	}
	if err := checkAssignable(o, courierID); err != nil {
		if errors.Is(err, apperr.ErrRaceLost) {
			return domain.AssignResult{}, s.raceLost(orderID, courierID)
		}
		return domain.AssignResult{}, err
	}
	if o.Status == domain.OrderAssigned {
		return assignedResult(o), nil
	}

	won, err := s.claims.TryClaim(ctx, orderID, courierID)
	if err != nil {
		return domain.AssignResult{}, err
	}
	if !won {
		holder, err := s.claims.Holder(ctx, orderID)
		if err != nil {
			return domain.AssignResult{}, err
		}
		if holder != courierID {
			return domain.AssignResult{}, s.raceLost(orderID, courierID)
		}
	}

	res, err := s.Finalize(ctx, orderID, courierID)
	if err != nil {
		// the claim is only worth keeping if it can become an assignment
		if rerr := s.claims.Release(ctx, orderID); rerr != nil {
			s.logger.Warn("release claim failed", logx.Int64("order_id", orderID), logx.Err(rerr))
		}
		if errors.Is(err, apperr.ErrRaceLost) {
			return domain.AssignResult{}, s.raceLost(orderID, courierID)
		}
		return domain.AssignResult{}, err
	}
	return res, nil
}

func (s *Service) raceLost(orderID, courierID int64) error {
	if s.racesLost != nil {
		s.racesLost.Inc()
	}
	s.logger.Info("accept lost the race",
		logx.String("event", "claim_race_lost"),
		logx.Int64("order_id", orderID),
		logx.Int64("courier_id", courierID),
	)
	return fmt.Errorf("order %d: %w", orderID, apperr.ErrRaceLost)
}

// Reject records that the courier declined the offer and wakes the sequencer.
func (s *Service) Reject(ctx context.Context, orderID, courierID int64) error {
	if err := validateIDs(orderID, courierID); err != nil {
		return err
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != domain.OrderSearching {
		return fmt.Errorf("order %d is %s: %w", orderID, o.Status, apperr.ErrPreconditionFailed)
	}
	if err := s.claims.Reject(ctx, orderID, courierID); err != nil {
		return err
	}
	s.logger.Info("offer rejected",
		logx.String("event", "offer_rejected"),
		logx.Int64("order_id", orderID),
		logx.Int64("courier_id", courierID),
	)
	return nil
}

type assignmentContext struct {
	order    *domain.Order
	courier  *domain.Courier
	shop     *domain.Shop
	position *domain.Point
	quote    estimate.Quote
}

// Finalize assigns the order to the courier. Repeating it for the same courier is a no-op.
func (s *Service) Finalize(ctx context.Context, orderID, courierID int64) (domain.AssignResult, error) {
	if err := validateIDs(orderID, courierID); err != nil {
		return domain.AssignResult{}, err
	}

	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.AssignResult{}, err
	}
	if err := checkAssignable(o, courierID); err != nil {
		return domain.AssignResult{}, err
	}
	if o.Status == domain.OrderAssigned {
		return assignedResult(o), nil
	}

	ac, err := s.prepare(ctx, o, courierID)
	if err != nil {
		return domain.AssignResult{}, err
	}

	res, err := s.commit(ctx, ac)
	if err != nil || res.AlreadyAssigned {
		return res, err
	}

	s.afterAssign(ctx, ac, res)
	return res, nil
}

// prepare loads everything the assignment needs and quotes the route
// before any row is locked.
func (s *Service) prepare(ctx context.Context, o *domain.Order, courierID int64) (*assignmentContext, error) {
	ac := &assignmentContext{order: o}

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.couriers.Get(rctx, courierID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("courier %d: %w", courierID, apperr.ErrNotFound)
	}
	ac.courier = c

	shop, err := s.shops.Get(rctx, o.ShopID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, fmt.Errorf("shop %d: %w", o.ShopID, apperr.ErrNotFound)
	}
	ac.shop = shop

	customer, err := s.customers.Active(rctx, o.CustomerID)
	if err != nil {
		s.logger.Warn("customer location unavailable", logx.Int64("order_id", o.ID), logx.Err(err))
		customer = nil
	}
	pos, err := s.positions.Position(rctx, courierID)
	if err != nil {
		s.logger.Warn("courier position unavailable", logx.Int64("courier_id", courierID), logx.Err(err))
		pos = nil
	}
	ac.position = pos

	if pos != nil && customer != nil {
		ac.quote = s.quoter.Quote(ctx, estimate.Input{
			Courier:   *pos,
			Shop:      shop.Point,
			Customer:  *customer,
			Mode:      c.Mode,
			Direction: domain.DirectionEnRouteToStore,
		})
	}
	return ac, nil
}

func (s *Service) commit(ctx context.Context, ac *assignmentContext) (domain.AssignResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	orderID, courierID := ac.order.ID, ac.courier.ID
	var res domain.AssignResult

	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		if err := checkAssignable(o, courierID); err != nil {
			return err
		}
		if o.Status == domain.OrderAssigned {
			res = assignedResult(o)
			return nil
		}

		c, err := tx.LockCourier(ctx, courierID)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("courier %d: %w", courierID, apperr.ErrNotFound)
		}
		if c.IsBusy {
			return fmt.Errorf("courier %d is busy: %w", courierID, apperr.ErrPreconditionFailed)
		}

		now := s.now()
		ok, err := tx.AssignOrder(ctx, dispatchtx.AssignParams{
			OrderID:    orderID,
			CourierID:  courierID,
			AssignedAt: now,
			Estimate:   ac.quote.Estimate,
			Price:      ac.quote.Price,
			Weather:    ac.quote.Weather,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order %d changed during assignment: %w", orderID, apperr.ErrPreconditionFailed)
		}

		ok, err = tx.SetCourierBusy(ctx, courierID, true)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("courier %d is busy: %w", courierID, apperr.ErrPreconditionFailed)
		}

		res = domain.AssignResult{
			OrderID:    orderID,
			CourierID:  courierID,
			AssignedAt: now,
			Estimate:   ac.quote.Estimate,
			Price:      ac.quote.Price,
		}
		return nil
	})
	if err != nil {
		return domain.AssignResult{}, err
	}
	return res, nil
}

func (s *Service) afterAssign(ctx context.Context, ac *assignmentContext, res domain.AssignResult) {
	o := ac.order
	if err := s.claims.Release(ctx, o.ID); err != nil {
		s.logger.Warn("release claim failed", logx.Int64("order_id", o.ID), logx.Err(err))
	}
	if err := s.claims.ClearRejections(ctx, o.ID); err != nil {
		s.logger.Warn("clear rejections failed", logx.Int64("order_id", o.ID), logx.Err(err))
	}

	payload := notify.AssignedPayload{
		OrderID:   o.ID,
		CourierID: res.CourierID,
		Mode:      ac.courier.Mode,
		Location:  ac.position,
		Price:     res.Price,
	}
	if res.Estimate != nil {
		km, mins := res.Estimate.DistanceKm, res.Estimate.DurationMin
		payload.DistanceKm, payload.DurationMin = &km, &mins
	}

	s.warnOnError("order_taken", s.notifier.OrderTaken(ctx, ac.shop.OwnerID, payload))
	s.warnOnError("order_assigned", s.notifier.OrderAssigned(ctx, ac.courier.UserID, notify.AudienceCourier, payload))
	s.warnOnError("order_assigned", s.notifier.OrderAssigned(ctx, o.CustomerID, notify.AudienceCustomer, payload))

	fields := []logx.Field{
		logx.String("event", "courier_assigned"),
		logx.Int64("order_id", o.ID),
		logx.Int64("courier_id", res.CourierID),
		logx.String("mode", string(ac.courier.Mode)),
		logx.Time("assigned_at", res.AssignedAt),
	}
	if res.Price != nil {
		fields = append(fields, logx.Int64("price", *res.Price))
	}
	s.logger.Info("courier assigned", fields...)
}

func (s *Service) warnOnError(event string, err error) {
	if err != nil {
		s.logger.Warn("notification failed", logx.String("notification", event), logx.Err(err))
	}
}

// checkAssignable accepts searching and pending orders and repeats for the current holder.
func checkAssignable(o *domain.Order, courierID int64) error {
	switch o.Status {
	case domain.OrderSearching, domain.OrderPending:
		return nil
	case domain.OrderAssigned:
		if o.AssignedTo(courierID) {
			return nil
		}
		return fmt.Errorf("order %d: %w", o.ID, apperr.ErrRaceLost)
	default:
		return fmt.Errorf("order %d is %s: %w", o.ID, o.Status, apperr.ErrPreconditionFailed)
	}
}

func assignedResult(o *domain.Order) domain.AssignResult {
	res := domain.AssignResult{
		OrderID:         o.ID,
		Price:           o.Price,
		AlreadyAssigned: true,
	}
	if o.CourierID != nil {
		res.CourierID = *o.CourierID
	}
	if o.AssignedAt != nil {
		res.AssignedAt = *o.AssignedAt
	}
	if o.DistanceKm != nil && o.DurationMin != nil {
		res.Estimate = &domain.Estimate{DistanceKm: *o.DistanceKm, DurationMin: *o.DurationMin}
	}
	return res
}
