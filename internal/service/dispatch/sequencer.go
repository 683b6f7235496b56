package dispatch

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
	"service-dispatch/internal/service/estimate"
)

type wake int

const (
	wakeTimeout wake = iota
	wakeRejected
	wakeResolved
)

// Offer results for the offers counter.
const (
	offerSent     = "sent"
	offerTimeout  = "timeout"
	offerRejected = "rejected"
)

// Run offers the searching order to candidates in order until one of them claims it,
// the order leaves searching, or the list is exhausted.
func (s *Service) Run(ctx context.Context, o *domain.Order, shop *domain.Shop, candidates []domain.Candidate) (domain.DispatchOutcome, error) {
	out, err := s.run(ctx, o, shop, candidates)
	if err != nil {
		if ctx.Err() != nil {
			s.revertToPending(o.ID)
		}
		return out, err
	}

	s.count(s.outcomes, string(out.Kind))
	fields := []logx.Field{
		logx.String("event", "dispatch_finished"),
		logx.Int64("order_id", o.ID),
		logx.String("outcome", string(out.Kind)),
		logx.Int("candidates", len(candidates)),
		logx.Int("offered", out.Offered),
	}
	if out.CourierID != 0 {
		fields = append(fields, logx.Int64("courier_id", out.CourierID))
	}
	s.logger.Info("dispatch finished", fields...)
	return out, nil
}

func (s *Service) run(ctx context.Context, o *domain.Order, shop *domain.Shop, candidates []domain.Candidate) (domain.DispatchOutcome, error) {
	customer := s.customerPoint(ctx, o.CustomerID)
	offered := 0

	for _, c := range candidates {
		out, done, err := s.checkpoint(ctx, o.ID)
		if err != nil || done {
			out.Offered = offered
			return out, err
		}

		w, err := s.offer(ctx, o, shop, customer, c)
		offered++
		if err != nil {
			return domain.DispatchOutcome{Kind: domain.OutcomeAborted, Offered: offered}, err
		}

		switch w {
		case wakeTimeout:
			s.count(s.offers, offerTimeout)
			s.warnOnError("order_timeout", s.notifier.OrderTimeout(ctx, c.UserID, o.ID))
			s.logger.Info("offer timed out",
				logx.String("event", "offer_timeout"),
				logx.Int64("order_id", o.ID),
				logx.Int64("courier_id", c.CourierID),
			)
		case wakeRejected:
			s.count(s.offers, offerRejected)
		case wakeResolved:
			// the next checkpoint settles it
		}
	}

	out, done, err := s.checkpoint(ctx, o.ID)
	if err != nil || done {
		out.Offered = offered
		return out, err
	}
	out, err = s.giveUp(ctx, o)
	out.Offered = offered
	return out, err
}

// checkpoint finalizes a claim if there is one and reports whether the loop is over.
func (s *Service) checkpoint(ctx context.Context, orderID int64) (domain.DispatchOutcome, bool, error) {
	holder, err := s.claims.Holder(ctx, orderID)
	if err != nil {
		return domain.DispatchOutcome{Kind: domain.OutcomeAborted}, true, err
	}
	if holder != 0 {
		res, err := s.finalizer.Finalize(ctx, orderID, holder)
		if err == nil {
			return domain.DispatchOutcome{Kind: domain.OutcomeAssigned, CourierID: res.CourierID}, true, nil
		}
		if ctx.Err() != nil {
			return domain.DispatchOutcome{Kind: domain.OutcomeAborted}, true, ctx.Err()
		}
		s.logger.Warn("finalize for claimant failed",
			logx.Int64("order_id", orderID),
			logx.Int64("courier_id", holder),
			logx.Err(err),
		)
		if !errors.Is(err, apperr.ErrRaceLost) {
			if rerr := s.claims.Release(ctx, orderID); rerr != nil {
				s.logger.Warn("release claim failed", logx.Int64("order_id", orderID), logx.Err(rerr))
			}
		}
	}

	status, courierID, err := s.status(ctx, orderID)
	if err != nil {
		return domain.DispatchOutcome{Kind: domain.OutcomeAborted}, true, err
	}
	switch status {
	case domain.OrderSearching:
		return domain.DispatchOutcome{}, false, nil
	case domain.OrderAssigned:
		return domain.DispatchOutcome{Kind: domain.OutcomeAssigned, CourierID: courierID}, true, nil
	default:
		return domain.DispatchOutcome{Kind: domain.OutcomeAborted}, true, nil
	}
}

func (s *Service) status(ctx context.Context, orderID int64) (domain.OrderStatus, int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return "", 0, err
	}
	if o == nil {
		return "", 0, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	var courierID int64
	if o.CourierID != nil {
		courierID = *o.CourierID
	}
	return o.Status, courierID, nil
}

// offer sends the order to one courier and waits for an answer or the window to close.
func (s *Service) offer(ctx context.Context, o *domain.Order, shop *domain.Shop, customer *domain.Point, c domain.Candidate) (wake, error) {
	// subscribe before the offer goes out so an instant answer is not missed
	sub, err := s.signals.Subscribe(ctx, o.ID)
	if err != nil {
		return wakeTimeout, fmt.Errorf("subscribe to order %d signals: %w", o.ID, err)
	}
	defer sub.Close()

	payload := notify.OfferPayload{
		OrderID:    o.ID,
		ShopID:     shop.ID,
		ShopTitle:  shop.Title,
		TimeoutSec: int(s.cfg.OfferWindow / time.Second),
	}
	if customer != nil {
		q := s.quoter.Quote(ctx, estimate.Input{
			Courier:   c.Point,
			Shop:      shop.Point,
			Customer:  *customer,
			Mode:      c.Mode,
			Direction: domain.DirectionEnRouteToStore,
		})
		if q.Estimate != nil {
			km, mins := q.Estimate.DistanceKm, q.Estimate.DurationMin
			payload.DistanceKm, payload.DurationMin = &km, &mins
		}
		payload.Price = q.Price
	}

	s.count(s.offers, offerSent)
	s.warnOnError("order_offer", s.notifier.OrderOffer(ctx, c.UserID, payload))
	s.logger.Info("offer sent",
		logx.String("event", "offer_sent"),
		logx.Int64("order_id", o.ID),
		logx.Int64("courier_id", c.CourierID),
		logx.Float64("distance_km", c.DistanceKm),
		logx.String("source", string(c.Source)),
	)

	return s.await(ctx, o.ID, c.CourierID, sub)
}

func (s *Service) await(ctx context.Context, orderID, courierID int64, sub claim.Subscription) (wake, error) {
	window := time.NewTimer(s.cfg.OfferWindow)
	defer window.Stop()
	tick := time.NewTicker(s.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return wakeTimeout, ctx.Err()
		case <-window.C:
			if s.resolved(ctx, orderID) {
				return wakeResolved, nil
			}
			return wakeTimeout, nil
		case <-sub.C():
		case <-tick.C:
		}

		if s.resolved(ctx, orderID) {
			return wakeResolved, nil
		}
		rejected, err := s.claims.Rejected(ctx, orderID, courierID)
		if err != nil {
			s.logger.Warn("rejection check failed", logx.Int64("order_id", orderID), logx.Err(err))
			continue
		}
		if rejected {
			return wakeRejected, nil
		}
	}
}

// resolved reports whether the order was claimed or left searching.
// Store errors count as unresolved; the next tick retries.
func (s *Service) resolved(ctx context.Context, orderID int64) bool {
	claimed, err := s.claims.Exists(ctx, orderID)
	if err != nil {
		s.logger.Warn("claim check failed", logx.Int64("order_id", orderID), logx.Err(err))
		return false
	}
	if claimed {
		return true
	}
	status, _, err := s.status(ctx, orderID)
	if err != nil {
		s.logger.Warn("status check failed", logx.Int64("order_id", orderID), logx.Err(err))
		return false
	}
	return status != domain.OrderSearching
}

// giveUp returns a searching order to pending and tells the customer.
func (s *Service) giveUp(ctx context.Context, o *domain.Order) (domain.DispatchOutcome, error) {
	tctx, cancel := s.withTimeout(ctx)
	ok, err := s.orders.SetStatus(tctx, o.ID, domain.OrderSearching, domain.OrderPending)
	cancel()
	if err != nil {
		return domain.DispatchOutcome{Kind: domain.OutcomeAborted}, err
	}
	if !ok {
		// something else moved the order in the meantime
		out, done, err := s.checkpoint(ctx, o.ID)
		if !done {
			out.Kind = domain.OutcomeAborted
		}
		return out, err
	}

	s.warnOnError("no_courier_found", s.notifier.NoCourierFound(ctx, o.CustomerID, o.ID))
	return domain.DispatchOutcome{Kind: domain.OutcomeNoCourierFound}, nil
}

func (s *Service) customerPoint(ctx context.Context, customerID int64) *domain.Point {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.customers.Active(ctx, customerID)
	if err != nil {
		s.logger.Warn("customer location unavailable", logx.Int64("customer_id", customerID), logx.Err(err))
		return nil
	}
	return p
}

func (s *Service) warnOnError(event string, err error) {
	if err != nil {
		s.logger.Warn("notification failed", logx.String("notification", event), logx.Err(err))
	}
}
