package tracker

import (
	"context"
	"fmt"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/service/estimate"
	"service-dispatch/internal/store/redisstore"
)

// Config holds the tracker intervals.
type Config struct {
	LocationTTL      time.Duration
	LocationThrottle time.Duration
	DurationThrottle time.Duration
	MinDisplacementM float64
	OperationTimeout time.Duration
}

// Deps groups the collaborators of the tracker.
type Deps struct {
	Couriers  courierReader
	Orders    orderStore
	Shops     shopReader
	Customers customerLocator
	Live      liveIndex
	Durable   locationWriter
	Throttle  throttle
	Estimator estimator
	Notifier  Notifier
	Flushed   adder
}

// Service ingests courier positions and keeps the customer informed.
type Service struct {
	couriers  courierReader
	orders    orderStore
	shops     shopReader
	customers customerLocator
	live      liveIndex
	durable   locationWriter
	throttle  throttle
	estimator estimator
	notifier  Notifier
	flushed   adder

	cfg    Config
	logger logx.Logger
	now    func() time.Time
}

// NewService creates a new tracker Service.
func NewService(d Deps, cfg Config, logger logx.Logger) *Service {
	if cfg.LocationTTL <= 0 {
		cfg.LocationTTL = 3 * time.Hour
	}
	if cfg.LocationThrottle <= 0 {
		cfg.LocationThrottle = 5 * time.Second
	}
	if cfg.DurationThrottle <= 0 {
		cfg.DurationThrottle = 15 * time.Second
	}
	if cfg.MinDisplacementM <= 0 {
		cfg.MinDisplacementM = 20
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		couriers:  d.Couriers,
		orders:    d.Orders,
		shops:     d.Shops,
		customers: d.Customers,
		live:      d.Live,
		durable:   d.Durable,
		throttle:  d.Throttle,
		estimator: d.Estimator,
		notifier:  d.Notifier,
		flushed:   d.Flushed,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// Ingest records a courier position. Broadcast failures are logged; only the
// live write decides the result.
func (s *Service) Ingest(ctx context.Context, courierID int64, p domain.Point) error {
	if courierID <= 0 || !p.Valid() {
		return fmt.Errorf("courier %d at %v: %w", courierID, p, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.couriers.Get(ctx, courierID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("courier %d: %w", courierID, apperr.ErrNotFound)
	}
	if !c.WorkActive {
		return fmt.Errorf("courier %d is off work: %w", courierID, apperr.ErrPreconditionFailed)
	}

	err = s.live.Put(ctx, domain.LiveLocation{
		CourierID:  courierID,
		Lat:        p.Lat,
		Lon:        p.Lon,
		WorkActive: c.WorkActive,
		IsBusy:     c.IsBusy,
		Timestamp:  s.now(),
	})
	if err != nil {
		return fmt.Errorf("store live location of courier %d: %w", courierID, err)
	}

	o, err := s.orders.ActiveByCourier(ctx, courierID)
	if err != nil {
		s.logger.Warn("active order lookup failed", logx.Int64("courier_id", courierID), logx.Err(err))
		return nil
	}
	if o == nil || o.CurrentDirection().ReleasesCourier() {
		return nil
	}

	s.broadcastLocation(ctx, c, o, p)
	s.broadcastDuration(ctx, c, o, p)
	return nil
}

func (s *Service) broadcastLocation(ctx context.Context, c *domain.Courier, o *domain.Order, p domain.Point) {
	if !s.allow(ctx, redisstore.LocationSentKey(c.ID), s.cfg.LocationThrottle) {
		return
	}
	s.warnOnError("location_update", s.notifier.LocationUpdate(ctx, o.CustomerID, notify.LocationPayload{
		OrderID:   o.ID,
		CourierID: c.ID,
		Lat:       p.Lat,
		Lon:       p.Lon,
	}))
}

func (s *Service) broadcastDuration(ctx context.Context, c *domain.Courier, o *domain.Order, p domain.Point) {
	last, err := s.throttle.LastDurationPoint(ctx, c.ID)
	if err != nil {
		s.logger.Warn("last duration point unavailable", logx.Int64("courier_id", c.ID), logx.Err(err))
		return
	}
	if last != nil && domain.HaversineMeters(*last, p) < s.cfg.MinDisplacementM {
		return
	}
	if !s.allow(ctx, redisstore.DurationSentKey(c.ID), s.cfg.DurationThrottle) {
		return
	}

	shop, err := s.shops.Get(ctx, o.ShopID)
	if err != nil || shop == nil {
		s.logger.Warn("shop unavailable for duration update", logx.Int64("order_id", o.ID), logx.Err(err))
		return
	}
	customer, err := s.customers.Active(ctx, o.CustomerID)
	if err != nil || customer == nil {
		s.logger.Warn("customer location unavailable for duration update", logx.Int64("order_id", o.ID), logx.Err(err))
		return
	}

	e := s.estimator.Estimate(ctx, estimate.Input{
		Courier:   p,
		Shop:      shop.Point,
		Customer:  *customer,
		Mode:      c.Mode,
		Direction: o.CurrentDirection(),
	})
	if e == nil {
		return
	}

	ok, err := s.orders.UpdateEstimate(ctx, o.ID, c.ID, *e)
	if err != nil {
		s.logger.Warn("store estimate failed", logx.Int64("order_id", o.ID), logx.Err(err))
		return
	}
	if !ok {
		// the order moved on between the lookup and now
		return
	}

	s.warnOnError("duration_update", s.notifier.DurationUpdate(ctx, o.CustomerID, notify.DurationPayload{
		OrderID:     o.ID,
		CourierID:   c.ID,
		DistanceKm:  e.DistanceKm,
		DurationMin: e.DurationMin,
	}))
	if err := s.throttle.SetDurationPoint(ctx, c.ID, p, s.cfg.LocationTTL); err != nil {
		s.logger.Warn("store duration point failed", logx.Int64("courier_id", c.ID), logx.Err(err))
	}
	s.logger.Debug("duration updated",
		logx.String("event", "duration_update"),
		logx.Int64("order_id", o.ID),
		logx.Float64("duration_min", e.DurationMin),
	)
}

func (s *Service) allow(ctx context.Context, key string, every time.Duration) bool {
	ok, err := s.throttle.Allow(ctx, key, every)
	if err != nil {
		s.logger.Warn("throttle check failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return ok
}

// FlushResult summarizes one flush sweep.
type FlushResult struct {
	Scanned   int
	Written   int
	Malformed int
	Pruned    int
}

// Flush copies live positions into the durable store and prunes the geo set.
func (s *Service) Flush(ctx context.Context) (FlushResult, error) {
	var res FlushResult

	locs, malformed, err := s.live.All(ctx)
	if err != nil {
		return res, err
	}
	res.Scanned, res.Malformed = len(locs), malformed

	rows := make([]domain.LastKnownLocation, 0, len(locs))
	now := s.now()
	for _, l := range locs {
		at := l.Timestamp
		if at.IsZero() {
			at = now
		}
		rows = append(rows, domain.LastKnownLocation{CourierID: l.CourierID, Point: l.Point(), UpdatedAt: at})
	}

	res.Written, err = s.durable.Upsert(ctx, rows)
	if err != nil {
		return res, err
	}
	if s.flushed != nil {
		s.flushed.Add(float64(res.Written))
	}

	res.Pruned, err = s.live.Prune(ctx)
	if err != nil {
		return res, err
	}

	if malformed > 0 {
		s.logger.Warn("malformed live locations skipped", logx.Int("count", malformed))
	}
	s.logger.Info("locations flushed",
		logx.String("event", "locations_flushed"),
		logx.Int("scanned", res.Scanned),
		logx.Int("written", res.Written),
		logx.Int("pruned", res.Pruned),
	)
	return res, nil
}

func (s *Service) warnOnError(event string, err error) {
	if err != nil {
		s.logger.Warn("notification failed", logx.String("notification", event), logx.Err(err))
	}
}
