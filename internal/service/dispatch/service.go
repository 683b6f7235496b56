package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/claim"
)

// Config tunes the offer loop.
type Config struct {
	// OfferWindow is how long one courier has to answer.
	OfferWindow time.Duration
	// PollInterval re-checks the claim in case a signal was lost.
	PollInterval     time.Duration
	OperationTimeout time.Duration
}

// Deps groups the collaborators of the dispatcher.
type Deps struct {
	Orders    orderStore
	Shops     shopReader
	Customers customerLocator
	Selector  candidateSelector
	Finalizer finalizer
	Quoter    quoter
	Claims    claim.Store
	Signals   claim.Signals
	Notifier  Notifier
	Outcomes  counterVec
	Offers    counterVec
}

// Service moves orders from searching to assigned by offering them to couriers one at a time.
type Service struct {
	orders    orderStore
	shops     shopReader
	customers customerLocator
	selector  candidateSelector
	finalizer finalizer
	quoter    quoter
	claims    claim.Store
	signals   claim.Signals
	notifier  Notifier
	outcomes  counterVec
	offers    counterVec

	cfg    Config
	logger logx.Logger

	mu      sync.Mutex
	running map[int64]struct{}

	bg       context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// NewService creates a new dispatch Service.
func NewService(d Deps, cfg Config, logger logx.Logger) *Service {
	if cfg.OfferWindow <= 0 {
		cfg.OfferWindow = 20 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Service{
		orders:    d.Orders,
		shops:     d.Shops,
		customers: d.Customers,
		selector:  d.Selector,
		finalizer: d.Finalizer,
		quoter:    d.Quoter,
		claims:    d.Claims,
		signals:   d.Signals,
		notifier:  d.Notifier,
		outcomes:  d.Outcomes,
		offers:    d.Offers,
		cfg:       cfg,
		logger:    logger,
		running:   make(map[int64]struct{}),
		bg:        bg,
		bgCancel:  cancel,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// Dispatch moves the order to searching and runs the offer loop until it resolves.
// Calling it again for a searching order restarts the loop with fresh candidates.
func (s *Service) Dispatch(ctx context.Context, orderID, shopID int64) (domain.DispatchOutcome, error) {
	if !s.acquire(orderID) {
		s.logger.Info("dispatch already running", logx.Int64("order_id", orderID))
		return domain.DispatchOutcome{Kind: domain.OutcomeAborted}, nil
	}
	defer s.release(orderID)

	o, shop, err := s.begin(ctx, orderID, shopID)
	if err != nil {
		return domain.DispatchOutcome{}, err
	}
	return s.selectAndRun(ctx, o, shop)
}

// Start is Dispatch in the background. Validation and the status change happen
// before it returns; the offer loop outlives ctx and stops on Shutdown.
func (s *Service) Start(ctx context.Context, orderID, shopID int64) error {
	if !s.acquire(orderID) {
		return fmt.Errorf("order %d is already being dispatched: %w", orderID, apperr.ErrPreconditionFailed)
	}

	o, shop, err := s.begin(ctx, orderID, shopID)
	if err != nil {
		s.release(orderID)
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(orderID)
		if _, err := s.selectAndRun(s.bg, o, shop); err != nil {
			s.logger.Error("background dispatch failed", logx.Int64("order_id", orderID), logx.Err(err))
		}
	}()
	return nil
}

// Shutdown stops background dispatches and waits for them to return.
func (s *Service) Shutdown(ctx context.Context) error {
	s.bgCancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) acquire(orderID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[orderID]; busy {
		return false
	}
	s.running[orderID] = struct{}{}
	return true
}

func (s *Service) release(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, orderID)
}

func (s *Service) begin(ctx context.Context, orderID, shopID int64) (*domain.Order, *domain.Shop, error) {
	if orderID <= 0 || shopID < 0 {
		return nil, nil, fmt.Errorf("order %d, shop %d: %w", orderID, shopID, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o == nil {
		return nil, nil, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	if shopID != 0 && o.ShopID != shopID {
		return nil, nil, fmt.Errorf("order %d belongs to shop %d, not %d: %w", orderID, o.ShopID, shopID, apperr.ErrInvalid)
	}

	switch o.Status {
	case domain.OrderSearching:
	case domain.OrderPending:
		ok, err := s.orders.SetStatus(ctx, orderID, domain.OrderPending, domain.OrderSearching)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("order %d left pending: %w", orderID, apperr.ErrPreconditionFailed)
		}
		o.Status = domain.OrderSearching
	default:
		return nil, nil, fmt.Errorf("order %d is %s: %w", orderID, o.Status, apperr.ErrPreconditionFailed)
	}

	// Declines belong to the previous run; every run offers to its candidates afresh.
	if err := s.claims.ClearRejections(ctx, orderID); err != nil {
		s.logger.Warn("clear rejections failed", logx.Int64("order_id", orderID), logx.Err(err))
	}

	shop, err := s.shops.Get(ctx, o.ShopID)
	if err != nil {
		return nil, nil, err
	}
	if shop == nil {
		return nil, nil, fmt.Errorf("shop %d: %w", o.ShopID, apperr.ErrNotFound)
	}
	return o, shop, nil
}

func (s *Service) selectAndRun(ctx context.Context, o *domain.Order, shop *domain.Shop) (domain.DispatchOutcome, error) {
	candidates, err := s.selector.Select(ctx, shop.Point)
	if err != nil {
		s.revertToPending(o.ID)
		return domain.DispatchOutcome{}, err
	}
	return s.Run(ctx, o, shop, candidates)
}

// revertToPending hands a searching order back so a retry can pick it up.
func (s *Service) revertToPending(orderID int64) {
	ctx, cancel := s.withTimeout(context.Background())
	defer cancel()
	if _, err := s.orders.SetStatus(ctx, orderID, domain.OrderSearching, domain.OrderPending); err != nil {
		s.logger.Warn("revert order to pending failed", logx.Int64("order_id", orderID), logx.Err(err))
	}
}

func (s *Service) count(vec counterVec, label string) {
	if vec != nil {
		vec.WithLabelValues(label).Inc()
	}
}
