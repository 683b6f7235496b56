package orders

import (
	"context"
	"errors"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

const upstreamCancelReason = "canceled by order service"

// Processor turns order events into dispatch runs and cancellations.
type Processor struct {
	dispatch DispatchPort
	cancel   CancelPort
	factory  *actionFactory
	logger   logx.Logger
}

// NewProcessor creates a new orders.Processor.
func NewProcessor(dispatch DispatchPort, cancel CancelPort, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{
		dispatch: dispatch,
		cancel:   cancel,
		logger:   logger,
	}
	p.factory = newActionFactory(p.onDispatch, p.onCanceled)
	return p
}

// Handle processes a single orders.Event. Unknown actions are ignored.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	fn, ok := p.factory.get(e.Action)
	if !ok {
		p.logger.Debug("order event ignored",
			logx.Int64("order_id", e.OrderID),
			logx.String("action", e.Action),
		)
		return nil
	}
	return fn(ctx, e)
}

// onDispatch only waits for the order to enter searching; the offer loop runs in the background.
func (p *Processor) onDispatch(ctx context.Context, e Event) error {
	err := p.dispatch.Start(ctx, e.OrderID, e.ShopID)
	if errors.Is(err, apperr.ErrPreconditionFailed) {
		p.logger.Info("order not dispatchable",
			logx.String("event", "dispatch_skipped"),
			logx.Int64("order_id", e.OrderID),
			logx.Err(err),
		)
		return nil
	}
	return err
}

func (p *Processor) onCanceled(ctx context.Context, e Event) error {
	reason := e.Reason
	if reason == "" {
		reason = upstreamCancelReason
	}
	err := p.cancel.Cancel(ctx, e.OrderID, domain.Actor{Role: domain.RoleSystem}, reason)
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrPreconditionFailed) {
		return nil
	}
	return err
}
