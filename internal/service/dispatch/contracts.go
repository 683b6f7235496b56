package dispatch

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/service/estimate"
)

type orderStore interface {
	Get(ctx context.Context, id int64) (*domain.Order, error)
	SetStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error)
}

type shopReader interface {
	Get(ctx context.Context, id int64) (*domain.Shop, error)
}

type customerLocator interface {
	Active(ctx context.Context, customerID int64) (*domain.Point, error)
}

type candidateSelector interface {
	Select(ctx context.Context, at domain.Point) ([]domain.Candidate, error)
}

type finalizer interface {
	Finalize(ctx context.Context, orderID, courierID int64) (domain.AssignResult, error)
}

type quoter interface {
	Quote(ctx context.Context, in estimate.Input) estimate.Quote
}

type counterVec interface {
	WithLabelValues(lvs ...string) prometheus.Counter
}

// Notifier publishes the offer loop events.
type Notifier interface {
	OrderOffer(ctx context.Context, courierUserID int64, payload notify.OfferPayload) error
	OrderTimeout(ctx context.Context, courierUserID, orderID int64) error
	NoCourierFound(ctx context.Context, customerID, orderID int64) error
}
