package notify

//go:generate mockgen -source=publisher.go -destination=mock_sink_test.go -package=notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/domain"
)

// Sink delivers a message to a transport.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Fanout sends every message to all sinks and joins their errors.
type Fanout []Sink

// Send implements Sink.
func (f Fanout) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publisher is the single place the dispatch engine emits notifications from.
type Publisher struct {
	sink  Sink
	now   func() time.Time
	newID func() string
}

// NewPublisher creates a Publisher over sink.
func NewPublisher(sink Sink) *Publisher {
	return &Publisher{
		sink:  sink,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

func (p *Publisher) publish(ctx context.Context, userID int64, a Audience, ev Event, payload any) error {
	msg := Message{
		ID:        p.newID(),
		Topic:     Topic(userID, a),
		Type:      ev,
		Payload:   payload,
		CreatedAt: p.now().UTC(),
	}
	if err := p.sink.Send(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev, msg.Topic, err)
	}
	return nil
}

// OrderOffer offers an order to a courier.
func (p *Publisher) OrderOffer(ctx context.Context, courierUserID int64, payload OfferPayload) error {
	return p.publish(ctx, courierUserID, AudienceCourier, EventOrderOffer, payload)
}

// OrderTimeout tells a courier their offer window elapsed.
func (p *Publisher) OrderTimeout(ctx context.Context, courierUserID, orderID int64) error {
	return p.publish(ctx, courierUserID, AudienceCourier, EventOrderTimeout, OrderRef{OrderID: orderID})
}

// OrderTaken tells the shop owner a courier took the order.
func (p *Publisher) OrderTaken(ctx context.Context, shopOwnerID int64, payload AssignedPayload) error {
	return p.publish(ctx, shopOwnerID, AudienceShop, EventOrderTaken, payload)
}

// OrderAssigned tells the courier or the customer about the assignment.
func (p *Publisher) OrderAssigned(ctx context.Context, userID int64, a Audience, payload AssignedPayload) error {
	return p.publish(ctx, userID, a, EventOrderAssigned, payload)
}

// OrderCanceled tells the party that did not cancel.
func (p *Publisher) OrderCanceled(ctx context.Context, userID int64, a Audience, payload CanceledPayload) error {
	return p.publish(ctx, userID, a, EventOrderCanceled, payload)
}

// DirectionUpdate tells the customer about courier progress.
func (p *Publisher) DirectionUpdate(ctx context.Context, customerID, orderID int64, d domain.Direction) error {
	return p.publish(ctx, customerID, AudienceCustomer, EventDirectionUpdate, DirectionPayload{OrderID: orderID, Direction: d})
}

// LocationUpdate forwards a courier position to the customer.
func (p *Publisher) LocationUpdate(ctx context.Context, customerID int64, payload LocationPayload) error {
	return p.publish(ctx, customerID, AudienceCustomer, EventLocationUpdate, payload)
}

// DurationUpdate forwards a recomputed route to the customer.
func (p *Publisher) DurationUpdate(ctx context.Context, customerID int64, payload DurationPayload) error {
	return p.publish(ctx, customerID, AudienceCustomer, EventDurationUpdate, payload)
}

// NoCourierFound tells the customer the dispatch run ended without a courier.
func (p *Publisher) NoCourierFound(ctx context.Context, customerID, orderID int64) error {
	return p.publish(ctx, customerID, AudienceCustomer, EventNoCourierFound, OrderRef{OrderID: orderID})
}
