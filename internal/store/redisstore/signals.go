package redisstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"service-dispatch/internal/ports/claim"
)

// Signals subscribes to per-order claim/rejection wake-ups over Redis pub/sub.
type Signals struct {
	client *redis.Client
}

// NewSignals creates a new Signals.
func NewSignals(client *redis.Client) *Signals { return &Signals{client: client} }

// Subscribe returns a subscription that fires whenever the order's claim store is touched.
func (s *Signals) Subscribe(ctx context.Context, orderID int64) (claim.Subscription, error) {
	ps := s.client.Subscribe(ctx, signalChannel(orderID))
	// wait for the confirmation so no publish is missed after Subscribe returns
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe order %d: %w", orderID, err)
	}

	sub := &subscription{ps: ps, ch: make(chan struct{}, 1), done: make(chan struct{})}
	go sub.forward()
	return sub, nil
}

type subscription struct {
	ps   *redis.PubSub
	ch   chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *subscription) C() <-chan struct{} { return s.ch }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *subscription) forward() {
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.ch <- struct{}{}:
			default:
			}
		}
	}
}
