// Package memstore is an in-process claim store for tests and single-node runs.
package memstore

import (
	"context"
	"sync"

	"service-dispatch/internal/ports/claim"
)

type rejection struct{ orderID, courierID int64 }

// ClaimStore implements claim.Store and claim.Signals in memory.
type ClaimStore struct {
	mu       sync.Mutex
	claims   map[int64]int64
	rejected map[rejection]struct{}
	subs     map[int64]map[*subscription]struct{}
}

var (
	_ claim.Store   = (*ClaimStore)(nil)
	_ claim.Signals = (*ClaimStore)(nil)
)

// NewClaimStore creates an empty ClaimStore.
func NewClaimStore() *ClaimStore {
	return &ClaimStore{
		claims:   make(map[int64]int64),
		rejected: make(map[rejection]struct{}),
		subs:     make(map[int64]map[*subscription]struct{}),
	}
}

// TryClaim records the holder if none exists.
func (s *ClaimStore) TryClaim(_ context.Context, orderID, courierID int64) (bool, error) {
	s.mu.Lock()
	if _, ok := s.claims[orderID]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.claims[orderID] = courierID
	s.mu.Unlock()

	s.signal(orderID)
	return true, nil
}

// Release deletes the claim.
func (s *ClaimStore) Release(_ context.Context, orderID int64) error {
	s.mu.Lock()
	delete(s.claims, orderID)
	s.mu.Unlock()
	return nil
}

// Exists reports whether the order is claimed.
func (s *ClaimStore) Exists(_ context.Context, orderID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claims[orderID]
	return ok, nil
}

// Holder returns the claiming courier or 0.
func (s *ClaimStore) Holder(_ context.Context, orderID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims[orderID], nil
}

// Reject records a decline and wakes waiters.
func (s *ClaimStore) Reject(_ context.Context, orderID, courierID int64) error {
	s.mu.Lock()
	s.rejected[rejection{orderID, courierID}] = struct{}{}
	s.mu.Unlock()

	s.signal(orderID)
	return nil
}

// Rejected reports whether the courier declined the order.
func (s *ClaimStore) Rejected(_ context.Context, orderID, courierID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rejected[rejection{orderID, courierID}]
	return ok, nil
}

// ClearRejections drops every marker of the order.
func (s *ClaimStore) ClearRejections(_ context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.rejected {
		if k.orderID == orderID {
			delete(s.rejected, k)
		}
	}
	return nil
}

// Subscribe registers a waiter for the order.
func (s *ClaimStore) Subscribe(_ context.Context, orderID int64) (claim.Subscription, error) {
	sub := &subscription{store: s, orderID: orderID, ch: make(chan struct{}, 1)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[orderID] == nil {
		s.subs[orderID] = make(map[*subscription]struct{})
	}
	s.subs[orderID][sub] = struct{}{}
	return sub, nil
}

func (s *ClaimStore) signal(orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[orderID] {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

func (s *ClaimStore) unsubscribe(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[sub.orderID], sub)
	if len(s.subs[sub.orderID]) == 0 {
		delete(s.subs, sub.orderID)
	}
}

type subscription struct {
	store   *ClaimStore
	orderID int64
	ch      chan struct{}
	once    sync.Once
}

func (s *subscription) C() <-chan struct{} { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() { s.store.unsubscribe(s) })
	return nil
}
