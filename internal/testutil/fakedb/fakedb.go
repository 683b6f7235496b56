// Package fakedb is an in-memory stand-in for the PostgreSQL repositories.
// Transactions are serialized and applied atomically, and conditional writes
// follow the same WHERE clauses as the SQL implementation.
package fakedb

import (
	"context"
	"errors"
	"sort"
	"sync"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

// ErrInjected is returned by operations armed with FailNext.
var ErrInjected = errors.New("fakedb: injected failure")

type state struct {
	orders    map[int64]domain.Order
	couriers  map[int64]domain.Courier
	shops     map[int64]domain.Shop
	customers map[int64]domain.Point
	lastKnown map[int64]domain.LastKnownLocation
}

func (s state) clone() state {
	out := state{
		orders:    make(map[int64]domain.Order, len(s.orders)),
		couriers:  make(map[int64]domain.Courier, len(s.couriers)),
		shops:     s.shops,
		customers: s.customers,
		lastKnown: s.lastKnown,
	}
	for k, v := range s.orders {
		out.orders[k] = v
	}
	for k, v := range s.couriers {
		out.couriers[k] = v
	}
	return out
}

// DB holds orders, couriers, shops and locations.
type DB struct {
	mu       sync.Mutex
	st       state
	nextID   int64
	failNext map[string]error
	txCount  int
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		st: state{
			orders:    map[int64]domain.Order{},
			couriers:  map[int64]domain.Courier{},
			shops:     map[int64]domain.Shop{},
			customers: map[int64]domain.Point{},
			lastKnown: map[int64]domain.LastKnownLocation{},
		},
		failNext: map[string]error{},
	}
}

// FailNext makes the next call of op return err.
func (db *DB) FailNext(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failNext[op] = err
}

func (db *DB) injected(op string) error {
	if err, ok := db.failNext[op]; ok {
		delete(db.failNext, op)
		return err
	}
	return nil
}

// PutCourier stores c as is.
func (db *DB) PutCourier(c domain.Courier) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.st.couriers[c.ID] = c
}

// PutShop stores s as is.
func (db *DB) PutShop(s domain.Shop) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.st.shops[s.ID] = s
}

// PutCustomerLocation sets the customer's active point.
func (db *DB) PutCustomerLocation(customerID int64, p domain.Point) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.st.customers[customerID] = p
}

// PutOrder stores o, assigning an id when it has none.
func (db *DB) PutOrder(o domain.Order) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	if o.ID == 0 {
		db.nextID++
		o.ID = db.nextID
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	db.st.orders[o.ID] = o
	return o.ID
}

// Order returns a copy of the order.
func (db *DB) Order(id int64) domain.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.orders[id]
}

// Courier returns a copy of the courier.
func (db *DB) Courier(id int64) domain.Courier {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.couriers[id]
}

// LastKnown returns the durable location of the courier, if any.
func (db *DB) LastKnown(id int64) (domain.LastKnownLocation, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.st.lastKnown[id]
	return l, ok
}

// TxCount reports how many transactions committed.
func (db *DB) TxCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.txCount
}

// Orders returns the order repository view.
func (db *DB) Orders() *Orders { return &Orders{db: db} }

// Couriers returns the courier repository view.
func (db *DB) Couriers() *Couriers { return &Couriers{db: db} }

// Shops returns the shop repository view.
func (db *DB) Shops() *Shops { return &Shops{db: db} }

// Customers returns the customer location view.
func (db *DB) Customers() *Customers { return &Customers{db: db} }

// Locations returns the last-known location view.
func (db *DB) Locations() *Locations { return &Locations{db: db} }

// Orders mirrors repository.OrderRepo.
type Orders struct{ db *DB }

// Get returns the order or nil.
func (r *Orders) Get(_ context.Context, id int64) (*domain.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("orders.Get"); err != nil {
		return nil, err
	}
	o, ok := r.db.st.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

// SetStatus moves the order from one status to another.
func (r *Orders) SetStatus(_ context.Context, id int64, from, to domain.OrderStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("orders.SetStatus"); err != nil {
		return false, err
	}
	o, ok := r.db.st.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	r.db.st.orders[id] = o
	return true, nil
}

// ActiveByCourier returns the assigned order of the courier or nil.
func (r *Orders) ActiveByCourier(_ context.Context, courierID int64) (*domain.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("orders.ActiveByCourier"); err != nil {
		return nil, err
	}
	var found []domain.Order
	for _, o := range r.db.st.orders {
		if o.Status == domain.OrderAssigned && o.AssignedTo(courierID) {
			found = append(found, o)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID > found[j].ID })
	return &found[0], nil
}

// UpdateEstimate stores a recomputed route while the order is assigned to the courier.
func (r *Orders) UpdateEstimate(_ context.Context, orderID, courierID int64, e domain.Estimate) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.st.orders[orderID]
	if !ok || o.Status != domain.OrderAssigned || !o.AssignedTo(courierID) {
		return false, nil
	}
	km, mins := e.DistanceKm, e.DurationMin
	o.DistanceKm, o.DurationMin = &km, &mins
	r.db.st.orders[orderID] = o
	return true, nil
}

// WithTx runs fn against a private copy and commits it when fn succeeds.
func (r *Orders) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("tx.Begin"); err != nil {
		return err
	}
	tx := &Tx{db: r.db, st: r.db.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.st = tx.st
	r.db.txCount++
	return nil
}

// Tx mirrors repository.TxRepo.
type Tx struct {
	db *DB
	st state
}

var _ dispatchtx.Repository = (*Tx)(nil)

// LockOrder returns the order or nil.
func (t *Tx) LockOrder(_ context.Context, id int64) (*domain.Order, error) {
	if err := t.db.injected("tx.LockOrder"); err != nil {
		return nil, err
	}
	o, ok := t.st.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

// LockCourier returns the courier or nil.
func (t *Tx) LockCourier(_ context.Context, id int64) (*domain.Courier, error) {
	if err := t.db.injected("tx.LockCourier"); err != nil {
		return nil, err
	}
	c, ok := t.st.couriers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// AssignOrder assigns a free order that is pending or searching.
func (t *Tx) AssignOrder(_ context.Context, p dispatchtx.AssignParams) (bool, error) {
	if err := t.db.injected("tx.AssignOrder"); err != nil {
		return false, err
	}
	o, ok := t.st.orders[p.OrderID]
	if !ok || o.CourierID != nil || (o.Status != domain.OrderSearching && o.Status != domain.OrderPending) {
		return false, nil
	}
	cid, at, dir := p.CourierID, p.AssignedAt, domain.DirectionEnRouteToStore
	o.Status = domain.OrderAssigned
	o.CourierID = &cid
	o.Direction = &dir
	o.AssignedAt = &at
	o.DistanceKm, o.DurationMin = nil, nil
	if p.Estimate != nil {
		km, mins := p.Estimate.DistanceKm, p.Estimate.DurationMin
		o.DistanceKm, o.DurationMin = &km, &mins
	}
	o.Price = p.Price
	o.Weather = p.Weather
	t.st.orders[p.OrderID] = o
	return true, nil
}

// SetCourierBusy flips is_busy only from the opposite value.
func (t *Tx) SetCourierBusy(_ context.Context, courierID int64, busy bool) (bool, error) {
	if err := t.db.injected("tx.SetCourierBusy"); err != nil {
		return false, err
	}
	c, ok := t.st.couriers[courierID]
	if !ok || c.IsBusy == busy {
		return false, nil
	}
	c.IsBusy = busy
	t.st.couriers[courierID] = c
	return true, nil
}

// CancelOrder cancels the order if it is still in p.From.
func (t *Tx) CancelOrder(_ context.Context, p dispatchtx.CancelParams) (bool, error) {
	if err := t.db.injected("tx.CancelOrder"); err != nil {
		return false, err
	}
	o, ok := t.st.orders[p.OrderID]
	if !ok || o.Status != p.From {
		return false, nil
	}
	at, by, reason := p.At, p.By, p.Reason
	o.Status = domain.OrderCanceled
	o.CourierID = nil
	o.CanceledAt = &at
	o.CanceledBy = &by
	o.CancelReason = &reason
	t.st.orders[p.OrderID] = o
	return true, nil
}

// AdvanceDirection moves the direction forward for the owning courier.
func (t *Tx) AdvanceDirection(_ context.Context, p dispatchtx.DirectionParams) (bool, error) {
	if err := t.db.injected("tx.AdvanceDirection"); err != nil {
		return false, err
	}
	o, ok := t.st.orders[p.OrderID]
	if !ok || o.Status != domain.OrderAssigned || !o.AssignedTo(p.CourierID) || o.CurrentDirection() != p.From {
		return false, nil
	}
	to := p.To
	o.Direction = &to
	if p.PickedUpAt != nil {
		at := *p.PickedUpAt
		o.PickedUpAt = &at
	}
	t.st.orders[p.OrderID] = o
	return true, nil
}

// CompleteOrder completes an assigned order that reached the customer.
func (t *Tx) CompleteOrder(_ context.Context, p dispatchtx.CompleteParams) (bool, error) {
	if err := t.db.injected("tx.CompleteOrder"); err != nil {
		return false, err
	}
	o, ok := t.st.orders[p.OrderID]
	if !ok || o.Status != domain.OrderAssigned || o.CurrentDirection() != domain.DirectionArrivedToCustomer {
		return false, nil
	}
	at := p.DeliveredAt
	o.Status = domain.OrderCompleted
	o.DeliveredAt = &at
	o.CustomerRating = p.Rating
	t.st.orders[p.OrderID] = o
	return true, nil
}

// HandOver marks a completed order as handed over by its courier.
func (t *Tx) HandOver(_ context.Context, p dispatchtx.HandOverParams) (bool, error) {
	if err := t.db.injected("tx.HandOver"); err != nil {
		return false, err
	}
	o, ok := t.st.orders[p.OrderID]
	if !ok || o.Status != domain.OrderCompleted || !o.AssignedTo(p.CourierID) ||
		o.CurrentDirection() != domain.DirectionArrivedToCustomer {
		return false, nil
	}
	d := domain.DirectionHandedOver
	o.Direction = &d
	o.CourierRating = p.Rating
	t.st.orders[p.OrderID] = o
	return true, nil
}

// Couriers mirrors repository.CourierRepo.
type Couriers struct{ db *DB }

// Get returns the courier or nil.
func (r *Couriers) Get(_ context.Context, id int64) (*domain.Courier, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("couriers.Get"); err != nil {
		return nil, err
	}
	c, ok := r.db.st.couriers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListByIDs returns the known couriers among ids, ordered by id.
func (r *Couriers) ListByIDs(_ context.Context, ids []int64) ([]domain.Courier, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Courier
	for _, id := range ids {
		if c, ok := r.db.st.couriers[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Shops mirrors repository.ShopRepo.
type Shops struct{ db *DB }

// Get returns the shop or nil.
func (r *Shops) Get(_ context.Context, id int64) (*domain.Shop, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.st.shops[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Customers mirrors repository.CustomerLocationRepo.
type Customers struct{ db *DB }

// Active returns the customer's point or nil.
func (r *Customers) Active(_ context.Context, customerID int64) (*domain.Point, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.st.customers[customerID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Locations mirrors the last-known part of repository.LocationRepo.
type Locations struct{ db *DB }

// Get returns the last-known location or nil.
func (r *Locations) Get(_ context.Context, courierID int64) (*domain.LastKnownLocation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.st.lastKnown[courierID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// Upsert keeps the newest location per known courier.
func (r *Locations) Upsert(_ context.Context, locs []domain.LastKnownLocation) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("locations.Upsert"); err != nil {
		return 0, err
	}
	n := 0
	for _, l := range locs {
		if _, ok := r.db.st.couriers[l.CourierID]; !ok {
			continue
		}
		if prev, ok := r.db.st.lastKnown[l.CourierID]; ok && prev.UpdatedAt.After(l.UpdatedAt) {
			continue
		}
		r.db.st.lastKnown[l.CourierID] = l
		n++
	}
	return n, nil
}
