package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/ports/dispatchtx"
)

const orderColumns = `id, customer_id, shop_id, courier_id, items, status, direction,
	created_at, assigned_at, picked_up_at, delivered_at, canceled_at,
	canceled_by, cancel_reason, distance_km, duration_min, price, weather,
	customer_rating, courier_rating`

// OrderRepo represents order repository.
type OrderRepo struct {
	db *pgxpool.Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{db: db}
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o          domain.Order
		status     string
		direction  *string
		canceledBy *string
		custRating *int16
		courRating *int16
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ShopID, &o.CourierID, &o.Items, &status, &direction,
		&o.CreatedAt, &o.AssignedAt, &o.PickedUpAt, &o.DeliveredAt, &o.CanceledAt,
		&canceledBy, &o.CancelReason, &o.DistanceKm, &o.DurationMin, &o.Price, &o.Weather,
		&custRating, &courRating,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if direction != nil {
		d := domain.Direction(*direction)
		o.Direction = &d
	}
	if canceledBy != nil {
		r := domain.ActorRole(*canceledBy)
		o.CanceledBy = &r
	}
	o.CustomerRating = ratingPtr(custRating)
	o.CourierRating = ratingPtr(courRating)
	return &o, nil
}

func ratingPtr(v *int16) *int {
	if v == nil {
		return nil
	}
	r := int(*v)
	return &r
}

// Get - returns order by its ID.
func (r *OrderRepo) Get(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// Create - inserts a pending order and fills its ID and CreatedAt.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO orders (customer_id, shop_id, items, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `, o.CustomerID, o.ShopID, o.Items, string(domain.OrderPending)).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		if IsForeignKey(err) {
			return fmt.Errorf("shop %d: %w", o.ShopID, apperr.ErrNotFound)
		}
		return fmt.Errorf("create order: %w", err)
	}
	o.Status = domain.OrderPending
	return nil
}

// SetStatus moves the order from one status to another if it is still in from.
func (r *OrderRepo) SetStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE orders SET status = $3
        WHERE id = $1 AND status = $2
    `, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("set order %d status %s->%s: %w", id, from, to, err)
	}
	return ct.RowsAffected() > 0, nil
}

// ActiveByCourier returns the order currently assigned to the courier, or nil.
func (r *OrderRepo) ActiveByCourier(ctx context.Context, courierID int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `
        SELECT `+orderColumns+`
        FROM orders
        WHERE courier_id = $1 AND status = $2
        ORDER BY assigned_at DESC
        LIMIT 1
    `, courierID, string(domain.OrderAssigned)))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("active order of courier %d: %w", courierID, err)
	}
	return o, nil
}

// UpdateEstimate stores a recomputed route while the order is still assigned to the courier.
func (r *OrderRepo) UpdateEstimate(ctx context.Context, orderID, courierID int64, e domain.Estimate) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE orders SET distance_km = $3, duration_min = $4
        WHERE id = $1 AND courier_id = $2 AND status = $5
    `, orderID, courierID, e.DistanceKm, e.DurationMin, string(domain.OrderAssigned))
	if err != nil {
		return false, fmt.Errorf("update order %d estimate: %w", orderID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// WithTx opens a transaction and executes fn within it.
func (r *OrderRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&TxRepo{tx: tx})
	})
}

// TxRepo represents transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

// LockOrder - selects the order row FOR UPDATE.
func (r *TxRepo) LockOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	return o, nil
}

// LockCourier - selects the courier row FOR UPDATE.
func (r *TxRepo) LockCourier(ctx context.Context, id int64) (*domain.Courier, error) {
	c, err := scanCourier(r.tx.QueryRow(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock courier %d: %w", id, err)
	}
	return c, nil
}

// AssignOrder - assigns a free order still waiting for a courier.
func (r *TxRepo) AssignOrder(ctx context.Context, p dispatchtx.AssignParams) (bool, error) {
	var km, minutes *float64
	if p.Estimate != nil {
		km, minutes = &p.Estimate.DistanceKm, &p.Estimate.DurationMin
	}
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET status       = $3,
            courier_id   = $2,
            direction    = $4,
            assigned_at  = $5,
            distance_km  = $6,
            duration_min = $7,
            price        = $8,
            weather      = $9
        WHERE id = $1
          AND courier_id IS NULL
          AND status IN ($10, $11)
    `, p.OrderID, p.CourierID, string(domain.OrderAssigned), string(domain.DirectionEnRouteToStore),
		p.AssignedAt, km, minutes, p.Price, p.Weather,
		string(domain.OrderSearching), string(domain.OrderPending))
	if err != nil {
		return false, fmt.Errorf("assign order %d to courier %d: %w", p.OrderID, p.CourierID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// SetCourierBusy - flips is_busy only if it currently holds the opposite value.
func (r *TxRepo) SetCourierBusy(ctx context.Context, courierID int64, busy bool) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE couriers
        SET is_busy = $2, updated_at = now()
        WHERE id = $1 AND is_busy = $3
    `, courierID, busy, !busy)
	if err != nil {
		return false, fmt.Errorf("set courier %d busy=%t: %w", courierID, busy, err)
	}
	return ct.RowsAffected() > 0, nil
}

// CancelOrder - cancels the order if it is still in the observed status.
// The courier reference is dropped so the row keeps courier iff assigned/completed.
func (r *TxRepo) CancelOrder(ctx context.Context, p dispatchtx.CancelParams) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET status        = $3,
            courier_id    = NULL,
            canceled_at   = $4,
            canceled_by   = $5,
            cancel_reason = $6
        WHERE id = $1 AND status = $2
    `, p.OrderID, string(p.From), string(domain.OrderCanceled), p.At, string(p.By), p.Reason)
	if err != nil {
		return false, fmt.Errorf("cancel order %d: %w", p.OrderID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// AdvanceDirection - moves the direction forward for the owning courier.
func (r *TxRepo) AdvanceDirection(ctx context.Context, p dispatchtx.DirectionParams) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET direction    = $4,
            picked_up_at = COALESCE($5, picked_up_at)
        WHERE id = $1
          AND courier_id = $2
          AND status = $6
          AND direction IS NOT DISTINCT FROM NULLIF($3, '')
    `, p.OrderID, p.CourierID, string(p.From), string(p.To), p.PickedUpAt, string(domain.OrderAssigned))
	if err != nil {
		return false, fmt.Errorf("advance order %d direction to %s: %w", p.OrderID, p.To, err)
	}
	return ct.RowsAffected() > 0, nil
}

// CompleteOrder - completes an assigned order that reached the customer.
func (r *TxRepo) CompleteOrder(ctx context.Context, p dispatchtx.CompleteParams) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET status          = $2,
            delivered_at    = $3,
            customer_rating = $4
        WHERE id = $1 AND status = $5 AND direction = $6
    `, p.OrderID, string(domain.OrderCompleted), p.DeliveredAt, p.Rating,
		string(domain.OrderAssigned), string(domain.DirectionArrivedToCustomer))
	if err != nil {
		return false, fmt.Errorf("complete order %d: %w", p.OrderID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// HandOver - marks a completed order as handed over by its courier.
func (r *TxRepo) HandOver(ctx context.Context, p dispatchtx.HandOverParams) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET direction      = $3,
            courier_rating = $4
        WHERE id = $1 AND courier_id = $2 AND status = $5 AND direction = $6
    `, p.OrderID, p.CourierID, string(domain.DirectionHandedOver), p.Rating,
		string(domain.OrderCompleted), string(domain.DirectionArrivedToCustomer))
	if err != nil {
		return false, fmt.Errorf("hand over order %d: %w", p.OrderID, err)
	}
	return ct.RowsAffected() > 0, nil
}
