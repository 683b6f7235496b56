package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/domain"
)

// ShopRepo reads shops. Shops are managed elsewhere.
type ShopRepo struct{ db *pgxpool.Pool }

// NewShopRepo creates a new ShopRepo.
func NewShopRepo(db *pgxpool.Pool) *ShopRepo { return &ShopRepo{db: db} }

// Get - returns shop by its ID.
func (r *ShopRepo) Get(ctx context.Context, id int64) (*domain.Shop, error) {
	var s domain.Shop
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, title, lat, lon FROM shops WHERE id = $1`, id,
	).Scan(&s.ID, &s.OwnerID, &s.Title, &s.Point.Lat, &s.Point.Lon)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shop %d: %w", id, err)
	}
	return &s, nil
}

// Create - inserts a shop. Used by seeding and tests.
func (r *ShopRepo) Create(ctx context.Context, s *domain.Shop) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO shops (owner_id, title, lat, lon) VALUES ($1, $2, $3, $4) RETURNING id`,
		s.OwnerID, s.Title, s.Point.Lat, s.Point.Lon,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("create shop: %w", err)
	}
	return nil
}

// CustomerLocationRepo reads customers' delivery points.
type CustomerLocationRepo struct{ db *pgxpool.Pool }

// NewCustomerLocationRepo creates a new CustomerLocationRepo.
func NewCustomerLocationRepo(db *pgxpool.Pool) *CustomerLocationRepo {
	return &CustomerLocationRepo{db: db}
}

// Active returns the latest active delivery point of the customer, or nil.
func (r *CustomerLocationRepo) Active(ctx context.Context, customerID int64) (*domain.Point, error) {
	var p domain.Point
	err := r.db.QueryRow(ctx, `
        SELECT lat, lon FROM customer_locations
        WHERE customer_id = $1 AND is_active
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `, customerID).Scan(&p.Lat, &p.Lon)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("customer %d location: %w", customerID, err)
	}
	return &p, nil
}

// Add - stores an active delivery point for the customer.
func (r *CustomerLocationRepo) Add(ctx context.Context, customerID int64, p domain.Point) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO customer_locations (customer_id, lat, lon) VALUES ($1, $2, $3)`,
		customerID, p.Lat, p.Lon)
	if err != nil {
		return fmt.Errorf("add customer %d location: %w", customerID, err)
	}
	return nil
}
