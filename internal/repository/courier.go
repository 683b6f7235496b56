package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const courierColumns = `id, user_id, mode,
	EXTRACT(EPOCH FROM work_start)::bigint, EXTRACT(EPOCH FROM work_end)::bigint,
	work_active, is_busy, balance`

// CourierRepo represents courier repository.
type CourierRepo struct{ db *pgxpool.Pool }

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo { return &CourierRepo{db: db} }

func scanCourier(row pgx.Row) (*domain.Courier, error) {
	var (
		c          domain.Courier
		mode       string
		start, end *int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &mode, &start, &end, &c.WorkActive, &c.IsBusy, &c.Balance); err != nil {
		return nil, err
	}
	c.Mode = domain.CourierMode(mode)
	c.Window = windowFromSeconds(start, end)
	return &c, nil
}

func windowFromSeconds(start, end *int64) *domain.WorkWindow {
	if start == nil || end == nil {
		return nil
	}
	return &domain.WorkWindow{
		Start: time.Duration(*start) * time.Second,
		End:   time.Duration(*end) * time.Second,
	}
}

func windowToSQL(w *domain.WorkWindow) (start, end *string) {
	if w == nil {
		return nil, nil
	}
	s, e := clockString(w.Start), clockString(w.End)
	return &s, &e
}

func clockString(d time.Duration) string {
	d = d % (24 * time.Hour)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// Get - returns courier by its ID.
func (r *CourierRepo) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	c, err := scanCourier(r.db.QueryRow(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return c, nil
}

// ListByIDs returns the couriers with the given ids. Missing ids are skipped.
func (r *CourierRepo) ListByIDs(ctx context.Context, ids []int64) ([]domain.Courier, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id = ANY($1::bigint[]) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list couriers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Courier, 0, len(ids))
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create - creates a new courier profile.
func (r *CourierRepo) Create(ctx context.Context, c *domain.Courier) (int64, error) {
	start, end := windowToSQL(c.Window)
	var id int64
	err := r.db.QueryRow(ctx, `
        INSERT INTO couriers (user_id, mode, work_start, work_end, work_active, is_busy, balance)
        VALUES ($1, $2, $3::time, $4::time, $5, $6, $7)
        RETURNING id
    `, c.UserID, string(c.Mode), start, end, c.WorkActive, c.IsBusy, c.Balance).Scan(&id)
	if err != nil {
		if IsDuplicate(err) {
			return 0, fmt.Errorf("courier for user %d: %w", c.UserID, apperr.ErrPreconditionFailed)
		}
		return 0, fmt.Errorf("create courier: %w", err)
	}
	return id, nil
}

// SetWorkActive toggles the on-duty flag.
func (r *CourierRepo) SetWorkActive(ctx context.Context, id int64, active bool) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers SET work_active = $2, updated_at = now()
        WHERE id = $1
    `, id, active)
	if err != nil {
		return false, fmt.Errorf("set courier %d work_active: %w", id, err)
	}
	return ct.RowsAffected() > 0, nil
}
