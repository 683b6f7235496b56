package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/domain"
)

// LocationRepo stores last-known courier positions.
type LocationRepo struct{ db *pgxpool.Pool }

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *pgxpool.Pool) *LocationRepo { return &LocationRepo{db: db} }

// NearestQuery selects durable candidates around a point.
type NearestQuery struct {
	Center   domain.Point
	RadiusKm float64
	Limit    int
	Exclude  []int64
	// At is the moment used for the work window check.
	At time.Time
}

// Upsert writes the given positions, keeping the newest one per courier.
func (r *LocationRepo) Upsert(ctx context.Context, locs []domain.LastKnownLocation) (int, error) {
	if len(locs) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, l := range locs {
		batch.Queue(`
            INSERT INTO courier_locations (courier_id, lat, lon, updated_at)
            SELECT $1::bigint, $2::float8, $3::float8, $4::timestamptz
            WHERE EXISTS (SELECT 1 FROM couriers WHERE id = $1::bigint)
            ON CONFLICT (courier_id) DO UPDATE
            SET lat = EXCLUDED.lat, lon = EXCLUDED.lon, updated_at = EXCLUDED.updated_at
            WHERE courier_locations.updated_at <= EXCLUDED.updated_at
        `, l.CourierID, l.Point.Lat, l.Point.Lon, l.UpdatedAt)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for _, l := range locs {
		ct, err := br.Exec()
		if err != nil {
			return written, fmt.Errorf("upsert location of courier %d: %w", l.CourierID, err)
		}
		written += int(ct.RowsAffected())
	}
	return written, nil
}

// Get returns the last-known location of the courier, or nil.
func (r *LocationRepo) Get(ctx context.Context, courierID int64) (*domain.LastKnownLocation, error) {
	l := domain.LastKnownLocation{CourierID: courierID}
	err := r.db.QueryRow(ctx,
		`SELECT lat, lon, updated_at FROM courier_locations WHERE courier_id = $1`, courierID,
	).Scan(&l.Point.Lat, &l.Point.Lon, &l.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location of courier %d: %w", courierID, err)
	}
	return &l, nil
}

// Nearest returns idle on-duty couriers within the radius, nearest first.
// Distance is computed in SQL with the haversine formula.
func (r *LocationRepo) Nearest(ctx context.Context, q NearestQuery) ([]domain.Candidate, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	exclude := q.Exclude
	if exclude == nil {
		exclude = []int64{}
	}
	clock := q.At.Format("15:04:05")

	rows, err := r.db.Query(ctx, `
        SELECT c.id, c.user_id, c.mode, l.lat, l.lon, l.km
        FROM (
            SELECT courier_id, lat, lon,
                   2 * 6371 * asin(least(1, sqrt(
                       power(sin(radians(lat - $1) / 2), 2) +
                       cos(radians($1)) * cos(radians(lat)) * power(sin(radians(lon - $2) / 2), 2)
                   ))) AS km
            FROM courier_locations
        ) l
        JOIN couriers c ON c.id = l.courier_id
        WHERE c.work_active
          AND NOT c.is_busy
          AND l.km <= $3
          AND NOT (c.id = ANY($4::bigint[]))
          AND (
              c.work_start IS NULL OR c.work_end IS NULL
              OR (c.work_start <= c.work_end AND $6::time BETWEEN c.work_start AND c.work_end)
              OR (c.work_start > c.work_end AND ($6::time >= c.work_start OR $6::time <= c.work_end))
          )
        ORDER BY l.km, c.id
        LIMIT $5
    `, q.Center.Lat, q.Center.Lon, q.RadiusKm, exclude, q.Limit, clock)
	if err != nil {
		return nil, fmt.Errorf("nearest couriers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0, q.Limit)
	for rows.Next() {
		var (
			c    domain.Candidate
			mode string
		)
		if err := rows.Scan(&c.CourierID, &c.UserID, &mode, &c.Point.Lat, &c.Point.Lon, &c.DistanceKm); err != nil {
			return nil, err
		}
		c.Mode = domain.CourierMode(mode)
		c.Source = domain.SourceDurable
		out = append(out, c)
	}
	return out, rows.Err()
}
