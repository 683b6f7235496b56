package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the durable layout used by the dispatch engine.
const Schema = `
CREATE TABLE IF NOT EXISTS couriers (
	id          BIGSERIAL PRIMARY KEY,
	user_id     BIGINT NOT NULL UNIQUE,
	mode        TEXT NOT NULL,
	work_start  TIME,
	work_end    TIME,
	work_active BOOLEAN NOT NULL DEFAULT false,
	is_busy     BOOLEAN NOT NULL DEFAULT false,
	balance     BIGINT NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shops (
	id       BIGSERIAL PRIMARY KEY,
	owner_id BIGINT NOT NULL,
	title    TEXT NOT NULL,
	lat      DOUBLE PRECISION NOT NULL,
	lon      DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS customer_locations (
	id          BIGSERIAL PRIMARY KEY,
	customer_id BIGINT NOT NULL,
	lat         DOUBLE PRECISION NOT NULL,
	lon         DOUBLE PRECISION NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT true,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id              BIGSERIAL PRIMARY KEY,
	customer_id     BIGINT NOT NULL,
	shop_id         BIGINT NOT NULL REFERENCES shops(id),
	courier_id      BIGINT REFERENCES couriers(id),
	items           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	direction       TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	assigned_at     TIMESTAMPTZ,
	picked_up_at    TIMESTAMPTZ,
	delivered_at    TIMESTAMPTZ,
	canceled_at     TIMESTAMPTZ,
	canceled_by     TEXT,
	cancel_reason   TEXT,
	distance_km     DOUBLE PRECISION,
	duration_min    DOUBLE PRECISION,
	price           BIGINT,
	weather         TEXT,
	customer_rating SMALLINT CHECK (customer_rating BETWEEN 1 AND 5),
	courier_rating  SMALLINT CHECK (courier_rating BETWEEN 1 AND 5),
	CHECK ((courier_id IS NOT NULL) = (status IN ('assigned', 'completed')))
);

CREATE INDEX IF NOT EXISTS orders_courier_status_idx ON orders (courier_id, status);

CREATE TABLE IF NOT EXISTS courier_locations (
	courier_id BIGINT PRIMARY KEY REFERENCES couriers(id) ON DELETE CASCADE,
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS price_policies (
	id           BIGSERIAL PRIMARY KEY,
	mode         TEXT NOT NULL,
	min_distance DOUBLE PRECISION NOT NULL,
	max_distance DOUBLE PRECISION NOT NULL,
	base_price   BIGINT NOT NULL,
	price_per_km BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS weather_samples (
	id          BIGSERIAL PRIMARY KEY,
	city        TEXT NOT NULL,
	condition   TEXT NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	wind_speed  DOUBLE PRECISION NOT NULL,
	humidity    DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL
);
`

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
