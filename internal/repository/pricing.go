package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/domain"
)

// PricingRepo reads price policies and weather samples.
type PricingRepo struct{ db *pgxpool.Pool }

// NewPricingRepo creates a new PricingRepo.
func NewPricingRepo(db *pgxpool.Pool) *PricingRepo { return &PricingRepo{db: db} }

// PolicyFor returns the policy for the mode whose bracket contains km, or nil.
// Overlapping brackets resolve to the lowest id.
func (r *PricingRepo) PolicyFor(ctx context.Context, mode domain.CourierMode, km float64) (*domain.PricePolicy, error) {
	var (
		p       domain.PricePolicy
		rawMode string
	)
	err := r.db.QueryRow(ctx, `
        SELECT id, mode, min_distance, max_distance, base_price, price_per_km
        FROM price_policies
        WHERE mode = $1 AND min_distance <= $2 AND max_distance >= $2
        ORDER BY id
        LIMIT 1
    `, string(mode), km).Scan(&p.ID, &rawMode, &p.MinDistance, &p.MaxDistance, &p.BasePrice, &p.PricePerKm)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("price policy for %s %.3f km: %w", mode, km, err)
	}
	p.Mode = domain.CourierMode(rawMode)
	return &p, nil
}

// CreatePolicy - inserts a price policy.
func (r *PricingRepo) CreatePolicy(ctx context.Context, p *domain.PricePolicy) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO price_policies (mode, min_distance, max_distance, base_price, price_per_km)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `, string(p.Mode), p.MinDistance, p.MaxDistance, p.BasePrice, p.PricePerKm).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("create price policy: %w", err)
	}
	return nil
}

// LatestWeather returns the newest weather sample, or nil.
func (r *PricingRepo) LatestWeather(ctx context.Context) (*domain.WeatherSample, error) {
	var w domain.WeatherSample
	err := r.db.QueryRow(ctx, `
        SELECT city, condition, temperature, wind_speed, humidity, observed_at
        FROM weather_samples
        ORDER BY observed_at DESC, id DESC
        LIMIT 1
    `).Scan(&w.City, &w.Condition, &w.Temperature, &w.WindSpeed, &w.Humidity, &w.ObservedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest weather: %w", err)
	}
	return &w, nil
}

// SaveWeather - stores a weather sample.
func (r *PricingRepo) SaveWeather(ctx context.Context, w domain.WeatherSample) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO weather_samples (city, condition, temperature, wind_speed, humidity, observed_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, w.City, w.Condition, w.Temperature, w.WindSpeed, w.Humidity, w.ObservedAt)
	if err != nil {
		return fmt.Errorf("save weather: %w", err)
	}
	return nil
}
