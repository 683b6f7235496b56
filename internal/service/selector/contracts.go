package selector

import (
	"context"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/repository"
)

type liveIndex interface {
	Nearby(ctx context.Context, center domain.Point, radiusKm float64) ([]domain.LiveLocation, error)
	Get(ctx context.Context, courierID int64) (*domain.LiveLocation, error)
}

type courierRepository interface {
	ListByIDs(ctx context.Context, ids []int64) ([]domain.Courier, error)
}

type locationRepository interface {
	Nearest(ctx context.Context, q repository.NearestQuery) ([]domain.Candidate, error)
}
