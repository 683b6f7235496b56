package assignment

import (
	"context"

	"service-dispatch/internal/domain"
)

type liveReader interface {
	Get(ctx context.Context, courierID int64) (*domain.LiveLocation, error)
}

type lastKnownReader interface {
	Get(ctx context.Context, courierID int64) (*domain.LastKnownLocation, error)
}

// Positions resolves a courier position from the live index, then the durable store.
type Positions struct {
	live    liveReader
	durable lastKnownReader
}

// NewPositions creates a PositionReader over both location stores.
func NewPositions(live liveReader, durable lastKnownReader) *Positions {
	return &Positions{live: live, durable: durable}
}

// Position implements PositionReader.
func (p *Positions) Position(ctx context.Context, courierID int64) (*domain.Point, error) {
	l, err := p.live.Get(ctx, courierID)
	if err != nil {
		return nil, err
	}
	if l != nil {
		pt := l.Point()
		return &pt, nil
	}
	lk, err := p.durable.Get(ctx, courierID)
	if err != nil || lk == nil {
		return nil, err
	}
	return &lk.Point, nil
}
