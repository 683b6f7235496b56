package selector

import (
	"context"
	"sort"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/repository"
)

// Config tunes candidate selection.
type Config struct {
	RadiusKm      float64
	MaxCandidates int
	// LiveRecency is how old a live position may be to count.
	LiveRecency time.Duration
}

// Service ranks eligible couriers around a shop.
type Service struct {
	live      liveIndex
	couriers  courierRepository
	locations locationRepository
	cfg       Config
	logger    logx.Logger
	now       func() time.Time
}

// NewService creates a new selector Service.
func NewService(live liveIndex, couriers courierRepository, locations locationRepository, cfg Config, logger logx.Logger) *Service {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 5
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	if cfg.LiveRecency <= 0 {
		cfg.LiveRecency = 10 * time.Minute
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		live:      live,
		couriers:  couriers,
		locations: locations,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Select returns up to MaxCandidates idle on-duty couriers within RadiusKm of at,
// nearest first. Live positions win over durable ones; an empty result is not an error.
func (s *Service) Select(ctx context.Context, at domain.Point) ([]domain.Candidate, error) {
	now := s.now()

	liveOK := true
	live, seen, err := s.fromLive(ctx, at, now)
	if err != nil {
		// the durable store still knows everyone, just less precisely
		s.logger.Warn("live index unavailable, using last-known locations", logx.Err(err))
		live, seen, liveOK = nil, nil, false
	}
	if len(live) >= s.cfg.MaxCandidates {
		return live[:s.cfg.MaxCandidates], nil
	}

	durable, err := s.fromDurable(ctx, at, now, s.cfg.MaxCandidates-len(live), seen, liveOK)
	if err != nil {
		return nil, err
	}

	out := append(live, durable...)
	sortCandidates(out)
	if len(out) > s.cfg.MaxCandidates {
		out = out[:s.cfg.MaxCandidates]
	}

	s.logger.Debug("candidates selected",
		logx.Int("live", len(live)),
		logx.Int("durable", len(durable)),
		logx.Int("total", len(out)),
	)
	return out, nil
}

// fromLive returns eligible live candidates and every courier id with a fresh live record.
func (s *Service) fromLive(ctx context.Context, at domain.Point, now time.Time) ([]domain.Candidate, []int64, error) {
	locs, err := s.live.Nearby(ctx, at, s.cfg.RadiusKm)
	if err != nil {
		return nil, nil, err
	}

	fresh := make(map[int64]domain.LiveLocation, len(locs))
	ids := make([]int64, 0, len(locs))
	for _, l := range locs {
		if l.Timestamp.IsZero() || now.Sub(l.Timestamp) > s.cfg.LiveRecency {
			continue
		}
		if _, dup := fresh[l.CourierID]; dup {
			continue
		}
		fresh[l.CourierID] = l
		ids = append(ids, l.CourierID)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	// the live record may lag behind the courier row, so the row decides
	couriers, err := s.couriers.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	out := make([]domain.Candidate, 0, len(couriers))
	for i := range couriers {
		c := &couriers[i]
		if c.IsBusy || !c.OnDuty(now) {
			continue
		}
		l := fresh[c.ID]
		km := domain.HaversineKm(at, l.Point())
		if km > s.cfg.RadiusKm {
			continue
		}
		out = append(out, domain.Candidate{
			CourierID:  c.ID,
			UserID:     c.UserID,
			Mode:       c.Mode,
			Point:      l.Point(),
			DistanceKm: km,
			Source:     domain.SourceLive,
		})
	}
	sortCandidates(out)
	return out, ids, nil
}

// maxDurableRounds bounds the re-queries made when durable rows turn out to be outdated.
const maxDurableRounds = 3

// fromDurable fills up to limit slots from last-known locations. A courier whose fresh
// live position lies outside the radius is skipped even if the durable row is inside it.
func (s *Service) fromDurable(ctx context.Context, at domain.Point, now time.Time, limit int, exclude []int64, checkLive bool) ([]domain.Candidate, error) {
	exclude = append([]int64(nil), exclude...)
	var out []domain.Candidate
	for round := 0; round < maxDurableRounds && len(out) < limit; round++ {
		rows, err := s.locations.Nearest(ctx, repository.NearestQuery{
			Center:   at,
			RadiusKm: s.cfg.RadiusKm,
			Limit:    limit - len(out),
			Exclude:  exclude,
			At:       now,
		})
		if err != nil {
			return nil, err
		}

		moved := 0
		for _, c := range rows {
			exclude = append(exclude, c.CourierID)
			if checkLive && s.movedAway(ctx, c.CourierID, now) {
				moved++
				continue
			}
			out = append(out, c)
		}
		if moved == 0 {
			break
		}
	}
	return out, nil
}

// movedAway reports whether the courier has a fresh live record. Callers only ask about
// couriers missing from the radius search, so that record is outside the radius.
func (s *Service) movedAway(ctx context.Context, courierID int64, now time.Time) bool {
	l, err := s.live.Get(ctx, courierID)
	if err != nil {
		s.logger.Warn("live lookup failed, keeping last-known location",
			logx.Int64("courier_id", courierID), logx.Err(err))
		return false
	}
	return l != nil && !l.Timestamp.IsZero() && now.Sub(l.Timestamp) <= s.cfg.LiveRecency
}

func sortCandidates(cs []domain.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].DistanceKm != cs[j].DistanceKm {
			return cs[i].DistanceKm < cs[j].DistanceKm
		}
		return cs[i].CourierID < cs[j].CourierID
	})
}
