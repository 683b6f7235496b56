package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/repository"
	testlog "service-dispatch/internal/testutil"
)

const kmPerDegreeLat = 111.19492664

var shop = domain.Point{Lat: 41.0, Lon: 69.0}

func north(km float64) domain.Point {
	return domain.Point{Lat: shop.Lat + km/kmPerDegreeLat, Lon: shop.Lon}
}

type liveStub struct {
	nearbyFn func(ctx context.Context, center domain.Point, radiusKm float64) ([]domain.LiveLocation, error)
	getFn    func(ctx context.Context, courierID int64) (*domain.LiveLocation, error)
}

func (s *liveStub) Get(ctx context.Context, courierID int64) (*domain.LiveLocation, error) {
	if s.getFn == nil {
		return nil, nil
	}
	return s.getFn(ctx, courierID)
}

func (s *liveStub) Nearby(ctx context.Context, center domain.Point, radiusKm float64) ([]domain.LiveLocation, error) {
	if s.nearbyFn == nil {
		return nil, nil
	}
	return s.nearbyFn(ctx, center, radiusKm)
}

type courierStub struct {
	byID map[int64]domain.Courier
	err  error
}

func (s *courierStub) ListByIDs(_ context.Context, ids []int64) ([]domain.Courier, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Courier
	for _, id := range ids {
		if c, ok := s.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type locationStub struct {
	nearestFn func(ctx context.Context, q repository.NearestQuery) ([]domain.Candidate, error)
}

func (s *locationStub) Nearest(ctx context.Context, q repository.NearestQuery) ([]domain.Candidate, error) {
	if s.nearestFn == nil {
		return nil, nil
	}
	return s.nearestFn(ctx, q)
}

func idle(id int64) domain.Courier {
	return domain.Courier{ID: id, UserID: id * 100, Mode: domain.ModeFoot, WorkActive: true}
}

func newTestService(live liveIndex, couriers courierRepository, locations locationRepository, now time.Time) *Service {
	s := NewService(live, couriers, locations, Config{}, nil)
	s.now = func() time.Time { return now }
	return s
}

func ids(cs []domain.Candidate) []int64 {
	out := make([]int64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.CourierID)
	}
	return out
}

func TestService_Select_OneThreeSixKm(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := &liveStub{nearbyFn: func(_ context.Context, center domain.Point, radiusKm float64) ([]domain.LiveLocation, error) {
		require.Equal(t, shop, center)
		require.Equal(t, 5.0, radiusKm)
		// the geo index may be looser than the radius
		return []domain.LiveLocation{
			{CourierID: 3, Lat: north(6).Lat, Lon: shop.Lon, WorkActive: true, Timestamp: now},
			{CourierID: 2, Lat: north(3).Lat, Lon: shop.Lon, WorkActive: true, Timestamp: now},
			{CourierID: 1, Lat: north(1).Lat, Lon: shop.Lon, WorkActive: true, Timestamp: now},
		}, nil
	}}
	couriers := &courierStub{byID: map[int64]domain.Courier{1: idle(1), 2: idle(2), 3: idle(3)}}
	locations := &locationStub{nearestFn: func(_ context.Context, q repository.NearestQuery) ([]domain.Candidate, error) {
		require.Equal(t, 8, q.Limit)
		require.ElementsMatch(t, []int64{1, 2, 3}, q.Exclude)
		require.Equal(t, now, q.At)
		return nil, nil
	}}

	got, err := newTestService(live, couriers, locations, now).Select(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids(got))
	require.InDelta(t, 1.0, got[0].DistanceKm, 1e-6)
	require.InDelta(t, 3.0, got[1].DistanceKm, 1e-6)
	require.Equal(t, int64(100), got[0].UserID)
	require.Equal(t, domain.SourceLive, got[0].Source)
}

func TestService_Select_FiltersIneligibleLiveCouriers(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := north(0.5)
	rec := func(id int64, ts time.Time) domain.LiveLocation {
		return domain.LiveLocation{CourierID: id, Lat: p.Lat, Lon: p.Lon, WorkActive: true, Timestamp: ts}
	}
	live := &liveStub{nearbyFn: func(context.Context, domain.Point, float64) ([]domain.LiveLocation, error) {
		return []domain.LiveLocation{
			rec(1, now.Add(-time.Minute)),
			rec(2, now),
			rec(3, now),
			rec(4, now),
			rec(5, now.Add(-11*time.Minute)),
			rec(6, time.Time{}),
		}, nil
	}}

	busy := idle(2)
	busy.IsBusy = true
	inactive := idle(3)
	inactive.WorkActive = false
	offShift := idle(4)
	offShift.Window = &domain.WorkWindow{Start: 18 * time.Hour, End: 2 * time.Hour}

	couriers := &courierStub{byID: map[int64]domain.Courier{
		1: idle(1), 2: busy, 3: inactive, 4: offShift, 5: idle(5), 6: idle(6),
	}}
	var excluded []int64
	locations := &locationStub{nearestFn: func(_ context.Context, q repository.NearestQuery) ([]domain.Candidate, error) {
		excluded = q.Exclude
		return nil, nil
	}}

	got, err := newTestService(live, couriers, locations, now).Select(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(got))
	// stale records do not shadow durable rows
	require.ElementsMatch(t, []int64{1, 2, 3, 4}, excluded)
}

func TestService_Select_DurableFillsRemainingSlots(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := &liveStub{nearbyFn: func(context.Context, domain.Point, float64) ([]domain.LiveLocation, error) {
		p := north(2)
		return []domain.LiveLocation{{CourierID: 7, Lat: p.Lat, Lon: p.Lon, Timestamp: now}}, nil
	}}
	couriers := &courierStub{byID: map[int64]domain.Courier{7: idle(7)}}
	locations := &locationStub{nearestFn: func(_ context.Context, q repository.NearestQuery) ([]domain.Candidate, error) {
		require.Equal(t, 9, q.Limit)
		require.Equal(t, []int64{7}, q.Exclude)
		return []domain.Candidate{
			{CourierID: 8, DistanceKm: 0.5, Source: domain.SourceDurable},
			{CourierID: 9, DistanceKm: 4, Source: domain.SourceDurable},
		}, nil
	}}

	got, err := newTestService(live, couriers, locations, now).Select(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, []int64{8, 7, 9}, ids(got))
}

func TestService_Select_SkipsDurableRowOfCourierLiveElsewhere(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	far := north(9)
	live := &liveStub{getFn: func(_ context.Context, courierID int64) (*domain.LiveLocation, error) {
		switch courierID {
		case 8:
			return &domain.LiveLocation{CourierID: 8, Lat: far.Lat, Lon: far.Lon, Timestamp: now.Add(-time.Minute)}, nil
		case 9:
			return &domain.LiveLocation{CourierID: 9, Lat: far.Lat, Lon: far.Lon, Timestamp: now.Add(-time.Hour)}, nil
		}
		return nil, nil
	}}

	var queries []repository.NearestQuery
	locations := &locationStub{nearestFn: func(_ context.Context, q repository.NearestQuery) ([]domain.Candidate, error) {
		q.Exclude = append([]int64(nil), q.Exclude...)
		queries = append(queries, q)
		switch len(queries) {
		case 1:
			return []domain.Candidate{
				{CourierID: 8, DistanceKm: 0.5, Source: domain.SourceDurable},
				{CourierID: 9, DistanceKm: 1, Source: domain.SourceDurable},
			}, nil
		default:
			return []domain.Candidate{{CourierID: 10, DistanceKm: 2, Source: domain.SourceDurable}}, nil
		}
	}}

	got, err := newTestService(live, &courierStub{}, locations, now).Select(context.Background(), shop)
	require.NoError(t, err)
	// 8 moved away recently; 9's live record is stale so its row still counts
	require.Equal(t, []int64{9, 10}, ids(got))

	require.Len(t, queries, 2)
	require.Equal(t, 10, queries[0].Limit)
	require.Equal(t, 9, queries[1].Limit)
	require.ElementsMatch(t, []int64{8, 9}, queries[1].Exclude)
}

func TestService_Select_CapsAtMaxCandidates(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	byID := map[int64]domain.Courier{}
	var locs []domain.LiveLocation
	for i := int64(1); i <= 12; i++ {
		p := north(float64(i) * 0.1)
		locs = append(locs, domain.LiveLocation{CourierID: i, Lat: p.Lat, Lon: p.Lon, Timestamp: now})
		byID[i] = idle(i)
	}
	live := &liveStub{nearbyFn: func(context.Context, domain.Point, float64) ([]domain.LiveLocation, error) {
		return locs, nil
	}}
	locations := &locationStub{nearestFn: func(context.Context, repository.NearestQuery) ([]domain.Candidate, error) {
		t.Fatalf("durable store must not be queried when live fills every slot")
		return nil, nil
	}}

	got, err := newTestService(live, &courierStub{byID: byID}, locations, now).Select(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(got))
}

func TestService_Select_LiveFailureFallsBackToDurable(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := testlog.New()
	live := &liveStub{nearbyFn: func(context.Context, domain.Point, float64) ([]domain.LiveLocation, error) {
		return nil, errors.New("redis down")
	}}
	locations := &locationStub{nearestFn: func(_ context.Context, q repository.NearestQuery) ([]domain.Candidate, error) {
		require.Equal(t, 10, q.Limit)
		require.Empty(t, q.Exclude)
		return []domain.Candidate{{CourierID: 4, DistanceKm: 1}}, nil
	}}

	s := NewService(live, &courierStub{}, locations, Config{}, rec.Logger())
	s.now = func() time.Time { return now }

	got, err := s.Select(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, []int64{4}, ids(got))
	require.True(t, rec.Has("live index unavailable, using last-known locations"))
}

func TestService_Select_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	got, err := newTestService(&liveStub{}, &courierStub{}, &locationStub{}, time.Now()).Select(context.Background(), shop)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestService_Select_DurableError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("pg down")
	locations := &locationStub{nearestFn: func(context.Context, repository.NearestQuery) ([]domain.Candidate, error) {
		return nil, wantErr
	}}

	_, err := newTestService(&liveStub{}, &courierStub{}, locations, time.Now()).Select(context.Background(), shop)
	require.ErrorIs(t, err, wantErr)
}
