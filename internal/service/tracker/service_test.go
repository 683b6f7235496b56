package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/service/estimate"
	"service-dispatch/internal/service/tracker"
	testlog "service-dispatch/internal/testutil"
	"service-dispatch/internal/testutil/fakedb"
	"service-dispatch/internal/testutil/sinktest"
)

const (
	courierID  = int64(4)
	customerID = int64(900)
)

type liveStub struct {
	mu        sync.Mutex
	locs      map[int64]domain.LiveLocation
	malformed int
	pruned    int
	allErr    error
}

func newLiveStub() *liveStub { return &liveStub{locs: map[int64]domain.LiveLocation{}} }

func (l *liveStub) Put(_ context.Context, loc domain.LiveLocation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locs[loc.CourierID] = loc
	return nil
}

func (l *liveStub) All(context.Context) ([]domain.LiveLocation, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allErr != nil {
		return nil, 0, l.allErr
	}
	out := make([]domain.LiveLocation, 0, len(l.locs))
	for _, v := range l.locs {
		out = append(out, v)
	}
	return out, l.malformed, nil
}

func (l *liveStub) Prune(context.Context) (int, error) { return l.pruned, nil }

func (l *liveStub) get(id int64) (domain.LiveLocation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.locs[id]
	return v, ok
}

// throttleStub lets a key through once until expire is called.
type throttleStub struct {
	mu     sync.Mutex
	held   map[string]time.Duration
	points map[int64]domain.Point
}

func newThrottleStub() *throttleStub {
	return &throttleStub{held: map[string]time.Duration{}, points: map[int64]domain.Point{}}
}

func (t *throttleStub) Allow(_ context.Context, key string, every time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.held[key]; ok {
		return false, nil
	}
	t.held[key] = every
	return true, nil
}

func (t *throttleStub) LastDurationPoint(_ context.Context, id int64) (*domain.Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.points[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *throttleStub) SetDurationPoint(_ context.Context, id int64, p domain.Point, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.points[id] = p
	return nil
}

func (t *throttleStub) expire(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, key)
}

type estimatorStub struct {
	estimateFn func(in estimate.Input) *domain.Estimate
}

func (s estimatorStub) Estimate(_ context.Context, in estimate.Input) *domain.Estimate {
	return s.estimateFn(in)
}

type fixture struct {
	db       *fakedb.DB
	live     *liveStub
	throttle *throttleStub
	sink     *sinktest.Sink
	logs     *testlog.Recorder
	flushed  prometheus.Counter
	inputs   []estimate.Input
	svc      *tracker.Service
}

func newFixture(t *testing.T, est func(in estimate.Input) *domain.Estimate) *fixture {
	t.Helper()

	f := &fixture{
		db:       fakedb.New(),
		live:     newLiveStub(),
		throttle: newThrottleStub(),
		sink:     sinktest.New(),
		logs:     testlog.New(),
		flushed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "flushed"}),
	}
	if est == nil {
		est = func(in estimate.Input) *domain.Estimate {
			f.inputs = append(f.inputs, in)
			return &domain.Estimate{DistanceKm: 2.4, DurationMin: 11}
		}
	}
	f.db.PutCourier(domain.Courier{ID: courierID, UserID: 40, Mode: domain.ModeBike, WorkActive: true, IsBusy: true})
	f.db.PutShop(domain.Shop{ID: 2, OwnerID: 20, Title: "Pharmacy", Point: domain.Point{Lat: 41.30, Lon: 69.24}})
	f.db.PutCustomerLocation(customerID, domain.Point{Lat: 41.33, Lon: 69.28})

	f.svc = tracker.NewService(tracker.Deps{
		Couriers:  f.db.Couriers(),
		Orders:    f.db.Orders(),
		Shops:     f.db.Shops(),
		Customers: f.db.Customers(),
		Live:      f.live,
		Durable:   f.db.Locations(),
		Throttle:  f.throttle,
		Estimator: estimatorStub{estimateFn: est},
		Notifier:  notify.NewPublisher(f.sink),
		Flushed:   f.flushed,
	}, tracker.Config{}, f.logs.Logger())
	return f
}

func (f *fixture) assign(dir domain.Direction) int64 {
	cid := courierID
	return f.db.PutOrder(domain.Order{
		CustomerID: customerID,
		ShopID:     2,
		CourierID:  &cid,
		Status:     domain.OrderAssigned,
		Direction:  &dir,
	})
}

var start = domain.Point{Lat: 41.3100, Lon: 69.2500}

func TestService_Ingest_Rejects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.db.PutCourier(domain.Courier{ID: 5, UserID: 50, Mode: domain.ModeFoot})
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Ingest(ctx, courierID, domain.Point{Lat: 91, Lon: 0}), apperr.ErrInvalid)
	require.ErrorIs(t, f.svc.Ingest(ctx, 0, start), apperr.ErrInvalid)
	require.ErrorIs(t, f.svc.Ingest(ctx, 77, start), apperr.ErrNotFound)
	require.ErrorIs(t, f.svc.Ingest(ctx, 5, start), apperr.ErrPreconditionFailed)

	_, ok := f.live.get(5)
	require.False(t, ok)
}

func TestService_Ingest_IdleCourierOnlyStoresLocation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	require.NoError(t, f.svc.Ingest(context.Background(), courierID, start))

	loc, ok := f.live.get(courierID)
	require.True(t, ok)
	require.Equal(t, start, loc.Point())
	require.True(t, loc.WorkActive)
	require.True(t, loc.IsBusy)
	require.False(t, loc.Timestamp.IsZero())
	require.Empty(t, f.sink.Messages())
}

func TestService_Ingest_BroadcastsToCustomer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	orderID := f.assign(domain.DirectionPickedUp)
	ctx := context.Background()

	require.NoError(t, f.svc.Ingest(ctx, courierID, start))

	require.Equal(t, []string{"user_900_goo"}, f.sink.Topics(notify.EventLocationUpdate))
	require.Equal(t, []string{"user_900_goo"}, f.sink.Topics(notify.EventDurationUpdate))
	dur := f.sink.Of(notify.EventDurationUpdate)[0].Payload.(notify.DurationPayload)
	require.Equal(t, orderID, dur.OrderID)
	require.Equal(t, 11.0, dur.DurationMin)

	o := f.db.Order(orderID)
	require.Equal(t, 2.4, *o.DistanceKm)
	require.Equal(t, 11.0, *o.DurationMin)

	require.Len(t, f.inputs, 1)
	require.Equal(t, domain.DirectionPickedUp, f.inputs[0].Direction)
	require.Equal(t, domain.ModeBike, f.inputs[0].Mode)
	require.Equal(t, start, f.inputs[0].Courier)

	// both windows are still open
	require.NoError(t, f.svc.Ingest(ctx, courierID, domain.Point{Lat: 41.32, Lon: 69.26}))
	require.Len(t, f.sink.Messages(), 2)
}

func TestService_Ingest_DurationNeedsDisplacement(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.assign(domain.DirectionEnRouteToStore)
	ctx := context.Background()

	require.NoError(t, f.svc.Ingest(ctx, courierID, start))
	f.throttle.expire("loc_sent:4:5s")
	f.throttle.expire("duration_sent:4")

	// roughly 11 m north
	near := domain.Point{Lat: start.Lat + 0.0001, Lon: start.Lon}
	require.NoError(t, f.svc.Ingest(ctx, courierID, near))
	require.Len(t, f.sink.Of(notify.EventLocationUpdate), 2)
	require.Len(t, f.sink.Of(notify.EventDurationUpdate), 1)

	// roughly 110 m north
	f.throttle.expire("loc_sent:4:5s")
	far := domain.Point{Lat: start.Lat + 0.001, Lon: start.Lon}
	require.NoError(t, f.svc.Ingest(ctx, courierID, far))
	require.Len(t, f.sink.Of(notify.EventDurationUpdate), 2)

	p, err := f.throttle.LastDurationPoint(ctx, courierID)
	require.NoError(t, err)
	require.Equal(t, far, *p)
}

func TestService_Ingest_StopsAfterArrival(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.assign(domain.DirectionArrivedToCustomer)

	require.NoError(t, f.svc.Ingest(context.Background(), courierID, start))
	require.Empty(t, f.sink.Messages())
}

func TestService_Ingest_EstimateUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(estimate.Input) *domain.Estimate { return nil })
	orderID := f.assign(domain.DirectionEnRouteToStore)

	require.NoError(t, f.svc.Ingest(context.Background(), courierID, start))

	require.Len(t, f.sink.Of(notify.EventLocationUpdate), 1)
	require.Empty(t, f.sink.Of(notify.EventDurationUpdate))
	require.Nil(t, f.db.Order(orderID).DurationMin)

	p, err := f.throttle.LastDurationPoint(context.Background(), courierID)
	require.NoError(t, err)
	require.Nil(t, p, "no broadcast, no anchor")
}

func TestService_Ingest_NotificationFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.assign(domain.DirectionEnRouteToStore)
	f.sink.FailWith(errors.New("redis down"))

	require.NoError(t, f.svc.Ingest(context.Background(), courierID, start))

	e, ok := f.logs.Find("notification failed")
	require.True(t, ok)
	require.Equal(t, "warn", e.Level)
}

func TestService_Flush(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.live.Put(context.Background(), domain.LiveLocation{CourierID: courierID, Lat: 41.1, Lon: 69.1, Timestamp: at}))
	require.NoError(t, f.live.Put(context.Background(), domain.LiveLocation{CourierID: 404, Lat: 41.2, Lon: 69.2, Timestamp: at}))
	f.live.malformed = 1
	f.live.pruned = 3

	res, err := f.svc.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, tracker.FlushResult{Scanned: 2, Written: 1, Malformed: 1, Pruned: 3}, res)

	lk, ok := f.db.LastKnown(courierID)
	require.True(t, ok)
	require.Equal(t, domain.Point{Lat: 41.1, Lon: 69.1}, lk.Point)
	require.Equal(t, at, lk.UpdatedAt)

	require.Equal(t, 1.0, promtest.ToFloat64(f.flushed))
	require.True(t, f.logs.Has("malformed live locations skipped"))
	require.True(t, f.logs.Has("locations flushed"))
}

func TestService_Flush_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.live.allErr = errors.New("scan failed")
	_, err := f.svc.Flush(context.Background())
	require.EqualError(t, err, "scan failed")

	f.live.allErr = nil
	require.NoError(t, f.live.Put(context.Background(), domain.LiveLocation{CourierID: courierID, Lat: 1, Lon: 1}))
	f.db.FailNext("locations.Upsert", fakedb.ErrInjected)
	_, err = f.svc.Flush(context.Background())
	require.ErrorIs(t, err, fakedb.ErrInjected)
	require.Zero(t, promtest.ToFloat64(f.flushed))
}
