package route

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"service-dispatch/internal/domain"
	testlog "service-dispatch/internal/testutil"
)

type fakeGateway struct {
	routeFn func(context.Context, domain.CourierMode, []domain.Point) (Route, error)
}

func (f *fakeGateway) Route(ctx context.Context, mode domain.CourierMode, points []domain.Point) (Route, error) {
	return f.routeFn(ctx, mode, points)
}

type counterStub struct{ n int64 }

func (c *counterStub) Inc() { atomic.AddInt64(&c.n, 1) }
func (c *counterStub) Count() int64 {
	return atomic.LoadInt64(&c.n)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var twoPoints = []domain.Point{{Lat: 41, Lon: 69}, {Lat: 41.01, Lon: 69}}

func TestRetryingGateway_Route_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	rec := testlog.New()

	var calls int32
	next := &fakeGateway{
		routeFn: func(context.Context, domain.CourierMode, []domain.Point) (Route, error) {
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				return Route{}, &StatusError{Code: http.StatusServiceUnavailable}
			case 2:
				return Route{}, timeoutErr{}
			default:
				return Route{DistanceKm: 3, DurationMin: 12}, nil
			}
		},
	}
	ctr := &counterStub{}
	g := NewRetryingGateway(next, rec.Logger(), ctr, RetryConfig{MaxAttempts: 5})
	if g == nil {
		t.Fatalf("expected non-nil gw")
	}

	got, err := g.Route(context.Background(), domain.ModeFoot, twoPoints)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.DistanceKm != 3 || got.DurationMin != 12 {
		t.Fatalf("unexpected route: %#v", got)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if ctr.Count() != 2 {
		t.Fatalf("expected 2 retries, got %d", ctr.Count())
	}
	e, ok := rec.Find("route gateway retry")
	if !ok {
		t.Fatalf("expected retry log entry")
	}
	if v, _ := e.Field("profile"); v != "foot-walking" {
		t.Fatalf("unexpected profile field: %v", v)
	}
}

func TestRetryingGateway_Route_NoRetryOnClientError(t *testing.T) {
	t.Parallel()

	var calls int32
	next := &fakeGateway{
		routeFn: func(context.Context, domain.CourierMode, []domain.Point) (Route, error) {
			atomic.AddInt32(&calls, 1)
			return Route{}, &StatusError{Code: http.StatusBadRequest}
		},
	}
	ctr := &counterStub{}
	g := NewRetryingGateway(next, nil, ctr, RetryConfig{MaxAttempts: 5})

	_, err := g.Route(context.Background(), domain.ModeFoot, twoPoints)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if ctr.Count() != 0 {
		t.Fatalf("expected 0 retries, got %d", ctr.Count())
	}
}

func TestRetryingGateway_Route_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls int32
	next := &fakeGateway{
		routeFn: func(context.Context, domain.CourierMode, []domain.Point) (Route, error) {
			atomic.AddInt32(&calls, 1)
			return Route{}, &StatusError{Code: http.StatusBadGateway}
		},
	}
	ctr := &counterStub{}
	g := NewRetryingGateway(next, nil, ctr, RetryConfig{MaxAttempts: 3})

	if _, err := g.Route(context.Background(), domain.ModeBike, twoPoints); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if ctr.Count() != 2 {
		t.Fatalf("expected 2 retries, got %d", ctr.Count())
	}
}

func TestRetryingGateway_Route_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	next := &fakeGateway{
		routeFn: func(context.Context, domain.CourierMode, []domain.Point) (Route, error) {
			atomic.AddInt32(&calls, 1)
			cancel()
			return Route{}, &StatusError{Code: http.StatusServiceUnavailable}
		},
	}
	g := NewRetryingGateway(next, nil, nil, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})

	if _, err := g.Route(ctx, domain.ModeFoot, twoPoints); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestNewRetryingGateway_NilNext(t *testing.T) {
	t.Parallel()

	if g := NewRetryingGateway(nil, nil, nil, RetryConfig{}); g != nil {
		t.Fatalf("expected nil gateway")
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base, max := 100*time.Millisecond, 350*time.Millisecond
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 350 * time.Millisecond},
		{6, 350 * time.Millisecond},
	}
	for _, c := range cases {
		if got := backoff(base, max, c.attempt); got != c.want {
			t.Fatalf("attempt %d: want %v, got %v", c.attempt, c.want, got)
		}
	}
}
