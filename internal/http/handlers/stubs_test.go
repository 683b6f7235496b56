package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/http/middleware/auth"
)

type dispatcherStub struct {
	startFn func(ctx context.Context, orderID, shopID int64) error
}

func (s *dispatcherStub) Start(ctx context.Context, orderID, shopID int64) error {
	if s.startFn == nil {
		return nil
	}
	return s.startFn(ctx, orderID, shopID)
}

type assignerStub struct {
	acceptFn func(ctx context.Context, orderID, courierID int64) (domain.AssignResult, error)
	rejectFn func(ctx context.Context, orderID, courierID int64) error
}

func (s *assignerStub) Accept(ctx context.Context, orderID, courierID int64) (domain.AssignResult, error) {
	if s.acceptFn == nil {
		return domain.AssignResult{OrderID: orderID, CourierID: courierID}, nil
	}
	return s.acceptFn(ctx, orderID, courierID)
}

func (s *assignerStub) Reject(ctx context.Context, orderID, courierID int64) error {
	if s.rejectFn == nil {
		return nil
	}
	return s.rejectFn(ctx, orderID, courierID)
}

type lifecycleStub struct {
	cancelFn    func(ctx context.Context, orderID int64, actor domain.Actor, reason string) error
	directionFn func(ctx context.Context, orderID, courierID int64, next domain.Direction) error
	completeFn  func(ctx context.Context, orderID, customerID int64, rating *int) error
	handOverFn  func(ctx context.Context, orderID, courierID int64, rating *int) error
}

func (s *lifecycleStub) Cancel(ctx context.Context, orderID int64, actor domain.Actor, reason string) error {
	if s.cancelFn == nil {
		return nil
	}
	return s.cancelFn(ctx, orderID, actor, reason)
}

func (s *lifecycleStub) UpdateDirection(ctx context.Context, orderID, courierID int64, next domain.Direction) error {
	if s.directionFn == nil {
		return nil
	}
	return s.directionFn(ctx, orderID, courierID, next)
}

func (s *lifecycleStub) Complete(ctx context.Context, orderID, customerID int64, rating *int) error {
	if s.completeFn == nil {
		return nil
	}
	return s.completeFn(ctx, orderID, customerID, rating)
}

func (s *lifecycleStub) HandOver(ctx context.Context, orderID, courierID int64, rating *int) error {
	if s.handOverFn == nil {
		return nil
	}
	return s.handOverFn(ctx, orderID, courierID, rating)
}

type ingesterStub struct {
	ingestFn func(ctx context.Context, courierID int64, p domain.Point) error
}

func (s *ingesterStub) Ingest(ctx context.Context, courierID int64, p domain.Point) error {
	if s.ingestFn == nil {
		return nil
	}
	return s.ingestFn(ctx, courierID, p)
}

// newRequest builds a request with the chi id param and, when actor is set, an authenticated caller.
func newRequest(method, target, id, body string, actor *domain.Actor) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)

	ctx := req.Context()
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	if actor != nil {
		ctx = auth.WithActor(ctx, *actor)
	}
	return req.WithContext(ctx)
}

var (
	courier7   = &domain.Actor{Role: domain.RoleCourier, ID: 7}
	customer70 = &domain.Actor{Role: domain.RoleCustomer, ID: 70}
	system     = &domain.Actor{Role: domain.RoleSystem}
)
