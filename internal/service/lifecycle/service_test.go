package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/service/lifecycle"
	"service-dispatch/internal/store/memstore"
	testlog "service-dispatch/internal/testutil"
	"service-dispatch/internal/testutil/fakedb"
	"service-dispatch/internal/testutil/sinktest"
)

const (
	courierID  = int64(7)
	courierUID = int64(70)
	customerID = int64(500)
)

type fixture struct {
	db     *fakedb.DB
	claims *memstore.ClaimStore
	sink   *sinktest.Sink
	logs   *testlog.Recorder
	svc    *lifecycle.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:     fakedb.New(),
		claims: memstore.NewClaimStore(),
		sink:   sinktest.New(),
		logs:   testlog.New(),
	}
	f.db.PutCourier(domain.Courier{ID: courierID, UserID: courierUID, Mode: domain.ModeBike, WorkActive: true, IsBusy: true})
	f.db.PutCourier(domain.Courier{ID: 8, UserID: 80, Mode: domain.ModeFoot, WorkActive: true})
	f.svc = lifecycle.NewService(f.db.Orders(), f.claims, notify.NewPublisher(f.sink), 0, f.logs.Logger())
	return f
}

func (f *fixture) assigned(dir domain.Direction) int64 {
	cid := courierID
	return f.db.PutOrder(domain.Order{
		CustomerID: customerID,
		ShopID:     1,
		CourierID:  &cid,
		Status:     domain.OrderAssigned,
		Direction:  &dir,
	})
}

func (f *fixture) completed() int64 {
	cid, dir := courierID, domain.DirectionArrivedToCustomer
	return f.db.PutOrder(domain.Order{
		CustomerID: customerID,
		ShopID:     1,
		CourierID:  &cid,
		Status:     domain.OrderCompleted,
		Direction:  &dir,
	})
}

func ptr[T any](v T) *T { return &v }

func TestService_ReleasesCourier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dir  domain.Direction
		act  func(f *fixture, orderID int64) error
	}{
		{
			name: "cancel of an assigned order",
			dir:  domain.DirectionPickedUp,
			act: func(f *fixture, orderID int64) error {
				return f.svc.Cancel(context.Background(), orderID, domain.Actor{Role: domain.RoleCustomer, ID: customerID}, "changed my mind")
			},
		},
		{
			name: "arrival at the customer",
			dir:  domain.DirectionEnRouteToCustomer,
			act: func(f *fixture, orderID int64) error {
				return f.svc.UpdateDirection(context.Background(), orderID, courierID, domain.DirectionArrivedToCustomer)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			orderID := f.assigned(tt.dir)
			require.True(t, f.db.Courier(courierID).IsBusy)

			require.NoError(t, tt.act(f, orderID))
			require.False(t, f.db.Courier(courierID).IsBusy)
		})
	}
}

func TestService_ArrivedOrderKeepsNextAssignment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		act  func(f *fixture, orderID int64) error
	}{
		{
			name: "completion",
			act: func(f *fixture, orderID int64) error {
				return f.svc.Complete(context.Background(), orderID, customerID, nil)
			},
		},
		{
			name: "customer cancel",
			act: func(f *fixture, orderID int64) error {
				return f.svc.Cancel(context.Background(), orderID, domain.Actor{Role: domain.RoleCustomer, ID: customerID}, "")
			},
		},
		{
			name: "courier cancel",
			act: func(f *fixture, orderID int64) error {
				return f.svc.Cancel(context.Background(), orderID, domain.Actor{Role: domain.RoleCourier, ID: courierID}, "")
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			first := f.assigned(domain.DirectionEnRouteToCustomer)
			require.NoError(t, f.svc.UpdateDirection(context.Background(), first, courierID, domain.DirectionArrivedToCustomer))
			require.False(t, f.db.Courier(courierID).IsBusy)

			// freed on arrival, the courier takes the next order
			c := f.db.Courier(courierID)
			c.IsBusy = true
			f.db.PutCourier(c)
			next := f.assigned(domain.DirectionEnRouteToStore)

			require.NoError(t, tt.act(f, first))
			require.True(t, f.db.Courier(courierID).IsBusy)
			require.Equal(t, domain.OrderAssigned, f.db.Order(next).Status)
		})
	}
}

func TestService_Cancel_NotifiesCounterpart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		actor  domain.Actor
		topics []string
	}{
		{name: "customer", actor: domain.Actor{Role: domain.RoleCustomer, ID: customerID}, topics: []string{"user_70_pro"}},
		{name: "courier", actor: domain.Actor{Role: domain.RoleCourier, ID: courierID}, topics: []string{"user_500_goo"}},
		{name: "system", actor: domain.Actor{Role: domain.RoleSystem}, topics: []string{"user_70_pro", "user_500_goo"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			orderID := f.assigned(domain.DirectionEnRouteToStore)

			require.NoError(t, f.svc.Cancel(context.Background(), orderID, tt.actor, "  out of stock "))
			require.Equal(t, tt.topics, f.sink.Topics(notify.EventOrderCanceled))

			payload := f.sink.Of(notify.EventOrderCanceled)[0].Payload.(notify.CanceledPayload)
			require.Equal(t, tt.actor.Role, payload.By)
			require.Equal(t, "out of stock", payload.Reason)

			o := f.db.Order(orderID)
			require.Equal(t, domain.OrderCanceled, o.Status)
			require.Nil(t, o.CourierID)
			require.Equal(t, tt.actor.Role, *o.CanceledBy)
			require.NotNil(t, o.CanceledAt)
			require.True(t, f.logs.Has("order canceled"))
		})
	}
}

func TestService_Cancel_SearchingClearsClaim(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	orderID := f.db.PutOrder(domain.Order{CustomerID: customerID, ShopID: 1, Status: domain.OrderSearching})
	require.NoError(t, f.claims.Reject(context.Background(), orderID, 8))

	require.NoError(t, f.svc.Cancel(context.Background(), orderID, domain.Actor{Role: domain.RoleCustomer, ID: customerID}, ""))

	require.Equal(t, domain.OrderCanceled, f.db.Order(orderID).Status)
	rejected, err := f.claims.Rejected(context.Background(), orderID, 8)
	require.NoError(t, err)
	require.False(t, rejected)
	require.Empty(t, f.sink.Of(notify.EventOrderCanceled), "nobody else is involved yet")
	require.True(t, f.db.Courier(courierID).IsBusy, "unrelated courier keeps its flag")
}

func TestService_Cancel_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	assigned := f.assigned(domain.DirectionEnRouteToStore)
	completed := f.completed()

	err := f.svc.Cancel(context.Background(), completed, domain.Actor{Role: domain.RoleCustomer, ID: customerID}, "")
	require.ErrorIs(t, err, apperr.ErrPreconditionFailed)
	require.Equal(t, domain.OrderCompleted, f.db.Order(completed).Status)

	err = f.svc.Cancel(context.Background(), assigned, domain.Actor{Role: domain.RoleCourier, ID: 8}, "")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	err = f.svc.Cancel(context.Background(), assigned, domain.Actor{Role: domain.RoleCustomer, ID: customerID + 1}, "")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	err = f.svc.Cancel(context.Background(), assigned, domain.Actor{Role: "admin"}, "")
	require.ErrorIs(t, err, apperr.ErrInvalid)

	err = f.svc.Cancel(context.Background(), 999, domain.Actor{Role: domain.RoleSystem}, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.Equal(t, domain.OrderAssigned, f.db.Order(assigned).Status)
	require.Empty(t, f.sink.Messages())
}

func TestService_Cancel_TxFailureLeavesOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	orderID := f.assigned(domain.DirectionEnRouteToStore)
	f.db.FailNext("tx.SetCourierBusy", fakedb.ErrInjected)

	err := f.svc.Cancel(context.Background(), orderID, domain.Actor{Role: domain.RoleSystem}, "")
	require.ErrorIs(t, err, fakedb.ErrInjected)

	require.Equal(t, domain.OrderAssigned, f.db.Order(orderID).Status)
	require.True(t, f.db.Courier(courierID).IsBusy)
	require.Empty(t, f.sink.Messages())
}

func TestService_UpdateDirection_Monotonic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	orderID := f.assigned(domain.DirectionEnRouteToStore)
	ctx := context.Background()

	require.NoError(t, f.svc.UpdateDirection(ctx, orderID, courierID, domain.DirectionPickedUp))
	o := f.db.Order(orderID)
	require.Equal(t, domain.DirectionPickedUp, o.CurrentDirection())
	require.NotNil(t, o.PickedUpAt)
	require.True(t, f.db.Courier(courierID).IsBusy)

	require.ErrorIs(t, f.svc.UpdateDirection(ctx, orderID, courierID, domain.DirectionArrivedAtStore), apperr.ErrPreconditionFailed)
	require.ErrorIs(t, f.svc.UpdateDirection(ctx, orderID, courierID, domain.DirectionPickedUp), apperr.ErrPreconditionFailed)
	require.ErrorIs(t, f.svc.UpdateDirection(ctx, orderID, courierID, domain.DirectionHandedOver), apperr.ErrInvalid)
	require.ErrorIs(t, f.svc.UpdateDirection(ctx, orderID, courierID, "teleported"), apperr.ErrInvalid)
	require.ErrorIs(t, f.svc.UpdateDirection(ctx, orderID, 8, domain.DirectionEnRouteToCustomer), apperr.ErrForbidden)

	require.NoError(t, f.svc.UpdateDirection(ctx, orderID, courierID, domain.DirectionEnRouteToCustomer))
	o = f.db.Order(orderID)
	require.Equal(t, domain.DirectionEnRouteToCustomer, o.CurrentDirection())

	require.Equal(t, []string{"user_500_goo", "user_500_goo"}, f.sink.Topics(notify.EventDirectionUpdate))
	last := f.sink.Of(notify.EventDirectionUpdate)[1].Payload.(notify.DirectionPayload)
	require.Equal(t, domain.DirectionEnRouteToCustomer, last.Direction)
}

func TestService_UpdateDirection_RequiresAssignment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	pending := f.db.PutOrder(domain.Order{CustomerID: customerID, ShopID: 1})
	completed := f.completed()

	require.ErrorIs(t, f.svc.UpdateDirection(context.Background(), pending, courierID, domain.DirectionArrivedAtStore), apperr.ErrPreconditionFailed)
	require.ErrorIs(t, f.svc.UpdateDirection(context.Background(), completed, courierID, domain.DirectionArrivedToCustomer), apperr.ErrPreconditionFailed)
	require.ErrorIs(t, f.svc.UpdateDirection(context.Background(), 999, courierID, domain.DirectionArrivedAtStore), apperr.ErrNotFound)
}

func TestService_Complete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	early := f.assigned(domain.DirectionEnRouteToCustomer)
	arrived := f.assigned(domain.DirectionArrivedToCustomer)
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Complete(ctx, early, customerID, nil), apperr.ErrPreconditionFailed)
	require.ErrorIs(t, f.svc.Complete(ctx, arrived, customerID, ptr(6)), apperr.ErrInvalid)
	require.ErrorIs(t, f.svc.Complete(ctx, arrived, customerID+1, nil), apperr.ErrForbidden)

	require.NoError(t, f.svc.Complete(ctx, arrived, customerID, ptr(5)))
	o := f.db.Order(arrived)
	require.Equal(t, domain.OrderCompleted, o.Status)
	require.NotNil(t, o.DeliveredAt)
	require.Equal(t, 5, *o.CustomerRating)
	require.True(t, o.AssignedTo(courierID))

	require.ErrorIs(t, f.svc.Complete(ctx, arrived, customerID, nil), apperr.ErrPreconditionFailed)
}

func TestService_HandOver(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	assigned := f.assigned(domain.DirectionArrivedToCustomer)
	completed := f.completed()
	ctx := context.Background()

	require.ErrorIs(t, f.svc.HandOver(ctx, assigned, courierID, nil), apperr.ErrPreconditionFailed)
	require.ErrorIs(t, f.svc.HandOver(ctx, completed, 8, nil), apperr.ErrForbidden)
	require.ErrorIs(t, f.svc.HandOver(ctx, completed, courierID, ptr(0)), apperr.ErrInvalid)

	require.NoError(t, f.svc.HandOver(ctx, completed, courierID, ptr(4)))
	o := f.db.Order(completed)
	require.Equal(t, domain.OrderCompleted, o.Status)
	require.Equal(t, domain.DirectionHandedOver, o.CurrentDirection())
	require.Equal(t, 4, *o.CourierRating)

	require.ErrorIs(t, f.svc.HandOver(ctx, completed, courierID, nil), apperr.ErrPreconditionFailed)
	require.ErrorIs(t, f.svc.Cancel(ctx, completed, domain.Actor{Role: domain.RoleSystem}, ""), apperr.ErrPreconditionFailed)
}
