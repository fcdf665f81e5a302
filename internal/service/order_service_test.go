package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"storefront/internal/incident"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	orders    *MockOrderRepository
	outbox    *MockOutboxRepository
	incidents *MockRecorder
	tx        *MockTx
	service   OrderService
}

func newLedgerFixture(m *metrics.Metrics) *ledgerFixture {
	f := &ledgerFixture{
		orders:    new(MockOrderRepository),
		outbox:    new(MockOutboxRepository),
		incidents: new(MockRecorder),
		tx:        new(MockTx),
	}
	f.service = NewOrderService(f.orders, f.outbox, f.incidents, m, zerolog.Nop())
	return f
}

func chairLampItems() []model.OrderItem {
	return []model.OrderItem{
		{ProductRef: "chairA", Quantity: 2, UnitPrice: 29900, LineTotal: 59800},
		{ProductRef: "lampB", Quantity: 1, UnitPrice: 8900, LineTotal: 8900},
	}
}

func chairLampTotals() model.Totals {
	return model.Totals{Subtotal: 68700, Total: 68700}
}

func storedOrder(status model.OrderStatus) *model.Order {
	ref := "cs_test_1"
	return &model.Order{
		ID:                uuid.New(),
		OrderNumber:       "ORD-ABCDEF12",
		Status:            status,
		CustomerRef:       "cust-1",
		Subtotal:          68700,
		Total:             68700,
		GatewaySessionRef: &ref,
		Items:             chairLampItems(),
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

func TestOrderService_RecordPending_Success(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.AnythingOfType("*model.Order")).Return(nil)
	f.orders.On("CreateOrderItems", ctx, f.tx, mock.AnythingOfType("[]model.OrderItem")).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	order, err := f.service.RecordPending(ctx, "cust-1", chairLampItems(), chairLampTotals(), "cs_test_1")

	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, "cust-1", order.CustomerRef)
	assert.Equal(t, model.Money(68700), order.Subtotal)
	assert.Equal(t, "687.00", order.Subtotal.String())
	assert.Regexp(t, `^ORD-[0-9A-F]{12}$`, order.OrderNumber)
	require.NotNil(t, order.GatewaySessionRef)
	assert.Equal(t, "cs_test_1", *order.GatewaySessionRef)

	require.Len(t, order.Items, 2)
	for i, item := range order.Items {
		assert.Equal(t, i, item.Position)
		assert.Equal(t, order.ID, item.OrderID)
		assert.NotEqual(t, uuid.Nil, item.ID)
	}

	assert.True(t, f.tx.committed)
	assert.False(t, f.tx.rolledBack)
	f.orders.AssertExpectations(t)
	f.tx.AssertExpectations(t)
}

func TestOrderService_RecordPending_IntegrityViolations(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		items  []model.OrderItem
		totals model.Totals
		code   string
	}{
		{
			name: "Line total mismatch",
			items: []model.OrderItem{
				{ProductRef: "chairA", Quantity: 2, UnitPrice: 29900, LineTotal: 29900},
			},
			totals: model.Totals{Subtotal: 29900, Total: 29900},
			code:   model.ErrCodeLedgerIntegrity,
		},
		{
			name:   "Total mismatch",
			items:  chairLampItems(),
			totals: model.Totals{Subtotal: 68700, Tax: 100, Total: 68700},
			code:   model.ErrCodeLedgerIntegrity,
		},
		{
			name:   "Subtotal mismatch",
			items:  chairLampItems(),
			totals: model.Totals{Subtotal: 60000, Total: 60000},
			code:   model.ErrCodeLedgerIntegrity,
		},
		{
			name: "Non-positive quantity",
			items: []model.OrderItem{
				{ProductRef: "chairA", Quantity: 0, UnitPrice: 29900, LineTotal: 0},
			},
			totals: model.Totals{},
			code:   model.ErrCodeValidation,
		},
		{
			name: "Quantity above column range",
			items: []model.OrderItem{
				{ProductRef: "chairA", Quantity: model.MaxItemQuantity + 1, UnitPrice: 1, LineTotal: model.MaxItemQuantity + 1},
			},
			totals: model.Totals{Subtotal: model.MaxItemQuantity + 1, Total: model.MaxItemQuantity + 1},
			code:   model.ErrCodeValidation,
		},
		{
			name: "Wrapped line total",
			items: []model.OrderItem{
				{ProductRef: "chairA", Quantity: 3, UnitPrice: math.MaxInt64 / 2, LineTotal: model.Money(math.MaxInt64 / 2).Times(3)},
			},
			totals: model.Totals{
				Subtotal: model.Money(math.MaxInt64 / 2).Times(3),
				Total:    model.Money(math.MaxInt64 / 2).Times(3),
			},
			code: model.ErrCodeLedgerIntegrity,
		},
		{
			name: "Wrapped subtotal",
			items: []model.OrderItem{
				{ProductRef: "chairA", Quantity: 1, UnitPrice: math.MaxInt64, LineTotal: math.MaxInt64},
				{ProductRef: "lampB", Quantity: 1, UnitPrice: 1, LineTotal: 1},
			},
			totals: model.Totals{Subtotal: math.MinInt64, Total: math.MinInt64},
			code:   model.ErrCodeLedgerIntegrity,
		},
		{
			name: "Wrapped total",
			items: []model.OrderItem{
				{ProductRef: "chairA", Quantity: 1, UnitPrice: math.MaxInt64, LineTotal: math.MaxInt64},
			},
			totals: model.Totals{Subtotal: math.MaxInt64, Shipping: 1, Total: math.MinInt64},
			code:   model.ErrCodeLedgerIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			f := newLedgerFixture(m)

			order, err := f.service.RecordPending(ctx, "cust-1", tt.items, tt.totals, "cs_test_1")

			require.Error(t, err)
			assert.Nil(t, order)

			var domainErr *model.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.code, domainErr.Code)

			// Rejected before any write.
			f.orders.AssertNotCalled(t, "BeginTx", mock.Anything)
			count, err := testutil.GatherAndCount(m.Registry(), "storefront_ledger_operations_total")
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestOrderService_RecordPending_RollsBackOnItemFailure(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.AnythingOfType("*model.Order")).Return(nil)
	f.orders.On("CreateOrderItems", ctx, f.tx, mock.AnythingOfType("[]model.OrderItem")).Return(errors.New("constraint violation"))
	f.tx.On("Rollback", ctx).Return(nil)

	order, err := f.service.RecordPending(ctx, "cust-1", chairLampItems(), chairLampTotals(), "cs_test_1")

	require.Error(t, err)
	assert.Nil(t, order)
	assert.True(t, f.tx.rolledBack)
	assert.False(t, f.tx.committed)
}

func TestOrderService_RecordPending_RegeneratesCollidingOrderNumber(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	var numbers []string
	captureNumber := func(args mock.Arguments) {
		numbers = append(numbers, args.Get(2).(*model.Order).OrderNumber)
	}

	f.orders.On("BeginTx", ctx).Return(f.tx, nil).Twice()
	f.orders.On("CreateOrder", ctx, f.tx, mock.AnythingOfType("*model.Order")).
		Run(captureNumber).Return(repository.ErrDuplicateOrderNumber).Once()
	f.orders.On("CreateOrder", ctx, f.tx, mock.AnythingOfType("*model.Order")).
		Run(captureNumber).Return(nil).Once()
	f.orders.On("CreateOrderItems", ctx, f.tx, mock.AnythingOfType("[]model.OrderItem")).Return(nil).Once()
	f.tx.On("Rollback", ctx).Return(nil).Once()
	f.tx.On("Commit", ctx).Return(nil).Once()

	order, err := f.service.RecordPending(ctx, "cust-1", chairLampItems(), chairLampTotals(), "cs_test_1")

	require.NoError(t, err)
	require.Len(t, numbers, 2)
	assert.NotEqual(t, numbers[0], numbers[1])
	assert.Equal(t, numbers[1], order.OrderNumber)
	f.orders.AssertExpectations(t)
	f.tx.AssertExpectations(t)
}

func TestOrderService_RecordPending_GivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("CreateOrder", ctx, f.tx, mock.AnythingOfType("*model.Order")).Return(repository.ErrDuplicateOrderNumber)
	f.tx.On("Rollback", ctx).Return(nil)

	order, err := f.service.RecordPending(ctx, "cust-1", chairLampItems(), chairLampTotals(), "cs_test_1")

	assert.ErrorIs(t, err, repository.ErrDuplicateOrderNumber)
	assert.Nil(t, order)
	f.orders.AssertNumberOfCalls(t, "BeginTx", 3)
	f.tx.AssertNumberOfCalls(t, "Rollback", 3)
	f.orders.AssertNotCalled(t, "CreateOrderItems", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_RecordPending_RequiresCustomer(t *testing.T) {
	f := newLedgerFixture(nil)

	_, err := f.service.RecordPending(context.Background(), "", chairLampItems(), chairLampTotals(), "cs_test_1")
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestOrderService_ConfirmPaid_TransitionsPending(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	paid := storedOrder(model.OrderStatusPaid)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("TransitionStatus", ctx, f.tx, "cs_test_1", model.OrderStatusPending, model.OrderStatusPaid).Return(paid, nil)
	f.outbox.On("Insert", ctx, f.tx, mock.MatchedBy(func(e *model.OutboxEvent) bool {
		return e.Type == model.EventOrderPaid && e.AggregateID == paid.ID.String()
	})).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)
	f.orders.On("GetByID", ctx, paid.ID).Return(paid, nil)

	order, err := f.service.ConfirmPaid(ctx, "cs_test_1")

	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, order.Status)
	assert.Len(t, order.Items, 2)
	assert.True(t, f.tx.committed)
	f.outbox.AssertExpectations(t)
	f.incidents.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestOrderService_ConfirmPaid_AlreadyPaidIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	paid := storedOrder(model.OrderStatusPaid)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("TransitionStatus", ctx, f.tx, "cs_test_1", model.OrderStatusPending, model.OrderStatusPaid).Return(nil, nil)
	f.tx.On("Rollback", ctx).Return(nil)
	f.orders.On("GetBySessionRef", ctx, "cs_test_1").Return(paid, nil)
	f.orders.On("GetByID", ctx, paid.ID).Return(paid, nil)

	order, err := f.service.ConfirmPaid(ctx, "cs_test_1")

	require.NoError(t, err)
	assert.Equal(t, paid.ID, order.ID)
	assert.Equal(t, model.OrderStatusPaid, order.Status)
	f.outbox.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	f.incidents.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestOrderService_ConfirmPaid_Reconciliation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		current *model.Order
	}{
		{name: "No order for session", current: nil},
		{name: "Order already cancelled", current: storedOrder(model.OrderStatusCancelled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture(nil)

			f.orders.On("BeginTx", ctx).Return(f.tx, nil)
			f.orders.On("TransitionStatus", ctx, f.tx, "cs_test_1", model.OrderStatusPending, model.OrderStatusPaid).Return(nil, nil)
			f.tx.On("Rollback", ctx).Return(nil)
			if tt.current == nil {
				f.orders.On("GetBySessionRef", ctx, "cs_test_1").Return(nil, nil)
			} else {
				f.orders.On("GetBySessionRef", ctx, "cs_test_1").Return(tt.current, nil)
			}
			f.incidents.On("Record", ctx, mock.MatchedBy(func(inc *incident.Incident) bool {
				return inc.Kind == incident.KindReconciliation && inc.SessionRef == "cs_test_1"
			})).Return(nil)

			order, err := f.service.ConfirmPaid(ctx, "cs_test_1")

			assert.ErrorIs(t, err, model.ErrReconciliation)
			assert.Nil(t, order)
			f.incidents.AssertExpectations(t)
		})
	}
}

func TestOrderService_ConfirmPaid_RecorderFailureStillReturnsReconciliation(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("TransitionStatus", ctx, f.tx, "cs_lost", model.OrderStatusPending, model.OrderStatusPaid).Return(nil, nil)
	f.tx.On("Rollback", ctx).Return(nil)
	f.orders.On("GetBySessionRef", ctx, "cs_lost").Return(nil, nil)
	f.incidents.On("Record", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := f.service.ConfirmPaid(ctx, "cs_lost")
	assert.ErrorIs(t, err, model.ErrReconciliation)
}

func TestOrderService_ConfirmPaid_OutboxFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	paid := storedOrder(model.OrderStatusPaid)

	f.orders.On("BeginTx", ctx).Return(f.tx, nil)
	f.orders.On("TransitionStatus", ctx, f.tx, "cs_test_1", model.OrderStatusPending, model.OrderStatusPaid).Return(paid, nil)
	f.outbox.On("Insert", ctx, f.tx, mock.Anything).Return(errors.New("insert failed"))
	f.tx.On("Rollback", ctx).Return(nil)

	_, err := f.service.ConfirmPaid(ctx, "cs_test_1")

	require.Error(t, err)
	assert.True(t, f.tx.rolledBack)
	assert.False(t, f.tx.committed)
}

func TestOrderService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending order is cancelled", func(t *testing.T) {
		f := newLedgerFixture(nil)
		cancelled := storedOrder(model.OrderStatusCancelled)

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("TransitionStatus", ctx, f.tx, "cs_test_1", model.OrderStatusPending, model.OrderStatusCancelled).Return(cancelled, nil)
		f.outbox.On("Insert", ctx, f.tx, mock.MatchedBy(func(e *model.OutboxEvent) bool {
			return e.Type == model.EventOrderCancelled
		})).Return(nil)
		f.tx.On("Commit", ctx).Return(nil)
		f.orders.On("GetByID", ctx, cancelled.ID).Return(cancelled, nil)

		order, err := f.service.Cancel(ctx, "cs_test_1")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, order.Status)
	})

	t.Run("Paid order cannot be cancelled", func(t *testing.T) {
		f := newLedgerFixture(nil)

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("TransitionStatus", ctx, f.tx, "cs_test_1", model.OrderStatusPending, model.OrderStatusCancelled).Return(nil, nil)
		f.tx.On("Rollback", ctx).Return(nil)
		f.orders.On("GetBySessionRef", ctx, "cs_test_1").Return(storedOrder(model.OrderStatusPaid), nil)

		order, err := f.service.Cancel(ctx, "cs_test_1")
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		assert.Nil(t, order)
	})

	t.Run("Already cancelled is a no-op", func(t *testing.T) {
		f := newLedgerFixture(nil)
		cancelled := storedOrder(model.OrderStatusCancelled)

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("TransitionStatus", ctx, f.tx, "cs_test_1", model.OrderStatusPending, model.OrderStatusCancelled).Return(nil, nil)
		f.tx.On("Rollback", ctx).Return(nil)
		f.orders.On("GetBySessionRef", ctx, "cs_test_1").Return(cancelled, nil)
		f.orders.On("GetByID", ctx, cancelled.ID).Return(cancelled, nil)

		order, err := f.service.Cancel(ctx, "cs_test_1")
		require.NoError(t, err)
		assert.Equal(t, cancelled.ID, order.ID)
	})

	t.Run("Unknown session", func(t *testing.T) {
		f := newLedgerFixture(nil)

		f.orders.On("BeginTx", ctx).Return(f.tx, nil)
		f.orders.On("TransitionStatus", ctx, f.tx, "cs_missing", model.OrderStatusPending, model.OrderStatusCancelled).Return(nil, nil)
		f.tx.On("Rollback", ctx).Return(nil)
		f.orders.On("GetBySessionRef", ctx, "cs_missing").Return(nil, nil)

		_, err := f.service.Cancel(ctx, "cs_missing")
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})
}

func TestOrderService_GetByID_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	order := storedOrder(model.OrderStatusPaid)
	f.orders.On("GetByID", ctx, order.ID).Return(order, nil)

	got, err := f.service.GetByID(ctx, "cust-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order, got)

	_, err = f.service.GetByID(ctx, "cust-2", order.ID)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	_, err = f.service.GetByID(ctx, "", order.ID)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestOrderService_FindByCustomer(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(nil)

	orders := []model.Order{*storedOrder(model.OrderStatusPaid), *storedOrder(model.OrderStatusPending)}
	f.orders.On("ListByCustomer", ctx, "cust-1").Return(orders, nil)

	got, err := f.service.FindByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, orders, got)
}

func TestOrderService_HasPurchased(t *testing.T) {
	ctx := context.Background()

	t.Run("Delegates to repository", func(t *testing.T) {
		f := newLedgerFixture(nil)
		f.orders.On("HasPaidOrderWithProduct", ctx, "cust-1", "chairA").Return(true, nil)

		purchased, err := f.service.HasPurchased(ctx, "cust-1", "chairA")
		require.NoError(t, err)
		assert.True(t, purchased)
	})

	t.Run("Anonymous customer never purchased", func(t *testing.T) {
		f := newLedgerFixture(nil)

		purchased, err := f.service.HasPurchased(ctx, "", "chairA")
		require.NoError(t, err)
		assert.False(t, purchased)
		f.orders.AssertNotCalled(t, "HasPaidOrderWithProduct", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Repository error", func(t *testing.T) {
		f := newLedgerFixture(nil)
		f.orders.On("HasPaidOrderWithProduct", ctx, "cust-1", "chairA").Return(false, errors.New("timeout"))

		_, err := f.service.HasPurchased(ctx, "cust-1", "chairA")
		assert.Error(t, err)
	})
}
