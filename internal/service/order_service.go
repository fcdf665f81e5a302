package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/incident"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ledgerRecordPending = "record_pending"
	ledgerConfirmPaid   = "confirm_paid"
	ledgerCancel        = "cancel"

	resultOK             = "ok"
	resultNoop           = "noop"
	resultRejected       = "rejected"
	resultReconciliation = "reconciliation"
	resultError          = "error"

	orderNumberDigits   = 12
	orderNumberAttempts = 3
)

// orderService implements OrderService.
type orderService struct {
	orderRepo  repository.OrderRepository
	outboxRepo repository.OutboxRepository
	incidents  incident.Recorder
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewOrderService creates the order ledger service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	outboxRepo repository.OutboxRepository,
	incidents incident.Recorder,
	m *metrics.Metrics,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		incidents:  incidents,
		metrics:    m,
		logger:     logger.With().Str("service", "order").Logger(),
		now:        time.Now,
	}
}

// orderEvent is the outbox payload for order status changes.
type orderEvent struct {
	OrderID           uuid.UUID         `json:"orderId"`
	OrderNumber       string            `json:"orderNumber"`
	CustomerRef       string            `json:"customerId"`
	Status            model.OrderStatus `json:"status"`
	Total             model.Money       `json:"total"`
	GatewaySessionRef string            `json:"gatewaySessionId"`
}

// RecordPending stores a new pending order. Amounts are recomputed and any
// mismatch rejects the write before it reaches the database.
func (s *orderService) RecordPending(
	ctx context.Context,
	customerRef string,
	items []model.OrderItem,
	totals model.Totals,
	gatewaySessionRef string,
) (*model.Order, error) {
	if customerRef == "" {
		return nil, model.ErrUnauthenticated
	}
	if gatewaySessionRef == "" {
		return nil, model.NewValidationError("gateway session reference is required")
	}
	if len(items) == 0 {
		return nil, model.NewValidationError("order must contain at least one item")
	}

	if err := s.verifyAmounts(items, totals); err != nil {
		s.logger.Error().
			Err(err).
			Str("event", "data_integrity").
			Str("customer_ref", customerRef).
			Str("gateway_session_ref", gatewaySessionRef).
			Msg("rejected inconsistent order")
		s.metrics.LedgerOperation(ledgerRecordPending, resultRejected)
		return nil, err
	}

	now := s.now().UTC()
	sessionRef := gatewaySessionRef
	order := &model.Order{
		ID:                uuid.New(),
		Status:            model.OrderStatusPending,
		CustomerRef:       customerRef,
		Subtotal:          totals.Subtotal,
		Tax:               totals.Tax,
		Shipping:          totals.Shipping,
		Total:             totals.Total,
		GatewaySessionRef: &sessionRef,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	order.Items = make([]model.OrderItem, len(items))
	for i, item := range items {
		item.ID = uuid.New()
		item.OrderID = order.ID
		item.Position = i
		order.Items[i] = item
	}

	// A colliding order number aborts the transaction, so each attempt
	// starts a new one.
	var err error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order.OrderNumber = newOrderNumber()
		err = s.insertOrder(ctx, order)
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			break
		}
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Int("attempt", attempt).
			Msg("order number collision, regenerating")
	}
	if err != nil {
		s.metrics.LedgerOperation(ledgerRecordPending, resultError)
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	s.metrics.LedgerOperation(ledgerRecordPending, resultOK)
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("gateway_session_ref", gatewaySessionRef).
		Int("item_count", len(order.Items)).
		Int64("total", int64(order.Total)).
		Msg("pending order recorded")

	return order, nil
}

// ConfirmPaid transitions the session's order from pending to paid. The
// guarded update makes repeated or racing confirmations converge: only one
// caller performs the transition, the rest observe an already paid order.
func (s *orderService) ConfirmPaid(ctx context.Context, gatewaySessionRef string) (*model.Order, error) {
	if gatewaySessionRef == "" {
		return nil, model.NewValidationError("gateway session reference is required")
	}

	transitioned, err := s.transition(ctx, gatewaySessionRef, model.OrderStatusPaid, model.EventOrderPaid)
	if err != nil {
		s.metrics.LedgerOperation(ledgerConfirmPaid, resultError)
		return nil, err
	}

	if transitioned != nil {
		s.metrics.LedgerOperation(ledgerConfirmPaid, resultOK)
		s.logger.Info().
			Str("order_id", transitioned.ID.String()).
			Str("gateway_session_ref", gatewaySessionRef).
			Msg("order confirmed paid")
		return s.withItems(ctx, transitioned)
	}

	current, err := s.orderRepo.GetBySessionRef(ctx, gatewaySessionRef)
	if err != nil {
		s.metrics.LedgerOperation(ledgerConfirmPaid, resultError)
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	switch {
	case current == nil:
		return nil, s.reconciliationFailure(ctx, gatewaySessionRef, "no order recorded for session", nil)
	case current.Status == model.OrderStatusPaid:
		s.metrics.LedgerOperation(ledgerConfirmPaid, resultNoop)
		s.logger.Debug().
			Str("order_id", current.ID.String()).
			Str("gateway_session_ref", gatewaySessionRef).
			Msg("order already paid")
		return s.withItems(ctx, current)
	default:
		return nil, s.reconciliationFailure(ctx, gatewaySessionRef,
			fmt.Sprintf("order is %s, not pending", current.Status), current)
	}
}

// Cancel transitions the session's order from pending to cancelled. Paid
// orders are never cancelled here.
func (s *orderService) Cancel(ctx context.Context, gatewaySessionRef string) (*model.Order, error) {
	if gatewaySessionRef == "" {
		return nil, model.NewValidationError("gateway session reference is required")
	}

	transitioned, err := s.transition(ctx, gatewaySessionRef, model.OrderStatusCancelled, model.EventOrderCancelled)
	if err != nil {
		s.metrics.LedgerOperation(ledgerCancel, resultError)
		return nil, err
	}

	if transitioned != nil {
		s.metrics.LedgerOperation(ledgerCancel, resultOK)
		s.logger.Info().
			Str("order_id", transitioned.ID.String()).
			Str("gateway_session_ref", gatewaySessionRef).
			Msg("order cancelled")
		return s.withItems(ctx, transitioned)
	}

	current, err := s.orderRepo.GetBySessionRef(ctx, gatewaySessionRef)
	if err != nil {
		s.metrics.LedgerOperation(ledgerCancel, resultError)
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	switch {
	case current == nil:
		s.metrics.LedgerOperation(ledgerCancel, resultRejected)
		return nil, model.ErrOrderNotFound
	case current.Status == model.OrderStatusCancelled:
		s.metrics.LedgerOperation(ledgerCancel, resultNoop)
		return s.withItems(ctx, current)
	default:
		s.metrics.LedgerOperation(ledgerCancel, resultRejected)
		s.logger.Warn().
			Str("order_id", current.ID.String()).
			Str("status", string(current.Status)).
			Msg("refusing to cancel order")
		return nil, model.ErrInvalidTransition
	}
}

// FindByCustomer returns the customer's orders, newest first.
func (s *orderService) FindByCustomer(ctx context.Context, customerRef string) ([]model.Order, error) {
	if customerRef == "" {
		return nil, model.ErrUnauthenticated
	}

	orders, err := s.orderRepo.ListByCustomer(ctx, customerRef)
	if err != nil {
		s.logger.Error().Err(err).Str("customer_ref", customerRef).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

// GetByID returns an order owned by customerRef. Orders of other customers
// are reported as not found.
func (s *orderService) GetByID(ctx context.Context, customerRef string, id uuid.UUID) (*model.Order, error) {
	if customerRef == "" {
		return nil, model.ErrUnauthenticated
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order == nil || order.CustomerRef != customerRef {
		return nil, model.ErrOrderNotFound
	}

	return order, nil
}

// GetBySessionRef returns the order header recorded for a gateway session.
func (s *orderService) GetBySessionRef(ctx context.Context, gatewaySessionRef string) (*model.Order, error) {
	order, err := s.orderRepo.GetBySessionRef(ctx, gatewaySessionRef)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// HasPurchased reports whether the customer has a paid order containing productRef.
func (s *orderService) HasPurchased(ctx context.Context, customerRef, productRef string) (bool, error) {
	if customerRef == "" || productRef == "" {
		return false, nil
	}

	purchased, err := s.orderRepo.HasPaidOrderWithProduct(ctx, customerRef, productRef)
	if err != nil {
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}

	return purchased, nil
}

// transition performs a guarded pending -> to move and writes the matching
// outbox event in the same transaction. It returns nil when the order was
// not pending.
func (s *orderService) transition(ctx context.Context, sessionRef string, to model.OrderStatus, eventType string) (order *model.Order, err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	order, err = s.orderRepo.TransitionStatus(ctx, tx, sessionRef, model.OrderStatusPending, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if order == nil {
		return nil, nil
	}

	event, err := model.NewOutboxEvent(eventType, order.ID.String(), orderEvent{
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		CustomerRef:       order.CustomerRef,
		Status:            order.Status,
		Total:             order.Total,
		GatewaySessionRef: sessionRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	if err = s.outboxRepo.Insert(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	committed = true

	return order, nil
}

// withItems reloads the order with its line items.
func (s *orderService) withItems(ctx context.Context, order *model.Order) (*model.Order, error) {
	full, err := s.orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if full == nil {
		return order, nil
	}
	return full, nil
}

// reconciliationFailure logs and archives a confirmation that matches no
// pending order.
func (s *orderService) reconciliationFailure(ctx context.Context, sessionRef, reason string, current *model.Order) error {
	s.metrics.LedgerOperation(ledgerConfirmPaid, resultReconciliation)

	event := s.logger.Error().
		Str("event", "reconciliation").
		Str("gateway_session_ref", sessionRef).
		Str("reason", reason)
	if current != nil {
		event = event.Str("order_id", current.ID.String()).Str("status", string(current.Status))
	}
	event.Msg("payment confirmation could not be reconciled")

	if s.incidents != nil {
		inc := incident.NewReconciliation(sessionRef, reason)
		if current != nil {
			inc.Details["order_id"] = current.ID.String()
			inc.Details["order_number"] = current.OrderNumber
			inc.Details["status"] = string(current.Status)
		}
		if err := s.incidents.Record(ctx, inc); err != nil {
			s.logger.Error().Err(err).Str("gateway_session_ref", sessionRef).Msg("failed to record reconciliation incident")
		}
	}

	return model.NewReconciliationError(sessionRef, reason)
}

func (s *orderService) verifyAmounts(items []model.OrderItem, totals model.Totals) error {
	var subtotal model.Money
	for i, item := range items {
		if item.ProductRef == "" {
			return model.NewValidationError("item %d: product reference is required", i)
		}
		if item.Quantity <= 0 {
			return model.NewValidationError("item %d: quantity must be positive", i)
		}
		if item.Quantity > model.MaxItemQuantity {
			return model.NewValidationError("item %d: quantity must not exceed %d", i, model.MaxItemQuantity)
		}
		if item.UnitPrice < 0 {
			return model.NewLedgerIntegrityError("item %d: negative unit price %s", i, item.UnitPrice)
		}
		expected, ok := item.UnitPrice.CheckedTimes(item.Quantity)
		if !ok {
			return model.NewLedgerIntegrityError("item %d: line total for %s × %d overflows", i, item.UnitPrice, item.Quantity)
		}
		if item.LineTotal != expected {
			return model.NewLedgerIntegrityError("item %d: line total %s does not equal %s × %d",
				i, item.LineTotal, item.UnitPrice, item.Quantity)
		}
		if subtotal, ok = subtotal.CheckedAdd(item.LineTotal); !ok {
			return model.NewLedgerIntegrityError("subtotal overflows at item %d", i)
		}
	}

	if totals.Subtotal != subtotal {
		return model.NewLedgerIntegrityError("subtotal %s does not equal sum of line totals %s", totals.Subtotal, subtotal)
	}
	if totals.Tax < 0 || totals.Shipping < 0 {
		return model.NewLedgerIntegrityError("tax and shipping must not be negative")
	}
	expected, ok := totals.Subtotal.CheckedAdd(totals.Tax)
	if ok {
		expected, ok = expected.CheckedAdd(totals.Shipping)
	}
	if !ok {
		return model.NewLedgerIntegrityError("total overflows")
	}
	if totals.Total != expected {
		return model.NewLedgerIntegrityError("total %s does not equal subtotal + tax + shipping = %s", totals.Total, expected)
	}

	return nil
}

// insertOrder writes the order and its items in one transaction.
func (s *orderService) insertOrder(ctx context.Context, order *model.Order) (err error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return err
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return err
	}
	if err = s.orderRepo.CreateOrderItems(ctx, tx, order.Items); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return err
	}
	return nil
}

// newOrderNumber returns ORD- followed by 12 hex digits (48 random bits).
func newOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:orderNumberDigits])
}

// isReconciliation reports whether err is a reconciliation failure.
func isReconciliation(err error) bool {
	return errors.Is(err, model.ErrReconciliation)
}
