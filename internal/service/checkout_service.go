package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/gateway"
	"storefront/internal/metrics"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// checkoutService implements CheckoutService.
type checkoutService struct {
	builder  *checkout.Builder
	gateway  gateway.Gateway
	verifier gateway.EventVerifier
	ledger   OrderService
	backend  cart.Backend
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewCheckoutService creates a checkout service.
func NewCheckoutService(
	builder *checkout.Builder,
	gw gateway.Gateway,
	verifier gateway.EventVerifier,
	ledger OrderService,
	backend cart.Backend,
	m *metrics.Metrics,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		builder:  builder,
		gateway:  gw,
		verifier: verifier,
		ledger:   ledger,
		backend:  backend,
		metrics:  m,
		logger:   logger.With().Str("service", "checkout").Logger(),
	}
}

// Checkout prices the cart, opens a gateway session and records a pending
// order for it. Gateway failures surface immediately and are not retried.
func (s *checkoutService) Checkout(ctx context.Context, customerRef, sessionID string) (*model.CheckoutResponse, error) {
	if customerRef == "" {
		return nil, model.ErrUnauthenticated
	}
	if sessionID == "" {
		return nil, model.ErrMissingSession
	}

	store := cart.Open(ctx, sessionID, s.backend, s.logger)

	req, err := s.builder.Build(ctx, store.Snapshot().Items)
	if err != nil {
		s.metrics.CheckoutOutcome(checkoutOutcome(err))
		s.logger.Info().Err(err).Str("session_id", sessionID).Msg("checkout rejected")
		return nil, err
	}
	req.CustomerRef = customerRef

	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		s.metrics.CheckoutOutcome(checkoutOutcome(err))
		s.logger.Warn().Err(err).Str("customer_ref", customerRef).Msg("gateway rejected checkout session")
		return nil, err
	}

	order, err := s.ledger.RecordPending(ctx, customerRef, orderItems(req.LineItems), req.Totals(), session.ID)
	if err != nil {
		s.metrics.CheckoutOutcome(checkoutOutcome(err))
		s.logger.Error().
			Err(err).
			Str("gateway_session_ref", session.ID).
			Msg("failed to record pending order for created session")
		return nil, err
	}

	s.metrics.CheckoutOutcome("created")
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("gateway_session_ref", session.ID).
		Str("customer_ref", customerRef).
		Msg("checkout session created")

	return &model.CheckoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	}, nil
}

// Confirm handles the shopper's success callback. Payment is verified with
// the gateway before the ledger is touched; the cart is cleared only after
// the order is paid.
func (s *checkoutService) Confirm(ctx context.Context, customerRef, sessionID, gatewaySessionRef string) (*model.Order, error) {
	if customerRef == "" {
		return nil, model.ErrUnauthenticated
	}
	if gatewaySessionRef == "" {
		return nil, model.NewValidationError("sessionId is required")
	}

	outcome, err := s.gateway.GetSession(ctx, gatewaySessionRef)
	if err != nil {
		return nil, err
	}
	if outcome.Status != model.PaymentStatusPaid {
		s.logger.Info().
			Str("gateway_session_ref", gatewaySessionRef).
			Str("payment_status", string(outcome.Status)).
			Msg("success callback for unpaid session")
		return nil, model.ErrPaymentIncomplete
	}

	order, err := s.ledger.ConfirmPaid(ctx, gatewaySessionRef)
	if err != nil {
		return nil, err
	}

	if order.CustomerRef != customerRef {
		s.logger.Warn().
			Str("order_id", order.ID.String()).
			Str("customer_ref", customerRef).
			Msg("success callback from a different customer")
		return nil, model.ErrOrderNotFound
	}

	if sessionID != "" {
		cart.Open(ctx, sessionID, s.backend, s.logger).Clear(ctx)
	}

	return order, nil
}

// Cancel handles the shopper's cancel callback. The cart is left intact so
// the shopper can retry.
func (s *checkoutService) Cancel(ctx context.Context, customerRef, gatewaySessionRef string) (*model.Order, error) {
	if customerRef == "" {
		return nil, model.ErrUnauthenticated
	}
	if gatewaySessionRef == "" {
		return nil, model.NewValidationError("sessionId is required")
	}

	current, err := s.ledger.GetBySessionRef(ctx, gatewaySessionRef)
	if err != nil {
		return nil, err
	}
	if current.CustomerRef != customerRef {
		return nil, model.ErrOrderNotFound
	}

	return s.ledger.Cancel(ctx, gatewaySessionRef)
}

// HandleEvent applies a verified gateway notification to the ledger.
// Reconciliation failures are acknowledged because they are already logged
// and archived; redelivery would not resolve them.
func (s *checkoutService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.verifier.ParseEvent(payload, signature)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejected gateway event")
		return err
	}

	log := s.logger.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	if event.Outcome == nil {
		log.Debug().Msg("ignoring gateway event")
		return nil
	}

	sessionRef := event.Outcome.SessionRef

	switch event.Type {
	case gateway.EventSessionCompleted:
		if event.Outcome.Status != model.PaymentStatusPaid {
			log.Info().Str("gateway_session_ref", sessionRef).Msg("completed session is not paid yet")
			return nil
		}
		_, err = s.ledger.ConfirmPaid(ctx, sessionRef)
		if isReconciliation(err) {
			return nil
		}
		return err

	case gateway.EventSessionExpired:
		_, err = s.ledger.Cancel(ctx, sessionRef)
		switch {
		case errors.Is(err, model.ErrOrderNotFound), errors.Is(err, model.ErrInvalidTransition):
			log.Warn().Err(err).Str("gateway_session_ref", sessionRef).Msg("expired session does not match a pending order")
			return nil
		case err != nil:
			return fmt.Errorf("failed to cancel expired session: %w", err)
		}
		return nil

	default:
		log.Debug().Msg("ignoring gateway event")
		return nil
	}
}

// orderItems converts priced checkout lines into ledger lines.
func orderItems(lines []model.CheckoutLineItem) []model.OrderItem {
	items := make([]model.OrderItem, len(lines))
	for i, li := range lines {
		items[i] = model.OrderItem{
			ProductRef: li.ProductRef,
			Quantity:   li.Quantity,
			UnitPrice:  model.Money(li.UnitPriceMinorUnits),
			LineTotal:  li.LineTotal(),
		}
	}
	return items
}

func checkoutOutcome(err error) string {
	switch {
	case errors.Is(err, model.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, model.ErrNoValidItems):
		return "no_valid_items"
	case errors.Is(err, model.ErrGateway):
		return "gateway_error"
	default:
		return "error"
	}
}
