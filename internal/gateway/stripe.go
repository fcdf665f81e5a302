package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// StripeGateway implements Gateway and EventVerifier with Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        zerolog.Logger
}

// NewStripeGateway creates a Stripe-backed gateway. Network retries in the
// Stripe client are disabled; a failed session creation is reported to the
// shopper instead of being replayed.
func NewStripeGateway(secretKey, webhookSecret string, logger zerolog.Logger) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	backends := &stripe.Backends{
		API:     backend,
		Connect: stripe.GetBackend(stripe.ConnectBackend),
		Uploads: stripe.GetBackend(stripe.UploadsBackend),
	}
	return newStripeGateway(client.New(secretKey, backends), webhookSecret, logger)
}

func newStripeGateway(api *client.API, webhookSecret string, logger zerolog.Logger) *StripeGateway {
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        logger.With().Str("component", "stripe_gateway").Logger(),
	}
}

// CreateSession creates a Stripe Checkout Session in payment mode.
func (g *StripeGateway) CreateSession(ctx context.Context, req *model.GatewayRequest) (*model.GatewaySession, error) {
	params := buildSessionParams(req)
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Error().Err(err).Int("line_items", len(req.LineItems)).Msg("failed to create checkout session")
		return nil, asGatewayError(err)
	}

	g.logger.Info().
		Str("gateway_session_ref", sess.ID).
		Int("line_items", len(req.LineItems)).
		Msg("checkout session created")

	return &model.GatewaySession{
		ID:          sess.ID,
		RedirectURL: sess.URL,
	}, nil
}

// GetSession retrieves a Checkout Session and maps its payment state.
func (g *StripeGateway) GetSession(ctx context.Context, sessionRef string) (*model.PaymentOutcome, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.Get(sessionRef, params)
	if err != nil {
		g.logger.Error().Err(err).Str("gateway_session_ref", sessionRef).Msg("failed to retrieve checkout session")
		return nil, asGatewayError(err)
	}

	return outcomeFor(sess), nil
}

// ParseEvent verifies the webhook signature and decodes session events.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, model.NewValidationError("webhook secret is not configured")
	}

	// Endpoints pinned to another API version still deliver checkout
	// sessions whose id and payment_status this adapter reads.
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("rejected webhook payload")
		return nil, model.NewValidationError("invalid webhook signature")
	}
	if event.APIVersion != "" && event.APIVersion != stripe.APIVersion {
		g.logger.Info().
			Str("event_id", event.ID).
			Str("event_api_version", event.APIVersion).
			Str("library_api_version", stripe.APIVersion).
			Msg("webhook API version differs from library version")
	}

	result := &Event{ID: event.ID, Type: string(event.Type)}

	switch result.Type {
	case EventSessionCompleted, EventSessionExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, model.NewValidationError("invalid checkout session payload")
		}
		if sess.ID == "" {
			return nil, model.NewValidationError("checkout session payload has no id")
		}
		outcome := outcomeFor(&sess)
		if result.Type == EventSessionExpired {
			outcome.Status = model.PaymentStatusExpired
		}
		result.Outcome = outcome
	}

	return result, nil
}

func buildSessionParams(req *model.GatewayRequest) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(li.DisplayName),
			Metadata: map[string]string{"product_ref": li.ProductRef},
		}
		if li.DisplayDescription != "" {
			productData.Description = stripe.String(li.DisplayDescription)
		}
		if li.DisplayImageURL != nil {
			productData.Images = stripe.StringSlice([]string{*li.DisplayImageURL})
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(li.UnitPriceMinorUnits),
				ProductData: productData,
			},
			Quantity: stripe.Int64(int64(li.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.AllowedShippingCountries),
		},
	}
	if req.CustomerRef != "" {
		params.ClientReferenceID = stripe.String(req.CustomerRef)
	}
	return params
}

func outcomeFor(sess *stripe.CheckoutSession) *model.PaymentOutcome {
	outcome := &model.PaymentOutcome{
		SessionRef: sess.ID,
		Status:     model.PaymentStatusUnpaid,
	}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		outcome.Status = model.PaymentStatusPaid
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		outcome.Status = model.PaymentStatusExpired
	}
	return outcome
}

// asGatewayError keeps the provider's human-readable message.
func asGatewayError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return model.NewGatewayError(stripeErr.Msg, err)
	}
	return model.NewGatewayError(fmt.Sprintf("payment provider unavailable: %v", err), err)
}

// isClientRejection reports whether Stripe answered with a 4xx, meaning the
// provider itself is healthy.
func isClientRejection(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500
}
