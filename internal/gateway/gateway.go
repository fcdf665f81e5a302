// Package gateway adapts the external payment provider.
package gateway

import (
	"context"

	"storefront/internal/model"
)

// Event types delivered by the provider's webhook.
const (
	EventSessionCompleted = "checkout.session.completed"
	EventSessionExpired   = "checkout.session.expired"
)

// Gateway creates checkout sessions and reports their payment state.
type Gateway interface {
	// CreateSession submits a priced request and returns the redirect handle.
	// Failures are returned as model.ErrGateway with the provider's message.
	CreateSession(ctx context.Context, req *model.GatewayRequest) (*model.GatewaySession, error)

	// GetSession fetches the current payment state of a session.
	GetSession(ctx context.Context, sessionRef string) (*model.PaymentOutcome, error)
}

// Event is a verified webhook notification. Outcome is nil for event types
// this service does not act on.
type Event struct {
	ID      string
	Type    string
	Outcome *model.PaymentOutcome
}

// EventVerifier authenticates and decodes webhook payloads.
type EventVerifier interface {
	ParseEvent(payload []byte, signature string) (*Event, error)
}
