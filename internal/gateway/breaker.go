package gateway

import (
	"context"
	"errors"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker around the gateway.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker open.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

// breakerGateway fails fast while the provider is unhealthy. It never
// retries a call.
type breakerGateway struct {
	next    Gateway
	create  *gobreaker.CircuitBreaker[*model.GatewaySession]
	inspect *gobreaker.CircuitBreaker[*model.PaymentOutcome]
	logger  zerolog.Logger
}

// WithBreaker wraps next with circuit breakers for session creation and
// lookup. Provider rejections (declined input, bad request) do not count as
// failures; only transport or provider-side faults do.
func WithBreaker(next Gateway, settings BreakerSettings, logger zerolog.Logger) Gateway {
	logger = logger.With().Str("component", "gateway_breaker").Logger()

	newSettings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
			},
			IsSuccessful: isProviderHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("gateway circuit breaker state changed")
			},
		}
	}

	return &breakerGateway{
		next:    next,
		create:  gobreaker.NewCircuitBreaker[*model.GatewaySession](newSettings("gateway.create_session")),
		inspect: gobreaker.NewCircuitBreaker[*model.PaymentOutcome](newSettings("gateway.get_session")),
		logger:  logger,
	}
}

func (b *breakerGateway) CreateSession(ctx context.Context, req *model.GatewayRequest) (*model.GatewaySession, error) {
	sess, err := b.create.Execute(func() (*model.GatewaySession, error) {
		return b.next.CreateSession(ctx, req)
	})
	return sess, b.translate(err)
}

func (b *breakerGateway) GetSession(ctx context.Context, sessionRef string) (*model.PaymentOutcome, error) {
	outcome, err := b.inspect.Execute(func() (*model.PaymentOutcome, error) {
		return b.next.GetSession(ctx, sessionRef)
	})
	return outcome, b.translate(err)
}

func (b *breakerGateway) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn().Err(err).Msg("gateway call rejected by open circuit")
		return model.NewGatewayError("payment provider is temporarily unavailable, please try again", err)
	}
	return err
}

// isProviderHealthy treats client-side rejections as healthy responses.
func isProviderHealthy(err error) bool {
	if err == nil {
		return true
	}
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == model.ErrCodeGateway {
		return isClientRejection(domainErr.Err)
	}
	return false
}
