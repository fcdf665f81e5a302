package events

import (
	"context"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

const defaultBatchSize = 100

// OutboxStore reads and acknowledges outbox rows.
type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []int64) error
}

// Relay polls the outbox and publishes pending events. An event is marked
// sent only after the broker accepts it, so delivery is at least once.
type Relay struct {
	store     OutboxStore
	publisher Publisher
	topics    Topics
	interval  time.Duration
	batchSize int
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewRelay creates an outbox relay.
func NewRelay(store OutboxStore, publisher Publisher, topics Topics, interval time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		topics:    topics,
		interval:  interval,
		batchSize: defaultBatchSize,
		metrics:   m,
		logger:    logger.With().Str("component", "outbox-relay").Logger(),
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("outbox relay started")

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("outbox relay cycle failed")
			}
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return
		}
	}
}

// RunOnce relays one batch and returns the number of events marked sent.
// Events that fail to publish stay pending for the next cycle.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := make([]int64, 0, len(pending))
	for _, event := range pending {
		topic := r.topics.For(event.Type)
		if topic == "" {
			r.logger.Warn().Str("event_type", event.Type).Int64("outbox_id", event.ID).Msg("no topic for event type, leaving pending")
			r.metrics.OutboxRelayed(event.Type, "unrouted")
			continue
		}

		if err := r.publisher.Publish(ctx, topic, event); err != nil {
			r.logger.Error().
				Err(err).
				Str("event_type", event.Type).
				Str("event_id", event.EventID.String()).
				Msg("failed to publish outbox event")
			r.metrics.OutboxRelayed(event.Type, "failed")
			continue
		}

		r.metrics.OutboxRelayed(event.Type, "sent")
		sent = append(sent, event.ID)
	}

	if len(sent) == 0 {
		return 0, nil
	}

	if err := r.store.MarkSent(ctx, sent); err != nil {
		r.logger.Error().Err(err).Int("count", len(sent)).Msg("failed to mark outbox events sent")
		return 0, err
	}

	r.logger.Debug().Int("count", len(sent)).Msg("outbox events relayed")
	return len(sent), nil
}
