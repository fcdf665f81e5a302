package repository

import (
	"context"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// outboxRepository implements the OutboxRepository interface using PostgreSQL.
type outboxRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOutboxRepository creates a new PostgreSQL-backed outbox repository.
func NewOutboxRepository(pool *pgxpool.Pool, logger zerolog.Logger) OutboxRepository {
	return &outboxRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "outbox").Logger(),
	}
}

// Insert stores an event within the provided transaction.
func (r *outboxRepository) Insert(ctx context.Context, tx pgx.Tx, event *model.OutboxEvent) error {
	query := `
		INSERT INTO outbox (event_id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := tx.QueryRow(ctx, query,
		event.EventID,
		event.Type,
		event.AggregateID,
		[]byte(event.Payload),
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("aggregate_id", event.AggregateID).
			Msg("failed to insert outbox event")
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// FetchPending retrieves unsent events in insertion order.
func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	query := `
		SELECT id, event_id, event_type, aggregate_id, payload, created_at, sent_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query pending outbox events")
		return nil, fmt.Errorf("failed to query pending outbox events: %w", err)
	}
	defer rows.Close()

	events := []model.OutboxEvent{}
	for rows.Next() {
		var (
			event   model.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&event.ID, &event.EventID, &event.Type, &event.AggregateID, &payload, &event.CreatedAt, &event.SentAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan outbox row")
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		event.Payload = payload
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating outbox rows")
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}

	return events, nil
}

// MarkSent flags events as delivered.
func (r *outboxRepository) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = ANY($1)`, ids); err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to mark outbox events sent")
		return fmt.Errorf("failed to mark outbox events sent: %w", err)
	}

	return nil
}
