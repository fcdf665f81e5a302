package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	orderColumns = `id, order_number, status, customer_ref, subtotal, tax, shipping, total, gateway_session_ref, created_at, updated_at`

	orderNumberConstraint = "orders_order_number_key"
)

// ErrDuplicateOrderNumber is returned by CreateOrder when the generated order
// number is already taken. The transaction is aborted and must be rolled back.
var ErrDuplicateOrderNumber = errors.New("order number already exists")

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (id, order_number, status, customer_ref, subtotal, tax, shipping, total, gateway_session_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := tx.Exec(ctx, query,
		order.ID,
		order.OrderNumber,
		string(order.Status),
		order.CustomerRef,
		int64(order.Subtotal),
		int64(order.Tax),
		int64(order.Shipping),
		int64(order.Total),
		order.GatewaySessionRef,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == orderNumberConstraint {
			r.logger.Warn().
				Str("order_id", order.ID.String()).
				Str("order_number", order.OrderNumber).
				Msg("order number already taken")
			return ErrDuplicateOrderNumber
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, position, product_ref, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			item.ID,
			item.OrderID,
			item.Position,
			item.ProductRef,
			item.Quantity,
			int64(item.UnitPrice),
			int64(item.LineTotal),
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_ref", items[i].ProductRef).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// TransitionStatus performs a conditional status update keyed by gateway
// session. Concurrent callers race on the WHERE clause, so at most one
// observes the transition.
func (r *orderRepository) TransitionStatus(ctx context.Context, tx pgx.Tx, sessionRef string, from, to model.OrderStatus) (*model.Order, error) {
	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE gateway_session_ref = $1 AND status = $2
		RETURNING ` + orderColumns

	order, err := scanOrder(tx.QueryRow(ctx, query, sessionRef, string(from), string(to)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().
			Err(err).
			Str("gateway_session_ref", sessionRef).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("failed to transition order status")
		return nil, fmt.Errorf("failed to transition order status: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("order status transitioned")

	return order, nil
}

// GetBySessionRef retrieves an order header by gateway session.
func (r *orderRepository) GetBySessionRef(ctx context.Context, sessionRef string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_session_ref = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, sessionRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("gateway_session_ref", sessionRef).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("gateway_session_ref", sessionRef).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.itemsFor(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	if found, ok := items[order.ID]; ok {
		order.Items = found
	}

	return order, nil
}

// ListByCustomer retrieves a customer's orders with items, newest first.
func (r *orderRepository) ListByCustomer(ctx context.Context, customerRef string) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_ref = $1
		ORDER BY created_at DESC, order_number DESC`

	rows, err := r.pool.Query(ctx, query, customerRef)
	if err != nil {
		r.logger.Error().Err(err).Str("customer_ref", customerRef).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	ids := []uuid.UUID{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if found, ok := items[orders[i].ID]; ok {
			orders[i].Items = found
		}
	}

	return orders, nil
}

// HasPaidOrderWithProduct reports whether the customer has a paid order
// containing productRef.
func (r *orderRepository) HasPaidOrderWithProduct(ctx context.Context, customerRef, productRef string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.customer_ref = $1
			  AND oi.product_ref = $2
			  AND o.status = 'paid'
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, customerRef, productRef).Scan(&exists); err != nil {
		r.logger.Error().
			Err(err).
			Str("customer_ref", customerRef).
			Str("product_ref", productRef).
			Msg("failed to check purchase")
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}

	return exists, nil
}

func (r *orderRepository) itemsFor(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	query := `
		SELECT id, order_id, position, product_ref, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		r.logger.Error().Err(err).Int("orders", len(orderIDs)).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item                 model.OrderItem
			unitPrice, lineTotal int64
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Position, &item.ProductRef, &item.Quantity, &unitPrice, &lineTotal); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.UnitPrice = model.Money(unitPrice)
		item.LineTotal = model.Money(lineTotal)
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		order                          model.Order
		status                         string
		subtotal, tax, shipping, total int64
	)
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&status,
		&order.CustomerRef,
		&subtotal,
		&tax,
		&shipping,
		&total,
		&order.GatewaySessionRef,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Items = []model.OrderItem{}
	order.Status = model.OrderStatus(status)
	order.Subtotal = model.Money(subtotal)
	order.Tax = model.Money(tax)
	order.Shipping = model.Money(shipping)
	order.Total = model.Money(total)

	return &order, nil
}
