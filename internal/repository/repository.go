package repository

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines read access to the catalog.
type ProductRepository interface {
	// GetAll retrieves products ordered by title with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil if not found.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// OrderRepository defines the interface for order ledger data access.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// TransitionStatus moves the order for sessionRef from one status to
	// another. It returns nil when no order is currently in the from status.
	TransitionStatus(ctx context.Context, tx pgx.Tx, sessionRef string, from, to model.OrderStatus) (*model.Order, error)

	// GetBySessionRef retrieves an order header by gateway session. Returns nil if not found.
	GetBySessionRef(ctx context.Context, sessionRef string) (*model.Order, error)

	// GetByID retrieves an order by its ID along with its items. Returns nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// ListByCustomer retrieves a customer's orders with items, newest first.
	ListByCustomer(ctx context.Context, customerRef string) ([]model.Order, error)

	// HasPaidOrderWithProduct reports whether the customer has a paid order
	// containing productRef.
	HasPaidOrderWithProduct(ctx context.Context, customerRef, productRef string) (bool, error)
}

// ReviewRepository defines the interface for review data access.
type ReviewRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Exists reports whether the customer already reviewed the product.
	Exists(ctx context.Context, customerRef, productRef string) (bool, error)

	// Create inserts a review. A second review for the same customer and
	// product returns model.ErrAlreadyReviewed.
	Create(ctx context.Context, tx pgx.Tx, review *model.Review) error

	// GetByID retrieves a review. Returns nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Review, error)

	// SetModeration updates the published and featured flags. Returns nil if not found.
	SetModeration(ctx context.Context, id uuid.UUID, published, featured bool) (*model.Review, error)

	// ListPublishedByProduct retrieves published reviews for a product, newest first.
	ListPublishedByProduct(ctx context.Context, productRef string, limit, offset int) ([]model.Review, error)

	// ListFeatured retrieves published, featured reviews, newest first.
	ListFeatured(ctx context.Context, limit int) ([]model.Review, error)
}

// OutboxRepository defines access to the transactional event outbox.
type OutboxRepository interface {
	// Insert stores an event within the provided transaction.
	Insert(ctx context.Context, tx pgx.Tx, event *model.OutboxEvent) error

	// FetchPending retrieves unsent events in insertion order.
	FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)

	// MarkSent flags events as delivered.
	MarkSent(ctx context.Context, ids []int64) error
}
