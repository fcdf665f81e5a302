package service

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// ProductService defines read operations on the catalog.
type ProductService interface {
	// GetAll retrieves all products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// CartService defines operations on a shopper session's cart.
type CartService interface {
	Get(ctx context.Context, sessionID string) (*model.CartResponse, error)

	// AddItem resolves productRef against the catalog and adds quantity of it.
	AddItem(ctx context.Context, sessionID, productRef string, quantity int) (*model.CartResponse, error)

	// UpdateQuantity sets an absolute quantity; zero or less removes the item.
	UpdateQuantity(ctx context.Context, sessionID, productRef string, quantity int) (*model.CartResponse, error)

	RemoveItem(ctx context.Context, sessionID, productRef string) (*model.CartResponse, error)

	Clear(ctx context.Context, sessionID string) (*model.CartResponse, error)

	// Watch streams the cart as written by other views of the session until
	// ctx is done.
	Watch(ctx context.Context, sessionID string) (<-chan *model.CartResponse, error)
}

// CheckoutService orchestrates checkout sessions between the cart, the
// payment gateway and the order ledger.
type CheckoutService interface {
	// Checkout prices the session's cart, opens a gateway session and records
	// a pending order. The cart is left untouched.
	Checkout(ctx context.Context, customerRef, sessionID string) (*model.CheckoutResponse, error)

	// Confirm verifies payment for gatewaySessionRef with the gateway,
	// confirms the order and clears the cart.
	Confirm(ctx context.Context, customerRef, sessionID, gatewaySessionRef string) (*model.Order, error)

	// Cancel cancels the pending order for gatewaySessionRef.
	Cancel(ctx context.Context, customerRef, gatewaySessionRef string) (*model.Order, error)

	// HandleEvent processes a signed gateway webhook delivery.
	HandleEvent(ctx context.Context, payload []byte, signature string) error
}

// OrderService is the order ledger.
type OrderService interface {
	// RecordPending stores a new pending order after verifying its amounts.
	RecordPending(ctx context.Context, customerRef string, items []model.OrderItem, totals model.Totals, gatewaySessionRef string) (*model.Order, error)

	// ConfirmPaid moves the order for gatewaySessionRef from pending to paid.
	// Confirming an already paid order returns it unchanged.
	ConfirmPaid(ctx context.Context, gatewaySessionRef string) (*model.Order, error)

	// Cancel moves the order for gatewaySessionRef from pending to cancelled.
	Cancel(ctx context.Context, gatewaySessionRef string) (*model.Order, error)

	// FindByCustomer returns the customer's orders, newest first.
	FindByCustomer(ctx context.Context, customerRef string) ([]model.Order, error)

	// GetByID returns an order owned by customerRef.
	GetByID(ctx context.Context, customerRef string, id uuid.UUID) (*model.Order, error)

	GetBySessionRef(ctx context.Context, gatewaySessionRef string) (*model.Order, error)

	// HasPurchased reports whether the customer has a paid order containing
	// productRef.
	HasPurchased(ctx context.Context, customerRef, productRef string) (bool, error)
}

// PurchaseVerifier answers whether a customer bought a product.
type PurchaseVerifier interface {
	HasPurchased(ctx context.Context, customerRef, productRef string) (bool, error)
}

// ReviewService defines review submission, moderation and reads.
type ReviewService interface {
	// Submit stores an unpublished review if the customer purchased the
	// product and has not reviewed it yet.
	Submit(ctx context.Context, customerRef string, req *model.ReviewRequest) (*model.Review, error)

	Moderate(ctx context.Context, id uuid.UUID, req *model.ModerationRequest) (*model.Review, error)

	ListForProduct(ctx context.Context, productRef string, limit, offset int) ([]model.Review, error)

	ListFeatured(ctx context.Context, limit int) ([]model.Review, error)
}
