package service

import (
	"context"
	"fmt"

	"storefront/internal/cart"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// cartService implements CartService. Each call opens a fresh view of the
// session's cart so concurrent requests observe the last persisted snapshot.
type cartService struct {
	backend  cart.Backend
	products ProductService
	logger   zerolog.Logger
}

// NewCartService creates a cart service over the given snapshot backend.
func NewCartService(backend cart.Backend, products ProductService, logger zerolog.Logger) CartService {
	return &cartService{
		backend:  backend,
		products: products,
		logger:   logger.With().Str("service", "cart").Logger(),
	}
}

func (s *cartService) Get(ctx context.Context, sessionID string) (*model.CartResponse, error) {
	store, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return renderCart(sessionID, store.Snapshot()), nil
}

// AddItem resolves the product so the cart carries a current snapshot for
// rendering totals.
func (s *cartService) AddItem(ctx context.Context, sessionID, productRef string, quantity int) (*model.CartResponse, error) {
	if productRef == "" {
		return nil, model.NewValidationError("productId is required")
	}
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	store, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productRef)
	if err != nil {
		return nil, err
	}

	store.AddItem(ctx, productRef, cart.Product{
		Title:    product.Title,
		Slug:     product.Slug,
		Price:    product.Price,
		ImageURL: product.ImageURL,
	}, quantity)

	s.logger.Debug().
		Str("session_id", sessionID).
		Str("product_ref", productRef).
		Int("quantity", quantity).
		Msg("item added to cart")

	return renderCart(sessionID, store.Snapshot()), nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, sessionID, productRef string, quantity int) (*model.CartResponse, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	store, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	store.UpdateQuantity(ctx, productRef, quantity)
	return renderCart(sessionID, store.Snapshot()), nil
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID, productRef string) (*model.CartResponse, error) {
	store, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	store.RemoveItem(ctx, productRef)
	return renderCart(sessionID, store.Snapshot()), nil
}

func (s *cartService) Clear(ctx context.Context, sessionID string) (*model.CartResponse, error) {
	store, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	store.Clear(ctx)
	return renderCart(sessionID, store.Snapshot()), nil
}

func (s *cartService) Watch(ctx context.Context, sessionID string) (<-chan *model.CartResponse, error) {
	store, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	updates, err := store.Watch(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to watch cart")
		return nil, fmt.Errorf("failed to watch cart: %w", err)
	}

	out := make(chan *model.CartResponse, 1)
	go func() {
		defer close(out)
		for snapshot := range updates {
			select {
			case out <- renderCart(sessionID, snapshot):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *cartService) open(ctx context.Context, sessionID string) (*cart.Store, error) {
	if sessionID == "" {
		return nil, model.ErrMissingSession
	}
	return cart.Open(ctx, sessionID, s.backend, s.logger), nil
}

// checkQuantity rejects requested quantities above the largest storable line.
// Non-positive quantities are left to the store, which ignores or removes.
func checkQuantity(quantity int) error {
	if quantity > model.MaxItemQuantity {
		return model.NewValidationError("quantity must not exceed %d", model.MaxItemQuantity)
	}
	return nil
}

// renderCart converts a snapshot into its API representation.
func renderCart(sessionID string, snapshot cart.Snapshot) *model.CartResponse {
	resp := &model.CartResponse{
		SessionID:  sessionID,
		Items:      make([]model.CartItem, 0, len(snapshot.Items)),
		TotalItems: snapshot.TotalItems(),
		TotalPrice: snapshot.TotalPrice(),
	}
	if !snapshot.UpdatedAt.IsZero() {
		updatedAt := snapshot.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}

	for _, item := range snapshot.Items {
		resp.Items = append(resp.Items, model.CartItem{
			ProductRef: item.ProductRef,
			Title:      item.Product.Title,
			Slug:       item.Product.Slug,
			ImageURL:   item.Product.ImageURL,
			UnitPrice:  item.Product.Price,
			Quantity:   item.Quantity,
			LineTotal:  item.LineTotal(),
		})
	}

	return resp
}
