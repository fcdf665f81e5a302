package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxItemQuantity is the largest quantity a cart entry or order line may
// hold. It matches the INTEGER order_items.quantity column.
const MaxItemQuantity = math.MaxInt32

// CartItem is one rendered cart entry.
type CartItem struct {
	ProductRef string          `json:"productId"`
	Title      string          `json:"title"`
	Slug       string          `json:"slug"`
	ImageURL   *string         `json:"imageUrl,omitempty"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}

// CartResponse is the rendered state of a session's cart.
type CartResponse struct {
	SessionID  string          `json:"sessionId"`
	Items      []CartItem      `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	UpdatedAt  *time.Time      `json:"updatedAt,omitempty"`
}

// AddCartItemRequest is the payload for adding a product to the cart.
// Quantity defaults to 1 when omitted.
type AddCartItemRequest struct {
	ProductRef string `json:"productId"`
	Quantity   *int   `json:"quantity,omitempty"`
}

// UpdateCartItemRequest sets a cart entry's quantity.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}
