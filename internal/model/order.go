package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// CanTransitionTo reports whether the ledger allows moving from s to next.
// Only pending orders move, and only to paid or cancelled.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && (next == OrderStatusPaid || next == OrderStatusCancelled)
}

// Order is the durable record of a checkout attempt and its outcome.
type Order struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	OrderNumber       string      `json:"orderNumber" db:"order_number"`
	Status            OrderStatus `json:"status" db:"status"`
	CustomerRef       string      `json:"customerId" db:"customer_ref"`
	Items             []OrderItem `json:"items"`
	Subtotal          Money       `json:"subtotal" db:"subtotal"`
	Tax               Money       `json:"tax" db:"tax"`
	Shipping          Money       `json:"shipping" db:"shipping"`
	Total             Money       `json:"total" db:"total"`
	GatewaySessionRef *string     `json:"gatewaySessionId,omitempty" db:"gateway_session_ref"`
	CreatedAt         time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time   `json:"updatedAt" db:"updated_at"`
}

// OrderItem represents a line item in an order.
type OrderItem struct {
	ID         uuid.UUID `json:"-" db:"id"`
	OrderID    uuid.UUID `json:"-" db:"order_id"`
	Position   int       `json:"-" db:"position"`
	ProductRef string    `json:"productId" db:"product_ref"`
	Quantity   int       `json:"quantity" db:"quantity"`
	UnitPrice  Money     `json:"unitPrice" db:"unit_price"`
	LineTotal  Money     `json:"lineTotal" db:"line_total"`
}

// Totals are the order-level amounts derived from the line items.
type Totals struct {
	Subtotal Money `json:"subtotal"`
	Tax      Money `json:"tax"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

// ContainsProduct reports whether any line item references productRef.
func (o *Order) ContainsProduct(productRef string) bool {
	for _, item := range o.Items {
		if item.ProductRef == productRef {
			return true
		}
	}
	return false
}

// OrderListResponse is the payload for a customer's order history.
type OrderListResponse struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
}
