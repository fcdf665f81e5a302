package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// ErrInvalidSnapshot is returned when a persisted cart payload cannot be used.
var ErrInvalidSnapshot = errors.New("invalid cart snapshot")

// Product is the catalog data captured when an item was last added. It is
// only used to render totals and is never trusted for pricing at checkout.
type Product struct {
	Title    string          `json:"title"`
	Slug     string          `json:"slug"`
	Price    decimal.Decimal `json:"price"`
	ImageURL *string         `json:"imageUrl,omitempty"`
}

// Item is one cart entry.
type Item struct {
	ProductRef string  `json:"productId"`
	Quantity   int     `json:"quantity"`
	Product    Product `json:"product"`
}

// LineTotal returns quantity × the snapshot unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Snapshot is the persisted form of a cart.
type Snapshot struct {
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TotalItems returns the sum of quantities.
func (s Snapshot) TotalItems() int {
	total := 0
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the sum of line totals.
func (s Snapshot) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	if s.Items == nil {
		s.Items = []Item{}
	}
	return json.Marshal(s)
}

// decodeSnapshot parses and validates a persisted payload. Any structural
// problem rejects the whole snapshot.
func decodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	seen := make(map[string]struct{}, len(s.Items))
	for i, item := range s.Items {
		if item.ProductRef == "" {
			return Snapshot{}, fmt.Errorf("%w: item %d has no product", ErrInvalidSnapshot, i)
		}
		if item.Quantity < 1 || item.Quantity > model.MaxItemQuantity {
			return Snapshot{}, fmt.Errorf("%w: item %s has quantity %d", ErrInvalidSnapshot, item.ProductRef, item.Quantity)
		}
		if item.Product.Price.IsNegative() {
			return Snapshot{}, fmt.Errorf("%w: item %s has negative price", ErrInvalidSnapshot, item.ProductRef)
		}
		if _, dup := seen[item.ProductRef]; dup {
			return Snapshot{}, fmt.Errorf("%w: duplicate item %s", ErrInvalidSnapshot, item.ProductRef)
		}
		seen[item.ProductRef] = struct{}{}
	}

	return s, nil
}

// envelope wraps a snapshot broadcast so a store can ignore its own messages.
type envelope struct {
	Origin   string          `json:"origin"`
	Snapshot json.RawMessage `json:"snapshot"`
}
