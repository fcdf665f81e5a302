package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog's authoritative view of a sellable item.
type Product struct {
	ID            string          `json:"id" db:"id"`
	Title         string          `json:"title" db:"title"`
	Slug          string          `json:"slug" db:"slug"`
	Description   *string         `json:"description,omitempty" db:"description"`
	Price         decimal.Decimal `json:"price" db:"price"`
	ImageURL      *string         `json:"imageUrl,omitempty" db:"image_url"`
	CategoryTitle string          `json:"categoryTitle" db:"category_title"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}
