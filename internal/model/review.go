package model

import (
	"time"

	"github.com/google/uuid"
)

// Review is a customer's rating of a product they purchased.
type Review struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProductRef  string    `json:"productId" db:"product_ref"`
	CustomerRef string    `json:"customerId" db:"customer_ref"`
	Rating      int       `json:"rating" db:"rating"`
	Comment     string    `json:"comment" db:"comment"`
	Published   bool      `json:"published" db:"published"`
	Featured    bool      `json:"featured" db:"featured"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// ReviewRequest represents the request payload for submitting a review.
type ReviewRequest struct {
	ProductRef string `json:"productId"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
}

// ModerationRequest carries a moderator's decision on a review.
type ModerationRequest struct {
	Published bool `json:"published"`
	Featured  bool `json:"featured"`
}

const (
	MinRating = 1
	MaxRating = 5
)
