// Package checkout turns a cart into a priced payment gateway request.
package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"storefront/internal/cart"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// SessionPlaceholder is substituted by the gateway with the created session ID.
const SessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// Catalog resolves the authoritative product record. A nil product with a
// nil error means the product no longer exists.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// Config holds the fixed checkout parameters.
type Config struct {
	Currency          string
	PublicBaseURL     string
	ShippingCountries []string
}

// Builder prices cart contents against the catalog.
type Builder struct {
	catalog Catalog
	cfg     Config
	logger  zerolog.Logger
}

// NewBuilder creates a checkout session builder.
func NewBuilder(catalog Catalog, cfg Config, logger zerolog.Logger) *Builder {
	return &Builder{
		catalog: catalog,
		cfg:     cfg,
		logger:  logger.With().Str("component", "checkout_builder").Logger(),
	}
}

// Build re-resolves every cart entry against the catalog and returns the
// gateway request. Prices held in the cart are never used. Entries whose
// product is gone or whose quantity is not positive are dropped. Quantities
// or amounts the ledger cannot store are rejected before any gateway call.
func (b *Builder) Build(ctx context.Context, items []cart.Item) (*model.GatewayRequest, error) {
	if len(items) == 0 {
		return nil, model.ErrEmptyCart
	}

	var subtotal model.Money
	lineItems := make([]model.CheckoutLineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			b.logger.Debug().Str("product_ref", item.ProductRef).Int("quantity", item.Quantity).Msg("skipping non-positive quantity")
			continue
		}
		if item.Quantity > model.MaxItemQuantity {
			return nil, model.NewValidationError("quantity for %s exceeds %d", item.ProductRef, model.MaxItemQuantity)
		}

		product, err := b.catalog.GetByID(ctx, item.ProductRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve product %s: %w", item.ProductRef, err)
		}
		if product == nil {
			b.logger.Info().Str("product_ref", item.ProductRef).Msg("skipping product no longer in catalog")
			continue
		}

		unitPrice := model.MinorUnits(product.Price)
		lineTotal, ok := model.Money(unitPrice).CheckedTimes(item.Quantity)
		if ok {
			subtotal, ok = subtotal.CheckedAdd(lineTotal)
		}
		if !ok {
			return nil, model.NewValidationError("order amount for %s is out of range", item.ProductRef)
		}

		lineItems = append(lineItems, model.CheckoutLineItem{
			ProductRef:          product.ID,
			UnitPriceMinorUnits: unitPrice,
			Quantity:            item.Quantity,
			DisplayName:         product.Title,
			DisplayImageURL:     absoluteImageURL(product.ImageURL),
			DisplayDescription:  displayDescription(product),
		})
	}

	if len(lineItems) == 0 {
		return nil, model.ErrNoValidItems
	}

	countries := make([]string, len(b.cfg.ShippingCountries))
	copy(countries, b.cfg.ShippingCountries)

	return &model.GatewayRequest{
		LineItems:                lineItems,
		Currency:                 b.cfg.Currency,
		SuccessURL:               b.cfg.PublicBaseURL + "/checkout/success?session_id=" + SessionPlaceholder,
		CancelURL:                b.cfg.PublicBaseURL + "/checkout/cancel",
		AllowedShippingCountries: countries,
	}, nil
}

// absoluteImageURL keeps only scheme-qualified http(s) URLs with a host.
func absoluteImageURL(raw *string) *string {
	if raw == nil {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(*raw))
	if err != nil || u.Host == "" {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	s := u.String()
	return &s
}

func displayDescription(p *model.Product) string {
	if p.Description != nil && strings.TrimSpace(*p.Description) != "" {
		return *p.Description
	}
	if p.CategoryTitle != "" {
		return "Premium " + p.CategoryTitle
	}
	return "Premium Product"
}
