package model

import "github.com/google/uuid"

// CheckoutLineItem is one priced entry of a checkout session. The unit price
// always comes from the catalog at build time.
type CheckoutLineItem struct {
	ProductRef          string  `json:"productId"`
	UnitPriceMinorUnits int64   `json:"unitPriceMinorUnits"`
	Quantity            int     `json:"quantity"`
	DisplayName         string  `json:"displayName"`
	DisplayImageURL     *string `json:"displayImageUrl,omitempty"`
	DisplayDescription  string  `json:"displayDescription"`
}

// LineTotal returns unit price × quantity in minor units.
func (li CheckoutLineItem) LineTotal() Money {
	return Money(li.UnitPriceMinorUnits).Times(li.Quantity)
}

// GatewayRequest is the priced request sent to the payment gateway.
type GatewayRequest struct {
	LineItems                []CheckoutLineItem `json:"lineItems"`
	Currency                 string             `json:"currency"`
	SuccessURL               string             `json:"successUrl"`
	CancelURL                string             `json:"cancelUrl"`
	AllowedShippingCountries []string           `json:"allowedShippingCountries"`
	CustomerRef              string             `json:"-"`
}

// Totals sums the request's line items. Tax and shipping are not computed
// here and stay zero.
func (r *GatewayRequest) Totals() Totals {
	var subtotal Money
	for _, li := range r.LineItems {
		subtotal += li.LineTotal()
	}
	return Totals{
		Subtotal: subtotal,
		Total:    subtotal,
	}
}

// GatewaySession is the gateway's handle for a created checkout session.
type GatewaySession struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl"`
}

// PaymentStatus is the gateway-reported state of a checkout session.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusExpired PaymentStatus = "expired"
)

// PaymentOutcome is a verified statement from the gateway about a session.
type PaymentOutcome struct {
	SessionRef string
	Status     PaymentStatus
}

// CheckoutResponse is returned to the shopper after a session is created.
type CheckoutResponse struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	SessionID   string    `json:"sessionId"`
	RedirectURL string    `json:"redirectUrl"`
}

// CheckoutCallbackRequest carries a gateway session reference back from the
// success or cancel page.
type CheckoutCallbackRequest struct {
	SessionID string `json:"sessionId"`
}
