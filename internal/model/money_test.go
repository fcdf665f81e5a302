package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		price    string
		expected int64
	}{
		{"299.00", 29900},
		{"89.00", 8900},
		{"19.995", 2000},
		{"19.994", 1999},
		{"0.005", 1},
		{"0.004", 0},
		{"0", 0},
		{"10.5", 1050},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assert.Equal(t, tt.expected, MinorUnits(decimal.RequireFromString(tt.price)))
		})
	}
}

func TestMoney_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 68700})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 687.00}`, string(data))

	var decoded struct {
		Total Money `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"total": 12.345}`), &decoded))
	assert.Equal(t, Money(1235), decoded.Total)

	assert.Error(t, json.Unmarshal([]byte(`{"total": "abc"}`), &decoded))
}

func TestMoney_Times(t *testing.T) {
	assert.Equal(t, Money(59800), Money(29900).Times(2))
	assert.Equal(t, "598.00", Money(59800).String())
}

func TestMoney_CheckedTimes(t *testing.T) {
	tests := []struct {
		name     string
		amount   Money
		quantity int
		expected Money
		ok       bool
	}{
		{"two chairs", 29900, 2, 59800, true},
		{"zero price", 0, math.MaxInt, 0, true},
		{"largest quantity at catalog price", 29900, MaxItemQuantity, Money(29900) * MaxItemQuantity, true},
		{"overflows int64", 9_999_999_999, MaxItemQuantity * 2, 0, false},
		{"max quantity", 2, math.MaxInt, 0, false},
		{"min int by minus one", math.MinInt64, -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.amount.CheckedTimes(tt.quantity)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMoney_CheckedAdd(t *testing.T) {
	sum, ok := Money(59800).CheckedAdd(8900)
	assert.True(t, ok)
	assert.Equal(t, Money(68700), sum)

	_, ok = Money(math.MaxInt64).CheckedAdd(1)
	assert.False(t, ok)

	_, ok = Money(math.MinInt64).CheckedAdd(-1)
	assert.False(t, ok)
}

func TestDomainError_Is(t *testing.T) {
	err := fmt.Errorf("submit review: %w", NewValidationError("rating must be between %d and %d", 1, 5))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotPurchased))

	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, ErrCodeValidation, domainErr.Code)
	assert.Equal(t, "rating must be between 1 and 5", domainErr.Message)
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("card declined")
	err := NewGatewayError("card declined", cause)

	assert.True(t, errors.Is(err, ErrGateway))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "card declined: card declined", err.Error())
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusPaid))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusCancelled))
	assert.False(t, OrderStatusPaid.CanTransitionTo(OrderStatusCancelled))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusPaid))
	assert.False(t, OrderStatusPaid.CanTransitionTo(OrderStatusPending))
}

func TestGatewayRequest_Totals(t *testing.T) {
	req := &GatewayRequest{
		LineItems: []CheckoutLineItem{
			{ProductRef: "chairA", UnitPriceMinorUnits: 29900, Quantity: 2},
			{ProductRef: "lampB", UnitPriceMinorUnits: 8900, Quantity: 1},
		},
	}

	totals := req.Totals()
	assert.Equal(t, Money(68700), totals.Subtotal)
	assert.Equal(t, Money(0), totals.Tax)
	assert.Equal(t, Money(0), totals.Shipping)
	assert.Equal(t, Money(68700), totals.Total)
	assert.Equal(t, "687.00", totals.Subtotal.String())
}
