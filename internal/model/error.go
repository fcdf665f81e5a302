package model

import "fmt"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeEmptyCart         = "EMPTY_CART"
	ErrCodeNoValidItems      = "NO_VALID_ITEMS"
	ErrCodeGateway           = "GATEWAY_ERROR"
	ErrCodeReconciliation    = "RECONCILIATION_ERROR"
	ErrCodeAlreadyReviewed   = "ALREADY_REVIEWED"
	ErrCodeNotPurchased      = "NOT_PURCHASED"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeProductNotFound   = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound     = "ORDER_NOT_FOUND"
	ErrCodeReviewNotFound    = "REVIEW_NOT_FOUND"
	ErrCodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeLedgerIntegrity   = "LEDGER_INTEGRITY"
	ErrCodePaymentIncomplete = "PAYMENT_INCOMPLETE"
	ErrCodeMissingSession    = "MISSING_SESSION"
	ErrCodeUnauthorised      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// DomainError is a business-rule failure identified by its code.
// Two DomainErrors match under errors.Is when their codes are equal, so
// call sites can compare against the sentinels below regardless of the
// message detail attached to a particular failure.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports malformed input rejected before any side effect.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// NewGatewayError wraps a payment provider failure, keeping the provider's
// human-readable message.
func NewGatewayError(message string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeGateway,
		Message: message,
		Err:     err,
	}
}

// NewReconciliationError reports a payment confirmation that matches no
// pending order.
func NewReconciliationError(sessionRef, reason string) *DomainError {
	return NewDomainError(
		ErrCodeReconciliation,
		fmt.Sprintf("payment confirmation for session %s could not be reconciled: %s", sessionRef, reason),
	)
}

// NewLedgerIntegrityError reports an order whose amounts are inconsistent.
func NewLedgerIntegrityError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeLedgerIntegrity, fmt.Sprintf(format, args...))
}

// Common domain errors
var (
	ErrValidation        = NewDomainError(ErrCodeValidation, "Invalid input")
	ErrEmptyCart         = NewDomainError(ErrCodeEmptyCart, "Cart is empty")
	ErrNoValidItems      = NewDomainError(ErrCodeNoValidItems, "Cart contains no purchasable items")
	ErrGateway           = NewDomainError(ErrCodeGateway, "Payment gateway error")
	ErrReconciliation    = NewDomainError(ErrCodeReconciliation, "Payment confirmation could not be reconciled")
	ErrAlreadyReviewed   = NewDomainError(ErrCodeAlreadyReviewed, "You have already reviewed this product")
	ErrNotPurchased      = NewDomainError(ErrCodeNotPurchased, "Only customers who purchased this product can review it")
	ErrUnauthenticated   = NewDomainError(ErrCodeUnauthenticated, "Authentication required")
	ErrProductNotFound   = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrOrderNotFound     = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrReviewNotFound    = NewDomainError(ErrCodeReviewNotFound, "Review not found")
	ErrInvalidTransition = NewDomainError(ErrCodeInvalidTransition, "Order status cannot change in this way")
	ErrLedgerIntegrity   = NewDomainError(ErrCodeLedgerIntegrity, "Order amounts are inconsistent")
	ErrPaymentIncomplete = NewDomainError(ErrCodePaymentIncomplete, "Payment has not been completed")
	ErrMissingSession    = NewDomainError(ErrCodeMissingSession, "Cart session is required")
)
