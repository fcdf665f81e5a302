package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// CheckoutHandler handles checkout session requests and their callbacks.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// Create handles POST /api/checkout.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.Checkout(ctx, middleware.CustomerFromContext(ctx), middleware.SessionFromContext(ctx))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Confirm handles POST /api/checkout/confirm from the success page.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CheckoutCallbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if req.SessionID == "" {
		respondError(w, r, model.NewValidationError("sessionId is required"), h.logger)
		return
	}

	order, err := h.service.Confirm(ctx, middleware.CustomerFromContext(ctx), middleware.SessionFromContext(ctx), req.SessionID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Cancel handles POST /api/checkout/cancel from the cancel page.
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CheckoutCallbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if req.SessionID == "" {
		respondError(w, r, model.NewValidationError("sessionId is required"), h.logger)
		return
	}

	order, err := h.service.Cancel(ctx, middleware.CustomerFromContext(ctx), req.SessionID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
