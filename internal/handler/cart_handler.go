package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// keepAliveInterval is how often an idle event stream sends a comment line.
const keepAliveInterval = 25 * time.Second

// CartHandler handles cart HTTP requests for the session in X-Session-ID.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), middleware.SessionFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddItem handles POST /api/cart/items. A missing quantity adds one.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	resp, err := h.service.AddItem(r.Context(), middleware.SessionFromContext(r.Context()), req.ProductRef, quantity)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateQuantity handles PUT /api/cart/items/{productId}.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	resp, err := h.service.UpdateQuantity(r.Context(), middleware.SessionFromContext(r.Context()), chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveItem handles DELETE /api/cart/items/{productId}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.RemoveItem(r.Context(), middleware.SessionFromContext(r.Context()), chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Clear(r.Context(), middleware.SessionFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Events handles GET /api/cart/events, streaming a "cart" event each time
// another view of the session writes the cart.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.SessionFromContext(ctx)

	updates, err := h.service.Watch(ctx, sessionID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn().Err(err).Msg("failed to clear write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error().Err(err).Msg("event stream not supported by response writer")
		return
	}

	h.logger.Debug().Str("session_id", sessionID).Msg("cart event stream opened")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case resp, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(resp)
			if err != nil {
				h.logger.Error().Err(err).Msg("failed to encode cart event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
