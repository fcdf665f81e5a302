package handler

import (
	"io"
	"net/http"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// maxWebhookBytes matches the gateway's documented event size limit.
const maxWebhookBytes = 65536

// WebhookHandler receives signed payment gateway events.
type WebhookHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service service.CheckoutService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With().Str("handler", "webhook").Logger(),
	}
}

// Gateway handles POST /api/webhooks/gateway. Any non-2xx answer makes the
// gateway redeliver the event.
func (h *WebhookHandler) Gateway(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondError(w, r, model.NewValidationError("webhook payload too large or unreadable"), h.logger)
		return
	}

	if err := h.service.HandleEvent(r.Context(), payload, r.Header.Get(gateway.SignatureHeader)); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
