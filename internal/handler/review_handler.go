package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReviewHandler handles review submission, moderation and listing.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(service service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  logger.With().Str("handler", "review").Logger(),
	}
}

// Submit handles POST /api/reviews.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	review, err := h.service.Submit(r.Context(), middleware.CustomerFromContext(r.Context()), &req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, review)
}

// ListForProduct handles GET /api/products/{id}/reviews.
func (h *ReviewHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	reviews, err := h.service.ListForProduct(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, reviews)
}

// ListFeatured handles GET /api/reviews/featured.
func (h *ReviewHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	reviews, err := h.service.ListFeatured(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, reviews)
}

// Moderate handles PUT /api/admin/reviews/{id}/moderation.
func (h *ReviewHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	reviewID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, model.NewValidationError("invalid review ID format"), h.logger)
		return
	}

	var req model.ModerationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	review, err := h.service.Moderate(r.Context(), reviewID, &req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	h.logger.Info().
		Str("review_id", reviewID.String()).
		Bool("published", review.Published).
		Bool("featured", review.Featured).
		Msg("review moderated")

	writeJSON(w, http.StatusOK, review)
}
