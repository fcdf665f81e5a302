package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultFeaturedLimit  = 3
	maxFeaturedLimit      = 20
	defaultReviewPageSize = 20
	maxReviewPageSize     = 100
)

// reviewService implements ReviewService.
type reviewService struct {
	reviewRepo repository.ReviewRepository
	outboxRepo repository.OutboxRepository
	purchases  PurchaseVerifier
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewReviewService creates a review service. purchases is the order ledger's
// purchase check.
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	outboxRepo repository.OutboxRepository,
	purchases PurchaseVerifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) ReviewService {
	return &reviewService{
		reviewRepo: reviewRepo,
		outboxRepo: outboxRepo,
		purchases:  purchases,
		metrics:    m,
		logger:     logger.With().Str("service", "review").Logger(),
		now:        time.Now,
	}
}

// reviewEvent is the outbox payload handed to the moderation workflow.
type reviewEvent struct {
	ReviewID    uuid.UUID `json:"reviewId"`
	ProductRef  string    `json:"productId"`
	CustomerRef string    `json:"customerId"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
}

// Submit checks, in order: identity, an existing review, input validity and
// purchase history. The unique constraint on (customer, product) settles
// concurrent submissions.
func (s *reviewService) Submit(ctx context.Context, customerRef string, req *model.ReviewRequest) (review *model.Review, err error) {
	defer func() {
		s.metrics.ReviewOutcome(reviewOutcome(err))
	}()

	if customerRef == "" {
		return nil, model.ErrUnauthenticated
	}
	if req == nil || req.ProductRef == "" {
		return nil, model.NewValidationError("productId is required")
	}

	exists, err := s.reviewRepo.Exists(ctx, customerRef, req.ProductRef)
	if err != nil {
		return nil, fmt.Errorf("failed to submit review: %w", err)
	}
	if exists {
		s.logger.Debug().
			Str("customer_ref", customerRef).
			Str("product_ref", req.ProductRef).
			Msg("duplicate review submission")
		return nil, model.ErrAlreadyReviewed
	}

	comment := strings.TrimSpace(req.Comment)
	if req.Rating < model.MinRating || req.Rating > model.MaxRating {
		return nil, model.NewValidationError("rating must be between %d and %d", model.MinRating, model.MaxRating)
	}
	if comment == "" {
		return nil, model.NewValidationError("comment is required")
	}

	purchased, err := s.purchases.HasPurchased(ctx, customerRef, req.ProductRef)
	if err != nil {
		return nil, fmt.Errorf("failed to submit review: %w", err)
	}
	if !purchased {
		s.logger.Info().
			Str("customer_ref", customerRef).
			Str("product_ref", req.ProductRef).
			Msg("review rejected, product not purchased")
		return nil, model.ErrNotPurchased
	}

	review = &model.Review{
		ID:          uuid.New(),
		ProductRef:  req.ProductRef,
		CustomerRef: customerRef,
		Rating:      req.Rating,
		Comment:     comment,
		Published:   false,
		Featured:    false,
		CreatedAt:   s.now().UTC(),
	}

	if err = s.create(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("review_id", review.ID.String()).
		Str("product_ref", review.ProductRef).
		Int("rating", review.Rating).
		Msg("review queued for moderation")

	return review, nil
}

func (s *reviewService) create(ctx context.Context, review *model.Review) (err error) {
	tx, err := s.reviewRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to submit review: %w", err)
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.reviewRepo.Create(ctx, tx, review); err != nil {
		if errors.Is(err, model.ErrAlreadyReviewed) {
			return err
		}
		return fmt.Errorf("failed to submit review: %w", err)
	}

	event, err := model.NewOutboxEvent(model.EventReviewCreated, review.ID.String(), reviewEvent{
		ReviewID:    review.ID,
		ProductRef:  review.ProductRef,
		CustomerRef: review.CustomerRef,
		Rating:      review.Rating,
		Comment:     review.Comment,
	})
	if err != nil {
		return fmt.Errorf("failed to encode review event: %w", err)
	}

	if err = s.outboxRepo.Insert(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to submit review: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("review_id", review.ID.String()).Msg("failed to commit transaction")
		return fmt.Errorf("failed to submit review: %w", err)
	}

	return nil
}

// Moderate sets a review's published and featured flags.
func (s *reviewService) Moderate(ctx context.Context, id uuid.UUID, req *model.ModerationRequest) (*model.Review, error) {
	if req == nil {
		return nil, model.NewValidationError("moderation decision is required")
	}
	if req.Featured && !req.Published {
		return nil, model.NewValidationError("only published reviews can be featured")
	}

	review, err := s.reviewRepo.SetModeration(ctx, id, req.Published, req.Featured)
	if err != nil {
		return nil, fmt.Errorf("failed to moderate review: %w", err)
	}
	if review == nil {
		return nil, model.ErrReviewNotFound
	}

	s.logger.Info().
		Str("review_id", id.String()).
		Bool("published", review.Published).
		Bool("featured", review.Featured).
		Msg("review moderated")

	return review, nil
}

// ListForProduct returns published reviews for a product, newest first.
func (s *reviewService) ListForProduct(ctx context.Context, productRef string, limit, offset int) ([]model.Review, error) {
	limit = clampLimit(limit, defaultReviewPageSize, maxReviewPageSize)
	if offset < 0 {
		offset = 0
	}

	reviews, err := s.reviewRepo.ListPublishedByProduct(ctx, productRef, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// ListFeatured returns published, featured reviews, newest first.
func (s *reviewService) ListFeatured(ctx context.Context, limit int) ([]model.Review, error) {
	reviews, err := s.reviewRepo.ListFeatured(ctx, clampLimit(limit, defaultFeaturedLimit, maxFeaturedLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list featured reviews: %w", err)
	}
	return reviews, nil
}

func reviewOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, model.ErrAlreadyReviewed):
		return "already_reviewed"
	case errors.Is(err, model.ErrNotPurchased):
		return "not_purchased"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	case errors.Is(err, model.ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "error"
	}
}
