package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	reviewColumns = `id, product_ref, customer_ref, rating, comment, published, featured, created_at`

	uniqueViolation        = "23505"
	reviewUniqueConstraint = "reviews_customer_product_key"
)

// reviewRepository implements the ReviewRepository interface using PostgreSQL.
type reviewRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool *pgxpool.Pool, logger zerolog.Logger) ReviewRepository {
	return &reviewRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "review").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *reviewRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Exists reports whether the customer already reviewed the product.
func (r *reviewRepository) Exists(ctx context.Context, customerRef, productRef string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM reviews WHERE customer_ref = $1 AND product_ref = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, customerRef, productRef).Scan(&exists); err != nil {
		r.logger.Error().
			Err(err).
			Str("customer_ref", customerRef).
			Str("product_ref", productRef).
			Msg("failed to check existing review")
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}

	return exists, nil
}

// Create inserts a review within the provided transaction. The unique
// constraint on (customer_ref, product_ref) is the authority on duplicates.
func (r *reviewRepository) Create(ctx context.Context, tx pgx.Tx, review *model.Review) error {
	query := `
		INSERT INTO reviews (id, product_ref, customer_ref, rating, comment, published, featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`

	_, err := tx.Exec(ctx, query,
		review.ID,
		review.ProductRef,
		review.CustomerRef,
		review.Rating,
		review.Comment,
		review.Published,
		review.Featured,
		review.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == reviewUniqueConstraint {
			r.logger.Info().
				Str("customer_ref", review.CustomerRef).
				Str("product_ref", review.ProductRef).
				Msg("duplicate review rejected by constraint")
			return model.ErrAlreadyReviewed
		}
		r.logger.Error().
			Err(err).
			Str("review_id", review.ID.String()).
			Msg("failed to create review")
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// GetByID retrieves a review.
func (r *reviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("review_id", id.String()).Msg("failed to query review")
		return nil, fmt.Errorf("failed to query review: %w", err)
	}

	return review, nil
}

// SetModeration updates the published and featured flags.
func (r *reviewRepository) SetModeration(ctx context.Context, id uuid.UUID, published, featured bool) (*model.Review, error) {
	query := `
		UPDATE reviews
		SET published = $2, featured = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + reviewColumns

	review, err := scanReview(r.pool.QueryRow(ctx, query, id, published, featured))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("review_id", id.String()).Msg("failed to moderate review")
		return nil, fmt.Errorf("failed to moderate review: %w", err)
	}

	return review, nil
}

// ListPublishedByProduct retrieves published reviews for a product, newest first.
func (r *reviewRepository) ListPublishedByProduct(ctx context.Context, productRef string, limit, offset int) ([]model.Review, error) {
	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE product_ref = $1 AND published
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, productRef, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("product_ref", productRef).Msg("failed to query reviews")
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}

	return r.collect(rows)
}

// ListFeatured retrieves published, featured reviews, newest first.
func (r *reviewRepository) ListFeatured(ctx context.Context, limit int) ([]model.Review, error) {
	query := `SELECT ` + reviewColumns + `
		FROM reviews
		WHERE published AND featured
		ORDER BY created_at DESC, id
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error().Err(err).Int("limit", limit).Msg("failed to query featured reviews")
		return nil, fmt.Errorf("failed to query featured reviews: %w", err)
	}

	return r.collect(rows)
}

func (r *reviewRepository) collect(rows pgx.Rows) ([]model.Review, error) {
	defer rows.Close()

	reviews := []model.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan review row")
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, *review)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating review rows")
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

func scanReview(row pgx.Row) (*model.Review, error) {
	var review model.Review
	err := row.Scan(
		&review.ID,
		&review.ProductRef,
		&review.CustomerRef,
		&review.Rating,
		&review.Comment,
		&review.Published,
		&review.Featured,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}
