package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/query"
)

// Reads join the author's public profile so review cards render without a
// second lookup.
const reviewCols = `r.id, r.review, r.rating, r.tour_id, r.user_id,
	r.created_at, r.updated_at, u.id, u.name, u.photo`

const reviewFrom = `FROM reviews r JOIN users u ON u.id = r.user_id`

type ReviewRepository struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// List returns reviews, scoped to one tour when tourID is non-zero.
// Filter columns are qualified with the reviews alias so the author join
// cannot capture them.
func (r *ReviewRepository) List(ctx context.Context, tourID int64, opts *query.Options) ([]domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := "TRUE"
	args := []any{}
	if tourID != 0 {
		args = append(args, tourID)
		where = "r.tour_id = $1"
	}
	if clause, condArgs := opts.WhereClause(len(args) + 1); clause != "" {
		where += " AND " + qualify(clause, "r.")
		args = append(args, condArgs...)
	}

	sql := fmt.Sprintf(
		`SELECT %s %s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		reviewCols, reviewFrom, where,
		qualify(opts.OrderBy("r.created_at DESC"), "r."), opts.Limit, opts.Offset(),
	)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	return reviews, rows.Err()
}

func (r *ReviewRepository) Get(ctx context.Context, id int64) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+reviewCols+` `+reviewFrom+` WHERE r.id = $1`, id)
	rv, err := scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

func (r *ReviewRepository) Create(ctx context.Context, req *domain.CreateReviewRequest) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reviews (review, rating, tour_id, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		req.Review, req.Rating, req.TourID, req.UserID,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("You have already reviewed this tour")
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *ReviewRepository) Update(ctx context.Context, id int64, req *domain.UpdateReviewRequest) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sets, args := []string{}, []any{}
	addSet(&sets, &args, "review", req.Review)
	addSet(&sets, &args, "rating", req.Rating)
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE reviews SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args),
	), args...)
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return r.Get(ctx, id)
}

// Delete returns the removed review so callers can recompute the tour's
// rating aggregate.
func (r *ReviewRepository) Delete(ctx context.Context, id int64) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		DELETE FROM reviews
		WHERE id = $1
		RETURNING id, review, rating, tour_id, user_id, created_at, updated_at`,
		id)
	var rv domain.Review
	err := row.Scan(&rv.ID, &rv.Review, &rv.Rating, &rv.TourID, &rv.UserID,
		&rv.CreatedAt, &rv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete review: %w", err)
	}
	return &rv, nil
}

// RatingSummary recomputes the review aggregate for one tour.
func (r *ReviewRepository) RatingSummary(ctx context.Context, tourID int64) (domain.RatingSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s domain.RatingSummary
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(rating), $2)
		FROM reviews
		WHERE tour_id = $1`,
		tourID, domain.DefaultRating,
	).Scan(&s.Quantity, &s.Average)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("rating summary: %w", err)
	}
	return s, nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	var author domain.ReviewAuthor
	err := row.Scan(
		&rv.ID, &rv.Review, &rv.Rating, &rv.TourID, &rv.UserID,
		&rv.CreatedAt, &rv.UpdatedAt,
		&author.ID, &author.Name, &author.Photo,
	)
	if err != nil {
		return nil, err
	}
	rv.User = &author
	return &rv, nil
}

// qualify prefixes bare column references in a rendered WHERE or ORDER BY
// fragment. Conditions join on " AND ", sort keys on ", ".
func qualify(fragment, prefix string) string {
	for _, sep := range []string{" AND ", ", "} {
		if strings.Contains(fragment, sep) {
			parts := strings.Split(fragment, sep)
			for i := range parts {
				parts[i] = qualifyOne(parts[i], prefix)
			}
			return strings.Join(parts, sep)
		}
	}
	return qualifyOne(fragment, prefix)
}

func qualifyOne(part, prefix string) string {
	if strings.Contains(part, ".") {
		return part
	}
	return prefix + part
}
