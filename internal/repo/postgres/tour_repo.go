package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/query"
	"github.com/wanderpeak/tours-api/pkg/slug"
)

const tourCols = `id, name, slug, duration, max_group_size, difficulty,
	ratings_average, ratings_quantity, price, price_discount, summary,
	description, image_cover, images, start_dates, secret_tour,
	start_lng, start_lat, start_address, start_desc, locations, guides,
	created_at, updated_at`

// publicTours hides secret tours from listings. Detail reads by id keep
// them reachable for staff tooling.
const publicTours = "secret_tour = FALSE"

// greatCircle is the central angle in radians between a tour's start point
// and a reference point, by the spherical law of cosines. least() guards
// acos against rounding just above 1.
const greatCircle = `acos(least(1.0,
	sin(radians($1)) * sin(radians(start_lat)) +
	cos(radians($1)) * cos(radians(start_lat)) * cos(radians(start_lng) - radians($2))))`

const earthRadiusMeters = 6371000

type TourRepository struct {
	pool *pgxpool.Pool
}

func NewTourRepository(pool *pgxpool.Pool) *TourRepository {
	return &TourRepository{pool: pool}
}

func (r *TourRepository) List(ctx context.Context, opts *query.Options) ([]domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := publicTours
	args := []any{}
	if clause, condArgs := opts.WhereClause(1); clause != "" {
		where += " AND " + clause
		args = condArgs
	}

	sql := fmt.Sprintf(
		`SELECT `+tourCols+` FROM tours WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		where, opts.OrderBy("created_at DESC"), opts.Limit, opts.Offset(),
	)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list tours: %w", err)
	}
	defer rows.Close()
	return collectTours(rows)
}

func (r *TourRepository) Get(ctx context.Context, id int64) (*domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+tourCols+` FROM tours WHERE id = $1`, id)
	t, err := scanTour(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tour: %w", err)
	}
	return t, nil
}

func (r *TourRepository) GetBySlug(ctx context.Context, s string) (*domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+tourCols+` FROM tours WHERE slug = $1 AND `+publicTours, s)
	t, err := scanTour(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tour by slug: %w", err)
	}
	return t, nil
}

func (r *TourRepository) Create(ctx context.Context, req *domain.CreateTourRequest) (*domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	locations, err := json.Marshal(locationsOrEmpty(req.Locations))
	if err != nil {
		return nil, fmt.Errorf("marshal locations: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO tours (name, slug, duration, max_group_size, difficulty,
			price, price_discount, summary, description, image_cover, images,
			start_dates, secret_tour, start_lng, start_lat, start_address,
			start_desc, locations, guides)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19)
		RETURNING `+tourCols,
		req.Name, slug.Make(req.Name), req.Duration, req.MaxGroupSize,
		req.Difficulty, req.Price, req.PriceDiscount, req.Summary,
		req.Description, req.ImageCover, sliceOrEmpty(req.Images),
		sliceOrEmpty(req.StartDates), req.SecretTour,
		req.StartLocation.Coordinates[0], req.StartLocation.Coordinates[1],
		req.StartLocation.Address, req.StartLocation.Description,
		locations, sliceOrEmpty(req.Guides),
	)
	t, err := scanTour(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict(fmt.Sprintf("Duplicate field value: %q. Please use another value", req.Name))
		}
		return nil, fmt.Errorf("create tour: %w", err)
	}
	return t, nil
}

func (r *TourRepository) Update(ctx context.Context, id int64, req *domain.UpdateTourRequest) (*domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sets, args := []string{}, []any{}
	addSet(&sets, &args, "name", req.Name)
	if req.Name != nil {
		// Slug tracks the name.
		s := slug.Make(*req.Name)
		addSet(&sets, &args, "slug", &s)
	}
	addSet(&sets, &args, "duration", req.Duration)
	addSet(&sets, &args, "max_group_size", req.MaxGroupSize)
	addSet(&sets, &args, "difficulty", req.Difficulty)
	addSet(&sets, &args, "price", req.Price)
	addSet(&sets, &args, "price_discount", req.PriceDiscount)
	addSet(&sets, &args, "summary", req.Summary)
	addSet(&sets, &args, "description", req.Description)
	addSet(&sets, &args, "image_cover", req.ImageCover)
	addSet(&sets, &args, "images", req.Images)
	addSet(&sets, &args, "start_dates", req.StartDates)
	addSet(&sets, &args, "secret_tour", req.SecretTour)
	addSet(&sets, &args, "guides", req.Guides)
	if req.StartLocation != nil {
		addSet(&sets, &args, "start_lng", &req.StartLocation.Coordinates[0])
		addSet(&sets, &args, "start_lat", &req.StartLocation.Coordinates[1])
		addSet(&sets, &args, "start_address", &req.StartLocation.Address)
		addSet(&sets, &args, "start_desc", &req.StartLocation.Description)
	}
	if req.Locations != nil {
		locations, err := json.Marshal(locationsOrEmpty(*req.Locations))
		if err != nil {
			return nil, fmt.Errorf("marshal locations: %w", err)
		}
		addSet(&sets, &args, "locations", &locations)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE tours SET %s WHERE id = $%d RETURNING `+tourCols,
		strings.Join(sets, ", "), len(args),
	), args...)
	t, err := scanTour(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("Duplicate field value: name. Please use another value")
		}
		return nil, fmt.Errorf("update tour: %w", err)
	}
	return t, nil
}

func (r *TourRepository) Delete(ctx context.Context, id int64) (*domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`DELETE FROM tours WHERE id = $1 RETURNING `+tourCols, id)
	t, err := scanTour(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete tour: %w", err)
	}
	return t, nil
}

// UpdateRatings writes a recomputed review aggregate onto the tour.
func (r *TourRepository) UpdateRatings(ctx context.Context, tourID int64, summary domain.RatingSummary) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE tours
		SET ratings_quantity = $1, ratings_average = $2, updated_at = now()
		WHERE id = $3`,
		summary.Quantity, domain.RoundRating(summary.Average), tourID,
	)
	if err != nil {
		return fmt.Errorf("update tour ratings: %w", err)
	}
	return nil
}

// Stats aggregates rated public tours by difficulty.
func (r *TourRepository) Stats(ctx context.Context) ([]domain.TourStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT difficulty, COUNT(*), COALESCE(SUM(ratings_quantity), 0),
		       COALESCE(AVG(ratings_average), 0), COALESCE(AVG(price), 0),
		       COALESCE(MIN(price), 0), COALESCE(MAX(price), 0)
		FROM tours
		WHERE ratings_average >= 4.5 AND `+publicTours+`
		GROUP BY difficulty
		ORDER BY AVG(price)`)
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.TourStats
	for rows.Next() {
		var s domain.TourStats
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings,
			&s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, fmt.Errorf("scan tour stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// MonthlyPlan counts tour starts per month of the given year, busiest
// months first, capped at the top six.
func (r *TourRepository) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlanEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(MONTH FROM d)::int AS month,
		       COUNT(*) AS num_tour_starts,
		       array_agg(name) AS tours
		FROM tours, unnest(start_dates) AS d
		WHERE EXTRACT(YEAR FROM d) = $1 AND `+publicTours+`
		GROUP BY month
		ORDER BY num_tour_starts DESC, month
		LIMIT 6`,
		year)
	if err != nil {
		return nil, fmt.Errorf("monthly plan: %w", err)
	}
	defer rows.Close()

	var plan []domain.MonthlyPlanEntry
	for rows.Next() {
		var e domain.MonthlyPlanEntry
		if err := rows.Scan(&e.Month, &e.NumTourStarts, &e.Tours); err != nil {
			return nil, fmt.Errorf("scan monthly plan: %w", err)
		}
		plan = append(plan, e)
	}
	return plan, rows.Err()
}

// Within returns public tours whose start point lies inside the sphere cap
// of the given angular radius (radians) around (lat, lng).
func (r *TourRepository) Within(ctx context.Context, lat, lng, radiusRadians float64) ([]domain.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+tourCols+`
		FROM tours
		WHERE start_lat IS NOT NULL AND `+publicTours+`
		  AND `+greatCircle+` <= $3
		ORDER BY id`,
		lat, lng, radiusRadians)
	if err != nil {
		return nil, fmt.Errorf("tours within: %w", err)
	}
	defer rows.Close()
	return collectTours(rows)
}

// Distances lists public tours with their distance from (lat, lng),
// nearest first. multiplier converts from meters to the caller's unit.
func (r *TourRepository) Distances(ctx context.Context, lat, lng, multiplier float64) ([]domain.TourDistance, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, name, %s * %d * $3 AS distance
		FROM tours
		WHERE start_lat IS NOT NULL AND %s
		ORDER BY distance`, greatCircle, earthRadiusMeters, publicTours),
		lat, lng, multiplier)
	if err != nil {
		return nil, fmt.Errorf("tour distances: %w", err)
	}
	defer rows.Close()

	var out []domain.TourDistance
	for rows.Next() {
		var d domain.TourDistance
		if err := rows.Scan(&d.ID, &d.Name, &d.Distance); err != nil {
			return nil, fmt.Errorf("scan tour distance: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func collectTours(rows pgx.Rows) ([]domain.Tour, error) {
	var tours []domain.Tour
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tour: %w", err)
		}
		tours = append(tours, *t)
	}
	return tours, rows.Err()
}

func scanTour(row pgx.Row) (*domain.Tour, error) {
	var t domain.Tour
	var startLng, startLat *float64
	var locations []byte
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Duration, &t.MaxGroupSize, &t.Difficulty,
		&t.RatingsAverage, &t.RatingsQuantity, &t.Price, &t.PriceDiscount,
		&t.Summary, &t.Description, &t.ImageCover, &t.Images, &t.StartDates,
		&t.SecretTour, &startLng, &startLat, &t.StartLocation.Address,
		&t.StartLocation.Description, &locations, &t.Guides,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.StartLocation.Type = "Point"
	if startLng != nil && startLat != nil {
		t.StartLocation.Coordinates = [2]float64{*startLng, *startLat}
	}
	if err := json.Unmarshal(locations, &t.Locations); err != nil {
		return nil, fmt.Errorf("unmarshal locations: %w", err)
	}
	return &t, nil
}

func locationsOrEmpty(locs []domain.Location) []domain.Location {
	if locs == nil {
		return []domain.Location{}
	}
	return locs
}

func sliceOrEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
