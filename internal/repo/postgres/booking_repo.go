package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/query"
)

const bookingCols = `id, tour_id, user_id, price, paid, created_at`

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) List(ctx context.Context, opts *query.Options) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where, args := "TRUE", []any{}
	if clause, condArgs := opts.WhereClause(1); clause != "" {
		where, args = clause, condArgs
	}

	sql := fmt.Sprintf(
		`SELECT `+bookingCols+` FROM bookings WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		where, opts.OrderBy("created_at DESC"), opts.Limit, opts.Offset(),
	)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListByUser returns the bookings behind "my tours" pages.
func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by user: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) Get(ctx context.Context, id int64) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) Create(ctx context.Context, req *domain.CreateBookingRequest) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (tour_id, user_id, price, paid)
		VALUES ($1, $2, $3, $4)
		RETURNING `+bookingCols,
		req.TourID, req.UserID, req.Price, req.Paid,
	)
	b, err := scanBooking(row)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) Update(ctx context.Context, id int64, req *domain.UpdateBookingRequest) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sets, args := []string{}, []any{}
	addSet(&sets, &args, "price", req.Price)
	addSet(&sets, &args, "paid", req.Paid)
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	args = append(args, id)

	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE bookings SET %s WHERE id = $%d RETURNING `+bookingCols,
		strings.Join(sets, ", "), len(args),
	), args...)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) Delete(ctx context.Context, id int64) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`DELETE FROM bookings WHERE id = $1 RETURNING `+bookingCols, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete booking: %w", err)
	}
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.TourID, &b.UserID, &b.Price, &b.Paid, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
