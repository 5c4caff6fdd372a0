package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/query"
)

const userCols = `id, name, email, photo, role, password_hash,
	password_changed_at, password_reset_token, password_reset_expires,
	active, created_at, updated_at`

// activeUsers scopes reads to identities that have not been soft-deleted.
// Composed explicitly per query; admin paths that need everything use
// FindByIDAnyState instead.
const activeUsers = "active = TRUE"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, name, email, passwordHash string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userCols,
		name, email, passwordHash,
	)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict(fmt.Sprintf("Duplicate field value: %q. Please use another value", email))
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// FindByEmail returns the active user with the given email, hash included.
// Missing users come back as (nil, nil).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1 AND `+activeUsers,
		email,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND `+activeUsers,
		id,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByIDAnyState skips the active filter. Admin reads only.
func (r *UserRepository) FindByIDAnyState(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByValidResetToken matches the hashed token against unexpired reset
// state. Expired or unknown tokens come back as (nil, nil).
func (r *UserRepository) FindByValidResetToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT `+userCols+`
		FROM users
		WHERE password_reset_token = $1
		  AND password_reset_expires > now()
		  AND `+activeUsers,
		tokenHash,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, opts *query.Options) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := activeUsers
	args := []any{}
	if clause, condArgs := opts.WhereClause(1); clause != "" {
		where += " AND " + clause
		args = condArgs
	}

	sql := fmt.Sprintf(
		`SELECT `+userCols+` FROM users WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		where, opts.OrderBy("created_at DESC"), opts.Limit, opts.Offset(),
	)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateProfile applies only the fields present in the request.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, req *domain.UpdateMeRequest) (*domain.User, error) {
	sets, args := []string{}, []any{}
	addSet(&sets, &args, "name", req.Name)
	addSet(&sets, &args, "email", req.Email)
	addSet(&sets, &args, "photo", req.Photo)
	return r.update(ctx, id, sets, args)
}

// UpdateAsAdmin additionally allows role and active changes.
func (r *UserRepository) UpdateAsAdmin(ctx context.Context, id int64, req *domain.AdminUpdateUserRequest) (*domain.User, error) {
	sets, args := []string{}, []any{}
	addSet(&sets, &args, "name", req.Name)
	addSet(&sets, &args, "email", req.Email)
	addSet(&sets, &args, "photo", req.Photo)
	addSet(&sets, &args, "role", req.Role)
	addSet(&sets, &args, "active", req.Active)
	return r.update(ctx, id, sets, args)
}

func (r *UserRepository) update(ctx context.Context, id int64, sets []string, args []any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if len(sets) == 0 {
		return r.FindByIDAnyState(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING `+userCols,
		strings.Join(sets, ", "), len(args),
	), args...)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("Duplicate field value: email. Please use another value")
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// UpdatePassword stores the new hash and stamps password_changed_at.
// changedAt is backdated by the caller so tokens minted in the same second
// stay valid.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1,
		    password_changed_at = $2,
		    password_reset_token = NULL,
		    password_reset_expires = NULL,
		    updated_at = now()
		WHERE id = $3`,
		passwordHash, changedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_reset_token = $1, password_reset_expires = $2, updated_at = now()
		WHERE id = $3`,
		tokenHash, expires, id,
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// ClearResetToken rolls the reset state back, used when delivery fails.
func (r *UserRepository) ClearResetToken(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_reset_token = NULL, password_reset_expires = NULL, updated_at = now()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

// Deactivate soft-deletes the account. The row stays for bookings history.
func (r *UserRepository) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`UPDATE users SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}

// Delete removes the row outright. Admin only; self-service goes through
// Deactivate.
func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var resetToken *string
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Photo, &u.Role, &u.PasswordHash,
		&u.PasswordChangedAt, &resetToken, &u.PasswordResetExpires,
		&u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if resetToken != nil {
		u.PasswordResetToken = *resetToken
	}
	return &u, nil
}

// addSet appends "col = $n" for non-nil values.
func addSet[T any](sets *[]string, args *[]any, col string, val *T) {
	if val == nil {
		return
	}
	*args = append(*args, *val)
	*sets = append(*sets, fmt.Sprintf("%s = $%d", col, len(*args)))
}
