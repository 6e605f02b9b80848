package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
)

// UserRepository is the directory store: read paths consumed by the
// approval engine plus the admin CRUD surface.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, username, role, email, active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.Username, &user.Role, &user.Email, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get user")
	}
	return user, nil
}

// GetUserByUsername retrieves a user by its unique username.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", username)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get user")
	}
	return user, nil
}

func (r *UserRepository) listUsers(ctx context.Context, query string, args ...interface{}) ([]*User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list users")
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan user")
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListUsers returns the full directory.
func (r *UserRepository) ListUsers(ctx context.Context) ([]*User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
}

// ListEligibleApprovers returns active users holding the approver role.
func (r *UserRepository) ListEligibleApprovers(ctx context.Context) ([]*User, error) {
	return r.listUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 AND active ORDER BY username`,
		RoleApprover)
}

// ListAlertEmails returns the registered emails of active approvers and
// admins, for the submission mail fan-out.
func (r *UserRepository) ListAlertEmails(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT email FROM users
		 WHERE role IN ($1, $2) AND active AND email IS NOT NULL AND email <> ''
		 ORDER BY email`,
		RoleApprover, RoleAdmin)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list alert emails")
	}
	defer rows.Close()

	emails := make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan alert email")
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// CreateUser inserts a directory entry. Usernames are unique.
func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, role, email, active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		user.Username, user.Role, user.Email, user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err, "users_username_key") {
		return apperrors.Newf(apperrors.ErrCodeAlreadyExists, "username %q is already taken", user.Username)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create user")
	}
	return nil
}

// UpdateUser applies a partial update: each optional field falls back
// to the stored value via COALESCE, with fixed parameters rather than
// statement construction.
func (r *UserRepository) UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET email  = COALESCE($2, email),
		     role   = COALESCE($3, role),
		     active = COALESCE($4, active),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, patch.Email, patch.Role, patch.Active))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update user")
	}
	return user, nil
}
