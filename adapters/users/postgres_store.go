package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/layer-3/warden/adapters/postgres"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/samber/oops"
)

const userColumns = `id, email, password_hash, email_verified, created_at, updated_at`

// PostgresStore reads and updates the users table
type PostgresStore struct {
	db postgres.DBTX
}

// NewPostgresStore creates a user store over a pool or transaction
func NewPostgresStore(db postgres.DBTX) ports.UserStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)
	`, normalizeEmail(email))

	user, err := scanUser(row)
	if err != nil {
		return nil, queryError(err, "select user by email", "")
	}
	return user, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*core.User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if err != nil {
		return nil, queryError(err, "select user by id", id)
	}
	return user, nil
}

// Update applies the non-nil fields; NULL parameters keep the current column value
func (s *PostgresStore) Update(ctx context.Context, id string, upd core.UserUpdate) (*core.User, error) {
	if upd.Empty() {
		return s.FindByID(ctx, id)
	}

	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET password_hash = COALESCE($2, password_hash),
		    email_verified = COALESCE($3, email_verified),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, upd.PasswordHash, upd.EmailVerified)

	user, err := scanUser(row)
	if err != nil {
		return nil, queryError(err, "update user", id)
	}
	return user, nil
}

func (s *PostgresStore) Create(ctx context.Context, user *core.User) (*core.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.New().String()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, email_verified)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, id, normalizeEmail(user.Email), user.PasswordHash, user.EmailVerified)

	created, err := scanUser(row)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, core.ErrConflict
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return created, nil
}

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func queryError(err error, operation, userID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	b := oops.Code("USER_QUERY_FAILED").With("operation", operation)
	if userID != "" {
		b = b.With("user_id", userID)
	}
	return b.Wrap(err)
}
