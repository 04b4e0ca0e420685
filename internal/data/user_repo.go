// Package data provides PostgreSQL-backed repositories.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quillhq/entra-sso/internal/data/pgxutil"
	domainauth "github.com/quillhq/entra-sso/internal/domain/auth"
	"github.com/quillhq/entra-sso/internal/ports"
)

const userColumns = `id, username, email, role, suspended, password_hash, created_at, updated_at`

const userGetByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`

// userRow maps a users table row for pgx row collection.
type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	Suspended    bool      `db:"suspended"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) toDomain() *domainauth.User {
	return &domainauth.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		Role:         r.Role,
		Suspended:    r.Suspended,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// UserRepo provides database operations for local user accounts.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

// GetByEmail retrieves a user by email, matching case-insensitively.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domainauth.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ports.ErrUserNotFound
	}

	var row userRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, userGetByEmailQuery, email)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return row.toDomain(), nil
}

// Create inserts a new user. A unique index on lower(email) guarantees
// at most one row per email; collisions surface as ports.ErrUserExists
// so callers can re-read the winning row.
func (r *UserRepo) Create(ctx context.Context, in ports.CreateUserInput) (*domainauth.User, error) {
	if in.Username == "" || in.Email == "" {
		return nil, errors.New("username and email are required")
	}

	createdAt := r.timeProvider.Now().UTC()
	var out userRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (
				id, username, email, role, suspended, password_hash, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, false, $5, $6, $6
			) RETURNING `+userColumns,
			uuid.NewString(),
			in.Username,
			strings.ToLower(strings.TrimSpace(in.Email)),
			in.Role,
			in.PasswordHash,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err)
	}
	return out.toDomain(), nil
}

// mapWriteErr maps database errors to sentinel errors.
func (r *UserRepo) mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ports.ErrUserExists
	}
	return fmt.Errorf("failed to create user: %w", err)
}
