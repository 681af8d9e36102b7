// Package repositories holds the relational store adapters. The chat
// core only needs the users table: lookups by email, handle or id and
// full-row updates when membership changes.
package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/errors"
)

type IUserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByHandle(ctx context.Context, handle string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	Insert(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
}

// UserRepository talks to Postgres through a pgx pool.
type UserRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewUserRepository(pool *pgxpool.Pool, log *slog.Logger) *UserRepository {
	return &UserRepository{pool: pool, log: log}
}

const userColumns = `email, handle, password, age, country, preferences,
	suspended, age_verified, userid, phone_number, joined, description,
	last_agent, last_approx_country, avatar_url, email_verified, last_login,
	failed_login_attempts, locked_until, timezone, enrolled_chats`

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) GetByHandle(ctx context.Context, handle string) (domain.User, error) {
	return r.getBy(ctx, "handle", handle)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getBy(ctx, "userid", id)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (domain.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s = $1", userColumns, column)

	var user domain.User
	var enrolled string
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&user.Email, &user.Handle, &user.Password, &user.Age, &user.Country,
		&user.Preferences, &user.Suspended, &user.AgeVerified, &user.UserID,
		&user.PhoneNumber, &user.Joined, &user.Description, &user.LastAgent,
		&user.LastApproxCountry, &user.AvatarURL, &user.EmailVerified,
		&user.LastLogin, &user.FailedLoginAttempts, &user.LockedUntil,
		&user.Timezone, &enrolled,
	)
	if err == pgx.ErrNoRows {
		return domain.User{}, fmt.Errorf("%w: user %s=%s", errors.ErrNotFound, column, value)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: select user: %v", errors.ErrStorageRead, err)
	}

	user.EnrolledChats = SplitChats(enrolled)
	return user, nil
}

func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	query := fmt.Sprintf(`INSERT INTO users (%s) VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		 $16, $17, $18, $19, $20, $21)`, userColumns)

	_, err := r.pool.Exec(ctx, query, r.args(user)...)
	if conflict := uniqueConflict(err, user); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("%w: insert user: %v", errors.ErrStorageWrite, err)
	}
	return nil
}

// Update replaces the full row. The caller owns retry policy; a failed
// update after an in-memory membership change is the documented
// consistency gap and is handled one level up.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	query := `UPDATE users SET email = $1, handle = $2, password = $3,
		age = $4, country = $5, preferences = $6, suspended = $7,
		age_verified = $8, userid = $9, phone_number = $10, joined = $11,
		description = $12, last_agent = $13, last_approx_country = $14,
		avatar_url = $15, email_verified = $16, last_login = $17,
		failed_login_attempts = $18, locked_until = $19, timezone = $20,
		enrolled_chats = $21
		WHERE userid = $9`

	tag, err := r.pool.Exec(ctx, query, r.args(user)...)
	if err != nil {
		return fmt.Errorf("%w: update user: %v", errors.ErrStorageWrite, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", errors.ErrNotFound, user.UserID)
	}
	return nil
}

func (r *UserRepository) args(user domain.User) []any {
	return []any{
		user.Email, user.Handle, user.Password, user.Age, user.Country,
		user.Preferences, user.Suspended, user.AgeVerified, user.UserID,
		user.PhoneNumber, user.Joined, user.Description, user.LastAgent,
		user.LastApproxCountry, user.AvatarURL, user.EmailVerified,
		user.LastLogin, user.FailedLoginAttempts, user.LockedUntil,
		user.Timezone, JoinChats(user.EnrolledChats),
	}
}

// uniqueConflict maps a unique violation to the sentinel for the
// constraint that fired. The users table has unique indexes on both
// email and handle; callers tell them apart by sentinel.
func uniqueConflict(err error, user domain.User) error {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "handle") {
		return fmt.Errorf("%w: %s", errors.ErrHandleAlreadyTaken, user.Handle)
	}
	return fmt.Errorf("%w: %s", errors.ErrUserAlreadyExists, user.Email)
}

// JoinChats flattens a membership set into the comma-joined column
// format of the users table.
func JoinChats(chats []string) string {
	return strings.Join(chats, ",")
}

// SplitChats parses the enrolled_chats column. The empty column means no
// memberships, not one empty membership.
func SplitChats(column string) []string {
	if column == "" {
		return nil
	}
	return strings.Split(column, ",")
}
