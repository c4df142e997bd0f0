package users

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Store interface {
	GetByID(context.Context, int64) (*User, error)
	GetByEmail(context.Context, string) (*User, error)
	Create(ctx context.Context, user *User) error
	SaveRefreshToken(ctx context.Context, userID int64, refreshToken string) error
	DeleteRefreshToken(ctx context.Context, userID int64) error
	MatchRefreshToken(ctx context.Context, userID int64, refreshToken string) (bool, error)
}

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) Store {
	return &Repository{q: q}
}

const userColumns = `id, first_name, last_name, email, phone, password, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone,
		&u.Password.hash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// NormalizeEmail is how emails are stored and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Repository) Create(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	user.Email = NormalizeEmail(user.Email)

	err := r.q.QueryRow(ctx, `
		INSERT INTO users (first_name, last_name, email, phone, password, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id, is_active, created_at, updated_at`,
		user.FirstName, user.LastName, user.Email, user.Phone, user.Password.hash,
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID returns active users only; a deactivated account stops
// authenticating at once.
func (r *Repository) GetByID(ctx context.Context, userID int64) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return scanUser(r.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active = true`, userID))
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return scanUser(r.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active = true`, NormalizeEmail(email)))
}

// SaveRefreshToken keeps only a digest of the token.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID int64, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.q.Exec(ctx, `UPDATE users SET refresh_token = $1, updated_at = NOW() WHERE id = $2`,
		digest(refreshToken), userID)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (r *Repository) DeleteRefreshToken(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.q.Exec(ctx, `UPDATE users SET refresh_token = NULL, updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// MatchRefreshToken reports whether refreshToken is the last one issued to
// the user. A user with no saved token never matches.
func (r *Repository) MatchRefreshToken(ctx context.Context, userID int64, refreshToken string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var saved *string
	err := r.q.QueryRow(ctx, `SELECT refresh_token FROM users WHERE id = $1 AND is_active = true`, userID).Scan(&saved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load refresh token: %w", err)
	}
	if saved == nil {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(*saved), []byte(digest(refreshToken))) == 1, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
