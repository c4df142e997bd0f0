package addresses

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

const addressColumns = `id, user_id, type, name, street, COALESCE(apartment, ''), city, state, zip, country,
       phone, is_default, COALESCE(instructions, ''), created_at, updated_at`

func scanAddress(row pgx.Row) (Address, error) {
	var (
		a     Address
		atype string
	)
	err := row.Scan(&a.ID, &a.UserID, &atype, &a.Name, &a.Street, &a.Apartment, &a.City, &a.State,
		&a.Zip, &a.Country, &a.Phone, &a.IsDefault, &a.Instructions, &a.CreatedAt, &a.UpdatedAt)
	a.Type = Type(atype)
	return a, err
}

func (r *Repository) List(ctx context.Context, userID int64) ([]Address, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+addressColumns+`
FROM addresses
WHERE user_id = $1
ORDER BY is_default DESC, created_at ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts the address; when it is the default, the other addresses
// are demoted by the same statement.
func (r *Repository) Create(ctx context.Context, userID int64, a Address) (Address, error) {
	row := r.q.QueryRow(ctx, `
WITH demoted AS (
  UPDATE addresses SET is_default = false, updated_at = now()
  WHERE user_id = $1 AND $11::boolean AND is_default
)
INSERT INTO addresses (user_id, type, name, street, apartment, city, state, zip, country, phone, is_default, instructions)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, NULLIF($12, ''))
RETURNING `+addressColumns,
		userID, string(a.Type), a.Name, a.Street, a.Apartment, a.City, a.State, a.Zip, a.Country,
		a.Phone, a.IsDefault, a.Instructions)

	out, err := scanAddress(row)
	if err != nil {
		return Address{}, fmt.Errorf("insert address: %w", err)
	}
	return out, nil
}

func (r *Repository) Update(ctx context.Context, userID int64, a Address) (Address, error) {
	row := r.q.QueryRow(ctx, `
WITH demoted AS (
  UPDATE addresses SET is_default = false, updated_at = now()
  WHERE user_id = $1 AND $12::boolean AND is_default AND id <> $2
)
UPDATE addresses
SET type = $3, name = $4, street = $5, apartment = NULLIF($6, ''), city = $7, state = $8,
    zip = $9, country = $10, phone = $11, is_default = $12, instructions = NULLIF($13, ''),
    updated_at = now()
WHERE user_id = $1 AND id = $2
RETURNING `+addressColumns,
		userID, a.ID, string(a.Type), a.Name, a.Street, a.Apartment, a.City, a.State, a.Zip,
		a.Country, a.Phone, a.IsDefault, a.Instructions)

	out, err := scanAddress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	if err != nil {
		return Address{}, fmt.Errorf("update address: %w", err)
	}
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, userID int64, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM addresses WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDefault flips every address of the user in one statement, so there is
// never a moment with zero or two defaults.
func (r *Repository) SetDefault(ctx context.Context, userID int64, id string) (Address, error) {
	tag, err := r.q.Exec(ctx, `
UPDATE addresses
SET is_default = (id = $2), updated_at = now()
WHERE user_id = $1
  AND EXISTS (SELECT 1 FROM addresses WHERE user_id = $1 AND id = $2)
`, userID, id)
	if err != nil {
		return Address{}, fmt.Errorf("set default address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Address{}, ErrNotFound
	}

	a, err := scanAddress(r.q.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 AND id = $2`, userID, id))
	if err != nil {
		return Address{}, fmt.Errorf("get address: %w", err)
	}
	return a, nil
}
