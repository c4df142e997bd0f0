package pushtokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/infra/dbx"
)

const QueryTimeoutDuration = 5 * time.Second

// Store keeps the Expo tokens of signed-in shoppers. It satisfies
// notifications.TokenSource.
type Store interface {
	Save(ctx context.Context, userID int64, token string, device json.RawMessage) error
	Remove(ctx context.Context, userID int64, token string) error
	GetTokensByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error)
}

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) Store {
	return &Repository{q: q}
}

// Save registers token for userID. A token seen before under another user
// moves to this one, since a device signs in as one shopper at a time.
func (r *Repository) Save(ctx context.Context, userID int64, token string, device json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if len(device) == 0 {
		device = json.RawMessage(`{}`)
	}

	q := `
		INSERT INTO shopper_push_tokens (expo_push_token, user_id, device_info, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (expo_push_token)
		DO UPDATE SET user_id = EXCLUDED.user_id, device_info = EXCLUDED.device_info, updated_at = NOW()`

	if _, err := r.q.Exec(ctx, q, token, userID, device); err != nil {
		return fmt.Errorf("save push token: %w", err)
	}
	return nil
}

// Remove forgets token for userID only; another shopper's token is left alone.
func (r *Repository) Remove(ctx context.Context, userID int64, token string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := r.q.Exec(ctx, `DELETE FROM shopper_push_tokens WHERE user_id = $1 AND expo_push_token = $2`, userID, token); err != nil {
		return fmt.Errorf("remove push token: %w", err)
	}
	return nil
}

func (r *Repository) GetTokensByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.q.Query(ctx, `
		SELECT user_id, expo_push_token
		FROM shopper_push_tokens
		WHERE user_id = ANY($1)
		ORDER BY updated_at DESC`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			uid   int64
			token string
		)
		if err := rows.Scan(&uid, &token); err != nil {
			return nil, err
		}
		out[uid] = append(out[uid], token)
	}
	return out, rows.Err()
}
