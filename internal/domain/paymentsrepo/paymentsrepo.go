package paymentsrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

// Repository is the payment journal: one row per provider reference plus
// an append-only payment_logs trail.
type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

// Record upserts the attempt keyed by (provider, provider_ref) and logs the
// raw provider payload.
func (r *Repository) Record(ctx context.Context, provider, ref string, amountCents int64, currency, status string, payload any) error {
	raw := marshal(payload)

	var id int64
	if err := r.q.QueryRow(ctx, `
		INSERT INTO payments (provider, provider_ref, amount_cents, currency, status, gateway_response)
		VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'USD'), $5, $6)
		ON CONFLICT (provider, provider_ref)
		DO UPDATE SET status = EXCLUDED.status,
		              gateway_response = COALESCE(EXCLUDED.gateway_response, payments.gateway_response),
		              updated_at = now()
		RETURNING id
	`, provider, ref, amountCents, currency, status, raw).Scan(&id); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	return r.insertLog(ctx, id, "response", raw)
}

// AttachToOrder links a journaled payment to the order it paid for.
func (r *Repository) AttachToOrder(ctx context.Context, provider, ref string, orderID int64) error {
	_, err := r.q.Exec(ctx, `
		UPDATE payments SET order_id = $3, updated_at = now()
		WHERE provider = $1 AND provider_ref = $2
	`, provider, ref, orderID)
	if err != nil {
		return fmt.Errorf("attach payment: %w", err)
	}
	return nil
}

// FlagForReconciliation marks money that was taken without an order.
func (r *Repository) FlagForReconciliation(ctx context.Context, provider, ref, note string) error {
	var id int64
	err := r.q.QueryRow(ctx, `
		UPDATE payments
		   SET status = $3, note = $4, updated_at = now()
		 WHERE provider = $1 AND provider_ref = $2
		RETURNING id
	`, provider, ref, StatusNeedsReconciliation, note).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// never journaled; keep a row so support can find it
		err = r.q.QueryRow(ctx, `
			INSERT INTO payments (provider, provider_ref, amount_cents, currency, status, note)
			VALUES ($1, $2, 0, 'USD', $3, $4)
			RETURNING id
		`, provider, ref, StatusNeedsReconciliation, note).Scan(&id)
	}
	if err != nil {
		return fmt.Errorf("flag payment: %w", err)
	}
	return r.insertLog(ctx, id, "error", marshal(map[string]string{"note": note}))
}

func (r *Repository) GetByProviderRef(ctx context.Context, provider, ref string) (*Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE provider = $1 AND provider_ref = $2
		LIMIT 1
	`, provider, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by provider_ref: %w", err)
	}
	return p, nil
}

func (r *Repository) ListNeedingReconciliation(ctx context.Context, limit, offset int) ([]*Payment, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+paymentColumns+`, COUNT(*) OVER() AS total_count
		FROM payments
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, StatusNeedsReconciliation, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var (
		out   []*Payment
		total int
	)
	for rows.Next() {
		var t int
		p, err := scanPayment(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return out, total, nil
}

const paymentColumns = `id, order_id, provider, provider_ref, amount_cents, currency, status,
		       note, gateway_response, created_at, updated_at`

func scanPayment(row pgx.Row, extra ...any) (*Payment, error) {
	var p Payment
	dest := []any{
		&p.ID, &p.OrderID, &p.Provider, &p.ProviderRef, &p.AmountCents, &p.Currency, &p.Status,
		&p.Note, &p.GatewayResp, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) insertLog(ctx context.Context, paymentID int64, logType string, payload []byte) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO payment_logs (payment_id, log_type, payload)
		VALUES ($1, $2, $3)
	`, paymentID, logType, payload)
	if err != nil {
		return fmt.Errorf("insert payment_log: %w", err)
	}
	return nil
}

func marshal(payload any) []byte {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return b
}
