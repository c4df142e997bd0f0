package paymentsrepo

import (
	"context"
	"encoding/json"
	"time"
)

type Payment struct {
	ID          int64           `json:"id"`
	OrderID     *int64          `json:"order_id,omitempty"`
	Provider    string          `json:"provider"`     // stripe, paypal, cash_on_delivery
	ProviderRef string          `json:"provider_ref"` // intent id, paypal order id, COD reference
	AmountCents int64           `json:"amount_cents"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"` // pending, succeeded, failed, needs_reconciliation
	Note        *string         `json:"note,omitempty"`
	GatewayResp json.RawMessage `json:"gateway_response,omitempty" swaggertype:"object"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const StatusNeedsReconciliation = "needs_reconciliation"

type Store interface {
	Record(ctx context.Context, provider, ref string, amountCents int64, currency, status string, payload any) error
	AttachToOrder(ctx context.Context, provider, ref string, orderID int64) error
	FlagForReconciliation(ctx context.Context, provider, ref, note string) error
	GetByProviderRef(ctx context.Context, provider, ref string) (*Payment, error)
	ListNeedingReconciliation(ctx context.Context, limit, offset int) ([]*Payment, int, error)
}
