package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/infra/dbx"
	"storefront/internal/pricing"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q   dbx.Querier
	gen *OrderNumberGenerator
}

func NewRepository(q dbx.Querier, gen *OrderNumberGenerator) *Repository {
	if gen == nil {
		panic("orders: OrderNumberGenerator is nil")
	}
	return &Repository{q: q, gen: gen}
}

// Create snapshots the payload into orders and order_items.
//
// Assumes this is called INSIDE a transaction.
func (r *Repository) Create(ctx context.Context, userID *int64, p Payload) (*Order, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	itemsCents := pricing.FromDollars(p.ItemsPrice)
	shippingCents := pricing.FromDollars(p.ShippingPrice)
	taxCents := pricing.FromDollars(p.TaxPrice)
	totalCents := pricing.FromDollars(p.TotalPrice)
	discountCents := itemsCents + shippingCents + taxCents - totalCents
	if discountCents < 0 || discountCents > itemsCents {
		return nil, &RejectedError{Message: "Order total does not match its price breakdown"}
	}

	var lineSum int64
	for _, it := range p.Items {
		lineSum += pricing.FromDollars(it.Price) * int64(it.Quantity)
	}
	if lineSum != itemsCents {
		return nil, &RejectedError{Message: "Items price does not match the order items"}
	}

	owner := "guest:" + p.ShippingAddress.Email
	if userID != nil {
		owner = "user:" + strconv.FormatInt(*userID, 10)
	}

	ship, err := json.Marshal(p.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	var payResult []byte
	if p.PaymentResult != nil {
		if payResult, err = json.Marshal(p.PaymentResult); err != nil {
			return nil, fmt.Errorf("marshal payment result: %w", err)
		}
	}

	o := &Order{
		OrderNumber:     r.gen.Generate(owner),
		UserID:          userID,
		ShippingAddress: p.ShippingAddress,
		PaymentMethod:   p.PaymentMethod,
		PaymentIntentID: p.PaymentIntentID,
		Items:           p.Items,
		PaymentResult:   p.PaymentResult,
		CouponCode:      p.CouponCode,
		Notes:           p.Notes,
		Status:          "pending",
		IsPaid:          p.PaymentResult.Paid(),
		Pricing: Pricing{
			ItemsPrice:    pricing.Dollars(itemsCents),
			DiscountPrice: pricing.Dollars(discountCents),
			ShippingPrice: pricing.Dollars(shippingCents),
			TaxPrice:      pricing.Dollars(taxCents),
			TotalPrice:    pricing.Dollars(totalCents),
		},
	}
	if o.IsPaid {
		now := time.Now().UTC()
		o.PaidAt = &now
		o.Status = "processing"
	}

	err = r.q.QueryRow(ctx, `
INSERT INTO orders (
  user_id, order_number, status, payment_method, payment_intent_id, is_paid, paid_at,
  shipping_address, payment_result, coupon_code, notes, guest_email,
  subtotal_cents, discount_cents, shipping_cents, tax_cents, total_cents
)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
        $13, $14, $15, $16, $17)
RETURNING id, created_at`,
		userID, o.OrderNumber, o.Status, o.PaymentMethod, o.PaymentIntentID, o.IsPaid, o.PaidAt,
		ship, payResult, o.CouponCode, o.Notes, guestEmail(userID, p.ShippingAddress.Email),
		itemsCents, discountCents, shippingCents, taxCents, totalCents,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range p.Items {
		unit := pricing.FromDollars(it.Price)
		if _, err := r.q.Exec(ctx, `
INSERT INTO order_items (order_id, product_id, product_name, image_url, size, color,
                         quantity, unit_price_cents, total_price_cents)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)`,
			o.ID, it.Product, it.Name, it.Image, it.Size, it.Color,
			it.Quantity, unit, unit*int64(it.Quantity),
		); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}

		if _, err := r.q.Exec(ctx, `
UPDATE products
SET stock_quantity = stock_quantity - $2
WHERE id = $1 AND track_inventory = true`, it.Product, it.Quantity); err != nil {
			return nil, fmt.Errorf("reserve stock: %w", err)
		}
	}

	return o, nil
}

const orderColumns = `id, user_id, order_number, status, payment_method, COALESCE(payment_intent_id, ''),
       is_paid, paid_at, shipping_address, payment_result, COALESCE(coupon_code, ''), COALESCE(notes, ''),
       subtotal_cents, discount_cents, shipping_cents, tax_cents, total_cents, created_at`

func scanOrder(row pgx.Row, extra ...any) (Order, error) {
	var (
		o                                   Order
		ship, payResult                     []byte
		items, discount, shipping, tax, tot int64
	)
	dest := []any{
		&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentMethod, &o.PaymentIntentID,
		&o.IsPaid, &o.PaidAt, &ship, &payResult, &o.CouponCode, &o.Notes,
		&items, &discount, &shipping, &tax, &tot, &o.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Order{}, err
	}
	if len(ship) > 0 {
		_ = json.Unmarshal(ship, &o.ShippingAddress)
	}
	if len(payResult) > 0 {
		o.PaymentResult = &PaymentResult{}
		_ = json.Unmarshal(payResult, o.PaymentResult)
	}
	o.Pricing = Pricing{
		ItemsPrice:    pricing.Dollars(items),
		DiscountPrice: pricing.Dollars(discount),
		ShippingPrice: pricing.Dollars(shipping),
		TaxPrice:      pricing.Dollars(tax),
		TotalPrice:    pricing.Dollars(tot),
	}
	return o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64, status string, limit, offset int) ([]Order, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	// If status is empty string => no filter
	rows, err := r.q.Query(ctx, `
SELECT `+orderColumns+`,
       COUNT(*) OVER() AS total_count
FROM orders
WHERE user_id = $1
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`,
		userID, status, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		out   []Order
		total int
	)
	for rows.Next() {
		var t int
		o, err := scanOrder(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repository) GetByNumberForUser(ctx context.Context, userID int64, orderNumber string) (*Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE order_number = $1 AND user_id = $2`, orderNumber, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *Repository) loadItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.q.Query(ctx, `
SELECT product_id, product_name, COALESCE(image_url, ''), COALESCE(size, ''), COALESCE(color, ''),
       quantity, unit_price_cents
FROM order_items
WHERE order_id = $1
ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it   Item
			unit int64
		)
		if err := rows.Scan(&it.Product, &it.Name, &it.Image, &it.Size, &it.Color, &it.Quantity, &unit); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.Price = pricing.Dollars(unit)
		items = append(items, it)
	}
	return items, rows.Err()
}

func guestEmail(userID *int64, email string) string {
	if userID != nil {
		return ""
	}
	return email
}
