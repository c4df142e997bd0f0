package payments

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/speps/go-hashids/v2"
)

// CashOnDelivery settles nothing up front; it only issues a local reference.
type CashOnDelivery struct {
	hd  *hashids.HashID
	seq atomic.Int64
	now func() time.Time
}

func NewCashOnDelivery(salt string) (*CashOnDelivery, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 8

	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("cod hashids: %w", err)
	}
	return &CashOnDelivery{hd: h, now: time.Now}, nil
}

func (c *CashOnDelivery) Execute(_ context.Context, req Request) (Result, error) {
	now := c.now().UTC()
	id, err := c.hd.EncodeInt64([]int64{now.UnixMilli(), c.seq.Add(1)})
	if err != nil {
		return Result{}, &PaymentError{Method: MethodCOD, Message: "could not create cash on delivery reference", Err: err}
	}
	return Result{
		ID:           "COD-" + id,
		Status:       StatusPending,
		UpdateTime:   now.Format(time.RFC3339),
		EmailAddress: req.Email,
	}, nil
}
