package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain/addresses"
	"storefront/internal/domain/carts"
	"storefront/internal/domain/orders"
	"storefront/internal/payments"
	"storefront/internal/pricing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentExecutor interface {
	Execute(ctx context.Context, req payments.Request) (payments.Result, error)
}

type Reconciler interface {
	FlagForReconciliation(ctx context.Context, res payments.Result, note string) error
}

// Orchestrator drives one checkout: Shipping -> Payment -> Confirmation, with
// Payment -> Shipping as the only way back. It never calls a notifying cart
// method while holding mu, because cart subscribers take mu.
type Orchestrator struct {
	identity   Identity
	cart       *carts.Store
	orders     orders.Backend
	payer      PaymentExecutor
	reconciler Reconciler
	cfg        Config
	logger     *zap.SugaredLogger
	reference  string

	mu          sync.Mutex
	state       State
	cartCleared bool
	settled     *payments.Result
	redirect    *time.Timer
	redirectGen uint64
	closed      bool
	unsubscribe func()

	clearMu sync.Mutex
}

func New(
	identity Identity,
	cart *carts.Store,
	backend orders.Backend,
	payer PaymentExecutor,
	reconciler Reconciler,
	cfg Config,
	logger *zap.SugaredLogger,
) *Orchestrator {
	snap := cart.Snapshot()
	o := &Orchestrator{
		identity:   identity,
		cart:       cart,
		orders:     backend,
		payer:      payer,
		reconciler: reconciler,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		reference:  uuid.NewString(),
		state: State{
			CurrentStep:    StepShipping,
			ShippingMethod: snap.ShippingMethod,
		},
	}
	o.unsubscribe = cart.Subscribe(o.onCartChange)
	o.onCartChange(snap)
	return o
}

// Reference identifies this checkout to payment providers.
func (o *Orchestrator) Reference() string { return o.reference }

func (o *Orchestrator) Identity() Identity { return o.identity }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

// Terminal reports whether the order is placed and a new checkout is needed.
func (o *Orchestrator) Terminal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.OrderConfirmed
}

// Close detaches from the cart and stops the redirect timer.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.stopRedirectLocked()
	unsub := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (o *Orchestrator) SelectAddress(a addresses.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	cp := a
	o.state.Address = &cp
	return nil
}

func (o *Orchestrator) SetGuestInfo(g GuestInfo) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	t := g.trimmed()
	o.state.Guest = &t
	return nil
}

// SelectShippingMethod pushes the method into the cart so totals follow it.
func (o *Orchestrator) SelectShippingMethod(m pricing.ShippingMethod) error {
	if _, ok := pricing.LookupShipping(m); !ok {
		return fmt.Errorf("%w: unknown shipping method %q", ErrInvalidTransition, m)
	}

	o.mu.Lock()
	err := o.editableLocked()
	o.mu.Unlock()
	if err != nil {
		return err
	}

	if err := o.cart.SetShippingMethod(m); err != nil {
		return err
	}

	o.mu.Lock()
	o.state.ShippingMethod = m
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) SelectPaymentMethod(m payments.Method) error {
	if m == payments.MethodApplePay || !m.Known() {
		return fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, m)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.state.PaymentMethod = m
	return nil
}

func (o *Orchestrator) SetAgreeToTerms(agree bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.state.AgreeToTerms = agree
	return nil
}

func (o *Orchestrator) SetNotes(notes string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.state.Notes = strings.TrimSpace(notes)
	return nil
}

func (o *Orchestrator) CompleteShipping() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.OrderConfirmed {
		return ErrOrderAlreadyPlaced
	}
	if o.state.CurrentStep != StepShipping {
		return ErrInvalidTransition
	}

	if err := o.validateShippingLocked(); err != nil {
		o.state.LastError = err.Error()
		return err
	}
	if o.cart.Snapshot().IsEmpty() {
		o.state.LastError = ErrEmptyCart.Error()
		return ErrEmptyCart
	}

	o.state.CurrentStep = StepPayment
	o.state.LastError = ""
	return nil
}

func (o *Orchestrator) Back() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state.CurrentStep {
	case StepShipping:
		return nil
	case StepPayment:
		if o.state.IsProcessing {
			return ErrAlreadyProcessing
		}
		o.state.CurrentStep = StepShipping
		o.state.LastError = ""
		return nil
	}
	return ErrInvalidTransition
}

// Pay charges the frozen cart total with the selected method and then
// creates the order. A payment that already settled in an earlier attempt is
// reused rather than charged again, provided the total has not changed.
func (o *Orchestrator) Pay(ctx context.Context, in PaymentInput) (*orders.Order, error) {
	at, err := o.begin()
	if err != nil {
		return nil, err
	}

	if at.settled != nil {
		return o.submit(ctx, at, at.settled)
	}

	res, err := o.payer.Execute(ctx, payments.Request{
		Method:        at.state.PaymentMethod,
		AmountCents:   at.cart.TotalCents,
		Currency:      o.cfg.Currency,
		Email:         o.contactEmail(at.state),
		Reference:     o.reference,
		ClientSecret:  in.ClientSecret,
		Card:          in.Card,
		PayPalOrderID: in.PayPalOrderID,
	})
	if err != nil {
		o.fail(err.Error())
		return nil, err
	}
	if res.AmountCents == 0 {
		res.AmountCents = at.cart.TotalCents
	}
	if res.Currency == "" {
		res.Currency = o.cfg.Currency
	}

	return o.submit(ctx, at, &res)
}

// CreateOrder places the order with a payment result obtained elsewhere.
// A nil result is allowed only for methods that settle later.
func (o *Orchestrator) CreateOrder(ctx context.Context, res *payments.Result) (*orders.Order, error) {
	at, err := o.begin()
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = at.settled
	}
	if res == nil && !at.state.PaymentMethod.SettlesLater() {
		o.fail(ErrPaymentResultRequired.Error())
		return nil, ErrPaymentResultRequired
	}
	return o.submit(ctx, at, res)
}

// EnsureCartCleared empties the cart once per confirmed order. Repeat calls
// are no-ops.
func (o *Orchestrator) EnsureCartCleared(ctx context.Context) error {
	o.clearMu.Lock()
	defer o.clearMu.Unlock()

	o.mu.Lock()
	confirmed, cleared := o.state.OrderConfirmed, o.cartCleared
	o.mu.Unlock()

	if !confirmed {
		return ErrNotConfirmed
	}
	if cleared {
		return nil
	}

	if err := o.cart.Clear(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	o.cartCleared = true
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) Confirmation() (Confirmation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.OrderConfirmed || o.state.OrderData == nil {
		return Confirmation{}, ErrNotConfirmed
	}

	od := o.state.OrderData
	status := payments.StatusPending
	if od.PaymentResult != nil && od.PaymentResult.Status != "" {
		status = od.PaymentResult.Status
	}
	return Confirmation{
		OrderNumber:     od.OrderNumber,
		Items:           append([]orders.Item(nil), od.Items...),
		Pricing:         od.Pricing,
		ShippingAddress: od.ShippingAddress,
		PaymentMethod:   od.PaymentMethod,
		PaymentStatus:   status,
		IsPaid:          od.IsPaid,
		CouponCode:      od.CouponCode,
		PlacedAt:        od.CreatedAt,
	}, nil
}

type attempt struct {
	state   State
	cart    carts.Snapshot
	settled *payments.Result
}

// begin runs the order guards in order and freezes the cart.
func (o *Orchestrator) begin() (attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.CurrentStep != StepPayment {
		if o.state.OrderConfirmed {
			return attempt{}, ErrOrderAlreadyPlaced
		}
		return attempt{}, ErrInvalidTransition
	}
	if !o.state.AgreeToTerms {
		o.state.LastError = ErrTermsNotAccepted.Error()
		return attempt{}, ErrTermsNotAccepted
	}
	if o.state.IsProcessing {
		return attempt{}, ErrAlreadyProcessing
	}
	if o.state.PaymentMethod == "" {
		o.state.LastError = ErrPaymentMethodRequired.Error()
		return attempt{}, ErrPaymentMethodRequired
	}

	snap, err := o.cart.Freeze()
	if err != nil {
		o.state.LastError = err.Error()
		return attempt{}, err
	}
	if snap.IsEmpty() {
		o.cart.Thaw()
		o.state.LastError = ErrEmptyCart.Error()
		return attempt{}, ErrEmptyCart
	}

	o.state.IsProcessing = true
	o.state.LastError = ""

	at := attempt{state: o.stateLocked(), cart: snap}
	if o.settled != nil && o.settled.Method == o.state.PaymentMethod {
		if !o.settled.Covers(snap.TotalCents, o.cfg.Currency) {
			o.logger.Warnw("cart total changed after a settled payment",
				"payment_id", o.settled.ID, "paid", o.settled.AmountCents, "total", snap.TotalCents, "reference", o.reference)
			o.state.IsProcessing = false
			o.state.LastError = ErrPaymentAmountChanged.Error()
			o.cart.Thaw()
			return attempt{}, ErrPaymentAmountChanged
		}
		cp := *o.settled
		at.settled = &cp
	}
	return at, nil
}

func (o *Orchestrator) submit(ctx context.Context, at attempt, res *payments.Result) (*orders.Order, error) {
	payload := o.buildPayload(at, res)

	var userID *int64
	if o.identity.Authenticated() {
		id := o.identity.UserID
		userID = &id
	}

	order, err := o.orders.Create(ctx, userID, payload)
	if err != nil {
		if res != nil && res.Settled() {
			return nil, o.reconcile(ctx, *res, err)
		}

		msg := GenericOrderFailure
		var rej *orders.RejectedError
		if errors.As(err, &rej) && rej.Message != "" {
			msg = rej.Message
		}
		o.logger.Warnw("order creation failed", "reference", o.reference, "error", err)
		o.fail(msg)
		return nil, &OrderError{Message: msg, Err: err}
	}

	// confirmed before the cart empties, so the redirect guard stays quiet
	o.mu.Lock()
	o.state.OrderData = order
	o.state.OrderConfirmed = true
	o.state.CurrentStep = StepConfirmation
	o.state.IsProcessing = false
	o.state.LastError = ""
	o.settled = nil
	o.stopRedirectLocked()
	o.mu.Unlock()

	o.cart.Thaw()

	o.logger.Infow("order placed", "order_number", order.OrderNumber, "owner", o.cart.Owner(), "total", order.Pricing.TotalPrice)

	if err := o.EnsureCartCleared(ctx); err != nil {
		o.logger.Warnw("cart clear after order failed", "order_number", order.OrderNumber, "error", err)
	}
	return order, nil
}

func (o *Orchestrator) reconcile(ctx context.Context, res payments.Result, cause error) error {
	rerr := &ReconciliationError{Method: res.Method, PaymentID: res.ID, Err: cause}
	o.logger.Errorw("payment settled but order creation failed",
		"payment_id", res.ID, "method", res.Method, "reference", o.reference, "error", cause)

	if o.reconciler != nil {
		if err := o.reconciler.FlagForReconciliation(ctx, res, cause.Error()); err != nil {
			o.logger.Errorw("flag for reconciliation failed", "payment_id", res.ID, "error", err)
		}
	}

	o.mu.Lock()
	cp := res
	o.settled = &cp
	o.mu.Unlock()

	o.fail(rerr.Error())
	return rerr
}

func (o *Orchestrator) fail(msg string) {
	o.mu.Lock()
	o.state.IsProcessing = false
	o.state.LastError = msg
	o.mu.Unlock()
	o.cart.Thaw()
}

func (o *Orchestrator) buildPayload(at attempt, res *payments.Result) orders.Payload {
	snap := at.cart

	items := make([]orders.Item, 0, len(snap.Items))
	for _, l := range snap.Items {
		it := orders.Item{
			Product:  l.ProductID,
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    pricing.Dollars(l.PriceCents),
			Image:    l.Image,
		}
		if l.Variant != nil {
			it.Size = l.Variant.Size
			it.Color = l.Variant.Color
		}
		items = append(items, it)
	}

	p := orders.Payload{
		ShippingAddress: o.shippingAddress(at.state),
		PaymentMethod:   string(at.state.PaymentMethod),
		Items:           items,
		ItemsPrice:      pricing.Dollars(snap.SubtotalCents),
		ShippingPrice:   pricing.Dollars(snap.ShippingCents),
		TaxPrice:        pricing.Dollars(snap.TaxCents),
		TotalPrice:      pricing.Dollars(snap.TotalCents),
		Notes:           at.state.Notes,
	}
	if c := snap.AppliedCoupon(); c != nil {
		p.CouponCode = c.Code
	}
	if res != nil {
		p.PaymentIntentID = res.IntentID
		p.PaymentResult = &orders.PaymentResult{
			ID:           res.ID,
			Status:       res.Status,
			UpdateTime:   res.UpdateTime,
			EmailAddress: res.EmailAddress,
		}
	}
	return p
}

func (o *Orchestrator) shippingAddress(s State) orders.ShippingAddress {
	if o.identity.Authenticated() && s.Address != nil {
		a := s.Address
		return orders.ShippingAddress{
			Name:         a.Name,
			Email:        o.identity.Email,
			Address:      a.Street,
			Apartment:    a.Apartment,
			City:         a.City,
			State:        a.State,
			ZipCode:      a.Zip,
			Country:      a.Country,
			Phone:        a.Phone,
			Instructions: a.Instructions,
		}
	}
	if s.Guest == nil {
		return orders.ShippingAddress{}
	}
	g := s.Guest
	return orders.ShippingAddress{
		Name:      strings.TrimSpace(g.FirstName + " " + g.LastName),
		Email:     g.Email,
		Address:   g.Address,
		Apartment: g.Apartment,
		City:      g.City,
		State:     g.State,
		ZipCode:   g.ZipCode,
		Country:   g.Country,
		Phone:     g.Phone,
	}
}

func (o *Orchestrator) contactEmail(s State) string {
	if o.identity.Authenticated() {
		return o.identity.Email
	}
	if s.Guest != nil {
		return s.Guest.Email
	}
	return ""
}

func (o *Orchestrator) validateShippingLocked() error {
	if o.identity.Authenticated() {
		if o.state.Address == nil {
			return ErrMissingAddress
		}
		return nil
	}

	var g GuestInfo
	if o.state.Guest != nil {
		g = *o.state.Guest
	}
	err := validate.Struct(g)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var missing []string
	badEmail := false
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			missing = append(missing, fe.Field())
		case "email":
			badEmail = true
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteGuestInfo, strings.Join(missing, ", "))
	}
	if badEmail {
		return ErrInvalidEmail
	}
	return err
}

func (o *Orchestrator) editableLocked() error {
	if o.state.OrderConfirmed {
		return ErrOrderAlreadyPlaced
	}
	if o.state.IsProcessing {
		return ErrAlreadyProcessing
	}
	return nil
}

func (o *Orchestrator) stateLocked() State {
	s := o.state
	if s.Address != nil {
		a := *s.Address
		s.Address = &a
	}
	if s.Guest != nil {
		g := *s.Guest
		s.Guest = &g
	}
	return s
}

// onCartChange arms the redirect when the cart empties before confirmation
// and disarms it when items come back.
func (o *Orchestrator) onCartChange(snap carts.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state.OrderConfirmed {
		o.stopRedirectLocked()
		return
	}

	if !snap.IsEmpty() {
		o.stopRedirectLocked()
		o.state.Redirect = ""
		return
	}

	if o.redirect != nil {
		return
	}
	o.redirectGen++
	gen := o.redirectGen
	o.redirect = time.AfterFunc(o.cfg.RedirectDelay, func() { o.fireRedirect(gen) })
}

func (o *Orchestrator) fireRedirect(gen uint64) {
	o.mu.Lock()
	if gen != o.redirectGen || o.redirect == nil || o.closed || o.state.OrderConfirmed {
		o.mu.Unlock()
		return
	}
	o.redirect = nil
	if !o.cart.Snapshot().IsEmpty() {
		o.mu.Unlock()
		return
	}
	to := o.cfg.RedirectTo
	o.state.Redirect = to
	cb := o.cfg.OnRedirect
	o.mu.Unlock()

	o.logger.Infow("checkout redirect", "owner", o.cart.Owner(), "to", to)
	if cb != nil {
		cb(to)
	}
}

func (o *Orchestrator) stopRedirectLocked() {
	if o.redirect != nil {
		o.redirect.Stop()
		o.redirect = nil
	}
	o.redirectGen++
}
