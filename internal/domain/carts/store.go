package carts

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"storefront/internal/domain/products"
	"storefront/internal/pricing"

	"go.uber.org/zap"
)

// Store is the session cart. Mutations apply locally first, then commit to
// the backend under a per-item key lock; the latest request for an item owns
// its visible value and failures roll back to the last committed state.
type Store struct {
	owner   string
	backend Backend
	calc    pricing.Calculator
	logger  *zap.SugaredLogger

	mu        sync.Mutex
	order     []string
	items     map[string]*CartItem
	committed map[string]CartItem
	latest    map[string]uint64
	inflight  map[string]bool
	errs      map[string]string
	keyLocks  map[string]*sync.Mutex
	seq       uint64
	coupon    *pricing.Coupon
	shipping  pricing.ShippingMethod
	breakdown pricing.Breakdown
	locked    bool
	version   uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

func NewStore(owner string, backend Backend, calc pricing.Calculator, logger *zap.SugaredLogger) *Store {
	return &Store{
		owner:     owner,
		backend:   backend,
		calc:      calc,
		logger:    logger,
		items:     make(map[string]*CartItem),
		committed: make(map[string]CartItem),
		latest:    make(map[string]uint64),
		inflight:  make(map[string]bool),
		errs:      make(map[string]string),
		keyLocks:  make(map[string]*sync.Mutex),
		shipping:  pricing.ShippingStandard,
		subs:      make(map[int]func(Snapshot)),
	}
}

func (s *Store) Owner() string { return s.owner }

// Load replaces local state with the backend's view of the cart.
func (s *Store) Load(ctx context.Context) error {
	saved, err := s.backend.Load(ctx, s.owner)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	s.mu.Lock()
	s.order = s.order[:0]
	s.items = make(map[string]*CartItem, len(saved))
	s.committed = make(map[string]CartItem, len(saved))
	for _, it := range saved {
		cp := it
		s.order = append(s.order, it.ItemID)
		s.items[it.ItemID] = &cp
		s.committed[it.ItemID] = it
	}
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) InFlight(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[itemID]
}

// AddItem appends a line or increments the matching one.
func (s *Store) AddItem(ctx context.Context, p products.Product, quantity int, v *Variant) (Mutation, error) {
	if quantity <= 0 {
		return Mutation{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if v != nil {
		if err := p.CheckVariant(v.Size, v.Color); err != nil {
			return Mutation{}, err
		}
	}

	id := ItemID(p.ID, v)
	maxStock := p.MaxStock()

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return Mutation{}, ErrCartLocked
	}

	next := CartItem{
		ItemID:     id,
		ProductID:  p.ID,
		Name:       p.Name,
		Image:      p.ImageURL,
		Quantity:   quantity,
		PriceCents: p.PriceCents,
		Variant:    copyVariant(v),
		MaxStock:   maxStock,
	}
	if cur, ok := s.items[id]; ok {
		next.Quantity += cur.Quantity
		next.PriceCents = cur.PriceCents
	}

	if maxStock == 0 {
		s.mu.Unlock()
		return Mutation{}, fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
	}
	if next.Quantity > maxStock {
		s.mu.Unlock()
		return Mutation{}, fmt.Errorf("%w: only %d of %s available", ErrOutOfStock, maxStock, p.Name)
	}

	seq := s.stageLocked(id, &next)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	return s.commit(ctx, id, seq, func(ctx context.Context) (*CartItem, error) {
		saved, err := s.backend.Upsert(ctx, s.owner, next)
		if err != nil {
			return nil, err
		}
		return &saved, nil
	})
}

// UpdateQuantity sets an absolute quantity. Zero removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) (Mutation, error) {
	if quantity < 0 {
		return Mutation{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, itemID)
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return Mutation{}, ErrCartLocked
	}
	cur, ok := s.items[itemID]
	if !ok {
		s.mu.Unlock()
		return Mutation{}, ErrItemNotFound
	}
	if quantity > cur.MaxStock {
		s.mu.Unlock()
		return Mutation{}, fmt.Errorf("%w: only %d of %s available", ErrInsufficientStock, cur.MaxStock, cur.Name)
	}

	next := *cur
	next.Quantity = quantity
	seq := s.stageLocked(itemID, &next)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	return s.commit(ctx, itemID, seq, func(ctx context.Context) (*CartItem, error) {
		saved, err := s.backend.Upsert(ctx, s.owner, next)
		if err != nil {
			return nil, err
		}
		return &saved, nil
	})
}

// RemoveItem deletes a line. Removing an absent line is a no-op.
func (s *Store) RemoveItem(ctx context.Context, itemID string) (Mutation, error) {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return Mutation{}, ErrCartLocked
	}
	if _, ok := s.items[itemID]; !ok {
		s.mu.Unlock()
		return Mutation{ItemID: itemID, Status: MutationCommitted}, nil
	}

	seq := s.stageLocked(itemID, nil)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	return s.commit(ctx, itemID, seq, func(ctx context.Context) (*CartItem, error) {
		return nil, s.backend.Remove(ctx, s.owner, itemID)
	})
}

// Clear empties the cart and drops the coupon. Every pending line mutation
// is superseded.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrCartLocked
	}

	if len(s.items) == 0 && len(s.committed) == 0 && len(s.inflight) == 0 {
		if s.coupon == nil {
			s.mu.Unlock()
			return nil
		}
		s.coupon = nil
		s.recomputeLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return nil
	}

	prevOrder := slices.Clone(s.order)
	prevCoupon := s.coupon
	pending := slices.Clone(s.order)
	for id := range s.inflight {
		if !slices.Contains(pending, id) {
			pending = append(pending, id)
		}
	}
	slices.Sort(pending)
	for _, id := range pending {
		s.seq++
		s.latest[id] = s.seq
	}
	s.order = s.order[:0]
	s.items = make(map[string]*CartItem)
	s.inflight = make(map[string]bool)
	s.errs = make(map[string]string)
	s.coupon = nil
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	// writes already at the backend must land before the clear
	for _, id := range pending {
		lock := s.keyLock(id)
		lock.Lock()
		defer lock.Unlock()
	}

	if err := s.backend.Clear(ctx, s.owner); err != nil {
		s.mu.Lock()
		for _, id := range prevOrder {
			c, ok := s.committed[id]
			if !ok {
				continue
			}
			if _, exists := s.items[id]; exists {
				continue
			}
			cp := c
			s.items[id] = &cp
			s.order = append(s.order, id)
		}
		if s.coupon == nil {
			s.coupon = prevCoupon
		}
		s.recomputeLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)

		s.logger.Warnw("cart clear failed", "owner", s.owner, "error", err)
		return fmt.Errorf("clear cart: %w", err)
	}

	s.mu.Lock()
	for id := range s.committed {
		if _, ok := s.items[id]; !ok {
			delete(s.committed, id)
		}
	}
	s.mu.Unlock()
	return nil
}

// ApplyCoupon replaces the current coupon in one step.
func (s *Store) ApplyCoupon(c pricing.Coupon) error {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrCartLocked
	}
	if sub := s.subtotalLocked(); !c.Eligible(sub) {
		s.mu.Unlock()
		return fmt.Errorf("%w: minimum order is $%s", ErrCouponBelowMinimum, pricing.Format(c.MinimumCents))
	}
	cp := c
	s.coupon = &cp
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Store) RemoveCoupon() error {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrCartLocked
	}
	if s.coupon == nil {
		s.mu.Unlock()
		return nil
	}
	s.coupon = nil
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Store) SetShippingMethod(m pricing.ShippingMethod) error {
	if _, ok := pricing.LookupShipping(m); !ok {
		return fmt.Errorf("unknown shipping method %q", m)
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrCartLocked
	}
	if s.shipping == m {
		s.mu.Unlock()
		return nil
	}
	s.shipping = m
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Freeze locks the cart against mutation and returns the snapshot checkout
// prices against. It fails while any line is still in flight.
func (s *Store) Freeze() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return Snapshot{}, ErrCartLocked
	}
	if len(s.inflight) > 0 {
		return Snapshot{}, ErrCartSyncing
	}
	s.locked = true
	return s.snapshotLocked(), nil
}

func (s *Store) Thaw() {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
}

// Subscribe registers fn for every state change. Callbacks run outside the
// store lock, on the goroutine that made the change.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) commit(ctx context.Context, id string, seq uint64, call func(context.Context) (*CartItem, error)) (Mutation, error) {
	lock := s.keyLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	superseded := s.latest[id] != seq
	s.mu.Unlock()
	if superseded {
		return Mutation{ItemID: id, Status: MutationSuperseded}, nil
	}

	saved, err := call(ctx)

	s.mu.Lock()
	if s.latest[id] != seq {
		if err == nil {
			s.recordCommittedLocked(id, saved)
		}
		s.mu.Unlock()
		return Mutation{ItemID: id, Status: MutationSuperseded}, nil
	}

	if err != nil {
		s.rollbackLocked(id)
		s.errs[id] = err.Error()
		delete(s.inflight, id)
		s.recomputeLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)

		s.logger.Warnw("cart mutation failed", "owner", s.owner, "item", id, "error", err)
		return Mutation{ItemID: id, Status: MutationFailed, Error: err.Error()}, fmt.Errorf("cart item %s: %w", id, err)
	}

	s.recordCommittedLocked(id, saved)
	if saved == nil {
		delete(s.items, id)
	} else {
		cp := *saved
		s.items[id] = &cp
	}
	delete(s.inflight, id)
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	return Mutation{ItemID: id, Status: MutationCommitted}, nil
}

func (s *Store) keyLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[id] = l
	}
	return l
}

// stageLocked applies an optimistic value (nil removes) and returns the
// request's sequence number.
func (s *Store) stageLocked(id string, item *CartItem) uint64 {
	if item == nil {
		delete(s.items, id)
	} else {
		if !slices.Contains(s.order, id) {
			s.order = append(s.order, id)
		}
		cp := *item
		s.items[id] = &cp
	}
	s.seq++
	s.latest[id] = s.seq
	s.inflight[id] = true
	delete(s.errs, id)
	s.recomputeLocked()
	return s.seq
}

func (s *Store) recordCommittedLocked(id string, saved *CartItem) {
	if saved == nil {
		delete(s.committed, id)
		return
	}
	s.committed[id] = *saved
}

func (s *Store) rollbackLocked(id string) {
	c, ok := s.committed[id]
	if !ok {
		delete(s.items, id)
		return
	}
	cp := c
	s.items[id] = &cp
	if !slices.Contains(s.order, id) {
		s.order = append(s.order, id)
	}
}

func (s *Store) subtotalLocked() int64 {
	var sum int64
	for _, it := range s.items {
		sum += it.LineTotalCents()
	}
	return sum
}

func (s *Store) recomputeLocked() {
	s.order = slices.DeleteFunc(s.order, func(id string) bool {
		_, visible := s.items[id]
		return !visible && !s.inflight[id]
	})
	s.breakdown = s.calc.Compute(s.subtotalLocked(), s.coupon, s.shipping)
	s.version++
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Owner:          s.owner,
		Items:          make([]Line, 0, len(s.items)),
		ShippingMethod: s.shipping,
		Breakdown:      s.breakdown,
		Locked:         s.locked,
		Version:        s.version,
	}
	for _, id := range s.order {
		it, ok := s.items[id]
		if !ok {
			continue
		}
		line := Line{
			CartItem:       *it,
			LineTotalCents: it.LineTotalCents(),
			Pending:        s.inflight[id],
			Error:          s.errs[id],
		}
		line.Variant = copyVariant(it.Variant)
		snap.Items = append(snap.Items, line)
		snap.ItemCount += it.Quantity
	}
	if s.coupon != nil {
		c := *s.coupon
		snap.Coupon = &c
		snap.CouponEligible = c.Eligible(s.breakdown.SubtotalCents)
	}
	return snap
}

func copyVariant(v *Variant) *Variant {
	if v.empty() {
		return nil
	}
	cp := *v
	return &cp
}
