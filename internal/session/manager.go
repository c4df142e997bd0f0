package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/domain/addresses"
	"storefront/internal/domain/carts"
	"storefront/internal/domain/coupons"

	"go.uber.org/zap"
)

type Manager struct {
	deps   Deps
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps, ttl time.Duration, logger *zap.SugaredLogger) *Manager {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Manager{
		deps:     deps,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the caller's session, building it and loading its cart on
// first use. Two concurrent first requests end up sharing one session.
func (m *Manager) Get(ctx context.Context, identity checkout.Identity, guestToken string) (*Session, error) {
	key, err := Key(identity, guestToken)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if ok {
		s.touch(m.now())
		return s, nil
	}

	fresh, err := m.build(ctx, key, identity)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if s, ok = m.sessions[key]; !ok {
		m.sessions[key] = fresh
		s = fresh
	}
	m.mu.Unlock()

	s.touch(m.now())
	return s, nil
}

func (m *Manager) build(ctx context.Context, key string, identity checkout.Identity) (*Session, error) {
	cart := carts.NewStore(key, m.deps.Carts, m.deps.Calculator, m.logger)
	if err := cart.Load(ctx); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	s := &Session{
		Key:      key,
		Identity: identity,
		Cart:     cart,
		Coupons:  coupons.NewResolver(cart, m.deps.Coupons, m.logger),
		deps:     &m.deps,
		logger:   m.logger,
	}
	if identity.Authenticated() && m.deps.Addresses != nil {
		s.Addresses = addresses.NewBook(identity.UserID, m.deps.Addresses, m.logger)
	}
	return s, nil
}

// End drops a session, for example on logout. The persisted cart survives.
func (m *Manager) End(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if ok {
		s.close()
		m.logger.Infow("session ended", "session", key)
	}
}

// Sweep ends sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var idle []*Session
	for key, s := range m.sessions {
		if s.idleSince(now) > m.ttl {
			idle = append(idle, s)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
	}
	return len(idle)
}

// Run sweeps on a ticker until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Infow("idle sessions swept", "count", n)
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
