package session

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

// Manager holds the live sessions of this process and their lifecycle hooks.
type Manager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Start returns the user's session, creating it on first use. A non-empty token replaces
// the stored one.
func (m *Manager) Start(userID, token string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		s = newSession(userID, token, m.store)
		m.sessions[userID] = s
		m.logger.Debug("session started", zap.String("user_id", userID))
	} else if token != "" {
		s.setToken(token)
	}
	s.touch(m.now())
	return s
}

func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// ResetCart empties the user's cart, e.g. after an order was placed.
// Requests that started before the reset fail with ErrStale.
func (m *Manager) ResetCart(ctx context.Context, userID string) error {
	if s, ok := m.Lookup(userID); ok {
		return s.resetCart(ctx)
	}
	return m.store.Clear(ctx, userID)
}

// ResetCartIfCurrent empties the user's cart only if its id is cartID. An empty cartID
// resets unconditionally.
func (m *Manager) ResetCartIfCurrent(ctx context.Context, userID, cartID string) (bool, error) {
	if cartID == "" {
		return true, m.ResetCart(ctx, userID)
	}
	if s, ok := m.Lookup(userID); ok {
		return s.resetCartIf(ctx, cartID)
	}
	stored, err := m.store.Load(ctx, userID)
	if err != nil {
		return false, err
	}
	if stored.ID() != cartID {
		return false, nil
	}
	return true, m.store.Clear(ctx, userID)
}

// SettleOrder removes the lines of an accepted order from the user's cart. Lines added
// or quantity raised while the order was being placed stay, in a cart with a new id.
// Nothing happens if the ordered cart was already reset.
func (m *Manager) SettleOrder(ctx context.Context, userID string, ordered domain.Cart) (domain.Cart, error) {
	if s, ok := m.Lookup(userID); ok {
		return s.settleOrder(ctx, ordered)
	}
	return settle(ctx, m.store, userID, ordered)
}

// End finishes the session on logout or expired authentication: credentials are dropped
// and the cart is reset.
func (m *Manager) End(ctx context.Context, userID, reason string) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	m.logger.Info("session ended", zap.String("user_id", userID), zap.String("reason", reason))
	if !ok {
		return m.store.Clear(ctx, userID)
	}
	s.setToken("")
	return s.resetCart(ctx)
}

// EndIfToken ends the session only while token is still its credential, so an expired
// token sent by an old client does not end a newer sign-in.
func (m *Manager) EndIfToken(ctx context.Context, userID, token, reason string) (bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if !ok || s.Token() != token {
		m.mu.Unlock()
		return false, nil
	}
	delete(m.sessions, userID)
	m.mu.Unlock()

	m.logger.Info("session ended", zap.String("user_id", userID), zap.String("reason", reason))
	s.setToken("")
	return true, s.resetCart(ctx)
}

// EvictIdle forgets sessions unused for longer than idle. Their carts stay in the store;
// the next request starts a new session. Sessions with work in progress are kept.
func (m *Manager) EvictIdle(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for userID, s := range m.sessions {
		if s.idleSince(cutoff) {
			delete(m.sessions, userID)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Debug("idle sessions evicted", zap.Int("count", evicted), zap.Int("remaining", len(m.sessions)))
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(idle)
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
