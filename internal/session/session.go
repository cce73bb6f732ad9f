package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	// ErrStale is returned when the session was reset or ended while a request was in flight.
	ErrStale = errors.New("session changed while request was in flight")
	// ErrInFlight is returned when the same action is already running for the session.
	ErrInFlight = errors.New("action already in progress")
)

// Store persists carts between requests.
type Store interface {
	Load(ctx context.Context, userID string) (*cart.Cart, error)
	Save(ctx context.Context, c domain.Cart) error
	Clear(ctx context.Context, userID string) error
}

// Session is one signed-in user's state. All cart mutations for the user go through it
// and are applied one at a time in arrival order. The cart itself is not kept here: every
// read and mutation goes to the Store, so resets made by other processes are seen.
type Session struct {
	userID string
	store  Store

	mu sync.Mutex

	generation atomic.Uint64
	lastSeen   atomic.Int64

	tokenMu sync.RWMutex
	token   string

	flightMu sync.Mutex
	inflight map[string]struct{}
}

func newSession(userID, token string, store Store) *Session {
	return &Session{
		userID:   userID,
		store:    store,
		token:    token,
		inflight: make(map[string]struct{}),
	}
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// idleSince reports whether the session was last used before cutoff and nothing is
// running on it.
func (s *Session) idleSince(cutoff time.Time) bool {
	if s.lastSeen.Load() >= cutoff.UnixNano() {
		return false
	}
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	return len(s.inflight) == 0
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) Token() string {
	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	return s.token
}

func (s *Session) setToken(token string) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	s.token = token
}

// Generation changes whenever the cart is reset or the session ends. Capture it before
// starting network calls and pass it to Mutate to reject results that arrive too late.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// Cart returns a snapshot of the current cart.
func (s *Session) Cart(ctx context.Context) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.load(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	return c.Snapshot(), nil
}

// Mutate loads the cart, applies fn and persists the result. If fn or the save fails,
// the stored cart is left untouched.
func (s *Session) Mutate(ctx context.Context, generation uint64, fn func(c *cart.Cart) error) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation.Load() {
		return domain.Cart{}, ErrStale
	}
	next, err := s.load(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := fn(next); err != nil {
		return domain.Cart{}, err
	}
	snapshot := next.Snapshot()
	if err := s.store.Save(ctx, snapshot); err != nil {
		return domain.Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return snapshot, nil
}

// Begin marks action as running. The returned release must be called when it finishes.
func (s *Session) Begin(action string) (release func(), err error) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if _, busy := s.inflight[action]; busy {
		return nil, fmt.Errorf("%w: %s", ErrInFlight, action)
	}
	s.inflight[action] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.flightMu.Lock()
			delete(s.inflight, action)
			s.flightMu.Unlock()
		})
	}, nil
}

// resetCart clears the persisted cart.
func (s *Session) resetCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation.Add(1)
	return s.store.Clear(ctx, s.userID)
}

// resetCartIf resets only when the current cart is cartID, so a cart started after that
// order is kept.
func (s *Session) resetCartIf(ctx context.Context, cartID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if current.ID() != cartID {
		return false, nil
	}
	s.generation.Add(1)
	return true, s.store.Clear(ctx, s.userID)
}

// settleOrder removes what was ordered from the cart. The generation is kept: requests
// still running add to the cart that follows the order.
func (s *Session) settleOrder(ctx context.Context, ordered domain.Cart) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return settle(ctx, s.store, s.userID, ordered)
}

func (s *Session) load(ctx context.Context) (*cart.Cart, error) {
	c, err := s.store.Load(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

// settle replaces the ordered cart with its remainder, or clears it when nothing is left.
// A cart that is no longer the ordered one was already reset and is returned as is.
func settle(ctx context.Context, store Store, userID string, ordered domain.Cart) (domain.Cart, error) {
	current, err := store.Load(ctx, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	if current.ID() != ordered.ID {
		return current.Snapshot(), nil
	}

	remainder := current.Remainder(ordered)
	if remainder.Len() == 0 {
		if err := store.Clear(ctx, userID); err != nil {
			return domain.Cart{}, err
		}
		return remainder.Snapshot(), nil
	}
	snapshot := remainder.Snapshot()
	if err := store.Save(ctx, snapshot); err != nil {
		return domain.Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return snapshot, nil
}
