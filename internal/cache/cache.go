package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CartCache holds serialized carts keyed by user id in front of the cart repository.
//
// Writers that just persisted a cart use Set, which overwrites. Readers that loaded a
// cart from the repository use Fill, which never replaces an existing entry: a reader's
// copy can be older than what a writer already put in the cache.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	// Fill stores cart only when the user has no entry and reports whether it was stored.
	Fill(ctx context.Context, userID string, cart *domain.Cart) (bool, error)
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
