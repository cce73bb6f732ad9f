package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartStore persists session carts in the repository with a read-through cache in front.
type CartStore struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	sfg    singleflight.Group // Prevents cache stampede
	logger *zap.Logger
}

func NewCartStore(repo repository.CartRepository, cache cache.CartCache, logger *zap.Logger) *CartStore {
	return &CartStore{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Load returns the user's cart, or a new empty cart if none is stored.
// A cart read from the repository is put in the cache before Load returns, and only
// if no other writer got there first.
func (s *CartStore) Load(ctx context.Context, userID string) (*cart.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		stored, err := s.cache.Get(ctx, userID)
		if err == nil {
			return stored, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get error", zap.String("user_id", userID), zap.Error(err))
		}

		stored, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			return nil, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		if _, errFill := s.cache.Fill(ctx, userID, stored); errFill != nil {
			s.logger.Warn("cache fill error", zap.String("user_id", userID), zap.Error(errFill))
		}
		return stored, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	stored, _ := v.(*domain.Cart)
	if stored == nil {
		return cart.New(userID), nil
	}
	// Restore copies the snapshot, so callers sharing a singleflight result never alias.
	return cart.Restore(*stored), nil
}

// Save persists c and writes it through to the cache. If the cache write fails the
// entry is dropped instead, so the cache never serves an older cart than the repository.
func (s *CartStore) Save(ctx context.Context, c domain.Cart) error {
	if err := s.repo.SaveCart(ctx, &c); err != nil {
		s.logger.Error("repo save cart error", zap.String("user_id", c.UserID), zap.Error(err))
		return err
	}

	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Set(cacheCtx, c.UserID, &c); err != nil {
		s.logger.Warn("cache set error", zap.String("user_id", c.UserID), zap.Error(err))
		s.invalidateCache(c.UserID)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, userID string) error {
	errDelete := s.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, repository.ErrCartNotFound) {
		s.logger.Error("repo delete cart error", zap.String("user_id", userID), zap.Error(errDelete))
		return errDelete
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartStore) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(err))
	}
}
