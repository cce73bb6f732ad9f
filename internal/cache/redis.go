package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 15 * time.Minute
	maxJitter  = 5 * time.Minute
)

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = defaultTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Set overwrites the user's entry with the base TTL plus up to five minutes of jitter
// so entries written together do not expire together.
func (r RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(userID), payload, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Fill is SET NX: a cart written by Set in the meantime is kept.
func (r RedisCache) Fill(ctx context.Context, userID string, cart *domain.Cart) (bool, error) {
	payload, err := json.Marshal(cart)
	if err != nil {
		return false, fmt.Errorf("marshal cart failed: %w", err)
	}
	stored, err := r.client.SetNX(ctx, cacheKey(userID), payload, r.ttl()).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return stored, nil
}

func (r RedisCache) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r RedisCache) ttl() time.Duration {
	return r.baseTTL + time.Duration(rand.Int63n(int64(maxJitter)))
}

func cacheKey(userID string) string {
	return fmt.Sprintf("storefront:cart:%s", userID)
}
