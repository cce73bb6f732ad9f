package repository

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestDB(t *testing.T) CartRepository {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, MongoConfig{URI: uri, Database: "testdb", MaxPoolSize: 5})
	require.NoError(t, err)

	return NewMongoRepository(db)
}

func cartWithLines(userID, cartID string, quantities ...int) *domain.Cart {
	cart := &domain.Cart{ID: cartID, UserID: userID}
	for i, q := range quantities {
		line := domain.CartLineItem{
			ID:              cartID + "-line",
			MenuItem:        domain.MenuItem{ID: int64(i + 1), Name: "Bún chả", BasePrice: 70000},
			Options:         []domain.OptionValue{{ID: 5, Value: "Thêm chả", AdditionalPrice: 20000}},
			Quantity:        q,
			PriceAtAddition: 90000,
		}
		cart.Items = append(cart.Items, line)
		cart.TotalPrice += line.ExtendedPrice()
	}
	return cart
}

func TestGetCart_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	cart, err := repo.GetCart(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestSaveCart_InsertThenReplace(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, cartWithLines("user123", "cart-a", 2)))

	stored, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "cart-a", stored.ID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.Equal(t, domain.Money(90000), stored.Items[0].PriceAtAddition)
	assert.Equal(t, "Thêm chả", stored.Items[0].Options[0].Value)
	assert.Equal(t, domain.Money(180000), stored.TotalPrice)
	assert.False(t, stored.CreatedAt.IsZero())

	require.NoError(t, repo.SaveCart(ctx, cartWithLines("user123", "cart-a", 1, 3)))

	stored, err = repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, domain.Money(360000), stored.TotalPrice)
}

func TestSaveCart_NewCartIDAfterReset(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, cartWithLines("user1", "cart-a", 1)))
	require.NoError(t, repo.SaveCart(ctx, cartWithLines("user1", "cart-b", 4)))

	stored, err := repo.GetCart(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, "cart-b", stored.ID)
}

func TestDeleteCart(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, cartWithLines("user1", "cart-a", 1)))
	require.NoError(t, repo.DeleteCart(ctx, "user1"))

	_, err := repo.GetCart(ctx, "user1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	assert.ErrorIs(t, repo.DeleteCart(ctx, "user1"), ErrCartNotFound)
}

func TestConnectMongoDB_CreatesUniqueUserIndex(t *testing.T) {
	ctx := context.Background()
	coll := setupTestDB(t).(*mongoRepository).collection

	_, err := coll.InsertOne(ctx, bson.M{"user_id": "dup", "cart_id": "a"})
	require.NoError(t, err)
	_, err = coll.InsertOne(ctx, bson.M{"user_id": "dup", "cart_id": "b"})
	assert.True(t, mongo.IsDuplicateKeyError(err), "expected duplicate key error, got %v", err)
}
