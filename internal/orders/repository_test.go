package orders

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	repo, err := NewRepository(ctx, creds)
	require.NoError(t, err)

	require.NoError(t, repo.RunMigrations())
	// second run is a no-op
	require.NoError(t, repo.RunMigrations())

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func receipt(key, userID string, createdAt time.Time) *domain.OrderReceipt {
	return &domain.OrderReceipt{
		IdempotencyKey: key,
		UserID:         userID,
		CartID:         "cart-" + key,
		OrderCode:      "ORD-" + key,
		TotalPrice:     180000,
		ItemCount:      2,
		CreatedAt:      createdAt,
	}
}

func TestGetByIdempotencyKey_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := repo.GetByIdempotencyKey(context.Background(), "nonexistent-key")
	assert.ErrorIs(t, err, ErrReceiptNotFound)
	assert.Nil(t, got)
}

func TestSaveReceipt_Success(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	created := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.SaveReceipt(ctx, receipt("idem-1", "user-1", created)))

	got, err := repo.GetByIdempotencyKey(ctx, "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "ORD-idem-1", got.OrderCode)
	assert.Equal(t, "cart-idem-1", got.CartID)
	assert.Equal(t, domain.Money(180000), got.TotalPrice)
	assert.Equal(t, 2, got.ItemCount)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestSaveReceipt_DuplicateIdempotencyKey(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.SaveReceipt(ctx, receipt("dup", "user-1", time.Now())))

	err := repo.SaveReceipt(ctx, receipt("dup", "user-2", time.Now()))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestListByUser_NewestFirst(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.SaveReceipt(ctx, receipt("a", "user-1", base)))
	require.NoError(t, repo.SaveReceipt(ctx, receipt("b", "user-1", base.Add(time.Minute))))
	require.NoError(t, repo.SaveReceipt(ctx, receipt("c", "user-2", base.Add(2*time.Minute))))
	require.NoError(t, repo.SaveReceipt(ctx, receipt("d", "user-1", base.Add(3*time.Minute))))

	got, err := repo.ListByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "d", got[0].IdempotencyKey)
	assert.Equal(t, "b", got[1].IdempotencyKey)
	assert.Equal(t, "a", got[2].IdempotencyKey)

	limited, err := repo.ListByUser(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repo.ListByUser(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)

	_, err := repo.GetByIdempotencyKey(ctx, "any-key")
	assert.Error(t, err)
}
