package orders

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	ErrReceiptNotFound = errors.New("order receipt not found")
	ErrDuplicateKey    = errors.New("idempotency key already used")
)

const uniqueViolation = "23505"

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (c *Credentials) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// ReceiptStore records orders the backend accepted so a retried submission with the
// same idempotency key returns the original order instead of placing a second one.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, receipt *domain.OrderReceipt) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.OrderReceipt, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.OrderReceipt, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, cred *Credentials) (*Repository, error) {
	db, err := sql.Open("postgres", cred.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.PingContext(ctx); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) SaveReceipt(ctx context.Context, receipt *domain.OrderReceipt) error {
	query := `INSERT INTO placed_orders (idempotency_key, user_id, cart_id, order_code, total_price, item_count, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		receipt.IdempotencyKey,
		receipt.UserID,
		receipt.CartID,
		receipt.OrderCode,
		int64(receipt.TotalPrice),
		receipt.ItemCount,
		receipt.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (r *Repository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.OrderReceipt, error) {
	query := `SELECT idempotency_key, user_id, cart_id, order_code, total_price, item_count, created_at
              FROM placed_orders WHERE idempotency_key = $1`

	receipt, err := scanReceipt(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

// ListByUser returns the user's receipts, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.OrderReceipt, error) {
	query := `SELECT idempotency_key, user_id, cart_id, order_code, total_price, item_count, created_at
              FROM placed_orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]domain.OrderReceipt, 0)
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, *receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	return receipts, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (*domain.OrderReceipt, error) {
	var (
		receipt domain.OrderReceipt
		total   int64
	)
	if err := row.Scan(
		&receipt.IdempotencyKey,
		&receipt.UserID,
		&receipt.CartID,
		&receipt.OrderCode,
		&total,
		&receipt.ItemCount,
		&receipt.CreatedAt,
	); err != nil {
		return nil, err
	}
	receipt.TotalPrice = domain.Money(total)
	return &receipt, nil
}
