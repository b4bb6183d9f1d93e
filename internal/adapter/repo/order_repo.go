package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kortstore/internal/domain"
)

// OrderRepositoryPG implements domain.OrderRepository backed by PostgreSQL.
// Accounts live in MongoDB for compatibility with the desktop client; orders
// are new data and get a relational home.
type OrderRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepositoryPG.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepositoryPG {
	return &OrderRepositoryPG{pool: pool}
}

// Create inserts a processed order with its items serialized as JSONB.
func (r *OrderRepositoryPG) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	query := `
INSERT INTO orders (id, user_id, payment_method, items, total, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	if _, err := r.pool.Exec(ctx, query,
		order.ID,
		order.UserID,
		string(order.Method),
		items,
		order.Total,
		order.Status,
		order.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// RecordPurchases stores the license keys minted for an order's one-time
// products, skipping products the user already owns.
func (r *OrderRepositoryPG) RecordPurchases(ctx context.Context, userID, orderID string, items []domain.PurchasedProduct) error {
	if len(items) == 0 {
		return nil
	}

	query := `
INSERT INTO purchased_products (user_id, order_id, product_id, name, image, license_key)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, product_id) DO NOTHING;
`
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, userID, orderID, string(item.ID), item.Name, item.Image, item.LicenseKey)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("record purchase: %w", err)
		}
	}
	return nil
}

// ListPurchases returns the user's owned products, oldest first.
func (r *OrderRepositoryPG) ListPurchases(ctx context.Context, userID string) ([]domain.PurchasedProduct, error) {
	rows, err := r.pool.Query(ctx, `
SELECT product_id, name, image, license_key
FROM purchased_products
WHERE user_id = $1
ORDER BY created_at ASC;
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []domain.PurchasedProduct
	for rows.Next() {
		var p domain.PurchasedProduct
		var productID string
		if err := rows.Scan(&productID, &p.Name, &p.Image, &p.LicenseKey); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		p.ID = domain.ProductID(productID)
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return purchases, nil
}
